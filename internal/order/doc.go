// Package order defines the unit of synchronization for the kiosk: the order
// record, its status machine, and the partial patches (overlay entries) that
// override fields the authoritative backend has not accepted.
//
// # Patches
//
// A Patch only carries the fields a mutation changed. Every present field
// replaces the base value outright, so applying a patch to a stale record
// gives the same result as applying it to a fresh one. Patches never carry
// relative values (counters, deltas).
//
// # Status Machine
//
//	new -> preparing -> {ready | out_for_delivery} -> {delivered | arrived}
//
// cancelled is reachable from every non-terminal status. delivered, arrived
// and cancelled are terminal.
package order
