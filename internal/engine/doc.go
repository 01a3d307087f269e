// Package engine is the read and write path for orders.
//
// The Reconciler merges overlay patches onto what the backend reports. The
// Pipeline writes through to the backend first and falls back to the overlay
// (status changes) or the local session collection (creations) when the
// backend fails. The Listener turns backend change events into invalidation
// signals so open views re-read.
//
// Fallback decisions are explicit: every Pipeline call returns an Outcome
// naming where the returned order came from and, for fallbacks, the remote
// failure kind. Remote failures never surface as errors; only caller mistakes
// (unknown status, illegal transition, missing order) do.
//
// CONSISTENCY MODEL:
//
// A successful remote write clears the overlay entry. There is no transaction
// between the two, so a crash in between leaves a stale entry behind; every
// read that sees the remote record already at the overlay's status clears
// the entry again.
package engine
