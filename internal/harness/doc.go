// Package harness runs scripted order-sync scenarios against a fully wired
// kiosk context and checks the outcome.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: rejected_update_survives_restart
//	description: "A rejected status change is kept and reloaded"
//	terminal_policy: reject
//	steps:
//	  - action: reject_updates
//	  - action: transition
//	    order: sample-0001
//	    status: preparing
//	    expect:
//	      status: preparing
//	      source: overlay
//	      failure: rejected
//	  - action: restart
//	  - action: read
//	    order: sample-0001
//	    expect: { status: preparing, overlay: true }
//	assertions:
//	  - type: durable_entry
//	    order: sample-0001
//	    status: preparing
//
// Orders are addressed by id or number. A create step with "as: noor"
// lets later steps write "order: $noor".
//
// # Step Actions
//
//   - create, transition, cancel: writes through the pipeline
//   - read, list: reads through the reconciler
//   - restart: closes the context and opens a new one on the same storage
//   - reject_updates, go_offline, go_online: change how the backend answers
//   - backend_status: changes an order on the backend directly, the way
//     another kiosk or the kitchen would
//
// # Assertion Types
//
//   - overlay_entry / overlay_absent: the in-memory overlay after the last step
//   - durable_entry: the overlay as reloaded from storage
//   - trace_contains, trace_count, trace_order: the recorded trace
//
// # Deterministic Testing
//
// Every run uses testutil.DeterministicClock, sequential ids ("remote-N" for
// backend-created orders, "local-N" for session-local ones) and a fixed
// order-number seed, so traces are stable for golden comparison.
package harness
