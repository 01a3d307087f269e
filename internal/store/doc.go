// Package store provides SQLite-backed durable storage for kiosk client state.
//
// The store holds a handful of keyed JSON documents, each written as a whole:
//   - kiosk.order_overlay: the order overlay map (see package overlay)
//   - kiosk.pending_cart: the client's unsent cart (owned by the UI)
//
// Every write replaces the document and bumps its revision, so a reader
// sees either the old map or the new one.
//
// # Database Configuration
//
//   - WAL mode for file databases (":memory:" keeps SQLite's memory journal)
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - schema migrations tracked in PRAGMA user_version
//
// Several execution contexts may open the same file; SQLite's locking
// serializes their writes.
package store
