// Package replica holds the client side projection of the claim store.
//
// A Replica is filled from the snapshot the server sends when a client joins
// and is afterwards only changed by the add and remove deltas the server
// broadcasts. It never originates state.
//
// Only claims of owners that resolve to a recognized foreign player faction are
// kept. Every entry has a matching object in the local world, which is spawned
// when the entry is added and removed with it.
//
// Until MarkReady is called (the local world is loaded) deltas are dropped and
// the latest snapshot is kept aside. MarkReady then builds the replica from
// that snapshot. Building from a snapshot never aborts: an entry that cannot
// be spawned is logged and skipped. A single add delta that cannot be spawned
// is logged and shown as an error notice, and the location is left empty.
package replica
