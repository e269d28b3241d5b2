// Package claimstore provides the durable store for claims, the exclusive bindings
// of a map location to an owner identity. It is the single source of truth on the
// server; clients only ever hold projections of it.
//
// The package focuses on:
//   - A unified interface (IClaimStore) for claim operations across different backends
//   - Atomic check-and-insert and check-and-delete per location
//   - Typed errors that callers can branch on with errors.Is
//
// Key Components:
//
//   - IClaimStore Interface: The core abstraction. Add fails with ErrConflict if the
//     location is taken, Remove fails with ErrNotFound or ErrUnauthorized. A removal
//     by the SystemRequester skips the ownership check (used for administrative
//     cleanup).
//
//   - Error System: Errors carry a RetCode. The sentinel values ErrConflict,
//     ErrNotFound and ErrUnauthorized match any error with the same code, so
//
//     if errors.Is(err, claimstore.ErrConflict) { ... }
//
//     works no matter which backend produced the error.
//
// Implementations:
//
//	- File Store (fstore): one file per claim in a directory, named <location>.claim.
//	  An in-memory index is rebuilt from the directory at startup.
//
//	- Bolt Store (bstore): an embedded bbolt database with a location bucket and an
//	  owner index bucket.
//
//	- SQL Store (sqlstore): an embedded SQLite database (pure Go driver).
//
// All implementations are verified with the conformance suite in the testing
// subpackage.
package claimstore
