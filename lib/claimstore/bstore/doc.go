// Package bstore implements claimstore.IClaimStore on an embedded bbolt database.
//
// Claims live in the "claims" bucket keyed by the 8-byte big-endian location
// (sign bit flipped, so iteration is in location order). The "owners" bucket is
// a secondary index with keys of the form owner | 0x00 | location, which turns
// FindByOwner and ListByOwner into a prefix scan.
//
// Add and Remove each run in a single bbolt update transaction. bbolt allows
// only one writer at a time, so the check and the write can never interleave
// with another mutation, and the data is fsynced before the transaction returns.
package bstore
