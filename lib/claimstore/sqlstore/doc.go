// Package sqlstore implements claimstore.IClaimStore on an embedded SQLite
// database using the pure Go modernc.org/sqlite driver.
//
// The location is the primary key of the claims table, so SQLite itself
// enforces the one-claim-per-location rule: Add is an INSERT ... ON CONFLICT
// DO NOTHING and zero affected rows mean the location was taken. Remove reads,
// checks and deletes inside one transaction.
package sqlstore
