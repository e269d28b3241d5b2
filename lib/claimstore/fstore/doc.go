// Package fstore implements claimstore.IClaimStore on top of a plain directory.
//
// Every claim is stored in its own file named <location>.claim containing the
// JSON encoded record. Writes go to a temporary file which is synced and then
// renamed, so a claim file is either complete or absent.
//
// Lookups never touch the disk: an in-memory index (xsync.MapOf) is rebuilt
// from the directory when the store is opened and kept up to date by every
// write. Mutations of one location are serialized with a lockmgr.ILockManager.
package fstore
