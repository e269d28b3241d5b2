// Package cmd implements the command-line interface of dSync. It provides
// a hierarchical command structure for running the server and for joining
// it as a player.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the dSync server
//   - claim: Claim operations (add, remove, list, home, watch)
//   - transfer: Sending units to other players and receiving them
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dsync -help for a list of all commands.
package cmd
