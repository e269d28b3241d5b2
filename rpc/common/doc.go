// Package common holds the types shared by the server, the clients and the
// transports: the wire protocol, configuration structs and the logger setup.
//
// Key Components:
//
//   - Message: the single envelope for every message in both directions. The
//     MsgType selects which of the payload fields are used (Claim, Transfer,
//     Claims, Username, Err). Factory functions create well formed messages,
//     Validate rejects malformed ones before they reach any handler.
//
//   - ClaimStepMode / TransferStepMode: the closed sets of claim and transfer
//     operations. A compile time guard breaks the build when a mode is added,
//     so every switch over them gets revisited.
//
//   - ServerConfig / ClientConfig: configuration filled by the command line
//     (cobra flags, DSYNC_* environment variables via viper).
//
//   - Logger: a dragonboat logger.ILogger implementation with a fixed column
//     format. Every package gets its logger by name (logger.GetLogger), the
//     level of all of them is set by InitLoggers.
package common
