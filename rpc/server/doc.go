// Package server implements the authoritative side of dSync.
//
// The server owns the claim store. Clients join with a hello, receive a
// welcome carrying every claim projected for them and then send claim and
// transfer requests. Every request may produce messages to any session, so
// adapters answer by pushing through an ISessionRegistry instead of
// returning a response.
//
// Key Components:
//
//   - ClaimSynchronizer: validates Add and Remove requests against the
//     claim store under a per location lock and pushes deltas to the other
//     sessions. Each viewer gets its own relationship score (Project).
//
//   - TransferCoordinator: relays the transfer handshake. It resolves the
//     destination through the claim store, keeps the pending transfers and
//     synthesizes a Reject when a transfer cannot be delivered or its
//     destination disconnects before deciding.
//
//   - RPCServer: decodes and validates messages, manages sessions and
//     dispatches to the adapters. With an admin endpoint configured it also
//     serves metrics and a small claim administration API (AdminHandler).
//
// Usage Example:
//
//	store, _ := bstore.NewBoltStore("./data/claims.db")
//	s := server.NewRPCServer(
//	  common.ServerConfig{
//	    Transport:     common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	    AdminEndpoint: "127.0.0.1:8081",
//	  },
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	  store,
//	  scores.NewStaticScorer(0),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	Messages of one connection are handled in order, different connections
//	are handled concurrently. Claim mutations are serialized per location.
package server
