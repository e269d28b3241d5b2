// Package client implements the client side of dSync on top of the transport
// and serialization layers.
//
// A Session joins the server with a hello, keeps a replica of the foreign
// claims (lib/replica) and drives this client's half of unit transfers
// (lib/transfer). The local game is reached through the lib/world
// collaborator interfaces.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Username:      "alice",
//	  TimeoutSecond: 5,
//	  Transport:     common.ClientTransportConfig{Endpoint: "localhost:8080", RetryCount: 3},
//	}
//
//	w := world.NewMemoryWorld("")
//	s, err := client.NewSession(config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer(),
//	  client.Collaborators{
//	    World:       w,
//	    Dialogs:     dialogs,
//	    Checkpoints: w,
//	    Factions:    world.ScoreFactionResolver{Self: "alice"},
//	  })
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer s.Close()
//
//	_ = s.MarkReady()
//	_ = s.AddClaim(4200)
//
// Ordering:
//
//	Requests are delivered in the order they were made and the server handles
//	them in that order. Snapshot can therefore be used as a barrier: when it
//	returns, every request sent before it has been handled by the server.
package client
