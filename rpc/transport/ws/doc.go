// Package ws implements the transport over websockets (gorilla/websocket).
//
// Each protocol message travels as one binary websocket message, so no extra
// framing is needed. Connection handling (outboxes, ordering, disconnect
// callbacks) is shared with the stream transports through base.ConnRegistry
// and base.ClientPipe.
//
// The server can be mounted into an existing HTTP mux:
//
//	srv := ws.NewWSServerTransport()
//	mux.Handle(ws.Path, srv.Handler())
package ws
