// Package unix implements the stream transport over Unix domain sockets,
// for clients running on the same machine as the server.
//
// The socket file given as endpoint is removed and recreated when the server
// starts listening, and removed again when it is closed.
package unix
