// Package transfer implements the client side of the unit transfer handshake.
//
// A transfer moves a unit from a location owned by one player (the initiator)
// to a location owned by another player (the destination):
//
//	initiator            server             destination
//	   | -- Send ----------> |                    |
//	   |                     | -- Receive ------> |
//	   |                     | <-- Accept/Reject  |
//	   | <-- Accept/Reject - |                    |
//
// The initiator removes the unit from its world before the Send leaves and shows
// a wait indicator. The destination either places the unit near its location and
// answers Accept, or answers Reject. On Reject the initiator places the unit back
// near the origin. Either way the unit exists exactly once when the handshake is
// settled. Duplicate or unknown terminal steps are ignored so a unit is never
// restored twice.
//
// There is no timeout on the destination's decision: the initiator waits until
// an answer arrives. The server answers with a Reject on the destination's behalf
// when the destination is not connected or disconnects before deciding.
package transfer
