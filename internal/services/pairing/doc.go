// Package pairing implements the Pairing Protocol Engine.
//
// A pairing is a long-lived encrypted channel between two peers on a relay
// topic. The proposer creates it and shares a URI out-of-band; the responder
// activates the URI and answers with an approve message. Pairing messages are
// sealed with the symmetric key carried in the URI.
//
// # State machine
//
//	PENDING --(approve received)--> ACTIVE --(delete/reject/expiry)--> removed
//
// The responder never observes PENDING: it starts ACTIVE optimistically,
// while the proposer waits for the approve message (see CreateResult.Approval).
//
// # Session handshake
//
// Session proposals, settlements and rejections travel over an active
// pairing topic. The engine does not interpret them; it hands them to the
// handlers registered with OnSession, and Forward lets the session engine
// send them.
package pairing
