// Package session implements the Session Protocol Engine.
//
// A session is a capability-scoped, time-bounded channel negotiated over an
// active pairing. The handshake (propose, settle, reject) travels over the
// pairing topic through the pairing engine. Once settled, both peers derive
// the same session key by ECDH, the session topic is the hash of that key,
// and all further traffic (update, extend, delete, ping, request, response,
// event) is published directly on the session topic.
//
// A process plays exactly one role, chosen at construction:
//
//   - ProposerEngine proposes sessions and waits for settlement.
//   - ResponderEngine receives proposals and approves or rejects them. The
//     responder is the session controller.
//
// Both embed the same core for everything that happens after settlement.
package session
