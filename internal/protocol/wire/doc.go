// Package wire defines the protocol messages exchanged on pairing and
// session topics.
//
// Every message travels as a JSON envelope {"method": ..., "params": {...}}
// sealed with the topic's symmetric key into a frame {"iv", "ciphertext"}.
// Decoding yields a Message, a closed union implemented only by the types in
// this package; callers switch on the concrete type and ignore the rest.
package wire
