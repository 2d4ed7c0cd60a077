// Package crypto implements the Crypto Provider used by the pairing and
// session engines.
//
// Contents
//
//   - X25519 key generation and clamping (GenerateKeyPair)
//   - ECDH followed by HKDF-SHA256 to a 32-byte symmetric key (GenerateSharedKey)
//   - Random symmetric keys (GenerateSymmetricKey)
//   - SHA-256 digests used to derive topics (Hash)
//   - ChaCha20-Poly1305 sealing of relay payloads (Encrypt, Decrypt)
//
// # Notes
//
// Keys, digests, nonces and ciphertexts cross the API as lowercase hex
// strings. Intermediate secrets are wiped with Wipe once they are no longer
// needed.
package crypto
