// Package store provides persistence for pairlink's records and keys.
//
// It contains concrete implementations of the domain storage interfaces.
// File-backed stores serialise one JSON document per record kind under the
// configured home directory; memory stores back sessions and proposals when
// they need not survive a restart. All methods are concurrency-safe via
// internal locking.
//
// The package includes:
//   - Pairings, proposals and sessions (JSONFileStore, MemoryStore)
//   - Symmetric and private keys (KeychainFileStore, MemoryKeychain), the
//     file variant sealed with a passphrase-derived key
package store
