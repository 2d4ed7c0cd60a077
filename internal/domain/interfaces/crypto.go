package interfaces

import domaintypes "pairlink/internal/domain/types"

// CryptoProvider generates keys and seals payloads. Keys and digests are hex strings.
type CryptoProvider interface {
	GenerateSymmetricKey() (string, error)
	GenerateKeyPair() (domaintypes.KeyPair, error)
	// GenerateSharedKey derives a symmetric key from an ECDH exchange.
	GenerateSharedKey(privateKey, peerPublicKey string) (string, error)
	Hash(hexData string) (string, error)
	Encrypt(plaintext []byte, symKey string) (domaintypes.Sealed, error)
	Decrypt(sealed domaintypes.Sealed, symKey string) ([]byte, error)
}
