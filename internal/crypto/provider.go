package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"pairlink/internal/domain"
)

const (
	KeyBytes   = 32
	NonceBytes = chacha20poly1305.NonceSize
)

// sharedKeyInfo binds HKDF output to this protocol.
var sharedKeyInfo = []byte("pairlink-session-key")

// Provider implements domain.CryptoProvider on golang.org/x/crypto.
type Provider struct {
	rand io.Reader
}

// New returns a Provider reading randomness from crypto/rand.
func New() *Provider { return &Provider{rand: rand.Reader} }

// GenerateSymmetricKey returns a random 32-byte key.
func (p *Provider) GenerateSymmetricKey() (string, error) {
	key := make([]byte, KeyBytes)
	if _, err := io.ReadFull(p.rand, key); err != nil {
		return "", err
	}
	defer Wipe(key)
	return hex.EncodeToString(key), nil
}

// GenerateSharedKey runs X25519 between privateKey and peerPublicKey and
// expands the secret with HKDF-SHA256 into a symmetric key. Both peers of an
// exchange obtain the same key.
func (p *Provider) GenerateSharedKey(privateKey, peerPublicKey string) (string, error) {
	secret, err := dh(privateKey, peerPublicKey)
	if err != nil {
		return "", fmt.Errorf("ecdh: %w", err)
	}
	defer Wipe(secret)

	key := make([]byte, KeyBytes)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, sharedKeyInfo), key); err != nil {
		return "", err
	}
	defer Wipe(key)
	return hex.EncodeToString(key), nil
}

// Hash returns the SHA-256 digest of hex-encoded data, hex encoded.
func (p *Provider) Hash(hexData string) (string, error) {
	b, err := hex.DecodeString(hexData)
	if err != nil {
		return "", fmt.Errorf("hash input: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Encrypt seals plaintext under symKey with a random nonce.
func (p *Provider) Encrypt(plaintext []byte, symKey string) (domain.Sealed, error) {
	aead, err := newAEAD(symKey)
	if err != nil {
		return domain.Sealed{}, err
	}
	nonce := make([]byte, NonceBytes)
	if _, err := io.ReadFull(p.rand, nonce); err != nil {
		return domain.Sealed{}, err
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)
	return domain.Sealed{
		IV:         hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(ct),
	}, nil
}

// Decrypt opens a sealed payload produced by Encrypt under the same key.
func (p *Provider) Decrypt(sealed domain.Sealed, symKey string) ([]byte, error) {
	aead, err := newAEAD(symKey)
	if err != nil {
		return nil, err
	}
	nonce, err := hex.DecodeString(sealed.IV)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	if len(nonce) != NonceBytes {
		return nil, fmt.Errorf("iv: want %d bytes, got %d", NonceBytes, len(nonce))
	}
	ct, err := hex.DecodeString(sealed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	return aead.Open(nil, nonce, ct, nil)
}

func newAEAD(symKey string) (cipher.AEAD, error) {
	key, err := decodeKey("symmetric key", symKey)
	if err != nil {
		return nil, err
	}
	defer Wipe(key)
	return chacha20poly1305.New(key)
}

// Compile-time assertion that Provider implements domain.CryptoProvider.
var _ domain.CryptoProvider = (*Provider)(nil)
