package crypto

import (
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"pairlink/internal/domain"
)

// GenerateKeyPair returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func (p *Provider) GenerateKeyPair() (domain.KeyPair, error) {
	var priv [curve25519.ScalarSize]byte
	if _, err := io.ReadFull(p.rand, priv[:]); err != nil {
		return domain.KeyPair{}, err
	}
	defer Wipe(priv[:])
	clamp(&priv)

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return domain.KeyPair{}, err
	}
	return domain.KeyPair{
		PublicKey:  hex.EncodeToString(pub),
		PrivateKey: hex.EncodeToString(priv[:]),
	}, nil
}

// dh computes X25519 Diffie-Hellman over hex-encoded keys.
func dh(privateKey, peerPublicKey string) ([]byte, error) {
	priv, err := decodeKey("private key", privateKey)
	if err != nil {
		return nil, err
	}
	defer Wipe(priv)
	pub, err := decodeKey("public key", peerPublicKey)
	if err != nil {
		return nil, err
	}
	return curve25519.X25519(priv, pub)
}

func decodeKey(what, s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	if len(b) != KeyBytes {
		return nil, fmt.Errorf("%s: want %d bytes, got %d", what, KeyBytes, len(b))
	}
	return b, nil
}

func clamp(k *[curve25519.ScalarSize]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}
