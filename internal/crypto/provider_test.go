package crypto_test

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairlink/internal/crypto"
)

func TestSharedKey_BothSidesAgree(t *testing.T) {
	p := crypto.New()

	alice, err := p.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := p.GenerateKeyPair()
	require.NoError(t, err)

	ab, err := p.GenerateSharedKey(alice.PrivateKey, bob.PublicKey)
	require.NoError(t, err)
	ba, err := p.GenerateSharedKey(bob.PrivateKey, alice.PublicKey)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.Len(t, ab, 2*crypto.KeyBytes)
}

func TestSharedKey_RejectsShortKey(t *testing.T) {
	p := crypto.New()
	kp, err := p.GenerateKeyPair()
	require.NoError(t, err)

	_, err = p.GenerateSharedKey(kp.PrivateKey, "abcd")
	assert.Error(t, err)
}

func TestEncryptDecrypt(t *testing.T) {
	p := crypto.New()
	key, err := p.GenerateSymmetricKey()
	require.NoError(t, err)

	sealed, err := p.Encrypt([]byte(`{"method":"ping"}`), key)
	require.NoError(t, err)
	assert.NotContains(t, sealed.Ciphertext, hex.EncodeToString([]byte("ping")))

	pt, err := p.Decrypt(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, `{"method":"ping"}`, string(pt))
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	p := crypto.New()
	k1, err := p.GenerateSymmetricKey()
	require.NoError(t, err)
	k2, err := p.GenerateSymmetricKey()
	require.NoError(t, err)

	sealed, err := p.Encrypt([]byte("hi"), k1)
	require.NoError(t, err)

	_, err = p.Decrypt(sealed, k2)
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	p := crypto.New()

	// SHA-256 of the empty input.
	got, err := p.Hash("")
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got)

	_, err = p.Hash("not-hex")
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateKeyPair_UsesProviderRandomness(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 64)
	a, err := crypto.NewWithReader(bytes.NewReader(seed)).GenerateKeyPair()
	require.NoError(t, err)
	b, err := crypto.NewWithReader(bytes.NewReader(seed)).GenerateKeyPair()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = crypto.NewWithReader(failingReader{}).GenerateKeyPair()
	assert.Error(t, err)
}

func TestGenerateKeyPair_IsClamped(t *testing.T) {
	kp, err := crypto.NewWithReader(bytes.NewReader(bytes.Repeat([]byte{0xff}, 32))).GenerateKeyPair()
	require.NoError(t, err)
	priv, err := hex.DecodeString(kp.PrivateKey)
	require.NoError(t, err)
	assert.Zero(t, priv[0]&7)
	assert.Equal(t, byte(0x40), priv[31]&0xc0)
}
