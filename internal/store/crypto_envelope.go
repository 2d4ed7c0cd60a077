package store

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"pairlink/internal/crypto"
	"pairlink/internal/errs"
)

// keychainFormatVersion is the newest sealed keychain layout this package writes.
const keychainFormatVersion = 2

// keychainLabel is authenticated with every sealed keychain, together with the salt.
const keychainLabel = "pairlink/keychain"

// ErrWrongPassphrase is returned when a keychain cannot be opened.
var ErrWrongPassphrase = errs.New(errs.CodeInvalidArgument, "wrong passphrase or corrupted keychain")

// sealedKeychain is the on-disk JSON layout.
type sealedKeychain struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

// scryptParams are the tunables for scrypt key derivation.
type scryptParams struct{ N, R, P int }

func scryptParamsDefault() scryptParams { return scryptParams{N: 1 << 15, R: 8, P: 1} }

// keychainCipher holds a passphrase-derived key for one salt and parameter
// set.
type keychainCipher struct {
	salt   []byte
	params scryptParams
	aead   cipher.AEAD
}

// newKeychainCipher derives the key for salt. A nil salt picks a fresh one.
func newKeychainCipher(passphrase string, salt []byte, p scryptParams) (*keychainCipher, error) {
	if salt == nil {
		salt = make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
	}
	key, err := scrypt.Key([]byte(passphrase), salt, p.N, p.R, p.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("keychain: derive key: %w", err)
	}
	defer crypto.Wipe(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &keychainCipher{salt: salt, params: p, aead: aead}, nil
}

// derivedFor reports whether sk was sealed under this cipher's salt and parameters.
func (kc *keychainCipher) derivedFor(sk sealedKeychain) bool {
	return bytes.Equal(kc.salt, sk.Salt) && kc.params == scryptParams{N: sk.N, R: sk.R, P: sk.P}
}

// seal encrypts the serialized tag map with a fresh nonce.
func (kc *keychainCipher) seal(raw []byte) ([]byte, error) {
	sk := sealedKeychain{
		V:     keychainFormatVersion,
		Salt:  kc.salt,
		N:     kc.params.N,
		R:     kc.params.R,
		P:     kc.params.P,
		Nonce: make([]byte, chacha20poly1305.NonceSizeX),
	}
	if _, err := rand.Read(sk.Nonce); err != nil {
		return nil, err
	}
	sk.Cipher = kc.aead.Seal(nil, sk.Nonce, raw, additionalData(sk))
	return json.Marshal(sk)
}

// open reverses seal. Any authentication failure reports ErrWrongPassphrase.
func (kc *keychainCipher) open(sk sealedKeychain) ([]byte, error) {
	pt, err := kc.aead.Open(nil, sk.Nonce, sk.Cipher, additionalData(sk))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

// parseSealed decodes and checks the on-disk layout.
func parseSealed(b []byte) (sealedKeychain, error) {
	var sk sealedKeychain
	if err := json.Unmarshal(b, &sk); err != nil {
		return sk, fmt.Errorf("keychain: decode: %w", err)
	}
	if sk.V != keychainFormatVersion {
		return sk, errs.Newf(errs.CodeUnsupported, "keychain version %d", sk.V)
	}
	if len(sk.Nonce) != chacha20poly1305.NonceSizeX {
		return sk, ErrWrongPassphrase
	}
	return sk, nil
}

func additionalData(sk sealedKeychain) []byte {
	return append([]byte(fmt.Sprintf("%s/v%d/", keychainLabel, sk.V)), sk.Salt...)
}
