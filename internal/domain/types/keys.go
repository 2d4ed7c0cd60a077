package types

// KeyPair is an X25519 key pair rendered as hex strings.
type KeyPair struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// Sealed is an AEAD output: nonce and ciphertext, both hex encoded.
type Sealed struct {
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
}
