package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"pairlink/internal/domain"
)

const keychainFile = "keychain.enc"

// KeychainFileStore keeps symmetric and private keys on disk, sealed with a
// key derived from a passphrase.
//
// The derived key and the decrypted tags are cached after the first read.
// Writes go through to disk. The cache is reloaded when the file changes
// underneath it, so several stores may share one home directory.
type KeychainFileStore struct {
	path       string
	passphrase string
	params     scryptParams

	mu     sync.Mutex
	cipher *keychainCipher
	keys   map[string]string
	stamp  fileStamp
}

// fileStamp identifies one version of the keychain file. A nil info means
// no file.
type fileStamp struct {
	info os.FileInfo
}

func (a fileStamp) same(b fileStamp) bool {
	if a.info == nil || b.info == nil {
		return a.info == nil && b.info == nil
	}
	return os.SameFile(a.info, b.info) &&
		a.info.Size() == b.info.Size() &&
		a.info.ModTime().Equal(b.info.ModTime())
}

// NewKeychainFileStore returns a KeychainFileStore rooted at dir.
func NewKeychainFileStore(dir, passphrase string) *KeychainFileStore {
	return &KeychainFileStore{
		path:       filepath.Join(dir, keychainFile),
		passphrase: passphrase,
		params:     scryptParamsDefault(),
	}
}

// Set stores secret under tag.
func (k *KeychainFileStore) Set(tag, secret string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, err := k.load()
	if err != nil {
		return err
	}
	if cur, ok := m[tag]; ok && cur == secret {
		return nil
	}
	next := maps.Clone(m)
	next[tag] = secret
	return k.save(next)
}

// Get returns the secret under tag and whether it was present.
func (k *KeychainFileStore) Get(tag string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, err := k.load()
	if err != nil {
		return "", false, err
	}
	s, ok := m[tag]
	return s, ok, nil
}

// Delete removes the secret under tag.
func (k *KeychainFileStore) Delete(tag string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, err := k.load()
	if err != nil {
		return err
	}
	if _, ok := m[tag]; !ok {
		return nil
	}
	next := maps.Clone(m)
	delete(next, tag)
	return k.save(next)
}

// load returns the cached tags, re-reading the file only when its stamp moved.
func (k *KeychainFileStore) load() (map[string]string, error) {
	stamp, err := statStamp(k.path)
	if err != nil {
		return nil, err
	}
	if k.keys != nil && stamp.same(k.stamp) {
		return k.keys, nil
	}
	if stamp.info == nil {
		k.keys, k.stamp = map[string]string{}, stamp
		return k.keys, nil
	}

	b, err := readFile(k.path)
	if err != nil {
		return nil, err
	}
	sk, err := parseSealed(b)
	if err != nil {
		return nil, err
	}
	if k.cipher == nil || !k.cipher.derivedFor(sk) {
		c, err := newKeychainCipher(k.passphrase, sk.Salt, scryptParams{N: sk.N, R: sk.R, P: sk.P})
		if err != nil {
			return nil, err
		}
		k.cipher = c
	}
	raw, err := k.cipher.open(sk)
	if err != nil {
		k.cipher = nil
		return nil, err
	}
	m := map[string]string{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("keychain: decode tags: %w", err)
	}
	k.keys, k.stamp = m, stamp
	return m, nil
}

// save seals m, writes it and makes it the cached view.
func (k *KeychainFileStore) save(m map[string]string) error {
	if k.cipher == nil {
		c, err := newKeychainCipher(k.passphrase, nil, k.params)
		if err != nil {
			return err
		}
		k.cipher = c
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	b, err := k.cipher.seal(raw)
	if err != nil {
		return err
	}
	if err := writeFile(k.path, b); err != nil {
		return err
	}
	stamp, err := statStamp(k.path)
	if err != nil {
		return err
	}
	k.keys, k.stamp = m, stamp
	return nil
}

func statStamp(path string) (fileStamp, error) {
	fi, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fileStamp{}, nil
	case err != nil:
		return fileStamp{}, fmt.Errorf("keychain: stat: %w", err)
	}
	return fileStamp{info: fi}, nil
}

// MemoryKeychain keeps keys in process memory only.
type MemoryKeychain struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewMemoryKeychain returns an empty MemoryKeychain.
func NewMemoryKeychain() *MemoryKeychain {
	return &MemoryKeychain{keys: make(map[string]string)}
}

func (k *MemoryKeychain) Set(tag, secret string) error {
	k.mu.Lock()
	k.keys[tag] = secret
	k.mu.Unlock()
	return nil
}

func (k *MemoryKeychain) Get(tag string) (string, bool, error) {
	k.mu.RLock()
	s, ok := k.keys[tag]
	k.mu.RUnlock()
	return s, ok, nil
}

func (k *MemoryKeychain) Delete(tag string) error {
	k.mu.Lock()
	delete(k.keys, tag)
	k.mu.Unlock()
	return nil
}

// Compile-time assertions that both keychains implement domain.Keychain.
var (
	_ domain.Keychain = (*KeychainFileStore)(nil)
	_ domain.Keychain = (*MemoryKeychain)(nil)
)
