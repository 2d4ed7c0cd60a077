package interfaces

// Store persists one kind of record keyed by topic or id.
type Store[T any] interface {
	Set(key string, value T) error
	Get(key string) (T, bool, error)
	GetAll() ([]T, error)
	Delete(key string) error
}

// Keychain holds secret key material (symmetric keys, private keys) by tag.
type Keychain interface {
	Set(tag, secret string) error
	Get(tag string) (string, bool, error)
	Delete(tag string) error
}
