package crypto

import "io"

// NewWithReader returns a Provider drawing randomness from r.
func NewWithReader(r io.Reader) *Provider { return &Provider{rand: r} }
