// Package cipher implements the substitution transform applied to every byte
// that crosses the tunnel.
//
// A Cipher is built from a password table: the table itself maps plaintext to
// ciphertext and its inverse maps back. A Cipher is immutable once built and
// may be shared by any number of connections.
package cipher

import (
	"fmt"

	"github.com/die-net/subtunnel/internal/password"
)

type Cipher struct {
	encode [password.Length]byte
	decode [password.Length]byte
}

// New builds a Cipher from seed, which must be a valid password table.
func New(seed []byte) (*Cipher, error) {
	if !password.Validate(seed) {
		return nil, fmt.Errorf("cipher: %w", password.ErrInvalid)
	}

	c := &Cipher{}
	for i, v := range seed {
		c.encode[i] = v
		c.decode[v] = byte(i)
	}
	return c, nil
}

// Encode returns a new slice holding the encoding of b.
func (c *Cipher) Encode(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[i] = c.encode[v]
	}
	return out
}

// Decode returns a new slice holding the decoding of b.
func (c *Cipher) Decode(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[i] = c.decode[v]
	}
	return out
}

func (c *Cipher) EncodeInPlace(b []byte) {
	for i, v := range b {
		b[i] = c.encode[v]
	}
}

func (c *Cipher) DecodeInPlace(b []byte) {
	for i, v := range b {
		b[i] = c.decode[v]
	}
}
