// Package password manages the shared tunnel credential: a permutation of the
// 256 byte values, exchanged out-of-band as standard base64 text.
package password

import (
	crand "crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// Length is the number of entries in a valid password table.
const Length = 256

// ErrInvalid is returned when a password is not a permutation of 0..255.
var ErrInvalid = errors.New("invalid password")

// Validate reports whether p has exactly Length entries, all distinct.
func Validate(p []byte) bool {
	if len(p) != Length {
		return false
	}

	var seen [Length]bool
	for _, b := range p {
		if seen[b] {
			return false
		}
		seen[b] = true
	}
	return true
}

// Random returns a uniformly shuffled permutation of 0..255. It is meant for
// generating new credentials.
func Random() ([]byte, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("random seed: %w", err)
	}
	r := rand.New(rand.NewChaCha8(seed))

	p := make([]byte, Length)
	for i := range p {
		p[i] = byte(i)
	}
	r.Shuffle(len(p), func(i, j int) {
		p[i], p[j] = p[j], p[i]
	})
	return p, nil
}

// Loads decodes a base64 password and validates it.
func Loads(s string) ([]byte, error) {
	p, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !Validate(p) {
		return nil, fmt.Errorf("%w: decoded %d bytes, want a permutation of %d", ErrInvalid, len(p), Length)
	}
	return p, nil
}

// Dumps encodes p as base64 after validating it.
func Dumps(p []byte) (string, error) {
	if !Validate(p) {
		return "", ErrInvalid
	}
	return base64.StdEncoding.EncodeToString(p), nil
}
