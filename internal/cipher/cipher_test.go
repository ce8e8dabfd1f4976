package cipher

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/die-net/subtunnel/internal/password"
)

func newRandom(t testing.TB) *Cipher {
	t.Helper()

	p, err := password.Random()
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewRejectsInvalid(t *testing.T) {
	t.Parallel()

	short := make([]byte, 255)
	dup := make([]byte, password.Length)

	for _, in := range [][]byte{nil, short, dup} {
		if _, err := New(in); !errors.Is(err, password.ErrInvalid) {
			t.Fatalf("New(len=%d) error = %v, want ErrInvalid", len(in), err)
		}
	}
}

func TestInverseTable(t *testing.T) {
	t.Parallel()

	seed, err := password.Random()
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(seed)
	if err != nil {
		t.Fatal(err)
	}

	for i := range password.Length {
		if got := c.decode[c.encode[i]]; got != byte(i) {
			t.Fatalf("decode[encode[%d]] = %d", i, got)
		}
		if c.encode[i] != seed[i] {
			t.Fatalf("encode[%d] = %d, want seed value %d", i, c.encode[i], seed[i])
		}
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	every := make([]byte, password.Length)
	for i := range every {
		every[i] = byte(i)
	}
	large := make([]byte, 3*4096+17)
	for i := range large {
		large[i] = byte(rand.IntN(256))
	}

	tests := []struct {
		name string
		in   []byte
	}{
		{name: "empty", in: []byte{}},
		{name: "single", in: []byte{0x05}},
		{name: "every byte", in: every},
		{name: "socks5 request", in: []byte{0x05, 0x01, 0x00, 0x01, 127, 0, 0, 1, 0x04, 0x38}},
		{name: "larger than buffer", in: large},
	}

	for range 8 {
		c := newRandom(t)
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				enc := c.Encode(tt.in)
				if len(enc) != len(tt.in) {
					t.Fatalf("Encode changed length: %d -> %d", len(tt.in), len(enc))
				}
				if got := c.Decode(enc); !bytes.Equal(got, tt.in) {
					t.Fatal("Decode(Encode(s)) != s")
				}
				if got := c.Encode(c.Decode(tt.in)); !bytes.Equal(got, tt.in) {
					t.Fatal("Encode(Decode(s)) != s")
				}
			})
		}
	}
}

func TestInPlaceMatchesCopy(t *testing.T) {
	t.Parallel()

	c := newRandom(t)
	in := []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")

	buf := bytes.Clone(in)
	c.EncodeInPlace(buf)
	if !bytes.Equal(buf, c.Encode(in)) {
		t.Fatal("EncodeInPlace differs from Encode")
	}
	c.DecodeInPlace(buf)
	if !bytes.Equal(buf, in) {
		t.Fatal("DecodeInPlace did not restore plaintext")
	}
}

func FuzzRoundTrip(f *testing.F) {
	c := newRandom(f)

	f.Add([]byte{})
	f.Add([]byte{0x05, 0x01, 0x00})
	f.Add(bytes.Repeat([]byte{0xff}, 4097))

	f.Fuzz(func(t *testing.T, data []byte) {
		if got := c.Decode(c.Encode(data)); !bytes.Equal(got, data) {
			t.Fatalf("round trip mismatch for %x", data)
		}
	})
}

func BenchmarkEncodeInPlace(b *testing.B) {
	c := newRandom(b)
	buf := make([]byte, 4096)

	b.SetBytes(int64(len(buf)))
	for b.Loop() {
		c.EncodeInPlace(buf)
	}
}
