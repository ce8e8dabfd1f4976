package socks5

import (
	"fmt"
	"io"
	"net"
)

// ReadGreeting reads one complete greeting from r and returns its raw bytes.
// Clients may split a greeting across writes, so lengths are taken from the
// frame rather than from read boundaries.
func ReadGreeting(r io.Reader) ([]byte, error) {
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	if hdr[0] != Ver {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrHandshake, hdr[0])
	}
	if hdr[1] == 0 {
		return nil, fmt.Errorf("%w: no methods offered", ErrHandshake)
	}

	b := make([]byte, 2+int(hdr[1]))
	copy(b, hdr)
	if _, err := io.ReadFull(r, b[2:]); err != nil {
		return nil, fmt.Errorf("read greeting methods: %w", err)
	}
	return b, CheckGreeting(b)
}

// ReadRequest reads one complete CONNECT request from r and returns its raw
// bytes, rejecting other commands and unknown address types as soon as the
// header is read.
func ReadRequest(r io.Reader) ([]byte, error) {
	b := make([]byte, 4, 4+1+255+2)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	if b[1] != CmdConnect {
		return nil, fmt.Errorf("%w: unsupported command %d", ErrHandshake, b[1])
	}

	var addrLen int
	switch b[3] {
	case ATYPIPv4:
		addrLen = net.IPv4len
	case ATYPIPv6:
		addrLen = net.IPv6len
	case ATYPDomain:
		var n [1]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
		if n[0] == 0 {
			return nil, fmt.Errorf("%w: empty domain name", ErrHandshake)
		}
		b = append(b, n[0])
		addrLen = int(n[0])
	default:
		return nil, fmt.Errorf("%w: unsupported address type %d", ErrHandshake, b[3])
	}

	start := len(b)
	b = b[:start+addrLen+2]
	if _, err := io.ReadFull(r, b[start:]); err != nil {
		return nil, fmt.Errorf("read request address: %w", err)
	}
	return b, CheckRequest(b)
}
