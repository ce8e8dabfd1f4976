package socks5

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	Ver        = txsocks5.Ver
	MethodNone = txsocks5.MethodNone
	CmdConnect = txsocks5.CmdConnect

	ATYPIPv4   = txsocks5.ATYPIPv4
	ATYPDomain = txsocks5.ATYPDomain
	ATYPIPv6   = txsocks5.ATYPIPv6

	// MinRequestLen is the shortest request worth parsing: header, one
	// address byte and the port.
	MinRequestLen = 7
)

// ErrHandshake is wrapped by every framing violation.
var ErrHandshake = errors.New("socks5 handshake")

// Address is a CONNECT destination.
type Address struct {
	Host string
	Port uint16
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// CheckGreeting validates a client greeting: VER NMETHODS METHODS.
func CheckGreeting(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("%w: empty greeting", ErrHandshake)
	}
	if b[0] != Ver {
		return fmt.Errorf("%w: unsupported version %d", ErrHandshake, b[0])
	}
	if len(b) < 3 || b[1] == 0 {
		return fmt.Errorf("%w: no methods offered", ErrHandshake)
	}
	return nil
}

// CheckRequest validates the fixed part of a request: its length, command and
// address type.
func CheckRequest(b []byte) error {
	if len(b) < MinRequestLen {
		return fmt.Errorf("%w: request too short (%d bytes)", ErrHandshake, len(b))
	}
	if b[1] != CmdConnect {
		return fmt.Errorf("%w: unsupported command %d", ErrHandshake, b[1])
	}
	switch b[3] {
	case ATYPIPv4, ATYPDomain, ATYPIPv6:
		return nil
	default:
		return fmt.Errorf("%w: unsupported address type %d", ErrHandshake, b[3])
	}
}

// ParseRequest validates a CONNECT request frame and returns its destination.
//
// For domain names the name runs from offset 5 up to the port; the length
// byte is not trusted.
func ParseRequest(b []byte) (Address, error) {
	if err := CheckRequest(b); err != nil {
		return Address{}, err
	}

	port := binary.BigEndian.Uint16(b[len(b)-2:])

	var host string
	switch b[3] {
	case ATYPIPv4:
		if len(b) < 4+net.IPv4len+2 {
			return Address{}, fmt.Errorf("%w: truncated IPv4 address", ErrHandshake)
		}
		host = net.IP(b[4 : 4+net.IPv4len]).String()
	case ATYPDomain:
		if len(b) < 5+1+2 {
			return Address{}, fmt.Errorf("%w: empty domain name", ErrHandshake)
		}
		host = string(b[5 : len(b)-2])
	case ATYPIPv6:
		if len(b) < 4+net.IPv6len+2 {
			return Address{}, fmt.Errorf("%w: truncated IPv6 address", ErrHandshake)
		}
		host = net.IP(b[4 : 4+net.IPv6len]).String()
	}

	return Address{Host: host, Port: port}, nil
}
