package proxy

import (
	"time"

	"github.com/die-net/subtunnel/internal/cipher"
	"github.com/die-net/subtunnel/internal/dialer"
	"github.com/die-net/subtunnel/internal/logging"
)

type Config struct {
	// NegotiationTimeout bounds the SOCKS5 handshake on both the accepted and
	// the dialed connection. Zero disables it.
	NegotiationTimeout time.Duration

	// HalfCloseTimeout is how long the remaining relay direction may go
	// without data once the other direction has reached end of stream. Zero
	// waits for the peer indefinitely.
	HalfCloseTimeout time.Duration

	Cipher *cipher.Cipher

	// Dialer reaches the server (local endpoint) or destinations (server
	// endpoint).
	Dialer dialer.Dialer

	Logger logging.Logger
}
