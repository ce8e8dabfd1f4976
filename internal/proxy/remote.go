package proxy

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/die-net/subtunnel/internal/logging"
	"github.com/die-net/subtunnel/internal/secure"
	"github.com/die-net/subtunnel/internal/socks5"
)

// RemoteServer is the tunnel-facing endpoint. It decodes the SOCKS5
// negotiation forwarded by a LocalServer, dials the destination and relays.
type RemoteServer struct {
	*acceptLoop
	cfg Config
}

// NewRemoteServer constructs a RemoteServer that dials destinations with
// cfg.Dialer.
//
// Serve starts accepting connections on a listener; canceling ctx closes every
// session.
func NewRemoteServer(ctx context.Context, cfg Config) *RemoteServer {
	s := &RemoteServer{cfg: cfg}
	s.acceptLoop = newAcceptLoop(ctx, "server", cfg.Logger, s.handle)
	return s
}

func (s *RemoteServer) handle(ctx context.Context, conn net.Conn, log logging.Logger) error {
	defer conn.Close()

	if s.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}

	ch := secure.New(conn, s.cfg.Cipher)

	greeting, err := ch.ReadDecoded()
	if err != nil {
		return fmt.Errorf("read greeting: %w", err)
	}
	if len(greeting) == 0 || greeting[0] != socks5.Ver {
		return fmt.Errorf("%w: bad tunneled greeting", socks5.ErrHandshake)
	}

	if err := socks5.WriteMethodSelection(ch.Writer()); err != nil {
		return err
	}

	request, err := ch.ReadDecoded()
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	addr, err := socks5.ParseRequest(request)
	if err != nil {
		return err
	}

	log.Debugf("server: connecting to %s", addr)
	dest, err := s.cfg.Dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return fmt.Errorf("dial destination: %w", err)
	}
	defer dest.Close()

	if err := socks5.WriteSuccessReply(ch.Writer()); err != nil {
		return err
	}

	_ = conn.SetDeadline(time.Time{})

	_ = Relay(ctx, log, s.cfg.HalfCloseTimeout, conn, dest, ch.CopyDecoding, ch.CopyEncoding)
	return nil
}
