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

// LocalServer is the application-facing endpoint. It speaks plain SOCKS5 to
// clients and forwards each CONNECT through an encrypted tunnel to a
// RemoteServer.
type LocalServer struct {
	*acceptLoop
	cfg        Config
	remoteAddr string
}

// NewLocalServer constructs a LocalServer that tunnels to remoteAddr.
//
// Serve starts accepting connections on a listener; canceling ctx closes every
// session.
func NewLocalServer(ctx context.Context, cfg Config, remoteAddr string) *LocalServer {
	s := &LocalServer{cfg: cfg, remoteAddr: remoteAddr}
	s.acceptLoop = newAcceptLoop(ctx, "local", cfg.Logger, s.handle)
	return s
}

func (s *LocalServer) handle(ctx context.Context, conn net.Conn, log logging.Logger) error {
	defer conn.Close()

	if s.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}

	greeting, err := socks5.ReadGreeting(conn)
	if err != nil {
		return err
	}
	if err := socks5.WriteMethodSelection(conn); err != nil {
		return err
	}

	// The request is forwarded as received, so it is checked here but not
	// parsed.
	request, err := socks5.ReadRequest(conn)
	if err != nil {
		return err
	}

	remote, err := s.cfg.Dialer.DialContext(ctx, "tcp", s.remoteAddr)
	if err != nil {
		return fmt.Errorf("dial remote: %w", err)
	}
	defer remote.Close()

	if s.cfg.NegotiationTimeout > 0 {
		_ = remote.SetDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}

	ch := secure.New(remote, s.cfg.Cipher)
	if err := tunnelHandshake(ch, greeting, request); err != nil {
		return fmt.Errorf("tunnel %s: %w", s.remoteAddr, err)
	}

	if err := socks5.WriteSuccessReply(conn); err != nil {
		return err
	}

	_ = conn.SetDeadline(time.Time{})
	_ = remote.SetDeadline(time.Time{})

	log.Debugf("local: relaying through %s", s.remoteAddr)
	_ = Relay(ctx, log, s.cfg.HalfCloseTimeout, conn, remote, ch.CopyEncoding, ch.CopyDecoding)
	return nil
}

// tunnelHandshake replays the client's greeting and request to the server, in
// their original bytes, and waits for the server to accept each one.
func tunnelHandshake(ch *secure.Channel, greeting, request []byte) error {
	if err := ch.WriteEncoded(greeting); err != nil {
		return fmt.Errorf("write greeting: %w", err)
	}
	if err := socks5.ReadMethodSelection(ch.Reader()); err != nil {
		return err
	}

	if err := ch.WriteEncoded(request); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	// Exactly one reply is consumed; anything after it belongs to the relay.
	return socks5.ReadReply(ch.Reader())
}
