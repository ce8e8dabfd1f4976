package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/die-net/subtunnel/internal/logging"
)

const maxAcceptDelay = time.Second

// connHandler runs one session. It owns conn and must close it.
type connHandler func(ctx context.Context, conn net.Conn, log logging.Logger) error

// acceptLoop is the listener side shared by both endpoints: it accepts
// sequentially and runs every session on its own goroutine.
type acceptLoop struct {
	ctx    context.Context
	name   string
	log    logging.Logger
	handle connHandler

	readyOnce sync.Once
	ready     chan struct{}
}

func newAcceptLoop(ctx context.Context, name string, log logging.Logger, handle connHandler) *acceptLoop {
	if ctx == nil {
		ctx = context.Background()
	}
	return &acceptLoop{ctx: ctx, name: name, log: log, handle: handle, ready: make(chan struct{})}
}

// Ready is closed once the server has started accepting.
func (l *acceptLoop) Ready() <-chan struct{} {
	return l.ready
}

// Serve accepts connections on ln until ln is closed. It returns nil if the
// server context was canceled.
//
// Accept errors other than a closed listener are logged and retried with
// backoff.
func (l *acceptLoop) Serve(ln net.Listener) error {
	l.readyOnce.Do(func() { close(l.ready) })

	var delay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if l.ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("%s accept: %w", l.name, err)
			}

			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			l.log.Errorf("%s: accept: %v; retrying in %v", l.name, err, delay)

			select {
			case <-time.After(delay):
			case <-l.ctx.Done():
				return nil
			}
			continue
		}
		delay = 0

		go l.serveConn(c)
	}
}

func (l *acceptLoop) serveConn(c net.Conn) {
	log := l.log.WithField("client", c.RemoteAddr().String())
	log.Tracef("%s: accepted connection", l.name)

	if err := l.handle(l.ctx, c, log); err != nil {
		log.Warnf("%s: %v", l.name, err)
		return
	}
	log.Tracef("%s: connection closed", l.name)
}
