package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/die-net/subtunnel/internal/logging"
)

// CopyFunc copies src to dst until src reaches end of stream.
type CopyFunc func(dst io.Writer, src io.Reader) error

// Relay runs aToB and bToA concurrently and closes both connections once both
// have returned.
//
// A direction that ends, normally or with an error, half-closes its
// destination and starts an idle timeout of halfCloseTimeout on both
// connections. From then on the other direction ends once it has read nothing
// for that long, however long it keeps streaming. With no halfCloseTimeout a
// failed direction closes both connections instead. Canceling ctx closes both
// at once. Errors caused by this teardown are not reported; the first real
// copy error is returned.
func Relay(ctx context.Context, log logging.Logger, halfCloseTimeout time.Duration, a, b net.Conn, aToB, bToA CopyFunc) error {
	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = a.Close()
			_ = b.Close()
		})
	}
	defer closeBoth()

	stop := context.AfterFunc(ctx, closeBoth)
	defer stop()

	var draining atomic.Bool
	var drainOnce sync.Once
	drain := func() {
		drainOnce.Do(func() {
			draining.Store(true)
			dl := time.Now().Add(halfCloseTimeout)
			_ = a.SetReadDeadline(dl)
			_ = b.SetReadDeadline(dl)
		})
	}

	direction := func(name string, dst, src net.Conn, copyFn CopyFunc) func() error {
		return func() error {
			err := copyFn(dst, &idleReader{conn: src, timeout: halfCloseTimeout, draining: &draining})
			if errors.Is(err, os.ErrDeadlineExceeded) {
				log.Debugf("relay %s: idle for %v after half-close", name, halfCloseTimeout)
			}
			if err != nil && isTeardown(err) {
				err = nil
			}
			if err != nil {
				log.Debugf("relay %s: %v", name, err)
			}

			closeWrite(dst)
			switch {
			case halfCloseTimeout > 0:
				drain()
			case err != nil:
				closeBoth()
			}

			if err != nil {
				return fmt.Errorf("relay %s: %w", name, err)
			}
			return nil
		}
	}

	var g errgroup.Group
	g.Go(direction(a.RemoteAddr().String()+" -> "+b.RemoteAddr().String(), b, a, aToB))
	g.Go(direction(b.RemoteAddr().String()+" -> "+a.RemoteAddr().String(), a, b, bToA))

	return g.Wait()
}

// idleReader pushes the read deadline of conn forward after every read that
// returns data once the relay is draining, so the deadline only fires on a
// direction that has gone idle.
type idleReader struct {
	conn     net.Conn
	timeout  time.Duration
	draining *atomic.Bool
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.conn.Read(p)
	if n > 0 && r.draining.Load() {
		_ = r.conn.SetReadDeadline(time.Now().Add(r.timeout))
	}
	return n, err
}

func isTeardown(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrDeadlineExceeded)
}

// closeWrite shuts down the write side of c if it supports that, so the peer
// sees end of stream while c keeps reading.
func closeWrite(c net.Conn) {
	if cw, ok := c.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
}
