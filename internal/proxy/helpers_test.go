package proxy

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/die-net/subtunnel/internal/cipher"
	"github.com/die-net/subtunnel/internal/dialer"
	"github.com/die-net/subtunnel/internal/logging"
	"github.com/die-net/subtunnel/internal/password"
)

func newCipher(t *testing.T) *cipher.Cipher {
	t.Helper()

	p, err := password.Random()
	if err != nil {
		t.Fatal(err)
	}
	c, err := cipher.New(p)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func testConfig(c *cipher.Cipher) Config {
	return Config{
		NegotiationTimeout: 2 * time.Second,
		HalfCloseTimeout:   200 * time.Millisecond,
		Cipher:             c,
		Dialer:             dialer.NewDirectDialer(dialer.Config{DialTimeout: 2 * time.Second}),
		Logger:             logging.Discard(),
	}
}

// startServing listens on loopback and runs serve until the test ends.
func startServing(t *testing.T, serve func(net.Listener) error) string {
	t.Helper()

	ln, err := ListenTCP("tcp", "127.0.0.1:0", net.KeepAliveConfig{}, false)
	if err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() { errc <- serve(ln) }()
	t.Cleanup(func() {
		_ = ln.Close()
		<-errc
	})

	return ln.Addr().String()
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()

	c, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// assertClosedNoReply requires the peer to close c without sending anything.
func assertClosedNoReply(t *testing.T, c net.Conn) {
	t.Helper()

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := c.Read(buf)
	if n > 0 {
		t.Fatalf("expected no reply, got %x", buf[:n])
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		t.Fatal("connection was not closed")
	}
}

func plainCopy(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

func loopbackRequest(t *testing.T, addr string) []byte {
	t.Helper()

	ta, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	ip := ta.IP.To4()
	if ip == nil {
		t.Fatalf("%s is not an IPv4 address", addr)
	}
	req := []byte{0x05, 0x01, 0x00, 0x01}
	req = append(req, ip...)
	return append(req, byte(ta.Port>>8), byte(ta.Port))
}

var (
	greetingNoAuth = []byte{0x05, 0x01, 0x00}
	methodNoAuth   = []byte{0x05, 0x00}
	successReply   = []byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}
)
