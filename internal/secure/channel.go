package secure

import (
	"errors"
	"io"
	"net"

	"github.com/die-net/subtunnel/internal/cipher"
)

// BufferSize is the size of a single read from either side of the tunnel.
const BufferSize = 4096

var buffers = newBufferPool(BufferSize)

// Channel is the encrypted side of a tunnel connection.
type Channel struct {
	conn   net.Conn
	cipher *cipher.Cipher
}

func New(conn net.Conn, c *cipher.Cipher) *Channel {
	return &Channel{conn: conn, cipher: c}
}

// Conn returns the underlying connection.
func (ch *Channel) Conn() net.Conn {
	return ch.conn
}

// ReadDecoded performs a single read from the connection and returns the
// decoded bytes. An empty result with a nil error means end of stream.
func (ch *Channel) ReadDecoded() ([]byte, error) {
	buf := make([]byte, BufferSize)
	n, err := ch.conn.Read(buf)
	if n > 0 {
		ch.cipher.DecodeInPlace(buf[:n])
		return buf[:n], nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:0], nil
}

// WriteEncoded encodes b and writes all of it to the connection.
func (ch *Channel) WriteEncoded(b []byte) error {
	_, err := writeFull(ch.conn, ch.cipher.Encode(b))
	return err
}

// CopyEncoding copies plaintext from src to dst, encoding it on the way. It
// returns nil once src reaches end of stream.
func (ch *Channel) CopyEncoding(dst io.Writer, src io.Reader) error {
	bp := buffers.Get()
	defer buffers.Put(bp)
	buf := *bp

	for {
		n, err := src.Read(buf)
		if n > 0 {
			ch.cipher.EncodeInPlace(buf[:n])
			if _, werr := writeFull(dst, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// CopyDecoding copies encoded bytes from src to dst, decoding them on the
// way. It returns nil once src reaches end of stream.
func (ch *Channel) CopyDecoding(dst io.Writer, src io.Reader) error {
	bp := buffers.Get()
	defer buffers.Put(bp)
	buf := *bp

	for {
		n, err := src.Read(buf)
		if n > 0 {
			ch.cipher.DecodeInPlace(buf[:n])
			if _, werr := writeFull(dst, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// Reader returns a reader that decodes what it reads from the connection.
func (ch *Channel) Reader() io.Reader {
	return &decodeReader{r: ch.conn, c: ch.cipher}
}

// Writer returns a writer that encodes what it writes to the connection.
func (ch *Channel) Writer() io.Writer {
	return &encodeWriter{w: ch.conn, c: ch.cipher}
}

type decodeReader struct {
	r io.Reader
	c *cipher.Cipher
}

func (d *decodeReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	d.c.DecodeInPlace(p[:n])
	return n, err
}

type encodeWriter struct {
	w io.Writer
	c *cipher.Cipher
}

func (e *encodeWriter) Write(p []byte) (int, error) {
	return writeFull(e.w, e.c.Encode(p))
}

// writeFull keeps writing until all of b is written, re-driving short writes.
func writeFull(w io.Writer, b []byte) (int, error) {
	written := 0
	for written < len(b) {
		n, err := w.Write(b[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}
