package socks5

import (
	"bytes"
	"fmt"
	"io"

	txsocks5 "github.com/txthinking/socks5"
)

// WriteMethodSelection writes the "no authentication required" selection.
func WriteMethodSelection(w io.Writer) error {
	if _, err := txsocks5.NewNegotiationReply(MethodNone).WriteTo(w); err != nil {
		return fmt.Errorf("method selection: %w", err)
	}
	return nil
}

// WriteSuccessReply writes a success reply with a 0.0.0.0:0 bound address in a
// single write.
func WriteSuccessReply(w io.Writer) error {
	var buf bytes.Buffer
	if _, err := newZeroAddrReply(txsocks5.RepSuccess).WriteTo(&buf); err != nil {
		return fmt.Errorf("success reply: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("success reply: %w", err)
	}
	return nil
}

// ReadMethodSelection reads a method selection and requires "no
// authentication required".
func ReadMethodSelection(r io.Reader) error {
	neg, err := txsocks5.NewNegotiationReplyFrom(r)
	if err != nil {
		return fmt.Errorf("read method selection: %w", err)
	}
	if neg.Method != MethodNone {
		return fmt.Errorf("%w: unexpected method %d", ErrHandshake, neg.Method)
	}
	return nil
}

// ReadReply reads a reply and requires it to report success.
func ReadReply(r io.Reader) error {
	rep, err := txsocks5.NewReplyFrom(r)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if rep.Rep != txsocks5.RepSuccess {
		return fmt.Errorf("%w: connect failed with reply %d", ErrHandshake, rep.Rep)
	}
	return nil
}

func newZeroAddrReply(rep byte) *txsocks5.Reply {
	return txsocks5.NewReply(rep, ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
}
