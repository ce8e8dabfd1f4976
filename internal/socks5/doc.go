// Package socks5 holds the SOCKS5 framing shared by both tunnel endpoints.
//
// The local endpoint reads the greeting and request from the application
// with [ReadGreeting] and [ReadRequest], which return the original bytes so
// they can be forwarded unchanged. The server endpoint receives those bytes
// as whole frames, checks the greeting's version byte and parses the request
// with [ParseRequest]. Replies are encoded by github.com/txthinking/socks5, so the
// same bytes can be written to a plain connection or through the tunnel
// cipher.
//
// Only the CONNECT command with no authentication is supported.
package socks5
