// Package dialer provides the outbound dialers used by both tunnel endpoints.
//
// The server endpoint dials destinations directly. The local endpoint dials
// the server either directly or through an upstream SOCKS5 or HTTP CONNECT
// proxy, for networks where the server is only reachable that way.
package dialer
