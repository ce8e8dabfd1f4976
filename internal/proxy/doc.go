// Package proxy implements the two tunnel endpoints.
//
// [LocalServer] accepts SOCKS5 clients, forwards their greeting and CONNECT
// request through an encrypted connection to a [RemoteServer], and relays.
// RemoteServer decodes the forwarded request, dials the destination and
// relays. Both share the listener, accept loop and [Relay] plumbing here.
package proxy
