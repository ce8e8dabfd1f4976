// Package secure wraps a tunnel connection with a cipher.
//
// A [Channel] reads and writes the encrypted side of a tunnel: everything it
// writes is encoded and everything it reads is decoded. It also provides the
// two directional copy loops the relay runs between a plaintext connection
// and the tunnel.
package secure
