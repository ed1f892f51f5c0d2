// Package protocol defines the wire messages exchanged between the server
// and its clients: a tagged union over JSON text frames, discriminated by a
// "type" field, plus the protocol-version gate enforced on welcome.
package protocol

// Version is the compiled-in protocol version. A client that receives a
// welcome with a different value must treat the connection as incompatible.
const Version = 1

// Compatible reports whether a remote protocol version can talk to this one.
func Compatible(remote int) bool {
	return remote == Version
}
