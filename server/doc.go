// Package server accepts framed protocol connections and dispatches the
// requests they carry.
//
// The listener binds a fixed vsock port (or a TCP address in development)
// and accepts a bounded number of connections from the configured peer
// context id. Each connection gets its own goroutine running a strict
// read-decode-dispatch-encode-write loop, so responses on a connection
// come back in the order its requests were received; connections share
// nothing but the key store.
//
// Error containment follows the protocol's taxonomy: malformed or
// oversized frames and all validation and crypto failures are answered
// in-band with their stable code and the connection keeps serving. Only
// transport failures (mid-frame EOF, socket errors, missed deadlines)
// terminate a connection, and only that one. The process never exits on a
// request path error.
package server
