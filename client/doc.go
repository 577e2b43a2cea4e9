// Package client implements the host-proxy side of the framed signing
// protocol: a typed method per wire operation over a single vsock or TCP
// connection. Error responses surface as coded errors, so callers can
// match on the protocol's stable codes with errors.Is.
package client
