// Package wire implements the framed binary protocol spoken between the
// signing service and its host-side proxy.
//
// # Framing
//
// Every message travels as a frame: a 4-byte big-endian length followed by
// exactly that many payload bytes. The reader validates the declared length
// against a hard maximum before allocating anything, so an adversarial
// peer cannot force large allocations with a small header.
//
// # Payload encoding
//
// Payloads are CBOR maps with small integer keys. Field tagging (rather
// than positional encoding) lets future revisions add fields without
// breaking old peers: unknown keys are ignored on decode. Encoding is
// deterministic so identical messages produce identical bytes.
//
// # Requests and responses
//
// A Request names an operation (generate_key, import_key, get_public_key,
// sign, delete_key), and carries the fields that operation needs: a scheme
// tag, a key id, a payload (message bytes for sign, secret bytes for
// import) and an optional pre-hashed flag for ECDSA. A Response echoes the
// request id and carries either a result payload or a stable error code.
//
// Decoding is total: any input, however malformed or truncated, produces a
// typed error and never undefined behavior. Errors carry the stable codes
// from the interfaces package so the dispatcher can answer them in-band.
package wire
