// Package interfaces defines the core types and interfaces shared by the
// signing service components. It provides the contract between the wire
// protocol, the key store and the scheme implementations without pulling in
// any of their dependencies.
package interfaces

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// SchemeTag identifies a signature scheme. The set of schemes is closed and
// fixed at compile time; adding one is a code change, never a runtime event.
type SchemeTag string

const (
	SchemeECDSASecp256k1 SchemeTag = "ecdsa-secp256k1"
	SchemeECDSAP256      SchemeTag = "ecdsa-p256"
	SchemeEd25519        SchemeTag = "ed25519"
	SchemeBLS12381       SchemeTag = "bls12-381"
)

// SupportedSchemes lists every scheme compiled into this build.
var SupportedSchemes = []SchemeTag{
	SchemeECDSASecp256k1,
	SchemeECDSAP256,
	SchemeEd25519,
	SchemeBLS12381,
}

// Valid reports whether the tag names a compiled-in scheme.
func (s SchemeTag) Valid() bool {
	switch s {
	case SchemeECDSASecp256k1, SchemeECDSAP256, SchemeEd25519, SchemeBLS12381:
		return true
	default:
		return false
	}
}

// String returns the tag as it appears on the wire.
func (s SchemeTag) String() string {
	return string(s)
}

// ParseSchemeTag validates a scheme tag received from outside the process.
func ParseSchemeTag(str string) (SchemeTag, error) {
	tag := SchemeTag(str)
	if !tag.Valid() {
		return "", Errf(CodeUnsupportedScheme, "unsupported scheme %q", str)
	}
	return tag, nil
}

// Operation is a wire protocol operation name.
type Operation string

const (
	OpGenerateKey  Operation = "generate_key"
	OpImportKey    Operation = "import_key"
	OpGetPublicKey Operation = "get_public_key"
	OpSign         Operation = "sign"
	OpDeleteKey    Operation = "delete_key"
)

// Valid reports whether the operation is part of the protocol.
func (op Operation) Valid() bool {
	switch op {
	case OpGenerateKey, OpImportKey, OpGetPublicKey, OpSign, OpDeleteKey:
		return true
	default:
		return false
	}
}

// String returns the operation name as it appears on the wire.
func (op Operation) String() string {
	return string(op)
}

// KeyID is the opaque identifier of a stored key. It is assigned when the
// key is generated or imported and never changes afterwards.
type KeyID [16]byte

// NewKeyID returns a fresh random key identifier.
func NewKeyID() KeyID {
	return KeyID(uuid.New())
}

// KeyIDFromBytes converts a raw 16-byte identifier from the wire.
func KeyIDFromBytes(b []byte) (KeyID, error) {
	if len(b) != 16 {
		return KeyID{}, Errf(CodeInvalidRequest, "key id must be 16 bytes, got %d", len(b))
	}

	var id KeyID
	copy(id[:], b)
	return id, nil
}

// ParseKeyID parses the canonical string form produced by String.
func ParseKeyID(str string) (KeyID, error) {
	u, err := uuid.Parse(str)
	if err != nil {
		return KeyID{}, fmt.Errorf("invalid key id %q: %w", str, err)
	}
	return KeyID(u), nil
}

// String returns the identifier in canonical UUID form.
func (id KeyID) String() string {
	return uuid.UUID(id).String()
}

// Bytes returns the raw 16-byte identifier for the wire.
func (id KeyID) Bytes() []byte {
	return id[:]
}

// PublicKey holds the scheme-specific encoding of a public key. Compressed
// SEC1 for the ECDSA curves, 32 raw bytes for Ed25519, a compressed G1
// element for BLS12-381.
type PublicKey []byte

// String returns the public key hex-encoded.
func (p PublicKey) String() string {
	return hex.EncodeToString(p)
}

// Signature holds the scheme-specific encoding of a signature. Fixed-width
// r||s for the ECDSA curves, 64 raw bytes for Ed25519, a compressed G2
// element for BLS12-381.
type Signature []byte

// String returns the signature hex-encoded.
func (s Signature) String() string {
	return hex.EncodeToString(s)
}
