package signer

import (
	"golang.org/x/crypto/blake2b"

	"github.com/ruteri/enclave-signer/interfaces"
)

// SecretLen is the byte length of every scheme's secret: a big-endian
// scalar for the ECDSA curves and BLS12-381, a seed for Ed25519.
const SecretLen = 32

// ecdsaSignatureLen is the fixed width of r||s signatures on both ECDSA
// curves, each component big-endian and zero-padded to 32 bytes.
const ecdsaSignatureLen = 64

// SecretKey is a live signing key. Implementations own their key material
// and destroy it when Zeroize is called; using a key after Zeroize is a
// caller bug and produces garbage, not secrets.
type SecretKey interface {
	// Public returns the key's encoded public key.
	Public() interfaces.PublicKey

	// Sign signs message. For the ECDSA schemes preHashed marks the
	// payload as an externally computed 32-byte digest; the other
	// schemes reject it.
	Sign(message []byte, preHashed bool) (interfaces.Signature, error)

	// Zeroize overwrites the key material this value owns.
	Zeroize()
}

// Scheme is one of the supported signature schemes.
type Scheme interface {
	// Tag identifies the scheme on the wire.
	Tag() interfaces.SchemeTag

	// Generate creates a fresh key from the system entropy source.
	Generate() (SecretKey, error)

	// Import builds a key from caller-supplied secret bytes, copying
	// them; the caller keeps ownership of (and should zeroize) the
	// input. Invalid material is rejected with invalid_encoding.
	Import(secret []byte) (SecretKey, error)

	// Verify checks sig over message by pub, applying the same digest
	// rules as Sign. A nil return means the signature is valid.
	Verify(pub interfaces.PublicKey, message []byte, sig interfaces.Signature, preHashed bool) error
}

// ForTag returns the Scheme implementation for tag. The scheme set is
// closed; unknown tags are rejected with unsupported_scheme.
func ForTag(tag interfaces.SchemeTag) (Scheme, error) {
	switch tag {
	case interfaces.SchemeECDSASecp256k1:
		return secp256k1Scheme{}, nil
	case interfaces.SchemeECDSAP256:
		return p256Scheme{}, nil
	case interfaces.SchemeEd25519:
		return ed25519Scheme{}, nil
	case interfaces.SchemeBLS12381:
		return blsScheme{}, nil
	default:
		return nil, interfaces.Errf(interfaces.CodeUnsupportedScheme, "unknown scheme %q", tag)
	}
}

// signingDigest resolves the 32-byte digest an ECDSA scheme signs: the
// payload itself when the caller pre-hashed it, else BLAKE2b-256 of the
// payload.
func signingDigest(message []byte, preHashed bool) ([]byte, error) {
	if preHashed {
		if len(message) != blake2b.Size256 {
			return nil, interfaces.Errf(interfaces.CodeInvalidRequest,
				"pre-hashed payload must be %d bytes, got %d", blake2b.Size256, len(message))
		}
		return message, nil
	}
	digest := blake2b.Sum256(message)
	return digest[:], nil
}

func rejectPreHashed(tag interfaces.SchemeTag, preHashed bool) error {
	if preHashed {
		return interfaces.Errf(interfaces.CodeInvalidRequest, "%s does not support pre-hashed payloads", tag)
	}
	return nil
}
