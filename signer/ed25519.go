package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/ruteri/enclave-signer/interfaces"
)

// ed25519Scheme wraps the stdlib RFC 8032 implementation. Secrets on the
// wire are 32-byte seeds; signing is deterministic and always over the
// raw message, so pre-hashed payloads are rejected.
type ed25519Scheme struct{}

type ed25519SecretKey struct {
	priv ed25519.PrivateKey
	pub  []byte
}

func (ed25519Scheme) Tag() interfaces.SchemeTag { return interfaces.SchemeEd25519 }

func (ed25519Scheme) Generate() (SecretKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating ed25519 key: %w", err)
	}
	return &ed25519SecretKey{priv: priv, pub: pub}, nil
}

func (ed25519Scheme) Import(secret []byte) (SecretKey, error) {
	if len(secret) != ed25519.SeedSize {
		return nil, interfaces.Errf(interfaces.CodeInvalidEncoding,
			"ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(secret))
	}
	if ctIsZero(secret) {
		return nil, interfaces.Errf(interfaces.CodeInvalidEncoding, "ed25519 seed is zero")
	}
	priv := ed25519.NewKeyFromSeed(secret)
	// Public() copies, so zeroizing priv later cannot reach the cached
	// public key.
	pub := priv.Public().(ed25519.PublicKey)
	return &ed25519SecretKey{priv: priv, pub: pub}, nil
}

func (k *ed25519SecretKey) Public() interfaces.PublicKey { return k.pub }

func (k *ed25519SecretKey) Sign(message []byte, preHashed bool) (interfaces.Signature, error) {
	if err := rejectPreHashed(interfaces.SchemeEd25519, preHashed); err != nil {
		return nil, err
	}
	return ed25519.Sign(k.priv, message), nil
}

func (k *ed25519SecretKey) Zeroize() { Zeroize(k.priv) }

func (ed25519Scheme) Verify(pub interfaces.PublicKey, message []byte, sig interfaces.Signature, preHashed bool) error {
	if err := rejectPreHashed(interfaces.SchemeEd25519, preHashed); err != nil {
		return err
	}
	if len(pub) != ed25519.PublicKeySize {
		return interfaces.Errf(interfaces.CodeInvalidEncoding,
			"ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	if len(sig) != ed25519.SignatureSize {
		return interfaces.Errf(interfaces.CodeInvalidSignature,
			"ed25519 signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig))
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), message, sig) {
		return interfaces.Errf(interfaces.CodeInvalidSignature, "ed25519 signature verification failed")
	}
	return nil
}
