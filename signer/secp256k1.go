package signer

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/ruteri/enclave-signer/interfaces"
)

// secp256k1Scheme signs 32-byte digests with deterministic RFC 6979
// nonces. Signatures are low-S, the canonical form Bitcoin-derived chains
// require, and verification rejects the high-S alternative outright.
type secp256k1Scheme struct{}

type secp256k1SecretKey struct {
	priv *secp256k1.PrivateKey
	pub  []byte
}

func (secp256k1Scheme) Tag() interfaces.SchemeTag { return interfaces.SchemeECDSASecp256k1 }

func (secp256k1Scheme) Generate() (SecretKey, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating secp256k1 key: %w", err)
	}
	return newSecp256k1SecretKey(priv), nil
}

func (secp256k1Scheme) Import(secret []byte) (SecretKey, error) {
	if len(secret) != SecretLen {
		return nil, interfaces.Errf(interfaces.CodeInvalidEncoding,
			"secp256k1 secret must be %d bytes, got %d", SecretLen, len(secret))
	}
	if !validScalar(secret, secp256k1Order) {
		return nil, interfaces.Errf(interfaces.CodeInvalidEncoding,
			"secp256k1 secret is zero or not below the group order")
	}
	return newSecp256k1SecretKey(secp256k1.PrivKeyFromBytes(secret)), nil
}

func newSecp256k1SecretKey(priv *secp256k1.PrivateKey) *secp256k1SecretKey {
	return &secp256k1SecretKey{priv: priv, pub: priv.PubKey().SerializeCompressed()}
}

func (k *secp256k1SecretKey) Public() interfaces.PublicKey { return k.pub }

func (k *secp256k1SecretKey) Sign(message []byte, preHashed bool) (interfaces.Signature, error) {
	digest, err := signingDigest(message, preHashed)
	if err != nil {
		return nil, err
	}
	// Compact form is [recovery header][32-byte r][32-byte s]; the
	// header is dropped since key ids, not recovery, identify signers.
	compact := secpecdsa.SignCompact(k.priv, digest, true)
	return interfaces.Signature(compact[1:]), nil
}

func (k *secp256k1SecretKey) Zeroize() { k.priv.Zero() }

func (secp256k1Scheme) Verify(pub interfaces.PublicKey, message []byte, sig interfaces.Signature, preHashed bool) error {
	digest, err := signingDigest(message, preHashed)
	if err != nil {
		return err
	}
	if len(pub) != secp256k1.PubKeyBytesLenCompressed {
		return interfaces.Errf(interfaces.CodeInvalidEncoding,
			"secp256k1 public key must be %d bytes, got %d", secp256k1.PubKeyBytesLenCompressed, len(pub))
	}
	pubKey, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return interfaces.Errf(interfaces.CodeInvalidEncoding, "secp256k1 public key rejected: %v", err)
	}

	if len(sig) != ecdsaSignatureLen {
		return interfaces.Errf(interfaces.CodeInvalidSignature,
			"secp256k1 signature must be %d bytes, got %d", ecdsaSignatureLen, len(sig))
	}
	var r, s secp256k1.ModNScalar
	if r.SetByteSlice(sig[:32]) || r.IsZero() {
		return interfaces.Errf(interfaces.CodeInvalidSignature, "signature r is zero or not below the group order")
	}
	if s.SetByteSlice(sig[32:]) || s.IsZero() {
		return interfaces.Errf(interfaces.CodeInvalidSignature, "signature s is zero or not below the group order")
	}
	if s.IsOverHalfOrder() {
		return interfaces.Errf(interfaces.CodeInvalidSignature, "signature s is not in canonical low form")
	}
	if !secpecdsa.NewSignature(&r, &s).Verify(digest, pubKey) {
		return interfaces.Errf(interfaces.CodeInvalidSignature, "secp256k1 signature verification failed")
	}
	return nil
}
