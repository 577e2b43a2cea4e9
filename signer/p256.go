package signer

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ruteri/enclave-signer/interfaces"
)

const p256PubKeyLenCompressed = 33

// p256Scheme signs 32-byte digests with nonces drawn from the system
// entropy source on every call. Verification follows the NIST convention:
// any s in [1, n-1] is acceptable, no low-S rule.
type p256Scheme struct{}

type p256SecretKey struct {
	priv *ecdsa.PrivateKey
	pub  []byte
}

func (p256Scheme) Tag() interfaces.SchemeTag { return interfaces.SchemeECDSAP256 }

func (p256Scheme) Generate() (SecretKey, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating p256 key: %w", err)
	}
	return newP256SecretKey(priv), nil
}

func (p256Scheme) Import(secret []byte) (SecretKey, error) {
	if len(secret) != SecretLen {
		return nil, interfaces.Errf(interfaces.CodeInvalidEncoding,
			"p256 secret must be %d bytes, got %d", SecretLen, len(secret))
	}
	if !validScalar(secret, p256Order) {
		return nil, interfaces.Errf(interfaces.CodeInvalidEncoding,
			"p256 secret is zero or not below the group order")
	}
	// The ecdh package derives the public point without exposing
	// low-level curve arithmetic; the scalar was range-checked above so
	// this cannot fail on well-formed input.
	ecdhKey, err := ecdh.P256().NewPrivateKey(secret)
	if err != nil {
		return nil, interfaces.Errf(interfaces.CodeInvalidEncoding, "p256 secret rejected: %v", err)
	}
	point := ecdhKey.PublicKey().Bytes()
	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(point[1:33]),
			Y:     new(big.Int).SetBytes(point[33:]),
		},
		D: new(big.Int).SetBytes(secret),
	}
	return newP256SecretKey(priv), nil
}

func newP256SecretKey(priv *ecdsa.PrivateKey) *p256SecretKey {
	return &p256SecretKey{
		priv: priv,
		pub:  elliptic.MarshalCompressed(elliptic.P256(), priv.X, priv.Y),
	}
}

func (k *p256SecretKey) Public() interfaces.PublicKey { return k.pub }

func (k *p256SecretKey) Sign(message []byte, preHashed bool) (interfaces.Signature, error) {
	digest, err := signingDigest(message, preHashed)
	if err != nil {
		return nil, err
	}
	r, s, err := ecdsa.Sign(rand.Reader, k.priv, digest)
	if err != nil {
		return nil, interfaces.Errf(interfaces.CodeSigningFailure, "p256 signing: %v", err)
	}
	sig := make([]byte, ecdsaSignatureLen)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	return sig, nil
}

func (k *p256SecretKey) Zeroize() { zeroizeBig(k.priv.D) }

func (p256Scheme) Verify(pub interfaces.PublicKey, message []byte, sig interfaces.Signature, preHashed bool) error {
	digest, err := signingDigest(message, preHashed)
	if err != nil {
		return err
	}
	if len(pub) != p256PubKeyLenCompressed {
		return interfaces.Errf(interfaces.CodeInvalidEncoding,
			"p256 public key must be %d bytes, got %d", p256PubKeyLenCompressed, len(pub))
	}
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), pub)
	if x == nil {
		return interfaces.Errf(interfaces.CodeInvalidEncoding, "p256 public key is not a valid compressed point")
	}

	if len(sig) != ecdsaSignatureLen {
		return interfaces.Errf(interfaces.CodeInvalidSignature,
			"p256 signature must be %d bytes, got %d", ecdsaSignatureLen, len(sig))
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	order := elliptic.P256().Params().N
	if r.Sign() == 0 || s.Sign() == 0 || r.Cmp(order) >= 0 || s.Cmp(order) >= 0 {
		return interfaces.Errf(interfaces.CodeInvalidSignature, "signature component is zero or not below the group order")
	}
	pubKey := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	if !ecdsa.Verify(pubKey, digest, r, s) {
		return interfaces.Errf(interfaces.CodeInvalidSignature, "p256 signature verification failed")
	}
	return nil
}
