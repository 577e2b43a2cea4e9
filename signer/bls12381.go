package signer

import (
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/ruteri/enclave-signer/interfaces"
)

// blsDST is the ciphersuite tag for the augmented scheme: the signer's
// public key is prepended to the message before hashing to G2, so a
// signature can never validate under another key's augmentation. This
// removes the need for proof-of-possession checks on public keys.
var blsDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_AUG_")

// blsScheme implements minimal-pubkey BLS: public keys are 48-byte
// compressed G1 points, signatures 96-byte compressed G2 points. Signing
// is deterministic.
type blsScheme struct{}

type blsSecretKey struct {
	scalar big.Int
	pub    [bls12381.SizeOfG1AffineCompressed]byte
}

func (blsScheme) Tag() interfaces.SchemeTag { return interfaces.SchemeBLS12381 }

func (blsScheme) Generate() (SecretKey, error) {
	var el fr.Element
	for {
		if _, err := el.SetRandom(); err != nil {
			return nil, fmt.Errorf("generating bls12-381 scalar: %w", err)
		}
		if !el.IsZero() {
			break
		}
	}
	k := &blsSecretKey{}
	el.BigInt(&k.scalar)
	el.SetZero()
	k.computePublic()
	return k, nil
}

func (blsScheme) Import(secret []byte) (SecretKey, error) {
	if len(secret) != SecretLen {
		return nil, interfaces.Errf(interfaces.CodeInvalidEncoding,
			"bls12-381 secret must be %d bytes, got %d", SecretLen, len(secret))
	}
	if !validScalar(secret, blsScalarOrder) {
		return nil, interfaces.Errf(interfaces.CodeInvalidEncoding,
			"bls12-381 secret is zero or not below the group order")
	}
	k := &blsSecretKey{}
	k.scalar.SetBytes(secret)
	k.computePublic()
	return k, nil
}

func (k *blsSecretKey) computePublic() {
	_, _, g1, _ := bls12381.Generators()
	var point bls12381.G1Affine
	point.ScalarMultiplication(&g1, &k.scalar)
	k.pub = point.Bytes()
}

func (k *blsSecretKey) Public() interfaces.PublicKey { return k.pub[:] }

func (k *blsSecretKey) Sign(message []byte, preHashed bool) (interfaces.Signature, error) {
	if err := rejectPreHashed(interfaces.SchemeBLS12381, preHashed); err != nil {
		return nil, err
	}
	point, err := bls12381.HashToG2(augmented(k.pub[:], message), blsDST)
	if err != nil {
		return nil, interfaces.Errf(interfaces.CodeSigningFailure, "hashing to G2: %v", err)
	}
	var sig bls12381.G2Affine
	sig.ScalarMultiplication(&point, &k.scalar)
	out := sig.Bytes()
	return out[:], nil
}

func (k *blsSecretKey) Zeroize() { zeroizeBig(&k.scalar) }

func (blsScheme) Verify(pub interfaces.PublicKey, message []byte, sig interfaces.Signature, preHashed bool) error {
	if err := rejectPreHashed(interfaces.SchemeBLS12381, preHashed); err != nil {
		return err
	}
	if len(pub) != bls12381.SizeOfG1AffineCompressed {
		return interfaces.Errf(interfaces.CodeInvalidEncoding,
			"bls12-381 public key must be %d bytes, got %d", bls12381.SizeOfG1AffineCompressed, len(pub))
	}
	var pubPoint bls12381.G1Affine
	if _, err := pubPoint.SetBytes(pub); err != nil {
		return interfaces.Errf(interfaces.CodeInvalidEncoding, "bls12-381 public key rejected: %v", err)
	}
	if pubPoint.IsInfinity() {
		return interfaces.Errf(interfaces.CodeInvalidEncoding, "bls12-381 public key is the identity")
	}

	if len(sig) != bls12381.SizeOfG2AffineCompressed {
		return interfaces.Errf(interfaces.CodeInvalidSignature,
			"bls12-381 signature must be %d bytes, got %d", bls12381.SizeOfG2AffineCompressed, len(sig))
	}
	var sigPoint bls12381.G2Affine
	if _, err := sigPoint.SetBytes(sig); err != nil {
		return interfaces.Errf(interfaces.CodeInvalidSignature, "bls12-381 signature rejected: %v", err)
	}
	if sigPoint.IsInfinity() {
		return interfaces.Errf(interfaces.CodeInvalidSignature, "bls12-381 signature is the identity")
	}

	point, err := bls12381.HashToG2(augmented(pub, message), blsDST)
	if err != nil {
		return interfaces.Errf(interfaces.CodeInvalidSignature, "hashing to G2: %v", err)
	}

	// e(pub, H(m)) == e(g1, sig), checked as e(pub, H(m)) * e(-g1, sig) == 1.
	_, _, g1, _ := bls12381.Generators()
	var negG1 bls12381.G1Affine
	negG1.Neg(&g1)
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{pubPoint, negG1},
		[]bls12381.G2Affine{point, sigPoint},
	)
	if err != nil {
		return interfaces.Errf(interfaces.CodeInvalidSignature, "pairing check: %v", err)
	}
	if !ok {
		return interfaces.Errf(interfaces.CodeInvalidSignature, "bls12-381 signature verification failed")
	}
	return nil
}

func augmented(pub, message []byte) []byte {
	buf := make([]byte, 0, len(pub)+len(message))
	buf = append(buf, pub...)
	return append(buf, message...)
}
