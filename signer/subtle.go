package signer

import (
	"crypto/elliptic"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Big-endian group orders, fixed to the secret width so the comparison
// below runs over equal-length inputs.
var (
	secp256k1Order [SecretLen]byte
	p256Order      [SecretLen]byte
	blsScalarOrder [SecretLen]byte
)

func init() {
	secp256k1.S256().N.FillBytes(secp256k1Order[:])
	elliptic.P256().Params().N.FillBytes(p256Order[:])
	fr.Modulus().FillBytes(blsScalarOrder[:])
}

// ctIsZero reports whether b is all zero without branching on its
// contents.
func ctIsZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}

// ctLess reports whether a < b as big-endian unsigned integers of equal
// length, using borrow propagation instead of data-dependent branches.
func ctLess(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var borrow uint16
	for i := len(a) - 1; i >= 0; i-- {
		diff := uint16(a[i]) - uint16(b[i]) - borrow
		borrow = (diff >> 8) & 1
	}
	return borrow == 1
}

// validScalar reports whether secret is usable as a private scalar for a
// group of the given order: non-zero and strictly below the order. Both
// checks run to completion before the result is combined.
func validScalar(secret []byte, order [SecretLen]byte) bool {
	zero := ctIsZero(secret)
	below := ctLess(secret, order[:])
	return !zero && below
}
