package signer

import (
	"math/big"
	"runtime"
)

// Zeroize overwrites b in place. The KeepAlive barrier stops the compiler
// from treating the writes as dead stores on the last use of b.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// zeroizeBig clears the limbs backing x before resetting it, reaching the
// allocation the value actually lives in.
func zeroizeBig(x *big.Int) {
	if x == nil {
		return
	}
	limbs := x.Bits()
	for i := range limbs {
		limbs[i] = 0
	}
	runtime.KeepAlive(limbs)
	x.SetInt64(0)
}
