// Package signer implements the signature schemes the service offers:
// ECDSA over secp256k1 and P-256, Ed25519, and BLS over BLS12-381.
//
// Every scheme works with 32-byte secrets (a scalar for the ECDSA curves
// and BLS, a seed for Ed25519) and produces fixed-width encodings:
//
//	scheme           public key            signature
//	ecdsa-secp256k1  33B SEC1 compressed   64B r||s
//	ecdsa-p256       33B SEC1 compressed   64B r||s
//	ed25519          32B                   64B
//	bls12-381        48B compressed G1     96B compressed G2
//
// The ECDSA schemes sign a 32-byte digest: BLAKE2b-256 of the message, or
// the message itself when the caller marks it pre-hashed. secp256k1
// signatures are deterministic (RFC 6979) and low-S; P-256 uses randomized
// nonces and the NIST convention of accepting either S half. Ed25519
// follows RFC 8032. BLS uses the minimal-pubkey convention with messages
// hashed to G2 under an augmented domain separation tag, binding each
// signature to the signing public key.
//
// Secret key material stays inside SecretKey values, which overwrite their
// state on Zeroize. Import validation never branches on secret bytes until
// both the zero check and the group order comparison have run.
package signer
