package signer

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/ruteri/enclave-signer/interfaces"
)

func allSchemes(t *testing.T) []Scheme {
	t.Helper()
	schemes := make([]Scheme, 0, len(interfaces.SupportedSchemes))
	for _, tag := range interfaces.SupportedSchemes {
		s, err := ForTag(tag)
		require.NoError(t, err, "every supported scheme should resolve")
		schemes = append(schemes, s)
	}
	return schemes
}

func TestForTag_Unknown(t *testing.T) {
	_, err := ForTag("rsa-4096")
	require.Error(t, err, "unknown tag should be rejected")
	assert.Equal(t, interfaces.CodeUnsupportedScheme, interfaces.CodeOf(err))
}

func TestSchemes_SignVerifyRoundtrip(t *testing.T) {
	message := []byte("roundtrip message")

	for _, s := range allSchemes(t) {
		t.Run(string(s.Tag()), func(t *testing.T) {
			key, err := s.Generate()
			require.NoError(t, err, "Generate should succeed")
			defer key.Zeroize()

			sig, err := key.Sign(message, false)
			require.NoError(t, err, "Sign should succeed")
			assert.NoError(t, s.Verify(key.Public(), message, sig, false),
				"signature should verify against the key's own public key")

			assert.Error(t, s.Verify(key.Public(), []byte("different message"), sig, false),
				"signature must not verify for another message")

			other, err := s.Generate()
			require.NoError(t, err)
			defer other.Zeroize()
			assert.Error(t, s.Verify(other.Public(), message, sig, false),
				"signature must not verify under another key")
		})
	}
}

func TestSchemes_SignVerifyPreHashed(t *testing.T) {
	digest := blake2b.Sum256([]byte("already hashed"))

	for _, tag := range []interfaces.SchemeTag{interfaces.SchemeECDSASecp256k1, interfaces.SchemeECDSAP256} {
		t.Run(string(tag), func(t *testing.T) {
			s, err := ForTag(tag)
			require.NoError(t, err)
			key, err := s.Generate()
			require.NoError(t, err)
			defer key.Zeroize()

			sig, err := key.Sign(digest[:], true)
			require.NoError(t, err, "pre-hashed sign should succeed")
			assert.NoError(t, s.Verify(key.Public(), digest[:], sig, true),
				"pre-hashed signature should verify pre-hashed")

			// Signing the raw message equals signing its digest pre-hashed.
			assert.NoError(t, s.Verify(key.Public(), []byte("already hashed"), sig, false),
				"pre-hashed signature over the digest should equal a plain signature over the message")

			_, err = key.Sign(digest[:16], true)
			require.Error(t, err, "pre-hashed payload must be exactly 32 bytes")
			assert.Equal(t, interfaces.CodeInvalidRequest, interfaces.CodeOf(err))
		})
	}

	for _, tag := range []interfaces.SchemeTag{interfaces.SchemeEd25519, interfaces.SchemeBLS12381} {
		t.Run(string(tag), func(t *testing.T) {
			s, err := ForTag(tag)
			require.NoError(t, err)
			key, err := s.Generate()
			require.NoError(t, err)
			defer key.Zeroize()

			_, err = key.Sign(digest[:], true)
			require.Error(t, err, "non-ECDSA schemes should reject pre-hashed payloads")
			assert.Equal(t, interfaces.CodeInvalidRequest, interfaces.CodeOf(err))
		})
	}
}

func TestSchemes_Determinism(t *testing.T) {
	message := []byte("determinism probe")

	deterministic := []interfaces.SchemeTag{
		interfaces.SchemeECDSASecp256k1, // RFC 6979
		interfaces.SchemeEd25519,
		interfaces.SchemeBLS12381,
	}
	for _, tag := range deterministic {
		t.Run(string(tag), func(t *testing.T) {
			s, err := ForTag(tag)
			require.NoError(t, err)
			key, err := s.Generate()
			require.NoError(t, err)
			defer key.Zeroize()

			first, err := key.Sign(message, false)
			require.NoError(t, err)
			second, err := key.Sign(message, false)
			require.NoError(t, err)
			assert.Equal(t, first, second, "repeated signatures should be byte-identical")
		})
	}

	t.Run(string(interfaces.SchemeECDSAP256), func(t *testing.T) {
		// Randomized nonces: signatures differ across calls, both verify.
		s, err := ForTag(interfaces.SchemeECDSAP256)
		require.NoError(t, err)
		key, err := s.Generate()
		require.NoError(t, err)
		defer key.Zeroize()

		first, err := key.Sign(message, false)
		require.NoError(t, err)
		second, err := key.Sign(message, false)
		require.NoError(t, err)
		assert.NotEqual(t, first, second, "p256 nonces are randomized, signatures should differ")
		assert.NoError(t, s.Verify(key.Public(), message, first, false))
		assert.NoError(t, s.Verify(key.Public(), message, second, false))
	})
}

func TestSchemes_ImportDerivesSamePublicKey(t *testing.T) {
	for _, s := range allSchemes(t) {
		t.Run(string(s.Tag()), func(t *testing.T) {
			secret := make([]byte, SecretLen)
			_, err := rand.Read(secret)
			require.NoError(t, err)
			secret[0] &= 0x0f // comfortably below every group order

			first, err := s.Import(secret)
			require.NoError(t, err, "Import of a valid secret should succeed")
			defer first.Zeroize()
			second, err := s.Import(secret)
			require.NoError(t, err)
			defer second.Zeroize()

			assert.Equal(t, first.Public(), second.Public(),
				"public key derivation should be deterministic")
		})
	}
}

func TestSchemes_ImportRejectsBoundaryScalars(t *testing.T) {
	orders := map[interfaces.SchemeTag][SecretLen]byte{
		interfaces.SchemeECDSASecp256k1: secp256k1Order,
		interfaces.SchemeECDSAP256:      p256Order,
		interfaces.SchemeBLS12381:       blsScalarOrder,
	}

	for tag, order := range orders {
		s, err := ForTag(tag)
		require.NoError(t, err)

		t.Run(string(tag), func(t *testing.T) {
			cases := map[string][]byte{
				"zero":      make([]byte, SecretLen),
				"order":     order[:],
				"all ones":  bytes.Repeat([]byte{0xff}, SecretLen),
				"too short": make([]byte, SecretLen-1),
				"too long":  make([]byte, SecretLen+1),
				"empty":     {},
			}
			for name, secret := range cases {
				t.Run(name, func(t *testing.T) {
					_, err := s.Import(secret)
					require.Error(t, err, "invalid secret should be rejected")
					assert.Equal(t, interfaces.CodeInvalidEncoding, interfaces.CodeOf(err))
				})
			}

			// order - 1 is the largest valid scalar.
			edge := order
			for i := SecretLen - 1; i >= 0; i-- {
				edge[i]--
				if edge[i] != 0xff {
					break
				}
			}
			key, err := s.Import(edge[:])
			require.NoError(t, err, "order-1 is a valid scalar")
			key.Zeroize()
		})
	}

	t.Run(string(interfaces.SchemeEd25519), func(t *testing.T) {
		s, err := ForTag(interfaces.SchemeEd25519)
		require.NoError(t, err)

		_, err = s.Import(make([]byte, SecretLen))
		require.Error(t, err, "zero seed should be rejected")
		assert.Equal(t, interfaces.CodeInvalidEncoding, interfaces.CodeOf(err))

		_, err = s.Import(make([]byte, SecretLen-1))
		require.Error(t, err, "short seed should be rejected")

		// Seeds are not scalars; all-ones is fine.
		key, err := s.Import(bytes.Repeat([]byte{0xff}, SecretLen))
		require.NoError(t, err, "all-ones is a valid seed")
		key.Zeroize()
	})
}

func TestSchemes_VerifyRejectsMalformedInputs(t *testing.T) {
	message := []byte("verify probe")

	for _, s := range allSchemes(t) {
		t.Run(string(s.Tag()), func(t *testing.T) {
			key, err := s.Generate()
			require.NoError(t, err)
			defer key.Zeroize()
			sig, err := key.Sign(message, false)
			require.NoError(t, err)

			err = s.Verify(key.Public()[:len(key.Public())-1], message, sig, false)
			require.Error(t, err, "truncated public key should be rejected")
			assert.Equal(t, interfaces.CodeInvalidEncoding, interfaces.CodeOf(err))

			err = s.Verify(key.Public(), message, sig[:len(sig)-1], false)
			require.Error(t, err, "truncated signature should be rejected")
			assert.Equal(t, interfaces.CodeInvalidSignature, interfaces.CodeOf(err))

			flipped := append(interfaces.Signature{}, sig...)
			flipped[len(flipped)/2] ^= 0x01
			assert.Error(t, s.Verify(key.Public(), message, flipped, false),
				"bit-flipped signature should be rejected")
		})
	}
}

func TestSecp256k1_LowSEnforced(t *testing.T) {
	s, err := ForTag(interfaces.SchemeECDSASecp256k1)
	require.NoError(t, err)
	key, err := s.Generate()
	require.NoError(t, err)
	defer key.Zeroize()

	message := []byte("low-s probe")
	sig, err := key.Sign(message, false)
	require.NoError(t, err)
	require.NoError(t, s.Verify(key.Public(), message, sig, false))

	// Flip s to its high half: n - s. Mathematically still a valid
	// signature, but non-canonical under the low-S rule.
	highS := ethcrypto.S256().Params().N
	sInt := newBig(sig[32:])
	sInt.Sub(highS, sInt)
	malleated := append(interfaces.Signature{}, sig[:32]...)
	malleated = append(malleated, leftPad32(sInt.Bytes())...)

	err = s.Verify(key.Public(), message, malleated, false)
	require.Error(t, err, "high-s signature should be rejected")
	assert.Equal(t, interfaces.CodeInvalidSignature, interfaces.CodeOf(err))
}

func TestSecp256k1_ExternalVerifier(t *testing.T) {
	// The encodings interoperate: go-ethereum verifies our compressed
	// public key and r||s signature over the same digest.
	s, err := ForTag(interfaces.SchemeECDSASecp256k1)
	require.NoError(t, err)
	key, err := s.Generate()
	require.NoError(t, err)
	defer key.Zeroize()

	message := []byte("external verifier probe")
	sig, err := key.Sign(message, false)
	require.NoError(t, err)

	digest := blake2b.Sum256(message)
	assert.True(t, ethcrypto.VerifySignature(key.Public(), digest[:], sig),
		"go-ethereum should accept the signature")
}

func newBig(b []byte) *big.Int { return new(big.Int).SetBytes(b) }

func leftPad32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func TestConstantTimeHelpers(t *testing.T) {
	assert.True(t, ctIsZero(make([]byte, 32)))
	assert.True(t, ctIsZero(nil))
	assert.False(t, ctIsZero([]byte{0, 0, 1, 0}))

	assert.True(t, ctLess([]byte{0x01, 0x00}, []byte{0x01, 0x01}))
	assert.False(t, ctLess([]byte{0x01, 0x01}, []byte{0x01, 0x01}))
	assert.False(t, ctLess([]byte{0x02, 0x00}, []byte{0x01, 0xff}))
	assert.False(t, ctLess([]byte{0x01}, []byte{0x01, 0x02}), "length mismatch is never less")
}

func TestZeroize(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zeroize(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)

	k, err := ForTag(interfaces.SchemeEd25519)
	require.NoError(t, err)
	key, err := k.Import(bytes.Repeat([]byte{0x42}, SecretLen))
	require.NoError(t, err)
	priv := key.(*ed25519SecretKey).priv
	key.Zeroize()
	assert.True(t, ctIsZero(priv), "zeroize should reach the private key bytes")
}
