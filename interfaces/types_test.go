package interfaces

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemeTagValidation(t *testing.T) {
	for _, tag := range SupportedSchemes {
		assert.True(t, tag.Valid(), "scheme %s should be valid", tag)

		parsed, err := ParseSchemeTag(string(tag))
		require.NoError(t, err, "parsing %s should succeed", tag)
		assert.Equal(t, tag, parsed)
	}

	_, err := ParseSchemeTag("rsa-2048")
	require.Error(t, err, "unknown scheme should be rejected")
	assert.Equal(t, CodeUnsupportedScheme, CodeOf(err))

	_, err = ParseSchemeTag("")
	require.Error(t, err, "empty scheme should be rejected")
}

func TestOperationValidation(t *testing.T) {
	for _, op := range []Operation{OpGenerateKey, OpImportKey, OpGetPublicKey, OpSign, OpDeleteKey} {
		assert.True(t, op.Valid(), "operation %s should be valid", op)
	}
	assert.False(t, Operation("rotate_key").Valid())
	assert.False(t, Operation("").Valid())
}

func TestKeyIDRoundtrip(t *testing.T) {
	id := NewKeyID()
	assert.NotEqual(t, KeyID{}, id, "fresh key ids should not be zero")

	fromBytes, err := KeyIDFromBytes(id.Bytes())
	require.NoError(t, err)
	assert.Equal(t, id, fromBytes)

	fromString, err := ParseKeyID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, fromString)

	_, err = KeyIDFromBytes([]byte{1, 2, 3})
	require.Error(t, err, "short key id should be rejected")
	assert.Equal(t, CodeInvalidRequest, CodeOf(err))

	_, err = ParseKeyID("not-a-uuid")
	require.Error(t, err)
}

func TestCodedErrors(t *testing.T) {
	err := Errf(CodeKeyNotFound, "key %s not found", NewKeyID())
	assert.Equal(t, CodeKeyNotFound, CodeOf(err))
	assert.True(t, errors.Is(err, ErrKeyNotFound), "same-code errors should match the sentinel")

	wrapped := fmt.Errorf("handling request: %w", err)
	assert.Equal(t, CodeKeyNotFound, CodeOf(wrapped), "code should survive wrapping")
	assert.True(t, errors.Is(wrapped, ErrKeyNotFound))

	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")), "uncoded errors map to internal")
	assert.False(t, errors.Is(err, ErrStoreClosed), "different codes should not match")
}
