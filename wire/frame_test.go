package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_Roundtrip(t *testing.T) {
	var buf bytes.Buffer

	payloads := [][]byte{
		[]byte("first"),
		{},
		bytes.Repeat([]byte{0xab}, 4096),
	}
	for _, p := range payloads {
		err := WriteFrame(&buf, p)
		require.NoError(t, err, "WriteFrame should succeed")
	}

	for i, want := range payloads {
		got, err := ReadFrame(&buf, DefaultMaxFrameBytes)
		require.NoError(t, err, "ReadFrame should succeed for frame %d", i)
		assert.Equal(t, want, got, "payload %d should roundtrip", i)
	}

	// Stream is now at a frame boundary
	_, err := ReadFrame(&buf, DefaultMaxFrameBytes)
	assert.Equal(t, io.EOF, err, "exhausted stream should report clean EOF")
}

func TestReadFrame_CleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), DefaultMaxFrameBytes)
	assert.Equal(t, io.EOF, err, "empty stream should be a clean EOF, not an error wrap")
}

func TestReadFrame_TruncatedHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x00, 0x00}), DefaultMaxFrameBytes)
	require.Error(t, err, "partial header should fail")
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "partial header should surface unexpected EOF")
	assert.NotEqual(t, io.EOF, err, "partial header must not look like a clean close")
}

func TestReadFrame_TruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("complete payload")))
	truncated := buf.Bytes()[:buf.Len()-5]

	_, err := ReadFrame(bytes.NewReader(truncated), DefaultMaxFrameBytes)
	require.Error(t, err, "truncated payload should fail")
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "truncated payload should surface unexpected EOF")
}

func TestReadFrame_TooLarge(t *testing.T) {
	const max = 64

	var buf bytes.Buffer
	payload := bytes.Repeat([]byte{0x42}, max+1)
	require.NoError(t, WriteFrame(&buf, payload))
	require.NoError(t, WriteFrame(&buf, []byte("next")))

	r := bytes.NewReader(buf.Bytes())
	_, err := ReadFrame(r, max)
	require.Error(t, err, "oversized frame should be rejected")

	var tooLarge *FrameTooLargeError
	require.True(t, errors.As(err, &tooLarge), "error should be a FrameTooLargeError")
	assert.Equal(t, uint32(max+1), tooLarge.Declared, "declared length should be reported")
	assert.Equal(t, uint32(max), tooLarge.Max, "limit should be reported")

	// The payload was not consumed; discarding it re-aligns the stream.
	assert.Equal(t, len(payload)+headerLen+4, r.Len(), "oversized payload should be left unread")
	require.NoError(t, DiscardPayload(r, tooLarge.Declared), "discard should succeed")

	next, err := ReadFrame(r, max)
	require.NoError(t, err, "stream should recover after discard")
	assert.Equal(t, []byte("next"), next, "subsequent frame should decode")
}

func TestReadFrame_NoAllocationBeforeCheck(t *testing.T) {
	// Header declares 4 GiB-ish but carries no payload; the reader must
	// reject on the declared length alone instead of attempting the
	// allocation and failing on EOF.
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 0xfffffff0)

	_, err := ReadFrame(bytes.NewReader(header[:]), DefaultMaxFrameBytes)
	var tooLarge *FrameTooLargeError
	require.True(t, errors.As(err, &tooLarge), "declared length should be rejected before any read")
	assert.Equal(t, uint32(0xfffffff0), tooLarge.Declared)
}

func TestDiscardPayload_Truncated(t *testing.T) {
	err := DiscardPayload(bytes.NewReader([]byte{1, 2, 3}), 10)
	require.Error(t, err, "short discard should fail")
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "short discard should surface unexpected EOF")
}
