package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/ruteri/enclave-signer/interfaces"
)

// DefaultMaxFrameBytes bounds the payload length a reader accepts. One
// mebibyte leaves generous room for sign requests while keeping a hostile
// peer from requesting an arbitrarily large allocation.
const DefaultMaxFrameBytes = 1 << 20

// headerLen is the size of the big-endian length prefix.
const headerLen = 4

// FrameTooLargeError reports a frame whose declared length exceeds the
// reader's limit. The reader raises it before touching the payload, so the
// caller may discard the declared number of bytes and keep the connection.
type FrameTooLargeError struct {
	Declared uint32
	Max      uint32
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("frame of %d bytes exceeds limit of %d", e.Declared, e.Max)
}

// ReadFrame reads one length-prefixed frame from r.
//
// A clean io.EOF before any header byte means the peer closed at a frame
// boundary and is returned unwrapped so callers can treat it as a normal
// shutdown. EOF inside the header or payload is a truncated frame and
// surfaces as io.ErrUnexpectedEOF wrapped in a transport error.
//
// If the declared length exceeds max the payload is left unread and a
// *FrameTooLargeError is returned; no allocation proportional to the
// declared length happens.
func ReadFrame(r io.Reader, max uint32) ([]byte, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > max {
		return nil, &FrameTooLargeError{Declared: length, Max: max}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}
	return payload, nil
}

// DiscardPayload consumes the payload of an oversized frame so the stream
// stays aligned on frame boundaries. Call it after ReadFrame returns a
// *FrameTooLargeError and before reading the next frame.
func DiscardPayload(r io.Reader, declared uint32) error {
	if _, err := io.CopyN(io.Discard, r, int64(declared)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("discarding oversized payload: %w", err)
	}
	return nil
}

// WriteFrame writes payload to w as a single length-prefixed frame. The
// header and payload go out in one Write call so a frame is never split
// across writes at this layer.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return interfaces.Errf(interfaces.CodeFrameTooLarge, "payload of %d bytes does not fit a frame", len(payload))
	}
	buf := make([]byte, headerLen+len(payload))
	binary.BigEndian.PutUint32(buf[:headerLen], uint32(len(payload)))
	copy(buf[headerLen:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
