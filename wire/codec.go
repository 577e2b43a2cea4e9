package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/ruteri/enclave-signer/interfaces"
)

// Response status values.
const (
	StatusOK    uint8 = 0
	StatusError uint8 = 1
)

// Request is one operation submitted by the host proxy. Integer keys keep
// frames compact and let either side add fields without breaking the other.
//
// Payload deliberately has no omitempty: an absent payload encodes as null
// and an empty one as a zero-length byte string, so signing an empty
// message stays distinguishable from forgetting the field.
type Request struct {
	ID        uint64 `cbor:"1,keyasint"`
	Op        string `cbor:"2,keyasint"`
	Scheme    string `cbor:"3,keyasint,omitempty"`
	KeyID     []byte `cbor:"4,keyasint,omitempty"`
	Payload   []byte `cbor:"5,keyasint"`
	PreHashed bool   `cbor:"6,keyasint,omitempty"`
}

// Response answers exactly one Request, echoing its id. Status selects
// between the result fields and the error fields.
type Response struct {
	ID     uint64 `cbor:"1,keyasint"`
	Status uint8  `cbor:"2,keyasint"`
	Code   string `cbor:"3,keyasint,omitempty"`
	Error  string `cbor:"4,keyasint,omitempty"`
	Result []byte `cbor:"5,keyasint,omitempty"`
	Scheme string `cbor:"6,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: building encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
		UTF8:        cbor.UTF8RejectInvalid,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: building decoder: %v", err))
	}
}

// EncodeRequest serializes req deterministically.
func EncodeRequest(req *Request) ([]byte, error) {
	b, err := encMode.Marshal(req)
	if err != nil {
		return nil, &interfaces.CodedError{Code: interfaces.CodeInternal, Err: fmt.Errorf("encoding request: %w", err)}
	}
	return b, nil
}

// DecodeRequest parses a frame payload into a Request. On failure it still
// returns the partially decoded request so the caller can echo whatever
// request id survived the parse; trailing bytes after the CBOR item map to
// a length mismatch, everything else to a malformed frame.
func DecodeRequest(payload []byte) (*Request, error) {
	var req Request
	if err := decMode.Unmarshal(payload, &req); err != nil {
		return &req, &interfaces.CodedError{Code: decodeCode(err), Err: fmt.Errorf("decoding request: %w", err)}
	}
	return &req, nil
}

// EncodeResponse serializes resp deterministically.
func EncodeResponse(resp *Response) ([]byte, error) {
	b, err := encMode.Marshal(resp)
	if err != nil {
		return nil, &interfaces.CodedError{Code: interfaces.CodeInternal, Err: fmt.Errorf("encoding response: %w", err)}
	}
	return b, nil
}

// DecodeResponse parses a frame payload into a Response.
func DecodeResponse(payload []byte) (*Response, error) {
	var resp Response
	if err := decMode.Unmarshal(payload, &resp); err != nil {
		return nil, &interfaces.CodedError{Code: decodeCode(err), Err: fmt.Errorf("decoding response: %w", err)}
	}
	return &resp, nil
}

func decodeCode(err error) interfaces.ErrorCode {
	var extra *cbor.ExtraneousDataError
	if errors.As(err, &extra) {
		return interfaces.CodeLengthMismatch
	}
	return interfaces.CodeMalformedFrame
}

// Validate checks the structural rules for the request's operation: the
// fields it requires are present and well-formed. Scheme-dependent rules
// (key material length, pre-hashed digests) belong to the key store and
// signer layers, which know the scheme a key id resolves to.
func (r *Request) Validate() error {
	if r.Op == "" {
		return interfaces.Errf(interfaces.CodeMissingField, "operation is required")
	}
	op := interfaces.Operation(r.Op)
	if !op.Valid() {
		return interfaces.Errf(interfaces.CodeUnsupportedOperation, "unknown operation %q", r.Op)
	}

	switch op {
	case interfaces.OpGenerateKey, interfaces.OpImportKey:
		if r.Scheme == "" {
			return interfaces.Errf(interfaces.CodeMissingField, "scheme is required for %s", op)
		}
		if _, err := interfaces.ParseSchemeTag(r.Scheme); err != nil {
			return err
		}
		if op == interfaces.OpImportKey && len(r.Payload) == 0 {
			return interfaces.Errf(interfaces.CodeMissingField, "secret bytes are required for %s", op)
		}
	case interfaces.OpGetPublicKey, interfaces.OpDeleteKey:
		if err := r.validateKeyID(op); err != nil {
			return err
		}
	case interfaces.OpSign:
		if err := r.validateKeyID(op); err != nil {
			return err
		}
		if r.Payload == nil {
			return interfaces.Errf(interfaces.CodeMissingField, "payload is required for %s", op)
		}
	}
	return nil
}

func (r *Request) validateKeyID(op interfaces.Operation) error {
	if len(r.KeyID) == 0 {
		return interfaces.Errf(interfaces.CodeMissingField, "key id is required for %s", op)
	}
	if _, err := interfaces.KeyIDFromBytes(r.KeyID); err != nil {
		return err
	}
	return nil
}

// Key returns the request's key id as a typed value. Call it only after
// Validate has accepted the request.
func (r *Request) Key() (interfaces.KeyID, error) {
	return interfaces.KeyIDFromBytes(r.KeyID)
}

// NewOKResponse builds a success response for the given request id.
func NewOKResponse(id uint64, result []byte) *Response {
	return &Response{ID: id, Status: StatusOK, Result: result}
}

// NewErrResponse builds an error response for the given request id,
// deriving the stable code from err.
func NewErrResponse(id uint64, err error) *Response {
	return &Response{
		ID:     id,
		Status: StatusError,
		Code:   string(interfaces.CodeOf(err)),
		Error:  err.Error(),
	}
}

// Err converts an error response into a typed error; it returns nil for a
// success response. Clients use it to surface server-side failures with
// their stable codes intact.
func (r *Response) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	code := interfaces.ErrorCode(r.Code)
	if code == "" {
		code = interfaces.CodeInternal
	}
	return &interfaces.CodedError{Code: code, Err: errors.New(r.Error)}
}
