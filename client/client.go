package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mdlayher/vsock"
	uberatomic "go.uber.org/atomic"

	"github.com/ruteri/enclave-signer/interfaces"
	"github.com/ruteri/enclave-signer/wire"
)

// Config carries the dial parameters for one client connection.
type Config struct {
	// CID and Port locate the signer over vsock. For an enclave, CID is
	// the enclave's context id as seen from the host.
	CID  uint32
	Port uint32

	// DialTCP, when non-empty, dials a TCP address instead of vsock.
	// Development and test path only.
	DialTCP string

	// Timeout bounds each request-response exchange. Zero means 30s.
	Timeout time.Duration

	// MaxFrameBytes bounds accepted response frames. Zero means the
	// protocol default.
	MaxFrameBytes uint32
}

// Client speaks the framed protocol over a single connection with one
// request in flight at a time; the server answers in order, so request
// and response pair up without correlation state. Methods are safe for
// concurrent use, serialized internally.
type Client struct {
	cfg  *Config
	mu   sync.Mutex
	conn net.Conn

	nextID uberatomic.Uint64
}

// Dial connects to the signer.
func Dial(cfg *Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxFrameBytes == 0 {
		cfg.MaxFrameBytes = wire.DefaultMaxFrameBytes
	}

	var (
		conn net.Conn
		err  error
	)
	if cfg.DialTCP != "" {
		conn, err = net.DialTimeout("tcp", cfg.DialTCP, cfg.Timeout)
	} else {
		conn, err = vsock.Dial(cfg.CID, cfg.Port, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("dialing signer: %w", err)
	}
	return &Client{cfg: cfg, conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// GenerateKey asks the signer to create a fresh key for the scheme.
func (c *Client) GenerateKey(scheme interfaces.SchemeTag) (interfaces.KeyID, error) {
	resp, err := c.roundTrip(&wire.Request{
		Op:     string(interfaces.OpGenerateKey),
		Scheme: string(scheme),
	})
	if err != nil {
		return interfaces.KeyID{}, err
	}
	return interfaces.KeyIDFromBytes(resp.Result)
}

// ImportKey installs secret bytes under the scheme. The caller keeps
// ownership of secret and should zeroize it after the call.
func (c *Client) ImportKey(scheme interfaces.SchemeTag, secret []byte) (interfaces.KeyID, error) {
	resp, err := c.roundTrip(&wire.Request{
		Op:      string(interfaces.OpImportKey),
		Scheme:  string(scheme),
		Payload: secret,
	})
	if err != nil {
		return interfaces.KeyID{}, err
	}
	return interfaces.KeyIDFromBytes(resp.Result)
}

// GetPublicKey fetches the scheme and public key bound to the key id.
func (c *Client) GetPublicKey(id interfaces.KeyID) (interfaces.SchemeTag, interfaces.PublicKey, error) {
	resp, err := c.roundTrip(&wire.Request{
		Op:    string(interfaces.OpGetPublicKey),
		KeyID: id.Bytes(),
	})
	if err != nil {
		return "", nil, err
	}
	scheme, err := interfaces.ParseSchemeTag(resp.Scheme)
	if err != nil {
		return "", nil, err
	}
	return scheme, resp.Result, nil
}

// Sign signs the message with the stored key.
func (c *Client) Sign(id interfaces.KeyID, message []byte) (interfaces.Signature, error) {
	return c.sign(id, message, false)
}

// SignPreHashed signs an externally computed 32-byte digest. Only the
// ECDSA schemes accept it.
func (c *Client) SignPreHashed(id interfaces.KeyID, digest []byte) (interfaces.Signature, error) {
	return c.sign(id, digest, true)
}

func (c *Client) sign(id interfaces.KeyID, payload []byte, preHashed bool) (interfaces.Signature, error) {
	resp, err := c.roundTrip(&wire.Request{
		Op:        string(interfaces.OpSign),
		KeyID:     id.Bytes(),
		Payload:   payload,
		PreHashed: preHashed,
	})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// DeleteKey removes the key; its secret is zeroized server-side.
func (c *Client) DeleteKey(id interfaces.KeyID) error {
	_, err := c.roundTrip(&wire.Request{
		Op:    string(interfaces.OpDeleteKey),
		KeyID: id.Bytes(),
	})
	return err
}

// roundTrip sends one request and reads its response. Server-side
// failures come back as *interfaces.CodedError with their stable code;
// transport failures are plain errors and leave the connection in an
// undefined state.
func (c *Client) roundTrip(req *wire.Request) (*wire.Response, error) {
	req.ID = c.nextID.Inc()

	encoded, err := wire.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.cfg.Timeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}
	if err := wire.WriteFrame(c.conn, encoded); err != nil {
		return nil, err
	}

	payload, err := wire.ReadFrame(c.conn, c.cfg.MaxFrameBytes)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	resp, err := wire.DecodeResponse(payload)
	if err != nil {
		return nil, err
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("response id %d does not echo request id %d", resp.ID, req.ID)
	}
	return resp, resp.Err()
}
