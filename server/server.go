package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mdlayher/vsock"
	uberatomic "go.uber.org/atomic"

	"github.com/ruteri/enclave-signer/interfaces"
	"github.com/ruteri/enclave-signer/metrics"
	"github.com/ruteri/enclave-signer/wire"
)

// DefaultVsockPort is the port the listener binds when none is
// configured.
const DefaultVsockPort = 2000

// Config carries the listener's startup parameters. Everything is read
// once at construction; there is no runtime reconfiguration.
type Config struct {
	// VsockPort is the local vsock port to bind.
	VsockPort uint32

	// PeerCID restricts accepted connections to one peer context id.
	// Zero accepts any peer.
	PeerCID uint32

	// ListenTCP, when non-empty, serves the framed protocol on a TCP
	// address instead of vsock. Development and test path only; the
	// peer CID check does not apply to it.
	ListenTCP string

	// MaxConns bounds concurrently served connections. Connections over
	// the limit are answered in-band and closed.
	MaxConns int

	// MaxFrameBytes bounds the payload length of a single frame.
	MaxFrameBytes uint32

	// ReadTimeout is the per-frame read deadline, WriteTimeout the
	// per-response write deadline. SessionTimeout bounds the total
	// lifetime of one connection.
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	SessionTimeout time.Duration

	Log     *slog.Logger
	Metrics *metrics.Metrics
}

// Server accepts framed protocol connections and drives the
// read-dispatch-write loop for each. Connections are independent:
// responses on one connection are returned in the order its requests
// arrived, and no connection failure affects another.
type Server struct {
	cfg     *Config
	handler *Handler
	log     *slog.Logger

	ln      net.Listener
	active  uberatomic.Int64
	closing uberatomic.Bool
	wg      sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// New binds the configured listener. The vsock path binds the
// hypervisor-assigned local context id on cfg.VsockPort; if cfg.ListenTCP
// is set, a TCP listener is used instead.
func New(cfg *Config, handler *Handler) (*Server, error) {
	if cfg.VsockPort == 0 {
		cfg.VsockPort = DefaultVsockPort
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 64
	}
	if cfg.MaxFrameBytes == 0 {
		cfg.MaxFrameBytes = wire.DefaultMaxFrameBytes
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = time.Hour
	}

	var (
		ln  net.Listener
		err error
	)
	if cfg.ListenTCP != "" {
		ln, err = net.Listen("tcp", cfg.ListenTCP)
	} else {
		ln, err = vsock.Listen(cfg.VsockPort, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("binding listener: %w", err)
	}

	return &Server{
		cfg:     cfg,
		handler: handler,
		log:     cfg.Log,
		ln:      ln,
		conns:   make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// RunInBackground starts the accept loop.
func (s *Server) RunInBackground() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info("protocol server listening", "addr", s.ln.Addr().String(), "peerCID", s.cfg.PeerCID)
		s.acceptLoop()
	}()
}

// Shutdown stops accepting, closes every live connection and waits for
// their loops to exit.
func (s *Server) Shutdown() {
	if s.closing.Swap(true) {
		return
	}
	_ = s.ln.Close()

	s.connMu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	s.log.Info("protocol server stopped")
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Error("accept failed", "err", err)
			continue
		}

		if err := s.admit(conn); err != nil {
			s.refuse(conn, err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// admit applies the peer identity check and the connection limit before a
// connection gets a serving goroutine.
func (s *Server) admit(conn net.Conn) error {
	if s.cfg.PeerCID != 0 {
		if addr, ok := conn.RemoteAddr().(*vsock.Addr); ok && addr.ContextID != s.cfg.PeerCID {
			return interfaces.Errf(interfaces.CodeInvalidRequest,
				"peer context id %d is not the configured peer %d", addr.ContextID, s.cfg.PeerCID)
		}
	}
	if s.closing.Load() {
		return interfaces.Errf(interfaces.CodeShuttingDown, "server is shutting down")
	}
	if s.active.Load() >= int64(s.cfg.MaxConns) {
		return interfaces.Errf(interfaces.CodeTooManyConnections,
			"connection limit of %d reached", s.cfg.MaxConns)
	}
	return nil
}

// refuse answers a rejected connection in-band with a single error frame
// before closing it, so the peer learns why instead of seeing a bare
// reset.
func (s *Server) refuse(conn net.Conn, err error) {
	defer conn.Close()
	s.log.Warn("refusing connection", "remote", conn.RemoteAddr().String(), "err", err)
	_ = s.writeResponse(conn, wire.NewErrResponse(0, err))
}

func (s *Server) serveConn(conn net.Conn) {
	s.active.Inc()
	s.cfg.Metrics.ConnOpened()
	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()

	log := s.log.With("remote", conn.RemoteAddr().String())
	log.Debug("connection opened")

	defer func() {
		s.connMu.Lock()
		delete(s.conns, conn)
		s.connMu.Unlock()
		_ = conn.Close()
		s.cfg.Metrics.ConnClosed()
		s.active.Dec()
		log.Debug("connection closed")
	}()

	sessionDeadline := time.Now().Add(s.cfg.SessionTimeout)

	for {
		if err := s.serveFrame(conn, sessionDeadline); err != nil {
			if err == io.EOF {
				return
			}
			// Transport-level failure: fatal for this connection only.
			log.Info("connection terminated", "err", err)
			return
		}
	}
}

// serveFrame reads, dispatches and answers one frame. A nil return keeps
// the connection; io.EOF reports a clean close at a frame boundary; any
// other error is connection-fatal.
func (s *Server) serveFrame(conn net.Conn, sessionDeadline time.Time) error {
	if err := conn.SetReadDeadline(s.frameDeadline(sessionDeadline)); err != nil {
		return fmt.Errorf("setting read deadline: %w", err)
	}

	payload, err := wire.ReadFrame(conn, s.cfg.MaxFrameBytes)
	if err != nil {
		var tooLarge *wire.FrameTooLargeError
		if errors.As(err, &tooLarge) {
			// Recoverable: answer in-band, discard the declared body to
			// resynchronize on the next frame boundary.
			s.metricsRecordDecodeError(interfaces.CodeFrameTooLarge)
			if werr := s.writeResponse(conn, wire.NewErrResponse(0,
				interfaces.Errf(interfaces.CodeFrameTooLarge, "%s", tooLarge.Error()))); werr != nil {
				return werr
			}
			if derr := wire.DiscardPayload(conn, tooLarge.Declared); derr != nil {
				return derr
			}
			return nil
		}
		return err
	}

	req, err := wire.DecodeRequest(payload)
	if err != nil {
		// Undecodable body: answered in-band with whatever request id
		// survived the partial parse, and the connection keeps serving.
		s.metricsRecordDecodeError(interfaces.CodeOf(err))
		return s.writeResponse(conn, wire.NewErrResponse(req.ID, err))
	}

	return s.writeResponse(conn, s.handler.Handle(req))
}

func (s *Server) writeResponse(conn net.Conn, resp *wire.Response) error {
	encoded, err := wire.EncodeResponse(resp)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	return wire.WriteFrame(conn, encoded)
}

// frameDeadline is the per-frame read deadline capped by the session's
// absolute deadline, so a stalled or adversarial peer cannot hold a
// connection open indefinitely.
func (s *Server) frameDeadline(sessionDeadline time.Time) time.Time {
	d := time.Now().Add(s.cfg.ReadTimeout)
	if d.After(sessionDeadline) {
		return sessionDeadline
	}
	return d
}

func (s *Server) metricsRecordDecodeError(code interfaces.ErrorCode) {
	s.cfg.Metrics.RecordRequest("decode", string(code))
}
