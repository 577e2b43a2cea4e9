package server

import (
	"log/slog"
	"time"

	"github.com/ruteri/enclave-signer/interfaces"
	"github.com/ruteri/enclave-signer/metrics"
	"github.com/ruteri/enclave-signer/signer"
	"github.com/ruteri/enclave-signer/wire"
)

// Handler is the request dispatcher: it validates a decoded request,
// resolves the key, runs the operation and builds exactly one response.
// Handlers hold no per-request state, so one instance serves every
// connection; the key store is the only shared resource.
type Handler struct {
	store   interfaces.KeyStore
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler creates a dispatcher over the given key store.
func NewHandler(store interfaces.KeyStore, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{store: store, log: log, metrics: m}
}

// Handle answers one request. It never returns nil and never panics
// outward: every failure maps to an error response carrying its stable
// code, echoing the request id.
func (h *Handler) Handle(req *wire.Request) *wire.Response {
	resp := h.dispatch(req)
	code := resp.Code
	if resp.Status == wire.StatusOK {
		h.log.Debug("request handled", "requestID", req.ID, "op", req.Op)
	} else {
		h.log.Info("request failed", "requestID", req.ID, "op", req.Op, "code", code)
	}
	h.metrics.RecordRequest(req.Op, code)
	h.metrics.SetStoredKeys(h.store.Count())
	return resp
}

func (h *Handler) dispatch(req *wire.Request) *wire.Response {
	if err := req.Validate(); err != nil {
		return wire.NewErrResponse(req.ID, err)
	}

	switch interfaces.Operation(req.Op) {
	case interfaces.OpGenerateKey:
		return h.handleGenerate(req)
	case interfaces.OpImportKey:
		return h.handleImport(req)
	case interfaces.OpGetPublicKey:
		return h.handleGetPublic(req)
	case interfaces.OpSign:
		return h.handleSign(req)
	case interfaces.OpDeleteKey:
		return h.handleDelete(req)
	default:
		// Validate already rejected unknown operations.
		return wire.NewErrResponse(req.ID, interfaces.Errf(interfaces.CodeInternal, "unhandled operation %q", req.Op))
	}
}

func (h *Handler) handleGenerate(req *wire.Request) *wire.Response {
	scheme, err := interfaces.ParseSchemeTag(req.Scheme)
	if err != nil {
		return wire.NewErrResponse(req.ID, err)
	}
	id, err := h.store.Generate(scheme)
	if err != nil {
		return wire.NewErrResponse(req.ID, err)
	}
	h.log.Info("generated key", "keyID", id, "scheme", scheme)
	return wire.NewOKResponse(req.ID, id.Bytes())
}

func (h *Handler) handleImport(req *wire.Request) *wire.Response {
	scheme, err := interfaces.ParseSchemeTag(req.Scheme)
	if err != nil {
		return wire.NewErrResponse(req.ID, err)
	}

	// The payload holds raw secret bytes. Whatever the outcome, the
	// frame buffer must not keep a readable copy of them.
	id, err := h.store.Import(scheme, req.Payload)
	signer.Zeroize(req.Payload)
	if err != nil {
		return wire.NewErrResponse(req.ID, err)
	}
	h.log.Info("imported key", "keyID", id, "scheme", scheme)
	return wire.NewOKResponse(req.ID, id.Bytes())
}

func (h *Handler) handleGetPublic(req *wire.Request) *wire.Response {
	id, err := req.Key()
	if err != nil {
		return wire.NewErrResponse(req.ID, err)
	}
	scheme, pub, err := h.store.GetPublic(id)
	if err != nil {
		return wire.NewErrResponse(req.ID, err)
	}
	resp := wire.NewOKResponse(req.ID, pub)
	resp.Scheme = string(scheme)
	return resp
}

func (h *Handler) handleSign(req *wire.Request) *wire.Response {
	id, err := req.Key()
	if err != nil {
		return wire.NewErrResponse(req.ID, err)
	}
	scheme, err := h.store.SchemeOf(id)
	if err != nil {
		return wire.NewErrResponse(req.ID, err)
	}

	start := time.Now()
	sig, err := h.store.SignWith(id, req.Payload, req.PreHashed)
	if err != nil {
		return wire.NewErrResponse(req.ID, err)
	}
	h.metrics.RecordSign(string(scheme), time.Since(start))
	return wire.NewOKResponse(req.ID, sig)
}

func (h *Handler) handleDelete(req *wire.Request) *wire.Response {
	id, err := req.Key()
	if err != nil {
		return wire.NewErrResponse(req.ID, err)
	}
	if !h.store.Delete(id) {
		return wire.NewErrResponse(req.ID, interfaces.ErrKeyNotFound)
	}
	return wire.NewOKResponse(req.ID, nil)
}
