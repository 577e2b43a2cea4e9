package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/enclave-signer/interfaces"
	"github.com/ruteri/enclave-signer/metrics"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      slog.New(slog.DiscardHandler),
		DrainDuration:            10 * time.Millisecond,
		GracefulShutdownDuration: time.Second,
		ReadTimeout:              time.Second,
		WriteTimeout:             time.Second,
	}
	store := &interfaces.MockKeyStore{Scheme: interfaces.SchemeEd25519}
	srv, err := New(cfg, store, metrics.New("test"))
	require.NoError(t, err, "server should build")
	return srv
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestServer_Liveness(t *testing.T) {
	srv := newTestServer(t)
	rec := get(t, srv.getRouter(), "/livez")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestServer_DrainUndrain(t *testing.T) {
	srv := newTestServer(t)
	router := srv.getRouter()

	rec := get(t, router, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code, "server should start ready")

	rec = get(t, router, "/drain")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, router, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "drained server should not be ready")

	rec = get(t, router, "/drain")
	assert.Contains(t, rec.Body.String(), "already draining")

	rec = get(t, router, "/undrain")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, router, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code, "undrained server should be ready again")
}

func TestServer_Status(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv.getRouter(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status), "status should be valid JSON")
	assert.True(t, status.Ready)
	assert.Equal(t, 1, status.Keys, "mock store reports one key")
	assert.Len(t, status.Schemes, len(interfaces.SupportedSchemes), "every compiled-in scheme should be listed")
}
