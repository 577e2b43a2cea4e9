package attestation

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/enclave-signer/interfaces"
)

func TestKeyReportData(t *testing.T) {
	pub := interfaces.PublicKey{0x02, 0xaa, 0xbb}

	first := KeyReportData(interfaces.SchemeECDSASecp256k1, pub)
	second := KeyReportData(interfaces.SchemeECDSASecp256k1, pub)
	assert.Equal(t, first, second, "report data derivation should be deterministic")

	otherScheme := KeyReportData(interfaces.SchemeECDSAP256, pub)
	assert.NotEqual(t, first, otherScheme, "scheme tag should be bound into the report data")

	otherKey := KeyReportData(interfaces.SchemeECDSASecp256k1, interfaces.PublicKey{0x03, 0xaa, 0xbb})
	assert.NotEqual(t, first, otherKey, "public key should be bound into the report data")
}

func TestForType(t *testing.T) {
	p, err := ForType("dcap")
	require.NoError(t, err)
	assert.Equal(t, "dcap", p.Type())

	p, err = ForType("dummy")
	require.NoError(t, err)
	assert.Equal(t, "dummy", p.Type())

	_, err = ForType("sgx-epid")
	assert.Error(t, err, "unknown provider names should be rejected")
}

func TestRemoteProvider(t *testing.T) {
	var reportData [64]byte
	reportData[0] = 0x42

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/attest/42", "report data should be hex-encoded into the path")
		_, _ = w.Write([]byte("quote bytes"))
	}))
	defer srv.Close()

	p := &RemoteProvider{Address: srv.URL}
	quote, err := p.Attest(reportData)
	require.NoError(t, err)
	assert.Equal(t, []byte("quote bytes"), quote)
}

func TestRemoteProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no quote device", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := &RemoteProvider{Address: srv.URL}
	_, err := p.Attest([64]byte{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestDummyProvider(t *testing.T) {
	quote, err := DummyProvider{}.Attest([64]byte{0x01})
	require.NoError(t, err)
	assert.NotEmpty(t, quote)
}
