// Package attestation produces enclave attestation evidence binding a
// public key to the enclave's measured identity.
//
// The signer core only generates evidence; verifying it is the relying
// party's job and deliberately absent here. A Provider turns 64 bytes of
// report data into a raw quote; KeyReportData folds a scheme tag and
// public key into that slot so a verifier can tie a signing identity to
// the enclave measurement.
package attestation

import (
	"crypto/sha512"
	"errors"
	"fmt"
	"io"
	"net/http"

	tdxclient "github.com/google/go-tdx-guest/client"

	"github.com/ruteri/enclave-signer/interfaces"
)

// Provider produces attestation evidence over caller-chosen report data.
type Provider interface {
	// Type names the evidence format for logs and relying parties.
	Type() string

	// Attest returns raw attestation evidence embedding reportData.
	Attest(reportData [64]byte) ([]byte, error)
}

// ForType resolves a provider by its configured name.
func ForType(name string) (Provider, error) {
	switch name {
	case "dcap":
		return &DCAPProvider{}, nil
	case "dummy":
		return &DummyProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown attestation type %q: %w", name, errors.ErrUnsupported)
	}
}

// KeyReportData derives the 64-byte report data binding a public key and
// its scheme: SHA-512 over the scheme tag, a zero separator and the
// public key bytes. The hash keeps the binding fixed-width regardless of
// the scheme's key encoding.
func KeyReportData(scheme interfaces.SchemeTag, pub interfaces.PublicKey) [64]byte {
	h := sha512.New()
	h.Write([]byte(scheme))
	h.Write([]byte{0})
	h.Write(pub)

	var reportData [64]byte
	copy(reportData[:], h.Sum(nil))
	return reportData
}

// DCAPProvider requests TDX quotes from the guest device, preferring the
// configfs interface where the kernel provides it.
type DCAPProvider struct{}

func (DCAPProvider) Type() string { return "dcap" }

func (DCAPProvider) Attest(reportData [64]byte) ([]byte, error) {
	qp := &tdxclient.LinuxConfigFsQuoteProvider{}
	if qp.IsSupported() == nil {
		return qp.GetRawQuote(reportData)
	}

	qd, err := tdxclient.OpenDevice()
	if err != nil {
		return nil, err
	}
	defer qd.Close()

	return tdxclient.GetRawQuote(qd, reportData)
}

// RemoteProvider fetches quotes from an attestation sidecar over HTTP,
// for platforms where the quote device is not exposed to this process.
type RemoteProvider struct {
	Address string
	Client  *http.Client
}

func (*RemoteProvider) Type() string { return "remote" }

func (p *RemoteProvider) Attest(reportData [64]byte) ([]byte, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	url := fmt.Sprintf("%s/attest/%x", p.Address, reportData[:])
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("calling remote quote provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading quote from response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote quote provider returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// DummyProvider emits placeholder evidence for development outside an
// enclave.
type DummyProvider struct{}

func (DummyProvider) Type() string { return "dummy" }

func (DummyProvider) Attest(reportData [64]byte) ([]byte, error) {
	return []byte(fmt.Sprintf("dummy attestation over %x", reportData)), nil
}
