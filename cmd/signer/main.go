// The signer daemon: the sole process inside the enclave. It owns the key
// store, serves the framed signing protocol on the virtual socket and,
// optionally, exposes an operational HTTP surface and a boot attestation
// of a freshly generated binding key.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/enclave-signer/attestation"
	"github.com/ruteri/enclave-signer/cmd/flags"
	"github.com/ruteri/enclave-signer/common"
	"github.com/ruteri/enclave-signer/httpserver"
	"github.com/ruteri/enclave-signer/interfaces"
	"github.com/ruteri/enclave-signer/keystore"
	"github.com/ruteri/enclave-signer/metrics"
	"github.com/ruteri/enclave-signer/server"
)

func main() {
	app := &cli.App{
		Name:    "signer",
		Usage:   "Enclave-resident multi-scheme signing service",
		Version: common.Version,
		Flags: append([]cli.Flag{
			flags.ListenPortFlag,
			flags.PeerCIDFlag,
			flags.ListenTCPFlag,
			flags.MaxConnsFlag,
			flags.MaxFrameBytesFlag,
			flags.ReadTimeoutFlag,
			flags.WriteTimeoutFlag,
			flags.SessionTimeoutFlag,
			flags.OpsAddrFlag,
			flags.MetricsAddrFlag,
			flags.PprofFlag,
			flags.DrainSecondsFlag,
			flags.AttestationTypeFlag,
			flags.BindingSchemeFlag,
		}, flags.CommonFlags...),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	m := metrics.New(common.MetricsNamespace)

	store := keystore.New(logger)
	defer store.Close()

	if err := attestBindingKey(cCtx, logger, store); err != nil {
		logger.Error("Boot attestation failed", "err", err)
		return err
	}

	handler := server.NewHandler(store, logger, m)
	srv, err := server.New(&server.Config{
		VsockPort:      uint32(cCtx.Uint(flags.ListenPortFlag.Name)),
		PeerCID:        uint32(cCtx.Uint(flags.PeerCIDFlag.Name)),
		ListenTCP:      cCtx.String(flags.ListenTCPFlag.Name),
		MaxConns:       cCtx.Int(flags.MaxConnsFlag.Name),
		MaxFrameBytes:  uint32(cCtx.Uint(flags.MaxFrameBytesFlag.Name)),
		ReadTimeout:    cCtx.Duration(flags.ReadTimeoutFlag.Name),
		WriteTimeout:   cCtx.Duration(flags.WriteTimeoutFlag.Name),
		SessionTimeout: cCtx.Duration(flags.SessionTimeoutFlag.Name),
		Log:            logger,
		Metrics:        m,
	}, handler)
	if err != nil {
		logger.Error("Failed to start protocol server", "err", err)
		return err
	}
	srv.RunInBackground()

	metricsAddr := cCtx.String(flags.MetricsAddrFlag.Name)
	opsAddr := cCtx.String(flags.OpsAddrFlag.Name)

	// The ops server owns the metrics listener when both are enabled;
	// with ops disabled the exporter runs standalone.
	var metricsSrv *metrics.MetricsServer
	if opsAddr == "" && metricsAddr != "" {
		metricsSrv = metrics.NewServer(m, metricsAddr)
		go func() {
			logger.Info("Starting metrics server", "metricsAddress", metricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "err", err)
			}
		}()
	}

	var opsSrv *httpserver.Server
	if opsAddr != "" {
		opsSrv, err = httpserver.New(&httpserver.HTTPServerConfig{
			ListenAddr:               opsAddr,
			MetricsAddr:              metricsAddr,
			EnablePprof:              cCtx.Bool(flags.PprofFlag.Name),
			Log:                      logger,
			DrainDuration:            time.Duration(cCtx.Int64(flags.DrainSecondsFlag.Name)) * time.Second,
			GracefulShutdownDuration: 30 * time.Second,
			ReadTimeout:              60 * time.Second,
			WriteTimeout:             30 * time.Second,
		}, store, m)
		if err != nil {
			logger.Error("Failed to start ops server", "err", err)
			return err
		}
		opsSrv.RunInBackground()
	}

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit
	logger.Info("Shutting down")

	srv.Shutdown()
	if opsSrv != nil {
		opsSrv.Shutdown()
	}
	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Error("Graceful metrics server shutdown failed", "err", err)
		}
	}
	// The deferred store.Close zeroizes every remaining key before the
	// process exits.
	return nil
}

// attestBindingKey generates the boot identity key and logs its
// attestation, binding the enclave measurement to a public key operators
// can pin.
func attestBindingKey(cCtx *cli.Context, logger *slog.Logger, store interfaces.KeyStore) error {
	schemeName := cCtx.String(flags.BindingSchemeFlag.Name)
	if schemeName == "" {
		return nil
	}

	scheme, err := interfaces.ParseSchemeTag(schemeName)
	if err != nil {
		return err
	}
	id, err := store.Generate(scheme)
	if err != nil {
		return fmt.Errorf("generating binding key: %w", err)
	}
	_, pub, err := store.GetPublic(id)
	if err != nil {
		return err
	}

	logger = logger.With("keyID", id, "scheme", scheme, "publicKey", pub.String())

	attType := cCtx.String(flags.AttestationTypeFlag.Name)
	if attType == "" {
		logger.Info("Binding key generated, attestation disabled")
		return nil
	}

	provider, err := attestation.ForType(attType)
	if err != nil {
		return err
	}
	quote, err := provider.Attest(attestation.KeyReportData(scheme, pub))
	if err != nil {
		return fmt.Errorf("attesting binding key: %w", err)
	}

	logger.Info("Binding key attested",
		"attestationType", provider.Type(),
		"attestation", hex.EncodeToString(quote),
	)
	return nil
}
