// Package flags holds the CLI flag definitions shared by the signer
// daemon and its client.
package flags

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/enclave-signer/common"
)

// SetupLogger builds the process logger from the common logging flags.
func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJSONFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUIDFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

var LogJSONFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUIDFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var ListenPortFlag = &cli.UintFlag{
	Name:  "listen-port",
	Value: 2000,
	Usage: "vsock port to listen on",
}
var PeerCIDFlag = &cli.UintFlag{
	Name:  "peer-cid",
	Value: 0,
	Usage: "vsock context id of the only accepted peer, 0 accepts any",
}
var ListenTCPFlag = &cli.StringFlag{
	Name:  "listen-tcp",
	Value: "",
	Usage: "serve the protocol on a TCP address instead of vsock (development only)",
}
var MaxConnsFlag = &cli.IntFlag{
	Name:  "max-conns",
	Value: 64,
	Usage: "maximum concurrent protocol connections",
}
var MaxFrameBytesFlag = &cli.UintFlag{
	Name:  "max-frame-bytes",
	Value: 1 << 20,
	Usage: "maximum accepted frame payload size in bytes",
}
var ReadTimeoutFlag = &cli.DurationFlag{
	Name:  "read-timeout",
	Value: 0,
	Usage: "per-frame read timeout, 0 uses the default (30s)",
}
var WriteTimeoutFlag = &cli.DurationFlag{
	Name:  "write-timeout",
	Value: 0,
	Usage: "per-response write timeout, 0 uses the default (30s)",
}
var SessionTimeoutFlag = &cli.DurationFlag{
	Name:  "session-timeout",
	Value: 0,
	Usage: "maximum connection lifetime, 0 uses the default (1h)",
}

var OpsAddrFlag = &cli.StringFlag{
	Name:  "ops-addr",
	Value: "",
	Usage: "address for the health/status HTTP server, empty disables it",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "",
	Usage: "address to listen on for Prometheus metrics, empty disables it",
}
var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint on the ops server",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}

var AttestationTypeFlag = &cli.StringFlag{
	Name:  "attestation-type",
	Value: "",
	Usage: "attestation provider: 'dcap' or 'dummy', empty disables attestation",
}
var BindingSchemeFlag = &cli.StringFlag{
	Name:  "binding-scheme",
	Value: "",
	Usage: "generate a boot identity key of this scheme and log its attestation, empty disables it",
}

// CommonFlags are shared by every command in this module.
var CommonFlags = []cli.Flag{
	LogJSONFlag,
	LogDebugFlag,
	LogUIDFlag,
	LogServiceFlag,
}
