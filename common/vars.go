package common

// PackageName identifies this service in logs.
const PackageName = "enclave-signer"

// MetricsNamespace prefixes every Prometheus metric this service exports.
const MetricsNamespace = "enclave_signer"

// Version is overridden at build time:
//
//	go build -ldflags "-X github.com/ruteri/enclave-signer/common.Version=v1.2.3"
var Version = "dev"
