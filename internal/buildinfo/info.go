// Package buildinfo carries the version metadata stamped into the
// ledgerflow binary at build time.
package buildinfo

// Set via -ldflags, for example:
//
//	go build -ldflags "-X github.com/ledgerflow-dev/ledgerflow/internal/buildinfo.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
