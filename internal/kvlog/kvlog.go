// Package kvlog configures the process-wide cclog logger at startup,
// simplified down to the one logger every kvserver package imports
// directly.
package kvlog

import (
	"os"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Init sets the minimum log level and whether output is colorized. level
// is one of "debug", "info", "warn", "err"; it falls back to "info" on an
// unrecognized value rather than failing startup over a logging option.
func Init(level string, color bool) {
	switch level {
	case "debug", "info", "warn", "err":
	default:
		level = "info"
	}
	cclog.Init(level, color)
}

// InitFromEnv reads LOGLEVEL, for parity with environments that set it
// instead of passing --loglevel.
func InitFromEnv(fallback string) {
	if lvl, ok := os.LookupEnv("LOGLEVEL"); ok {
		Init(lvl, true)
		return
	}
	Init(fallback, true)
}
