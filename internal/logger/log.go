// internal/logger/log.go
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the SDK logger.
//
// Unlike a server process, an embedded SDK must never hijack the host
// application's global logger, so this returns an instance and the core
// threads component-scoped children (`With().Str("component", ...)`)
// through the pipeline.
//
//   - debug=true:  human-oriented console output, Debug level. Meant for
//     local development against the dev collector.
//   - debug=false: JSON to stderr, Warn level. A healthy SDK embedded in
//     someone else's page should be close to silent.
//
// appID and environment ride along on every line so multi-tenant logs
// stay attributable.
func New(appID, environment string, debug bool) zerolog.Logger {
	level := zerolog.WarnLevel
	var w io.Writer = os.Stderr

	if debug {
		level = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05.000",
		}
	}

	ctx := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "webmon-sdk").
		Str("app_id", appID)

	if environment != "" {
		ctx = ctx.Str("env", environment)
	}

	return ctx.Logger()
}

// Nop returns a disabled logger for tests that do not assert on logs.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
