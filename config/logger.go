package config

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger builds the service logger. Development uses the console writer.
func Logger(env EnvConfig) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.DurationFieldUnit = time.Millisecond

	var out io.Writer = os.Stdout
	if !env.Production() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(zerolog.Level(env.LogLevel)).
		With().
		Timestamp().
		Str("app", env.AppName).
		Logger()
}
