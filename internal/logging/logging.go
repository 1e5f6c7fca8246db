package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const devEnv = "DEV"

// Setup configures the global zerolog logger. DEV gets coloured console output,
// every other environment gets JSON lines.
func Setup(env, level string) {
	log.Logger = New(os.Stdout, env, level)
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// New builds a logger writing to w; exposed so tests can capture output.
func New(w io.Writer, env, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	out := w
	if env == devEnv {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel falls back to info for unknown or empty levels.
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}
