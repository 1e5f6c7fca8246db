package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/planb-provider/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, logging.ParseLevel("debug"))
	require.Equal(t, zerolog.InfoLevel, logging.ParseLevel(""))
	require.Equal(t, zerolog.InfoLevel, logging.ParseLevel("loud"))
}

// TestNew_JSON tests that non-DEV environments emit structured JSON.
func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "PROD", "info")

	logger.Debug().Msg("hidden")
	logger.Info().Str("kid", "01ABC").Msg("key rotated")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "key rotated", entry["message"])
	require.Equal(t, "01ABC", entry["kid"])
	require.Equal(t, "info", entry["level"])
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "DEV", "info")
	logger.Info().Msg("hello")
	require.Contains(t, buf.String(), "hello")
	require.False(t, json.Valid(buf.Bytes()))
}
