package log_test

import (
	"bytes"
	"testing"

	"github.com/jrsteele09/learnlink-client/internal/log"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, log.ParseLevel("DEBUG"))
	require.Equal(t, zerolog.WarnLevel, log.ParseLevel("warn"))
	require.Equal(t, zerolog.ErrorLevel, log.ParseLevel("error"))
	require.Equal(t, zerolog.Disabled, log.ParseLevel("off"))
	require.Equal(t, zerolog.InfoLevel, log.ParseLevel(""))
}

func TestNewWithWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, "warn")

	logger.Info().Msg("hidden")
	require.Empty(t, buf.String())

	logger.Warn().Str("component", "hub").Msg("reconnecting")
	require.Contains(t, buf.String(), "reconnecting")
	require.Contains(t, buf.String(), "component=hub")
}
