package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWriterJSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	require.NoError(t, InitWriter(&buf, "warn", false))
	log.Info().Msg("hidden")
	log.Warn().Str("file", "a.png").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"file":"a.png"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestInitWriterPretty(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	require.NoError(t, InitWriter(&buf, "", true))
	log.Info().Str("file", "a.png").Msg("scanned")
	assert.Contains(t, buf.String(), "scanned")
	assert.NotContains(t, buf.String(), `{"level"`)
}

func TestInitWriterRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, InitWriter(&bytes.Buffer{}, "loud", false))
}
