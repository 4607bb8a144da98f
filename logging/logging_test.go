package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_json(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", "json", &buf)

	log.Debug().Str("key", "data/a.txt").Msg("downloaded")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "downloaded", line["message"])
	assert.Equal(t, "data/a.txt", line["key"])
	assert.Contains(t, line, "time")
}

func TestNew_level(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", "json", &buf)

	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_invalidLevelFallsBackToInfo(t *testing.T) {
	for _, level := range []string{"", "loud"} {
		var buf bytes.Buffer
		log := New(level, "json", &buf)

		log.Debug().Msg("hidden")
		log.Info().Msg("shown")
		assert.NotContains(t, buf.String(), "hidden", level)
		assert.Contains(t, buf.String(), "shown", level)
	}
}

func TestNew_console(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", "console", &buf)

	log.Info().Str("bucket", "backups").Msg("starting sync")
	out := buf.String()
	assert.Contains(t, out, "starting sync")
	assert.Contains(t, out, "bucket=")
	assert.False(t, json.Valid(buf.Bytes()), "console output is not JSON")
}
