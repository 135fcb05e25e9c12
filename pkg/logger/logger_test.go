package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"trace":   zerolog.TraceLevel,
		" WARN ":  zerolog.WarnLevel,
		"verbose": zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for name, expected := range tests {
		assert.Equal(t, expected, ParseLevel(name), name)
	}
}

func TestNewWritesJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	log := New(Config{Level: "info", Service: "signalscope", Output: &buf})
	log.Info().Str("source", "golden_key").Msg("cycle finished")
	log.Debug().Msg("suppressed")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "cycle finished", entry["message"])
	assert.Equal(t, "golden_key", entry["source"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")
	assert.Equal(t, "signalscope", entry["service"])
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	child := Component(zerolog.New(&buf), "scheduler")
	child.Info().Msg("started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "scheduler", entry["component"])
}
