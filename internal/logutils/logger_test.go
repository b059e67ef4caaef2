package logutils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "invertify.log")
	l, closer, err := New("info", file)
	require.NoError(t, err)

	l.Debug().Msg("hidden")
	l.Info().Str("file", "a.png").Msg("processing image")
	closer()

	data, err := os.ReadFile(file)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry), "exactly one JSON line expected: %s", data)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "a.png", entry["file"])
	assert.Contains(t, entry, "time")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, closer, err := New("loud", "")
	assert.Error(t, err)
	closer()
}
