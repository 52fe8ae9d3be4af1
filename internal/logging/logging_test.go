package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter("info", "json", &buf)
	require.NoError(t, err)

	log.WithName("orchestrator").Info("node created", "id", "42")
	log.V(1).Info("hidden at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "node created", entry["msg"])
	assert.Equal(t, "orchestrator", entry["logger"])
	assert.Equal(t, "42", entry["id"])
}

func TestNewWithWriter_DebugShowsVerbose(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter("debug", "console", &buf)
	require.NoError(t, err)

	log.V(1).Info("unknown image", "id", "img-1")
	assert.Contains(t, buf.String(), "unknown image")
}

func TestNewWithWriter_Invalid(t *testing.T) {
	_, err := NewWithWriter("loud", "json", &bytes.Buffer{})
	assert.Error(t, err)

	_, err = NewWithWriter("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestOrDiscard(t *testing.T) {
	var zero logr.Logger
	assert.NotPanics(t, func() { OrDiscard(zero).Info("dropped") })

	log := Discard()
	assert.Equal(t, log, OrDiscard(log))
}
