package progress

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesFileAndMirror(t *testing.T) {
	var mirror bytes.Buffer
	l, err := New(Config{
		LogsDir: t.TempDir(),
		Role:    "worker",
		AgentID: "worker-ab12cd34",
		Writer:  &mirror,
	})
	require.NoError(t, err)

	l.Item(7, "add parser")
	l.Printf("attempt %d", 1)
	l.Errorf("validation failed")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "worker-ab12cd34")
	assert.Contains(t, content, "#7 add parser")
	assert.Contains(t, content, "attempt 1")
	assert.Contains(t, content, "ERROR: validation failed")
	assert.Contains(t, content, "Duration:")
	assert.Equal(t, content, mirror.String())
}

func TestDiscardIsSafe(t *testing.T) {
	l := Discard()
	l.Printf("nothing happens")
	l.Section("quiet")
	require.NoError(t, l.Close())
}
