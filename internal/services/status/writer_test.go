package status

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/venatordev/venator/internal/models"
)

func TestWriteAndRead(t *testing.T) {
	writer := NewWriter(t.TempDir(), arbor.NewLogger())

	status := models.ServiceStatus{
		Running:       true,
		BrowserAlive:  true,
		Authenticated: true,
		Timestamp:     time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, writer.Write(status))

	got, err := writer.Read()
	require.NoError(t, err)
	assert.True(t, got.Running)
	assert.True(t, got.BrowserAlive)
	assert.True(t, got.Authenticated)
	assert.True(t, status.Timestamp.Equal(got.Timestamp))
}

func TestReadMissingReportsNotRunning(t *testing.T) {
	writer := NewWriter(t.TempDir(), arbor.NewLogger())

	got, err := writer.Read()
	require.NoError(t, err)
	assert.False(t, got.Running)
}

func TestReadCorruptFileErrors(t *testing.T) {
	dir := t.TempDir()
	writer := NewWriter(dir, arbor.NewLogger())
	require.NoError(t, os.WriteFile(filepath.Join(dir, statusFileName), []byte("{oops"), 0644))

	_, err := writer.Read()
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	writer := NewWriter(t.TempDir(), arbor.NewLogger())

	require.NoError(t, writer.Clear(), "clearing an absent file is fine")

	require.NoError(t, writer.Write(models.ServiceStatus{Running: true}))
	require.NoError(t, writer.Clear())

	got, err := writer.Read()
	require.NoError(t, err)
	assert.False(t, got.Running)
}
