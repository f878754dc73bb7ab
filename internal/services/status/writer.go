package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/venatordev/venator/internal/models"
)

const statusFileName = "status.json"

// Writer publishes the service's health to a status file that other
// processes (and the status CLI command) read without touching the browser.
type Writer struct {
	path   string
	logger arbor.ILogger
}

// NewWriter creates a status writer backed by status.json in stateDir.
func NewWriter(stateDir string, logger arbor.ILogger) *Writer {
	return &Writer{
		path:   filepath.Join(stateDir, statusFileName),
		logger: logger,
	}
}

// Write replaces the status file atomically.
func (w *Writer) Write(status models.ServiceStatus) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace status file: %w", err)
	}
	return nil
}

// Read returns the last published status. A missing file reports a service
// that is not running rather than an error.
func (w *Writer) Read() (models.ServiceStatus, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.ServiceStatus{Running: false}, nil
		}
		return models.ServiceStatus{}, fmt.Errorf("failed to read status file: %w", err)
	}

	var status models.ServiceStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return models.ServiceStatus{}, fmt.Errorf("failed to parse status file: %w", err)
	}
	return status, nil
}

// Clear removes the status file on shutdown so a crashed service is not
// reported as running forever.
func (w *Writer) Clear() error {
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear status file: %w", err)
	}
	return nil
}
