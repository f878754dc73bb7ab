package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/venatordev/venator/internal/models"
)

const registryFileName = "session.json"

// SessionRegistry persists the debug endpoint of the running browser process
// so later invocations can attach instead of launching a second one. The
// registry is advisory: a record is only trusted after the endpoint it names
// passes a liveness probe.
type SessionRegistry struct {
	path   string
	logger arbor.ILogger
}

// NewSessionRegistry creates a registry backed by session.json in stateDir.
func NewSessionRegistry(stateDir string, logger arbor.ILogger) *SessionRegistry {
	return &SessionRegistry{
		path:   filepath.Join(stateDir, registryFileName),
		logger: logger,
	}
}

// Load reads the stored session record. A missing file returns (nil, nil).
// A corrupt file is treated as absent and removed, since a record that
// cannot be parsed can never pass verification anyway.
func (r *SessionRegistry) Load() (*models.SessionRecord, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session registry: %w", err)
	}

	var record models.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		r.logger.Warn().Err(err).Str("path", r.path).Msg("Discarding corrupt session registry")
		_ = os.Remove(r.path)
		return nil, nil
	}

	if record.Endpoint == "" || record.Port <= 0 {
		r.logger.Warn().Str("path", r.path).Msg("Discarding incomplete session registry")
		_ = os.Remove(r.path)
		return nil, nil
	}

	return &record, nil
}

// Save writes the session record atomically (temp file then rename) so a
// crash mid-write never leaves a truncated registry behind.
func (r *SessionRegistry) Save(record *models.SessionRecord) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write session registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace session registry: %w", err)
	}

	r.logger.Debug().Str("endpoint", record.Endpoint).Int("port", record.Port).Msg("Session registry saved")
	return nil
}

// Clear removes the registry file. Absence is not an error.
func (r *SessionRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear session registry: %w", err)
	}
	return nil
}
