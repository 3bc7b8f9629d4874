// Package history persists run history records as one JSON file per
// entry. Writes are best-effort by contract: the engine logs failures
// and keeps running, so history availability never affects a run.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vibecode/playbook/internal/events"
)

// EntryTypeAuto tags entries written by the batch engine.
const EntryTypeAuto = "AUTO"

// Entry is one persisted history record.
type Entry struct {
	ID          string             `json:"id"`
	Type        string             `json:"type"`
	Timestamp   time.Time          `json:"timestamp"`
	Summary     string             `json:"summary"`
	Detail      string             `json:"detail,omitempty"`
	ProjectPath string             `json:"projectPath"`
	SessionID   string             `json:"sessionId"`
	Success     bool               `json:"success"`
	ElapsedMs   int64              `json:"elapsedMs"`
	Usage       *events.UsageStats `json:"usageStats,omitempty"`
}

// Writer persists history entries. Implementations must tolerate being
// called from a long-running loop; errors are reported, not retried.
type Writer interface {
	// Write persists the entry and returns its assigned id.
	Write(entry Entry) (string, error)
}

// FileStore writes each entry as a JSON file under a base directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory is
// created lazily on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Write persists the entry, assigning a fresh id and timestamp when the
// caller left them empty.
func (s *FileStore) Write(entry Entry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Type == "" {
		entry.Type = EntryTypeAuto
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal history entry: %w", err)
	}

	path := filepath.Join(s.dir, entry.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write history entry: %w", err)
	}
	return entry.ID, nil
}
