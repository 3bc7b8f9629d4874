// Package activity persists "a run is active for session X" claims in a
// small JSON file and mediates mutual exclusion across processes. A
// record's owning process is probed with a zero-effect existence signal;
// records whose owner died are reclaimed on the next probe, so a crashed
// run never wedges its session permanently.
package activity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is a persisted claim that a session has an active run.
type Record struct {
	SessionID       string    `json:"sessionId"`
	PlaybookID      string    `json:"playbookId"`
	PlaybookName    string    `json:"playbookName"`
	StartedAt       time.Time `json:"startedAt"`
	PID             int       `json:"pid"`
	CurrentTask     string    `json:"currentTask,omitempty"`
	CurrentDocument string    `json:"currentDocument,omitempty"`
}

// Update describes a partial merge applied to an existing record.
// Nil fields are left unchanged.
type Update struct {
	CurrentTask     *string
	CurrentDocument *string
}

// Registry is a file-backed activity registry. The backing file holds a
// JSON array of records, at most one per session id.
type Registry struct {
	path string
	mu   sync.Mutex
}

// NewRegistry creates a Registry backed by the given file path.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Register records an active run for the session, replacing any
// existing record for the same session id.
func (r *Registry) Register(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	records = removeSession(records, rec.SessionID)
	records = append(records, rec)
	return r.save(records)
}

// UpdateSession merges a partial update into the session's record.
// No-op if the session has no record.
func (r *Registry) UpdateSession(sessionID string, upd Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	changed := false
	for i := range records {
		if records[i].SessionID != sessionID {
			continue
		}
		if upd.CurrentTask != nil {
			records[i].CurrentTask = *upd.CurrentTask
		}
		if upd.CurrentDocument != nil {
			records[i].CurrentDocument = *upd.CurrentDocument
		}
		changed = true
	}
	if !changed {
		return nil
	}
	return r.save(records)
}

// Unregister deletes the session's record. Safe to call when no record
// exists.
func (r *Registry) Unregister(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	trimmed := removeSession(records, sessionID)
	if len(trimmed) == len(records) {
		return nil
	}
	return r.save(trimmed)
}

// IsBusy reports whether the session has a live run. A record whose
// owning process no longer exists is treated as not busy and deleted so
// the registry self-heals after crashed owners.
func (r *Registry) IsBusy(sessionID string) (bool, *Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return false, nil, err
	}
	for i := range records {
		if records[i].SessionID != sessionID {
			continue
		}
		if isProcessAlive(records[i].PID) {
			rec := records[i]
			return true, &rec, nil
		}
		// Stale record - owner is gone
		if err := r.save(removeSession(records, sessionID)); err != nil {
			return false, nil, err
		}
		return false, nil, nil
	}
	return false, nil, nil
}

// List returns all records currently in the registry, including ones
// whose owners may be dead. Callers that need liveness use IsBusy.
func (r *Registry) List() ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *Registry) load() ([]Record, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read activity file: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		// A corrupt registry must not block runs; start fresh.
		return nil, nil
	}
	return records, nil
}

func (r *Registry) save(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal activity records: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("create activity directory: %w", err)
	}
	return atomicWriteFile(r.path, data, 0644)
}

// atomicWriteFile writes to a temp file in the same directory and
// renames it into place, so readers never observe a partial write.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".activity-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func removeSession(records []Record, sessionID string) []Record {
	out := records[:0:0]
	for _, rec := range records {
		if rec.SessionID != sessionID {
			out = append(out, rec)
		}
	}
	return out
}
