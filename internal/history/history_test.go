package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vibecode/playbook/internal/events"
)

func TestFileStoreWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "history")
	store := NewFileStore(dir)

	id, err := store.Write(Entry{
		Summary:     "Completed 3 tasks",
		ProjectPath: "/home/dev/api",
		SessionID:   "sess-1",
		Success:     true,
		ElapsedMs:   1200,
		Usage:       &events.UsageStats{InputTokens: 100, CostUSD: 0.5},
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if id == "" {
		t.Fatal("Write() returned empty id")
	}

	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		t.Fatalf("read entry file: %v", err)
	}

	var got Entry
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	if got.ID != id {
		t.Errorf("ID = %q, want %q", got.ID, id)
	}
	if got.Type != EntryTypeAuto {
		t.Errorf("Type = %q, want %q", got.Type, EntryTypeAuto)
	}
	if got.Timestamp.IsZero() {
		t.Error("Timestamp not assigned")
	}
	if got.Summary != "Completed 3 tasks" || !got.Success || got.ElapsedMs != 1200 {
		t.Errorf("entry = %+v", got)
	}
	if got.Usage == nil || got.Usage.InputTokens != 100 {
		t.Errorf("Usage = %+v", got.Usage)
	}
}

func TestFileStorePreservesCallerID(t *testing.T) {
	store := NewFileStore(t.TempDir())

	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	id, err := store.Write(Entry{ID: "fixed-id", Timestamp: when, Summary: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if id != "fixed-id" {
		t.Errorf("id = %q, want %q", id, "fixed-id")
	}
}

func TestFileStoreDistinctIDs(t *testing.T) {
	store := NewFileStore(t.TempDir())

	a, err := store.Write(Entry{Summary: "a"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := store.Write(Entry{Summary: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("both writes assigned id %q", a)
	}
}
