package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/vibecode/playbook/internal/events"
)

func streamOf(evs ...events.Event) <-chan events.Event {
	ch := make(chan events.Event, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestRenderStreamJSON(t *testing.T) {
	var buf bytes.Buffer
	err := renderStream(&buf, streamOf(
		events.NewStart(events.PlaybookInfo{ID: "pb-1", Name: "nightly"}, events.SessionInfo{ID: "s"}),
		events.NewTaskStart("tasks", 1),
		events.NewComplete(1, 1000, 0),
	), true)
	if err != nil {
		t.Fatalf("renderStream() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for _, line := range lines {
		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Errorf("line not JSON: %q", line)
		}
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first["type"] != "start" {
		t.Errorf("first line type = %v", first["type"])
	}
}

func TestRenderStreamErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	err := renderStream(&buf, streamOf(
		events.NewStart(events.PlaybookInfo{Name: "n"}, events.SessionInfo{}),
		events.NewError("no unchecked tasks found in any document", "NO_TASKS"),
	), false)
	if err == nil {
		t.Fatal("renderStream() error = nil, want error for error event")
	}
	if !strings.Contains(err.Error(), "NO_TASKS") {
		t.Errorf("error = %v", err)
	}
}

func TestRenderStreamDrainsPastError(t *testing.T) {
	var buf bytes.Buffer
	err := renderStream(&buf, streamOf(
		events.NewError("boom", "NO_TASKS"),
		events.NewDebug("scan", "still delivered"),
	), false)
	if err == nil {
		t.Fatal("renderStream() error = nil")
	}
	if !strings.Contains(buf.String(), "still delivered") {
		t.Error("events after the error were dropped")
	}
}

func TestRenderEventHumanReadable(t *testing.T) {
	var buf bytes.Buffer
	renderEvent(&buf, events.NewTaskComplete("tasks", 2, events.TaskResult{
		Success:   true,
		Summary:   "Fixed the login bug.",
		ElapsedMs: 1500,
	}))
	out := buf.String()
	if !strings.Contains(out, "Fixed the login bug.") || !strings.Contains(out, "1.5s") {
		t.Errorf("output = %q", out)
	}

	buf.Reset()
	renderEvent(&buf, events.NewCompleteDryRun(4))
	if !strings.Contains(buf.String(), "would process 4 tasks") {
		t.Errorf("output = %q", buf.String())
	}
}
