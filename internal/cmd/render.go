package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vibecode/playbook/internal/events"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	taskStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// renderStream consumes the engine's event stream to completion,
// printing each event. The stream is pulled to the end even when an
// individual write fails, so the engine always reaches its stop path.
func renderStream(w io.Writer, stream <-chan events.Event, asJSON bool) error {
	var failed error
	for ev := range stream {
		if asJSON {
			line, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintln(w, string(line))
		} else {
			renderEvent(w, ev)
		}
		if ev.Type == events.TypeError {
			failed = fmt.Errorf("%s (%s)", ev.Message, ev.Code)
		}
	}
	return failed
}

func renderEvent(w io.Writer, ev events.Event) {
	switch ev.Type {
	case events.TypeStart:
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("▶ %s", ev.Playbook.Name)))

	case events.TypeDocumentStart:
		label := fmt.Sprintf("── %s (%d tasks)", ev.Document, deref(ev.TaskCount))
		if ev.DryRun {
			label += " [dry-run]"
		}
		fmt.Fprintln(w, headerStyle.Render(label))

	case events.TypeTaskStart:
		fmt.Fprintln(w, taskStyle.Render(fmt.Sprintf("  task %d…", deref(ev.TaskIndex))))

	case events.TypeTaskPreview:
		fmt.Fprintf(w, "  %d. %s\n", deref(ev.TaskIndex), ev.Task)

	case events.TypeTaskComplete:
		style := successStyle
		mark := "✓"
		if ev.Success != nil && !*ev.Success {
			style = failStyle
			mark = "✗"
		}
		elapsed := time.Duration(deref64(ev.ElapsedMs)) * time.Millisecond
		fmt.Fprintln(w, style.Render(fmt.Sprintf("  %s %s (%s)", mark, ev.Summary, elapsed)))

	case events.TypeDocumentComplete:
		if !ev.DryRun {
			fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("── %s: %d tasks completed", ev.Document, deref(ev.TasksCompleted))))
		}

	case events.TypeLoopComplete:
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("↻ loop %d: %d tasks", deref(ev.Iteration), deref(ev.TasksCompleted))))

	case events.TypeComplete:
		if ev.WouldProcess != nil {
			fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("■ would process %d tasks", *ev.WouldProcess)))
			return
		}
		elapsed := time.Duration(deref64(ev.TotalElapsedMs)) * time.Millisecond
		msg := fmt.Sprintf("■ done: %d tasks in %s", deref(ev.TotalTasksCompleted), elapsed.Round(time.Second))
		if ev.TotalCost != nil {
			msg += fmt.Sprintf(" ($%.4f)", *ev.TotalCost)
		}
		fmt.Fprintln(w, headerStyle.Render(msg))

	case events.TypeError:
		fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("error: %s (%s)", ev.Message, ev.Code)))

	case events.TypeDebug:
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  [%s] %s", ev.Category, ev.Message)))

	case events.TypeVerbose:
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  [%s]\n%s", ev.Category, ev.Prompt)))

	case events.TypeHistoryWrite:
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  history: %s", ev.EntryID)))
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func deref64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
