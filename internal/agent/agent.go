// Package agent spawns the external AI coding assistant and converses
// with it over a structured streaming output protocol. Two agent
// families are supported, each with its own line protocol; both resolve
// to the same Result shape so callers never branch on agent type.
package agent

import (
	"fmt"
	"strings"

	"github.com/vibecode/playbook/internal/events"
)

// Type identifies a supported agent family.
type Type string

const (
	// TypeClaude is the Claude Code CLI, speaking stream-json.
	TypeClaude Type = "claude"
	// TypeOpenCode is the OpenCode CLI, speaking its JSON event stream.
	TypeOpenCode Type = "opencode"
)

// ParseType normalizes a configured agent type string.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(TypeClaude), "":
		return TypeClaude, nil
	case string(TypeOpenCode):
		return TypeOpenCode, nil
	default:
		return "", fmt.Errorf("unknown agent type: %q", s)
	}
}

// executableName returns the binary name searched for on the path.
func (t Type) executableName() string {
	switch t {
	case TypeOpenCode:
		return "opencode"
	default:
		return "claude"
	}
}

// DisplayName returns the human-readable agent name.
func (t Type) DisplayName() string {
	switch t {
	case TypeOpenCode:
		return "OpenCode"
	default:
		return "Claude"
	}
}

// InvokeOptions configures a single agent invocation.
type InvokeOptions struct {
	// Workdir is the working directory the agent runs in
	Workdir string
	// Prompt is the full prompt text for this turn
	Prompt string
	// ResumeSessionID resumes a prior conversation instead of starting a
	// fresh one. Used only for synopsis follow-ups; ordinary task turns
	// use a fresh random conversation id so context never bleeds between
	// unrelated tasks.
	ResumeSessionID string
	// Model overrides the agent's default model, when set
	Model string
}

// Result is the structured outcome of one agent invocation. A failure
// to spawn at all resolves to the same shape as a run-and-failed
// invocation; callers never need to distinguish the two.
type Result struct {
	Success bool
	// Response is the agent's final response text, when any was captured
	Response string
	// AgentSessionID is the conversation id usable for a follow-up turn
	AgentSessionID string
	// Usage carries token and cost accounting, when reported
	Usage *events.UsageStats
	// ErrorText describes the failure when Success is false
	ErrorText string
}
