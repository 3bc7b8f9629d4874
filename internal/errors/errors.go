// Package errors provides centralized error definitions for the
// playbook codebase: sentinel errors for run preconditions, a domain
// error type for agent failures, and re-exports of the standard
// library helpers so callers import only this package.
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors for run preconditions.
var (
	// ErrNoTasks is returned when a playbook has no unchecked tasks at
	// run start. It is the only condition that fails a run outright.
	ErrNoTasks = errors.New("no unchecked tasks found in any document")

	// ErrRunActive is returned when the activity registry reports a
	// live run for the same session.
	ErrRunActive = errors.New("a run is already active for this session")

	// ErrAgentUnavailable is returned when no agent executable could be
	// resolved.
	ErrAgentUnavailable = errors.New("agent executable not found")
)

// RunError wraps a fatal run-level failure with an error code that is
// surfaced on the progress stream.
type RunError struct {
	Code    string
	Message string
	Err     error
}

// NewRunError creates a RunError wrapping an underlying cause.
func NewRunError(code, message string, err error) *RunError {
	return &RunError{Code: code, Message: message, Err: err}
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RunError) Unwrap() error { return e.Err }

// AgentError describes a failed agent invocation. It is recorded on the
// task's completion event and in history, never propagated out of the
// engine loop.
type AgentError struct {
	Agent   string
	Message string
	Err     error
}

// NewAgentError creates an AgentError for the named agent type.
func NewAgentError(agent, message string, err error) *AgentError {
	return &AgentError{Agent: agent, Message: message, Err: err}
}

func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent %s: %s: %v", e.Agent, e.Message, e.Err)
	}
	return fmt.Sprintf("agent %s: %s", e.Agent, e.Message)
}

func (e *AgentError) Unwrap() error { return e.Err }
