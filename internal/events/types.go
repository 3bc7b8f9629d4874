// Package events defines the progress event stream emitted by the
// execution engine. Events are tagged, timestamped, append-only records
// produced in strict chronological order; each serializes to a single
// JSON object carrying only the fields relevant to its type.
package events

import (
	"time"
)

// Type identifies the kind of a progress event.
type Type string

const (
	// TypeStart is emitted once when a run begins.
	TypeStart Type = "start"
	// TypeDocumentStart is emitted before a document's tasks are processed.
	TypeDocumentStart Type = "document_start"
	// TypeTaskStart is emitted before each agent turn.
	TypeTaskStart Type = "task_start"
	// TypeTaskPreview is emitted per task in dry-run mode.
	TypeTaskPreview Type = "task_preview"
	// TypeTaskComplete is emitted after each agent turn.
	TypeTaskComplete Type = "task_complete"
	// TypeDocumentComplete is emitted after a document's tasks are drained.
	TypeDocumentComplete Type = "document_complete"
	// TypeLoopComplete is emitted at each loop boundary when another pass follows.
	TypeLoopComplete Type = "loop_complete"
	// TypeComplete is the terminal event of a run.
	TypeComplete Type = "complete"
	// TypeError reports a fatal run error.
	TypeError Type = "error"
	// TypeDebug carries opt-in diagnostic detail.
	TypeDebug Type = "debug"
	// TypeVerbose carries opt-in prompt/response dumps.
	TypeVerbose Type = "verbose"
	// TypeHistoryWrite reports that a history entry was persisted.
	TypeHistoryWrite Type = "history_write"
)

// UsageStats aggregates token and cost accounting across agent turns.
type UsageStats struct {
	InputTokens         int64   `json:"inputTokens"`
	OutputTokens        int64   `json:"outputTokens"`
	CacheReadTokens     int64   `json:"cacheReadTokens"`
	CacheCreationTokens int64   `json:"cacheCreationTokens"`
	CostUSD             float64 `json:"costUSD"`
	ContextWindow       int64   `json:"contextWindow,omitempty"`
	ReasoningTokens     *int64  `json:"reasoningTokens,omitempty"`
}

// Add merges another usage sample into s. Token counts and cost sum,
// the context window takes the maximum, and reasoning tokens are
// carried only if either side reports them.
func (s *UsageStats) Add(other UsageStats) {
	s.InputTokens += other.InputTokens
	s.OutputTokens += other.OutputTokens
	s.CacheReadTokens += other.CacheReadTokens
	s.CacheCreationTokens += other.CacheCreationTokens
	s.CostUSD += other.CostUSD
	if other.ContextWindow > s.ContextWindow {
		s.ContextWindow = other.ContextWindow
	}
	if other.ReasoningTokens != nil {
		total := *other.ReasoningTokens
		if s.ReasoningTokens != nil {
			total += *s.ReasoningTokens
		}
		s.ReasoningTokens = &total
	}
}

// IsZero reports whether no usage has been recorded.
func (s UsageStats) IsZero() bool {
	return s.InputTokens == 0 && s.OutputTokens == 0 &&
		s.CacheReadTokens == 0 && s.CacheCreationTokens == 0 &&
		s.CostUSD == 0 && s.ContextWindow == 0 && s.ReasoningTokens == nil
}

// PlaybookInfo identifies the playbook a run is executing.
type PlaybookInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionInfo identifies the session that owns a run.
type SessionInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Cwd  string `json:"cwd"`
}

// Event is one record of the progress stream. Fields other than Type
// and Timestamp are populated per type and omitted otherwise.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// start
	Playbook *PlaybookInfo `json:"playbook,omitempty"`
	Session  *SessionInfo  `json:"session,omitempty"`

	// document_start / task_* / document_complete
	Document  string `json:"document,omitempty"`
	Index     *int   `json:"index,omitempty"`
	TaskCount *int   `json:"taskCount,omitempty"`
	TaskIndex *int   `json:"taskIndex,omitempty"`
	Task      string `json:"task,omitempty"`
	DryRun    bool   `json:"dryRun,omitempty"`

	// task_complete
	Success        *bool       `json:"success,omitempty"`
	Summary        string      `json:"summary,omitempty"`
	FullResponse   string      `json:"fullResponse,omitempty"`
	ElapsedMs      *int64      `json:"elapsedMs,omitempty"`
	Usage          *UsageStats `json:"usageStats,omitempty"`
	AgentSessionID string      `json:"agentSessionId,omitempty"`

	// document_complete / loop_complete / complete
	TasksCompleted      *int     `json:"tasksCompleted,omitempty"`
	Iteration           *int     `json:"iteration,omitempty"`
	TotalTasksCompleted *int     `json:"totalTasksCompleted,omitempty"`
	TotalElapsedMs      *int64   `json:"totalElapsedMs,omitempty"`
	TotalCost           *float64 `json:"totalCost,omitempty"`
	WouldProcess        *int     `json:"wouldProcess,omitempty"`

	// error
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`

	// debug / verbose
	Category string `json:"category,omitempty"`
	Prompt   string `json:"prompt,omitempty"`

	// history_write
	EntryID string `json:"entryId,omitempty"`
}

func newEvent(t Type) Event {
	return Event{Type: t, Timestamp: time.Now()}
}

func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }
func boolPtr(v bool) *bool        { return &v }
func floatPtr(v float64) *float64 { return &v }

// NewStart creates the run start event.
func NewStart(pb PlaybookInfo, sess SessionInfo) Event {
	e := newEvent(TypeStart)
	e.Playbook = &pb
	e.Session = &sess
	return e
}

// NewDocumentStart creates a document_start event. index is the
// document's position in playbook order.
func NewDocumentStart(document string, index, taskCount int, dryRun bool) Event {
	e := newEvent(TypeDocumentStart)
	e.Document = document
	e.Index = intPtr(index)
	e.TaskCount = intPtr(taskCount)
	e.DryRun = dryRun
	return e
}

// NewTaskStart creates a task_start event.
func NewTaskStart(document string, taskIndex int) Event {
	e := newEvent(TypeTaskStart)
	e.Document = document
	e.TaskIndex = intPtr(taskIndex)
	return e
}

// NewTaskPreview creates a task_preview event for dry-run mode.
func NewTaskPreview(document string, taskIndex int, task string) Event {
	e := newEvent(TypeTaskPreview)
	e.Document = document
	e.TaskIndex = intPtr(taskIndex)
	e.Task = task
	return e
}

// TaskResult carries the per-turn outcome for a task_complete event.
type TaskResult struct {
	Success        bool
	Summary        string
	FullResponse   string
	ElapsedMs      int64
	Usage          *UsageStats
	AgentSessionID string
}

// NewTaskComplete creates a task_complete event.
func NewTaskComplete(document string, taskIndex int, res TaskResult) Event {
	e := newEvent(TypeTaskComplete)
	e.Document = document
	e.TaskIndex = intPtr(taskIndex)
	e.Success = boolPtr(res.Success)
	e.Summary = res.Summary
	e.FullResponse = res.FullResponse
	e.ElapsedMs = int64Ptr(res.ElapsedMs)
	e.Usage = res.Usage
	e.AgentSessionID = res.AgentSessionID
	return e
}

// NewDocumentComplete creates a document_complete event.
func NewDocumentComplete(document string, tasksCompleted int, dryRun bool) Event {
	e := newEvent(TypeDocumentComplete)
	e.Document = document
	e.TasksCompleted = intPtr(tasksCompleted)
	e.DryRun = dryRun
	return e
}

// NewLoopComplete creates a loop_complete event. iteration is 1-indexed.
func NewLoopComplete(iteration, tasksCompleted int, elapsedMs int64, usage *UsageStats) Event {
	e := newEvent(TypeLoopComplete)
	e.Iteration = intPtr(iteration)
	e.TasksCompleted = intPtr(tasksCompleted)
	e.ElapsedMs = int64Ptr(elapsedMs)
	e.Usage = usage
	return e
}

// NewComplete creates the terminal complete event for an executed run.
func NewComplete(totalTasksCompleted int, totalElapsedMs int64, totalCost float64) Event {
	e := newEvent(TypeComplete)
	e.Success = boolPtr(true)
	e.TotalTasksCompleted = intPtr(totalTasksCompleted)
	e.TotalElapsedMs = int64Ptr(totalElapsedMs)
	if totalCost > 0 {
		e.TotalCost = floatPtr(totalCost)
	}
	return e
}

// NewCompleteDryRun creates the terminal complete event for a preview run.
func NewCompleteDryRun(wouldProcess int) Event {
	e := newEvent(TypeComplete)
	e.Success = boolPtr(true)
	e.DryRun = true
	e.WouldProcess = intPtr(wouldProcess)
	return e
}

// NewError creates a fatal error event.
func NewError(message, code string) Event {
	e := newEvent(TypeError)
	e.Message = message
	e.Code = code
	return e
}

// NewDebug creates a diagnostic event.
func NewDebug(category, message string) Event {
	e := newEvent(TypeDebug)
	e.Category = category
	e.Message = message
	return e
}

// NewVerbose creates a prompt-dump event.
func NewVerbose(category, prompt string) Event {
	e := newEvent(TypeVerbose)
	e.Category = category
	e.Prompt = prompt
	return e
}

// NewHistoryWrite reports a persisted history entry.
func NewHistoryWrite(entryID string) Event {
	e := newEvent(TypeHistoryWrite)
	e.EntryID = entryID
	return e
}
