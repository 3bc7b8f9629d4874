// Package engine drives an external coding agent through a playbook's
// task documents: it drains unchecked tasks document by document, loops
// until a termination rule fires, and emits a progress event stream.
//
// The engine is strictly sequential. Every decision about how many
// tasks remain is made by re-reading the document from disk, because
// the agent itself edits the file and may complete zero, one, or many
// tasks per turn.
package engine

import (
	"context"

	"github.com/vibecode/playbook/internal/activity"
	"github.com/vibecode/playbook/internal/agent"
	"github.com/vibecode/playbook/internal/events"
	"github.com/vibecode/playbook/internal/gitutil"
	"github.com/vibecode/playbook/internal/history"
	"github.com/vibecode/playbook/internal/logging"
)

// Adapter abstracts the agent process runner so tests can substitute a
// scripted agent.
type Adapter interface {
	// Invoke runs one agent turn. All failures resolve to a Result with
	// Success false, never an error.
	Invoke(ctx context.Context, opts agent.InvokeOptions) agent.Result
	// Available reports whether an agent executable was resolved.
	Available() bool
}

// Session identifies the logical session that owns a run.
type Session struct {
	ID        string
	Name      string
	Workdir   string
	GroupName string
}

// RunOptions configures one engine run.
type RunOptions struct {
	Playbook Playbook
	Session  Session
	// Folder is the directory holding the playbook's task documents
	Folder string
	// DryRun previews tasks without invoking the agent
	DryRun bool
}

// Engine composes the task-list store, the agent adapter, and the
// activity registry into the end-to-end run loop.
type Engine struct {
	registry *activity.Registry
	adapter  Adapter
	hist     history.Writer
	logger   *logging.Logger
	branchFn func(dir string) string
	debug    bool
	verbose  bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithHistory attaches a history writer. History writes are
// best-effort: failures are logged and never abort a run.
func WithHistory(w history.Writer) EngineOption {
	return func(e *Engine) { e.hist = w }
}

// WithLogger attaches a structured logger.
func WithLogger(l *logging.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithDebug emits debug events on the progress stream.
func WithDebug(enabled bool) EngineOption {
	return func(e *Engine) { e.debug = enabled }
}

// WithVerbose emits expanded prompts on the progress stream.
func WithVerbose(enabled bool) EngineOption {
	return func(e *Engine) { e.verbose = enabled }
}

// WithBranchDetector replaces source-control branch detection.
func WithBranchDetector(fn func(dir string) string) EngineOption {
	return func(e *Engine) { e.branchFn = fn }
}

// New creates an Engine.
func New(registry *activity.Registry, adapter Adapter, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		adapter:  adapter,
		branchFn: gitutil.CurrentBranch,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the playbook and returns a lazy, finite, forward-only
// event stream. The producing goroutine blocks on an unbuffered channel
// until the consumer pulls each event; a consumer that abandons the
// stream mid-run (or cancels ctx) skips the engine's own cleanup,
// leaving the activity record for the liveness probe to reclaim.
func (e *Engine) Run(ctx context.Context, opts RunOptions) <-chan events.Event {
	ch := make(chan events.Event)

	go func() {
		defer close(ch)

		emit := func(ev events.Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		e.run(ctx, opts, emit)
	}()

	return ch
}
