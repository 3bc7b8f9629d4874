package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/uuid"

	"github.com/vibecode/playbook/internal/logging"
)

// collector accumulates protocol state across output lines and builds
// the final Result. One implementation exists per agent family.
type collector interface {
	Line(line string)
	Finish(exitCode int, stderr string, spawnErr error) Result
}

// Runner invokes one agent family. It is safe for sequential reuse
// across many turns; the executable path is resolved once per process.
type Runner struct {
	agentType  Type
	customPath string
	model      string
	parser     LineParser // OpenCode line parser, injectable for tests
	logger     *logging.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithCustomPath sets a user-configured executable path, preferred over
// path search when it points at a regular executable file.
func WithCustomPath(path string) Option {
	return func(r *Runner) { r.customPath = path }
}

// WithModel overrides the agent's default model.
func WithModel(model string) Option {
	return func(r *Runner) { r.model = model }
}

// WithLineParser replaces the OpenCode line parser.
func WithLineParser(p LineParser) Option {
	return func(r *Runner) { r.parser = p }
}

// WithLogger attaches a logger for invocation diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner for the given agent family.
func NewRunner(t Type, opts ...Option) *Runner {
	r := &Runner{agentType: t}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AgentType returns the agent family this runner invokes.
func (r *Runner) AgentType() Type { return r.agentType }

// Available reports whether an agent executable could be resolved.
func (r *Runner) Available() bool {
	return ResolveExecutable(r.agentType, r.customPath) != ""
}

// Invoke spawns the agent for one turn and parses its streaming output.
// All failure modes, including failure to spawn, resolve to a Result
// with Success false rather than an error.
func (r *Runner) Invoke(ctx context.Context, opts InvokeOptions) Result {
	path := ResolveExecutable(r.agentType, r.customPath)
	if path == "" {
		return Result{
			Success:   false,
			ErrorText: fmt.Sprintf("%s executable not found", r.agentType.DisplayName()),
		}
	}

	col := r.newCollector()
	args := r.buildArgs(opts)

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = opts.Workdir
	// Stdin stays closed: the agent runs in batch mode and must never
	// block on an interactive prompt.
	cmd.Stdin = nil

	splitter := newLineSplitter(col.Line)
	var stderr bytes.Buffer
	cmd.Stdout = splitter
	cmd.Stderr = &stderr

	r.logger.Debug("invoking agent",
		"agent", string(r.agentType),
		"path", path,
		"workdir", opts.Workdir,
		"resume", opts.ResumeSessionID != "",
	)

	runErr := cmd.Run()
	splitter.Flush()

	exitCode := 0
	var spawnErr error
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			spawnErr = runErr
		}
	}

	res := col.Finish(exitCode, stderr.String(), spawnErr)
	if !res.Success {
		r.logger.Warn("agent invocation failed",
			"agent", string(r.agentType),
			"exit_code", exitCode,
			"error", res.ErrorText,
		)
	}
	return res
}

func (r *Runner) newCollector() collector {
	if r.agentType == TypeOpenCode {
		return newOpencodeCollector(r.parser)
	}
	return newClaudeCollector()
}

// buildArgs assembles the command line for one turn: batch flag,
// structured streaming output, and either a fresh random conversation
// id or a resume directive for synopsis follow-ups.
func (r *Runner) buildArgs(opts InvokeOptions) []string {
	switch r.agentType {
	case TypeOpenCode:
		args := []string{"run", "--format", "json"}
		if r.model != "" {
			args = append(args, "--model", r.model)
		}
		if opts.ResumeSessionID != "" {
			args = append(args, "--session", opts.ResumeSessionID)
		}
		return append(args, opts.Prompt)

	default:
		args := []string{"--print", "--output-format", "stream-json", "--verbose", "--dangerously-skip-permissions"}
		if r.model != "" {
			args = append(args, "--model", r.model)
		}
		if opts.ResumeSessionID != "" {
			args = append(args, "--resume", opts.ResumeSessionID)
		} else {
			args = append(args, "--session-id", uuid.NewString())
		}
		return append(args, opts.Prompt)
	}
}

// failureMessage selects the most specific failure description: the
// protocol's captured error text, then the process's stderr, then the
// spawn error, then a generic exit-status message.
func failureMessage(errText, stderr string, exitCode int, spawnErr error) string {
	if errText != "" {
		return errText
	}
	if s := strings.TrimSpace(stderr); s != "" {
		return s
	}
	if spawnErr != nil {
		return spawnErr.Error()
	}
	return fmt.Sprintf("agent exited with status %d", exitCode)
}
