package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vibecode/playbook/internal/activity"
	"github.com/vibecode/playbook/internal/agent"
	"github.com/vibecode/playbook/internal/events"
	"github.com/vibecode/playbook/internal/history"
	"github.com/vibecode/playbook/internal/logging"
	"github.com/vibecode/playbook/internal/prompt"
	"github.com/vibecode/playbook/internal/tasklist"
)

// Error codes surfaced on the progress stream.
const (
	// CodeNoTasks is emitted when no document holds an unchecked task at
	// run start. It is the only code that fails a run outright.
	CodeNoTasks = "NO_TASKS"
)

// Stop reasons recorded when a run reaches a normal stop.
const (
	stopLoopingDisabled = "looping disabled"
	stopMaxLoops        = "reached max loop limit"
	stopAllCompleted    = "all tasks completed"
	stopAllResetting    = "all documents reset-on-completion"
	stopNoProgress      = "no tasks processed"
)

// emitFunc delivers one event to the consumer. It returns false when
// the consumer is gone; callers must then return without cleanup.
type emitFunc func(events.Event) bool

// run is the engine state machine. It registers activity, walks the
// documents, applies the loop policy, and unregisters on every
// documented stop path.
func (e *Engine) run(ctx context.Context, opts RunOptions, emit emitFunc) {
	pb := opts.Playbook
	sess := opts.Session
	log := e.logger.WithSession(sess.ID).WithPlaybook(pb.ID)

	rec := activity.Record{
		SessionID:    sess.ID,
		PlaybookID:   pb.ID,
		PlaybookName: pb.Name,
		StartedAt:    time.Now(),
		PID:          os.Getpid(),
	}
	if err := e.registry.Register(rec); err != nil {
		log.Error("failed to register activity", "error", err)
	}

	if !emit(events.NewStart(
		events.PlaybookInfo{ID: pb.ID, Name: pb.Name},
		events.SessionInfo{ID: sess.ID, Name: sess.Name, Cwd: sess.Workdir},
	)) {
		return
	}

	if e.debug {
		if !emit(events.NewDebug("config", describePlaybook(pb))) {
			return
		}
	}

	// Initial scan. The on-disk files are the source of truth; nothing
	// is cached across agent turns.
	total := 0
	for _, doc := range pb.Documents {
		_, count, err := tasklist.CountUnchecked(opts.Folder, doc.Filename)
		if err != nil {
			log.Warn("failed to scan document", "document", doc.Filename, "error", err)
		}
		if e.debug {
			if !emit(events.NewDebug("scan", fmt.Sprintf("%s: %d unchecked tasks", doc.Filename, count))) {
				return
			}
		}
		total += count
	}

	if total == 0 {
		e.unregister(sess.ID, log)
		emit(events.NewError("no unchecked tasks found in any document", CodeNoTasks))
		return
	}

	if opts.DryRun {
		e.preview(opts, total, emit, log)
		return
	}

	e.execute(ctx, opts, emit, log)
}

// preview walks the documents without invoking the agent and reports
// what an execution run would process.
func (e *Engine) preview(opts RunOptions, total int, emit emitFunc, log *logging.Logger) {
	for i, doc := range opts.Playbook.Documents {
		_, tasks, err := tasklist.ExtractUnchecked(opts.Folder, doc.Filename)
		if err != nil {
			log.Warn("failed to read document", "document", doc.Filename, "error", err)
		}
		if len(tasks) == 0 {
			continue
		}
		if !emit(events.NewDocumentStart(doc.Filename, i, len(tasks), true)) {
			return
		}
		for j, task := range tasks {
			if !emit(events.NewTaskPreview(doc.Filename, j+1, task)) {
				return
			}
		}
		if !emit(events.NewDocumentComplete(doc.Filename, 0, true)) {
			return
		}
	}

	e.unregister(opts.Session.ID, log)
	emit(events.NewCompleteDryRun(total))
}

// execute runs the outer loop: one or more passes over the documents,
// then the continuation decision.
func (e *Engine) execute(ctx context.Context, opts RunOptions, emit emitFunc, log *logging.Logger) {
	pb := opts.Playbook
	startTime := time.Now()

	loopIdx := 0 // 0-indexed internally, reported 1-indexed
	totalCompleted := 0
	var runUsage events.UsageStats

	for {
		loopStart := time.Now()
		loopCompleted := 0
		var loopUsage events.UsageStats

		for docIdx, doc := range pb.Documents {
			completed, ok := e.processDocument(ctx, opts, doc, docIdx, loopIdx, &loopUsage, emit, log)
			if !ok {
				return
			}
			loopCompleted += completed
		}

		totalCompleted += loopCompleted
		runUsage.Add(loopUsage)

		reason := e.stopReason(opts, loopIdx, loopCompleted)
		if reason != "" {
			e.finish(opts, finalState{
				stopReason:     reason,
				loopIdx:        loopIdx,
				loopCompleted:  loopCompleted,
				loopElapsed:    time.Since(loopStart),
				loopUsage:      loopUsage,
				totalCompleted: totalCompleted,
				totalElapsed:   time.Since(startTime),
				runUsage:       runUsage,
			}, emit, log)
			return
		}

		loopEv := events.NewLoopComplete(loopIdx+1, loopCompleted, time.Since(loopStart).Milliseconds(), usageOrNil(loopUsage))
		if !emit(loopEv) {
			return
		}
		e.writeHistory(history.Entry{
			Summary:     fmt.Sprintf("Loop %d completed: %d tasks", loopIdx+1, loopCompleted),
			ProjectPath: opts.Folder,
			SessionID:   opts.Session.ID,
			Success:     true,
			ElapsedMs:   time.Since(loopStart).Milliseconds(),
			Usage:       usageOrNil(loopUsage),
		}, emit, log)

		loopIdx++
	}
}

// stopReason evaluates the loop-continuation rules in order, returning
// the first matching stop reason or "" to continue.
func (e *Engine) stopReason(opts RunOptions, loopIdx, loopCompleted int) string {
	pb := opts.Playbook

	if !pb.LoopEnabled {
		return stopLoopingDisabled
	}
	if pb.MaxLoops != nil && loopIdx+1 >= *pb.MaxLoops {
		return stopMaxLoops
	}
	if pb.HasDrivingDocument() {
		if e.drivingDocumentsDrained(opts) {
			return stopAllCompleted
		}
	} else {
		// Without this rule a playbook made entirely of self-resetting
		// documents would never terminate.
		return stopAllResetting
	}
	if loopCompleted == 0 {
		// Safety valve against a stalled agent.
		return stopNoProgress
	}
	return ""
}

// drivingDocumentsDrained reports whether every driving document
// currently shows zero unchecked tasks.
func (e *Engine) drivingDocumentsDrained(opts RunOptions) bool {
	for _, doc := range opts.Playbook.Documents {
		if doc.ResetOnCompletion {
			continue
		}
		_, count, err := tasklist.CountUnchecked(opts.Folder, doc.Filename)
		if err != nil || count > 0 {
			return false
		}
	}
	return true
}

// finalState captures the totals carried into the stop path.
type finalState struct {
	stopReason     string
	loopIdx        int
	loopCompleted  int
	loopElapsed    time.Duration
	loopUsage      events.UsageStats
	totalCompleted int
	totalElapsed   time.Duration
	runUsage       events.UsageStats
}

// finish runs the documented stop path: unregister activity, persist
// final summaries, emit the terminal complete event. The complete
// event's success flag means only that the engine reached a normal
// stop; per-task outcomes stay in the individual task_complete events.
func (e *Engine) finish(opts RunOptions, st finalState, emit emitFunc, log *logging.Logger) {
	e.unregister(opts.Session.ID, log)

	e.writeHistory(history.Entry{
		Summary:     fmt.Sprintf("Final loop %d: %d tasks (%s)", st.loopIdx+1, st.loopCompleted, st.stopReason),
		ProjectPath: opts.Folder,
		SessionID:   opts.Session.ID,
		Success:     true,
		ElapsedMs:   st.loopElapsed.Milliseconds(),
		Usage:       usageOrNil(st.loopUsage),
	}, emit, log)

	if st.loopIdx > 0 || opts.Playbook.LoopEnabled {
		e.writeHistory(history.Entry{
			Summary:     fmt.Sprintf("Run completed: %d tasks across %d loops (%s)", st.totalCompleted, st.loopIdx+1, st.stopReason),
			ProjectPath: opts.Folder,
			SessionID:   opts.Session.ID,
			Success:     true,
			ElapsedMs:   st.totalElapsed.Milliseconds(),
			Usage:       usageOrNil(st.runUsage),
		}, emit, log)
	}

	log.Info("run stopped",
		"reason", st.stopReason,
		"tasks_completed", st.totalCompleted,
		"loops", st.loopIdx+1,
	)

	emit(events.NewComplete(st.totalCompleted, st.totalElapsed.Milliseconds(), st.runUsage.CostUSD))
}

// processDocument drains one document's unchecked tasks. Returns the
// number of tasks completed and false when the consumer went away.
func (e *Engine) processDocument(ctx context.Context, opts RunOptions, doc DocumentRef, docIdx, loopIdx int, loopUsage *events.UsageStats, emit emitFunc, log *logging.Logger) (int, bool) {
	content, tasks, err := tasklist.ExtractUnchecked(opts.Folder, doc.Filename)
	if err != nil {
		log.Warn("failed to read document", "document", doc.Filename, "error", err)
	}
	remaining := len(tasks)
	if remaining == 0 {
		return 0, true
	}

	if !emit(events.NewDocumentStart(doc.Filename, docIdx, remaining, false)) {
		return 0, false
	}

	docName := doc.Filename
	e.updateActivity(opts.Session.ID, activity.Update{CurrentDocument: &docName}, log)

	docCompleted := 0
	taskIdx := 1
	prev := remaining
	stalled := 0

	for remaining > 0 {
		taskText := ""
		if len(tasks) > 0 {
			taskText = tasks[0]
		}
		e.updateActivity(opts.Session.ID, activity.Update{CurrentTask: &taskText}, log)

		if !emit(events.NewTaskStart(doc.Filename, taskIdx)) {
			return docCompleted, false
		}

		turn, ok := e.runTurn(ctx, opts, doc, loopIdx, content, emit)
		if !ok {
			return docCompleted, false
		}

		// Re-read the file: the agent may have completed zero, one, or
		// many tasks this turn. Trust the decrease, not an assumption.
		var after int
		content, tasks, err = tasklist.ExtractUnchecked(opts.Folder, doc.Filename)
		if err != nil {
			log.Warn("failed to re-read document", "document", doc.Filename, "error", err)
		}
		after = len(tasks)

		completed := prev - after
		if completed < 0 {
			completed = 0
		}
		docCompleted += completed
		if completed == 0 {
			stalled++
		}

		if turn.usage != nil {
			loopUsage.Add(*turn.usage)
		}

		if !emit(events.NewTaskComplete(doc.Filename, taskIdx, turn.result)) {
			return docCompleted, false
		}

		e.writeHistory(history.Entry{
			Summary:     turn.result.Summary,
			Detail:      turn.result.FullResponse,
			ProjectPath: opts.Folder,
			SessionID:   opts.Session.ID,
			Success:     turn.result.Success,
			ElapsedMs:   turn.result.ElapsedMs,
			Usage:       turn.result.Usage,
		}, emit, log)

		// Each zero-progress turn permanently burns one slot, so a
		// stalled agent cannot pin the run inside one document.
		prev = after
		remaining = after - stalled
		taskIdx++
	}

	if doc.ResetOnCompletion && docCompleted > 0 {
		raw, err := tasklist.Read(opts.Folder, doc.Filename)
		if err == nil && raw != "" {
			reset := tasklist.ResetAllChecked(raw)
			if err := tasklist.Write(opts.Folder, doc.Filename+".md", reset); err != nil {
				log.Warn("failed to reset document", "document", doc.Filename, "error", err)
			} else if e.debug {
				_, count, _ := tasklist.CountUnchecked(opts.Folder, doc.Filename)
				if !emit(events.NewDebug("reset", fmt.Sprintf("%s reset to %d unchecked tasks", doc.Filename, count))) {
					return docCompleted, false
				}
			}
		}
	}

	if !emit(events.NewDocumentComplete(doc.Filename, docCompleted, false)) {
		return docCompleted, false
	}
	return docCompleted, true
}

// turnOutcome carries one agent turn's result and the usage charged to
// the run accumulators (primary call plus synopsis follow-up).
type turnOutcome struct {
	result events.TaskResult
	usage  *events.UsageStats
}

// runTurn performs the primary agent invocation for one task and, on
// success, the synopsis follow-up on the same conversation.
func (e *Engine) runTurn(ctx context.Context, opts RunOptions, doc DocumentRef, loopIdx int, content string, emit emitFunc) (turnOutcome, bool) {
	pctx := prompt.Context{
		SessionID:   opts.Session.ID,
		SessionName: opts.Session.Name,
		Workdir:     opts.Session.Workdir,
		Branch:      e.branch(opts),
		GroupName:   opts.Session.GroupName,
		Folder:      opts.Folder,
		LoopNumber:  loopIdx + 1,
		DocName:     doc.Filename,
		DocPath:     absDocPath(opts.Folder, doc.Filename),
	}

	expanded := prompt.Expand(content, pctx)
	if expanded != content {
		// Persist before invoking so the agent observes resolved paths,
		// not template tokens.
		if err := tasklist.Write(opts.Folder, doc.Filename+".md", expanded); err != nil {
			e.logger.Warn("failed to persist expanded document", "document", doc.Filename, "error", err)
		}
	}

	fullPrompt := prompt.Expand(opts.Playbook.PromptTemplate, pctx) + "\n\n" + expanded

	if e.verbose {
		if !emit(events.NewVerbose("prompt", fullPrompt)) {
			return turnOutcome{}, false
		}
	}

	turnStart := time.Now()
	res := e.adapter.Invoke(ctx, agent.InvokeOptions{
		Workdir: opts.Folder,
		Prompt:  fullPrompt,
	})
	elapsed := time.Since(turnStart)

	usage := &events.UsageStats{}
	if res.Usage != nil {
		usage.Add(*res.Usage)
	}

	summary, detail := e.synopsis(ctx, opts, res, usage)

	out := turnOutcome{
		result: events.TaskResult{
			Success:        res.Success,
			Summary:        summary,
			FullResponse:   detail,
			ElapsedMs:      elapsed.Milliseconds(),
			Usage:          res.Usage,
			AgentSessionID: res.AgentSessionID,
		},
	}
	if !usage.IsZero() {
		out.usage = usage
	}
	return out, true
}

// synopsis asks the agent to summarize what it just did, resuming the
// same conversation. Failures fall back to a synthesized summary.
func (e *Engine) synopsis(ctx context.Context, opts RunOptions, res agent.Result, usage *events.UsageStats) (string, string) {
	if !res.Success {
		msg := res.ErrorText
		if msg == "" {
			msg = "agent invocation failed"
		}
		return "Task failed: " + firstLine(msg), msg
	}

	if res.AgentSessionID == "" {
		return synthesizeSummary(res.Response), res.Response
	}

	follow := e.adapter.Invoke(ctx, agent.InvokeOptions{
		Workdir:         opts.Folder,
		Prompt:          synopsisPrompt,
		ResumeSessionID: res.AgentSessionID,
	})
	if follow.Usage != nil {
		usage.Add(*follow.Usage)
	}
	if !follow.Success || strings.TrimSpace(follow.Response) == "" {
		return synthesizeSummary(res.Response), res.Response
	}

	return deriveSynopsis(follow.Response)
}

func (e *Engine) branch(opts RunOptions) string {
	if e.branchFn != nil {
		return e.branchFn(opts.Session.Workdir)
	}
	return ""
}

func (e *Engine) unregister(sessionID string, log *logging.Logger) {
	if err := e.registry.Unregister(sessionID); err != nil {
		log.Warn("failed to unregister activity", "error", err)
	}
}

func (e *Engine) updateActivity(sessionID string, upd activity.Update, log *logging.Logger) {
	if err := e.registry.UpdateSession(sessionID, upd); err != nil {
		log.Warn("failed to update activity", "error", err)
	}
}

// writeHistory persists a history entry best-effort and emits a
// history_write event on success. Failures are logged and ignored; they
// must never abort an in-progress run.
func (e *Engine) writeHistory(entry history.Entry, emit emitFunc, log *logging.Logger) {
	if e.hist == nil {
		return
	}
	id, err := e.hist.Write(entry)
	if err != nil {
		log.Warn("failed to write history entry", "error", err)
		return
	}
	emit(events.NewHistoryWrite(id))
}

func describePlaybook(pb Playbook) string {
	var b strings.Builder
	fmt.Fprintf(&b, "playbook %s (%s): %d documents, loop=%v", pb.ID, pb.Name, len(pb.Documents), pb.LoopEnabled)
	if pb.MaxLoops != nil {
		fmt.Fprintf(&b, ", maxLoops=%d", *pb.MaxLoops)
	}
	for _, doc := range pb.Documents {
		fmt.Fprintf(&b, "; %s", doc.Filename)
		if doc.ResetOnCompletion {
			b.WriteString(" (reset)")
		}
	}
	return b.String()
}

func absDocPath(folder, name string) string {
	path := filepath.Join(folder, name+".md")
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func usageOrNil(u events.UsageStats) *events.UsageStats {
	if u.IsZero() {
		return nil
	}
	return &u
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return s
}
