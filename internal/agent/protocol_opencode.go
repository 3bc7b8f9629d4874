package agent

import (
	"encoding/json"
	"strings"

	"github.com/vibecode/playbook/internal/events"
)

// StreamEventKind tags events produced by a LineParser.
type StreamEventKind int

const (
	// KindInit carries the conversation id of a new session.
	KindInit StreamEventKind = iota
	// KindResult carries a chunk of final response text.
	KindResult
	// KindError carries an error message from the agent.
	KindError
	// KindUsage carries a usage sample to merge into the running total.
	KindUsage
)

// StreamEvent is one typed event parsed from an output line.
type StreamEvent struct {
	Kind      StreamEventKind
	SessionID string
	Text      string
	Usage     *events.UsageStats
}

// LineParser turns one raw output line into a typed stream event.
// Implementations return ok=false for lines that carry no event;
// malformed lines are skipped the same way, never treated as fatal.
type LineParser interface {
	ParseLine(line string) (StreamEvent, bool)
}

// opencodeCollector accumulates Protocol B state: the first init event
// wins the session id, result events are concatenated with newline
// separators across the whole invocation, the first error text is
// captured, and usage samples merge additively.
type opencodeCollector struct {
	parser    LineParser
	sessionID string
	results   []string
	errText   string
	usage     *events.UsageStats
}

func newOpencodeCollector(parser LineParser) *opencodeCollector {
	if parser == nil {
		parser = OpencodeLineParser{}
	}
	return &opencodeCollector{parser: parser}
}

func (c *opencodeCollector) Line(line string) {
	ev, ok := c.parser.ParseLine(line)
	if !ok {
		return
	}
	switch ev.Kind {
	case KindInit:
		if c.sessionID == "" && ev.SessionID != "" {
			c.sessionID = ev.SessionID
		}
	case KindResult:
		c.results = append(c.results, ev.Text)
	case KindError:
		if c.errText == "" && ev.Text != "" {
			c.errText = ev.Text
		}
	case KindUsage:
		if ev.Usage != nil {
			if c.usage == nil {
				c.usage = &events.UsageStats{}
			}
			c.usage.Add(*ev.Usage)
		}
	}
}

// Finish builds the invocation result from collected state.
func (c *opencodeCollector) Finish(exitCode int, stderr string, spawnErr error) Result {
	res := Result{
		Response:       strings.Join(c.results, "\n"),
		AgentSessionID: c.sessionID,
		Usage:          c.usage,
	}

	if spawnErr == nil && exitCode == 0 && c.errText == "" {
		res.Success = true
		return res
	}

	res.ErrorText = failureMessage(c.errText, stderr, exitCode, spawnErr)
	return res
}

// OpencodeLineParser parses the OpenCode CLI's JSON event lines.
type OpencodeLineParser struct{}

type opencodeLine struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionID"`
	Part      *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"part"`
	Error *struct {
		Name string `json:"name"`
		Data struct {
			Message string `json:"message"`
		} `json:"data"`
	} `json:"error"`
	Tokens *struct {
		Input     int64 `json:"input"`
		Output    int64 `json:"output"`
		Reasoning int64 `json:"reasoning"`
		Cache     struct {
			Read  int64 `json:"read"`
			Write int64 `json:"write"`
		} `json:"cache"`
	} `json:"tokens"`
	Cost          float64 `json:"cost"`
	ContextWindow int64   `json:"contextWindow"`
}

// ParseLine implements LineParser.
func (OpencodeLineParser) ParseLine(line string) (StreamEvent, bool) {
	var rec opencodeLine
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return StreamEvent{}, false
	}

	switch rec.Type {
	case "session.init", "init":
		if rec.SessionID == "" {
			return StreamEvent{}, false
		}
		return StreamEvent{Kind: KindInit, SessionID: rec.SessionID}, true

	case "text", "result":
		if rec.Part != nil && rec.Part.Type == "text" {
			return StreamEvent{Kind: KindResult, Text: rec.Part.Text}, true
		}
		return StreamEvent{}, false

	case "error":
		msg := ""
		if rec.Error != nil {
			msg = rec.Error.Data.Message
			if msg == "" {
				msg = rec.Error.Name
			}
		}
		return StreamEvent{Kind: KindError, Text: msg}, true

	case "step.finish", "usage":
		if rec.Tokens == nil {
			return StreamEvent{}, false
		}
		usage := &events.UsageStats{
			InputTokens:         rec.Tokens.Input,
			OutputTokens:        rec.Tokens.Output,
			CacheReadTokens:     rec.Tokens.Cache.Read,
			CacheCreationTokens: rec.Tokens.Cache.Write,
			CostUSD:             rec.Cost,
			ContextWindow:       rec.ContextWindow,
		}
		if rec.Tokens.Reasoning > 0 {
			reasoning := rec.Tokens.Reasoning
			usage.ReasoningTokens = &reasoning
		}
		return StreamEvent{Kind: KindUsage, Usage: usage}, true
	}

	return StreamEvent{}, false
}
