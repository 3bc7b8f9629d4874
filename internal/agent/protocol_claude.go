package agent

import (
	"encoding/json"

	"github.com/vibecode/playbook/internal/events"
)

// claudeStreamLine is one stream-json record from the Claude CLI. Only
// the fields the collector consumes are declared; everything else is
// ignored.
type claudeStreamLine struct {
	Type         string                      `json:"type"`
	Result       *string                     `json:"result"`
	SessionID    string                      `json:"session_id"`
	TotalCostUSD *float64                    `json:"total_cost_usd"`
	ModelUsage   map[string]claudeModelUsage `json:"modelUsage"`
	Usage        *claudeFlatUsage            `json:"usage"`
}

// claudeModelUsage is one entry of the per-model usage map.
type claudeModelUsage struct {
	InputTokens              int64 `json:"inputTokens"`
	OutputTokens             int64 `json:"outputTokens"`
	CacheReadInputTokens     int64 `json:"cacheReadInputTokens"`
	CacheCreationInputTokens int64 `json:"cacheCreationInputTokens"`
	ContextWindow            int64 `json:"contextWindow"`
}

// claudeFlatUsage is the flat usage object used when no per-model map
// is present. Older CLI builds report snake_case names, newer ones
// camelCase; both are declared and whichever is set wins.
type claudeFlatUsage struct {
	InputTokens                 int64 `json:"input_tokens"`
	OutputTokens                int64 `json:"output_tokens"`
	CacheReadInputTokens        int64 `json:"cache_read_input_tokens"`
	CacheCreationInputTokens    int64 `json:"cache_creation_input_tokens"`
	InputTokensCamel            int64 `json:"inputTokens"`
	OutputTokensCamel           int64 `json:"outputTokens"`
	CacheReadInputTokensCamel   int64 `json:"cacheReadTokens"`
	CacheCreateInputTokensCamel int64 `json:"cacheCreationTokens"`
}

func pick(primary, fallback int64) int64 {
	if primary != 0 {
		return primary
	}
	return fallback
}

// claudeCollector accumulates Protocol A state across stream lines:
// the first result record wins, the first session id wins, usage comes
// from the per-model map when present, and cost is a running total
// reported separately by the CLI.
type claudeCollector struct {
	result    *string
	sessionID string
	usage     *events.UsageStats
	cost      float64
}

func newClaudeCollector() *claudeCollector {
	return &claudeCollector{}
}

// Line consumes one raw output line. Malformed or non-JSON lines are
// silently skipped, never fatal.
func (c *claudeCollector) Line(line string) {
	var rec claudeStreamLine
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return
	}

	if rec.SessionID != "" && c.sessionID == "" {
		c.sessionID = rec.SessionID
	}

	if rec.Type == "result" {
		if rec.Result != nil && c.result == nil {
			c.result = rec.Result
		}
		c.collectUsage(rec)
	}

	if rec.TotalCostUSD != nil {
		c.cost = *rec.TotalCostUSD
	}
}

func (c *claudeCollector) collectUsage(rec claudeStreamLine) {
	if len(rec.ModelUsage) > 0 {
		usage := &events.UsageStats{}
		for _, mu := range rec.ModelUsage {
			usage.InputTokens += mu.InputTokens
			usage.OutputTokens += mu.OutputTokens
			usage.CacheReadTokens += mu.CacheReadInputTokens
			usage.CacheCreationTokens += mu.CacheCreationInputTokens
			if mu.ContextWindow > usage.ContextWindow {
				usage.ContextWindow = mu.ContextWindow
			}
		}
		c.usage = usage
		return
	}

	if rec.Usage != nil {
		c.usage = &events.UsageStats{
			InputTokens:         pick(rec.Usage.InputTokens, rec.Usage.InputTokensCamel),
			OutputTokens:        pick(rec.Usage.OutputTokens, rec.Usage.OutputTokensCamel),
			CacheReadTokens:     pick(rec.Usage.CacheReadInputTokens, rec.Usage.CacheReadInputTokensCamel),
			CacheCreationTokens: pick(rec.Usage.CacheCreationInputTokens, rec.Usage.CacheCreateInputTokensCamel),
		}
	}
}

// Finish builds the invocation result from collected state. exitCode
// and stderr come from the completed process; spawnErr is set when the
// process never started.
func (c *claudeCollector) Finish(exitCode int, stderr string, spawnErr error) Result {
	usage := c.usage
	if c.cost > 0 {
		if usage == nil {
			usage = &events.UsageStats{}
		}
		usage.CostUSD = c.cost
	}

	res := Result{
		AgentSessionID: c.sessionID,
		Usage:          usage,
	}
	if c.result != nil {
		res.Response = *c.result
	}

	if spawnErr == nil && exitCode == 0 && c.result != nil {
		res.Success = true
		return res
	}

	res.ErrorText = failureMessage("", stderr, exitCode, spawnErr)
	return res
}
