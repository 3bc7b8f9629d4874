package engine

import (
	"regexp"
	"strings"
)

// synopsisPrompt is the fixed follow-up sent on the task's conversation
// after a successful turn. The agent already holds the full context, so
// the prompt asks only for a recap.
const synopsisPrompt = `Summarize what you just did. Respond with one short sentence on the first line, then an optional brief paragraph with details. Plain text only, no markdown formatting.`

// maxSummaryLen bounds the one-line summary shown in task events and
// history entries.
const maxSummaryLen = 120

var (
	ansiEscapeRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
	markdownRe   = regexp.MustCompile("[*_`#]+")
)

// cleanResponse strips control sequences and markdown formatting noise
// from an agent response, collapsing runs of blank lines.
func cleanResponse(s string) string {
	s = ansiEscapeRe.ReplaceAllString(s, "")
	s = markdownRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// deriveSynopsis splits a synopsis response into a one-line summary and
// the full detail text.
func deriveSynopsis(response string) (string, string) {
	detail := cleanResponse(response)
	if detail == "" {
		return "Task completed", ""
	}
	return truncate(firstLine(detail), maxSummaryLen), detail
}

// synthesizeSummary builds a summary directly from a turn's response,
// used when no synopsis follow-up was possible.
func synthesizeSummary(response string) string {
	cleaned := cleanResponse(response)
	if cleaned == "" {
		return "Task completed"
	}
	return truncate(firstLine(cleaned), maxSummaryLen)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max-3]) + "..."
}
