// Package tasklist reads and mutates markdown checklist documents.
// A task is a list-style checkbox line: optional leading whitespace, a
// dash, "[ ]" or "[x]"/"[X]", then free text. The on-disk file is the
// single source of truth for task counts; callers re-read after every
// external mutation rather than tracking completions in memory.
package tasklist

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	uncheckedRe = regexp.MustCompile(`^\s*-\s*\[ \]`)
	checkedRe   = regexp.MustCompile(`^(\s*-\s*)\[[xX]\]`)
)

// Read returns the content of <folder>/<name>.md. A missing file yields
// empty content rather than an error, so a playbook whose folder was
// deleted mid-run degrades to "no tasks" instead of crashing.
func Read(folder, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(folder, name+".md"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read task document: %w", err)
	}
	return string(data), nil
}

// CountUnchecked returns the document content and the number of
// unchecked task lines it contains.
func CountUnchecked(folder, name string) (string, int, error) {
	content, err := Read(folder, name)
	if err != nil {
		return "", 0, err
	}
	count := 0
	for _, line := range strings.Split(content, "\n") {
		if uncheckedRe.MatchString(line) {
			count++
		}
	}
	return content, count, nil
}

// ExtractUnchecked returns the document content and the trimmed text of
// every unchecked task line, in file order.
func ExtractUnchecked(folder, name string) (string, []string, error) {
	content, err := Read(folder, name)
	if err != nil {
		return "", nil, err
	}
	var tasks []string
	for _, line := range strings.Split(content, "\n") {
		if loc := uncheckedRe.FindStringIndex(line); loc != nil {
			tasks = append(tasks, strings.TrimSpace(line[loc[1]:]))
		}
	}
	return content, tasks, nil
}

// ResetAllChecked rewrites every checked list-checkbox to unchecked,
// case-insensitively, preserving leading indentation and trailing text.
// Non-checkbox lines that merely contain "[x]" are left alone. The
// operation is idempotent.
func ResetAllChecked(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if checkedRe.MatchString(line) {
			lines[i] = checkedRe.ReplaceAllString(line, "${1}[ ]")
		}
	}
	return strings.Join(lines, "\n")
}

// Write persists content to <folder>/<filename>. The filename carries
// its extension; Write does not append one.
func Write(folder, filename, content string) error {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return fmt.Errorf("create task folder: %w", err)
	}
	if err := os.WriteFile(filepath.Join(folder, filename), []byte(content), 0644); err != nil {
		return fmt.Errorf("write task document: %w", err)
	}
	return nil
}
