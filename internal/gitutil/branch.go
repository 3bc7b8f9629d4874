// Package gitutil provides minimal git introspection for prompt context.
package gitutil

import (
	"os/exec"
	"strings"
)

// CurrentBranch returns the checked-out branch name for the repository
// containing dir, or "" when dir is not inside a git repository or git
// is unavailable. Detached heads report "" rather than a commit hash.
func CurrentBranch(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	branch := strings.TrimSpace(string(out))
	if branch == "HEAD" {
		// Detached head
		return ""
	}
	return branch
}
