// Package prompt expands substitution tokens in playbook prompt
// templates and task documents. Tokens describe the run's context:
// session identity, source-control branch, owning group, target folder,
// loop number, and the current document's name and absolute path.
package prompt

import (
	"strconv"
	"strings"
)

// Context provides the values substituted into templates. Not every
// template uses every token; unknown tokens are left untouched.
type Context struct {
	// SessionID is the unique identifier of the owning session
	SessionID string
	// SessionName is the human-readable session name
	SessionName string
	// Workdir is the session's working directory
	Workdir string
	// Branch is the detected source-control branch, if any
	Branch string
	// GroupName is the display name of the owning group
	GroupName string
	// Folder is the run's target folder
	Folder string
	// LoopNumber is the current loop iteration, 1-indexed
	LoopNumber int
	// DocName is the current document's name, without extension
	DocName string
	// DocPath is the current document's absolute path
	DocPath string
}

// Expand replaces every known token in s with its context value.
func Expand(s string, ctx Context) string {
	replacer := strings.NewReplacer(
		"{{SESSION_ID}}", ctx.SessionID,
		"{{SESSION_NAME}}", ctx.SessionName,
		"{{WORKDIR}}", ctx.Workdir,
		"{{BRANCH}}", ctx.Branch,
		"{{GROUP_NAME}}", ctx.GroupName,
		"{{FOLDER}}", ctx.Folder,
		"{{LOOP_NUMBER}}", strconv.Itoa(ctx.LoopNumber),
		"{{DOC_NAME}}", ctx.DocName,
		"{{DOC_PATH}}", ctx.DocPath,
	)
	return replacer.Replace(s)
}
