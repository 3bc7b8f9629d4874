package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{in: "claude", want: TypeClaude},
		{in: "opencode", want: TypeOpenCode},
		{in: "  OpenCode ", want: TypeOpenCode},
		{in: "", want: TypeClaude},
		{in: "copilot", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseType(%q) error = nil, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseType(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildArgsClaude(t *testing.T) {
	r := NewRunner(TypeClaude, WithModel("opus"))

	args := r.buildArgs(InvokeOptions{Prompt: "do the thing"})
	joined := strings.Join(args, " ")
	for _, want := range []string{"--print", "--output-format stream-json", "--verbose", "--dangerously-skip-permissions", "--model opus", "--session-id "} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
	if args[len(args)-1] != "do the thing" {
		t.Errorf("prompt not last: %v", args)
	}

	// Two fresh invocations never share a conversation id.
	other := r.buildArgs(InvokeOptions{Prompt: "again"})
	if sessionArg(t, args) == sessionArg(t, other) {
		t.Error("fresh invocations reused a session id")
	}
}

func sessionArg(t *testing.T, args []string) string {
	t.Helper()
	for i, a := range args {
		if a == "--session-id" && i+1 < len(args) {
			return args[i+1]
		}
	}
	t.Fatalf("no --session-id in %v", args)
	return ""
}

func TestBuildArgsClaudeResume(t *testing.T) {
	r := NewRunner(TypeClaude)

	args := r.buildArgs(InvokeOptions{Prompt: "summarize", ResumeSessionID: "sess-1"})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--resume sess-1") {
		t.Errorf("args missing resume directive: %v", args)
	}
	if strings.Contains(joined, "--session-id") {
		t.Errorf("resume must not mint a fresh session id: %v", args)
	}
}

func TestBuildArgsOpencode(t *testing.T) {
	r := NewRunner(TypeOpenCode, WithModel("gpt-5"))

	args := r.buildArgs(InvokeOptions{Prompt: "fix it"})
	want := []string{"run", "--format", "json", "--model", "gpt-5", "fix it"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}

	resumed := r.buildArgs(InvokeOptions{Prompt: "more", ResumeSessionID: "ses_9"})
	if !strings.Contains(strings.Join(resumed, " "), "--session ses_9") {
		t.Errorf("resume args = %v", resumed)
	}
}

func TestInvokeExecutableNotFound(t *testing.T) {
	skipIfSystemInstalled(t, "claude")
	resetResolveCache()
	t.Cleanup(resetResolveCache)

	dir := t.TempDir()
	t.Setenv("PATH", dir)
	t.Setenv("HOME", dir)

	r := NewRunner(TypeClaude)
	if r.Available() {
		t.Fatal("Available() = true with empty PATH")
	}

	res := r.Invoke(context.Background(), InvokeOptions{Prompt: "x"})
	if res.Success {
		t.Fatal("Success = true, want failure")
	}
	if !strings.Contains(res.ErrorText, "not found") {
		t.Errorf("ErrorText = %q", res.ErrorText)
	}
}

func TestInvokeParsesStreamOutput(t *testing.T) {
	skipIfSystemInstalled(t, "claude")
	resetResolveCache()
	t.Cleanup(resetResolveCache)

	dir := t.TempDir()
	script := `#!/bin/sh
printf '%s\n' '{"type":"system","session_id":"sess-fake"}'
printf '%s\n' '{"type":"result","result":"done","total_cost_usd":0.5}'
`
	writeScript(t, dir, "claude", script)
	t.Setenv("PATH", dir)

	r := NewRunner(TypeClaude)
	res := r.Invoke(context.Background(), InvokeOptions{Workdir: dir, Prompt: "x"})
	if !res.Success {
		t.Fatalf("Success = false, error = %q", res.ErrorText)
	}
	if res.Response != "done" || res.AgentSessionID != "sess-fake" {
		t.Errorf("res = %+v", res)
	}
	if res.Usage == nil || res.Usage.CostUSD != 0.5 {
		t.Errorf("Usage = %+v", res.Usage)
	}
}

func TestInvokeNonzeroExit(t *testing.T) {
	skipIfSystemInstalled(t, "claude")
	resetResolveCache()
	t.Cleanup(resetResolveCache)

	dir := t.TempDir()
	writeScript(t, dir, "claude", "#!/bin/sh\necho 'auth failure' >&2\nexit 1\n")
	t.Setenv("PATH", dir)

	r := NewRunner(TypeClaude)
	res := r.Invoke(context.Background(), InvokeOptions{Workdir: dir, Prompt: "x"})
	if res.Success {
		t.Fatal("Success = true, want failure")
	}
	if res.ErrorText != "auth failure" {
		t.Errorf("ErrorText = %q", res.ErrorText)
	}
}

func writeScript(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0755); err != nil {
		t.Fatal(err)
	}
}
