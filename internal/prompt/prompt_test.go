package prompt

import "testing"

func TestExpand(t *testing.T) {
	ctx := Context{
		SessionID:   "sess-1",
		SessionName: "api-server",
		Workdir:     "/home/dev/api",
		Branch:      "main",
		GroupName:   "backend",
		Folder:      "/home/dev/api/tasks",
		LoopNumber:  3,
		DocName:     "cleanup",
		DocPath:     "/home/dev/api/tasks/cleanup.md",
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "all tokens",
			in:   "{{SESSION_ID}} {{SESSION_NAME}} {{WORKDIR}} {{BRANCH}} {{GROUP_NAME}} {{FOLDER}} {{LOOP_NUMBER}} {{DOC_NAME}} {{DOC_PATH}}",
			want: "sess-1 api-server /home/dev/api main backend /home/dev/api/tasks 3 cleanup /home/dev/api/tasks/cleanup.md",
		},
		{
			name: "repeated token",
			in:   "work in {{WORKDIR}}; logs under {{WORKDIR}}/logs",
			want: "work in /home/dev/api; logs under /home/dev/api/logs",
		},
		{
			name: "unknown token untouched",
			in:   "keep {{NOT_A_TOKEN}} as-is",
			want: "keep {{NOT_A_TOKEN}} as-is",
		},
		{
			name: "no tokens",
			in:   "plain text",
			want: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expand(tt.in, ctx); got != tt.want {
				t.Errorf("Expand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandEmptyContext(t *testing.T) {
	got := Expand("branch={{BRANCH}} loop={{LOOP_NUMBER}}", Context{})
	if got != "branch= loop=0" {
		t.Errorf("Expand() = %q", got)
	}
}
