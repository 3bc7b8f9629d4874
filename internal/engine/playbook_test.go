package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPlaybook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.yaml")
	yaml := `
id: nightly-cleanup
name: Nightly Cleanup
promptTemplate: "Work through the next task in {{DOC_NAME}}."
loopEnabled: true
maxLoops: 5
documents:
  - filename: tasks
  - filename: rituals
    resetOnCompletion: true
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	pb, err := LoadPlaybook(path)
	if err != nil {
		t.Fatalf("LoadPlaybook() error = %v", err)
	}
	if pb.ID != "nightly-cleanup" || pb.Name != "Nightly Cleanup" {
		t.Errorf("header = %q / %q", pb.ID, pb.Name)
	}
	if !pb.LoopEnabled || pb.MaxLoops == nil || *pb.MaxLoops != 5 {
		t.Errorf("loop policy = %v / %v", pb.LoopEnabled, pb.MaxLoops)
	}
	if len(pb.Documents) != 2 {
		t.Fatalf("got %d documents, want 2", len(pb.Documents))
	}
	if pb.Documents[0].ResetOnCompletion || !pb.Documents[1].ResetOnCompletion {
		t.Errorf("documents = %+v", pb.Documents)
	}
}

func TestLoadPlaybookMissingFile(t *testing.T) {
	_, err := LoadPlaybook(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("LoadPlaybook() error = nil, want error")
	}
}

func TestPlaybookValidate(t *testing.T) {
	zero := 0
	tests := []struct {
		name    string
		pb      Playbook
		wantErr string
	}{
		{
			name:    "missing id",
			pb:      Playbook{Documents: []DocumentRef{{Filename: "tasks"}}},
			wantErr: "id is required",
		},
		{
			name:    "no documents",
			pb:      Playbook{ID: "pb-1"},
			wantErr: "no documents",
		},
		{
			name:    "document without filename",
			pb:      Playbook{ID: "pb-1", Documents: []DocumentRef{{}}},
			wantErr: "no filename",
		},
		{
			name:    "maxLoops below one",
			pb:      Playbook{ID: "pb-1", Documents: []DocumentRef{{Filename: "tasks"}}, MaxLoops: &zero},
			wantErr: "maxLoops",
		},
		{
			name: "valid",
			pb:   Playbook{ID: "pb-1", Documents: []DocumentRef{{Filename: "tasks"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pb.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDefaultsName(t *testing.T) {
	pb := Playbook{ID: "pb-1", Documents: []DocumentRef{{Filename: "tasks"}}}
	if err := pb.Validate(); err != nil {
		t.Fatal(err)
	}
	if pb.Name != "pb-1" {
		t.Errorf("Name = %q, want defaulted to id", pb.Name)
	}
}

func TestHasDrivingDocument(t *testing.T) {
	tests := []struct {
		name string
		docs []DocumentRef
		want bool
	}{
		{
			name: "plain document drives",
			docs: []DocumentRef{{Filename: "a"}},
			want: true,
		},
		{
			name: "all resetting",
			docs: []DocumentRef{{Filename: "a", ResetOnCompletion: true}},
			want: false,
		},
		{
			name: "mixed",
			docs: []DocumentRef{{Filename: "a", ResetOnCompletion: true}, {Filename: "b"}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := Playbook{Documents: tt.docs}
			if got := pb.HasDrivingDocument(); got != tt.want {
				t.Errorf("HasDrivingDocument() = %v, want %v", got, tt.want)
			}
		})
	}
}
