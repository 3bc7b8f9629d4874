package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DocumentRef names one task document of a playbook. The backing file
// is <folder>/<Filename>.md.
type DocumentRef struct {
	// Filename is the document name without extension
	Filename string `yaml:"filename" json:"filename"`
	// ResetOnCompletion re-unchecks every checkbox after a pass that
	// completed at least one task, so the document repeats each loop
	ResetOnCompletion bool `yaml:"resetOnCompletion" json:"resetOnCompletion"`
}

// Playbook is the immutable input to a run: an ordered set of task
// documents plus a prompt template and loop policy.
type Playbook struct {
	ID             string        `yaml:"id" json:"id"`
	Name           string        `yaml:"name" json:"name"`
	PromptTemplate string        `yaml:"promptTemplate" json:"promptTemplate"`
	Documents      []DocumentRef `yaml:"documents" json:"documents"`
	LoopEnabled    bool          `yaml:"loopEnabled" json:"loopEnabled"`
	// MaxLoops caps loop iterations; nil means unlimited
	MaxLoops *int `yaml:"maxLoops,omitempty" json:"maxLoops,omitempty"`
}

// LoadPlaybook reads a playbook definition from a YAML file.
func LoadPlaybook(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbook: %w", err)
	}

	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("parse playbook: %w", err)
	}

	if err := pb.Validate(); err != nil {
		return nil, err
	}
	return &pb, nil
}

// Validate checks structural requirements and fills derivable defaults.
func (p *Playbook) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("playbook id is required")
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	if len(p.Documents) == 0 {
		return fmt.Errorf("playbook %s has no documents", p.ID)
	}
	for i, doc := range p.Documents {
		if doc.Filename == "" {
			return fmt.Errorf("playbook %s: document %d has no filename", p.ID, i)
		}
	}
	if p.MaxLoops != nil && *p.MaxLoops < 1 {
		return fmt.Errorf("playbook %s: maxLoops must be at least 1", p.ID)
	}
	return nil
}

// HasDrivingDocument reports whether any document is not marked
// reset-on-completion. Driving documents govern loop continuation; a
// playbook made entirely of self-resetting documents runs one pass.
func (p *Playbook) HasDrivingDocument() bool {
	for _, doc := range p.Documents {
		if !doc.ResetOnCompletion {
			return true
		}
	}
	return false
}
