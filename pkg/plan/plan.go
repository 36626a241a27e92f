// Package plan parses correction plans out of generation output and applies
// them to the workspace, one step at a time.
package plan

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StepKind identifies what a correction step does to the workspace.
type StepKind string

const (
	StepCreateDirectory StepKind = "create_directory"
	StepCreateFile      StepKind = "create_file"
	StepModifyFile      StepKind = "modify_file"
	StepRunCommand      StepKind = "run_command"
)

// Step statuses, updated in place as the executor works through a plan.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

// Step is one ordered operation in a correction plan.
type Step struct {
	Kind        StepKind `json:"kind"`
	Path        string   `json:"path,omitempty"`
	Content     string   `json:"content,omitempty"`     // literal content for create_file
	Instruction string   `json:"instruction,omitempty"` // generation instruction for create_file or modify_file
	Command     string   `json:"command,omitempty"`     // command line for run_command
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// Plan is an ordered list of steps proposed to resolve outstanding issues.
// A plan is consumed exactly once and never reused across iterations.
type Plan struct {
	Reasoning string `json:"reasoning,omitempty"`
	Steps     []Step `json:"steps"`
}

// IsEmpty reports whether the plan proposes no work at all. The engine treats
// an empty plan as a failed fix attempt, not as success.
func (p *Plan) IsEmpty() bool {
	return p == nil || len(p.Steps) == 0
}

var kindTitles = cases.Title(language.Und, cases.NoLower)

// Describe returns the step's explicit description, or synthesizes one from
// its kind and target for progress reporting.
func (s Step) Describe() string {
	if strings.TrimSpace(s.Description) != "" {
		return s.Description
	}
	action := kindTitles.String(strings.ReplaceAll(string(s.Kind), "_", " "))
	switch s.Kind {
	case StepRunCommand:
		return fmt.Sprintf("%s: %s", action, s.Command)
	case StepCreateDirectory, StepCreateFile, StepModifyFile:
		return fmt.Sprintf("%s %s", action, s.Path)
	default:
		return action
	}
}
