package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFencedJSONPlan(t *testing.T) {
	response := "Here is the fix:\n```json\n{\n  \"reasoning\": \"the import is unused\",\n  \"steps\": [\n    {\"kind\": \"modify_file\", \"path\": \"main.go\", \"instruction\": \"remove the unused fmt import\"},\n    {\"kind\": \"run_command\", \"command\": \"gofmt -w main.go\"}\n  ]\n}\n```\nLet me know how it goes."

	p, err := Parse(response)
	if err != nil {
		t.Fatalf("expected plan to parse, got %v", err)
	}

	assert.Equal(t, "the import is unused", p.Reasoning)
	assert.Len(t, p.Steps, 2)
	assert.Equal(t, StepModifyFile, p.Steps[0].Kind)
	assert.Equal(t, StatusPending, p.Steps[0].Status)
	assert.Equal(t, StepRunCommand, p.Steps[1].Kind)
	assert.Equal(t, "gofmt -w main.go", p.Steps[1].Command)
}

func TestParseRawJSONWithoutFence(t *testing.T) {
	response := `{"steps": [{"kind": "create_directory", "path": "internal/api"}]}`

	p, err := Parse(response)
	if err != nil {
		t.Fatalf("expected raw JSON to parse, got %v", err)
	}
	assert.Len(t, p.Steps, 1)
	assert.Equal(t, StepCreateDirectory, p.Steps[0].Kind)
}

func TestParseUnclosedFence(t *testing.T) {
	response := "```json\n{\"steps\": [{\"kind\": \"create_file\", \"path\": \"a.go\", \"content\": \"package a\"}]}"

	p, err := Parse(response)
	if err != nil {
		t.Fatalf("expected unclosed fence to parse, got %v", err)
	}
	assert.Len(t, p.Steps, 1)
}

func TestParseNormalizesKindSpellings(t *testing.T) {
	response := `{"steps": [{"kind": "Create-File", "path": "a.go", "content": "package a"}]}`

	p, err := Parse(response)
	if err != nil {
		t.Fatalf("expected plan to parse, got %v", err)
	}
	assert.Equal(t, StepCreateFile, p.Steps[0].Kind)
}

func TestParseEmptyStepsIsStillAPlan(t *testing.T) {
	p, err := Parse(`{"steps": []}`)
	if err != nil {
		t.Fatalf("expected empty plan to parse, got %v", err)
	}
	assert.True(t, p.IsEmpty())
}

func TestParseFailures(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"empty response", ""},
		{"prose only", "I could not produce a plan, sorry."},
		{"malformed json", "```json\n{\"steps\": [}\n```"},
		{"unknown kind", `{"steps": [{"kind": "delete_everything", "path": "/"}]}`},
		{"create_file without target", `{"steps": [{"kind": "create_file", "content": "x"}]}`},
		{"create_file without content or instruction", `{"steps": [{"kind": "create_file", "path": "a.go"}]}`},
		{"modify_file without instruction", `{"steps": [{"kind": "modify_file", "path": "a.go"}]}`},
		{"run_command without command", `{"steps": [{"kind": "run_command"}]}`},
	}

	for _, tc := range cases {
		p, err := Parse(tc.response)
		if err == nil {
			t.Errorf("%s: expected a parse error, got plan %+v", tc.name, p)
			continue
		}
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("%s: expected *ParseError, got %T", tc.name, err)
		}
	}
}

func TestDescribeSynthesizesFromKind(t *testing.T) {
	cases := []struct {
		step     Step
		expected string
	}{
		{Step{Kind: StepCreateFile, Path: "main.go"}, "Create File main.go"},
		{Step{Kind: StepCreateDirectory, Path: "internal"}, "Create Directory internal"},
		{Step{Kind: StepModifyFile, Path: "main.go"}, "Modify File main.go"},
		{Step{Kind: StepRunCommand, Command: "go vet ./..."}, "Run Command: go vet ./..."},
		{Step{Kind: StepModifyFile, Path: "main.go", Description: "Fix the import block"}, "Fix the import block"},
	}

	for _, tc := range cases {
		if got := tc.step.Describe(); got != tc.expected {
			t.Errorf("expected %q, got %q", tc.expected, got)
		}
	}
}
