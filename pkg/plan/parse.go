package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError describes correction-plan text that could not be turned into
// valid steps. It is always recoverable: the engine records a parsing_failed
// outcome for the iteration and moves on without touching the file.
type ParseError struct {
	Reason  string
	Snippet string
}

func (e *ParseError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("invalid correction plan: %s", e.Reason)
	}
	return fmt.Sprintf("invalid correction plan: %s (near %q)", e.Reason, e.Snippet)
}

// Parse extracts a correction plan from raw generation output. The model is
// asked for a fenced JSON document but the output is treated as untrusted:
// anything that does not validate comes back as a *ParseError, never a panic.
// An empty steps list parses successfully; whether that counts as a failed
// attempt is the caller's policy.
func Parse(response string) (*Plan, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil, &ParseError{Reason: "no JSON payload found", Snippet: snippet(response)}
	}

	var p Plan
	if err := json.Unmarshal([]byte(jsonStr), &p); err != nil {
		return nil, &ParseError{Reason: err.Error(), Snippet: snippet(jsonStr)}
	}

	for i := range p.Steps {
		step := &p.Steps[i]
		step.Kind = normalizeKind(step.Kind)
		if err := validateStep(i, *step); err != nil {
			return nil, err
		}
		if step.Status == "" {
			step.Status = StatusPending
		}
	}
	return &p, nil
}

// extractJSON handles both fenced code block JSON and raw JSON responses.
func extractJSON(response string) string {
	if strings.Contains(response, "```json") {
		parts := strings.Split(response, "```json")
		if len(parts) > 1 {
			jsonPart := parts[1]
			end := strings.Index(jsonPart, "```")
			if end > 0 {
				return strings.TrimSpace(jsonPart[:end])
			}
			return strings.TrimSpace(jsonPart)
		}
	}
	trimmed := strings.TrimSpace(response)
	if strings.HasPrefix(trimmed, "{") || strings.Contains(trimmed, `"steps"`) {
		return trimmed
	}
	return ""
}

// normalizeKind tolerates the spellings models actually produce.
func normalizeKind(kind StepKind) StepKind {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(string(kind))), "-", "_")
	return StepKind(normalized)
}

func validateStep(index int, step Step) error {
	fail := func(reason string) error {
		return &ParseError{Reason: fmt.Sprintf("step %d: %s", index+1, reason)}
	}
	switch step.Kind {
	case StepCreateDirectory:
		if strings.TrimSpace(step.Path) == "" {
			return fail("create_directory requires a path")
		}
	case StepCreateFile:
		if strings.TrimSpace(step.Path) == "" {
			return fail("create_file requires a path")
		}
		if step.Content == "" && strings.TrimSpace(step.Instruction) == "" {
			return fail("create_file requires content or an instruction")
		}
	case StepModifyFile:
		if strings.TrimSpace(step.Path) == "" {
			return fail("modify_file requires a path")
		}
		if strings.TrimSpace(step.Instruction) == "" {
			return fail("modify_file requires an instruction")
		}
	case StepRunCommand:
		if strings.TrimSpace(step.Command) == "" {
			return fail("run_command requires a command")
		}
	default:
		return fail(fmt.Sprintf("unknown step kind %q", step.Kind))
	}
	return nil
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
