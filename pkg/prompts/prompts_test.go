package prompts

import (
	"strings"
	"testing"
)

func TestBuildGenerationMessagesForNewFile(t *testing.T) {
	msgs := BuildGenerationMessages("add a health endpoint", "server.go", "", "Language: go\nWorkspace files:\n  main.go\n", "go")

	if len(msgs) != 2 {
		t.Fatalf("expected system + user message, got %d", len(msgs))
	}
	if msgs[0].Role != "system" {
		t.Errorf("first message role = %q, want system", msgs[0].Role)
	}
	if !strings.Contains(msgs[0].Content, "ENTIRE") {
		t.Errorf("system prompt missing whole-document requirement: %q", msgs[0].Content)
	}
	user := msgs[1].Content
	if !strings.Contains(user, "does not exist yet") {
		t.Errorf("user prompt for a new file should say so, got %q", user)
	}
	if !strings.Contains(user, "Workspace context:") {
		t.Errorf("user prompt missing workspace context section")
	}
	if !strings.Contains(user, "add a health endpoint") {
		t.Errorf("user prompt missing the instruction")
	}
}

func TestBuildGenerationMessagesEmbedsCurrentContent(t *testing.T) {
	msgs := BuildGenerationMessages("rename the handler", "server.go", "package main\n", "", "go")

	user := msgs[1].Content
	if !strings.Contains(user, "```go\npackage main") {
		t.Errorf("user prompt should embed current content in a fence, got %q", user)
	}
	if strings.Contains(user, "Workspace context:") {
		t.Errorf("empty workspace context should not produce a section")
	}
}

func TestBuildModificationMessagesAsksForMinimalChanges(t *testing.T) {
	msgs := BuildModificationMessages("fix the off-by-one", "count.py", "def f():\n    pass\n", "python")

	if !strings.Contains(msgs[0].Content, "minimal") && !strings.Contains(msgs[0].Content, "MINIMAL") {
		t.Errorf("modification system prompt should ask for minimal changes: %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, "```python") {
		t.Errorf("modification user prompt should fence content with the language")
	}
}

func TestBuildPlanMessagesIncludesSchemaAndIssues(t *testing.T) {
	issues := []string{"line 3: undefined variable x", "line 9: missing return"}
	msgs := BuildPlanMessages("app.js", "const a = 1;\n", "javascript", issues, "")

	system := msgs[0].Content
	for _, kind := range []string{"create_directory", "create_file", "modify_file", "run_command"} {
		if !strings.Contains(system, kind) {
			t.Errorf("plan system prompt missing step kind %q", kind)
		}
	}
	if !strings.Contains(system, "```json") {
		t.Errorf("plan system prompt should show the JSON schema in a fence")
	}

	user := msgs[1].Content
	for _, issue := range issues {
		if !strings.Contains(user, issue) {
			t.Errorf("plan user prompt missing issue %q", issue)
		}
	}
	if strings.Contains(user, "PREVIOUS ATTEMPTS") {
		t.Errorf("empty feedback should not produce a previous-attempts section")
	}
}

func TestBuildPlanMessagesCarriesFeedback(t *testing.T) {
	feedback := "Attempt 1 reintroduced the same undefined variable."
	msgs := BuildPlanMessages("app.js", "const a = 1;\n", "javascript", []string{"line 3: undefined variable x"}, feedback)

	if !strings.Contains(msgs[1].Content, "PREVIOUS ATTEMPTS") {
		t.Errorf("feedback should produce a previous-attempts section")
	}
	if !strings.Contains(msgs[1].Content, feedback) {
		t.Errorf("feedback text should appear verbatim in the user prompt")
	}
}

func TestFormatIssueList(t *testing.T) {
	got := FormatIssueList([]string{"first", "second"})
	want := "- first\n- second\n"
	if got != want {
		t.Errorf("FormatIssueList = %q, want %q", got, want)
	}
}
