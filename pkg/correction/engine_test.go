package correction

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/mendtool/mend/pkg/config"
	"github.com/mendtool/mend/pkg/diagnostics"
	"github.com/mendtool/mend/pkg/llm"
	"github.com/mendtool/mend/pkg/plan"
	"github.com/mendtool/mend/pkg/utils"
)

// scriptedClient returns canned responses in order. A call numbered cancelOn
// cancels the request instead, simulating the user interrupting mid-stream.
type scriptedClient struct {
	responses []string
	errs      []error
	messages  [][]llm.Message
	calls     int
	cancelOn  int
	cancel    context.CancelFunc
}

func (c *scriptedClient) Chat(ctx context.Context, messages []llm.Message, onChunk llm.StreamCallback) (string, error) {
	c.calls++
	c.messages = append(c.messages, messages)
	if c.cancelOn != 0 && c.calls == c.cancelOn {
		c.cancel()
		return "", ctx.Err()
	}
	idx := c.calls - 1
	if idx < len(c.errs) && c.errs[idx] != nil {
		return "", c.errs[idx]
	}
	if idx < len(c.responses) {
		resp := c.responses[idx]
		if onChunk != nil {
			onChunk(resp)
		}
		return resp, nil
	}
	return "", errors.New("unexpected chat call")
}

func (c *scriptedClient) Model() string    { return "test-model" }
func (c *scriptedClient) Provider() string { return "test" }

type memFiles struct {
	files map[string]string
}

func (m *memFiles) ReadFileForEdit(path string) (string, error) {
	content, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	return content, nil
}

func (m *memFiles) WriteFile(path, content string) error {
	m.files[path] = content
	return nil
}

// scriptedValidator returns one issue sample per call; once the script is
// exhausted it keeps returning the last sample.
type scriptedValidator struct {
	samples [][]diagnostics.Issue
	calls   int
}

func (v *scriptedValidator) StableIssues(ctx context.Context, target string, opts diagnostics.StabilizeOptions) ([]diagnostics.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := v.calls
	v.calls++
	if idx >= len(v.samples) {
		idx = len(v.samples) - 1
	}
	if idx < 0 {
		return nil, nil
	}
	return v.samples[idx], nil
}

// recordingApplier applies create_file steps into the shared in-memory
// store, consuming errs one per call first.
type recordingApplier struct {
	store *memFiles
	errs  []error
	calls int
}

func (a *recordingApplier) Execute(ctx context.Context, p *plan.Plan, revisionID string) ([]string, error) {
	a.calls++
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	var affected []string
	for _, step := range p.Steps {
		if (step.Kind == plan.StepCreateFile || step.Kind == plan.StepModifyFile) && step.Content != "" {
			a.store.files[step.Path] = step.Content
			affected = append(affected, step.Path)
		}
	}
	return affected, nil
}

type fakeChangeLog struct {
	revisions []string
	records   []string
}

func (c *fakeChangeLog) StartRevision(instructions string) string {
	id := fmt.Sprintf("rev-%d", len(c.revisions)+1)
	c.revisions = append(c.revisions, id)
	return id
}

func (c *fakeChangeLog) RecordChange(revisionID, filename, originalCode, newCode, description string) (string, error) {
	c.records = append(c.records, filename)
	return "+1 -0", nil
}

func (c *fakeChangeLog) ChangedFilesSince(since time.Time) ([]string, error) {
	return append([]string(nil), c.records...), nil
}

type engineFixture struct {
	client    *scriptedClient
	files     *memFiles
	validator *scriptedValidator
	applier   *recordingApplier
	changes   *fakeChangeLog
	engine    *Engine
}

func newEngineFixture(t *testing.T, maxIterations int) *engineFixture {
	t.Helper()
	files := &memFiles{files: make(map[string]string)}
	f := &engineFixture{
		client:    &scriptedClient{},
		files:     files,
		validator: &scriptedValidator{},
		applier:   &recordingApplier{store: files},
		changes:   &fakeChangeLog{},
	}
	f.engine = NewEngine(Options{
		Config:    &config.Config{MaxIterations: maxIterations},
		Root:      t.TempDir(),
		Client:    f.client,
		Files:     f.files,
		Validator: f.validator,
		Executor:  f.applier,
		Changes:   f.changes,
		Logger:    utils.GetLogger(true),
	})
	return f
}

func planResponse(path, content string) string {
	return "```json\n" + fmt.Sprintf(
		`{"reasoning": "rewrite the file", "steps": [{"kind": "create_file", "path": %q, "content": %q, "description": "rewrite the file"}]}`,
		path, content) + "\n```"
}

func errorIssue(line int, message string) diagnostics.Issue {
	return issue(diagnostics.KindSyntax, diagnostics.SeverityError, line, message)
}

func TestRunSucceedsWhenFirstValidationIsClean(t *testing.T) {
	f := newEngineFixture(t, 5)
	f.client.responses = []string{"```python\nprint('hello')\n```"}
	f.validator.samples = [][]diagnostics.Issue{nil}

	result, err := f.engine.Run(context.Background(), Request{
		Instruction: "print a greeting",
		TargetPath:  "app.py",
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.Status != StatusSuccess {
		t.Errorf("status = %q, want success", result.Status)
	}
	if result.Iterations != 0 {
		t.Errorf("iterations = %d, want 0", result.Iterations)
	}
	if result.Content != "print('hello')" {
		t.Errorf("content = %q", result.Content)
	}
	if got := f.files.files["app.py"]; got != "print('hello')" {
		t.Errorf("file on disk = %q", got)
	}
	if len(f.changes.records) != 1 || f.changes.records[0] != "app.py" {
		t.Errorf("change records = %v, want the initial generation recorded", f.changes.records)
	}
}

func TestRunConvergesAcrossIterations(t *testing.T) {
	f := newEngineFixture(t, 5)
	f.files.files["app.py"] = "broken\n"

	warning := issue(diagnostics.KindUnusedImport, diagnostics.SeverityWarning, 1, "unused import os")
	f.validator.samples = [][]diagnostics.Issue{
		{errorIssue(3, "undefined variable x"), errorIssue(9, "missing return statement"), warning},
		{warning},
		nil,
	}
	f.client.responses = []string{
		planResponse("app.py", "fixed errors\n"),
		planResponse("app.py", "fixed everything\n"),
	}

	result, err := f.engine.Run(context.Background(), Request{
		TargetPath:            "app.py",
		SkipInitialGeneration: true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.Status != StatusSuccess {
		t.Errorf("status = %q, want success", result.Status)
	}
	if result.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", result.Iterations)
	}
	if result.Content != "fixed everything\n" {
		t.Errorf("content = %q", result.Content)
	}
	if len(result.Issues) != 0 {
		t.Errorf("issues = %v, want none", result.Issues)
	}
	if f.client.calls != 2 {
		t.Errorf("chat calls = %d, want 2 plan requests and no suggestions", f.client.calls)
	}
	if f.validator.calls != 3 {
		t.Errorf("validation passes = %d, want 3", f.validator.calls)
	}
}

func TestRunStopsExactlyAtIterationBudget(t *testing.T) {
	f := newEngineFixture(t, 3)
	f.files.files["app.py"] = "broken\n"
	f.validator.samples = [][]diagnostics.Issue{
		{errorIssue(3, "undefined variable x")},
	}
	f.client.responses = []string{
		planResponse("app.py", "attempt 1\n"),
		planResponse("app.py", "attempt 2\n"),
		planResponse("app.py", "attempt 3\n"),
		"- check the variable name\n- remove the stray print",
	}

	result, err := f.engine.Run(context.Background(), Request{
		TargetPath:            "app.py",
		SkipInitialGeneration: true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.Status != StatusPartial {
		t.Errorf("status = %q, want partial", result.Status)
	}
	if result.Iterations != 3 {
		t.Errorf("iterations = %d, want exactly the budget", result.Iterations)
	}
	if f.applier.calls != 3 {
		t.Errorf("plan executions = %d, want 3", f.applier.calls)
	}
	if len(result.Issues) != 1 {
		t.Errorf("remaining issues = %v, want the persisting one", result.Issues)
	}
	if len(result.Suggestions) != 2 || result.Suggestions[0] != "check the variable name" {
		t.Errorf("suggestions = %v", result.Suggestions)
	}
	// 3 plan requests plus 1 suggestion request.
	if f.client.calls != 4 {
		t.Errorf("chat calls = %d, want 4", f.client.calls)
	}
}

func TestRunFlagsOscillationAfterTwoSimilarFailures(t *testing.T) {
	f := newEngineFixture(t, 3)
	f.files.files["app.py"] = "broken\n"
	f.validator.samples = [][]diagnostics.Issue{
		{errorIssue(3, "undefined variable x")},
	}
	f.client.responses = []string{
		planResponse("app.py", "attempt 1\n"),
		planResponse("app.py", "attempt 2\n"),
		planResponse("app.py", "attempt 3\n"),
		"- rename the variable",
	}

	if _, err := f.engine.Run(context.Background(), Request{
		TargetPath:            "app.py",
		SkipInitialGeneration: true,
	}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(f.client.messages) < 3 {
		t.Fatalf("expected at least 3 chat calls, got %d", len(f.client.messages))
	}
	secondPlanPrompt := f.client.messages[1][1].Content
	thirdPlanPrompt := f.client.messages[2][1].Content

	hint := "Do not repeat the previous fixes"
	if strings.Contains(secondPlanPrompt, hint) {
		t.Error("oscillation hint must not appear after a single failure")
	}
	if !strings.Contains(thirdPlanPrompt, hint) {
		t.Error("third plan request should carry the oscillation hint")
	}
}

func TestRunParsingFailureLeavesFileUntouched(t *testing.T) {
	f := newEngineFixture(t, 1)
	f.files.files["app.py"] = "original\n"
	f.validator.samples = [][]diagnostics.Issue{
		{errorIssue(3, "undefined variable x")},
	}
	f.client.responses = []string{
		"I think you should probably rewrite the whole module.",
		"- define the variable before use",
	}

	result, err := f.engine.Run(context.Background(), Request{
		TargetPath:            "app.py",
		SkipInitialGeneration: true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.Status != StatusPartial {
		t.Errorf("status = %q, want partial", result.Status)
	}
	if got := f.files.files["app.py"]; got != "original\n" {
		t.Errorf("file content = %q, parsing failure must not touch the file", got)
	}
	if f.applier.calls != 0 {
		t.Errorf("plan executions = %d, want 0", f.applier.calls)
	}
	// Only the initial validation; a failed parse skips re-validation.
	if f.validator.calls != 1 {
		t.Errorf("validation passes = %d, want 1", f.validator.calls)
	}
}

func TestRunEmptyPlanCountsAgainstBudget(t *testing.T) {
	f := newEngineFixture(t, 2)
	f.files.files["app.py"] = "broken\n"
	f.validator.samples = [][]diagnostics.Issue{
		{errorIssue(3, "undefined variable x")},
	}
	emptyPlan := "```json\n{\"reasoning\": \"nothing to do\", \"steps\": []}\n```"
	f.client.responses = []string{emptyPlan, emptyPlan, "- fix it by hand"}

	result, err := f.engine.Run(context.Background(), Request{
		TargetPath:            "app.py",
		SkipInitialGeneration: true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.Status != StatusPartial {
		t.Errorf("status = %q, want partial", result.Status)
	}
	if result.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", result.Iterations)
	}
	if f.applier.calls != 0 {
		t.Errorf("empty plans must not reach the executor, got %d executions", f.applier.calls)
	}
}

func TestRunContinuesAfterExecutionFailure(t *testing.T) {
	f := newEngineFixture(t, 3)
	f.files.files["app.py"] = "broken\n"
	f.validator.samples = [][]diagnostics.Issue{
		{errorIssue(3, "undefined variable x")},
		nil,
	}
	f.applier.errs = []error{&plan.StepExecutionError{
		StepIndex:   0,
		Description: "Run Command: pytest",
		Cause:       errors.New(`command "pytest" exited with code 1`),
	}}
	f.client.responses = []string{
		planResponse("app.py", "attempt 1\n"),
		planResponse("app.py", "fixed\n"),
	}

	result, err := f.engine.Run(context.Background(), Request{
		TargetPath:            "app.py",
		SkipInitialGeneration: true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.Status != StatusSuccess {
		t.Errorf("status = %q, want success after recovering", result.Status)
	}
	if result.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", result.Iterations)
	}
	if f.applier.calls != 2 {
		t.Errorf("plan executions = %d, want 2", f.applier.calls)
	}
	if result.Content != "fixed\n" {
		t.Errorf("content = %q", result.Content)
	}
}

func TestRunCancelledBeforeLoopMakesNoGenerationCalls(t *testing.T) {
	f := newEngineFixture(t, 5)
	f.files.files["app.py"] = "original\n"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.engine.Run(ctx, Request{
		TargetPath:            "app.py",
		SkipInitialGeneration: true,
	})
	if err != nil {
		t.Fatalf("cancellation is a result, not an error: %v", err)
	}

	if result.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", result.Status)
	}
	if f.client.calls != 0 {
		t.Errorf("chat calls = %d, want 0 after cancellation", f.client.calls)
	}
	if result.Content != "original\n" {
		t.Errorf("content = %q, want the last known content", result.Content)
	}
	last := result.Issues[len(result.Issues)-1]
	if last.Severity != diagnostics.SeverityInfo || !strings.Contains(last.Message, "cancelled") {
		t.Errorf("expected an informational cancellation annotation, got %+v", last)
	}
}

func TestRunCancelledMidLoopKeepsValidatedContent(t *testing.T) {
	f := newEngineFixture(t, 5)
	f.files.files["app.py"] = "broken\n"
	f.validator.samples = [][]diagnostics.Issue{
		{errorIssue(3, "undefined variable x")},
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.client.cancel = cancel
	f.client.cancelOn = 2 // cancel during the second plan request
	f.client.responses = []string{
		planResponse("app.py", "attempt 1\n"),
	}

	result, err := f.engine.Run(ctx, Request{
		TargetPath:            "app.py",
		SkipInitialGeneration: true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", result.Status)
	}
	if result.Iterations != 1 {
		t.Errorf("iterations = %d, want 1 completed iteration", result.Iterations)
	}
	if f.client.calls != 2 {
		t.Errorf("chat calls = %d, want no calls after the cancelled one", f.client.calls)
	}
	if result.Content != "attempt 1\n" {
		t.Errorf("content = %q, want the last validated content", result.Content)
	}
}

func TestRunFixRequiresExistingFile(t *testing.T) {
	f := newEngineFixture(t, 5)

	_, err := f.engine.Run(context.Background(), Request{
		TargetPath:            "missing.py",
		SkipInitialGeneration: true,
	})
	if err == nil {
		t.Fatal("expected an error for fixing a file that does not exist")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error should wrap fs.ErrNotExist, got %v", err)
	}
}

func TestRunRequiresInstructionForGeneration(t *testing.T) {
	f := newEngineFixture(t, 5)

	if _, err := f.engine.Run(context.Background(), Request{TargetPath: "app.py"}); err == nil {
		t.Fatal("expected an error for generation without instructions")
	}
	if _, err := f.engine.Run(context.Background(), Request{Instruction: "do it"}); err == nil {
		t.Fatal("expected an error for a missing target path")
	}
}
