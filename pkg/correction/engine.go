package correction

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/mendtool/mend/pkg/changetracker"
	"github.com/mendtool/mend/pkg/config"
	"github.com/mendtool/mend/pkg/diagnostics"
	"github.com/mendtool/mend/pkg/events"
	"github.com/mendtool/mend/pkg/llm"
	"github.com/mendtool/mend/pkg/parser"
	"github.com/mendtool/mend/pkg/plan"
	"github.com/mendtool/mend/pkg/prompts"
	"github.com/mendtool/mend/pkg/utils"
	"github.com/mendtool/mend/pkg/workspace"
)

// Terminal request statuses.
const (
	StatusSuccess   = "success"
	StatusPartial   = "partial"
	StatusCancelled = "cancelled"
)

const (
	defaultMaxIterations = 5
	maxContextFiles      = 100

	oscillationHint = "The last attempts keep failing with the same issues. Do not repeat the previous fixes; take a structurally different approach."
)

// Request describes one top-level generation or repair operation.
type Request struct {
	Instruction string
	TargetPath  string
	// SkipInitialGeneration repairs the file's current content against
	// current diagnostics without regenerating it first (fix mode).
	SkipInitialGeneration bool
}

// Result is what a finished request reports. Status is always one of the
// three terminal states: "could not fix everything" is StatusPartial with
// the remaining issues attached, never an error.
type Result struct {
	Status      string
	Content     string
	Issues      []diagnostics.Issue
	Suggestions []string
	Iterations  int
	Duration    time.Duration
}

// FileStore is the slice of workspace behavior the engine needs.
type FileStore interface {
	ReadFileForEdit(path string) (string, error)
	WriteFile(path, content string) error
}

// IssueValidator waits for diagnostics to stabilize and returns the
// classified current sample.
type IssueValidator interface {
	StableIssues(ctx context.Context, target string, opts diagnostics.StabilizeOptions) ([]diagnostics.Issue, error)
}

// PlanApplier executes a parsed correction plan against the workspace and
// reports which paths it touched.
type PlanApplier interface {
	Execute(ctx context.Context, p *plan.Plan, revisionID string) ([]string, error)
}

// ChangeLog groups and records the file modifications of one request.
type ChangeLog interface {
	StartRevision(instructions string) string
	RecordChange(revisionID, filename, originalCode, newCode, description string) (string, error)
	ChangedFilesSince(since time.Time) ([]string, error)
}

// Options wires an Engine to its collaborators.
type Options struct {
	Config    *config.Config
	Root      string
	Client    llm.Client
	Files     FileStore
	Validator IssueValidator
	Executor  PlanApplier
	Changes   ChangeLog
	Bus       *events.EventBus // optional
	Logger    *utils.Logger
}

// Engine runs the correction state machine: generate, validate, and repair
// until diagnostics are clean, the iteration budget is exhausted, or the
// request is cancelled.
type Engine struct {
	cfg       *config.Config
	root      string
	client    llm.Client
	files     FileStore
	validator IssueValidator
	executor  PlanApplier
	changes   ChangeLog
	bus       *events.EventBus
	logger    *utils.Logger
}

func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = utils.GetLogger(true)
	}
	root := opts.Root
	if root == "" {
		root = "."
	}
	return &Engine{
		cfg:       opts.Config,
		root:      root,
		client:    opts.Client,
		files:     opts.Files,
		validator: opts.Validator,
		executor:  opts.Executor,
		changes:   opts.Changes,
		bus:       opts.Bus,
		logger:    logger,
	}
}

// Run executes one request end to end and returns its terminal result. Only
// genuinely exceptional conditions (unreachable workspace, permission
// problems, a broken initial generation) surface as errors; remaining issues
// and cancellation are normal results.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.TargetPath) == "" {
		return nil, fmt.Errorf("a target file is required")
	}
	if !req.SkipInitialGeneration && strings.TrimSpace(req.Instruction) == "" {
		return nil, fmt.Errorf("instructions are required to generate content")
	}

	start := time.Now()
	e.publish(events.EventTypeRequestStarted, events.RequestStartedEvent(req.TargetPath, e.client.Provider(), e.client.Model()))

	gctx := GenerationContext{
		Instruction:    req.Instruction,
		TargetPath:     req.TargetPath,
		Language:       workspace.LanguageForPath(req.TargetPath),
		ProjectContext: workspace.ProjectContext(e.root, req.TargetPath, maxContextFiles),
	}

	revisionID := e.changes.StartRevision(req.Instruction)

	content := ""
	current, err := e.files.ReadFileForEdit(req.TargetPath)
	switch {
	case err == nil:
		content = current
	case errors.Is(err, fs.ErrNotExist):
		if req.SkipInitialGeneration {
			return nil, fmt.Errorf("cannot fix %s: %w", req.TargetPath, err)
		}
	default:
		return nil, err
	}

	if !req.SkipInitialGeneration {
		e.publish(events.EventTypeStageChanged, events.StageChangedEvent("generating", "Generating content", 10))
		e.logger.LogProcessStep(fmt.Sprintf("🔄 Generating %s", req.TargetPath))
		generated, gerr := e.generateInitial(ctx, gctx, content)
		if gerr != nil {
			if ctx.Err() != nil {
				return e.finishCancelled(content, nil, 0, start), nil
			}
			return nil, fmt.Errorf("initial generation failed: %w", gerr)
		}
		if generated != content {
			if werr := e.files.WriteFile(req.TargetPath, generated); werr != nil {
				return nil, werr
			}
			if _, cerr := e.changes.RecordChange(revisionID, req.TargetPath, content, generated, "Initial generation"); cerr != nil {
				return nil, cerr
			}
		}
		content = generated
	}

	e.publish(events.EventTypeStageChanged, events.StageChangedEvent("validating", "Waiting for diagnostics to stabilize", 40))
	e.logger.LogProcessStep(fmt.Sprintf("🔍 Validating %s", req.TargetPath))
	issues, verr := e.validator.StableIssues(ctx, req.TargetPath, e.stabilizeOptions())
	if verr != nil {
		if ctx.Err() != nil {
			return e.finishCancelled(content, nil, 0, start), nil
		}
		return nil, verr
	}
	e.publish(events.EventTypeIssuesUpdated, events.IssuesUpdatedEvent(req.TargetPath, issueStrings(issues), nil))

	if len(issues) == 0 {
		e.logger.LogProcessStep(prompts.AllIssuesResolved(0))
		return e.finish(StatusSuccess, content, nil, nil, 0, start), nil
	}
	e.logger.LogProcessStep(prompts.IssuesFound(len(issues)))

	return e.correct(ctx, gctx, revisionID, content, issues, start)
}

// correct is the bounded repair loop. Every iteration either converges,
// records an outcome and continues, or exits on cancellation; falling out of
// the loop means the budget is spent and the result is partial.
func (e *Engine) correct(ctx context.Context, gctx GenerationContext, revisionID, content string, issues []diagnostics.Issue, start time.Time) (*Result, error) {
	maxIterations := e.cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	for iteration := 1; iteration <= maxIterations; iteration++ {
		if ctx.Err() != nil {
			return e.finishCancelled(content, issues, iteration-1, start), nil
		}

		e.logger.LogProcessStep(prompts.IterationStarted(iteration, maxIterations))
		e.publish(events.EventTypeIterationStarted, events.IterationStartedEvent(iteration, maxIterations, len(issues)))

		// Context refresh: feedback richness only, content untouched.
		gctx.ProjectContext = workspace.ProjectContext(e.root, gctx.TargetPath, maxContextFiles)
		if recent, rerr := e.changes.ChangedFilesSince(start); rerr == nil && len(recent) > 0 {
			gctx.ProjectContext += fmt.Sprintf("Files changed by this request so far: %s\n", strings.Join(recent, ", "))
		}
		gctx.FileStructure = fileStructure(gctx.Language, content)

		gctx.IsOscillating = Oscillating(gctx.History)
		feedback := ""
		if last, ok := gctx.LastOutcome(); ok {
			feedback = last.Feedback
		}
		if gctx.IsOscillating {
			e.logger.LogProcessStep(prompts.OscillationDetected())
			feedback = strings.TrimSpace(feedback + "\n" + oscillationHint)
		}

		messages := prompts.BuildPlanMessages(gctx.TargetPath, content, gctx.Language, issueStrings(issues), feedback)
		planText, err := llm.ChatWithRetry(ctx, e.client, messages, e.streamChunk, e.logger)
		if err != nil {
			if ctx.Err() != nil {
				return e.finishCancelled(content, issues, iteration-1, start), nil
			}
			e.logger.LogProcessStep(fmt.Sprintf("❌ Plan generation failed: %v", err))
			gctx = e.recordFailure(gctx, FailureParsing, err.Error(), iteration, issues)
			continue
		}

		correctionPlan, perr := plan.Parse(planText)
		if perr != nil {
			e.logger.LogProcessStep(fmt.Sprintf("❌ Could not parse the correction plan: %v", perr))
			gctx = e.recordFailure(gctx, FailureParsing, perr.Error(), iteration, issues)
			continue
		}
		if correctionPlan.IsEmpty() {
			e.logger.LogProcessStep("⚠️ The model proposed no corrective steps")
			gctx = e.recordFailure(gctx, FailureNoImprovement, "the plan proposed no steps", iteration, issues)
			continue
		}

		affected, execErr := e.executor.Execute(ctx, correctionPlan, revisionID)
		if execErr != nil {
			if ctx.Err() != nil {
				return e.finishCancelled(content, issues, iteration-1, start), nil
			}
			e.logger.LogProcessStep(fmt.Sprintf("❌ Plan execution failed: %v", execErr))
			gctx = e.recordFailure(gctx, FailureCommand, execErr.Error(), iteration, issues)
			// Completed steps stay applied; pick up whatever is on disk so
			// the next prompt sees the real file.
			if refreshed, rerr := e.files.ReadFileForEdit(gctx.TargetPath); rerr == nil {
				content = refreshed
			}
			continue
		}
		if len(affected) > 0 {
			e.logger.Logf("iteration %d plan touched: %s", iteration, strings.Join(affected, ", "))
		}

		updated, rerr := e.files.ReadFileForEdit(gctx.TargetPath)
		if rerr != nil {
			if !errors.Is(rerr, fs.ErrNotExist) {
				return nil, rerr
			}
			updated = ""
		}

		issuesAfter, verr := e.validator.StableIssues(ctx, gctx.TargetPath, e.stabilizeOptions())
		if verr != nil {
			if ctx.Err() != nil {
				return e.finishCancelled(updated, issues, iteration-1, start), nil
			}
			return nil, verr
		}
		e.publish(events.EventTypeIssuesUpdated, events.IssuesUpdatedEvent(gctx.TargetPath, issueStrings(issuesAfter), nil))

		kind, introduced := ClassifyOutcome(issues, issuesAfter, gctx.IsOscillating)
		outcome := AttemptOutcome{
			Iteration:    iteration,
			IssuesBefore: len(issues),
			IssuesAfter:  len(issuesAfter),
			Remaining:    issuesAfter,
			Introduced:   introduced,
			DiffSummary:  changetracker.ChangeSummary(content, updated),
			Kind:         kind,
		}
		outcome.Feedback = outcome.FeedbackText()
		gctx = gctx.RecordOutcome(outcome)
		content = updated

		if len(issuesAfter) == 0 {
			e.logger.LogProcessStep(prompts.AllIssuesResolved(iteration))
			gctx = gctx.ClearHistory()
			return e.finish(StatusSuccess, content, nil, nil, iteration, start), nil
		}
		issues = issuesAfter
	}

	e.logger.LogProcessStep(prompts.BudgetExhausted(maxIterations, len(issues)))
	suggestions := e.suggestions(ctx, gctx.TargetPath, issues)
	e.publish(events.EventTypeIssuesUpdated, events.IssuesUpdatedEvent(gctx.TargetPath, issueStrings(issues), suggestions))
	return e.finish(StatusPartial, content, issues, suggestions, maxIterations, start), nil
}

func (e *Engine) generateInitial(ctx context.Context, gctx GenerationContext, current string) (string, error) {
	messages := prompts.BuildGenerationMessages(gctx.Instruction, gctx.TargetPath, current, gctx.ProjectContext, gctx.Language)
	raw, err := llm.ChatWithRetry(ctx, e.client, messages, e.streamChunk, e.logger)
	if err != nil {
		return "", err
	}
	content := parser.ExtractCode(raw)
	if content == "" {
		return "", fmt.Errorf("model returned no code for %s", gctx.TargetPath)
	}
	if current != "" && parser.HasPartialContentMarker(content) {
		return "", fmt.Errorf("model returned partial content for %s", gctx.TargetPath)
	}
	return content, nil
}

// recordFailure registers an iteration that never reached re-validation
// (unparseable plan, empty plan, failed execution). The issue set carries
// over unchanged as the baseline for the next attempt.
func (e *Engine) recordFailure(gctx GenerationContext, kind FailureKind, detail string, iteration int, issues []diagnostics.Issue) GenerationContext {
	outcome := AttemptOutcome{
		Iteration:     iteration,
		IssuesBefore:  len(issues),
		IssuesAfter:   len(issues),
		Remaining:     issues,
		Kind:          kind,
		FailureDetail: detail,
	}
	outcome.Feedback = outcome.FeedbackText()
	return gctx.RecordOutcome(outcome)
}

// suggestions asks the model for human-readable fix hints on the issues the
// loop could not resolve. Best effort: any failure just means no hints.
func (e *Engine) suggestions(ctx context.Context, target string, issues []diagnostics.Issue) []string {
	if ctx.Err() != nil || len(issues) == 0 {
		return nil
	}
	raw, err := llm.ChatWithRetry(ctx, e.client, prompts.BuildSuggestionMessages(target, issueStrings(issues)), func(string) {}, e.logger)
	if err != nil {
		e.logger.Logf("suggestion request failed: %v", err)
		return nil
	}
	return parseSuggestionList(raw)
}

func (e *Engine) finish(status, content string, issues []diagnostics.Issue, suggestions []string, iterations int, start time.Time) *Result {
	duration := time.Since(start)
	e.publish(events.EventTypeRequestCompleted, events.RequestCompletedEvent(status, iterations, len(issues), duration))
	return &Result{
		Status:      status,
		Content:     content,
		Issues:      issues,
		Suggestions: suggestions,
		Iterations:  iterations,
		Duration:    duration,
	}
}

// finishCancelled reports the latest known content annotated with an
// informational cancellation issue. Files already written stay written.
func (e *Engine) finishCancelled(content string, issues []diagnostics.Issue, iterations int, start time.Time) *Result {
	e.logger.LogProcessStep(fmt.Sprintf("⚠️ %s", prompts.RequestCancelled()))
	annotated := make([]diagnostics.Issue, 0, len(issues)+1)
	annotated = append(annotated, issues...)
	annotated = append(annotated, diagnostics.Issue{
		Kind:     diagnostics.KindOther,
		Severity: diagnostics.SeverityInfo,
		Line:     1,
		Message:  "request cancelled before the correction loop finished",
	})
	return e.finish(StatusCancelled, content, annotated, nil, iterations, start)
}

func (e *Engine) stabilizeOptions() diagnostics.StabilizeOptions {
	return diagnostics.StabilizeOptions{
		Timeout:              e.cfg.StabilizationTimeout(),
		BaseInterval:         e.cfg.StabilizationInterval(),
		RequiredStableChecks: e.cfg.StabilizationStableChecks,
		MaxBackoffCap:        e.cfg.StabilizationBackoffCap(),
	}
}

func (e *Engine) streamChunk(chunk string) {
	e.publish(events.EventTypeStreamChunk, events.StreamChunkEvent(chunk))
}

func (e *Engine) publish(eventType string, data any) {
	if e.bus != nil {
		e.bus.Publish(eventType, data)
	}
}

func fileStructure(language, content string) string {
	lines := strings.Count(content, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		lines++
	}
	return fmt.Sprintf("%s, %d lines", language, lines)
}

func issueStrings(issues []diagnostics.Issue) []string {
	if len(issues) == 0 {
		return nil
	}
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.String()
	}
	return out
}

func parseSuggestionList(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
