package plan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/mendtool/mend/pkg/events"
	"github.com/mendtool/mend/pkg/prompts"
	"github.com/mendtool/mend/pkg/utils"
	"github.com/mendtool/mend/pkg/workspace"
)

const maxStepAttempts = 3

// WorkspaceIO is the slice of workspace behavior the executor needs.
type WorkspaceIO interface {
	ReadFileForEdit(path string) (string, error)
	WriteFile(path, content string) error
	EnsureDir(path string) error
}

// ContentGenerator produces complete file content for a step. The engine
// provides one that sends the instruction to the configured model and
// extracts the resulting document.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, path, instruction, currentContent string) (string, error)
}

// CommandRunner executes one shell command inside the workspace.
type CommandRunner interface {
	Run(ctx context.Context, commandLine, dir string) (workspace.CommandResult, error)
}

// ChangeLogger records applied modifications so they can be rolled back.
type ChangeLogger interface {
	RecordChange(revisionID, filename, originalCode, newCode, description string) (string, error)
}

// StepExecutionError reports which plan step failed and why. Cancellation is
// never wrapped in one; it propagates as the context's own error.
type StepExecutionError struct {
	StepIndex   int // zero-based position in the plan
	Description string
	Cause       error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("plan step %d (%s): %v", e.StepIndex+1, e.Description, e.Cause)
}

func (e *StepExecutionError) Unwrap() error {
	return e.Cause
}

// ExecutorOptions wires an Executor to the workspace, the model, and the
// change log.
type ExecutorOptions struct {
	Root      string
	Files     WorkspaceIO
	Generator ContentGenerator
	Runner    CommandRunner
	Changes   ChangeLogger
	Bus       *events.EventBus // optional
	Logger    *utils.Logger
	Confirm   func(prompt string) bool // defaults to asking through Logger
}

// Executor applies correction plans step by step. Steps run strictly in
// order; the first failure stops the plan.
type Executor struct {
	root       string
	files      WorkspaceIO
	generator  ContentGenerator
	runner     CommandRunner
	changes    ChangeLogger
	bus        *events.EventBus
	logger     *utils.Logger
	confirm    func(prompt string) bool
	retryDelay func(attempt int) time.Duration
}

func NewExecutor(opts ExecutorOptions) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = utils.GetLogger(true)
	}
	confirm := opts.Confirm
	if confirm == nil {
		confirm = func(prompt string) bool {
			return logger.AskForConfirmation(prompt, false, false)
		}
	}
	return &Executor{
		root:       opts.Root,
		files:      opts.Files,
		generator:  opts.Generator,
		runner:     opts.Runner,
		changes:    opts.Changes,
		bus:        opts.Bus,
		logger:     logger,
		confirm:    confirm,
		retryDelay: defaultRetryDelay,
	}
}

func defaultRetryDelay(attempt int) time.Duration {
	return 10*time.Second + time.Duration(attempt)*5*time.Second
}

// Execute applies every step of the plan in order, updating step statuses in
// place. Changes to files are recorded under revisionID. It returns the
// workspace paths the plan touched, and a *StepExecutionError for the first
// step that fails, or the context's error when the request is cancelled.
// Paths already applied before a failure are still reported.
func (e *Executor) Execute(ctx context.Context, p *Plan, revisionID string) ([]string, error) {
	if p.IsEmpty() {
		return nil, nil
	}
	var affected []string
	seen := map[string]bool{}
	record := func(path string) {
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		affected = append(affected, path)
	}

	for i := range p.Steps {
		step := &p.Steps[i]
		if err := ctx.Err(); err != nil {
			return affected, err
		}
		step.Status = StatusInProgress
		e.logger.LogProcessStep(fmt.Sprintf("🔄 Step %d/%d: %s", i+1, len(p.Steps), step.Describe()))

		path, err := e.runStepWithRetry(ctx, i, step, revisionID)
		if err != nil {
			step.Status = StatusFailed
			e.publishStep(i, step)
			if cerr := ctx.Err(); cerr != nil {
				return affected, cerr
			}
			return affected, &StepExecutionError{StepIndex: i, Description: step.Describe(), Cause: err}
		}
		record(path)
		if step.Status != StatusSkipped {
			step.Status = StatusCompleted
		}
		e.publishStep(i, step)
	}
	return affected, nil
}

// runStepWithRetry retries a step on transient failures, waiting between
// attempts. Permanent failures and cancellation return immediately. The
// returned path is the workspace path the step touched, if any.
func (e *Executor) runStepWithRetry(ctx context.Context, index int, step *Step, revisionID string) (string, error) {
	var path string
	var lastErr error
	for attempt := 1; attempt <= maxStepAttempts; attempt++ {
		if attempt > 1 {
			e.logger.LogProcessStep(fmt.Sprintf("🔄 Retrying step %d (attempt %d/%d)", index+1, attempt, maxStepAttempts))
		}
		path, lastErr = e.runStep(ctx, step, revisionID)
		if lastErr == nil {
			return path, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !utils.IsTransientError(lastErr) {
			return "", lastErr
		}
		if attempt == maxStepAttempts {
			break
		}
		delay := e.retryDelay(attempt)
		e.logger.LogProcessStep(fmt.Sprintf("⚠️ Step %d hit a transient failure, waiting %s before retrying: %v", index+1, delay, lastErr))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", lastErr
}

func (e *Executor) runStep(ctx context.Context, step *Step, revisionID string) (string, error) {
	switch step.Kind {
	case StepCreateDirectory:
		if err := e.files.EnsureDir(step.Path); err != nil {
			return "", err
		}
		return step.Path, nil
	case StepCreateFile:
		return e.createFile(ctx, step, revisionID)
	case StepModifyFile:
		return e.modifyFile(ctx, step, revisionID)
	case StepRunCommand:
		return "", e.runCommand(ctx, step)
	default:
		return "", fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (e *Executor) createFile(ctx context.Context, step *Step, revisionID string) (string, error) {
	original := ""
	existing, err := e.files.ReadFileForEdit(step.Path)
	switch {
	case err == nil:
		original = existing
	case errors.Is(err, fs.ErrNotExist):
	default:
		return "", err
	}

	content := step.Content
	if content == "" {
		content, err = e.generator.GenerateContent(ctx, step.Path, step.Instruction, original)
		if err != nil {
			return "", err
		}
	}

	if original != "" && original == content {
		e.logger.LogProcessStep(fmt.Sprintf("✅ %s already has the intended content", step.Path))
		return "", nil
	}
	if err := e.files.WriteFile(step.Path, content); err != nil {
		return "", err
	}
	summary, err := e.changes.RecordChange(revisionID, step.Path, original, content, step.Describe())
	if err != nil {
		return "", err
	}
	e.logger.LogProcessStep(fmt.Sprintf("💾 Wrote %s (%s)", step.Path, summary))
	return step.Path, nil
}

func (e *Executor) modifyFile(ctx context.Context, step *Step, revisionID string) (string, error) {
	original, err := e.files.ReadFileForEdit(step.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("cannot modify %s: file does not exist", step.Path)
		}
		return "", err
	}

	updated, err := e.generator.GenerateContent(ctx, step.Path, step.Instruction, original)
	if err != nil {
		return "", err
	}
	if updated == original {
		e.logger.LogProcessStep(fmt.Sprintf("✅ %s is already in the requested state", step.Path))
		return "", nil
	}
	if err := e.files.WriteFile(step.Path, updated); err != nil {
		return "", err
	}
	summary, err := e.changes.RecordChange(revisionID, step.Path, original, updated, step.Describe())
	if err != nil {
		return "", err
	}
	e.logger.LogProcessStep(fmt.Sprintf("💾 Updated %s (%s)", step.Path, summary))
	return step.Path, nil
}

// runCommand asks before executing. A declined command is a skipped step,
// not a failure, so the rest of the plan still runs.
func (e *Executor) runCommand(ctx context.Context, step *Step) error {
	if !e.confirm(prompts.ConfirmCommandPrompt(step.Command)) {
		e.logger.LogProcessStep(fmt.Sprintf("⚠️ %s", prompts.CommandSkipped(step.Command)))
		step.Status = StatusSkipped
		return nil
	}

	result, err := e.runner.Run(ctx, step.Command, e.root)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(result.Stdout)
		}
		return fmt.Errorf("command %q exited with code %d: %s", step.Command, result.ExitCode, detail)
	}
	e.logger.LogProcessStep(fmt.Sprintf("✅ Command succeeded: %s", step.Command))
	return nil
}

func (e *Executor) publishStep(index int, step *Step) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.EventTypeStepCompleted, events.StepCompletedEvent(index, step.Describe(), step.Status))
}
