package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/mendtool/mend/pkg/utils"
)

// CommandResult captures everything a caller needs to judge a command run.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes shell commands with a per-command timeout.
type Runner struct {
	timeout time.Duration
}

func NewRunner(timeout time.Duration) *Runner {
	return &Runner{timeout: timeout}
}

// Run executes commandLine through the shell with dir as the working
// directory. A non-zero exit code is reported in the result, not as an
// error; err is reserved for cancellation and failures to run at all. A
// command hitting the runner's own timeout comes back as a transient error
// so the caller may retry it.
func (r *Runner) Run(ctx context.Context, commandLine, dir string) (CommandResult, error) {
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", commandLine)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if runCtx.Err() == context.DeadlineExceeded {
			return result, utils.Transient(fmt.Errorf("command %q timed out after %s", commandLine, r.timeout))
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("running command %q: %w", commandLine, err)
	}
	return result, nil
}
