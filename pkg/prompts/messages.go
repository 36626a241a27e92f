package prompts

import (
	"fmt"
	"time"
)

// --- Config messages ---

func ConfigLoadFailed(err error) string {
	return fmt.Sprintf("Failed to load config: %v. Please check your .mend/config.json.", err)
}

// --- Request messages ---

func InstructionsRequired() string {
	return "Instructions are required for the 'code' command. Please provide a description of the changes you want to make."
}

func ProcessingRequest() string {
	return "Processing generation request..."
}

func RequestFinished(duration time.Duration) string {
	return fmt.Sprintf("Request finished in %s\n", duration)
}

func RequestCancelled() string {
	return "Request cancelled. The last applied content was kept."
}

func RequestFailed(err error) string {
	return fmt.Sprintf("❌ Request failed: %v", err)
}

// --- Correction loop messages ---

func IterationStarted(iteration, max int) string {
	return fmt.Sprintf("🔄 Correction iteration %d of %d", iteration, max)
}

func IssuesFound(count int) string {
	if count == 1 {
		return "🔍 Validation found 1 issue"
	}
	return fmt.Sprintf("🔍 Validation found %d issues", count)
}

func AllIssuesResolved(iterations int) string {
	if iterations == 0 {
		return "✅ Validation passed on the first attempt"
	}
	return fmt.Sprintf("✅ All issues resolved after %d correction iteration(s)", iterations)
}

func BudgetExhausted(max, remaining int) string {
	return fmt.Sprintf("⚠️ Stopping after %d iterations with %d issue(s) remaining", max, remaining)
}

func OscillationDetected() string {
	return "⚠️ Recent attempts keep producing the same issues. Asking the model to break the pattern."
}

// --- Command execution messages ---

func ConfirmCommandPrompt(command string) string {
	return fmt.Sprintf("The correction plan wants to run a command:\n\n    %s\n\nRun it?", command)
}

func CommandSkipped(command string) string {
	return fmt.Sprintf("Skipped command: %s", command)
}

// --- Rollback messages ---

func NoChangesRecorded() string {
	return "No changes recorded."
}

func RevisionReverted(revisionID string) string {
	return fmt.Sprintf("Reverted revision %s.", revisionID)
}

func RevisionRestored(revisionID string) string {
	return fmt.Sprintf("Restored revision %s.", revisionID)
}
