package correction

import (
	"fmt"
	"strings"

	"github.com/mendtool/mend/pkg/diagnostics"
)

// FailureKind classifies why one correction attempt did not finish the job.
// The zero value means the attempt improved matters and carries no failure.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureNoImprovement FailureKind = "no_improvement"
	FailureNewErrors     FailureKind = "new_errors_introduced"
	FailureOscillation   FailureKind = "oscillation_detected"
	FailureParsing       FailureKind = "parsing_failed"
	FailureCommand       FailureKind = "command_failed"
	FailureUnknown       FailureKind = "unknown"
)

// AttemptOutcome records what one loop iteration did. Outcomes are appended
// to the request history only after both plan execution and re-validation
// complete; partial iterations are never recorded.
type AttemptOutcome struct {
	Iteration     int                 `json:"iteration"`
	IssuesBefore  int                 `json:"issues_before"`
	IssuesAfter   int                 `json:"issues_after"`
	Remaining     []diagnostics.Issue `json:"remaining,omitempty"`
	Introduced    []diagnostics.Issue `json:"introduced,omitempty"`
	DiffSummary   string              `json:"diff_summary,omitempty"`
	Kind          FailureKind         `json:"kind,omitempty"`
	FailureDetail string              `json:"failure_detail,omitempty"` // cause text for parsing/command failures
	Feedback      string              `json:"feedback,omitempty"`
}

// messageSimilarity is how close two issue messages must be, as word-set
// Jaccard overlap, to count as the same underlying problem.
const messageSimilarityThreshold = 0.7

// SimilarIssues reports whether two issues describe the same underlying
// problem: same kind and severity, same or adjacent line, and mostly the
// same words in the message. Line numbers shift by one as fixes add or
// remove lines, which is why adjacency counts as a match.
func SimilarIssues(a, b diagnostics.Issue) bool {
	if a.Kind != b.Kind || a.Severity != b.Severity {
		return false
	}
	delta := a.Line - b.Line
	if delta < -1 || delta > 1 {
		return false
	}
	return messageSimilarity(a.Message, b.Message) >= messageSimilarityThreshold
}

func messageSimilarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:()[]{}'\"`")
		if w != "" {
			set[w] = true
		}
	}
	return set
}

// SimilarIssueSets reports whether two issue sets are structurally the same:
// equal size, and every issue in a matches a distinct issue in b.
func SimilarIssueSets(a, b []diagnostics.Issue) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, issueA := range a {
		matched := false
		for j, issueB := range b {
			if used[j] {
				continue
			}
			if SimilarIssues(issueA, issueB) {
				used[j] = true
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// ClassifyOutcome compares the issue sets around one attempt and names the
// failure, if any. introduced holds the issues in after with no structural
// counterpart in before.
//
// An empty after set is success. New issues always dominate the
// classification, even when the total count dropped. An attempt that
// strictly reduced the issue count without introducing any is an
// improvement, not a failure, regardless of the oscillation flag.
func ClassifyOutcome(before, after []diagnostics.Issue, oscillating bool) (FailureKind, []diagnostics.Issue) {
	if len(after) == 0 {
		return FailureNone, nil
	}

	var introduced []diagnostics.Issue
	for _, issueAfter := range after {
		matched := false
		for _, issueBefore := range before {
			if SimilarIssues(issueAfter, issueBefore) {
				matched = true
				break
			}
		}
		if !matched {
			introduced = append(introduced, issueAfter)
		}
	}

	switch {
	case len(introduced) > 0:
		return FailureNewErrors, introduced
	case len(after) < len(before):
		return FailureNone, nil
	case oscillating:
		return FailureOscillation, nil
	default:
		return FailureNoImprovement, nil
	}
}

// Oscillating reports whether the two most recent outcomes both failed with
// structurally similar remaining issues. The window is deliberately two
// attempts wide; longer cycles go undetected.
func Oscillating(history []AttemptOutcome) bool {
	if len(history) < 2 {
		return false
	}
	prev := history[len(history)-2]
	last := history[len(history)-1]
	if prev.Kind == FailureNone || last.Kind == FailureNone {
		return false
	}
	return SimilarIssueSets(prev.Remaining, last.Remaining)
}

// FeedbackText renders the failure-specific guidance for the next plan
// request. This text is the only channel by which one attempt influences the
// next.
func (o AttemptOutcome) FeedbackText() string {
	var b strings.Builder
	switch o.Kind {
	case FailureParsing:
		fmt.Fprintf(&b, "Attempt %d: the correction plan could not be parsed. Respond with ONLY the JSON plan object, nothing else.", o.Iteration)
	case FailureCommand:
		fmt.Fprintf(&b, "Attempt %d: the plan failed while executing (%s). Propose a different approach that avoids the failing step.", o.Iteration, o.FailureDetail)
	case FailureNewErrors:
		fmt.Fprintf(&b, "Attempt %d introduced new issues while fixing others:\n", o.Iteration)
		for _, issue := range o.Introduced {
			fmt.Fprintf(&b, "- %s\n", issue.String())
		}
		b.WriteString("Fix the original issues without introducing these.")
	case FailureOscillation:
		fmt.Fprintf(&b, "Attempt %d: the same issues keep recurring across attempts. Do not repeat the previous fixes; take a structurally different approach.", o.Iteration)
	case FailureNoImprovement:
		fmt.Fprintf(&b, "Attempt %d changed the file but resolved none of the %d issue(s). The previous approach is not working; try something different.", o.Iteration, o.IssuesAfter)
	case FailureNone:
		fmt.Fprintf(&b, "Attempt %d reduced the issues from %d to %d. Continue fixing the remaining ones.", o.Iteration, o.IssuesBefore, o.IssuesAfter)
	default:
		fmt.Fprintf(&b, "Attempt %d failed for an unknown reason. Re-examine the issues and try again.", o.Iteration)
	}
	return b.String()
}
