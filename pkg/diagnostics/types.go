// Package diagnostics normalizes the external diagnostic signal (compiler,
// linter, editor) into issues the correction engine can reason about, and
// waits for that signal to stabilize after an edit.
package diagnostics

import (
	"fmt"
	"sort"
	"strings"
)

// Severity of a reported issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// IssueKind buckets an issue for feedback prompts and similarity matching.
type IssueKind string

const (
	KindSyntax       IssueKind = "syntax"
	KindUnusedImport IssueKind = "unused_import"
	KindBestPractice IssueKind = "best_practice"
	KindSecurity     IssueKind = "security"
	KindFormatError  IssueKind = "format_error"
	KindOther        IssueKind = "other"
)

// RawDiagnostic is one record as reported by the diagnostic source, before
// normalization. Line and column indexing follow the source's convention;
// OneBased says which one that is.
type RawDiagnostic struct {
	Severity string `json:"severity"`
	Line     int    `json:"line"`
	Column   int    `json:"column,omitempty"`
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
	Source   string `json:"source,omitempty"`
	OneBased bool   `json:"-"`
}

// Issue is a single normalized diagnostic finding. Line is always 1-indexed;
// the conversion happens exactly once, in Classify. Issues are immutable
// snapshots and are compared across validation passes by structural
// similarity, never by identity.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Line     int       `json:"line"`
	Column   int       `json:"column,omitempty"`
	Message  string    `json:"message"`
	Code     string    `json:"code,omitempty"`
	Source   string    `json:"source,omitempty"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s/%s] line %d: %s", i.Severity, i.Kind, i.Line, i.Message)
}

// ValidationResult is an immutable snapshot of one validation pass over a
// candidate file content.
type ValidationResult struct {
	Valid       bool     `json:"valid"` // true iff no issue has severity error
	Content     string   `json:"content"`
	Issues      []Issue  `json:"issues"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// NewValidationResult derives Valid from the issue severities.
func NewValidationResult(content string, issues []Issue, suggestions []string) ValidationResult {
	valid := true
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			valid = false
			break
		}
	}
	return ValidationResult{
		Valid:       valid,
		Content:     content,
		Issues:      issues,
		Suggestions: suggestions,
	}
}

// ErrorCount returns how many issues carry severity error.
func (r ValidationResult) ErrorCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			count++
		}
	}
	return count
}

func severityRank(s string) int {
	switch Severity(strings.ToLower(s)) {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	default:
		return 3
	}
}

// Fingerprint serializes a diagnostic sample into a canonical,
// order-independent form: sorted by severity, then line, then column, then
// message. Two samples with the same fingerprint are considered identical by
// the stabilization monitor.
func Fingerprint(diags []RawDiagnostic) string {
	sorted := make([]RawDiagnostic, len(diags))
	copy(sorted, diags)
	sort.Slice(sorted, func(a, b int) bool {
		da, db := sorted[a], sorted[b]
		if ra, rb := severityRank(da.Severity), severityRank(db.Severity); ra != rb {
			return ra < rb
		}
		if da.Line != db.Line {
			return da.Line < db.Line
		}
		if da.Column != db.Column {
			return da.Column < db.Column
		}
		return da.Message < db.Message
	})

	var sb strings.Builder
	for _, d := range sorted {
		fmt.Fprintf(&sb, "%s|%d|%d|%s\n", strings.ToLower(d.Severity), d.Line, d.Column, d.Message)
	}
	return sb.String()
}
