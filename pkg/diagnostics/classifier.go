package diagnostics

import (
	"strings"
)

// Classify maps one raw diagnostic into a normalized Issue. The mapping is
// pure and deterministic: severity maps 1:1, kind is chosen by the first
// matching rule, and line/column numbers are converted to the engine's
// 1-indexed convention here and nowhere else.
func Classify(raw RawDiagnostic) Issue {
	severity := classifySeverity(raw.Severity)
	lower := strings.ToLower(raw.Message)

	var kind IssueKind
	switch {
	case strings.Contains(lower, "unused import"),
		strings.Contains(lower, "imported and not used"):
		kind = KindUnusedImport
	case strings.Contains(lower, "format"):
		kind = KindFormatError
	case severity == SeverityError || severity == SeverityWarning,
		strings.Contains(lower, "syntax"),
		strings.Contains(lower, "compile"),
		strings.Contains(lower, "lint"):
		kind = KindSyntax
	case strings.Contains(lower, "security"):
		kind = KindSecurity
	case strings.Contains(lower, "best practice"):
		kind = KindBestPractice
	default:
		kind = KindOther
	}

	line := raw.Line
	column := raw.Column
	if !raw.OneBased {
		line++
		column++
	}
	if line < 1 {
		line = 1
	}

	return Issue{
		Kind:     kind,
		Severity: severity,
		Line:     line,
		Column:   column,
		Message:  raw.Message,
		Code:     raw.Code,
		Source:   raw.Source,
	}
}

// ClassifyAll classifies a whole sample, preserving order.
func ClassifyAll(raws []RawDiagnostic) []Issue {
	if len(raws) == 0 {
		return nil
	}
	issues := make([]Issue, 0, len(raws))
	for _, raw := range raws {
		issues = append(issues, Classify(raw))
	}
	return issues
}

func classifySeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "err", "fatal":
		return SeverityError
	case "warning", "warn":
		return SeverityWarning
	case "info", "information", "hint", "note":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}
