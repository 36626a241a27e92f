package changetracker

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	redColor    = "\x1b[31m"
	greenColor  = "\x1b[32m"
	yellowColor = "\x1b[33m"
	boldStyle   = "\x1b[1m"
	resetColor  = "\x1b[0m"
)

// lineDiffs computes a line-granular diff between two documents.
func lineDiffs(originalCode, newCode string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	src, dst, lineIndex := dmp.DiffLinesToChars(originalCode, newCode)
	diffs := dmp.DiffMain(src, dst, false)
	return dmp.DiffCharsToLines(diffs, lineIndex)
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func statsFromDiffs(diffs []diffmatchpatch.Diff) (additions, deletions int) {
	for _, d := range diffs {
		n := len(splitLines(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += n
		case diffmatchpatch.DiffDelete:
			deletions += n
		}
	}
	return
}

// DiffStats returns the number of added and removed lines between two
// versions of a document.
func DiffStats(originalCode, newCode string) (additions, deletions int) {
	return statsFromDiffs(lineDiffs(originalCode, newCode))
}

// ChangeSummary renders the line stats in the compact "+N -M" form used in
// change records and progress logs.
func ChangeSummary(originalCode, newCode string) string {
	additions, deletions := DiffStats(originalCode, newCode)
	return fmt.Sprintf("+%d -%d", additions, deletions)
}

func statsHeader(filename string, additions, deletions int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s%s%s%s ", boldStyle, yellowColor, filename, resetColor))
	if additions > 0 {
		b.WriteString(fmt.Sprintf("%s%s+%d%s ", boldStyle, greenColor, additions, resetColor))
	}
	if deletions > 0 {
		b.WriteString(fmt.Sprintf("%s%s-%d%s", boldStyle, redColor, deletions, resetColor))
	}
	b.WriteString("\n")
	return b.String()
}

// GetDiff renders a colored line diff with a stats header. Unchanged runs
// are collapsed to one line of context on each side of a change block.
// Identical documents produce an empty string.
func GetDiff(filename, originalCode, newCode string) string {
	if originalCode == newCode {
		return ""
	}

	diffs := lineDiffs(originalCode, newCode)
	additions, deletions := statsFromDiffs(diffs)

	var result strings.Builder
	result.WriteString(statsHeader(filename, additions, deletions))

	for i, d := range diffs {
		lines := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			for _, line := range lines {
				result.WriteString(fmt.Sprintf("%s- %s%s\n", redColor, line, resetColor))
			}
		case diffmatchpatch.DiffInsert:
			for _, line := range lines {
				result.WriteString(fmt.Sprintf("%s+ %s%s\n", greenColor, line, resetColor))
			}
		case diffmatchpatch.DiffEqual:
			if len(lines) == 0 {
				continue
			}
			printedFirst := false
			if i > 0 {
				result.WriteString(fmt.Sprintf("  %s\n", lines[0]))
				printedFirst = true
			}
			if i < len(diffs)-1 && (len(lines) > 1 || !printedFirst) {
				result.WriteString(fmt.Sprintf("  %s\n", lines[len(lines)-1]))
			}
		}
	}

	return result.String()
}

// PrintDiff writes the colored diff to stdout.
func PrintDiff(filename, originalCode, newCode string) {
	diff := GetDiff(filename, originalCode, newCode)
	if diff == "" {
		fmt.Println("No changes detected.")
		return
	}
	fmt.Print(diff)
}
