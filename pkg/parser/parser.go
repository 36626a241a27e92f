// Package parser extracts code documents from model responses.
package parser

import (
	"regexp"
	"strings"
)

var (
	// startOfBlockRegex matches the beginning of a fenced code block,
	// e.g. ``` or ```go, capturing the language identifier if present.
	startOfBlockRegex    = regexp.MustCompile("^\\s*[>|]*```(\\S*)")
	hardEndOfBlockString = "```END" // Explicit end marker some models emit
)

func isHardEndOfBlock(line string) bool {
	return strings.TrimSpace(line) == hardEndOfBlockString
}

// isStartOfBlock checks if a line opens a code block and returns the
// detected language ("go", "python", or empty string if none was given).
func isStartOfBlock(line string) (bool, string) {
	if isHardEndOfBlock(line) {
		return false, ""
	}
	matches := startOfBlockRegex.FindStringSubmatch(line)
	if len(matches) > 0 {
		return true, strings.ToLower(matches[1])
	}
	return false, ""
}

// isEndOfBlock checks if a line closes a code block. Bare ``` does not close
// markdown blocks, which legitimately contain nested fences.
func isEndOfBlock(line, language string) bool {
	if isHardEndOfBlock(line) {
		return true
	}
	if strings.TrimSpace(line) == "```" {
		return language != "markdown" && language != "md"
	}
	return false
}

func validFilename(name string) bool {
	if name == "" {
		return false
	}
	parts := strings.Split(strings.Trim(name, "."), ".")
	return len(parts) > 1 && parts[0] != ""
}

// isFilenameMarker reports whether a line is just the model echoing the
// target filename as a comment, e.g. "# main.go" or "// main.go".
func isFilenameMarker(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, "//") {
		return false
	}
	candidate := strings.TrimSpace(strings.TrimLeft(trimmed, "#/"))
	if candidate == "" {
		return false
	}
	return validFilename(strings.Fields(candidate)[0])
}

// ExtractCode returns the content of the first fenced code block in the
// response, without the fences. A filename marker line directly after the
// opening fence is dropped. A response without any fence is returned
// trimmed, on the assumption the model answered with the raw document.
func ExtractCode(response string) string {
	lines := strings.Split(response, "\n")
	var content strings.Builder
	language := ""
	inBlock := false
	sawBlock := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !inBlock {
			if isStart, lang := isStartOfBlock(line); isStart {
				inBlock = true
				sawBlock = true
				language = lang
				if i+1 < len(lines) && isFilenameMarker(lines[i+1]) {
					i++
				}
			}
			continue
		}
		if isEndOfBlock(line, language) {
			break
		}
		content.WriteString(line)
		content.WriteString("\n")
	}

	if !sawBlock {
		return strings.TrimSpace(response)
	}
	return strings.TrimSuffix(content.String(), "\n")
}

// HasPartialContentMarker reports whether content elides part of the
// document with a marker like "... rest of the code unchanged". The engine
// applies whole documents only, so such content cannot be used.
func HasPartialContentMarker(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		if idx := strings.Index(lower, "..."); idx != -1 {
			if strings.Contains(lower[idx:], "unchanged") {
				return true
			}
		}
	}
	return false
}
