// Package prompts builds the chat messages the engine sends to the model.
package prompts

import (
	"fmt"
	"strings"

	"github.com/mendtool/mend/pkg/llm"
)

func wholeDocumentRequirements() string {
	return "CRITICAL REQUIREMENTS:\n" +
		"- You MUST include the ENTIRE file content from beginning to end\n" +
		"- NEVER truncate or abbreviate any part of the file\n" +
		"- Include ALL imports, functions, classes, and code - both modified AND unmodified sections\n" +
		"- The code block must contain the complete, working file that can be saved and executed\n" +
		"- Make only the specific changes requested, but include ALL surrounding code\n" +
		"- Do NOT add new features, refactor unrelated code, or reformat existing code unless explicitly requested\n" +
		"- Do not include any text, explanations, or comments outside the code block\n"
}

// BuildGenerationMessages constructs the messages for generating a file from
// an instruction. currentContent and workspaceContext may be empty.
func BuildGenerationMessages(instruction, filename, currentContent, workspaceContext, language string) []llm.Message {
	systemPrompt := "You are an expert software developer. Generate the requested file content.\n" +
		"Respond with the COMPLETE file content in a single fenced code block.\n\n" +
		wholeDocumentRequirements()

	var user strings.Builder
	if workspaceContext != "" {
		user.WriteString("Workspace context:\n")
		user.WriteString(workspaceContext)
		user.WriteString("\n")
	}
	if currentContent != "" {
		user.WriteString(fmt.Sprintf("Here is the current content of `%s`:\n\n```%s\n%s\n```\n\n", filename, language, currentContent))
	} else {
		user.WriteString(fmt.Sprintf("The file `%s` does not exist yet.\n\n", filename))
	}
	user.WriteString(fmt.Sprintf("Instructions: %s", instruction))

	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user.String()},
	}
}

// BuildModificationMessages constructs the messages for rewriting one
// existing file according to an instruction.
func BuildModificationMessages(instruction, filename, currentContent, language string) []llm.Message {
	systemPrompt := "You are an expert software developer. You update one file at a time.\n" +
		"Respond with the COMPLETE updated content of the file in a single fenced code block.\n\n" +
		wholeDocumentRequirements() +
		"\nMINIMALITY:\n" +
		"- Make the smallest possible changes to satisfy the request. Do not add unrelated features, refactors, or formatting changes.\n"

	userPrompt := fmt.Sprintf("Here is the current content of `%s`:\n\n```%s\n%s\n```\n\nInstructions: %s",
		filename, language, currentContent, instruction)

	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
}

// FormatIssueList renders issues as a bulleted list for embedding in prompts.
func FormatIssueList(issues []string) string {
	var b strings.Builder
	for _, issue := range issues {
		b.WriteString("- ")
		b.WriteString(issue)
		b.WriteString("\n")
	}
	return b.String()
}

// BuildPlanMessages constructs the messages asking the model for a
// correction plan. feedback carries the history of previous attempts and is
// empty on the first iteration.
func BuildPlanMessages(filename, content, language string, issues []string, feedback string) []llm.Message {
	systemPrompt := `You are an expert software developer fixing validation issues in code.
You will receive a file, the issues found in it, and context about previous fix attempts.
Produce a plan describing the steps that will fix the issues.

Respond with ONLY a JSON object in a ` + "```json" + ` fenced block, in this exact format:
{
  "reasoning": "one short paragraph explaining the approach",
  "steps": [
    {"kind": "create_directory", "path": "relative/dir", "description": "..."},
    {"kind": "create_file", "path": "relative/file.ext", "content": "full file content", "description": "..."},
    {"kind": "create_file", "path": "relative/file.ext", "instruction": "what to generate", "description": "..."},
    {"kind": "modify_file", "path": "relative/file.ext", "instruction": "the complete intended change", "description": "..."},
    {"kind": "run_command", "command": "shell command", "description": "..."}
  ]
}

RULES:
- Use the smallest number of steps that fixes every issue.
- A modify_file instruction must describe the complete intended change for that file.
- Prefer modify_file for files that already exist; use create_file only for new files.
- Use run_command only when a tool must be invoked. Never use it to edit files.
- If the issues cannot be fixed, return {"reasoning": "why not", "steps": []}.
- Do not include any text outside the JSON block.
`

	var user strings.Builder
	user.WriteString(fmt.Sprintf("File `%s`:\n\n```%s\n%s\n```\n\n", filename, language, content))
	user.WriteString("Issues to fix:\n")
	user.WriteString(FormatIssueList(issues))
	if feedback != "" {
		user.WriteString("\nPREVIOUS ATTEMPTS:\n")
		user.WriteString(feedback)
		user.WriteString("\n")
	}
	user.WriteString("\nProduce the correction plan.")

	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user.String()},
	}
}

// BuildSuggestionMessages constructs the messages asking for human-readable
// fix suggestions for issues the engine could not resolve itself.
func BuildSuggestionMessages(filename string, issues []string) []llm.Message {
	systemPrompt := `You are an expert software developer. The issues below remain in a file after automated fixing.
For each issue, suggest one concrete fix a developer could apply.
Respond with ONLY a bulleted list, one suggestion per issue. No other text.
`
	userPrompt := fmt.Sprintf("File: %s\n\nRemaining issues:\n%s", filename, FormatIssueList(issues))

	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
}
