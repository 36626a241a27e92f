package workspace

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreRules combines essential mend patterns, the workspace .gitignore,
// the .mend/.ignore overrides, and a set of fallback patterns into a single
// matcher. Empty lines and comments are stripped before compiling.
func IgnoreRules(rootDir string) *ignore.GitIgnore {
	var allLines []string

	// Essential patterns come first so user rules can never re-include them.
	allLines = append(allLines, essentialPatterns()...)

	for _, name := range []string{".gitignore", filepath.Join(".mend", ".ignore")} {
		if content, err := os.ReadFile(filepath.Join(rootDir, name)); err == nil {
			allLines = append(allLines, strings.Split(string(content), "\n")...)
		}
	}

	allLines = append(allLines, fallbackPatterns()...)

	var filtered []string
	for _, line := range allLines {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			filtered = append(filtered, line)
		}
	}

	return ignore.CompileIgnoreLines(filtered...)
}

// AddToIgnore appends a pattern to an ignore file, creating the file if
// needed. A pattern that is already present is left alone.
func AddToIgnore(ignoreFilePath, p string) error {
	if content, err := os.ReadFile(ignoreFilePath); err == nil {
		for _, line := range strings.Split(string(content), "\n") {
			if strings.TrimSpace(line) == p {
				return nil
			}
		}
	}

	f, err := os.OpenFile(ignoreFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(p + "\n"); err != nil {
		return err
	}

	return nil
}

// essentialPatterns returns patterns that are always ignored so mend never
// analyzes its own working files.
func essentialPatterns() []string {
	return []string{
		".mend/",  // mend workspace directory
		".mend/*", // all contents of the mend directory
		"mend",    // mend binary, if built into the workspace
	}
}

// fallbackPatterns returns common patterns ignored even without a .gitignore.
func fallbackPatterns() []string {
	return []string{
		// Operating system files
		".DS_Store",
		"Thumbs.db",
		"*.swp",
		"*.swo",
		"*.bak",
		"*.tmp",
		"*.log",

		// IDE and editor files
		".idea/",
		".vscode/",
		"*.iml",

		// Build and output directories
		"build/",
		"dist/",
		"bin/",
		"obj/",
		"target/",
		"out/",

		// Compiled artifacts
		"*.class",
		"*.exe",
		"*.dll",
		"*.so",
		"*.o",
		"*.test",

		// Language dependency and cache directories
		"__pycache__/",
		"*.pyc",
		"venv/",
		".venv/",
		"node_modules/",
		"coverage/",
		".cache/",
		"vendor/",

		// Version control metadata
		".git/",
		".svn/",
		".hg/",

		// Environment files
		".env",
		"*.env",
	}
}

// ListFiles walks rootDir and returns workspace-relative slash paths of the
// regular files that survive the ignore rules. Hidden entries are skipped.
// The result is capped at maxFiles when maxFiles > 0.
func ListFiles(rootDir string, maxFiles int) ([]string, error) {
	rules := IgnoreRules(rootDir)

	var files []string
	err := filepath.Walk(rootDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}

		rel, relErr := filepath.Rel(rootDir, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") || rules.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(info.Name(), ".") || rules.MatchesPath(rel) {
			return nil
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", rootDir, err)
	}

	if maxFiles > 0 && len(files) > maxFiles {
		files = files[:maxFiles]
	}
	return files, nil
}

// LanguageForPath infers the programming language from the file extension.
func LanguageForPath(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	case ".rs":
		return "rust"
	case ".rb":
		return "ruby"
	case ".php":
		return "php"
	case ".sh", ".bash":
		return "bash"
	case ".md":
		return "markdown"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".html", ".htm":
		return "html"
	case ".css":
		return "css"
	case ".sql":
		return "sql"
	case ".toml":
		return "toml"
	default:
		return "text"
	}
}

// ProjectContext builds a short textual description of the workspace for use
// as prompt context. Files that share the target's directory are listed first
// so the model sees the target's neighbors before the rest of the tree.
func ProjectContext(rootDir, targetPath string, maxFiles int) string {
	files, err := ListFiles(rootDir, 0)
	if err != nil || len(files) == 0 {
		return ""
	}

	target := filepath.ToSlash(targetPath)
	targetDir := path.Dir(target)

	var ordered []string
	for _, f := range files {
		if f != target && path.Dir(f) == targetDir {
			ordered = append(ordered, f)
		}
	}
	for _, f := range files {
		if f != target && path.Dir(f) != targetDir {
			ordered = append(ordered, f)
		}
	}
	if maxFiles > 0 && len(ordered) > maxFiles {
		ordered = ordered[:maxFiles]
	}

	var b strings.Builder
	if targetPath != "" {
		b.WriteString(fmt.Sprintf("Language: %s\n", LanguageForPath(target)))
	}
	b.WriteString("Workspace files:\n")
	for _, f := range ordered {
		b.WriteString(fmt.Sprintf("  %s\n", f))
	}
	return b.String()
}
