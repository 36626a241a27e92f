// Package workspace gives the engine its view of the project: file I/O
// rooted at the project directory, open editor buffers, context discovery,
// and command execution.
package workspace

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Workspace is rooted file access for one project. It assumes the engine is
// the sole writer to its target files for the duration of a request;
// concurrent external edits are a documented hazard, not handled.
type Workspace struct {
	root string

	mu      sync.RWMutex
	buffers map[string]string // open editor buffers, unsaved state wins over disk
}

func New(root string) *Workspace {
	return &Workspace{
		root:    root,
		buffers: map[string]string{},
	}
}

func (w *Workspace) Root() string {
	return w.root
}

func (w *Workspace) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(w.root, path)
}

func (w *Workspace) key(path string) string {
	rel, err := filepath.Rel(w.root, w.abs(path))
	if err != nil {
		return filepath.ToSlash(filepath.Clean(path))
	}
	return filepath.ToSlash(rel)
}

// ReadFile reads path from disk. A missing file surfaces fs.ErrNotExist
// through the wrapped error so callers can distinguish create from modify.
func (w *Workspace) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(w.abs(path))
	if err != nil {
		return "", fmt.Errorf("could not read file %s: %w", path, err)
	}
	return string(data), nil
}

// ReadFileForEdit prefers an open editor buffer over the file on disk, since
// the buffer may hold unsaved state.
func (w *Workspace) ReadFileForEdit(path string) (string, error) {
	w.mu.RLock()
	content, ok := w.buffers[w.key(path)]
	w.mu.RUnlock()
	if ok {
		return content, nil
	}
	return w.ReadFile(path)
}

// WriteFile saves content as a whole-document edit, creating parent
// directories and preserving the existing file's CRLF style. Empty content
// removes the file. The open buffer for path, if any, is updated so later
// reads see what was written.
func (w *Workspace) WriteFile(path, content string) error {
	filename := w.abs(path)

	if content == "" {
		if _, err := os.Stat(filename); err == nil {
			fmt.Printf("🗑️  Removing file: %s\n", path)
			if rmErr := os.Remove(filename); rmErr != nil {
				return fmt.Errorf("could not remove file %s: %w", path, rmErr)
			}
			w.dropBuffer(path)
			return nil
		} else if os.IsNotExist(err) {
			return nil
		} else {
			return fmt.Errorf("error checking file %s: %w", path, err)
		}
	}

	fmt.Printf("💾 Writing file: %s (%d bytes)\n", path, len(content))

	dir := filepath.Dir(filename)
	if dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("could not create directory %s: %w", dir, err)
		}
	}

	// Normalize EOLs to existing file style if present
	normalized := []byte(content)
	if b, err := os.ReadFile(filename); err == nil {
		if bytes.Contains(b, []byte("\r\n")) && !strings.Contains(content, "\r\n") {
			normalized = bytes.ReplaceAll(normalized, []byte("\n"), []byte("\r\n"))
		}
	}
	if err := os.WriteFile(filename, normalized, 0644); err != nil {
		return fmt.Errorf("could not write file %s: %w", path, err)
	}

	w.mu.Lock()
	if _, ok := w.buffers[w.key(path)]; ok {
		w.buffers[w.key(path)] = content
	}
	w.mu.Unlock()
	return nil
}

// EnsureDir creates the directory and any parents. Already existing is fine.
func (w *Workspace) EnsureDir(path string) error {
	if err := os.MkdirAll(w.abs(path), os.ModePerm); err != nil {
		return fmt.Errorf("could not create directory %s: %w", path, err)
	}
	return nil
}

// SetBuffer registers unsaved editor content for path. Edits requested while
// the buffer is open operate on this content instead of the file on disk.
func (w *Workspace) SetBuffer(path, content string) {
	w.mu.Lock()
	w.buffers[w.key(path)] = content
	w.mu.Unlock()
}

func (w *Workspace) dropBuffer(path string) {
	w.mu.Lock()
	delete(w.buffers, w.key(path))
	w.mu.Unlock()
}

// ClearBuffer forgets the open buffer for path, if any.
func (w *Workspace) ClearBuffer(path string) {
	w.dropBuffer(path)
}
