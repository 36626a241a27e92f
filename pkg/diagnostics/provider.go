package diagnostics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mendtool/mend/pkg/utils"
)

// Provider supplies the current diagnostic set for a target file. Calls must
// be cheap; the stabilization monitor polls repeatedly.
type Provider interface {
	Diagnostics(target string) ([]RawDiagnostic, error)
}

// bridgePayload is the on-disk contract with the editor integration. The
// editor rewrites the whole file whenever its diagnostics change.
type bridgePayload struct {
	Version       int                        `json:"version"`
	OneBasedLines bool                       `json:"one_based_lines"`
	Files         map[string][]RawDiagnostic `json:"files"`
}

// FileBridge reads diagnostics from a JSON bridge file maintained by the
// editor and keeps the latest parsed sample in memory, refreshed by a
// filesystem watcher so Diagnostics never touches disk.
type FileBridge struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *utils.Logger

	mu    sync.RWMutex
	files map[string][]RawDiagnostic

	done     chan struct{}
	stopOnce sync.Once
}

// NewFileBridge starts watching path. A missing bridge file is an empty
// diagnostic set, not an error; the editor may not have written one yet.
func NewFileBridge(path string) (*FileBridge, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating diagnostics dir %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating diagnostics watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace the file atomically
	// via rename, which drops a direct file watch.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	b := &FileBridge{
		path:    path,
		watcher: watcher,
		logger:  utils.GetLogger(false),
		files:   map[string][]RawDiagnostic{},
		done:    make(chan struct{}),
	}
	b.reload()
	go b.processEvents()
	return b, nil
}

// Diagnostics returns the latest known sample for target.
func (b *FileBridge) Diagnostics(target string) ([]RawDiagnostic, error) {
	key := normalizePath(target)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if diags, ok := b.files[key]; ok {
		return diags, nil
	}
	return nil, nil
}

// Close stops the watcher.
func (b *FileBridge) Close() error {
	var err error
	b.stopOnce.Do(func() {
		close(b.done)
		err = b.watcher.Close()
	})
	return err
}

func (b *FileBridge) processEvents() {
	for {
		select {
		case <-b.done:
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(b.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				b.reload()
			}
			if event.Has(fsnotify.Remove) {
				b.clear()
			}
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.logger.Logf("diagnostics watcher error: %v", err)
		}
	}
}

func (b *FileBridge) reload() {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			b.logger.Logf("reading diagnostics bridge %s: %v", b.path, err)
		}
		b.clear()
		return
	}

	var payload bridgePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		// Likely caught mid-write; keep the previous sample and let the next
		// event supersede it.
		b.logger.Logf("parsing diagnostics bridge %s: %v", b.path, err)
		return
	}

	files := make(map[string][]RawDiagnostic, len(payload.Files))
	for path, diags := range payload.Files {
		stamped := make([]RawDiagnostic, len(diags))
		for i, d := range diags {
			d.OneBased = payload.OneBasedLines
			stamped[i] = d
		}
		files[normalizePath(path)] = stamped
	}

	b.mu.Lock()
	b.files = files
	b.mu.Unlock()
}

func (b *FileBridge) clear() {
	b.mu.Lock()
	b.files = map[string][]RawDiagnostic{}
	b.mu.Unlock()
}

func normalizePath(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "./")
}
