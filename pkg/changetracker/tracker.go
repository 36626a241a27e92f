// Package changetracker records every whole-document edit the engine applies
// so a request's changes can be inspected and rolled back as a unit.
package changetracker

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	activeStatus   = "active"
	revertedStatus = "reverted"
	restoredStatus = "restored"
)

// ChangeRecord is one whole-document change applied to a single file.
type ChangeRecord struct {
	ID           string    `json:"id"`
	RevisionID   string    `json:"revision_id"`
	Filename     string    `json:"filename"`
	ChangeType   string    `json:"change_type"`
	Description  string    `json:"description"`
	Instructions string    `json:"instructions,omitempty"`
	OriginalCode string    `json:"original_code"`
	NewCode      string    `json:"new_code"`
	Summary      string    `json:"summary"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

// FileWriter is the slice of the workspace the tracker needs to undo or
// re-apply changes. Writing empty content removes the file.
type FileWriter interface {
	WriteFile(path, content string) error
}

// Tracker appends change records to a JSON-lines log. One revision groups
// all the file changes made for a single request.
type Tracker struct {
	path string

	mu           sync.Mutex
	instructions map[string]string // revision ID -> instructions, stamped onto records
}

func NewTracker(path string) *Tracker {
	return &Tracker{path: path, instructions: map[string]string{}}
}

// StartRevision opens a new revision and returns its ID.
func (t *Tracker) StartRevision(instructions string) string {
	id := uuid.New().String()
	t.mu.Lock()
	t.instructions[id] = instructions
	t.mu.Unlock()
	return id
}

// RecordChange appends one file change to the log and returns its "+N -M"
// summary for progress reporting.
func (t *Tracker) RecordChange(revisionID, filename, originalCode, newCode, description string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record := ChangeRecord{
		ID:           uuid.New().String(),
		RevisionID:   revisionID,
		Filename:     filename,
		ChangeType:   changeType(originalCode, newCode),
		Description:  description,
		Instructions: t.instructions[revisionID],
		OriginalCode: originalCode,
		NewCode:      newCode,
		Summary:      ChangeSummary(originalCode, newCode),
		Status:       activeStatus,
		Timestamp:    time.Now(),
	}

	if err := t.append(record); err != nil {
		return "", err
	}
	return record.Summary, nil
}

func changeType(originalCode, newCode string) string {
	switch {
	case originalCode == "" && newCode != "":
		return "created"
	case newCode == "":
		return "deleted"
	default:
		return "modified"
	}
}

func (t *Tracker) append(record ChangeRecord) error {
	if dir := filepath.Dir(t.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create change log directory: %w", err)
		}
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open change log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal change record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append change record: %w", err)
	}
	return nil
}

func (t *Tracker) load() ([]ChangeRecord, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open change log: %w", err)
	}
	defer f.Close()

	var records []ChangeRecord
	scanner := bufio.NewScanner(f)
	// Records embed whole documents, so lines can be large.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record ChangeRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			continue // Skip corrupt lines rather than losing the whole history
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read change log: %w", err)
	}
	return records, nil
}

func (t *Tracker) rewrite(records []ChangeRecord) error {
	var b bytes.Buffer
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal change record: %w", err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(t.path, b.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to rewrite change log: %w", err)
	}
	return nil
}

// AllChanges returns every recorded change, most recent first.
func (t *Tracker) AllChanges() ([]ChangeRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	records, err := t.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

// ChangesForRevision returns a revision's changes in the order they were
// applied.
func (t *Tracker) ChangesForRevision(revisionID string) ([]ChangeRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	records, err := t.load()
	if err != nil {
		return nil, err
	}
	var matched []ChangeRecord
	for _, r := range records {
		if r.RevisionID == revisionID {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// ChangedFilesSince returns the unique files changed after the given time,
// most recent first.
func (t *Tracker) ChangedFilesSince(since time.Time) ([]string, error) {
	records, err := t.AllChanges()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var files []string
	for _, r := range records {
		if !r.Timestamp.After(since) || seen[r.Filename] {
			continue
		}
		seen[r.Filename] = true
		files = append(files, r.Filename)
	}
	return files, nil
}

// LatestRevisionID returns the revision of the most recent active change.
func (t *Tracker) LatestRevisionID() (string, error) {
	records, err := t.AllChanges()
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if r.Status == activeStatus {
			return r.RevisionID, nil
		}
	}
	return "", fmt.Errorf("no active changes recorded")
}

// RevertRevision writes every file in the revision back to its pre-change
// content, newest change first, and marks the records reverted.
func (t *Tracker) RevertRevision(revisionID string, files FileWriter) error {
	return t.flip(revisionID, files, activeStatus, revertedStatus, func(r ChangeRecord) string {
		return r.OriginalCode
	})
}

// RestoreRevision re-applies a previously reverted revision.
func (t *Tracker) RestoreRevision(revisionID string, files FileWriter) error {
	return t.flip(revisionID, files, revertedStatus, restoredStatus, func(r ChangeRecord) string {
		return r.NewCode
	})
}

func (t *Tracker) flip(revisionID string, files FileWriter, fromStatus, toStatus string, content func(ChangeRecord) string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	records, err := t.load()
	if err != nil {
		return err
	}

	var targets []int
	for i, r := range records {
		if r.RevisionID == revisionID && r.Status == fromStatus {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return fmt.Errorf("no %s changes found for revision %s", fromStatus, revisionID)
	}

	for k := len(targets) - 1; k >= 0; k-- {
		r := records[targets[k]]
		if err := files.WriteFile(r.Filename, content(r)); err != nil {
			return fmt.Errorf("failed to rewrite %s: %w", r.Filename, err)
		}
		records[targets[k]].Status = toStatus
	}

	return t.rewrite(records)
}
