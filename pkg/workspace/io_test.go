package workspace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileCreatesParentDirectories(t *testing.T) {
	ws := New(t.TempDir())

	if err := ws.WriteFile("pkg/server/server.go", "package server\n"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got, err := ws.ReadFile("pkg/server/server.go")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got != "package server\n" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestReadFileMissingSurfacesNotExist(t *testing.T) {
	ws := New(t.TempDir())

	_, err := ws.ReadFile("missing.go")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist in the chain, got %v", err)
	}
}

func TestWriteFilePreservesCRLF(t *testing.T) {
	root := t.TempDir()
	ws := New(root)

	original := "line one\r\nline two\r\n"
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ws.WriteFile("notes.txt", "line one\nline two\nline three\n"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "notes.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\r\n") {
		t.Error("CRLF endings were not preserved")
	}
	if strings.Contains(strings.ReplaceAll(string(data), "\r\n", ""), "\n") {
		t.Error("mixed line endings were written")
	}
}

func TestWriteFileEmptyContentRemovesFile(t *testing.T) {
	ws := New(t.TempDir())

	if err := ws.WriteFile("scratch.txt", "temporary\n"); err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteFile("scratch.txt", ""); err != nil {
		t.Fatalf("removing via empty content failed: %v", err)
	}

	if _, err := ws.ReadFile("scratch.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected the file to be gone, got %v", err)
	}

	// Removing a file that never existed is a no-op.
	if err := ws.WriteFile("never-there.txt", ""); err != nil {
		t.Errorf("expected nil for a missing file, got %v", err)
	}
}

func TestReadFileForEditPrefersOpenBuffer(t *testing.T) {
	ws := New(t.TempDir())

	if err := ws.WriteFile("main.go", "package main // saved\n"); err != nil {
		t.Fatal(err)
	}
	ws.SetBuffer("main.go", "package main // unsaved\n")

	got, err := ws.ReadFileForEdit("main.go")
	if err != nil {
		t.Fatal(err)
	}
	if got != "package main // unsaved\n" {
		t.Errorf("expected the buffer content, got %q", got)
	}

	// Plain disk reads are unaffected by the buffer.
	onDisk, err := ws.ReadFile("main.go")
	if err != nil {
		t.Fatal(err)
	}
	if onDisk != "package main // saved\n" {
		t.Errorf("expected the disk content, got %q", onDisk)
	}

	ws.ClearBuffer("main.go")
	got, err = ws.ReadFileForEdit("main.go")
	if err != nil {
		t.Fatal(err)
	}
	if got != "package main // saved\n" {
		t.Errorf("expected disk content after clearing the buffer, got %q", got)
	}
}

func TestWriteFileRefreshesOpenBuffer(t *testing.T) {
	ws := New(t.TempDir())

	ws.SetBuffer("app.py", "print('old')\n")
	if err := ws.WriteFile("app.py", "print('new')\n"); err != nil {
		t.Fatal(err)
	}

	got, err := ws.ReadFileForEdit("app.py")
	if err != nil {
		t.Fatal(err)
	}
	if got != "print('new')\n" {
		t.Errorf("buffer was not refreshed on write, got %q", got)
	}
}
