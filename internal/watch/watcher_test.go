// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestUploadable(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"lease.pdf", true},
		{"NOTES.TXT", true},
		{"contract.docx", true},
		{"old.doc", true},
		{"image.png", false},
		{"archive.zip", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := Uploadable(tt.path); got != tt.want {
			t.Errorf("Uploadable(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func newTestWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.WithDebounce(50 * time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w, dir
}

func recvFile(t *testing.T, w *Watcher) string {
	t.Helper()
	select {
	case path := <-w.Files():
		return path
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for file")
		return ""
	}
}

func TestWatcherEmitsSettledDocument(t *testing.T) {
	w, dir := newTestWatcher(t)

	path := filepath.Join(dir, "lease.pdf")
	if err := os.WriteFile(path, []byte("pdf bytes"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if got := recvFile(t, w); got != path {
		t.Errorf("unexpected path %q", got)
	}
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	w, dir := newTestWatcher(t)

	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	docPath := filepath.Join(dir, "brief.txt")
	if err := os.WriteFile(docPath, []byte("y"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	// Only the .txt file may come through.
	if got := recvFile(t, w); got != docPath {
		t.Errorf("unexpected path %q", got)
	}
	select {
	case extra := <-w.Files():
		t.Errorf("unexpected extra file %q", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherEmitsBatchInArrivalOrder(t *testing.T) {
	w, dir := newTestWatcher(t)

	// All three settle in the same tick; they must still come out in
	// the order they appeared, not map-iteration order.
	names := []string{"a-first.pdf", "b-second.pdf", "c-third.pdf"}
	var want []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("doc"), 0o600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		want = append(want, path)
		time.Sleep(5 * time.Millisecond)
	}

	for i, wantPath := range want {
		if got := recvFile(t, w); got != wantPath {
			t.Errorf("file %d = %q, want %q", i, got, wantPath)
		}
	}
}

func TestWatcherDebouncesRepeatedWrites(t *testing.T) {
	w, dir := newTestWatcher(t)

	path := filepath.Join(dir, "contract.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	// Several writes in quick succession look like one settling file.
	for i := 0; i < 5; i++ {
		if _, err := f.Write([]byte("chunk ")); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	f.Close()

	if got := recvFile(t, w); got != path {
		t.Errorf("unexpected path %q", got)
	}
	select {
	case extra := <-w.Files():
		t.Errorf("file emitted more than once: %q", extra)
	case <-time.After(200 * time.Millisecond):
	}
}
