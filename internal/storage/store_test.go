// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jeranaias/legalx-tui/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestLoadMissingStateIsEmpty(t *testing.T) {
	s := newTestStore(t)

	sessions, err := s.LoadSessions("nobody")
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(sessions))
	}

	transcript, err := s.LoadMessages("never_saved")
	if err != nil {
		t.Fatalf("LoadMessages failed: %v", err)
	}
	if !transcript.IsEmpty() {
		t.Errorf("expected empty transcript, got %d messages", transcript.Len())
	}
}

func TestSessionIndexRoundTrip(t *testing.T) {
	s := newTestStore(t)

	a := model.NewSession("u1")
	a.RecordUserMessage("what does clause 4 say?", 2)
	b := model.NewSession("u1")

	if err := s.SaveSessions("u1", []*model.Session{b, a}); err != nil {
		t.Fatalf("SaveSessions failed: %v", err)
	}

	loaded, err := s.LoadSessions("u1")
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(loaded))
	}
	if loaded[0].ID != b.ID || loaded[1].ID != a.ID {
		t.Errorf("session order not preserved")
	}
	if loaded[1].Title != a.Title || loaded[1].MessageCount != 2 {
		t.Errorf("session fields lost: %+v", loaded[1])
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	s := newTestStore(t)

	transcript := model.NewTranscript()
	transcript.Append(model.RoleUser, "is the lease valid?")
	answer := transcript.ApplyChunk("Yes, ", false)
	transcript.ApplyChunk("with conditions.", true)
	answer.SetSources([]model.Source{{DocumentID: "d1", Page: 3, RelevanceScore: 0.91}})

	if err := s.SaveMessages("s1", transcript); err != nil {
		t.Fatalf("SaveMessages failed: %v", err)
	}

	loaded, err := s.LoadMessages("s1")
	if err != nil {
		t.Fatalf("LoadMessages failed: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("expected 2 messages, got %d", loaded.Len())
	}
	got := loaded.Messages[1]
	if got.Content != "Yes, with conditions." {
		t.Errorf("content lost: %q", got.Content)
	}
	if !got.Completed {
		t.Error("completion flag lost")
	}
	if len(got.Sources) != 1 || got.Sources[0].DocumentID != "d1" {
		t.Errorf("sources lost: %+v", got.Sources)
	}
}

func TestEmptyTranscriptNotPersisted(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveMessages("s_empty", model.NewTranscript()); err != nil {
		t.Fatalf("SaveMessages failed: %v", err)
	}
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("empty transcript left files behind: %v", entries)
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestStore(t)

	transcript := model.NewTranscript()
	transcript.Append(model.RoleUser, "hello")
	if err := s.SaveMessages("s1", transcript); err != nil {
		t.Fatalf("SaveMessages failed: %v", err)
	}

	if err := s.DeleteSession("s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	loaded, err := s.LoadMessages("s1")
	if err != nil {
		t.Fatalf("LoadMessages failed: %v", err)
	}
	if !loaded.IsEmpty() {
		t.Error("transcript survived deletion")
	}

	// Deleting again is fine.
	if err := s.DeleteSession("s1"); err != nil {
		t.Errorf("repeat delete failed: %v", err)
	}
}

func TestCorruptStateFileReported(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Dir(), "sessions_u1.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("failed to plant corrupt file: %v", err)
	}
	if _, err := s.LoadSessions("u1"); err == nil {
		t.Error("corrupt index silently accepted")
	}
}

func TestHostileIDsStayInsideStateDir(t *testing.T) {
	s := newTestStore(t)

	transcript := model.NewTranscript()
	transcript.Append(model.RoleUser, "hi")
	if err := s.SaveMessages("../../etc/passwd", transcript); err != nil {
		t.Fatalf("SaveMessages failed: %v", err)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 file inside state dir, got %d", len(entries))
	}
}
