// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/legalx-tui/internal/model"
	"github.com/jeranaias/legalx-tui/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	m, err := NewManager(store, "u1")
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m, store
}

func TestFreshManagerOpensNewChat(t *testing.T) {
	m, _ := newTestManager(t)

	if m.Current() == nil {
		t.Fatal("no current session")
	}
	if got := m.Current().Title; got != "New Chat" {
		t.Errorf("unexpected title %q", got)
	}
	if !m.Transcript().IsEmpty() {
		t.Error("fresh transcript not empty")
	}
	if len(m.Sessions()) != 1 || m.Sessions()[0] != m.Current() {
		t.Errorf("current session not first in index")
	}
}

func TestRecordUserTurnUpdatesSessionAndPersists(t *testing.T) {
	m, store := newTestManager(t)

	long := strings.Repeat("x", 60)
	if _, err := m.RecordUserTurn(long); err != nil {
		t.Fatalf("RecordUserTurn failed: %v", err)
	}

	cur := m.Current()
	if len([]rune(cur.Title)) != model.TitleMaxRunes+3 || !strings.HasSuffix(cur.Title, "...") {
		t.Errorf("title not derived from message: %q", cur.Title)
	}
	if cur.MessageCount != 1 {
		t.Errorf("message count not updated: %d", cur.MessageCount)
	}

	// Both files must exist on disk already.
	sessions, err := store.LoadSessions("u1")
	if err != nil || len(sessions) != 1 {
		t.Fatalf("index not persisted: %v, %d sessions", err, len(sessions))
	}
	transcript, err := store.LoadMessages(cur.ID)
	if err != nil || transcript.Len() != 1 {
		t.Fatalf("transcript not persisted: %v, %d messages", err, transcript.Len())
	}
}

func TestNewChatKeepsHistory(t *testing.T) {
	m, _ := newTestManager(t)

	if _, err := m.RecordUserTurn("first question"); err != nil {
		t.Fatalf("RecordUserTurn failed: %v", err)
	}
	first := m.Current()

	if err := m.NewChat(); err != nil {
		t.Fatalf("NewChat failed: %v", err)
	}
	if m.Current() == first {
		t.Fatal("NewChat did not open a new session")
	}
	if !m.Transcript().IsEmpty() {
		t.Error("new chat transcript not empty")
	}
	if len(m.Sessions()) != 2 || m.Sessions()[1] != first {
		t.Errorf("old session lost from index")
	}
}

func TestNewChatOnEmptySessionIsNoop(t *testing.T) {
	m, _ := newTestManager(t)
	before := m.Current()

	if err := m.NewChat(); err != nil {
		t.Fatalf("NewChat failed: %v", err)
	}
	if m.Current() != before {
		t.Error("empty session replaced instead of reused")
	}
	if len(m.Sessions()) != 1 {
		t.Errorf("empty sessions piled up: %d", len(m.Sessions()))
	}
}

func TestSwitchRestoresTranscript(t *testing.T) {
	m, _ := newTestManager(t)

	if _, err := m.RecordUserTurn("about the lease"); err != nil {
		t.Fatalf("RecordUserTurn failed: %v", err)
	}
	first := m.Current()

	if err := m.NewChat(); err != nil {
		t.Fatalf("NewChat failed: %v", err)
	}
	if _, err := m.RecordUserTurn("about the merger"); err != nil {
		t.Fatalf("RecordUserTurn failed: %v", err)
	}
	second := m.Current()

	if err := m.Switch(first.ID); err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	if m.Current() != first {
		t.Fatal("current session not switched")
	}
	if m.Transcript().Len() != 1 || m.Transcript().Last().Content != "about the lease" {
		t.Errorf("transcript not restored: %+v", m.Transcript().Last())
	}

	// And back again: the second session's turn survived the switch.
	if err := m.Switch(second.ID); err != nil {
		t.Fatalf("switch back failed: %v", err)
	}
	if m.Transcript().Len() != 1 || m.Transcript().Last().Content != "about the merger" {
		t.Errorf("second transcript lost: %+v", m.Transcript().Last())
	}
}

func TestSwitchUnknownSession(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Switch("session_u1_0"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("expected ErrUnknownSession, got %v", err)
	}
}

func TestSavedSessionsSurviveRestart(t *testing.T) {
	m, store := newTestManager(t)

	if _, err := m.RecordUserTurn("remember me"); err != nil {
		t.Fatalf("RecordUserTurn failed: %v", err)
	}
	savedID := m.Current().ID

	// New manager over the same store simulates a restart.
	m2, err := NewManager(store, "u1")
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if len(m2.Sessions()) != 2 {
		t.Fatalf("expected fresh session plus 1 saved, got %d", len(m2.Sessions()))
	}
	if m2.Sessions()[1].ID != savedID {
		t.Errorf("saved session missing from index")
	}
	if err := m2.Switch(savedID); err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	if m2.Transcript().Len() != 1 {
		t.Errorf("saved transcript not loaded: %d messages", m2.Transcript().Len())
	}
}

func TestDeleteSession(t *testing.T) {
	m, store := newTestManager(t)

	if _, err := m.RecordUserTurn("doomed"); err != nil {
		t.Fatalf("RecordUserTurn failed: %v", err)
	}
	doomed := m.Current().ID

	if err := m.Delete(doomed); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if m.Current().ID == doomed {
		t.Error("deleted session still current")
	}
	for _, s := range m.Sessions() {
		if s.ID == doomed {
			t.Error("deleted session still indexed")
		}
	}
	transcript, err := store.LoadMessages(doomed)
	if err != nil {
		t.Fatalf("LoadMessages failed: %v", err)
	}
	if !transcript.IsEmpty() {
		t.Error("deleted transcript still on disk")
	}

	if err := m.Delete("session_u1_0"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("expected ErrUnknownSession, got %v", err)
	}
}
