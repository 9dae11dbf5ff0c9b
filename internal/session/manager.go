// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coordinates the active chat: which session is
// current, its transcript, and the user's session index. Persistence
// goes through the storage package; callers only see sessions and
// messages.
package session

import (
	"errors"

	"github.com/jeranaias/legalx-tui/internal/model"
	"github.com/jeranaias/legalx-tui/internal/storage"
)

// ErrUnknownSession is returned when a switch or delete names a
// session that is not in the index.
var ErrUnknownSession = errors.New("no such session")

// Manager owns the session index and the current transcript. It is not
// safe for concurrent use: the UI loop is its only caller.
type Manager struct {
	store  *storage.Store
	userID string

	sessions   []*model.Session
	current    *model.Session
	transcript *model.Transcript
}

// NewManager loads the user's saved sessions and opens a fresh one on
// top, matching the start-of-visit behavior: history is reachable, but
// typing goes into a new chat.
func NewManager(store *storage.Store, userID string) (*Manager, error) {
	saved, err := store.LoadSessions(userID)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		store:      store,
		userID:     userID,
		current:    model.NewSession(userID),
		transcript: model.NewTranscript(),
	}
	m.sessions = append([]*model.Session{m.current}, saved...)
	return m, nil
}

// Current returns the active session.
func (m *Manager) Current() *model.Session {
	return m.current
}

// Transcript returns the active session's transcript. Callers mutate
// it directly and call Save when a turn settles.
func (m *Manager) Transcript() *model.Transcript {
	return m.transcript
}

// Sessions returns the index, current first.
func (m *Manager) Sessions() []*model.Session {
	return m.sessions
}

// RecordUserTurn appends a user message, refreshes the session's title
// and preview from it, and persists both index and transcript.
func (m *Manager) RecordUserTurn(content string) (*model.Message, error) {
	msg := m.transcript.Append(model.RoleUser, content)
	m.current.RecordUserMessage(content, m.transcript.Len())
	if err := m.Save(); err != nil {
		return msg, err
	}
	return msg, nil
}

// Save persists the session index and the current transcript.
func (m *Manager) Save() error {
	if err := m.store.SaveSessions(m.userID, m.sessions); err != nil {
		return err
	}
	return m.store.SaveMessages(m.current.ID, m.transcript)
}

// NewChat saves the current session and opens an empty one. An
// untouched current session is reused instead of piling up empty
// entries in the index.
func (m *Manager) NewChat() error {
	if m.transcript.IsEmpty() {
		return nil
	}
	if err := m.Save(); err != nil {
		return err
	}
	m.current = model.NewSession(m.userID)
	m.transcript = model.NewTranscript()
	m.sessions = append([]*model.Session{m.current}, m.sessions...)
	return nil
}

// Switch saves the current session and loads another from the index.
func (m *Manager) Switch(sessionID string) error {
	if sessionID == m.current.ID {
		return nil
	}
	target := m.find(sessionID)
	if target == nil {
		return ErrUnknownSession
	}
	if err := m.Save(); err != nil {
		return err
	}
	transcript, err := m.store.LoadMessages(sessionID)
	if err != nil {
		return err
	}
	m.current = target
	m.transcript = transcript
	return nil
}

// Delete removes a session and its transcript. Deleting the current
// session opens a fresh one.
func (m *Manager) Delete(sessionID string) error {
	if m.find(sessionID) == nil {
		return ErrUnknownSession
	}
	if err := m.store.DeleteSession(sessionID); err != nil {
		return err
	}

	kept := m.sessions[:0]
	for _, s := range m.sessions {
		if s.ID != sessionID {
			kept = append(kept, s)
		}
	}
	m.sessions = kept

	if m.current.ID == sessionID {
		m.current = model.NewSession(m.userID)
		m.transcript = model.NewTranscript()
		m.sessions = append([]*model.Session{m.current}, m.sessions...)
	}
	return m.store.SaveSessions(m.userID, m.sessions)
}

// find returns the indexed session with the given id, or nil.
func (m *Manager) find(sessionID string) *model.Session {
	for _, s := range m.sessions {
		if s.ID == sessionID {
			return s
		}
	}
	return nil
}
