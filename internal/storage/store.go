// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chat sessions and transcripts as JSON files
// under the state directory.
//
// Layout mirrors the two-key scheme the data has always used: one file
// holds a user's session index, one file per session holds its
// messages. Files are written atomically so a crash mid-save never
// leaves a truncated transcript behind.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jeranaias/legalx-tui/internal/model"
	"github.com/jeranaias/legalx-tui/internal/util"
)

// Store reads and writes chat state under a single directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// sessionsPath is the per-user session index file.
func (s *Store) sessionsPath(userID string) string {
	return filepath.Join(s.dir, "sessions_"+sanitize(userID)+".json")
}

// messagesPath is the per-session transcript file.
func (s *Store) messagesPath(sessionID string) string {
	return filepath.Join(s.dir, "messages_"+sanitize(sessionID)+".json")
}

// LoadSessions returns the user's session index, newest first. A user
// with no saved state gets an empty slice, not an error.
func (s *Store) LoadSessions(userID string) ([]*model.Session, error) {
	var sessions []*model.Session
	if err := s.readJSON(s.sessionsPath(userID), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SaveSessions writes the user's session index.
func (s *Store) SaveSessions(userID string, sessions []*model.Session) error {
	return s.writeJSON(s.sessionsPath(userID), sessions)
}

// LoadMessages returns a session's transcript. A session never saved
// yields an empty transcript.
func (s *Store) LoadMessages(sessionID string) (*model.Transcript, error) {
	var messages []*model.Message
	if err := s.readJSON(s.messagesPath(sessionID), &messages); err != nil {
		return nil, err
	}
	return &model.Transcript{Messages: messages}, nil
}

// SaveMessages writes a session's transcript. Empty transcripts are
// not persisted; a session the user never typed into leaves no file.
func (s *Store) SaveMessages(sessionID string, transcript *model.Transcript) error {
	if transcript == nil || transcript.IsEmpty() {
		return nil
	}
	return s.writeJSON(s.messagesPath(sessionID), transcript.Messages)
}

// DeleteSession removes a session's transcript file. Missing files are
// fine; the index entry is the caller's to drop.
func (s *Store) DeleteSession(sessionID string) error {
	err := os.Remove(s.messagesPath(sessionID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// readJSON decodes a file into out, treating a missing file as empty.
func (s *Store) readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("corrupt state file %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON atomically writes out as indented JSON.
func (s *Store) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return util.AtomicWriteFile(path, data, 0o600)
}

// sanitize strips path separators from ids so a hostile id cannot
// escape the state directory.
func sanitize(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch r {
		case '/', '\\', '.':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
