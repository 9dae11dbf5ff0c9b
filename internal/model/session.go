// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for transcripts and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// TitleMaxRunes is the maximum title length derived from a user message.
// Longer messages are cut at this length and marked with an ellipsis.
const TitleMaxRunes = 50

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is the bookkeeping record for one chat session. The transcript
// itself is stored separately, keyed by the session ID.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	LastMessage  string    `json:"last_message,omitempty"`
	MessageCount int       `json:"message_count"`
}

// NewSession creates a session for the given user. The ID carries the
// user id for readability plus a generated component, so sessions
// created back to back never collide.
func NewSession(userID string) *Session {
	return &Session{
		ID:        "session_" + userID + "_" + uuid.New().String(),
		Title:     "New Chat",
		CreatedAt: time.Now(),
	}
}

// RecordUserMessage updates the session bookkeeping after a user turn:
// the title is derived from the message, and the last-message preview
// and count are refreshed.
func (s *Session) RecordUserMessage(content string, messageCount int) {
	s.Title = DeriveTitle(content)
	s.LastMessage = content
	s.MessageCount = messageCount
}

// DeriveTitle builds a session title from a user message: the first
// TitleMaxRunes runes, with "..." appended when the message was longer.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= TitleMaxRunes {
		return content
	}
	return string(runes[:TitleMaxRunes]) + "..."
}
