// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for transcripts and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "LegalX"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// SOURCE TYPE
// =============================================================================

// Source is one citation attached to an assistant message. The backend
// returns these alongside the generated answer; Page and RelevanceScore
// are optional (zero means absent).
type Source struct {
	DocumentID     string  `json:"document_id"`
	Page           int     `json:"page,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
}

// FileInfo describes a document attached to a message, used for the
// system turns that report upload outcomes.
type FileInfo struct {
	Filename string `json:"filename"`
	Category string `json:"category,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in a transcript.
//
// Completed is false only for an assistant message that is currently
// receiving streamed chunks; its Content grows with each chunk until the
// final chunk arrives. All other messages are created completed.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	FileInfo  *FileInfo `json:"file_info,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Completed bool      `json:"completed"`
}

// NewMessage creates a completed message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Completed: true,
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) *Message {
	return NewMessage(RoleSystem, content)
}

// NewStreamingMessage creates the placeholder assistant message that
// streamed chunks are appended to. It starts empty and incomplete.
func NewStreamingMessage() *Message {
	return &Message{
		ID:        generateID(),
		Role:      RoleAssistant,
		Timestamp: time.Now(),
		Completed: false,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendChunk appends streamed text to an incomplete assistant message.
// Chunks arriving after completion are ignored.
func (m *Message) AppendChunk(text string, isFinal bool) {
	if m.Completed {
		return
	}
	m.Content += text
	if isFinal {
		m.Completed = true
	}
}

// IsStreaming reports whether the message is still receiving chunks.
func (m *Message) IsStreaming() bool {
	return m.Role == RoleAssistant && !m.Completed
}

// SetSources attaches citations to the message. Sources are set once;
// later calls are ignored.
func (m *Message) SetSources(sources []Source) {
	if m.Sources != nil {
		return
	}
	m.Sources = sources
}

// Preview returns a truncated single-line preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := strings.ReplaceAll(m.Content, "\n", " ")
	content = strings.ReplaceAll(content, "\r", "")
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	return "msg_" + uuid.New().String()
}
