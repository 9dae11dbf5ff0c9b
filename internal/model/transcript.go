// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for transcripts and messages.
package model

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the append-only ordered log of turns for one chat
// session. Messages are never reordered or removed; the only mutation
// after append is chunk application to the in-flight assistant turn.
//
// Invariant: at most one assistant message has Completed == false at any
// time. ApplyChunk preserves this by always targeting the existing
// in-flight turn, wherever it sits in the log; interleaved system turns
// (upload outcomes land mid-stream) never displace it.
type Transcript struct {
	Messages []*Message `json:"messages"`
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{Messages: make([]*Message, 0)}
}

// =============================================================================
// APPEND OPERATIONS
// =============================================================================

// Append adds a completed message to the transcript and returns it.
func (t *Transcript) Append(role Role, content string) *Message {
	msg := NewMessage(role, content)
	t.Messages = append(t.Messages, msg)
	return msg
}

// AppendWithSources adds a completed assistant message carrying citations.
func (t *Transcript) AppendWithSources(role Role, content string, sources []Source) *Message {
	msg := NewMessage(role, content)
	msg.Sources = sources
	t.Messages = append(t.Messages, msg)
	return msg
}

// AppendFileInfo adds a system message describing a document, used to
// report upload outcomes in the conversation flow.
func (t *Transcript) AppendFileInfo(content string, info *FileInfo) *Message {
	msg := NewMessage(RoleSystem, content)
	msg.FileInfo = info
	t.Messages = append(t.Messages, msg)
	return msg
}

// =============================================================================
// STREAMING
// =============================================================================

// ApplyChunk routes streamed text into the transcript. The chunk is
// appended to the in-flight assistant turn if one exists; otherwise a
// new streaming assistant turn is created at the tail. isFinal marks
// the turn completed.
func (t *Transcript) ApplyChunk(text string, isFinal bool) *Message {
	msg := t.Streaming()
	if msg == nil {
		msg = NewStreamingMessage()
		t.Messages = append(t.Messages, msg)
	}
	msg.AppendChunk(text, isFinal)
	return msg
}

// Streaming returns the in-flight assistant turn, or nil if none
// exists. The scan runs from the tail because system turns (upload
// outcomes) may be appended after the streaming turn mid-job.
func (t *Transcript) Streaming() *Message {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].IsStreaming() {
			return t.Messages[i]
		}
	}
	return nil
}

// FinishStreaming marks the in-flight assistant turn completed, if one
// exists. Used when a terminal job event arrives before the final chunk.
func (t *Transcript) FinishStreaming() {
	if msg := t.Streaming(); msg != nil {
		msg.Completed = true
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Last returns the most recent message, or nil if the transcript is empty.
func (t *Transcript) Last() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return t.Messages[len(t.Messages)-1]
}

// FirstUserMessage returns the first user turn, or nil if none exists.
func (t *Transcript) FirstUserMessage() *Message {
	for _, msg := range t.Messages {
		if msg.Role == RoleUser {
			return msg
		}
	}
	return nil
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.Messages)
}

// IsEmpty returns true if there are no messages.
func (t *Transcript) IsEmpty() bool {
	return len(t.Messages) == 0
}
