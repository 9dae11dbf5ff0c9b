// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the main conversation view of the LegalX TUI.
//
// This file defines all Bubble Tea message types used by the chat
// interface. Messages are organized into the following categories:
//   - Push: events arriving on the server push channel
//   - Jobs: submit confirmations, fetched results, refresh outcomes
//   - Documents: listing, upload, and deletion results
//   - Stats: queue statistics for the header
//   - Export: transcript export results
//   - UI state: errors and periodic ticks
package chat

import (
	"time"

	"github.com/jeranaias/legalx-tui/internal/api"
	"github.com/jeranaias/legalx-tui/internal/job"
	"github.com/jeranaias/legalx-tui/internal/push"
)

// =============================================================================
// PUSH CHANNEL MESSAGES
// =============================================================================

// PushEventMsg wraps a single event received on the push channel.
type PushEventMsg struct {
	Event push.Event
}

// PushClosedMsg signals that the push channel was shut down and no
// further events will arrive.
type PushClosedMsg struct{}

// =============================================================================
// JOB MESSAGES
// =============================================================================

// SubmitResultMsg reports the outcome of a query submission.
type SubmitResultMsg struct {
	Handle *api.JobHandle
	Err    error
}

// JobResultMsg delivers the fetched result of a completed job.
// A nil Result with a nil Err means the job was superseded and the
// result should be discarded.
type JobResultMsg struct {
	JobID  string
	Result *api.JobResult
	Err    error
}

// RefreshOutcomeMsg reports the outcome of a manual status poll.
type RefreshOutcomeMsg struct {
	Outcome job.Outcome
	Err     error
}

// CancelDoneMsg confirms a job cancellation request.
type CancelDoneMsg struct {
	Err error
}

// =============================================================================
// DOCUMENT MESSAGES
// =============================================================================

// DocumentsMsg delivers the server-side document list.
type DocumentsMsg struct {
	Docs []api.Document
	Err  error
}

// UploadResultMsg reports the outcome of a document upload.
type UploadResultMsg struct {
	Path   string
	Result *api.UploadResult
	Err    error
}

// DocDeletedMsg confirms a document deletion.
type DocDeletedMsg struct {
	DocumentID string
	Err        error
}

// WatchFileMsg delivers a settled file path from the upload watcher.
type WatchFileMsg struct {
	Path string
}

// WatchClosedMsg signals that the upload watcher was shut down.
type WatchClosedMsg struct{}

// =============================================================================
// STATS MESSAGES
// =============================================================================

// QueueStatsMsg delivers queue statistics for the header display.
type QueueStatsMsg struct {
	Stats *api.QueueStats
	Err   error
}

// StatsTickMsg triggers a periodic queue stats refresh.
type StatsTickMsg struct {
	Time time.Time
}

// =============================================================================
// EXPORT MESSAGES
// =============================================================================

// ExportDoneMsg reports the outcome of a transcript export.
type ExportDoneMsg struct {
	Path string
	Err  error
}

// =============================================================================
// UI STATE MESSAGES
// =============================================================================

// ErrorMsg displays an error banner to the user.
type ErrorMsg struct {
	Title   string
	Message string
}

// ErrorDismissMsg dismisses the current error banner.
type ErrorDismissMsg struct{}

// NewErrorMsg creates an error banner message.
func NewErrorMsg(title, message string) ErrorMsg {
	return ErrorMsg{Title: title, Message: message}
}
