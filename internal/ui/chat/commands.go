// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/legalx-tui/internal/api"
	"github.com/jeranaias/legalx-tui/internal/export"
	"github.com/jeranaias/legalx-tui/internal/job"
	"github.com/jeranaias/legalx-tui/internal/model"
	"github.com/jeranaias/legalx-tui/internal/push"
	"github.com/jeranaias/legalx-tui/internal/session"
)

// Per-command timeouts. Submissions and result fetches get more slack
// than the lightweight status calls.
const (
	submitTimeout = 30 * time.Second
	fetchTimeout  = 30 * time.Second
	statsTimeout  = 10 * time.Second

	// statsInterval is how often the header queue stats refresh.
	statsInterval = 15 * time.Second
)

// =============================================================================
// PUSH CHANNEL COMMANDS
// =============================================================================

// waitForPushEvent blocks on the push channel and delivers the next
// event. The Update loop re-issues this command after every delivery so
// exactly one receive is outstanding at a time, preserving event order.
func waitForPushEvent(events <-chan push.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return PushClosedMsg{}
		}
		return PushEventMsg{Event: ev}
	}
}

// =============================================================================
// JOB COMMANDS
// =============================================================================

// submitQueryCmd submits a query through the job controller.
func submitQueryCmd(ctrl *job.Controller, query, sessionID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()

		handle, err := ctrl.Submit(ctx, query, sessionID)
		return SubmitResultMsg{Handle: handle, Err: err}
	}
}

// fetchResultCmd retrieves the result of a completed job.
func fetchResultCmd(ctrl *job.Controller, jobID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		result, err := ctrl.FetchResult(ctx, jobID)
		return JobResultMsg{JobID: jobID, Result: result, Err: err}
	}
}

// refreshCmd polls the server for the active job's status, bridging any
// push events lost while the channel was down.
func refreshCmd(ctrl *job.Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
		defer cancel()

		outcome, err := ctrl.Refresh(ctx)
		return RefreshOutcomeMsg{Outcome: outcome, Err: err}
	}
}

// cancelJobCmd abandons the active job.
func cancelJobCmd(ctrl *job.Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
		defer cancel()

		return CancelDoneMsg{Err: ctrl.Cancel(ctx)}
	}
}

// =============================================================================
// DOCUMENT COMMANDS
// =============================================================================

// docListLimit caps how many documents the /docs view fetches.
const docListLimit = 100

// listDocumentsCmd fetches the server-side document list.
func listDocumentsCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
		defer cancel()

		docs, err := client.ListDocuments(ctx, docListLimit, 0)
		return DocumentsMsg{Docs: docs, Err: err}
	}
}

// uploadDocumentCmd uploads a single file for indexing.
func uploadDocumentCmd(client *api.Client, path, category, userID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), api.UploadTimeout)
		defer cancel()

		result, err := client.UploadDocument(ctx, path, category, userID)
		return UploadResultMsg{Path: path, Result: result, Err: err}
	}
}

// deleteDocumentCmd removes a document from the server index.
func deleteDocumentCmd(client *api.Client, documentID, userID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
		defer cancel()

		err := client.DeleteDocument(ctx, documentID, userID)
		return DocDeletedMsg{DocumentID: documentID, Err: err}
	}
}

// waitForWatchedFile blocks on the upload watcher channel and delivers
// the next settled file path.
func waitForWatchedFile(files <-chan string) tea.Cmd {
	return func() tea.Msg {
		path, ok := <-files
		if !ok {
			return WatchClosedMsg{}
		}
		return WatchFileMsg{Path: path}
	}
}

// =============================================================================
// STATS COMMANDS
// =============================================================================

// queueStatsCmd fetches queue statistics for the header.
func queueStatsCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
		defer cancel()

		stats, err := client.GetQueueStats(ctx)
		return QueueStatsMsg{Stats: stats, Err: err}
	}
}

// statsTickCmd schedules the next periodic stats refresh.
func statsTickCmd() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg {
		return StatsTickMsg{Time: t}
	})
}

// =============================================================================
// EXPORT COMMANDS
// =============================================================================

// exportCmd writes the current transcript to a file in the given format.
func exportCmd(mgr *session.Manager, format, outputDir string) tea.Cmd {
	sess := mgr.Current()
	transcript := mgr.Transcript()
	return func() tea.Msg {
		opts := export.DefaultOptions()
		opts.OutputDir = outputDir

		var exporter export.Exporter
		switch format {
		case "json":
			exporter = export.NewJSONExporter(opts)
		default:
			exporter = export.NewMarkdownExporter(opts)
		}

		path, err := export.ToFile(sess, transcript, exporter, opts)
		return ExportDoneMsg{Path: path, Err: err}
	}
}

// =============================================================================
// ASSORTED HELPERS
// =============================================================================

// errorCmd wraps an error banner into a command.
func errorCmd(title, message string) tea.Cmd {
	return func() tea.Msg {
		return NewErrorMsg(title, message)
	}
}

// appendSystem adds a transient system notice to the transcript. Queue
// and error notices are not persisted.
func appendSystem(transcript *model.Transcript, content string) {
	transcript.Append(model.RoleSystem, content)
}
