// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/legalx-tui/internal/job"
	"github.com/jeranaias/legalx-tui/internal/model"
	"github.com/jeranaias/legalx-tui/internal/push"
)

// =============================================================================
// UPDATE LOOP
// =============================================================================

// Update handles all incoming Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PushEventMsg:
		return m.handlePushEvent(msg.Event)

	case PushClosedMsg:
		m.connState = push.StateClosed
		return m, nil

	case SubmitResultMsg:
		return m.handleSubmitResult(msg)

	case JobResultMsg:
		return m.handleJobResult(msg)

	case RefreshOutcomeMsg:
		if msg.Err != nil {
			return m, nil
		}
		if msg.Outcome == job.OutcomeCompleted {
			return m, fetchResultCmd(m.ctrl, m.snapshot().JobID)
		}
		if msg.Outcome == job.OutcomeFailed {
			m.failActiveQuery(processingFailedText)
		}
		return m, nil

	case CancelDoneMsg:
		m.sessions.Transcript().FinishStreaming()
		appendSystem(m.sessions.Transcript(), "Query cancelled.")
		m.refreshViewport()
		return m, nil

	case DocumentsMsg:
		if msg.Err == nil {
			m.docs = msg.Docs
		}
		return m, nil

	case UploadResultMsg:
		return m.handleUploadResult(msg)

	case DocDeletedMsg:
		if msg.Err != nil {
			m.lastError = &ErrorMsg{Title: "Delete failed", Message: msg.Err.Error()}
			return m, nil
		}
		return m, listDocumentsCmd(m.client)

	case WatchFileMsg:
		// A file settled in the watched directory; upload it and keep
		// listening.
		return m, tea.Batch(
			uploadDocumentCmd(m.client, msg.Path, m.uploadCategory, m.userID),
			waitForWatchedFile(m.watchFiles),
		)

	case WatchClosedMsg:
		return m, nil

	case QueueStatsMsg:
		if msg.Err == nil {
			m.queueStats = msg.Stats
		}
		return m, nil

	case StatsTickMsg:
		if !m.showQueueStats {
			return m, nil
		}
		return m, tea.Batch(queueStatsCmd(m.client), statsTickCmd())

	case ExportDoneMsg:
		transcript := m.sessions.Transcript()
		if msg.Err != nil {
			appendSystem(transcript, "Export failed: "+msg.Err.Error())
		} else {
			appendSystem(transcript, "Transcript exported to "+msg.Path)
		}
		m.refreshViewport()
		return m, nil

	case ErrorMsg:
		m.lastError = &msg
		return m, nil

	case ErrorDismissMsg:
		m.lastError = nil
		return m, nil
	}

	// Everything else goes to the focused components.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// =============================================================================
// RESIZE
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	// Header, status bar and input each take fixed rows.
	contentHeight := msg.Height - chromeHeight
	if contentHeight < 3 {
		contentHeight = 3
	}
	m.viewport.Width = msg.Width
	m.viewport.Height = contentHeight
	m.input.Width = msg.Width - 4

	m.markdown = newMarkdownRenderer(msg.Width - 8)
	m.refreshViewport()
	return m
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		m.quitting = true
		return m, tea.Quit
	}

	if m.lastError != nil {
		if key.Matches(msg, m.keyMap.Cancel) || msg.Type == tea.KeyEnter {
			m.lastError = nil
		}
		return m, nil
	}

	switch m.mode {
	case modeSessions:
		return m.handleSessionsKey(msg)
	case modeDocs:
		return m.handleDocsKey(msg)
	case modeHelp:
		if key.Matches(msg, m.keyMap.Cancel) || key.Matches(msg, m.keyMap.Help) {
			m.mode = modeChat
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.Cancel):
		if m.busy() {
			return m, cancelJobCmd(m.ctrl)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.NewChat):
		return m.startNewChat()

	case key.Matches(msg, m.keyMap.Sessions):
		m.mode = modeSessions
		m.selected = 0
		return m, nil

	case key.Matches(msg, m.keyMap.Help):
		m.mode = modeHelp
		return m, nil

	case key.Matches(msg, m.keyMap.Up), key.Matches(msg, m.keyMap.Down),
		key.Matches(msg, m.keyMap.PageUp), key.Matches(msg, m.keyMap.PageDown),
		key.Matches(msg, m.keyMap.Home), key.Matches(msg, m.keyMap.End):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSessionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sessions := m.sessions.Sessions()
	switch {
	case key.Matches(msg, m.keyMap.Cancel):
		m.mode = modeChat
	case key.Matches(msg, m.keyMap.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keyMap.Down):
		if m.selected < len(sessions)-1 {
			m.selected++
		}
	case msg.Type == tea.KeyEnter:
		if m.selected < len(sessions) {
			if err := m.sessions.Switch(sessions[m.selected].ID); err != nil {
				m.lastError = &ErrorMsg{Title: "Switch failed", Message: err.Error()}
			}
		}
		m.mode = modeChat
		m.refreshViewport()
	case msg.String() == "d":
		if m.selected < len(sessions) {
			if err := m.sessions.Delete(sessions[m.selected].ID); err != nil {
				m.lastError = &ErrorMsg{Title: "Delete failed", Message: err.Error()}
			}
			if m.selected > 0 {
				m.selected--
			}
			m.refreshViewport()
		}
	}
	return m, nil
}

func (m Model) handleDocsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Cancel):
		m.mode = modeChat
	case key.Matches(msg, m.keyMap.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keyMap.Down):
		if m.selected < len(m.docs)-1 {
			m.selected++
		}
	case msg.String() == "d":
		if m.selected < len(m.docs) {
			doc := m.docs[m.selected]
			if m.selected > 0 {
				m.selected--
			}
			return m, deleteDocumentCmd(m.client, doc.DocumentID, m.userID)
		}
	}
	return m, nil
}

// =============================================================================
// QUERY SUBMISSION
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		m.input.SetValue("")
		return m.executeCommand(text)
	}

	if m.busy() {
		m.lastError = &ErrorMsg{
			Title:   "Query in progress",
			Message: job.ErrJobActive.Error(),
		}
		return m, nil
	}

	if _, err := m.sessions.RecordUserTurn(text); err != nil {
		m.lastError = &ErrorMsg{Title: "Save failed", Message: err.Error()}
		return m, nil
	}
	m.input.SetValue("")
	m.refreshViewport()

	return m, submitQueryCmd(m.ctrl, text, m.sessions.Current().ID)
}

func (m Model) handleSubmitResult(msg SubmitResultMsg) (tea.Model, tea.Cmd) {
	transcript := m.sessions.Transcript()
	if msg.Err != nil {
		appendSystem(transcript, submitErrorText)
		m.refreshViewport()
		return m, nil
	}
	if msg.Handle.QueuePosition > 0 {
		appendSystem(transcript, fmt.Sprintf(
			"Processing your query... Position in queue: %d", msg.Handle.QueuePosition))
		m.refreshViewport()
	}
	return m, nil
}

// =============================================================================
// PUSH EVENT HANDLING
// =============================================================================

func (m Model) handlePushEvent(ev push.Event) (tea.Model, tea.Cmd) {
	// Always re-arm the listener so the next event is delivered.
	rearm := waitForPushEvent(m.pushEvents)

	switch ev := ev.(type) {
	case push.ConnStateEvent:
		reconnected := m.connState != push.StateOpen && ev.State == push.StateOpen
		m.connState = ev.State
		if reconnected && m.busy() {
			// Bridge any job events lost while the channel was down.
			return m, tea.Batch(rearm, refreshCmd(m.ctrl))
		}
		return m, rearm

	case push.ChunkEvent:
		// Chunks are only meaningful while a query is in flight. Late
		// chunks from a cancelled job are dropped.
		if m.busy() {
			m.sessions.Transcript().ApplyChunk(ev.Chunk, ev.IsFinal)
			m.refreshViewport()
		}
		return m, rearm
	}

	switch m.ctrl.HandleEvent(ev) {
	case job.OutcomeCompleted:
		return m, tea.Batch(rearm, fetchResultCmd(m.ctrl, m.snapshot().JobID))
	case job.OutcomeFailed:
		m.failActiveQuery(processingFailedText)
	case job.OutcomePositionChanged:
		// The header reads the controller snapshot directly; a redraw
		// is all that is needed.
	}
	return m, rearm
}

// =============================================================================
// RESULT HANDLING
// =============================================================================

func (m Model) handleJobResult(msg JobResultMsg) (tea.Model, tea.Cmd) {
	// A nil result with no error means the job was superseded while the
	// fetch was in flight. Nothing to show.
	if msg.Err == nil && msg.Result == nil {
		return m, nil
	}

	transcript := m.sessions.Transcript()
	switch {
	case errors.Is(msg.Err, job.ErrJobFailed):
		m.failActiveQuery(processingFailedText)
	case msg.Err != nil:
		m.failActiveQuery(fetchErrorText)
	default:
		// The fetched result is authoritative: it replaces whatever the
		// chunk stream delivered so far.
		if s := transcript.Streaming(); s != nil {
			s.Content = msg.Result.Text()
			s.SetSources(msg.Result.Sources)
			transcript.FinishStreaming()
		} else {
			transcript.AppendWithSources(model.RoleAssistant, msg.Result.Text(), msg.Result.Sources)
		}
		if err := m.sessions.Save(); err != nil {
			m.lastError = &ErrorMsg{Title: "Save failed", Message: err.Error()}
		}
		m.refreshViewport()
	}
	return m, nil
}

// failActiveQuery closes out the in-flight assistant turn with a system
// notice. The controller has already released the job slot.
func (m *Model) failActiveQuery(notice string) {
	transcript := m.sessions.Transcript()
	transcript.FinishStreaming()
	appendSystem(transcript, notice)
	m.refreshViewport()
}

// =============================================================================
// UPLOADS
// =============================================================================

func (m Model) handleUploadResult(msg UploadResultMsg) (tea.Model, tea.Cmd) {
	transcript := m.sessions.Transcript()
	if msg.Err != nil {
		appendSystem(transcript, fmt.Sprintf("Upload failed for %s: %v", msg.Path, msg.Err))
		m.refreshViewport()
		return m, nil
	}
	transcript.AppendFileInfo(
		fmt.Sprintf("Uploaded %s for indexing.", msg.Result.Filename),
		&model.FileInfo{Filename: msg.Result.Filename, Category: msg.Result.Category},
	)
	m.refreshViewport()
	return m, listDocumentsCmd(m.client)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// parseCommand splits a slash command into its name and argument.
func parseCommand(input string) (name, arg string) {
	input = strings.TrimSpace(strings.TrimPrefix(input, "/"))
	parts := strings.SplitN(input, " ", 2)
	name = strings.ToLower(parts[0])
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return name, arg
}

func (m Model) executeCommand(input string) (tea.Model, tea.Cmd) {
	name, arg := parseCommand(input)

	switch name {
	case "new":
		return m.startNewChat()

	case "sessions":
		m.mode = modeSessions
		m.selected = 0
		return m, nil

	case "switch":
		if arg == "" {
			return m, errorCmd("Usage", "/switch <number|session-id>")
		}
		return m.switchSession(arg)

	case "docs":
		m.mode = modeDocs
		m.selected = 0
		return m, listDocumentsCmd(m.client)

	case "upload":
		if arg == "" {
			return m, errorCmd("Usage", "/upload <path>")
		}
		return m, uploadDocumentCmd(m.client, arg, m.uploadCategory, m.userID)

	case "delete-doc":
		if arg == "" {
			return m, errorCmd("Usage", "/delete-doc <document-id>")
		}
		return m, deleteDocumentCmd(m.client, arg, m.userID)

	case "refresh":
		return m, refreshCmd(m.ctrl)

	case "cancel":
		if !m.busy() {
			return m, nil
		}
		return m, cancelJobCmd(m.ctrl)

	case "export":
		format := arg
		if format == "" {
			format = "md"
		}
		if format != "md" && format != "json" {
			return m, errorCmd("Usage", "/export [md|json]")
		}
		if m.sessions.Transcript().IsEmpty() {
			return m, errorCmd("Export", "Nothing to export yet.")
		}
		return m, exportCmd(m.sessions, format, m.exportDir)

	case "help":
		m.mode = modeHelp
		return m, nil

	case "quit":
		m.quitting = true
		return m, tea.Quit
	}

	return m, errorCmd("Unknown command", "/"+name+" is not a command. Try /help.")
}

// switchSession resolves arg as a 1-based position in the session list
// or as a session id and switches to it.
func (m Model) switchSession(arg string) (tea.Model, tea.Cmd) {
	if m.busy() {
		return m, errorCmd("Query in progress", "Wait for the current query or /cancel it first.")
	}

	target := arg
	if n, err := strconv.Atoi(arg); err == nil {
		sessions := m.sessions.Sessions()
		if n < 1 || n > len(sessions) {
			return m, errorCmd("Switch failed", fmt.Sprintf("No session %d.", n))
		}
		target = sessions[n-1].ID
	}

	if err := m.sessions.Switch(target); err != nil {
		return m, errorCmd("Switch failed", err.Error())
	}
	m.refreshViewport()
	return m, nil
}

func (m Model) startNewChat() (tea.Model, tea.Cmd) {
	if m.busy() {
		return m, errorCmd("Query in progress", "Wait for the current query or /cancel it first.")
	}
	if err := m.sessions.NewChat(); err != nil {
		m.lastError = &ErrorMsg{Title: "New chat failed", Message: err.Error()}
		return m, nil
	}
	m.refreshViewport()
	return m, nil
}
