// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/legalx-tui/internal/api"
	"github.com/jeranaias/legalx-tui/internal/job"
	"github.com/jeranaias/legalx-tui/internal/push"
	"github.com/jeranaias/legalx-tui/internal/session"
	"github.com/jeranaias/legalx-tui/internal/ui/styles"
)

// =============================================================================
// VIEW MODES
// =============================================================================

// viewMode selects which screen the chat model renders.
type viewMode int

const (
	modeChat     viewMode = iota // Main conversation view
	modeSessions                 // Session picker overlay
	modeDocs                     // Document list overlay
	modeHelp                     // Help overlay
)

// =============================================================================
// USER-FACING STATUS TEXT
// =============================================================================

// Messages shown in the transcript for the common failure paths. The
// wording is part of the product surface, keep it stable.
const (
	submitErrorText      = "Error submitting your query. Please check the connection and try again."
	processingFailedText = "Sorry, there was an error processing your request. Please try again."
	fetchErrorText       = "Error retrieving response. Please try again."
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Deps carries everything the chat model needs from the surrounding
// application. WatchFiles may be nil when the upload watcher is off.
type Deps struct {
	Client     *api.Client
	Controller *job.Controller
	Sessions   *session.Manager
	PushEvents <-chan push.Event
	WatchFiles <-chan string

	UserID         string
	UploadCategory string
	ExportDir      string
	ShowQueueStats bool
	Compact        bool
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// Styling
	theme  *styles.Theme
	keyMap KeyMap

	// Dimensions
	width  int
	height int

	// Wiring
	client     *api.Client
	ctrl       *job.Controller
	sessions   *session.Manager
	pushEvents <-chan push.Event
	watchFiles <-chan string

	userID         string
	uploadCategory string
	exportDir      string
	showQueueStats bool
	compact        bool

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Markdown rendering for assistant answers. Rebuilt on resize so
	// word wrap tracks the viewport width.
	markdown *glamour.TermRenderer

	// View state
	mode       viewMode
	connState  push.State
	queueStats *api.QueueStats
	docs       []api.Document
	selected   int
	lastError  *ErrorMsg
	quitting   bool
}

// New creates a chat model wired to the given dependencies.
func New(theme *styles.Theme, deps Deps) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your documents..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: styles.LineSpinner.Frames,
		FPS:    styles.LineSpinner.Duration(),
	}
	sp.Style = theme.Spinner

	m := Model{
		theme:          theme,
		keyMap:         DefaultKeyMap(),
		client:         deps.Client,
		ctrl:           deps.Controller,
		sessions:       deps.Sessions,
		pushEvents:     deps.PushEvents,
		watchFiles:     deps.WatchFiles,
		userID:         deps.UserID,
		uploadCategory: deps.UploadCategory,
		exportDir:      deps.ExportDir,
		showQueueStats: deps.ShowQueueStats,
		compact:        deps.Compact,
		viewport:       vp,
		input:          ti,
		spinner:        sp,
		connState:      push.StateConnecting,
	}
	m.markdown = newMarkdownRenderer(80)
	return m
}

// newMarkdownRenderer builds a glamour renderer for the given wrap
// width. Returns nil if initialization fails, in which case answers
// render as plain text.
func newMarkdownRenderer(width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// Init starts the background listeners and periodic work.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForPushEvent(m.pushEvents),
		listDocumentsCmd(m.client),
		m.spinner.Tick,
		textinput.Blink,
	}
	if m.showQueueStats {
		cmds = append(cmds, queueStatsCmd(m.client), statsTickCmd())
	}
	if m.watchFiles != nil {
		cmds = append(cmds, waitForWatchedFile(m.watchFiles))
	}
	return tea.Batch(cmds...)
}

// busy reports whether a query is in flight. The input is disabled and
// arriving chunks are applied to the transcript only while busy.
func (m *Model) busy() bool {
	return m.ctrl.Active()
}

// snapshot returns the controller's current job state.
func (m *Model) snapshot() job.Snapshot {
	return m.ctrl.Snapshot()
}

// docCount returns the number of indexed documents for the header.
func (m *Model) docCount() int {
	return len(m.docs)
}
