// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/legalx-tui/internal/model"
	"github.com/jeranaias/legalx-tui/internal/push"
	"github.com/jeranaias/legalx-tui/internal/ui/styles"
	"github.com/jeranaias/legalx-tui/internal/util"
)

// chromeHeight is the number of rows taken by the header, input area
// and status bar around the transcript viewport.
const chromeHeight = 6

// =============================================================================
// TOP-LEVEL VIEW
// =============================================================================

// View renders the chat interface.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.mode {
	case modeSessions:
		return m.renderSessionList()
	case modeDocs:
		return m.renderDocList()
	case modeHelp:
		return m.renderHelp()
	}

	sections := []string{
		m.renderHeader(),
		m.viewport.View(),
	}
	if m.lastError != nil {
		sections = append(sections, m.renderError())
	}
	sections = append(sections,
		m.renderInput(),
		m.renderStatusBar(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	brand := m.theme.HeaderBrand.Render("LegalX")
	titleLimit := m.width / 3
	if titleLimit < 20 {
		titleLimit = 20
	}
	title := m.theme.HeaderTitle.Render(util.TruncateWidth(m.sessions.Current().Title, titleLimit))
	left := brand + "  " + title

	right := m.theme.DocCount.Render(fmt.Sprintf("%d documents ready", m.docCount()))
	if info := m.queueInfo(); info != "" {
		right = m.theme.QueueBadge.Render(info) + "  " + right
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + right
	return m.theme.StatusBar.Render(line)
}

// queueInfo returns the active job's queue line, or the global queue
// stats when no job is waiting.
func (m Model) queueInfo() string {
	snap := m.snapshot()
	if snap.QueuePosition > 0 {
		return fmt.Sprintf("Queue: %d | Wait: %.0fs", snap.QueuePosition, snap.EstimatedWait)
	}
	if m.showQueueStats && m.queueStats != nil && m.queueStats.QueuedJobs > 0 {
		return fmt.Sprintf("Queued: %d | Active: %d", m.queueStats.QueuedJobs, m.queueStats.ActiveJobs)
	}
	return ""
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshViewport re-renders the transcript into the viewport and
// follows the tail.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) renderTranscript() string {
	transcript := m.sessions.Transcript()
	if transcript.IsEmpty() {
		return m.renderWelcome()
	}

	// Each message renders with a trailing newline; the extra one here
	// is the blank line between turns that compact mode drops.
	var sb strings.Builder
	for _, msg := range transcript.Messages {
		sb.WriteString(m.renderMessage(msg))
		if !m.compact {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m *Model) renderMessage(msg *model.Message) string {
	label := msg.Role.DisplayName()
	ts := msg.Timestamp.Format("15:04")

	switch msg.Role {
	case model.RoleUser:
		header := m.theme.SessionMeta.Render(ts) + " " + m.theme.InputPrompt.Render("["+label+"]")
		return header + "\n" + m.theme.UserBubble.Width(m.bubbleWidth()).Render(msg.Content) + "\n"

	case model.RoleAssistant:
		header := m.theme.SessionMeta.Render(ts) + " " + m.theme.HeaderTitle.Render("["+label+"]")
		body := m.renderAnswer(msg)
		out := header + "\n" + m.theme.AssistantBubble.Width(m.bubbleWidth()).Render(body)
		if len(msg.Sources) > 0 {
			out += "\n" + m.theme.SourceBlock.Render(renderSources(msg.Sources))
		}
		return out + "\n"

	default:
		content := msg.Content
		if msg.FileInfo != nil && msg.FileInfo.Size > 0 {
			content += " (" + util.FormatBytes(msg.FileInfo.Size) + ")"
		}
		return m.theme.SystemBubble.Render(content) + "\n"
	}
}

// renderAnswer renders assistant markdown, appending the spinner while
// the turn is still streaming.
func (m *Model) renderAnswer(msg *model.Message) string {
	body := msg.Content
	if m.markdown != nil && !msg.IsStreaming() {
		if rendered, err := m.markdown.Render(body); err == nil {
			body = strings.TrimRight(rendered, "\n")
		}
	}
	if msg.IsStreaming() {
		body += " " + m.spinner.View()
	}
	return body
}

// renderSources formats cited documents under an answer.
func renderSources(sources []model.Source) string {
	var sb strings.Builder
	sb.WriteString("Sources:")
	for _, src := range sources {
		sb.WriteString("\n- " + src.DocumentID)
		if src.Page > 0 {
			sb.WriteString(fmt.Sprintf(", page %d", src.Page))
		}
		if src.RelevanceScore > 0 {
			sb.WriteString(fmt.Sprintf(" (relevance %.0f%%)", src.RelevanceScore*100))
		}
	}
	return sb.String()
}

func (m *Model) renderWelcome() string {
	lines := []string{
		m.theme.WelcomeLogo.Render("LegalX"),
		m.theme.WelcomeInfo.Render("Ask questions about your legal documents."),
		"",
		m.theme.WelcomeInfo.Render("Type a question and press " +
			m.theme.WelcomeKey.Render("Enter") + ", or use " +
			m.theme.WelcomeKey.Render("/help") + " to list commands."),
	}
	return m.theme.WelcomeBox.Render(strings.Join(lines, "\n"))
}

// bubbleWidth returns the content width for message bubbles.
func (m *Model) bubbleWidth() int {
	w := m.width - 10
	if w < 20 {
		w = 40
	}
	return w
}

// =============================================================================
// INPUT AREA
// =============================================================================

func (m Model) renderInput() string {
	if m.busy() {
		waiting := m.spinner.View() + " " + m.theme.ThinkingText.Render("Processing your query...")
		if snap := m.snapshot(); snap.QueuePosition > 0 {
			waiting += " " + m.theme.QueueBadge.Render(
				fmt.Sprintf("(position %d)", snap.QueuePosition))
		}
		return m.theme.InputContainer.Width(m.width - 2).Render(waiting)
	}
	return m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m Model) renderStatusBar() string {
	conn := m.renderConnState()

	var shortcuts []string
	for _, b := range m.keyMap.ShortHelp() {
		shortcuts = append(shortcuts,
			m.theme.ShortcutKey.Render(b.Help().Key)+" "+
				m.theme.ShortcutDesc.Render(b.Help().Desc))
	}

	return m.theme.StatusBar.Width(m.width).Render(conn + "  " + strings.Join(shortcuts, "  "))
}

func (m Model) renderConnState() string {
	switch m.connState {
	case push.StateOpen:
		return m.theme.ConnOpen.Render(styles.ConnectionSymbols.Open + " live")
	case push.StateConnecting:
		return m.theme.ConnConnecting.Render(styles.ConnectionSymbols.Connecting + " connecting")
	default:
		return m.theme.ConnClosed.Render(styles.ConnectionSymbols.Closed + " offline")
	}
}

// =============================================================================
// ERROR BANNER
// =============================================================================

func (m Model) renderError() string {
	body := m.theme.ErrorTitle.Render(m.lastError.Title) + "\n" +
		m.theme.ErrorMessage.Render(m.lastError.Message) + "\n" +
		m.theme.ShortcutDesc.Render("Press Esc to dismiss")
	return m.theme.ErrorBox.Render(body)
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m Model) renderSessionList() string {
	var sb strings.Builder
	sb.WriteString(m.theme.HeaderTitle.Render("Sessions") + "\n\n")

	sessions := m.sessions.Sessions()
	sessTitleLimit := m.width / 2
	if sessTitleLimit < 20 {
		sessTitleLimit = 20
	}
	for i, sess := range sessions {
		line := fmt.Sprintf("%s  (%d messages)",
			util.TruncateWidth(sess.Title, sessTitleLimit), sess.MessageCount)
		if i == m.selected {
			sb.WriteString(m.theme.SessionItemSelected.Render(line))
		} else {
			sb.WriteString(m.theme.SessionItem.Render(line))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n" + m.theme.ShortcutDesc.Render("Enter: open  d: delete  Esc: back"))
	return m.theme.SessionList.Width(m.width - 4).Render(sb.String())
}

func (m Model) renderDocList() string {
	var sb strings.Builder
	sb.WriteString(m.theme.HeaderTitle.Render("Documents") + "\n\n")

	if len(m.docs) == 0 {
		sb.WriteString(m.theme.DocMeta.Render("No documents uploaded yet. Use /upload <path>."))
	}
	for i, doc := range m.docs {
		line := fmt.Sprintf("%s  %s  %s",
			m.theme.DocName.Render(doc.Filename),
			m.theme.DocCategory.Render(doc.Category),
			m.theme.DocMeta.Render(util.FormatBytes(doc.Size)))
		if i == m.selected {
			line = m.theme.SessionItemSelected.Render("> ") + line
		} else {
			line = "  " + line
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString("\n" + m.theme.ShortcutDesc.Render("d: delete  Esc: back"))
	return m.theme.DocList.Width(m.width - 4).Render(sb.String())
}

func (m Model) renderHelp() string {
	var sb strings.Builder
	sb.WriteString(m.theme.HeaderTitle.Render("Help") + "\n\n")

	for _, group := range m.keyMap.FullHelp() {
		for _, b := range group {
			sb.WriteString(fmt.Sprintf("  %s  %s\n",
				m.theme.ShortcutKey.Render(fmt.Sprintf("%-12s", b.Help().Key)),
				m.theme.ShortcutDesc.Render(b.Help().Desc)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(m.theme.HeaderTitle.Render("Commands") + "\n\n")
	commands := [][2]string{
		{"/new", "start a new chat"},
		{"/sessions", "list saved sessions"},
		{"/switch <n|id>", "switch to another session"},
		{"/docs", "list uploaded documents"},
		{"/upload <path>", "upload a document for indexing"},
		{"/delete-doc <id>", "remove a document from the index"},
		{"/refresh", "poll the active job's status"},
		{"/cancel", "abandon the active query"},
		{"/export [md|json]", "export the transcript"},
		{"/quit", "exit"},
	}
	for _, c := range commands {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			m.theme.ShortcutKey.Render(fmt.Sprintf("%-18s", c[0])),
			m.theme.ShortcutDesc.Render(c[1])))
	}

	sb.WriteString("\n" + m.theme.ShortcutDesc.Render("Esc: back"))
	return m.theme.Container.Render(sb.String())
}
