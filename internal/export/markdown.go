// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/legalx-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a session's transcript to Markdown.
func (e *MarkdownExporter) Export(sess *model.Session, transcript *model.Transcript) ([]byte, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is nil")
	}
	if transcript == nil || transcript.IsEmpty() {
		return nil, fmt.Errorf("transcript has no messages")
	}

	var sb strings.Builder

	// YAML frontmatter with metadata
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(sess.Title)))
		sb.WriteString(fmt.Sprintf("date: %s\n", sess.CreatedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("messages: %d\n", transcript.Len()))
		sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().Format(time.RFC3339)))
		sb.WriteString("generator: legalx-tui\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(sess.Title)))

	if e.options.IncludeMetadata {
		sb.WriteString("## Session Information\n\n")
		sb.WriteString(fmt.Sprintf("- **Created**: %s\n", formatTimestamp(sess.CreatedAt)))
		sb.WriteString(fmt.Sprintf("- **Messages**: %d\n", transcript.Len()))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")

	for i, msg := range transcript.Messages {
		roleLabel := e.formatRoleLabel(msg.Role)
		if e.options.IncludeTimestamps {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n",
				roleLabel,
				formatShortTimestamp(msg.Timestamp)))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", roleLabel))
		}

		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")

		if e.options.IncludeSources && len(msg.Sources) > 0 {
			sb.WriteString(e.formatSources(msg.Sources))
			sb.WriteString("\n")
		}

		if msg.FileInfo != nil {
			sb.WriteString(fmt.Sprintf("<sub>File: %s (%s)</sub>\n\n",
				msg.FileInfo.Filename, msg.FileInfo.Category))
		}

		if i < transcript.Len()-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from LegalX on %s*\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatRoleLabel returns a formatted label for the message role.
func (e *MarkdownExporter) formatRoleLabel(role model.Role) string {
	switch role {
	case model.RoleUser:
		return "[You]"
	case model.RoleAssistant:
		return "[LegalX]"
	case model.RoleSystem:
		return "[System]"
	default:
		return string(role)
	}
}

// formatSources renders cited documents as a sub-list under the answer.
func (e *MarkdownExporter) formatSources(sources []model.Source) string {
	var sb strings.Builder
	sb.WriteString("**Sources**:\n\n")
	for _, src := range sources {
		sb.WriteString(fmt.Sprintf("- %s", src.DocumentID))
		if src.Page > 0 {
			sb.WriteString(fmt.Sprintf(", page %d", src.Page))
		}
		if src.RelevanceScore > 0 {
			sb.WriteString(fmt.Sprintf(" (relevance %.0f%%)", src.RelevanceScore*100))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML escapes special YAML characters in values.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
