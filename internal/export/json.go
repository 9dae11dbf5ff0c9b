// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeranaias/legalx-tui/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports transcripts to JSON format.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// jsonDocument is the exported file shape.
type jsonDocument struct {
	Session    *model.Session   `json:"session"`
	Messages   []*model.Message `json:"messages"`
	ExportedAt time.Time        `json:"exported_at"`
	Generator  string           `json:"generator"`
}

// Export converts a session's transcript to indented JSON.
func (e *JSONExporter) Export(sess *model.Session, transcript *model.Transcript) ([]byte, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is nil")
	}
	if transcript == nil || transcript.IsEmpty() {
		return nil, fmt.Errorf("transcript has no messages")
	}

	doc := jsonDocument{
		Session:    sess,
		Messages:   transcript.Messages,
		ExportedAt: time.Now(),
		Generator:  "legalx-tui",
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode failed: %w", err)
	}
	return data, nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
