// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the LegalX backend.
package api

import (
	"errors"
	"fmt"

	"github.com/jeranaias/legalx-tui/internal/model"
)

// =============================================================================
// JOB TYPES
// =============================================================================

// JobStatus is the server-driven lifecycle state of a background job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobHandle is what the backend returns when a chat job is accepted.
type JobHandle struct {
	JobID         string  `json:"job_id"`
	QueuePosition int     `json:"queue_position"`
	EstimatedWait float64 `json:"estimated_wait_time"`
}

// JobResult carries the completed answer. The backend has historically
// used either "response" or "data" for the answer text; Text() accepts
// both.
type JobResult struct {
	Response string         `json:"response,omitempty"`
	Data     string         `json:"data,omitempty"`
	Sources  []model.Source `json:"sources,omitempty"`
}

// Text returns the answer text regardless of which field carried it.
func (r *JobResult) Text() string {
	if r.Response != "" {
		return r.Response
	}
	return r.Data
}

// JobRecord is the job-status response. Result is present only when the
// job has completed.
type JobRecord struct {
	JobID  string     `json:"job_id,omitempty"`
	Status JobStatus  `json:"status"`
	Result *JobResult `json:"result,omitempty"`
}

// QueueStats is the backend's queue monitoring snapshot, shown in the
// status bar.
type QueueStats struct {
	QueuedJobs    int     `json:"queued_jobs"`
	ActiveJobs    int     `json:"active_jobs"`
	CompletedJobs int     `json:"completed_jobs"`
	AvgWaitTime   float64 `json:"average_wait_time,omitempty"`
}

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// Document is the client-side projection of a stored document.
type Document struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Category   string `json:"category,omitempty"`
	Size       int64  `json:"size,omitempty"`
}

// UploadResult is the backend's response to a document upload.
type UploadResult struct {
	Filename string `json:"filename"`
	Category string `json:"category"`
	Status   string `json:"status"`
}

// documentsResponse is the wire shape of the document listing.
type documentsResponse struct {
	Documents []Document `json:"documents"`
}

// =============================================================================
// ERRORS
// =============================================================================

// Error variables for caller mistakes caught before any network call.
var (
	// ErrEmptyQuery indicates the query was empty after trimming.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrMissingUser indicates no user id was supplied.
	ErrMissingUser = errors.New("user id is required")
)

// APIError represents a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d)", e.Status)
}

// Retryable reports whether the failure is worth retrying (server-side
// errors only; 4xx responses are the caller's problem).
func (e *APIError) Retryable() bool {
	return e.Status >= 500 && e.Status < 600
}

// apiErrorResponse is the backend's error envelope.
type apiErrorResponse struct {
	Detail string `json:"detail"`
}
