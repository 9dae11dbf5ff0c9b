// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the LegalX backend.
//
// The client is stateless: every method is one request/response exchange
// and mutates nothing locally. Idempotent GETs are retried on transient
// failures with backoff; job submissions are never retried, since a
// retry after an ambiguous failure could enqueue the same query twice.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the backend API.
const (
	// DefaultBaseURL is the development backend address.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry budget for idempotent requests.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay between retries.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay caps the backoff delay.
	retryMaxDelay = 5 * time.Second

	// MaxResponseSize bounds response bodies so a misbehaving backend
	// cannot exhaust client memory.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "legalx-tui/0.1.0"
)

// =============================================================================
// CLIENT
// =============================================================================

// Client is the HTTP client for the LegalX backend.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// uploadClient carries no client-side Timeout: that field caps the
	// whole exchange and would cut off exactly the large uploads the
	// longer upload deadline exists for. Uploads are bounded by their
	// request context instead.
	uploadClient *http.Client

	maxRetries int

	// limiter paces outgoing requests so document batches cannot
	// hammer the backend.
	limiter *rate.Limiter
}

// NewClient creates a client for the given base URL ("" uses the
// development default).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		uploadClient: &http.Client{},
		maxRetries:   DefaultMaxRetries,
		limiter:      rate.NewLimiter(rate.Limit(10), 20),
	}
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithMaxRetries sets the retry budget for idempotent requests.
func (c *Client) WithMaxRetries(n int) *Client {
	c.maxRetries = n
	return c
}

// WithRateLimit overrides the request pacing.
func (c *Client) WithRateLimit(perSecond float64, burst int) *Client {
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return c
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WebSocketURL returns the push-channel endpoint for a user, derived
// from the base URL with the scheme swapped to ws/wss.
func (c *Client) WebSocketURL(userID string) string {
	wsURL := c.baseURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	return wsURL + "/ws/" + url.PathEscape(userID)
}

// =============================================================================
// JOB OPERATIONS
// =============================================================================

// submitChatJobRequest is the submission body.
type submitChatJobRequest struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Priority  string `json:"priority"`
}

// SubmitChatJob submits a query as a background job and returns the
// handle used to track it. The query must be non-empty after trimming
// and a user id is required; both are checked before any network call.
// Submissions are never retried.
func (c *Client) SubmitChatJob(ctx context.Context, query, userID, sessionID, priority string) (*JobHandle, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if userID == "" {
		return nil, ErrMissingUser
	}
	if priority == "" {
		priority = "normal"
	}

	body := submitChatJobRequest{
		Query:     query,
		UserID:    userID,
		SessionID: sessionID,
		Priority:  priority,
	}

	var handle JobHandle
	if err := c.postJSON(ctx, "/api/v1/jobs/submit-chat-job", body, &handle); err != nil {
		return nil, err
	}
	return &handle, nil
}

// GetJobStatus fetches the status and, when completed, the result of a job.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*JobRecord, error) {
	var record JobRecord
	path := "/api/v1/jobs/job-status/" + url.PathEscape(jobID)
	if err := c.getJSON(ctx, path, &record); err != nil {
		return nil, err
	}
	if record.JobID == "" {
		record.JobID = jobID
	}
	return &record, nil
}

// CancelJob asks the backend to cancel a job. Best effort: callers
// release the job locally regardless of the outcome.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	path := "/api/v1/jobs/cancel-job/" + url.PathEscape(jobID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil, false)
}

// GetQueueStats fetches the backend's queue monitoring snapshot.
func (c *Client) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	var stats QueueStats
	if err := c.getJSON(ctx, "/api/v1/jobs/queue-stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// =============================================================================
// DOCUMENT OPERATIONS
// =============================================================================

// ListDocuments fetches a page of the user's documents.
func (c *Client) ListDocuments(ctx context.Context, limit, offset int) ([]Document, error) {
	path := "/api/v1/documents/?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	var resp documentsResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// DeleteDocument removes a document by id. The user id travels in the
// X-User-ID header, matching the backend's ownership check.
func (c *Client) DeleteDocument(ctx context.Context, documentID, userID string) error {
	if userID == "" {
		return ErrMissingUser
	}
	path := "/api/v1/documents/" + url.PathEscape(documentID)
	return c.do(ctx, http.MethodDelete, path, nil, map[string]string{"X-User-ID": userID}, nil, false)
}

// =============================================================================
// HEALTH
// =============================================================================

// Health pings the backend. Used once at startup to distinguish "backend
// down" from "push channel still connecting".
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil, true)
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// getJSON performs a GET with retries and decodes the response.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, nil, out, true)
}

// postJSON performs a POST without retries and decodes the response.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	return c.do(ctx, http.MethodPost, path, data, headers, out, false)
}

// do runs one logical request. When retry is set, transient failures
// (network errors and 5xx responses) are retried with backoff up to the
// client's budget.
func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string, out any, retry bool) error {
	attempts := 1
	if retry {
		attempts = c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelay(attempt)):
			}
		}

		err := c.doOnce(ctx, method, path, body, headers, out)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	if attempts > 1 {
		return fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return lastErr
}

// doOnce performs a single HTTP exchange.
func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, headers map[string]string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	log.Printf("api: %s %s -> %d (%v)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	data, err := readBody(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// readBody reads a response body with the size cap applied.
func readBody(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return data, nil
}

// decodeError converts a non-2xx response into an APIError, pulling the
// backend's detail message out when present.
func decodeError(status int, body []byte) error {
	var envelope apiErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Detail != "" {
		return &APIError{Status: status, Message: envelope.Detail}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return &APIError{Status: status, Message: msg}
}

// isRetryable reports whether the error is transient.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	// Remaining failures are network-level and worth another attempt.
	return true
}

// backoffDelay returns the wait before the given retry attempt.
func backoffDelay(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
