// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package job

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jeranaias/legalx-tui/internal/api"
	"github.com/jeranaias/legalx-tui/internal/push"
)

// backendStub is a scripted backend: submissions return the configured
// handle, status polls return the configured record.
type backendStub struct {
	handle       api.JobHandle
	record       api.JobRecord
	submitOK     bool
	cancelled    atomic.Int32
	submits      atomic.Int32
	polls        atomic.Int32
	lastPriority atomic.Value
}

func (b *backendStub) serve(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/jobs/submit-chat-job":
			b.submits.Add(1)
			var body struct {
				Priority string `json:"priority"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			b.lastPriority.Store(body.Priority)
			if !b.submitOK {
				http.Error(w, `{"detail":"queue full"}`, http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(b.handle)
		case strings.HasPrefix(r.URL.Path, "/api/v1/jobs/job-status/"):
			b.polls.Add(1)
			json.NewEncoder(w).Encode(b.record)
		case strings.HasPrefix(r.URL.Path, "/api/v1/jobs/cancel-job/"):
			b.cancelled.Add(1)
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestController(t *testing.T, stub *backendStub) *Controller {
	t.Helper()
	srv := stub.serve(t)
	t.Cleanup(srv.Close)
	client := api.NewClient(srv.URL).WithMaxRetries(1).WithRateLimit(10000, 10000)
	return NewController(client, "u1")
}

func TestSubmitCarriesConfiguredPriority(t *testing.T) {
	stub := &backendStub{
		submitOK: true,
		handle:   api.JobHandle{JobID: "j1", QueuePosition: 1},
	}
	c := newTestController(t, stub).WithPriority("high")

	if _, err := c.Submit(context.Background(), "urgent question", "s1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := stub.lastPriority.Load(); got != "high" {
		t.Errorf("submitted priority = %v, want %q", got, "high")
	}
}

func TestSubmitDefaultsToNormalPriority(t *testing.T) {
	stub := &backendStub{
		submitOK: true,
		handle:   api.JobHandle{JobID: "j1"},
	}
	c := newTestController(t, stub)

	if _, err := c.Submit(context.Background(), "question", "s1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := stub.lastPriority.Load(); got != "normal" {
		t.Errorf("submitted priority = %v, want %q", got, "normal")
	}
}

func TestSubmitQueuedFlow(t *testing.T) {
	stub := &backendStub{
		submitOK: true,
		handle:   api.JobHandle{JobID: "j1", QueuePosition: 3, EstimatedWait: 12},
		record: api.JobRecord{
			JobID:  "j1",
			Status: api.JobCompleted,
			Result: &api.JobResult{Response: "the clause is void"},
		},
	}
	c := newTestController(t, stub)
	ctx := context.Background()

	handle, err := c.Submit(ctx, "is clause 4 enforceable?", "s1")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if handle.QueuePosition != 3 {
		t.Errorf("unexpected queue position %d", handle.QueuePosition)
	}
	if snap := c.Snapshot(); snap.Phase != PhaseQueued || snap.JobID != "j1" {
		t.Errorf("expected queued j1, got %+v", snap)
	}

	// Queue drains.
	if out := c.HandleEvent(push.QueuePositionEvent{JobID: "j1", Position: 1, EstimatedWait: 4}); out != OutcomePositionChanged {
		t.Errorf("expected position change, got %v", out)
	}
	if out := c.HandleEvent(push.QueuePositionEvent{JobID: "j1", Position: 0}); out != OutcomePositionChanged {
		t.Errorf("expected position change, got %v", out)
	}
	if snap := c.Snapshot(); snap.Phase != PhaseRunning {
		t.Errorf("expected running at position 0, got %v", snap.Phase)
	}

	// Completion arrives; result must be fetched.
	if out := c.HandleEvent(push.JobStatusEvent{JobID: "j1", Status: api.JobCompleted}); out != OutcomeCompleted {
		t.Errorf("expected completed outcome, got %v", out)
	}
	if snap := c.Snapshot(); snap.Phase != PhaseFetching {
		t.Errorf("expected fetching, got %v", snap.Phase)
	}

	result, err := c.FetchResult(ctx, "j1")
	if err != nil {
		t.Fatalf("FetchResult failed: %v", err)
	}
	if result == nil || result.Text() != "the clause is void" {
		t.Errorf("unexpected result: %+v", result)
	}
	if snap := c.Snapshot(); snap.Phase != PhaseIdle || snap.JobID != "" {
		t.Errorf("controller not idle after result: %+v", snap)
	}
}

func TestStaleJobEventsIgnored(t *testing.T) {
	stub := &backendStub{
		submitOK: true,
		handle:   api.JobHandle{JobID: "j2", QueuePosition: 2},
	}
	c := newTestController(t, stub)

	if _, err := c.Submit(context.Background(), "q", "s1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Events for a job we no longer track must change nothing.
	if out := c.HandleEvent(push.JobStatusEvent{JobID: "j1", Status: api.JobCompleted}); out != OutcomeNone {
		t.Errorf("stale completed not ignored: %v", out)
	}
	if out := c.HandleEvent(push.QueuePositionEvent{JobID: "j1", Position: 9}); out != OutcomeNone {
		t.Errorf("stale position not ignored: %v", out)
	}
	if out := c.HandleEvent(push.JobStatusEvent{Status: api.JobFailed}); out != OutcomeNone {
		t.Errorf("empty job id not ignored: %v", out)
	}
	if snap := c.Snapshot(); snap.Phase != PhaseQueued || snap.QueuePosition != 2 {
		t.Errorf("state disturbed by stale events: %+v", snap)
	}
}

func TestSubmitRejectedWhileActive(t *testing.T) {
	stub := &backendStub{
		submitOK: true,
		handle:   api.JobHandle{JobID: "j1", QueuePosition: 1},
	}
	c := newTestController(t, stub)

	if _, err := c.Submit(context.Background(), "first", "s1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := c.Submit(context.Background(), "second", "s1"); !errors.Is(err, ErrJobActive) {
		t.Errorf("expected ErrJobActive, got %v", err)
	}
	if n := stub.submits.Load(); n != 1 {
		t.Errorf("second submission reached the backend: %d submits", n)
	}
}

func TestJobFailure(t *testing.T) {
	stub := &backendStub{
		submitOK: true,
		handle:   api.JobHandle{JobID: "j1"},
	}
	c := newTestController(t, stub)

	if _, err := c.Submit(context.Background(), "q", "s1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if out := c.HandleEvent(push.JobStatusEvent{JobID: "j1", Status: api.JobFailed}); out != OutcomeFailed {
		t.Errorf("expected failed outcome, got %v", out)
	}
	if snap := c.Snapshot(); snap.Phase != PhaseIdle {
		t.Errorf("controller not idle after failure: %+v", snap)
	}

	// A failed job releases the slot: the next submission goes through.
	if _, err := c.Submit(context.Background(), "retry", "s1"); err != nil {
		t.Errorf("submit after failure rejected: %v", err)
	}
}

func TestSubmitErrorReturnsToIdle(t *testing.T) {
	stub := &backendStub{submitOK: false}
	c := newTestController(t, stub)

	if _, err := c.Submit(context.Background(), "q", "s1"); err == nil {
		t.Fatal("expected submission error")
	}
	if snap := c.Snapshot(); snap.Phase != PhaseIdle {
		t.Errorf("controller stuck after failed submit: %+v", snap)
	}
}

func TestFetchResultSuperseded(t *testing.T) {
	stub := &backendStub{
		submitOK: true,
		handle:   api.JobHandle{JobID: "j1"},
		record: api.JobRecord{
			JobID:  "j1",
			Status: api.JobCompleted,
			Result: &api.JobResult{Response: "late answer"},
		},
	}
	c := newTestController(t, stub)
	ctx := context.Background()

	if _, err := c.Submit(ctx, "q", "s1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	c.HandleEvent(push.JobStatusEvent{JobID: "j1", Status: api.JobCompleted})

	// The user cancels while the fetch would be in flight.
	if err := c.Cancel(ctx); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	result, err := c.FetchResult(ctx, "j1")
	if err != nil {
		t.Fatalf("FetchResult failed: %v", err)
	}
	if result != nil {
		t.Errorf("superseded result not discarded: %+v", result)
	}
}

func TestRefreshBridgesLostCompletion(t *testing.T) {
	stub := &backendStub{
		submitOK: true,
		handle:   api.JobHandle{JobID: "j1", QueuePosition: 1},
		record: api.JobRecord{
			JobID:  "j1",
			Status: api.JobCompleted,
			Result: &api.JobResult{Data: "answer via data"},
		},
	}
	c := newTestController(t, stub)
	ctx := context.Background()

	if _, err := c.Submit(ctx, "q", "s1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// The completed event was lost to a reconnect. Refresh finds the
	// terminal state over HTTP.
	out, err := c.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if out != OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %v", out)
	}

	result, err := c.FetchResult(ctx, "j1")
	if err != nil {
		t.Fatalf("FetchResult failed: %v", err)
	}
	if result == nil || result.Text() != "answer via data" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRefreshIdleIsNoop(t *testing.T) {
	stub := &backendStub{}
	c := newTestController(t, stub)

	out, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if out != OutcomeNone {
		t.Errorf("expected no outcome, got %v", out)
	}
	if n := stub.polls.Load(); n != 0 {
		t.Errorf("idle refresh hit the backend: %d polls", n)
	}
}

func TestCancelReleasesJob(t *testing.T) {
	stub := &backendStub{
		submitOK: true,
		handle:   api.JobHandle{JobID: "j1", QueuePosition: 5},
	}
	c := newTestController(t, stub)
	ctx := context.Background()

	if _, err := c.Submit(ctx, "q", "s1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := c.Cancel(ctx); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if n := stub.cancelled.Load(); n != 1 {
		t.Errorf("cancel not sent to backend: %d calls", n)
	}
	if snap := c.Snapshot(); snap.Phase != PhaseIdle {
		t.Errorf("controller not idle after cancel: %+v", snap)
	}

	// Cancel with nothing in flight stays local.
	if err := c.Cancel(ctx); err != nil {
		t.Errorf("idle cancel failed: %v", err)
	}
	if n := stub.cancelled.Load(); n != 1 {
		t.Errorf("idle cancel hit the backend: %d calls", n)
	}
}

func TestChunkEventsAreNotControllerBusiness(t *testing.T) {
	stub := &backendStub{}
	c := newTestController(t, stub)

	if out := c.HandleEvent(push.ChunkEvent{Chunk: "text"}); out != OutcomeNone {
		t.Errorf("chunk event produced outcome %v", out)
	}
	if out := c.HandleEvent(push.ConnStateEvent{State: push.StateOpen}); out != OutcomeNone {
		t.Errorf("conn event produced outcome %v", out)
	}
}
