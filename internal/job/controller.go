// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package job tracks the lifetime of the user's active chat job.
//
// The backend answers queries asynchronously: a submission returns a
// job id, progress arrives over the push channel, and the final answer
// is fetched over HTTP once the job completes. The controller owns that
// dance. At most one job is active at a time; events naming any other
// job are stale leftovers from a superseded submission and are ignored.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jeranaias/legalx-tui/internal/api"
	"github.com/jeranaias/legalx-tui/internal/push"
)

// Phase is the controller's position in the job lifecycle.
type Phase int

const (
	// PhaseIdle means no job is in flight; submissions are accepted.
	PhaseIdle Phase = iota

	// PhaseSubmitting means a submission request is on the wire.
	PhaseSubmitting

	// PhaseQueued means the job is accepted and waiting its turn.
	PhaseQueued

	// PhaseRunning means the backend is working on the job.
	PhaseRunning

	// PhaseFetching means the job completed and the result fetch is
	// in flight.
	PhaseFetching
)

// String returns the phase's display name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhaseQueued:
		return "queued"
	case PhaseRunning:
		return "running"
	case PhaseFetching:
		return "fetching"
	default:
		return "unknown"
	}
}

// Outcome tells the caller what an event changed.
type Outcome int

const (
	// OutcomeNone: nothing relevant changed (stale job, idle, or the
	// event does not concern the controller).
	OutcomeNone Outcome = iota

	// OutcomePositionChanged: the queue position or wait estimate moved.
	OutcomePositionChanged

	// OutcomeCompleted: the job finished; fetch the result now.
	OutcomeCompleted

	// OutcomeFailed: the job failed; the controller is idle again.
	OutcomeFailed
)

// Errors returned by the controller.
var (
	// ErrJobActive rejects a submission while another job is in flight.
	ErrJobActive = errors.New("a query is already being processed")

	// ErrJobFailed reports a job the backend marked failed.
	ErrJobFailed = errors.New("the backend failed to process the query")
)

// Snapshot is a point-in-time copy of the controller's state, safe to
// render from.
type Snapshot struct {
	Phase         Phase
	JobID         string
	QueuePosition int
	EstimatedWait float64
}

// Controller drives one job at a time from submission to result.
// Methods are safe for concurrent use; the UI loop and its command
// goroutines share one instance.
type Controller struct {
	client   *api.Client
	userID   string
	priority string

	mu       sync.Mutex
	phase    Phase
	jobID    string
	queuePos int
	estWait  float64
}

// NewController creates an idle controller for the given user.
func NewController(client *api.Client, userID string) *Controller {
	return &Controller{
		client:   client,
		userID:   userID,
		priority: "normal",
	}
}

// WithPriority sets the priority sent with every submission ("low",
// "normal", "high").
func (c *Controller) WithPriority(priority string) *Controller {
	if priority != "" {
		c.priority = priority
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Phase:         c.phase,
		JobID:         c.jobID,
		QueuePosition: c.queuePos,
		EstimatedWait: c.estWait,
	}
}

// Active reports whether a job is in flight. Streamed chunks are only
// applied while a job is active.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase != PhaseIdle
}

// Submit sends a query as a new job. Rejected with ErrJobActive while
// another job is in flight; the previous job must finish, fail or be
// cancelled first. On success the controller tracks the new job and
// the returned handle carries the initial queue position.
func (c *Controller) Submit(ctx context.Context, query, sessionID string) (*api.JobHandle, error) {
	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return nil, ErrJobActive
	}
	c.phase = PhaseSubmitting
	c.mu.Unlock()

	handle, err := c.client.SubmitChatJob(ctx, query, c.userID, sessionID, c.priority)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.reset()
		return nil, err
	}

	c.jobID = handle.JobID
	c.queuePos = handle.QueuePosition
	c.estWait = handle.EstimatedWait
	if handle.QueuePosition > 0 {
		c.phase = PhaseQueued
	} else {
		c.phase = PhaseRunning
	}
	return handle, nil
}

// HandleEvent folds a push event into the controller's state and tells
// the caller what to do next. Events naming a job other than the
// current one are dropped.
func (c *Controller) HandleEvent(ev push.Event) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev := ev.(type) {
	case push.JobStatusEvent:
		if ev.JobID == "" || ev.JobID != c.jobID {
			return OutcomeNone
		}
		switch ev.Status {
		case api.JobRunning:
			c.phase = PhaseRunning
			c.queuePos = 0
			return OutcomePositionChanged
		case api.JobCompleted:
			c.phase = PhaseFetching
			return OutcomeCompleted
		case api.JobFailed:
			c.reset()
			return OutcomeFailed
		default:
			return OutcomeNone
		}

	case push.QueuePositionEvent:
		if ev.JobID == "" || ev.JobID != c.jobID {
			return OutcomeNone
		}
		c.queuePos = ev.Position
		c.estWait = ev.EstimatedWait
		if ev.Position > 0 {
			c.phase = PhaseQueued
		} else {
			c.phase = PhaseRunning
		}
		return OutcomePositionChanged

	default:
		return OutcomeNone
	}
}

// FetchResult retrieves the completed job's answer. The job id is
// re-checked against the current job after the fetch returns: if the
// user cancelled or started over while the request was in flight, the
// result is discarded and (nil, nil) is returned.
func (c *Controller) FetchResult(ctx context.Context, jobID string) (*api.JobResult, error) {
	record, err := c.client.GetJobStatus(ctx, jobID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jobID != jobID {
		// Superseded while the fetch was in flight.
		return nil, nil
	}
	if err != nil {
		c.reset()
		return nil, fmt.Errorf("failed to retrieve response: %w", err)
	}

	switch {
	case record.Status == api.JobCompleted && record.Result != nil:
		c.reset()
		return record.Result, nil
	case record.Status == api.JobFailed:
		c.reset()
		return nil, ErrJobFailed
	default:
		// Completed event arrived but the record is not settled yet.
		// Stay on the job; the caller may refresh.
		return nil, nil
	}
}

// Refresh polls the current job's status over HTTP. It bridges the gap
// when a terminal event was lost to a connection drop: a terminal
// answer is folded in exactly as the matching push event would be.
func (c *Controller) Refresh(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	jobID := c.jobID
	phase := c.phase
	c.mu.Unlock()

	if jobID == "" || phase == PhaseIdle || phase == PhaseSubmitting {
		return OutcomeNone, nil
	}

	record, err := c.client.GetJobStatus(ctx, jobID)
	if err != nil {
		return OutcomeNone, err
	}

	return c.HandleEvent(push.JobStatusEvent{JobID: record.JobID, Status: record.Status}), nil
}

// Cancel abandons the current job. The backend cancellation is best
// effort; the controller returns to idle regardless so the user is
// never stuck behind a job the server lost.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	jobID := c.jobID
	c.reset()
	c.mu.Unlock()

	if jobID == "" {
		return nil
	}
	return c.client.CancelJob(ctx, jobID)
}

// reset returns the controller to idle. Callers hold the lock.
func (c *Controller) reset() {
	c.phase = PhaseIdle
	c.jobID = ""
	c.queuePos = 0
	c.estWait = 0
}
