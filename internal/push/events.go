// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package push

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/jeranaias/legalx-tui/internal/api"
)

// Event is a message delivered over the push channel. The union is
// closed: every concrete type lives in this package.
type Event interface {
	pushEvent()
}

// JobStatusEvent announces a job's transition into a new state.
type JobStatusEvent struct {
	JobID  string
	Status api.JobStatus
}

// QueuePositionEvent updates a queued job's position and wait estimate.
type QueuePositionEvent struct {
	JobID         string
	Position      int
	EstimatedWait float64
}

// ChunkEvent carries a fragment of a streamed answer. Chunks do not
// name a job: the server only streams for the job it is running.
type ChunkEvent struct {
	Chunk   string
	IsFinal bool
}

// ConnStateEvent announces a change in channel connectivity.
type ConnStateEvent struct {
	State State
}

func (JobStatusEvent) pushEvent()     {}
func (QueuePositionEvent) pushEvent() {}
func (ChunkEvent) pushEvent()         {}
func (ConnStateEvent) pushEvent()     {}

// frame is the wire envelope: an event name plus a payload whose shape
// depends on the name.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type jobStatusPayload struct {
	JobID  string        `json:"job_id"`
	Status api.JobStatus `json:"status"`
}

type queuePositionPayload struct {
	JobID         string  `json:"job_id"`
	Position      int     `json:"position"`
	EstimatedWait float64 `json:"estimated_wait"`
}

type chunkPayload struct {
	Chunk   string `json:"chunk"`
	IsFinal bool   `json:"is_final"`
}

// decodeFrame parses one wire message. Unknown event names are logged
// and dropped (nil, nil) so a newer server never kills the channel.
func decodeFrame(raw []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("malformed push frame: %w", err)
	}

	switch f.Event {
	case "job_status_update":
		var p jobStatusPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed job_status_update: %w", err)
		}
		return JobStatusEvent{JobID: p.JobID, Status: p.Status}, nil

	case "queue_position_update":
		var p queuePositionPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed queue_position_update: %w", err)
		}
		return QueuePositionEvent{JobID: p.JobID, Position: p.Position, EstimatedWait: p.EstimatedWait}, nil

	case "chat_response_chunk":
		var p chunkPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed chat_response_chunk: %w", err)
		}
		return ChunkEvent{Chunk: p.Chunk, IsFinal: p.IsFinal}, nil

	default:
		log.Printf("push: unknown event %q, dropping", f.Event)
		return nil, nil
	}
}
