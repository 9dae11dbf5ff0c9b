// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package push

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/legalx-tui/internal/api"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeServer upgrades each connection and hands it to serve. Each
// accepted connection runs serve once; when serve returns the
// connection is closed.
func fakeServer(t *testing.T, serve func(conn *websocket.Conn, attempt int)) *httptest.Server {
	t.Helper()
	attempt := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		attempt++
		serve(conn, attempt)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// recvEvent pulls the next event with a deadline so a broken manager
// fails the test instead of hanging it.
func recvEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func expectConnState(t *testing.T, events <-chan Event, want State) {
	t.Helper()
	ev := recvEvent(t, events)
	cs, ok := ev.(ConnStateEvent)
	if !ok {
		t.Fatalf("expected ConnStateEvent, got %T", ev)
	}
	if cs.State != want {
		t.Fatalf("expected state %v, got %v", want, cs.State)
	}
}

func TestManagerDeliversEventsInOrder(t *testing.T) {
	frames := []string{
		`{"event":"queue_position_update","data":{"job_id":"j1","position":3,"estimated_wait":12.5}}`,
		`{"event":"job_status_update","data":{"job_id":"j1","status":"running"}}`,
		`{"event":"chat_response_chunk","data":{"chunk":"The lease ","is_final":false}}`,
		`{"event":"chat_response_chunk","data":{"chunk":"terminates.","is_final":true}}`,
		`{"event":"job_status_update","data":{"job_id":"j1","status":"completed"}}`,
	}
	done := make(chan struct{})
	srv := fakeServer(t, func(conn *websocket.Conn, _ int) {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				t.Errorf("write failed: %v", err)
				return
			}
		}
		<-done
	})
	defer srv.Close()
	defer close(done)

	m := NewManager(wsURL(srv))
	go m.Run()
	defer m.Stop()

	events := m.Events()
	expectConnState(t, events, StateConnecting)
	expectConnState(t, events, StateOpen)

	if ev := recvEvent(t, events).(QueuePositionEvent); ev.JobID != "j1" || ev.Position != 3 || ev.EstimatedWait != 12.5 {
		t.Errorf("unexpected queue event: %+v", ev)
	}
	if ev := recvEvent(t, events).(JobStatusEvent); ev.Status != api.JobRunning {
		t.Errorf("unexpected status event: %+v", ev)
	}
	if ev := recvEvent(t, events).(ChunkEvent); ev.Chunk != "The lease " || ev.IsFinal {
		t.Errorf("unexpected chunk event: %+v", ev)
	}
	if ev := recvEvent(t, events).(ChunkEvent); ev.Chunk != "terminates." || !ev.IsFinal {
		t.Errorf("unexpected chunk event: %+v", ev)
	}
	if ev := recvEvent(t, events).(JobStatusEvent); ev.Status != api.JobCompleted {
		t.Errorf("unexpected status event: %+v", ev)
	}
}

func TestManagerReconnectsAfterDrop(t *testing.T) {
	done := make(chan struct{})
	srv := fakeServer(t, func(conn *websocket.Conn, attempt int) {
		if attempt == 1 {
			// Drop the first connection immediately.
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"job_status_update","data":{"job_id":"j2","status":"queued"}}`))
		<-done
	})
	defer srv.Close()
	defer close(done)

	m := NewManager(wsURL(srv)).WithReconnectDelay(10 * time.Millisecond)
	go m.Run()
	defer m.Stop()

	events := m.Events()
	expectConnState(t, events, StateConnecting)
	expectConnState(t, events, StateOpen)

	// Drop, then reconnect.
	expectConnState(t, events, StateConnecting)
	expectConnState(t, events, StateOpen)

	if ev := recvEvent(t, events).(JobStatusEvent); ev.JobID != "j2" || ev.Status != api.JobQueued {
		t.Errorf("unexpected event after reconnect: %+v", ev)
	}
}

func TestManagerSkipsUnknownAndMalformedFrames(t *testing.T) {
	done := make(chan struct{})
	srv := fakeServer(t, func(conn *websocket.Conn, _ int) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"server_gossip","data":{}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"job_status_update","data":{"job_id":"j3","status":"failed"}}`))
		<-done
	})
	defer srv.Close()
	defer close(done)

	m := NewManager(wsURL(srv))
	go m.Run()
	defer m.Stop()

	events := m.Events()
	expectConnState(t, events, StateConnecting)
	expectConnState(t, events, StateOpen)

	// Both bad frames must be dropped without killing the connection.
	ev := recvEvent(t, events)
	status, ok := ev.(JobStatusEvent)
	if !ok {
		t.Fatalf("expected JobStatusEvent, got %T", ev)
	}
	if status.JobID != "j3" || status.Status != api.JobFailed {
		t.Errorf("unexpected event: %+v", status)
	}
}

func TestManagerStopClosesEventChannel(t *testing.T) {
	done := make(chan struct{})
	srv := fakeServer(t, func(conn *websocket.Conn, _ int) {
		<-done
	})
	defer srv.Close()
	defer close(done)

	m := NewManager(wsURL(srv))
	go m.Run()

	events := m.Events()
	expectConnState(t, events, StateConnecting)
	expectConnState(t, events, StateOpen)

	m.Stop()

	// Drain: the channel must close promptly after Stop.
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("event channel not closed after Stop")
		}
	}
}

func TestManagerKeepsDialingWhileServerDown(t *testing.T) {
	// Point at a port nothing listens on; the manager must keep
	// emitting connecting states rather than give up.
	m := NewManager("ws://127.0.0.1:1").WithReconnectDelay(5 * time.Millisecond)
	go m.Run()
	defer m.Stop()

	events := m.Events()
	for i := 0; i < 3; i++ {
		expectConnState(t, events, StateConnecting)
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Event
		wantErr bool
	}{
		{
			name: "status update",
			raw:  `{"event":"job_status_update","data":{"job_id":"j1","status":"completed"}}`,
			want: JobStatusEvent{JobID: "j1", Status: api.JobCompleted},
		},
		{
			name: "queue position",
			raw:  `{"event":"queue_position_update","data":{"job_id":"j1","position":7,"estimated_wait":30}}`,
			want: QueuePositionEvent{JobID: "j1", Position: 7, EstimatedWait: 30},
		},
		{
			name: "chunk",
			raw:  `{"event":"chat_response_chunk","data":{"chunk":"hi","is_final":false}}`,
			want: ChunkEvent{Chunk: "hi"},
		},
		{
			name: "unknown dropped",
			raw:  `{"event":"mystery","data":{}}`,
			want: nil,
		},
		{
			name:    "malformed envelope",
			raw:     `{{{`,
			wantErr: true,
		},
		{
			name:    "malformed payload",
			raw:     `{"event":"queue_position_update","data":"nope"}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeFrame([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeFrame failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("decodeFrame = %#v, want %#v", got, tt.want)
			}
		})
	}
}
