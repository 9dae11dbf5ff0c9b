// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package push maintains the WebSocket channel that carries server
// events: job status transitions, queue position updates and streamed
// answer chunks.
//
// The manager owns the connection lifecycle. It dials, reads until the
// connection drops, waits a fixed interval and dials again, forever,
// until Stop is called. Consumers see a single ordered stream of events
// on Events(); connectivity changes are delivered inline as
// ConnStateEvent values so one receive loop observes everything in
// order.
package push

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State describes channel connectivity.
type State int

const (
	// StateConnecting means no connection is up; the manager is dialing
	// or waiting out the reconnect interval.
	StateConnecting State = iota

	// StateOpen means the channel is connected and delivering events.
	StateOpen

	// StateClosed means Stop was called; the channel will not reconnect.
	StateClosed
)

// String returns the state's display name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ReconnectDelay is the fixed wait between connection attempts. The
// interval is deliberately constant: the backend treats each user's
// channel as cheap, and a flat retry keeps reconnection prompt after
// short server restarts.
const ReconnectDelay = 3 * time.Second

// eventBuffer bounds the event queue. The consumer is a UI loop that
// drains promptly; the buffer only absorbs bursts.
const eventBuffer = 256

// Manager owns one push channel and its reconnect loop.
type Manager struct {
	url     string
	dialer  *websocket.Dialer
	delay   time.Duration
	events  chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	stopped sync.Once
	done    chan struct{}
}

// NewManager creates a manager for the given ws/wss URL. Run must be
// called to start the channel.
func NewManager(url string) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		url:    url,
		dialer: websocket.DefaultDialer,
		delay:  ReconnectDelay,
		events: make(chan Event, eventBuffer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// WithReconnectDelay overrides the reconnect interval.
func (m *Manager) WithReconnectDelay(d time.Duration) *Manager {
	m.delay = d
	return m
}

// Events returns the ordered event stream. The channel is closed after
// Stop once the reconnect loop has fully wound down.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Run drives the connect/read/reconnect loop until Stop is called.
// It is meant to run in its own goroutine.
func (m *Manager) Run() {
	defer close(m.done)
	defer close(m.events)

	for {
		m.emit(ConnStateEvent{State: StateConnecting})

		conn, _, err := m.dialer.DialContext(m.ctx, m.url, nil)
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			log.Printf("push: dial %s failed: %v", m.url, err)
			if !m.sleep() {
				return
			}
			continue
		}

		m.emit(ConnStateEvent{State: StateOpen})
		m.readLoop(conn)

		if m.ctx.Err() != nil {
			return
		}
		log.Printf("push: connection lost, reconnecting in %v", m.delay)
		if !m.sleep() {
			return
		}
	}
}

// readLoop consumes frames until the connection fails. The connection
// is always closed on return.
func (m *Manager) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	// Unblock ReadMessage when Stop is called.
	readerDone := make(chan struct{})
	defer close(readerDone)
	go func() {
		select {
		case <-m.ctx.Done():
			conn.Close()
		case <-readerDone:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		event, err := decodeFrame(raw)
		if err != nil {
			// A garbled frame is the server's bug, not a reason to
			// drop the connection.
			log.Printf("push: %v", err)
			continue
		}
		if event == nil {
			continue
		}
		m.emit(event)
	}
}

// emit queues an event, dropping it if the consumer has stalled past
// the buffer. Ordering among delivered events is preserved.
func (m *Manager) emit(event Event) {
	select {
	case m.events <- event:
	default:
		log.Printf("push: event buffer full, dropping %T", event)
	}
}

// sleep waits out the reconnect interval. Returns false when Stop was
// called during the wait.
func (m *Manager) sleep() bool {
	select {
	case <-m.ctx.Done():
		return false
	case <-time.After(m.delay):
		return true
	}
}

// Stop tears the channel down and stops reconnecting. Safe to call
// more than once; blocks until the loop has exited. Stop must not be
// called before Run has been started.
func (m *Manager) Stop() {
	m.stopped.Do(func() {
		m.cancel()
	})
	<-m.done
}
