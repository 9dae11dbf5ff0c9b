// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the core data structures for the LegalX client:
// transcript messages with citation sources, the append-only Transcript,
// and chat session bookkeeping.
//
// # Key Types
//
//   - Message: one transcript turn (user, assistant, or system), with
//     optional Sources (citations) and FileInfo (upload descriptor)
//   - Transcript: ordered log of turns for one session; owns the
//     streamed-chunk application path
//   - Session: per-session metadata (title, counts) listed in the sidebar
//
// # Streaming Invariant
//
// At most one assistant message is incomplete (Completed == false) at a
// time. Transcript.ApplyChunk appends to that message when it exists and
// creates it otherwise, so chunk events can never produce two in-flight
// turns.
package model
