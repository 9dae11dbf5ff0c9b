// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the main conversation view of the LegalX TUI.
//
// The package follows the Bubble Tea architecture: a single Model holds
// all view state, Update handles incoming tea.Msg values, and View
// renders the current state. Everything that blocks (HTTP calls, waiting
// on the push channel, file watching) runs inside tea.Cmd functions and
// reports back through the message types in messages.go, so the Update
// loop itself never blocks.
//
// The view listens on a single push-channel event stream. Job status
// changes, queue position updates, streamed answer chunks and
// connectivity transitions all arrive in the order the server emitted
// them, which keeps the transcript consistent without any locking in
// the UI layer.
package chat
