// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package emrtd

// SessionEvent is the closed set of moments an attempt shows a user-facing
// progress message for. Callers override individual messages through
// MessageSet; every event always resolves to some text.
type SessionEvent int

const (
	// EventWaitingForTag is shown while discovery runs.
	EventWaitingForTag SessionEvent = iota
	// EventConnecting is shown while the card link is established and the
	// access metadata is read.
	EventConnecting
	// EventAuthenticating is shown while the handshake runs.
	EventAuthenticating
	// EventAuthenticated is shown once the secured channel is ready.
	EventAuthenticated
	// EventMultipleTags is shown when more than one tag is presented.
	EventMultipleTags
	// EventAuthenticationFailed is shown when the handshake is rejected.
	EventAuthenticationFailed
	// EventSessionFailed is shown for every other failure.
	EventSessionFailed

	numSessionEvents
)

// String returns the event name.
func (e SessionEvent) String() string {
	switch e {
	case EventWaitingForTag:
		return "WaitingForTag"
	case EventConnecting:
		return "Connecting"
	case EventAuthenticating:
		return "Authenticating"
	case EventAuthenticated:
		return "Authenticated"
	case EventMultipleTags:
		return "MultipleTags"
	case EventAuthenticationFailed:
		return "AuthenticationFailed"
	case EventSessionFailed:
		return "SessionFailed"
	default:
		return "Unknown"
	}
}

var defaultMessages = map[SessionEvent]string{
	EventWaitingForTag:        "Hold your document near the reader.",
	EventConnecting:           "Document found, keep it still.",
	EventAuthenticating:       "Authenticating...",
	EventAuthenticated:        "Authentication successful.",
	EventMultipleTags:         "More than one document detected. Present a single document.",
	EventAuthenticationFailed: "Authentication failed. Check the document details and try again.",
	EventSessionFailed:        "Reading failed. Try again.",
}

// MessageSet maps session events to user-facing text. The zero value uses the
// default wording for every event; entries override individual events, and
// unrecognized events fall back to the defaults.
type MessageSet map[SessionEvent]string

// Message returns the override for ev, or the default wording.
func (m MessageSet) Message(ev SessionEvent) string {
	if text, ok := m[ev]; ok {
		return text
	}
	return defaultMessages[ev]
}
