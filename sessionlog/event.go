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

package sessionlog

import "time"

// Event is one session observability record. CBOR encoding uses integer keys
// for compactness in file trails.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// AttemptID identifies the authentication attempt.
	AttemptID string `cbor:"2,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"3,keyasint"`

	// FromState/ToState are set for state transitions.
	FromState string `cbor:"4,keyasint,omitempty"`
	ToState   string `cbor:"5,keyasint,omitempty"`

	// Code is the failure classification for failure events.
	Code string `cbor:"6,keyasint,omitempty"`

	// Detail carries the error text, prompt text or guard description.
	Detail string `cbor:"7,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState is a state machine transition.
	CategoryState Category = 0
	// CategoryFailure is a classified attempt or channel failure.
	CategoryFailure Category = 1
	// CategoryPrompt is a user-facing progress message update.
	CategoryPrompt Category = 2
	// CategoryGuard is a prevented programming error, e.g. a second
	// resolution of a pending result.
	CategoryGuard Category = 3
	// CategoryCommand is a command/response exchange on the secured channel.
	CategoryCommand Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryFailure:
		return "FAILURE"
	case CategoryPrompt:
		return "PROMPT"
	case CategoryGuard:
		return "GUARD"
	case CategoryCommand:
		return "COMMAND"
	default:
		return "UNKNOWN"
	}
}

// StateChange builds a transition event.
func StateChange(attemptID, from, to string) Event {
	return Event{
		Timestamp: time.Now(),
		AttemptID: attemptID,
		Category:  CategoryState,
		FromState: from,
		ToState:   to,
	}
}

// Failure builds a failure event.
func Failure(attemptID, code, detail string) Event {
	return Event{
		Timestamp: time.Now(),
		AttemptID: attemptID,
		Category:  CategoryFailure,
		Code:      code,
		Detail:    detail,
	}
}

// Prompt builds a progress message event.
func Prompt(attemptID, text string) Event {
	return Event{
		Timestamp: time.Now(),
		AttemptID: attemptID,
		Category:  CategoryPrompt,
		Detail:    text,
	}
}

// Guard builds a prevented-programming-error event.
func Guard(attemptID, detail string) Event {
	return Event{
		Timestamp: time.Now(),
		AttemptID: attemptID,
		Category:  CategoryGuard,
		Detail:    detail,
	}
}

// Command builds a command exchange event.
func Command(attemptID, detail string) Event {
	return Event{
		Timestamp: time.Now(),
		AttemptID: attemptID,
		Category:  CategoryCommand,
		Detail:    detail,
	}
}
