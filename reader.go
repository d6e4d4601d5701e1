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

import (
	"context"
	"encoding/hex"
)

// TagFamily is the contactless protocol family a detected tag speaks.
type TagFamily string

const (
	// FamilyISO14443 is ISO/IEC 14443-4 (Type A/B), the family identity
	// documents use.
	FamilyISO14443 TagFamily = "iso14443-4"
	// FamilyFeliCa is JIS X 6319-4.
	FamilyFeliCa TagFamily = "felica"
	// FamilyISO15693 is vicinity cards.
	FamilyISO15693 TagFamily = "iso15693"
	// FamilyUnknown is anything the backend could not classify.
	FamilyUnknown TagFamily = "unknown"
)

// Tag is one tag reported by a discovery callback.
type Tag struct {
	UID    []byte
	Family TagFamily
}

// UIDString returns the UID as lowercase hex.
func (t Tag) UIDString() string {
	return hex.EncodeToString(t.UID)
}

// SessionDelegate receives hardware session events. Callbacks may arrive on
// any goroutine, possibly several times per session (e.g. zero tags, then one
// tag); implementations must tolerate re-entrancy from the reader backend.
type SessionDelegate interface {
	// TagsDetected reports the set of tags visible in one discovery pass.
	TagsDetected(tags []Tag)

	// SessionInvalidated reports that the hardware session ended. The error
	// wraps one of the reader-level sentinels (ErrReaderCanceled,
	// ErrReaderTimeout, ErrTagConnectionLost, ErrReaderSessionEnded).
	SessionInvalidated(err error)
}

// ReaderSession is the low-level hardware transceive primitive. One value
// drives at most one authentication attempt; Begin may be called once.
//
// Implementations live under reader/ (PC/SC, PN532 over UART) or are mocked
// in tests.
type ReaderSession interface {
	// Begin starts tag discovery and registers the delegate. It returns a
	// wrapped ErrReaderUnavailable when the discovery hardware cannot start.
	Begin(delegate SessionDelegate) error

	// ConnectTag establishes the card link to a previously reported tag.
	ConnectTag(ctx context.Context, tag Tag) error

	// ReadCardAccess reads the raw EF.CardAccess content from the connected
	// tag.
	ReadCardAccess(ctx context.Context) ([]byte, error)

	// Transceive sends one raw command frame and returns the raw response.
	Transceive(ctx context.Context, request []byte) ([]byte, error)

	// UpdatePrompt updates the user-facing progress message, where the
	// hardware surface supports one.
	UpdatePrompt(message string)

	// Invalidate ends the hardware session, optionally showing a final
	// message. Backends deliver a SessionInvalidated callback afterwards,
	// exactly as an externally caused invalidation would.
	Invalidate(message string)
}
