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

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger writes a binary event trail: each event is a CBOR map with
// integer keys, prefixed by a big-endian uint32 length. The format is
// append-friendly and survives truncated tails.
type FileLogger struct {
	w   io.Writer
	enc cbor.EncMode
	mu  sync.Mutex
}

// NewFileLogger wraps a writer with the event trail encoding.
func NewFileLogger(w io.Writer) (*FileLogger, error) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("building CBOR encoder: %w", err)
	}
	return &FileLogger{w: w, enc: enc}, nil
}

// Log implements Logger. Write failures are swallowed; an observability sink
// must not take the session down.
func (f *FileLogger) Log(event Event) {
	payload, err := f.enc.Marshal(event)
	if err != nil {
		return
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.w.Write(prefix[:]); err != nil {
		return
	}
	_, _ = f.w.Write(payload)
}

var _ Logger = (*FileLogger)(nil)

// maxEventSize bounds a single decoded record so a corrupt length prefix
// cannot allocate arbitrarily.
const maxEventSize = 1 << 20

// Reader decodes an event trail written by FileLogger.
type Reader struct {
	r io.Reader
}

// NewReader wraps a reader positioned at the start of a trail.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next returns the next event. io.EOF signals a clean end of trail; a
// truncated record returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (Event, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r.r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, io.EOF
		}
		return Event{}, io.ErrUnexpectedEOF
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size > maxEventSize {
		return Event{}, fmt.Errorf("event record of %d bytes exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Event{}, io.ErrUnexpectedEOF
	}
	var event Event
	if err := cbor.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("decoding event record: %w", err)
	}
	return event, nil
}

// ReadAll decodes the remaining events, tolerating a truncated tail.
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}
