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
	"errors"
	"sync"
	"time"
)

// MockReaderSession provides a scripted ReaderSession for testing. It records
// prompts, transceived frames and the final invalidation message, supports
// per-instruction response and error injection, and lets the test drive the
// delegate callbacks directly via DeliverTags and InvalidateExternally.
type MockReaderSession struct {
	responses  map[Instruction][]byte
	errorMap   map[Instruction]error
	callCount  map[Instruction]int
	delegate   SessionDelegate
	beginErr   error
	connectErr error
	readErr    error
	cardAccess []byte
	delay      time.Duration

	prompts            []string
	transceived        [][]byte
	invalidatedMessage string
	mu                 sync.RWMutex
	began              bool
	connected          bool
	invalidated        bool
}

// NewMockReaderSession creates a mock reader session.
func NewMockReaderSession() *MockReaderSession {
	return &MockReaderSession{
		responses: make(map[Instruction][]byte),
		errorMap:  make(map[Instruction]error),
		callCount: make(map[Instruction]int),
	}
}

// Begin implements ReaderSession.
func (m *MockReaderSession) Begin(delegate SessionDelegate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beginErr != nil {
		return m.beginErr
	}
	if m.began {
		return errors.New("mock: Begin called twice")
	}
	m.began = true
	m.delegate = delegate
	return nil
}

// ConnectTag implements ReaderSession.
func (m *MockReaderSession) ConnectTag(ctx context.Context, _ Tag) error {
	if err := m.sleep(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

// ReadCardAccess implements ReaderSession.
func (m *MockReaderSession) ReadCardAccess(ctx context.Context) ([]byte, error) {
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.cardAccess, nil
}

// Transceive implements ReaderSession. Responses and errors are keyed by the
// INS byte of the request frame.
func (m *MockReaderSession) Transceive(ctx context.Context, request []byte) ([]byte, error) {
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	if len(request) < 4 {
		return nil, ErrInvalidCommand
	}
	ins := Instruction(request[1])

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return nil, ErrReaderSessionEnded
	}
	m.callCount[ins]++
	m.transceived = append(m.transceived, append([]byte(nil), request...))

	if err, exists := m.errorMap[ins]; exists {
		return nil, err
	}
	if response, exists := m.responses[ins]; exists {
		return response, nil
	}
	// Unknown commands succeed with an empty body.
	return []byte{0x90, 0x00}, nil
}

// UpdatePrompt implements ReaderSession.
func (m *MockReaderSession) UpdatePrompt(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, message)
}

// Invalidate implements ReaderSession. The delegate callback is delivered
// synchronously, like a backend whose teardown completes inline.
func (m *MockReaderSession) Invalidate(message string) {
	m.mu.Lock()
	if m.invalidated {
		m.mu.Unlock()
		return
	}
	m.invalidated = true
	m.invalidatedMessage = message
	delegate := m.delegate
	m.mu.Unlock()

	if delegate != nil {
		delegate.SessionInvalidated(ErrReaderSessionEnded)
	}
}

// HasDelegate reports whether Begin has registered a delegate yet.
func (m *MockReaderSession) HasDelegate() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.delegate != nil
}

// DeliverTags pushes one discovery pass to the delegate.
func (m *MockReaderSession) DeliverTags(tags []Tag) {
	m.mu.RLock()
	delegate := m.delegate
	m.mu.RUnlock()
	if delegate != nil {
		delegate.TagsDetected(tags)
	}
}

// InvalidateExternally simulates the OS or hardware ending the session.
func (m *MockReaderSession) InvalidateExternally(err error) {
	m.mu.Lock()
	m.invalidated = true
	delegate := m.delegate
	m.mu.Unlock()
	if delegate != nil {
		delegate.SessionInvalidated(err)
	}
}

// SetBeginError makes Begin fail.
func (m *MockReaderSession) SetBeginError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginErr = err
}

// SetConnectError makes ConnectTag fail.
func (m *MockReaderSession) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SetCardAccess configures the EF.CardAccess content, or a read error.
func (m *MockReaderSession) SetCardAccess(raw []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cardAccess = raw
	m.readErr = err
}

// SetResponse configures the response for an instruction.
func (m *MockReaderSession) SetResponse(ins Instruction, response []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[ins] = response
}

// SetError configures an error for an instruction.
func (m *MockReaderSession) SetError(ins Instruction, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMap[ins] = err
}

// SetDelay makes hardware calls take this long.
func (m *MockReaderSession) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
}

// GetCallCount returns how many times an instruction was transceived.
func (m *MockReaderSession) GetCallCount(ins Instruction) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount[ins]
}

// Prompts returns the recorded prompt messages.
func (m *MockReaderSession) Prompts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.prompts...)
}

// Transceived returns the recorded request frames.
func (m *MockReaderSession) Transceived() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.transceived))
	copy(out, m.transceived)
	return out
}

// InvalidatedMessage returns the final message passed to Invalidate.
func (m *MockReaderSession) InvalidatedMessage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invalidatedMessage
}

// IsInvalidated reports whether the session has ended.
func (m *MockReaderSession) IsInvalidated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invalidated
}

func (m *MockReaderSession) sleep(ctx context.Context) error {
	m.mu.RLock()
	delay := m.delay
	m.mu.RUnlock()
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ ReaderSession = (*MockReaderSession)(nil)
