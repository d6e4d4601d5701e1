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
	"sync"
	"testing"

	"github.com/ZaparooProject/go-emrtd/sessionlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger captures events for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	events []sessionlog.Event
}

func (r *recordingLogger) Log(event sessionlog.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingLogger) byCategory(cat sessionlog.Category) []sessionlog.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sessionlog.Event
	for _, ev := range r.events {
		if ev.Category == cat {
			out = append(out, ev)
		}
	}
	return out
}

func TestPendingResultFirstResolutionWins(t *testing.T) {
	t.Parallel()
	logger := &recordingLogger{}
	p := newPendingResult("a1", logger)

	failure := newSessionError(CodeTimeOut, ErrReaderTimeout)
	require.True(t, p.fail(failure))
	assert.False(t, p.succeed(&SecuredChannel{}), "second resolution must be dropped")

	out := p.wait()
	require.NotNil(t, out.Err)
	assert.Equal(t, CodeTimeOut, out.Err.Code)
	assert.Nil(t, out.Channel)

	guards := logger.byCategory(sessionlog.CategoryGuard)
	require.Len(t, guards, 1)
	assert.Contains(t, guards[0].Detail, "duplicate resolution")
}

func TestPendingResultSuccess(t *testing.T) {
	t.Parallel()
	p := newPendingResult("a1", sessionlog.NoopLogger{})
	ch := &SecuredChannel{}

	assert.False(t, p.isResolved())
	require.True(t, p.succeed(ch))
	assert.True(t, p.isResolved())

	out := p.wait()
	assert.Same(t, ch, out.Channel)
	assert.Nil(t, out.Err)
}

func TestPendingResultConcurrentResolvers(t *testing.T) {
	t.Parallel()
	logger := &recordingLogger{}
	p := newPendingResult("a1", logger)

	const resolvers = 16
	wins := make(chan bool, resolvers)
	var wg sync.WaitGroup
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- p.fail(newSessionError(CodeUnexpected, nil))
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one resolver wins")
	assert.Len(t, logger.byCategory(sessionlog.CategoryGuard), resolvers-1)

	// The outcome channel holds exactly the winner's value.
	out := p.wait()
	require.NotNil(t, out.Err)
}
