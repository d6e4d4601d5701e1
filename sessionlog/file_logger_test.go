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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoggerRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger, err := NewFileLogger(&buf)
	require.NoError(t, err)

	logger.Log(StateChange("a1", "Idle", "Discovering"))
	logger.Log(Failure("a1", "TimeOut", "reader gave up"))
	logger.Log(Prompt("a1", "Hold still"))

	events, err := NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, CategoryState, events[0].Category)
	assert.Equal(t, "Idle", events[0].FromState)
	assert.Equal(t, "Discovering", events[0].ToState)

	assert.Equal(t, CategoryFailure, events[1].Category)
	assert.Equal(t, "TimeOut", events[1].Code)
	assert.Equal(t, "reader gave up", events[1].Detail)

	assert.Equal(t, CategoryPrompt, events[2].Category)
	assert.Equal(t, "a1", events[2].AttemptID)
	assert.False(t, events[2].Timestamp.IsZero())
}

func TestReaderToleratesTruncatedTail(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger, err := NewFileLogger(&buf)
	require.NoError(t, err)

	logger.Log(Guard("a1", "duplicate resolution dropped"))
	logger.Log(Command("a1", "SELECT -> 9000"))

	// Chop the last record mid-payload, as a crash would.
	data := buf.Bytes()
	events, err := NewReader(bytes.NewReader(data[:len(data)-3])).ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, CategoryGuard, events[0].Category)
}

func TestReaderRejectsOversizedRecord(t *testing.T) {
	t.Parallel()
	raw := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00}
	_, err := NewReader(bytes.NewReader(raw)).Next()
	assert.Error(t, err)
}

func TestMultiLoggerFansOut(t *testing.T) {
	t.Parallel()
	var a, b bytes.Buffer
	la, err := NewFileLogger(&a)
	require.NoError(t, err)
	lb, err := NewFileLogger(&b)
	require.NoError(t, err)

	MultiLogger{la, lb, NoopLogger{}}.Log(Prompt("a1", "hi"))
	assert.NotZero(t, a.Len())
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestCategoryString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "STATE", CategoryState.String())
	assert.Equal(t, "GUARD", CategoryGuard.String())
	assert.Equal(t, "UNKNOWN", Category(99).String())
}
