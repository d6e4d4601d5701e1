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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStatusWord(t *testing.T) {
	t.Parallel()
	sw := NewStatusWord(0x90, 0x00)
	assert.Equal(t, SWNoError, sw)
	assert.Equal(t, byte(0x90), sw.SW1())
	assert.Equal(t, byte(0x00), sw.SW2())
}

func TestStatusWordClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		sw          StatusWord
		success     bool
		moreData    bool
		wrongLength bool
	}{
		{"no error", SWNoError, true, false, false},
		{"eof warning is not success", SWEOFReached, false, false, false},
		{"file not found", SWFileNotFound, false, false, false},
		{"more data available", NewStatusWord(0x61, 0x1A), false, true, false},
		{"wrong le", NewStatusWord(0x6C, 0x14), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.success, tt.sw.IsSuccess())
			assert.Equal(t, tt.moreData, tt.sw.HasMoreData())
			assert.Equal(t, tt.wrongLength, tt.sw.IsWrongLength())
		})
	}
}

func TestStatusWordString(t *testing.T) {
	t.Parallel()
	assert.Contains(t, SWNoError.String(), "9000")
	assert.Contains(t, SWSecurityStatusNotSat.String(), "6982")
	// Unlisted values still render the hex code.
	assert.Contains(t, NewStatusWord(0x12, 0x34).String(), "1234")
}
