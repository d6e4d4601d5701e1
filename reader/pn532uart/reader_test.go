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

package pn532uart

import (
	"testing"
	"time"

	"github.com/ZaparooProject/go-emrtd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTargetsSingleISODEP(t *testing.T) {
	t.Parallel()
	// One target: Tg=1, SENS_RES 0x0004, SEL_RES 0x20 (ISO-DEP), 4-byte UID.
	payload := []byte{0x01, 0x01, 0x00, 0x04, 0x20, 0x04, 0x04, 0xA1, 0xB2, 0xC3}
	tags, err := decodeTargets(payload)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, emrtd.FamilyISO14443, tags[0].Family)
	assert.Equal(t, []byte{0x04, 0xA1, 0xB2, 0xC3}, tags[0].UID)
}

func TestDecodeTargetsTwoTargets(t *testing.T) {
	t.Parallel()
	payload := []byte{
		0x02,
		0x01, 0x00, 0x04, 0x20, 0x04, 0x04, 0xA1, 0xB2, 0xC3,
		0x02, 0x00, 0x44, 0x00, 0x07, 0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66,
	}
	tags, err := decodeTargets(payload)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, emrtd.FamilyISO14443, tags[0].Family)
	// SEL_RES without the ISO-DEP bit is not a document.
	assert.Equal(t, emrtd.FamilyUnknown, tags[1].Family)
	assert.Len(t, tags[1].UID, 7)
}

func TestDecodeTargetsZeroTargets(t *testing.T) {
	t.Parallel()
	tags, err := decodeTargets([]byte{0x00})
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestDecodeTargetsRejectsTruncated(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"entry header cut", []byte{0x01, 0x01, 0x00}},
		{"uid cut", []byte{0x01, 0x01, 0x00, 0x04, 0x20, 0x04, 0x04, 0xA1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := decodeTargets(tt.payload)
			assert.ErrorIs(t, err, emrtd.ErrTransport)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig("/dev/ttyUSB0")
	assert.Equal(t, "/dev/ttyUSB0", cfg.Port)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, 150*time.Millisecond, cfg.PollInterval)
	assert.Zero(t, cfg.Timeout, "polling has no deadline unless asked for")
}

func TestNewFillsZeroConfig(t *testing.T) {
	t.Parallel()
	r := New(Config{Port: "/dev/ttyUSB1"})
	assert.Equal(t, 115200, r.config.BaudRate)
	assert.Equal(t, 150*time.Millisecond, r.config.PollInterval)
	assert.Equal(t, 2*time.Second, r.config.FrameTimeout)
}
