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

package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	t.Parallel()
	assert.Equal(t, byte(0), Checksum(nil))
	assert.Equal(t, byte(0x06), Checksum([]byte{0x01, 0x02, 0x03}))
	// Sum wraps at 256.
	assert.Equal(t, byte(0xFE), Checksum([]byte{0xFF, 0xFF}))
}

func TestBuildKnownFrame(t *testing.T) {
	t.Parallel()
	// GetFirmwareVersion: the canonical example from the PN532 user manual.
	raw, err := Build(0x02, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}, raw)
}

func TestBuildParseProperties(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cmd  byte
		args []byte
	}{
		{"no args", 0x02, nil},
		{"sam configuration", 0x14, []byte{0x01, 0x14, 0x01}},
		{"max payload", 0x40, bytes.Repeat([]byte{0xA5}, MaxPayload-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw, err := Build(tt.cmd, tt.args)
			require.NoError(t, err)

			// Frames verify against their own checksums: flip the direction
			// byte to the response value and reparse.
			raw[5] = Pn532ToHost
			body := raw[5 : len(raw)-2]
			raw[len(raw)-2] = ^Checksum(body) + 1

			payload, err := Parse(raw)
			require.NoError(t, err)
			require.NotEmpty(t, payload)
			assert.Equal(t, tt.cmd, payload[0])
			assert.Equal(t, tt.args, payload[1:len(payload)])
		})
	}
}

func TestBuildRejectsOversizedPayload(t *testing.T) {
	t.Parallel()
	_, err := Build(0x40, bytes.Repeat([]byte{0x00}, MaxPayload))
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"empty", nil, ErrCorrupted},
		{"no start code", []byte{0x01, 0x02, 0x03}, ErrCorrupted},
		{"truncated length", []byte{0x00, 0xFF}, ErrCorrupted},
		{"bad length checksum", []byte{0x00, 0xFF, 0x02, 0x00, 0xD5, 0x03, 0x28, 0x00}, ErrCorrupted},
		{"truncated body", []byte{0x00, 0xFF, 0x10, 0xF0, 0xD5, 0x03}, ErrCorrupted},
		{"bad data checksum", []byte{0x00, 0xFF, 0x02, 0xFE, 0xD5, 0x03, 0xFF, 0x00}, ErrCorrupted},
		{"wrong direction", []byte{0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x03, 0x29, 0x00}, ErrCorrupted},
		{"chip error frame", []byte{0x00, 0xFF, 0x02, 0xFE, 0x7F, 0x81, 0x00, 0x00}, ErrChip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIsAck(t *testing.T) {
	t.Parallel()
	assert.True(t, IsAck([]byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}))
	assert.True(t, IsAck(append(append([]byte{}, AckFrame...), 0xAA)))
	assert.False(t, IsAck([]byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}))
	assert.False(t, IsAck([]byte{0x00, 0x00}))
}

func FuzzParse(f *testing.F) {
	f.Add([]byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD5, 0x03, 0x28, 0x00})
	f.Add([]byte{})
	f.Add([]byte{0x00, 0xFF})
	f.Fuzz(func(_ *testing.T, data []byte) {
		// Must never panic on hostile input.
		_, _ = Parse(data)
	})
}
