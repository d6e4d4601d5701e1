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
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCard answers SELECT and READ BINARY against a fixed file content.
type scriptedCard struct {
	content   []byte
	selectSW  StatusWord
	readCalls int
}

func (c *scriptedCard) transceive(_ context.Context, request []byte) ([]byte, error) {
	cmd := Instruction(request[1])
	switch cmd {
	case InsSelect:
		sw := c.selectSW
		if sw == 0 {
			sw = SWNoError
		}
		return []byte{sw.SW1(), sw.SW2()}, nil
	case InsReadBinary:
		c.readCalls++
		offset := int(request[2])<<8 | int(request[3])
		le := int(request[4])
		if le == 0 {
			le = 256
		}
		if offset >= len(c.content) {
			return []byte{SWEOFReached.SW1(), SWEOFReached.SW2()}, nil
		}
		end := offset + le
		if end > len(c.content) {
			end = len(c.content)
		}
		resp := append([]byte(nil), c.content[offset:end]...)
		return append(resp, 0x90, 0x00), nil
	default:
		return []byte{0x6D, 0x00}, nil
	}
}

func TestReadCardAccessFileSmall(t *testing.T) {
	t.Parallel()
	card := &scriptedCard{content: cardAccessECDHGM}
	raw, err := ReadCardAccessFile(context.Background(), card.transceive)
	require.NoError(t, err)
	assert.Equal(t, cardAccessECDHGM, raw)
	assert.Equal(t, 1, card.readCalls, "a short file reads in one chunk")
}

func TestReadCardAccessFileChunked(t *testing.T) {
	t.Parallel()
	content := bytes.Repeat([]byte{0xC5}, DefaultMaxReadAmount*2+17)
	card := &scriptedCard{content: content}

	raw, err := ReadCardAccessFile(context.Background(), card.transceive)
	require.NoError(t, err)
	assert.Equal(t, content, raw)
	assert.Equal(t, 3, card.readCalls)
}

func TestReadCardAccessFileSelectRejected(t *testing.T) {
	t.Parallel()
	card := &scriptedCard{content: cardAccessECDHGM, selectSW: SWFileNotFound}
	_, err := ReadCardAccessFile(context.Background(), card.transceive)
	assert.ErrorIs(t, err, ErrCardAccessInvalid)
}

func TestReadCardAccessFileFirstReadRejected(t *testing.T) {
	t.Parallel()
	transceive := func(_ context.Context, request []byte) ([]byte, error) {
		if Instruction(request[1]) == InsSelect {
			return []byte{0x90, 0x00}, nil
		}
		return []byte{0x69, 0x82}, nil
	}
	_, err := ReadCardAccessFile(context.Background(), transceive)
	assert.ErrorIs(t, err, ErrCardAccessInvalid)
}

func TestReadCardAccessFileWrongLengthRetry(t *testing.T) {
	t.Parallel()
	content := []byte{0x31, 0x02, 0x30, 0x00}
	calls := 0
	transceive := func(_ context.Context, request []byte) ([]byte, error) {
		if Instruction(request[1]) == InsSelect {
			return []byte{0x90, 0x00}, nil
		}
		calls++
		if calls == 1 {
			// Card insists on the exact file length.
			return []byte{0x6C, byte(len(content))}, nil
		}
		return append(append([]byte(nil), content...), 0x90, 0x00), nil
	}

	raw, err := ReadCardAccessFile(context.Background(), transceive)
	require.NoError(t, err)
	assert.Equal(t, content, raw)
	assert.Equal(t, 2, calls)
}

func TestReadCardAccessFileTransportError(t *testing.T) {
	t.Parallel()
	cause := errors.New("field collapsed")
	transceive := func(_ context.Context, _ []byte) ([]byte, error) {
		return nil, cause
	}
	_, err := ReadCardAccessFile(context.Background(), transceive)
	assert.ErrorIs(t, err, cause)
}
