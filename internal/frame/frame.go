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

// Package frame encodes and decodes the PN532 host protocol framing:
// preamble, start code, length with checksum, direction byte, payload and
// data checksum.
package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Frame direction bytes.
const (
	HostToPn532 = 0xD4
	Pn532ToHost = 0xD5
)

// Frame markers.
const (
	Preamble   = 0x00
	StartCode1 = 0x00
	StartCode2 = 0xFF
	Postamble  = 0x00
)

// MaxPayload is the largest command payload a normal frame carries
// (length byte covers TFI + payload, capped at 255).
const MaxPayload = 254

// errorTFI marks an application-level error frame from the chip.
const errorTFI = 0x7F

// AckFrame is the flow-control acknowledgement the chip sends before a
// response frame.
var AckFrame = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}

// Framing errors.
var (
	ErrCorrupted = errors.New("corrupted frame")
	ErrTooLong   = errors.New("payload exceeds frame capacity")
	// ErrChip wraps the error code of an application error frame.
	ErrChip = errors.New("chip reported error")
)

// Checksum sums the buffer; the protocol requires sum + checksum == 0 mod 256.
func Checksum(data []byte) byte {
	chk := byte(0)
	for _, b := range data {
		chk += b
	}
	return chk
}

// Build wraps a command byte and its arguments into a normal information
// frame ready to write to the wire.
func Build(cmd byte, args []byte) ([]byte, error) {
	if len(args) > MaxPayload-1 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLong, len(args))
	}

	dataLen := byte(len(args) + 2) // TFI + command
	buf := make([]byte, 0, int(dataLen)+7)
	buf = append(buf, Preamble, StartCode1, StartCode2)
	buf = append(buf, dataLen, ^dataLen+1)
	buf = append(buf, HostToPn532, cmd)
	buf = append(buf, args...)

	chk := Checksum(buf[5:]) // TFI through args
	buf = append(buf, ^chk+1, Postamble)
	return buf, nil
}

// IsAck reports whether the buffer starts with an ACK frame.
func IsAck(buf []byte) bool {
	return len(buf) >= len(AckFrame) && bytes.Equal(buf[:len(AckFrame)], AckFrame)
}

// Parse locates and validates one response frame in buf and returns the
// payload after the direction byte: response code plus data. An application
// error frame surfaces as ErrChip with the chip's error code.
func Parse(buf []byte) ([]byte, error) {
	start := bytes.Index(buf, []byte{StartCode1, StartCode2})
	if start < 0 {
		return nil, fmt.Errorf("%w: no start code", ErrCorrupted)
	}
	off := start + 2

	if off+2 > len(buf) {
		return nil, fmt.Errorf("%w: truncated length field", ErrCorrupted)
	}
	dataLen := int(buf[off])
	lcs := buf[off+1]
	if (byte(dataLen)+lcs)&0xFF != 0 {
		return nil, fmt.Errorf("%w: length checksum", ErrCorrupted)
	}
	off += 2

	if off+dataLen+1 > len(buf) {
		return nil, fmt.Errorf("%w: truncated body", ErrCorrupted)
	}
	body := buf[off : off+dataLen]
	dcs := buf[off+dataLen]
	if (Checksum(body)+dcs)&0xFF != 0 {
		return nil, fmt.Errorf("%w: data checksum", ErrCorrupted)
	}

	if dataLen < 1 {
		return nil, fmt.Errorf("%w: empty body", ErrCorrupted)
	}
	switch body[0] {
	case errorTFI:
		if dataLen < 2 {
			return nil, fmt.Errorf("%w: code missing", ErrChip)
		}
		return nil, fmt.Errorf("%w: code 0x%02X", ErrChip, body[1])
	case Pn532ToHost:
		payload := make([]byte, dataLen-1)
		copy(payload, body[1:])
		return payload, nil
	default:
		return nil, fmt.Errorf("%w: direction byte 0x%02X", ErrCorrupted, body[0])
	}
}
