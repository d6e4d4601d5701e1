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
	"fmt"
)

// Instruction is the INS byte of a command APDU.
type Instruction byte

// Instructions used when driving an identity document (ISO/IEC 7816-4).
const (
	InsSelect      Instruction = 0xA4
	InsReadBinary  Instruction = 0xB0
	InsGetResponse Instruction = 0xC0
)

// String returns the instruction mnemonic, or the hex byte for anything
// unnamed.
func (i Instruction) String() string {
	switch i {
	case InsSelect:
		return "SELECT"
	case InsReadBinary:
		return "READ BINARY"
	case InsGetResponse:
		return "GET RESPONSE"
	default:
		return fmt.Sprintf("INS %02X", byte(i))
	}
}

// Class bytes. Secure-messaging classes are produced by the handshake layer;
// this package only builds plain-class frames.
const (
	ClaPlain byte = 0x00
)

// Le handling. A command's expected response length is encoded on one byte,
// where 0x00 means 256. ExpectAll is the sentinel for "return everything
// available": the secured channel substitutes its configured data amount
// before encoding, so callers must consult SecuredChannel.MaxReadAmount()
// rather than assume a fixed maximum.
const (
	// ExpectNone requests no response body.
	ExpectNone = 0
	// ExpectAll requests all available response data.
	ExpectAll = 256
	// maxShortLc is the largest data field encodable in a short APDU.
	maxShortLc = 255
)

// Well-known file and application identifiers.
var (
	// MasterFileID selects the root of the document's file system.
	MasterFileID = []byte{0x3F, 0x00}
	// CardAccessFileID is EF.CardAccess, readable without authentication.
	CardAccessFileID = []byte{0x01, 0x1C}
	// AIDLDS1 is the eMRTD LDS1 applet (ICAO Doc 9303 part 10).
	AIDLDS1 = []byte{0xA0, 0x00, 0x00, 0x02, 0x47, 0x10, 0x01}
)

// CommandAPDU describes one request frame. Values are immutable once
// constructed; builders return fresh values per call.
type CommandAPDU struct {
	Data []byte
	Le   int
	Cla  byte
	Ins  Instruction
	P1   byte
	P2   byte
}

// NewCommandAPDU constructs a raw command from explicit byte-level fields.
func NewCommandAPDU(cla byte, ins Instruction, p1, p2 byte, data []byte, le int) *CommandAPDU {
	return &CommandAPDU{
		Cla:  cla,
		Ins:  ins,
		P1:   p1,
		P2:   p2,
		Data: data,
		Le:   le,
	}
}

// NewSelectByFileID builds a SELECT for a two-byte elementary or dedicated
// file identifier.
func NewSelectByFileID(fileID []byte) *CommandAPDU {
	return NewCommandAPDU(ClaPlain, InsSelect, 0x02, 0x0C, fileID, ExpectNone)
}

// NewSelectApplication builds a SELECT by AID (DF name).
func NewSelectApplication(aid []byte) *CommandAPDU {
	return NewCommandAPDU(ClaPlain, InsSelect, 0x04, 0x0C, aid, ExpectNone)
}

// SelectMasterFile builds the SELECT that re-establishes the base application
// context after a handshake.
func SelectMasterFile() *CommandAPDU {
	return NewCommandAPDU(ClaPlain, InsSelect, 0x00, 0x0C, MasterFileID, ExpectNone)
}

// NewReadBinary builds a READ BINARY for up to le bytes at the given offset.
// Pass ExpectAll to request everything available.
func NewReadBinary(offset uint16, le int) *CommandAPDU {
	return NewCommandAPDU(ClaPlain, InsReadBinary, byte(offset>>8), byte(offset), nil, le)
}

// NewGetResponse builds a GET RESPONSE retrieving le pending bytes.
func NewGetResponse(le int) *CommandAPDU {
	return NewCommandAPDU(ClaPlain, InsGetResponse, 0x00, 0x00, nil, le)
}

// WithLe returns a copy of the command with a different expected length. Used
// by the secured channel to substitute the ExpectAll sentinel.
func (c *CommandAPDU) WithLe(le int) *CommandAPDU {
	clone := *c
	clone.Le = le
	return &clone
}

// Bytes encodes the command as a short APDU (cases 1 through 4). The data
// field is limited to 255 bytes and Le to 256; the secured reads this layer
// issues never exceed short encoding.
func (c *CommandAPDU) Bytes() ([]byte, error) {
	if len(c.Data) > maxShortLc {
		return nil, fmt.Errorf("%w: data field %d bytes exceeds short APDU limit", ErrInvalidCommand, len(c.Data))
	}
	if c.Le < 0 || c.Le > ExpectAll {
		return nil, fmt.Errorf("%w: expected length %d out of range", ErrInvalidCommand, c.Le)
	}

	buf := make([]byte, 0, 4+1+len(c.Data)+1)
	buf = append(buf, c.Cla, byte(c.Ins), c.P1, c.P2)

	if len(c.Data) > 0 {
		buf = append(buf, byte(len(c.Data)))
		buf = append(buf, c.Data...)
	}
	if c.Le > 0 {
		// 0x00 encodes 256 in short form.
		buf = append(buf, byte(c.Le%ExpectAll))
	}
	return buf, nil
}

// String formats the command header for diagnostics.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("CLA=%02X INS=%02X P1=%02X P2=%02X Lc=%d Le=%d",
		c.Cla, byte(c.Ins), c.P1, c.P2, len(c.Data), c.Le)
}

// ResponseAPDU is one response frame: payload plus the status word trailer.
type ResponseAPDU struct {
	Data []byte
	SW   StatusWord
}

// ParseResponseAPDU splits raw response bytes into payload and status word.
// The input must be at least the two trailer bytes.
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: response %d bytes, need at least 2", ErrInvalidResponse, len(raw))
	}
	trailer := len(raw) - 2
	data := make([]byte, trailer)
	copy(data, raw[:trailer])
	return &ResponseAPDU{
		Data: data,
		SW:   NewStatusWord(raw[trailer], raw[trailer+1]),
	}, nil
}

// IsSuccess reports whether the response carries the success status word.
func (r *ResponseAPDU) IsSuccess() bool {
	return r.SW.IsSuccess()
}

// String formats the response for diagnostics.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("%d bytes, SW=%s", len(r.Data), r.SW)
}
