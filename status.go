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

import "fmt"

// StatusWord is the two-byte trailer (SW1-SW2) terminating every response
// APDU. 0x9000 is the sole success value; everything else is a protocol-level
// failure code the caller must interpret.
type StatusWord uint16

// NewStatusWord combines the two trailer bytes into a StatusWord.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the high byte of the status word.
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the low byte of the status word.
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// IsSuccess reports whether the status word is exactly 0x9000.
func (sw StatusWord) IsSuccess() bool {
	return sw == SWNoError
}

// HasMoreData reports whether the card signalled additional response bytes
// (SW1 = 0x61). SW2 carries the number of bytes waiting for GET RESPONSE.
func (sw StatusWord) HasMoreData() bool {
	return sw.SW1() == 0x61
}

// IsWrongLength reports a 6CXX status; SW2 carries the correct Le to retry
// with.
func (sw StatusWord) IsWrongLength() bool {
	return sw.SW1() == 0x6C
}

// String formats the status word with a short description where one is known.
func (sw StatusWord) String() string {
	if desc, ok := statusDescriptions[sw]; ok {
		return fmt.Sprintf("%04X (%s)", uint16(sw), desc)
	}
	if sw.HasMoreData() {
		return fmt.Sprintf("%04X (%d bytes available)", uint16(sw), sw.SW2())
	}
	if sw.IsWrongLength() {
		return fmt.Sprintf("%04X (wrong length, expected %d)", uint16(sw), sw.SW2())
	}
	return fmt.Sprintf("%04X", uint16(sw))
}

// Status word values seen when driving an identity document, per ISO/IEC
// 7816-4 and ICAO Doc 9303 part 10.
const (
	SWNoError StatusWord = 0x9000

	SWEOFReached             StatusWord = 0x6282
	SWSecurityStatusNotSat   StatusWord = 0x6982
	SWAuthMethodBlocked      StatusWord = 0x6983
	SWRefDataInvalid         StatusWord = 0x6984
	SWConditionsNotSat       StatusWord = 0x6985
	SWSecureMessagingMissing StatusWord = 0x6987
	SWSecureMessagingBad     StatusWord = 0x6988
	SWWrongLength            StatusWord = 0x6700
	SWWrongParams            StatusWord = 0x6A86
	SWFileNotFound           StatusWord = 0x6A82
	SWRecordNotFound         StatusWord = 0x6A83
	SWInsNotSupported        StatusWord = 0x6D00
	SWClaNotSupported        StatusWord = 0x6E00
	SWUnknown                StatusWord = 0x6F00
)

var statusDescriptions = map[StatusWord]string{
	SWNoError:                "success",
	SWEOFReached:             "end of file reached before reading Le bytes",
	SWSecurityStatusNotSat:   "security status not satisfied",
	SWAuthMethodBlocked:      "authentication method blocked",
	SWRefDataInvalid:         "reference data invalid",
	SWConditionsNotSat:       "conditions of use not satisfied",
	SWSecureMessagingMissing: "expected secure messaging object missing",
	SWSecureMessagingBad:     "secure messaging object incorrect",
	SWWrongLength:            "wrong length",
	SWWrongParams:            "incorrect parameters P1-P2",
	SWFileNotFound:           "file not found",
	SWRecordNotFound:         "record not found",
	SWInsNotSupported:        "instruction not supported",
	SWClaNotSupported:        "class not supported",
	SWUnknown:                "no precise diagnosis",
}
