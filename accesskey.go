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
	"strings"
	"time"
)

// AccessKey is the password material for the PACE handshake, derived from the
// document's machine readable zone: document number, date of birth and date
// of expiry, each followed by its check digit. The value is immutable and
// passed by value into the handshake collaborator; this layer never inspects
// it beyond construction.
type AccessKey struct {
	seed string
}

// NewAccessKey derives the key seed from the document identifying fields.
// The document number is upper-cased and padded with filler characters to
// nine positions; dates use the fixed YYMMDD encoding.
func NewAccessKey(documentNumber string, dateOfBirth, dateOfExpiry time.Time) AccessKey {
	num := strings.ToUpper(strings.TrimSpace(documentNumber))
	if len(num) < 9 {
		num += strings.Repeat("<", 9-len(num))
	}
	dob := dateOfBirth.Format("060102")
	doe := dateOfExpiry.Format("060102")

	var sb strings.Builder
	sb.WriteString(num)
	sb.WriteByte(checkDigit(num))
	sb.WriteString(dob)
	sb.WriteByte(checkDigit(dob))
	sb.WriteString(doe)
	sb.WriteByte(checkDigit(doe))

	return AccessKey{seed: sb.String()}
}

// Seed returns the derived key seed string.
func (k AccessKey) Seed() string {
	return k.seed
}

// IsZero reports whether the key was never constructed.
func (k AccessKey) IsZero() bool {
	return k.seed == ""
}

// String masks the seed; access keys must not leak into logs.
func (AccessKey) String() string {
	return "AccessKey(****)"
}

// checkDigit computes the MRZ check digit over s using the repeating
// 7-3-1 weighting (ICAO Doc 9303 part 3). Digits carry their value, letters
// A-Z carry 10-35, the filler character carries 0.
func checkDigit(s string) byte {
	weights := []int{7, 3, 1}
	sum := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'A' && c <= 'Z':
			v = int(c-'A') + 10
		default:
			v = 0
		}
		sum += v * weights[i%3]
	}
	return byte('0' + sum%10)
}
