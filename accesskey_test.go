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
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewAccessKeySeed(t *testing.T) {
	t.Parallel()
	// The worked example from ICAO Doc 9303 part 11.
	key := NewAccessKey("L898902C", date(1974, time.August, 12), date(2012, time.April, 15))
	assert.Equal(t, "L898902C<3"+"7408122"+"1204159", key.Seed())
}

func TestNewAccessKeyNormalization(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		number string
		want   string
	}{
		{"lower case is folded", "l898902c", "L898902C<3"},
		{"whitespace trimmed", "  L898902C ", "L898902C<3"},
		{"nine characters unpadded", "T22000129", "T220001293"},
	}

	dob := date(1974, time.August, 12)
	doe := date(2012, time.April, 15)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			key := NewAccessKey(tt.number, dob, doe)
			assert.Equal(t, tt.want, key.Seed()[:10])
		})
	}
}

func TestAccessKeyMasksString(t *testing.T) {
	t.Parallel()
	key := NewAccessKey("L898902C", date(1974, time.August, 12), date(2012, time.April, 15))
	assert.NotContains(t, key.String(), "L898902C")
	assert.False(t, key.IsZero())
	assert.True(t, AccessKey{}.IsZero())
}
