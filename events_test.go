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

func TestMessageSetDefaults(t *testing.T) {
	t.Parallel()
	var m MessageSet
	for ev := SessionEvent(0); ev < numSessionEvents; ev++ {
		assert.NotEmpty(t, m.Message(ev), "event %s needs a default", ev)
	}
}

func TestMessageSetOverrides(t *testing.T) {
	t.Parallel()
	m := MessageSet{EventAuthenticating: "Checking document..."}
	assert.Equal(t, "Checking document...", m.Message(EventAuthenticating))
	// Untouched events keep their defaults.
	assert.Equal(t, defaultMessages[EventWaitingForTag], m.Message(EventWaitingForTag))
}

func TestSessionEventString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "MultipleTags", EventMultipleTags.String())
	assert.Equal(t, "Unknown", SessionEvent(42).String())
}
