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
	"sync/atomic"

	"github.com/ZaparooProject/go-emrtd/sessionlog"
)

// attemptOutcome is the terminal result of one authentication attempt.
// Exactly one of Channel and Err is set.
type attemptOutcome struct {
	Channel *SecuredChannel
	Err     *SessionError
}

// pendingResult bridges the callback-driven attempt to the synchronous
// caller. The first resolution wins; later ones are reported as guard events
// and otherwise ignored, since hardware callbacks can race the failure paths.
type pendingResult struct {
	outcome   chan attemptOutcome
	logger    sessionlog.Logger
	attemptID string
	resolved  atomic.Bool
}

func newPendingResult(attemptID string, logger sessionlog.Logger) *pendingResult {
	return &pendingResult{
		outcome:   make(chan attemptOutcome, 1),
		logger:    logger,
		attemptID: attemptID,
	}
}

// succeed resolves the attempt with an established channel. Returns false if
// the attempt was already resolved.
func (p *pendingResult) succeed(ch *SecuredChannel) bool {
	return p.resolve(attemptOutcome{Channel: ch}, "success")
}

// fail resolves the attempt with a classified error. Returns false if the
// attempt was already resolved.
func (p *pendingResult) fail(err *SessionError) bool {
	return p.resolve(attemptOutcome{Err: err}, err.Code.String())
}

func (p *pendingResult) resolve(out attemptOutcome, label string) bool {
	if !p.resolved.CompareAndSwap(false, true) {
		p.logger.Log(sessionlog.Guard(p.attemptID,
			fmt.Sprintf("duplicate resolution dropped: %s", label)))
		return false
	}
	p.outcome <- out
	return true
}

// isResolved reports whether a resolution has already been accepted.
func (p *pendingResult) isResolved() bool {
	return p.resolved.Load()
}

// wait blocks until the attempt resolves.
func (p *pendingResult) wait() attemptOutcome {
	return <-p.outcome
}
