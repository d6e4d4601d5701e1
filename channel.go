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
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ZaparooProject/go-emrtd/internal/syncutil"
	"github.com/ZaparooProject/go-emrtd/sessionlog"
)

// DefaultMaxReadAmount is the per-command read ceiling used when no override
// is configured. Secure messaging padding plus the response MAC have to fit
// the card's extended-length-free response buffer, so this stays well under
// the 256 byte short-case limit.
const DefaultMaxReadAmount = 231

// SecuredChannel issues commands over an authenticated card link. Values are
// handed out by a successful authentication attempt; there is no public
// constructor.
//
// A channel stays usable until the underlying hardware session ends, whether
// by Close, by the session layer or by the OS. All methods are safe for
// concurrent use; sends are serialized internally because the card processes
// one command at a time.
type SecuredChannel struct {
	transceive    TransceiveFunc
	logger        sessionlog.Logger
	attemptID     string
	onClose       func()
	maxReadAmount int

	mu     syncutil.Mutex
	closed atomic.Bool
}

func newSecuredChannel(
	attemptID string,
	transceive TransceiveFunc,
	maxReadAmount int,
	logger sessionlog.Logger,
	onClose func(),
) *SecuredChannel {
	if maxReadAmount <= 0 || maxReadAmount > ExpectAll {
		maxReadAmount = DefaultMaxReadAmount
	}
	return &SecuredChannel{
		transceive:    transceive,
		logger:        logger,
		attemptID:     attemptID,
		onClose:       onClose,
		maxReadAmount: maxReadAmount,
	}
}

// MaxReadAmount returns the largest number of bytes a single read command
// should request through this channel.
func (c *SecuredChannel) MaxReadAmount() int {
	return c.maxReadAmount
}

// IsClosed reports whether the channel has been invalidated.
func (c *SecuredChannel) IsClosed() bool {
	return c.closed.Load()
}

// Send transmits one command and parses the status word from the response.
// A command with Le == ExpectAll is rewritten to request MaxReadAmount bytes
// before encoding.
//
// Send returns a wrapped ErrChannelClosed once the session has ended and a
// wrapped ErrTransport when the exchange itself fails. Error status words are
// not errors; callers inspect ResponseAPDU.SW.
func (c *SecuredChannel) Send(ctx context.Context, cmd *CommandAPDU) (*ResponseAPDU, error) {
	if cmd == nil {
		return nil, fmt.Errorf("%w: nil command", ErrInvalidCommand)
	}
	if c.closed.Load() {
		return nil, fmt.Errorf("send %s: %w", cmd.Ins, ErrChannelClosed)
	}

	send := *cmd
	if send.Le == ExpectAll {
		send = *cmd.WithLe(c.maxReadAmount)
	}
	raw, err := send.Bytes()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check under the lock: Close may have raced the first check.
	if c.closed.Load() {
		return nil, fmt.Errorf("send %s: %w", cmd.Ins, ErrChannelClosed)
	}

	respRaw, err := c.transceive(ctx, raw)
	if err != nil {
		c.logger.Log(sessionlog.Failure(c.attemptID, CodeTransportError.String(), err.Error()))
		return nil, fmt.Errorf("send %s: %w: %w", cmd.Ins, ErrTransport, err)
	}
	resp, err := ParseResponseAPDU(respRaw)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", cmd.Ins, err)
	}
	c.logger.Log(sessionlog.Command(c.attemptID,
		fmt.Sprintf("%s -> %s", cmd.Ins, resp.SW)))
	return resp, nil
}

// Close ends the hardware session behind the channel. Subsequent sends fail
// with ErrChannelClosed. Closing twice is a no-op.
func (c *SecuredChannel) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.onClose != nil {
		c.onClose()
	}
}

// markClosed flips the channel to closed without triggering the session
// teardown hook. Used when the invalidation originated elsewhere.
func (c *SecuredChannel) markClosed() {
	c.closed.Store(true)
}
