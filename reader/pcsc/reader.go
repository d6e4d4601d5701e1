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

// Package pcsc drives authentication sessions through a PC/SC smart card
// reader, the desktop path for contactless document readers.
package pcsc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-emrtd"
	"github.com/ZaparooProject/go-emrtd/sessionlog"
	"github.com/ebfe/scard"
)

// getUIDCommand is the PC/SC pseudo-APDU readers answer with the contactless
// UID.
var getUIDCommand = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}

// Config tunes the backend.
type Config struct {
	// Logger receives backend failures; nil discards them.
	Logger sessionlog.Logger
	// ReaderName picks a specific reader; empty uses the first one found.
	ReaderName string
	// PollInterval is the pause between card-presence checks.
	PollInterval time.Duration
	// Timeout ends the session when no card shows up in time. Zero waits
	// forever.
	Timeout time.Duration
}

// DefaultConfig returns settings suitable for desktop readers.
func DefaultConfig() Config {
	return Config{PollInterval: 250 * time.Millisecond}
}

// ReaderSession implements emrtd.ReaderSession over PC/SC.
type ReaderSession struct {
	config   Config
	logger   sessionlog.Logger
	delegate emrtd.SessionDelegate
	stop     chan struct{}

	mu      sync.Mutex // guards sctx/card and serializes Transmit
	sctx    *scard.Context
	card    *scard.Card
	reader  string
	began   atomic.Bool
	invalid atomic.Bool
}

// New creates a session. The PC/SC context is not established until Begin.
func New(config Config) *ReaderSession {
	if config.PollInterval <= 0 {
		config.PollInterval = 250 * time.Millisecond
	}
	logger := config.Logger
	if logger == nil {
		logger = sessionlog.NoopLogger{}
	}
	return &ReaderSession{
		config: config,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Begin establishes the PC/SC context, resolves the reader and starts
// watching for a card.
func (r *ReaderSession) Begin(delegate emrtd.SessionDelegate) error {
	if !r.began.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: session already started", emrtd.ErrReaderUnavailable)
	}
	sctx, err := scard.EstablishContext()
	if err != nil {
		return fmt.Errorf("%w: establishing context: %w", emrtd.ErrReaderUnavailable, err)
	}
	readers, err := sctx.ListReaders()
	if err != nil || len(readers) == 0 {
		_ = sctx.Release()
		return fmt.Errorf("%w: no smart card readers", emrtd.ErrReaderUnavailable)
	}
	name := r.config.ReaderName
	if name == "" {
		name = readers[0]
	} else if !containsReader(readers, name) {
		_ = sctx.Release()
		return fmt.Errorf("%w: reader %q not attached", emrtd.ErrReaderUnavailable, name)
	}

	r.sctx = sctx
	r.reader = name
	r.delegate = delegate
	go r.pollLoop()
	return nil
}

func containsReader(readers []string, name string) bool {
	for _, r := range readers {
		if r == name {
			return true
		}
	}
	return false
}

// pollLoop attempts to connect until a card arrives, then reports it.
func (r *ReaderSession) pollLoop() {
	var deadline <-chan time.Time
	if r.config.Timeout > 0 {
		timer := time.NewTimer(r.config.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-deadline:
			r.endSession(fmt.Errorf("%w: no card within %s", emrtd.ErrReaderTimeout, r.config.Timeout))
			return
		case <-ticker.C:
			tag, ok := r.tryConnect()
			if !ok {
				continue
			}
			// PC/SC surfaces a single card per reader, so a discovery pass
			// never carries more than one tag here.
			r.delegate.TagsDetected([]emrtd.Tag{tag})
			return
		}
	}
}

// tryConnect attempts a shared connection and reads the contactless UID.
func (r *ReaderSession) tryConnect() (emrtd.Tag, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sctx == nil {
		return emrtd.Tag{}, false
	}

	card, err := r.sctx.Connect(r.reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		// No card in the field yet.
		return emrtd.Tag{}, false
	}

	family := emrtd.FamilyUnknown
	if status, serr := card.Status(); serr == nil && status.ActiveProtocol == scard.ProtocolT1 {
		// ISO-DEP cards negotiate T=1; memory tags surface as T=0 emulation.
		family = emrtd.FamilyISO14443
	}

	uid := []byte{}
	if rsp, terr := card.Transmit(getUIDCommand); terr == nil && len(rsp) >= 2 &&
		rsp[len(rsp)-2] == 0x90 && rsp[len(rsp)-1] == 0x00 {
		uid = rsp[:len(rsp)-2]
	}

	r.card = card
	return emrtd.Tag{UID: uid, Family: family}, true
}

// ConnectTag implements emrtd.ReaderSession. The card link was already
// established while detecting it.
func (r *ReaderSession) ConnectTag(_ context.Context, _ emrtd.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.card == nil {
		return fmt.Errorf("%w: card no longer present", emrtd.ErrTagConnectionLost)
	}
	if _, err := r.card.Status(); err != nil {
		return fmt.Errorf("%w: %w", emrtd.ErrTagConnectionLost, err)
	}
	return nil
}

// ReadCardAccess implements emrtd.ReaderSession.
func (r *ReaderSession) ReadCardAccess(ctx context.Context) ([]byte, error) {
	return emrtd.ReadCardAccessFile(ctx, r.Transceive)
}

// Transceive implements emrtd.ReaderSession.
func (r *ReaderSession) Transceive(ctx context.Context, request []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", emrtd.ErrReaderCanceled, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invalid.Load() {
		return nil, emrtd.ErrReaderSessionEnded
	}
	if r.card == nil {
		return nil, fmt.Errorf("%w: no card connected", emrtd.ErrTagConnectionLost)
	}
	rsp, err := r.card.Transmit(request)
	if err != nil {
		return nil, fmt.Errorf("%w: transmit: %w", emrtd.ErrTagConnectionLost, err)
	}
	return rsp, nil
}

// UpdatePrompt implements emrtd.ReaderSession. Desktop readers have no
// display; messages only reach the log.
func (r *ReaderSession) UpdatePrompt(message string) {
	r.logger.Log(sessionlog.Prompt("", message))
}

// Invalidate implements emrtd.ReaderSession.
func (r *ReaderSession) Invalidate(string) {
	r.endSession(emrtd.ErrReaderSessionEnded)
}

// endSession tears down the card link and PC/SC context and delivers the
// invalidation callback exactly once.
func (r *ReaderSession) endSession(cause error) {
	if !r.invalid.CompareAndSwap(false, true) {
		return
	}
	close(r.stop)

	r.mu.Lock()
	if r.card != nil {
		if err := r.card.Disconnect(scard.LeaveCard); err != nil &&
			!errors.Is(err, scard.ErrNoSmartcard) {
			r.logger.Log(sessionlog.Failure("", "disconnect", err.Error()))
		}
		r.card = nil
	}
	if r.sctx != nil {
		_ = r.sctx.Release()
		r.sctx = nil
	}
	r.mu.Unlock()

	if r.delegate != nil {
		r.delegate.SessionInvalidated(cause)
	}
}

var _ emrtd.ReaderSession = (*ReaderSession)(nil)
