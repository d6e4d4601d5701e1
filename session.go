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
	"time"

	"github.com/ZaparooProject/go-emrtd/internal/syncutil"
	"github.com/ZaparooProject/go-emrtd/sessionlog"
)

// SessionState represents the finite state machine for one authentication
// attempt. An attempt only moves forward; Completed and Failed are terminal.
type SessionState int

const (
	StateIdle SessionState = iota
	StateDiscovering
	StateTagFound
	StateConnecting
	StateAuthenticating
	StateAuthenticated
	StateCompleted
	StateFailed
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateDiscovering:
		return "Discovering"
	case StateTagFound:
		return "TagFound"
	case StateConnecting:
		return "Connecting"
	case StateAuthenticating:
		return "Authenticating"
	case StateAuthenticated:
		return "Authenticated"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// IsTerminal reports whether the attempt can still make progress.
func (s SessionState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// SessionConfig wires the session's collaborators. Reader and Handler are
// required; Parser and Logger have working defaults.
type SessionConfig struct {
	Reader  ReaderSession
	Handler PACEHandler
	Parser  CardAccessParser
	Logger  sessionlog.Logger
}

// SessionOptions tunes one authentication attempt.
type SessionOptions struct {
	// Messages overrides individual user-facing progress messages.
	Messages MessageSet

	// DataAmountOverride replaces the default per-read byte ceiling of the
	// returned channel. Zero keeps DefaultMaxReadAmount.
	DataAmountOverride int

	// KeepSessionActive keeps the hardware session open after a successful
	// handshake so the returned channel can issue further commands. When
	// false the session is ended immediately after authentication; the
	// returned channel is already closed.
	KeepSessionActive bool
}

// Session drives one authentication attempt against one reader session.
// A Session is single-shot: BeginAuthentication may be called once.
type Session struct {
	reader  ReaderSession
	handler PACEHandler
	parser  CardAccessParser
	logger  sessionlog.Logger

	att     atomic.Pointer[attempt]
	started atomic.Bool
}

// NewSession validates and wires the collaborators.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Reader == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrReaderUnavailable)
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("%w: nil handshake handler", ErrReaderUnavailable)
	}
	parser := cfg.Parser
	if parser == nil {
		parser = CardAccessParserFunc(ParseCardAccess)
	}
	var logger sessionlog.Logger = sessionlog.NoopLogger{}
	if cfg.Logger != nil {
		logger = cfg.Logger
	}
	return &Session{
		reader:  cfg.Reader,
		handler: cfg.Handler,
		parser:  parser,
		logger:  logger,
	}, nil
}

// State returns the current attempt state, or StateIdle before
// BeginAuthentication.
func (s *Session) State() SessionState {
	att := s.att.Load()
	if att == nil {
		return StateIdle
	}
	return att.currentState()
}

// BeginAuthentication starts tag discovery and blocks until the attempt
// reaches a terminal state. On success it returns the secured channel; every
// failure is a *SessionError carrying a FailureCode.
//
// Canceling ctx fails the attempt with CodeUserCanceled and ends the hardware
// session.
func (s *Session) BeginAuthentication(ctx context.Context, key AccessKey, opts SessionOptions) (*SecuredChannel, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, newSessionError(CodeUnexpected, ErrAttemptInProgress)
	}

	att := &attempt{
		reader:  s.reader,
		handler: s.handler,
		parser:  s.parser,
		logger:  s.logger,
		opts:    opts,
		key:     key,
		id:      fmt.Sprintf("attempt-%x", time.Now().UnixNano()),
		ctx:     ctx,
	}
	att.pending = newPendingResult(att.id, s.logger)
	s.att.Store(att)

	if err := s.reader.Begin(att); err != nil {
		failure := newSessionErrorf(CodeHardwareUnavailable, err, "discovery could not start")
		att.moveTo(StateFailed)
		att.pending.fail(failure)
		s.logger.Log(sessionlog.Failure(att.id, failure.Code.String(), failure.Error()))
		return nil, failure
	}
	att.moveTo(StateDiscovering)
	att.prompt(EventWaitingForTag)

	select {
	case out := <-att.pending.outcome:
		return out.Channel, outcomeErr(out)
	case <-ctx.Done():
		att.cancel(ctx.Err())
		out := att.pending.wait()
		return out.Channel, outcomeErr(out)
	}
}

func outcomeErr(out attemptOutcome) error {
	if out.Err != nil {
		return out.Err
	}
	return nil
}

// attempt holds the mutable state of one authentication run. It is the
// reader's SessionDelegate; callbacks can arrive on any goroutine.
type attempt struct {
	reader  ReaderSession
	handler PACEHandler
	parser  CardAccessParser
	logger  sessionlog.Logger
	pending *pendingResult
	ctx     context.Context
	key     AccessKey
	id      string
	opts    SessionOptions

	mu      syncutil.Mutex
	state   SessionState
	channel *SecuredChannel

	// handling flips once when the single detected tag is taken on, so later
	// discovery callbacks for the same tag cannot start a second handshake.
	handling atomic.Bool

	// expectingInvalidation marks that the next SessionInvalidated callback
	// was caused by this layer and must not fail the attempt. Single-shot:
	// consumed atomically by the callback.
	expectingInvalidation atomic.Bool
}

var _ SessionDelegate = (*attempt)(nil)

func (a *attempt) currentState() SessionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// moveTo advances the state machine. Terminal states are sticky.
func (a *attempt) moveTo(next SessionState) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.IsTerminal() {
		return false
	}
	prev := a.state
	a.state = next
	a.logger.Log(sessionlog.StateChange(a.id, prev.String(), next.String()))
	return true
}

// prompt shows the user-facing message for the event.
func (a *attempt) prompt(ev SessionEvent) {
	msg := a.opts.Messages.Message(ev)
	a.reader.UpdatePrompt(msg)
	a.logger.Log(sessionlog.Prompt(a.id, msg))
}

// TagsDetected handles one discovery pass. Zero tags keeps discovery running;
// more than one tag or a wrong protocol family fails the attempt before any
// handshake; exactly one compatible tag starts the connect/authenticate run.
func (a *attempt) TagsDetected(tags []Tag) {
	if a.pending.isResolved() || len(tags) == 0 {
		return
	}
	if len(tags) > 1 {
		a.failAttempt(newSessionErrorf(CodeMultipleTagsDetected, ErrMultipleTags,
			"%d tags in one pass", len(tags)), EventMultipleTags, true)
		return
	}
	tag := tags[0]
	if tag.Family != FamilyISO14443 {
		a.failAttempt(newSessionErrorf(CodeIncompatibleTag, ErrIncompatibleTag,
			"family %s", tag.Family), EventSessionFailed, true)
		return
	}
	if !a.handling.CompareAndSwap(false, true) {
		return
	}
	a.moveTo(StateTagFound)
	a.prompt(EventConnecting)
	go a.run(tag)
}

// SessionInvalidated handles the end of the hardware session. Invalidations
// this layer requested are consumed silently; external ones fail a pending
// attempt with a classified code, or just close an already delivered channel.
func (a *attempt) SessionInvalidated(err error) {
	a.mu.Lock()
	ch := a.channel
	a.mu.Unlock()
	if ch != nil {
		ch.markClosed()
	}
	if a.expectingInvalidation.CompareAndSwap(true, false) {
		return
	}
	if a.pending.isResolved() {
		a.logger.Log(sessionlog.Failure(a.id, CodeChannelClosed.String(),
			fmt.Sprintf("session ended after resolution: %v", err)))
		return
	}
	code := classifyInvalidation(err)
	a.failAttempt(newSessionError(code, err), EventSessionFailed, false)
}

// cancel fails the attempt because the caller's context ended.
func (a *attempt) cancel(cause error) {
	a.failAttempt(newSessionErrorf(CodeUserCanceled, ErrReaderCanceled,
		"caller canceled: %v", cause), EventSessionFailed, true)
}

// failAttempt resolves the attempt with a classified error. When invalidate
// is set the hardware session is also ended, with the expected-invalidation
// flag raised first so the resulting callback is not re-classified.
func (a *attempt) failAttempt(failure *SessionError, ev SessionEvent, invalidate bool) {
	a.moveTo(StateFailed)
	if !a.pending.fail(failure) {
		return
	}
	a.logger.Log(sessionlog.Failure(a.id, failure.Code.String(), failure.Error()))
	msg := a.opts.Messages.Message(ev)
	a.logger.Log(sessionlog.Prompt(a.id, msg))
	if invalidate {
		a.expectingInvalidation.Store(true)
		a.reader.Invalidate(msg)
	}
}

// transceive binds the hardware link for the handshake and the channel.
func (a *attempt) transceive(ctx context.Context, request []byte) ([]byte, error) {
	return a.reader.Transceive(ctx, request)
}

// run performs connect, card access read, handshake and channel setup for the
// single detected tag. Runs on its own goroutine off the discovery callback.
func (a *attempt) run(tag Tag) {
	ctx := a.ctx

	a.moveTo(StateConnecting)
	if err := a.reader.ConnectTag(ctx, tag); err != nil {
		a.failAttempt(newSessionErrorf(classifyTransceive(err), err,
			"connecting tag %s", tag.UIDString()), EventSessionFailed, true)
		return
	}

	raw, err := a.reader.ReadCardAccess(ctx)
	if err != nil {
		a.failAttempt(newSessionErrorf(classifyTransceive(err), err,
			"reading card access"), EventSessionFailed, true)
		return
	}
	access, err := a.parser.Parse(raw)
	if err != nil {
		a.failAttempt(newSessionErrorf(CodeIncompatibleTag, err,
			"card access metadata"), EventSessionFailed, true)
		return
	}

	a.moveTo(StateAuthenticating)
	a.prompt(EventAuthenticating)
	if err := a.handler.DoHandshake(ctx, a.transceive, access, a.key); err != nil {
		protocol := "PACE"
		if info, ok := access.PreferredPACE(); ok {
			protocol = info.Name()
		}
		a.failAttempt(newSessionErrorf(CodeHandshakeFailed, err,
			"%s handshake", protocol), EventAuthenticationFailed, true)
		return
	}

	a.moveTo(StateAuthenticated)
	a.prompt(EventAuthenticated)

	// Housekeeping: put the card back at its base file system context so the
	// first secured command starts from a known selection. A rejecting status
	// word is tolerated, a dead link is not.
	if err := a.reselectMasterFile(ctx); err != nil {
		a.failAttempt(newSessionErrorf(classifyTransceive(err), err,
			"reselecting master file"), EventSessionFailed, true)
		return
	}

	ch := newSecuredChannel(a.id, a.transceive, a.opts.DataAmountOverride, a.logger, a.closeSession)
	a.mu.Lock()
	a.channel = ch
	a.mu.Unlock()
	if !a.opts.KeepSessionActive {
		ch.markClosed()
		a.expectingInvalidation.Store(true)
	}

	a.moveTo(StateCompleted)
	a.pending.succeed(ch)

	if !a.opts.KeepSessionActive {
		a.reader.Invalidate(a.opts.Messages.Message(EventAuthenticated))
	}
}

func (a *attempt) reselectMasterFile(ctx context.Context) error {
	raw, err := SelectMasterFile().Bytes()
	if err != nil {
		return err
	}
	respRaw, err := a.transceive(ctx, raw)
	if err != nil {
		return err
	}
	resp, err := ParseResponseAPDU(respRaw)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		a.logger.Log(sessionlog.Command(a.id,
			fmt.Sprintf("master file reselection rejected: %s", resp.SW)))
	}
	return nil
}

// closeSession is the channel's teardown hook.
func (a *attempt) closeSession() {
	a.expectingInvalidation.Store(true)
	a.reader.Invalidate("")
}
