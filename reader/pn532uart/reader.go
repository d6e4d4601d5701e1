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

// Package pn532uart drives authentication sessions through a PN532 module on
// a serial port, the setup common on hobbyist readers.
package pn532uart

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-emrtd"
	"github.com/ZaparooProject/go-emrtd/internal/frame"
	"github.com/ZaparooProject/go-emrtd/sessionlog"
	"go.bug.st/serial"
)

// PN532 commands used by this backend.
const (
	cmdSamConfiguration    = 0x14
	cmdInListPassiveTarget = 0x4A
	cmdInDataExchange      = 0x40
	cmdInRelease           = 0x52
)

const (
	// brTy106kbpsTypeA selects ISO 14443 Type A at 106 kbps.
	brTy106kbpsTypeA = 0x00
	// maxListTargets is passed to InListPassiveTarget. Two is the chip's
	// maximum and lets the session detect the multiple-tag condition.
	maxListTargets = 0x02
	// selResISODEP flags ISO 14443-4 capability in the SEL_RES byte.
	selResISODEP = 0x20

	readChunkSize = 64
)

// Config tunes the backend.
type Config struct {
	// Logger receives backend failures; nil discards them.
	Logger sessionlog.Logger
	// Port is the serial device, e.g. /dev/ttyUSB0.
	Port string
	// BaudRate defaults to 115200, the module's stock rate.
	BaudRate int
	// PollInterval is the pause between discovery passes.
	PollInterval time.Duration
	// Timeout ends the session when no tag shows up in time. Zero polls
	// forever.
	Timeout time.Duration
	// FrameTimeout bounds one command/response exchange on the wire.
	FrameTimeout time.Duration
}

// DefaultConfig returns the settings that work on stock PN532 modules.
func DefaultConfig(port string) Config {
	return Config{
		Port:         port,
		BaudRate:     115200,
		PollInterval: 150 * time.Millisecond,
		FrameTimeout: 2 * time.Second,
	}
}

// ReaderSession implements emrtd.ReaderSession over a PN532 on UART.
type ReaderSession struct {
	config   Config
	logger   sessionlog.Logger
	port     serial.Port
	delegate emrtd.SessionDelegate
	stop     chan struct{}

	mu          sync.Mutex // serializes wire exchanges
	target      byte
	began       atomic.Bool
	invalidated atomic.Bool
}

// New creates a session bound to the configured serial port. The port is not
// opened until Begin.
func New(config Config) *ReaderSession {
	if config.BaudRate <= 0 {
		config.BaudRate = 115200
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 150 * time.Millisecond
	}
	if config.FrameTimeout <= 0 {
		config.FrameTimeout = 2 * time.Second
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

// Begin opens the port, configures the chip and starts polling for targets.
func (r *ReaderSession) Begin(delegate emrtd.SessionDelegate) error {
	if !r.began.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: session already started", emrtd.ErrReaderUnavailable)
	}
	port, err := serial.Open(r.config.Port, &serial.Mode{
		BaudRate: r.config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", emrtd.ErrReaderUnavailable, r.config.Port, err)
	}
	if err := port.SetReadTimeout(50 * time.Millisecond); err != nil {
		_ = port.Close()
		return fmt.Errorf("%w: setting read timeout: %w", emrtd.ErrReaderUnavailable, err)
	}
	r.port = port
	r.delegate = delegate

	// Normal mode, no virtual card, no timeout handling by the SAM.
	if _, err := r.exchange(context.Background(), cmdSamConfiguration, []byte{0x01, 0x14, 0x01}); err != nil {
		_ = port.Close()
		return fmt.Errorf("%w: SAM configuration: %w", emrtd.ErrReaderUnavailable, err)
	}

	go r.pollLoop()
	return nil
}

// pollLoop runs discovery passes until the session ends or times out.
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
			r.endSession(fmt.Errorf("%w: no tag within %s", emrtd.ErrReaderTimeout, r.config.Timeout))
			return
		case <-ticker.C:
			tags, err := r.listTargets()
			if err != nil {
				r.logger.Log(sessionlog.Failure("", "poll", err.Error()))
				continue
			}
			if len(tags) > 0 {
				// Further listing passes would deselect the target the
				// session is about to connect.
				r.delegate.TagsDetected(tags)
				return
			}
		}
	}
}

// listTargets runs one InListPassiveTarget pass and decodes the targets.
func (r *ReaderSession) listTargets() ([]emrtd.Tag, error) {
	payload, err := r.exchange(context.Background(), cmdInListPassiveTarget,
		[]byte{maxListTargets, brTy106kbpsTypeA})
	if err != nil {
		return nil, err
	}
	tags, err := decodeTargets(payload)
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		// InListPassiveTarget selects the first target implicitly.
		r.mu.Lock()
		r.target = 1
		r.mu.Unlock()
	}
	return tags, nil
}

// decodeTargets parses an InListPassiveTarget response payload: NbTg, then
// per target Tg, SENS_RES[2], SEL_RES, IDLen, NFCID1.
func decodeTargets(payload []byte) ([]emrtd.Tag, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("%w: empty target listing", emrtd.ErrTransport)
	}
	count := int(payload[0])
	tags := make([]emrtd.Tag, 0, count)
	off := 1
	for i := 0; i < count; i++ {
		if off+5 > len(payload) {
			return nil, fmt.Errorf("%w: truncated target entry", emrtd.ErrTransport)
		}
		selRes := payload[off+3]
		idLen := int(payload[off+4])
		off += 5
		if off+idLen > len(payload) {
			return nil, fmt.Errorf("%w: truncated target UID", emrtd.ErrTransport)
		}
		family := emrtd.FamilyUnknown
		if selRes&selResISODEP != 0 {
			family = emrtd.FamilyISO14443
		}
		tags = append(tags, emrtd.Tag{
			UID:    append([]byte(nil), payload[off:off+idLen]...),
			Family: family,
		})
		off += idLen
	}
	return tags, nil
}

// ConnectTag implements emrtd.ReaderSession. The chip already selected the
// target during listing, so this only verifies the link is alive.
func (r *ReaderSession) ConnectTag(ctx context.Context, _ emrtd.Tag) error {
	if r.invalidated.Load() {
		return emrtd.ErrReaderSessionEnded
	}
	// RATS was handled by the chip; probe the ISO-DEP link with a no-op
	// exchange so a stale selection fails here instead of mid-handshake.
	raw, err := emrtd.SelectMasterFile().Bytes()
	if err != nil {
		return err
	}
	if _, err := r.Transceive(ctx, raw); err != nil {
		return fmt.Errorf("%w: probing tag link: %w", emrtd.ErrTagConnectionLost, err)
	}
	return nil
}

// ReadCardAccess implements emrtd.ReaderSession.
func (r *ReaderSession) ReadCardAccess(ctx context.Context) ([]byte, error) {
	return emrtd.ReadCardAccessFile(ctx, r.Transceive)
}

// Transceive implements emrtd.ReaderSession via InDataExchange.
func (r *ReaderSession) Transceive(ctx context.Context, request []byte) ([]byte, error) {
	if r.invalidated.Load() {
		return nil, emrtd.ErrReaderSessionEnded
	}
	r.mu.Lock()
	tg := r.target
	r.mu.Unlock()
	if tg == 0 {
		return nil, fmt.Errorf("%w: no target selected", emrtd.ErrTagConnectionLost)
	}

	payload, err := r.exchange(ctx, cmdInDataExchange, append([]byte{tg}, request...))
	if err != nil {
		return nil, err
	}
	if len(payload) < 1 {
		return nil, fmt.Errorf("%w: missing exchange status", emrtd.ErrTransport)
	}
	if status := payload[0] & 0x3F; status != 0 {
		return nil, fmt.Errorf("%w: exchange status 0x%02X", emrtd.ErrTagConnectionLost, status)
	}
	return payload[1:], nil
}

// UpdatePrompt implements emrtd.ReaderSession. The module has no display;
// progress messages only reach the log.
func (r *ReaderSession) UpdatePrompt(message string) {
	r.logger.Log(sessionlog.Prompt("", message))
}

// Invalidate implements emrtd.ReaderSession.
func (r *ReaderSession) Invalidate(string) {
	r.endSession(emrtd.ErrReaderSessionEnded)
}

// endSession stops polling, releases the target, closes the port and
// delivers the invalidation callback exactly once.
func (r *ReaderSession) endSession(cause error) {
	if !r.invalidated.CompareAndSwap(false, true) {
		return
	}
	close(r.stop)

	r.mu.Lock()
	if r.port != nil {
		if r.target != 0 {
			if raw, err := frame.Build(cmdInRelease, []byte{0x00}); err == nil {
				_, _ = r.port.Write(raw)
			}
		}
		_ = r.port.Close()
	}
	r.mu.Unlock()

	if r.delegate != nil {
		r.delegate.SessionInvalidated(cause)
	}
}

// exchange writes one command frame, consumes the ACK and returns the decoded
// response payload after the response code byte.
func (r *ReaderSession) exchange(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.port == nil {
		return nil, emrtd.ErrReaderSessionEnded
	}

	raw, err := frame.Build(cmd, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", emrtd.ErrTransport, err)
	}
	if _, err := r.port.Write(raw); err != nil {
		return nil, fmt.Errorf("%w: write: %w", emrtd.ErrTransport, err)
	}

	buf, err := r.readUntil(ctx, nil, frame.IsAck)
	if err != nil {
		return nil, err
	}
	if !frame.IsAck(buf) {
		return nil, fmt.Errorf("%w: missing ACK", emrtd.ErrTransport)
	}

	// Response bytes may have arrived in the same read as the ACK.
	leftover := append([]byte(nil), buf[len(frame.AckFrame):]...)
	respBuf, err := r.readUntil(ctx, leftover, func(b []byte) bool {
		_, perr := frame.Parse(b)
		return perr == nil
	})
	if err != nil {
		return nil, err
	}
	payload, err := frame.Parse(respBuf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", emrtd.ErrTransport, err)
	}
	if len(payload) < 1 || payload[0] != cmd+1 {
		return nil, fmt.Errorf("%w: unexpected response code", emrtd.ErrTransport)
	}
	return payload[1:], nil
}

// readUntil accumulates port bytes until done(buf) holds or the frame timeout
// elapses. The serial read timeout keeps individual reads short so ctx
// cancellation is honored promptly.
func (r *ReaderSession) readUntil(ctx context.Context, buf []byte, done func([]byte) bool) ([]byte, error) {
	if len(buf) > 0 && done(buf) {
		return buf, nil
	}
	chunk := make([]byte, readChunkSize)
	deadline := time.Now().Add(r.config.FrameTimeout)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", emrtd.ErrReaderCanceled, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: no frame within %s", emrtd.ErrReaderTimeout, r.config.FrameTimeout)
		}
		n, err := r.port.Read(chunk)
		if err != nil {
			return nil, fmt.Errorf("%w: read: %w", emrtd.ErrTransport, err)
		}
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if done(buf) {
				return buf, nil
			}
		}
	}
}

var _ emrtd.ReaderSession = (*ReaderSession)(nil)
