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
	"errors"
	"fmt"
)

// Sentinel errors. Reader backends wrap the reader-level sentinels so the
// session can classify hardware events without knowing the backend.
var (
	// Reader/session-level errors
	ErrReaderUnavailable  = errors.New("reader hardware unavailable")
	ErrReaderTimeout      = errors.New("reader session timed out")
	ErrReaderCanceled     = errors.New("reader session canceled")
	ErrReaderSessionEnded = errors.New("reader session ended")
	ErrTagConnectionLost  = errors.New("tag connection lost")

	// Discovery validation errors
	ErrMultipleTags    = errors.New("more than one tag detected")
	ErrIncompatibleTag = errors.New("tag protocol family not supported")

	// Command channel errors
	ErrChannelClosed = errors.New("secured channel is closed")
	ErrTransport     = errors.New("transceive failed")

	// Framing errors - not retryable
	ErrInvalidCommand  = errors.New("invalid command frame")
	ErrInvalidResponse = errors.New("invalid response frame")

	// Attempt lifecycle errors
	ErrAttemptInProgress = errors.New("an authentication attempt is already pending")
	ErrCardAccessInvalid = errors.New("card access metadata unreadable")
)

// FailureCode classifies why an authentication attempt or a channel operation
// failed. Every error surfaced by this package maps to exactly one code.
type FailureCode int

const (
	// CodeUnexpected is the catch-all; the wrapped cause is preserved for
	// diagnostics.
	CodeUnexpected FailureCode = iota
	// CodeHardwareUnavailable means discovery could not start at all.
	CodeHardwareUnavailable
	// CodeMultipleTagsDetected means more than one tag was presented at once.
	CodeMultipleTagsDetected
	// CodeIncompatibleTag means the detected tag speaks the wrong protocol
	// family.
	CodeIncompatibleTag
	// CodeConnectionError covers connect failures and lost physical proximity.
	CodeConnectionError
	// CodeHandshakeFailed means the PACE collaborator rejected the attempt.
	CodeHandshakeFailed
	// CodeUserCanceled means the session was ended externally, not by this
	// layer.
	CodeUserCanceled
	// CodeTimeOut is a hardware-imposed timeout.
	CodeTimeOut
	// CodeChannelClosed means a send was issued after session invalidation.
	CodeChannelClosed
	// CodeTransportError is a lower-level transceive failure.
	CodeTransportError
)

// String returns the code name.
func (c FailureCode) String() string {
	switch c {
	case CodeHardwareUnavailable:
		return "HardwareUnavailable"
	case CodeMultipleTagsDetected:
		return "MultipleTagsDetected"
	case CodeIncompatibleTag:
		return "IncompatibleTag"
	case CodeConnectionError:
		return "ConnectionError"
	case CodeHandshakeFailed:
		return "HandshakeFailed"
	case CodeUserCanceled:
		return "UserCanceled"
	case CodeTimeOut:
		return "TimeOut"
	case CodeChannelClosed:
		return "ChannelClosed"
	case CodeTransportError:
		return "TransportError"
	case CodeUnexpected:
		return "Unexpected"
	default:
		return fmt.Sprintf("FailureCode(%d)", int(c))
	}
}

// SessionError is the classified error type every failure surfaces as. The
// underlying cause is always preserved for errors.Is/As.
type SessionError struct {
	Err    error
	Reason string
	Code   FailureCode
}

func (e *SessionError) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return e.Code.String()
	}
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// newSessionError builds a classified error around a cause.
func newSessionError(code FailureCode, err error) *SessionError {
	return &SessionError{Code: code, Err: err}
}

// newSessionErrorf builds a classified error with a formatted reason.
func newSessionErrorf(code FailureCode, err error, format string, args ...any) *SessionError {
	return &SessionError{Code: code, Reason: fmt.Sprintf(format, args...), Err: err}
}

// AsSessionError extracts the classified error, if any.
func AsSessionError(err error) (*SessionError, bool) {
	var se *SessionError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// CodeOf returns the failure code carried by err, or CodeUnexpected when the
// error is unclassified.
func CodeOf(err error) FailureCode {
	if se, ok := AsSessionError(err); ok {
		return se.Code
	}
	return CodeUnexpected
}

// classifyInvalidation maps a hardware "session invalidated" error onto the
// failure taxonomy. Self-caused invalidations never reach this point; they
// are swallowed by the attempt's expected-invalidation flag.
func classifyInvalidation(err error) FailureCode {
	switch {
	case errors.Is(err, ErrReaderCanceled), errors.Is(err, ErrReaderSessionEnded):
		return CodeUserCanceled
	case errors.Is(err, ErrReaderTimeout):
		return CodeTimeOut
	case errors.Is(err, ErrTagConnectionLost):
		return CodeConnectionError
	default:
		return CodeUnexpected
	}
}

// classifyTransceive maps a connect/transceive error onto the taxonomy.
// Physical proximity loss is the expected failure mode here.
func classifyTransceive(err error) FailureCode {
	switch {
	case errors.Is(err, ErrTagConnectionLost), errors.Is(err, ErrTransport):
		return CodeConnectionError
	case errors.Is(err, ErrReaderTimeout):
		return CodeTimeOut
	case errors.Is(err, ErrReaderCanceled):
		return CodeUserCanceled
	case errors.Is(err, ErrChannelClosed), errors.Is(err, ErrReaderSessionEnded):
		return CodeChannelClosed
	default:
		return CodeConnectionError
	}
}
