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
)

// PACEHandler performs the password authenticated connection establishment
// against the connected tag. The key agreement and secure-messaging key
// derivation are entirely the handler's business; this layer only guarantees
// it is invoked at most once per discovered tag, after the card access
// metadata has been read.
type PACEHandler interface {
	// DoHandshake runs the handshake using the advertised protocol from
	// access and the password material in key, exchanging frames through
	// transceive. A non-nil error should be (or wrap) a *HandshakeError so
	// the reason survives classification.
	DoHandshake(ctx context.Context, transceive TransceiveFunc, access *CardAccess, key AccessKey) error
}

// TransceiveFunc sends one raw frame to the tag. The session hands the
// handshake a func bound to the hardware link rather than the full reader.
type TransceiveFunc func(ctx context.Context, request []byte) ([]byte, error)

// HandshakeError carries the collaborator's failure reason, e.g. a mutual
// authentication mismatch caused by a wrong access key.
type HandshakeError struct {
	Err    error
	Reason string
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("handshake failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("handshake failed: %s", e.Reason)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// NewHandshakeError builds a HandshakeError with a reason and optional cause.
func NewHandshakeError(reason string, err error) *HandshakeError {
	return &HandshakeError{Reason: reason, Err: err}
}
