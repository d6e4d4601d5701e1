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

package sessionlog

import (
	"context"
	"log/slog"
)

// SlogAdapter forwards events to a structured logger. Failures and guards log
// at warn level, everything else at debug.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps an slog logger; nil uses slog.Default().
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// Log implements Logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []any{
		slog.String("attempt", event.AttemptID),
		slog.String("category", event.Category.String()),
	}
	switch event.Category {
	case CategoryState:
		attrs = append(attrs,
			slog.String("from", event.FromState),
			slog.String("to", event.ToState))
	case CategoryFailure:
		attrs = append(attrs, slog.String("code", event.Code))
	case CategoryPrompt, CategoryGuard, CategoryCommand:
	}
	if event.Detail != "" {
		attrs = append(attrs, slog.String("detail", event.Detail))
	}

	level := slog.LevelDebug
	if event.Category == CategoryFailure || event.Category == CategoryGuard {
		level = slog.LevelWarn
	}
	a.logger.Log(context.Background(), level, "session event", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
