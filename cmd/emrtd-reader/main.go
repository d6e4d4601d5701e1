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

// emrtd-reader runs one authentication attempt against an identity document
// and reports the advertised PACE protocol and the session outcome. It is a
// plumbing exerciser: the handshake slot is filled with a diagnostic handler
// that performs no key agreement, so only unprotected files are reachable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	emrtd "github.com/ZaparooProject/go-emrtd"
	"github.com/ZaparooProject/go-emrtd/reader/pcsc"
	"github.com/ZaparooProject/go-emrtd/reader/pn532uart"
	"github.com/ZaparooProject/go-emrtd/sessionlog"
)

// Package-level flag variables
var (
	flagBackend    string
	flagPort       string
	flagReader     string
	flagDocNumber  string
	flagBirthDate  string
	flagExpiryDate string
	flagTimeout    time.Duration
	flagKeepActive bool
	flagTrace      string
	flagDebug      bool
)

func init() {
	flag.StringVar(&flagBackend, "backend", "pcsc", "Reader backend: pcsc or pn532uart")
	flag.StringVar(&flagPort, "port", "/dev/ttyUSB0", "Serial port for the pn532uart backend")
	flag.StringVar(&flagReader, "reader", "", "PC/SC reader name (first attached if empty)")
	flag.StringVar(&flagDocNumber, "doc", "", "Document number from the MRZ")
	flag.StringVar(&flagBirthDate, "birth", "", "Date of birth, YYYY-MM-DD")
	flag.StringVar(&flagExpiryDate, "expiry", "", "Date of expiry, YYYY-MM-DD")
	flag.DurationVar(&flagTimeout, "timeout", 30*time.Second, "Give up when no document shows up in time")
	flag.BoolVar(&flagKeepActive, "keep", false, "Keep the session open and issue a probe read through the channel")
	flag.StringVar(&flagTrace, "trace", "", "Write a CBOR event trail to this file")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

// diagnosticHandler fills the handshake slot without any key agreement. It
// reports what the document advertises and succeeds, leaving the link in
// plain mode.
type diagnosticHandler struct{}

func (diagnosticHandler) DoHandshake(_ context.Context, _ emrtd.TransceiveFunc, access *emrtd.CardAccess, _ emrtd.AccessKey) error {
	if info, ok := access.PreferredPACE(); ok {
		fmt.Printf("Document advertises %s (version %d, parameter set %d)\n",
			info.Name(), info.Version, info.ParameterID)
	}
	return nil
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	key, err := buildAccessKey()
	if err != nil {
		return err
	}

	logger, cleanup, err := buildLogger()
	if err != nil {
		return err
	}
	defer cleanup()

	reader, err := buildReader(logger)
	if err != nil {
		return err
	}

	session, err := emrtd.NewSession(emrtd.SessionConfig{
		Reader:  reader,
		Handler: diagnosticHandler{},
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Println("Hold the document against the reader...")
	channel, err := session.BeginAuthentication(ctx, key, emrtd.SessionOptions{
		KeepSessionActive: flagKeepActive,
	})
	if err != nil {
		var se *emrtd.SessionError
		if errors.As(err, &se) {
			return fmt.Errorf("attempt failed (%s): %w", se.Code, err)
		}
		return err
	}

	fmt.Println("Session established.")
	if flagKeepActive {
		defer channel.Close()
		if err := probeChannel(ctx, channel); err != nil {
			return err
		}
	}
	return nil
}

// probeChannel issues a SELECT through the returned channel to show it works.
func probeChannel(ctx context.Context, channel *emrtd.SecuredChannel) error {
	resp, err := channel.Send(ctx, emrtd.SelectMasterFile())
	if err != nil {
		return fmt.Errorf("probing channel: %w", err)
	}
	fmt.Printf("Probe SELECT answered %s (max read %d bytes)\n", resp.SW, channel.MaxReadAmount())
	return nil
}

func buildAccessKey() (emrtd.AccessKey, error) {
	if flagDocNumber == "" || flagBirthDate == "" || flagExpiryDate == "" {
		return emrtd.AccessKey{}, errors.New("-doc, -birth and -expiry are required")
	}
	birth, err := time.Parse("2006-01-02", flagBirthDate)
	if err != nil {
		return emrtd.AccessKey{}, fmt.Errorf("parsing -birth: %w", err)
	}
	expiry, err := time.Parse("2006-01-02", flagExpiryDate)
	if err != nil {
		return emrtd.AccessKey{}, fmt.Errorf("parsing -expiry: %w", err)
	}
	return emrtd.NewAccessKey(flagDocNumber, birth, expiry), nil
}

func buildLogger() (sessionlog.Logger, func(), error) {
	var loggers sessionlog.MultiLogger
	cleanup := func() {}

	if flagDebug {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, sessionlog.NewSlogAdapter(slog.New(handler)))
	}
	if flagTrace != "" {
		f, err := os.Create(flagTrace)
		if err != nil {
			return nil, nil, fmt.Errorf("creating trace file: %w", err)
		}
		fl, err := sessionlog.NewFileLogger(f)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("creating trace logger: %w", err)
		}
		loggers = append(loggers, fl)
		cleanup = func() { _ = f.Close() }
	}

	if len(loggers) == 0 {
		return sessionlog.NoopLogger{}, cleanup, nil
	}
	return loggers, cleanup, nil
}

func buildReader(logger sessionlog.Logger) (emrtd.ReaderSession, error) {
	switch flagBackend {
	case "pcsc":
		cfg := pcsc.DefaultConfig()
		cfg.ReaderName = flagReader
		cfg.Timeout = flagTimeout
		cfg.Logger = logger
		return pcsc.New(cfg), nil
	case "pn532uart":
		cfg := pn532uart.DefaultConfig(flagPort)
		cfg.Timeout = flagTimeout
		cfg.Logger = logger
		return pn532uart.New(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", flagBackend)
	}
}
