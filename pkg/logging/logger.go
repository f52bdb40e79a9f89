// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for depscope components.
//
// Built on Go's standard slog package. Output goes to stderr following
// Unix CLI conventions: human-readable text when stderr is a terminal,
// JSON when it is redirected (so log shippers get machine-parseable
// lines without configuration).
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("session created", "session_id", id)
//
// # Security Considerations
//
// This package does NOT redact sensitive data. Callers must ensure
// tokens and secrets are not logged.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Format selects the output encoding.
type Format string

const (
	// FormatAuto picks text on a terminal, JSON otherwise.
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum severity: "debug", "info", "warn", "error".
	// Defaults to info.
	Level string

	// Format selects the encoding. Defaults to FormatAuto.
	Format Format

	// Service is attached as a "service" attribute on every record.
	Service string

	// Output overrides the destination. Defaults to stderr. When set,
	// FormatAuto resolves to JSON.
	Output io.Writer
}

// New builds a slog.Logger from the config.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	tty := false
	if out == nil {
		out = os.Stderr
		tty = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	format := cfg.Format
	if format == "" || format == FormatAuto {
		if tty {
			format = FormatText
		} else {
			format = FormatJSON
		}
	}

	var handler slog.Handler
	if format == FormatText {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With(slog.String("service", cfg.Service))
	}
	return logger
}

// Default returns an info-level logger with automatic format selection.
func Default() *slog.Logger {
	return New(Config{})
}

// Setup installs a logger built from the config as the process-wide
// slog default and returns it.
func Setup(cfg Config) *slog.Logger {
	logger := New(cfg)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
