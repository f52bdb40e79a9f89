// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // deliberately passing nil
	if _, err := Init(nil, DefaultConfig()); !errors.Is(err, ErrNilContext) {
		t.Errorf("expected ErrNilContext, got %v", err)
	}
}

func TestInit_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInit_UnknownExporters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "carrier-pigeon"
	cfg.MetricExporter = "none"
	if _, err := Init(context.Background(), cfg); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("expected ErrUnknownExporter for traces, got %v", err)
	}

	cfg.TraceExporter = "none"
	cfg.MetricExporter = "carrier-pigeon"
	if _, err := Init(context.Background(), cfg); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("expected ErrUnknownExporter for metrics, got %v", err)
	}
}

func TestInit_StdoutExporters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "stdout"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestMetricsHandler_OnlyWithPrometheus(t *testing.T) {
	prometheusHandlerMu.Lock()
	prometheusHandler = nil
	prometheusHandlerMu.Unlock()

	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "stdout"
	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("init stdout: %v", err)
	}
	defer shutdown(context.Background())

	// Callers must treat a nil handler as "no scrape endpoint".
	if MetricsHandler() != nil {
		t.Fatal("stdout metrics must not expose a scrape handler")
	}

	cfg.MetricExporter = "prometheus"
	shutdown2, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("init prometheus: %v", err)
	}
	defer shutdown2(context.Background())

	if MetricsHandler() == nil {
		t.Fatal("prometheus metrics must expose a scrape handler")
	}
}
