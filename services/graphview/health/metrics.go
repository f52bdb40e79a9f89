// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package health

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for health analysis operations.
var (
	tracer = otel.Tracer("depscope.health")
	meter  = otel.Meter("depscope.health")
)

var (
	analysisLatency metric.Float64Histogram
	analysisTotal   metric.Int64Counter
	issueCounts     metric.Int64Histogram
	qualityScores   metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisLatency, err = meter.Float64Histogram(
			"health_analysis_duration_seconds",
			metric.WithDescription("Duration of health analysis runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisTotal, err = meter.Int64Counter(
			"health_analysis_total",
			metric.WithDescription("Total number of health analyses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		issueCounts, err = meter.Int64Histogram(
			"health_issue_count",
			metric.WithDescription("Distribution of issue counts per analysis"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		qualityScores, err = meter.Float64Histogram(
			"health_quality_score",
			metric.WithDescription("Distribution of code quality scores"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startAnalysisSpan creates a span for a health analysis run.
func startAnalysisSpan(ctx context.Context, nodes, edges int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "health.Analyzer.Analyze",
		trace.WithAttributes(
			attribute.Int("health.nodes", nodes),
			attribute.Int("health.edges", edges),
		),
	)
}

// recordAnalysisMetrics records metrics for one analysis run.
func recordAnalysisMetrics(ctx context.Context, duration time.Duration, report *Report) {
	if err := initMetrics(); err != nil {
		return
	}
	analysisLatency.Record(ctx, duration.Seconds())
	analysisTotal.Add(ctx, 1)
	issueCounts.Record(ctx, int64(report.TotalIssues))
	qualityScores.Record(ctx, report.CodeQualityScore)
}
