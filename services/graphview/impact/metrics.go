// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package impact

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("depscope.impact")
	meter  = otel.Meter("depscope.impact")
)

var (
	analysisLatency metric.Float64Histogram
	analysisTotal   metric.Int64Counter
	riskScores      metric.Float64Histogram
	dependentCounts metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisLatency, err = meter.Float64Histogram(
			"impact_analysis_duration_seconds",
			metric.WithDescription("Duration of impact analysis runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisTotal, err = meter.Int64Counter(
			"impact_analysis_total",
			metric.WithDescription("Total number of impact analyses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		riskScores, err = meter.Float64Histogram(
			"impact_risk_score",
			metric.WithDescription("Distribution of clamped risk scores"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		dependentCounts, err = meter.Int64Histogram(
			"impact_dependent_count",
			metric.WithDescription("Distribution of dependent set sizes"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startAnalysisSpan creates a span for one impact analysis.
func startAnalysisSpan(ctx context.Context, targetID string, change ChangeType) (context.Context, trace.Span) {
	return tracer.Start(ctx, "impact.Analyzer.Analyze",
		trace.WithAttributes(
			attribute.String("impact.target", targetID),
			attribute.String("impact.change_type", change.String()),
		),
	)
}

// recordAnalysisMetrics records metrics for one analysis run.
func recordAnalysisMetrics(ctx context.Context, duration time.Duration, report *Report) {
	if err := initMetrics(); err != nil {
		return
	}
	analysisLatency.Record(ctx, duration.Seconds())
	analysisTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("risk_level", string(report.RiskLevel))))
	riskScores.Record(ctx, report.RiskScore)
	dependentCounts.Record(ctx, int64(len(report.DirectDependents)+len(report.IndirectDependents)))
}
