// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Log Ingestion
// =============================================================================

var (
	// logsProcessedTotal counts logs that made it all the way into the
	// summary store.
	logsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetstress",
		Subsystem: "pipeline",
		Name:      "logs_processed_total",
		Help:      "Total logs successfully processed into the summary store",
	})

	// logsSkippedTotal counts skipped logs by reason.
	// Labels: reason (fetch, decode, data_quality, unexpected)
	logsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetstress",
		Subsystem: "pipeline",
		Name:      "logs_skipped_total",
		Help:      "Total logs skipped, by reason",
	}, []string{"reason"})

	// logProcessDuration measures per-log fetch-to-validate latency.
	logProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fleetstress",
		Subsystem: "pipeline",
		Name:      "log_process_duration_seconds",
		Help:      "Per-log processing latency in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
)
