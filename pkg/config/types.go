// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"runtime"

	"github.com/AleutianAI/fleetstress/pkg/aggregate"
)

// FleetstressConfig is the root configuration for a stress-metrics run.
type FleetstressConfig struct {
	// Source: where telemetry logs are fetched from
	Source SourceConfig `yaml:"source"`

	// Pipeline: ingestion pool sizing and batch limits
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Stress: extractor tunables
	Stress StressConfig `yaml:"stress"`

	// Risk: scorer weights and reference ceilings
	Risk aggregate.RiskConfig `yaml:"risk"`

	// Output: summary, aggregate, and report destinations
	Output OutputConfig `yaml:"output"`

	// Logging: log level and optional file destination
	Logging LoggingConfig `yaml:"logging"`
}

type SourceConfig struct {
	// Type selects the backing store: "gcs", "s3", or "local".
	Type string `yaml:"type" validate:"oneof=gcs s3 local"`

	// Bucket names the GCS bucket or S3 bucket. Unused for local.
	Bucket string `yaml:"bucket,omitempty"`

	// Prefix restricts listing to keys under this prefix.
	Prefix string `yaml:"prefix,omitempty"`

	// SAKeyPath points at a GCS service account key. Empty means
	// application default credentials.
	SAKeyPath string `yaml:"sa_key_path,omitempty"`

	// S3 endpoint settings (MinIO-compatible).
	S3Endpoint  string `yaml:"s3_endpoint,omitempty"`
	S3AccessKey string `yaml:"s3_access_key,omitempty"`
	S3SecretKey string `yaml:"s3_secret_key,omitempty"`
	S3UseSSL    bool   `yaml:"s3_use_ssl,omitempty"`

	// LocalDir is the directory tree for type "local".
	LocalDir string `yaml:"local_dir,omitempty"`
}

type PipelineConfig struct {
	// Workers sizes the ingestion pool. 0 means one per CPU.
	Workers int `yaml:"workers" validate:"gte=0"`

	// MaxLogs caps how many logs a batch processes. 0 means unlimited.
	MaxLogs int `yaml:"max_logs" validate:"gte=0"`

	// Vehicles is a comma- or space-separated vehicle filter. Empty means
	// all vehicles.
	Vehicles string `yaml:"vehicles,omitempty"`
}

type StressConfig struct {
	// ActuatorThresholds are the normalized output levels timed per motor.
	ActuatorThresholds []float64 `yaml:"actuator_thresholds" validate:"dive,gte=0,lte=1"`

	// SensorRangeG is the accelerometer full-scale range in g, used by the
	// retroactive clipping fallback.
	SensorRangeG float64 `yaml:"sensor_range_g" validate:"gt=0"`

	// PinnedVarianceTolerance is the rolling-variance bound below which a
	// high, flat signal counts as pinned.
	PinnedVarianceTolerance float64 `yaml:"pinned_variance_tolerance" validate:"gt=0"`
}

type OutputConfig struct {
	// SummaryPath is the per-log summary CSV.
	SummaryPath string `yaml:"summary_path" validate:"required"`

	// AggregatePath is the per-vehicle aggregate CSV.
	AggregatePath string `yaml:"aggregate_path" validate:"required"`

	// ReportPath is the markdown fleet report. Empty disables the report.
	ReportPath string `yaml:"report_path,omitempty"`

	// Resume appends to an existing summary instead of truncating it.
	Resume bool `yaml:"resume"`
}

type LoggingConfig struct {
	// Level can be "debug", "info", "warn", or "error".
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Dir enables file logging when set. Supports ~ expansion.
	Dir string `yaml:"dir,omitempty"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`

	// Quiet disables stderr output.
	Quiet bool `yaml:"quiet"`
}

// DefaultConfig returns a configuration suitable for a first local run.
func DefaultConfig() FleetstressConfig {
	return FleetstressConfig{
		Source: SourceConfig{
			Type:     "local",
			LocalDir: "ulogs",
		},
		Pipeline: PipelineConfig{
			Workers: runtime.NumCPU(),
		},
		Stress: StressConfig{
			ActuatorThresholds:      []float64{0.8, 0.9, 1.0},
			SensorRangeG:            16.0,
			PinnedVarianceTolerance: 2.0,
		},
		Risk: aggregate.DefaultRiskConfig(),
		Output: OutputConfig{
			SummaryPath:   "flight_stress_summary.csv",
			AggregatePath: "vehicle_stress_aggregate.csv",
			ReportPath:    "fleet_stress_report.md",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
