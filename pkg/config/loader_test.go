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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, cfg FleetstressConfig) string {
	t.Helper()
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "fleetstress.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, Validate(&cfg))
	assert.Equal(t, "local", cfg.Source.Type)
	assert.Greater(t, cfg.Pipeline.Workers, 0)
	assert.Equal(t, []float64{0.8, 0.9, 1.0}, cfg.Stress.ActuatorThresholds)
}

func TestLoadFile_RoundTrip(t *testing.T) {
	want := DefaultConfig()
	want.Pipeline.Workers = 2
	want.Pipeline.MaxLogs = 10
	want.Pipeline.Vehicles = "EL-040"
	path := writeConfig(t, want)

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetstress.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: [not a map"), 0o644))
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *FleetstressConfig)
	}{
		{"negative workers", func(c *FleetstressConfig) { c.Pipeline.Workers = -1 }},
		{"threshold above one", func(c *FleetstressConfig) { c.Stress.ActuatorThresholds = []float64{1.5} }},
		{"unknown source type", func(c *FleetstressConfig) { c.Source.Type = "ftp" }},
		{"unknown log level", func(c *FleetstressConfig) { c.Logging.Level = "verbose" }},
		{"zero risk ceiling", func(c *FleetstressConfig) { c.Risk.VibrationCeiling = 0 }},
		{"missing summary path", func(c *FleetstressConfig) { c.Output.SummaryPath = "" }},
		{"gcs without bucket", func(c *FleetstressConfig) { c.Source.Type = "gcs"; c.Source.Bucket = "" }},
		{"local without dir", func(c *FleetstressConfig) { c.Source.LocalDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, Validate(&cfg))
		})
	}
}

func TestCreateDefault_WritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fleetstress.yaml")
	require.NoError(t, createDefault(path))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), got)
}
