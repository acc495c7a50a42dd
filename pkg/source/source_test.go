// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferVehicleID(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"hyphen separator", "ulogs/EL-040/flight_01.ulg", "EL-040"},
		{"underscore separator", "ulogs/el_7/log.ulg", "EL-7"},
		{"lowercase", "fleet/el-112_2024-06-01.ulg", "EL-112"},
		{"identifier followed by underscore", "ulogs/el_040_b.ulg", "EL-040"},
		{"no identifier", "ulogs/flight_01.ulg", ""},
		{"digits without prefix", "logs/2024/0611.ulg", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferVehicleID(tt.key))
		})
	}
}

func TestCanonicalVehicleID(t *testing.T) {
	assert.Equal(t, "EL-040", CanonicalVehicleID("el_040"))
	assert.Equal(t, "EL-040", CanonicalVehicleID(" EL-040 "))
	assert.Equal(t, "EL-040", CanonicalVehicleID("El-040"))
}

func TestParseVehicleFilter(t *testing.T) {
	assert.Nil(t, ParseVehicleFilter(""))
	assert.Nil(t, ParseVehicleFilter("  ,  "))
	assert.Equal(t, []string{"EL-040", "el_7"}, ParseVehicleFilter("EL-040, el_7"))
	assert.Equal(t, []string{"EL-040", "EL-041"}, ParseVehicleFilter("EL-040 EL-041"))
}

func TestKeyMatchesVehicle(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		vehicles []string
		want     bool
	}{
		{"empty filter matches all", "ulogs/anything.ulg", nil, true},
		{"substring match", "ulogs/EL-040/flight.ulg", []string{"el-040"}, true},
		{"digit match across separators", "ulogs/el_040/flight.ulg", []string{"EL-040"}, true},
		{"digit match without separator", "ulogs/EL040_flight.ulg", []string{"el-040"}, true},
		{"no match", "ulogs/el_041/flight.ulg", []string{"EL-040"}, false},
		{"digits not borrowed from longer id", "ulogs/el_0401/flight.ulg", []string{"EL-040"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyMatchesVehicle(tt.key, tt.vehicles))
		})
	}
}

func TestIsLogKey(t *testing.T) {
	assert.True(t, IsLogKey("flight.ulg"))
	assert.True(t, IsLogKey("FLIGHT.ULG"))
	assert.False(t, IsLogKey("flight.csv"))
	assert.False(t, IsLogKey("flight.ulg.bak"))
}

func TestLocalSource_ListAndFetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "el_040"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "el_040", "b.ulg"), []byte("bb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ulg"), []byte("aa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	src, err := NewLocalSource(dir)
	require.NoError(t, err)

	keys, err := src.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ulg", "el_040/b.ulg"}, keys)

	keys, err = src.List(context.Background(), "el_040/")
	require.NoError(t, err)
	assert.Equal(t, []string{"el_040/b.ulg"}, keys)

	rc, err := src.Fetch(context.Background(), "el_040/b.ulg")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("bb"), data)
}

func TestNewLocalSource_Errors(t *testing.T) {
	_, err := NewLocalSource(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = NewLocalSource(file)
	assert.Error(t, err)
}
