// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source abstracts where telemetry logs live.
//
// A Source yields readable byte streams addressed by key. The pipeline only
// depends on this contract; concrete adapters exist for GCS, S3-compatible
// object stores, and local directories. Retry policy on fetch failures
// belongs to adapters, not to the pipeline: a failed fetch is a skipped log.
//
// The package also owns vehicle identity: inferring a vehicle identifier
// from a storage key and matching keys against a user-supplied vehicle
// filter.
package source

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Source lists and fetches raw telemetry logs.
type Source interface {
	// List returns the keys under the given prefix, in the store's natural
	// order. Keys addressing directories are not returned.
	List(ctx context.Context, prefix string) ([]string, error)

	// Fetch opens the log addressed by key. The caller closes the stream.
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
}

// logSuffix restricts ingestion to ULog container files.
const logSuffix = ".ulg"

// IsLogKey reports whether a key addresses a telemetry log.
func IsLogKey(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), logSuffix)
}

// vehiclePattern recognizes a vehicle identifier embedded in a storage key:
// two letters, a hyphen or underscore, digits (e.g. "EL-040", "el_7").
// Underscore counts as a word character to regexp \b, so the boundaries are
// spelled out.
var vehiclePattern = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])([a-z]{2})[-_](\d+)`)

// vehicleDigits extracts the numeric portion of a filter token, tolerating
// a missing separator ("EL040").
var vehicleDigits = regexp.MustCompile(`(?i)^[a-z]{2}[-_]?(\d+)$`)

// InferVehicleID extracts a canonical vehicle identifier from a storage
// key, or "" when no recognizable identifier is present.
//
// Example: "ulogs/el_040/flight_01.ulg" -> "EL-040".
func InferVehicleID(key string) string {
	m := vehiclePattern.FindStringSubmatch(key)
	if m == nil {
		return ""
	}
	return CanonicalVehicleID(m[1] + "-" + m[2])
}

// CanonicalVehicleID normalizes an identifier for grouping: uppercase with
// hyphen separators. Grouping correctness depends on every caller
// canonicalizing before comparison.
func CanonicalVehicleID(id string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(id), "_", "-"))
}

// ParseVehicleFilter splits a comma- or space-separated vehicle list into
// tokens. Returns nil for a blank input, meaning "all vehicles".
func ParseVehicleFilter(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// KeyMatchesVehicle reports whether a key matches any vehicle in the
// filter. An empty filter matches everything. Each token matches either as
// a case-insensitive substring or by its normalized digits (so "EL-040",
// "el_040", and "EL040" all hit keys containing "el-040").
func KeyMatchesVehicle(key string, vehicles []string) bool {
	if len(vehicles) == 0 {
		return true
	}
	keyLower := strings.ToLower(key)
	for _, vehicle := range vehicles {
		if strings.Contains(keyLower, strings.ToLower(vehicle)) {
			return true
		}
		m := vehicleDigits.FindStringSubmatch(vehicle)
		if m == nil {
			continue
		}
		re, err := regexp.Compile(fmt.Sprintf(`(?i)(?:^|[^a-z0-9])[a-z]{2}[-_]?%s(?:[^0-9]|$)`, regexp.QuoteMeta(m[1])))
		if err != nil {
			continue
		}
		if re.MatchString(key) {
			return true
		}
	}
	return false
}
