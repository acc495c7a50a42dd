// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stress

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/fleetstress/pkg/ulog"
)

// DefaultActuatorThresholds are the normalized output levels the analytics
// team tracks: high output, very high output, and full saturation.
var DefaultActuatorThresholds = []float64{0.8, 0.9, 1.0}

// maxMotorIndex restricts channel discovery to a 4-motor airframe.
const maxMotorIndex = 3

// saturationAbsTol treats outputs within this distance of 1.0 as saturated,
// absorbing float32 rounding in the flight stack's mixer output.
const saturationAbsTol = 1e-4

// actuatorTopics are the dataset names that commonly carry motor output
// data, across flight stack versions.
var actuatorTopics = []string{
	"actuator_outputs",
	"actuator_motors",
	"fmu_outputs",
	"actuator_controls_0",
}

// channelPrefixes are the field naming conventions for per-motor series:
// "output[2]", "control[0]", or "output3".
var channelPrefixes = []string{"output", "control"}

// ComputeActuatorSaturation computes, per motor channel, the cumulative
// seconds spent at or above each threshold.
//
// The most-sampled candidate actuator dataset is selected; per-motor series
// are discovered by naming convention and restricted to motor indices 0-3.
// Sample series are aligned with the inter-sample interval series by the
// shorter length, and non-finite entries are masked out.
//
// Inputs:
//   - log: The decoded log.
//   - thresholds: Normalized output thresholds; nil means
//     DefaultActuatorThresholds. Values are deduplicated and sorted.
//
// Outputs:
//   - map: "motor{ch}_time_above_{label}_s" -> seconds. Empty (not an
//     error) when no dataset or no recognizable channel exists.
func ComputeActuatorSaturation(log *ulog.DecodedLog, thresholds []float64) map[string]float64 {
	if thresholds == nil {
		thresholds = DefaultActuatorThresholds
	}
	thresholds = normalizeThresholds(thresholds)

	ch := log.CanonicalAny(actuatorTopics...)
	if ch == nil {
		return map[string]float64{}
	}
	ts := ch.Timestamps()
	if len(ts) < 2 {
		return map[string]float64{}
	}
	dt := make([]float64, len(ts)-1)
	for i := range dt {
		dt[i] = (ts[i+1] - ts[i]) / microsPerSecond
	}

	channels := discoverMotorChannels(ch)
	if len(channels) == 0 {
		return map[string]float64{}
	}

	results := make(map[string]float64, len(channels)*len(thresholds))
	for _, motorIdx := range sortedKeys(channels) {
		values := channels[motorIdx]
		n := min(len(values), len(dt))
		if n == 0 {
			continue
		}
		for _, threshold := range thresholds {
			saturation := math.Abs(threshold-1.0) <= saturationAbsTol
			var duration float64
			for i := 0; i < n; i++ {
				if math.IsNaN(values[i]) || math.IsInf(values[i], 0) ||
					math.IsNaN(dt[i]) || math.IsInf(dt[i], 0) {
					continue
				}
				above := values[i] >= threshold
				if saturation {
					above = values[i] >= 1.0-saturationAbsTol
				}
				if above {
					duration += dt[i]
				}
			}
			key := fmt.Sprintf("motor%d_time_above_%s_s", motorIdx, thresholdLabel(threshold))
			results[key] = duration
		}
	}
	return results
}

// discoverMotorChannels extracts per-motor series from the dataset's fields
// using the supported naming conventions, keeping indices 0..maxMotorIndex.
func discoverMotorChannels(ch *ulog.Channel) map[int][]float64 {
	channels := make(map[int][]float64)
	for name, values := range ch.Fields {
		idx, ok := motorIndex(name)
		if !ok || idx < 0 || idx > maxMotorIndex || len(values) == 0 {
			continue
		}
		if _, dup := channels[idx]; dup {
			continue
		}
		channels[idx] = values
	}
	return channels
}

// motorIndex parses a field name of the form "output[3]", "control[0]", or
// "output3" into its motor index.
func motorIndex(name string) (int, bool) {
	for _, prefix := range channelPrefixes {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := name[len(prefix):]
		if strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]") {
			if n, err := strconv.Atoi(rest[1 : len(rest)-1]); err == nil {
				return n, true
			}
		}
		if rest != "" && isDigits(rest) {
			n, _ := strconv.Atoi(rest)
			return n, true
		}
	}
	return 0, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// normalizeThresholds deduplicates and sorts ascending.
func normalizeThresholds(thresholds []float64) []float64 {
	seen := make(map[float64]bool, len(thresholds))
	out := make([]float64, 0, len(thresholds))
	for _, t := range thresholds {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Float64s(out)
	return out
}

// thresholdLabel renders a threshold for use in a column key: one decimal
// for whole values ("1_0"), shortest form otherwise ("0_8"), '.' -> '_'.
func thresholdLabel(t float64) string {
	var s string
	if t == math.Trunc(t) {
		s = strconv.FormatFloat(t, 'f', 1, 64)
	} else {
		s = strconv.FormatFloat(t, 'g', -1, 64)
	}
	return strings.ReplaceAll(s, ".", "_")
}

func sortedKeys(m map[int][]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
