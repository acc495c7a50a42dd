// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stress extracts per-log mechanical stress metrics from decoded
// flight-controller telemetry: vibration exposure binning, actuator
// saturation timing, and fatigue/clipping detection.
//
// Each extractor is a pure function of a decoded log. Missing topics or
// fields yield zero-valued metrics, never errors; only metrics that compute
// to non-finite or negative values are rejected, by Validate.
package stress

// Metric column keys shared with the summary store and aggregator.
const (
	KeyTimeLT30   = "accel_time_lt_30_s"
	KeyTime30to50 = "accel_time_30_50_s"
	KeyTime50to70 = "accel_time_50_70_s"
	KeyTimeGT70   = "accel_time_gt_70_s"
	KeyTotalTime  = "accel_total_time_s"

	KeyPeakEvents     = "peak_accel_events"
	KeyClippingTime   = "accel_clipping_time_s"
	KeyClippingEvents = "accel_clipping_events"
)

// VibrationBins is time-weighted accelerometer exposure split across four
// magnitude buckets (m/s²). The buckets partition TotalTime: no overlap, no
// gap beyond floating error.
type VibrationBins struct {
	TimeLT30   float64 // magnitude < 30
	Time30to50 float64 // 30 <= magnitude < 50
	Time50to70 float64 // 50 <= magnitude < 70
	TimeGT70   float64 // magnitude >= 70
	TotalTime  float64
}

// FatigueMetrics are the derived indicators of cumulative mechanical stress.
type FatigueMetrics struct {
	// PeakEvents counts magnitude samples above the transient-spike
	// threshold on the canonical accelerometer channel.
	PeakEvents float64

	// ClippingTime is the cumulative seconds the accelerometer spent
	// saturated. Zero when only cumulative counters were available.
	ClippingTime float64

	// ClippingEvents counts clipped samples (or cumulative clip counts,
	// depending on which detection strategy produced the result).
	ClippingEvents float64
}

// Record is the complete per-log metric payload: every metric derived from
// one successfully processed log. Created once per log and read-only
// afterward.
type Record struct {
	// SourceKey is the storage key the log was fetched under.
	SourceKey string

	// VehicleID is the canonicalized vehicle identifier, empty when no
	// identifier could be inferred.
	VehicleID string

	Vibration VibrationBins

	// Actuator maps "motor{ch}_time_above_{label}_s" to seconds. Empty when
	// the log carries no recognizable actuator output dataset.
	Actuator map[string]float64

	Fatigue FatigueMetrics
}

// Metrics flattens the record into the column key space used by the summary
// store. The returned map is freshly allocated.
func (r *Record) Metrics() map[string]float64 {
	m := map[string]float64{
		KeyTimeLT30:   r.Vibration.TimeLT30,
		KeyTime30to50: r.Vibration.Time30to50,
		KeyTime50to70: r.Vibration.Time50to70,
		KeyTimeGT70:   r.Vibration.TimeGT70,
		KeyTotalTime:  r.Vibration.TotalTime,

		KeyPeakEvents:     r.Fatigue.PeakEvents,
		KeyClippingTime:   r.Fatigue.ClippingTime,
		KeyClippingEvents: r.Fatigue.ClippingEvents,
	}
	for k, v := range r.Actuator {
		m[k] = v
	}
	return m
}
