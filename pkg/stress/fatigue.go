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

	"github.com/AleutianAI/fleetstress/pkg/ulog"
)

// PeakAccelThreshold is the magnitude (m/s²) above which a sample counts as
// a transient spike.
const PeakAccelThreshold = 100.0

// imuStatusTopic carries cumulative per-axis clipping counts accumulated
// over the whole flight, one value per sample.
const imuStatusTopic = "vehicle_imu_status"

const gravity = 9.80665 // m/s² per g

// clipThresholdPercent: retroactive detection flags samples at or beyond
// 99.9% of the sensor's measurable range.
const clipThresholdPercent = 0.999

// FatigueOptions are the empirically chosen constants of the retroactive
// clipping heuristic. They are configuration, not derived invariants.
type FatigueOptions struct {
	// SensorRangeG is the accelerometer's measurable range in g.
	// Common parts are ±16 g (~157 m/s²) and ±32 g (~314 m/s²).
	SensorRangeG float64

	// PinnedVarianceTolerance is the rolling-window variance (m/s²) below
	// which a high-magnitude axis is considered pinned at its limit.
	PinnedVarianceTolerance float64
}

// DefaultFatigueOptions matches the fleet's common ±16 g sensor fit.
func DefaultFatigueOptions() FatigueOptions {
	return FatigueOptions{
		SensorRangeG:            16.0,
		PinnedVarianceTolerance: 2.0,
	}
}

// clipResult is one strategy's clipping measurement. Strategies that cannot
// produce data report ok=false so the precedence chain can proceed.
type clipResult struct {
	timeS  float64
	events float64
}

// ComputeFatigue derives peak-transient and clipping metrics from a log.
//
// Clipping uses a precedence chain across sensor instances and detection
// strategies:
//
//  1. Per-sample clip counters on each sensor_accel instance, keeping the
//     instance reporting the most events (tie: longer duration).
//  2. Cumulative per-axis counts from vehicle_imu_status (final sample per
//     axis; no duration derivable).
//  3. Choose-best between 1 and 2: higher event count, tie broken by
//     duration.
//  4. Retroactive fallback on the most-sampled instance: absolute range
//     threshold crossing or the pinned-value saturation heuristic.
//
// Every strategy tolerates missing fields by reporting no result. When the
// whole chain produces nothing, both clipping metrics are zero; zero is a
// valid measurement, not an error.
func ComputeFatigue(log *ulog.DecodedLog, opts FatigueOptions) FatigueMetrics {
	var out FatigueMetrics

	instances := log.Instances(AccelTopic)
	if len(instances) == 0 {
		return out
	}

	canonical := log.Canonical(AccelTopic)
	if ts, mag := accelMagnitude(canonical); len(ts) >= 2 {
		for _, m := range mag {
			if m > PeakAccelThreshold {
				out.PeakEvents++
			}
		}
	}

	counterRes, counterOK := bestCounterResult(instances)
	statusRes, statusOK := clipFromIMUStatus(log)
	res, ok := chooseBest(counterRes, counterOK, statusRes, statusOK)
	if !ok {
		res, ok = clipRetroactive(canonical, opts)
	}
	if ok {
		out.ClippingTime = res.timeS
		out.ClippingEvents = res.events
	}
	return out
}

// bestCounterResult evaluates the clip-counter strategy independently for
// every sensor instance and keeps the worst case: highest event count,
// ties broken by longer clipping time. Using the worst case avoids
// under-reporting when redundant accelerometers disagree.
func bestCounterResult(instances []*ulog.Channel) (clipResult, bool) {
	var best clipResult
	found := false
	for _, ch := range instances {
		res, ok := clipFromCounters(ch)
		if !ok {
			continue
		}
		if !found || res.events > best.events ||
			(res.events == best.events && res.timeS > best.timeS) {
			best = res
			found = true
		}
	}
	return best, found
}

// clipFromCounters reads per-sample per-axis clip counts from one sensor
// instance. Events are the counts summed across axes and samples; duration
// is the summed interval time where any axis reports a nonzero count.
func clipFromCounters(ch *ulog.Channel) (clipResult, bool) {
	x, okX := ch.FirstField("clip_counter[0]", "clip_counter_0", "clip_counter_x")
	y, okY := ch.FirstField("clip_counter[1]", "clip_counter_1", "clip_counter_y")
	z, okZ := ch.FirstField("clip_counter[2]", "clip_counter_2", "clip_counter_z")
	if !okX || !okY || !okZ {
		return clipResult{}, false
	}

	ts := ch.Timestamps()
	n := min(len(x), len(y), len(z))
	if len(ts) > 0 {
		n = min(n, len(ts))
	}
	if n == 0 {
		return clipResult{}, false
	}

	var res clipResult
	for i := 0; i < n; i++ {
		res.events += x[i] + y[i] + z[i]
	}
	if len(ts) >= 2 && n >= 2 {
		for i := 0; i+1 < n; i++ {
			if x[i] > 0 || y[i] > 0 || z[i] > 0 {
				res.timeS += (ts[i+1] - ts[i]) / microsPerSecond
			}
		}
	}
	return res, true
}

// clipFromIMUStatus reads the cumulative per-axis clipping counters from
// the first vehicle_imu_status instance. The counters accumulate over the
// flight, so the final sample per axis is the flight total. Duration is not
// derivable from this source and stays zero.
func clipFromIMUStatus(log *ulog.DecodedLog) (clipResult, bool) {
	instances := log.Instances(imuStatusTopic)
	if len(instances) == 0 {
		return clipResult{}, false
	}
	ch := instances[0]

	var total float64
	for axis := 0; axis < 3; axis++ {
		series, ok := ch.FirstField(
			fmt.Sprintf("accel_clipping[%d]", axis),
			fmt.Sprintf("accel_clipping_%d", axis),
		)
		if !ok || len(series) == 0 {
			return clipResult{}, false
		}
		total += series[len(series)-1]
	}
	return clipResult{events: total}, true
}

// chooseBest prefers the result with the higher event count, ties broken by
// the higher duration. A single available result wins by default.
func chooseBest(a clipResult, aOK bool, b clipResult, bOK bool) (clipResult, bool) {
	switch {
	case !aOK && !bOK:
		return clipResult{}, false
	case !bOK:
		return a, true
	case !aOK:
		return b, true
	case a.events > b.events:
		return a, true
	case b.events > a.events:
		return b, true
	case a.timeS >= b.timeS:
		return a, true
	default:
		return b, true
	}
}

// clipRetroactive detects clipping from the scaled acceleration values of
// the most-sampled instance, used when no counter source exists anywhere in
// the log.
//
// A sample clips when any axis satisfies either:
//   - |value| >= clipThresholdPercent of the sensor range, or
//   - |value| > 90% of that limit while the centered rolling-window
//     variance sits below the pinned-value tolerance (the sensor output is
//     stuck at its rail).
func clipRetroactive(ch *ulog.Channel, opts FatigueOptions) (clipResult, bool) {
	if ch == nil {
		return clipResult{}, false
	}
	ts := ch.Timestamps()
	x, okX := ch.Field("x")
	y, okY := ch.Field("y")
	z, okZ := ch.Field("z")
	if ts == nil || !okX || !okY || !okZ {
		return clipResult{}, false
	}
	n := min(len(ts), len(x), len(y), len(z))
	if n < 2 {
		return clipResult{}, false
	}

	limit := opts.SensorRangeG * gravity * clipThresholdPercent
	pinnedBound := limit * 0.9

	axes := [3][]float64{absSeries(x, n), absSeries(y, n), absSeries(z, n)}
	clipMask := make([]bool, n)
	for _, axis := range axes {
		for i, v := range axis {
			if v >= limit {
				clipMask[i] = true
			}
		}
	}

	if n >= 10 {
		window := min(10, n/10)
		if window >= 3 {
			for _, axis := range axes {
				variance := rollingVariance(axis, window)
				for i, v := range axis {
					if v > pinnedBound && variance[i] < opts.PinnedVarianceTolerance {
						clipMask[i] = true
					}
				}
			}
		}
	}

	var res clipResult
	for i := 0; i < n; i++ {
		if clipMask[i] {
			res.events++
			if i+1 < n {
				res.timeS += (ts[i+1] - ts[i]) / microsPerSecond
			}
		}
	}
	return res, true
}

func absSeries(s []float64, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Abs(s[i])
	}
	return out
}

// rollingVariance computes a centered rolling-window population variance.
// Windows are clamped at the series edges.
func rollingVariance(s []float64, window int) []float64 {
	out := make([]float64, len(s))
	if len(s) < window {
		return out
	}
	half := window / 2
	for i := range s {
		start := max(0, i-half)
		end := min(len(s), i+half+1)
		if end-start < 2 {
			continue
		}
		var sum float64
		for j := start; j < end; j++ {
			sum += s[j]
		}
		mean := sum / float64(end-start)
		var sq float64
		for j := start; j < end; j++ {
			d := s[j] - mean
			sq += d * d
		}
		out[i] = sq / float64(end-start)
	}
	return out
}
