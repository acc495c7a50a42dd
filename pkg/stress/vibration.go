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
	"math"

	"github.com/AleutianAI/fleetstress/pkg/ulog"
)

// AccelTopic is the accelerometer topic name in flight logs.
const AccelTopic = "sensor_accel"

// Vibration bucket boundaries in m/s².
const (
	vibrationLowBound  = 30.0
	vibrationMidBound  = 50.0
	vibrationHighBound = 70.0
)

// microsPerSecond converts ULog timestamps to seconds.
const microsPerSecond = 1e6

// ComputeVibrationBins buckets accelerometer exposure by magnitude.
//
// The magnitude of each sample is the Euclidean norm of the three axes.
// Each inter-sample interval contributes its duration to the bucket of the
// interval's *left* sample, so a log dwelling at high vibration accrues
// high-bucket time proportional to dwell, independent of sample rate.
//
// Inputs:
//   - log: The decoded log. The canonical (most-sampled) sensor_accel
//     instance is used.
//
// Outputs:
//   - VibrationBins: All zeros when the topic is missing, any axis is
//     missing, or fewer than two samples exist.
func ComputeVibrationBins(log *ulog.DecodedLog) VibrationBins {
	ch := log.Canonical(AccelTopic)
	if ch == nil {
		return VibrationBins{}
	}
	ts, mag := accelMagnitude(ch)
	if len(ts) < 2 {
		return VibrationBins{}
	}

	var bins VibrationBins
	for i := 0; i+1 < len(ts); i++ {
		dt := (ts[i+1] - ts[i]) / microsPerSecond
		m := mag[i]
		switch {
		case m < vibrationLowBound:
			bins.TimeLT30 += dt
		case m < vibrationMidBound:
			bins.Time30to50 += dt
		case m < vibrationHighBound:
			bins.Time50to70 += dt
		default:
			bins.TimeGT70 += dt
		}
		bins.TotalTime += dt
	}
	return bins
}

// accelMagnitude returns the channel's time base and per-sample Euclidean
// magnitude, trimmed to the shortest series. Returns nils when any axis is
// missing.
func accelMagnitude(ch *ulog.Channel) ([]float64, []float64) {
	ts := ch.Timestamps()
	x, okX := ch.Field("x")
	y, okY := ch.Field("y")
	z, okZ := ch.Field("z")
	if ts == nil || !okX || !okY || !okZ {
		return nil, nil
	}
	n := min(len(ts), len(x), len(y), len(z))
	mag := make([]float64, n)
	for i := 0; i < n; i++ {
		mag[i] = math.Sqrt(x[i]*x[i] + y[i]*y[i] + z[i]*z[i])
	}
	return ts[:n], mag
}
