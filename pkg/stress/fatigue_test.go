// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stress

import (
	"testing"

	"github.com/AleutianAI/fleetstress/pkg/ulog"
	"github.com/AleutianAI/fleetstress/pkg/ulog/ulogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accelWithCounters(multiID uint8, rows [][]float64) ulogtest.TopicSpec {
	return ulogtest.TopicSpec{
		Name:    "sensor_accel",
		MultiID: multiID,
		Fields: []ulogtest.FieldSpec{
			{Type: "uint64_t", Name: "timestamp"},
			{Type: "float", Name: "x"},
			{Type: "float", Name: "y"},
			{Type: "float", Name: "z"},
			{Type: "uint8_t", Name: "clip_counter", Array: 3},
		},
		Rows: rows,
	}
}

func accelPlain(multiID uint8, rows [][]float64) ulogtest.TopicSpec {
	return ulogtest.TopicSpec{
		Name:    "sensor_accel",
		MultiID: multiID,
		Fields: []ulogtest.FieldSpec{
			{Type: "uint64_t", Name: "timestamp"},
			{Type: "float", Name: "x"},
			{Type: "float", Name: "y"},
			{Type: "float", Name: "z"},
		},
		Rows: rows,
	}
}

func decodeLog(t *testing.T, specs ...ulogtest.TopicSpec) *ulog.DecodedLog {
	t.Helper()
	log, err := ulog.Decode(ulogtest.Encode(specs...))
	require.NoError(t, err)
	return log
}

func TestComputeFatigue_PeakEvents(t *testing.T) {
	// Magnitudes [50, 150, 50, 200, 50]: exactly two samples above 100.
	log := decodeLog(t, accelPlain(0, [][]float64{
		{0, 50, 0, 0},
		{1e6, 150, 0, 0},
		{2e6, 50, 0, 0},
		{3e6, 200, 0, 0},
		{4e6, 50, 0, 0},
	}))

	out := ComputeFatigue(log, DefaultFatigueOptions())
	assert.Equal(t, 2.0, out.PeakEvents)
}

func TestComputeFatigue_ClipCounterStrategy(t *testing.T) {
	// Counter source: events 1+1+3 = 5; nonzero counts at samples 0 and 2,
	// so clipping covers intervals 0->1 and 2->3: 2.0 s.
	// The raw values would retroactively report 3 clipped samples / 1.0 s;
	// the counter source must win (higher event count).
	log := decodeLog(t, accelWithCounters(0, [][]float64{
		{0, 200, 0, 0, 1, 0, 0},
		{1e6, 10, 0, 0, 0, 0, 0},
		{2e6, 200, 0, 0, 1, 0, 0},
		{3e6, 10, 0, 0, 0, 0, 0},
		{4e6, 200, 0, 0, 3, 0, 0},
	}))

	out := ComputeFatigue(log, DefaultFatigueOptions())
	assert.Equal(t, 5.0, out.ClippingEvents)
	assert.InDelta(t, 2.0, out.ClippingTime, 1e-9)
}

func TestComputeFatigue_WorstInstanceWins(t *testing.T) {
	calm := accelWithCounters(0, [][]float64{
		{0, 0, 0, 9.8, 0, 0, 0},
		{1e6, 0, 0, 9.8, 0, 0, 0},
	})
	clipped := accelWithCounters(1, [][]float64{
		{0, 0, 0, 9.8, 2, 1, 0},
		{1e6, 0, 0, 9.8, 0, 0, 4},
	})

	out := ComputeFatigue(decodeLog(t, calm, clipped), DefaultFatigueOptions())
	assert.Equal(t, 7.0, out.ClippingEvents)
}

func TestComputeFatigue_IMUStatusFallback(t *testing.T) {
	// No clip counters on the sensor topic; vehicle_imu_status carries
	// cumulative per-axis totals. The final samples (8, 3, 1) sum to 12.
	accel := accelPlain(0, [][]float64{
		{0, 1, 0, 9.8},
		{1e6, 1, 0, 9.8},
	})
	imuStatus := ulogtest.TopicSpec{
		Name: "vehicle_imu_status",
		Fields: []ulogtest.FieldSpec{
			{Type: "uint64_t", Name: "timestamp"},
			{Type: "uint32_t", Name: "accel_clipping", Array: 3},
		},
		Rows: [][]float64{
			{0, 2, 1, 0},
			{1e6, 8, 3, 1},
		},
	}

	out := ComputeFatigue(decodeLog(t, accel, imuStatus), DefaultFatigueOptions())
	assert.Equal(t, 12.0, out.ClippingEvents)
	assert.Zero(t, out.ClippingTime, "cumulative counters carry no duration")
}

func TestComputeFatigue_CounterBeatsIMUStatus(t *testing.T) {
	// Both counter sources available: the per-sample source reports more
	// events and must be chosen.
	accel := accelWithCounters(0, [][]float64{
		{0, 0, 0, 9.8, 10, 0, 0},
		{1e6, 0, 0, 9.8, 10, 0, 0},
	})
	imuStatus := ulogtest.TopicSpec{
		Name: "vehicle_imu_status",
		Fields: []ulogtest.FieldSpec{
			{Type: "uint64_t", Name: "timestamp"},
			{Type: "uint32_t", Name: "accel_clipping", Array: 3},
		},
		Rows: [][]float64{{0, 3, 0, 0}},
	}

	out := ComputeFatigue(decodeLog(t, accel, imuStatus), DefaultFatigueOptions())
	assert.Equal(t, 20.0, out.ClippingEvents)
}

func TestComputeFatigue_RetroactiveThresholdCrossing(t *testing.T) {
	// No counter source anywhere. ±16 g ≈ 156.9 m/s²; 160 exceeds 99.9% of
	// the range on one axis for two samples.
	log := decodeLog(t, accelPlain(0, [][]float64{
		{0, 160, 0, 0},
		{1e6, 160, 0, 0},
		{2e6, 10, 0, 0},
		{3e6, 10, 0, 0},
	}))

	out := ComputeFatigue(log, DefaultFatigueOptions())
	assert.Equal(t, 2.0, out.ClippingEvents)
	assert.InDelta(t, 2.0, out.ClippingTime, 1e-9)
}

func TestComputeFatigue_RetroactivePinnedValue(t *testing.T) {
	// 145 m/s² is below the hard limit (~156.7) but above 90% of it; a run
	// of identical values has zero rolling variance, so the pinned-value
	// heuristic fires. Needs >= 10 samples for the variance pass.
	rows := make([][]float64, 20)
	for i := range rows {
		rows[i] = []float64{float64(i) * 1e5, 145, 0, 0}
	}
	log := decodeLog(t, accelPlain(0, rows))

	out := ComputeFatigue(log, DefaultFatigueOptions())
	assert.Greater(t, out.ClippingEvents, 0.0)
	assert.Greater(t, out.ClippingTime, 0.0)
}

func TestComputeFatigue_NoAccelTopic(t *testing.T) {
	log := decodeLog(t, ulogtest.TopicSpec{
		Name:   "vehicle_status",
		Fields: []ulogtest.FieldSpec{{Type: "uint64_t", Name: "timestamp"}},
		Rows:   [][]float64{{0}},
	})

	out := ComputeFatigue(log, DefaultFatigueOptions())
	assert.Equal(t, FatigueMetrics{}, out)
}

func TestComputeFatigue_AllStrategiesEmptyIsZero(t *testing.T) {
	// Calm flight, no counters: the chain falls through to retroactive
	// detection which finds nothing. Zero is a valid result.
	log := decodeLog(t, accelPlain(0, [][]float64{
		{0, 0, 0, 9.8},
		{1e6, 0, 0, 9.8},
		{2e6, 0, 0, 9.8},
	}))

	out := ComputeFatigue(log, DefaultFatigueOptions())
	assert.Zero(t, out.ClippingEvents)
	assert.Zero(t, out.ClippingTime)
}

func TestChooseBest(t *testing.T) {
	tests := []struct {
		name       string
		a, b       clipResult
		aOK, bOK   bool
		want       clipResult
		wantOK     bool
	}{
		{"both missing", clipResult{}, clipResult{}, false, false, clipResult{}, false},
		{"only a", clipResult{events: 1}, clipResult{}, true, false, clipResult{events: 1}, true},
		{"only b", clipResult{}, clipResult{events: 2}, false, true, clipResult{events: 2}, true},
		{"higher events wins", clipResult{events: 5, timeS: 2}, clipResult{events: 3, timeS: 9}, true, true, clipResult{events: 5, timeS: 2}, true},
		{"tie broken by time", clipResult{events: 3, timeS: 1}, clipResult{events: 3, timeS: 4}, true, true, clipResult{events: 3, timeS: 4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := chooseBest(tt.a, tt.aOK, tt.b, tt.bOK)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
