// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package aggregate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/fleetstress/pkg/store"
	"github.com/AleutianAI/fleetstress/pkg/stress"
)

func TestScore_ZeroTrackedTime(t *testing.T) {
	rec := VehicleRecord{VehicleID: "EL-001", NumLogs: 1, Metrics: map[string]float64{}}
	got := Score(&rec, DefaultRiskConfig())
	assert.Zero(t, got.Vibration)
	assert.Zero(t, got.Actuator)
	assert.Zero(t, got.Fatigue)
	assert.Zero(t, got.Composite)
}

func TestScore_MaximalExposureSaturatesAt100(t *testing.T) {
	// One hour tracked, entirely above 70 m/s², motors pinned the whole
	// time, event rates far past both ceilings.
	rec := VehicleRecord{
		VehicleID: "EL-040",
		NumLogs:   1,
		Metrics: map[string]float64{
			stress.KeyTotalTime:       3600,
			store.KeyPctGT70:          1.0,
			store.KeyPct50to70:        0.0,
			"motor0_time_above_1_0_s": 3600,
			"motor0_time_above_0_9_s": 3600,
			stress.KeyPeakEvents:      5000,
			stress.KeyClippingEvents:  50000,
		},
	}
	got := Score(&rec, DefaultRiskConfig())
	assert.InDelta(t, 20.0, got.Actuator, 1e-9)
	assert.InDelta(t, 60.0, got.Fatigue, 1e-9)
	assert.LessOrEqual(t, got.Composite, 100.0)
}

func TestScore_SubScoreArithmetic(t *testing.T) {
	// 10 hours tracked; modest exposure so nothing clamps.
	rec := VehicleRecord{
		VehicleID: "EL-040",
		NumLogs:   3,
		Metrics: map[string]float64{
			stress.KeyTotalTime:       36000,
			store.KeyPctGT70:          0.13, // 0.13*10 = 1.3 of ceiling 13 -> 0.1
			store.KeyPct50to70:        0.0,
			"motor0_time_above_1_0_s": 3600, // satPct 0.1 -> 0.1*15 = 1.5
			"motor1_time_above_0_9_s": 3600, // highPct 0.1 -> 0.1*5 = 0.5
			stress.KeyPeakEvents:      1000, // 100/hr of 1000 ceiling -> 0.1
			stress.KeyClippingEvents:  10000,
		},
	}
	got := Score(&rec, DefaultRiskConfig())
	assert.InDelta(t, 2.0, got.Vibration, 1e-9)         // 0.1 * 20
	assert.InDelta(t, 2.0, got.Actuator, 1e-9)          // (2.0/20) * 20
	assert.InDelta(t, 0.1*0.3*60+0.1*0.7*60, got.Fatigue, 1e-9)
	assert.InDelta(t, got.Vibration+got.Actuator+got.Fatigue, got.Composite, 1e-9)
}

func TestScoreAll_RanksByComposite(t *testing.T) {
	quiet := VehicleRecord{VehicleID: "EL-001", Metrics: map[string]float64{
		stress.KeyTotalTime: 3600,
	}}
	loud := VehicleRecord{VehicleID: "EL-002", Metrics: map[string]float64{
		stress.KeyTotalTime: 3600,
		store.KeyPctGT70:    1.0,
	}}

	scores := ScoreAll([]VehicleRecord{quiet, loud}, DefaultRiskConfig())
	require.Len(t, scores, 2)
	assert.Equal(t, "EL-002", scores[0].VehicleID)
	assert.Greater(t, scores[0].Composite, scores[1].Composite)
}

func TestWriteReport(t *testing.T) {
	records := []VehicleRecord{{
		VehicleID: "EL-040",
		NumLogs:   2,
		Metrics: map[string]float64{
			stress.KeyTotalTime: 7200,
			store.KeyPctGT70:    0.5,
		},
	}}

	var sb strings.Builder
	require.NoError(t, WriteReport(&sb, records, DefaultRiskConfig()))
	out := sb.String()
	assert.Contains(t, out, "# Fleet Stress Report")
	assert.Contains(t, out, "EL-040")
	assert.Contains(t, out, "2.00") // two tracked hours
}
