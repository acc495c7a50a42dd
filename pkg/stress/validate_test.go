// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stress

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptsZeroAndPositive(t *testing.T) {
	rec := &Record{
		SourceKey: "ulogs/EL-040/log1.ulg",
		Vibration: VibrationBins{TimeLT30: 10, TotalTime: 10},
		Actuator:  map[string]float64{"motor0_time_above_0_8_s": 0},
	}
	assert.NoError(t, Validate(rec))
}

func TestValidate_RejectsNegative(t *testing.T) {
	rec := &Record{
		SourceKey: "ulogs/EL-040/log1.ulg",
		Vibration: VibrationBins{TimeLT30: -0.5, TotalTime: 10},
	}

	err := Validate(rec)
	require.Error(t, err)
	var qErr *DataQualityError
	require.True(t, errors.As(err, &qErr))
	assert.Equal(t, "ulogs/EL-040/log1.ulg", qErr.Source)
	assert.Contains(t, err.Error(), "accel_time_lt_30_s=-0.5")
}

func TestValidate_RejectsNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"NaN", math.NaN()},
		{"+Inf", math.Inf(1)},
		{"-Inf", math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Record{
				SourceKey: "k",
				Actuator:  map[string]float64{"motor0_time_above_1_0_s": tt.value},
			}
			var qErr *DataQualityError
			require.True(t, errors.As(Validate(rec), &qErr))
		})
	}
}

func TestValidate_CapsViolationList(t *testing.T) {
	rec := &Record{
		SourceKey: "k",
		Actuator: map[string]float64{
			"motor0_time_above_0_8_s": -1,
			"motor0_time_above_0_9_s": -1,
			"motor1_time_above_0_8_s": -1,
			"motor1_time_above_0_9_s": -1,
			"motor2_time_above_0_8_s": -1,
			"motor2_time_above_0_9_s": -1,
			"motor3_time_above_0_8_s": -1,
		},
	}

	err := Validate(rec)
	require.Error(t, err)
	var qErr *DataQualityError
	require.True(t, errors.As(err, &qErr))
	assert.Len(t, qErr.Violations, maxReportedViolations+1)
	assert.Equal(t, "...", qErr.Violations[maxReportedViolations])
	assert.Contains(t, err.Error(), ", ...")
}
