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
	"fmt"
	"sort"

	"github.com/AleutianAI/fleetstress/pkg/store"
	"github.com/AleutianAI/fleetstress/pkg/stress"
)

// RiskConfig holds the weights and reference ceilings the scorer
// normalizes against. The ceilings are empirically chosen operating
// references, not physical limits.
type RiskConfig struct {
	// Sub-score weights. They sum to the composite's full scale (100).
	VibrationWeight float64 `yaml:"vibration_weight" validate:"gt=0"`
	ActuatorWeight  float64 `yaml:"actuator_weight" validate:"gt=0"`
	FatigueWeight   float64 `yaml:"fatigue_weight" validate:"gt=0"`

	// VibrationCeiling caps the weighted vibration time-share term.
	VibrationCeiling float64 `yaml:"vibration_ceiling" validate:"gt=0"`

	// ActuatorCeiling caps the weighted saturation time-share term.
	ActuatorCeiling float64 `yaml:"actuator_ceiling" validate:"gt=0"`

	// PeakRateCeiling is the peak-event rate (events/hour) treated as
	// maximal fatigue exposure.
	PeakRateCeiling float64 `yaml:"peak_rate_ceiling" validate:"gt=0"`

	// ClipRateCeiling is the clipping-event rate (events/hour) treated as
	// maximal fatigue exposure.
	ClipRateCeiling float64 `yaml:"clip_rate_ceiling" validate:"gt=0"`
}

// DefaultRiskConfig returns the standard weights and ceilings.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		VibrationWeight:  20,
		ActuatorWeight:   20,
		FatigueWeight:    60,
		VibrationCeiling: 13,
		ActuatorCeiling:  20,
		PeakRateCeiling:  1000,
		ClipRateCeiling:  10000,
	}
}

// Fatigue combines two independently clamped rates; peak transients carry
// less weight than sustained clipping.
const (
	peakRateWeight = 0.3
	clipRateWeight = 0.7
)

const secondsPerHour = 3600.0

// RiskBreakdown is a vehicle's normalized risk decomposition. Each
// sub-score is bounded by its weight; Composite is their sum on a 0-100
// scale. Derived on demand, never persisted.
type RiskBreakdown struct {
	VehicleID string
	Vibration float64
	Actuator  float64
	Fatigue   float64
	Composite float64
}

// Score derives a vehicle's risk breakdown from its aggregated record.
// A vehicle with zero tracked time scores zero across the board.
func Score(rec *VehicleRecord, cfg RiskConfig) RiskBreakdown {
	out := RiskBreakdown{VehicleID: rec.VehicleID}
	total := rec.Metric(stress.KeyTotalTime)
	if total <= 0 {
		return out
	}

	vibrationLoad := rec.Metric(store.KeyPctGT70)*10 + rec.Metric(store.KeyPct50to70)*3
	out.Vibration = clamp01(vibrationLoad/cfg.VibrationCeiling) * cfg.VibrationWeight

	var saturatedTime, highTime float64
	for motor := 0; motor <= 3; motor++ {
		saturatedTime += rec.Metric(fmt.Sprintf("motor%d_time_above_1_0_s", motor))
		highTime += rec.Metric(fmt.Sprintf("motor%d_time_above_0_9_s", motor))
	}
	actuatorLoad := (saturatedTime/total)*15 + (highTime/total)*5
	out.Actuator = clamp01(actuatorLoad/cfg.ActuatorCeiling) * cfg.ActuatorWeight

	hours := total / secondsPerHour
	peakRate := rec.Metric(stress.KeyPeakEvents) / hours
	clipRate := rec.Metric(stress.KeyClippingEvents) / hours
	out.Fatigue = (clamp01(peakRate/cfg.PeakRateCeiling)*peakRateWeight +
		clamp01(clipRate/cfg.ClipRateCeiling)*clipRateWeight) * cfg.FatigueWeight

	out.Composite = out.Vibration + out.Actuator + out.Fatigue
	return out
}

// ScoreAll scores every record and returns the breakdowns ordered from
// highest composite risk to lowest, so the riskiest airframes surface
// first.
func ScoreAll(records []VehicleRecord, cfg RiskConfig) []RiskBreakdown {
	out := make([]RiskBreakdown, len(records))
	for i := range records {
		out[i] = Score(&records[i], cfg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Composite > out[j].Composite
	})
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
