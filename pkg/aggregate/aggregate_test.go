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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/fleetstress/pkg/store"
	"github.com/AleutianAI/fleetstress/pkg/stress"
)

func TestAggregate_SumsAndRecomputesPercentages(t *testing.T) {
	rows := []map[string]string{
		{
			store.KeyFile:       "a.ulg",
			store.KeyVehicleID:  "el_040",
			stress.KeyTotalTime: "100",
			stress.KeyTimeGT70:  "10",
			stress.KeyTimeLT30:  "90",
			store.KeyPctGT70:    "0.1",
		},
		{
			store.KeyFile:       "b.ulg",
			store.KeyVehicleID:  "EL-040",
			stress.KeyTotalTime: "200",
			stress.KeyTimeGT70:  "20",
			stress.KeyTimeLT30:  "180",
			store.KeyPctGT70:    "0.1",
		},
	}

	records := Aggregate(rows)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "EL-040", rec.VehicleID)
	assert.Equal(t, 2, rec.NumLogs)
	assert.InDelta(t, 300.0, rec.Metric(stress.KeyTotalTime), 1e-9)
	assert.InDelta(t, 30.0, rec.Metric(stress.KeyTimeGT70), 1e-9)
	assert.InDelta(t, 0.10, rec.Metric(store.KeyPctGT70), 1e-9)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	a := map[string]string{
		store.KeyFile: "a.ulg", store.KeyVehicleID: "EL-040",
		stress.KeyTotalTime: "100", stress.KeyTimeGT70: "10",
	}
	b := map[string]string{
		store.KeyFile: "b.ulg", store.KeyVehicleID: "EL-040",
		stress.KeyTotalTime: "200", stress.KeyTimeGT70: "20",
	}

	forward := Aggregate([]map[string]string{a, b})
	reversed := Aggregate([]map[string]string{b, a})
	assert.Equal(t, forward, reversed)
}

func TestAggregate_ZeroTotalYieldsZeroPercentages(t *testing.T) {
	rows := []map[string]string{{
		store.KeyFile: "a.ulg", store.KeyVehicleID: "EL-001",
		stress.KeyTotalTime: "0", stress.KeyTimeGT70: "0",
	}}
	records := Aggregate(rows)
	require.Len(t, records, 1)
	assert.Zero(t, records[0].Metric(store.KeyPctGT70))
	assert.Zero(t, records[0].Metric(store.KeyPctLT30))
}

func TestAggregate_OrdersByNumericPortion(t *testing.T) {
	rows := []map[string]string{
		{store.KeyFile: "a.ulg", store.KeyVehicleID: "EL-112", stress.KeyTotalTime: "1"},
		{store.KeyFile: "b.ulg", store.KeyVehicleID: "EL-7", stress.KeyTotalTime: "1"},
		{store.KeyFile: "c.ulg", store.KeyVehicleID: "", stress.KeyTotalTime: "1"},
		{store.KeyFile: "d.ulg", store.KeyVehicleID: "EL-040", stress.KeyTotalTime: "1"},
	}

	records := Aggregate(rows)
	require.Len(t, records, 4)
	var order []string
	for _, rec := range records {
		order = append(order, rec.VehicleID)
	}
	assert.Equal(t, []string{"EL-7", "EL-040", "EL-112", UnknownVehicle}, order)
}

func TestAggregate_SkipsBlankAndUnparsableCells(t *testing.T) {
	rows := []map[string]string{{
		store.KeyFile: "a.ulg", store.KeyVehicleID: "EL-040",
		stress.KeyTotalTime:       "100",
		"motor0_time_above_1_0_s": "",
		stress.KeyPeakEvents:      "garbage",
	}}
	records := Aggregate(rows)
	require.Len(t, records, 1)
	assert.Zero(t, records[0].Metric("motor0_time_above_1_0_s"))
	assert.Zero(t, records[0].Metric(stress.KeyPeakEvents))
}
