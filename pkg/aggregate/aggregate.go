// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package aggregate rolls per-log summary rows up to per-vehicle stress
// totals and derives a normalized risk score for each vehicle.
package aggregate

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/fleetstress/pkg/source"
	"github.com/AleutianAI/fleetstress/pkg/store"
	"github.com/AleutianAI/fleetstress/pkg/stress"
)

// UnknownVehicle groups rows whose log carried no recognizable vehicle
// identifier.
const UnknownVehicle = "UNKNOWN"

// KeyNumLogs counts how many logs contributed to a vehicle's totals.
const KeyNumLogs = "num_logs"

// VehicleRecord is one vehicle's aggregated stress exposure: summed
// duration and event columns across every contributing log, with the
// percentage columns recomputed from the summed totals. Rebuilt wholesale
// on every aggregation run.
type VehicleRecord struct {
	VehicleID string
	NumLogs   int

	// Metrics holds the summed duration (suffix "_s") and event (suffix
	// "_events") columns plus the recomputed accel_pct_* columns.
	Metrics map[string]float64
}

// Metric returns a named metric, 0 when absent.
func (v *VehicleRecord) Metric(key string) float64 { return v.Metrics[key] }

// Aggregate groups summary rows by canonicalized vehicle identifier and
// sums their duration and event columns. Percentage columns are recomputed
// from the summed totals; a zero total yields 0.0 percentages. The result
// is invariant to row order.
//
// Inputs:
//   - rows: summary rows keyed by column name, as stored by store.SummaryStore.
//
// Outputs:
//   - one VehicleRecord per distinct vehicle, ordered by the numeric
//     portion of the identifier (non-numeric identifiers last), with a
//     case-insensitive lexicographic tie-break.
func Aggregate(rows []map[string]string) []VehicleRecord {
	byVehicle := make(map[string]*VehicleRecord)
	for _, row := range rows {
		vehicle := source.CanonicalVehicleID(row[store.KeyVehicleID])
		if vehicle == "" {
			vehicle = UnknownVehicle
		}
		rec, ok := byVehicle[vehicle]
		if !ok {
			rec = &VehicleRecord{VehicleID: vehicle, Metrics: make(map[string]float64)}
			byVehicle[vehicle] = rec
		}
		rec.NumLogs++
		for key, cell := range row {
			if !summable(key) || cell == "" {
				continue
			}
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				continue
			}
			rec.Metrics[key] += value
		}
	}

	records := make([]VehicleRecord, 0, len(byVehicle))
	for _, rec := range byVehicle {
		recomputePercentages(rec.Metrics)
		records = append(records, *rec)
	}
	sortVehicles(records)
	return records
}

// summable reports whether a summary column participates in per-vehicle
// summation. Percentages are derived, never summed.
func summable(key string) bool {
	if key == store.KeyFile || key == store.KeyVehicleID {
		return false
	}
	return strings.HasSuffix(key, "_s") || strings.HasSuffix(key, "_events")
}

func recomputePercentages(m map[string]float64) {
	total := m[stress.KeyTotalTime]
	m[store.KeyPctLT30] = share(m[stress.KeyTimeLT30], total)
	m[store.KeyPct30to50] = share(m[stress.KeyTime30to50], total)
	m[store.KeyPct50to70] = share(m[stress.KeyTime50to70], total)
	m[store.KeyPctGT70] = share(m[stress.KeyTimeGT70], total)
}

func share(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total
}

var vehicleNumber = regexp.MustCompile(`(\d+)`)

// sortVehicles orders records by the numeric portion of the vehicle ID,
// with non-numeric identifiers last and a lowercased lexicographic
// tie-break.
func sortVehicles(records []VehicleRecord) {
	sort.Slice(records, func(i, j int) bool {
		ni, iOK := vehicleNumeric(records[i].VehicleID)
		nj, jOK := vehicleNumeric(records[j].VehicleID)
		switch {
		case iOK && !jOK:
			return true
		case !iOK && jOK:
			return false
		case iOK && jOK && ni != nj:
			return ni < nj
		}
		return strings.ToLower(records[i].VehicleID) < strings.ToLower(records[j].VehicleID)
	})
}

func vehicleNumeric(id string) (int, bool) {
	m := vehicleNumber.FindString(id)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
