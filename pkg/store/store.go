// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/AleutianAI/fleetstress/pkg/stress"
)

// Derived percentage columns. These are recomputed from durations on every
// write path and are never treated as ground truth.
const (
	KeyPctLT30   = "accel_pct_lt_30"
	KeyPct30to50 = "accel_pct_30_50"
	KeyPct50to70 = "accel_pct_50_70"
	KeyPctGT70   = "accel_pct_gt_70"
)

// KeyFile and KeyVehicleID identify a row's origin.
const (
	KeyFile      = "file"
	KeyVehicleID = "vehicle_id"
)

// BaseColumns is the seed schema every summary starts with. Actuator and
// fatigue columns join the registry as logs introduce them.
func BaseColumns() []string {
	return []string{
		KeyFile,
		KeyVehicleID,
		stress.KeyTimeLT30,
		stress.KeyTime30to50,
		stress.KeyTime50to70,
		stress.KeyTimeGT70,
		stress.KeyTotalTime,
		KeyPctLT30,
		KeyPct30to50,
		KeyPct50to70,
		KeyPctGT70,
	}
}

// SummaryStore accumulates one row per successfully processed log and
// mirrors them to a CSV file. When a record introduces metric keys the
// schema has not seen, the registry grows and the whole file is rewritten
// with earlier rows backfilled empty for the new columns, preserving row
// order.
//
// The store is single-writer by contract; the ingestion pipeline funnels
// all appends through one goroutine.
type SummaryStore struct {
	path     string
	registry *ColumnRegistry
	rows     []map[string]string
}

// Open creates or loads the summary at path. With resume set and an
// existing file present, prior rows and their discovered columns are
// reloaded so new appends extend the earlier run; otherwise the file is
// truncated to the base schema.
func Open(path string, resume bool) (*SummaryStore, error) {
	s := &SummaryStore{path: path, registry: NewColumnRegistry(BaseColumns()...)}

	if resume {
		if _, err := os.Stat(path); err == nil {
			if err := s.load(); err != nil {
				return nil, fmt.Errorf("failed to resume summary %s: %w", path, err)
			}
			return s, nil
		}
	}

	if err := s.rewrite(); err != nil {
		return nil, fmt.Errorf("failed to initialize summary %s: %w", path, err)
	}
	return s, nil
}

// Append persists one record as a row, growing the schema first when the
// record carries unseen metric keys. New keys within a record are added in
// sorted order for determinism.
func (s *SummaryStore) Append(rec *stress.Record) error {
	metrics := rec.Metrics()

	var added []string
	for _, key := range sortedMetricKeys(metrics) {
		if s.registry.Add(key) {
			added = append(added, key)
		}
	}

	s.rows = append(s.rows, s.buildRow(rec, metrics))

	if len(added) > 0 {
		// Schema grew: rewrite so earlier rows carry the new columns.
		return s.rewrite()
	}
	return s.appendLast()
}

// Rows returns the in-memory rows. Callers must not mutate the maps.
func (s *SummaryStore) Rows() []map[string]string { return s.rows }

// Columns returns the current ordered schema.
func (s *SummaryStore) Columns() []string { return s.registry.Columns() }

// Len returns the number of stored rows.
func (s *SummaryStore) Len() int { return len(s.rows) }

// Path returns the backing CSV path.
func (s *SummaryStore) Path() string { return s.path }

// SchemaVersion returns how many columns have been discovered beyond the
// base schema.
func (s *SummaryStore) SchemaVersion() int { return s.registry.Version() }

func (s *SummaryStore) buildRow(rec *stress.Record, metrics map[string]float64) map[string]string {
	row := map[string]string{
		KeyFile:      rec.SourceKey,
		KeyVehicleID: rec.VehicleID,
	}
	for key, value := range metrics {
		row[key] = formatMetric(value)
	}

	total := rec.Vibration.TotalTime
	row[KeyPctLT30] = formatMetric(share(rec.Vibration.TimeLT30, total))
	row[KeyPct30to50] = formatMetric(share(rec.Vibration.Time30to50, total))
	row[KeyPct50to70] = formatMetric(share(rec.Vibration.Time50to70, total))
	row[KeyPctGT70] = formatMetric(share(rec.Vibration.TimeGT70, total))
	return row
}

// rewrite replaces the backing file with the full header and every row,
// backfilling empty cells for columns a row predates.
func (s *SummaryStore) rewrite() error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	w := csv.NewWriter(f)
	columns := s.registry.Columns()
	if err := w.Write(columns); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range s.rows {
		if err := w.Write(rowCells(columns, row)); err != nil {
			f.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// appendLast writes only the most recent row to the existing file.
func (s *SummaryStore) appendLast() error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(rowCells(s.registry.Columns(), s.rows[len(s.rows)-1])); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush append to %s: %w", s.path, err)
	}
	return nil
}

// load reloads rows and schema from an existing CSV. Columns discovered in
// the header beyond the base schema are registered so the resumed run keeps
// writing them.
func (s *SummaryStore) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return s.rewrite()
	}

	header := records[0]
	for _, name := range header {
		s.registry.Add(name)
	}
	for _, cells := range records[1:] {
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(cells) && cells[i] != "" {
				row[name] = cells[i]
			}
		}
		s.rows = append(s.rows, row)
	}

	// The resumed header may lack base columns added since the prior run
	// wrote it; normalize the file to the merged schema.
	if len(header) != s.registry.Len() {
		return s.rewrite()
	}
	return nil
}

func rowCells(columns []string, row map[string]string) []string {
	cells := make([]string, len(columns))
	for i, name := range columns {
		cells[i] = row[name]
	}
	return cells
}

func sortedMetricKeys(metrics map[string]float64) []string {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func share(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total
}
