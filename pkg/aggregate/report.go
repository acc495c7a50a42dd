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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/AleutianAI/fleetstress/pkg/store"
	"github.com/AleutianAI/fleetstress/pkg/stress"
)

// WriteCSV persists aggregated vehicle records. The output schema follows
// the summary schema: vehicle_id and num_logs first, then every summed or
// derived summary column in its registry order.
func WriteCSV(path string, summaryColumns []string, records []VehicleRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	header := []string{store.KeyVehicleID, KeyNumLogs}
	for _, col := range summaryColumns {
		if summable(col) || isPercentage(col) {
			header = append(header, col)
		}
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range records {
		rec := &records[i]
		cells := []string{rec.VehicleID, strconv.Itoa(rec.NumLogs)}
		for _, col := range header[2:] {
			cells = append(cells, strconv.FormatFloat(rec.Metric(col), 'g', -1, 64))
		}
		if err := w.Write(cells); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", rec.VehicleID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}

func isPercentage(col string) bool {
	switch col {
	case store.KeyPctLT30, store.KeyPct30to50, store.KeyPct50to70, store.KeyPctGT70:
		return true
	}
	return false
}

// WriteReport renders a markdown fleet risk report: vehicles ranked by
// composite risk with their sub-scores and headline exposure figures.
func WriteReport(w io.Writer, records []VehicleRecord, cfg RiskConfig) error {
	byVehicle := make(map[string]*VehicleRecord, len(records))
	for i := range records {
		byVehicle[records[i].VehicleID] = &records[i]
	}
	scores := ScoreAll(records, cfg)

	fmt.Fprintf(w, "# Fleet Stress Report\n\n")
	fmt.Fprintf(w, "Vehicles: %d\n\n", len(records))
	fmt.Fprintf(w, "| Rank | Vehicle | Risk | Vibration | Actuator | Fatigue | Logs | Tracked (h) | Peak Events | Clip Events |\n")
	fmt.Fprintf(w, "|-----:|---------|-----:|----------:|---------:|--------:|-----:|------------:|------------:|------------:|\n")
	for rank, score := range scores {
		rec := byVehicle[score.VehicleID]
		fmt.Fprintf(w, "| %d | %s | %.1f | %.1f | %.1f | %.1f | %d | %.2f | %.0f | %.0f |\n",
			rank+1,
			score.VehicleID,
			score.Composite,
			score.Vibration,
			score.Actuator,
			score.Fatigue,
			rec.NumLogs,
			rec.Metric(stress.KeyTotalTime)/secondsPerHour,
			rec.Metric(stress.KeyPeakEvents),
			rec.Metric(stress.KeyClippingEvents),
		)
	}
	return nil
}

// WriteReportFile renders the markdown report to a file.
func WriteReportFile(path string, records []VehicleRecord, cfg RiskConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteReport(f, records, cfg); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}
