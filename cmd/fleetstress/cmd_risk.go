// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/fleetstress/pkg/aggregate"
	"github.com/AleutianAI/fleetstress/pkg/store"
)

func runRisk(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	summaryPath := flagSummary
	if summaryPath == "" {
		summaryPath = cfg.Output.SummaryPath
	}
	if _, err := os.Stat(summaryPath); err != nil {
		log.Fatalf("Error: no summary at %s, run 'fleetstress process' first", summaryPath)
	}

	// Resume mode loads the existing rows without truncating the file.
	summary, err := store.Open(summaryPath, true)
	if err != nil {
		log.Fatalf("Error loading summary: %v", err)
	}
	if summary.Len() == 0 {
		log.Fatalf("Error: summary %s has no rows", summaryPath)
	}

	records := aggregate.Aggregate(summary.Rows())
	scores := aggregate.ScoreAll(records, cfg.Risk)
	if flagTopN > 0 && flagTopN < len(scores) {
		scores = scores[:flagTopN]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tVEHICLE\tRISK\tVIBRATION\tACTUATOR\tFATIGUE")
	for i, s := range scores {
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%.1f\t%.1f\t%.1f\n",
			i+1, s.VehicleID, s.Composite, s.Vibration, s.Actuator, s.Fatigue)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("Error writing table: %v", err)
	}
}
