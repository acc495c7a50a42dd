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
	"github.com/spf13/cobra"
)

var (
	rootCmd    *cobra.Command
	processCmd *cobra.Command
	riskCmd    *cobra.Command

	// process flags
	flagConfig    string
	flagPrefix    string
	flagVehicles  string
	flagWorkers   int
	flagMaxLogs   int
	flagVehicleID string
	flagResume    bool

	// risk flags
	flagSummary string
	flagTopN    int
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "fleetstress",
		Short: "A CLI to compute mechanical stress metrics from flight telemetry logs",
	}

	processCmd = &cobra.Command{
		Use:   "process",
		Short: "Ingest a batch of flight logs and build the per-log and per-vehicle stress summaries",
		Run:   runProcess,
	}
	processCmd.Flags().StringVar(&flagConfig, "config", "", "Path to a fleetstress.yaml (default: ~/.fleetstress/fleetstress.yaml)")
	processCmd.Flags().StringVar(&flagPrefix, "prefix", "", "Only process logs under this key prefix")
	processCmd.Flags().StringVar(&flagVehicles, "vehicles", "", "Comma-separated vehicle filter (e.g. \"EL-040,EL-041\")")
	processCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Worker pool size (0 = one per CPU)")
	processCmd.Flags().IntVar(&flagMaxLogs, "max-logs", 0, "Cap the number of logs processed (0 = unlimited)")
	processCmd.Flags().StringVar(&flagVehicleID, "vehicle-id", "", "Tag every log with this vehicle instead of inferring from keys")
	processCmd.Flags().BoolVar(&flagResume, "resume", false, "Append to an existing summary instead of truncating it")

	riskCmd = &cobra.Command{
		Use:   "risk",
		Short: "Rank vehicles by composite stress risk from an existing summary",
		Run:   runRisk,
	}
	riskCmd.Flags().StringVar(&flagConfig, "config", "", "Path to a fleetstress.yaml (default: ~/.fleetstress/fleetstress.yaml)")
	riskCmd.Flags().StringVar(&flagSummary, "summary", "", "Summary CSV to score (default: the configured summary path)")
	riskCmd.Flags().IntVar(&flagTopN, "top", 0, "Show only the N riskiest vehicles (0 = all)")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(riskCmd)
}
