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
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/fleetstress/pkg/aggregate"
	"github.com/AleutianAI/fleetstress/pkg/config"
	"github.com/AleutianAI/fleetstress/pkg/logging"
	"github.com/AleutianAI/fleetstress/pkg/pipeline"
	"github.com/AleutianAI/fleetstress/pkg/source"
	"github.com/AleutianAI/fleetstress/pkg/store"
	"github.com/AleutianAI/fleetstress/pkg/stress"
)

// loadConfig resolves the effective configuration: an explicit --config
// path wins, otherwise the default user config (created on first run).
func loadConfig() config.FleetstressConfig {
	if flagConfig != "" {
		cfg, err := config.LoadFile(flagConfig)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		return cfg
	}
	if err := config.Load(); err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return config.Global
}

func newLogger(cfg *config.FleetstressConfig, service string) *logging.Logger {
	return logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: service,
		JSON:    cfg.Logging.JSON,
		Quiet:   cfg.Logging.Quiet,
	})
}

// buildSource constructs the configured log source adapter.
func buildSource(ctx context.Context, cfg *config.FleetstressConfig) (source.Source, error) {
	switch cfg.Source.Type {
	case "gcs":
		return source.NewGCSSource(ctx, cfg.Source.Bucket, cfg.Source.SAKeyPath)
	case "s3":
		return source.NewS3Source(source.S3Options{
			Endpoint:  cfg.Source.S3Endpoint,
			AccessKey: cfg.Source.S3AccessKey,
			SecretKey: cfg.Source.S3SecretKey,
			UseSSL:    cfg.Source.S3UseSSL,
		}, cfg.Source.Bucket)
	case "local":
		return source.NewLocalSource(cfg.Source.LocalDir)
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

func runProcess(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	// Flag overrides
	if flagPrefix != "" {
		cfg.Source.Prefix = flagPrefix
	}
	if flagVehicles != "" {
		cfg.Pipeline.Vehicles = flagVehicles
	}
	if flagWorkers > 0 {
		cfg.Pipeline.Workers = flagWorkers
	}
	if flagMaxLogs > 0 {
		cfg.Pipeline.MaxLogs = flagMaxLogs
	}
	if flagResume {
		cfg.Output.Resume = true
	}

	logger := newLogger(&cfg, "pipeline")
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := buildSource(ctx, &cfg)
	if err != nil {
		log.Fatalf("Error creating log source: %v", err)
	}
	if closer, ok := src.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	summary, err := store.Open(cfg.Output.SummaryPath, cfg.Output.Resume)
	if err != nil {
		log.Fatalf("Error opening summary store: %v", err)
	}

	p := pipeline.New(src, summary, logger, pipeline.Options{
		Workers:    cfg.Pipeline.Workers,
		Prefix:     cfg.Source.Prefix,
		Vehicles:   source.ParseVehicleFilter(cfg.Pipeline.Vehicles),
		MaxLogs:    cfg.Pipeline.MaxLogs,
		VehicleID:  flagVehicleID,
		Thresholds: cfg.Stress.ActuatorThresholds,
		Fatigue: stress.FatigueOptions{
			SensorRangeG:            cfg.Stress.SensorRangeG,
			PinnedVarianceTolerance: cfg.Stress.PinnedVarianceTolerance,
		},
	})

	result, err := p.Run(ctx)
	if err != nil {
		log.Fatalf("Error running batch: %v", err)
	}
	fmt.Printf("Processed %d logs, skipped %d (summary: %s)\n",
		result.Processed, result.Skipped, cfg.Output.SummaryPath)

	if summary.Len() == 0 {
		logger.Warn("no logs succeeded, skipping aggregation")
		return
	}

	records := aggregate.Aggregate(summary.Rows())
	if err := aggregate.WriteCSV(cfg.Output.AggregatePath, summary.Columns(), records); err != nil {
		log.Fatalf("Error writing aggregate: %v", err)
	}
	fmt.Printf("Aggregated %d vehicles into %s\n", len(records), cfg.Output.AggregatePath)

	if cfg.Output.ReportPath != "" {
		if err := aggregate.WriteReportFile(cfg.Output.ReportPath, records, cfg.Risk); err != nil {
			log.Fatalf("Error writing report: %v", err)
		}
		fmt.Printf("Fleet report written to %s\n", cfg.Output.ReportPath)
	}
}
