// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline orchestrates concurrent log ingestion: listing keys,
// fanning them across a bounded worker pool, running each log through
// decode, extraction, and validation, and fanning successes into the
// summary store.
//
// Per-log failures are isolated: a log that cannot be decoded or whose
// metrics fail validation is logged and counted as skipped, and the batch
// always runs to completion. The store's append path is serialized behind
// a single consumer goroutine so schema evolution stays single-writer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/fleetstress/pkg/logging"
	"github.com/AleutianAI/fleetstress/pkg/source"
	"github.com/AleutianAI/fleetstress/pkg/store"
	"github.com/AleutianAI/fleetstress/pkg/stress"
	"github.com/AleutianAI/fleetstress/pkg/ulog"
)

// Per-log lifecycle stages. A log is pending until a worker picks it up,
// then advances stage by stage; the stage a failure occurred in is
// attached to the skip log line.
const (
	stagePending    = "pending"
	stageFetching   = "fetching"
	stageDecoding   = "decoding"
	stageExtracting = "extracting"
	stageValidating = "validating"
)

// Skip reasons, which double as the metric label values.
const (
	reasonFetch       = "fetch"
	reasonDecode      = "decode"
	reasonDataQuality = "data_quality"
	reasonUnexpected  = "unexpected"
)

// Options configures a batch run.
type Options struct {
	// Workers sizes the pool. 0 means one worker per CPU.
	Workers int

	// Prefix restricts source listing.
	Prefix string

	// Vehicles filters keys before processing. Empty means all vehicles.
	Vehicles []string

	// MaxLogs caps the batch after filtering. 0 means unlimited.
	MaxLogs int

	// VehicleID overrides per-log vehicle inference when set.
	VehicleID string

	// Thresholds are the actuator saturation levels to time. Nil means
	// stress.DefaultActuatorThresholds.
	Thresholds []float64

	// Fatigue tunes the clipping detector.
	Fatigue stress.FatigueOptions
}

// Result summarizes a completed batch.
type Result struct {
	RunID     string
	Processed int
	Skipped   int

	// SkipReasons counts skips by reason label.
	SkipReasons map[string]int
}

// Pipeline wires a log source to a summary store.
type Pipeline struct {
	src   source.Source
	store *store.SummaryStore
	log   *logging.Logger
	opts  Options

	// decode is swappable for tests.
	decode func([]byte) (*ulog.DecodedLog, error)
}

// New creates a pipeline over the given source and store.
func New(src source.Source, st *store.SummaryStore, logger *logging.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.Fatigue == (stress.FatigueOptions{}) {
		opts.Fatigue = stress.DefaultFatigueOptions()
	}
	return &Pipeline{
		src:    src,
		store:  st,
		log:    logger,
		opts:   opts,
		decode: ulog.Decode,
	}
}

// Run executes one batch: list, filter, process concurrently, and append
// successes to the store. It returns once every log has either been stored
// or skipped; the returned error reports infrastructure failures (listing,
// store writes), never per-log ones.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	log := p.log.With("run_id", runID)
	result := &Result{RunID: runID, SkipReasons: make(map[string]int)}

	keys, err := p.listKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	log.Info("starting batch", "logs", len(keys), "workers", p.workers())
	if len(keys) == 0 {
		return result, nil
	}

	jobs := make(chan string, len(keys))
	records := make(chan *stress.Record, len(keys))

	// Single consumer owns the store append path.
	var storeErr error
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for rec := range records {
			if err := p.store.Append(rec); err != nil {
				if storeErr == nil {
					storeErr = err
				}
				log.Error("failed to append summary row", "file", rec.SourceKey, "error", err)
				continue
			}
			result.Processed++
			logsProcessedTotal.Inc()
		}
	}()

	var mu sync.Mutex
	skip := func(key, stage, reason string, err error) {
		mu.Lock()
		result.Skipped++
		result.SkipReasons[reason]++
		mu.Unlock()
		logsSkippedTotal.WithLabelValues(reason).Inc()
		if reason == reasonUnexpected {
			log.Error("skipping log", "file", key, "stage", stage, "reason", reason, "error", err)
		} else {
			log.Warn("skipping log", "file", key, "stage", stage, "reason", reason, "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers(); i++ {
		workerLog := log.With("worker_id", i)
		g.Go(func() error {
			for key := range jobs {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				timer := prometheus.NewTimer(logProcessDuration)
				rec, stage, err := p.processOne(gctx, workerLog, key)
				timer.ObserveDuration()
				if err != nil {
					skip(key, stage, classify(err), err)
					continue
				}
				records <- rec
			}
			return nil
		})
	}

	for _, key := range keys {
		jobs <- key
	}
	close(jobs)

	err = g.Wait()
	close(records)
	<-consumerDone

	if err != nil {
		return nil, fmt.Errorf("batch aborted: %w", err)
	}
	if storeErr != nil {
		return nil, fmt.Errorf("failed to persist summary rows: %w", storeErr)
	}

	log.Info("batch complete",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"reasons", result.SkipReasons,
	)
	return result, nil
}

// listKeys lists, filters, and caps the batch's keys.
func (p *Pipeline) listKeys(ctx context.Context) ([]string, error) {
	keys, err := p.src.List(ctx, p.opts.Prefix)
	if err != nil {
		return nil, err
	}
	filtered := make([]string, 0, len(keys))
	for _, key := range keys {
		if !source.IsLogKey(key) {
			continue
		}
		if !source.KeyMatchesVehicle(key, p.opts.Vehicles) {
			continue
		}
		filtered = append(filtered, key)
		if p.opts.MaxLogs > 0 && len(filtered) == p.opts.MaxLogs {
			break
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}

// processOne runs a single log through the full stage sequence. On failure
// it reports the stage that was executing.
func (p *Pipeline) processOne(ctx context.Context, log *logging.Logger, key string) (rec *stress.Record, stage string, err error) {
	stage = stagePending
	if err := ctx.Err(); err != nil {
		return nil, stage, err
	}
	start := time.Now()

	stage = stageFetching
	rc, err := p.src.Fetch(ctx, key)
	if err != nil {
		return nil, stage, &fetchError{key: key, err: err}
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, stage, &fetchError{key: key, err: err}
	}

	stage = stageDecoding
	decoded, err := p.decode(data)
	if err != nil {
		return nil, stage, err
	}

	stage = stageExtracting
	rec = &stress.Record{
		SourceKey: key,
		VehicleID: p.vehicleID(key),
		Vibration: stress.ComputeVibrationBins(decoded),
		Actuator:  stress.ComputeActuatorSaturation(decoded, p.opts.Thresholds),
		Fatigue:   stress.ComputeFatigue(decoded, p.opts.Fatigue),
	}

	stage = stageValidating
	if err := stress.Validate(rec); err != nil {
		return nil, stage, err
	}

	log.Debug("processed log",
		"file", key,
		"vehicle", rec.VehicleID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rec, stage, nil
}

func (p *Pipeline) vehicleID(key string) string {
	if p.opts.VehicleID != "" {
		return source.CanonicalVehicleID(p.opts.VehicleID)
	}
	return source.InferVehicleID(key)
}

func (p *Pipeline) workers() int {
	if p.opts.Workers > 0 {
		return p.opts.Workers
	}
	return runtime.NumCPU()
}

// fetchError marks a failure retrieving log bytes from the source. No
// retry happens here; retry policy belongs to the source adapter.
type fetchError struct {
	key string
	err error
}

func (e *fetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.key, e.err) }
func (e *fetchError) Unwrap() error { return e.err }

// classify maps a per-log failure to its skip reason. Decode and data
// quality failures are expected operating conditions; anything else is
// unexpected.
func classify(err error) string {
	var qualityErr *stress.DataQualityError
	if errors.As(err, &qualityErr) {
		return reasonDataQuality
	}
	var decodeErr *ulog.DecodeError
	if errors.As(err, &decodeErr) {
		return reasonDecode
	}
	var fetchErr *fetchError
	if errors.As(err, &fetchErr) {
		return reasonFetch
	}
	return reasonUnexpected
}
