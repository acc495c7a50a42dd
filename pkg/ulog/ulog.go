// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ulog decodes PX4 ULog flight-controller telemetry containers.
//
// The decoder is a pure transform: it reads a byte stream and produces a
// DecodedLog, a mapping from topic name to one or more time-ordered channel
// instances. It understands the subset of the ULog container format needed
// for stress analytics:
//
//   - the 16-byte file header and magic bytes
//   - 'F' format definitions (scalar, fixed-array, and nested fields)
//   - 'A' subscriptions, including multi-instance topics (redundant sensors)
//   - 'D' data messages
//
// All numeric fields are widened to float64 series so downstream metric
// extraction can treat every channel uniformly. Character arrays and padding
// fields are walked but not emitted.
//
// Malformed input, or input that yields zero data topics, fails with a
// *DecodeError. A truncated final data message is tolerated, matching the
// behavior of flight logs cut short by power loss.
package ulog

import (
	"fmt"
)

// DecodeError reports a byte stream that could not be parsed as a ULog
// container, or one that parsed but contained no datasets.
//
// Use errors.As to detect it:
//
//	var decodeErr *ulog.DecodeError
//	if errors.As(err, &decodeErr) {
//	    // skip this log, continue the batch
//	}
type DecodeError struct {
	// Reason is a short human-readable description of the failure.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ulog decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ulog decode: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error { return e.Err }

// Channel is a single named numeric time series: one instance of a logged
// topic. Timestamps are microseconds and non-decreasing. Multiple Channel
// instances of the same topic coexist when a vehicle carries redundant
// sensors.
type Channel struct {
	// Name is the topic name, e.g. "sensor_accel".
	Name string

	// MultiID distinguishes redundant instances of the same topic.
	MultiID uint8

	// Fields maps field name to its sample series. Fixed-size array fields
	// are flattened to indexed names ("clip_counter[0]"). Every series has
	// the same length: one value per data message.
	Fields map[string][]float64
}

// SampleCount returns the number of samples recorded for this instance.
//
// The count comes from the timestamp series, preferring timestamp_sample
// (sensor capture time) over timestamp (publication time).
func (c *Channel) SampleCount() int {
	return len(c.Timestamps())
}

// Timestamps returns the channel's time base in microseconds, preferring
// the timestamp_sample field over timestamp. Returns nil when the channel
// carries neither.
func (c *Channel) Timestamps() []float64 {
	if ts, ok := c.Fields["timestamp_sample"]; ok && len(ts) > 0 {
		return ts
	}
	return c.Fields["timestamp"]
}

// Field returns the named series and whether it exists.
func (c *Channel) Field(name string) ([]float64, bool) {
	v, ok := c.Fields[name]
	return v, ok
}

// FirstField returns the first series present among the given names.
// Used for naming-convention fallbacks ("clip_counter[0]" vs "clip_counter_0").
func (c *Channel) FirstField(names ...string) ([]float64, bool) {
	for _, n := range names {
		if v, ok := c.Fields[n]; ok {
			return v, true
		}
	}
	return nil, false
}

// DecodedLog is the parsed form of one telemetry log: a mapping from topic
// name to its channel instances. It is owned by a single ingestion task and
// must not be shared across goroutines.
type DecodedLog struct {
	topics map[string][]*Channel
}

// Topics returns the number of distinct topic names in the log.
func (d *DecodedLog) Topics() int { return len(d.topics) }

// Instances returns every channel instance for a topic, or nil when the
// topic was not logged. The slice is ordered by multi-instance ID.
func (d *DecodedLog) Instances(topic string) []*Channel {
	return d.topics[topic]
}

// Canonical returns the instance of a topic with the most samples, the
// conventional choice when an algorithm needs a single time series from a
// redundant sensor set. Returns nil when the topic is absent.
func (d *DecodedLog) Canonical(topic string) *Channel {
	var best *Channel
	for _, ch := range d.topics[topic] {
		if best == nil || ch.SampleCount() > best.SampleCount() {
			best = ch
		}
	}
	return best
}

// CanonicalAny returns the most-sampled instance among several candidate
// topic names, used where flight stacks log the same signal under different
// names (e.g. actuator output datasets).
func (d *DecodedLog) CanonicalAny(topics ...string) *Channel {
	var best *Channel
	for _, topic := range topics {
		if ch := d.Canonical(topic); ch != nil {
			if best == nil || ch.SampleCount() > best.SampleCount() {
				best = ch
			}
		}
	}
	return best
}
