// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists per-log stress metrics as an append-only tabular
// summary whose column schema grows as new metric keys are discovered.
package store

// ColumnRegistry is an ordered, append-only column schema. Columns are
// never removed or reordered; every extension bumps the version counter so
// the store can tell when previously written rows need a backfill rewrite.
//
// The registry is not safe for concurrent use. The pipeline serializes all
// store access behind a single consumer.
type ColumnRegistry struct {
	columns []string
	index   map[string]int
	version int
}

// NewColumnRegistry creates a registry seeded with the given columns at
// version 0.
func NewColumnRegistry(base ...string) *ColumnRegistry {
	r := &ColumnRegistry{index: make(map[string]int, len(base))}
	for _, name := range base {
		if _, ok := r.index[name]; ok {
			continue
		}
		r.index[name] = len(r.columns)
		r.columns = append(r.columns, name)
	}
	return r
}

// Add appends a column if not already present. Returns true when the
// registry grew.
func (r *ColumnRegistry) Add(name string) bool {
	if _, ok := r.index[name]; ok {
		return false
	}
	r.index[name] = len(r.columns)
	r.columns = append(r.columns, name)
	r.version++
	return true
}

// Has reports whether the named column is registered.
func (r *ColumnRegistry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Columns returns the ordered column list as a copy.
func (r *ColumnRegistry) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Len returns the number of registered columns.
func (r *ColumnRegistry) Len() int { return len(r.columns) }

// Version returns how many columns have been added beyond the seed set.
func (r *ColumnRegistry) Version() int { return r.version }
