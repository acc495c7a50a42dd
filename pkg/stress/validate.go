// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stress

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// maxReportedViolations caps the key list embedded in a DataQualityError;
// larger sets end with an ellipsis indicator.
const maxReportedViolations = 5

// DataQualityError reports computed metrics that fail basic quality checks:
// non-finite or negative values. Like a decode failure it is fatal to the
// single log but not to the batch.
type DataQualityError struct {
	// Source identifies the offending log (its storage key).
	Source string

	// Violations holds "key=value" descriptions, sorted by key.
	Violations []string
}

// Error implements the error interface.
func (e *DataQualityError) Error() string {
	detail := strings.Join(e.Violations, ", ")
	return fmt.Sprintf("negative or invalid metrics detected (%s) for %s", detail, e.Source)
}

// Validate checks every derived numeric metric of a record.
//
// All durations, counts, and percentages must be finite and non-negative.
// Returns a *DataQualityError naming the offending keys (capped, with an
// ellipsis for large violation sets) on the first validation pass that
// finds any, nil otherwise.
func Validate(rec *Record) error {
	var violations []string
	for key, value := range rec.Metrics() {
		if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
			violations = append(violations, fmt.Sprintf("%s=%g", key, value))
		}
	}
	if len(violations) == 0 {
		return nil
	}
	sort.Strings(violations)
	if len(violations) > maxReportedViolations {
		violations = append(violations[:maxReportedViolations], "...")
	}
	return &DataQualityError{Source: rec.SourceKey, Violations: violations}
}
