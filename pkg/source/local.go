// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalSource serves telemetry logs out of a directory tree. Keys are
// slash-separated paths relative to the root, regardless of platform.
type LocalSource struct {
	Root string
}

// NewLocalSource creates a source rooted at dir. The directory must exist.
func NewLocalSource(dir string) (*LocalSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat log directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("log path %s is not a directory", dir)
	}
	return &LocalSource{Root: dir}, nil
}

// List walks the tree and returns log file keys under prefix, sorted.
func (s *LocalSource) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) && IsLogKey(key) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk log directory %s: %w", s.Root, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Fetch opens the file addressed by key.
func (s *LocalSource) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Root, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("failed to open log %s: %w", key, err)
	}
	return f, nil
}
