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
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSSource serves telemetry logs out of a Google Cloud Storage bucket.
type GCSSource struct {
	storageClient *storage.Client
	BucketName    string
}

// NewGCSSource creates a source backed by the named bucket. When saKeyPath
// is non-empty it must point at a readable service account key; otherwise
// application default credentials are used.
func NewGCSSource(ctx context.Context, bucketName, saKeyPath string) (*GCSSource, error) {
	var opts []option.ClientOption
	if saKeyPath != "" {
		if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s. Please ensure you have the correct key and it is accessible", saKeyPath)
		}
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}

	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSSource{
		storageClient: storageClient,
		BucketName:    bucketName,
	}, nil
}

// List returns the object names under prefix, filtered to log files.
func (s *GCSSource) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := s.storageClient.Bucket(s.BucketName).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", s.BucketName, prefix, err)
		}
		if IsLogKey(attrs.Name) {
			keys = append(keys, attrs.Name)
		}
	}
	return keys, nil
}

// Fetch opens a reader over the object addressed by key.
func (s *GCSSource) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.storageClient.Bucket(s.BucketName).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", s.BucketName, key, err)
	}
	return rc, nil
}

// Close releases the underlying storage client.
func (s *GCSSource) Close() error {
	return s.storageClient.Close()
}
