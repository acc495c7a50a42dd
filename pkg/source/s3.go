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

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Source serves telemetry logs out of an S3-compatible object store.
// It works against AWS S3 as well as MinIO deployments at the edge.
type S3Source struct {
	client     *minio.Client
	BucketName string
}

// S3Options configures access to an S3-compatible endpoint.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewS3Source creates a source backed by the named bucket.
func NewS3Source(opts S3Options, bucketName string) (*S3Source, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client for %s: %w", opts.Endpoint, err)
	}
	return &S3Source{client: client, BucketName: bucketName}, nil
}

// List returns the object keys under prefix, filtered to log files.
func (s *S3Source) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.BucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.BucketName, prefix, obj.Err)
		}
		if IsLogKey(obj.Key) {
			keys = append(keys, obj.Key)
		}
	}
	return keys, nil
}

// Fetch opens a reader over the object addressed by key.
func (s *S3Source) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open s3://%s/%s: %w", s.BucketName, key, err)
	}
	return obj, nil
}
