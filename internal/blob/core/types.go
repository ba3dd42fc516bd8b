// Package core defines the artifact storage contract shared by the blob
// backends. Exported catalog files are written here by the export worker.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem stores artifacts under a local directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 stores artifacts in an S3 or MinIO bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps artifacts in process memory.
	DriverMemory Driver = "memory"
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored artifact.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is the minimal object-store surface the exporter needs.
type Store interface {
	// Put writes a new artifact. Existing keys are rejected with ErrExists.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get opens an artifact. Missing keys yield ErrNotFound.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	// Delete reports false without error when the key is absent.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns artifacts under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	// SignURL returns a time-limited download link, or ErrUnsupported.
	SignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Driver() Driver
}

var (
	// ErrUnsupported is returned when a backend lacks an optional capability.
	ErrUnsupported = errors.New("blob: unsupported operation")
	// ErrNotFound is returned for missing artifacts.
	ErrNotFound = errors.New("blob: not found")
	// ErrExists is returned when Put targets an existing key.
	ErrExists = errors.New("blob: already exists")
)

// DefaultURLExpiry applies when SignURL is called with a non-positive expiry.
const DefaultURLExpiry = 15 * time.Minute

// CloneMetadata copies user metadata so callers never share a map with a backend.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
