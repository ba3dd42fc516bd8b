package blob

import (
	"context"
	"fmt"

	fsstore "catalogexplorer/internal/infra/blob/fs"
	memorystore "catalogexplorer/internal/infra/blob/memory"
	s3store "catalogexplorer/internal/infra/blob/s3"
)

// S3Config configures the s3 driver.
type S3Config = s3store.Config

// Config selects and configures a backend.
type Config struct {
	Driver string
	FSRoot string
	S3     S3Config
}

// Open returns the backend named by cfg.Driver (default fs).
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(cfg.Driver) {
	case "", DriverFilesystem:
		return fsstore.New(cfg.FSRoot)
	case DriverMemory:
		return memorystore.New(), nil
	case DriverS3:
		return s3store.New(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewMemory returns an in-memory store.
func NewMemory() Store { return memorystore.New() }

// NewMockS3ForTests exposes the fake-bucket S3 store to other packages' tests.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }
