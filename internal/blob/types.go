// Package blob re-exports the artifact storage contract and opens the
// configured backend. Callers outside this package depend on blob.Store only.
package blob

import (
	"catalogexplorer/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures an artifact write.
	PutOptions = core.PutOptions
	// Info describes stored artifact metadata.
	Info = core.Info
	// Store is the interface for artifact storage backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
)

// DefaultURLExpiry applies when SignURL is called with a non-positive expiry.
const DefaultURLExpiry = core.DefaultURLExpiry

// CloneMetadata copies user metadata so callers never share a map with a backend.
var CloneMetadata = core.CloneMetadata
