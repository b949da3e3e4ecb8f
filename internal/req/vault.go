package req

import (
	"context"
	"io"
)

// Vault is off-host storage for baseline archives (content addressed by
// SHA-256) and per-host database snapshots (metadata).
type Vault interface {
	// Name is recorded on every BaselineArchive stored here.
	Name() string

	// PutContent stores exactly size bytes from r under checksum. Storing a
	// checksum that already exists is a no-op.
	PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error

	GetContent(ctx context.Context, checksum string, w io.Writer) error

	// PutMetadata stores a named item for hostID, tagged with version. The
	// store snapshot is named "db" and versioned by operation id.
	PutMetadata(ctx context.Context, hostID, name string, r io.Reader, size int64, version int64) error

	GetMetadata(ctx context.Context, hostID, name string, w io.Writer) error

	// GetMetadataVersion returns 0 when nothing is stored for hostID/name.
	GetMetadataVersion(ctx context.Context, hostID, name string) (int64, error)

	// ValidateSetup checks the vault can be reached and written.
	ValidateSetup(ctx context.Context) error
}
