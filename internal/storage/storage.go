package storage

import (
	"context"
	"errors"
	"io"

	"github.com/filecrate/dedup-service/internal/models"
)

var (
	// ErrNotFound is returned for operations on an unknown record id.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateFingerprint is returned by Create when another record
	// already holds the content fingerprint. The dedup engine recovers
	// from this by falling back to an increment.
	ErrDuplicateFingerprint = errors.New("fingerprint already exists")

	// ErrVersionConflict is returned by Update and Delete when the record
	// changed since it was read. Callers re-read and retry.
	ErrVersionConflict = errors.New("record version conflict")
)

// RecordStore is the durable table of file records, keyed by id with a
// unique secondary index on content fingerprint.
type RecordStore interface {
	FindByFingerprint(ctx context.Context, fingerprint string) (models.FileRecord, error)
	FindByID(ctx context.Context, id string) (models.FileRecord, error)

	// Create persists a new record. Fails with ErrDuplicateFingerprint if
	// the fingerprint is already taken.
	Create(ctx context.Context, record models.FileRecord) error

	// Update persists record iff the stored version still matches
	// record.Version, then bumps the version.
	Update(ctx context.Context, record models.FileRecord) error

	// Delete removes the record iff the stored version still matches.
	Delete(ctx context.Context, id string, version int64) error

	// List returns all records, newest upload first.
	List(ctx context.Context) ([]models.FileRecord, error)
}

// BlobStore is an opaque fingerprint->bytes map. Put is idempotent: writing
// the same fingerprint twice is a no-op, not an error.
type BlobStore interface {
	Put(ctx context.Context, fingerprint string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, fingerprint string) (io.ReadCloser, error)
	Delete(ctx context.Context, fingerprint string) error
}
