package dedup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/filecrate/dedup-service/internal/models"
	"github.com/filecrate/dedup-service/internal/storage"
)

// ErrInvalidInput marks rejected upload input (missing bytes, malformed
// fields). Storage errors pass through untouched.
var ErrInvalidInput = errors.New("invalid input")

// Engine decides create-vs-reuse for incoming uploads and owns the
// reference-counting lifecycle. All mutations are optimistic
// read-modify-write cycles against the record store; a version conflict
// means another writer made progress, so conflicted operations re-read and
// retry until they land.
type Engine struct {
	records storage.RecordStore
	blobs   storage.BlobStore

	// onMutation runs synchronously after every successful mutation so
	// cached query results never outlive a write.
	onMutation func()

	now func() time.Time
}

func NewEngine(records storage.RecordStore, blobs storage.BlobStore) *Engine {
	return &Engine{
		records: records,
		blobs:   blobs,
		now:     time.Now,
	}
}

// OnMutation registers the cache-invalidation hook.
func (e *Engine) OnMutation(fn func()) {
	e.onMutation = fn
}

func (e *Engine) mutated() {
	if e.onMutation != nil {
		e.onMutation()
	}
}

// Ingest stores one logical upload. Byte-identical content lands on the
// existing record with its reference count incremented; the caller's
// filename, media type and optional metadata are discarded in that case.
// New content gets a fresh record with reference count 1. The second return
// value reports whether new content was stored.
func (e *Engine) Ingest(ctx context.Context, content io.ReadSeeker, filename, mediaType string, size int64, meta *models.UploadMetadata) (models.FileRecord, bool, error) {
	if content == nil {
		return models.FileRecord{}, false, fmt.Errorf("%w: no content provided", ErrInvalidInput)
	}

	fingerprint, err := Fingerprint(content)
	if err != nil {
		return models.FileRecord{}, false, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return models.FileRecord{}, false, err
		}

		rec, err := e.records.FindByFingerprint(ctx, fingerprint)
		if err == nil {
			updated, err := e.incrementOnce(ctx, rec)
			if errors.Is(err, storage.ErrVersionConflict) || errors.Is(err, storage.ErrNotFound) {
				// Lost a race against another upload or a release;
				// re-read and go again.
				continue
			}
			return updated, false, err
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return models.FileRecord{}, false, err
		}

		created, err := e.createRecord(ctx, content, fingerprint, filename, mediaType, size, meta)
		if errors.Is(err, storage.ErrDuplicateFingerprint) {
			// Concurrent first upload of the same content won the
			// insert; fall back to an increment.
			continue
		}
		if err != nil {
			return models.FileRecord{}, false, err
		}
		return created, true, nil
	}
}

func (e *Engine) createRecord(ctx context.Context, content io.ReadSeeker, fingerprint, filename, mediaType string, size int64, meta *models.UploadMetadata) (models.FileRecord, error) {
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return models.FileRecord{}, fmt.Errorf("failed to rewind content: %w", err)
	}
	if err := e.blobs.Put(ctx, fingerprint, content, size, mediaType); err != nil {
		return models.FileRecord{}, fmt.Errorf("failed to store blob: %w", err)
	}

	extension, category := Enrich(filename, mediaType)
	rec := models.FileRecord{
		ID:               uuid.New().String(),
		Fingerprint:      fingerprint,
		OriginalFilename: filename,
		MediaType:        mediaType,
		Size:             size,
		Extension:        extension,
		Category:         category,
		Tags:             []string{},
		ReferenceCount:   1,
		UploadedAt:       e.now(),
		Version:          1,
	}
	if meta != nil {
		rec.Description = meta.Description
		rec.Tags = mergeTags(nil, meta.Tags)
		rec.IsFavorite = meta.Favorite
	}

	if err := e.records.Create(ctx, rec); err != nil {
		if !errors.Is(err, storage.ErrDuplicateFingerprint) {
			e.cleanupOrphanBlob(ctx, fingerprint)
		}
		return models.FileRecord{}, err
	}
	e.mutated()
	return rec, nil
}

// cleanupOrphanBlob removes a blob left behind by a failed create, but only
// after confirming no record claimed the fingerprint in the meantime; a
// concurrent upload may have succeeded between our put and our failed insert.
func (e *Engine) cleanupOrphanBlob(ctx context.Context, fingerprint string) {
	_, err := e.records.FindByFingerprint(ctx, fingerprint)
	if err == nil {
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		log.Printf("warning: skipping blob cleanup for %s: %v", fingerprint, err)
		return
	}
	if delErr := e.blobs.Delete(ctx, fingerprint); delErr != nil {
		log.Printf("warning: failed to clean up blob after create failure: %v", delErr)
	}
}

func (e *Engine) incrementOnce(ctx context.Context, rec models.FileRecord) (models.FileRecord, error) {
	rec.ReferenceCount++
	if err := e.records.Update(ctx, rec); err != nil {
		return models.FileRecord{}, err
	}
	rec.Version++
	e.mutated()
	return rec, nil
}

// ReleaseOutcome reports what Release did. When Deleted is false the record
// survived with NewCount remaining references.
type ReleaseOutcome struct {
	Deleted  bool
	NewCount int
	Record   models.FileRecord
}

// Release removes one logical reference from a record. The last reference
// deletes the record and its blob; any earlier release only decrements.
func (e *Engine) Release(ctx context.Context, id string) (ReleaseOutcome, error) {
	for {
		if err := ctx.Err(); err != nil {
			return ReleaseOutcome{}, err
		}

		rec, err := e.records.FindByID(ctx, id)
		if err != nil {
			return ReleaseOutcome{}, err
		}

		if rec.ReferenceCount > 1 {
			rec.ReferenceCount--
			err := e.records.Update(ctx, rec)
			if errors.Is(err, storage.ErrVersionConflict) {
				continue
			}
			if err != nil {
				return ReleaseOutcome{}, err
			}
			rec.Version++
			e.mutated()
			return ReleaseOutcome{NewCount: rec.ReferenceCount, Record: rec}, nil
		}

		err = e.records.Delete(ctx, id, rec.Version)
		if errors.Is(err, storage.ErrVersionConflict) {
			// A concurrent upload re-referenced the content; re-read
			// and decrement instead.
			continue
		}
		if err != nil {
			return ReleaseOutcome{}, err
		}
		if err := e.blobs.Delete(ctx, rec.Fingerprint); err != nil {
			log.Printf("warning: failed to release blob %s: %v", rec.Fingerprint, err)
		}
		e.mutated()
		return ReleaseOutcome{Deleted: true, Record: rec}, nil
	}
}

// BulkResult collects the outcome of a best-effort batch operation.
type BulkResult struct {
	Released int               `json:"released"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// BulkRelease applies Release to each id independently. A failure on one id
// is recorded against that id and does not abort the rest of the batch.
func (e *Engine) BulkRelease(ctx context.Context, ids []string) BulkResult {
	result := BulkResult{}
	for _, id := range ids {
		if _, err := e.Release(ctx, id); err != nil {
			if result.Errors == nil {
				result.Errors = make(map[string]string)
			}
			result.Errors[id] = err.Error()
			continue
		}
		result.Released++
	}
	return result
}

// AddTags appends tags to a record, deduplicating on insert.
func (e *Engine) AddTags(ctx context.Context, id string, tags []string) (models.FileRecord, error) {
	if len(tags) == 0 {
		return models.FileRecord{}, fmt.Errorf("%w: no tags provided", ErrInvalidInput)
	}
	for {
		if err := ctx.Err(); err != nil {
			return models.FileRecord{}, err
		}

		rec, err := e.records.FindByID(ctx, id)
		if err != nil {
			return models.FileRecord{}, err
		}
		rec.Tags = mergeTags(rec.Tags, tags)

		err = e.records.Update(ctx, rec)
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return models.FileRecord{}, err
		}
		rec.Version++
		e.mutated()
		return rec, nil
	}
}

func mergeTags(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, t := range existing {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		merged = append(merged, t)
	}
	for _, t := range incoming {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		merged = append(merged, t)
	}
	return merged
}
