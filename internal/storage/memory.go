package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/filecrate/dedup-service/internal/models"
)

// MemoryRecordStore is an in-memory RecordStore with the same semantics as
// the PostgreSQL one. Used in tests and when STORAGE_BACKEND=memory.
type MemoryRecordStore struct {
	mu            sync.RWMutex
	records       map[string]models.FileRecord
	byFingerprint map[string]string
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records:       make(map[string]models.FileRecord),
		byFingerprint: make(map[string]string),
	}
}

func cloneRecord(rec models.FileRecord) models.FileRecord {
	out := rec
	out.Tags = append([]string(nil), rec.Tags...)
	return out
}

func (m *MemoryRecordStore) FindByFingerprint(ctx context.Context, fingerprint string) (models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byFingerprint[fingerprint]
	if !ok {
		return models.FileRecord{}, ErrNotFound
	}
	return cloneRecord(m.records[id]), nil
}

func (m *MemoryRecordStore) FindByID(ctx context.Context, id string) (models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return models.FileRecord{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryRecordStore) Create(ctx context.Context, record models.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byFingerprint[record.Fingerprint]; taken {
		return ErrDuplicateFingerprint
	}
	record.Version = 1
	m.records[record.ID] = cloneRecord(record)
	m.byFingerprint[record.Fingerprint] = record.ID
	return nil
}

func (m *MemoryRecordStore) Update(ctx context.Context, record models.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[record.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != record.Version {
		return ErrVersionConflict
	}
	record.Fingerprint = current.Fingerprint
	record.UploadedAt = current.UploadedAt
	record.Version = current.Version + 1
	m.records[record.ID] = cloneRecord(record)
	return nil
}

func (m *MemoryRecordStore) Delete(ctx context.Context, id string, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if current.Version != version {
		return ErrVersionConflict
	}
	delete(m.records, id)
	delete(m.byFingerprint, current.Fingerprint)
	return nil
}

func (m *MemoryRecordStore) List(ctx context.Context) ([]models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]models.FileRecord, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, cloneRecord(rec))
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UploadedAt.After(records[j].UploadedAt)
	})
	return records, nil
}

// MemoryBlobStore is an in-memory BlobStore double.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Put(ctx context.Context, fingerprint string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[fingerprint] = data
	return nil
}

func (m *MemoryBlobStore) Get(ctx context.Context, fingerprint string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[fingerprint]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryBlobStore) Delete(ctx context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, fingerprint)
	return nil
}

// Has reports whether the blob store holds bytes for a fingerprint.
func (m *MemoryBlobStore) Has(fingerprint string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[fingerprint]
	return ok
}
