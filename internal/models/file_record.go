package models

import (
	"encoding/json"
	"time"
)

// FileRecord is one row per distinct content fingerprint, not per upload.
// ReferenceCount tracks how many logical uploads point at the content; it is
// never below 1 for a record that exists.
type FileRecord struct {
	ID               string    `json:"id"`
	Fingerprint      string    `json:"file_hash"`
	OriginalFilename string    `json:"original_filename"`
	MediaType        string    `json:"file_type"`
	Size             int64     `json:"size"`
	Extension        string    `json:"extension"`
	Category         string    `json:"category"`
	Description      string    `json:"description,omitempty"`
	Tags             []string  `json:"tags"`
	IsFavorite       bool      `json:"is_favorite"`
	ReferenceCount   int       `json:"reference_count"`
	UploadedAt       time.Time `json:"uploaded_at"`

	// Version backs the optimistic concurrency check in the record store.
	Version int64 `json:"-"`
}

// SavedSpace is the storage avoided by deduplication for this record.
func (f *FileRecord) SavedSpace() int64 {
	if f.ReferenceCount > 1 {
		return f.Size * int64(f.ReferenceCount-1)
	}
	return 0
}

// MarshalJSON adds the derived saved_space field to serialized records.
func (f FileRecord) MarshalJSON() ([]byte, error) {
	type alias FileRecord
	return json.Marshal(struct {
		alias
		SavedSpace int64 `json:"saved_space"`
	}{
		alias:      alias(f),
		SavedSpace: f.SavedSpace(),
	})
}

// UploadMetadata carries the optional fields a client may attach to an
// upload. A nil *UploadMetadata means "not provided", which is distinct from
// an empty value. Duplicate uploads never have their metadata applied.
type UploadMetadata struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Favorite    bool     `json:"favorite"`
}

// Savings is the response payload for the storage-savings endpoint.
type Savings struct {
	TotalBytes int64   `json:"total_bytes"`
	TotalKB    float64 `json:"total_kb"`
	TotalMB    float64 `json:"total_mb"`
}

// StorageStats breaks down physical vs hypothetical storage use.
type StorageStats struct {
	ActualBytes          int64   `json:"actual_bytes"`
	ActualKB             float64 `json:"actual_kb"`
	ActualMB             float64 `json:"actual_mb"`
	SavedBytes           int64   `json:"saved_bytes"`
	SavedKB              float64 `json:"saved_kb"`
	SavedMB              float64 `json:"saved_mb"`
	WithoutDedupBytes    int64   `json:"without_dedup_bytes"`
	WithoutDedupKB       float64 `json:"without_dedup_kb"`
	WithoutDedupMB       float64 `json:"without_dedup_mb"`
	EfficiencyPercentage float64 `json:"efficiency_percentage"`
}

// TypeStat is one media type's slice of the distribution.
type TypeStat struct {
	MediaType  string `json:"file_type"`
	Count      int    `json:"count"`
	TotalBytes int64  `json:"total_size"`
}

// Stats is the response payload for the stats endpoint.
type Stats struct {
	UniqueFiles     int          `json:"unique_files"`
	TotalUploads    int64        `json:"total_uploads"`
	DuplicationRate float64      `json:"duplication_rate"`
	Storage         StorageStats `json:"storage"`
	FileTypes       []TypeStat   `json:"file_types"`
}
