package dedup

import (
	"math"
	"sort"

	"github.com/filecrate/dedup-service/internal/models"
)

// ComputeSavings sums the storage avoided by deduplication across records.
func ComputeSavings(records []models.FileRecord) models.Savings {
	var total int64
	for i := range records {
		total += records[i].SavedSpace()
	}
	return models.Savings{
		TotalBytes: total,
		TotalKB:    round2(float64(total) / 1024),
		TotalMB:    round2(float64(total) / 1024 / 1024),
	}
}

// ComputeStats aggregates the record set into savings and distribution
// metrics. Each record's size counts once toward actual storage regardless
// of its reference count; saved bytes are what duplicates would have added.
func ComputeStats(records []models.FileRecord) models.Stats {
	var totalUploads, actualBytes, savedBytes int64
	typeCounts := make(map[string]*models.TypeStat)

	for i := range records {
		rec := &records[i]
		totalUploads += int64(rec.ReferenceCount)
		actualBytes += rec.Size
		savedBytes += rec.SavedSpace()

		ts, ok := typeCounts[rec.MediaType]
		if !ok {
			ts = &models.TypeStat{MediaType: rec.MediaType}
			typeCounts[rec.MediaType] = ts
		}
		ts.Count++
		ts.TotalBytes += rec.Size
	}

	uniqueFiles := len(records)
	withoutDedup := actualBytes + savedBytes

	var duplicationRate float64
	if totalUploads > 0 {
		duplicationRate = round2(float64(totalUploads-int64(uniqueFiles)) / float64(totalUploads) * 100)
	}
	var efficiency float64
	if withoutDedup > 0 {
		efficiency = round2(float64(savedBytes) / float64(withoutDedup) * 100)
	}

	return models.Stats{
		UniqueFiles:     uniqueFiles,
		TotalUploads:    totalUploads,
		DuplicationRate: duplicationRate,
		Storage: models.StorageStats{
			ActualBytes:          actualBytes,
			ActualKB:             round2(float64(actualBytes) / 1024),
			ActualMB:             round2(float64(actualBytes) / 1024 / 1024),
			SavedBytes:           savedBytes,
			SavedKB:              round2(float64(savedBytes) / 1024),
			SavedMB:              round2(float64(savedBytes) / 1024 / 1024),
			WithoutDedupBytes:    withoutDedup,
			WithoutDedupKB:       round2(float64(withoutDedup) / 1024),
			WithoutDedupMB:       round2(float64(withoutDedup) / 1024 / 1024),
			EfficiencyPercentage: efficiency,
		},
		FileTypes: sortTypeStats(typeCounts),
	}
}

// ComputeFileTypes returns the by-media-type distribution, most common first.
func ComputeFileTypes(records []models.FileRecord) []models.TypeStat {
	typeCounts := make(map[string]*models.TypeStat)
	for i := range records {
		rec := &records[i]
		ts, ok := typeCounts[rec.MediaType]
		if !ok {
			ts = &models.TypeStat{MediaType: rec.MediaType}
			typeCounts[rec.MediaType] = ts
		}
		ts.Count++
		ts.TotalBytes += rec.Size
	}
	return sortTypeStats(typeCounts)
}

func sortTypeStats(typeCounts map[string]*models.TypeStat) []models.TypeStat {
	stats := make([]models.TypeStat, 0, len(typeCounts))
	for _, ts := range typeCounts {
		stats = append(stats, *ts)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].MediaType < stats[j].MediaType
	})
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
