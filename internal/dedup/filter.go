package dedup

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/filecrate/dedup-service/internal/models"
)

// Filters is the compiled form of the advanced-search query parameters.
// Nil pointer fields mean the filter is inactive.
type Filters struct {
	MediaType string
	MinSize   *int64
	MaxSize   *int64
	StartDate *time.Time
	EndDate   *time.Time
	DateRange string
	Search    string
}

var dateShortcuts = map[string]struct{}{
	"today":      {},
	"yesterday":  {},
	"this_week":  {},
	"this_month": {},
	"this_year":  {},
}

// ParseFilters reads the recognized query parameters. Non-numeric size
// values and unparseable dates are ignored rather than rejected; an unknown
// date_range name is ignored too.
func ParseFilters(values url.Values) Filters {
	f := Filters{
		MediaType: values.Get("file_type"),
		Search:    values.Get("search"),
	}

	if v := values.Get("min_size"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.MinSize = &n
		}
	}
	if v := values.Get("max_size"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.MaxSize = &n
		}
	}
	if t, ok := parseDate(values.Get("start_date")); ok {
		f.StartDate = &t
	}
	if t, ok := parseDate(values.Get("end_date")); ok {
		f.EndDate = &t
	}
	if v := values.Get("date_range"); v != "" {
		if _, known := dateShortcuts[v]; known {
			f.DateRange = v
		}
	}
	return f
}

func parseDate(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Predicate compiles the filters into a single match function. All active
// filters combine with AND; the free-text search is itself the union of
// filename and media-type matches.
func (f Filters) Predicate(now time.Time) func(models.FileRecord) bool {
	start, end := f.dateBounds(now)

	return func(rec models.FileRecord) bool {
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(rec.OriginalFilename), needle) &&
				!strings.Contains(strings.ToLower(rec.MediaType), needle) {
				return false
			}
		}
		if f.MediaType != "" &&
			!strings.Contains(strings.ToLower(rec.MediaType), strings.ToLower(f.MediaType)) {
			return false
		}
		if f.MinSize != nil && rec.Size < *f.MinSize {
			return false
		}
		if f.MaxSize != nil && rec.Size > *f.MaxSize {
			return false
		}
		if start != nil && rec.UploadedAt.Before(*start) {
			return false
		}
		if end != nil && rec.UploadedAt.After(*end) {
			return false
		}
		return true
	}
}

// dateBounds resolves the effective inclusive upload-date window. A named
// shortcut overrides the explicit range.
func (f Filters) dateBounds(now time.Time) (start, end *time.Time) {
	start, end = f.StartDate, f.EndDate

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch f.DateRange {
	case "today":
		start, end = &midnight, nil
	case "yesterday":
		from := midnight.AddDate(0, 0, -1)
		to := midnight.Add(-time.Nanosecond)
		start, end = &from, &to
	case "this_week":
		// Week starts on the most recent Monday.
		offset := (int(now.Weekday()) + 6) % 7
		from := midnight.AddDate(0, 0, -offset)
		start, end = &from, nil
	case "this_month":
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		start, end = &from, nil
	case "this_year":
		from := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		start, end = &from, nil
	}
	return start, end
}

// CacheKey canonicalizes the filter set for use as a query-cache key.
func (f Filters) CacheKey() string {
	var b strings.Builder
	b.WriteString("type=" + f.MediaType)
	if f.MinSize != nil {
		fmt.Fprintf(&b, "|min=%d", *f.MinSize)
	}
	if f.MaxSize != nil {
		fmt.Fprintf(&b, "|max=%d", *f.MaxSize)
	}
	if f.StartDate != nil {
		b.WriteString("|start=" + f.StartDate.Format(time.RFC3339Nano))
	}
	if f.EndDate != nil {
		b.WriteString("|end=" + f.EndDate.Format(time.RFC3339Nano))
	}
	b.WriteString("|range=" + f.DateRange)
	b.WriteString("|search=" + strings.ToLower(f.Search))
	return b.String()
}
