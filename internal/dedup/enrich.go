package dedup

import "strings"

// Enrich derives the stored extension and category attributes from the
// declared filename and media type. It runs exactly once, at record
// creation; duplicate uploads never re-derive these.
func Enrich(filename, mediaType string) (extension, category string) {
	if idx := strings.LastIndex(filename, "."); idx >= 0 && idx < len(filename)-1 {
		extension = strings.ToLower(filename[idx+1:])
	}
	return extension, categorize(mediaType)
}

func categorize(mediaType string) string {
	mt := strings.ToLower(mediaType)
	primary := mt
	if idx := strings.Index(mt, "/"); idx >= 0 {
		primary = mt[:idx]
	}

	switch primary {
	case "image", "video", "audio":
		return primary
	}
	if strings.Contains(mt, "pdf") || strings.Contains(mt, "text") || strings.Contains(mt, "document") {
		return "document"
	}
	if strings.Contains(mt, "zip") || strings.Contains(mt, "compressed") {
		return "archive"
	}
	return "other"
}
