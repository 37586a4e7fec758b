package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/filecrate/dedup-service/internal/models"
	"github.com/filecrate/dedup-service/internal/services"
)

// UploadResult is the per-file result object returned to the client.
type UploadResult struct {
	Success   bool        `json:"success"`
	Duplicate bool        `json:"duplicate,omitempty"`
	Message   string      `json:"message,omitempty"`
	File      interface{} `json:"file,omitempty"`  // contains models.FileRecord on success
	Error     string      `json:"error,omitempty"` // error message on failure
}

// UploadFile supports both single and multiple file uploads. Byte-identical
// content is never stored twice; a duplicate upload bumps the existing
// record's reference count instead.
func (h *FileHandler) UploadFile(c *gin.Context) {
	// Parse multipart form
	form, err := c.MultipartForm()
	if err != nil {
		// fallback: maybe a single file
		if f, ferr := c.FormFile("file"); ferr == nil && f != nil {
			form = &multipart.Form{
				File: map[string][]*multipart.FileHeader{
					"file": {f},
				},
			}
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse multipart form: " + err.Error()})
			return
		}
	}

	var files []*multipart.FileHeader

	// Preferred: "files"
	if fs, found := form.File["files"]; found && len(fs) > 0 {
		files = fs
	}

	// Fallback: "file"
	if len(files) == 0 {
		if f, found := form.File["file"]; found && len(f) > 0 {
			files = f
		}
	}

	// No files found
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	meta, err := parseUploadMetadata(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Process each file
	results := make([]UploadResult, 0, len(files))

	for _, fh := range files {
		result := h.ingestSingleFile(c, fh, meta)
		results = append(results, result)
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
	})
}

func (h *FileHandler) ingestSingleFile(c *gin.Context, fileHeader *multipart.FileHeader, meta *models.UploadMetadata) UploadResult {
	if fileHeader.Size > h.MaxUploadBytes {
		return UploadResult{Error: fmt.Sprintf("file too large: %s", fileHeader.Filename)}
	}

	file, err := fileHeader.Open()
	if err != nil {
		return UploadResult{Error: fmt.Sprintf("failed to open uploaded file: %v", err)}
	}
	defer file.Close()

	if h.Scanner != nil {
		if err := h.Scanner.ScanStream(file); err != nil {
			return UploadResult{Error: err.Error()}
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return UploadResult{Error: fmt.Sprintf("failed to rewind after scan: %v", err)}
		}
	}

	mediaType := fileHeader.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	rec, isNew, err := h.Engine.Ingest(c.Request.Context(), file, fileHeader.Filename, mediaType, fileHeader.Size, meta)
	if err != nil {
		return UploadResult{Error: err.Error()}
	}

	subject := services.SubjectFileUploaded
	result := UploadResult{Success: true, File: rec}
	if !isNew {
		subject = services.SubjectFileDuplicate
		result.Duplicate = true
		result.Message = "File already exists; no duplicate stored."
	}

	event := map[string]interface{}{
		"action":          "uploaded",
		"file_id":         rec.ID,
		"file_hash":       rec.Fingerprint,
		"file_type":       rec.MediaType,
		"size":            rec.Size,
		"reference_count": rec.ReferenceCount,
		"new_content":     isNew,
		"uploaded_at":     rec.UploadedAt.UTC().Format(time.RFC3339),
	}
	if err := services.PublishEvent(subject, event); err != nil {
		log.Printf("warning: failed to publish %s event: %v", subject, err)
	}

	return result
}

// parseUploadMetadata reads the optional description/tags/favorite form
// fields. Returns nil when none were provided; a malformed tags payload
// rejects the request.
func parseUploadMetadata(c *gin.Context) (*models.UploadMetadata, error) {
	description, hasDescription := c.GetPostForm("description")
	tagsRaw, hasTags := c.GetPostForm("tags")
	favorite, hasFavorite := c.GetPostForm("favorite")

	if !hasDescription && !hasTags && !hasFavorite {
		return nil, nil
	}

	meta := &models.UploadMetadata{Description: description, Favorite: favorite == "true"}
	if hasTags && tagsRaw != "" {
		if err := json.Unmarshal([]byte(tagsRaw), &meta.Tags); err != nil {
			return nil, fmt.Errorf("malformed tags payload: expected a JSON string array")
		}
	}
	return meta, nil
}
