package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/filecrate/dedup-service/internal/dedup"
	"github.com/filecrate/dedup-service/internal/services"
	"github.com/filecrate/dedup-service/internal/storage"
)

// FileHandler carries the wired collaborators for all file endpoints.
type FileHandler struct {
	Engine         *dedup.Engine
	Records        storage.RecordStore
	Blobs          storage.BlobStore
	Cache          *dedup.QueryCache
	Scanner        *services.Scanner
	MaxUploadBytes int64
}

func NewFileHandler(engine *dedup.Engine, records storage.RecordStore, blobs storage.BlobStore, cache *dedup.QueryCache, scanner *services.Scanner, maxUploadBytes int64) *FileHandler {
	return &FileHandler{
		Engine:         engine,
		Records:        records,
		Blobs:          blobs,
		Cache:          cache,
		Scanner:        scanner,
		MaxUploadBytes: maxUploadBytes,
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusForError maps the storage/engine error taxonomy onto HTTP codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dedup.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
