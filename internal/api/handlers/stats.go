package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/filecrate/dedup-service/internal/dedup"
)

// GetSavings reports total storage avoided by deduplication.
func (h *FileHandler) GetSavings(c *gin.Context) {
	records, err := h.Records.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch file records"})
		return
	}
	c.JSON(http.StatusOK, dedup.ComputeSavings(records))
}

// GetStats reports the full dedup statistics payload.
func (h *FileHandler) GetStats(c *gin.Context) {
	records, err := h.Records.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch file records"})
		return
	}
	c.JSON(http.StatusOK, dedup.ComputeStats(records))
}

// GetFileTypes reports the by-media-type distribution.
func (h *FileHandler) GetFileTypes(c *gin.Context) {
	records, err := h.Records.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch file records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"file_types": dedup.ComputeFileTypes(records)})
}
