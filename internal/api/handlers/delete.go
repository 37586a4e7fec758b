package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/filecrate/dedup-service/internal/services"
)

// DeleteFile removes one logical reference. Physical deletion only happens
// on the last reference.
func (h *FileHandler) DeleteFile(c *gin.Context) {
	fileID := c.Param("id")
	if fileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File ID is required"})
		return
	}

	outcome, err := h.Engine.Release(c.Request.Context(), fileID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	if outcome.Deleted {
		if err := services.PublishEvent(services.SubjectFileDeleted, gin.H{
			"action":    "deleted",
			"file_id":   fileID,
			"file_hash": outcome.Record.Fingerprint,
		}); err != nil {
			log.Printf("warning: failed to publish %s event: %v", services.SubjectFileDeleted, err)
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "File deleted successfully",
			"file_id": fileID,
		})
		return
	}

	if err := services.PublishEvent(services.SubjectFileReleased, gin.H{
		"action":          "released",
		"file_id":         fileID,
		"reference_count": outcome.NewCount,
	}); err != nil {
		log.Printf("warning: failed to publish %s event: %v", services.SubjectFileReleased, err)
	}
	c.JSON(http.StatusOK, outcome.Record)
}
