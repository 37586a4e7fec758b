package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DownloadFile streams the blob behind a record. Duplicated records share
// one blob, keyed by the content fingerprint.
func (h *FileHandler) DownloadFile(c *gin.Context) {
	rec, err := h.Records.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	blob, err := h.Blobs.Get(c.Request.Context(), rec.Fingerprint)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": "failed to fetch blob: " + err.Error()})
		return
	}
	defer blob.Close()

	extraHeaders := map[string]string{
		"Content-Description": "File Transfer",
		"Content-Disposition": "attachment; filename=" + rec.OriginalFilename,
	}
	c.DataFromReader(http.StatusOK, rec.Size, rec.MediaType, blob, extraHeaders)
}
