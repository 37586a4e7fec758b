package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BulkDelete releases each id independently; one failure never aborts the
// rest of the batch.
func (h *FileHandler) BulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no ids provided"})
		return
	}

	result := h.Engine.BulkRelease(c.Request.Context(), req.IDs)
	c.JSON(http.StatusOK, result)
}

type bulkTagRequest struct {
	IDs  []string `json:"ids"`
	Tags []string `json:"tags"`
}

// BulkTag appends tags to each record, collecting per-id errors.
func (h *FileHandler) BulkTag(c *gin.Context) {
	var req bulkTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.IDs) == 0 || len(req.Tags) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids and tags are required"})
		return
	}

	tagged := 0
	perIDErrors := make(map[string]string)
	for _, id := range req.IDs {
		if _, err := h.Engine.AddTags(c.Request.Context(), id, req.Tags); err != nil {
			perIDErrors[id] = err.Error()
			continue
		}
		tagged++
	}

	resp := gin.H{"tagged": tagged}
	if len(perIDErrors) > 0 {
		resp["errors"] = perIDErrors
	}
	c.JSON(http.StatusOK, resp)
}
