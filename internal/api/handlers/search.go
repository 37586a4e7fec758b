package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/filecrate/dedup-service/internal/dedup"
	"github.com/filecrate/dedup-service/internal/models"
)

// AdvancedSearch filters the record set by the compiled query parameters.
// Results are served through the query cache, which every mutation purges.
func (h *FileHandler) AdvancedSearch(c *gin.Context) {
	filters := dedup.ParseFilters(c.Request.URL.Query())

	if h.Cache != nil {
		if cached, ok := h.Cache.Get(filters.CacheKey()); ok {
			c.JSON(http.StatusOK, gin.H{"files": cached, "total": len(cached), "cached": true})
			return
		}
	}

	records, err := h.Records.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch file records"})
		return
	}

	match := filters.Predicate(time.Now())
	matched := make([]models.FileRecord, 0)
	for _, rec := range records {
		if match(rec) {
			matched = append(matched, rec)
		}
	}

	if h.Cache != nil {
		h.Cache.Set(filters.CacheKey(), matched)
	}
	c.JSON(http.StatusOK, gin.H{"files": matched, "total": len(matched)})
}
