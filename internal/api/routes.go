package api

import (
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"

	"github.com/filecrate/dedup-service/internal/api/handlers"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, PATCH, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	}
}

// RegisterRoutes wires the HTTP surface. Extra middleware (auth) applies to
// the /api group only.
func RegisterRoutes(r *gin.Engine, h *handlers.FileHandler, extra ...gin.HandlerFunc) {
	r.Use(corsMiddleware())
	r.Use(gintrace.Middleware("dedup-service"))

	api := r.Group("/api")
	api.Use(extra...)
	{
		api.GET("/health", handlers.HealthCheck)

		// Upload (single or multiple files, deduplicated by content)
		api.POST("/upload", h.UploadFile)

		// File endpoints
		api.GET("/files", h.ListFiles)
		api.GET("/files/savings", h.GetSavings)
		api.GET("/files/stats", h.GetStats)
		api.GET("/files/file_types", h.GetFileTypes)
		api.GET("/files/advanced_search", h.AdvancedSearch)
		api.POST("/files/bulk_delete", h.BulkDelete)
		api.POST("/files/bulk_tag", h.BulkTag)
		api.GET("/files/:id", h.GetFile)
		api.GET("/files/:id/download", h.DownloadFile)
		api.DELETE("/files/:id", h.DeleteFile)
	}
}
