package routes

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"vox-agent-backend/internal/config"
	"vox-agent-backend/internal/logger"
	"vox-agent-backend/internal/telemetry"
	"vox-agent-backend/internal/vectorstore"
	"vox-agent-backend/services"
	"vox-agent-backend/utils"

	"github.com/gin-gonic/gin"
)

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query string `json:"query"`
}

// SetupRAGRoutes registers the ingestion, query and collection admin
// endpoints.
func SetupRAGRoutes(router *gin.Engine, cfg *config.Config, agent *services.Agent, store *vectorstore.Store, metrics *telemetry.Metrics) {
	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, store.Stats())
	})

	router.POST("/clear", func(c *gin.Context) {
		if err := store.Clear(c.Request.Context()); err != nil {
			logger.Error("Failed to clear collection", "error", err.Error())
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cleared"})
	})

	router.POST("/query", func(c *gin.Context) {
		var req QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		query := strings.TrimSpace(req.Query)
		if query == "" {
			utils.RespondWithBadRequest(c, "Query is empty.", nil)
			return
		}

		start := time.Now()
		resp := agent.Query(c.Request.Context(), query)
		metrics.RecordQuery(c.Request.Context(), start, resp.Error != "")

		c.JSON(http.StatusOK, resp)
	})

	router.POST("/process", func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid multipart form", gin.H{"error": err.Error()})
			return
		}
		files := form.File["files"]
		if len(files) == 0 {
			utils.RespondWithBadRequest(c, "No files provided.", nil)
			return
		}

		var filePaths []string
		var skipped []string
		for _, file := range files {
			if reason := validateUpload(cfg, file.Filename, file.Size); reason != "" {
				skipped = append(skipped, fmt.Sprintf("%s (%s)", file.Filename, reason))
				continue
			}

			dst := filepath.Join(cfg.UploadDir, filepath.Base(file.Filename))
			if err := c.SaveUploadedFile(file, dst); err != nil {
				skipped = append(skipped, fmt.Sprintf("%s (failed to save: %v)", file.Filename, err))
				continue
			}
			filePaths = append(filePaths, dst)
		}

		if len(filePaths) == 0 {
			c.JSON(http.StatusOK, gin.H{
				"success":         0,
				"failed":          0,
				"errors":          []string{},
				"processed_files": []string{},
				"skipped":         skipped,
			})
			return
		}

		entriesBefore := store.Stats().TotalDocuments
		result := agent.ProcessDocuments(c.Request.Context(), filePaths)
		metrics.RecordIngestion(c.Request.Context(), result.Success, store.Stats().TotalDocuments-entriesBefore)

		c.JSON(http.StatusOK, gin.H{
			"success":         result.Success,
			"failed":          result.Failed,
			"errors":          result.Errors,
			"processed_files": result.ProcessedFiles,
			"skipped":         skipped,
		})
	})
}

// validateUpload returns a rejection reason, or "" when the file is
// acceptable.
func validateUpload(cfg *config.Config, filename string, size int64) string {
	if filename == "" {
		return "invalid file name"
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".doc" {
		return "legacy .doc is not supported"
	}
	allowed := false
	for _, t := range cfg.AllowedTypes {
		if ext == strings.TrimSpace(t) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Sprintf("unsupported type (%s)", ext)
	}
	if size > cfg.MaxFileSize {
		return fmt.Sprintf("file too large, max %dMB", cfg.MaxFileSize/(1024*1024))
	}
	return ""
}
