package routes

import (
	"net/http"
	"path/filepath"
	"strings"

	"vox-agent-backend/internal/apperr"
	"vox-agent-backend/internal/config"
	"vox-agent-backend/internal/logger"
	"vox-agent-backend/services"
	"vox-agent-backend/utils"

	"github.com/gin-gonic/gin"
)

// TTSRequest is the body of POST /tts.
type TTSRequest struct {
	Text string `json:"text"`
}

// SetupAudioRoutes registers the optional speech endpoints.
func SetupAudioRoutes(router *gin.Engine, cfg *config.Config, audio *services.AudioService) {
	router.POST("/transcribe", func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No audio file provided.", nil)
			return
		}
		if file.Size == 0 {
			utils.RespondWithBadRequest(c, "Empty audio file.", nil)
			return
		}

		audioPath := filepath.Join(cfg.TempDir, filepath.Base(file.Filename))
		if err := c.SaveUploadedFile(file, audioPath); err != nil {
			utils.RespondWithInternalError(c, "Failed to save audio file", nil)
			return
		}

		text, err := audio.TranscribeAudio(c.Request.Context(), audioPath)
		if err != nil {
			logger.Error("Transcription failed", "error", err.Error())
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"text": text})
	})

	router.POST("/tts", func(c *gin.Context) {
		var req TTSRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			utils.RespondWithBadRequest(c, "Text is empty.", nil)
			return
		}

		audioPath, err := audio.TextToSpeech(c.Request.Context(), req.Text)
		if err != nil {
			// Unconfigured TTS is a service-unavailable condition, not a
			// client mistake.
			if apperr.IsKind(err, apperr.KindValidation) {
				utils.RespondWithError(c, http.StatusServiceUnavailable, "tts_unavailable", err.Error(), nil)
				return
			}
			logger.Error("TTS failed", "error", err.Error())
			utils.RespondWithAppError(c, err)
			return
		}

		c.FileAttachment(audioPath, filepath.Base(audioPath))
	})
}
