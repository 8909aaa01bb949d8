package utils

import (
	"net/http"

	"vox-agent-backend/internal/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithAppError maps a taxonomy error to an HTTP response. Untyped
// errors become an opaque 500 so stack traces never reach the client.
func RespondWithAppError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		RespondWithError(c, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case apperr.KindConfiguration:
		RespondWithError(c, http.StatusInternalServerError, "configuration_error", err.Error(), nil)
	case apperr.KindConnectivity:
		RespondWithError(c, http.StatusBadGateway, "backend_unreachable", err.Error(), nil)
	case apperr.KindUpstream:
		RespondWithError(c, http.StatusBadGateway, "backend_error", err.Error(), nil)
	case apperr.KindProtocol:
		RespondWithError(c, http.StatusBadGateway, "backend_protocol_error", err.Error(), nil)
	default:
		RespondWithInternalError(c, "internal server error", nil)
	}
}
