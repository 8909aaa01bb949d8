package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vox-agent-backend/internal/apperr"
	"vox-agent-backend/internal/logger"
)

// OCRClient talks to the OCR sidecar service that extracts text from
// images. The sidecar owns the OCR engine; this client only moves bytes.
type OCRClient struct {
	httpClient *http.Client
	baseURL    string
}

// OCRResponse is the sidecar's extraction result.
type OCRResponse struct {
	Success bool    `json:"success"`
	Text    string  `json:"text"`
	Regions int     `json:"regions"`
	Error   string  `json:"error,omitempty"`
	Elapsed float64 `json:"processing_time,omitempty"`
}

// NewOCRClient returns nil when no sidecar is configured; image ingestion
// is then rejected with a configuration error instead of crashing.
func NewOCRClient(baseURL string) *OCRClient {
	if baseURL == "" {
		return nil
	}
	return &OCRClient{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // OCR can take time
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// IsHealthy checks if the OCR sidecar is reachable.
func (c *OCRClient) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ExtractText uploads the image and returns the recognized text.
func (c *OCRClient) ExtractText(ctx context.Context, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return "", fmt.Errorf("failed to build OCR request: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", &body)
	if err != nil {
		return "", fmt.Errorf("failed to build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.Connectivity(err, "cannot reach OCR service at %s", c.baseURL)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Connectivity(err, "failed to read OCR response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.Upstream(resp.StatusCode, string(respBody))
	}

	var ocrResp OCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return "", apperr.Protocol("OCR service returned malformed JSON: %v", err)
	}
	if !ocrResp.Success {
		return "", apperr.Upstream(resp.StatusCode, ocrResp.Error)
	}

	logger.Debug("OCR extraction complete", "file", filepath.Base(filePath), "regions", ocrResp.Regions)
	return ocrResp.Text, nil
}
