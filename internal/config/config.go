package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	UploadDir    string
	TempDir      string
	MaxFileSize  int64
	AllowedTypes []string

	VectorDBDir    string
	CollectionName string
	ChunkSize      int
	ChunkOverlap   int

	LLMBaseURL    string
	LLMAPIKey     string
	LLMModel      string
	LLMTimeout    int
	ForceTextOnly bool

	EmbeddingsProvider string
	EmbeddingModel     string
	EmbeddingDim       int

	MaxImageContext int
	RetrievalK      int

	OCRServiceURL string

	STTBinary    string
	STTModelPath string
	TTSBinary    string
	TTSModelPath string

	RateLimitReqs   int
	RateLimitWindow int
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:8501"), ","),

		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		TempDir:      getEnv("TEMP_DIR", "temp"),
		MaxFileSize:  getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB
		AllowedTypes: strings.Split(getEnv("ALLOWED_FILE_TYPES", ".pdf,.docx,.png,.jpg,.jpeg,.bmp,.tiff,.gif"), ","),

		VectorDBDir:    getEnv("VECTOR_DB_DIR", "vector_db"),
		CollectionName: getEnv("COLLECTION_NAME", "multimodal_docs"),
		ChunkSize:      getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 200),

		LLMBaseURL:    getEnv("LLM_BASE_URL", "http://localhost:1234/v1"),
		LLMAPIKey:     getEnv("LLM_API_KEY", ""),
		LLMModel:      getEnv("LLM_MODEL", "liquid/lfm2-1.2b"),
		LLMTimeout:    getEnvInt("LLM_TIMEOUT_SECONDS", 200),
		ForceTextOnly: getEnvBool("FORCE_TEXT_ONLY", false),

		EmbeddingsProvider: getEnv("EMBEDDINGS_PROVIDER", "openai"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-nomic-embed-text-v1.5"),
		EmbeddingDim:       getEnvInt("EMBEDDING_DIM", 384),

		MaxImageContext: getEnvInt("MAX_IMAGE_CONTEXT", 2),
		RetrievalK:      getEnvInt("RETRIEVAL_K", 4),

		OCRServiceURL: getEnv("OCR_SERVICE_URL", ""),

		STTBinary:    getEnv("STT_BINARY", "whisper-cli"),
		STTModelPath: getEnv("STT_MODEL_PATH", ""),
		TTSBinary:    getEnv("TTS_BINARY", "piper"),
		TTSModelPath: getEnv("TTS_MODEL_PATH", ""),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
	}

	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("CHUNK_SIZE must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", cfg.ChunkOverlap)
	}

	if err := cfg.ensureDirectories(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ensureDirectories creates the writable directories the service needs.
func (c *Config) ensureDirectories() error {
	for _, dir := range []string{c.UploadDir, c.TempDir, c.VectorDBDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// VectorDBPath returns the on-disk location of the named collection.
func (c *Config) VectorDBPath() string {
	return filepath.Join(c.VectorDBDir, c.CollectionName+".db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
