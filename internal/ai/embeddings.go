package ai

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"math"
	"regexp"
	"strings"
	"time"

	"vox-agent-backend/internal/apperr"
	"vox-agent-backend/internal/config"
	"vox-agent-backend/internal/logger"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder maps text to fixed-dimension vectors. All vectors from one
// instance share the same dimension.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelInfo() string
}

// ProviderMode records which embedding provider won at startup.
type ProviderMode int

const (
	ModePrimary ProviderMode = iota
	ModeFallback
)

func (m ProviderMode) String() string {
	if m == ModePrimary {
		return "primary"
	}
	return "fallback"
}

// ResolveEmbedder tries the model-backed provider first and falls back to
// the deterministic hashed embedder. Failure to reach the embedding backend
// is recoverable and must not crash startup; the outcome is decided once
// here, never re-probed per call.
func ResolveEmbedder(cfg *config.Config) (Embedder, ProviderMode) {
	if cfg.EmbeddingsProvider == "openai" {
		primary, err := NewOpenAIEmbedder(cfg)
		if err == nil {
			logger.Info("Embedding provider initialized", "model", primary.ModelInfo(), "dim", primary.Dimension())
			return primary, ModePrimary
		}
		logger.Warn("Falling back to hashed embeddings", "error", err.Error())
	}
	fallback := NewHashedEmbedder(cfg.EmbeddingDim)
	logger.Info("Embedding provider initialized", "model", fallback.ModelInfo(), "dim", fallback.Dimension())
	return fallback, ModeFallback
}

// OpenAIEmbedder delegates to an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAIEmbedder probes the configured endpoint with a one-shot request
// so a dead backend is caught at startup rather than mid-ingestion. The
// probe also pins the provider's dimension.
func NewOpenAIEmbedder(cfg *config.Config) (*OpenAIEmbedder, error) {
	clientCfg := openai.DefaultConfig(cfg.LLMAPIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.LLMBaseURL, "/")

	e := &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.EmbeddingModel,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	probe, err := e.EmbedText(ctx, "dimension probe")
	if err != nil {
		return nil, err
	}
	e.dim = len(probe)
	return e, nil
}

func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, apperr.Connectivity(err, "embedding request to %s failed", e.model)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperr.Protocol("embedding backend returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	// The API does not guarantee input order; Index does.
	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vecs) {
			return nil, apperr.Protocol("embedding backend returned out-of-range index %d", item.Index)
		}
		v := make([]float32, len(item.Embedding))
		copy(v, item.Embedding)
		l2Normalize(v)
		vecs[item.Index] = v
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) Dimension() int { return e.dim }

func (e *OpenAIEmbedder) ModelInfo() string { return "openai-" + e.model }

const minHashedDim = 8

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+`)

// HashedEmbedder is the deterministic bag-of-tokens fallback: no model, no
// training, reproducible bit-for-bit. Each lowercased token is hashed with
// MD5; the first 4 digest bytes, read little-endian, pick a bucket mod the
// dimension; the final vector is L2-normalized unless it is all zeros.
type HashedEmbedder struct {
	dim int
}

func NewHashedEmbedder(dim int) *HashedEmbedder {
	if dim < minHashedDim {
		dim = minHashedDim
	}
	return &HashedEmbedder{dim: dim}
}

func (e *HashedEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for _, token := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		digest := md5.Sum([]byte(token))
		idx := binary.LittleEndian.Uint32(digest[:4]) % uint32(e.dim)
		vec[idx] += 1.0
	}
	l2Normalize(vec)
	return vec, nil
}

func (e *HashedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

func (e *HashedEmbedder) Dimension() int { return e.dim }

func (e *HashedEmbedder) ModelInfo() string { return "hashed-bag-of-tokens" }

// l2Normalize scales v to unit length in place. A zero vector is left
// untouched.
func l2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
