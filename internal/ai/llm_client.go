package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"vox-agent-backend/internal/apperr"
	"vox-agent-backend/internal/config"
	"vox-agent-backend/internal/logger"
	"vox-agent-backend/models"
	"vox-agent-backend/utils"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const defaultMaxTokens = 250

const contextSystemPrompt = `You are a helpful AI assistant with expertise in analyzing documents.
Use the provided context to answer questions accurately. If the answer cannot be found in the context,
say so clearly. Always cite which document your answer comes from.`

const multimodalSystemPrompt = `You are a helpful AI assistant with expertise in analyzing documents and images.
Use the provided context and images to answer questions accurately. Analyze both the text context
and the visual information in the images. If the answer cannot be found, say so clearly.
Always cite which document or image your answer comes from.`

// LLMClient wraps an OpenAI-compatible chat-completion endpoint with
// capability negotiation for vision models. Calls go through a circuit
// breaker and rate limiter and are bounded by the configured timeout.
type LLMClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter

	mu            sync.Mutex
	visionCapable bool
}

func NewLLMClient(cfg *config.Config) *LLMClient {
	clientCfg := openai.DefaultConfig(cfg.LLMAPIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.LLMBaseURL, "/")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GenerationAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	visionCapable := !cfg.ForceTextOnly && IsVisionModel(cfg.LLMModel)

	c := &LLMClient{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         cfg.LLMModel,
		timeout:       time.Duration(cfg.LLMTimeout) * time.Second,
		breaker:       breaker,
		limiter:       rate.NewLimiter(rate.Limit(2), 5),
		visionCapable: visionCapable,
	}

	logger.Info("LLM client initialized", "model", c.model, "vision", visionCapable, "base_url", clientCfg.BaseURL)
	return c
}

var visionTokenPattern = regexp.MustCompile(`(^|[^a-z0-9])vl([^a-z0-9]|$)`)

// IsVisionModel guesses from the model name whether the backend accepts
// image inputs. This is best-effort capability inference, not a hard
// contract; FORCE_TEXT_ONLY is the override for misclassified models.
func IsVisionModel(model string) bool {
	name := strings.ToLower(model)
	if name == "" {
		return false
	}
	for _, fragment := range []string{"qwen2-vl", "qwen3-vl", "llava", "minicpm", "pixtral"} {
		if strings.Contains(name, fragment) {
			return true
		}
	}
	if strings.Contains(name, "vision") {
		return true
	}
	return visionTokenPattern.MatchString(name)
}

// IsVisionCapable reports the cached capability flag. It starts from the
// name heuristic and can only be downgraded, never re-probed upward.
func (c *LLMClient) IsVisionCapable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visionCapable
}

func (c *LLMClient) downgradeVision() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visionCapable = false
}

// GenerateText runs a text-only completion.
func (c *LLMClient) GenerateText(ctx context.Context, prompt, systemPrompt string, temperature float32, maxTokens int) (string, error) {
	messages := buildMessages(systemPrompt)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
	return c.complete(ctx, messages, temperature, maxTokens, 0)
}

// GenerateMultimodal runs a completion with text plus images. It silently
// degrades to text-only when the model is not vision-capable or no image
// survives encoding. An HTTP 400 is treated as "the model does not actually
// support vision": the cached flag flips to false and the call is retried
// exactly once as text-only.
func (c *LLMClient) GenerateMultimodal(ctx context.Context, prompt string, imagePaths []string, systemPrompt string, temperature float32, maxTokens int) (string, error) {
	if !c.IsVisionCapable() {
		logger.Warn("Model is not vision-capable, images ignored", "model", c.model, "images", len(imagePaths))
		return c.GenerateText(ctx, prompt, systemPrompt, temperature, maxTokens)
	}

	parts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	}}
	imagesAdded := 0
	for _, path := range imagePaths {
		part, err := encodeImagePart(path)
		if err != nil {
			logger.Warn("Failed to encode image, skipping", "path", path, "error", err.Error())
			continue
		}
		parts = append(parts, part)
		imagesAdded++
	}

	if imagesAdded == 0 {
		logger.Warn("No images could be encoded, falling back to text-only generation")
		return c.GenerateText(ctx, prompt, systemPrompt, temperature, maxTokens)
	}

	messages := buildMessages(systemPrompt)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	})

	response, err := c.complete(ctx, messages, temperature, maxTokens, imagesAdded)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind == apperr.KindUpstream && ae.Status == 400 {
			logger.Warn("Backend rejected multimodal payload with 400, downgrading to text-only", "model", c.model)
			c.downgradeVision()
			return c.GenerateText(ctx, prompt, systemPrompt, temperature, maxTokens)
		}
		return "", err
	}
	return response, nil
}

// GenerateWithContext answers a query grounded in retrieved context.
func (c *LLMClient) GenerateWithContext(ctx context.Context, query string, contextItems []models.ContextItem, temperature float32) (string, error) {
	prompt := BuildContextPrompt(query, contextItems, false)
	return c.GenerateText(ctx, prompt, contextSystemPrompt, temperature, defaultMaxTokens)
}

// GenerateWithContextAndImages answers a query grounded in retrieved
// context with the selected images attached.
func (c *LLMClient) GenerateWithContextAndImages(ctx context.Context, query string, contextItems []models.ContextItem, imagePaths []string, temperature float32) (string, error) {
	prompt := BuildContextPrompt(query, contextItems, true)
	return c.GenerateMultimodal(ctx, prompt, imagePaths, multimodalSystemPrompt, temperature, defaultMaxTokens)
}

func (c *LLMClient) complete(ctx context.Context, messages []openai.ChatCompletionMessage, temperature float32, maxTokens, images int) (string, error) {
	tracer := otel.Tracer("llm-client")
	ctx, span := tracer.Start(ctx, "llm.chat_completion")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.images", images),
	)

	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", apperr.Connectivity(err, "rate limiter interrupted")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: temperature,
			MaxTokens:   maxTokens,
			Stream:      false,
		})
	})
	if err != nil {
		return "", translateCompletionError(err)
	}

	resp := result.(openai.ChatCompletionResponse)
	if len(resp.Choices) == 0 {
		return "", apperr.Protocol("completion response has no choices")
	}
	content := resp.Choices[0].Message.Content
	logger.Debug("Generated response", "chars", len(content), "images", images)
	return content, nil
}

// translateCompletionError maps library and transport failures into the
// error taxonomy so nothing opaque reaches the request boundary.
func translateCompletionError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Connectivity(err, "generation backend temporarily unavailable (circuit open)")
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperr.Upstream(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode > 0 {
			return apperr.Upstream(reqErr.HTTPStatusCode, reqErr.Error())
		}
		return apperr.Connectivity(err, "generation request failed")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Connectivity(err, "generation backend timed out")
	}
	return apperr.Connectivity(err, "cannot reach generation backend")
}

func buildMessages(systemPrompt string) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	return messages
}

// FormatContextBlock renders retrieved items as a numbered,
// source-attributed block. Pure string assembly, independent of any
// network concern.
func FormatContextBlock(items []models.ContextItem) string {
	blocks := make([]string, len(items))
	for i, item := range items {
		source := item.Metadata.Source
		if source == "" {
			source = "Unknown"
		}
		blocks[i] = fmt.Sprintf("[Document %d - %s]\n%s", i+1, source, item.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// BuildContextPrompt assembles the final user prompt from the query and
// retrieved context.
func BuildContextPrompt(query string, items []models.ContextItem, withImages bool) string {
	instruction := "Please provide a detailed and accurate answer based on the context above."
	if withImages {
		instruction = "Please analyze the provided images along with the context above and provide a detailed answer."
	}
	return fmt.Sprintf("Context Information:\n%s\n\nUser Question: %s\n\n%s",
		FormatContextBlock(items), query, instruction)
}

func encodeImagePart(path string) (openai.ChatMessagePart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return openai.ChatMessagePart{}, err
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", utils.ImageMIMEType(path), base64.StdEncoding.EncodeToString(data))
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL: dataURL,
		},
	}, nil
}
