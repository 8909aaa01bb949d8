package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"vox-agent-backend/internal/logger"
	"vox-agent-backend/models"
)

const defaultTemperature = 0.7

// Generator is the generation capability the agent needs from the LLM
// client.
type Generator interface {
	GenerateText(ctx context.Context, prompt, systemPrompt string, temperature float32, maxTokens int) (string, error)
	GenerateWithContext(ctx context.Context, query string, contextItems []models.ContextItem, temperature float32) (string, error)
	GenerateWithContextAndImages(ctx context.Context, query string, contextItems []models.ContextItem, imagePaths []string, temperature float32) (string, error)
}

// Agent wires retrieval, response policy and generation into the
// query-answering flow, and document extraction into the ingestion flow.
// All collaborators are injected at construction; there is no hidden
// module-level state.
type Agent struct {
	processor *DocumentProcessor
	pipeline  *IngestionPipeline
	retriever *ContextRetriever
	policy    *ResponsePolicy
	llm       Generator

	// ingestMu enforces the single-writer discipline the pipeline assumes.
	ingestMu sync.Mutex
}

// retrievalState is scoped to a single query and discarded after the
// answer is returned; there is no cross-query memory.
type retrievalState struct {
	query    string
	context  []models.ContextItem
	response string
	err      string
}

func NewAgent(processor *DocumentProcessor, pipeline *IngestionPipeline, retriever *ContextRetriever, policy *ResponsePolicy, llm Generator) *Agent {
	return &Agent{
		processor: processor,
		pipeline:  pipeline,
		retriever: retriever,
		policy:    policy,
		llm:       llm,
	}
}

// Query answers a natural-language query: retrieve context, decide the
// generation mode, generate. Failures are reported in the response
// envelope, never as a panic or raw error to the caller.
func (a *Agent) Query(ctx context.Context, query string) models.QueryResponse {
	state := retrievalState{query: query, context: []models.ContextItem{}}

	items, err := a.retriever.Retrieve(ctx, query)
	if err != nil {
		logger.Error("Retrieval failed", "error", err.Error())
		state.err = err.Error()
	} else {
		state.context = items
	}

	a.generate(ctx, &state)

	return models.QueryResponse{
		Query:    state.query,
		Response: state.response,
		Context:  state.context,
		Error:    state.err,
	}
}

func (a *Agent) generate(ctx context.Context, state *retrievalState) {
	var (
		response string
		err      error
	)

	if len(state.context) == 0 {
		response, err = a.llm.GenerateText(ctx, state.query, "", defaultTemperature, 0)
	} else if imagePaths := a.policy.SelectImages(state.context); len(imagePaths) > 0 {
		response, err = a.llm.GenerateWithContextAndImages(ctx, state.query, state.context, imagePaths, defaultTemperature)
	} else {
		response, err = a.llm.GenerateWithContext(ctx, state.query, state.context, defaultTemperature)
	}

	if err != nil {
		logger.Error("Generation failed", "error", err.Error())
		state.err = err.Error()
		return
	}
	state.response = response
	logger.Info("Generated response", "chars", len(response))
}

// ProcessDocuments extracts and indexes the given files. Extraction
// failures are collected per file; successfully extracted documents are
// indexed as one batch, and an index failure voids the whole batch.
func (a *Agent) ProcessDocuments(ctx context.Context, filePaths []string) models.IngestResult {
	var processed []models.ProcessedDocument
	errs := []string{}

	for _, path := range filePaths {
		doc, err := a.processor.Process(ctx, path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Failed to process %s: %v", filepath.Base(path), err))
			continue
		}
		if strings.TrimSpace(doc.Text) == "" {
			errs = append(errs, fmt.Sprintf("No extractable text in %s", filepath.Base(path)))
			continue
		}
		processed = append(processed, doc)
		logger.Info("Processed document", "file", filepath.Base(path), "type", doc.Type)
	}

	if len(processed) > 0 {
		a.ingestMu.Lock()
		_, err := a.pipeline.Ingest(ctx, processed)
		a.ingestMu.Unlock()
		if err != nil {
			errs = append(errs, fmt.Sprintf("Failed to index documents: %v", err))
			processed = nil
		}
	}

	files := make([]string, len(processed))
	for i, doc := range processed {
		files[i] = doc.Source
	}
	return models.IngestResult{
		Success:        len(processed),
		Failed:         len(errs),
		Errors:         errs,
		ProcessedFiles: files,
	}
}
