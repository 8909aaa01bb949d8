package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	QueriesTotal       metric.Int64Counter
	ChunksIndexed      metric.Int64Counter
	DocumentsProcessed metric.Int64Counter
	GenerationDuration metric.Float64Histogram
}

// InitMetrics initializes all application metrics. Instruments are no-ops
// until an SDK meter provider is installed.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("vox-agent-backend")

	queriesTotal, err := meter.Int64Counter(
		"rag.queries.total",
		metric.WithDescription("Total RAG queries handled"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"rag.chunks.indexed",
		metric.WithDescription("Total chunks added to the vector store"),
	)
	if err != nil {
		return nil, err
	}

	documentsProcessed, err := meter.Int64Counter(
		"rag.documents.processed",
		metric.WithDescription("Total documents extracted for ingestion"),
	)
	if err != nil {
		return nil, err
	}

	generationDuration, err := meter.Float64Histogram(
		"llm.generation.duration",
		metric.WithDescription("LLM generation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		QueriesTotal:       queriesTotal,
		ChunksIndexed:      chunksIndexed,
		DocumentsProcessed: documentsProcessed,
		GenerationDuration: generationDuration,
	}, nil
}

// RecordQuery counts one handled query and its end-to-end duration.
func (m *Metrics) RecordQuery(ctx context.Context, start time.Time, hadError bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("error", hadError))
	m.QueriesTotal.Add(ctx, 1, attrs)
	m.GenerationDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// RecordIngestion counts processed documents and indexed chunks.
func (m *Metrics) RecordIngestion(ctx context.Context, documents, chunks int) {
	if m == nil {
		return
	}
	m.DocumentsProcessed.Add(ctx, int64(documents))
	m.ChunksIndexed.Add(ctx, int64(chunks))
}
