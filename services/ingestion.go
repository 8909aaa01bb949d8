package services

import (
	"context"
	"strings"

	"vox-agent-backend/internal/logger"
	"vox-agent-backend/internal/vectorstore"
	"vox-agent-backend/models"
)

// IngestionPipeline turns processed documents into chunks with provenance
// metadata and feeds the vector store. Writes must be serialized by the
// caller (single-writer discipline).
type IngestionPipeline struct {
	chunker *ChunkingService
	store   *vectorstore.Store
}

// IngestionOutcome reports how one batch went.
type IngestionOutcome struct {
	AddedChunks    int
	SkippedSources []string
}

func NewIngestionPipeline(chunker *ChunkingService, store *vectorstore.Store) *IngestionPipeline {
	return &IngestionPipeline{chunker: chunker, store: store}
}

// Ingest chunks every document and submits the full batch to the vector
// store in one call. Documents with empty or whitespace-only text are
// recorded as skipped without failing the batch. If the store call itself
// fails, nothing is committed and the error is surfaced.
func (p *IngestionPipeline) Ingest(ctx context.Context, docs []models.ProcessedDocument) (IngestionOutcome, error) {
	var outcome IngestionOutcome
	var batch []models.Chunk

	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			logger.Warn("Skipping empty document", "source", doc.Source)
			outcome.SkippedSources = append(outcome.SkippedSources, doc.Source)
			continue
		}

		for i, text := range p.chunker.Split(doc.Text) {
			batch = append(batch, models.Chunk{
				Text: text,
				Metadata: models.ChunkMetadata{
					Source:     doc.Source,
					Type:       doc.Type,
					PageCount:  doc.PageCount,
					ChunkIndex: i,
				},
			})
		}
	}

	if len(batch) == 0 {
		logger.Warn("No non-empty text chunks to add to the vector store")
		return outcome, nil
	}

	ids, err := p.store.Add(ctx, batch)
	if err != nil {
		return IngestionOutcome{SkippedSources: outcome.SkippedSources}, err
	}

	outcome.AddedChunks = len(ids)
	logger.Info("Ingested document batch", "chunks", outcome.AddedChunks, "skipped", len(outcome.SkippedSources))
	return outcome, nil
}
