package services

import (
	"context"
	"path/filepath"
	"testing"

	"vox-agent-backend/internal/ai"
	"vox-agent-backend/internal/vectorstore"
	"vox-agent-backend/models"
)

func openPipelineStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.db")
	store, err := vectorstore.Open(path, "pipeline", ai.NewHashedEmbedder(64))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIngestSkipsEmptyDocuments(t *testing.T) {
	store := openPipelineStore(t)
	pipeline := NewIngestionPipeline(NewChunkingService(100, 20), store)

	outcome, err := pipeline.Ingest(context.Background(), []models.ProcessedDocument{
		{Text: "", Source: "blank.pdf", Type: models.DocTypePDF},
		{Text: "   \n  ", Source: "spaces.pdf", Type: models.DocTypePDF},
		{Text: "real content worth indexing", Source: "real.pdf", Type: models.DocTypePDF, PageCount: 3},
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if outcome.AddedChunks != 1 {
		t.Errorf("expected 1 chunk added, got %d", outcome.AddedChunks)
	}
	if len(outcome.SkippedSources) != 2 {
		t.Errorf("expected 2 skipped sources, got %v", outcome.SkippedSources)
	}
	if stats := store.Stats(); stats.TotalDocuments != 1 {
		t.Errorf("store should hold exactly the non-empty chunk, got %d", stats.TotalDocuments)
	}
}

func TestIngestAllEmptyBatch(t *testing.T) {
	store := openPipelineStore(t)
	pipeline := NewIngestionPipeline(NewChunkingService(100, 20), store)

	outcome, err := pipeline.Ingest(context.Background(), []models.ProcessedDocument{
		{Text: " ", Source: "a.pdf", Type: models.DocTypePDF},
	})
	if err != nil {
		t.Fatalf("all-empty batch must not error: %v", err)
	}
	if outcome.AddedChunks != 0 || len(outcome.SkippedSources) != 1 {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
}

func TestIngestChunkMetadata(t *testing.T) {
	store := openPipelineStore(t)
	// Small windows so one document yields several chunks.
	pipeline := NewIngestionPipeline(NewChunkingService(20, 5), store)

	text := "alpha bravo charlie delta echo foxtrot golf hotel india juliett"
	outcome, err := pipeline.Ingest(context.Background(), []models.ProcessedDocument{
		{Text: text, Source: "phonetic.docx", Type: models.DocTypeDOCX, PageCount: 1},
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if outcome.AddedChunks < 2 {
		t.Fatalf("expected multiple chunks, got %d", outcome.AddedChunks)
	}

	items, err := store.Search(context.Background(), "alpha bravo", outcome.AddedChunks)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	indices := make(map[int]bool)
	for _, item := range items {
		if item.Metadata.Source != "phonetic.docx" {
			t.Errorf("wrong source on chunk: %q", item.Metadata.Source)
		}
		if item.Metadata.Type != models.DocTypeDOCX {
			t.Errorf("wrong type on chunk: %q", item.Metadata.Type)
		}
		indices[item.Metadata.ChunkIndex] = true
	}
	for i := 0; i < outcome.AddedChunks; i++ {
		if !indices[i] {
			t.Errorf("chunk index %d missing from metadata", i)
		}
	}
}
