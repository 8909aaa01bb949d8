package vectorstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"vox-agent-backend/internal/ai"
	"vox-agent-backend/internal/apperr"
	"vox-agent-backend/models"
)

func openTestStore(t *testing.T, embedder ai.Embedder) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test_collection.db")
	store, err := Open(path, "test_collection", embedder)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func chunk(text, source string, index int) models.Chunk {
	return models.Chunk{
		Text: text,
		Metadata: models.ChunkMetadata{
			Source:     source,
			Type:       models.DocTypePDF,
			ChunkIndex: index,
		},
	}
}

func TestAddAndSearchRoundTrip(t *testing.T) {
	store := openTestStore(t, ai.NewHashedEmbedder(64))
	ctx := context.Background()

	ids, err := store.Add(ctx, []models.Chunk{
		chunk("apple pie recipe with cinnamon", "recipes.pdf", 0),
		chunk("quarterly revenue report", "finance.pdf", 0),
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}

	items, err := store.Search(ctx, "apple pie", 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 result, got %d", len(items))
	}
	if items[0].Content != "apple pie recipe with cinnamon" {
		t.Errorf("expected apple pie chunk first, got %q", items[0].Content)
	}
	if items[0].Metadata.Source != "recipes.pdf" {
		t.Errorf("metadata source lost: %q", items[0].Metadata.Source)
	}
}

func TestSearchOrdering(t *testing.T) {
	store := openTestStore(t, ai.NewHashedEmbedder(64))
	ctx := context.Background()

	if _, err := store.Add(ctx, []models.Chunk{
		chunk("dogs and cats", "a.pdf", 0),
		chunk("stellar nucleosynthesis", "b.pdf", 0),
		chunk("dogs playing fetch", "c.pdf", 0),
	}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	items, err := store.Search(ctx, "dogs", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 results, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].Score < items[i-1].Score {
			t.Errorf("results not sorted by distance ascending: %v then %v", items[i-1].Score, items[i].Score)
		}
	}
	if items[2].Content != "stellar nucleosynthesis" {
		t.Errorf("unrelated chunk should rank last, got %q", items[2].Content)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	store := openTestStore(t, ai.NewHashedEmbedder(64))

	items, err := store.Search(context.Background(), "anything", 4)
	if err != nil {
		t.Fatalf("search on empty index should not error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty result set, got %d items", len(items))
	}
}

func TestSearchInvalidK(t *testing.T) {
	store := openTestStore(t, ai.NewHashedEmbedder(64))

	_, err := store.Search(context.Background(), "anything", 0)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for k=0, got %v", err)
	}
}

func TestSearchKLargerThanIndex(t *testing.T) {
	store := openTestStore(t, ai.NewHashedEmbedder(64))
	ctx := context.Background()

	if _, err := store.Add(ctx, []models.Chunk{chunk("only entry", "a.pdf", 0)}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	items, err := store.Search(ctx, "entry", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 result when k exceeds index size, got %d", len(items))
	}
}

func TestAddSkipsEmptyChunks(t *testing.T) {
	store := openTestStore(t, ai.NewHashedEmbedder(64))
	ctx := context.Background()

	ids, err := store.Add(ctx, []models.Chunk{
		chunk("", "blank.pdf", 0),
		chunk("   \n\t  ", "blank.pdf", 1),
		chunk("real content", "doc.pdf", 0),
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 id after skipping blanks, got %d", len(ids))
	}
	if stats := store.Stats(); stats.TotalDocuments != 1 {
		t.Fatalf("expected 1 stored entry, got %d", stats.TotalDocuments)
	}
}

func TestAddAllEmptyChunks(t *testing.T) {
	store := openTestStore(t, ai.NewHashedEmbedder(64))

	ids, err := store.Add(context.Background(), []models.Chunk{chunk("  ", "a.pdf", 0)})
	if err != nil {
		t.Fatalf("add of all-blank batch should not error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no ids, got %d", len(ids))
	}
}

func TestClearIsIdempotent(t *testing.T) {
	store := openTestStore(t, ai.NewHashedEmbedder(64))
	ctx := context.Background()

	if _, err := store.Add(ctx, []models.Chunk{chunk("something", "a.pdf", 0)}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second clear failed: %v", err)
	}
	if stats := store.Stats(); stats.TotalDocuments != 0 {
		t.Fatalf("expected empty collection after clear, got %d entries", stats.TotalDocuments)
	}

	// The store stays usable after clear.
	if _, err := store.Add(ctx, []models.Chunk{chunk("fresh start", "b.pdf", 0)}); err != nil {
		t.Fatalf("add after clear failed: %v", err)
	}
	if stats := store.Stats(); stats.TotalDocuments != 1 {
		t.Fatalf("expected 1 entry after re-add, got %d", stats.TotalDocuments)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	embedder := ai.NewHashedEmbedder(64)
	ctx := context.Background()

	store, err := Open(path, "persist", embedder)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	longText := "searchable content about distributed systems " +
		"padded so the row takes the compressed path through storage " +
		"and still decompresses to exactly what was written, byte for byte, " +
		"including this trailing sentence that pushes it past the threshold " +
		"where small rows are stored uncompressed and larger ones are not, " +
		"with enough additional prose to make the point entirely unambiguous " +
		"regardless of how the heuristic rounds its size computation."
	if _, err := store.Add(ctx, []models.Chunk{
		chunk(longText, "systems.pdf", 0),
		chunk("short note", "note.pdf", 0),
	}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := Open(path, "persist", embedder)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	if stats := reopened.Stats(); stats.TotalDocuments != 2 {
		t.Fatalf("expected 2 entries after reopen, got %d", stats.TotalDocuments)
	}
	items, err := reopened.Search(ctx, "distributed systems", 1)
	if err != nil {
		t.Fatalf("search after reopen failed: %v", err)
	}
	if items[0].Content != longText {
		t.Errorf("chunk text corrupted across restart")
	}
	if items[0].Metadata.Source != "systems.pdf" {
		t.Errorf("metadata lost across restart: %q", items[0].Metadata.Source)
	}
}

type erringEmbedder struct{}

func (erringEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedder down")
}
func (erringEmbedder) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedder down")
}
func (erringEmbedder) Dimension() int    { return 64 }
func (erringEmbedder) ModelInfo() string { return "erring" }

func TestAddEmbedderFailureAddsNothing(t *testing.T) {
	store := openTestStore(t, erringEmbedder{})

	_, err := store.Add(context.Background(), []models.Chunk{chunk("content", "a.pdf", 0)})
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if stats := store.Stats(); stats.TotalDocuments != 0 {
		t.Fatalf("failed add must leave the store unchanged, got %d entries", stats.TotalDocuments)
	}
}

type fixedEmbedder struct{ dim int }

func (f fixedEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	v := make([]float32, f.dim)
	v[0] = 1.0
	return v, nil
}
func (f fixedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i], _ = f.EmbedText(ctx, texts[i])
	}
	return vecs, nil
}
func (f fixedEmbedder) Dimension() int    { return f.dim }
func (f fixedEmbedder) ModelInfo() string { return "fixed" }

func TestDimensionMismatchOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dims.db")
	ctx := context.Background()

	store, err := Open(path, "dims", fixedEmbedder{dim: 16})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if _, err := store.Add(ctx, []models.Chunk{chunk("sixteen dims", "a.pdf", 0)}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	store.Close()

	// Reopening with a different provider loads fine; the mismatch is
	// reported on the first add.
	reopened, err := Open(path, "dims", fixedEmbedder{dim: 32})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	_, err = reopened.Add(ctx, []models.Chunk{chunk("thirty-two dims", "b.pdf", 0)})
	if !apperr.IsKind(err, apperr.KindConfiguration) {
		t.Fatalf("expected configuration error for dimension mismatch, got %v", err)
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	store := openTestStore(t, fixedEmbedder{dim: 8})
	ctx := context.Background()

	if _, err := store.Add(ctx, []models.Chunk{
		chunk("first", "a.pdf", 0),
		chunk("second", "a.pdf", 1),
		chunk("third", "a.pdf", 2),
	}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Every vector is identical, so all distances tie.
	items, err := store.Search(ctx, "query", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if items[i].Content != w {
			t.Errorf("tie at position %d broke insertion order: got %q, want %q", i, items[i].Content, w)
		}
	}
}

func TestVectorCodecRoundTrip(t *testing.T) {
	v := []float32{0.5, -1.25, 0, 3.75, -0.001}
	got := decodeVector(encodeVector(v))
	if len(got) != len(v) {
		t.Fatalf("length mismatch: %d vs %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("component %d: got %v, want %v", i, got[i], v[i])
		}
	}
}
