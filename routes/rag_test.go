package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"vox-agent-backend/internal/ai"
	"vox-agent-backend/internal/config"
	"vox-agent-backend/internal/vectorstore"
	"vox-agent-backend/models"
	"vox-agent-backend/services"

	"github.com/gin-gonic/gin"
)

type stubGenerator struct{}

func (stubGenerator) GenerateText(context.Context, string, string, float32, int) (string, error) {
	return "stub answer", nil
}
func (stubGenerator) GenerateWithContext(context.Context, string, []models.ContextItem, float32) (string, error) {
	return "stub answer", nil
}
func (stubGenerator) GenerateWithContextAndImages(context.Context, string, []models.ContextItem, []string, float32) (string, error) {
	return "stub answer", nil
}

func setupTestRouter(t *testing.T) (*gin.Engine, *vectorstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	store, err := vectorstore.Open(filepath.Join(dir, "routes.db"), "routes", ai.NewHashedEmbedder(64))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		UploadDir:    dir,
		MaxFileSize:  1 << 20,
		AllowedTypes: []string{".pdf", ".docx", ".png"},
	}
	chunker := services.NewChunkingService(200, 20)
	pipeline := services.NewIngestionPipeline(chunker, store)
	retriever := services.NewContextRetriever(store, 4)
	policy := services.NewResponsePolicy(2)
	processor := services.NewDocumentProcessor(nil)
	agent := services.NewAgent(processor, pipeline, retriever, policy, stubGenerator{})

	router := gin.New()
	SetupRAGRoutes(router, cfg, agent, store, nil)
	return router, store
}

func TestQueryEndpointRejectsBlankQuery(t *testing.T) {
	router, _ := setupTestRouter(t)

	for _, body := range []string{`{"query":""}`, `{"query":"   "}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestQueryEndpointReturnsEnvelope(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(`{"query":"what is indexed?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.QueryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Query != "what is indexed?" {
		t.Errorf("query must echo back, got %q", resp.Query)
	}
	if resp.Response != "stub answer" {
		t.Errorf("unexpected response: %q", resp.Response)
	}
	if resp.Context == nil {
		t.Error("context must be an empty slice, not null")
	}
}

func TestStatsAndClearEndpoints(t *testing.T) {
	router, store := setupTestRouter(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, []models.Chunk{{
		Text:     "some indexed content",
		Metadata: models.ChunkMetadata{Source: "a.pdf", Type: models.DocTypePDF},
	}}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", w.Code)
	}
	var stats models.CollectionStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid stats JSON: %v", err)
	}
	if stats.TotalDocuments != 1 {
		t.Errorf("expected 1 document in stats, got %d", stats.TotalDocuments)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/clear", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", w.Code)
	}
	if store.Stats().TotalDocuments != 0 {
		t.Error("collection not empty after clear")
	}
}

func TestValidateUpload(t *testing.T) {
	cfg := &config.Config{
		MaxFileSize:  100,
		AllowedTypes: []string{".pdf", ".docx", ".png"},
	}
	cases := []struct {
		filename string
		size     int64
		rejected bool
	}{
		{"report.pdf", 50, false},
		{"REPORT.PDF", 50, false},
		{"old.doc", 50, true},
		{"script.sh", 50, true},
		{"big.pdf", 200, true},
		{"", 50, true},
	}
	for _, tc := range cases {
		reason := validateUpload(cfg, tc.filename, tc.size)
		if (reason != "") != tc.rejected {
			t.Errorf("validateUpload(%q, %d) = %q, rejected should be %v", tc.filename, tc.size, reason, tc.rejected)
		}
	}
}
