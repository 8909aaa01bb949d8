package services

import (
	"context"
	"strings"

	"vox-agent-backend/internal/logger"
	"vox-agent-backend/internal/vectorstore"
	"vox-agent-backend/models"
)

// ContextRetriever runs similarity search for a query and returns ranked
// context items.
type ContextRetriever struct {
	store *vectorstore.Store
	k     int
}

func NewContextRetriever(store *vectorstore.Store, k int) *ContextRetriever {
	if k <= 0 {
		k = 4
	}
	return &ContextRetriever{store: store, k: k}
}

// Retrieve returns up to k context items ordered best-first. A blank query
// short-circuits to an empty result without touching the index.
func (r *ContextRetriever) Retrieve(ctx context.Context, query string) ([]models.ContextItem, error) {
	if strings.TrimSpace(query) == "" {
		logger.Warn("No query provided for retrieval")
		return []models.ContextItem{}, nil
	}

	items, err := r.store.Search(ctx, query, r.k)
	if err != nil {
		return nil, err
	}
	logger.Info("Retrieved context documents", "count", len(items))
	return items, nil
}
