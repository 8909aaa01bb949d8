package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"vox-agent-backend/internal/ai"
	"vox-agent-backend/internal/apperr"
	"vox-agent-backend/internal/logger"
	"vox-agent-backend/models"
	"vox-agent-backend/utils"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type entry struct {
	id     string
	vector []float32
	chunk  models.Chunk
}

// Store is a durable vector collection backed by a sqlite file. Entries are
// kept in memory in insertion order for search; sqlite is the durability
// layer and is the source of truth across restarts.
//
// Concurrency is single-writer many-reader: Add and Clear hold the write
// lock for their whole duration so they appear atomic to Search and Stats.
type Store struct {
	mu         sync.RWMutex
	db         *sql.DB
	collection string
	embedder   ai.Embedder
	entries    []entry
	dim        int // 0 until the first entry is stored
}

// Open opens (or creates) the collection at path and loads all entries.
func Open(path, collection string, embedder ai.Embedder) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS entries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			content BLOB NOT NULL,
			compression TEXT NOT NULL DEFAULT 'none',
			metadata TEXT NOT NULL,
			vector BLOB NOT NULL
		)
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create entries table: %w", err)
	}

	s := &Store{
		db:         db,
		collection: collection,
		embedder:   embedder,
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Vector store opened", "collection", collection, "path", path, "entries", len(s.entries))
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT id, content, compression, metadata, vector FROM entries ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, compression, metadataJSON string
			content, vectorBlob           []byte
		)
		if err := rows.Scan(&id, &content, &compression, &metadataJSON, &vectorBlob); err != nil {
			return fmt.Errorf("failed to scan entry: %w", err)
		}

		text, err := utils.DecompressText(content, utils.CompressionAlgorithm(compression))
		if err != nil {
			return fmt.Errorf("failed to decompress entry %s: %w", id, err)
		}

		var metadata models.ChunkMetadata
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			return fmt.Errorf("failed to decode metadata for entry %s: %w", id, err)
		}

		vector := decodeVector(vectorBlob)
		if s.dim == 0 {
			s.dim = len(vector)
		} else if len(vector) != s.dim {
			return apperr.Configuration(
				"stored vector dimension %d for entry %s does not match collection dimension %d; the collection was written with a different embedding provider",
				len(vector), id, s.dim)
		}

		s.entries = append(s.entries, entry{
			id:     id,
			vector: vector,
			chunk:  models.Chunk{Text: text, Metadata: metadata},
		})
	}
	return rows.Err()
}

// Add embeds and persists the given chunks in one transaction. Chunks with
// empty or whitespace-only text are skipped and logged; ids are returned
// only for entries actually stored.
func (s *Store) Add(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	kept := make([]models.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			logger.Warn("Skipping empty chunk", "source", chunk.Metadata.Source, "chunk_index", chunk.Metadata.ChunkIndex)
			continue
		}
		kept = append(kept, chunk)
	}
	if len(kept) == 0 {
		logger.Warn("No non-empty chunks to add", "collection", s.collection)
		return nil, nil
	}

	texts := make([]string, len(kept))
	for i, chunk := range kept {
		texts[i] = chunk.Text
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim != 0 && len(vectors[0]) != s.dim {
		return nil, apperr.Configuration(
			"embedding dimension %d does not match collection dimension %d; clear the collection or restore the original embedding provider",
			len(vectors[0]), s.dim)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	ids := make([]string, len(kept))
	added := make([]entry, len(kept))
	for i, chunk := range kept {
		content, compression, err := utils.CompressText(chunk.Text)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to compress chunk: %w", err)
		}
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}

		id := uuid.NewString()
		insertSQL := `INSERT INTO entries (id, content, compression, metadata, vector) VALUES (?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, insertSQL, id, content, string(compression), string(metadataJSON), encodeVector(vectors[i])); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to insert entry: %w", err)
		}

		ids[i] = id
		added[i] = entry{id: id, vector: vectors[i], chunk: chunk}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit entries: %w", err)
	}

	if s.dim == 0 {
		s.dim = len(vectors[0])
	}
	s.entries = append(s.entries, added...)

	logger.Info("Added chunks to vector store", "collection", s.collection, "count", len(added))
	return ids, nil
}

// Search embeds the query with the store's provider and returns up to k
// entries ordered by cosine distance ascending (lower = more similar).
// Ties are broken by insertion order. An empty index yields an empty slice.
func (s *Store) Search(ctx context.Context, query string, k int) ([]models.ContextItem, error) {
	if k <= 0 {
		return nil, apperr.Validation("search k must be positive, got %d", k)
	}

	queryVec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return []models.ContextItem{}, nil
	}
	if len(queryVec) != s.dim {
		return nil, apperr.Configuration(
			"query embedding dimension %d does not match collection dimension %d; clear the collection or restore the original embedding provider",
			len(queryVec), s.dim)
	}

	type scored struct {
		idx      int
		distance float64
	}
	results := make([]scored, len(s.entries))
	for i, e := range s.entries {
		results[i] = scored{idx: i, distance: cosineDistance(queryVec, e.vector)}
	}
	// Stable sort keeps insertion order among equal distances.
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].distance < results[b].distance
	})

	if k > len(results) {
		k = len(results)
	}
	items := make([]models.ContextItem, k)
	for i := 0; i < k; i++ {
		e := s.entries[results[i].idx]
		items[i] = models.ContextItem{
			Content:  e.chunk.Text,
			Metadata: e.chunk.Metadata,
			Score:    results[i].distance,
		}
	}
	return items, nil
}

// Clear deletes every entry. The store is immediately usable afterwards and
// accepts a new embedding dimension.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	s.entries = nil
	s.dim = 0

	logger.Info("Vector collection cleared", "collection", s.collection)
	return nil
}

// Stats reports the entry count and collection name, reflecting Add and
// Clear immediately within the process.
func (s *Store) Stats() models.CollectionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CollectionStats{
		TotalDocuments: len(s.entries),
		CollectionName: s.collection,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// cosineDistance is 1 minus the dot product. Both vectors are unit length
// by construction, so this equals true cosine distance.
func cosineDistance(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1.0 - dot
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
