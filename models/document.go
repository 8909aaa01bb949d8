package models

// Document types recognized by the ingestion pipeline.
const (
	DocTypePDF   = "pdf"
	DocTypeDOCX  = "docx"
	DocTypeImage = "image"
)

// ProcessedDocument is the extraction collaborator's output for one file:
// raw text plus provenance. Empty Text is a non-fatal skip downstream.
type ProcessedDocument struct {
	Text      string `json:"text"`
	Source    string `json:"source"`
	Type      string `json:"type"`
	PageCount int    `json:"num_pages,omitempty"`
}

// ChunkMetadata is attached to every chunk stored in the vector index.
type ChunkMetadata struct {
	Source     string `json:"source"`
	Type       string `json:"type"`
	PageCount  int    `json:"num_pages"`
	ChunkIndex int    `json:"chunk_index"`
}

// Chunk is a bounded substring of a document plus its provenance.
// Immutable once created; ChunkIndex is 0-based in text order and unique
// within one source document.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ContextItem is a retrieved chunk with its similarity score. Score is a
// distance (ascending = better) and is not bounded to [0,1].
type ContextItem struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

// CollectionStats reports the state of the vector collection.
type CollectionStats struct {
	TotalDocuments int    `json:"total_documents"`
	CollectionName string `json:"collection_name"`
}

// IngestResult summarizes one ingestion batch.
type IngestResult struct {
	Success        int      `json:"success"`
	Failed         int      `json:"failed"`
	Errors         []string `json:"errors"`
	ProcessedFiles []string `json:"processed_files"`
}

// QueryResponse is the answer envelope for one query.
type QueryResponse struct {
	Query    string        `json:"query"`
	Response string        `json:"response"`
	Context  []ContextItem `json:"context"`
	Error    string        `json:"error"`
}
