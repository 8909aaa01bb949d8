package services

// ChunkingService splits raw document text into overlapping fixed-size
// windows for indexing.
type ChunkingService struct {
	chunkSize int
	overlap   int
}

// NewChunkingService creates a chunker. chunkSize must be positive and
// overlap must satisfy 0 <= overlap < chunkSize; out-of-range values are
// clamped.
func NewChunkingService(chunkSize, overlap int) *ChunkingService {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &ChunkingService{chunkSize: chunkSize, overlap: overlap}
}

// Split advances a window of chunkSize over text with stride
// chunkSize-overlap. Consecutive chunks overlap by exactly the configured
// overlap, except possibly the last pair where the final window is aligned
// to end exactly at the text's end. No character is dropped and every chunk
// is at most chunkSize long. Empty input yields no chunks.
func (cs *ChunkingService) Split(text string) []string {
	if len(text) == 0 {
		return nil
	}

	// Windows are measured in characters, not bytes, so multi-byte runes
	// are never split.
	runes := []rune(text)
	step := cs.chunkSize - cs.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + cs.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end >= len(runes) {
			break
		}
	}
	return chunks
}
