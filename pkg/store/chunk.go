package store

// TextChunk is one token-bounded passage of a chapter, as produced by the chunker
// and stored in the vector index payload.
type TextChunk struct {
	ID            string `json:"id"` // ch{chapter}_sec{section}_{index}
	ChapterNumber int    `json:"chapterNumber"`
	ChapterTitle  string `json:"chapterTitle"`
	SectionID     string `json:"sectionId"` // {chapter}.{section}
	SectionTitle  string `json:"sectionTitle"`
	Content       string `json:"content"`
	Position      int    `json:"position"`
	TokenCount    int    `json:"tokenCount"`
}

// EmbeddedChunk carries the vector alongside the chunk during ingestion.
type EmbeddedChunk struct {
	TextChunk
	Embedding []float32 `json:"-"`
}

// ScoredChunk is a search hit. Score is cosine similarity.
type ScoredChunk struct {
	TextChunk
	Score float64 `json:"score"`
}

// SourceReference is the display-safe citation sent to clients and persisted
// alongside assistant messages.
type SourceReference struct {
	ChunkID        string  `json:"chunkId"`
	ChapterNumber  int     `json:"chapterNumber"`
	SectionTitle   string  `json:"sectionTitle"`
	URL            string  `json:"url"`
	RelevanceScore float64 `json:"relevanceScore"`
}
