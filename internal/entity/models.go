package entity

import "time"

// Format is the detected document format of a source.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ViewType identifies which representation of a source a chunk belongs to.
// JSON sources produce overview/schema/entity/relationship/index/qa chunks,
// text and markdown sources produce summary/section/definition chunks.
type ViewType string

const (
	ViewOverview     ViewType = "overview"
	ViewSchema       ViewType = "schema"
	ViewEntity       ViewType = "entity"
	ViewRelationship ViewType = "relationship"
	ViewIndex        ViewType = "index"
	ViewQA           ViewType = "qa"

	ViewSummary    ViewType = "summary"
	ViewSection    ViewType = "section"
	ViewDefinition ViewType = "definition"
)

// Source is the durable record of one indexed document.
type Source struct {
	ID          string
	DisplayName string
	Format      Format
	SizeBytes   int64
	ChunkCount  int
	IndexedAt   time.Time
}

// ChunkDraft is a chunk produced by the chunker before it is assigned an id
// and embedded. Path is the structural locator inside the source (JSON
// breadcrumb or section locator) and is part of the deterministic chunk id.
type ChunkDraft struct {
	ViewType  ViewType
	Text      string
	Path      string
	ParentRef string
}

// Chunk is an indexed retrieval unit. ID is a stable function of
// (source id, view type, path) so re-indexing identical content overwrites
// in place instead of accumulating duplicates.
type Chunk struct {
	ID        string
	SourceID  string
	ViewType  ViewType
	Text      string
	Path      string
	ParentRef string
}

// RetrievedChunk pairs a chunk with its similarity score.
type RetrievedChunk struct {
	Chunk Chunk
	Score float64
}

// Timings is the per-phase latency breakdown of one query.
type Timings struct {
	EmbeddingMS  int64 `json:"embedding_ms"`
	RetrievalMS  int64 `json:"retrieval_ms"`
	GenerationMS int64 `json:"generation_ms"`
	TotalMS      int64 `json:"total_ms"`
}

// IndexResult is the outcome of indexing one uploaded file.
type IndexResult struct {
	Source        *Source
	ChunksIndexed int
	FailedChunks  []ChunkFailure
}

// ChunkFailure records a per-chunk embedding failure that did not abort
// the rest of the file.
type ChunkFailure struct {
	ChunkID string `json:"chunk_id"`
	Reason  string `json:"reason"`
}
