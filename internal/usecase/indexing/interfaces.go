package indexing

import (
	"context"

	"github.com/docbase/rag-backend/internal/entity"
	"github.com/docbase/rag-backend/internal/integration/vectorstore"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

type VectorStore interface {
	Upsert(ctx context.Context, points []vectorstore.Point) error
	DeleteBySource(ctx context.Context, sourceID string) error
}

type Chunker interface {
	Chunk(format entity.Format, text, displayName string) ([]entity.ChunkDraft, error)
}

type Normalizer interface {
	Normalize(raw []byte, filename string) (entity.Format, string, error)
}
