package query

import (
	"context"

	"github.com/docbase/rag-backend/internal/entity"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

type VectorStore interface {
	Search(ctx context.Context, vector []float64, topK int) ([]entity.RetrievedChunk, error)
	Healthy(ctx context.Context) bool
}

type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	Stream(ctx context.Context, prompt string, maxTokens int, fn func(token string) error) error
	Healthy(ctx context.Context) bool
}
