package query

import (
	"context"

	"github.com/docbase/rag-backend/internal/entity"
	"github.com/docbase/rag-backend/internal/stream"
)

type QueryUsecase interface {
	Search(ctx context.Context, text string, topK int) ([]entity.RetrievedChunk, error)
	Answer(ctx context.Context, q *entity.Query) (*entity.RAGResponse, error)
	StreamAnswer(ctx context.Context, q *entity.Query, session *stream.Session)
	Health(ctx context.Context) entity.HealthResponse
}
