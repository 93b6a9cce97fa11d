package document

import (
	"context"

	"github.com/docbase/rag-backend/internal/entity"
)

type IndexingUsecase interface {
	IndexDocument(ctx context.Context, raw []byte, displayName string) (*entity.IndexResult, error)
	DeleteSource(ctx context.Context, sourceID string) (*entity.Source, error)
	ListSources(ctx context.Context) ([]*entity.Source, error)
	Totals(ctx context.Context) (sources int, chunks int, err error)
}
