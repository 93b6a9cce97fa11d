package query

import (
	"github.com/docbase/rag-backend/internal/entity"
)

func toSearchResponse(chunks []entity.RetrievedChunk) *entity.SearchResponse {
	results := make([]entity.SearchResult, 0, len(chunks))
	for _, rc := range chunks {
		results = append(results, entity.SearchResult{
			Text: rc.Chunk.Text,
			Metadata: map[string]any{
				"source_id":  rc.Chunk.SourceID,
				"view_type":  string(rc.Chunk.ViewType),
				"path":       rc.Chunk.Path,
				"parent_ref": rc.Chunk.ParentRef,
			},
			Score: rc.Score,
		})
	}

	return &entity.SearchResponse{
		Results: results,
		Count:   len(results),
	}
}
