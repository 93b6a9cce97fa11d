package document

import (
	"time"

	"github.com/docbase/rag-backend/internal/entity"
)

func toUploadResponse(result *entity.IndexResult) *entity.UploadResponse {
	return &entity.UploadResponse{
		Success:       true,
		Source:        result.Source.DisplayName,
		Format:        string(result.Source.Format),
		ChunksIndexed: result.ChunksIndexed,
		SizeBytes:     result.Source.SizeBytes,
		Warnings:      result.FailedChunks,
	}
}

func toSourceSummary(source *entity.Source) entity.SourceSummary {
	return entity.SourceSummary{
		ID:        source.ID,
		Source:    source.DisplayName,
		Format:    string(source.Format),
		Chunks:    source.ChunkCount,
		SizeBytes: source.SizeBytes,
		IndexedAt: source.IndexedAt.Format(time.RFC3339),
	}
}
