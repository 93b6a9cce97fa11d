package document

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/docbase/rag-backend/internal/entity"
	"github.com/docbase/rag-backend/internal/pkg/logger"
	"github.com/docbase/rag-backend/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Handler struct {
	usecase       IndexingUsecase
	maxUploadSize int64
}

func NewHandler(usecase IndexingUsecase, maxUploadSize int64) *Handler {
	return &Handler{
		usecase:       usecase,
		maxUploadSize: maxUploadSize,
	}
}

// Upload handles POST /documents
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Upload")

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		ctxzap.Error(ctx, "failed to parse multipart form", zap.Error(err))
		response.Error(w, http.StatusBadRequest, "invalid form data or size too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		ctxzap.Warn(ctx, "no file provided", zap.Error(err))
		response.Error(w, http.StatusBadRequest, "a file is required")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		ctxzap.Error(ctx, "failed to read upload", zap.Error(err))
		response.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if int64(len(raw)) > h.maxUploadSize {
		response.Error(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
		return
	}

	ctxzap.Info(ctx, "indexing uploaded document",
		zap.String("filename", header.Filename),
		zap.Int("size", len(raw)),
	)

	result, err := h.usecase.IndexDocument(ctx, raw, header.Filename)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, toUploadResponse(result))
}

// ListSources handles GET /sources
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ListSources")

	sources, err := h.usecase.ListSources(ctx)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	summaries := make([]entity.SourceSummary, 0, len(sources))
	totalChunks := 0
	for _, s := range sources {
		summaries = append(summaries, toSourceSummary(s))
		totalChunks += s.ChunkCount
	}

	response.Success(w, &entity.ListSourcesResponse{
		Sources:      summaries,
		TotalSources: len(summaries),
		TotalChunks:  totalChunks,
	})
}

// DeleteSource handles DELETE /sources/{source_id}
func (h *Handler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "DeleteSource")

	sourceID := chi.URLParam(r, "source_id")
	if sourceID == "" {
		response.Error(w, http.StatusBadRequest, "source_id is required")
		return
	}

	source, err := h.usecase.DeleteSource(ctx, sourceID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, &entity.DeleteSourceResponse{
		Success: true,
		Deleted: source.DisplayName,
		Chunks:  source.ChunkCount,
	})
}

// Stats handles GET /stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Stats")

	sources, chunks, err := h.usecase.Totals(ctx)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, &entity.StatsResponse{
		TotalSources: sources,
		TotalChunks:  chunks,
	})
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	ctxzap.Error(ctx, "usecase error", zap.Error(err))

	switch {
	case errors.Is(err, entity.ErrSourceNotFound):
		response.Error(w, http.StatusNotFound, "source not found")
	case errors.Is(err, entity.ErrUnsupportedFormat):
		response.Error(w, http.StatusUnsupportedMediaType, "unsupported file format")
	case errors.Is(err, entity.ErrEmptyDocument):
		response.Error(w, http.StatusBadRequest, "document is empty")
	case errors.Is(err, entity.ErrInvalidFile):
		response.Error(w, http.StatusBadRequest, "invalid file")
	case errors.Is(err, entity.ErrEmbeddingFailure):
		response.Error(w, http.StatusBadGateway, "embedding failed")
	case errors.Is(err, entity.ErrVectorStoreUnavailable):
		response.Error(w, http.StatusBadGateway, "vector store unavailable")
	default:
		response.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
