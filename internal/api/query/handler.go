package query

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/docbase/rag-backend/internal/entity"
	"github.com/docbase/rag-backend/internal/pkg/logger"
	"github.com/docbase/rag-backend/internal/pkg/response"
	"github.com/docbase/rag-backend/internal/stream"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// sessionBuffer absorbs bursts of tokens so a slow client does not stall the
// generation goroutine on every event.
const sessionBuffer = 64

type Handler struct {
	usecase QueryUsecase
}

func NewHandler(usecase QueryUsecase) *Handler {
	return &Handler{usecase: usecase}
}

// Search handles POST /search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Search")

	var req entity.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chunks, err := h.usecase.Search(ctx, req.Query, req.TopK)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "search completed", zap.Int("results", len(chunks)))
	response.Success(w, toSearchResponse(chunks))
}

// Query handles POST /query
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Query")

	q, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	resp, err := h.usecase.Answer(ctx, q)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, resp)
}

// QueryStream handles POST /query/stream
func (h *Handler) QueryStream(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "QueryStream")

	q, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	session := stream.NewSession(sessionBuffer, nil)
	go h.usecase.StreamAnswer(ctx, q, session)

	// Cancel the session if the client disconnects mid-stream.
	clientGone := r.Context().Done()
	go func() {
		<-clientGone
		session.Cancel()
	}()

	sw := stream.NewWriter(w)
	for ev := range session.Events() {
		if err := sw.WriteEvent(ev); err != nil {
			ctxzap.Warn(ctx, "client write failed, aborting stream", zap.Error(err))
			session.Cancel()
			return
		}
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Health")

	health := h.usecase.Health(ctx)

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, health)
}

func (h *Handler) decodeQuery(w http.ResponseWriter, r *http.Request) (*entity.Query, bool) {
	var req entity.RAGRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	// The caller may supply its own correlation id; otherwise mint one.
	activityID := r.Header.Get("X-Activity-ID")
	if activityID == "" {
		activityID = uuid.New().String()
	}
	w.Header().Set("X-Activity-ID", activityID)

	return &entity.Query{
		Text:       req.Query,
		TopK:       req.TopK,
		MaxTokens:  req.MaxTokens,
		ActivityID: activityID,
	}, true
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	ctxzap.Error(ctx, "usecase error", zap.Error(err))

	switch {
	case errors.Is(err, entity.ErrMissingQuery):
		response.Error(w, http.StatusBadRequest, "query text is required")
	case errors.Is(err, entity.ErrGenerationTimeout):
		response.Error(w, http.StatusGatewayTimeout, "generation timed out")
	case errors.Is(err, entity.ErrGenerationUnavailable):
		response.Error(w, http.StatusBadGateway, "generation engine unavailable")
	case errors.Is(err, entity.ErrVectorStoreUnavailable):
		response.Error(w, http.StatusBadGateway, "vector store unavailable")
	case errors.Is(err, entity.ErrEmbeddingFailure):
		response.Error(w, http.StatusBadGateway, "embedding failed")
	default:
		response.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
