package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/docbase/rag-backend/internal/classifier"
	"github.com/docbase/rag-backend/internal/config"
	"github.com/docbase/rag-backend/internal/entity"
	"github.com/docbase/rag-backend/internal/repository"
	"github.com/docbase/rag-backend/internal/stream"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const defaultSearchTopK = 5

// QueryUsecase implements retrieval and answer generation. Query embeddings
// are memoized so repeated questions skip the embedding round trip.
type QueryUsecase struct {
	classifier  *classifier.Classifier
	embedder    Embedder
	vectorStore VectorStore
	generator   Generator
	sourceRepo  repository.SourceRepository
	embedCache  *gocache.Cache
	queryCfg    config.QueryConfig
	logger      *zap.Logger
}

// NewUsecase creates a new query use case
func NewUsecase(
	cls *classifier.Classifier,
	embedder Embedder,
	vectorStore VectorStore,
	generator Generator,
	sourceRepo repository.SourceRepository,
	cacheTTL time.Duration,
	queryCfg config.QueryConfig,
	logger *zap.Logger,
) *QueryUsecase {
	return &QueryUsecase{
		classifier:  cls,
		embedder:    embedder,
		vectorStore: vectorStore,
		generator:   generator,
		sourceRepo:  sourceRepo,
		embedCache:  gocache.New(cacheTTL, 2*cacheTTL),
		queryCfg:    queryCfg,
		logger:      logger,
	}
}

// Search embeds the query and returns the nearest chunks without generation.
func (uc *QueryUsecase) Search(ctx context.Context, text string, topK int) ([]entity.RetrievedChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, entity.ErrMissingQuery
	}
	if topK <= 0 {
		topK = defaultSearchTopK
	}

	vector, _, err := uc.embedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	chunks, err := uc.vectorStore.Search(ctx, vector, topK)
	if err != nil {
		return nil, err
	}

	rankChunks(chunks)
	return chunks, nil
}

// Answer runs the full pipeline and blocks until the complete response is
// generated.
func (uc *QueryUsecase) Answer(ctx context.Context, q *entity.Query) (*entity.RAGResponse, error) {
	started := time.Now()

	prep, err := uc.prepare(ctx, q)
	if err != nil {
		return nil, err
	}

	genStart := time.Now()
	response, err := uc.generator.Generate(ctx, prep.prompt, q.MaxTokens)
	if err != nil {
		return nil, err
	}

	timings := prep.timings
	timings.GenerationMS = time.Since(genStart).Milliseconds()
	timings.TotalMS = time.Since(started).Milliseconds()

	ctxzap.Info(ctx, "query answered",
		zap.String("tier", string(prep.tier)),
		zap.Int("chunks_used", prep.used),
		zap.Int64("total_ms", timings.TotalMS),
	)

	return &entity.RAGResponse{
		Response: response,
		Sources:  prep.sources,
		Timings:  timings,
	}, nil
}

// StreamAnswer runs the pipeline and feeds the session token by token. The
// session always receives a terminal event unless it was cancelled first.
func (uc *QueryUsecase) StreamAnswer(ctx context.Context, q *entity.Query, session *stream.Session) {
	started := time.Now()

	prep, err := uc.prepare(ctx, q)
	if err != nil {
		ctxzap.Error(ctx, "stream preparation failed", zap.Error(err))
		session.Fail(publicError(err))
		return
	}

	if err := session.Start(q.ActivityID, prep.sources); err != nil {
		return
	}

	genStart := time.Now()
	err = uc.generator.Stream(ctx, prep.prompt, q.MaxTokens, func(token string) error {
		return session.Token(token)
	})
	if err != nil {
		if session.Cancelled() {
			return
		}
		ctxzap.Error(ctx, "stream generation failed", zap.Error(err))
		session.Fail(publicError(err))
		return
	}

	timings := prep.timings
	timings.GenerationMS = time.Since(genStart).Milliseconds()
	timings.TotalMS = time.Since(started).Milliseconds()
	session.Done(timings)
}

// Health reports reachability of both collaborators.
func (uc *QueryUsecase) Health(ctx context.Context) entity.HealthResponse {
	vectorOK := uc.vectorStore.Healthy(ctx)
	genOK := uc.generator.Healthy(ctx)

	status := "ok"
	if !vectorOK || !genOK {
		status = "degraded"
	}

	return entity.HealthResponse{
		Status:      status,
		VectorStore: vectorOK,
		Generation:  genOK,
	}
}

type preparedQuery struct {
	prompt  string
	sources []string
	tier    classifier.Tier
	used    int
	timings entity.Timings
}

// prepare classifies the query, retrieves context within the prompt token
// budget and builds the final prompt.
func (uc *QueryUsecase) prepare(ctx context.Context, q *entity.Query) (*preparedQuery, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, entity.ErrMissingQuery
	}

	tier := uc.classifier.Apply(q)
	prep := &preparedQuery{tier: tier}

	var chunks []entity.RetrievedChunk
	if q.TopK > 0 {
		vector, embedMS, err := uc.embedQuery(ctx, q.Text)
		if err != nil {
			return nil, err
		}
		prep.timings.EmbeddingMS = embedMS

		retrievalStart := time.Now()
		chunks, err = uc.vectorStore.Search(ctx, vector, q.TopK)
		if err != nil {
			return nil, err
		}
		prep.timings.RetrievalMS = time.Since(retrievalStart).Milliseconds()

		rankChunks(chunks)
	}

	prompt, sources, used := uc.buildPrompt(ctx, q, chunks)
	prep.prompt = prompt
	prep.sources = sources
	prep.used = used
	return prep, nil
}

// buildPrompt assembles retrieved context greedily in rank order until the
// context token budget is exhausted, then wraps it around the question. When
// retrieval was attempted but produced no usable context the prompt instructs
// the engine to say so instead of answering from general knowledge; a trivial
// query that skipped retrieval passes through untouched.
func (uc *QueryUsecase) buildPrompt(ctx context.Context, q *entity.Query, chunks []entity.RetrievedChunk) (string, []string, int) {
	budget := uc.queryCfg.ContextWindowTokens - q.MaxTokens - uc.queryCfg.PromptReserveTokens

	names := map[string]string{}
	var parts []string
	var sources []string
	remaining := budget

	for _, rc := range chunks {
		name := uc.sourceName(ctx, names, rc.Chunk.SourceID)
		part := fmt.Sprintf("[%s | %s]\n%s", name, rc.Chunk.Path, rc.Chunk.Text)

		cost := estimateTokens(part)
		if cost > remaining {
			break
		}
		remaining -= cost

		parts = append(parts, part)
		if !contains(sources, name) {
			sources = append(sources, name)
		}
	}

	if len(parts) == 0 {
		if q.TopK > 0 {
			prompt := fmt.Sprintf("No relevant information was found in the indexed documents for this question. "+
				"State that no relevant information is available instead of answering from general knowledge.\n\nQuestion: %s", q.Text)
			return prompt, nil, 0
		}
		return q.Text, nil, 0
	}

	prompt := fmt.Sprintf("Based on the following information:\n\n%s\n\nPlease answer: %s",
		strings.Join(parts, "\n\n"), q.Text)
	return prompt, sources, len(parts)
}

// embedQuery returns the query vector, consulting the memoization cache
// first. The reported duration is zero on a cache hit.
func (uc *QueryUsecase) embedQuery(ctx context.Context, text string) ([]float64, int64, error) {
	if cached, ok := uc.embedCache.Get(text); ok {
		return cached.([]float64), 0, nil
	}

	start := time.Now()
	vectors, err := uc.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, 0, err
	}
	if len(vectors) != 1 {
		return nil, 0, fmt.Errorf("%w: expected 1 query vector, got %d", entity.ErrEmbeddingFailure, len(vectors))
	}

	uc.embedCache.SetDefault(text, vectors[0])
	return vectors[0], time.Since(start).Milliseconds(), nil
}

func (uc *QueryUsecase) sourceName(ctx context.Context, memo map[string]string, sourceID string) string {
	if name, ok := memo[sourceID]; ok {
		return name
	}

	name := sourceID
	if source, err := uc.sourceRepo.Get(ctx, sourceID); err == nil {
		name = source.DisplayName
	}
	memo[sourceID] = name
	return name
}

// rankChunks orders by score descending with chunk id as a deterministic
// tie-break.
func rankChunks(chunks []entity.RetrievedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].Chunk.ID < chunks[j].Chunk.ID
	})
}

func publicError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, entity.ErrMissingQuery):
		return "query text is required"
	case errors.Is(err, entity.ErrGenerationTimeout):
		return "generation timed out"
	case errors.Is(err, entity.ErrGenerationUnavailable):
		return "generation engine unavailable"
	case errors.Is(err, entity.ErrVectorStoreUnavailable):
		return "vector store unavailable"
	case errors.Is(err, entity.ErrEmbeddingFailure):
		return "embedding failed"
	default:
		return "internal error"
	}
}

func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
