package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docbase/rag-backend/internal/classifier"
	"github.com/docbase/rag-backend/internal/config"
	"github.com/docbase/rag-backend/internal/entity"
	"github.com/docbase/rag-backend/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

type fakeVectorStore struct {
	mu      sync.Mutex
	results []entity.RetrievedChunk
	queries int
	healthy bool
}

func (f *fakeVectorStore) Search(_ context.Context, _ []float64, topK int) ([]entity.RetrievedChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if topK > len(f.results) {
		topK = len(f.results)
	}
	return append([]entity.RetrievedChunk(nil), f.results[:topK]...), nil
}

func (f *fakeVectorStore) Healthy(context.Context) bool { return f.healthy }

type fakeGenerator struct {
	answer  string
	healthy bool
	err     error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeGenerator) Stream(ctx context.Context, prompt string, maxTokens int, fn func(string) error) error {
	if f.err != nil {
		return f.err
	}
	for _, w := range strings.SplitAfter(f.answer, " ") {
		if err := fn(w); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeGenerator) Healthy(context.Context) bool { return f.healthy }

type fakeSourceRepo struct {
	names map[string]string
}

func (f *fakeSourceRepo) Upsert(context.Context, entity.Source) error { return nil }
func (f *fakeSourceRepo) GetByDisplayName(context.Context, string) (*entity.Source, error) {
	return nil, entity.ErrSourceNotFound
}
func (f *fakeSourceRepo) List(context.Context) ([]*entity.Source, error) { return nil, nil }
func (f *fakeSourceRepo) Delete(context.Context, string) (*entity.Source, error) {
	return nil, entity.ErrSourceNotFound
}
func (f *fakeSourceRepo) Totals(context.Context) (int, int, error) { return 0, 0, nil }

func (f *fakeSourceRepo) Get(_ context.Context, id string) (*entity.Source, error) {
	name, ok := f.names[id]
	if !ok {
		return nil, entity.ErrSourceNotFound
	}
	return &entity.Source{ID: id, DisplayName: name}, nil
}

func retrieved(id, sourceID, text string, score float64) entity.RetrievedChunk {
	return entity.RetrievedChunk{
		Chunk: entity.Chunk{ID: id, SourceID: sourceID, ViewType: entity.ViewSection, Path: "part-1", Text: text},
		Score: score,
	}
}

func defaultClassifier() *classifier.Classifier {
	return classifier.New(classifier.Config{
		TrivialTopK: 0, TrivialMaxTokens: 48,
		SimpleTopK: 2, SimpleMaxTokens: 96,
		MediumTopK: 3, MediumMaxTokens: 160,
		ComplexTopK: 5, ComplexMaxTokens: 256,
	})
}

func newTestQueryUsecase(store *fakeVectorStore, gen *fakeGenerator, embedder *fakeEmbedder) *QueryUsecase {
	return NewUsecase(
		defaultClassifier(),
		embedder,
		store,
		gen,
		&fakeSourceRepo{names: map[string]string{"src-1": "alpha.md", "src-2": "beta.json"}},
		time.Minute,
		config.QueryConfig{ContextWindowTokens: 4096, PromptReserveTokens: 200},
		zap.NewNop(),
	)
}

func TestAnswerBuildsPromptFromRetrievedContext(t *testing.T) {
	store := &fakeVectorStore{results: []entity.RetrievedChunk{
		retrieved("c1", "src-1", "alpha facts", 0.9),
		retrieved("c2", "src-2", "beta facts", 0.8),
	}}
	gen := &fakeGenerator{answer: "the answer"}
	uc := newTestQueryUsecase(store, gen, &fakeEmbedder{})

	resp, err := uc.Answer(context.Background(), &entity.Query{Text: "how does the indexing pipeline decide chunk sizes"})
	require.NoError(t, err)

	assert.Equal(t, "the answer", resp.Response)
	assert.Equal(t, []string{"alpha.md", "beta.json"}, resp.Sources)
	assert.GreaterOrEqual(t, resp.Timings.TotalMS, int64(0))
}

func TestAnswerTrivialQuerySkipsRetrieval(t *testing.T) {
	store := &fakeVectorStore{}
	gen := &fakeGenerator{answer: "hi there"}
	uc := newTestQueryUsecase(store, gen, &fakeEmbedder{})

	resp, err := uc.Answer(context.Background(), &entity.Query{Text: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "hi there", resp.Response)
	assert.Empty(t, resp.Sources)
	assert.Zero(t, store.queries)
}

func TestAnswerMissingQuery(t *testing.T) {
	uc := newTestQueryUsecase(&fakeVectorStore{}, &fakeGenerator{}, &fakeEmbedder{})

	_, err := uc.Answer(context.Background(), &entity.Query{Text: "   "})
	assert.ErrorIs(t, err, entity.ErrMissingQuery)
}

func TestQueryEmbeddingIsCached(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeVectorStore{results: []entity.RetrievedChunk{retrieved("c1", "src-1", "facts", 0.5)}}
	uc := newTestQueryUsecase(store, &fakeGenerator{answer: "a"}, embedder)

	q := "how does the indexing pipeline decide chunk sizes"
	_, err := uc.Answer(context.Background(), &entity.Query{Text: q})
	require.NoError(t, err)
	_, err = uc.Answer(context.Background(), &entity.Query{Text: q})
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, 2, store.queries)
}

func TestSearchRanksByScoreWithIDTieBreak(t *testing.T) {
	store := &fakeVectorStore{results: []entity.RetrievedChunk{
		retrieved("z", "src-1", "tied late", 0.7),
		retrieved("a", "src-1", "tied early", 0.7),
		retrieved("m", "src-1", "best", 0.9),
	}}
	uc := newTestQueryUsecase(store, &fakeGenerator{}, &fakeEmbedder{})

	got, err := uc.Search(context.Background(), "anything at all", 3)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "m", got[0].Chunk.ID)
	assert.Equal(t, "a", got[1].Chunk.ID)
	assert.Equal(t, "z", got[2].Chunk.ID)
}

func TestSearchRequiresQueryText(t *testing.T) {
	uc := newTestQueryUsecase(&fakeVectorStore{}, &fakeGenerator{}, &fakeEmbedder{})

	_, err := uc.Search(context.Background(), "", 5)
	assert.ErrorIs(t, err, entity.ErrMissingQuery)
}

func TestBuildPromptHonorsTokenBudget(t *testing.T) {
	big := strings.Repeat("filler ", 300) // ~525 tokens per chunk
	store := &fakeVectorStore{results: []entity.RetrievedChunk{
		retrieved("c1", "src-1", big, 0.9),
		retrieved("c2", "src-1", big, 0.8),
		retrieved("c3", "src-1", big, 0.7),
	}}
	uc := NewUsecase(
		defaultClassifier(),
		&fakeEmbedder{},
		store,
		&fakeGenerator{answer: "ok"},
		&fakeSourceRepo{names: map[string]string{"src-1": "alpha.md"}},
		time.Minute,
		// room for roughly one big chunk after reserve and response budget
		config.QueryConfig{ContextWindowTokens: 1000, PromptReserveTokens: 100},
		zap.NewNop(),
	)

	q := &entity.Query{Text: "how does the indexing pipeline decide chunk sizes", MaxTokens: 160, TopK: 3}
	prep, err := uc.prepare(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 1, prep.used)
	assert.Contains(t, prep.prompt, "Based on the following information:")
	assert.Contains(t, prep.prompt, q.Text)
}

func TestBuildPromptEmptyContextInstructsNoAnswer(t *testing.T) {
	uc := newTestQueryUsecase(&fakeVectorStore{}, &fakeGenerator{}, &fakeEmbedder{})

	q := &entity.Query{Text: "how does the indexing pipeline decide chunk sizes", TopK: 3, MaxTokens: 100}
	prep, err := uc.prepare(context.Background(), q)
	require.NoError(t, err)

	assert.Contains(t, prep.prompt, "No relevant information was found")
	assert.Contains(t, prep.prompt, "instead of answering from general knowledge")
	assert.Contains(t, prep.prompt, q.Text)
	assert.Empty(t, prep.sources)
	assert.Zero(t, prep.used)
}

func TestBuildPromptTrivialQueryPassesThrough(t *testing.T) {
	uc := newTestQueryUsecase(&fakeVectorStore{}, &fakeGenerator{}, &fakeEmbedder{})

	// trivial tier keeps top_k at zero, so no retrieval happened at all
	prep, err := uc.prepare(context.Background(), &entity.Query{Text: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "hello", prep.prompt)
	assert.Empty(t, prep.sources)
}

func TestStreamAnswerTokensConcatenateToFullAnswer(t *testing.T) {
	store := &fakeVectorStore{results: []entity.RetrievedChunk{retrieved("c1", "src-1", "facts", 0.5)}}
	gen := &fakeGenerator{answer: "streamed words arrive in order"}
	uc := newTestQueryUsecase(store, gen, &fakeEmbedder{})

	session := stream.NewSession(16, nil)
	go uc.StreamAnswer(context.Background(),
		&entity.Query{Text: "how does the indexing pipeline decide chunk sizes", ActivityID: "act-7"},
		session)

	var events []entity.StreamEvent
	for ev := range session.Events() {
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, entity.StreamStart, events[0].Type)
	assert.Equal(t, "act-7", events[0].ActivityID)
	assert.Equal(t, []string{"alpha.md"}, events[0].Sources)

	last := events[len(events)-1]
	require.Equal(t, entity.StreamDone, last.Type)
	require.NotNil(t, last.Timings)

	var sb strings.Builder
	for _, ev := range events[1 : len(events)-1] {
		require.Equal(t, entity.StreamToken, ev.Type)
		sb.WriteString(ev.Content)
	}
	assert.Equal(t, gen.answer, sb.String())
}

func TestStreamAnswerFailureEmitsErrorEvent(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: engine gone", entity.ErrGenerationUnavailable)}
	store := &fakeVectorStore{results: []entity.RetrievedChunk{retrieved("c1", "src-1", "facts", 0.5)}}
	uc := newTestQueryUsecase(store, gen, &fakeEmbedder{})

	session := stream.NewSession(16, nil)
	go uc.StreamAnswer(context.Background(),
		&entity.Query{Text: "how does the indexing pipeline decide chunk sizes"},
		session)

	var events []entity.StreamEvent
	for ev := range session.Events() {
		events = append(events, ev)
	}

	last := events[len(events)-1]
	assert.Equal(t, entity.StreamError, last.Type)
	assert.Equal(t, "generation engine unavailable", last.Message)
}

func TestHealthReportsCollaborators(t *testing.T) {
	uc := newTestQueryUsecase(&fakeVectorStore{healthy: true}, &fakeGenerator{healthy: true}, &fakeEmbedder{})
	health := uc.Health(context.Background())
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.VectorStore)
	assert.True(t, health.Generation)

	uc = newTestQueryUsecase(&fakeVectorStore{healthy: true}, &fakeGenerator{healthy: false}, &fakeEmbedder{})
	health = uc.Health(context.Background())
	assert.Equal(t, "degraded", health.Status)
	assert.False(t, health.Generation)
}
