package indexing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/docbase/rag-backend/internal/chunker"
	"github.com/docbase/rag-backend/internal/entity"
	"github.com/docbase/rag-backend/internal/ingest"
	"github.com/docbase/rag-backend/internal/integration/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	failOn  string
	failAll bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.failAll {
		return nil, fmt.Errorf("%w: engine down", entity.ErrEmbeddingFailure)
	}
	for _, t := range texts {
		if f.failOn != "" && strings.Contains(t, f.failOn) {
			return nil, fmt.Errorf("%w: bad batch", entity.ErrEmbeddingFailure)
		}
	}

	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0, 0}
	}
	return out, nil
}

type fakeVectorStore struct {
	mu        sync.Mutex
	upserted  []vectorstore.Point
	deleted   []string
	ops       []string
	deleteErr error
}

func (f *fakeVectorStore) Upsert(_ context.Context, points []vectorstore.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, points...)
	f.ops = append(f.ops, "upsert")
	return nil
}

func (f *fakeVectorStore) DeleteBySource(_ context.Context, sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, sourceID)
	f.ops = append(f.ops, "delete")
	return nil
}

type fakeSourceRepo struct {
	mu          sync.Mutex
	sources     map[string]entity.Source
	nameLookups int
}

func newFakeSourceRepo() *fakeSourceRepo {
	return &fakeSourceRepo{sources: make(map[string]entity.Source)}
}

func (f *fakeSourceRepo) Upsert(_ context.Context, source entity.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[source.ID] = source
	return nil
}

func (f *fakeSourceRepo) Get(_ context.Context, id string) (*entity.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[id]
	if !ok {
		return nil, entity.ErrSourceNotFound
	}
	return &s, nil
}

func (f *fakeSourceRepo) GetByDisplayName(_ context.Context, name string) (*entity.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nameLookups++
	for _, s := range f.sources {
		if s.DisplayName == name {
			return &s, nil
		}
	}
	return nil, entity.ErrSourceNotFound
}

func (f *fakeSourceRepo) List(_ context.Context) ([]*entity.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entity.Source, 0, len(f.sources))
	for _, s := range f.sources {
		s := s
		out = append(out, &s)
	}
	return out, nil
}

func (f *fakeSourceRepo) Delete(_ context.Context, id string) (*entity.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[id]
	if !ok {
		return nil, entity.ErrSourceNotFound
	}
	delete(f.sources, id)
	return &s, nil
}

func (f *fakeSourceRepo) Totals(_ context.Context) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunks := 0
	for _, s := range f.sources {
		chunks += s.ChunkCount
	}
	return len(f.sources), chunks, nil
}

func newTestUsecase(embedder *fakeEmbedder, store *fakeVectorStore, repo *fakeSourceRepo) *IndexingUsecase {
	logger := zap.NewNop()
	return NewUsecase(
		ingest.NewNormalizer(),
		chunker.New(chunker.Config{}, logger),
		embedder,
		store,
		repo,
		2,
		logger,
	)
}

func TestIndexDocument(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeVectorStore{}
	repo := newFakeSourceRepo()
	uc := newTestUsecase(embedder, store, repo)

	doc := []byte(`{"service":{"name":"api","port":8080}}`)
	result, err := uc.IndexDocument(context.Background(), doc, "config.json")
	require.NoError(t, err)

	assert.True(t, result.ChunksIndexed > 0)
	assert.Empty(t, result.FailedChunks)
	assert.Equal(t, "config.json", result.Source.DisplayName)
	assert.Equal(t, entity.FormatJSON, result.Source.Format)
	assert.EqualValues(t, len(doc), result.Source.SizeBytes)

	// previous chunks are evicted before the new ones land
	require.Equal(t, []string{"delete", "upsert"}, store.ops)
	assert.Equal(t, []string{result.Source.ID}, store.deleted)
	assert.Len(t, store.upserted, result.ChunksIndexed)

	// the registry reflects the indexed state
	saved, err := repo.Get(context.Background(), result.Source.ID)
	require.NoError(t, err)
	assert.Equal(t, result.ChunksIndexed, saved.ChunkCount)

	// the upload checked for a previously indexed copy of the same name
	assert.Equal(t, 1, repo.nameLookups)
}

func TestIndexDocumentIdempotentIDs(t *testing.T) {
	doc := []byte(`{"a":1,"b":{"c":2,"d":3}}`)

	ids := func() map[string]bool {
		store := &fakeVectorStore{}
		uc := newTestUsecase(&fakeEmbedder{}, store, newFakeSourceRepo())
		_, err := uc.IndexDocument(context.Background(), doc, "same.json")
		require.NoError(t, err)

		out := make(map[string]bool)
		for _, p := range store.upserted {
			out[p.Chunk.ID] = true
		}
		return out
	}

	assert.Equal(t, ids(), ids())
}

func TestIndexDocumentEmptyFile(t *testing.T) {
	uc := newTestUsecase(&fakeEmbedder{}, &fakeVectorStore{}, newFakeSourceRepo())

	_, err := uc.IndexDocument(context.Background(), []byte("  \n"), "blank.txt")
	assert.ErrorIs(t, err, entity.ErrEmptyDocument)
}

func TestIndexDocumentAllEmbeddingsFail(t *testing.T) {
	store := &fakeVectorStore{}
	uc := newTestUsecase(&fakeEmbedder{failAll: true}, store, newFakeSourceRepo())

	_, err := uc.IndexDocument(context.Background(), []byte(`{"a":1}`), "doc.json")
	assert.ErrorIs(t, err, entity.ErrEmbeddingFailure)

	// nothing was written or evicted
	assert.Empty(t, store.ops)
}

func TestEmbedChunksRecordsPartialFailures(t *testing.T) {
	embedder := &fakeEmbedder{failOn: "poison"}
	uc := newTestUsecase(embedder, &fakeVectorStore{}, newFakeSourceRepo())

	chunks := make([]entity.Chunk, 0, embedBatchSize+4)
	for i := 0; i < embedBatchSize; i++ {
		chunks = append(chunks, entity.Chunk{ID: fmt.Sprintf("ok-%d", i), Text: "fine"})
	}
	for i := 0; i < 4; i++ {
		chunks = append(chunks, entity.Chunk{ID: fmt.Sprintf("bad-%d", i), Text: "poison"})
	}

	points, failures := uc.embedChunks(context.Background(), chunks)

	assert.Len(t, points, embedBatchSize)
	require.Len(t, failures, 4)
	for _, f := range failures {
		assert.Contains(t, f.ChunkID, "bad-")
		assert.NotEmpty(t, f.Reason)
	}
}

func TestDeleteSourceCascades(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeVectorStore{}
	repo := newFakeSourceRepo()
	uc := newTestUsecase(embedder, store, repo)

	result, err := uc.IndexDocument(context.Background(), []byte(`{"a":1}`), "doc.json")
	require.NoError(t, err)

	source, err := uc.DeleteSource(context.Background(), result.Source.ID)
	require.NoError(t, err)
	assert.Equal(t, "doc.json", source.DisplayName)

	// both the registry entry and the vector points are gone
	_, err = repo.Get(context.Background(), result.Source.ID)
	assert.ErrorIs(t, err, entity.ErrSourceNotFound)
	assert.Equal(t, []string{result.Source.ID, result.Source.ID}, store.deleted)
}

func TestDeleteSourceKeepsRegistryOnCascadeFailure(t *testing.T) {
	store := &fakeVectorStore{}
	repo := newFakeSourceRepo()
	uc := newTestUsecase(&fakeEmbedder{}, store, repo)

	result, err := uc.IndexDocument(context.Background(), []byte(`{"a":1}`), "doc.json")
	require.NoError(t, err)

	store.deleteErr = fmt.Errorf("%w: connection refused", entity.ErrVectorStoreUnavailable)
	_, err = uc.DeleteSource(context.Background(), result.Source.ID)
	require.ErrorIs(t, err, entity.ErrVectorStoreUnavailable)

	// the registry row survives, so the delete stays retryable
	_, err = repo.Get(context.Background(), result.Source.ID)
	require.NoError(t, err)

	store.deleteErr = nil
	_, err = uc.DeleteSource(context.Background(), result.Source.ID)
	require.NoError(t, err)
	_, err = repo.Get(context.Background(), result.Source.ID)
	assert.ErrorIs(t, err, entity.ErrSourceNotFound)
}

func TestDeleteSourceNotFound(t *testing.T) {
	uc := newTestUsecase(&fakeEmbedder{}, &fakeVectorStore{}, newFakeSourceRepo())

	_, err := uc.DeleteSource(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrSourceNotFound)
}

func TestSourceIDStable(t *testing.T) {
	assert.Equal(t, SourceID("report.md"), SourceID("report.md"))
	assert.NotEqual(t, SourceID("report.md"), SourceID("other.md"))
}
