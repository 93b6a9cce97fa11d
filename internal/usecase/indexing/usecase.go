package indexing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docbase/rag-backend/internal/chunker"
	"github.com/docbase/rag-backend/internal/entity"
	"github.com/docbase/rag-backend/internal/integration/vectorstore"
	"github.com/docbase/rag-backend/internal/pkg/logger"
	"github.com/docbase/rag-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// sourceNamespace is the fixed UUID namespace for deterministic source ids,
// keyed by display name. Re-uploading a file replaces its previous index.
var sourceNamespace = uuid.MustParse("6b1d0c2e-8f4a-4d3b-9e57-2c0a1f9d8e43")

const embedBatchSize = 16

// IndexingUsecase implements the document ingestion pipeline: normalize,
// chunk, embed, write to the vector store and register the source.
type IndexingUsecase struct {
	normalizer  Normalizer
	chunker     Chunker
	embedder    Embedder
	vectorStore VectorStore
	sourceRepo  repository.SourceRepository
	concurrency int
	logger      *zap.Logger
}

// NewUsecase creates a new indexing use case
func NewUsecase(
	normalizer Normalizer,
	chk Chunker,
	embedder Embedder,
	vectorStore VectorStore,
	sourceRepo repository.SourceRepository,
	concurrency int,
	logger *zap.Logger,
) *IndexingUsecase {
	if concurrency < 1 {
		concurrency = 1
	}
	return &IndexingUsecase{
		normalizer:  normalizer,
		chunker:     chk,
		embedder:    embedder,
		vectorStore: vectorStore,
		sourceRepo:  sourceRepo,
		concurrency: concurrency,
		logger:      logger,
	}
}

// SourceID derives a stable source id from the display name.
func SourceID(displayName string) string {
	return uuid.NewSHA1(sourceNamespace, []byte(displayName)).String()
}

// IndexDocument runs the full pipeline for one uploaded document. Chunks
// whose embedding fails are reported in the result rather than aborting the
// whole upload; the source record reflects only what actually landed in the
// vector store.
func (uc *IndexingUsecase) IndexDocument(ctx context.Context, raw []byte, displayName string) (*entity.IndexResult, error) {
	format, text, err := uc.normalizer.Normalize(raw, displayName)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}

	drafts, err := uc.chunker.Chunk(format, text, displayName)
	if err != nil {
		return nil, fmt.Errorf("chunk document: %w", err)
	}

	sourceID := SourceID(displayName)
	ctx = logger.WithSource(ctx, sourceID)

	if prior, err := uc.sourceRepo.GetByDisplayName(ctx, displayName); err == nil {
		ctxzap.Info(ctx, "replacing previously indexed source",
			zap.Int("previous_chunks", prior.ChunkCount),
			zap.Time("previously_indexed_at", prior.IndexedAt),
		)
	}

	chunks := make([]entity.Chunk, len(drafts))
	for i, d := range drafts {
		chunks[i] = entity.Chunk{
			ID:        chunker.ChunkID(sourceID, d.ViewType, d.Path),
			SourceID:  sourceID,
			ViewType:  d.ViewType,
			Text:      d.Text,
			Path:      d.Path,
			ParentRef: d.ParentRef,
		}
	}

	points, failures := uc.embedChunks(ctx, chunks)
	if len(points) == 0 {
		return nil, fmt.Errorf("embed document %q: %w", displayName, entity.ErrEmbeddingFailure)
	}

	// Replace the previous index for this source wholesale. Embedding has
	// already succeeded, so the window without any indexed chunks is short.
	if err := uc.vectorStore.DeleteBySource(ctx, sourceID); err != nil {
		return nil, fmt.Errorf("evict previous chunks: %w", err)
	}
	if err := uc.vectorStore.Upsert(ctx, points); err != nil {
		return nil, fmt.Errorf("write chunks: %w", err)
	}

	source := entity.Source{
		ID:          sourceID,
		DisplayName: displayName,
		Format:      format,
		SizeBytes:   int64(len(raw)),
		ChunkCount:  len(points),
		IndexedAt:   time.Now().UTC(),
	}
	if err := uc.sourceRepo.Upsert(ctx, source); err != nil {
		return nil, fmt.Errorf("register source: %w", err)
	}

	ctxzap.Info(ctx, "document indexed",
		zap.String("display_name", displayName),
		zap.String("format", string(format)),
		zap.Int("chunks_indexed", len(points)),
		zap.Int("chunks_failed", len(failures)),
	)

	return &entity.IndexResult{
		Source:        &source,
		ChunksIndexed: len(points),
		FailedChunks:  failures,
	}, nil
}

// DeleteSource removes a source's chunks from the vector store and then its
// registry record. Chunks go first so a failed cascade leaves the record in
// place and the delete can be retried.
func (uc *IndexingUsecase) DeleteSource(ctx context.Context, sourceID string) (*entity.Source, error) {
	source, err := uc.sourceRepo.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	if err := uc.vectorStore.DeleteBySource(ctx, sourceID); err != nil {
		return nil, fmt.Errorf("delete source chunks: %w", err)
	}

	if _, err := uc.sourceRepo.Delete(ctx, sourceID); err != nil {
		return nil, err
	}

	ctxzap.Info(ctx, "source deleted",
		zap.String("source_id", sourceID),
		zap.Int("chunks_deleted", source.ChunkCount),
	)
	return source, nil
}

func (uc *IndexingUsecase) ListSources(ctx context.Context) ([]*entity.Source, error) {
	return uc.sourceRepo.List(ctx)
}

func (uc *IndexingUsecase) Totals(ctx context.Context) (int, int, error) {
	return uc.sourceRepo.Totals(ctx)
}

// embedChunks embeds chunk texts in bounded-parallel batches. A failed batch
// is recorded per chunk and the rest of the document proceeds.
func (uc *IndexingUsecase) embedChunks(ctx context.Context, chunks []entity.Chunk) ([]vectorstore.Point, []entity.ChunkFailure) {
	var (
		mu       sync.Mutex
		points   []vectorstore.Point
		failures []entity.ChunkFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}

			vectors, err := uc.embedder.Embed(gctx, texts)
			if err != nil {
				uc.logger.Warn("embedding batch failed",
					zap.Int("batch_size", len(batch)), zap.Error(err))

				mu.Lock()
				for _, c := range batch {
					failures = append(failures, entity.ChunkFailure{
						ChunkID: c.ID,
						Reason:  err.Error(),
					})
				}
				mu.Unlock()
				return nil
			}

			mu.Lock()
			for i, c := range batch {
				points = append(points, vectorstore.Point{Chunk: c, Vector: vectors[i]})
			}
			mu.Unlock()
			return nil
		})
	}

	// Workers swallow their own errors, so Wait only synchronizes.
	_ = g.Wait()

	return points, failures
}
