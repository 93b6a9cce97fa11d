package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/docbase/rag-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector keeps points in memory and scores them with real cosine
// similarity, so the full pipeline works without a running store.
type MockConnector struct {
	logger *zap.Logger

	mu     sync.RWMutex
	points map[string]Point
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{
		logger: logger,
		points: make(map[string]Point),
	}
}

func (m *MockConnector) EnsureCollection(ctx context.Context) error {
	ctxzap.Info(ctx, "[MOCK] collection ready")
	return nil
}

func (m *MockConnector) Upsert(ctx context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range points {
		m.points[p.Chunk.ID] = p
	}

	ctxzap.Info(ctx, "[MOCK] points upserted", zap.Int("count", len(points)))
	return nil
}

func (m *MockConnector) Search(ctx context.Context, vector []float64, topK int) ([]entity.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]entity.RetrievedChunk, 0, len(m.points))
	for _, p := range m.points {
		results = append(results, entity.RetrievedChunk{
			Chunk: p.Chunk,
			Score: cosine(vector, p.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if len(results) > topK {
		results = results[:topK]
	}

	ctxzap.Info(ctx, "[MOCK] search done", zap.Int("results", len(results)))
	return results, nil
}

func (m *MockConnector) DeleteBySource(ctx context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, p := range m.points {
		if p.Chunk.SourceID == sourceID {
			delete(m.points, id)
			deleted++
		}
	}

	ctxzap.Info(ctx, "[MOCK] source points deleted",
		zap.String("source_id", sourceID), zap.Int("count", deleted))
	return nil
}

func (m *MockConnector) Healthy(ctx context.Context) bool {
	return true
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
