package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const mockDimension = 768

// MockConnector derives deterministic vectors from the input text, so equal
// texts embed identically and searches behave consistently across runs.
type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{logger: logger}
}

func (m *MockConnector) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = mockVector(text)
	}

	ctxzap.Info(ctx, "[MOCK] texts embedded", zap.Int("count", len(texts)))
	return vectors, nil
}

func mockVector(text string) []float64 {
	digest := sha256.Sum256([]byte(text))

	vec := make([]float64, mockDimension)
	var norm float64
	for i := range vec {
		// Stretch the 32-byte digest across the vector by re-hashing
		// the position into it.
		word := binary.BigEndian.Uint32(digest[(i*4)%28:])
		v := float64(word^uint32(i*2654435761)) / float64(math.MaxUint32)
		vec[i] = v*2 - 1
		norm += vec[i] * vec[i]
	}

	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
