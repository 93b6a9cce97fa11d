package generation

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector answers every prompt with a canned response. Streaming
// delivers it word by word so stream consumers see realistic fragmentation.
type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{logger: logger}
}

const mockAnswer = "Based on the indexed documents, the system stores each document " +
	"as a set of view-specific chunks and retrieves the most relevant ones to answer questions."

func (m *MockConnector) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	ctxzap.Info(ctx, "[MOCK] generating response",
		zap.Int("prompt_length", len(prompt)), zap.Int("max_tokens", maxTokens))
	return mockAnswer, nil
}

func (m *MockConnector) Stream(ctx context.Context, prompt string, maxTokens int, fn func(token string) error) error {
	ctxzap.Info(ctx, "[MOCK] streaming response", zap.Int("prompt_length", len(prompt)))

	words := strings.SplitAfter(mockAnswer, " ")
	for _, w := range words {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := fn(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockConnector) Healthy(ctx context.Context) bool {
	return true
}
