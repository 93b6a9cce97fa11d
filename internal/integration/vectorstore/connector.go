package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/docbase/rag-backend/internal/config"
	"github.com/docbase/rag-backend/internal/entity"
	"github.com/docbase/rag-backend/internal/integration/common"
	pkghttp "github.com/docbase/rag-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Point is one vector plus its chunk payload as stored in the collection.
type Point struct {
	Chunk  entity.Chunk
	Vector []float64
}

// Connector is a REST client for the Qdrant vector store. The store owns
// embedding storage; chunks are addressed by their deterministic ids.
type Connector struct {
	config    config.VectorStoreConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(cfg config.VectorStoreConfig, logger *zap.Logger) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

// EnsureCollection creates the collection if it does not exist yet.
// Qdrant answers 409 when it already does, which is fine.
func (c *Connector) EnsureCollection(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     c.config.Dimension,
			"distance": "Cosine",
		},
	}

	err := c.connector.DoRequest(ctx, http.MethodPut, "/collections/"+c.config.Collection, body, nil)
	var httpErr *pkghttp.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusConflict {
		return nil
	}
	if err != nil {
		return c.asUnavailable(err, "create collection")
	}
	return nil
}

// Upsert writes points in place; identical ids overwrite rather than
// duplicate.
func (c *Connector) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	payload := make([]map[string]any, 0, len(points))
	for _, p := range points {
		payload = append(payload, map[string]any{
			"id":     p.Chunk.ID,
			"vector": p.Vector,
			"payload": map[string]any{
				"source_id":  p.Chunk.SourceID,
				"view_type":  string(p.Chunk.ViewType),
				"path":       p.Chunk.Path,
				"parent_ref": p.Chunk.ParentRef,
				"text":       p.Chunk.Text,
			},
		})
	}

	err := c.withRetry(ctx, func() error {
		return c.connector.DoRequest(ctx, http.MethodPut,
			"/collections/"+c.config.Collection+"/points?wait=true",
			map[string]any{"points": payload}, nil)
	})
	if err != nil {
		return c.asUnavailable(err, "upsert points")
	}

	ctxzap.Debug(ctx, "points upserted", zap.Int("count", len(points)))
	return nil
}

type searchResponse struct {
	Result []struct {
		ID      string         `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search returns the topK nearest chunks by cosine similarity,
// score-descending as ranked by the store.
func (c *Connector) Search(ctx context.Context, vector []float64, topK int) ([]entity.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, nil
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	var resp searchResponse
	err := c.withRetry(ctx, func() error {
		return c.connector.DoRequest(ctx, http.MethodPost,
			"/collections/"+c.config.Collection+"/points/search", req, &resp)
	})
	if err != nil {
		return nil, c.asUnavailable(err, "search points")
	}

	results := make([]entity.RetrievedChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, entity.RetrievedChunk{
			Chunk: chunkFromPayload(r.ID, r.Payload),
			Score: r.Score,
		})
	}
	return results, nil
}

// DeleteBySource removes every point whose payload source_id matches,
// implementing the cascade half of source deletion.
func (c *Connector) DeleteBySource(ctx context.Context, sourceID string) error {
	req := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "source_id", "match": map[string]any{"value": sourceID}},
			},
		},
	}

	err := c.withRetry(ctx, func() error {
		return c.connector.DoRequest(ctx, http.MethodPost,
			"/collections/"+c.config.Collection+"/points/delete?wait=true", req, nil)
	})
	if err != nil {
		return c.asUnavailable(err, "delete points")
	}

	ctxzap.Info(ctx, "source points deleted", zap.String("source_id", sourceID))
	return nil
}

// Healthy reports whether the store answers its health endpoint.
func (c *Connector) Healthy(ctx context.Context) bool {
	return c.connector.DoRequest(ctx, http.MethodGet, "/healthz", nil, nil) == nil
}

func (c *Connector) withRetry(ctx context.Context, op func() error) error {
	opts := append(c.config.Retry.ToRetryOptions(),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			var netErr *pkghttp.NetworkError
			var httpErr *pkghttp.HTTPError
			if errors.As(err, &netErr) {
				return true
			}
			return errors.As(err, &httpErr) && httpErr.StatusCode >= 500
		}),
	)
	return retry.Do(op, opts...)
}

func (c *Connector) asUnavailable(err error, op string) error {
	var netErr *pkghttp.NetworkError
	var httpErr *pkghttp.HTTPError
	if errors.As(err, &netErr) || (errors.As(err, &httpErr) && httpErr.StatusCode >= 500) {
		return fmt.Errorf("%s: %w: %w", op, entity.ErrVectorStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func chunkFromPayload(id string, payload map[string]any) entity.Chunk {
	chunk := entity.Chunk{ID: id}
	if v, ok := payload["source_id"].(string); ok {
		chunk.SourceID = v
	}
	if v, ok := payload["view_type"].(string); ok {
		chunk.ViewType = entity.ViewType(v)
	}
	if v, ok := payload["path"].(string); ok {
		chunk.Path = v
	}
	if v, ok := payload["parent_ref"].(string); ok {
		chunk.ParentRef = v
	}
	if v, ok := payload["text"].(string); ok {
		chunk.Text = v
	}
	return chunk
}
