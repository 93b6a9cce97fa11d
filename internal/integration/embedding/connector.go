package embedding

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
	"go.uber.org/zap"
)

// Connector talks to the Ollama embedding endpoint.
type Connector struct {
	config    config.EmbeddingConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(cfg config.EmbeddingConfig, logger *zap.Logger) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed returns one vector per input text, in input order.
func (c *Connector) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := embedRequest{Model: c.config.Model, Input: texts}

	var resp embedResponse
	err := retry.Do(func() error {
		resp = embedResponse{}
		return c.connector.DoRequest(ctx, http.MethodPost, "/api/embed", req, &resp)
	}, append(c.config.Retry.ToRetryOptions(),
		retry.Context(ctx),
		retry.RetryIf(retriable),
	)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrEmbeddingFailure, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs",
			entity.ErrEmbeddingFailure, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func retriable(err error) bool {
	var netErr *pkghttp.NetworkError
	var httpErr *pkghttp.HTTPError
	if errors.As(err, &netErr) {
		return true
	}
	return errors.As(err, &httpErr) && httpErr.StatusCode >= 500
}
