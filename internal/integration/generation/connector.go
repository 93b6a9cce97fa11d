package generation

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/docbase/rag-backend/internal/config"
	"github.com/docbase/rag-backend/internal/entity"
	"github.com/docbase/rag-backend/internal/integration/common"
	pkghttp "github.com/docbase/rag-backend/pkg/http"
	"go.uber.org/zap"
)

// Connector talks to the Ollama generation API. Blocking calls go through
// the regular client; streaming calls use a client without a flat request
// timeout so a long token stream is bounded only by the request context.
type Connector struct {
	config    config.GenerationConfig
	connector *pkghttp.Connector
	streamer  *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(cfg config.GenerationConfig, logger *zap.Logger) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		streamer:  common.NewStreamConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (c *Connector) options(maxTokens int) map[string]any {
	opts := map[string]any{
		"temperature": c.config.Temperature,
	}
	if maxTokens > 0 {
		opts["num_predict"] = maxTokens
	}
	return opts
}

// Generate produces a complete response in one round trip.
func (c *Connector) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req := generateRequest{
		Model:   c.config.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: c.options(maxTokens),
	}

	var resp generateResponse
	err := retry.Do(func() error {
		resp = generateResponse{}
		return c.connector.DoRequest(ctx, http.MethodPost, "/api/generate", req, &resp)
	}, append(c.config.Retry.ToRetryOptions(),
		retry.Context(ctx),
		retry.RetryIf(retriable),
	)...)
	if err != nil {
		return "", c.mapErr(ctx, err)
	}

	if resp.Error != "" {
		return "", fmt.Errorf("%w: %s", entity.ErrGenerationUnavailable, resp.Error)
	}
	return resp.Response, nil
}

// Stream produces the response token by token, calling fn for each fragment
// in arrival order. A non-nil error from fn aborts the stream. No retry here:
// tokens already delivered cannot be taken back.
func (c *Connector) Stream(ctx context.Context, prompt string, maxTokens int, fn func(token string) error) error {
	req := generateRequest{
		Model:   c.config.Model,
		Prompt:  prompt,
		Stream:  true,
		Options: c.options(maxTokens),
	}

	body, err := c.streamer.DoStreamRequest(ctx, http.MethodPost, "/api/generate", req)
	if err != nil {
		return c.mapErr(ctx, err)
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk generateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("%w: decode stream line: %w", entity.ErrGenerationUnavailable, err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("%w: %s", entity.ErrGenerationUnavailable, chunk.Error)
		}

		if chunk.Response != "" {
			if err := fn(chunk.Response); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || ctx.Err() != nil {
			return c.mapErr(ctx, err)
		}
		return fmt.Errorf("%w: read stream: %w", entity.ErrGenerationUnavailable, err)
	}

	c.logger.Warn("generation stream ended without done marker")
	return nil
}

// Healthy reports whether the engine answers its model listing endpoint.
func (c *Connector) Healthy(ctx context.Context) bool {
	return c.connector.DoRequest(ctx, http.MethodGet, "/api/tags", nil, nil) == nil
}

func (c *Connector) mapErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", entity.ErrGenerationTimeout, err)
	}

	var netErr *pkghttp.NetworkError
	var httpErr *pkghttp.HTTPError
	if errors.As(err, &netErr) || (errors.As(err, &httpErr) && httpErr.StatusCode >= 500) {
		return fmt.Errorf("%w: %w", entity.ErrGenerationUnavailable, err)
	}
	return err
}

func retriable(err error) bool {
	var netErr *pkghttp.NetworkError
	var httpErr *pkghttp.HTTPError
	if errors.As(err, &netErr) {
		return true
	}
	return errors.As(err, &httpErr) && httpErr.StatusCode >= 500
}
