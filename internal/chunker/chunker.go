package chunker

import (
	"fmt"

	"github.com/docbase/rag-backend/internal/entity"
	"go.uber.org/zap"
)

// Config controls chunk sizing and view emission thresholds. Token counts
// are estimates (roughly four characters per token).
type Config struct {
	TargetTokens   int `env:"TARGET_TOKENS" envDefault:"500"`
	OverlapTokens  int `env:"OVERLAP_TOKENS" envDefault:"50"`
	HardCapTokens  int `env:"HARD_CAP_TOKENS" envDefault:"1000"`
	EntityMinProps int `env:"ENTITY_MIN_PROPS" envDefault:"2"`
	MaxJSONDepth   int `env:"MAX_JSON_DEPTH" envDefault:"32"`
}

// Chunker converts normalized document text into multiple chunk views, each
// optimized for a different query phrasing.
type Chunker struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Chunker {
	if cfg.TargetTokens <= 0 {
		cfg.TargetTokens = 500
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = 0
	}
	if cfg.HardCapTokens < cfg.TargetTokens {
		cfg.HardCapTokens = cfg.TargetTokens * 2
	}
	if cfg.EntityMinProps <= 0 {
		cfg.EntityMinProps = 2
	}
	if cfg.MaxJSONDepth <= 0 {
		cfg.MaxJSONDepth = 32
	}
	return &Chunker{cfg: cfg, logger: logger}
}

// Chunk produces the full set of chunk drafts for one normalized document.
// JSON sources get six structural views, text and markdown sources get
// summary, section and definition views.
func (c *Chunker) Chunk(format entity.Format, text, displayName string) ([]entity.ChunkDraft, error) {
	var (
		drafts []entity.ChunkDraft
		err    error
	)

	switch format {
	case entity.FormatJSON:
		drafts, err = c.chunkJSON(text, displayName)
	case entity.FormatMarkdown:
		drafts = c.chunkProse(text, displayName, true)
	case entity.FormatText:
		drafts = c.chunkProse(text, displayName, false)
	default:
		return nil, fmt.Errorf("chunk %q: %w", displayName, entity.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}

	return c.enforceHardCap(drafts, displayName), nil
}

// enforceHardCap drops any draft still exceeding the hard token cap. Section
// chunks are windowed before they get here, so an oversized chunk indicates
// a splitting bug rather than a bad document.
func (c *Chunker) enforceHardCap(drafts []entity.ChunkDraft, displayName string) []entity.ChunkDraft {
	kept := drafts[:0]
	for _, d := range drafts {
		if estimateTokens(d.Text) > c.cfg.HardCapTokens {
			c.logger.Error("dropping oversized chunk",
				zap.String("source", displayName),
				zap.String("view", string(d.ViewType)),
				zap.String("path", d.Path),
				zap.Int("tokens", estimateTokens(d.Text)),
				zap.Error(entity.ErrChunkOverflow),
			)
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// estimateTokens approximates the token count of a text as one token per
// four characters, the usual rule of thumb for latin-script models.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
