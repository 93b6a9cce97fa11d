package classifier

import (
	"strings"

	"github.com/docbase/rag-backend/internal/entity"
)

// Tier is the inferred complexity of a raw query.
type Tier string

const (
	TierTrivial Tier = "trivial"
	TierSimple  Tier = "simple"
	TierMedium  Tier = "medium"
	TierComplex Tier = "complex"
)

// Budget is the retrieval breadth and response length assigned to a tier.
type Budget struct {
	TopK      int
	MaxTokens int
}

// Config holds the per-tier budgets. Values must be monotonically
// non-decreasing from trivial to complex.
type Config struct {
	TrivialTopK      int `env:"TRIVIAL_TOP_K" envDefault:"0"`
	TrivialMaxTokens int `env:"TRIVIAL_MAX_TOKENS" envDefault:"48"`
	SimpleTopK       int `env:"SIMPLE_TOP_K" envDefault:"2"`
	SimpleMaxTokens  int `env:"SIMPLE_MAX_TOKENS" envDefault:"96"`
	MediumTopK       int `env:"MEDIUM_TOP_K" envDefault:"3"`
	MediumMaxTokens  int `env:"MEDIUM_MAX_TOKENS" envDefault:"160"`
	ComplexTopK      int `env:"COMPLEX_TOP_K" envDefault:"5"`
	ComplexMaxTokens int `env:"COMPLEX_MAX_TOKENS" envDefault:"256"`
}

// Classifier infers retrieval and generation budgets from the query text
// when the caller does not supply them explicitly.
type Classifier struct {
	cfg Config
}

func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

var trivialQueries = map[string]bool{
	"hello": true, "hi": true, "hey": true, "thanks": true, "thank you": true,
	"bye": true, "goodbye": true, "ok": true, "okay": true, "yes": true,
	"no": true, "help": true, "test": true,
}

var comprehensiveMarkers = []string{
	"list", "all", "every", "explain", "describe", "compare",
	"difference", "how many", "what are", "summarize", "overview",
}

var simpleMarkers = []string{
	"what is", "define", "who is", "when", "where", "yes or no", "true or false",
}

// Classify is a pure function over the query text using length,
// interrogative structure and conjunction count.
func (c *Classifier) Classify(text string) Tier {
	query := strings.ToLower(strings.TrimSpace(text))
	words := len(strings.Fields(query))
	chars := len(query)

	if trivialQueries[query] || (words == 1 && chars < 10) {
		return TierTrivial
	}

	conjunctions := strings.Count(query, " and ") + strings.Count(query, " or ") + strings.Count(query, " but ")

	comprehensive := false
	for _, marker := range comprehensiveMarkers {
		if strings.Contains(query, marker) {
			comprehensive = true
			break
		}
	}
	simple := false
	for _, marker := range simpleMarkers {
		if strings.Contains(query, marker) {
			simple = true
			break
		}
	}

	switch {
	case simple && words < 8 && conjunctions == 0:
		return TierSimple
	case chars < 30 && words < 5:
		return TierSimple
	case comprehensive || chars > 100 || words > 15 || conjunctions >= 2:
		return TierComplex
	default:
		return TierMedium
	}
}

// Budget returns the (top_k, max_tokens) pair for a tier.
func (c *Classifier) Budget(tier Tier) Budget {
	switch tier {
	case TierTrivial:
		return Budget{TopK: c.cfg.TrivialTopK, MaxTokens: c.cfg.TrivialMaxTokens}
	case TierSimple:
		return Budget{TopK: c.cfg.SimpleTopK, MaxTokens: c.cfg.SimpleMaxTokens}
	case TierComplex:
		return Budget{TopK: c.cfg.ComplexTopK, MaxTokens: c.cfg.ComplexMaxTokens}
	default:
		return Budget{TopK: c.cfg.MediumTopK, MaxTokens: c.cfg.MediumMaxTokens}
	}
}

// Apply fills in TopK and MaxTokens on a query from the classified tier.
// Explicit caller values always win over inferred ones.
func (c *Classifier) Apply(q *entity.Query) Tier {
	tier := c.Classify(q.Text)
	budget := c.Budget(tier)
	if q.TopK <= 0 {
		q.TopK = budget.TopK
	}
	if q.MaxTokens <= 0 {
		q.MaxTokens = budget.MaxTokens
	}
	return tier
}
