package classifier

import (
	"testing"

	"github.com/docbase/rag-backend/internal/entity"
	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		TrivialTopK: 0, TrivialMaxTokens: 48,
		SimpleTopK: 2, SimpleMaxTokens: 96,
		MediumTopK: 3, MediumMaxTokens: 160,
		ComplexTopK: 5, ComplexMaxTokens: 256,
	}
}

func TestClassify(t *testing.T) {
	c := New(testConfig())

	tests := []struct {
		query string
		want  Tier
	}{
		{"hello", TierTrivial},
		{"Thanks", TierTrivial},
		{"ping", TierTrivial}, // single short word
		{"what is redis", TierSimple},
		{"define chunking", TierSimple},
		{"port number?", TierSimple}, // short without marker
		{"how does the indexing pipeline decide chunk sizes", TierMedium},
		{"list all configuration options", TierComplex},
		{"explain the differences between the retrieval modes", TierComplex},
		{"compare storage and caching and generation behavior", TierComplex}, // two conjunctions
		{
			"why does the service sometimes return results from deleted sources when multiple uploads happen at exactly the same time",
			TierComplex, // over 100 chars
		},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.query))
		})
	}
}

func TestBudgetsGrowWithTier(t *testing.T) {
	c := New(testConfig())

	tiers := []Tier{TierTrivial, TierSimple, TierMedium, TierComplex}
	for i := 1; i < len(tiers); i++ {
		prev, curr := c.Budget(tiers[i-1]), c.Budget(tiers[i])
		assert.GreaterOrEqual(t, curr.TopK, prev.TopK)
		assert.GreaterOrEqual(t, curr.MaxTokens, prev.MaxTokens)
	}
}

func TestApplyFillsOnlyMissingBudgets(t *testing.T) {
	c := New(testConfig())

	q := &entity.Query{Text: "list all configuration options"}
	tier := c.Apply(q)
	assert.Equal(t, TierComplex, tier)
	assert.Equal(t, 5, q.TopK)
	assert.Equal(t, 256, q.MaxTokens)

	// explicit caller values win over the classifier
	q = &entity.Query{Text: "list all configuration options", TopK: 1, MaxTokens: 32}
	c.Apply(q)
	assert.Equal(t, 1, q.TopK)
	assert.Equal(t, 32, q.MaxTokens)
}

func TestTrivialTierSkipsRetrieval(t *testing.T) {
	c := New(testConfig())

	q := &entity.Query{Text: "hello"}
	tier := c.Apply(q)
	assert.Equal(t, TierTrivial, tier)
	assert.Zero(t, q.TopK)
	assert.Equal(t, 48, q.MaxTokens)
}
