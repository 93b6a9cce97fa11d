package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/docbase/rag-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkMarkdownSections(t *testing.T) {
	c := newTestChunker(t, Config{})

	doc := strings.Join([]string{
		"intro paragraph before any heading",
		"",
		"# Setup",
		"install the thing",
		"",
		"## Requirements",
		"a recent compiler",
		"",
		"# Usage",
		"run the thing",
	}, "\n")

	drafts, err := c.Chunk(entity.FormatMarkdown, doc, "guide.md")
	require.NoError(t, err)

	views := viewsOf(drafts)
	require.Len(t, views[entity.ViewSummary], 1)

	byPath := map[string]entity.ChunkDraft{}
	for _, d := range views[entity.ViewSection] {
		byPath[d.Path] = d
	}

	require.Contains(t, byPath, "(intro)")
	assert.Contains(t, byPath["(intro)"].Text, "intro paragraph")
	assert.Empty(t, byPath["(intro)"].ParentRef)

	require.Contains(t, byPath, "Setup")
	assert.True(t, strings.HasPrefix(byPath["Setup"].Text, "Section: Setup\n"))
	assert.Equal(t, "Setup", byPath["Setup"].ParentRef)

	// nested heading carries the breadcrumb path
	require.Contains(t, byPath, "Setup > Requirements")
	assert.Contains(t, byPath["Setup > Requirements"].Text, "a recent compiler")
	assert.Equal(t, "Requirements", byPath["Setup > Requirements"].ParentRef)

	// sibling top-level heading resets the breadcrumb
	require.Contains(t, byPath, "Usage")
}

func TestChunkMarkdownRepeatedTitlesGetDistinctPaths(t *testing.T) {
	c := newTestChunker(t, Config{})

	doc := "# A\n## Details\nfirst\n# B\n## Details\nsecond\n"
	drafts, err := c.Chunk(entity.FormatMarkdown, doc, "dup.md")
	require.NoError(t, err)

	paths := map[string]bool{}
	for _, d := range viewsOf(drafts)[entity.ViewSection] {
		paths[d.Path] = true
	}
	assert.True(t, paths["A > Details"])
	assert.True(t, paths["B > Details"])
}

func TestChunkPlainTextPacksParagraphs(t *testing.T) {
	c := newTestChunker(t, Config{TargetTokens: 30})

	para := strings.Repeat("word ", 20) // ~25 tokens
	doc := para + "\n\n" + para + "\n\n" + para

	drafts, err := c.Chunk(entity.FormatText, doc, "notes.txt")
	require.NoError(t, err)

	sections := viewsOf(drafts)[entity.ViewSection]
	require.Len(t, sections, 3)
	assert.Equal(t, "part-1", sections[0].Path)
	assert.Equal(t, "part-2", sections[1].Path)
	assert.Equal(t, "part-3", sections[2].Path)
}

func TestChunkPlainTextWithoutBlankLinesUsesSlidingWindow(t *testing.T) {
	c := newTestChunker(t, Config{TargetTokens: 20, OverlapTokens: 5})

	doc := strings.TrimSpace(strings.Repeat("alpha beta gamma delta ", 40))
	drafts, err := c.Chunk(entity.FormatText, doc, "wall.txt")
	require.NoError(t, err)

	sections := viewsOf(drafts)[entity.ViewSection]
	require.Greater(t, len(sections), 1)
	for i, d := range sections {
		assert.Equal(t, fmt.Sprintf("part-%d", i+1), d.Path)
		assert.LessOrEqual(t, estimateTokens(d.Text), c.cfg.HardCapTokens)
	}
}

func TestChunkOversizedSectionIsWindowedAtSentences(t *testing.T) {
	c := newTestChunker(t, Config{TargetTokens: 20, OverlapTokens: 4, HardCapTokens: 25})

	var b strings.Builder
	b.WriteString("# Big\n")
	for i := 0; i < 40; i++ {
		b.WriteString("This sentence pads the section body out considerably. ")
	}

	drafts, err := c.Chunk(entity.FormatMarkdown, b.String(), "big.md")
	require.NoError(t, err)

	sections := viewsOf(drafts)[entity.ViewSection]
	require.Greater(t, len(sections), 1)
	for _, d := range sections {
		assert.True(t, strings.HasPrefix(d.Path, "Big#"), "path %q", d.Path)
		assert.LessOrEqual(t, estimateTokens(d.Text), 25)
	}
}

func TestSummaryChunkPreviewIsBounded(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	draft := summaryChunk(long, "long.txt")

	assert.Equal(t, entity.ViewSummary, draft.ViewType)
	assert.Contains(t, draft.Text, "...")
	assert.Contains(t, draft.Text, "Document: long.txt")
}

func TestDefinitionChunks(t *testing.T) {
	text := "A Widget is a reusable interface component for dashboards. " +
		"The Registry is the catalog of all installed widgets. " +
		"A Widget is a thing mentioned twice. " +
		"It is a pronoun and too short."

	drafts := definitionChunks(text)

	subjects := map[string]bool{}
	for _, d := range drafts {
		assert.Equal(t, entity.ViewDefinition, d.ViewType)
		assert.True(t, strings.HasPrefix(d.Path, "def:"))
		subjects[strings.TrimPrefix(d.Path, "def:")] = true
	}

	assert.True(t, subjects["A Widget"])
	assert.True(t, subjects["The Registry"])
	// duplicate subject kept only once
	assert.Len(t, drafts, 2)
}

func TestPackOverlapCarriesTrailingUnits(t *testing.T) {
	c := newTestChunker(t, Config{TargetTokens: 10, OverlapTokens: 3})

	units := []string{"one", "two", "three", "four", "five", "six", "seven", "eight"}
	windows := c.pack(units, " ")

	require.Greater(t, len(windows), 1)
	for i := 1; i < len(windows); i++ {
		prevLast := strings.Fields(windows[i-1])
		currFirst := strings.Fields(windows[i])[0]
		assert.Contains(t, prevLast, currFirst, "window %d does not overlap its predecessor", i)
	}
}
