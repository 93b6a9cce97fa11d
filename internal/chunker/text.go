package chunker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/docbase/rag-backend/internal/entity"
)

var (
	headingRe    = regexp.MustCompile(`^(#{1,3})\s+(.+?)\s*$`)
	blankLineRe  = regexp.MustCompile(`\n\s*\n`)
	definitionRe = regexp.MustCompile(`([A-Z][^.\n]*?)\s+is\s+(?:a|an|the)\s+[^.\n]+\.`)
)

const maxDefinitionChunks = 10

func (c *Chunker) chunkProse(text, displayName string, markdown bool) []entity.ChunkDraft {
	drafts := []entity.ChunkDraft{summaryChunk(text, displayName)}

	if markdown {
		drafts = append(drafts, c.markdownSections(text)...)
	} else {
		drafts = append(drafts, c.plainSections(text)...)
	}

	drafts = append(drafts, definitionChunks(text)...)
	return drafts
}

func summaryChunk(text, displayName string) entity.ChunkDraft {
	var nonEmpty []string
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}

	previewLines := nonEmpty
	if len(previewLines) > 5 {
		previewLines = previewLines[:5]
	}
	preview := strings.Join(previewLines, " ")
	ellipsis := ""
	if len(preview) > 300 {
		preview = preview[:300]
		ellipsis = "..."
	}

	body := fmt.Sprintf("Document: %s\nSummary: This document contains %d words across %d lines.\nPreview: %s%s",
		displayName, len(strings.Fields(text)), len(nonEmpty), preview, ellipsis)

	return entity.ChunkDraft{
		ViewType: entity.ViewSummary,
		Text:     body,
		Path:     "",
	}
}

// markdownSections splits at heading boundaries (levels 1-3). A section's
// path is its heading breadcrumb so that repeated titles under different
// parents still yield distinct chunk ids.
func (c *Chunker) markdownSections(text string) []entity.ChunkDraft {
	type openHeading struct {
		level int
		title string
	}

	var (
		drafts  []entity.ChunkDraft
		stack   []openHeading
		content []string
	)

	flush := func() {
		body := strings.TrimSpace(strings.Join(content, "\n"))
		content = content[:0]
		if body == "" {
			return
		}

		var crumbs []string
		for _, h := range stack {
			crumbs = append(crumbs, h.title)
		}
		path := strings.Join(crumbs, " > ")
		if path == "" {
			path = "(intro)"
		}
		title := ""
		if len(stack) > 0 {
			title = stack[len(stack)-1].title
			body = "Section: " + title + "\n" + body
		}

		drafts = append(drafts, c.sectionDrafts(body, path, title)...)
	}

	for _, line := range strings.Split(text, "\n") {
		m := headingRe.FindStringSubmatch(line)
		if m == nil {
			content = append(content, line)
			continue
		}
		flush()

		level := len(m[1])
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, openHeading{level: level, title: m[2]})
	}
	flush()

	return drafts
}

// plainSections splits plain text at blank-line boundaries, packing adjacent
// paragraphs up to the target size. Text without blank lines falls back to a
// fixed sliding window.
func (c *Chunker) plainSections(text string) []entity.ChunkDraft {
	paragraphs := splitParagraphs(text)

	if len(paragraphs) <= 1 && estimateTokens(text) > c.cfg.TargetTokens {
		var drafts []entity.ChunkDraft
		for i, window := range c.windowWords(strings.Fields(text)) {
			drafts = append(drafts, entity.ChunkDraft{
				ViewType: entity.ViewSection,
				Text:     window,
				Path:     "part-" + strconv.Itoa(i+1),
			})
		}
		return drafts
	}

	var (
		drafts  []entity.ChunkDraft
		current []string
		size    int
		part    int
	)
	emit := func() {
		if len(current) == 0 {
			return
		}
		part++
		body := strings.Join(current, "\n\n")
		drafts = append(drafts, c.sectionDrafts(body, "part-"+strconv.Itoa(part), "")...)
		current = current[:0]
		size = 0
	}

	for _, p := range paragraphs {
		tokens := estimateTokens(p)
		if size > 0 && size+tokens > c.cfg.TargetTokens {
			emit()
		}
		current = append(current, p)
		size += tokens
	}
	emit()

	return drafts
}

// sectionDrafts wraps a section body into one or more drafts, windowing at
// sentence boundaries when the body exceeds the hard cap.
func (c *Chunker) sectionDrafts(body, path, parentRef string) []entity.ChunkDraft {
	if estimateTokens(body) <= c.cfg.HardCapTokens {
		return []entity.ChunkDraft{{
			ViewType:  entity.ViewSection,
			Text:      body,
			Path:      path,
			ParentRef: parentRef,
		}}
	}

	windows := c.windowSentences(body)
	drafts := make([]entity.ChunkDraft, 0, len(windows))
	for i, window := range windows {
		drafts = append(drafts, entity.ChunkDraft{
			ViewType:  entity.ViewSection,
			Text:      window,
			Path:      fmt.Sprintf("%s#%d", path, i+1),
			ParentRef: parentRef,
		})
	}
	return drafts
}

// definitionChunks pattern-matches "X is a/an Y" sentences and emits each as
// a question/answer pair. Duplicate subjects keep only the first match.
func definitionChunks(text string) []entity.ChunkDraft {
	var drafts []entity.ChunkDraft
	seen := make(map[string]bool)

	for _, m := range definitionRe.FindAllStringSubmatch(text, -1) {
		subject := strings.TrimSpace(m[1])
		sentence := strings.TrimSpace(m[0])
		if len(subject) <= 3 || len(sentence) <= 20 || seen[subject] {
			continue
		}
		seen[subject] = true

		drafts = append(drafts, entity.ChunkDraft{
			ViewType: entity.ViewDefinition,
			Text:     "What is " + subject + "?\nAnswer: " + sentence,
			Path:     "def:" + subject,
		})
		if len(drafts) == maxDefinitionChunks {
			break
		}
	}
	return drafts
}

func splitParagraphs(text string) []string {
	var out []string
	for _, block := range blankLineRe.Split(text, -1) {
		if s := strings.TrimSpace(block); s != "" {
			out = append(out, s)
		}
	}
	return out
}
