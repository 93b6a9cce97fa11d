package chunker

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/docbase/rag-backend/internal/entity"
	"go.uber.org/zap"
)

// jsonNode is one visited node of the parsed document, identified by its
// breadcrumb path from the root ("" for the root itself).
type jsonNode struct {
	path  string
	depth int
	value any
}

func (n jsonNode) isScalar() bool {
	switch n.value.(type) {
	case map[string]any, []any:
		return false
	default:
		return true
	}
}

func (c *Chunker) chunkJSON(text, displayName string) ([]entity.ChunkDraft, error) {
	var root any
	if err := json.Unmarshal([]byte(text), &root); err != nil {
		return nil, fmt.Errorf("parse json %q: %w", displayName, err)
	}

	nodes, truncated := c.walk(root)
	if truncated > 0 {
		c.logger.Warn("json nesting exceeds depth limit, deeper nodes skipped",
			zap.String("source", displayName),
			zap.Int("skipped_nodes", truncated),
			zap.Int("max_depth", c.cfg.MaxJSONDepth),
			zap.Error(entity.ErrDepthExceeded),
		)
	}

	drafts := []entity.ChunkDraft{
		c.overviewChunk(root, displayName),
		c.schemaChunk(nodes, displayName),
	}
	drafts = append(drafts, c.entityChunks(nodes, displayName)...)
	drafts = append(drafts, c.relationshipChunks(nodes)...)
	drafts = append(drafts, indexChunks(nodes)...)
	drafts = append(drafts, qaChunks(nodes)...)

	return drafts, nil
}

// walk traverses the document iteratively with an explicit stack so that
// adversarially nested input cannot exhaust the goroutine stack. Nodes
// deeper than the configured limit are skipped and counted.
func (c *Chunker) walk(root any) ([]jsonNode, int) {
	var (
		nodes     []jsonNode
		truncated int
	)

	stack := []jsonNode{{path: "", depth: 0, value: root}}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.depth > c.cfg.MaxJSONDepth {
			truncated++
			continue
		}
		nodes = append(nodes, node)

		switch v := node.value.(type) {
		case map[string]any:
			keys := sortedKeys(v)
			// Push in reverse so children pop in key order.
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, jsonNode{
					path:  childPath(node.path, keys[i]),
					depth: node.depth + 1,
					value: v[keys[i]],
				})
			}
		case []any:
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, jsonNode{
					path:  node.path + "[" + strconv.Itoa(i) + "]",
					depth: node.depth + 1,
					value: v[i],
				})
			}
		}
	}

	return nodes, truncated
}

func (c *Chunker) overviewChunk(root any, displayName string) entity.ChunkDraft {
	lines := []string{
		"Document: " + displayName,
		"Type: JSON Document",
	}

	switch v := root.(type) {
	case map[string]any:
		keys := sortedKeys(v)
		preview := keys
		if len(preview) > 10 {
			preview = preview[:10]
		}
		lines = append(lines,
			fmt.Sprintf("This document has %d top-level keys: %s", len(keys), strings.Join(preview, ", ")),
		)
		for _, key := range keys {
			if arr, ok := v[key].([]any); ok && len(arr) > 0 {
				kind := "values"
				if _, isObj := arr[0].(map[string]any); isObj {
					kind = "objects"
				}
				lines = append(lines, fmt.Sprintf("  - %s: array of %d %s", key, len(arr), kind))
			}
		}
	case []any:
		lines = append(lines, fmt.Sprintf("Root: array with %d items", len(v)))
		if len(v) > 0 {
			if obj, ok := v[0].(map[string]any); ok {
				lines = append(lines, "Item fields: "+strings.Join(sortedKeys(obj), ", "))
			}
		}
	default:
		lines = append(lines, "Root: single value "+formatScalar(root))
	}

	return entity.ChunkDraft{
		ViewType: entity.ViewOverview,
		Text:     strings.Join(lines, "\n"),
		Path:     "",
	}
}

func (c *Chunker) schemaChunk(nodes []jsonNode, displayName string) entity.ChunkDraft {
	lines := []string{"Schema for " + displayName + ":"}
	for _, node := range nodes {
		if node.path == "" || isArrayElement(node.path) {
			continue
		}
		lines = append(lines, node.path+": "+typeLabel(node.value))
	}

	return entity.ChunkDraft{
		ViewType: entity.ViewSchema,
		Text:     strings.Join(lines, "\n"),
		Path:     "",
	}
}

// typeLabel infers a type name for a value, descending one level into
// arrays to name the element type.
func typeLabel(value any) string {
	switch v := value.(type) {
	case map[string]any:
		return "object"
	case []any:
		if len(v) == 0 {
			return "array"
		}
		first := typeLabel(v[0])
		for _, item := range v[1:] {
			if typeLabel(item) != first {
				return "array<mixed>"
			}
		}
		return "array<" + first + ">"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return "unknown"
	}
}

// entityChunks emits one chunk per non-root object node with enough
// properties to be worth addressing on its own.
func (c *Chunker) entityChunks(nodes []jsonNode, displayName string) []entity.ChunkDraft {
	var drafts []entity.ChunkDraft
	for _, node := range nodes {
		obj, ok := node.value.(map[string]any)
		if !ok || node.path == "" || len(obj) < c.cfg.EntityMinProps {
			continue
		}

		lines := []string{
			"[" + displayName + "]",
			"Path: " + node.path,
			"Properties:",
		}
		for _, key := range sortedKeys(obj) {
			switch v := obj[key].(type) {
			case map[string]any:
				lines = append(lines, "  "+key+": [object]")
			case []any:
				lines = append(lines, fmt.Sprintf("  %s: [%d items]", key, len(v)))
			default:
				lines = append(lines, "  "+key+": "+formatScalar(v))
			}
		}

		drafts = append(drafts, entity.ChunkDraft{
			ViewType: entity.ViewEntity,
			Text:     strings.Join(lines, "\n"),
			Path:     node.path,
		})
	}
	return drafts
}

// relationshipChunks emits one chunk per parent node naming its direct
// children. Containment edges only, nothing transitive.
func (c *Chunker) relationshipChunks(nodes []jsonNode) []entity.ChunkDraft {
	var drafts []entity.ChunkDraft
	for _, node := range nodes {
		label := node.path
		if label == "" {
			label = "(root)"
		}

		var children []string
		switch v := node.value.(type) {
		case map[string]any:
			children = sortedKeys(v)
		case []any:
			for i := range v {
				children = append(children, "["+strconv.Itoa(i)+"]")
			}
		}
		if len(children) == 0 {
			continue
		}

		drafts = append(drafts, entity.ChunkDraft{
			ViewType:  entity.ViewRelationship,
			Text:      label + " contains: " + strings.Join(children, ", "),
			Path:      node.path,
			ParentRef: parentPath(node.path),
		})
	}
	return drafts
}

// indexChunks emits one `path = value` chunk per scalar leaf, including
// scalar array elements addressed by position.
func indexChunks(nodes []jsonNode) []entity.ChunkDraft {
	var drafts []entity.ChunkDraft
	for _, node := range nodes {
		if node.path == "" || !node.isScalar() {
			continue
		}
		drafts = append(drafts, entity.ChunkDraft{
			ViewType:  entity.ViewIndex,
			Text:      node.path + " = " + formatScalar(node.value),
			Path:      node.path,
			ParentRef: parentPath(node.path),
		})
	}
	return drafts
}

// qaChunks emits question/answer pairs: one per scalar leaf, plus one per
// array of objects enumerating a representative field across the elements.
func qaChunks(nodes []jsonNode) []entity.ChunkDraft {
	var drafts []entity.ChunkDraft
	for _, node := range nodes {
		if node.path == "" {
			continue
		}

		if node.isScalar() {
			drafts = append(drafts, entity.ChunkDraft{
				ViewType:  entity.ViewQA,
				Text:      "What is " + node.path + "?\nAnswer: " + node.path + " is " + formatScalar(node.value) + ".",
				Path:      node.path,
				ParentRef: parentPath(node.path),
			})
			continue
		}

		arr, ok := node.value.([]any)
		if !ok || len(arr) == 0 {
			continue
		}
		field, values := representativeField(arr)
		if field == "" {
			continue
		}
		drafts = append(drafts, entity.ChunkDraft{
			ViewType: entity.ViewQA,
			Text: fmt.Sprintf("What are the entries of %s?\nAnswer: %s contains %d items. %s values: %s.",
				node.path, node.path, len(arr), field, strings.Join(values, ", ")),
			Path:      node.path,
			ParentRef: parentPath(node.path),
		})
	}
	return drafts
}

// representativeField picks a human-readable field present across an array
// of objects and collects its values.
func representativeField(arr []any) (string, []string) {
	for _, candidate := range []string{"name", "id", "title", "key", "label"} {
		var values []string
		for _, item := range arr {
			obj, ok := item.(map[string]any)
			if !ok {
				return "", nil
			}
			v, ok := obj[candidate]
			if !ok {
				values = nil
				break
			}
			values = append(values, formatScalar(v))
		}
		if len(values) == len(arr) {
			return candidate, values
		}
	}
	return "", nil
}

func formatScalar(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func childPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func parentPath(path string) string {
	if i := strings.LastIndexAny(path, ".["); i > 0 {
		return path[:i]
	}
	return ""
}

// isArrayElement reports whether the path addresses an array position or
// anything beneath one. The schema names arrays as array<T> instead of
// enumerating their elements.
func isArrayElement(path string) bool {
	return strings.Contains(path, "[")
}
