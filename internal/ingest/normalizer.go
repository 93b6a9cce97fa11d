package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/docbase/rag-backend/internal/entity"
)

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)

// Normalizer detects the format of raw uploaded bytes and decodes them into
// text ready for chunking.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize detects the document format from the filename extension, falling
// back to content sniffing, and decodes the bytes best-effort. It returns
// entity.ErrUnsupportedFormat for binary content and entity.ErrEmptyDocument
// when the decoded text is blank.
func (n *Normalizer) Normalize(raw []byte, filename string) (entity.Format, string, error) {
	text, err := decodeText(raw)
	if err != nil {
		return "", "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", "", fmt.Errorf("%q: %w", filename, entity.ErrEmptyDocument)
	}

	format, ok := formatFromExtension(filename)
	if !ok {
		format, ok = sniffFormat(text)
	}
	if !ok {
		return "", "", fmt.Errorf("%q: %w", filename, entity.ErrUnsupportedFormat)
	}

	// A .json file that does not parse is still indexable as plain text.
	if format == entity.FormatJSON && !json.Valid([]byte(text)) {
		format = entity.FormatText
	}

	return format, text, nil
}

func formatFromExtension(filename string) (entity.Format, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return entity.FormatJSON, true
	case ".md", ".markdown":
		return entity.FormatMarkdown, true
	case ".txt", ".text", ".log":
		return entity.FormatText, true
	default:
		return "", false
	}
}

func sniffFormat(text string) (entity.Format, bool) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if json.Valid([]byte(trimmed)) {
			return entity.FormatJSON, true
		}
	}
	if headingPattern.MatchString(text) {
		return entity.FormatMarkdown, true
	}
	if looksBinary(text) {
		return "", false
	}
	return entity.FormatText, true
}

// decodeText decodes raw bytes to a UTF-8 string, stripping byte order marks
// and dropping invalid sequences rather than failing the upload.
func decodeText(raw []byte) (string, error) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		raw = raw[3:]
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		return decodeUTF16(raw[2:], false), nil
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		return decodeUTF16(raw[2:], true), nil
	}

	if utf8.Valid(raw) {
		return string(raw), nil
	}

	// Best-effort: keep valid runes, drop the rest.
	var b strings.Builder
	b.Grow(len(raw))
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		if r != utf8.RuneError || size > 1 {
			b.WriteRune(r)
		}
		raw = raw[size:]
	}
	return b.String(), nil
}

func decodeUTF16(raw []byte, bigEndian bool) string {
	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		if bigEndian {
			units = append(units, uint16(raw[i])<<8|uint16(raw[i+1]))
		} else {
			units = append(units, uint16(raw[i+1])<<8|uint16(raw[i]))
		}
	}
	return string(utf16.Decode(units))
}

// looksBinary flags content with control characters that no plain text
// document should contain.
func looksBinary(text string) bool {
	for _, r := range text {
		if r < 0x09 {
			return true
		}
	}
	return false
}
