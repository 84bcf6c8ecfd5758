// Package ocr extracts text from business-card photos via the Mistral OCR API.
package ocr

import (
	"context"
	"strings"
)

// Extractor extracts plain text from a card image.
type Extractor interface {
	ExtractCardText(ctx context.Context, image []byte) (string, error)
}

// Page is one page of an OCR result with its markdown text block.
type Page struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// FlattenPages concatenates per-page markdown into plain text, dropping lines
// that are image references rather than recognized text.
func FlattenPages(pages []Page) string {
	var out []string
	for _, page := range pages {
		if page.Markdown == "" {
			continue
		}
		var kept []string
		for _, line := range strings.Split(page.Markdown, "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "![") {
				continue
			}
			kept = append(kept, line)
		}
		if len(kept) > 0 {
			out = append(out, strings.Join(kept, "\n"))
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
