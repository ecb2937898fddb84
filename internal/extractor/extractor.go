package extractor

import (
	"context"

	"depositrates/internal/fetcher"
)

// Extractor determines the headline rate published at a URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (float64, error)
}

// Func adapts a plain function to the Extractor interface.
type Func func(ctx context.Context, url string) (float64, error)

// Extract implements Extractor
func (f Func) Extract(ctx context.Context, url string) (float64, error) {
	return f(ctx, url)
}

// Generic reports the first percentage in the visible text of a page. It is
// used for every provider without a dedicated extractor.
type Generic struct {
	getter fetcher.Getter
}

// NewGeneric creates the fallback extractor.
func NewGeneric(getter fetcher.Getter) *Generic {
	return &Generic{getter: getter}
}

// Extract implements Extractor
func (g *Generic) Extract(ctx context.Context, url string) (float64, error) {
	body, err := g.getter.Get(ctx, url)
	if err != nil {
		return 0, err
	}

	doc, err := parseDocument(body)
	if err != nil {
		return 0, err
	}
	return FirstPercent(visibleText(doc.Selection))
}
