package extractor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"depositrates/internal/fetcher"
)

// OCBCProvider is the catalogue provider name served by OCBC.
const OCBCProvider = "OCBC"

const (
	ocbcHiddenXPath = "//script | //style | //noscript | //template"
	ocbcCellXPath   = "//table//th | //table//td"
)

// OCBC reads the SGD fixed-deposit board rate table. The page is queried
// with XPath so that only table cells are scanned; the whole page is the
// fallback when the table is missing.
type OCBC struct {
	getter fetcher.Getter
}

// NewOCBC creates the OCBC extractor.
func NewOCBC(getter fetcher.Getter) *OCBC {
	return &OCBC{getter: getter}
}

// Extract implements Extractor
func (o *OCBC) Extract(ctx context.Context, url string) (float64, error) {
	body, err := o.getter.Get(ctx, url)
	if err != nil {
		return 0, err
	}

	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return 0, fetcher.NewParseError(err)
	}

	hidden, err := htmlquery.QueryAll(doc, ocbcHiddenXPath)
	if err != nil {
		return 0, fetcher.NewParseError(fmt.Errorf("failed to xpath hidden nodes: %w", err))
	}
	for _, n := range hidden {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}

	cells, err := htmlquery.QueryAll(doc, ocbcCellXPath)
	if err != nil {
		return 0, fetcher.NewParseError(fmt.Errorf("failed to xpath rate table: %w", err))
	}
	if len(cells) > 0 {
		if rate, err := FirstPercent(nodesText(cells)); err == nil {
			return rate, nil
		}
	}
	return FirstPercent(nodesText([]*html.Node{doc}))
}
