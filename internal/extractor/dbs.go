package extractor

import (
	"context"

	"depositrates/internal/fetcher"
)

// DBSProvider is the catalogue provider name served by DBS.
const DBSProvider = "DBS"

// DBS reads the fixed-deposit rate table on the DBS Singapore rates page.
// Banner copy above the table often quotes promotional figures, so only
// text inside <table> elements is considered unless the page has none.
type DBS struct {
	getter fetcher.Getter
}

// NewDBS creates the DBS extractor.
func NewDBS(getter fetcher.Getter) *DBS {
	return &DBS{getter: getter}
}

// Extract implements Extractor
func (d *DBS) Extract(ctx context.Context, url string) (float64, error) {
	body, err := d.getter.Get(ctx, url)
	if err != nil {
		return 0, err
	}

	doc, err := parseDocument(body)
	if err != nil {
		return 0, err
	}

	if tables := doc.Find("table"); tables.Length() > 0 {
		if rate, err := FirstPercent(visibleText(tables)); err == nil {
			return rate, nil
		}
	}
	return FirstPercent(visibleText(doc.Selection))
}
