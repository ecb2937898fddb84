package extractor

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"depositrates/internal/fetcher"
)

// ErrNoRate is returned when a page holds no percentage figure.
var ErrNoRate = errors.New("no percentage found in page text")

// hiddenSelectors lists elements whose text is never rendered.
const hiddenSelectors = "script, style, noscript, template"

// percentPattern matches "3.25%", "3 %" and "3.25 %".
var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)[\s\p{Zs}]*%`)

// FirstPercent returns the first percentage figure in text.
func FirstPercent(text string) (float64, error) {
	m := percentPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, fetcher.NewValidationError("rate not found", ErrNoRate)
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fetcher.NewValidationError("rate "+m[1]+" is not a number", err)
	}
	return v, nil
}

// parseDocument parses body and strips elements that carry no visible text.
func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fetcher.NewParseError(err)
	}
	doc.Find(hiddenSelectors).Remove()
	return doc, nil
}

// visibleText joins the trimmed text nodes below the selection with single
// spaces.
func visibleText(sel *goquery.Selection) string {
	return nodesText(sel.Nodes)
}

func nodesText(nodes []*html.Node) string {
	var parts []string
	for _, n := range nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	if n == nil {
		return
	}
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
