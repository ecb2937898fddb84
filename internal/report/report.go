// Package report renders a dataset as the comparison table and top-rates
// chart shown on the command line.
package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"depositrates/internal/dataset"
)

const (
	// DefaultTop is the number of products in the rates chart
	DefaultTop = 10

	barWidth = 40
	caveat   = "Rates scraped from provider public pages. Verify details before committing funds."
)

// Options narrows and sizes the report. Empty filters accept everything.
type Options struct {
	Filter dataset.Filter
	Top    int
}

// Badge describes where the data came from.
func Badge(wasCached bool) string {
	if wasCached {
		return "Up-to-date ✔"
	}
	return "Live data ✔"
}

// Render writes the freshness badge, the filtered table sorted by market and
// rate, the top rates chart and the caveat line.
func Render(w io.Writer, ds dataset.Dataset, wasCached bool, opts Options) error {
	if opts.Top <= 0 {
		opts.Top = DefaultTop
	}
	view := ds.Filter(opts.Filter).SortByMarketThenRate()

	fmt.Fprintln(w, text.Bold.Sprint(Badge(wasCached)))
	if ts, ok := ds.LastScraped(); ok {
		fmt.Fprintf(w, "Last scraped %s\n", ts.Format(dataset.TimestampLayout))
	}
	fmt.Fprintln(w)

	renderTable(w, view)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Top %d headline rates\n", opts.Top)
	renderChart(w, view.TopN(opts.Top))
	fmt.Fprintln(w)

	_, err := fmt.Fprintln(w, caveat)
	return err
}

// CheckFilter rejects filter values that match nothing in ds and names the
// values that are available instead.
func CheckFilter(ds dataset.Dataset, f dataset.Filter) error {
	var unknown []string
	unknown = append(unknown, unknownValues("market", f.Markets, ds.Markets())...)
	unknown = append(unknown, unknownValues("provider type", f.ProviderTypes, ds.ProviderTypes())...)
	unknown = append(unknown, unknownValues("access type", f.AccessTypes, ds.AccessTypes())...)

	if len(unknown) > 0 {
		return fmt.Errorf("invalid filter: %s", strings.Join(unknown, "; "))
	}
	return nil
}

func unknownValues(kind string, requested, available []string) []string {
	var unknown []string
	for _, v := range requested {
		if !slices.Contains(available, v) {
			unknown = append(unknown, fmt.Sprintf("unknown %s %q (available: %s)", kind, v, strings.Join(available, ", ")))
		}
	}
	return unknown
}

func renderTable(w io.Writer, view dataset.Dataset) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{
		"Provider", "Product", "Market", "Provider type", "Access",
		"Rate %", "Tenure", "Early withdrawal", "URL", "Last scraped",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Rate %", Align: text.AlignRight},
		{Name: "URL", WidthMax: 60},
	})

	for _, r := range view {
		t.AppendRow(table.Row{
			r.Provider,
			r.ProductName,
			r.Market,
			r.ProviderType,
			r.AccessType,
			FormatRate(r.InterestRatePct),
			r.Tenure,
			r.EarlyWithdrawalPenalty,
			r.URL,
			r.LastScraped.Format(dataset.TimestampLayout),
		})
	}
	t.AppendFooter(table.Row{"Products", len(view), "", "", "", "missing " + strconv.Itoa(view.Missing())})
	t.Render()
}

// renderChart draws one bar per record, scaled to the highest rate.
func renderChart(w io.Writer, top dataset.Dataset) {
	if len(top) == 0 {
		fmt.Fprintln(w, "  no rates available")
		return
	}

	highest := *top[0].InterestRatePct
	width := 0
	for _, r := range top {
		width = max(width, len(r.Provider))
	}

	for _, r := range top {
		n := 0
		if highest > 0 {
			n = int(*r.InterestRatePct / highest * barWidth)
		}
		fmt.Fprintf(w, "  %-*s %s %s\n", width, r.Provider, strings.Repeat("█", n), FormatRate(r.InterestRatePct))
	}
}

// FormatRate renders a rate for display; absent rates are blank.
func FormatRate(rate *float64) string {
	if rate == nil {
		return ""
	}
	return strconv.FormatFloat(*rate, 'f', -1, 64)
}
