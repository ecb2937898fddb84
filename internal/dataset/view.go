package dataset

import (
	"slices"
	"sort"
)

// Filter selects records by market, provider type and access type. An empty
// list accepts every value for that column.
type Filter struct {
	Markets       []string
	ProviderTypes []string
	AccessTypes   []string
}

func (f Filter) match(r Record) bool {
	return accepts(f.Markets, r.Market) &&
		accepts(f.ProviderTypes, r.ProviderType) &&
		accepts(f.AccessTypes, r.AccessType)
}

func accepts(allowed []string, v string) bool {
	return len(allowed) == 0 || slices.Contains(allowed, v)
}

// Filter returns the records matching f, preserving order.
func (d Dataset) Filter(f Filter) Dataset {
	out := make(Dataset, 0, len(d))
	for _, r := range d {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// SortByMarketThenRate returns a copy ordered by market ascending and rate
// descending. Records without a rate sort last within their market.
func (d Dataset) SortByMarketThenRate() Dataset {
	out := slices.Clone(d)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Market != out[j].Market {
			return out[i].Market < out[j].Market
		}
		return rateLess(out[j].InterestRatePct, out[i].InterestRatePct)
	})
	return out
}

// TopN returns the n highest-rated records. Records without a rate are excluded.
func (d Dataset) TopN(n int) Dataset {
	rated := make(Dataset, 0, len(d))
	for _, r := range d {
		if r.InterestRatePct != nil {
			rated = append(rated, r)
		}
	}
	sort.SliceStable(rated, func(i, j int) bool {
		return *rated[i].InterestRatePct > *rated[j].InterestRatePct
	})
	if n >= 0 && len(rated) > n {
		rated = rated[:n]
	}
	return rated
}

// rateLess orders absent rates below every present rate.
func rateLess(a, b *float64) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return *a < *b
	}
}

// Markets lists the distinct markets, sorted.
func (d Dataset) Markets() []string {
	return d.distinct(func(r Record) string { return r.Market })
}

// ProviderTypes lists the distinct provider types, sorted.
func (d Dataset) ProviderTypes() []string {
	return d.distinct(func(r Record) string { return r.ProviderType })
}

// AccessTypes lists the distinct access types, sorted.
func (d Dataset) AccessTypes() []string {
	return d.distinct(func(r Record) string { return r.AccessType })
}

func (d Dataset) distinct(field func(Record) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range d {
		v := field(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
