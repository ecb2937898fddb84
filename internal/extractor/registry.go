package extractor

import (
	"context"
	"sync"

	"depositrates/internal/fetcher"
)

// Registry maps provider names to extractors. Providers without a dedicated
// entry use the fallback.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
	fallback   Extractor
}

// NewRegistry creates an empty registry around fallback.
func NewRegistry(fallback Extractor) *Registry {
	return &Registry{
		extractors: make(map[string]Extractor),
		fallback:   fallback,
	}
}

// DefaultRegistry wires the built-in provider extractors on top of the
// generic one.
func DefaultRegistry(getter fetcher.Getter) *Registry {
	r := NewRegistry(NewGeneric(getter))
	r.Register(DBSProvider, NewDBS(getter))
	r.Register(OCBCProvider, NewOCBC(getter))
	return r
}

// Register sets the extractor used for provider, replacing any previous one.
func (r *Registry) Register(provider string, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[provider] = e
}

// Lookup returns the extractor for provider, or the fallback.
func (r *Registry) Lookup(provider string) Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.extractors[provider]; ok {
		return e
	}
	return r.fallback
}

// Extract runs the extractor registered for provider against url. It never
// fails: errors and panics are reported through Result.Err with a nil rate.
func (r *Registry) Extract(ctx context.Context, provider, url string) (res fetcher.Result) {
	res.Provider = provider

	defer func() {
		if p := recover(); p != nil {
			res.Rate = nil
			res.Err = fetcher.NewPanicError(p)
		}
	}()

	rate, err := r.Lookup(provider).Extract(ctx, url)
	if err != nil {
		res.Err = err
		return res
	}
	res.Rate = &rate
	return res
}
