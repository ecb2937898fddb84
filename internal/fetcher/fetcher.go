package fetcher

import "context"

// Getter is the page download capability extractors depend on.
// *Client implements it; tests substitute canned pages.
type Getter interface {
	// Get returns the body of the page at url.
	// Errors are *FetchError values classified by cause.
	Get(ctx context.Context, url string) ([]byte, error)
}

// GetterFunc adapts a plain function to the Getter interface.
type GetterFunc func(ctx context.Context, url string) ([]byte, error)

// Get implements Getter
func (f GetterFunc) Get(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}
