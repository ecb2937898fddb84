package testutil

import (
	"context"
	"sync"

	"depositrates/internal/catalogue"
	"depositrates/internal/dataset"
	"depositrates/internal/fetcher"
)

// MockDispatcher is a mock implementation of coordinator.Dispatcher
type MockDispatcher struct {
	ExtractFunc func(ctx context.Context, provider, url string) fetcher.Result

	mu    sync.Mutex
	calls []string
}

// Extract implements coordinator.Dispatcher
func (m *MockDispatcher) Extract(ctx context.Context, provider, url string) fetcher.Result {
	m.mu.Lock()
	m.calls = append(m.calls, provider)
	m.mu.Unlock()

	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, provider, url)
	}
	return fetcher.Result{Provider: provider}
}

// Calls returns the providers Extract was invoked for, in call order.
func (m *MockDispatcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// NewMockDispatcher returns fixed rates per provider. Providers listed in
// failures get the paired error and no rate; unknown providers get neither.
func NewMockDispatcher(rates map[string]float64, failures map[string]error) *MockDispatcher {
	return &MockDispatcher{
		ExtractFunc: func(ctx context.Context, provider, url string) fetcher.Result {
			if err, ok := failures[provider]; ok {
				return fetcher.Result{Provider: provider, Err: err}
			}
			if rate, ok := rates[provider]; ok {
				return fetcher.Result{Provider: provider, Rate: dataset.Rate(rate)}
			}
			return fetcher.Result{Provider: provider, Err: fetcher.NewValidationError("rate not found", nil)}
		},
	}
}

// MockScraper is a mock implementation of cache.Scraper
type MockScraper struct {
	RunFunc func(ctx context.Context, cat catalogue.Catalogue) (dataset.Dataset, error)

	mu   sync.Mutex
	runs int
}

// Run implements cache.Scraper
func (m *MockScraper) Run(ctx context.Context, cat catalogue.Catalogue) (dataset.Dataset, error) {
	m.mu.Lock()
	m.runs++
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, cat)
	}
	return nil, nil
}

// Runs reports how many times Run was called.
func (m *MockScraper) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// Catalogue returns a small fixed catalogue whose URLs are rooted at baseURL.
func Catalogue(baseURL string) catalogue.Catalogue {
	return catalogue.Catalogue{
		{
			Provider: "DBS", ProductName: "DBS Fixed Deposit", Market: "Singapore",
			ProviderType: "Legacy Bank", AccessType: "Fixed", EarlyWithdrawalPenalty: "Interest forfeited",
			Tenure: "1-12 m", URL: baseURL + "/dbs",
		},
		{
			Provider: "OCBC", ProductName: "OCBC Fixed Deposit", Market: "Singapore",
			ProviderType: "Legacy Bank", AccessType: "Fixed", EarlyWithdrawalPenalty: "Interest forfeited",
			Tenure: "1-12 m", URL: baseURL + "/ocbc",
		},
		{
			Provider: "UOB", ProductName: "UOB Fixed Deposit", Market: "Singapore",
			ProviderType: "Legacy Bank", AccessType: "Fixed", EarlyWithdrawalPenalty: "Interest forfeited",
			Tenure: "1-12 m", URL: baseURL + "/uob",
		},
		{
			Provider: "Mox Bank", ProductName: "Mox Bank Savings", Market: "Hong Kong",
			ProviderType: "Neo/Digital Bank", AccessType: "Easy-Access", EarlyWithdrawalPenalty: "N/A",
			Tenure: "None", URL: baseURL + "/mox",
		},
	}
}
