package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"depositrates/internal/cache"
	"depositrates/internal/catalogue"
	"depositrates/internal/config"
	mocks "depositrates/internal/testutil"
)

// bankServer serves one rates page per catalogue path. OCBC always fails.
func bankServer(t *testing.T, hits *atomic.Int32, delay time.Duration) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}

		switch r.URL.Path {
		case "/dbs":
			w.Write([]byte(`<html><body><p>Promo 9.99% for new funds</p>
				<table><tr><th>Tenure</th><th>Rate</th></tr><tr><td>12 months</td><td>3.25 %</td></tr></table>
				</body></html>`))
		case "/ocbc":
			w.WriteHeader(http.StatusInternalServerError)
		case "/uob":
			w.Write([]byte(`<html><body><div>Board rate 2.9% p.a.</div></body></html>`))
		case "/mox":
			w.Write([]byte(`<html><body><script>var x = "7%";</script><p>Earn up to 1.1% p.a.</p></body></html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func writeCatalogue(t *testing.T, cat catalogue.Catalogue) string {
	t.Helper()
	raw, err := yaml.Marshal(map[string]any{"products": cat})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func testConfig(t *testing.T, catalogueFile string) *config.Config {
	t.Helper()
	return &config.Config{
		CacheDir:         t.TempDir(),
		CatalogueFile:    catalogueFile,
		MetricsFile:      filepath.Join(t.TempDir(), "depositrates.prom"),
		RequestTimeout:   2 * time.Second,
		RetryCount:       0,
		Workers:          4,
		RateLimitPerHost: 0,
	}
}

func TestIntegration_ScrapeCacheAndRefresh(t *testing.T) {
	var hits atomic.Int32
	server := bankServer(t, &hits, 0)
	cfg := testConfig(t, writeCatalogue(t, mocks.Catalogue(server.URL)))

	a, err := newApp(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ds, cached, err := a.getData(ctx, false)
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, ds, 4)

	// catalogue order is kept and each row carries its static attributes
	assert.Equal(t, "DBS", ds[0].Provider)
	require.NotNil(t, ds[0].InterestRatePct)
	assert.Equal(t, 3.25, *ds[0].InterestRatePct, "table rate wins over the promo paragraph")

	assert.Equal(t, "OCBC", ds[1].Provider)
	assert.Nil(t, ds[1].InterestRatePct, "a failing page yields an absent rate")
	assert.Equal(t, "Legacy Bank", ds[1].ProviderType)

	require.NotNil(t, ds[2].InterestRatePct)
	assert.Equal(t, 2.9, *ds[2].InterestRatePct)
	require.NotNil(t, ds[3].InterestRatePct)
	assert.Equal(t, 1.1, *ds[3].InterestRatePct, "script text is ignored")

	for _, r := range ds {
		assert.True(t, ds[0].LastScraped.Equal(r.LastScraped), "one timestamp per batch")
	}

	assert.FileExists(t, filepath.Join(cfg.CacheDir, cache.DataFile))
	assert.FileExists(t, filepath.Join(cfg.CacheDir, cache.HashFile))
	assert.FileExists(t, cfg.MetricsFile)
	scraped := hits.Load()
	assert.Equal(t, int32(4), scraped)

	// second call is served from disk
	again, cached, err := a.getData(ctx, false)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, scraped, hits.Load(), "no requests on a cache hit")
	require.Len(t, again, 4)
	assert.Nil(t, again[1].InterestRatePct)
	assert.True(t, ds[0].LastScraped.Equal(again[0].LastScraped))

	// a fresh handle on the same directory also hits
	b, err := newApp(cfg, zap.NewNop())
	require.NoError(t, err)
	defer b.close()
	_, cached, err = b.getData(ctx, false)
	require.NoError(t, err)
	assert.True(t, cached)

	// forced refresh scrapes again
	_, cached, err = a.getData(ctx, true)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, scraped+4, hits.Load())
}

func TestIntegration_TamperedCacheRescrapes(t *testing.T) {
	var hits atomic.Int32
	server := bankServer(t, &hits, 0)
	cfg := testConfig(t, writeCatalogue(t, mocks.Catalogue(server.URL)))

	a, err := newApp(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	ctx := context.Background()
	_, _, err = a.getData(ctx, false)
	require.NoError(t, err)

	path := filepath.Join(cfg.CacheDir, cache.DataFile)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, bytes.Replace(raw, []byte("3.25"), []byte("9.25"), 1), 0o644))

	ds, cached, err := a.getData(ctx, false)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 3.25, *ds[0].InterestRatePct)
	assert.Equal(t, int32(8), hits.Load())
}

func TestIntegration_InterruptedRefreshKeepsCache(t *testing.T) {
	var hits atomic.Int32
	server := bankServer(t, &hits, 0)
	cfg := testConfig(t, writeCatalogue(t, mocks.Catalogue(server.URL)))

	a, err := newApp(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	_, _, err = a.getData(context.Background(), false)
	require.NoError(t, err)

	// Ctrl-C before the refresh gets anywhere
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = a.getData(ctx, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	ds, cached, err := a.getData(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, cached)
	require.NotNil(t, ds[0].InterestRatePct)
	assert.Equal(t, 3.25, *ds[0].InterestRatePct)
	assert.Equal(t, 1, ds.Missing(), "only OCBC is missing, as in the first run")
}

func TestIntegration_ConcurrentScraping(t *testing.T) {
	var hits atomic.Int32
	server := bankServer(t, &hits, 200*time.Millisecond)
	cfg := testConfig(t, writeCatalogue(t, mocks.Catalogue(server.URL)))

	a, err := newApp(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	start := time.Now()
	ds, _, err := a.getData(context.Background(), true)
	duration := time.Since(start)
	require.NoError(t, err)
	require.Len(t, ds, 4)

	// Sequentially this would take 800ms (4 * 200ms)
	assert.Less(t, duration, 600*time.Millisecond, "entries likely scraped sequentially")
}

func TestIntegration_SlowPageTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ocbc" {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		w.Write([]byte(`<table><tr><td>3.25%</td></tr></table>`))
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig(t, writeCatalogue(t, mocks.Catalogue(server.URL)))
	cfg.RequestTimeout = 300 * time.Millisecond

	a, err := newApp(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	ds, _, err := a.getData(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, ds, 4)
	assert.Nil(t, ds[1].InterestRatePct)
	for _, i := range []int{0, 2, 3} {
		require.NotNil(t, ds[i].InterestRatePct)
		assert.Equal(t, 3.25, *ds[i].InterestRatePct)
	}
}

func TestIntegration_PersistFailureStillReturnsData(t *testing.T) {
	var hits atomic.Int32
	server := bankServer(t, &hits, 0)
	cfg := testConfig(t, writeCatalogue(t, mocks.Catalogue(server.URL)))

	// a regular file where the cache directory should be
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg.CacheDir = blocker

	a, err := newApp(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	ds, cached, err := a.getData(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, ds, 4)
}

func TestIntegration_CatalogueErrors(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := newApp(cfg, zap.NewNop())
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("products: []\n"), 0o644))
	_, err = newApp(testConfig(t, empty), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalogue is empty")
}

func TestIntegration_Command(t *testing.T) {
	var hits atomic.Int32
	server := bankServer(t, &hits, 0)
	catalogueFile := writeCatalogue(t, mocks.Catalogue(server.URL))

	chdir(t, t.TempDir())
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(
		"cache_dir: "+filepath.Join(t.TempDir(), "data")+"\n"+
			"catalogue_file: "+catalogueFile+"\n"+
			"retry_count: 0\n"+
			"rate_limit_per_host: 0\n"), 0o644))

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		cmd := newRootCommand()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append([]string{"--config", configFile}, args...))
		require.NoError(t, cmd.ExecuteContext(context.Background()))
		return out.String()
	}

	out := run("--market", "Singapore")
	assert.Contains(t, out, "Live data")
	assert.Contains(t, out, "DBS Fixed Deposit")
	assert.NotContains(t, out, "Mox Bank Savings")

	out = run()
	assert.Contains(t, out, "Up-to-date")
	assert.Contains(t, out, "Mox Bank Savings")

	out = run("--refresh")
	assert.Contains(t, out, "Live data")

	out = run("catalogue")
	assert.Equal(t, 4, strings.Count(out, server.URL))

	// unknown filter values fail without printing the error or usage twice
	var errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&errOut)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--config", configFile, "--market", "Mars"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown market "Mars" (available: Hong Kong, Singapore)`)
	assert.Empty(t, errOut.String())
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (stand-in for testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
