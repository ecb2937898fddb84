package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depositrates/internal/dataset"
	mocks "depositrates/internal/testutil"
)

var batch = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

func sampleDataset() dataset.Dataset {
	rates := []*float64{dataset.Rate(3.25), nil, dataset.Rate(0.1 + 0.2), dataset.Rate(1.123456789012345)}
	ethical := "A+"

	var ds dataset.Dataset
	for i, e := range mocks.Catalogue("https://bank.example") {
		ds = append(ds, dataset.Record{Entry: e, InterestRatePct: rates[i], LastScraped: batch})
	}
	ds[3].EthicalRating = &ethical
	ds[3].FSCSCovered = true
	ds[0].Tenure = `1, 3, "6" m`
	return ds
}

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "data"))
	ds := sampleDataset()
	fp, err := dataset.Fingerprint(ds)
	require.NoError(t, err)

	require.NoError(t, store.Save(ds, fp))

	loaded, stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, fp, stored)
	assert.Equal(t, ds, loaded)

	reloaded, err := dataset.Fingerprint(loaded)
	require.NoError(t, err)
	assert.Equal(t, fp, reloaded)

	require.NotNil(t, loaded[2].InterestRatePct)
	assert.Equal(t, 0.1+0.2, *loaded[2].InterestRatePct, "rate keeps full float precision")
	assert.Nil(t, loaded[1].InterestRatePct)
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ds := sampleDataset()
	require.NoError(t, store.Save(ds, strings.Repeat("ab", 32)))

	raw, err := os.ReadFile(filepath.Join(dir, DataFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, strings.Join(Columns, ","), lines[0])
	assert.Len(t, lines, len(ds)+1)
	assert.Contains(t, lines[2], ",,2025-05-01T09:30:00Z", "absent rate is an empty cell")

	hash, err := os.ReadFile(filepath.Join(dir, HashFile))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ab", 32), string(hash))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no staged temp files left behind")
}

func TestFileStore_SaveReplaces(t *testing.T) {
	store := NewFileStore(t.TempDir())
	first := sampleDataset()
	require.NoError(t, store.Save(first, strings.Repeat("0", 64)))

	second := sampleDataset()[:2]
	require.NoError(t, store.Save(second, strings.Repeat("1", 64)))

	loaded, fp, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.Equal(t, strings.Repeat("1", 64), fp)
}

func TestFileStore_Missing(t *testing.T) {
	tests := []struct {
		name  string
		setup func(dir string)
	}{
		{"empty dir", func(dir string) {}},
		{"no hash", func(dir string) {
			os.WriteFile(filepath.Join(dir, DataFile), []byte(strings.Join(Columns, ",")+"\n"), 0o644)
		}},
		{"no data", func(dir string) {
			os.WriteFile(filepath.Join(dir, HashFile), []byte(strings.Repeat("a", 64)), 0o644)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(dir)

			_, _, err := NewFileStore(dir).Load()
			assert.ErrorIs(t, err, ErrCacheMiss)
		})
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	goodHash := strings.Repeat("a", 64)
	header := strings.Join(Columns, ",")

	tests := []struct {
		name string
		hash string
		data string
	}{
		{"hash not hex", "not-a-digest", header + "\n"},
		{"hash too short", "abcd", header + "\n"},
		{"wrong header", goodHash, "provider,rate\nDBS,3.25\n"},
		{"short row", goodHash, header + "\nDBS,DBS FD\n"},
		{"bad rate", goodHash, header + "\nDBS,FD,SG,Bank,Fixed,false,,none,1m,https://x,abc,2025-05-01T09:30:00Z\n"},
		{"bad bool", goodHash, header + "\nDBS,FD,SG,Bank,Fixed,maybe,,none,1m,https://x,3,2025-05-01T09:30:00Z\n"},
		{"bad time", goodHash, header + "\nDBS,FD,SG,Bank,Fixed,false,,none,1m,https://x,3,yesterday\n"},
		{"empty data file", goodHash, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, HashFile), []byte(tt.hash), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(dir, DataFile), []byte(tt.data), 0o644))

			_, _, err := NewFileStore(dir).Load()
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestFileStore_SaveIntoUnwritableLocation(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := NewFileStore(filepath.Join(blocker, "data")).Save(sampleDataset(), strings.Repeat("a", 64))
	assert.Error(t, err)
}
