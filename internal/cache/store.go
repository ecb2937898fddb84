package cache

import (
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"depositrates/internal/catalogue"
	"depositrates/internal/dataset"
)

const (
	// DataFile holds the dataset dump
	DataFile = "deposit_products.csv"
	// HashFile holds the hex fingerprint of DataFile
	HashFile = ".last_hash"
)

var (
	// ErrCacheMiss means no cached dataset exists
	ErrCacheMiss = errors.New("cache miss")
	// ErrCorrupt means cached artifacts exist but cannot be read back
	ErrCorrupt = errors.New("cache corrupt")
)

// Columns is the header of the dataset dump.
var Columns = []string{
	"provider",
	"product_name",
	"market",
	"provider_type",
	"access_type",
	"fscs_covered",
	"ethical_rating",
	"early_withdrawal_penalty",
	"tenure",
	"url",
	"interest_rate_pct",
	"last_scraped",
}

// Store persists a dataset together with its fingerprint.
type Store interface {
	// Load returns the stored dataset and fingerprint. It returns an error
	// wrapping ErrCacheMiss or ErrCorrupt when nothing usable is stored.
	Load() (dataset.Dataset, string, error)
	// Save replaces the stored dataset and fingerprint.
	Save(ds dataset.Dataset, fingerprint string) error
}

// FileStore keeps the cache as a CSV dump plus a fingerprint file in one
// directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on
// the first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) dataPath() string { return filepath.Join(s.dir, DataFile) }
func (s *FileStore) hashPath() string { return filepath.Join(s.dir, HashFile) }

// Load implements Store
func (s *FileStore) Load() (dataset.Dataset, string, error) {
	hash, err := os.ReadFile(s.hashPath())
	if err != nil {
		return nil, "", readError(HashFile, err)
	}
	fingerprint := strings.TrimSpace(string(hash))
	if b, err := hex.DecodeString(fingerprint); err != nil || len(b) != 32 {
		return nil, "", fmt.Errorf("%w: %s does not hold a sha256 digest", ErrCorrupt, HashFile)
	}

	f, err := os.Open(s.dataPath())
	if err != nil {
		return nil, "", readError(DataFile, err)
	}
	defer f.Close()

	ds, err := decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrCorrupt, DataFile, err)
	}
	return ds, fingerprint, nil
}

func readError(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s not found", ErrCacheMiss, name)
	}
	return fmt.Errorf("%w: failed to read %s: %v", ErrCorrupt, name, err)
}

// Save implements Store. Both artifacts are staged as temp files first.
// The old fingerprint is removed before the dump is swapped in, so a crash
// part way leaves either the old pair, a dump without fingerprint, or the
// new pair. None of these can validate against a foreign fingerprint.
func (s *FileStore) Save(ds dataset.Dataset, fingerprint string) (err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	dataTmp, err := writeTemp(s.dir, DataFile, func(w io.Writer) error { return encode(w, ds) })
	if err != nil {
		return err
	}
	defer cleanup(dataTmp, &err)

	hashTmp, err := writeTemp(s.dir, HashFile, func(w io.Writer) error {
		_, err := io.WriteString(w, fingerprint)
		return err
	})
	if err != nil {
		return err
	}
	defer cleanup(hashTmp, &err)

	if err := os.Remove(s.hashPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to invalidate old fingerprint: %w", err)
	}
	if err := os.Rename(dataTmp, s.dataPath()); err != nil {
		return fmt.Errorf("failed to replace %s: %w", DataFile, err)
	}
	if err := os.Rename(hashTmp, s.hashPath()); err != nil {
		return fmt.Errorf("failed to replace %s: %w", HashFile, err)
	}
	return syncDir(s.dir)
}

func writeTemp(dir, name string, write func(io.Writer) error) (string, error) {
	f, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	return f.Name(), nil
}

// cleanup removes a staged file when Save fails before renaming it.
func cleanup(path string, err *error) {
	if *err != nil {
		os.Remove(path)
	}
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open cache dir: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync cache dir: %w", err)
	}
	return nil
}

func encode(w io.Writer, ds dataset.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range ds {
		if err := cw.Write(encodeRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeRecord(r dataset.Record) []string {
	ethical := ""
	if r.EthicalRating != nil {
		ethical = *r.EthicalRating
	}
	rate := ""
	if r.InterestRatePct != nil {
		rate = strconv.FormatFloat(*r.InterestRatePct, 'g', -1, 64)
	}

	return []string{
		r.Provider,
		r.ProductName,
		r.Market,
		r.ProviderType,
		r.AccessType,
		strconv.FormatBool(r.FSCSCovered),
		ethical,
		r.EarlyWithdrawalPenalty,
		r.Tenure,
		r.URL,
		rate,
		r.LastScraped.UTC().Format(dataset.TimestampLayout),
	}
}

func decode(r io.Reader) (dataset.Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if !slices.Equal(header, Columns) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var ds dataset.Dataset
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return ds, nil
		}
		if err != nil {
			return nil, err
		}

		rec, err := decodeRecord(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ds = append(ds, rec)
	}
}

func decodeRecord(row []string) (dataset.Record, error) {
	fscs, err := strconv.ParseBool(row[5])
	if err != nil {
		return dataset.Record{}, fmt.Errorf("invalid fscs_covered %q", row[5])
	}

	var ethical *string
	if row[6] != "" {
		v := row[6]
		ethical = &v
	}

	var rate *float64
	if row[10] != "" {
		v, err := strconv.ParseFloat(row[10], 64)
		if err != nil {
			return dataset.Record{}, fmt.Errorf("invalid interest_rate_pct %q", row[10])
		}
		rate = &v
	}

	scraped, err := time.Parse(dataset.TimestampLayout, row[11])
	if err != nil {
		return dataset.Record{}, fmt.Errorf("invalid last_scraped %q", row[11])
	}

	return dataset.Record{
		Entry: catalogue.Entry{
			Provider:               row[0],
			ProductName:            row[1],
			Market:                 row[2],
			ProviderType:           row[3],
			AccessType:             row[4],
			FSCSCovered:            fscs,
			EthicalRating:          ethical,
			EarlyWithdrawalPenalty: row[7],
			Tenure:                 row[8],
			URL:                    row[9],
		},
		InterestRatePct: rate,
		LastScraped:     scraped.UTC(),
	}, nil
}
