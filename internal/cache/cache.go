package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"depositrates/internal/catalogue"
	"depositrates/internal/dataset"
	"depositrates/internal/metrics"
)

// ErrPersist is returned by GetData when a fresh dataset was scraped but
// could not be saved. The dataset is still returned alongside it.
var ErrPersist = errors.New("failed to persist scraped dataset")

// Scraper produces a fresh dataset for a catalogue.
// *coordinator.Coordinator implements it.
type Scraper interface {
	Run(ctx context.Context, cat catalogue.Catalogue) (dataset.Dataset, error)
}

// Cache decides whether a stored dataset can be served or the catalogue
// must be scraped again.
type Cache struct {
	store     Store
	scraper   Scraper
	catalogue catalogue.Catalogue
	maxAge    time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New creates a cache handle. maxAge <= 0 means stored data never expires
// by age and is only rejected when its fingerprint does not match.
func New(store Store, scraper Scraper, cat catalogue.Catalogue, maxAge time.Duration, logger *zap.Logger, m *metrics.Metrics) *Cache {
	if m == nil {
		m = metrics.New()
	}
	return &Cache{
		store:     store,
		scraper:   scraper,
		catalogue: cat,
		maxAge:    maxAge,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// GetData returns the cached dataset when it is valid and forceRefresh is
// false, reporting wasCached=true. Otherwise it scrapes the catalogue,
// persists the result and reports wasCached=false.
//
// If persisting fails the fresh dataset is still returned, together with
// an error wrapping ErrPersist. A scrape cut short by ctx is never saved.
func (c *Cache) GetData(ctx context.Context, forceRefresh bool) (ds dataset.Dataset, wasCached bool, err error) {
	if forceRefresh {
		c.metrics.CacheRequestsTotal.WithLabelValues(metrics.CacheForced).Inc()
		c.logger.Info("forced refresh requested")
	} else if cached, ok := c.loadValid(); ok {
		c.metrics.CacheRequestsTotal.WithLabelValues(metrics.CacheHit).Inc()
		c.logger.Info("serving cached dataset", zap.Int("records", len(cached)))
		return cached, true, nil
	} else {
		c.metrics.CacheRequestsTotal.WithLabelValues(metrics.CacheMiss).Inc()
	}

	fresh, err := c.scraper.Run(ctx, c.catalogue)
	if err != nil {
		return nil, false, fmt.Errorf("scrape failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		c.logger.Warn("scrape interrupted, keeping stored dataset", zap.Error(err))
		return nil, false, fmt.Errorf("scrape interrupted: %w", err)
	}

	if err := c.persist(fresh); err != nil {
		c.metrics.CachePersistFailures.Inc()
		c.logger.Error("scraped dataset was not saved", zap.Error(err))
		return fresh, false, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return fresh, false, nil
}

func (c *Cache) persist(ds dataset.Dataset) error {
	fingerprint, err := dataset.Fingerprint(ds)
	if err != nil {
		return fmt.Errorf("failed to fingerprint dataset: %w", err)
	}
	if err := c.store.Save(ds, fingerprint); err != nil {
		return err
	}
	c.logger.Debug("saved dataset", zap.Int("records", len(ds)), zap.String("fingerprint", fingerprint))
	return nil
}

// loadValid returns the stored dataset if it exists, recomputes to its
// stored fingerprint, lists exactly the configured catalogue and is not
// older than maxAge.
func (c *Cache) loadValid() (dataset.Dataset, bool) {
	ds, stored, err := c.store.Load()
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			c.logger.Info("no cached dataset", zap.Error(err))
		} else {
			c.logger.Warn("ignoring unreadable cache", zap.Error(err))
		}
		return nil, false
	}

	fingerprint, err := dataset.Fingerprint(ds)
	if err != nil {
		c.logger.Warn("failed to fingerprint cached dataset", zap.Error(err))
		return nil, false
	}
	if fingerprint != stored {
		c.logger.Warn("cached dataset does not match its fingerprint",
			zap.String("stored", stored),
			zap.String("computed", fingerprint))
		return nil, false
	}

	if !c.catalogue.Matches(ds.Entries()) {
		c.logger.Info("cached dataset was scraped for a different catalogue",
			zap.Int("cached_records", len(ds)),
			zap.Int("catalogue_entries", len(c.catalogue)))
		return nil, false
	}

	if c.maxAge > 0 {
		scraped, ok := ds.LastScraped()
		if !ok || c.now().Sub(scraped) > c.maxAge {
			c.logger.Info("cached dataset expired",
				zap.Time("last_scraped", scraped),
				zap.Duration("max_age", c.maxAge))
			return nil, false
		}
	}

	return ds, true
}
