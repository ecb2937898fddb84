package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"

	"depositrates/internal/catalogue"
	"depositrates/internal/dataset"
	"depositrates/internal/fetcher"
	"depositrates/internal/metrics"
)

// DefaultWorkers is the number of pages fetched at the same time.
const DefaultWorkers = 4

// Dispatcher resolves the headline rate of one provider page.
// *extractor.Registry implements it.
type Dispatcher interface {
	Extract(ctx context.Context, provider, url string) fetcher.Result
}

// Coordinator runs one extraction per catalogue entry on a bounded worker
// pool and assembles the results into a Dataset
type Coordinator struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	metrics    *metrics.Metrics
	workers    int
	now        func() time.Time
}

// New creates a Coordinator. workers < 1 falls back to DefaultWorkers.
func New(dispatcher Dispatcher, workers int, logger *zap.Logger, m *metrics.Metrics) *Coordinator {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if m == nil {
		m = metrics.New()
	}

	return &Coordinator{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
		workers:    workers,
		now:        time.Now,
	}
}

// Run scrapes every entry of cat and returns one record per entry, in
// catalogue order. Every record carries the batch start time. Failed
// extractions are logged and yield a record without a rate; they never stop
// the batch. If ctx ends before the batch completes no dataset is returned.
func (c *Coordinator) Run(ctx context.Context, cat catalogue.Catalogue) (dataset.Dataset, error) {
	if len(cat) == 0 {
		return nil, fmt.Errorf("no catalogue entries configured")
	}

	started := c.now()
	batchTime := dataset.BatchTime(started)
	log := c.logger.With(
		zap.String("batch_id", uuid.NewString()),
		zap.Time("batch_time", batchTime),
	)
	log.Info("starting scrape batch", zap.Int("entries", len(cat)), zap.Int("workers", c.workers))

	mapper := iter.Mapper[catalogue.Entry, dataset.Record]{MaxGoroutines: c.workers}
	records := mapper.Map(cat, func(e *catalogue.Entry) dataset.Record {
		res := c.dispatcher.Extract(ctx, e.Provider, e.URL)
		c.observe(log, *e, res)

		return dataset.Record{
			Entry:           *e,
			InterestRatePct: res.Rate,
			LastScraped:     batchTime,
		}
	})

	// an interrupted batch has failures that say nothing about the pages
	if err := ctx.Err(); err != nil {
		log.Warn("scrape batch interrupted", zap.Error(err))
		return nil, fmt.Errorf("scrape batch interrupted: %w", err)
	}

	ds := dataset.Dataset(records)
	elapsed := c.now().Sub(started)

	c.metrics.ScrapeDuration.Observe(elapsed.Seconds())
	c.metrics.LastBatchMissingRates.Set(float64(ds.Missing()))
	c.metrics.LastBatchTimestampSecs.Set(float64(batchTime.Unix()))

	log.Info("scrape batch finished",
		zap.Int("entries", len(ds)),
		zap.Int("missing_rates", ds.Missing()),
		zap.Duration("elapsed", elapsed))

	return ds, nil
}

func (c *Coordinator) observe(log *zap.Logger, e catalogue.Entry, res fetcher.Result) {
	if res.OK() {
		c.metrics.ExtractionsTotal.WithLabelValues(e.Provider, metrics.OutcomeSuccess).Inc()
		log.Debug("extracted rate",
			zap.String("provider", e.Provider),
			zap.String("product", e.ProductName),
			zap.Float64("rate_pct", *res.Rate))
		return
	}

	c.metrics.ExtractionsTotal.WithLabelValues(e.Provider, metrics.OutcomeFailure).Inc()
	c.metrics.ExtractionErrorsTotal.WithLabelValues(string(fetcher.TypeOf(res.Err))).Inc()
	log.Warn("scrape failed",
		zap.String("provider", e.Provider),
		zap.String("product", e.ProductName),
		zap.String("url", e.URL),
		zap.Error(res.Err))
}
