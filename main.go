package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"depositrates/internal/cache"
	"depositrates/internal/catalogue"
	"depositrates/internal/config"
	"depositrates/internal/coordinator"
	"depositrates/internal/dataset"
	"depositrates/internal/extractor"
	"depositrates/internal/fetcher"
	"depositrates/internal/metrics"
	"depositrates/internal/ratelimit"
	"depositrates/internal/report"
)

// app bundles the components built from one configuration.
type app struct {
	cfg       *config.Config
	catalogue catalogue.Catalogue
	client    *fetcher.Client
	cache     *cache.Cache
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	cat, err := catalogue.Load(cfg.CatalogueFile)
	if err != nil {
		return nil, err
	}

	clientCfg := fetcher.DefaultClientConfig()
	clientCfg.Timeout = cfg.RequestTimeout
	clientCfg.RetryCount = cfg.RetryCount
	if cfg.UserAgent != "" {
		clientCfg.UserAgent = cfg.UserAgent
	}

	m := metrics.New()
	client := fetcher.NewHTTPClient(clientCfg, ratelimit.New(cfg.RateLimitPerHost, 1), logger.Named("http"))
	coord := coordinator.New(extractor.DefaultRegistry(client), cfg.Workers, logger.Named("coordinator"), m)
	store := cache.NewFileStore(cfg.CacheDir)

	return &app{
		cfg:       cfg,
		catalogue: cat,
		client:    client,
		cache:     cache.New(store, coord, cat, cfg.MaxAge, logger.Named("cache"), m),
		metrics:   m,
		logger:    logger,
	}, nil
}

// getData fetches the dataset and flushes metrics. A persist failure is
// logged and the dataset is still returned.
func (a *app) getData(ctx context.Context, force bool) (dataset.Dataset, bool, error) {
	ds, cached, err := a.cache.GetData(ctx, force)
	if a.cfg.MetricsFile != "" {
		if merr := a.metrics.WriteTextfile(a.cfg.MetricsFile); merr != nil {
			a.logger.Warn("failed to write metrics file", zap.String("path", a.cfg.MetricsFile), zap.Error(merr))
		}
	}

	if errors.Is(err, cache.ErrPersist) {
		a.logger.Error("showing data that could not be cached", zap.Error(err))
		return ds, cached, nil
	}
	return ds, cached, err
}

func (a *app) close() {
	a.client.Close()
	a.logger.Sync()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

type rootFlags struct {
	configFile    string
	debug         bool
	refresh       bool
	markets       []string
	providerTypes []string
	accessTypes   []string
	top           int
}

func setup(flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	if flags.debug {
		cfg.Debug = true
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return newApp(cfg, logger.Named("depositrates"))
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "depositrates",
		Short:         "Compare headline deposit rates across APAC banks",
		Long:          "Scrapes the published rates pages of the configured deposit products, caches the result and prints a comparison table.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.close()

			ds, cached, err := a.getData(cmd.Context(), flags.refresh)
			if err != nil {
				return err
			}

			filter := dataset.Filter{
				Markets:       flags.markets,
				ProviderTypes: flags.providerTypes,
				AccessTypes:   flags.accessTypes,
			}
			if err := report.CheckFilter(ds, filter); err != nil {
				return err
			}

			return report.Render(cmd.OutOrStdout(), ds, cached, report.Options{Filter: filter, Top: flags.top})
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default is ./config.yaml or ~/.depositrates/config.yaml)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "ignore the cache and scrape every provider now")
	cmd.Flags().StringSliceVar(&flags.markets, "market", nil, "only show these markets")
	cmd.Flags().StringSliceVar(&flags.providerTypes, "provider-type", nil, "only show these provider types")
	cmd.Flags().StringSliceVar(&flags.accessTypes, "access", nil, "only show these access types")
	cmd.Flags().IntVar(&flags.top, "top", report.DefaultTop, "number of products in the rates chart")

	cmd.AddCommand(newCatalogueCommand(flags))
	return cmd
}

func newCatalogueCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "catalogue",
		Short: "List the configured deposit products",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.close()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Provider", "Product", "Market", "Provider type", "Access", "URL"})
			for _, e := range a.catalogue {
				t.AppendRow(table.Row{e.Provider, e.ProductName, e.Market, e.ProviderType, e.AccessType, e.URL})
			}
			t.Render()
			return nil
		},
	}
}

func main() {
	// Cancel in-flight fetches on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
