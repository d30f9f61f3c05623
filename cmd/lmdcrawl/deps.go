package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pevans/lmdcrawl/config"
	"github.com/pevans/lmdcrawl/crawl"
	"github.com/pevans/lmdcrawl/fetcher"
	"github.com/pevans/lmdcrawl/logger"
	"github.com/pevans/lmdcrawl/metrics"
	"github.com/pevans/lmdcrawl/store"
)

// app holds the components a command runs against. One fetcher backs the
// crawler, so every operation of a command shares its cache and rate budget.
type app struct {
	cfg      *config.FileConfig
	log      logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	crawler  *crawl.Crawler
}

func newApp(opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	creds, err := config.LoadCredentials(opts.envFile)
	if err != nil {
		return nil, err
	}
	if creds.Empty() {
		log.Warn("no subscriber credentials, premium articles will be truncated")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	selectorRegistry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	transport := fetcher.NewHTTPTransport(cfg.HTTPTransport(creds))
	f, err := fetcher.New(transport, cfg.FetcherPolicy(),
		fetcher.WithLogger(log),
		fetcher.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	c := crawl.New(f,
		crawl.WithBaseURL(cfg.Crawl.BaseURL),
		crawl.WithLogger(log),
		crawl.WithMetrics(m),
		crawl.WithRegistry(selectorRegistry),
	)

	return &app{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  m,
		crawler:  c,
	}, nil
}

// openStore opens the dataset named in the config.
func (a *app) openStore() (*store.Store, error) {
	s, err := store.Open(a.cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	return s, nil
}

func (a *app) close() {
	_ = a.log.Sync()
}

// pages returns the flag value when set, the configured default otherwise.
func (a *app) pages(flag int, changed bool) int {
	if changed {
		return flag
	}
	return a.cfg.Crawl.MaxPages
}
