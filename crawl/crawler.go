// Package crawl assembles search results, articles and comment threads from
// the pages of the site. Every Crawler draws on one shared page source, so
// concurrent crawls share its rate budget and cache.
package crawl

import (
	"strings"

	"github.com/pevans/lmdcrawl/logger"
	"github.com/pevans/lmdcrawl/metrics"
	"github.com/pevans/lmdcrawl/paginate"
	"github.com/pevans/lmdcrawl/selectors"
)

// DefaultBaseURL is the site root.
const DefaultBaseURL = "https://www.lemonde.fr"

// Crawler builds records from fetched pages. It is safe for concurrent use
// when its page source is.
type Crawler struct {
	fetcher  paginate.Fetcher
	pager    *paginate.Paginator
	registry *selectors.Registry
	log      logger.Logger
	metrics  *metrics.Metrics
	baseURL  string
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithBaseURL points search URLs at another root, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Crawler) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Crawler) { c.log = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

// WithRegistry replaces the built-in selectors.
func WithRegistry(r *selectors.Registry) Option {
	return func(c *Crawler) { c.registry = r }
}

// New creates a crawler reading pages from f.
func New(f paginate.Fetcher, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:  f,
		registry: selectors.Default(),
		log:      logger.NewNop(),
		baseURL:  DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pager = paginate.New(f, c.log, c.metrics)

	return c
}

func (c *Crawler) group(k selectors.Kind) selectors.Group {
	return c.registry.Group(k)
}

func (c *Crawler) selector(k selectors.Kind, f selectors.Field) selectors.Selector {
	sel, _ := c.group(k).Get(f)
	return sel
}
