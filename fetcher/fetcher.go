// Package fetcher retrieves and parses pages under a shared rate budget. It
// retries transient failures with jittered exponential backoff, caches parsed
// pages in a bounded LRU keyed by normalized URL, and spaces network requests
// with a small randomized delay.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/pevans/lmdcrawl/logger"
	"github.com/pevans/lmdcrawl/metrics"
)

// Config holds the fetch policy.
type Config struct {
	// RequestsPerMinute is the short-window refill rate.
	RequestsPerMinute int
	// RequestsPerHour is the long-window cap; 0 disables it.
	RequestsPerHour int
	// Burst is the token bucket size.
	Burst int
	// CacheSize is the number of parsed pages kept.
	CacheSize int
	// MaxAttempts bounds tries per fetch, the first one included.
	MaxAttempts int
	// BaseBackoff is the delay before the first retry; it doubles per retry.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// RequestTimeout bounds a single transport call.
	RequestTimeout time.Duration
	// PolitenessMin and PolitenessMax bound the random pause after each
	// network fetch.
	PolitenessMin time.Duration
	PolitenessMax time.Duration
}

// DefaultConfig stays under the limits observed on the site: 25 requests per
// minute, 1200 per hour, pauses of 0.6-0.9s.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 25,
		RequestsPerHour:   1200,
		Burst:             1,
		CacheSize:         512,
		MaxAttempts:       3,
		BaseBackoff:       time.Second,
		MaxBackoff:        10 * time.Second,
		RequestTimeout:    10 * time.Second,
		PolitenessMin:     600 * time.Millisecond,
		PolitenessMax:     900 * time.Millisecond,
	}
}

// Validate checks the policy for values that would stall or break fetching.
func (c Config) Validate() error {
	switch {
	case c.RequestsPerMinute <= 0:
		return errors.New("requests per minute must be positive")
	case c.RequestsPerHour < 0:
		return errors.New("requests per hour must not be negative")
	case c.Burst < 1:
		return errors.New("burst must be at least 1")
	case c.CacheSize < 1:
		return errors.New("cache size must be at least 1")
	case c.MaxAttempts < 1:
		return errors.New("max attempts must be at least 1")
	case c.BaseBackoff <= 0:
		return errors.New("base backoff must be positive")
	case c.MaxBackoff < c.BaseBackoff:
		return errors.New("max backoff must not be below base backoff")
	case c.RequestTimeout <= 0:
		return errors.New("request timeout must be positive")
	case c.PolitenessMin < 0 || c.PolitenessMax < c.PolitenessMin:
		return errors.New("politeness range is invalid")
	}
	return nil
}

// Fetcher is safe for concurrent use. Share one instance so every crawl
// draws from the same limiter and cache.
type Fetcher struct {
	transport Transport
	cfg       Config
	limiter   *Limiter
	cache     *lru.Cache[string, *Page]
	inflight  singleflight.Group
	mu        sync.Mutex
	flights   map[string]*flight
	log       logger.Logger
	metrics   *metrics.Metrics
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithLimiter shares an existing limiter instead of building one from the
// config.
func WithLimiter(l *Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// New creates a fetcher over transport.
func New(transport Transport, cfg Config, opts ...Option) (*Fetcher, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fetcher config: %w", err)
	}

	cache, err := lru.New[string, *Page](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create page cache: %w", err)
	}

	f := &Fetcher{
		transport: transport,
		cfg:       cfg,
		cache:     cache,
		flights:   make(map[string]*flight),
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.limiter == nil {
		f.limiter = NewLimiter(cfg.RequestsPerMinute, cfg.RequestsPerHour, cfg.Burst)
	}

	return f, nil
}

// Fetch returns the parsed page at rawURL. A cache hit costs neither a
// network call nor a rate-limit token. Concurrent misses on the same URL
// share one network fetch; a caller whose ctx ends stops waiting without
// failing the others.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, &FatalFetchError{URL: rawURL, Attempts: 0, Err: err}
	}

	if page, ok := f.cache.Get(key); ok {
		f.metrics.CacheHit()
		f.log.Debug("cache hit", logger.String("url", key))
		return page, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	for {
		fl := f.join(ctx, key)
		ch := f.inflight.DoChan(key, func() (any, error) {
			if page, ok := f.cache.Get(key); ok {
				return page, nil
			}

			page, err := f.fetchNetwork(fl.ctx, rawURL)
			if err != nil {
				return nil, err
			}
			f.cache.Add(key, page)
			return page, nil
		})

		select {
		case <-ctx.Done():
			f.leave(key, fl)
			return nil, fmt.Errorf("fetch %s: %w", rawURL, ctx.Err())
		case res := <-ch:
			f.leave(key, fl)
			if res.Err == nil {
				return res.Val.(*Page), nil
			}
			// Joined a call that every earlier waiter abandoned.
			if errors.Is(res.Err, context.Canceled) && !IsFatal(res.Err) && ctx.Err() == nil {
				continue
			}
			return nil, res.Err
		}
	}
}

// flight is the context shared by every caller waiting on one key. It is
// cancelled when the last of them leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func (f *Fetcher) join(ctx context.Context, key string) *flight {
	f.mu.Lock()
	defer f.mu.Unlock()

	fl, ok := f.flights[key]
	if !ok {
		shared, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{ctx: shared, cancel: cancel}
		f.flights[key] = fl
	}
	fl.waiters++
	return fl
}

func (f *Fetcher) leave(key string, fl *flight) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fl.waiters--
	if fl.waiters > 0 {
		return
	}
	fl.cancel()
	if f.flights[key] == fl {
		delete(f.flights, key)
	}
}

// Cached reports whether rawURL is in the cache without touching recency.
func (f *Fetcher) Cached(rawURL string) bool {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	return f.cache.Contains(key)
}

// Purge empties the page cache.
func (f *Fetcher) Purge() {
	f.cache.Purge()
}

func (f *Fetcher) fetchNetwork(ctx context.Context, rawURL string) (*Page, error) {
	start := time.Now()
	attempts := 0
	var body []byte

	op := func() error {
		attempts++
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
		}

		reqCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
		defer cancel()

		f.metrics.NetworkFetch()
		status, b, err := f.transport.Get(reqCtx, rawURL)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return permanentIfFatal(classifyTransportError(rawURL, err))
		}
		if err := classifyStatus(rawURL, status); err != nil {
			return permanentIfFatal(err)
		}

		body = b
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.cfg.BaseBackoff
	policy.MaxInterval = f.cfg.MaxBackoff
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.5
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		f.metrics.Retry()
		f.log.Warn("transient fetch failure, retrying",
			logger.String("url", rawURL),
			logger.Int("attempt", attempts),
			logger.Duration("wait", wait),
			logger.Err(err),
		)
	}

	err := backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(f.cfg.MaxAttempts-1)), ctx),
		notify,
	)
	if err != nil {
		return nil, f.fail(rawURL, attempts, err)
	}

	page, err := NewPage(rawURL, body)
	if err != nil {
		f.metrics.FetchFailure("fatal")
		return nil, &FatalFetchError{URL: rawURL, Attempts: attempts, Err: err}
	}

	f.log.Debug("page fetched",
		logger.String("url", rawURL),
		logger.Int("attempts", attempts),
		logger.Duration("elapsed", time.Since(start)),
	)
	f.pause(ctx)

	return page, nil
}

// fail turns the final retry error into the error surfaced to callers.
func (f *Fetcher) fail(rawURL string, attempts int, err error) error {
	switch {
	case errors.Is(err, context.Canceled) || (errors.Is(err, context.DeadlineExceeded) && !IsTransient(err)):
		f.metrics.FetchFailure("canceled")
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	case IsTransient(err):
		f.metrics.FetchFailure("transient")
		f.log.Error("retries exhausted", logger.String("url", rawURL), logger.Int("attempts", attempts), logger.Err(err))
		var transient *TransientFetchError
		errors.As(err, &transient)
		return &FatalFetchError{URL: rawURL, StatusCode: transient.StatusCode, Attempts: attempts, Err: err}
	default:
		f.metrics.FetchFailure("fatal")
		var fatal *FatalFetchError
		if errors.As(err, &fatal) {
			fatal.Attempts = attempts
		}
		return err
	}
}

// pause sleeps a random politeness interval. Cancellation cuts it short; the
// fetched page is still returned.
func (f *Fetcher) pause(ctx context.Context) {
	d := f.cfg.PolitenessMin
	if span := f.cfg.PolitenessMax - f.cfg.PolitenessMin; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func permanentIfFatal(err error) error {
	if IsFatal(err) {
		return backoff.Permanent(err)
	}
	return err
}
