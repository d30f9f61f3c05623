package fetcher

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates requests with two token buckets: a short window
// (requests per minute) and a long window (requests per hour). Wait blocks
// until both grant a token; requests are never dropped. A Limiter is meant to
// be shared by every crawl in the process.
type Limiter struct {
	short *rate.Limiter
	long  *rate.Limiter
}

// NewLimiter creates a limiter. perHour <= 0 disables the long window. burst
// is the short-window bucket size. The long window holds up to a minute's
// worth of requests (never more than perHour), so the per-minute rate is
// reachable until the hourly budget runs low.
func NewLimiter(perMinute, perHour, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}

	l := &Limiter{
		short: rate.NewLimiter(perWindow(perMinute, time.Minute), burst),
	}
	if perHour > 0 {
		l.long = rate.NewLimiter(perWindow(perHour, time.Hour), longBurst(perMinute, perHour, burst))
	}

	return l
}

func longBurst(perMinute, perHour, burst int) int {
	n := max(perMinute, burst)
	return max(min(n, perHour), 1)
}

func perWindow(n int, window time.Duration) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Every(window / time.Duration(n))
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.short.Wait(ctx); err != nil {
		return err
	}
	if l.long != nil {
		if err := l.long.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
