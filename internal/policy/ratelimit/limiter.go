// Package ratelimit implements per-host token bucket rate limiting for calls
// to upstream sources.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/crawlcoord/internal/metrics"
)

// minObservedDelay filters out waits that were satisfied from the bucket.
const minObservedDelay = time.Millisecond

// Limiter manages per-host rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	hostRates    map[string]HostRate
	defaultRate  rate.Limit
	defaultBurst int
}

// HostRate overrides the default rate for one host.
type HostRate struct {
	Host  string  `mapstructure:"host"`
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Config holds rate limiter configuration.
type Config struct {
	DefaultRPS   float64    `mapstructure:"default_rps"`
	DefaultBurst int        `mapstructure:"default_burst"`
	Hosts        []HostRate `mapstructure:"hosts"`
}

// New creates a new Limiter. A non-positive rate disables limiting.
func New(cfg Config) *Limiter {
	metrics.Init()
	hosts := make(map[string]HostRate, len(cfg.Hosts))
	for _, hr := range cfg.Hosts {
		hosts[metrics.SanitizeHost(hr.Host)] = hr
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		hostRates:    hosts,
		defaultRate:  limitOf(cfg.DefaultRPS),
		defaultBurst: burstOf(cfg.DefaultBurst),
	}
}

func limitOf(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}

func burstOf(b int) int {
	if b <= 0 {
		return 1
	}
	return b
}

// Wait blocks until a token is available for the host of rawURL, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	limiter := l.limiterFor(host)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > minObservedDelay {
		metrics.ObserveRateLimitDelay(host, d)
	}
	return nil
}

func (l *Limiter) limiterFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[host]
	if ok {
		return limiter
	}
	r, burst := l.defaultRate, l.defaultBurst
	if hr, ok := l.hostRates[host]; ok {
		r, burst = limitOf(hr.RPS), burstOf(hr.Burst)
	}
	limiter = rate.NewLimiter(r, burst)
	l.limiters[host] = limiter
	return limiter
}
