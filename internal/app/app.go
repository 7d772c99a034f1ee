// Package app holds the long-lived services of the process and runs window
// crawls and fan-outs against the configured sources.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/crawlcoord/internal/clock/system"
	"github.com/JakeFAU/crawlcoord/internal/config"
	"github.com/JakeFAU/crawlcoord/internal/crawler"
	collyfetcher "github.com/JakeFAU/crawlcoord/internal/fetcher/colly"
	"github.com/JakeFAU/crawlcoord/internal/hash/sha256"
	iduuid "github.com/JakeFAU/crawlcoord/internal/id/uuid"
	"github.com/JakeFAU/crawlcoord/internal/policy/ratelimit"
	"github.com/JakeFAU/crawlcoord/internal/progress"
	"github.com/JakeFAU/crawlcoord/internal/source/jsonapi"
)

var (
	// ErrUnknownSource is returned for a source name absent from the configuration.
	ErrUnknownSource = errors.New("unknown source")
	// ErrUnsupported is returned when a source lacks the endpoint a run needs.
	ErrUnsupported = errors.New("operation not supported by source")
	// ErrInvalidRequest is returned for malformed run requests.
	ErrInvalidRequest = errors.New("invalid request")
)

// digestPrefix marks canonical ids derived from item content.
const digestPrefix = "sha256:"

// App holds the shared services used by every run.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	emitter  progress.Emitter
	fetcher  crawler.Fetcher
	throttle crawler.Throttle
	hasher   crawler.Hasher
	clock    crawler.Clock
	ids      crawler.IDGenerator
}

// New wires the fetcher, rate limiter, hasher, clock and id generator from
// cfg. A nil emitter discards diagnostics.
func New(cfg config.Config, logger *zap.Logger, emitter progress.Emitter) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	return &App{
		cfg:      cfg,
		logger:   logger,
		emitter:  emitter,
		fetcher:  collyfetcher.New(cfg.HTTP),
		throttle: ratelimit.New(cfg.RateLimit),
		hasher:   sha256.New(digestPrefix),
		clock:    system.New(),
		ids:      iduuid.New(),
	}
}

// Sources lists the configured source names.
func (a *App) Sources() []string {
	names := make([]string, len(a.cfg.Sources))
	for i, src := range a.cfg.Sources {
		names[i] = src.Name
	}
	return names
}

func (a *App) client(name string) (*jsonapi.Client, error) {
	src, ok := a.cfg.Source(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return jsonapi.NewClient(src, a.fetcher, a.throttle, a.hasher, a.logger), nil
}

// runContext bounds one run by the configured run timeout.
func (a *App) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Server.RunTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.cfg.Server.RunTimeout)
}

// errorStrings flattens an aggregated partial failure for JSON output.
func errorStrings(err error) []string {
	if err == nil {
		return nil
	}
	var multi interface{ WrappedErrors() []error }
	if !errors.As(err, &multi) {
		return []string{err.Error()}
	}
	wrapped := multi.WrappedErrors()
	out := make([]string, len(wrapped))
	for i, e := range wrapped {
		out[i] = e.Error()
	}
	return out
}
