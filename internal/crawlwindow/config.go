package crawlwindow

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/crawlcoord/internal/crawler"
	"github.com/JakeFAU/crawlcoord/internal/progress"
)

// Config controls the window algorithm.
type Config struct {
	// StartPage is the mandatory first page (default 1).
	StartPage int `mapstructure:"start_page"`
	// WindowSize is the number of pages fetched concurrently per batch (default 4).
	WindowSize int `mapstructure:"window_size"`
	// PageSize is the number of items per page, used to derive the page count
	// from a total. Zero disables the derivation.
	PageSize int `mapstructure:"page_size"`
	// MaxBatches bounds the number of windows after the first page (default 250).
	MaxBatches int `mapstructure:"max_batches"`
}

const (
	defaultStartPage  = 1
	defaultWindowSize = 4
	defaultMaxBatches = 250
)

func (c Config) withDefaults() Config {
	if c.StartPage <= 0 {
		c.StartPage = defaultStartPage
	}
	if c.WindowSize <= 0 {
		c.WindowSize = defaultWindowSize
	}
	if c.PageSize < 0 {
		c.PageSize = 0
	}
	if c.MaxBatches <= 0 {
		c.MaxBatches = defaultMaxBatches
	}
	return c
}

// Option customises a Crawler.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	emitter progress.Emitter
	clock   crawler.Clock
	ids     crawler.IDGenerator
	source  string
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEmitter sets the diagnostics observer.
func WithEmitter(emitter progress.Emitter) Option {
	return func(o *options) { o.emitter = emitter }
}

// WithClock sets the clock used for timestamps and durations.
func WithClock(clock crawler.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithIDGenerator sets the generator for crawl ids.
func WithIDGenerator(ids crawler.IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

// WithSource labels diagnostics with the crawled source's name.
func WithSource(source string) Option {
	return func(o *options) { o.source = source }
}
