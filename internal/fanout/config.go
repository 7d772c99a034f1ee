package fanout

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/crawlcoord/internal/crawler"
	"github.com/JakeFAU/crawlcoord/internal/progress"
)

// Config bounds the standalone phase.
type Config struct {
	// BatchSize is the number of ids sent in one standalone request.
	BatchSize int `mapstructure:"batch_size"`
	// MaxInFlight is the number of standalone requests awaited together.
	MaxInFlight int `mapstructure:"max_in_flight"`
}

const (
	defaultBatchSize   = 48
	defaultMaxInFlight = 4
)

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = defaultMaxInFlight
	}
	return c
}

// Option customises a Deduper.
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

// WithIDGenerator sets the generator for run ids.
func WithIDGenerator(ids crawler.IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

// WithSource labels diagnostics.
func WithSource(source string) Option {
	return func(o *options) { o.source = source }
}
