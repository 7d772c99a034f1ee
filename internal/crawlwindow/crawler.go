package crawlwindow

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/JakeFAU/crawlcoord/internal/coordinator"
	"github.com/JakeFAU/crawlcoord/internal/crawler"
	"github.com/JakeFAU/crawlcoord/internal/progress"
	"github.com/JakeFAU/crawlcoord/internal/waitable"
)

// Crawler runs windowed pagination crawls against one PageFetcher. A Crawler
// is reusable; every Crawl call keeps its own window state.
type Crawler[T any] struct {
	fetcher PageFetcher[T]
	cfg     Config
	opts    options
	logger  *zap.Logger
}

// New creates a Crawler.
func New[T any](fetcher PageFetcher[T], cfg Config, opts ...Option) *Crawler[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler[T]{
		fetcher: fetcher,
		cfg:     cfg.withDefaults(),
		opts:    o,
		logger:  logger,
	}
}

// window is the pagination cursor of a single crawl.
type window struct {
	next      int
	pageCount int
	expected  int
}

func (w window) countKnown() bool { return w.pageCount != Unknown }

// exhausted reports whether no further batch is needed.
func (w window) exhausted(items int) bool {
	if w.countKnown() {
		return w.next > w.pageCount
	}
	return w.expected >= 0 && items >= w.expected
}

// span returns how many pages the next batch covers.
func (w window) span(size int) int {
	if w.countKnown() && w.pageCount-w.next+1 < size {
		return w.pageCount - w.next + 1
	}
	return size
}

// Crawl fetches the first page, then the remaining pages in windows, and
// returns the merged items. Only a failure of the first page (wrapping
// crawler.ErrMandatoryFetch) or a finished ctx produce an error.
func (c *Crawler[T]) Crawl(ctx context.Context) (Result[T], error) {
	scope, err := progress.StartScope(c.opts.emitter, c.opts.clock, c.opts.ids, c.opts.source)
	if err != nil {
		return Result[T]{PageCount: Unknown}, err
	}
	logger := c.logger.With(zap.String("crawl_id", scope.CrawlIDString()), zap.String("source", c.opts.source))
	started := scope.Now()
	scope.Emit(progress.Event{Stage: progress.StageCrawlStart})

	res, err := c.crawl(ctx, scope, logger)
	dur := scope.Now().Sub(started)
	if err != nil {
		scope.Emit(progress.Event{
			Stage:  progress.StageCrawlError,
			Kind:   crawler.Classify(err),
			Detail: err.Error(),
			Dur:    nonNegative(dur),
		})
		logger.Error("crawl failed", zap.Error(err))
		return res, err
	}
	scope.Emit(progress.Event{
		Stage: progress.StageCrawlDone,
		Items: int64(len(res.Items)),
		Dur:   nonNegative(dur),
	})
	logger.Info("crawl finished",
		zap.Int("items", len(res.Items)),
		zap.Int("pages_fetched", res.PagesFetched),
		zap.Ints("failed_pages", res.FailedPages),
		zap.Duration("dur", dur),
	)
	return res, nil
}

func (c *Crawler[T]) crawl(ctx context.Context, scope progress.Scope, logger *zap.Logger) (Result[T], error) {
	res := Result[T]{PageCount: Unknown}
	first := c.cfg.StartPage

	began := scope.Now()
	page, err := c.fetcher.FetchPage(ctx, first)
	if err != nil {
		scope.Failure(pageOp(first), progress.PhaseFirstPage, err, nonNegative(scope.Now().Sub(began)))
		return res, fmt.Errorf("fetch first page %d: %w: %w", first, crawler.ErrMandatoryFetch, err)
	}
	scope.Emit(progress.Event{
		Stage:     progress.StageOpDone,
		Operation: pageOp(first),
		Phase:     progress.PhaseFirstPage,
		Items:     int64(len(page.Items)),
		Dur:       nonNegative(scope.Now().Sub(began)),
	})
	res.Items = append(res.Items, page.Items...)
	res.PagesFetched = 1

	win := c.openWindow(first, page)
	res.PageCount = win.pageCount
	if !win.countKnown() && !page.Extent.Known() && len(page.Items) == 0 {
		logger.Debug("first page empty with unknown extent; nothing further to fetch")
		return res, nil
	}

	var partial *multierror.Error
	for batch := 1; !win.exhausted(len(res.Items)); batch++ {
		if batch > c.cfg.MaxBatches {
			scope.Emit(progress.Event{
				Stage:     progress.StageBoundReached,
				Operation: batchOp(batch),
				Phase:     progress.PhaseWindow,
				Detail:    fmt.Sprintf("stopped after %d batches at page %d", c.cfg.MaxBatches, win.next-1),
			})
			logger.Warn("batch safety bound reached", zap.Int("max_batches", c.cfg.MaxBatches), zap.Int("next_page", win.next))
			break
		}

		numbers := pageRange(win.next, win.span(c.cfg.WindowSize))
		res.Batches = append(res.Batches, numbers)
		outcomes, err := c.fetchBatch(ctx, scope, numbers)
		if err != nil {
			res.Partial = partial.ErrorOrNil()
			return res, fmt.Errorf("batch %d: %w", batch, err)
		}
		win.next += len(numbers)

		added, failed := 0, 0
		for i, o := range outcomes {
			n := numbers[i]
			if o.err != nil {
				failed++
				res.FailedPages = append(res.FailedPages, n)
				partial = multierror.Append(partial, fmt.Errorf("page %d: %w", n, o.err))
				scope.Failure(pageOp(n), progress.PhaseWindow, o.err, o.dur)
				logger.Warn("page fetch failed; dropping its items",
					zap.Int("page", n),
					zap.String("phase", string(progress.PhaseWindow)),
					zap.Error(o.err),
				)
				continue
			}
			res.PagesFetched++
			added += len(o.page.Items)
			res.Items = append(res.Items, o.page.Items...)
			scope.Emit(progress.Event{
				Stage:     progress.StageOpDone,
				Operation: pageOp(n),
				Phase:     progress.PhaseWindow,
				Items:     int64(len(o.page.Items)),
				Dur:       o.dur,
			})
		}

		if failed == len(numbers) {
			if !win.countKnown() {
				scope.Emit(progress.Event{
					Stage:     progress.StageInconclusive,
					Operation: batchOp(batch),
					Phase:     progress.PhaseWindow,
					Detail:    fmt.Sprintf("every page in %v failed with unknown extent", numbers),
				})
				logger.Warn("whole batch failed with unknown extent; stopping", zap.Ints("pages", numbers))
				break
			}
			if !win.exhausted(len(res.Items)) {
				scope.Emit(progress.Event{
					Stage:     progress.StageDataLoss,
					Operation: batchOp(batch),
					Phase:     progress.PhaseWindow,
					Detail:    fmt.Sprintf("every page in %v failed; %d pages remain", numbers, win.pageCount-win.next+1),
				})
				logger.Warn("whole batch failed; continuing with remaining pages",
					zap.Ints("pages", numbers),
					zap.Int("page_count", win.pageCount),
				)
			}
			continue
		}
		if !win.countKnown() && added == 0 {
			logger.Debug("batch yielded no items; end of data", zap.Ints("pages", numbers))
			break
		}
	}

	res.Partial = partial.ErrorOrNil()
	return res, nil
}

// openWindow derives the page count from the first page: an explicit last
// page wins, then ceil(total/pageSize); otherwise the count stays unknown.
// A known total also becomes the expected item count.
func (c *Crawler[T]) openWindow(first int, page Page[T]) window {
	win := window{next: first + 1, pageCount: Unknown, expected: -1}
	ext := page.Extent
	switch {
	case ext.HasLastPage:
		win.pageCount = max(ext.LastPage, first)
	case ext.HasTotal && c.cfg.PageSize > 0:
		win.pageCount = max(ceilDiv(ext.TotalCount, c.cfg.PageSize), first)
	}
	if ext.HasTotal && ext.TotalCount >= 0 {
		win.expected = ext.TotalCount
	}
	return win
}

type pageOutcome[T any] struct {
	page Page[T]
	err  error
	dur  time.Duration
}

// fetchBatch launches every page in numbers concurrently and waits for all of
// them. Outcomes are returned in the order of numbers.
func (c *Crawler[T]) fetchBatch(ctx context.Context, scope progress.Scope, numbers []int) ([]pageOutcome[T], error) {
	durations := make([]time.Duration, len(numbers))
	members := make([]*waitable.Waitable[Page[T]], len(numbers))
	for i, n := range numbers {
		members[i] = waitable.Go(ctx, n, func(ctx context.Context) (Page[T], error) {
			began := scope.Now()
			defer func() { durations[i] = nonNegative(scope.Now().Sub(began)) }()
			return c.fetcher.FetchPage(ctx, n)
		})
	}
	settled, err := coordinator.AllSettled(ctx, coordinator.Sequence(members...))
	if err != nil {
		return nil, err
	}
	outcomes := make([]pageOutcome[T], len(settled))
	for i, m := range settled {
		page, reason := m.Result()
		outcomes[i] = pageOutcome[T]{page: page, err: reason, dur: durations[i]}
	}
	return outcomes, nil
}

func pageRange(start, n int) []int {
	numbers := make([]int, n)
	for i := range numbers {
		numbers[i] = start + i
	}
	return numbers
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func pageOp(n int) string { return fmt.Sprintf("page:%d", n) }

func batchOp(n int) string { return fmt.Sprintf("batch:%d", n) }
