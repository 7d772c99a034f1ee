package crawlwindow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/crawlcoord/internal/crawler"
	"github.com/JakeFAU/crawlcoord/internal/progress"
)

// fakeSite serves pages of perPage items numbered page*100+i and records
// every requested page.
type fakeSite struct {
	perPage int
	extent  Extent
	last    int // pages beyond last return no items
	fail    map[int]error

	calls atomic.Int32
	mu    sync.Mutex
	seen  []int
}

func (s *fakeSite) FetchPage(ctx context.Context, number int) (Page[int], error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.seen = append(s.seen, number)
	s.mu.Unlock()

	if err := s.fail[number]; err != nil {
		return Page[int]{}, err
	}
	var page Page[int]
	if number == 1 {
		page.Extent = s.extent
	}
	if number > s.last {
		return page, nil
	}
	for i := range s.perPage {
		page.Items = append(page.Items, number*100+i)
	}
	return page, nil
}

func transportErr(page int) error {
	return fmt.Errorf("GET /list?page=%d: %w", page, crawler.ErrTransport)
}

func itemsOf(pages ...int) []int {
	var out []int
	for _, p := range pages {
		out = append(out, p*100, p*100+1)
	}
	return out
}

// TestCrawlKnownLastPage fetches ten pages in windows of four.
func TestCrawlKnownLastPage(t *testing.T) {
	t.Parallel()

	site := &fakeSite{perPage: 2, extent: LastPageOf(10), last: 10}
	rec := progress.NewRecorder()
	res, err := New[int](site, Config{WindowSize: 4}, WithEmitter(rec), WithSource("fake")).Crawl(context.Background())
	require.NoError(t, err)

	require.Equal(t, [][]int{{2, 3, 4, 5}, {6, 7, 8, 9}, {10}}, res.Batches)
	require.EqualValues(t, 10, site.calls.Load())
	require.Equal(t, 10, res.PageCount)
	require.Equal(t, 10, res.PagesFetched)
	require.Equal(t, itemsOf(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), res.Items)
	require.Empty(t, res.FailedPages)
	require.NoError(t, res.Partial)

	require.Len(t, rec.ByStage(progress.StageCrawlStart), 1)
	done := rec.ByStage(progress.StageCrawlDone)
	require.Len(t, done, 1)
	require.EqualValues(t, 20, done[0].Items)
	require.Equal(t, "fake", done[0].Source)
	require.Len(t, rec.ByStage(progress.StageOpDone), 10)
}

// TestCrawlDropsFailedPage loses only the failed page's contribution.
func TestCrawlDropsFailedPage(t *testing.T) {
	t.Parallel()

	site := &fakeSite{
		perPage: 2,
		extent:  LastPageOf(10),
		last:    10,
		fail:    map[int]error{3: transportErr(3)},
	}
	rec := progress.NewRecorder()
	core, logs := observer.New(zap.WarnLevel)
	res, err := New[int](site, Config{WindowSize: 4}, WithEmitter(rec), WithLogger(zap.New(core))).Crawl(context.Background())
	require.NoError(t, err)

	require.Equal(t, itemsOf(1, 2, 4, 5, 6, 7, 8, 9, 10), res.Items)
	require.Equal(t, []int{3}, res.FailedPages)
	require.Equal(t, 9, res.PagesFetched)
	require.Error(t, res.Partial)
	require.ErrorIs(t, res.Partial, crawler.ErrTransport)

	failures := rec.ByStage(progress.StageOpError)
	require.Len(t, failures, 1)
	require.Equal(t, "page:3", failures[0].Operation)
	require.Equal(t, progress.PhaseWindow, failures[0].Phase)
	require.Equal(t, crawler.KindTransport, failures[0].Kind)
	require.Equal(t, 1, logs.FilterMessage("page fetch failed; dropping its items").Len())
}

// TestCrawlMandatoryFirstPage fails the whole crawl when page one fails.
func TestCrawlMandatoryFirstPage(t *testing.T) {
	t.Parallel()

	site := &fakeSite{perPage: 2, extent: LastPageOf(5), last: 5, fail: map[int]error{1: transportErr(1)}}
	rec := progress.NewRecorder()
	res, err := New[int](site, Config{}, WithEmitter(rec)).Crawl(context.Background())
	require.ErrorIs(t, err, crawler.ErrMandatoryFetch)
	require.ErrorIs(t, err, crawler.ErrTransport)
	require.Empty(t, res.Items)
	require.EqualValues(t, 1, site.calls.Load())

	crawlErr := rec.ByStage(progress.StageCrawlError)
	require.Len(t, crawlErr, 1)
	require.Equal(t, crawler.KindMandatory, crawlErr[0].Kind)
	opErr := rec.ByStage(progress.StageOpError)
	require.Len(t, opErr, 1)
	require.Equal(t, progress.PhaseFirstPage, opErr[0].Phase)
}

// TestCrawlDerivesPageCountFromTotal uses ceil(total/pageSize).
func TestCrawlDerivesPageCountFromTotal(t *testing.T) {
	t.Parallel()

	site := &fakeSite{perPage: 2, extent: TotalOf(9), last: 20}
	res, err := New[int](site, Config{WindowSize: 3, PageSize: 2}).Crawl(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, res.PageCount)
	require.Equal(t, [][]int{{2, 3, 4}, {5}}, res.Batches)
}

// TestCrawlUnknownExtentStopsOnEmptyBatch keeps going until a batch adds nothing.
func TestCrawlUnknownExtentStopsOnEmptyBatch(t *testing.T) {
	t.Parallel()

	site := &fakeSite{perPage: 2, last: 6}
	res, err := New[int](site, Config{WindowSize: 4}).Crawl(context.Background())
	require.NoError(t, err)
	require.Equal(t, Unknown, res.PageCount)
	require.Equal(t, [][]int{{2, 3, 4, 5}, {6, 7, 8, 9}, {10, 11, 12, 13}}, res.Batches)
	require.Equal(t, itemsOf(1, 2, 3, 4, 5, 6), res.Items)
}

// TestCrawlUnknownExtentEmptyFirstPage ends after the first page.
func TestCrawlUnknownExtentEmptyFirstPage(t *testing.T) {
	t.Parallel()

	site := &fakeSite{perPage: 2, last: 0}
	res, err := New[int](site, Config{}).Crawl(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Items)
	require.Empty(t, res.Batches)
	require.EqualValues(t, 1, site.calls.Load())
}

// TestCrawlStopsAtExpectedCount stops once the announced total is collected.
func TestCrawlStopsAtExpectedCount(t *testing.T) {
	t.Parallel()

	site := &fakeSite{perPage: 2, extent: TotalOf(6), last: 100}
	res, err := New[int](site, Config{WindowSize: 2}).Crawl(context.Background())
	require.NoError(t, err)
	require.Equal(t, Unknown, res.PageCount)
	require.Equal(t, [][]int{{2, 3}}, res.Batches)
	require.Len(t, res.Items, 6)
}

// TestCrawlInconclusiveBatch stops when every page of a batch fails and the
// extent is unknown.
func TestCrawlInconclusiveBatch(t *testing.T) {
	t.Parallel()

	site := &fakeSite{
		perPage: 1,
		last:    50,
		fail:    map[int]error{2: transportErr(2), 3: transportErr(3)},
	}
	rec := progress.NewRecorder()
	res, err := New[int](site, Config{WindowSize: 2}, WithEmitter(rec)).Crawl(context.Background())
	require.NoError(t, err)
	require.Equal(t, [][]int{{2, 3}}, res.Batches)
	require.Equal(t, []int{2, 3}, res.FailedPages)
	require.Len(t, rec.ByStage(progress.StageInconclusive), 1)
	require.Empty(t, rec.ByStage(progress.StageDataLoss))
}

// TestCrawlDataLossContinues keeps fetching after a fully failed batch when
// pages remain.
func TestCrawlDataLossContinues(t *testing.T) {
	t.Parallel()

	site := &fakeSite{
		perPage: 1,
		extent:  LastPageOf(7),
		last:    7,
		fail:    map[int]error{2: transportErr(2), 3: transportErr(3), 4: transportErr(4)},
	}
	rec := progress.NewRecorder()
	res, err := New[int](site, Config{WindowSize: 3}, WithEmitter(rec)).Crawl(context.Background())
	require.NoError(t, err)
	require.Equal(t, [][]int{{2, 3, 4}, {5, 6, 7}}, res.Batches)
	require.Equal(t, []int{100, 500, 600, 700}, res.Items)
	require.Len(t, rec.ByStage(progress.StageDataLoss), 1)

	var merr interface{ WrappedErrors() []error }
	require.ErrorAs(t, res.Partial, &merr)
	require.Len(t, merr.WrappedErrors(), 3)
}

// TestCrawlBatchBound stops at MaxBatches and warns.
func TestCrawlBatchBound(t *testing.T) {
	t.Parallel()

	site := &fakeSite{perPage: 1, last: 1_000_000}
	rec := progress.NewRecorder()
	core, logs := observer.New(zap.WarnLevel)
	res, err := New[int](site, Config{WindowSize: 2, MaxBatches: 3}, WithEmitter(rec), WithLogger(zap.New(core))).
		Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Batches, 3)
	require.Len(t, res.Items, 7)
	require.Len(t, rec.ByStage(progress.StageBoundReached), 1)
	require.Equal(t, 1, logs.FilterMessage("batch safety bound reached").Len())
}

// TestCrawlHonoursContext returns the context error while a batch is pending.
func TestCrawlHonoursContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	fetcher := PageFetcherFunc[int](func(ctx context.Context, number int) (Page[int], error) {
		if number == 1 {
			return Page[int]{Items: []int{1}, Extent: LastPageOf(3)}, nil
		}
		<-release
		return Page[int]{Items: []int{number}}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New[int](fetcher, Config{}).Crawl(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestCrawlerIsReusable runs the same crawler twice with independent windows.
func TestCrawlerIsReusable(t *testing.T) {
	t.Parallel()

	site := &fakeSite{perPage: 1, extent: LastPageOf(3), last: 3}
	c := New[int](site, Config{WindowSize: 4})
	for range 2 {
		res, err := c.Crawl(context.Background())
		require.NoError(t, err)
		require.Equal(t, []int{100, 200, 300}, res.Items)
	}
	require.EqualValues(t, 6, site.calls.Load())
}
