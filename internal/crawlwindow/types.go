package crawlwindow

import "context"

// Unknown marks a page count that could not be established.
const Unknown = -1

// Extent is the pagination metadata read from the first page. Either signal
// may be absent; absence of both leaves the extent unknown.
type Extent struct {
	TotalCount  int
	HasTotal    bool
	LastPage    int
	HasLastPage bool
}

// TotalOf reports an authoritative total item count.
func TotalOf(n int) Extent {
	return Extent{TotalCount: n, HasTotal: true}
}

// LastPageOf reports an explicit last page index.
func LastPageOf(n int) Extent {
	return Extent{LastPage: n, HasLastPage: true}
}

// Known reports whether any extent signal is present.
func (e Extent) Known() bool { return e.HasTotal || e.HasLastPage }

// Page is one fetched and parsed page.
type Page[T any] struct {
	Items  []T
	Extent Extent
}

// PageFetcher fetches and parses a single page by number. Implementations
// should wrap crawler.ErrTransport or crawler.ErrParse in their errors.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, number int) (Page[T], error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, number int) (Page[T], error)

// FetchPage implements PageFetcher.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, number int) (Page[T], error) {
	return f(ctx, number)
}

// Result is the merged outcome of one crawl.
type Result[T any] struct {
	// Items holds every successfully fetched item in page order.
	Items []T
	// PageCount is the last page index established from the first page, or Unknown.
	PageCount int
	// PagesFetched counts successful page fetches, the first page included.
	PagesFetched int
	// Batches lists the page numbers requested by each window.
	Batches [][]int
	// FailedPages lists the pages whose contribution was dropped.
	FailedPages []int
	// Partial aggregates the per-page failures; nil when nothing was dropped.
	Partial error
}
