// Package crawlwindow enumerates a paginated source whose extent is not known
// up front. The first page is mandatory and may reveal the extent; the rest
// are fetched in fixed-size windows of concurrent requests, each window
// awaited with coordinator.AllSettled. Failed pages are reported and dropped
// without aborting the crawl, and items are merged in ascending page order.
package crawlwindow
