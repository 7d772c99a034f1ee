package crawler

import (
	"net/http"
	"time"
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	CrawlID string
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
