package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Throttle delays outbound requests so collaborators stay within their rate limits.
type Throttle interface {
	Wait(ctx context.Context, url string) error
}

// Hasher computes digests used as fallback canonical ids.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces crawl IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
