package jsonapi

import (
	"context"
	"net/url"
	"strings"
)

// BatchFetcher fetches many entities by id in one request.
type BatchFetcher struct {
	client *Client
}

// Batch returns a fanout.StandaloneFetcher over the source's BatchURL.
func (c *Client) Batch() *BatchFetcher {
	return &BatchFetcher{client: c}
}

// FetchStandalone implements fanout.StandaloneFetcher. Returned items are
// keyed by their canonical id; ids the API omits are simply absent.
func (b *BatchFetcher) FetchStandalone(ctx context.Context, ids []string) (map[string]Item, error) {
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = url.QueryEscape(id)
	}
	u := strings.ReplaceAll(b.client.src.BatchURL, PlaceholderIDs, strings.Join(escaped, ","))
	doc, err := b.client.get(ctx, u)
	if err != nil {
		return nil, err
	}
	items, err := b.client.items(doc, u)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Item, len(items))
	for _, item := range items {
		if _, dup := out[item.ID]; !dup {
			out[item.ID] = item
		}
	}
	return out, nil
}
