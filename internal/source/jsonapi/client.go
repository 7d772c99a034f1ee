package jsonapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/JakeFAU/crawlcoord/internal/crawler"
)

// Item is one entity read from a JSON API.
type Item struct {
	ID    string          `json:"id"`
	Title string          `json:"title,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// Client performs throttled JSON requests for one Source.
type Client struct {
	src      Source
	fetcher  crawler.Fetcher
	throttle crawler.Throttle
	hasher   crawler.Hasher
	logger   *zap.Logger
}

// NewClient builds a Client. throttle may be nil; hasher identifies items
// that carry no id.
func NewClient(src Source, fetcher crawler.Fetcher, throttle crawler.Throttle, hasher crawler.Hasher, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		src:      src,
		fetcher:  fetcher,
		throttle: throttle,
		hasher:   hasher,
		logger:   logger.With(zap.String("source", src.Name)),
	}
}

// Source returns the client's source definition.
func (c *Client) Source() Source { return c.src }

// get fetches rawURL and returns its body once it is known to be valid JSON.
func (c *Client) get(ctx context.Context, rawURL string) (gjson.Result, error) {
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx, rawURL); err != nil {
			return gjson.Result{}, err
		}
	}
	resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{URL: rawURL, Headers: c.headers()})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return gjson.Result{}, fmt.Errorf("fetch %s: status %d: %w", rawURL, resp.StatusCode, crawler.ErrTransport)
	}
	if !gjson.ValidBytes(resp.Body) {
		return gjson.Result{}, fmt.Errorf("decode %s: invalid json: %w", rawURL, crawler.ErrParse)
	}
	c.logger.Debug("fetched document",
		zap.String("url", rawURL),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("dur", resp.Duration),
	)
	return gjson.ParseBytes(resp.Body), nil
}

func (c *Client) headers() http.Header {
	if len(c.src.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(c.src.Headers))
	for k, v := range c.src.Headers {
		h.Set(k, v)
	}
	return h
}

// items reads the item array at ItemsPath.
func (c *Client) items(doc gjson.Result, where string) ([]Item, error) {
	arr := doc.Get(c.src.ItemsPath)
	if !arr.Exists() {
		return nil, nil
	}
	if !arr.IsArray() {
		return nil, fmt.Errorf("decode %s: %s is not an array: %w", where, c.src.ItemsPath, crawler.ErrParse)
	}
	raw := arr.Array()
	out := make([]Item, 0, len(raw))
	for _, r := range raw {
		item, err := c.item(r)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", where, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// item converts one JSON value into an Item.
func (c *Client) item(r gjson.Result) (Item, error) {
	item := Item{Data: json.RawMessage(r.Raw)}
	if c.src.TitlePath != "" {
		item.Title = r.Get(c.src.TitlePath).String()
	}
	if c.src.IDPath != "" {
		if id := r.Get(c.src.IDPath); id.Exists() && id.String() != "" {
			item.ID = id.String()
			return item, nil
		}
	}
	if c.hasher == nil {
		return Item{}, fmt.Errorf("item without id and no hasher: %w", crawler.ErrParse)
	}
	digest, err := c.hasher.Hash([]byte(r.Raw))
	if err != nil {
		return Item{}, fmt.Errorf("hash item: %w", err)
	}
	item.ID = digest
	return item, nil
}

// countPattern matches the first number in a label such as "1,234 results",
// with optional thousands separators.
var countPattern = regexp.MustCompile(`[0-9]{1,3}(?:,[0-9]{3})+|[0-9]+`)

// intAt reads a non-negative integer at path. For strings the first number in
// the text is used, so "page 3 of 10" reads as 3.
func intAt(doc gjson.Result, path string) (int, bool) {
	if path == "" {
		return 0, false
	}
	v := doc.Get(path)
	if !v.Exists() {
		return 0, false
	}
	switch v.Type {
	case gjson.Number:
		if n := v.Int(); n >= 0 {
			return int(n), true
		}
	case gjson.String:
		digits := countPattern.FindString(v.String())
		if n, err := strconv.Atoi(strings.ReplaceAll(digits, ",", "")); err == nil {
			return n, true
		}
	}
	return 0, false
}

// expand fills a URL template. Values are query-escaped.
func expand(tmpl string, pairs ...string) string {
	escaped := make([]string, len(pairs))
	for i, p := range pairs {
		if i%2 == 0 {
			escaped[i] = p
			continue
		}
		escaped[i] = url.QueryEscape(p)
	}
	return strings.NewReplacer(escaped...).Replace(tmpl)
}
