package jsonapi

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/crawlcoord/internal/crawlwindow"
)

// Pager serves one listing endpoint to crawlwindow.
type Pager struct {
	client *Client
	tmpl   string
}

// Pager returns a PageFetcher over the source's ListURL.
func (c *Client) Pager() *Pager {
	return &Pager{client: c, tmpl: c.src.ListURL}
}

// membersPager lists the members of group id.
func (c *Client) membersPager(id string) *Pager {
	return &Pager{client: c, tmpl: strings.ReplaceAll(c.src.MembersURL, PlaceholderID, url.QueryEscape(id))}
}

// FetchPage implements crawlwindow.PageFetcher.
func (p *Pager) FetchPage(ctx context.Context, number int) (crawlwindow.Page[Item], error) {
	u := expand(p.tmpl, PlaceholderPage, strconv.Itoa(number))
	doc, err := p.client.get(ctx, u)
	if err != nil {
		return crawlwindow.Page[Item]{}, err
	}
	items, err := p.client.items(doc, u)
	if err != nil {
		return crawlwindow.Page[Item]{}, err
	}
	var ext crawlwindow.Extent
	if n, ok := intAt(doc, p.client.src.TotalPath); ok {
		ext.TotalCount, ext.HasTotal = n, true
	}
	if n, ok := intAt(doc, p.client.src.LastPagePath); ok && n > 0 {
		ext.LastPage, ext.HasLastPage = n, true
	}
	return crawlwindow.Page[Item]{Items: items, Extent: ext}, nil
}
