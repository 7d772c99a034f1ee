package jsonapi

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/crawlcoord/internal/crawler"
	"github.com/JakeFAU/crawlcoord/internal/crawlwindow"
	"github.com/JakeFAU/crawlcoord/internal/fanout"
)

// GroupResolver resolves one group document and crawls its member listing.
type GroupResolver struct {
	client *Client
	id     string
	window crawlwindow.Config
	opts   []crawlwindow.Option
}

// Group returns a resolver for group id. Member pages are crawled with window
// and opts.
func (c *Client) Group(id string, window crawlwindow.Config, opts ...crawlwindow.Option) *GroupResolver {
	if window.PageSize == 0 {
		window.PageSize = c.src.PageSize
	}
	return &GroupResolver{client: c, id: id, window: window, opts: opts}
}

// Name implements fanout.GroupResolver.
func (g *GroupResolver) Name() string {
	return g.client.src.Name + "/" + g.id
}

// Resolve implements fanout.GroupResolver. Only a failed group document fails
// the group. Member pages that fail, including the first one, are reported in
// Group.Partial and the group keeps the members that were listed.
func (g *GroupResolver) Resolve(ctx context.Context) (fanout.Group[string, Item], error) {
	u := expand(g.client.src.GroupURL, PlaceholderID, g.id)
	doc, err := g.client.get(ctx, u)
	if err != nil {
		return fanout.Group[string, Item]{}, err
	}
	if path := g.client.src.GroupItemPath; path != "" {
		doc = doc.Get(path)
		if !doc.Exists() {
			return fanout.Group[string, Item]{}, fmt.Errorf("decode %s: %s missing: %w", u, path, crawler.ErrParse)
		}
	}
	item, err := g.client.item(doc)
	if err != nil {
		return fanout.Group[string, Item]{}, fmt.Errorf("decode %s: %w", u, err)
	}
	if item.ID == "" {
		item.ID = g.id
	}

	opts := append(append([]crawlwindow.Option(nil), g.opts...), crawlwindow.WithSource(g.Name()))
	res, err := crawlwindow.New[Item](g.client.membersPager(g.id), g.window, opts...).Crawl(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fanout.Group[string, Item]{}, fmt.Errorf("crawl members of %s: %w", g.id, err)
		}
		g.client.logger.Warn("member listing failed; keeping group without members",
			zap.String("group", g.id),
			zap.Error(err),
		)
		return fanout.Group[string, Item]{
			ID:      item.ID,
			Value:   item,
			Partial: fmt.Errorf("crawl members of %s: %w", g.id, err),
		}, nil
	}
	members := make([]string, len(res.Items))
	for i, m := range res.Items {
		members[i] = m.ID
	}
	group := fanout.Group[string, Item]{ID: item.ID, Value: item, Members: members}
	if res.Partial != nil {
		group.Partial = fmt.Errorf("crawl members of %s: %w", g.id, res.Partial)
	}
	return group, nil
}
