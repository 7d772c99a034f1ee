package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/crawlcoord/internal/fanout"
	"github.com/JakeFAU/crawlcoord/internal/metrics"
	"github.com/JakeFAU/crawlcoord/internal/source/jsonapi"
)

// Entry origins.
const (
	OriginGroup      = "group"
	OriginStandalone = "standalone"
)

// FanoutRequest resolves Groups of a source and then fetches the Candidates
// no group claimed.
type FanoutRequest struct {
	Source     string   `json:"source"`
	Groups     []string `json:"groups"`
	Candidates []string `json:"candidates"`
	BatchSize  int      `json:"batch_size,omitempty"`
}

// FanoutEntry is the JSON form of a fanout.Entry.
type FanoutEntry struct {
	ID       string       `json:"id"`
	Origin   string       `json:"origin"`
	Item     jsonapi.Item `json:"item"`
	Members  []string     `json:"members,omitempty"`
	Resolver string       `json:"resolver,omitempty"`
	Chunk    *int         `json:"chunk,omitempty"`
}

// FanoutResult is the JSON form of a fanout.Result.
type FanoutResult struct {
	Source     string        `json:"source"`
	Entries    []FanoutEntry `json:"entries"`
	Duplicates int           `json:"duplicates"`
	Missing    []string      `json:"missing,omitempty"`
	Errors     []string      `json:"errors,omitempty"`
}

// RunFanout merges the groups and candidates of req.Source.
func (a *App) RunFanout(ctx context.Context, req FanoutRequest) (FanoutResult, error) {
	if len(req.Groups) == 0 && len(req.Candidates) == 0 {
		return FanoutResult{}, fmt.Errorf("%w: groups or candidates required", ErrInvalidRequest)
	}
	if req.BatchSize < 0 {
		return FanoutResult{}, fmt.Errorf("%w: batch_size must not be negative", ErrInvalidRequest)
	}
	client, err := a.client(req.Source)
	if err != nil {
		return FanoutResult{}, err
	}
	src := client.Source()
	if len(req.Groups) > 0 && src.GroupURL == "" {
		return FanoutResult{}, fmt.Errorf("%w: %s has no group_url", ErrUnsupported, src.Name)
	}
	if len(req.Candidates) > 0 && src.BatchURL == "" {
		return FanoutResult{}, fmt.Errorf("%w: %s has no batch_url", ErrUnsupported, src.Name)
	}

	plan := fanout.Plan[string, jsonapi.Item]{Candidates: req.Candidates}
	for _, id := range req.Groups {
		plan.Groups = append(plan.Groups, client.Group(id, a.cfg.Window, a.windowOptions(src.Name)...))
	}
	if len(req.Candidates) > 0 {
		plan.Standalone = client.Batch()
	}

	cfg := a.cfg.Fanout
	if req.BatchSize > 0 {
		cfg.BatchSize = req.BatchSize
	}

	ctx, cancel := a.runContext(ctx)
	defer cancel()
	defer metrics.TrackRun("fanout")()

	d := fanout.New[string, jsonapi.Item](cfg,
		fanout.WithLogger(a.logger.With(zap.String("component", "fanout"))),
		fanout.WithEmitter(a.emitter),
		fanout.WithClock(a.clock),
		fanout.WithIDGenerator(a.ids),
		fanout.WithSource(src.Name),
	)
	res, err := d.Run(ctx, plan)
	if err != nil {
		return FanoutResult{}, fmt.Errorf("fan-out %s: %w", src.Name, err)
	}

	out := FanoutResult{
		Source:     src.Name,
		Entries:    make([]FanoutEntry, 0, len(res.Entries)),
		Duplicates: res.Duplicates,
		Missing:    res.Missing,
		Errors:     errorStrings(res.Partial),
	}
	for _, e := range res.Entries {
		out.Entries = append(out.Entries, toEntry(e))
	}
	return out, nil
}

func toEntry(e fanout.Entry[string, jsonapi.Item]) FanoutEntry {
	switch v := e.(type) {
	case fanout.FromGroup[string, jsonapi.Item]:
		return FanoutEntry{ID: v.ID, Origin: OriginGroup, Item: v.Value, Members: v.Members, Resolver: v.Resolver}
	case fanout.FromStandalone[string, jsonapi.Item]:
		chunk := v.Chunk
		return FanoutEntry{ID: v.ID, Origin: OriginStandalone, Item: v.Value, Chunk: &chunk}
	default:
		panic(fmt.Sprintf("unexpected fanout entry %T", e))
	}
}
