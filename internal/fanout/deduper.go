package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/JakeFAU/crawlcoord/internal/coordinator"
	"github.com/JakeFAU/crawlcoord/internal/crawler"
	"github.com/JakeFAU/crawlcoord/internal/progress"
	"github.com/JakeFAU/crawlcoord/internal/waitable"
)

// ErrNoStandaloneFetcher is returned when a plan lists candidates but no
// fetcher for them.
var ErrNoStandaloneFetcher = errors.New("plan has candidates but no standalone fetcher")

// Result is the merged outcome of one run.
type Result[K comparable, E any] struct {
	// Entries is in first-claim order: grouping entries precede standalone ones.
	Entries []Entry[K, E]
	// Duplicates counts claims dropped because the id was already owned.
	Duplicates int
	// Missing lists requested standalone ids absent from their response.
	Missing []K
	// Partial aggregates failed resolvers and chunks; nil when none failed.
	Partial error
}

// Deduper runs fan-out plans.
type Deduper[K comparable, E any] struct {
	cfg    Config
	opts   options
	logger *zap.Logger
}

// New creates a Deduper.
func New[K comparable, E any](cfg Config, opts ...Option) *Deduper[K, E] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper[K, E]{cfg: cfg.withDefaults(), opts: o, logger: logger}
}

// run carries the per-invocation state of Run.
type run[K comparable, E any] struct {
	scope    progress.Scope
	logger   *zap.Logger
	registry *Registry[K, E]
	result   Result[K, E]
	partial  *multierror.Error
}

// Run executes plan. Individual resolver or chunk failures are recorded in
// Result.Partial; Run itself fails only for an invalid plan or a finished ctx.
func (d *Deduper[K, E]) Run(ctx context.Context, plan Plan[K, E]) (Result[K, E], error) {
	if len(plan.Candidates) > 0 && plan.Standalone == nil {
		return Result[K, E]{}, ErrNoStandaloneFetcher
	}
	scope, err := progress.StartScope(d.opts.emitter, d.opts.clock, d.opts.ids, d.opts.source)
	if err != nil {
		return Result[K, E]{}, err
	}
	r := &run[K, E]{
		scope:    scope,
		logger:   d.logger.With(zap.String("crawl_id", scope.CrawlIDString()), zap.String("source", d.opts.source)),
		registry: NewRegistry[K, E](),
	}
	started := scope.Now()
	scope.Emit(progress.Event{Stage: progress.StageCrawlStart})

	err = d.group(ctx, r, plan.Groups)
	if err == nil {
		err = d.standalone(ctx, r, plan.Standalone, plan.Candidates)
	}
	r.result.Partial = r.partial.ErrorOrNil()
	dur := max(scope.Now().Sub(started), 0)
	if err != nil {
		scope.Emit(progress.Event{
			Stage:  progress.StageCrawlError,
			Kind:   crawler.Classify(err),
			Detail: err.Error(),
			Dur:    dur,
		})
		return r.result, err
	}
	scope.Emit(progress.Event{
		Stage: progress.StageCrawlDone,
		Items: int64(len(r.result.Entries)),
		Dur:   dur,
	})
	r.logger.Info("fan-out finished",
		zap.Int("entries", len(r.result.Entries)),
		zap.Int("duplicates", r.result.Duplicates),
		zap.Int("missing", len(r.result.Missing)),
		zap.Duration("dur", dur),
	)
	return r.result, nil
}

type timed[T any] struct {
	value T
	dur   time.Duration
}

// launch starts fn on its own Waitable and records its latency.
func launch[T any](ctx context.Context, scope progress.Scope, payload any, fn func(context.Context) (T, error)) *waitable.Waitable[timed[T]] {
	return waitable.Go(ctx, payload, func(ctx context.Context) (timed[T], error) {
		began := scope.Now()
		v, err := fn(ctx)
		dur := max(scope.Now().Sub(began), 0)
		if err != nil {
			return timed[T]{dur: dur}, &timedError{err: err, dur: dur}
		}
		return timed[T]{value: v, dur: dur}, nil
	})
}

type timedError struct {
	err error
	dur time.Duration
}

func (e *timedError) Error() string { return e.err.Error() }
func (e *timedError) Unwrap() error { return e.err }

// untime separates the latency recorded by launch from a failure.
func untime(err error) (time.Duration, error) {
	var te *timedError
	if errors.As(err, &te) {
		return te.dur, te.err
	}
	return 0, err
}

// group resolves every group concurrently, then claims the results in input
// order: the group id first, then each member as owned by the group.
func (d *Deduper[K, E]) group(ctx context.Context, r *run[K, E], resolvers []GroupResolver[K, E]) error {
	if len(resolvers) == 0 {
		return nil
	}
	members := make([]*waitable.Waitable[timed[Group[K, E]]], len(resolvers))
	for i, res := range resolvers {
		members[i] = launch(ctx, r.scope, res.Name(), res.Resolve)
	}
	settled, err := coordinator.AllSettled(ctx, coordinator.Sequence(members...))
	if err != nil {
		return fmt.Errorf("grouping phase: %w", err)
	}

	for i, m := range settled {
		name := resolvers[i].Name()
		op := "group:" + name
		out, reason := m.Result()
		if reason != nil {
			dur, cause := untime(reason)
			r.partial = multierror.Append(r.partial, fmt.Errorf("group %s: %w", name, cause))
			r.scope.Failure(op, progress.PhaseGrouping, cause, dur)
			r.logger.Warn("group resolver failed; excluding it",
				zap.String("resolver", name),
				zap.String("phase", string(progress.PhaseGrouping)),
				zap.Error(cause),
			)
			continue
		}
		g := out.value
		entry, dropped, ok := r.registry.ClaimGroup(g.ID, g.Members, func(claimed []K) Entry[K, E] {
			var members []K
			if len(claimed) > 0 {
				members = claimed
			}
			return FromGroup[K, E]{ID: g.ID, Value: g.Value, Members: members, Resolver: name}
		})
		if !ok {
			r.duplicate(op, progress.PhaseGrouping, g.ID, entry)
			continue
		}
		for _, id := range dropped {
			owner, _ := r.registry.Owner(id)
			r.duplicate(op, progress.PhaseGrouping, id, owner)
		}
		claimed := entry.(FromGroup[K, E])
		if g.Partial != nil {
			r.partial = multierror.Append(r.partial, fmt.Errorf("group %s members: %w", name, g.Partial))
			r.scope.Emit(progress.Event{
				Stage:     progress.StageDataLoss,
				Operation: op,
				Phase:     progress.PhaseGrouping,
				Kind:      crawler.Classify(g.Partial),
				Detail:    g.Partial.Error(),
			})
			r.logger.Warn("group members incomplete; keeping the group",
				zap.String("resolver", name),
				zap.Int("members", len(claimed.Members)),
				zap.Error(g.Partial),
			)
		}
		r.result.Entries = append(r.result.Entries, claimed)
		r.scope.Emit(progress.Event{
			Stage:     progress.StageOpDone,
			Operation: op,
			Phase:     progress.PhaseGrouping,
			Items:     int64(len(claimed.Members)),
			Dur:       out.dur,
		})
	}
	return nil
}

// standalone fetches the unclaimed candidates in chunks of BatchSize,
// MaxInFlight chunks per round.
func (d *Deduper[K, E]) standalone(ctx context.Context, r *run[K, E], fetcher StandaloneFetcher[K, E], candidates []K) error {
	pending := r.unclaimed(candidates)
	if len(pending) == 0 {
		return nil
	}
	chunks := chunk(pending, d.cfg.BatchSize)
	r.logger.Debug("standalone phase",
		zap.Int("candidates", len(candidates)),
		zap.Int("unclaimed", len(pending)),
		zap.Int("chunks", len(chunks)),
	)

	for start := 0; start < len(chunks); start += d.cfg.MaxInFlight {
		round := chunks[start:min(start+d.cfg.MaxInFlight, len(chunks))]
		members := make([]*waitable.Waitable[timed[map[K]E]], len(round))
		for i, ids := range round {
			members[i] = launch(ctx, r.scope, start+i, func(ctx context.Context) (map[K]E, error) {
				return fetcher.FetchStandalone(ctx, ids)
			})
		}
		settled, err := coordinator.AllSettled(ctx, coordinator.Sequence(members...))
		if err != nil {
			return fmt.Errorf("standalone phase: %w", err)
		}
		for i, m := range settled {
			r.claimChunk(start+i, round[i], m)
		}
	}
	return nil
}

func (r *run[K, E]) claimChunk(index int, ids []K, m *waitable.Waitable[timed[map[K]E]]) {
	op := fmt.Sprintf("chunk:%d", index)
	out, reason := m.Result()
	if reason != nil {
		dur, cause := untime(reason)
		r.partial = multierror.Append(r.partial, fmt.Errorf("chunk %d: %w", index, cause))
		r.scope.Failure(op, progress.PhaseStandalone, cause, dur)
		r.logger.Warn("standalone chunk failed; excluding it",
			zap.Int("chunk", index),
			zap.Int("ids", len(ids)),
			zap.String("phase", string(progress.PhaseStandalone)),
			zap.Error(cause),
		)
		return
	}

	claimed := 0
	for _, id := range ids {
		item, ok := out.value[id]
		if !ok {
			r.result.Missing = append(r.result.Missing, id)
			r.scope.Emit(progress.Event{
				Stage:     progress.StageMissing,
				Operation: op,
				Phase:     progress.PhaseStandalone,
				Detail:    fmt.Sprintf("id %v missing in response", id),
			})
			r.logger.Warn("id missing in response", zap.Int("chunk", index), zap.Any("id", id))
			continue
		}
		entry := FromStandalone[K, E]{ID: id, Value: item, Chunk: index}
		if owner, ok := r.registry.Claim(id, entry); !ok {
			r.duplicate(op, progress.PhaseStandalone, id, owner)
			continue
		}
		r.result.Entries = append(r.result.Entries, entry)
		claimed++
	}
	r.scope.Emit(progress.Event{
		Stage:     progress.StageOpDone,
		Operation: op,
		Phase:     progress.PhaseStandalone,
		Items:     int64(claimed),
		Dur:       out.dur,
	})
}

// unclaimed drops candidates that are already owned or repeated.
func (r *run[K, E]) unclaimed(candidates []K) []K {
	seen := make(map[K]struct{}, len(candidates))
	out := make([]K, 0, len(candidates))
	for _, id := range candidates {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if owner, ok := r.registry.Owner(id); ok {
			r.duplicate("candidate", progress.PhaseStandalone, id, owner)
			continue
		}
		out = append(out, id)
	}
	return out
}

func (r *run[K, E]) duplicate(op string, phase progress.Phase, id K, owner Entry[K, E]) {
	r.result.Duplicates++
	detail := fmt.Sprintf("id %v already claimed by %v", id, owner.Key())
	r.scope.Emit(progress.Event{
		Stage:     progress.StageDuplicate,
		Operation: op,
		Phase:     phase,
		Detail:    detail,
	})
	r.logger.Debug("dropping duplicate claim", zap.String("operation", op), zap.String("detail", detail))
}

func chunk[K any](ids []K, size int) [][]K {
	var out [][]K
	for size < len(ids) {
		ids, out = ids[size:], append(out, ids[:size:size])
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
