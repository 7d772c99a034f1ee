package fanout

import "context"

// Entry is one de-duplicated output item. The concrete type is either
// FromGroup or FromStandalone; consumers switch on it exhaustively.
type Entry[K comparable, E any] interface {
	// Key returns the canonical id the entry was claimed under.
	Key() K
	// Item returns the resolved entity.
	Item() E

	sealed()
}

// FromGroup is an entity produced by the grouping phase. It owns Members.
type FromGroup[K comparable, E any] struct {
	ID      K
	Value   E
	Members []K
	// Resolver is the Name of the GroupResolver that produced the entity.
	Resolver string
}

// Key implements Entry.
func (g FromGroup[K, E]) Key() K { return g.ID }

// Item implements Entry.
func (g FromGroup[K, E]) Item() E { return g.Value }

func (FromGroup[K, E]) sealed() {}

// FromStandalone is an entity fetched in the standalone phase.
type FromStandalone[K comparable, E any] struct {
	ID    K
	Value E
	// Chunk is the zero-based index of the bulk request that returned it.
	Chunk int
}

// Key implements Entry.
func (s FromStandalone[K, E]) Key() K { return s.ID }

// Item implements Entry.
func (s FromStandalone[K, E]) Item() E { return s.Value }

func (FromStandalone[K, E]) sealed() {}

// Group is the outcome of resolving one grouping sub-crawl.
type Group[K comparable, E any] struct {
	ID      K
	Value   E
	Members []K
	// Partial reports members that could not be listed. The group itself is
	// still claimed with whatever Members were found.
	Partial error
}

// GroupResolver resolves an entity that owns a group of members, for example
// a series and its chapters.
type GroupResolver[K comparable, E any] interface {
	Name() string
	Resolve(ctx context.Context) (Group[K, E], error)
}

// StandaloneFetcher fetches many standalone entities in one request. Ids
// absent from the returned map are reported as missing.
type StandaloneFetcher[K comparable, E any] interface {
	FetchStandalone(ctx context.Context, ids []K) (map[K]E, error)
}

// Plan describes one fan-out run.
type Plan[K comparable, E any] struct {
	Groups     []GroupResolver[K, E]
	Candidates []K
	Standalone StandaloneFetcher[K, E]
}
