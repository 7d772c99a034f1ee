package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/crawlcoord/internal/waitable"
)

// ErrEmptyGroup is returned by First when there is nothing that could settle.
var ErrEmptyGroup = errors.New("coordinator: empty group")

// Settled describes one member that has left the pending state.
type Settled[T any] struct {
	// Member is the settled waitable.
	Member *waitable.Waitable[T]
	// Index is the member's input position, or NotApplicable for sets.
	Index int
	// Remaining lists the other members that had not been yielded yet.
	Remaining []*waitable.Waitable[T]
}

// First returns the first member to settle, fulfilled or rejected alike.
// Losing members keep running.
func First[T any](ctx context.Context, g Group[T]) (*waitable.Waitable[T], error) {
	settled, err := FirstFull(ctx, g)
	if err != nil {
		return nil, err
	}
	return settled.Member, nil
}

// FirstFull is First reporting the winner's index and the |g|-1 other members.
func FirstFull[T any](ctx context.Context, g Group[T]) (Settled[T], error) {
	if g.Len() == 0 {
		return Settled[T]{}, ErrEmptyGroup
	}
	it := AsCompleted(g)
	if !it.Next(ctx) {
		return Settled[T]{}, fmt.Errorf("first settled: %w", it.Err())
	}
	return it.Settled(), nil
}

// AllSettled blocks until every member has settled and returns the members in
// group order. Member rejections never fail the call; only ctx can.
func AllSettled[T any](ctx context.Context, g Group[T]) ([]*waitable.Waitable[T], error) {
	for _, m := range g.members {
		select {
		case <-m.Done():
		case <-ctx.Done():
			return nil, fmt.Errorf("all settled: %w", ctx.Err())
		}
	}
	return g.Members(), nil
}
