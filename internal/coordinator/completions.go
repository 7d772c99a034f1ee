package coordinator

import (
	"context"
	"fmt"
	"iter"
	"reflect"

	"github.com/JakeFAU/crawlcoord/internal/waitable"
)

// Completions yields the members of a group in the order they settle. It is
// single-use: once drained or stopped it cannot be restarted, and it is not
// safe for concurrent use.
type Completions[T any] struct {
	group       Group[T]
	outstanding []int
	current     Settled[T]
	err         error
}

// AsCompleted creates a completion-ordered iterator over g.
func AsCompleted[T any](g Group[T]) *Completions[T] {
	outstanding := make([]int, g.Len())
	for i := range outstanding {
		outstanding[i] = i
	}
	return &Completions[T]{group: g, outstanding: outstanding}
}

// Next waits for the next member to settle. It returns false once every
// member has been yielded or ctx finishes; check Err to tell them apart.
func (c *Completions[T]) Next(ctx context.Context) bool {
	if c.err != nil || len(c.outstanding) == 0 {
		return false
	}
	for {
		if pos := c.earliestSettled(); pos >= 0 {
			c.take(pos)
			return true
		}
		if err := c.waitAny(ctx); err != nil {
			c.err = fmt.Errorf("as completed: %w", err)
			return false
		}
	}
}

// Settled returns the member produced by the last successful Next.
func (c *Completions[T]) Settled() Settled[T] { return c.current }

// Err returns the context error that stopped iteration, if any.
func (c *Completions[T]) Err() error { return c.err }

// Outstanding returns the number of members not yet yielded.
func (c *Completions[T]) Outstanding() int { return len(c.outstanding) }

// All adapts the iterator to a range-over-func sequence. Breaking out of the
// loop leaves the remaining members outstanding.
func (c *Completions[T]) All(ctx context.Context) iter.Seq[Settled[T]] {
	return func(yield func(Settled[T]) bool) {
		for c.Next(ctx) {
			if !yield(c.current) {
				return
			}
		}
	}
}

// earliestSettled returns the position in outstanding of the settled member
// with the lowest settle sequence, or -1 when none has settled.
func (c *Completions[T]) earliestSettled() int {
	best := -1
	var bestSeq uint64
	for pos, idx := range c.outstanding {
		m := c.group.members[idx]
		if !m.Settled() {
			continue
		}
		seq := m.Seq()
		if best < 0 || seq < bestSeq {
			best, bestSeq = pos, seq
		}
	}
	return best
}

// take yields the member at pos. Other positions holding the same member are
// retired with it, so a member is yielded once and never appears in Remaining.
func (c *Completions[T]) take(pos int) {
	idx := c.outstanding[pos]
	winner := c.group.members[idx]
	kept := c.outstanding[:0:0]
	remaining := make([]*waitable.Waitable[T], 0, len(c.outstanding))
	for _, i := range c.outstanding {
		if c.group.members[i] == winner {
			continue
		}
		kept = append(kept, i)
		remaining = append(remaining, c.group.members[i])
	}
	c.outstanding = kept
	c.current = Settled[T]{
		Member:    winner,
		Index:     c.group.indexOf(idx),
		Remaining: remaining,
	}
}

// waitAny blocks until at least one outstanding member settles.
func (c *Completions[T]) waitAny(ctx context.Context) error {
	cases := make([]reflect.SelectCase, 0, len(c.outstanding)+1)
	for _, idx := range c.outstanding {
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(c.group.members[idx].Done()),
		})
	}
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
	chosen, _, _ := reflect.Select(cases)
	if chosen == len(cases)-1 {
		return ctx.Err()
	}
	return nil
}
