package coordinator

import (
	"github.com/JakeFAU/crawlcoord/internal/waitable"
)

// NotApplicable is reported as the member index for unordered groups.
const NotApplicable = -1

// Group is an ordered sequence or an unordered set of borrowed waitables.
type Group[T any] struct {
	members []*waitable.Waitable[T]
	ordered bool
}

// Sequence builds an ordered group. Member positions are significant and
// duplicates are kept, so AllSettled returns one entry per position. The
// completion-ordered combinators yield a repeated member once, at its first
// position.
func Sequence[T any](members ...*waitable.Waitable[T]) Group[T] {
	return Group[T]{members: append([]*waitable.Waitable[T](nil), members...), ordered: true}
}

// Set builds an unordered group. Repeated members collapse into one; the
// first-seen order is kept as the group's stable internal order.
func Set[T any](members ...*waitable.Waitable[T]) Group[T] {
	seen := make(map[*waitable.Waitable[T]]struct{}, len(members))
	unique := make([]*waitable.Waitable[T], 0, len(members))
	for _, m := range members {
		if m == nil {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		unique = append(unique, m)
	}
	return Group[T]{members: unique}
}

// Len returns the number of members.
func (g Group[T]) Len() int { return len(g.members) }

// Ordered reports whether member indexes are meaningful.
func (g Group[T]) Ordered() bool { return g.ordered }

// Members returns a copy of the member list.
func (g Group[T]) Members() []*waitable.Waitable[T] {
	return append([]*waitable.Waitable[T](nil), g.members...)
}

func (g Group[T]) indexOf(pos int) int {
	if !g.ordered {
		return NotApplicable
	}
	return pos
}
