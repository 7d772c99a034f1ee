package fanout

import "sync"

// Registry maps canonical ids to the entry that owns them. Entries are never
// replaced once claimed.
type Registry[K comparable, E any] struct {
	mu     sync.Mutex
	owners map[K]Entry[K, E]
}

// NewRegistry creates an empty Registry.
func NewRegistry[K comparable, E any]() *Registry[K, E] {
	return &Registry[K, E]{owners: make(map[K]Entry[K, E])}
}

// Claim registers owner for id unless id is already claimed. It reports the
// current owner and whether this call made the claim.
func (r *Registry[K, E]) Claim(id K, owner Entry[K, E]) (Entry[K, E], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.owners[id]; ok {
		return existing, false
	}
	r.owners[id] = owner
	return owner, true
}

// Owner returns the entry owning id.
func (r *Registry[K, E]) Owner(id K) (Entry[K, E], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.owners[id]
	return e, ok
}

// ClaimGroup claims id and then each of members under a single lock. build
// receives the members this call claimed and returns the entry stored for id
// and for every one of them, so each owner lookup sees the complete entry.
// When id is already owned nothing is claimed and the existing owner is
// returned. dropped lists members that were owned before this call or
// repeated; a member equal to id is ignored.
func (r *Registry[K, E]) ClaimGroup(id K, members []K, build func(claimed []K) Entry[K, E]) (owner Entry[K, E], dropped []K, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, owned := r.owners[id]; owned {
		return existing, nil, false
	}
	claimed := make([]K, 0, len(members))
	taken := make(map[K]struct{}, len(members))
	for _, m := range members {
		if m == id {
			continue
		}
		if _, repeated := taken[m]; repeated {
			dropped = append(dropped, m)
			continue
		}
		if _, owned := r.owners[m]; owned {
			dropped = append(dropped, m)
			continue
		}
		taken[m] = struct{}{}
		claimed = append(claimed, m)
	}
	owner = build(claimed)
	r.owners[id] = owner
	for _, m := range claimed {
		r.owners[m] = owner
	}
	return owner, dropped, true
}

// Len returns the number of claimed ids.
func (r *Registry[K, E]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners)
}
