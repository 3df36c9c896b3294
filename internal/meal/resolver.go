package meal

import "sync"

// Resolver caches the parsed eligible set per plan so the free text is
// parsed once per plan load rather than on every eligibility check.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]Set
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string]Set)}
}

// Resolve returns the eligible set for the plan, parsing and caching
// mealsText on first sight of planID. Plans without an id are parsed
// every time.
func (r *Resolver) Resolve(planID, mealsText string) Set {
	if planID == "" {
		return ParsePlanMeals(mealsText)
	}
	r.mu.RLock()
	s, ok := r.cache[planID]
	r.mu.RUnlock()
	if ok {
		return s
	}
	s = ParsePlanMeals(mealsText)
	r.mu.Lock()
	r.cache[planID] = s
	r.mu.Unlock()
	return s
}

// Invalidate drops a plan from the cache, e.g. after its meal text is
// edited.
func (r *Resolver) Invalidate(planID string) {
	r.mu.Lock()
	delete(r.cache, planID)
	r.mu.Unlock()
}
