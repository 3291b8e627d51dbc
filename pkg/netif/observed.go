package netif

// ObservedState caches the last-observed record per interface for one run.
// Setters advance it after every mutation, so later steps see the state
// the run has produced.
type ObservedState struct {
	records map[string]*InterfaceRecord
	order   []string
}

// NewObservedState returns an empty cache.
func NewObservedState() *ObservedState {
	return &ObservedState{records: make(map[string]*InterfaceRecord)}
}

// Get returns the cached record for name.
func (s *ObservedState) Get(name string) (*InterfaceRecord, bool) {
	r, ok := s.records[name]
	return r, ok
}

// Put stores r, replacing any record with the same name.
func (s *ObservedState) Put(r *InterfaceRecord) {
	if _, ok := s.records[r.Name]; !ok {
		s.order = append(s.order, r.Name)
	}
	s.records[r.Name] = r
}

// Clear forgets name, as after a destroy.
func (s *ObservedState) Clear(name string) {
	if _, ok := s.records[name]; !ok {
		return
	}
	delete(s.records, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Present reports whether name is cached as existing.
func (s *ObservedState) Present(name string) bool {
	r, ok := s.records[name]
	return ok && r.Present
}

// Records returns the cached records in discovery order.
func (s *ObservedState) Records() []*InterfaceRecord {
	out := make([]*InterfaceRecord, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.records[n])
	}
	return out
}
