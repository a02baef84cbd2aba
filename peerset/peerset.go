// Package peerset implements the Peer Registry: the set of known peer
// endpoints (host:port strings) a node gossips with.
package peerset

import "sync"

// Set is a concurrency-safe set of peer endpoints. Order is irrelevant and
// duplicates are forbidden, matching spec §3's Peer Registry description.
// It carries its own mutex because it is accessed both from HTTP handlers
// adding/removing peers and from the gossip client snapshotting the set
// before outbound calls (spec §5: never hold the ledger lock during peer
// I/O, so the peer set is addressable without going through the ledger).
type Set struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

// New returns an empty peer set.
func New() *Set {
	return &Set{members: make(map[string]struct{})}
}

// Add inserts endpoint into the set. Adding an already-known endpoint is a
// no-op.
func (s *Set) Add(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[endpoint] = struct{}{}
}

// Remove deletes endpoint from the set, if present.
func (s *Set) Remove(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, endpoint)
}

// List returns a snapshot of the peer endpoints. The returned slice is
// owned by the caller; mutating it does not affect the set.
func (s *Set) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.members))
	for endpoint := range s.members {
		out = append(out, endpoint)
	}
	return out
}

// ReplaceAll discards the current membership and replaces it with
// endpoints. Used when restoring peers from persisted state.
func (s *Set) ReplaceAll(endpoints []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = make(map[string]struct{}, len(endpoints))
	for _, e := range endpoints {
		s.members[e] = struct{}{}
	}
}
