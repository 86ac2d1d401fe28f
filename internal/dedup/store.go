// Package dedup admits at most one business per identity key.
package dedup

import (
	"github.com/sells-group/mapscrap/internal/model"
)

// Store is an insertion-ordered set of businesses keyed by model.IdentityKey.
// The first record seen for a key wins; later duplicates are discarded whole.
// Store is owned by the sequential extraction phase and is not safe for
// concurrent use.
type Store struct {
	seen       map[model.IdentityKey]int
	businesses []model.Business
	rejected   int
}

// New creates an empty Store.
func New() *Store {
	return &Store{seen: make(map[model.IdentityKey]int)}
}

// Add admits b if its identity key has not been seen. Returns true when b was
// newly admitted.
func (s *Store) Add(b model.Business) bool {
	key := model.KeyOf(b)
	if _, ok := s.seen[key]; ok {
		s.rejected++
		return false
	}
	s.seen[key] = len(s.businesses)
	s.businesses = append(s.businesses, b)
	return true
}

// Len returns the number of admitted businesses.
func (s *Store) Len() int {
	return len(s.businesses)
}

// Rejected returns how many Add calls were discarded as duplicates.
func (s *Store) Rejected() int {
	return s.rejected
}

// Businesses returns a copy of the admitted businesses in admission order.
func (s *Store) Businesses() []model.Business {
	out := make([]model.Business, len(s.businesses))
	copy(out, s.businesses)
	return out
}
