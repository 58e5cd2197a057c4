// Package acceptedset holds the cross-pass set of n-grams previously
// accepted as compressible, plus (depending on policy) their reconstructed
// frequency vectors.
//
// The set is owned by the orchestrator and shared read-only with workers
// during a step; writers run only between steps. Membership
// checks are fronted by a Bloom filter: within one step, every worker's
// recursive child descent re-probes the same handful of accepted n-grams,
// so a cheap negative short-circuits the authoritative map lookup.
package acceptedset

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/armchr/ngcompress/internal/ngram"
)

// expectedEntries and falsePositiveFPR size the Bloom filter once, in New;
// it is not resized as the set grows, so beyond expectedEntries members its
// false-positive rate rises (Contains still confirms every positive against
// the members map).
const (
	expectedEntries  = 1 << 16
	falsePositiveFPR = 0.01
)

// Set is an immutable-during-a-step, mutable-between-steps view of the
// accepted n-grams and (optionally) their reconstructed Freq.
type Set struct {
	mu       sync.RWMutex
	filter   *bloom.BloomFilter
	members  map[ngram.NGram]struct{}
	reconstr map[ngram.NGram]ngram.Freq // populated only when keepFreq is true
	keepFreq bool
}

// New creates an empty accepted set. keepFreq controls whether accepted
// n-grams' reconstructed Freq is retained (needed by the direct-children
// policy, which folds the reconstruction into later children's frequency
// lookups instead of re-fetching from the loader; see
// children.Policy.KeepsFrequency).
func New(keepFreq bool) *Set {
	return &Set{
		filter:   bloom.NewWithEstimates(expectedEntries, falsePositiveFPR),
		members:  make(map[ngram.NGram]struct{}),
		reconstr: make(map[ngram.NGram]ngram.Freq),
		keepFreq: keepFreq,
	}
}

// Contains reports whether g has been accepted in a previous step.
func (s *Set) Contains(g ngram.NGram) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.filter.TestString(string(g)) {
		return false
	}
	_, ok := s.members[g]
	return ok
}

// Frequency returns g's reconstructed Freq and whether it was recorded
// (only possible when keepFreq is true and g was accepted).
func (s *Set) Frequency(g ngram.NGram) (ngram.Freq, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.reconstr[g]
	return f, ok
}

// Len returns the number of accepted n-grams.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Extend merges newly-accepted n-grams (and, if keepFreq, their
// reconstructed frequencies) into the set. Called by the orchestrator
// between steps; never called while workers hold a read-only view.
func (s *Set) Extend(accepted map[ngram.NGram]ngram.Freq) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for g, f := range accepted {
		s.members[g] = struct{}{}
		s.filter.AddString(string(g))
		if s.keepFreq {
			s.reconstr[g] = f
		}
	}
}

// FrequencyMap returns a copy of every accepted n-gram's reconstructed Freq.
// Only meaningful when keepFreq is true (direct-children policy); used by
// the orchestrator to fold already-compressed larger n-grams back in as
// regressors without re-querying the loader.
func (s *Set) FrequencyMap() map[ngram.NGram]ngram.Freq {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[ngram.NGram]ngram.Freq, len(s.reconstr))
	for g, f := range s.reconstr {
		out[g] = f
	}
	return out
}

// ZeroFrequencyMap returns {g: zero Freq} for every accepted g, used by the
// full-recursive policy to fill in the "treat accepted identifiers as
// present with a synthetic zero vector" case (it only needs
// identifiers, not reconstructions).
func (s *Set) ZeroFrequencyMap() map[ngram.NGram]ngram.Freq {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[ngram.NGram]ngram.Freq, len(s.members))
	for g := range s.members {
		out[g] = ngram.Freq{}
	}
	return out
}
