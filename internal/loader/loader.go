// Package loader abstracts the corpus's storage backend behind a narrow,
// total contract: count rows at a given n, page through them,
// and batch-resolve the frequencies a set of n-grams (plus their children)
// need. Two backends implement it — columnar files and an embedded SQL
// database — selected by the input path's extension.
package loader

import (
	"context"

	"github.com/armchr/ngcompress/internal/acceptedset"
	"github.com/armchr/ngcompress/internal/children"
	"github.com/armchr/ngcompress/internal/ngram"
)

// Chunk maps ngram string to Freq for a contiguous (offset, limit) window
// of rows at a given n. Unordered.
type Chunk map[ngram.NGram]ngram.Freq

// Loader is the polymorphic contract both backends satisfy.
type Loader interface {
	// Count returns the number of rows with order n.
	Count(ctx context.Context, n int) (uint64, error)

	// Slice returns a page of (ngram, freq) pairs ordered by the backend's
	// natural order, stable across paging calls within a run.
	Slice(ctx context.Context, limit, offset uint64, n int) (Chunk, error)

	// Frequencies returns a mapping containing, for every n-gram in chunk,
	// its Freq, plus for every child the enumerator produces over chunk's
	// keys under policy, its Freq. Missing children are omitted; callers
	// substitute an all-zero Freq.
	Frequencies(ctx context.Context, chunk Chunk, policy children.Policy, accepted *acceptedset.Set) (map[ngram.NGram]ngram.Freq, error)
}

// wantedChildren computes the set of n-grams Frequencies must resolve for
// chunk: every key plus every child the enumerator derives from it. Shared
// by both backends so they can't drift on what "needs a frequency" means.
func wantedChildren(chunk Chunk, policy children.Policy, accepted *acceptedset.Set) map[ngram.NGram]struct{} {
	wanted := make(map[ngram.NGram]struct{}, len(chunk)*4)
	for g := range chunk {
		wanted[g] = struct{}{}
		for _, c := range children.Enumerate(g, policy, accepted) {
			wanted[c] = struct{}{}
		}
	}
	return wanted
}

// groupByOrder partitions a set of n-grams by their token count, the way
// both backends need to batch per-n queries (one file directory per n, one
// SQL IN (...) predicate per n).
func groupByOrder(wanted map[ngram.NGram]struct{}) map[int][]ngram.NGram {
	byOrder := make(map[int][]ngram.NGram)
	for g := range wanted {
		n := g.Order()
		byOrder[n] = append(byOrder[n], g)
	}
	return byOrder
}
