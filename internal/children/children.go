// Package children implements the three child-enumeration policies the
// optimizer selects at build/config time.
package children

import (
	"github.com/armchr/ngcompress/internal/acceptedset"
	"github.com/armchr/ngcompress/internal/ngram"
)

// Policy selects how a target n-gram's sub-n-grams are enumerated, and
// what the orchestrator later stores in the accepted set after a step.
type Policy int

const (
	// FullRecursive returns every sub-n-gram of every order from 1 up to
	// n-1 along the left/right descent. The accepted set only ever tracks
	// identifiers under this policy (no reconstructed Freq is kept).
	FullRecursive Policy = iota
	// DirectChildren returns exactly [Left(g), Right(g)]. The accepted set
	// keeps reconstructed Freq so larger n-grams can use an already-accepted
	// n-gram's reconstruction directly as a regressor.
	DirectChildren
	// HighlySelective descends recursively but stops at any child already
	// present in the accepted set, treating it as a leaf.
	HighlySelective
)

// KeepsFrequency reports whether the accepted set built for p should retain
// reconstructed Freq vectors (true for DirectChildren) or bare identifiers.
func (p Policy) KeepsFrequency() bool {
	return p == DirectChildren
}

// Enumerate returns g's candidate children under policy p. accepted is
// consulted only by HighlySelective; it may be nil for the other policies.
func Enumerate(g ngram.NGram, p Policy, accepted *acceptedset.Set) []ngram.NGram {
	if g.Order() == 1 {
		return []ngram.NGram{g}
	}

	switch p {
	case DirectChildren:
		return []ngram.NGram{g.Left(), g.Right()}
	case HighlySelective:
		if !hasAcceptedDescendant(g, accepted) {
			// No descendant of this particular target is accepted yet, so
			// there is nothing to stop at: fall back to the same
			// self-including full-recursive expansion the default policy
			// uses.
			var out []ngram.NGram
			out = append(out, recurse(g.Left(), true)...)
			out = append(out, recurse(g.Right(), true)...)
			return out
		}
		var out []ngram.NGram
		expandSelective(g, accepted, &out)
		return out
	default: // FullRecursive
		var out []ngram.NGram
		out = append(out, recurse(g.Left(), true)...)
		out = append(out, recurse(g.Right(), true)...)
		return out
	}
}

// recurse implements the full-recursive descent: children(L), children(R),
// and (on non-root calls) g itself. The root call (include=false) excludes
// g from its own result.
func recurse(g ngram.NGram, include bool) []ngram.NGram {
	if g.Order() == 1 {
		return []ngram.NGram{g}
	}

	var out []ngram.NGram
	out = append(out, recurse(g.Left(), true)...)
	out = append(out, recurse(g.Right(), true)...)
	if include {
		out = append(out, g)
	}
	return out
}

// hasAcceptedDescendant reports whether any proper sub-n-gram of g (at any
// depth) is present in accepted.
func hasAcceptedDescendant(g ngram.NGram, accepted *acceptedset.Set) bool {
	if accepted == nil || g.Order() == 1 {
		return false
	}
	left, right := g.Left(), g.Right()
	if accepted.Contains(left) || accepted.Contains(right) {
		return true
	}
	return hasAcceptedDescendant(left, accepted) || hasAcceptedDescendant(right, accepted)
}

// expandSelective descends into g's left/right decomposition, but stops at
// any sub-n-gram already present in accepted, including it directly as a
// leaf instead of expanding further.
func expandSelective(g ngram.NGram, accepted *acceptedset.Set, out *[]ngram.NGram) {
	if g.Order() == 1 {
		*out = append(*out, g)
		return
	}

	right := g.Right()
	if accepted == nil || !accepted.Contains(right) {
		expandSelective(right, accepted, out)
	} else {
		*out = append(*out, right)
	}

	left := g.Left()
	if accepted == nil || !accepted.Contains(left) {
		expandSelective(left, accepted, out)
	} else {
		*out = append(*out, left)
	}
}
