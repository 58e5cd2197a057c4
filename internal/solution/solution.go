// Package solution defines the per-n-gram LP result and its bookkeeping.
package solution

import (
	"math"

	"github.com/armchr/ngcompress/internal/ngram"
)

// Coefficient pairs a child n-gram with its non-negative weight.
type Coefficient struct {
	Token       string
	Coefficient float64
}

// Solution is the outcome of trying to reconstruct one n-gram's frequency
// vector as a non-negative combination of its children's vectors.
//
// Invariant: Error == +Inf iff the target is a unigram, no child with a
// non-zero frequency vector remained, the LP failed to solve, or it
// produced all-zero coefficients.
type Solution struct {
	NGram        ngram.NGram
	Coefficients []Coefficient
	Original     ngram.Freq
	Calculated   ngram.Freq
	Error        float64
	RMSE         float64
	SummedError  float64
}

// Unsolved builds the Solution reported when g could not be compressed.
func Unsolved(g ngram.NGram, original ngram.Freq) Solution {
	return Solution{
		NGram:       g,
		Original:    original,
		Error:       math.Inf(1),
		RMSE:        math.Inf(1),
		SummedError: math.Inf(1),
	}
}

// Accepted reports whether s compresses within bound. NaN errors (from a
// zero-variance target) never satisfy <=, so they are correctly rejected.
func (s Solution) Accepted(bound float64) bool {
	return s.Error <= bound
}
