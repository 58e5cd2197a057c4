// Package lpbuilder, given one target n-gram, its known Freq, and a map of
// known children frequencies, builds and solves the Chebyshev LP and
// reports a Solution.
package lpbuilder

import (
	"github.com/armchr/ngcompress/internal/acceptedset"
	"github.com/armchr/ngcompress/internal/children"
	"github.com/armchr/ngcompress/internal/lpsolver"
	"github.com/armchr/ngcompress/internal/mathkernels"
	"github.com/armchr/ngcompress/internal/ngram"
	"github.com/armchr/ngcompress/internal/solution"
)

// MinimizeAbsError runs the full build-solve-report pipeline for g.
//
//  1. A unigram has no sub-n-gram decomposition and is always unsolved.
//  2. Enumerate g's children under policy.
//  3. Drop children whose frequency is entirely zero (missing from source).
//     If none remain, return an unsolved Solution.
//  4. Build and solve the LP; on solver failure or all-zero coefficients,
//     return unsolved.
//  5. Reconstruct, z-normalize against the target, and report error stats.
func MinimizeAbsError(g ngram.NGram, frequencies map[ngram.NGram]ngram.Freq, policy children.Policy, accepted *acceptedset.Set) solution.Solution {
	y, ok := frequencies[g]
	if !ok {
		y = ngram.Freq{}
	}

	if g.Order() == 1 {
		return solution.Unsolved(g, y)
	}

	candidates := children.Enumerate(g, policy, accepted)

	var kept []ngram.NGram
	var freqs []ngram.Freq
	for _, child := range candidates {
		f, ok := frequencies[child]
		if !ok {
			f = ngram.Freq{} // missing children are treated as the zero vector
		}
		if f.IsZero() {
			continue
		}
		kept = append(kept, child)
		freqs = append(freqs, f)
	}

	if len(kept) == 0 {
		return solution.Unsolved(g, y)
	}

	res := lpsolver.Solve(y, freqs)
	if !res.Feasible {
		return solution.Unsolved(g, y)
	}

	var coefs []solution.Coefficient
	var calculated ngram.Freq
	for i, c := range res.Coefficients {
		if c == 0 {
			continue
		}
		coefs = append(coefs, solution.Coefficient{Token: string(kept[i]), Coefficient: c})
		calculated = calculated.Add(freqs[i].Scale(c))
	}

	if len(coefs) == 0 {
		return solution.Unsolved(g, y)
	}

	yNorm, calcNorm := mathkernels.ZNormalize(y[:], calculated[:])

	return solution.Solution{
		NGram:        g,
		Coefficients: coefs,
		Original:     y,
		Calculated:   calculated,
		Error:        mathkernels.LinfDist(yNorm, calcNorm),
		SummedError:  mathkernels.L1Dist(yNorm, calcNorm),
		RMSE:         mathkernels.RMSE(yNorm, calcNorm),
	}
}
