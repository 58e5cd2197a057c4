// Package lpsolver builds and solves the absolute-error minimization LP for
// one n-gram: a Chebyshev approximation problem with
// non-negative regressor coefficients and a single slack variable bounding
// the maximum absolute deviation.
//
// The solver itself is an external collaborator (gonum's dense-tableau
// simplex); this package's only job is to translate the two-inequality
// formulation into the equality-with-slacks standard form gonum/lp expects,
// and to translate any solver failure into a single "unsolved" signal —
// solver-specific error types never propagate upward.
package lpsolver

import (
	"github.com/armchr/ngcompress/internal/ngram"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Result holds a solved LP's child coefficients (aligned with the input
// children slice, zero entries included) and the slack objective value.
type Result struct {
	Coefficients []float64
	Feasible     bool
}

// Solve minimizes t subject to, for every year i:
//
//	sum_k c_k*x_k[i] - t <= y[i]
//	-sum_k c_k*x_k[i] - t <= -y[i]
//	c_k >= 0, t >= 0
//
// and returns the c_k values. children must be non-empty; callers are
// responsible for the "fewer than two children" / "all-zero children"
// short-circuits (fewer than two children, or all-zero children) before
// calling Solve.
func Solve(y ngram.Freq, childFreqs []ngram.Freq) Result {
	k := len(childFreqs)
	n := ngram.Years
	rows := 2 * n
	cols := k + 1 + rows // k children + slack t + one slack per constraint row

	a := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)
	c := make([]float64, cols)
	c[k] = 1 // objective: minimize t

	for i := 0; i < n; i++ {
		// row: sum_k c_k*x_k[i] - t + s_i = y[i]
		for j := 0; j < k; j++ {
			a.Set(i, j, childFreqs[j][i])
		}
		a.Set(i, k, -1)
		a.Set(i, k+1+i, 1)
		b[i] = y[i]

		// row: -sum_k c_k*x_k[i] - t + s_i = -y[i]
		row := n + i
		for j := 0; j < k; j++ {
			a.Set(row, j, -childFreqs[j][i])
		}
		a.Set(row, k, -1)
		a.Set(row, k+1+row, 1)
		b[row] = -y[i]
	}

	_, x, err := lp.Simplex(c, a, b, 0, nil)
	if err != nil {
		return Result{Feasible: false}
	}

	return Result{Coefficients: x[:k], Feasible: true}
}
