package lpsolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/armchr/ngcompress/internal/ngram"
)

// TestExactBigram covers a target exactly reconstructible as 3*x + 2*y.
func TestExactBigram(t *testing.T) {
	var x, y, target ngram.Freq
	x[0] = 1
	y[1] = 1
	target[0] = 3
	target[1] = 2

	res := Solve(target, []ngram.Freq{x, y})

	require.True(t, res.Feasible)
	require.InDelta(t, 3, res.Coefficients[0], 1e-6)
	require.InDelta(t, 2, res.Coefficients[1], 1e-6)
}

func TestCoefficientsAreNonNegative(t *testing.T) {
	var x, y, target ngram.Freq
	x[0] = 1
	y[0] = 1
	target[0] = 5
	target[1] = -5 // cannot be matched non-negatively at every year

	res := Solve(target, []ngram.Freq{x, y})
	require.True(t, res.Feasible)
	for _, c := range res.Coefficients {
		require.GreaterOrEqual(t, c, -1e-9)
	}
}
