package mathkernels

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZNormalizeIdentity(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	xNorm, yNorm := ZNormalize(x, x)
	require.Equal(t, xNorm, yNorm)
	require.InDelta(t, 0, mean(xNorm), 1e-9)
}

func TestZNormalizeZeroVariance(t *testing.T) {
	x := []float64{2, 2, 2}
	xNorm, _ := ZNormalize(x, x)
	for _, v := range xNorm {
		require.True(t, math.IsNaN(v))
	}
}

func TestLinfDist(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{1, 0, 5}
	require.Equal(t, 2.0, LinfDist(a, b))
}

func TestL1Dist(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{1, 0, 5}
	require.Equal(t, 4.0, L1Dist(a, b))
}

func TestRMSE(t *testing.T) {
	a := []float64{0, 0}
	b := []float64{3, 4}
	require.InDelta(t, 3.5355339059327378, RMSE(a, b), 1e-9)
}
