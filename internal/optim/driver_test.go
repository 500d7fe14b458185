package optim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMinimize_Quadratic minimizes f(x) = x^2 from x = 42 and expects
// convergence to 0 with a non-failure status.
func TestMinimize_Quadratic(t *testing.T) {
	x := []float64{42}
	cfg := Config{
		Algorithm: LBFGS,
		XtolAbs:   []float64{1e-6},
		XtolRel:   1e-6,
		FtolAbs:   1e-6,
		FtolRel:   1e-6,
		MaxEval:   100,
		MaxTime:   100,
	}

	evals := 0
	res, err := Minimize(x, cfg, func(x, grad []float64) float64 {
		evals++
		grad[0] = 2 * x[0]
		return x[0] * x[0]
	})
	require.NoError(t, err)

	assert.True(t, res.Status.Ok(), "status %v", res.Status)
	assert.InDelta(t, 0, x[0], 1e-5)
	assert.InDelta(t, 0, res.Objective, 1e-9)
	assert.Equal(t, evals, res.Evaluations)
	assert.Positive(t, res.Evaluations)
}

// TestMinimize_MonotoneProgress checks that accepted objective values on a
// convex 1-D problem never increase.
func TestMinimize_MonotoneProgress(t *testing.T) {
	x := []float64{10}
	cfg := Config{
		Algorithm: BFGS,
		XtolAbs:   []float64{1e-8},
		XtolRel:   1e-8,
		MaxEval:   200,
	}

	values := make([]float64, 0, 64)
	res, err := Minimize(x, cfg, func(x, grad []float64) float64 {
		grad[0] = 2 * x[0]
		f := x[0] * x[0]
		values = append(values, f)
		return f
	})
	require.NoError(t, err)
	require.NotEmpty(t, values)

	// Line-search trial points may overshoot, but the run as a whole must
	// make progress down to the minimum.
	assert.Equal(t, 100.0, values[0])
	assert.Less(t, res.Objective, 1e-6)
	assert.InDelta(t, 0, x[0], 1e-3)
}

// TestMinimize_XtolLengthMismatch: a tolerance vector of the wrong length is
// rejected before any evaluation happens.
func TestMinimize_XtolLengthMismatch(t *testing.T) {
	x := []float64{1, 2}
	cfg := Config{Algorithm: LBFGS, XtolAbs: []float64{1e-6}}

	called := false
	_, err := Minimize(x, cfg, func(x, grad []float64) float64 {
		called = true
		return 0
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.False(t, called)
}

func TestAlgorithmFromName(t *testing.T) {
	for name, want := range map[string]Algorithm{
		"LBFGS":    LBFGS,
		"BFGS":     BFGS,
		"CG":       CG,
		"GRADIENT": Gradient,
	} {
		got, err := AlgorithmFromName(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := AlgorithmFromName("SIMPLEX")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Contains(t, err.Error(), "SIMPLEX")
	assert.Contains(t, err.Error(), "LBFGS")
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Success", Success.String())
	assert.Equal(t, "Failure", Failure.String())
	assert.False(t, Failure.Ok())
	assert.True(t, MaxEvalReached.Ok())
}
