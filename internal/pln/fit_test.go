package pln

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/pln-ml/pln/internal/optim"
)

func testFitConfig() FitConfig {
	cfg := DefaultFitConfig()
	cfg.MaxEval = 2000
	return cfg
}

func onesDense(r, c int) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, 1)
		}
	}
	return m
}

func onesVec(n int) *mat.VecDense {
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, 1)
	}
	return v
}

func allFinite(t *testing.T, vals []float64) {
	t.Helper()
	for i, v := range vals {
		require.Falsef(t, math.IsNaN(v) || math.IsInf(v, 0), "entry %d is %g", i, v)
	}
}

func TestFitFull(t *testing.T) {
	d := testData(t)
	init := FullParams{
		Theta: mat.NewDense(d.P(), d.D(), nil),
		M:     mat.NewDense(d.N(), d.P(), nil),
		S:     onesDense(d.N(), d.P()),
	}

	pk := fullPacker(d)
	x0 := make([]float64, pk.Size())
	pk.PackMat(fullTheta, x0, init.Theta)
	pk.PackMat(fullM, x0, init.M)
	pk.PackMat(fullS, x0, init.S)
	f0 := fullObjective(d, pk)(x0, make([]float64, len(x0)))

	fit, err := FitFull(d, init, testFitConfig())
	require.NoError(t, err)
	require.True(t, fit.Status.Ok(), "status %v", fit.Status)

	assert.Less(t, fit.Objective, f0)
	assert.Greater(t, fit.Iterations, 0)
	assert.Len(t, fit.LogLik, d.N())
	allFinite(t, fit.LogLik)

	require.Equal(t, d.P(), fit.Sigma.SymmetricDim())
	var chol mat.Cholesky
	assert.True(t, chol.Factorize(fit.Sigma), "fitted covariance must be PD")

	// The scales are signed but their squares must stay strictly positive.
	for i := 0; i < d.N(); i++ {
		for j := 0; j < d.P(); j++ {
			assert.NotZero(t, fit.S.At(i, j))
		}
	}
}

func TestFitFull_InitialParamsUntouched(t *testing.T) {
	d := testData(t)
	init := FullParams{
		Theta: mat.NewDense(d.P(), d.D(), nil),
		M:     mat.NewDense(d.N(), d.P(), nil),
		S:     onesDense(d.N(), d.P()),
	}

	_, err := FitFull(d, init, testFitConfig())
	require.NoError(t, err)

	for i := 0; i < d.N(); i++ {
		for j := 0; j < d.P(); j++ {
			assert.Equal(t, 0.0, init.M.At(i, j))
			assert.Equal(t, 1.0, init.S.At(i, j))
		}
	}
}

func TestFitDiagonal(t *testing.T) {
	d := testData(t)
	fit, err := FitDiagonal(d, DiagonalParams{
		Theta: mat.NewDense(d.P(), d.D(), nil),
		M:     mat.NewDense(d.N(), d.P(), nil),
		S:     onesDense(d.N(), d.P()),
	}, testFitConfig())
	require.NoError(t, err)
	require.True(t, fit.Status.Ok(), "status %v", fit.Status)

	allFinite(t, fit.LogLik)
	for j := 0; j < d.P(); j++ {
		assert.Greater(t, fit.Sigma.At(j, j), 0.0)
		for k := 0; k < d.P(); k++ {
			if k != j {
				assert.Zero(t, fit.Sigma.At(j, k))
			}
		}
	}
}

func TestFitSpherical(t *testing.T) {
	d := testData(t)
	fit, err := FitSpherical(d, SphericalParams{
		Theta: mat.NewDense(d.P(), d.D(), nil),
		M:     mat.NewDense(d.N(), d.P(), nil),
		S:     onesVec(d.N()),
	}, testFitConfig())
	require.NoError(t, err)
	require.True(t, fit.Status.Ok(), "status %v", fit.Status)

	assert.Greater(t, fit.Sigma2, 0.0)
	for j := 0; j < d.P(); j++ {
		assert.InDelta(t, fit.Sigma2, fit.Sigma.At(j, j), 1e-12)
	}
	allFinite(t, fit.LogLik)
}

func TestFitRank(t *testing.T) {
	d := testData(t)
	q := 2
	rng := rand.New(rand.NewSource(3))

	b := mat.NewDense(d.P(), q, nil)
	for j := 0; j < d.P(); j++ {
		for k := 0; k < q; k++ {
			b.Set(j, k, 0.3*rng.NormFloat64())
		}
	}

	fit, err := FitRank(d, RankParams{
		Theta: mat.NewDense(d.P(), d.D(), nil),
		B:     b,
		M:     mat.NewDense(d.N(), q, nil),
		S:     onesDense(d.N(), q),
	}, testFitConfig())
	require.NoError(t, err)
	require.True(t, fit.Status.Ok(), "status %v", fit.Status)

	br, bc := fit.B.Dims()
	assert.Equal(t, d.P(), br)
	assert.Equal(t, q, bc)
	assert.Equal(t, d.P(), fit.Sigma.SymmetricDim())
	allFinite(t, fit.LogLik)
}

func TestFitSparse(t *testing.T) {
	d := testData(t)
	fit, err := FitSparse(d, SparseParams{
		Theta: mat.NewDense(d.P(), d.D(), nil),
		M:     mat.NewDense(d.N(), d.P(), nil),
		S:     onesDense(d.N(), d.P()),
	}, testPrecision(d.P()), testFitConfig())
	require.NoError(t, err)
	require.True(t, fit.Status.Ok(), "status %v", fit.Status)

	assert.Equal(t, d.P(), fit.Sigma.SymmetricDim())
	allFinite(t, fit.LogLik)
}

func TestFitVEFull(t *testing.T) {
	d := testData(t)
	theta := mat.NewDense(d.P(), d.D(), nil)

	fit, err := FitVEFull(d, VEParams{
		M: mat.NewDense(d.N(), d.P(), nil),
		S: onesDense(d.N(), d.P()),
	}, theta, testPrecision(d.P()), testFitConfig())
	require.NoError(t, err)
	require.True(t, fit.Status.Ok(), "status %v", fit.Status)

	mr, mc := fit.M.Dims()
	assert.Equal(t, d.N(), mr)
	assert.Equal(t, d.P(), mc)
	allFinite(t, fit.LogLik)
}

func TestFitVEDiagonal(t *testing.T) {
	d := testData(t)
	fit, err := FitVEDiagonal(d, VEParams{
		M: mat.NewDense(d.N(), d.P(), nil),
		S: onesDense(d.N(), d.P()),
	}, mat.NewDense(d.P(), d.D(), nil), testPrecision(d.P()), testFitConfig())
	require.NoError(t, err)
	require.True(t, fit.Status.Ok(), "status %v", fit.Status)
	allFinite(t, fit.LogLik)
}

func TestFitVESpherical(t *testing.T) {
	d := testData(t)
	omega := mat.NewSymDense(d.P(), nil)
	for j := 0; j < d.P(); j++ {
		omega.SetSym(j, j, 1.2)
	}

	fit, err := FitVESpherical(d, VESphericalParams{
		M: mat.NewDense(d.N(), d.P(), nil),
		S: onesVec(d.N()),
	}, mat.NewDense(d.P(), d.D(), nil), omega, testFitConfig())
	require.NoError(t, err)
	require.True(t, fit.Status.Ok(), "status %v", fit.Status)

	assert.Equal(t, d.N(), fit.S.Len())
	allFinite(t, fit.LogLik)
}

func TestNewData_Validation(t *testing.T) {
	y := mat.NewDense(3, 2, nil)
	o := mat.NewDense(3, 2, nil)

	_, err := NewData(nil, nil, o, nil)
	assert.ErrorContains(t, err, "Y")

	_, err = NewData(y, nil, nil, nil)
	assert.ErrorContains(t, err, "O")

	_, err = NewData(y, nil, mat.NewDense(2, 2, nil), nil)
	assert.ErrorContains(t, err, "O is")

	_, err = NewData(y, mat.NewDense(4, 1, nil), o, nil)
	assert.ErrorContains(t, err, "X has")

	_, err = NewData(y, nil, o, mat.NewVecDense(2, nil))
	assert.ErrorContains(t, err, "w has")

	w := mat.NewVecDense(3, []float64{1, -1, 1})
	_, err = NewData(y, nil, o, w)
	assert.ErrorContains(t, err, "negative weight")

	_, err = NewData(y, nil, o, mat.NewVecDense(3, nil))
	assert.ErrorContains(t, err, "sum to zero")
}

func TestFitFull_ShapeErrors(t *testing.T) {
	d := testData(t)
	good := FullParams{
		Theta: mat.NewDense(d.P(), d.D(), nil),
		M:     mat.NewDense(d.N(), d.P(), nil),
		S:     onesDense(d.N(), d.P()),
	}

	bad := good
	bad.S = onesDense(d.N(), d.P()+1)
	_, err := FitFull(d, bad, testFitConfig())
	assert.ErrorContains(t, err, "S")

	bad = good
	bad.M = nil
	_, err = FitFull(d, bad, testFitConfig())
	assert.ErrorContains(t, err, "missing initial M")
}

func TestFitRank_MissingB(t *testing.T) {
	d := testData(t)
	_, err := FitRank(d, RankParams{
		Theta: mat.NewDense(d.P(), d.D(), nil),
		M:     mat.NewDense(d.N(), 2, nil),
		S:     onesDense(d.N(), 2),
	}, testFitConfig())
	assert.ErrorContains(t, err, "B")
}

func TestFitSparse_RejectsIndefiniteOmega(t *testing.T) {
	d := testData(t)
	omega := mat.NewSymDense(d.P(), nil)
	for j := 0; j < d.P(); j++ {
		omega.SetSym(j, j, -1)
	}

	_, err := FitSparse(d, SparseParams{
		Theta: mat.NewDense(d.P(), d.D(), nil),
		M:     mat.NewDense(d.N(), d.P(), nil),
		S:     onesDense(d.N(), d.P()),
	}, omega, testFitConfig())
	assert.ErrorContains(t, err, "positive definite")
}

func TestFitConfig_XtolAbsBy(t *testing.T) {
	d := testData(t)
	init := FullParams{
		Theta: mat.NewDense(d.P(), d.D(), nil),
		M:     mat.NewDense(d.N(), d.P(), nil),
		S:     onesDense(d.N(), d.P()),
	}

	cfg := testFitConfig()
	cfg.XtolAbsBy = map[string]any{"Theta": 1e-8, "M": 1e-8}
	_, err := FitFull(d, init, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, optim.ErrConfig)
	assert.ErrorContains(t, err, `"S"`)

	cfg.XtolAbsBy["S"] = 1e-8
	_, err = FitFull(d, init, cfg)
	assert.NoError(t, err)
}

func TestFitConfig_UnknownAlgorithm(t *testing.T) {
	d := testData(t)
	cfg := testFitConfig()
	cfg.Algorithm = "SIMPLEX"

	_, err := FitFull(d, FullParams{
		Theta: mat.NewDense(d.P(), d.D(), nil),
		M:     mat.NewDense(d.N(), d.P(), nil),
		S:     onesDense(d.N(), d.P()),
	}, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, optim.ErrConfig))
}

func TestLogFactorialRows(t *testing.T) {
	y := mat.NewDense(2, 3, []float64{
		0, 1, 2,
		3, 4, 5,
	})
	got := logFactorialRows(y)

	// Stirling's series is accurate to well under 1e-3 even at small counts;
	// zeros contribute nothing.
	want0 := math.Log(2)
	want1 := math.Log(6) + math.Log(24) + math.Log(120)
	assert.InDelta(t, want0, got[0], 1e-3)
	assert.InDelta(t, want1, got[1], 1e-3)
}

func TestKiRows_Constant(t *testing.T) {
	y := onesDense(2, 3)
	ki := kiRows(y)

	want := 0.5 * (1 + (1-3.0)*math.Log(2*math.Pi))
	assert.InDelta(t, want, ki[0], 1e-3)
	assert.InDelta(t, ki[0], ki[1], 1e-12)
}
