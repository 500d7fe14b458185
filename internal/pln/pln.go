// Package pln fits variational approximations of Poisson log-normal (PLN)
// latent-variable models.
//
// Given a count matrix Y (n×p), covariates X (n×d, d may be 0), offsets O
// (n×p) and row weights w (n), each fit estimates regression coefficients and
// a latent covariance structure by minimizing the negative evidence lower
// bound (ELBO) with a gradient-based local optimizer. One structural variant
// per covariance assumption is provided:
//
//   - FitFull: fully parameterized covariance
//   - FitDiagonal: diagonal covariance
//   - FitSpherical: single shared variance
//   - FitRank: low-rank covariance with latent dimension q < p
//   - FitSparse: fixed, caller-supplied precision matrix (sparse penalty)
//   - FitVEFull, FitVEDiagonal, FitVESpherical: variational E-steps only,
//     with regression coefficients and precision held fixed
//
// The variational scale S is stored signed; its square is the variance, so
// the variance stays strictly positive for any finite S without constraining
// the optimizer.
//
// Each call is self-contained: it owns its parameter packer and optimizer
// instance, mutates nothing but its own packed vector, and treats the
// observation data as read-only. Concurrent fits on shared data are safe.
package pln

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Data holds the fixed observation matrices shared by every objective
// evaluation of one fit. All matrices are read-only for the duration of a
// call and may be shared across concurrent fits.
type Data struct {
	Y *mat.Dense    // counts (n×p)
	X *mat.Dense    // covariates (n×d), nil when d == 0
	O *mat.Dense    // offsets (n×p)
	W *mat.VecDense // row weights (n)

	n, p, d int
	wbar    float64   // sum of weights
	wx      *mat.Dense // X with rows scaled by w, nil when d == 0
	ki      []float64  // per-row Stirling correction, see kiRows
}

// NewData validates shapes and builds the observation container. x may be
// nil when there are no covariates; w may be nil for unit weights.
func NewData(y, x, o *mat.Dense, w *mat.VecDense) (*Data, error) {
	if y == nil {
		return nil, fmt.Errorf("pln: missing count matrix Y")
	}
	n, p := y.Dims()

	if o == nil {
		return nil, fmt.Errorf("pln: missing offset matrix O")
	}
	if or, oc := o.Dims(); or != n || oc != p {
		return nil, fmt.Errorf("pln: O is %d×%d, want %d×%d", or, oc, n, p)
	}

	d := 0
	if x != nil {
		xr, xc := x.Dims()
		if xr != n {
			return nil, fmt.Errorf("pln: X has %d rows, want %d", xr, n)
		}
		d = xc
	}

	if w == nil {
		w = mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			w.SetVec(i, 1)
		}
	} else if w.Len() != n {
		return nil, fmt.Errorf("pln: w has length %d, want %d", w.Len(), n)
	}
	wbar := 0.0
	for i := 0; i < n; i++ {
		wi := w.AtVec(i)
		if wi < 0 {
			return nil, fmt.Errorf("pln: negative weight %g at row %d", wi, i)
		}
		wbar += wi
	}
	if wbar == 0 {
		return nil, fmt.Errorf("pln: weights sum to zero")
	}

	data := &Data{Y: y, X: x, O: o, W: w, n: n, p: p, d: d, wbar: wbar}
	if d > 0 {
		data.wx = mat.NewDense(n, d, nil)
		scaleRows(data.wx, x, w)
	}
	data.ki = kiRows(y)
	return data, nil
}

// N returns the number of observation rows.
func (d *Data) N() int { return d.n }

// P returns the number of response columns.
func (d *Data) P() int { return d.p }

// D returns the number of covariates, possibly 0.
func (d *Data) D() int { return d.d }

// SumW returns the total weight.
func (d *Data) SumW() float64 { return d.wbar }

// linearPredictor computes Z = O + X·Thetaᵗ + latent, where latent is the
// n×p latent mean contribution (M, or M·Bᵗ for the rank variant). theta is
// nil when d == 0.
func (d *Data) linearPredictor(theta, latent *mat.Dense) *mat.Dense {
	z := mat.NewDense(d.n, d.p, nil)
	if theta != nil {
		z.Mul(d.X, theta.T())
		z.Add(z, d.O)
	} else {
		z.Copy(d.O)
	}
	z.Add(z, latent)
	return z
}

// gradTheta writes the regression gradient (A−Y)ᵗ·(weighted X) into dst.
// No-op when there are no covariates.
func (d *Data) gradTheta(dst, amy *mat.Dense) {
	if dst == nil || d.d == 0 {
		return
	}
	dst.Mul(amy.T(), d.wx)
}

// checkMatDims validates an initial parameter matrix against the expected
// shape. nil is accepted only for empty shapes.
func checkMatDims(name string, m *mat.Dense, r, c int) error {
	if m == nil {
		if r == 0 || c == 0 {
			return nil
		}
		return fmt.Errorf("pln: missing initial %s (want %d×%d)", name, r, c)
	}
	gr, gc := m.Dims()
	if gr != r || gc != c {
		return fmt.Errorf("pln: initial %s is %d×%d, want %d×%d", name, gr, gc, r, c)
	}
	return nil
}

func checkVecDims(name string, v *mat.VecDense, n int) error {
	if v == nil {
		return fmt.Errorf("pln: missing initial %s (want length %d)", name, n)
	}
	if v.Len() != n {
		return fmt.Errorf("pln: initial %s has length %d, want %d", name, v.Len(), n)
	}
	return nil
}

// checkPrecision validates a fixed precision matrix and returns its
// log-determinant. Failing the factorization is a precondition violation:
// the caller supplied a matrix that is not symmetric positive-definite.
func checkPrecision(omega *mat.SymDense, p int) (float64, error) {
	if omega == nil {
		return 0, fmt.Errorf("pln: missing precision matrix Omega")
	}
	if r := omega.SymmetricDim(); r != p {
		return 0, fmt.Errorf("pln: Omega is %d×%d, want %d×%d", r, r, p, p)
	}
	var chol mat.Cholesky
	if !chol.Factorize(omega) {
		return 0, fmt.Errorf("pln: Omega is not positive definite")
	}
	return chol.LogDet(), nil
}

func zeroGrad(grad []float64) {
	for i := range grad {
		grad[i] = 0
	}
}

// logFactorialRows approximates sum_j log(y_ij!) per row using Stirling's
// series; zeros are treated as 1 before taking logs (0·log 0 contributes 0).
func logFactorialRows(y *mat.Dense) []float64 {
	n, p := y.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < p; j++ {
			v := y.At(i, j)
			if v == 0 {
				v = 1
			}
			sum += v*math.Log(v) - v +
				math.Log(8*v*v*v+4*v*v+v+1.0/30.0)/6 +
				0.5*math.Log(math.Pi)
		}
		out[i] = sum
	}
	return out
}

// kiRows is the per-row log-likelihood constant shared by all variants:
// -log(y!) plus the Gaussian normalizing term depending only on p.
func kiRows(y *mat.Dense) []float64 {
	_, p := y.Dims()
	out := logFactorialRows(y)
	c := 0.5 * (1 + (1-float64(p))*math.Log(2*math.Pi))
	for i := range out {
		out[i] = -out[i] + c
	}
	return out
}
