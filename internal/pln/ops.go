package pln

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Elementwise and weighted-reduction helpers shared by the variant
// objectives. Everything here allocates its result; the objectives reuse the
// packer's zero-copy views only at the optimizer boundary.

// squareElems returns m∘m.
func squareElems(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			out.Set(i, j, v*v)
		}
	}
	return out
}

// squareVec returns v∘v.
func squareVec(v *mat.VecDense) *mat.VecDense {
	n := v.Len()
	out := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x := v.AtVec(i)
		out.SetVec(i, x*x)
	}
	return out
}

// expAddHalf returns exp(z + 0.5·s2) elementwise.
func expAddHalf(z, s2 *mat.Dense) *mat.Dense {
	r, c := z.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, math.Exp(z.At(i, j)+0.5*s2.At(i, j)))
		}
	}
	return out
}

// expAddHalfRows returns exp(z_ij + 0.5·s2_i): one variance per row.
func expAddHalfRows(z *mat.Dense, s2 *mat.VecDense) *mat.Dense {
	r, c := z.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		h := 0.5 * s2.AtVec(i)
		for j := 0; j < c; j++ {
			out.Set(i, j, math.Exp(z.At(i, j)+h))
		}
	}
	return out
}

// scaleRows sets dst = diag(w)·m. dst must not alias m unless identical.
func scaleRows(dst, m *mat.Dense, w *mat.VecDense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		wi := w.AtVec(i)
		for j := 0; j < c; j++ {
			dst.Set(i, j, wi*m.At(i, j))
		}
	}
}

// scaleRowsInPlace multiplies each row of m by its weight.
func scaleRowsInPlace(m *mat.Dense, w *mat.VecDense) {
	scaleRows(m, m, w)
}

// weightedColSums returns wᵗ·m as a length-c slice.
func weightedColSums(m *mat.Dense, w *mat.VecDense) []float64 {
	r, c := m.Dims()
	out := make([]float64, c)
	for i := 0; i < r; i++ {
		wi := w.AtVec(i)
		for j := 0; j < c; j++ {
			out[j] += wi * m.At(i, j)
		}
	}
	return out
}

// rowSums returns the per-row sums of m.
func rowSums(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += m.At(i, j)
		}
		out[i] = sum
	}
	return out
}

// weightedGramDiag returns Mᵗ·diag(w)·M + diag(wᵗ·s2), the scaled latent
// second moment every covariance estimate is built from.
func weightedGramDiag(m, s2 *mat.Dense, w *mat.VecDense) *mat.SymDense {
	r, c := m.Dims()
	wm := mat.NewDense(r, c, nil)
	scaleRows(wm, m, w)

	var gram mat.Dense
	gram.Mul(m.T(), wm)

	diag := weightedColSums(s2, w)
	out := mat.NewSymDense(c, nil)
	for j := 0; j < c; j++ {
		for k := j; k < c; k++ {
			v := 0.5 * (gram.At(j, k) + gram.At(k, j))
			if j == k {
				v += diag[j]
			}
			out.SetSym(j, k, v)
		}
	}
	return out
}

// scaleSym returns f·a.
func scaleSym(f float64, a *mat.SymDense) *mat.SymDense {
	n := a.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, f*a.At(i, j))
		}
	}
	return out
}

// symInverse inverts a symmetric positive-definite matrix and returns the
// inverse together with log|a|. ok is false when factorization fails.
func symInverse(a *mat.SymDense) (inv *mat.SymDense, logdet float64, ok bool) {
	var chol mat.Cholesky
	if !chol.Factorize(a) {
		return nil, 0, false
	}
	inv = &mat.SymDense{}
	if err := chol.InverseTo(inv); err != nil {
		return nil, 0, false
	}
	return inv, chol.LogDet(), true
}

// cloneDense copies a view into freshly owned storage; nil stays nil.
func cloneDense(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}

func cloneVec(v *mat.VecDense) *mat.VecDense {
	if v == nil {
		return nil
	}
	return mat.VecDenseCopyOf(v)
}
