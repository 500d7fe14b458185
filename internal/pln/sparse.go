package pln

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pln-ml/pln/internal/optim"
	"github.com/pln-ml/pln/internal/packing"
)

// SparseParams are the unknowns of the sparse-precision-penalized fit. The
// precision matrix itself is supplied fixed by the caller (typically from an
// outer graphical-lasso step) and is not optimized here.
type SparseParams struct {
	Theta *mat.Dense // (p×d)
	M     *mat.Dense // (n×p)
	S     *mat.Dense // (n×p)
}

// SparseFit is the outcome of FitSparse.
type SparseFit struct {
	Status     optim.Status
	Iterations int
	Objective  float64

	Theta *mat.Dense
	M     *mat.Dense
	S     *mat.Dense

	Z     *mat.Dense
	A     *mat.Dense
	Sigma *mat.SymDense // (MᵗWM + diag(wᵗS²)) / w̄

	LogLik []float64
}

const (
	sparseTheta = iota
	sparseM
	sparseS
)

func sparsePacker(d *Data) *packing.Packer {
	return packing.NewPacker(
		packing.MatGroup("Theta", d.p, d.d),
		packing.MatGroup("M", d.n, d.p),
		packing.MatGroup("S", d.n, d.p),
	)
}

// sparseObjective penalizes the latent second moment against the fixed
// precision omega through the 0.5·trace(Ω·(MᵗWM+diag(wᵗS²))) term; the M and
// S gradients carry the full derivative of that term. The −0.5·w̄·log|Ω|
// normalizer is constant under a fixed omega and enters only the reported
// log-likelihood.
func sparseObjective(d *Data, pk *packing.Packer, omega *mat.SymDense) optim.ObjectiveGrad {
	return func(xv, grad []float64) float64 {
		theta := pk.MatView(sparseTheta, xv)
		m := pk.MatView(sparseM, xv)
		s := pk.MatView(sparseS, xv)

		s2 := squareElems(s)
		z := d.linearPredictor(theta, m)
		a := expAddHalf(z, s2)

		nSigma := weightedGramDiag(m, s2, d.W)
		tr := 0.0
		for j := 0; j < d.p; j++ {
			for k := 0; k < d.p; k++ {
				tr += omega.At(j, k) * nSigma.At(j, k)
			}
		}

		obj := 0.0
		for i := 0; i < d.n; i++ {
			wi := d.W.AtVec(i)
			for j := 0; j < d.p; j++ {
				obj += wi * (a.At(i, j) - d.Y.At(i, j)*z.At(i, j) - 0.5*math.Log(s2.At(i, j)))
			}
		}
		obj += 0.5 * tr

		amy := mat.NewDense(d.n, d.p, nil)
		amy.Sub(a, d.Y)

		d.gradTheta(pk.MatView(sparseTheta, grad), amy)

		// ∂/∂M = W(M·Ω + A−Y)
		gm := pk.MatView(sparseM, grad)
		gm.Mul(m, omega)
		gm.Add(gm, amy)
		scaleRowsInPlace(gm, d.W)

		// ∂/∂S_ij = wᵢ(S_ij·Ω_jj + S_ij·A_ij − 1/S_ij)
		gs := pk.MatView(sparseS, grad)
		for i := 0; i < d.n; i++ {
			wi := d.W.AtVec(i)
			for j := 0; j < d.p; j++ {
				sij := s.At(i, j)
				gs.Set(i, j, wi*(sij*omega.At(j, j)+sij*a.At(i, j)-1/sij))
			}
		}
		return obj
	}
}

// FitSparse estimates the model under a fixed precision matrix omega.
func FitSparse(d *Data, init SparseParams, omega *mat.SymDense, cfg FitConfig) (*SparseFit, error) {
	if err := checkMatDims("Theta", init.Theta, d.p, d.d); err != nil {
		return nil, err
	}
	if err := checkMatDims("M", init.M, d.n, d.p); err != nil {
		return nil, err
	}
	if err := checkMatDims("S", init.S, d.n, d.p); err != nil {
		return nil, err
	}
	logdetOmega, err := checkPrecision(omega, d.p)
	if err != nil {
		return nil, err
	}

	pk := sparsePacker(d)
	x := make([]float64, pk.Size())
	if d.d > 0 {
		pk.PackMat(sparseTheta, x, init.Theta)
	}
	pk.PackMat(sparseM, x, init.M)
	pk.PackMat(sparseS, x, init.S)

	ocfg, err := cfg.optimConfig(pk)
	if err != nil {
		return nil, err
	}
	res, err := optim.Minimize(x, ocfg, sparseObjective(d, pk, omega))
	if err != nil {
		return nil, err
	}

	theta := cloneDense(pk.MatView(sparseTheta, x))
	m := cloneDense(pk.MatView(sparseM, x))
	s := cloneDense(pk.MatView(sparseS, x))
	s2 := squareElems(s)

	sigma := scaleSym(1/d.wbar, weightedGramDiag(m, s2, d.W))

	z := d.linearPredictor(theta, m)
	a := expAddHalf(z, s2)

	loglik := make([]float64, d.n)
	mo := mat.NewDense(d.n, d.p, nil)
	mo.Mul(m, omega)
	for i := 0; i < d.n; i++ {
		sum := 0.0
		for j := 0; j < d.p; j++ {
			sum += d.Y.At(i, j)*z.At(i, j) - a.At(i, j) + 0.5*math.Log(s2.At(i, j))
			sum -= 0.5 * (mo.At(i, j)*m.At(i, j) + s2.At(i, j)*omega.At(j, j))
		}
		loglik[i] = sum + 0.5*logdetOmega + d.ki[i]
	}

	return &SparseFit{
		Status:     res.Status,
		Iterations: res.Evaluations,
		Objective:  res.Objective,
		Theta:      theta,
		M:          m,
		S:          s,
		Z:          z,
		A:          a,
		Sigma:      sigma,
		LogLik:     loglik,
	}, nil
}
