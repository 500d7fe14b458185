package pln

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pln-ml/pln/internal/optim"
	"github.com/pln-ml/pln/internal/packing"
)

// FullParams are the unknowns of the fully parameterized covariance fit.
// Theta may be nil when the data has no covariates.
type FullParams struct {
	Theta *mat.Dense // regression coefficients (p×d)
	M     *mat.Dense // variational means (n×p)
	S     *mat.Dense // signed variational scales (n×p), variance is S²
}

// FullFit is the outcome of FitFull. Theta is nil when d == 0.
type FullFit struct {
	Status     optim.Status
	Iterations int
	Objective  float64

	Theta *mat.Dense
	M     *mat.Dense
	S     *mat.Dense

	Z     *mat.Dense    // linear predictor O + X·Thetaᵗ + M
	A     *mat.Dense    // fitted means exp(Z + 0.5·S²)
	Sigma *mat.SymDense // estimated covariance (p×p)
	Omega *mat.SymDense // estimated precision (p×p)

	LogLik []float64 // per-row variational log-likelihood
}

const (
	fullTheta = iota
	fullM
	fullS
)

func fullPacker(d *Data) *packing.Packer {
	return packing.NewPacker(
		packing.MatGroup("Theta", d.p, d.d),
		packing.MatGroup("M", d.n, d.p),
		packing.MatGroup("S", d.n, d.p),
	)
}

// fullObjective builds the negative-ELBO closure for the full covariance
// model. The precision is recomputed in closed form from the current M,S at
// every evaluation; the gradients include that dependency.
func fullObjective(d *Data, pk *packing.Packer) optim.ObjectiveGrad {
	return func(xv, grad []float64) float64 {
		theta := pk.MatView(fullTheta, xv)
		m := pk.MatView(fullM, xv)
		s := pk.MatView(fullS, xv)

		s2 := squareElems(s)
		z := d.linearPredictor(theta, m)
		a := expAddHalf(z, s2)

		nSigma := weightedGramDiag(m, s2, d.W)
		nSigmaInv, logdetNSigma, ok := symInverse(nSigma)
		if !ok {
			// Degenerate trial point; reject and let the line search back off.
			zeroGrad(grad)
			return math.Inf(1)
		}
		omega := scaleSym(d.wbar, nSigmaInv)
		logdetOmega := float64(d.p)*math.Log(d.wbar) - logdetNSigma

		obj := 0.0
		for i := 0; i < d.n; i++ {
			wi := d.W.AtVec(i)
			for j := 0; j < d.p; j++ {
				obj += wi * (a.At(i, j) - d.Y.At(i, j)*z.At(i, j) - 0.5*math.Log(s2.At(i, j)))
			}
		}
		obj -= 0.5 * d.wbar * logdetOmega

		amy := mat.NewDense(d.n, d.p, nil)
		amy.Sub(a, d.Y)

		d.gradTheta(pk.MatView(fullTheta, grad), amy)

		gm := pk.MatView(fullM, grad)
		gm.Mul(m, omega)
		gm.Add(gm, amy)
		scaleRowsInPlace(gm, d.W)

		gs := pk.MatView(fullS, grad)
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

// FitFull estimates the fully parameterized covariance model.
func FitFull(d *Data, init FullParams, cfg FitConfig) (*FullFit, error) {
	if err := checkMatDims("Theta", init.Theta, d.p, d.d); err != nil {
		return nil, err
	}
	if err := checkMatDims("M", init.M, d.n, d.p); err != nil {
		return nil, err
	}
	if err := checkMatDims("S", init.S, d.n, d.p); err != nil {
		return nil, err
	}

	pk := fullPacker(d)
	x := make([]float64, pk.Size())
	if d.d > 0 {
		pk.PackMat(fullTheta, x, init.Theta)
	}
	pk.PackMat(fullM, x, init.M)
	pk.PackMat(fullS, x, init.S)

	ocfg, err := cfg.optimConfig(pk)
	if err != nil {
		return nil, err
	}
	res, err := optim.Minimize(x, ocfg, fullObjective(d, pk))
	if err != nil {
		return nil, err
	}

	theta := cloneDense(pk.MatView(fullTheta, x))
	m := cloneDense(pk.MatView(fullM, x))
	s := cloneDense(pk.MatView(fullS, x))
	s2 := squareElems(s)

	sigma := scaleSym(1/d.wbar, weightedGramDiag(m, s2, d.W))
	omega, logdetSigma, ok := symInverse(sigma)
	if !ok {
		return nil, fmt.Errorf("pln: fitted covariance is not positive definite")
	}
	logdetOmega := -logdetSigma

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

	return &FullFit{
		Status:     res.Status,
		Iterations: res.Evaluations,
		Objective:  res.Objective,
		Theta:      theta,
		M:          m,
		S:          s,
		Z:          z,
		A:          a,
		Sigma:      sigma,
		Omega:      omega,
		LogLik:     loglik,
	}, nil
}
