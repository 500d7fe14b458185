package pln

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pln-ml/pln/internal/optim"
	"github.com/pln-ml/pln/internal/packing"
)

// DiagonalParams are the unknowns of the diagonal covariance fit.
type DiagonalParams struct {
	Theta *mat.Dense // (p×d)
	M     *mat.Dense // (n×p)
	S     *mat.Dense // (n×p)
}

// DiagonalFit is the outcome of FitDiagonal.
type DiagonalFit struct {
	Status     optim.Status
	Iterations int
	Objective  float64

	Theta *mat.Dense
	M     *mat.Dense
	S     *mat.Dense

	Z     *mat.Dense
	A     *mat.Dense
	Sigma *mat.SymDense // diagonal covariance
	Omega *mat.SymDense // diagonal precision

	LogLik []float64
}

const (
	diagTheta = iota
	diagM
	diagS
)

func diagonalPacker(d *Data) *packing.Packer {
	return packing.NewPacker(
		packing.MatGroup("Theta", d.p, d.d),
		packing.MatGroup("M", d.n, d.p),
		packing.MatGroup("S", d.n, d.p),
	)
}

// diagSigma is the closed-form per-column variance wᵗ(M²+S²)/w̄.
func diagSigma(d *Data, m, s2 *mat.Dense) []float64 {
	out := make([]float64, d.p)
	for i := 0; i < d.n; i++ {
		wi := d.W.AtVec(i)
		for j := 0; j < d.p; j++ {
			mij := m.At(i, j)
			out[j] += wi * (mij*mij + s2.At(i, j))
		}
	}
	for j := range out {
		out[j] /= d.wbar
	}
	return out
}

func diagonalObjective(d *Data, pk *packing.Packer) optim.ObjectiveGrad {
	return func(xv, grad []float64) float64 {
		theta := pk.MatView(diagTheta, xv)
		m := pk.MatView(diagM, xv)
		s := pk.MatView(diagS, xv)

		s2 := squareElems(s)
		z := d.linearPredictor(theta, m)
		a := expAddHalf(z, s2)
		sig := diagSigma(d, m, s2)

		obj := 0.0
		for i := 0; i < d.n; i++ {
			wi := d.W.AtVec(i)
			for j := 0; j < d.p; j++ {
				obj += wi * (a.At(i, j) - d.Y.At(i, j)*z.At(i, j) - 0.5*math.Log(s2.At(i, j)))
			}
		}
		for j := 0; j < d.p; j++ {
			obj += 0.5 * d.wbar * math.Log(sig[j])
		}

		amy := mat.NewDense(d.n, d.p, nil)
		amy.Sub(a, d.Y)

		d.gradTheta(pk.MatView(diagTheta, grad), amy)

		gm := pk.MatView(diagM, grad)
		gs := pk.MatView(diagS, grad)
		for i := 0; i < d.n; i++ {
			wi := d.W.AtVec(i)
			for j := 0; j < d.p; j++ {
				sij := s.At(i, j)
				gm.Set(i, j, wi*(m.At(i, j)/sig[j]+amy.At(i, j)))
				gs.Set(i, j, wi*(sij/sig[j]+sij*a.At(i, j)-1/sij))
			}
		}
		return obj
	}
}

// FitDiagonal estimates the diagonal covariance model.
func FitDiagonal(d *Data, init DiagonalParams, cfg FitConfig) (*DiagonalFit, error) {
	if err := checkMatDims("Theta", init.Theta, d.p, d.d); err != nil {
		return nil, err
	}
	if err := checkMatDims("M", init.M, d.n, d.p); err != nil {
		return nil, err
	}
	if err := checkMatDims("S", init.S, d.n, d.p); err != nil {
		return nil, err
	}

	pk := diagonalPacker(d)
	x := make([]float64, pk.Size())
	if d.d > 0 {
		pk.PackMat(diagTheta, x, init.Theta)
	}
	pk.PackMat(diagM, x, init.M)
	pk.PackMat(diagS, x, init.S)

	ocfg, err := cfg.optimConfig(pk)
	if err != nil {
		return nil, err
	}
	res, err := optim.Minimize(x, ocfg, diagonalObjective(d, pk))
	if err != nil {
		return nil, err
	}

	theta := cloneDense(pk.MatView(diagTheta, x))
	m := cloneDense(pk.MatView(diagM, x))
	s := cloneDense(pk.MatView(diagS, x))
	s2 := squareElems(s)

	sig := diagSigma(d, m, s2)
	sigma := mat.NewSymDense(d.p, nil)
	omega := mat.NewSymDense(d.p, nil)
	sumLogOmega := 0.0
	for j := 0; j < d.p; j++ {
		sigma.SetSym(j, j, sig[j])
		omega.SetSym(j, j, 1/sig[j])
		sumLogOmega += math.Log(1 / sig[j])
	}

	z := d.linearPredictor(theta, m)
	a := expAddHalf(z, s2)

	loglik := make([]float64, d.n)
	for i := 0; i < d.n; i++ {
		sum := 0.0
		for j := 0; j < d.p; j++ {
			mij := m.At(i, j)
			sum += d.Y.At(i, j)*z.At(i, j) - a.At(i, j) + 0.5*math.Log(s2.At(i, j))
			sum -= 0.5 * (mij*mij + s2.At(i, j)) / sig[j]
		}
		loglik[i] = sum + 0.5*sumLogOmega + d.ki[i]
	}

	return &DiagonalFit{
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
