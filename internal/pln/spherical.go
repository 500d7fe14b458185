package pln

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pln-ml/pln/internal/optim"
	"github.com/pln-ml/pln/internal/packing"
)

// SphericalParams are the unknowns of the spherical covariance fit. S holds
// one signed scale per observation row, shared across all p columns.
type SphericalParams struct {
	Theta *mat.Dense    // (p×d)
	M     *mat.Dense    // (n×p)
	S     *mat.VecDense // (n)
}

// SphericalFit is the outcome of FitSpherical.
type SphericalFit struct {
	Status     optim.Status
	Iterations int
	Objective  float64

	Theta *mat.Dense
	M     *mat.Dense
	S     *mat.VecDense

	Z      *mat.Dense
	A      *mat.Dense
	Sigma2 float64       // shared variance σ²
	Sigma  *mat.SymDense // σ²·I
	Omega  *mat.SymDense // I/σ²

	LogLik []float64
}

const (
	sphTheta = iota
	sphM
	sphS
)

func sphericalPacker(d *Data) *packing.Packer {
	return packing.NewPacker(
		packing.MatGroup("Theta", d.p, d.d),
		packing.MatGroup("M", d.n, d.p),
		packing.VecGroup("S", d.n),
	)
}

// sphericalSigma2 is the closed-form shared variance
// Σᵢwᵢ(‖Mᵢ‖² + p·Sᵢ²) / (p·w̄).
func sphericalSigma2(d *Data, m *mat.Dense, s2 *mat.VecDense) float64 {
	p := float64(d.p)
	sum := 0.0
	for i := 0; i < d.n; i++ {
		wi := d.W.AtVec(i)
		rs := 0.0
		for j := 0; j < d.p; j++ {
			mij := m.At(i, j)
			rs += mij * mij
		}
		sum += wi * (rs + p*s2.AtVec(i))
	}
	return sum / (p * d.wbar)
}

func sphericalObjective(d *Data, pk *packing.Packer) optim.ObjectiveGrad {
	p := float64(d.p)
	return func(xv, grad []float64) float64 {
		theta := pk.MatView(sphTheta, xv)
		m := pk.MatView(sphM, xv)
		s := pk.VecView(sphS, xv)

		s2 := squareVec(s)
		z := d.linearPredictor(theta, m)
		a := expAddHalfRows(z, s2)
		sigma2 := sphericalSigma2(d, m, s2)

		obj := 0.0
		for i := 0; i < d.n; i++ {
			wi := d.W.AtVec(i)
			for j := 0; j < d.p; j++ {
				obj += wi * (a.At(i, j) - d.Y.At(i, j)*z.At(i, j))
			}
			obj -= 0.5 * p * wi * math.Log(s2.AtVec(i))
		}
		obj += 0.5 * d.wbar * p * math.Log(sigma2)

		amy := mat.NewDense(d.n, d.p, nil)
		amy.Sub(a, d.Y)

		d.gradTheta(pk.MatView(sphTheta, grad), amy)

		gm := pk.MatView(sphM, grad)
		gs := pk.VecView(sphS, grad)
		rowA := rowSums(a)
		for i := 0; i < d.n; i++ {
			wi := d.W.AtVec(i)
			for j := 0; j < d.p; j++ {
				gm.Set(i, j, wi*(m.At(i, j)/sigma2+amy.At(i, j)))
			}
			si := s.AtVec(i)
			gs.SetVec(i, wi*(si*rowA[i]-p/si+p*si/sigma2))
		}
		return obj
	}
}

// FitSpherical estimates the spherical (single shared variance) model.
func FitSpherical(d *Data, init SphericalParams, cfg FitConfig) (*SphericalFit, error) {
	if err := checkMatDims("Theta", init.Theta, d.p, d.d); err != nil {
		return nil, err
	}
	if err := checkMatDims("M", init.M, d.n, d.p); err != nil {
		return nil, err
	}
	if err := checkVecDims("S", init.S, d.n); err != nil {
		return nil, err
	}

	pk := sphericalPacker(d)
	x := make([]float64, pk.Size())
	if d.d > 0 {
		pk.PackMat(sphTheta, x, init.Theta)
	}
	pk.PackMat(sphM, x, init.M)
	pk.PackVec(sphS, x, init.S)

	ocfg, err := cfg.optimConfig(pk)
	if err != nil {
		return nil, err
	}
	res, err := optim.Minimize(x, ocfg, sphericalObjective(d, pk))
	if err != nil {
		return nil, err
	}

	theta := cloneDense(pk.MatView(sphTheta, x))
	m := cloneDense(pk.MatView(sphM, x))
	s := cloneVec(pk.VecView(sphS, x))
	s2 := squareVec(s)

	sigma2 := sphericalSigma2(d, m, s2)
	sigma := mat.NewSymDense(d.p, nil)
	omega := mat.NewSymDense(d.p, nil)
	for j := 0; j < d.p; j++ {
		sigma.SetSym(j, j, sigma2)
		omega.SetSym(j, j, 1/sigma2)
	}

	z := d.linearPredictor(theta, m)
	a := expAddHalfRows(z, s2)

	p := float64(d.p)
	loglik := make([]float64, d.n)
	for i := 0; i < d.n; i++ {
		sum := 0.0
		m2 := 0.0
		for j := 0; j < d.p; j++ {
			mij := m.At(i, j)
			m2 += mij * mij
			sum += d.Y.At(i, j)*z.At(i, j) - a.At(i, j)
		}
		s2i := s2.AtVec(i)
		loglik[i] = sum - 0.5*m2/sigma2 - 0.5*p*s2i/sigma2 +
			0.5*p*math.Log(s2i/sigma2) + d.ki[i]
	}

	return &SphericalFit{
		Status:     res.Status,
		Iterations: res.Evaluations,
		Objective:  res.Objective,
		Theta:      theta,
		M:          m,
		S:          s,
		Z:          z,
		A:          a,
		Sigma2:     sigma2,
		Sigma:      sigma,
		Omega:      omega,
		LogLik:     loglik,
	}, nil
}
