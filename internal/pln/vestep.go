package pln

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pln-ml/pln/internal/optim"
	"github.com/pln-ml/pln/internal/packing"
)

// VE steps: optimize the variational parameters M,S only, with the
// regression coefficients and the precision matrix supplied fixed. Used by
// the host's EM loop to evaluate held-out observations under an already
// fitted model.

// VEParams are the variational unknowns of the full and diagonal VE steps.
type VEParams struct {
	M *mat.Dense // (n×p)
	S *mat.Dense // (n×p)
}

// VEFit is the outcome of FitVEFull and FitVEDiagonal.
type VEFit struct {
	Status     optim.Status
	Iterations int
	Objective  float64

	M *mat.Dense
	S *mat.Dense

	Z *mat.Dense
	A *mat.Dense

	LogLik []float64
}

const (
	veM = iota
	veS
)

func vePacker(d *Data) *packing.Packer {
	return packing.NewPacker(
		packing.MatGroup("M", d.n, d.p),
		packing.MatGroup("S", d.n, d.p),
	)
}

// checkFixedTheta validates a fixed coefficient matrix; nil is legal when
// the data has no covariates.
func checkFixedTheta(d *Data, theta *mat.Dense) error {
	return checkMatDims("Theta", theta, d.p, d.d)
}

func veFullObjective(d *Data, pk *packing.Packer, theta *mat.Dense, omega *mat.SymDense) optim.ObjectiveGrad {
	return func(xv, grad []float64) float64 {
		m := pk.MatView(veM, xv)
		s := pk.MatView(veS, xv)

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

		gm := pk.MatView(veM, grad)
		gm.Mul(m, omega)
		gm.Add(gm, amy)
		scaleRowsInPlace(gm, d.W)

		gs := pk.MatView(veS, grad)
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

// FitVEFull runs the variational E-step of the full covariance model with
// theta and omega held fixed.
func FitVEFull(d *Data, init VEParams, theta *mat.Dense, omega *mat.SymDense, cfg FitConfig) (*VEFit, error) {
	if err := checkFixedTheta(d, theta); err != nil {
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

	pk := vePacker(d)
	x := make([]float64, pk.Size())
	pk.PackMat(veM, x, init.M)
	pk.PackMat(veS, x, init.S)

	ocfg, err := cfg.optimConfig(pk)
	if err != nil {
		return nil, err
	}
	res, err := optim.Minimize(x, ocfg, veFullObjective(d, pk, theta, omega))
	if err != nil {
		return nil, err
	}

	m := cloneDense(pk.MatView(veM, x))
	s := cloneDense(pk.MatView(veS, x))
	s2 := squareElems(s)

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

	return &VEFit{
		Status:     res.Status,
		Iterations: res.Evaluations,
		Objective:  res.Objective,
		M:          m,
		S:          s,
		Z:          z,
		A:          a,
		LogLik:     loglik,
	}, nil
}

func veDiagonalObjective(d *Data, pk *packing.Packer, theta *mat.Dense, omegaDiag []float64) optim.ObjectiveGrad {
	return func(xv, grad []float64) float64 {
		m := pk.MatView(veM, xv)
		s := pk.MatView(veS, xv)

		s2 := squareElems(s)
		z := d.linearPredictor(theta, m)
		a := expAddHalf(z, s2)

		obj := 0.0
		for i := 0; i < d.n; i++ {
			wi := d.W.AtVec(i)
			for j := 0; j < d.p; j++ {
				mij := m.At(i, j)
				obj += wi * (a.At(i, j) - d.Y.At(i, j)*z.At(i, j) - 0.5*math.Log(s2.At(i, j)))
				obj += 0.5 * wi * (mij*mij + s2.At(i, j)) * omegaDiag[j]
			}
		}

		gm := pk.MatView(veM, grad)
		gs := pk.MatView(veS, grad)
		for i := 0; i < d.n; i++ {
			wi := d.W.AtVec(i)
			for j := 0; j < d.p; j++ {
				sij := s.At(i, j)
				gm.Set(i, j, wi*(m.At(i, j)*omegaDiag[j]+a.At(i, j)-d.Y.At(i, j)))
				gs.Set(i, j, wi*(sij*omegaDiag[j]+sij*a.At(i, j)-1/sij))
			}
		}
		return obj
	}
}

// FitVEDiagonal runs the variational E-step of the diagonal covariance
// model. Only the diagonal of omega enters the objective.
func FitVEDiagonal(d *Data, init VEParams, theta *mat.Dense, omega *mat.SymDense, cfg FitConfig) (*VEFit, error) {
	if err := checkFixedTheta(d, theta); err != nil {
		return nil, err
	}
	if err := checkMatDims("M", init.M, d.n, d.p); err != nil {
		return nil, err
	}
	if err := checkMatDims("S", init.S, d.n, d.p); err != nil {
		return nil, err
	}
	if _, err := checkPrecision(omega, d.p); err != nil {
		return nil, err
	}
	omegaDiag := make([]float64, d.p)
	sumLogOmega := 0.0
	for j := 0; j < d.p; j++ {
		omegaDiag[j] = omega.At(j, j)
		sumLogOmega += math.Log(omegaDiag[j])
	}

	pk := vePacker(d)
	x := make([]float64, pk.Size())
	pk.PackMat(veM, x, init.M)
	pk.PackMat(veS, x, init.S)

	ocfg, err := cfg.optimConfig(pk)
	if err != nil {
		return nil, err
	}
	res, err := optim.Minimize(x, ocfg, veDiagonalObjective(d, pk, theta, omegaDiag))
	if err != nil {
		return nil, err
	}

	m := cloneDense(pk.MatView(veM, x))
	s := cloneDense(pk.MatView(veS, x))
	s2 := squareElems(s)

	z := d.linearPredictor(theta, m)
	a := expAddHalf(z, s2)

	loglik := make([]float64, d.n)
	for i := 0; i < d.n; i++ {
		sum := 0.0
		for j := 0; j < d.p; j++ {
			mij := m.At(i, j)
			sum += d.Y.At(i, j)*z.At(i, j) - a.At(i, j) + 0.5*math.Log(s2.At(i, j))
			sum -= 0.5 * (mij*mij + s2.At(i, j)) * omegaDiag[j]
		}
		loglik[i] = sum + 0.5*sumLogOmega + d.ki[i]
	}

	return &VEFit{
		Status:     res.Status,
		Iterations: res.Evaluations,
		Objective:  res.Objective,
		M:          m,
		S:          s,
		Z:          z,
		A:          a,
		LogLik:     loglik,
	}, nil
}

// VESphericalParams are the variational unknowns of the spherical VE step.
type VESphericalParams struct {
	M *mat.Dense    // (n×p)
	S *mat.VecDense // (n)
}

// VESphericalFit is the outcome of FitVESpherical.
type VESphericalFit struct {
	Status     optim.Status
	Iterations int
	Objective  float64

	M *mat.Dense
	S *mat.VecDense

	Z *mat.Dense
	A *mat.Dense

	LogLik []float64
}

func veSphericalPacker(d *Data) *packing.Packer {
	return packing.NewPacker(
		packing.MatGroup("M", d.n, d.p),
		packing.VecGroup("S", d.n),
	)
}

func veSphericalObjective(d *Data, pk *packing.Packer, theta *mat.Dense, omega2 float64) optim.ObjectiveGrad {
	p := float64(d.p)
	return func(xv, grad []float64) float64 {
		m := pk.MatView(veM, xv)
		s := pk.VecView(veS, xv)

		s2 := squareVec(s)
		z := d.linearPredictor(theta, m)
		a := expAddHalfRows(z, s2)

		obj := 0.0
		for i := 0; i < d.n; i++ {
			wi := d.W.AtVec(i)
			m2 := 0.0
			for j := 0; j < d.p; j++ {
				mij := m.At(i, j)
				m2 += mij * mij
				obj += wi * (a.At(i, j) - d.Y.At(i, j)*z.At(i, j))
			}
			obj -= 0.5 * p * wi * math.Log(s2.AtVec(i))
			obj += 0.5 * omega2 * wi * (m2 + p*s2.AtVec(i))
		}

		gm := pk.MatView(veM, grad)
		gs := pk.VecView(veS, grad)
		rowA := rowSums(a)
		for i := 0; i < d.n; i++ {
			wi := d.W.AtVec(i)
			for j := 0; j < d.p; j++ {
				gm.Set(i, j, wi*(m.At(i, j)*omega2+a.At(i, j)-d.Y.At(i, j)))
			}
			si := s.AtVec(i)
			gs.SetVec(i, wi*(si*rowA[i]-p/si+p*si*omega2))
		}
		return obj
	}
}

// FitVESpherical runs the variational E-step of the spherical model. The
// shared precision is read from omega's leading entry.
func FitVESpherical(d *Data, init VESphericalParams, theta *mat.Dense, omega *mat.SymDense, cfg FitConfig) (*VESphericalFit, error) {
	if err := checkFixedTheta(d, theta); err != nil {
		return nil, err
	}
	if err := checkMatDims("M", init.M, d.n, d.p); err != nil {
		return nil, err
	}
	if err := checkVecDims("S", init.S, d.n); err != nil {
		return nil, err
	}
	if _, err := checkPrecision(omega, d.p); err != nil {
		return nil, err
	}
	omega2 := omega.At(0, 0)

	pk := veSphericalPacker(d)
	x := make([]float64, pk.Size())
	pk.PackMat(veM, x, init.M)
	pk.PackVec(veS, x, init.S)

	ocfg, err := cfg.optimConfig(pk)
	if err != nil {
		return nil, err
	}
	res, err := optim.Minimize(x, ocfg, veSphericalObjective(d, pk, theta, omega2))
	if err != nil {
		return nil, err
	}

	m := cloneDense(pk.MatView(veM, x))
	s := cloneVec(pk.VecView(veS, x))
	s2 := squareVec(s)

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
		loglik[i] = sum - 0.5*omega2*m2 - 0.5*p*omega2*s2i +
			0.5*p*math.Log(s2i*omega2) + d.ki[i]
	}

	return &VESphericalFit{
		Status:     res.Status,
		Iterations: res.Evaluations,
		Objective:  res.Objective,
		M:          m,
		S:          s,
		Z:          z,
		A:          a,
		LogLik:     loglik,
	}, nil
}
