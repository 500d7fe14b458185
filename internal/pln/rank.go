package pln

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pln-ml/pln/internal/optim"
	"github.com/pln-ml/pln/internal/packing"
)

// RankParams are the unknowns of the low-rank covariance fit. The latent
// dimension q is taken from the shapes: B is p×q and M, S are n×q.
type RankParams struct {
	Theta *mat.Dense // (p×d)
	B     *mat.Dense // loading matrix (p×q)
	M     *mat.Dense // latent variational means (n×q)
	S     *mat.Dense // latent signed scales (n×q)
}

// RankFit is the outcome of FitRank. The covariance estimate lives in the
// column space of B; no precision matrix is reported.
type RankFit struct {
	Status     optim.Status
	Iterations int
	Objective  float64

	Theta *mat.Dense
	B     *mat.Dense
	M     *mat.Dense
	S     *mat.Dense

	Z     *mat.Dense
	A     *mat.Dense
	Sigma *mat.SymDense // B·(MᵗWM + diag(wᵗS²))·Bᵗ / w̄

	LogLik []float64
}

const (
	rankTheta = iota
	rankB
	rankM
	rankS
)

func rankPacker(d *Data, q int) *packing.Packer {
	return packing.NewPacker(
		packing.MatGroup("Theta", d.p, d.d),
		packing.MatGroup("B", d.p, q),
		packing.MatGroup("M", d.n, q),
		packing.MatGroup("S", d.n, q),
	)
}

func rankObjective(d *Data, pk *packing.Packer) optim.ObjectiveGrad {
	return func(xv, grad []float64) float64 {
		theta := pk.MatView(rankTheta, xv)
		b := pk.MatView(rankB, xv)
		m := pk.MatView(rankM, xv)
		s := pk.MatView(rankS, xv)

		_, q := b.Dims()
		s2 := squareElems(s)
		b2 := squareElems(b)

		latent := mat.NewDense(d.n, d.p, nil)
		latent.Mul(m, b.T())
		z := d.linearPredictor(theta, latent)

		// A = exp(Z + 0.5·S²·(B∘B)ᵗ)
		v := mat.NewDense(d.n, d.p, nil)
		v.Mul(s2, b2.T())
		a := expAddHalf(z, v)

		obj := 0.0
		for i := 0; i < d.n; i++ {
			wi := d.W.AtVec(i)
			for j := 0; j < d.p; j++ {
				obj += wi * (a.At(i, j) - d.Y.At(i, j)*z.At(i, j))
			}
			for k := 0; k < q; k++ {
				mik := m.At(i, k)
				obj += 0.5 * wi * (mik*mik + s2.At(i, k) - math.Log(s2.At(i, k)) - 1)
			}
		}

		amy := mat.NewDense(d.n, d.p, nil)
		amy.Sub(a, d.Y)
		wamy := mat.NewDense(d.n, d.p, nil)
		scaleRows(wamy, amy, d.W)

		d.gradTheta(pk.MatView(rankTheta, grad), amy)

		// ∂/∂B = (W(A−Y))ᵗM + (Aᵗ(W·S²))∘B
		gb := pk.MatView(rankB, grad)
		gb.Mul(wamy.T(), m)
		ws2 := mat.NewDense(d.n, q, nil)
		scaleRows(ws2, s2, d.W)
		aws2 := mat.NewDense(d.p, q, nil)
		aws2.Mul(a.T(), ws2)
		for j := 0; j < d.p; j++ {
			for k := 0; k < q; k++ {
				gb.Set(j, k, gb.At(j, k)+aws2.At(j, k)*b.At(j, k))
			}
		}

		// ∂/∂M = W((A−Y)B + M)
		gm := pk.MatView(rankM, grad)
		gm.Mul(amy, b)
		gm.Add(gm, m)
		scaleRowsInPlace(gm, d.W)

		// ∂/∂S = W(S − 1/S + (A(B∘B))∘S)
		gs := pk.MatView(rankS, grad)
		ab2 := mat.NewDense(d.n, q, nil)
		ab2.Mul(a, b2)
		for i := 0; i < d.n; i++ {
			wi := d.W.AtVec(i)
			for k := 0; k < q; k++ {
				sik := s.At(i, k)
				gs.Set(i, k, wi*(sik-1/sik+ab2.At(i, k)*sik))
			}
		}
		return obj
	}
}

// FitRank estimates the rank-constrained covariance model. The latent
// dimension is determined by the shapes of the initial parameters.
func FitRank(d *Data, init RankParams, cfg FitConfig) (*RankFit, error) {
	if init.B == nil {
		return nil, fmt.Errorf("pln: missing initial loading matrix B")
	}
	_, q := init.B.Dims()
	if err := checkMatDims("Theta", init.Theta, d.p, d.d); err != nil {
		return nil, err
	}
	if err := checkMatDims("B", init.B, d.p, q); err != nil {
		return nil, err
	}
	if err := checkMatDims("M", init.M, d.n, q); err != nil {
		return nil, err
	}
	if err := checkMatDims("S", init.S, d.n, q); err != nil {
		return nil, err
	}

	pk := rankPacker(d, q)
	x := make([]float64, pk.Size())
	if d.d > 0 {
		pk.PackMat(rankTheta, x, init.Theta)
	}
	pk.PackMat(rankB, x, init.B)
	pk.PackMat(rankM, x, init.M)
	pk.PackMat(rankS, x, init.S)

	ocfg, err := cfg.optimConfig(pk)
	if err != nil {
		return nil, err
	}
	res, err := optim.Minimize(x, ocfg, rankObjective(d, pk))
	if err != nil {
		return nil, err
	}

	theta := cloneDense(pk.MatView(rankTheta, x))
	b := cloneDense(pk.MatView(rankB, x))
	m := cloneDense(pk.MatView(rankM, x))
	s := cloneDense(pk.MatView(rankS, x))
	s2 := squareElems(s)
	b2 := squareElems(b)

	inner := weightedGramDiag(m, s2, d.W)
	tmp := mat.NewDense(d.p, q, nil)
	tmp.Mul(b, inner)
	full := mat.NewDense(d.p, d.p, nil)
	full.Mul(tmp, b.T())
	sigma := mat.NewSymDense(d.p, nil)
	for j := 0; j < d.p; j++ {
		for k := j; k < d.p; k++ {
			sigma.SetSym(j, k, 0.5*(full.At(j, k)+full.At(k, j))/d.wbar)
		}
	}

	latent := mat.NewDense(d.n, d.p, nil)
	latent.Mul(m, b.T())
	z := d.linearPredictor(theta, latent)
	v := mat.NewDense(d.n, d.p, nil)
	v.Mul(s2, b2.T())
	a := expAddHalf(z, v)

	loglik := make([]float64, d.n)
	for i := 0; i < d.n; i++ {
		sum := 0.0
		for j := 0; j < d.p; j++ {
			sum += d.Y.At(i, j)*z.At(i, j) - a.At(i, j)
		}
		for k := 0; k < q; k++ {
			mik := m.At(i, k)
			sum -= 0.5 * (mik*mik + s2.At(i, k) - math.Log(s2.At(i, k)) - 1)
		}
		loglik[i] = sum + d.ki[i]
	}

	return &RankFit{
		Status:     res.Status,
		Iterations: res.Evaluations,
		Objective:  res.Objective,
		Theta:      theta,
		B:          b,
		M:          m,
		S:          s,
		Z:          z,
		A:          a,
		Sigma:      sigma,
		LogLik:     loglik,
	}, nil
}
