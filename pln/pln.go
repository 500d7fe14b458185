// Copyright 2025 The PLN Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package pln

import (
	"gonum.org/v1/gonum/mat"

	"github.com/pln-ml/pln/internal/pln"
)

// Data holds the fixed observation matrices of one model: counts, optional
// covariates, offsets and row weights.
type Data = pln.Data

// NewData validates shapes and builds the observation container. The
// covariate matrix may be nil when the model has no covariates; the weight
// vector may be nil for unit weights.
func NewData(y, x, o *mat.Dense, w *mat.VecDense) (*Data, error) {
	return pln.NewData(y, x, o, w)
}

// FitConfig is the optimizer configuration surface shared by every fit.
type FitConfig = pln.FitConfig

// DefaultFitConfig returns the conventional defaults: LBFGS with relative
// tolerances only and a 10000-evaluation budget.
func DefaultFitConfig() FitConfig {
	return pln.DefaultFitConfig()
}

// Full covariance

// FullParams are the initial unknowns of the fully parameterized fit.
type FullParams = pln.FullParams

// FullFit is the outcome of FitFull.
type FullFit = pln.FullFit

// FitFull estimates the model with a fully parameterized covariance matrix.
func FitFull(d *Data, init FullParams, cfg FitConfig) (*FullFit, error) {
	return pln.FitFull(d, init, cfg)
}

// Diagonal covariance

// DiagonalParams are the initial unknowns of the diagonal fit.
type DiagonalParams = pln.DiagonalParams

// DiagonalFit is the outcome of FitDiagonal.
type DiagonalFit = pln.DiagonalFit

// FitDiagonal estimates the model under a diagonal covariance assumption.
func FitDiagonal(d *Data, init DiagonalParams, cfg FitConfig) (*DiagonalFit, error) {
	return pln.FitDiagonal(d, init, cfg)
}

// Spherical covariance

// SphericalParams are the initial unknowns of the spherical fit. S holds one
// scale per observation row.
type SphericalParams = pln.SphericalParams

// SphericalFit is the outcome of FitSpherical.
type SphericalFit = pln.SphericalFit

// FitSpherical estimates the model with a single shared latent variance.
func FitSpherical(d *Data, init SphericalParams, cfg FitConfig) (*SphericalFit, error) {
	return pln.FitSpherical(d, init, cfg)
}

// Low-rank covariance

// RankParams are the initial unknowns of the low-rank fit. The latent
// dimension q is taken from the column count of B.
type RankParams = pln.RankParams

// RankFit is the outcome of FitRank.
type RankFit = pln.RankFit

// FitRank estimates the model with covariance B·Bᵗ of rank q < p.
func FitRank(d *Data, init RankParams, cfg FitConfig) (*RankFit, error) {
	return pln.FitRank(d, init, cfg)
}

// Fixed precision

// SparseParams are the initial unknowns of the fixed-precision fit.
type SparseParams = pln.SparseParams

// SparseFit is the outcome of FitSparse.
type SparseFit = pln.SparseFit

// FitSparse estimates coefficients and variational parameters with the
// precision matrix omega held fixed, as used inside a sparse-penalty
// outer loop.
func FitSparse(d *Data, init SparseParams, omega *mat.SymDense, cfg FitConfig) (*SparseFit, error) {
	return pln.FitSparse(d, init, omega, cfg)
}

// Variational E-steps

// VEParams are the variational unknowns of the full and diagonal E-steps.
type VEParams = pln.VEParams

// VEFit is the outcome of FitVEFull and FitVEDiagonal.
type VEFit = pln.VEFit

// VESphericalParams are the variational unknowns of the spherical E-step.
type VESphericalParams = pln.VESphericalParams

// VESphericalFit is the outcome of FitVESpherical.
type VESphericalFit = pln.VESphericalFit

// FitVEFull optimizes the variational parameters of the full model with
// theta and omega supplied fixed.
func FitVEFull(d *Data, init VEParams, theta *mat.Dense, omega *mat.SymDense, cfg FitConfig) (*VEFit, error) {
	return pln.FitVEFull(d, init, theta, omega, cfg)
}

// FitVEDiagonal optimizes the variational parameters of the diagonal model
// with theta and omega supplied fixed.
func FitVEDiagonal(d *Data, init VEParams, theta *mat.Dense, omega *mat.SymDense, cfg FitConfig) (*VEFit, error) {
	return pln.FitVEDiagonal(d, init, theta, omega, cfg)
}

// FitVESpherical optimizes the variational parameters of the spherical model
// with theta and omega supplied fixed. The shared precision is read from
// omega's leading entry.
func FitVESpherical(d *Data, init VESphericalParams, theta *mat.Dense, omega *mat.SymDense, cfg FitConfig) (*VESphericalFit, error) {
	return pln.FitVESpherical(d, init, theta, omega, cfg)
}
