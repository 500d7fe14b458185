// Copyright 2025 The PLN Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package pln fits Poisson log-normal models by variational approximation.
//
// # Overview
//
// A Poisson log-normal (PLN) model explains a matrix of counts Y (n rows,
// p responses) through a latent Gaussian layer: each row has a latent vector
// Z distributed around X·Thetaᵗ plus known offsets O, and the observed counts
// are conditionally Poisson with mean exp(Z). Fitting maximizes the evidence
// lower bound (ELBO) over the regression coefficients and a per-row Gaussian
// variational posterior with mean M and standard deviation |S|.
//
// This package contains:
//   - Data: validated observation container (counts, covariates, offsets,
//     row weights)
//   - FitFull, FitDiagonal, FitSpherical: covariance estimated in closed
//     form under the respective structural assumption
//   - FitRank: low-rank covariance B·Bᵗ with latent dimension q < p
//   - FitSparse: fixed caller-supplied precision matrix
//   - FitVEFull, FitVEDiagonal, FitVESpherical: variational E-steps with
//     coefficients and precision held fixed
//
// # Basic Usage
//
//	import (
//	    "gonum.org/v1/gonum/mat"
//
//	    "github.com/pln-ml/pln/pln"
//	)
//
//	func main() {
//	    data, err := pln.NewData(counts, covariates, offsets, nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    n, p := counts.Dims()
//	    _, d := covariates.Dims()
//	    fit, err := pln.FitFull(data, pln.FullParams{
//	        Theta: mat.NewDense(p, d, nil),
//	        M:     mat.NewDense(n, p, nil),
//	        S:     ones(n, p),
//	    }, pln.DefaultFitConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    fmt.Println(fit.Status, fit.Objective)
//	    fmt.Println(mat.Formatted(fit.Sigma))
//	}
//
// # Initial Values
//
// Every fit starts from caller-supplied parameters. A serviceable default is
// Theta and M at zero and S at one; warm starts from a previous fit converge
// much faster, which matters when fitting a regularization path. Initial
// parameters are never modified.
//
// # Signed Scales
//
// S is stored signed and its square is the variational variance, so the
// variance stays strictly positive for any finite S without bound
// constraints on the optimizer. The sign of a fitted S entry carries no
// meaning.
package pln
