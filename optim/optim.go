// Copyright 2025 The PLN Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import "github.com/pln-ml/pln/internal/optim"

// ErrConfig tags configuration errors detected before any optimizer state
// exists.
var ErrConfig = optim.ErrConfig

// Algorithm selects the minimization method.
type Algorithm = optim.Algorithm

// Supported algorithms.
const (
	LBFGS    = optim.LBFGS
	BFGS     = optim.BFGS
	CG       = optim.CG
	Gradient = optim.Gradient
)

// AlgorithmFromName resolves an algorithm by its configuration name
// ("LBFGS", "BFGS", "CG" or "GRADIENT").
func AlgorithmFromName(name string) (Algorithm, error) {
	return optim.AlgorithmFromName(name)
}

// Config sets the stopping rules of one minimization. XtolAbs must have one
// entry per parameter.
type Config = optim.Config

// Status reports why a minimization stopped.
type Status = optim.Status

// Statuses.
const (
	Failure         = optim.Failure
	Success         = optim.Success
	XtolReached     = optim.XtolReached
	FtolReached     = optim.FtolReached
	GradientReached = optim.GradientReached
	MaxEvalReached  = optim.MaxEvalReached
	MaxTimeReached  = optim.MaxTimeReached
)

// Result is the outcome of a minimization.
type Result = optim.Result

// ObjectiveGrad evaluates the objective at x and writes its gradient into
// grad. Both slices have the same length; grad must be fully overwritten.
type ObjectiveGrad = optim.ObjectiveGrad

// Minimize runs the configured algorithm from x, updating x in place to the
// best point found.
func Minimize(x []float64, cfg Config, fn ObjectiveGrad) (Result, error) {
	return optim.Minimize(x, cfg, fn)
}
