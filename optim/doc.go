// Copyright 2025 The PLN Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim drives gradient-based local minimization with explicit
// stopping rules.
//
// # Overview
//
// This package wraps gonum's optimizers behind the stopping vocabulary
// common in statistical fitting:
//   - absolute parameter tolerances, one per parameter (XtolAbs)
//   - relative parameter and objective tolerances (XtolRel, FtolAbs, FtolRel)
//   - evaluation and wall-clock budgets (MaxEval, MaxTime)
//
// The objective and its gradient are supplied as one callback so shared
// intermediates are computed once per point.
//
// # Basic Usage
//
//	fn := func(x, grad []float64) float64 {
//	    grad[0] = 2 * x[0]
//	    return x[0] * x[0]
//	}
//
//	x := []float64{3}
//	res, err := optim.Minimize(x, optim.Config{
//	    Algorithm: optim.LBFGS,
//	    XtolAbs:   []float64{1e-8},
//	    FtolRel:   1e-10,
//	    MaxEval:   1000,
//	}, fn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Status, x[0])
//
// Minimize updates x in place and reports why iteration stopped in
// Result.Status. Any stopping reason other than Failure left x at a usable
// point; hitting an evaluation or time budget is reported as its own status
// rather than an error.
package optim
