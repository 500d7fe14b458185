// Package optim is a thin, safety-checked driver around gonum's gradient-based
// local optimizers.
//
// The driver validates the configuration before any optimizer state is built,
// adapts a combined objective+gradient function to gonum's split Func/Grad
// callback convention without copying the gradient array, and reports
// non-success termination as data rather than as an error: the parameter
// vector always holds the best point found, and the caller decides whether a
// limit-terminated run is acceptable.
package optim

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// ErrConfig is the class of configuration errors: unsupported algorithm
// names, tolerance vectors of the wrong length. Detected before any optimizer
// state exists.
var ErrConfig = errors.New("invalid optimizer configuration")

// Algorithm selects the gradient-based local method used by Minimize.
type Algorithm int

const (
	// LBFGS is limited-memory BFGS, the default.
	LBFGS Algorithm = iota
	// BFGS is the full quasi-Newton method.
	BFGS
	// CG is nonlinear conjugate gradient.
	CG
	// Gradient is plain gradient descent with line search.
	Gradient
)

var algorithmNames = map[string]Algorithm{
	"LBFGS":    LBFGS,
	"BFGS":     BFGS,
	"CG":       CG,
	"GRADIENT": Gradient,
}

// AlgorithmFromName resolves a supported algorithm name. Unknown names fail
// with a configuration error naming the value and listing the supported set.
func AlgorithmFromName(name string) (Algorithm, error) {
	if a, ok := algorithmNames[name]; ok {
		return a, nil
	}
	supported := make([]string, 0, len(algorithmNames))
	for n := range algorithmNames {
		supported = append(supported, n)
	}
	sort.Strings(supported)
	return 0, fmt.Errorf("%w: unsupported algorithm %q (supported: %s)",
		ErrConfig, name, strings.Join(supported, ", "))
}

func (a Algorithm) String() string {
	for n, v := range algorithmNames {
		if v == a {
			return n
		}
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

func (a Algorithm) method() optimize.Method {
	switch a {
	case BFGS:
		return &optimize.BFGS{}
	case CG:
		return &optimize.CG{}
	case Gradient:
		return &optimize.GradientDescent{}
	default:
		return &optimize.LBFGS{}
	}
}

// Config holds the stopping configuration for one Minimize call.
//
// XtolAbs carries one absolute tolerance per packed parameter element and
// must have exactly the problem dimension. A tolerance of zero disables the
// corresponding criterion, as in nlopt.
type Config struct {
	Algorithm Algorithm
	XtolAbs   []float64
	XtolRel   float64
	FtolAbs   float64
	FtolRel   float64
	MaxEval   int     // 0 means unlimited
	MaxTime   float64 // seconds, 0 means unlimited
}

// Status is the terminal state of a Minimize call.
type Status int

const (
	// Failure is the generic non-convergence kind.
	Failure Status = iota
	// Success is the optimizer's own success report.
	Success
	// XtolReached: successive parameter changes fell below the x tolerances.
	XtolReached
	// FtolReached: successive objective changes fell below the f tolerances.
	FtolReached
	// GradientReached: the gradient norm fell below the optimizer threshold.
	GradientReached
	// MaxEvalReached: the evaluation budget was exhausted.
	MaxEvalReached
	// MaxTimeReached: the wall-clock budget was exhausted.
	MaxTimeReached
)

var statusNames = [...]string{
	Failure:         "Failure",
	Success:         "Success",
	XtolReached:     "XtolReached",
	FtolReached:     "FtolReached",
	GradientReached: "GradientReached",
	MaxEvalReached:  "MaxEvalReached",
	MaxTimeReached:  "MaxTimeReached",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Ok reports whether the run ended in any state other than generic failure.
// Limit-terminated runs still carry a usable best point.
func (s Status) Ok() bool { return s != Failure }

// Result describes how a Minimize call terminated. The parameter vector
// passed to Minimize holds the final point regardless of status.
type Result struct {
	Status      Status
	Objective   float64
	Evaluations int
}

// ObjectiveGrad computes the objective value at x and writes the gradient
// into grad. Both slices have the problem dimension. grad is owned by the
// optimizer and must be written in place.
type ObjectiveGrad func(x, grad []float64) float64

// Minimize runs the configured optimizer on fn starting from params.
// params is mutated in place to the best point found.
//
// A returned error means the call was rejected (bad configuration, or the
// underlying optimizer refused the problem) and no usable result exists.
// Every terminal optimizer state, including evaluation and time limits, is
// reported through Result.Status instead.
func Minimize(params []float64, cfg Config, fn ObjectiveGrad) (Result, error) {
	if len(cfg.XtolAbs) != len(params) {
		return Result{}, fmt.Errorf("%w: xtol_abs has length %d, parameters have length %d",
			ErrConfig, len(cfg.XtolAbs), len(params))
	}

	adapter := newObjAdapter(fn, len(params))

	settings := &optimize.Settings{
		Converger: &tolConverge{
			xtolAbs: cfg.XtolAbs,
			xtolRel: cfg.XtolRel,
			ftolAbs: cfg.FtolAbs,
			ftolRel: cfg.FtolRel,
		},
		FuncEvaluations: cfg.MaxEval,
	}
	if cfg.MaxTime > 0 {
		settings.Runtime = time.Duration(cfg.MaxTime * float64(time.Second))
	}

	problem := optimize.Problem{
		Func: adapter.Func,
		Grad: adapter.Grad,
	}

	res, err := optimize.Minimize(problem, params, settings, cfg.Algorithm.method())
	if res == nil {
		// Rejected before the optimization loop ran.
		return Result{}, fmt.Errorf("optim: optimizer rejected the problem: %w", err)
	}
	copy(params, res.X)
	return Result{
		Status:      mapStatus(res.Status),
		Objective:   res.F,
		Evaluations: adapter.evals,
	}, nil
}

func mapStatus(s optimize.Status) Status {
	switch s {
	case optimize.Success, optimize.FunctionThreshold, optimize.MethodConverge:
		return Success
	case optimize.StepConvergence:
		return XtolReached
	case optimize.FunctionConvergence:
		return FtolReached
	case optimize.GradientThreshold:
		return GradientReached
	case optimize.FunctionEvaluationLimit, optimize.GradientEvaluationLimit, optimize.IterationLimit:
		return MaxEvalReached
	case optimize.RuntimeLimit:
		return MaxTimeReached
	default:
		return Failure
	}
}

// objAdapter bridges the combined objective+gradient function to gonum's
// split Func/Grad convention. The two calls at one trial point share a single
// evaluation; in the Grad path the gradient is computed directly into the
// optimizer-owned array. Each fresh evaluation increments evals, independent
// of the reported status.
type objAdapter struct {
	fn    ObjectiveGrad
	x     []float64 // last evaluated point
	g     []float64 // gradient at x
	f     float64
	valid bool
	evals int
}

func newObjAdapter(fn ObjectiveGrad, dim int) *objAdapter {
	return &objAdapter{
		fn: fn,
		x:  make([]float64, dim),
		g:  make([]float64, dim),
	}
}

func (a *objAdapter) cachedAt(x []float64) bool {
	return a.valid && floats.Equal(a.x, x)
}

func (a *objAdapter) Func(x []float64) float64 {
	if a.cachedAt(x) {
		return a.f
	}
	a.f = a.fn(x, a.g)
	copy(a.x, x)
	a.valid = true
	a.evals++
	return a.f
}

func (a *objAdapter) Grad(grad, x []float64) {
	if a.cachedAt(x) {
		copy(grad, a.g)
		return
	}
	a.f = a.fn(x, grad)
	copy(a.g, grad)
	copy(a.x, x)
	a.valid = true
	a.evals++
}

// tolConverge reproduces nlopt's x/f stopping rules on top of gonum's
// Converger hook: converged when every coordinate moved less than its
// absolute tolerance or the relative tolerance, or when the objective change
// fell below the absolute or relative objective tolerance. Zero tolerances
// disable the corresponding comparison.
type tolConverge struct {
	xtolAbs []float64
	xtolRel float64
	ftolAbs float64
	ftolRel float64

	first bool
	prevX []float64
	prevF float64
}

func (c *tolConverge) Init(dim int) {
	c.prevX = make([]float64, dim)
	c.first = true
}

func (c *tolConverge) Converged(loc *optimize.Location) optimize.Status {
	if c.first {
		copy(c.prevX, loc.X)
		c.prevF = loc.F
		c.first = false
		return optimize.NotTerminated
	}

	xconv := true
	for i, x := range loc.X {
		dx := math.Abs(x - c.prevX[i])
		if dx > c.xtolAbs[i] && dx > c.xtolRel*math.Abs(x) {
			xconv = false
			break
		}
	}

	df := math.Abs(loc.F - c.prevF)
	fconv := df <= c.ftolAbs || df <= c.ftolRel*math.Abs(loc.F)

	copy(c.prevX, loc.X)
	c.prevF = loc.F

	switch {
	case xconv:
		return optimize.StepConvergence
	case fconv:
		return optimize.FunctionConvergence
	default:
		return optimize.NotTerminated
	}
}
