package pln

import (
	"fmt"

	"github.com/pln-ml/pln/internal/optim"
	"github.com/pln-ml/pln/internal/packing"
)

// FitConfig is the optimizer configuration surface of a fit.
//
// XtolAbs is the scalar absolute parameter tolerance, broadcast across every
// packed element. XtolAbsBy optionally replaces it with per-parameter values:
// one entry per parameter group (keyed by group name, e.g. "Theta", "M",
// "S"), each either a float64 broadcast over that group or a value matching
// the group's shape exactly. Any other entry type, a missing group, or a
// shape mismatch is a configuration error.
type FitConfig struct {
	Algorithm string
	XtolAbs   float64
	XtolAbsBy map[string]any
	XtolRel   float64
	FtolAbs   float64
	FtolRel   float64
	MaxEval   int     // 0 means unlimited
	MaxTime   float64 // seconds, 0 means unlimited
}

// DefaultFitConfig returns the conventional defaults: LBFGS with relative
// tolerances only and a 10000-evaluation budget.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		Algorithm: "LBFGS",
		XtolRel:   1e-6,
		FtolRel:   1e-8,
		MaxEval:   10000,
	}
}

// optimConfig resolves the algorithm and builds the packed xtol_abs vector
// for the given parameter layout. All failures here are configuration
// errors, raised before any optimizer state exists.
func (c FitConfig) optimConfig(pk *packing.Packer) (optim.Config, error) {
	alg, err := optim.AlgorithmFromName(c.Algorithm)
	if err != nil {
		return optim.Config{}, err
	}

	xtol := make([]float64, pk.Size())
	if c.XtolAbsBy == nil {
		for i := range xtol {
			xtol[i] = c.XtolAbs
		}
	} else {
		for i := 0; i < pk.NumGroups(); i++ {
			g := pk.Group(i)
			v, ok := c.XtolAbsBy[g.Name]
			if !ok {
				return optim.Config{}, fmt.Errorf("%w: xtol_abs has no value for parameter %q",
					optim.ErrConfig, g.Name)
			}
			if err := pk.PackScalarOrShaped(i, xtol, v); err != nil {
				return optim.Config{}, fmt.Errorf("%w: xtol_abs: %v", optim.ErrConfig, err)
			}
		}
	}

	return optim.Config{
		Algorithm: alg,
		XtolAbs:   xtol,
		XtolRel:   c.XtolRel,
		FtolAbs:   c.FtolAbs,
		FtolRel:   c.FtolRel,
		MaxEval:   c.MaxEval,
		MaxTime:   c.MaxTime,
	}, nil
}
