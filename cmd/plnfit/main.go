// Package main provides the plnfit command line interface.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/pln-ml/pln/internal/config"
	"github.com/pln-ml/pln/internal/dataio"
	"github.com/pln-ml/pln/pln"
)

const version = "v0.1.0-dev"

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		logger.Error().Err(err).Msg("plnfit failed")
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "plnfit",
		Short:         "Fit Poisson log-normal models by variational approximation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "info", "Log level: debug|info|warn|error")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("log-level")
		lvl, err := zerolog.ParseLevel(name)
		if err != nil {
			return fmt.Errorf("invalid log level %q", name)
		}
		logger = logger.Level(lvl)
		return nil
	}

	fitCmd := &cobra.Command{
		Use:   "fit <run.yaml>",
		Short: "Run one fit described by a config file",
		Example: "  plnfit fit run.yaml --out fitted/\n" +
			"  plnfit fit run.toml --log-level debug",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("out")
			return runFit(args[0], outDir)
		},
	}
	fitCmd.Flags().String("out", "", "Directory for fitted matrices as CSV (empty: report only)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("plnfit %s\n", version)
		},
	}

	root.AddCommand(fitCmd, versionCmd)
	return root
}

func loadData(run config.Run) (*pln.Data, error) {
	if run.Counts == "" {
		return nil, fmt.Errorf("config: counts file is required")
	}
	y, err := dataio.ReadMatrix(run.Counts)
	if err != nil {
		return nil, err
	}
	n, p := y.Dims()

	var x *mat.Dense
	if run.Covariates != "" {
		if x, err = dataio.ReadMatrix(run.Covariates); err != nil {
			return nil, err
		}
	}

	o := mat.NewDense(n, p, nil)
	if run.Offsets != "" {
		if o, err = dataio.ReadMatrix(run.Offsets); err != nil {
			return nil, err
		}
	}

	var w *mat.VecDense
	if run.Weights != "" {
		if w, err = dataio.ReadVector(run.Weights); err != nil {
			return nil, err
		}
	}

	return pln.NewData(y, x, o, w)
}

func fitConfig(run config.Run) pln.FitConfig {
	cfg := pln.DefaultFitConfig()
	if run.Algorithm != "" {
		cfg.Algorithm = run.Algorithm
	}
	if run.XtolAbs != 0 {
		cfg.XtolAbs = run.XtolAbs
	}
	if run.XtolRel != 0 {
		cfg.XtolRel = run.XtolRel
	}
	if run.FtolAbs != 0 {
		cfg.FtolAbs = run.FtolAbs
	}
	if run.FtolRel != 0 {
		cfg.FtolRel = run.FtolRel
	}
	if run.MaxEval != 0 {
		cfg.MaxEval = run.MaxEval
	}
	if run.MaxTime != 0 {
		cfg.MaxTime = run.MaxTime
	}
	return cfg
}

func zeros(r, c int) *mat.Dense { return mat.NewDense(r, c, nil) }

func ones(r, c int) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, 1)
		}
	}
	return m
}

func onesVec(n int) *mat.VecDense {
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, 1)
	}
	return v
}

type fitOutput struct {
	status     fmt.Stringer
	objective  float64
	iterations int
	matrices   map[string]mat.Matrix
}

func runFit(path, outDir string) error {
	run, err := config.Load(path)
	if err != nil {
		return err
	}

	data, err := loadData(run)
	if err != nil {
		return err
	}
	cfg := fitConfig(run)

	variant := run.Variant
	if variant == "" {
		variant = "full"
	}
	logger.Info().
		Str("variant", variant).
		Int("rows", data.N()).
		Int("responses", data.P()).
		Int("covariates", data.D()).
		Str("algorithm", cfg.Algorithm).
		Msg("fitting")

	n, p, d := data.N(), data.P(), data.D()
	theta := zeros(p, d)
	if d == 0 {
		theta = nil
	}

	var out fitOutput
	switch variant {
	case "full":
		fit, err := pln.FitFull(data, pln.FullParams{Theta: theta, M: zeros(n, p), S: ones(n, p)}, cfg)
		if err != nil {
			return err
		}
		out = fitOutput{fit.Status, fit.Objective, fit.Iterations, map[string]mat.Matrix{
			"theta": fit.Theta, "m": fit.M, "s": fit.S, "sigma": fit.Sigma, "omega": fit.Omega,
		}}
	case "diagonal":
		fit, err := pln.FitDiagonal(data, pln.DiagonalParams{Theta: theta, M: zeros(n, p), S: ones(n, p)}, cfg)
		if err != nil {
			return err
		}
		out = fitOutput{fit.Status, fit.Objective, fit.Iterations, map[string]mat.Matrix{
			"theta": fit.Theta, "m": fit.M, "s": fit.S, "sigma": fit.Sigma,
		}}
	case "spherical":
		fit, err := pln.FitSpherical(data, pln.SphericalParams{Theta: theta, M: zeros(n, p), S: onesVec(n)}, cfg)
		if err != nil {
			return err
		}
		out = fitOutput{fit.Status, fit.Objective, fit.Iterations, map[string]mat.Matrix{
			"theta": fit.Theta, "m": fit.M, "s": fit.S, "sigma": fit.Sigma,
		}}
	case "rank":
		if run.Rank < 1 || run.Rank >= p {
			return fmt.Errorf("config: rank must be in [1, %d), got %d", p, run.Rank)
		}
		rng := rand.New(rand.NewSource(1))
		b := mat.NewDense(p, run.Rank, nil)
		for j := 0; j < p; j++ {
			for k := 0; k < run.Rank; k++ {
				b.Set(j, k, 0.1*rng.NormFloat64())
			}
		}
		fit, err := pln.FitRank(data, pln.RankParams{Theta: theta, B: b, M: zeros(n, run.Rank), S: ones(n, run.Rank)}, cfg)
		if err != nil {
			return err
		}
		out = fitOutput{fit.Status, fit.Objective, fit.Iterations, map[string]mat.Matrix{
			"theta": fit.Theta, "b": fit.B, "m": fit.M, "s": fit.S, "sigma": fit.Sigma,
		}}
	case "sparse":
		if run.Precision == "" {
			return fmt.Errorf("config: sparse variant requires a precision file")
		}
		omega, err := dataio.ReadSymmetric(run.Precision)
		if err != nil {
			return err
		}
		fit, err := pln.FitSparse(data, pln.SparseParams{Theta: theta, M: zeros(n, p), S: ones(n, p)}, omega, cfg)
		if err != nil {
			return err
		}
		out = fitOutput{fit.Status, fit.Objective, fit.Iterations, map[string]mat.Matrix{
			"theta": fit.Theta, "m": fit.M, "s": fit.S, "sigma": fit.Sigma,
		}}
	default:
		return fmt.Errorf("config: unknown variant %q (want full, diagonal, spherical, rank or sparse)", variant)
	}

	logger.Info().
		Stringer("status", out.status).
		Float64("objective", out.objective).
		Int("evaluations", out.iterations).
		Msg("done")

	if outDir == "" {
		return nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for name, m := range out.matrices {
		// Theta is a nil *mat.Dense when the model has no covariates.
		if dm, ok := m.(*mat.Dense); ok && dm == nil {
			continue
		}
		file := filepath.Join(outDir, name+".csv")
		if err := dataio.WriteMatrix(file, m); err != nil {
			return err
		}
		logger.Debug().Str("file", file).Msg("wrote")
	}
	return nil
}
