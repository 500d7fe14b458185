package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeTempFile(t, "run.yaml",
		"variant: rank\nrank: 3\ncounts: y.csv\ncovariates: x.csv\nalgorithm: CG\nxtol_rel: 1e-6\nmax_eval: 500\n")
	run, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "rank", run.Variant)
	assert.Equal(t, 3, run.Rank)
	assert.Equal(t, "y.csv", run.Counts)
	assert.Equal(t, "x.csv", run.Covariates)
	assert.Equal(t, "CG", run.Algorithm)
	assert.Equal(t, 1e-6, run.XtolRel)
	assert.Equal(t, 500, run.MaxEval)
}

func TestLoadJSON(t *testing.T) {
	p := writeTempFile(t, "run.json",
		`{"variant":"sparse","counts":"y.csv","precision":"omega.csv","ftol_rel":1e-8}`)
	run, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "sparse", run.Variant)
	assert.Equal(t, "omega.csv", run.Precision)
	assert.Equal(t, 1e-8, run.FtolRel)
}

func TestLoadTOML(t *testing.T) {
	p := writeTempFile(t, "run.toml",
		"variant=\"full\"\ncounts=\"y.csv\"\noffsets=\"o.csv\"\nmax_time=30.0\n")
	run, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "full", run.Variant)
	assert.Equal(t, "o.csv", run.Offsets)
	assert.Equal(t, 30.0, run.MaxTime)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	p := writeTempFile(t, "run.txt", "nope")
	_, err = Load(p)
	assert.ErrorContains(t, err, "unsupported config extension")
}
