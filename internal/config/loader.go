// Package config loads fit run descriptions for the plnfit command.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Run describes one fit: the model variant, the input files and the
// optimizer settings. Zero values mean "unspecified" and fall back to
// defaults in the command.
type Run struct {
	Variant string `json:"variant" yaml:"variant" toml:"variant"`
	Rank    int    `json:"rank" yaml:"rank" toml:"rank"`

	Counts     string `json:"counts" yaml:"counts" toml:"counts"`
	Covariates string `json:"covariates" yaml:"covariates" toml:"covariates"`
	Offsets    string `json:"offsets" yaml:"offsets" toml:"offsets"`
	Weights    string `json:"weights" yaml:"weights" toml:"weights"`
	Precision  string `json:"precision" yaml:"precision" toml:"precision"`

	Algorithm string  `json:"algorithm" yaml:"algorithm" toml:"algorithm"`
	XtolAbs   float64 `json:"xtol_abs" yaml:"xtol_abs" toml:"xtol_abs"`
	XtolRel   float64 `json:"xtol_rel" yaml:"xtol_rel" toml:"xtol_rel"`
	FtolAbs   float64 `json:"ftol_abs" yaml:"ftol_abs" toml:"ftol_abs"`
	FtolRel   float64 `json:"ftol_rel" yaml:"ftol_rel" toml:"ftol_rel"`
	MaxEval   int     `json:"max_eval" yaml:"max_eval" toml:"max_eval"`
	MaxTime   float64 `json:"max_time" yaml:"max_time" toml:"max_time"`
}

// Load reads a run description based on its file extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Run, error) {
	var run Run
	if path == "" {
		return run, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return run, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &run); err != nil {
			return run, err
		}
	case ".json":
		if err := json.Unmarshal(b, &run); err != nil {
			return run, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &run); err != nil {
			return run, err
		}
	default:
		return run, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return run, nil
}
