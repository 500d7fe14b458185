// Package dataio reads numeric matrices from headerless CSV files.
package dataio

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

func readRows(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataio: %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataio: %s is empty", path)
	}

	rows := make([][]float64, len(records))
	width := len(records[0])
	for i, rec := range records {
		if len(rec) != width {
			return nil, fmt.Errorf("dataio: %s: row %d has %d fields, want %d",
				path, i+1, len(rec), width)
		}
		row := make([]float64, width)
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("dataio: %s: row %d field %d: %w",
					path, i+1, j+1, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return rows, nil
}

// ReadMatrix loads a dense matrix, one CSV row per matrix row.
func ReadMatrix(path string) (*mat.Dense, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	r, c := len(rows), len(rows[0])
	m := mat.NewDense(r, c, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m, nil
}

// ReadVector loads a vector from a single-column file.
func ReadVector(path string) (*mat.VecDense, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows[0]) != 1 {
		return nil, fmt.Errorf("dataio: %s has %d columns, want 1", path, len(rows[0]))
	}
	v := mat.NewVecDense(len(rows), nil)
	for i, row := range rows {
		v.SetVec(i, row[0])
	}
	return v, nil
}

// WriteMatrix writes any matrix as headerless CSV, one line per row.
func WriteMatrix(path string, m mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	r, c := m.Dims()
	record := make([]string, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("dataio: %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("dataio: %s: %w", path, err)
	}
	return f.Close()
}

// ReadSymmetric loads a square matrix and verifies symmetry up to a small
// absolute tolerance, storing the upper triangle.
func ReadSymmetric(path string) (*mat.SymDense, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	n := len(rows)
	if len(rows[0]) != n {
		return nil, fmt.Errorf("dataio: %s is %d×%d, want square", path, n, len(rows[0]))
	}
	const tol = 1e-10
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if math.Abs(rows[i][j]-rows[j][i]) > tol {
				return nil, fmt.Errorf("dataio: %s is not symmetric at (%d,%d)", path, i+1, j+1)
			}
			s.SetSym(i, j, rows[i][j])
		}
	}
	return s, nil
}
