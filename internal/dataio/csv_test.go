package dataio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadMatrix(t *testing.T) {
	p := writeCSV(t, "m.csv", "1,2.5,3\n4, 5 ,6\n")
	m, err := ReadMatrix(p)
	require.NoError(t, err)

	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 2.5, m.At(0, 1))
	assert.Equal(t, 5.0, m.At(1, 1))
}

func TestReadMatrix_Errors(t *testing.T) {
	_, err := ReadMatrix(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	p := writeCSV(t, "empty.csv", "")
	_, err = ReadMatrix(p)
	assert.ErrorContains(t, err, "empty")

	p = writeCSV(t, "ragged.csv", "1,2\n3\n")
	_, err = ReadMatrix(p)
	assert.ErrorContains(t, err, "fields")

	p = writeCSV(t, "bad.csv", "1,x\n")
	_, err = ReadMatrix(p)
	assert.Error(t, err)
}

func TestReadVector(t *testing.T) {
	p := writeCSV(t, "v.csv", "1\n2\n3\n")
	v, err := ReadVector(p)
	require.NoError(t, err)
	require.Equal(t, 3, v.Len())
	assert.Equal(t, 2.0, v.AtVec(1))

	p = writeCSV(t, "wide.csv", "1,2\n")
	_, err = ReadVector(p)
	assert.ErrorContains(t, err, "want 1")
}

func TestWriteMatrix(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.csv")
	m := mat.NewDense(2, 2, []float64{1, 2.25, -3, 4e-3})
	require.NoError(t, WriteMatrix(p, m))

	got, err := ReadMatrix(p)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, got))
}

func TestReadSymmetric(t *testing.T) {
	p := writeCSV(t, "s.csv", "2,0.5\n0.5,3\n")
	s, err := ReadSymmetric(p)
	require.NoError(t, err)
	assert.Equal(t, 2, s.SymmetricDim())
	assert.Equal(t, 0.5, s.At(1, 0))

	p = writeCSV(t, "rect.csv", "1,2,3\n4,5,6\n")
	_, err = ReadSymmetric(p)
	assert.ErrorContains(t, err, "square")

	p = writeCSV(t, "asym.csv", "1,2\n3,4\n")
	_, err = ReadSymmetric(p)
	assert.ErrorContains(t, err, "not symmetric")
}
