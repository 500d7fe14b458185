package packing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

func randVec(rng *rand.Rand, n int) *mat.VecDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewVecDense(n, data)
}

// TestPacker_Offsets checks the literal layout example: groups of sizes
// 0, 40 (4×10), 7, 7 give offsets [0, 0, 40, 47] and total size 54.
func TestPacker_Offsets(t *testing.T) {
	pk := NewPacker(
		VecGroup("z", 0),
		MatGroup("a", 4, 10),
		VecGroup("b", 7),
		VecGroup("c", 7),
	)

	assert.Equal(t, 54, pk.Size())
	assert.Equal(t, 0, pk.Offset(0))
	assert.Equal(t, 0, pk.Offset(1))
	assert.Equal(t, 40, pk.Offset(2))
	assert.Equal(t, 47, pk.Offset(3))
	assert.Equal(t, 4, pk.NumGroups())
}

// TestPacker_RoundTrip checks unpack(pack(v)) == v for vector and matrix
// groups sharing one packed vector.
func TestPacker_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	pk := NewPacker(
		VecGroup("z", 0),
		MatGroup("a", 4, 10),
		VecGroup("b", 7),
		VecGroup("c", 7),
	)
	packed := make([]float64, pk.Size())

	a := randDense(rng, 4, 10)
	b := randVec(rng, 7)
	c := randVec(rng, 7)

	pk.PackMat(1, packed, a)
	pk.PackVec(2, packed, b)
	pk.PackVec(3, packed, c)

	assert.Empty(t, pk.Slice(0, packed))
	assert.True(t, mat.EqualApprox(a, pk.MatView(1, packed), 0))
	assert.True(t, mat.EqualApprox(b, pk.VecView(2, packed), 0))
	assert.True(t, mat.EqualApprox(c, pk.VecView(3, packed), 0))
}

// TestPacker_ViewsAlias checks that views alias the packed storage rather
// than copying it.
func TestPacker_ViewsAlias(t *testing.T) {
	pk := NewPacker(MatGroup("m", 2, 3), VecGroup("v", 4))
	packed := make([]float64, pk.Size())

	m := pk.MatView(0, packed)
	m.Set(1, 2, 42)
	assert.Equal(t, 42.0, packed[5])

	v := pk.VecView(1, packed)
	v.SetVec(0, -1)
	assert.Equal(t, -1.0, packed[6])
}

// TestPacker_PackMatReshape checks that a matrix with a compatible element
// count but different shape packs into the group window.
func TestPacker_PackMatReshape(t *testing.T) {
	pk := NewPacker(MatGroup("m", 2, 6))
	packed := make([]float64, pk.Size())

	src := mat.NewDense(3, 4, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	pk.PackMat(0, packed, src)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, packed)
}

func TestPacker_PackScalarOrShaped(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	pk := NewPacker(MatGroup("m", 3, 2), VecGroup("v", 5))
	packed := make([]float64, pk.Size())

	// Scalar broadcast fills the whole window.
	require.NoError(t, pk.PackScalarOrShaped(0, packed, 0.5))
	for _, x := range pk.Slice(0, packed) {
		assert.Equal(t, 0.5, x)
	}

	// Structured values matching the shape copy element-wise.
	m := randDense(rng, 3, 2)
	require.NoError(t, pk.PackScalarOrShaped(0, packed, m))
	assert.True(t, mat.EqualApprox(m, pk.MatView(0, packed), 0))

	v := randVec(rng, 5)
	require.NoError(t, pk.PackScalarOrShaped(1, packed, v))
	assert.True(t, mat.EqualApprox(v, pk.VecView(1, packed), 0))

	// Shape mismatches and unsupported types are configuration errors.
	assert.Error(t, pk.PackScalarOrShaped(0, packed, randDense(rng, 2, 3)))
	assert.Error(t, pk.PackScalarOrShaped(1, packed, randVec(rng, 4)))
	assert.Error(t, pk.PackScalarOrShaped(0, packed, "0.5"))
}

func TestPacker_ZeroSizeGroup(t *testing.T) {
	pk := NewPacker(VecGroup("empty", 0), VecGroup("v", 3))

	assert.Equal(t, 3, pk.Size())
	packed := make([]float64, pk.Size())
	assert.Nil(t, pk.VecView(0, packed))
	assert.Empty(t, pk.Slice(0, packed))
	require.NoError(t, pk.PackScalarOrShaped(0, packed, 1.0))
}
