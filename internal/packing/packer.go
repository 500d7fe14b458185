// Package packing flattens a heterogeneous set of named vector and matrix
// parameters into one contiguous optimization vector and back.
//
// A Packer is built from an ordered list of group descriptors. Each group owns
// a disjoint, order-preserving window of the packed vector; offsets are frozen
// at construction. Matrix windows are viewed row-major, and Pack/unpack
// operations over the same group are mutual inverses.
//
// Example:
//
//	pk := packing.NewPacker(
//	    packing.MatGroup("Theta", p, d),
//	    packing.MatGroup("M", n, p),
//	    packing.MatGroup("S", n, p),
//	)
//	x := make([]float64, pk.Size())
//	pk.PackMat(0, x, theta)
//	theta2 := pk.MatView(0, x) // aliases x, no copy
package packing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Kind discriminates the shape class of a parameter group.
type Kind int

const (
	// Vector is a length-L group.
	Vector Kind = iota
	// Matrix is an R×C group, stored row-major in the packed vector.
	Matrix
)

// Group describes one named parameter group. The shape is fixed at
// construction and never changes for the lifetime of a Packer.
type Group struct {
	Name string
	Kind Kind
	Rows int // vector length for Vector groups
	Cols int // unused for Vector groups
}

// VecGroup describes a vector group of length n.
func VecGroup(name string, n int) Group {
	return Group{Name: name, Kind: Vector, Rows: n}
}

// MatGroup describes an r×c matrix group.
func MatGroup(name string, r, c int) Group {
	return Group{Name: name, Kind: Matrix, Rows: r, Cols: c}
}

// Size returns the number of packed elements the group occupies.
// Zero-size groups are legal and occupy an empty window.
func (g Group) Size() int {
	if g.Kind == Vector {
		return g.Rows
	}
	return g.Rows * g.Cols
}

// Packer maps an ordered list of groups onto disjoint windows of one flat
// vector. Windows are contiguous, non-overlapping and cover the packed vector
// exactly: offset_i = sum of the sizes of groups 0..i-1.
type Packer struct {
	groups  []Group
	offsets []int
	size    int
}

// NewPacker builds a Packer from groups in declaration order.
func NewPacker(groups ...Group) *Packer {
	offsets := make([]int, len(groups))
	size := 0
	for i, g := range groups {
		offsets[i] = size
		size += g.Size()
	}
	return &Packer{groups: groups, offsets: offsets, size: size}
}

// Size returns the total length of the packed vector.
func (p *Packer) Size() int { return p.size }

// NumGroups returns the number of groups.
func (p *Packer) NumGroups() int { return len(p.groups) }

// Group returns the descriptor of group i.
func (p *Packer) Group(i int) Group { return p.groups[i] }

// Offset returns the packed-vector offset of group i.
func (p *Packer) Offset(i int) int { return p.offsets[i] }

// Slice returns group i's window of packed. The returned slice aliases
// packed: writes through it are visible to the caller.
func (p *Packer) Slice(i int, packed []float64) []float64 {
	if len(packed) != p.size {
		panic(fmt.Sprintf("packing: packed vector length %d, want %d", len(packed), p.size))
	}
	off := p.offsets[i]
	return packed[off : off+p.groups[i].Size()]
}

// VecView returns a vector view over group i's window of packed, without
// copying. Returns nil for a zero-size group.
func (p *Packer) VecView(i int, packed []float64) *mat.VecDense {
	g := p.groups[i]
	if g.Kind != Vector {
		panic(fmt.Sprintf("packing: group %q is not a vector", g.Name))
	}
	if g.Rows == 0 {
		return nil
	}
	return mat.NewVecDense(g.Rows, p.Slice(i, packed))
}

// MatView returns a row-major matrix view over group i's window of packed,
// without copying. Returns nil for a zero-size group.
func (p *Packer) MatView(i int, packed []float64) *mat.Dense {
	g := p.groups[i]
	if g.Kind != Matrix {
		panic(fmt.Sprintf("packing: group %q is not a matrix", g.Name))
	}
	if g.Rows == 0 || g.Cols == 0 {
		return nil
	}
	return mat.NewDense(g.Rows, g.Cols, p.Slice(i, packed))
}

// PackVec writes v into group i's window.
func (p *Packer) PackVec(i int, packed []float64, v mat.Vector) {
	g := p.groups[i]
	if v.Len() != g.Size() {
		panic(fmt.Sprintf("packing: group %q: vector length %d, want %d", g.Name, v.Len(), g.Size()))
	}
	dst := p.Slice(i, packed)
	for k := range dst {
		dst[k] = v.AtVec(k)
	}
}

// PackMat writes m into group i's window, flattening row-major. Any matrix
// whose element count equals the group's size is accepted, so a reshaped
// value of the same element count packs cleanly.
func (p *Packer) PackMat(i int, packed []float64, m mat.Matrix) {
	g := p.groups[i]
	r, c := m.Dims()
	if r*c != g.Size() {
		panic(fmt.Sprintf("packing: group %q: %d×%d value has %d elements, want %d",
			g.Name, r, c, r*c, g.Size()))
	}
	dst := p.Slice(i, packed)
	k := 0
	for ri := 0; ri < r; ri++ {
		for ci := 0; ci < c; ci++ {
			dst[k] = m.At(ri, ci)
			k++
		}
	}
}

// Fill broadcasts a single value across group i's whole window.
func (p *Packer) Fill(i int, packed []float64, v float64) {
	dst := p.Slice(i, packed)
	for k := range dst {
		dst[k] = v
	}
}

// PackScalarOrShaped writes val into group i's window. A float64 (or int) is
// broadcast across the window; a mat.Vector or mat.Matrix must match the
// group's shape exactly and is copied element-wise; a []float64 must match the
// group's size. Anything else is a configuration error. Used to build
// per-parameter tolerance vectors.
func (p *Packer) PackScalarOrShaped(i int, packed []float64, val any) error {
	g := p.groups[i]
	switch v := val.(type) {
	case float64:
		p.Fill(i, packed, v)
	case int:
		p.Fill(i, packed, float64(v))
	case []float64:
		if len(v) != g.Size() {
			return fmt.Errorf("packing: group %q: slice length %d, want %d", g.Name, len(v), g.Size())
		}
		copy(p.Slice(i, packed), v)
	case mat.Vector:
		if g.Kind != Vector || v.Len() != g.Rows {
			return fmt.Errorf("packing: group %q: vector length %d does not match group shape", g.Name, v.Len())
		}
		p.PackVec(i, packed, v)
	case mat.Matrix:
		r, c := v.Dims()
		if g.Kind != Matrix || r != g.Rows || c != g.Cols {
			return fmt.Errorf("packing: group %q: %d×%d value does not match %d×%d group",
				g.Name, r, c, g.Rows, g.Cols)
		}
		p.PackMat(i, packed, v)
	default:
		return fmt.Errorf("packing: group %q: unsupported value type %T (want scalar or shaped value)", g.Name, val)
	}
	return nil
}
