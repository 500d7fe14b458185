// Copyright 2025 The PLN Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package packing flattens named parameter groups into a single vector for
// gradient-based optimizers.
//
// A Packer fixes the layout once: each group occupies a contiguous row-major
// block at a stable offset. VecView and MatView return gonum views that
// alias the packed slice, so objective closures read parameters and write
// gradients without copying.
//
//	pk := packing.NewPacker(
//	    packing.MatGroup("Theta", p, d),
//	    packing.MatGroup("M", n, p),
//	    packing.MatGroup("S", n, p),
//	)
//	x := make([]float64, pk.Size())
package packing

import "github.com/pln-ml/pln/internal/packing"

// Kind distinguishes vector from matrix groups.
type Kind = packing.Kind

// Kinds.
const (
	Vector = packing.Vector
	Matrix = packing.Matrix
)

// Group describes one named block of a packed vector.
type Group = packing.Group

// VecGroup declares a vector group of length n.
func VecGroup(name string, n int) Group {
	return packing.VecGroup(name, n)
}

// MatGroup declares a row-major matrix group of r rows and c columns.
func MatGroup(name string, r, c int) Group {
	return packing.MatGroup(name, r, c)
}

// Packer maps a fixed sequence of groups onto offsets in a flat vector.
type Packer = packing.Packer

// NewPacker lays the given groups out sequentially.
func NewPacker(groups ...Group) *Packer {
	return packing.NewPacker(groups...)
}
