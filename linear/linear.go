/*
 *	Copyright 2025 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package linear defines LinearLayout, the algebraic representation of how a
// GPU maps logical tensor elements onto its execution hierarchy.
//
// A LinearLayout is a linear map from named input dimensions (hardware
// hierarchy levels: register slot, lane, warp, block, or a flat shared-memory
// offset) to named output dimensions (logical tensor axes dim0, dim1, ...).
// Every dimension size is a power of two. The map is stored as a table of
// basis vectors: for input dimension `in` and bit b, Bases[in][b] is the
// output coordinate of the input value 2^b along `in`. The image of an
// arbitrary input is the carry-less (XOR) accumulation of the bases of its
// set bits; for the layouts built here contributions occupy disjoint bit
// ranges except where a swizzle deliberately folds them, so XOR is at the
// same time plain addition and the bank-conflict XOR trick.
//
// Layouts are immutable values: every operator returns a new layout. All
// operators fail fast (panic via github.com/gomlx/exceptions) on mismatched
// dimension names, non-power-of-two sizes or non-divisible resizes; those are
// programming errors of the layout constructors, never user-recoverable.
//
// ## Glossary
//
//   - Basis vector: the output contribution assigned to one bit of one input
//     dimension.
//   - Identity dimension: bit b contributes 2^b to a single output dimension.
//   - Zeros (broadcast) dimension: every bit contributes nothing, so many
//     input values collapse onto the same output coordinate.
package linear

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layouts/types/dimnames"
	"golang.org/x/exp/constraints"
)

// DimSize names one dimension together with its (power of two) size.
type DimSize struct {
	Name dimnames.Name
	Size int
}

// InDimBases is the basis table of one input dimension: Bases[b] is the
// output coordinate vector assigned to input value 2^b, with one entry per
// output dimension of the layout. The input dimension size is
// 2^len(Bases).
type InDimBases struct {
	Name  dimnames.Name
	Bases [][]int32
}

// LinearLayout maps named power-of-two input dimensions to named output
// dimensions. See the package documentation. The zero value is not valid,
// use Empty, Identity1D, Zeros1D, New or NewWithOutDims.
type LinearLayout struct {
	inDims   []dimnames.Name
	bases    map[dimnames.Name][][]int32
	outDims  []dimnames.Name
	outSizes []int
}

// Empty returns the multiplicative identity: a layout with no dimensions at
// all. Multiplying any layout by Empty yields the same layout.
func Empty() *LinearLayout {
	return &LinearLayout{bases: map[dimnames.Name][][]int32{}}
}

// Identity1D returns the layout where bit b of inDim contributes 2^b to
// outDim: input i maps to output i. size must be a power of two; size 0 or 1
// registers the two dimensions without any basis bits (an input of size 1).
func Identity1D(size int, inDim, outDim dimnames.Name) *LinearLayout {
	assertDimSize("Identity1D", outDim, size)
	numBits := log2Ceil(size)
	bases := make([][]int32, numBits)
	for b := range bases {
		bases[b] = []int32{1 << b}
	}
	return newUnchecked(
		[]dimnames.Name{inDim}, map[dimnames.Name][][]int32{inDim: bases},
		[]dimnames.Name{outDim}, []int{max(1, size)})
}

// Zeros1D returns the layout where every bit of inDim contributes 0: all
// size inputs map to output coordinate 0 along outDim. This encodes
// broadcast (replication) of data across a hardware level.
func Zeros1D(size int, inDim, outDim dimnames.Name) *LinearLayout {
	assertDimSize("Zeros1D", outDim, size)
	numBits := log2Ceil(size)
	bases := make([][]int32, numBits)
	for b := range bases {
		bases[b] = []int32{0}
	}
	return newUnchecked(
		[]dimnames.Name{inDim}, map[dimnames.Name][][]int32{inDim: bases},
		[]dimnames.Name{outDim}, []int{1})
}

// New builds a layout from explicit basis tables. The size of each output
// dimension is inferred as the smallest power of two strictly larger than
// any contribution to it (so an identity table over size-n input infers
// output size n). Every basis vector must have exactly len(outDimNames)
// entries.
func New(bases []InDimBases, outDimNames []dimnames.Name) *LinearLayout {
	outSizes := make([]int, len(outDimNames))
	for i := range outSizes {
		outSizes[i] = 1
	}
	for _, in := range bases {
		for _, basis := range in.Bases {
			if len(basis) != len(outDimNames) {
				exceptions.Panicf(
					"linear.New: basis vector %v of input dimension %q has %d entries, layout has %d output dimensions",
					basis, in.Name, len(basis), len(outDimNames))
			}
			for o, c := range basis {
				outSizes[o] = max(outSizes[o], nextPowerOfTwo(c))
			}
		}
	}
	return buildChecked("New", bases, outDimNames, outSizes)
}

// NewWithOutDims builds a layout from explicit basis tables and explicit
// output dimension sizes. Contributions must be smaller than the declared
// sizes.
func NewWithOutDims(bases []InDimBases, outDims []DimSize) *LinearLayout {
	outNames := make([]dimnames.Name, len(outDims))
	outSizes := make([]int, len(outDims))
	for i, d := range outDims {
		assertDimSize("NewWithOutDims", d.Name, d.Size)
		outNames[i] = d.Name
		outSizes[i] = max(1, d.Size)
	}
	for _, in := range bases {
		for _, basis := range in.Bases {
			if len(basis) != len(outDims) {
				exceptions.Panicf(
					"linear.NewWithOutDims: basis vector %v of input dimension %q has %d entries, layout has %d output dimensions",
					basis, in.Name, len(basis), len(outDims))
			}
			for o, c := range basis {
				if int(c) >= outSizes[o] {
					exceptions.Panicf(
						"linear.NewWithOutDims: contribution %d of input dimension %q does not fit output dimension %q of size %d",
						c, in.Name, outDims[o].Name, outSizes[o])
				}
			}
		}
	}
	return buildChecked("NewWithOutDims", bases, outNames, outSizes)
}

func buildChecked(fnName string, bases []InDimBases, outNames []dimnames.Name, outSizes []int) *LinearLayout {
	inNames := make([]dimnames.Name, 0, len(bases))
	table := make(map[dimnames.Name][][]int32, len(bases))
	for _, in := range bases {
		if !in.Name.Ok() {
			exceptions.Panicf("linear.%s: invalid input dimension name", fnName)
		}
		if _, found := table[in.Name]; found {
			exceptions.Panicf("linear.%s: duplicate input dimension %q", fnName, in.Name)
		}
		inNames = append(inNames, in.Name)
		dimBases := make([][]int32, len(in.Bases))
		for b, basis := range in.Bases {
			dimBases[b] = slices.Clone(basis)
		}
		table[in.Name] = dimBases
	}
	seen := make(map[dimnames.Name]bool, len(outNames))
	for _, name := range outNames {
		if !name.Ok() {
			exceptions.Panicf("linear.%s: invalid output dimension name", fnName)
		}
		if seen[name] {
			exceptions.Panicf("linear.%s: duplicate output dimension %q", fnName, name)
		}
		seen[name] = true
	}
	return newUnchecked(inNames, table, slices.Clone(outNames), slices.Clone(outSizes))
}

// newUnchecked assumes ownership of its arguments; internal constructors use
// it once invariants are established.
func newUnchecked(inDims []dimnames.Name, bases map[dimnames.Name][][]int32,
	outDims []dimnames.Name, outSizes []int) *LinearLayout {
	return &LinearLayout{inDims: inDims, bases: bases, outDims: outDims, outSizes: outSizes}
}

// NumInDims returns the number of input dimensions.
func (l *LinearLayout) NumInDims() int { return len(l.inDims) }

// NumOutDims returns the number of output dimensions.
func (l *LinearLayout) NumOutDims() int { return len(l.outDims) }

// InDimNames returns the input dimension names, in order.
func (l *LinearLayout) InDimNames() []dimnames.Name { return slices.Clone(l.inDims) }

// OutDimNames returns the output dimension names, in order.
func (l *LinearLayout) OutDimNames() []dimnames.Name { return slices.Clone(l.outDims) }

// HasInDim returns whether dim is one of the input dimensions.
func (l *LinearLayout) HasInDim(dim dimnames.Name) bool {
	_, found := l.bases[dim]
	return found
}

// HasOutDim returns whether dim is one of the output dimensions.
func (l *LinearLayout) HasOutDim(dim dimnames.Name) bool {
	return l.outDimIndex(dim) >= 0
}

func (l *LinearLayout) outDimIndex(dim dimnames.Name) int {
	return slices.Index(l.outDims, dim)
}

// InDimSize returns the size of the given input dimension (2^numBits).
func (l *LinearLayout) InDimSize(dim dimnames.Name) int {
	return 1 << l.InDimSizeLog2(dim)
}

// InDimSizeLog2 returns the number of bits of the given input dimension.
func (l *LinearLayout) InDimSizeLog2(dim dimnames.Name) int {
	dimBases, found := l.bases[dim]
	if !found {
		exceptions.Panicf("LinearLayout.InDimSizeLog2: no input dimension %q in %s", dim, l)
	}
	return len(dimBases)
}

// OutDimSize returns the size of the given output dimension.
func (l *LinearLayout) OutDimSize(dim dimnames.Name) int {
	idx := l.outDimIndex(dim)
	if idx < 0 {
		exceptions.Panicf("LinearLayout.OutDimSize: no output dimension %q in %s", dim, l)
	}
	return l.outSizes[idx]
}

// OutDimSizeLog2 returns the number of bits of the given output dimension.
func (l *LinearLayout) OutDimSizeLog2(dim dimnames.Name) int {
	return log2Ceil(l.OutDimSize(dim))
}

// TotalInSize returns the product of all input dimension sizes.
func (l *LinearLayout) TotalInSize() int {
	size := 1
	for _, dim := range l.inDims {
		size *= 1 << len(l.bases[dim])
	}
	return size
}

// TotalOutSize returns the product of all output dimension sizes.
func (l *LinearLayout) TotalOutSize() int {
	return Prod(l.outSizes)
}

// InDimBases returns a deep copy of the basis table of the given input
// dimension: entry b is the output coordinate vector of input value 2^b.
func (l *LinearLayout) InDimBases(dim dimnames.Name) [][]int32 {
	dimBases, found := l.bases[dim]
	if !found {
		exceptions.Panicf("LinearLayout.InDimBases: no input dimension %q in %s", dim, l)
	}
	out := make([][]int32, len(dimBases))
	for b, basis := range dimBases {
		out[b] = slices.Clone(basis)
	}
	return out
}

// Bases returns a deep copy of the full basis table, in input dimension
// order.
func (l *LinearLayout) Bases() []InDimBases {
	out := make([]InDimBases, len(l.inDims))
	for i, dim := range l.inDims {
		out[i] = InDimBases{Name: dim, Bases: l.InDimBases(dim)}
	}
	return out
}

// Basis returns the output coordinate vector of input value 2^bit along the
// given input dimension. The returned slice must not be modified.
func (l *LinearLayout) Basis(dim dimnames.Name, bit int) []int32 {
	dimBases, found := l.bases[dim]
	if !found || bit < 0 || bit >= len(dimBases) {
		exceptions.Panicf("LinearLayout.Basis: no bit %d of input dimension %q in %s", bit, dim, l)
	}
	return dimBases[bit]
}

// Apply maps a full input coordinate to its output coordinate. ins must
// assign a value to every input dimension, each within that dimension's
// size. The result is keyed by output dimension name.
func (l *LinearLayout) Apply(ins map[dimnames.Name]int) map[dimnames.Name]int {
	coords := l.applyToVector(ins)
	out := make(map[dimnames.Name]int, len(l.outDims))
	for i, dim := range l.outDims {
		out[dim] = int(coords[i])
	}
	return out
}

// applyToVector is Apply returning the output coordinates in output
// dimension order.
func (l *LinearLayout) applyToVector(ins map[dimnames.Name]int) []int32 {
	if len(ins) != len(l.inDims) {
		exceptions.Panicf("LinearLayout.Apply: got %d input values for %d input dimensions in %s",
			len(ins), len(l.inDims), l)
	}
	coords := make([]int32, len(l.outDims))
	for _, dim := range l.inDims {
		value, found := ins[dim]
		if !found {
			exceptions.Panicf("LinearLayout.Apply: missing value for input dimension %q in %s", dim, l)
		}
		dimBases := l.bases[dim]
		if value < 0 || value >= 1<<len(dimBases) {
			exceptions.Panicf("LinearLayout.Apply: value %d out of range for input dimension %q of size %d",
				value, dim, 1<<len(dimBases))
		}
		for b := 0; value>>b != 0; b++ {
			if value>>b&1 == 0 {
				continue
			}
			for o, c := range dimBases[b] {
				coords[o] ^= c
			}
		}
	}
	return coords
}

// Equal compares two layouts: dimension names, order, sizes and basis
// tables.
func (l *LinearLayout) Equal(other *LinearLayout) bool {
	if l == other {
		return true
	}
	if !slices.Equal(l.inDims, other.inDims) ||
		!slices.Equal(l.outDims, other.outDims) ||
		!slices.Equal(l.outSizes, other.outSizes) {
		return false
	}
	for _, dim := range l.inDims {
		a, b := l.bases[dim], other.bases[dim]
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !slices.Equal(a[i], b[i]) {
				return false
			}
		}
	}
	return true
}

// String implements stringer, pretty-prints the layout basis tables and
// dimension sizes.
func (l *LinearLayout) String() string {
	var sb strings.Builder
	sb.WriteString("LinearLayout{")
	for i, dim := range l.inDims {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s:%v", dim, l.bases[dim])
	}
	sb.WriteString("} -> (")
	for i, dim := range l.outDims {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s:%d", dim, l.outSizes[i])
	}
	sb.WriteString(")")
	return sb.String()
}

func assertDimSize(fnName string, dim dimnames.Name, size int) {
	if size > 1 && !IsPowerOfTwo(size) {
		exceptions.Panicf("linear.%s: size %d of dimension %q is not a power of two", fnName, size, dim)
	}
}

// IsPowerOfTwo returns whether x is a positive power of two.
func IsPowerOfTwo[T constraints.Integer](x T) bool {
	return x > 0 && x&(x-1) == 0
}

// Prod returns the product of the elements of xs, 1 if empty.
func Prod[T constraints.Integer](xs []T) T {
	p := T(1)
	for _, x := range xs {
		p *= x
	}
	return p
}

// log2Ceil returns ceil(log2(x)) for x >= 1, and 0 for x < 1.
func log2Ceil[T constraints.Integer](x T) int {
	bits := 0
	for v := T(1); v < x; v <<= 1 {
		bits++
	}
	return bits
}

// nextPowerOfTwo returns the smallest power of two strictly greater than x.
func nextPowerOfTwo[T constraints.Integer](x T) int {
	p := 1
	for p <= int(x) {
		p <<= 1
	}
	return p
}
