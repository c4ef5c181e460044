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

package linear

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layouts/types/dimnames"
)

// Mul merges two layouts into one. Multiplication order encodes hierarchy
// priority: the receiver (left operand) occupies the innermost,
// fastest-varying level.
//
//   - An input dimension present in both operands gets the concatenation of
//     the left operand's bits (least significant) followed by the right
//     operand's, so its size multiplies.
//   - An output dimension present in both operands also multiplies in size;
//     the right operand's contributions to it are scaled by the left
//     operand's output size, i.e. shifted past the left operand's range.
//   - Dimensions present in only one operand carry through unchanged, in
//     left-then-right order.
//
// Mul is associative but not generally commutative.
func (l *LinearLayout) Mul(other *LinearLayout) *LinearLayout {
	// Output dims: l's, then other's new ones. Shared sizes multiply.
	outDims := slices.Clone(l.outDims)
	outSizes := slices.Clone(l.outSizes)
	for i, dim := range other.outDims {
		if idx := slices.Index(outDims, dim); idx >= 0 {
			outSizes[idx] *= other.outSizes[i]
		} else {
			outDims = append(outDims, dim)
			outSizes = append(outSizes, other.outSizes[i])
		}
	}

	// Maps each operand's output index to the merged output index.
	lOutIdx := make([]int, len(l.outDims))
	for i, dim := range l.outDims {
		lOutIdx[i] = slices.Index(outDims, dim)
	}
	oOutIdx := make([]int, len(other.outDims))
	oShift := make([]int32, len(other.outDims))
	for i, dim := range other.outDims {
		oOutIdx[i] = slices.Index(outDims, dim)
		shift := int32(1)
		if idx := l.outDimIndex(dim); idx >= 0 {
			shift = int32(l.outSizes[idx])
		}
		oShift[i] = shift
	}

	inDims := slices.Clone(l.inDims)
	for _, dim := range other.inDims {
		if !slices.Contains(inDims, dim) {
			inDims = append(inDims, dim)
		}
	}

	bases := make(map[dimnames.Name][][]int32, len(inDims))
	for _, dim := range inDims {
		var dimBases [][]int32
		for _, basis := range l.bases[dim] {
			merged := make([]int32, len(outDims))
			for i, c := range basis {
				merged[lOutIdx[i]] = c
			}
			dimBases = append(dimBases, merged)
		}
		for _, basis := range other.bases[dim] {
			merged := make([]int32, len(outDims))
			for i, c := range basis {
				merged[oOutIdx[i]] = c * oShift[i]
			}
			dimBases = append(dimBases, merged)
		}
		bases[dim] = dimBases
	}
	return newUnchecked(inDims, bases, outDims, outSizes)
}

// Compose returns the functional composition of l with other: the receiver's
// output dimensions must name-match other's input dimensions (with sizes not
// exceeding other's input sizes), and the result maps l's inputs directly to
// other's outputs.
func (l *LinearLayout) Compose(other *LinearLayout) *LinearLayout {
	if len(l.outDims) != len(other.inDims) {
		exceptions.Panicf("LinearLayout.Compose: output dimensions of %s do not match input dimensions of %s", l, other)
	}
	for i, dim := range l.outDims {
		if !other.HasInDim(dim) {
			exceptions.Panicf("LinearLayout.Compose: output dimension %q of %s is not an input dimension of %s", dim, l, other)
		}
		if l.outSizes[i] > other.InDimSize(dim) {
			exceptions.Panicf("LinearLayout.Compose: output dimension %q of size %d does not fit input dimension of size %d",
				dim, l.outSizes[i], other.InDimSize(dim))
		}
	}
	bases := make(map[dimnames.Name][][]int32, len(l.inDims))
	for _, dim := range l.inDims {
		dimBases := make([][]int32, len(l.bases[dim]))
		for b, basis := range l.bases[dim] {
			ins := make(map[dimnames.Name]int, len(l.outDims))
			for i, outDim := range l.outDims {
				ins[outDim] = int(basis[i])
			}
			dimBases[b] = other.applyToVector(ins)
		}
		bases[dim] = dimBases
	}
	return newUnchecked(slices.Clone(l.inDims), bases,
		slices.Clone(other.outDims), slices.Clone(other.outSizes))
}

// TransposeOuts reorders the output dimension list to newOrder, which must be
// a permutation of the current output dimension names. The mapping itself is
// unchanged.
func (l *LinearLayout) TransposeOuts(newOrder []dimnames.Name) *LinearLayout {
	perm := l.outPermutation("TransposeOuts", newOrder)
	outSizes := make([]int, len(perm))
	for i, p := range perm {
		outSizes[i] = l.outSizes[p]
	}
	bases := make(map[dimnames.Name][][]int32, len(l.inDims))
	for _, dim := range l.inDims {
		dimBases := make([][]int32, len(l.bases[dim]))
		for b, basis := range l.bases[dim] {
			permuted := make([]int32, len(perm))
			for i, p := range perm {
				permuted[i] = basis[p]
			}
			dimBases[b] = permuted
		}
		bases[dim] = dimBases
	}
	return newUnchecked(slices.Clone(l.inDims), bases, slices.Clone(newOrder), outSizes)
}

// TransposeIns reorders the input dimension list to newOrder, which must be a
// permutation of the current input dimension names. The mapping itself is
// unchanged.
func (l *LinearLayout) TransposeIns(newOrder []dimnames.Name) *LinearLayout {
	if len(newOrder) != len(l.inDims) {
		exceptions.Panicf("LinearLayout.TransposeIns: %d names given, layout %s has %d input dimensions",
			len(newOrder), l, len(l.inDims))
	}
	for _, dim := range newOrder {
		if !l.HasInDim(dim) {
			exceptions.Panicf("LinearLayout.TransposeIns: %q is not an input dimension of %s", dim, l)
		}
	}
	seen := make(map[dimnames.Name]bool, len(newOrder))
	for _, dim := range newOrder {
		if seen[dim] {
			exceptions.Panicf("LinearLayout.TransposeIns: duplicate dimension %q", dim)
		}
		seen[dim] = true
	}
	return newUnchecked(slices.Clone(newOrder), l.bases,
		slices.Clone(l.outDims), slices.Clone(l.outSizes))
}

// PermuteOutIndices reorders the output *coordinates* by index: output i of
// the result is output order[i] of the receiver, while the dimension name
// list stays as-is. This is the transpose used to restore a standard
// dim0, dim1, ... axis order after an output reshape rotated the axes.
func (l *LinearLayout) PermuteOutIndices(order []int) *LinearLayout {
	if len(order) != len(l.outDims) {
		exceptions.Panicf("LinearLayout.PermuteOutIndices: order %v does not cover the %d output dimensions of %s",
			order, len(l.outDims), l)
	}
	outSizes := make([]int, len(order))
	for i, p := range order {
		outSizes[i] = l.outSizes[p]
	}
	bases := make(map[dimnames.Name][][]int32, len(l.inDims))
	for _, dim := range l.inDims {
		dimBases := make([][]int32, len(l.bases[dim]))
		for b, basis := range l.bases[dim] {
			permuted := make([]int32, len(order))
			for i, p := range order {
				permuted[i] = basis[p]
			}
			dimBases[b] = permuted
		}
		bases[dim] = dimBases
	}
	return newUnchecked(slices.Clone(l.inDims), bases, slices.Clone(l.outDims), outSizes)
}

// ReshapeIns reinterprets the concatenated input bit sequence (first input
// dimension least significant, bit order preserved) as a different set of
// named input dimensions. The total input size must be unchanged.
func (l *LinearLayout) ReshapeIns(newDims []DimSize) *LinearLayout {
	newTotal := 1
	for _, d := range newDims {
		assertDimSize("ReshapeIns", d.Name, d.Size)
		newTotal *= max(1, d.Size)
	}
	if newTotal != l.TotalInSize() {
		exceptions.Panicf("LinearLayout.ReshapeIns: new dimensions %v have total size %d, layout %s has %d",
			newDims, newTotal, l, l.TotalInSize())
	}

	var flat [][]int32
	for _, dim := range l.inDims {
		flat = append(flat, l.bases[dim]...)
	}

	inDims := make([]dimnames.Name, 0, len(newDims))
	bases := make(map[dimnames.Name][][]int32, len(newDims))
	next := 0
	for _, d := range newDims {
		if _, found := bases[d.Name]; found {
			exceptions.Panicf("LinearLayout.ReshapeIns: duplicate input dimension %q", d.Name)
		}
		numBits := log2Ceil(d.Size)
		dimBases := make([][]int32, numBits)
		for b := range dimBases {
			dimBases[b] = slices.Clone(flat[next])
			next++
		}
		inDims = append(inDims, d.Name)
		bases[d.Name] = dimBases
	}
	return newUnchecked(inDims, bases, slices.Clone(l.outDims), slices.Clone(l.outSizes))
}

// ReshapeOuts reinterprets the output coordinate space as a different set of
// named output dimensions of the same total size, with the first output
// dimension being the most minor (fastest varying) on both sides.
func (l *LinearLayout) ReshapeOuts(newDims []DimSize) *LinearLayout {
	newTotal := 1
	for _, d := range newDims {
		assertDimSize("ReshapeOuts", d.Name, d.Size)
		newTotal *= max(1, d.Size)
	}
	if newTotal != l.TotalOutSize() {
		exceptions.Panicf("LinearLayout.ReshapeOuts: new dimensions %v have total size %d, layout %s has %d",
			newDims, newTotal, l, l.TotalOutSize())
	}

	outDims := make([]dimnames.Name, len(newDims))
	outSizes := make([]int, len(newDims))
	seen := make(map[dimnames.Name]bool, len(newDims))
	for i, d := range newDims {
		if seen[d.Name] {
			exceptions.Panicf("LinearLayout.ReshapeOuts: duplicate output dimension %q", d.Name)
		}
		seen[d.Name] = true
		outDims[i] = d.Name
		outSizes[i] = max(1, d.Size)
	}

	bases := make(map[dimnames.Name][][]int32, len(l.inDims))
	for _, dim := range l.inDims {
		dimBases := make([][]int32, len(l.bases[dim]))
		for b, basis := range l.bases[dim] {
			// Flatten with the first output dimension most minor...
			flat := 0
			stride := 1
			for i, c := range basis {
				flat += int(c) * stride
				stride *= l.outSizes[i]
			}
			// ...and split according to the new sizes.
			split := make([]int32, len(outSizes))
			for i, size := range outSizes {
				split[i] = int32(flat % size)
				flat /= size
			}
			dimBases[b] = split
		}
		bases[dim] = dimBases
	}
	return newUnchecked(slices.Clone(l.inDims), bases, outDims, outSizes)
}

// ReshapeToShape reshapes the output space of l to a logical row-major shape
// (last axis fastest varying) with the standard dim0, dim1, ... names. It is
// the bridge between the layout algebra's first-dim-minor flattening and the
// row-major convention of tensor shapes.
func (l *LinearLayout) ReshapeToShape(nc *dimnames.Context, shape []int) *LinearLayout {
	rank := len(shape)
	stdDims := nc.StandardDims(rank)

	srcOutDims := l.OutDimNames()
	slices.Reverse(srcOutDims)

	newDims := make([]DimSize, rank)
	for i := range newDims {
		newDims[i] = DimSize{Name: stdDims[rank-1-i], Size: shape[rank-1-i]}
	}

	return l.TransposeOuts(srcOutDims).ReshapeOuts(newDims).TransposeOuts(stdDims)
}

func (l *LinearLayout) outPermutation(fnName string, newOrder []dimnames.Name) []int {
	if len(newOrder) != len(l.outDims) {
		exceptions.Panicf("LinearLayout.%s: %d names given, layout %s has %d output dimensions",
			fnName, len(newOrder), l, len(l.outDims))
	}
	perm := make([]int, len(newOrder))
	seen := make(map[dimnames.Name]bool, len(newOrder))
	for i, dim := range newOrder {
		idx := l.outDimIndex(dim)
		if idx < 0 {
			exceptions.Panicf("LinearLayout.%s: %q is not an output dimension of %s", fnName, dim, l)
		}
		if seen[dim] {
			exceptions.Panicf("LinearLayout.%s: duplicate dimension %q", fnName, dim)
		}
		seen[dim] = true
		perm[i] = idx
	}
	return perm
}
