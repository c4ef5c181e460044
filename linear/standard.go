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
	"github.com/gomlx/exceptions"
	"github.com/gomlx/layouts/types/dimnames"
)

// IdentityND builds the layout that distributes inDim over the output
// dimensions outNames with the given per-dimension sizes, iterating the
// dimensions in the given order (most minor first). The result's input
// dimension has size Prod(shape); output dimension outNames[d] has size
// shape[d].
func IdentityND(inDim dimnames.Name, shape []int, order []int, outNames []dimnames.Name) *LinearLayout {
	if len(shape) != len(order) || len(shape) != len(outNames) {
		exceptions.Panicf("linear.IdentityND: shape %v, order %v and names %v must have the same length",
			shape, order, outNames)
	}
	layout := Empty()
	for _, dim := range order {
		layout = layout.Mul(Identity1D(shape[dim], inDim, outNames[dim]))
	}
	return layout
}

// MatrixOrder returns the axis order of a matrix (with optional leading
// batch axes), most minor axis first. With rowMajor the last axis is
// fastest: [rank-1, rank-2, ..., 0]; otherwise the last two axes are
// swapped: [rank-2, rank-1, rank-3, ..., 0].
func MatrixOrder(rank int, rowMajor bool) []int {
	if rank < 2 {
		exceptions.Panicf("linear.MatrixOrder: rank %d < 2", rank)
	}
	order := make([]int, rank)
	for i := range order {
		order[i] = rank - 1 - i
	}
	if !rowMajor {
		order[0], order[1] = order[1], order[0]
	}
	return order
}

// OrderForDotOperand returns the axis order of dot operand opIdx (0 for A,
// 1 for B), most minor first. With kContig the contraction axis is fastest
// varying: operand A yields [rank-1, rank-2, ...] (K is last for A) and
// operand B yields [rank-2, rank-1, ...] (K is second to last for B);
// without kContig the K and non-K axes swap roles.
func OrderForDotOperand(opIdx int, rank int, kContig bool) []int {
	if opIdx != 0 && opIdx != 1 {
		exceptions.Panicf("linear.OrderForDotOperand: operand index must be 0 or 1, got %d", opIdx)
	}
	rowMajor := (opIdx == 0) == kContig
	return MatrixOrder(rank, rowMajor)
}

// PermuteNames returns names reordered so that entry i is names[order[i]].
func PermuteNames(names []dimnames.Name, order []int) []dimnames.Name {
	if len(names) != len(order) {
		exceptions.Panicf("linear.PermuteNames: %d names but order %v", len(names), order)
	}
	permuted := make([]dimnames.Name, len(order))
	for i, p := range order {
		permuted[i] = names[p]
	}
	return permuted
}
