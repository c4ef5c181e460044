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

package convert

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layouts/encodings"
	"github.com/gomlx/layouts/linear"
	"github.com/gomlx/layouts/types/dimnames"
)

// BlockedLayout builds the layout of a blocked (generic elementwise)
// distribution: registers, lanes and warps each tile the tensor with their
// per-dimension counts, iterating dimensions in the encoding's order.
func BlockedLayout(nc *dimnames.Context, shape []int, b *encodings.Blocked) *linear.LinearLayout {
	outDims := nc.StandardDims(b.Rank())
	tile := linear.IdentityND(nc.Register(), b.SizePerThread, b.Order, outDims).
		Mul(linear.IdentityND(nc.Lane(), b.ThreadsPerWarp, b.Order, outDims)).
		Mul(linear.IdentityND(nc.Warp(), b.WarpsPerCTA, b.Order, outDims))
	return CombineBlocksWithShape(nc, tile, b.CTALayout, shape)
}

// broadcastedDotOperandLayout builds the lane or warp level of a dot operand
// layout. The level's units tile the non-contraction dimensions like an
// identity and broadcast along the contraction dimension kDim: every unit
// needs the full K extent of its row or column, so the accumulator's tiling
// along K is replaced by replication.
func broadcastedDotOperandLayout(nc *dimnames.Context, shape []int, order []int,
	kDim int, inDim dimnames.Name) *linear.LinearLayout {
	dimNames := nc.StandardDims(len(shape))
	layout := linear.Empty()
	for _, d := range order {
		if d == kDim {
			layout = layout.Mul(linear.Zeros1D(shape[d], inDim, dimNames[d]))
		} else {
			layout = layout.Mul(linear.Identity1D(shape[d], inDim, dimNames[d]))
		}
	}
	return layout
}

// FMADotLayout builds the layout of a dot operand whose accumulator is a
// plain blocked encoding (an FMA dot, no tensor cores): each thread owns the
// full contraction dimension, and lanes/warps broadcast along it.
func FMADotLayout(nc *dimnames.Context, shape []int, dot *encodings.DotOperand) *linear.LinearLayout {
	blocked, ok := dot.Parent.(*encodings.Blocked)
	if !ok {
		exceptions.Panicf("FMADotLayout: parent encoding is %s, want Blocked", dot.Parent.Kind())
	}
	rank := len(shape)

	regOrder := blocked.Order
	threadOrder := blocked.Order
	warpOrder := blocked.Order
	repDimNames := linear.PermuteNames(nc.StandardDims(rank), blocked.RepOrder())

	threadSize := slices.Clone(blocked.SizePerThread)
	kDimIdx := dot.KDimIndex()
	threadSize[kDimIdx] = shape[kDimIdx]

	registers := linear.IdentityND(nc.Register(), threadSize, regOrder, nc.StandardDims(rank))
	lanes := broadcastedDotOperandLayout(nc, blocked.ThreadsPerWarp, threadOrder, kDimIdx, nc.Lane())
	warps := broadcastedDotOperandLayout(nc, blocked.WarpsPerCTA, warpOrder, kDimIdx, nc.Warp())

	tile := registers.TransposeOuts(repDimNames).
		Mul(lanes.TransposeOuts(repDimNames)).
		Mul(warps.TransposeOuts(repDimNames))
	return CombineBlocksWithShape(nc, tile, blocked.CTALayout, shape)
}
