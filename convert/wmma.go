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
	"github.com/gomlx/exceptions"
	"github.com/gomlx/layouts/encodings"
	"github.com/gomlx/layouts/linear"
	"github.com/gomlx/layouts/types/dimnames"
)

// WMMALayout builds the accumulator layout of an AMD WMMA instruction:
// 16x16 output, 32 lanes, 8 elements per lane.
//
// Version 1 holds the 8 elements along M with a one-row gap between
// consecutive elements (16 lanes cover a full row, the second half-warp
// starts at the next row). Version 2 holds 8 consecutive rows, the second
// half-warp taking rows 8..15.
func WMMALayout(nc *dimnames.Context, shape []int, w *encodings.AMDWmma) *linear.LinearLayout {
	rank := len(shape)
	if rank != w.Rank() {
		exceptions.Panicf("WMMALayout: shape %v does not match encoding rank %d", shape, w.Rank())
	}
	hasBatchDim := rank == 3
	mIndex, nIndex := 0, 1
	if hasBatchDim {
		mIndex, nIndex = 1, 2
	}

	mnk := w.MNKDimPerInstr()
	mDim, nDim := mnk[0], mnk[1]
	if (shape[mIndex] != 1 && shape[mIndex] < mDim) ||
		(shape[nIndex] != 1 && shape[nIndex] < nDim) {
		exceptions.Panicf("WMMALayout: shape %v too small for a %dx%d wmma tile", shape, mDim, nDim)
	}

	outDims := nc.StandardDims(rank)
	reg, lane, warp := nc.Register(), nc.Lane(), nc.Warp()

	threadOrder := linear.MatrixOrder(rank, !w.IsTransposed)

	var regBases, laneBases [][]int32
	switch w.Version {
	case 1:
		regBases = [][]int32{{0, 2}, {0, 4}, {0, 8}}
		laneBases = [][]int32{{1, 0}, {2, 0}, {4, 0}, {8, 0}, {0, 1}}
	case 2:
		regBases = [][]int32{{0, 1}, {0, 2}, {0, 4}}
		laneBases = [][]int32{{1, 0}, {2, 0}, {4, 0}, {8, 0}, {0, 8}}
	default:
		exceptions.Panicf("WMMALayout: unsupported wmma version %d", w.Version)
	}
	tile := linear.New(
		[]linear.InDimBases{
			{Name: reg, Bases: regBases},
			{Name: lane, Bases: laneBases},
		},
		[]dimnames.Name{outDims[threadOrder[0]], outDims[threadOrder[1]]})

	if hasBatchDim {
		batch := outDims[0]
		tile = tile.Mul(linear.Identity1D(1, reg, batch))
		tile = tile.Mul(linear.Identity1D(1, lane, batch))
	}

	warpOrder := linear.MatrixOrder(rank, true)
	warps := linear.IdentityND(warp, w.WarpsPerCTA, warpOrder, outDims)

	repDimNames := linear.PermuteNames(outDims, w.RepOrder())
	ctaTile := tile.TransposeOuts(repDimNames).Mul(warps.TransposeOuts(repDimNames))
	return CombineBlocksWithShape(nc, ctaTile, w.CTALayout, shape)
}

// WMMADotLayout builds the layout of a dot operand feeding an AMD WMMA
// instruction. The 16 lanes of a half-warp step through the non-K
// dimension; version 1 duplicates values across the two half-warps while
// version 2 offsets the second half-warp by kWidth along K.
func WMMADotLayout(nc *dimnames.Context, shape []int, dot *encodings.DotOperand) *linear.LinearLayout {
	wmma, ok := dot.Parent.(*encodings.AMDWmma)
	if !ok {
		exceptions.Panicf("WMMADotLayout: parent encoding is %s, want AMDWmma", dot.Parent.Kind())
	}
	rank := len(shape)
	hasBatchDim := rank == 3
	kDim := dot.KDimIndex()

	outDims := nc.StandardDims(rank)
	reg, lane, warp := nc.Register(), nc.Lane(), nc.Warp()

	// Lane order is [k, nonk] / [k, nonk, batch] for both operands.
	laneOrder := linear.OrderForDotOperand(dot.OpIdx, rank, true)

	kWidth := dot.KWidth
	var registerBase [][]int32
	for i := 1; i < kWidth; i *= 2 {
		registerBase = append(registerBase, []int32{int32(i), 0})
	}
	laneBase := [][]int32{{0, 1}, {0, 2}, {0, 4}, {0, 8}}
	switch wmma.Version {
	case 1:
		laneBase = append(laneBase, []int32{0, 0})
	case 2:
		laneBase = append(laneBase, []int32{int32(kWidth), 0})
	default:
		exceptions.Panicf("WMMADotLayout: unsupported wmma version %d", wmma.Version)
	}

	tile := linear.New(
		[]linear.InDimBases{
			{Name: reg, Bases: registerBase},
			{Name: lane, Bases: laneBase},
		},
		[]dimnames.Name{outDims[laneOrder[0]], outDims[laneOrder[1]]})
	if hasBatchDim {
		batch := outDims[laneOrder[2]]
		tile = tile.Mul(linear.Identity1D(1, reg, batch))
		tile = tile.Mul(linear.Identity1D(1, lane, batch))
	}

	warpOrder := linear.MatrixOrder(rank, true)
	warps := broadcastedDotOperandLayout(nc, wmma.WarpsPerCTA, warpOrder, kDim, warp)

	repDimNames := linear.PermuteNames(outDims, wmma.RepOrderForOperand(dot.OpIdx))
	ctaTile := tile.TransposeOuts(repDimNames).Mul(warps.TransposeOuts(repDimNames))
	return CombineBlocksWithShape(nc, ctaTile, wmma.CTALayout, shape)
}
