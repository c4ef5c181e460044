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

// nvidiaMMATile builds the register/lane layout of one NVIDIA MMA tile of
// the given shape. The relative order of registers and lanes is: kWidth
// registers along the inner dim, 4 lanes inner, 8 lanes outer, then
// registers repeat the pattern m/8 times along the outer dim and
// n/(kWidth*4) times along the inner dim.
func nvidiaMMATile(nc *dimnames.Context, tileShape []int, kWidth int, order, repOrder []int) *linear.LinearLayout {
	rank := len(repOrder)
	dimNames := nc.StandardDims(rank)
	reg, lane := nc.Register(), nc.Lane()

	// Trivial rank-sized layout carrying the repetition order, so the
	// combiner extends dimensions in that order.
	trivialShape := make([]int, rank)
	for i := range trivialShape {
		trivialShape[i] = 1
	}
	tile := linear.IdentityND(reg, trivialShape, repOrder, dimNames)

	inner := order[0]
	outer := order[1]
	if len(tileShape) != rank {
		exceptions.Panicf("nvidiaMMATile: tile shape %v does not match rank %d", tileShape, rank)
	}
	m := tileShape[outer]
	n := tileShape[inner]
	if m%8 != 0 || n%(kWidth*4) != 0 {
		exceptions.Panicf("nvidiaMMATile: tile shape %v not divisible by the %d-wide lane pattern", tileShape, kWidth*4)
	}

	return tile.
		Mul(linear.Identity1D(kWidth, reg, dimNames[inner])).
		Mul(linear.Identity1D(4, lane, dimNames[inner])).
		Mul(linear.Identity1D(8, lane, dimNames[outer])).
		Mul(linear.Identity1D(m/8, reg, dimNames[outer])).
		Mul(linear.Identity1D(n/(kWidth*4), reg, dimNames[inner]))
}

// NvidiaMMALayout builds the accumulator layout of an NVIDIA MMA
// instruction (Ampere mma.sync or Hopper wgmma).
func NvidiaMMALayout(nc *dimnames.Context, shape []int, m *encodings.NvidiaMma) *linear.LinearLayout {
	rank := len(shape)
	if rank != m.Rank() {
		exceptions.Panicf("NvidiaMMALayout: shape %v does not match encoding rank %d", shape, m.Rank())
	}

	var tileShape []int
	if m.IsAmpere() {
		tileShape = m.InstrShape
	} else if m.IsHopper() {
		// Hopper's instruction shape is [M, N, K]; only M and N matter here.
		tileShape = []int{m.InstrShape[0], m.InstrShape[1]}
	} else {
		exceptions.Panicf("NvidiaMMALayout: unsupported mma version %d", m.Version)
	}

	// The accumulator always behaves as if kWidth were 2.
	const kWidth = 2
	order := linear.MatrixOrder(rank, true)
	tile := nvidiaMMATile(nc, tileShape, kWidth, order, m.RepOrder())

	warpOrder := linear.MatrixOrder(rank, !m.IsHopper())
	warps := linear.IdentityND(nc.Warp(), m.WarpsPerCTA, warpOrder, nc.StandardDims(rank))
	tile = tile.Mul(warps.TransposeOuts(tile.OutDimNames()))

	return CombineBlocksWithShape(nc, tile, m.CTALayout, shape)
}

// NvidiaDotLayout builds the layout of a dot operand feeding an NVIDIA MMA
// instruction. Only operand A exists on Hopper (the B operand of a wgmma
// comes from shared memory).
func NvidiaDotLayout(nc *dimnames.Context, shape []int, dot *encodings.DotOperand) *linear.LinearLayout {
	mma, ok := dot.Parent.(*encodings.NvidiaMma)
	if !ok {
		exceptions.Panicf("NvidiaDotLayout: parent encoding is %s, want NvidiaMma", dot.Parent.Kind())
	}
	rank := len(shape)
	kWidth := dot.KWidth
	isA := dot.OpIdx == 0

	tileShape := make([]int, rank)
	for i := range tileShape {
		tileShape[i] = 1
	}
	if isA {
		tileShape[rank-2] = 16
		tileShape[rank-1] = kWidth * 8
	} else {
		if !mma.IsAmpere() {
			exceptions.Panicf("NvidiaDotLayout: operand B in registers requires Ampere, got mma version %d", mma.Version)
		}
		tileShape[rank-2] = kWidth * 8
		tileShape[rank-1] = 8
	}

	order := linear.OrderForDotOperand(dot.OpIdx, rank, true)
	tile := nvidiaMMATile(nc, tileShape, kWidth, order, mma.RepOrderForOperand(dot.OpIdx))

	kDim := dot.KDimIndex()
	warpOrder := linear.MatrixOrder(rank, !mma.IsHopper())
	warps := broadcastedDotOperandLayout(nc, mma.WarpsPerCTA, warpOrder, kDim, nc.Warp())
	tile = tile.Mul(warps.TransposeOuts(tile.OutDimNames()))

	return CombineBlocksWithShape(nc, tile, mma.CTALayout, shape)
}

// ScaleTMEMStoreLayout builds the register layout that stores a scale
// operand into tensor memory with the 1x scale-factor layout: four scales
// pack per lane (replicated when N < 4), a warp's 32 lanes cover 32 rows of
// M, and the data replicates across the warps of a warpgroup.
func ScaleTMEMStoreLayout(nc *dimnames.Context, scaleShape []int, cta encodings.CTALayout, numWarps int) *linear.LinearLayout {
	if numWarps != 4 && numWarps != 8 {
		exceptions.Panicf("ScaleTMEMStoreLayout: numWarps %d, want 4 or 8", numWarps)
	}
	m := scaleShape[0]
	n := scaleShape[1]

	var regBase [][]int32
	for i := 1; i < 4; i <<= 1 {
		if i >= n {
			regBase = append(regBase, []int32{0, 0})
		} else {
			regBase = append(regBase, []int32{0, int32(i)})
		}
	}
	laneBase := [][]int32{{1, 0}, {2, 0}, {4, 0}, {8, 0}, {16, 0}}
	warpBase := [][]int32{{0, 0}, {0, 0}}
	for i := 32; i < m; i <<= 1 {
		regBase = append(regBase, []int32{int32(i), 0})
	}
	for i := 4; i < n; i <<= 1 {
		regBase = append(regBase, []int32{0, int32(i)})
	}
	// With 8 warps the outermost repetition moves to the second warpgroup.
	if numWarps == 8 {
		warpBase = append(warpBase, regBase[len(regBase)-1])
		regBase = regBase[:len(regBase)-1]
	}

	regLanes := linear.New(
		[]linear.InDimBases{
			{Name: nc.Register(), Bases: regBase},
			{Name: nc.Lane(), Bases: laneBase},
			{Name: nc.Warp(), Bases: warpBase},
		},
		nc.StandardDims(2))
	return CombineBlocksWithShape(nc, regLanes, cta, scaleShape)
}

// TMEMLoadStoreLayout16x256 builds the register layout matching tensor
// memory loads and stores that use the 16x256b message shape, for an M x N
// TMEM block over a tensor of the given shape. ok is false when the shape
// is too small to distribute over two warpgroups with this message.
func TMEMLoadStoreLayout16x256(nc *dimnames.Context, m, n int, shape []int,
	cta encodings.CTALayout, elemBitWidth, numWarps int) (layout *linear.LinearLayout, ok bool) {
	if numWarps == 8 && m == 64 && n <= 16 && elemBitWidth < 32 {
		return nil, false
	}
	if numWarps != 4 && numWarps != 8 {
		exceptions.Panicf("TMEMLoadStoreLayout16x256: numWarps %d, want 4 or 8", numWarps)
	}
	shapePerCTA := cta.ShapePerCTA(shape)
	outDims := nc.StandardDims(2)
	reg, warp := nc.Register(), nc.Warp()

	numElementsPerThread := 256 / elemBitWidth
	kWidth := 64 / elemBitWidth
	tile := nvidiaMMATile(nc, []int{8, numElementsPerThread}, kWidth, []int{1, 0}, []int{0, 1})
	tile = tile.Mul(linear.Identity1D(2, reg, outDims[0]))

	// Distribute the remainder over warpgroups and registers, M first.
	distributeMAlongWarps := false
	distributeNAlongWarps := false
	if numWarps == 8 {
		if shapePerCTA[0] > 128 {
			distributeMAlongWarps = true
		} else {
			distributeNAlongWarps = true
		}
	}
	nBase := numElementsPerThread
	maxRegN := shapePerCTA[1]
	if distributeNAlongWarps {
		maxRegN = shapePerCTA[1] / 2
	}
	maxRegN = min(n, maxRegN)
	if maxRegN/nBase > 1 {
		tile = tile.Mul(linear.Identity1D(maxRegN/nBase, reg, outDims[1]))
	}
	if m != 64 {
		tile = tile.Mul(linear.Identity1D(2, reg, outDims[0]))
	}
	// TMEM requires M spread over the four warps of a warpgroup.
	tile = tile.Mul(linear.Identity1D(4, warp, outDims[0]))

	numMRegDim := min(128, shapePerCTA[0]) / m
	if numMRegDim > 1 {
		tile = tile.Mul(linear.Identity1D(numMRegDim, reg, outDims[0]))
	}
	nextDim := 128
	if distributeMAlongWarps {
		tile = tile.Mul(linear.Identity1D(2, warp, outDims[0]))
		nextDim <<= 1
	}
	numMRegDim = shapePerCTA[0] / nextDim
	if numMRegDim > 1 {
		tile = tile.Mul(linear.Identity1D(numMRegDim, reg, outDims[0]))
	}
	maxN := shapePerCTA[1]
	if distributeNAlongWarps {
		maxN = shapePerCTA[1] / 2
	}
	numNRegDim := maxN / maxRegN
	if numNRegDim > 1 {
		tile = tile.Mul(linear.Identity1D(numNRegDim, reg, outDims[1]))
	}
	if distributeNAlongWarps {
		tile = tile.Mul(linear.Identity1D(2, warp, outDims[1]))
	}
	return CombineBlocksWithShape(nc, tile, cta, shape), true
}

// TMEMLoadLayoutSplitLongM builds the register layout of a tensor memory
// load that splits a long M dimension across two warpgroups using the
// 16x32bx2 message: warps 0 and 4 can only address M[0:32], so the warp
// bases interleave M at 32, 64 and 16.
func TMEMLoadLayoutSplitLongM(nc *dimnames.Context, m, n int, shape []int,
	cta encodings.CTALayout, numWarps int) *linear.LinearLayout {
	if numWarps != 8 {
		exceptions.Panicf("TMEMLoadLayoutSplitLongM: numWarps %d, want 8", numWarps)
	}
	if m != 128 {
		exceptions.Panicf("TMEMLoadLayoutSplitLongM: M %d, want 128", m)
	}
	shapePerCTA := cta.ShapePerCTA(shape)

	var laneBase, regBase [][]int32
	for i := 1; i < 16; i <<= 1 {
		laneBase = append(laneBase, []int32{int32(i), 0})
	}
	for i := 1; i < n/2; i <<= 1 {
		regBase = append(regBase, []int32{0, int32(i)})
	}
	laneBase = append(laneBase, []int32{0, int32(n / 2)})
	// Replicate the message pattern over the rest of the tensor.
	for i := n; i < shapePerCTA[1]; i <<= 1 {
		regBase = append(regBase, []int32{0, int32(i)})
	}
	for i := m; i < shapePerCTA[0]; i <<= 1 {
		regBase = append(regBase, []int32{int32(i), 0})
	}
	warpBase := [][]int32{{32, 0}, {64, 0}, {16, 0}}

	regLanes := linear.New(
		[]linear.InDimBases{
			{Name: nc.Register(), Bases: regBase},
			{Name: nc.Lane(), Bases: laneBase},
			{Name: nc.Warp(), Bases: warpBase},
		},
		nc.StandardDims(2))
	return CombineBlocksWithShape(nc, regLanes, cta, shape)
}
