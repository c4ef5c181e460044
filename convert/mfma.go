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
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/layouts/encodings"
	"github.com/gomlx/layouts/linear"
	"github.com/gomlx/layouts/types/dimnames"
)

// An AMD wavefront has 64 lanes.
const amdWarpSize = 64

// MFMALayout builds the accumulator layout of an AMD MFMA instruction.
//
// Each lane holds a column of `height` consecutive elements (4, or 1 for
// f64), lanes fill the N dimension first and then M, and the pattern repeats
// across registers to fill the MDim x NDim instruction tile. The transposed
// variant swaps the roles of M and N; 64x4 only exists transposed, it is
// lowered as a 4x64 with swapped operands. The layout is defined with
// N-contiguous tile ordering across the whole tensor, because the dot
// lowering assumes tiles repeat along N first regardless of tilesPerWarp.
func MFMALayout(nc *dimnames.Context, shape []int, m *encodings.AMDMfma) *linear.LinearLayout {
	rank := len(shape)
	if rank != m.Rank() {
		exceptions.Panicf("MFMALayout: shape %v does not match encoding rank %d", shape, m.Rank())
	}
	hasBatchDim := rank == 3
	mIndex, nIndex := 0, 1
	if hasBatchDim {
		mIndex, nIndex = 1, 2
	}

	outDims := nc.StandardDims(rank)
	reg, lane, warp := nc.Register(), nc.Lane(), nc.Warp()

	// Bases run from fastest to slowest varying, mapping to C's (N, M[, B]).
	order := linear.MatrixOrder(rank, true)
	dimM := outDims[order[1]]
	dimN := outDims[order[0]]

	mDim, nDim := m.MDim, m.NDim
	height := 4
	if m.ElementType == dtypes.Float64 {
		height = 1
	}
	if mDim == 64 && nDim == 4 && !m.IsTransposed {
		exceptions.Panicf("MFMALayout: 64x4 mfma must be transposed")
	}
	tiles := (mDim * nDim) / (amdWarpSize * height)

	var tile *linear.LinearLayout
	if !m.IsTransposed {
		// Each lane holds `height` elements along M. Lanes fill N first,
		// then M; past mDim they duplicate (the 4x4 output case).
		regs := linear.Identity1D(height, reg, dimM)
		lanes := linear.Identity1D(nDim, lane, dimN).
			Mul(linear.Identity1D(amdWarpSize/nDim, lane, dimM))
		tile = regs.Mul(lanes)
		if tiles > 0 {
			tile = tile.Mul(linear.Identity1D(tiles, reg, dimM))
		}
	} else {
		regs := linear.Identity1D(height, reg, dimN)
		lanes := linear.Identity1D(mDim, lane, dimM).
			Mul(linear.Identity1D(amdWarpSize/mDim, lane, dimN))
		tile = regs.Mul(lanes)
		if tiles > 0 {
			tile = tile.Mul(linear.Identity1D(tiles, reg, dimN))
		}
	}
	tile = tile.TransposeOuts([]dimnames.Name{dimN, dimM})

	tilesPerWarp := m.TilesPerWarpOrDefault()
	tilesPerWarpM := tilesPerWarp[mIndex]
	tilesPerWarpN := tilesPerWarp[nIndex]
	warpsPerCTAM := m.WarpsPerCTA[mIndex]
	warpsPerCTAN := m.WarpsPerCTA[nIndex]

	// Extend along N: registers over tilesPerWarpN, warps over warpsPerCTAN,
	// then the remaining N extent of the tensor so that tiles stay
	// N-contiguous across warp boundaries. Only then extend along M.
	tile = tile.Mul(linear.Identity1D(tilesPerWarpN, reg, dimN))
	tile = tile.Mul(linear.Identity1D(warpsPerCTAN, warp, dimN))
	tile = tile.Mul(linear.Identity1D(shape[nIndex]/(nDim*warpsPerCTAN*tilesPerWarpN), reg, dimN))
	tile = tile.Mul(linear.Identity1D(tilesPerWarpM, reg, dimM))
	tile = tile.Mul(linear.Identity1D(warpsPerCTAM, warp, dimM))

	if hasBatchDim {
		batch := outDims[order[2]]
		tile = tile.Mul(linear.Identity1D(1, reg, batch))
		tile = tile.Mul(linear.Identity1D(1, lane, batch))
		tile = tile.Mul(linear.Identity1D(m.WarpsPerCTA[0], warp, batch))
	}
	return CombineBlocksWithShape(nc, tile, m.CTALayout, shape)
}

// MFMADotLayout builds the layout of a dot operand feeding an AMD MFMA
// instruction: each lane holds kWidth consecutive elements along K, lanes
// fill the non-K dimension first and the rest of K after, and the tile
// repeats along K to cover the contraction extent.
func MFMADotLayout(nc *dimnames.Context, shape []int, dot *encodings.DotOperand) *linear.LinearLayout {
	mfma, ok := dot.Parent.(*encodings.AMDMfma)
	if !ok {
		exceptions.Panicf("MFMADotLayout: parent encoding is %s, want AMDMfma", dot.Parent.Kind())
	}
	rank := len(shape)
	hasBatchDim := rank == 3

	kWidth := dot.KWidth
	kDimIndex := dot.KDimIndex()
	tilesPerWarp := mfma.TilesPerWarpOrDefault()
	tilePerWarpNonK := tilesPerWarp[kDimIndex]

	nonKDim := mfma.MDim
	if dot.OpIdx != 0 {
		nonKDim = mfma.NDim
	}
	kSize := shape[kDimIndex]

	outDims := nc.StandardDims(rank)
	reg, lane, warp := nc.Register(), nc.Lane(), nc.Warp()

	// Register order is [k, nonk] / [k, nonk, batch] for both operands.
	order := linear.OrderForDotOperand(dot.OpIdx, rank, true)
	dimK := outDims[order[0]]
	dimNonK := outDims[order[1]]

	// Warp order is [M, N] / [batch, M, N] for both operands.
	warpOrder := linear.MatrixOrder(rank, true)

	regs := linear.Identity1D(kWidth, reg, dimK)
	lanes := linear.Identity1D(nonKDim, lane, dimNonK).
		Mul(linear.Identity1D(amdWarpSize/nonKDim, lane, dimK))
	tile := regs.Mul(lanes)

	kTileSize := amdWarpSize / nonKDim * kWidth
	// The 64x64 operand of a 64x4 or 4x64 mfma repeats 16 times along K.
	if (mfma.MDim == 64 && mfma.NDim == 4 && dot.OpIdx == 0) ||
		(mfma.MDim == 4 && mfma.NDim == 64 && dot.OpIdx == 1) {
		tile = tile.Mul(linear.Identity1D(16, reg, dimK))
		kTileSize *= 16
	}

	if kSize > kTileSize {
		tile = tile.Mul(linear.Identity1D(kSize/kTileSize, reg, dimK))
	}
	tile = tile.Mul(linear.Identity1D(tilePerWarpNonK, reg, dimNonK))

	tile = tile.TransposeOuts([]dimnames.Name{dimK, dimNonK})
	if hasBatchDim {
		batch := outDims[order[2]]
		tile = tile.Mul(linear.Identity1D(1, reg, batch))
		tile = tile.Mul(linear.Identity1D(1, lane, batch))
	}

	warps := linear.IdentityND(warp, mfma.WarpsPerCTA, warpOrder, outDims)
	return CombineBlocksWithShape(nc, tile.Mul(warps), mfma.CTALayout, shape)
}

// DsReadB64TrLayout builds the dot operand layout produced by the AMD
// ds_read_b64_tr family of transposing LDS reads. The basis tables are
// selected by element bit width; 4-bit elements (ds_read_tr4) are described
// on the underlying i8 tensor and swap the packing of FP4 pairs.
func DsReadB64TrLayout(nc *dimnames.Context, shape []int, dot *encodings.DotOperand, elemBitWidth int) *linear.LinearLayout {
	mfma, ok := dot.Parent.(*encodings.AMDMfma)
	if !ok {
		exceptions.Panicf("DsReadB64TrLayout: parent encoding is %s, want AMDMfma", dot.Parent.Kind())
	}
	mDim := mfma.MDim
	if mDim != 16 && mDim != 32 {
		exceptions.Panicf("DsReadB64TrLayout: mfma dimension %d, want 16 or 32", mDim)
	}

	isFP4 := false
	if elemBitWidth == 4 {
		// ds_read_tr4 layouts are described on the i8 tensor elements.
		elemBitWidth = 8
		isFP4 = true
	}
	if elemBitWidth != 16 && elemBitWidth != 8 {
		exceptions.Panicf("DsReadB64TrLayout: unsupported element bit width %d", elemBitWidth)
	}

	rank := len(shape)
	hasBatchDim := rank == 3
	kWidthDot := dot.KWidth
	kSize := shape[dot.KDimIndex()]

	outDims := nc.StandardDims(rank)
	reg, lane, warp := nc.Register(), nc.Lane(), nc.Warp()

	// Unlike the regular mfma dot order [k, nonk], the transposing read
	// wants [nonk, k].
	order := linear.OrderForDotOperand(dot.OpIdx, rank, false)

	var registerBase, laneBase [][]int32
	if isFP4 {
		registerBase, laneBase = dsReadTr4FP4Bases(kSize, mDim)
	} else {
		registerBase, laneBase = dsReadTrBases(elemBitWidth, kSize, kWidthDot, mDim)
	}

	// Base vectors are in fixed [nonk, k] order, matching `order` above.
	tile := linear.New(
		[]linear.InDimBases{
			{Name: reg, Bases: registerBase},
			{Name: lane, Bases: laneBase},
		},
		[]dimnames.Name{outDims[order[0]], outDims[order[1]]})
	if hasBatchDim {
		batch := outDims[order[2]]
		tile = tile.Mul(linear.Identity1D(1, reg, batch))
		tile = tile.Mul(linear.Identity1D(1, lane, batch))
	}

	warpOrder := linear.MatrixOrder(rank, true)
	warps := linear.IdentityND(warp, mfma.WarpsPerCTA, warpOrder, outDims)

	ctaTile := tile.TransposeOuts(outDims).Mul(warps.TransposeOuts(outDims))
	return CombineBlocksWithShape(nc, ctaTile, mfma.CTALayout, shape)
}

// dsReadTr4FP4Bases is the ds_read_b64_tr4 table: FP4 values with swapped
// packing, described on the i8 tensor. The tile is 16x128 for 16x16 mfma
// and 16x64 for 32x32.
func dsReadTr4FP4Bases(kSize, mDim int) (registerBase, laneBase [][]int32) {
	isMfma32 := mDim == 32

	registerBase = [][]int32{{1, 0}, {2, 0}, {4, 0}, {0, 16}}

	kTileSize := 128
	if isMfma32 {
		kTileSize = 64
	}
	for r := kTileSize; r < kSize; r *= 2 {
		registerBase = append(registerBase, []int32{0, int32(r)})
	}

	laneBase = [][]int32{{0, 1}, {0, 2}, {0, 4}, {0, 8}}
	if mDim == 16 {
		laneBase = append(laneBase, []int32{0, 32}, []int32{0, 64})
	} else {
		laneBase = append(laneBase, []int32{8, 0}, []int32{0, 32})
	}
	return registerBase, laneBase
}

// dsReadTrBases is the ds_read_b64_tr8/tr16 table. Each lane reads 64 bits,
// a [16, kWidthTransRead] sub-tile transposes as a unit, and 8 (double-rate
// mfma) or 4 (single-rate) sub-tiles form the tile of one instruction.
// Whether kWidthDot implies double rate is decided against the double-rate
// K tile size of the mfma family in use.
func dsReadTrBases(elemBitWidth, kSize, kWidthDot, mDim int) (registerBase, laneBase [][]int32) {
	const ldsReadWidth = 64
	kWidthTransRead := ldsReadWidth / elemBitWidth
	elemByteWidth := elemBitWidth / 8
	isMfma32 := mDim == 32

	for i := 1; i < kWidthTransRead; i *= 2 {
		registerBase = append(registerBase, []int32{int32(i), 0})
	}

	threadsPerSubtileNonK := 16 / kWidthTransRead
	threadsPerSubtileK := kWidthTransRead

	for i := 1; i < threadsPerSubtileNonK; i *= 2 {
		laneBase = append(laneBase, []int32{int32(i * kWidthTransRead), 0})
	}
	for i := 1; i < threadsPerSubtileK; i *= 2 {
		laneBase = append(laneBase, []int32{0, int32(i)})
	}

	kDoubleTileSize := 64 / elemByteWidth
	if isMfma32 {
		kDoubleTileSize = 32 / elemByteWidth
	}
	kTileSize := kWidthDot * 64 / mDim
	numSubtilesPerTile := 1
	if kTileSize == kDoubleTileSize {
		numSubtilesPerTile = 2
		// Second sub-tile of a double-rate instruction.
		registerBase = append(registerBase, []int32{0, int32(threadsPerSubtileK)})
	}

	regsPerTile := kWidthTransRead * numSubtilesPerTile
	totalRegs := kSize / kTileSize * regsPerTile
	for r := regsPerTile; r < totalRegs; r *= 2 {
		registerBase = append(registerBase, []int32{0, int32(r / regsPerTile * kTileSize)})
	}

	if isMfma32 {
		laneBase = append(laneBase,
			[]int32{16, 0},
			[]int32{0, int32(numSubtilesPerTile * threadsPerSubtileK)})
	} else {
		laneBase = append(laneBase,
			[]int32{0, int32(numSubtilesPerTile * threadsPerSubtileK)},
			[]int32{0, int32(2 * numSubtilesPerTile * threadsPerSubtileK)})
	}
	return registerBase, laneBase
}

// ScaledMFMAScaleLayout builds the layout of the scale operand of a scaled
// MFMA (mxfp) dot. Each lane takes 32 elements of A or B along K and 1 or 2
// scale elements; the lane tables are fixed per mfma dimension. opIdx 0 is
// aScale ([M, K/32]), opIdx 1 is bScale ([N, K/32]).
func ScaledMFMAScaleLayout(nc *dimnames.Context, opIdx int, scaleShape []int,
	mfmaMDim int, tilesPerWarp, warpsPerCTA []int) *linear.LinearLayout {
	rank := len(scaleShape)
	order := linear.MatrixOrder(rank, true)
	outDims := nc.StandardDims(rank)
	reg, lane, warp := nc.Register(), nc.Lane(), nc.Warp()

	mnDim := rank - 1
	if opIdx == 0 {
		mnDim = rank - 2
	}
	tilePerWarpMN := tilesPerWarp[mnDim]
	kSize := scaleShape[1]

	var registerBase, laneBase [][]int32
	threadsInKDim := 4
	if mfmaMDim == 32 {
		threadsInKDim = 2
	}
	for elem := threadsInKDim; elem < kSize; elem *= 2 {
		registerBase = append(registerBase, []int32{int32(elem), 0})
	}
	for elem := mfmaMDim; elem < tilePerWarpMN*mfmaMDim; elem *= 2 {
		registerBase = append(registerBase, []int32{0, int32(elem)})
	}

	if mfmaMDim == 32 {
		// 32 lanes cover the 32 M/N rows, the other 32 the next K half.
		laneBase = [][]int32{{0, 1}, {0, 2}, {0, 4}, {0, 8}, {0, 16}, {1, 0}}
	} else if mfmaMDim == 16 {
		// 16 lanes cover 16 rows, lanes 16..63 step through K.
		laneBase = [][]int32{{0, 1}, {0, 2}, {0, 4}, {0, 8}, {1, 0}, {2, 0}}
	} else {
		exceptions.Panicf("ScaledMFMAScaleLayout: mfma dimension %d, want 16 or 32", mfmaMDim)
	}

	tile := linear.New(
		[]linear.InDimBases{
			{Name: reg, Bases: registerBase},
			{Name: lane, Bases: laneBase},
		},
		[]dimnames.Name{outDims[order[0]], outDims[order[1]]})

	warpsForScale := []int{warpsPerCTA[0], warpsPerCTA[1]}
	warpOrder := []int{1, 0}
	if opIdx == 1 {
		warpsForScale = []int{warpsPerCTA[1], warpsPerCTA[0]}
		warpOrder = []int{0, 1}
	}
	warps := linear.IdentityND(warp, warpsForScale, warpOrder, outDims)

	ctaTile := tile.TransposeOuts(outDims).Mul(warps.TransposeOuts(outDims))
	return CombineBlocksWithShape(nc, ctaTile, encodings.TrivialCTALayout(rank), scaleShape)
}

// MFMAStoreLayout returns a layout equivalent to the accumulator layout of
// m with two output basis vectors exchanged, so each lane holds 8
// consecutive elements along N instead of 4 and stores can be packed into
// 128-bit writes. It applies only to transposed 16-bit MFMA 32x32 and 16x16
// on gfx950 (version 4); ok is false when the encoding does not qualify.
func MFMAStoreLayout(nc *dimnames.Context, shape []int, m *encodings.AMDMfma, elemBitWidth int) (layout *linear.LinearLayout, ok bool) {
	isMfma32 := m.MDim == 32 && m.NDim == 32
	isMfma16 := m.MDim == 16 && m.NDim == 16

	// mfma16 needs at least two tiles along N inside one wavefront for the
	// in-wavefront swap (v_permlane16).
	validForMfma16 := isMfma16 && len(shape) == 2 && shape[len(shape)-1] >= 16*2 &&
		m.WarpsPerCTA[len(m.WarpsPerCTA)-1] == 1

	if !(len(shape) == 2 && elemBitWidth == 16 && m.Version == 4 && m.IsTransposed &&
		(isMfma32 || validForMfma16)) {
		return nil, false
	}

	mfmaLayout := MFMALayout(nc, shape, m)
	dimM := nc.Dim(0)
	dimN := nc.Dim(1)

	swap := linear.Identity1D(shape[0], dimM, dimM)

	// Exchanging basis 2 with basis 3 (mfma32) or 4 (mfma16) of an identity
	// along N regroups the four-element runs of adjacent half-wavefronts
	// into eight-element runs.
	destIdx := 3
	if isMfma16 {
		destIdx = 4
	}
	numBases := mfmaLayout.OutDimSizeLog2(dimN)
	dimNBases := make([][]int32, numBases)
	for i := range dimNBases {
		dimNBases[i] = []int32{1 << i}
	}
	dimNBases[2], dimNBases[destIdx] = dimNBases[destIdx], dimNBases[2]
	swap = swap.Mul(linear.New(
		[]linear.InDimBases{{Name: dimN, Bases: dimNBases}},
		[]dimnames.Name{dimN}))

	return mfmaLayout.Compose(swap), true
}
