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

// SwizzledSharedLayout builds the offset-to-coordinate layout of a generic
// swizzled shared-memory buffer. The two most minor dimensions (per the
// encoding's order) are swizzled: the element at (row, col) is stored at
// column col XOR (vec * ((row / perPhase) % maxPhase)) % numCols, the
// classic bank-conflict-avoiding phase rotation.
func SwizzledSharedLayout(nc *dimnames.Context, shape []int, s *encodings.SwizzledShared) *linear.LinearLayout {
	shapePerCTA := s.CTALayout.ShapePerCTA(shape)
	rank := len(shape)
	offset := nc.Offset()
	if rank == 1 {
		return CombineBlocksWithShape(nc,
			linear.Identity1D(shapePerCTA[0], offset, nc.Dim(0)), s.CTALayout, shape)
	}

	outDims := nc.StandardDims(rank)
	colDim := s.Order[0]
	rowDim := s.Order[1]
	numCols := shapePerCTA[colDim]
	numRows := shapePerCTA[rowDim]

	var bases2D [][]int32
	for col := 1; col < numCols; col *= 2 {
		bases2D = append(bases2D, []int32{0, int32(col)})
	}
	for row := 1; row < numRows; row *= 2 {
		swizzled := (s.Vec * ((row / s.PerPhase) % s.MaxPhase)) % numCols
		bases2D = append(bases2D, []int32{int32(row), int32(swizzled)})
	}
	tile := linear.New(
		[]linear.InDimBases{{Name: offset, Bases: bases2D}},
		[]dimnames.Name{outDims[rowDim], outDims[colDim]})

	for i := 2; i < rank; i++ {
		dim := s.Order[i]
		tile = tile.Mul(linear.Identity1D(shapePerCTA[dim], offset, outDims[dim]))
	}
	return CombineBlocksWithShape(nc, tile, s.CTALayout, shape)
}

// AMDRotatingSharedLayout builds the AMD rotating variant: like
// SwizzledSharedLayout, but the phase is additionally XOR-ed with a coarser
// block counter (row / maxPhase / perPhase), rotating the swizzle pattern
// across groups of rows.
func AMDRotatingSharedLayout(nc *dimnames.Context, shape []int, s *encodings.AMDRotatingShared) *linear.LinearLayout {
	shapePerCTA := s.CTALayout.ShapePerCTA(shape)
	rank := len(shape)
	offset := nc.Offset()
	if rank == 1 {
		return CombineBlocksWithShape(nc,
			linear.Identity1D(shapePerCTA[0], offset, nc.Dim(0)), s.CTALayout, shape)
	}

	outDims := nc.StandardDims(rank)
	colDim := s.Order[0]
	rowDim := s.Order[1]
	numCols := shape[colDim]
	numRows := shape[rowDim]

	var bases2D [][]int32
	for col := 1; col < numCols; col *= 2 {
		bases2D = append(bases2D, []int32{0, int32(col)})
	}
	for row := 1; row < numRows; row *= 2 {
		phase := (row / s.PerPhase) % s.MaxPhase
		blockNo := row / s.MaxPhase / s.PerPhase % s.MaxPhase
		combinedPhase := phase ^ blockNo
		bases2D = append(bases2D, []int32{int32(row), int32((s.Vec * combinedPhase) % numCols)})
	}
	tile := linear.New(
		[]linear.InDimBases{{Name: offset, Bases: bases2D}},
		[]dimnames.Name{outDims[rowDim], outDims[colDim]})

	for i := 2; i < rank; i++ {
		dim := s.Order[i]
		tile = tile.Mul(linear.Identity1D(shape[dim], offset, outDims[dim]))
	}
	return CombineBlocksWithShape(nc, tile, s.CTALayout, shape)
}

// coreMatrixLayout builds the layout of the fixed core matrix that tiles an
// NVMMA shared buffer: 8 rows by 8*swizzlingByteWidth/elemBitWidth columns,
// with its own per-row swizzle. With Fp4Padded, every group of 16 column
// offsets holds 8 real and 8 padding positions, so real columns are packed
// as col/16*8 + col%8.
func coreMatrixLayout(nc *dimnames.Context, s *encodings.NVMMAShared, disableSwizzle bool) *linear.LinearLayout {
	vec := s.Vec()
	perPhase := s.PerPhase()
	maxPhase := s.MaxPhase()

	tileRows := 8
	tileCols := 8 * s.SwizzlingByteWidth / s.ElementBitWidth

	var bases2D [][]int32
	for col := 1; col < tileCols; col *= 2 {
		if s.Fp4Padded {
			colPacked := col/16*8 + col%8
			bases2D = append(bases2D, []int32{0, int32(colPacked)})
		} else {
			bases2D = append(bases2D, []int32{0, int32(col)})
		}
	}
	for row := 1; row < tileRows; row *= 2 {
		switch {
		case disableSwizzle:
			bases2D = append(bases2D, []int32{int32(row), 0})
		case s.Fp4Padded:
			colPadded := vec * ((row / perPhase) % maxPhase)
			colPacked := colPadded/16*8 + colPadded%8
			bases2D = append(bases2D, []int32{int32(row), int32(colPacked)})
		default:
			bases2D = append(bases2D, []int32{int32(row), int32(vec * ((row / perPhase) % maxPhase))})
		}
	}
	return linear.New(
		[]linear.InDimBases{{Name: nc.Offset(), Bases: bases2D}},
		nc.StandardDims(2))
}

// NVMMASharedLayout builds the layout of an NVMMA (core-matrix) shared
// buffer: the outer dimensions are collapsed into one, the core matrix is
// grown to cover the collapsed shape, and the result is reshaped back to the
// N-dimensional shape, rotating the dimensions when the buffer is
// transposed. disableSwizzle keeps the core matrix geometry but drops the
// per-row column rotation.
func NVMMASharedLayout(nc *dimnames.Context, shape []int, s *encodings.NVMMAShared, disableSwizzle bool) *linear.LinearLayout {
	rank := len(shape)
	shapePerCTA := s.CTALayout.ShapePerCTA(shape)
	offset := nc.Offset()

	if s.SwizzlingByteWidth == 0 {
		outDims := nc.StandardDims(rank)
		layout := linear.Identity1D(shapePerCTA[rank-1], offset, outDims[rank-1])
		for i := rank - 2; i >= 0; i-- {
			layout = layout.Mul(linear.Identity1D(shapePerCTA[i], offset, outDims[i]))
		}
		layout = linear.EnsureLayoutNotSmallerThan(layout, outDims, shapePerCTA)
		return CombineBlocksWithShape(nc, layout, s.CTALayout, shape)
	}
	if rank < 2 {
		exceptions.Panicf("NVMMASharedLayout: swizzled buffer needs rank >= 2, got shape %v", shape)
	}

	// Collapse all the outer dimensions into one, build the layout on the
	// collapsed 2-D shape, then reshape back.
	collapsed := []int{1, shapePerCTA[rank-1]}
	for i := 0; i+1 < rank; i++ {
		collapsed[0] *= shapePerCTA[i]
	}
	if s.Transposed {
		collapsed[0], collapsed[1] = collapsed[1], collapsed[0]
	}

	tile := coreMatrixLayout(nc, s, disableSwizzle)
	out2 := nc.StandardDims(2)
	tileRows := tile.OutDimSize(out2[0])
	tileCols := tile.OutDimSize(out2[1])

	packingFactor := 1
	if s.Fp4Padded {
		packingFactor = 2
	}
	if collapsed[1]*packingFactor < tileCols || collapsed[0] < tileRows {
		exceptions.Panicf(
			"NVMMASharedLayout: shape %v collapses to %v, smaller than one %dx%d core matrix",
			shape, collapsed, tileRows, tileCols/packingFactor)
	}

	layout := linear.EnsureLayoutNotSmallerThan(tile, out2, collapsed)

	reshapeShape := slices.Clone(shapePerCTA)
	if s.Transposed {
		// The outer dimension moves to the inner position.
		reshapeShape = append(reshapeShape[1:], reshapeShape[0])
	}
	reshaped := layout.ReshapeToShape(nc, reshapeShape)

	if s.Transposed {
		order := make([]int, 0, rank)
		order = append(order, rank-1)
		for i := 0; i < rank-1; i++ {
			order = append(order, i)
		}
		reshaped = reshaped.PermuteOutIndices(order)
	}

	reshaped = linear.EnsureLayoutNotSmallerThan(reshaped, nc.StandardDims(rank), shapePerCTA)
	return CombineBlocksWithShape(nc, reshaped, s.CTALayout, shape)
}
