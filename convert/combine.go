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

// Package convert turns encoding descriptors (package encodings) plus tensor
// shapes into concrete linear layouts (package linear).
//
// Nomenclature used throughout this package:
//
//   - tile layout: the layout of one block, input dims [register, lane, warp]
//     for register layouts and [offset] for shared layouts.
//   - block layout: the arrangement of the blocks of one cooperative grid,
//     input dim [block].
//
// Every builder constructs a tile layout from the encoding's hardware tables
// and hands it to CombineBlocksWithShape, which tiles it over the full tensor
// shape and layers the block dimension on top.
package convert

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/layouts/encodings"
	"github.com/gomlx/layouts/linear"
	"github.com/gomlx/layouts/types/dimnames"
)

// MakeBlockLayout builds the layout mapping a block id to the N-dimensional
// index of the sub-tensor the block owns: per dimension (most minor first in
// cta.CTAOrder), CTASplitNum blocks address distinct data and the remaining
// factor of CTAsPerCGA replicates it.
func MakeBlockLayout(nc *dimnames.Context, cta encodings.CTALayout) *linear.LinearLayout {
	cta.Validate()
	rank := cta.Rank()
	outDims := nc.StandardDims(rank)
	block := nc.Block()

	ret := linear.Empty()
	for i := range rank {
		dim := cta.CTAOrder[i]
		split := cta.CTASplitNum[dim]
		ctas := cta.CTAsPerCGA[dim]
		ret = ret.Mul(linear.Identity1D(split, block, outDims[dim])).
			Mul(linear.Zeros1D(ctas/split, block, outDims[dim]))
	}
	return ret.TransposeOuts(outDims)
}

// CombineBlocksWithShape combines the layout of one block (input dims
// [register, lane, warp] or [offset]) with the block arrangement described
// by cta, and resizes the result to exactly the given tensor shape: the tile
// grows by repetition along its first input dimension where the per-block
// shape exceeds it, and shrinks to broadcast where the shape is smaller.
func CombineBlocksWithShape(nc *dimnames.Context, tile *linear.LinearLayout,
	cta encodings.CTALayout, shape []int) *linear.LinearLayout {
	rank := len(shape)
	if tile.NumOutDims() != rank || cta.Rank() != rank {
		exceptions.Panicf("CombineBlocksWithShape: tile %s and CTA layout of rank %d do not match shape %v",
			tile, cta.Rank(), shape)
	}
	outDims := nc.StandardDims(rank)
	sizeOf := make(map[dimnames.Name]int, rank)
	for d, dim := range outDims {
		sizeOf[dim] = shape[d]
	}

	blocks := linear.EnsureLayoutNotLargerThan(MakeBlockLayout(nc, cta), outDims, shape).
		TransposeOuts(tile.OutDimNames())

	// The tile covers what is left of the shape once blocks took their share.
	tileDims := tile.OutDimNames()
	tileShape := make([]int, rank)
	for i, dim := range tileDims {
		tileShape[i] = max(1, sizeOf[dim]/blocks.OutDimSize(dim))
	}

	tile = linear.EnsureLayoutNotSmallerThan(tile, tileDims, tileShape)
	tile = linear.EnsureLayoutNotLargerThan(tile, tileDims, tileShape)

	ret := tile.Mul(blocks).TransposeOuts(outDims)
	for d, dim := range outDims {
		if ret.OutDimSize(dim) != shape[d] {
			exceptions.Panicf("CombineBlocksWithShape: combined layout %s does not cover shape %v", ret, shape)
		}
	}
	return ret
}
