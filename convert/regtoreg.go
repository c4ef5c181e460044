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
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layouts/linear"
	"github.com/gomlx/layouts/types/dimnames"
)

// RegToRegSharedLayout builds the shared-memory staging layout used to
// convert between two register layouts: the tensor is processed in
// repetitions of repShape, each repetition addressed by a flat offset and
// an iteration counter. Per-dimension offset/iteration input dims are built
// first (following order, most minor dimension first), then folded into the
// three flat dims [offset, iteration, block].
func RegToRegSharedLayout(nc *dimnames.Context, tensorShape, repShape, order []int) *linear.LinearLayout {
	rank := len(tensorShape)
	outDims := nc.StandardDims(rank)
	layout := linear.Empty()
	var offsetDims, iterDims []dimnames.Name
	totalIters := 1
	totalOffsets := 1
	for i := range rank {
		dim := order[i]
		iteration := nc.Get(fmt.Sprintf("iteration%d", dim))
		offset := nc.Get(fmt.Sprintf("offset%d", dim))
		iterDims = append(iterDims, iteration)
		offsetDims = append(offsetDims, offset)
		if !linear.IsPowerOfTwo(repShape[dim]) || !linear.IsPowerOfTwo(tensorShape[dim]) {
			exceptions.Panicf("RegToRegSharedLayout: shape %v and repetition shape %v must be powers of two",
				tensorShape, repShape)
		}
		numIters := tensorShape[dim] / repShape[dim]
		layout = layout.Mul(linear.Identity1D(repShape[dim], offset, outDims[dim]))
		layout = layout.Mul(linear.Identity1D(numIters, iteration, outDims[dim]))
		totalIters *= numIters
		totalOffsets *= repShape[dim]
	}

	// Regroup [offset0, iteration0, offset1, ...] as
	// [offset0, offset1, ..., iteration0, iteration1, ...] and fold into the
	// flat [offset, iteration, block] dims.
	newDims := append(append([]dimnames.Name{}, offsetDims...), iterDims...)
	return layout.TransposeIns(newDims).ReshapeIns([]linear.DimSize{
		{Name: nc.Offset(), Size: totalOffsets},
		{Name: nc.Iteration(), Size: totalIters},
		{Name: nc.Block(), Size: 1},
	})
}
