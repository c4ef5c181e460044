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

// EnsureLayoutNotSmallerThan grows every output dimension of l whose size is
// below the corresponding target: extra identity bits are multiplied onto
// l's first input dimension until the output dimension meets the target.
// dims and sizes are parallel; processed in the given order. Dimensions
// already at or above target are untouched.
func EnsureLayoutNotSmallerThan(l *LinearLayout, dims []dimnames.Name, sizes []int) *LinearLayout {
	if len(dims) != len(sizes) {
		exceptions.Panicf("EnsureLayoutNotSmallerThan: %d dims but %d sizes", len(dims), len(sizes))
	}
	if len(l.inDims) == 0 {
		exceptions.Panicf("EnsureLayoutNotSmallerThan: layout %s has no input dimension to grow along", l)
	}
	growDim := l.inDims[0]
	for i, dim := range dims {
		actual := l.OutDimSize(dim)
		desired := sizes[i]
		if actual >= desired {
			continue
		}
		if !IsPowerOfTwo(desired) {
			exceptions.Panicf("EnsureLayoutNotSmallerThan: target size %d of %q is not a power of two", desired, dim)
		}
		l = l.Mul(Identity1D(desired/actual, growDim, dim))
	}
	return l
}

// EnsureLayoutNotLargerThan shrinks every output dimension of l whose size
// exceeds the corresponding target, which must divide it exactly: any basis
// contribution at or above the target is zeroed, turning the removed input
// bits into broadcast (replicated) bits, and the output size is clamped.
//
// Zeroing by threshold removes exactly the excess bits only when the
// contributions to each output dimension are distinct powers of two; every
// layout the builders construct satisfies that.
func EnsureLayoutNotLargerThan(l *LinearLayout, dims []dimnames.Name, sizes []int) *LinearLayout {
	if len(dims) != len(sizes) {
		exceptions.Panicf("EnsureLayoutNotLargerThan: %d dims but %d sizes", len(dims), len(sizes))
	}
	targets := make(map[dimnames.Name]int, len(dims))
	for i, dim := range dims {
		targets[dim] = sizes[i]
	}

	outSizes := slices.Clone(l.outSizes)
	shrink := false
	for i, dim := range l.outDims {
		desired, found := targets[dim]
		if !found {
			exceptions.Panicf("EnsureLayoutNotLargerThan: no target size for output dimension %q of %s", dim, l)
		}
		if outSizes[i] <= desired {
			continue
		}
		if desired <= 0 || outSizes[i]%desired != 0 {
			exceptions.Panicf("EnsureLayoutNotLargerThan: size %d of %q is not an exact multiple of target %d",
				outSizes[i], dim, desired)
		}
		outSizes[i] = desired
		shrink = true
	}
	if !shrink {
		return l
	}

	bases := make(map[dimnames.Name][][]int32, len(l.inDims))
	for _, inDim := range l.inDims {
		dimBases := make([][]int32, len(l.bases[inDim]))
		for b, basis := range l.bases[inDim] {
			clamped := slices.Clone(basis)
			for o := range clamped {
				if int(clamped[o]) >= outSizes[o] {
					clamped[o] = 0
				}
			}
			dimBases[b] = clamped
		}
		bases[inDim] = dimBases
	}
	return newUnchecked(slices.Clone(l.inDims), bases, slices.Clone(l.outDims), outSizes)
}
