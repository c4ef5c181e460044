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
	"github.com/gomlx/layouts/linear"
	"github.com/gomlx/layouts/types/dimnames"
)

// WithinBlock drops the block input dimension from a layout, leaving the
// intra-block ownership only. Output dimension sizes shrink accordingly:
// bits contributed by split blocks disappear from the image.
func WithinBlock(nc *dimnames.Context, l *linear.LinearLayout) *linear.LinearLayout {
	block := nc.Block()
	if !l.HasInDim(block) {
		exceptions.Panicf("WithinBlock: layout %s has no block dimension", l)
	}
	bases := l.Bases()
	for i := range bases {
		if bases[i].Name == block {
			bases[i].Bases = nil
		}
	}
	return linear.New(bases, l.OutDimNames())
}

// Slice removes output dimension dim from a distributed layout: the layout
// is composed with a projection that maps dim to zero and renumbers the
// remaining dimensions, and register basis vectors that become entirely
// zero (duplicates produced by the projection) are dropped.
func Slice(nc *dimnames.Context, parent *linear.LinearLayout, dim int) *linear.LinearLayout {
	rank := parent.NumOutDims()
	if dim < 0 || dim >= rank {
		exceptions.Panicf("Slice: dimension %d out of range for layout %s", dim, parent)
	}
	outDimNames := nc.StandardDims(rank)

	transform := linear.Empty()
	for idx, outDim := range parent.OutDimNames() {
		if idx == dim {
			// All-zero contribution, any target dimension works.
			transform = transform.Mul(linear.Zeros1D(parent.OutDimSize(outDim), outDim, outDimNames[0]))
			continue
		}
		target := idx
		if idx > dim {
			target = idx - 1
		}
		transform = transform.Mul(linear.Identity1D(parent.OutDimSize(outDim), outDim, outDimNames[target]))
	}
	sliced := parent.Compose(transform)

	register := nc.Register()
	bases := sliced.Bases()
	for i := range bases {
		if bases[i].Name != register {
			continue
		}
		kept := bases[i].Bases[:0]
		for _, basis := range bases[i].Bases {
			for _, c := range basis {
				if c != 0 {
					kept = append(kept, basis)
					break
				}
			}
		}
		bases[i].Bases = kept
	}

	outDims := make([]linear.DimSize, 0, rank-1)
	for _, name := range sliced.OutDimNames() {
		outDims = append(outDims, linear.DimSize{Name: name, Size: sliced.OutDimSize(name)})
	}
	return linear.NewWithOutDims(bases, outDims)
}

// ContiguousRunLength returns how many logically adjacent elements along
// output dimension dim a single thread owns contiguously: 2 to the number
// of leading register basis vectors that contribute exactly their own bit
// to dim and nothing elsewhere. Lowering uses it to size vectorized memory
// transactions.
func ContiguousRunLength(nc *dimnames.Context, l *linear.LinearLayout, dim int) int {
	register := nc.Register()
	if !l.HasInDim(register) {
		return 1
	}
	dimName := nc.Dim(dim)
	outDims := l.OutDimNames()
	bases := l.InDimBases(register)
	run := 0
	for b, basis := range bases {
		contiguous := true
		for o, c := range basis {
			want := int32(0)
			if outDims[o] == dimName {
				want = 1 << b
			}
			if c != want {
				contiguous = false
				break
			}
		}
		if !contiguous {
			break
		}
		run++
	}
	return 1 << run
}
