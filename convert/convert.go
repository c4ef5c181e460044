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

// ToLinearLayout dispatches over the closed encoding set and builds the
// layout of enc for the given tensor shape. Shared encodings are built over
// allocShape, the (power of two, possibly padded) shape of the buffer they
// live in; distributed encodings take allocShape nil. Input validation is
// the caller's concern (see package session); an encoding kind with no case
// here is a defect in this package.
func ToLinearLayout(nc *dimnames.Context, shape []int, enc encodings.Encoding, allocShape []int) *linear.LinearLayout {
	switch e := enc.(type) {
	case *encodings.Blocked:
		return BlockedLayout(nc, shape, e)
	case *encodings.AMDMfma:
		return MFMALayout(nc, shape, e)
	case *encodings.AMDWmma:
		return WMMALayout(nc, shape, e)
	case *encodings.NvidiaMma:
		return NvidiaMMALayout(nc, shape, e)
	case *encodings.DotOperand:
		return dotOperandLayout(nc, shape, e)
	case *encodings.SwizzledShared:
		return SwizzledSharedLayout(nc, allocShape, e)
	case *encodings.NVMMAShared:
		return NVMMASharedLayout(nc, allocShape, e, false)
	case *encodings.AMDRotatingShared:
		return AMDRotatingSharedLayout(nc, allocShape, e)
	default:
		exceptions.Panicf("ToLinearLayout: unhandled encoding kind %s", enc.Kind())
		panic("unreachable")
	}
}

// dotOperandLayout dispatches a dot operand over its parent accumulator
// encoding.
func dotOperandLayout(nc *dimnames.Context, shape []int, dot *encodings.DotOperand) *linear.LinearLayout {
	switch dot.Parent.(type) {
	case *encodings.Blocked:
		return FMADotLayout(nc, shape, dot)
	case *encodings.AMDMfma:
		return MFMADotLayout(nc, shape, dot)
	case *encodings.AMDWmma:
		return WMMADotLayout(nc, shape, dot)
	case *encodings.NvidiaMma:
		return NvidiaDotLayout(nc, shape, dot)
	default:
		exceptions.Panicf("ToLinearLayout: unhandled dot operand parent kind %s", dot.Parent.Kind())
		panic("unreachable")
	}
}
