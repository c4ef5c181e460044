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

// Package session holds the per-compilation state of layout construction:
// the dimension-name interner and the layout cache.
//
// A Session is created at the start of a compilation and dropped at its end;
// layouts, names and cached results never outlive it. Sessions are safe for
// concurrent use by multiple compilation goroutines: layout construction is
// pure, so a cache race at worst duplicates a computation.
package session

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layouts/convert"
	"github.com/gomlx/layouts/encodings"
	"github.com/gomlx/layouts/linear"
	"github.com/gomlx/layouts/types/dimnames"
	"github.com/gomlx/layouts/types/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Session owns the mutable state shared by all layout computations of one
// compilation: the name interner and the layout cache.
type Session struct {
	names *dimnames.Context
	cache xsync.SyncMap[cacheKey, *linear.LinearLayout]
}

// cacheKey identifies one layout computation. Encodings are identified by
// pointer: encoding values are built once by the type system and reused, so
// pointer identity is name identity.
type cacheKey struct {
	shape      string
	enc        encodings.Encoding
	allocShape string
}

// New creates an empty session.
func New() *Session {
	return &Session{names: dimnames.NewContext()}
}

// Names returns the session's dimension-name interner, for collaborators
// building ad hoc layouts with the linear package directly.
func (s *Session) Names() *dimnames.Context { return s.names }

// ComputeLayout returns the linear layout of enc over the given tensor
// shape, computing it on first use and caching it for the rest of the
// session.
//
// Distributed encodings take allocShape nil. Shared encodings require an
// allocation shape: the physical buffer shape the layout addresses, at
// least as large as the logical shape, every dimension a power of two. Only
// its trailing len(shape) dimensions are used, so the allocation shape of a
// buffer subview may be passed as is.
//
// Malformed arguments are fatal (panic with an error); see
// ComputeLayoutOrErr for the recovering variant.
func (s *Session) ComputeLayout(shape []int, enc encodings.Encoding, allocShape []int) *linear.LinearLayout {
	if enc == nil {
		exceptions.Panicf("ComputeLayout: nil encoding for shape %v", shape)
	}
	allocShape = s.validateAllocShape(shape, enc, allocShape)

	key := cacheKey{shape: fmt.Sprint(shape), enc: enc, allocShape: fmt.Sprint(allocShape)}
	if layout, found := s.cache.Load(key); found {
		klog.V(2).Infof("layout cache hit: %s over %v", enc.Kind(), shape)
		return layout
	}

	klog.V(2).Infof("building %s layout over shape %v (alloc %v)", enc.Kind(), shape, allocShape)
	layout := convert.ToLinearLayout(s.names, shape, enc, allocShape)
	actual, _ := s.cache.LoadOrStore(key, layout)
	return actual
}

// ComputeLayoutOrErr is ComputeLayout returning malformed inputs as an
// error instead of panicking.
func (s *Session) ComputeLayoutOrErr(shape []int, enc encodings.Encoding, allocShape []int) (layout *linear.LinearLayout, err error) {
	err = exceptions.TryCatch[error](func() {
		layout = s.ComputeLayout(shape, enc, allocShape)
	})
	if err != nil {
		kind := encodings.KindInvalid
		if enc != nil {
			kind = enc.Kind()
		}
		return nil, errors.WithMessagef(err, "computing %s layout for shape %v", kind, shape)
	}
	return layout, nil
}

// validateAllocShape enforces the allocation-shape contract and returns the
// trailing window actually used.
func (s *Session) validateAllocShape(shape []int, enc encodings.Encoding, allocShape []int) []int {
	if !encodings.IsShared(enc) {
		if allocShape != nil {
			exceptions.Panicf("ComputeLayout: allocation shape %v given for distributed encoding %s",
				allocShape, enc.Kind())
		}
		return nil
	}
	if len(allocShape) < len(shape) {
		exceptions.Panicf("ComputeLayout: shared encoding %s needs an allocation shape of rank >= %d, got %v",
			enc.Kind(), len(shape), allocShape)
	}
	allocShape = allocShape[len(allocShape)-len(shape):]
	for d, dim := range allocShape {
		if !linear.IsPowerOfTwo(dim) {
			exceptions.Panicf("ComputeLayout: allocation shape %v has non-power-of-two dimension %d", allocShape, dim)
		}
		if dim < shape[d] {
			exceptions.Panicf("ComputeLayout: allocation shape %v smaller than tensor shape %v", allocShape, shape)
		}
	}
	return allocShape
}
