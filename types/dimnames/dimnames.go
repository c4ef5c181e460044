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

// Package dimnames interns the dimension names used by linear layouts.
//
// A layout maps named input dimensions (hardware hierarchy levels like
// "register", "lane", "warp", "block", or "offset" for shared memory) to named
// output dimensions (logical tensor axes "dim0", "dim1", ...). Names are
// compared constantly while composing layouts, so they are interned once per
// compilation session: within one Context, equal strings always yield the
// same Name handle, and handle comparison replaces string comparison.
//
// A Context is owned by the compilation session (see package session) and is
// safe for concurrent use.
package dimnames

import (
	"fmt"
	"sync"
)

// Name is an interned dimension name. It is a small comparable handle: two
// Names obtained from the same Context compare equal if and only if their
// strings are equal. The zero Name is invalid.
type Name struct {
	interned *string
}

// Ok returns whether the Name is valid, that is, it was obtained from a
// Context. The zero value returns false.
func (n Name) Ok() bool { return n.interned != nil }

// String implements fmt.Stringer.
func (n Name) String() string {
	if n.interned == nil {
		return "<invalid dim>"
	}
	return *n.interned
}

// Context interns dimension names for the lifetime of a compilation session.
// The zero value is not usable, create it with NewContext.
type Context struct {
	mu    sync.Mutex
	names map[string]Name

	// Frequently used handles, interned at construction.
	register, lane, warp, block, offset, iteration Name
}

// NewContext returns an empty interning context.
func NewContext() *Context {
	c := &Context{names: make(map[string]Name)}
	c.register = c.Get("register")
	c.lane = c.Get("lane")
	c.warp = c.Get("warp")
	c.block = c.Get("block")
	c.offset = c.Get("offset")
	c.iteration = c.Get("iteration")
	return c
}

// Get returns the Name handle for name, interning it on first use.
func (c *Context) Get(name string) Name {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, found := c.names[name]; found {
		return n
	}
	s := name // Copy, so the handle doesn't pin the caller's string.
	n := Name{interned: &s}
	c.names[name] = n
	return n
}

// Register returns the handle for the "register" input dimension, which
// enumerates the logical elements held by one lane.
func (c *Context) Register() Name { return c.register }

// Lane returns the handle for the "lane" input dimension.
func (c *Context) Lane() Name { return c.lane }

// Warp returns the handle for the "warp" input dimension.
func (c *Context) Warp() Name { return c.warp }

// Block returns the handle for the "block" (CTA) input dimension.
func (c *Context) Block() Name { return c.block }

// Offset returns the handle for the "offset" input dimension used by
// shared-memory layouts.
func (c *Context) Offset() Name { return c.offset }

// Iteration returns the handle for the "iteration" input dimension used by
// the register-to-register conversion layout.
func (c *Context) Iteration() Name { return c.iteration }

// Dim returns the handle for the standard output dimension name of axis i,
// that is, "dim0", "dim1", ...
func (c *Context) Dim(i int) Name {
	return c.Get(fmt.Sprintf("dim%d", i))
}

// StandardDims returns the standard output dimension names for a tensor of
// the given rank: dim0, dim1, ..., dim{rank-1}.
func (c *Context) StandardDims(rank int) []Name {
	dims := make([]Name, rank)
	for i := range dims {
		dims[i] = c.Dim(i)
	}
	return dims
}
