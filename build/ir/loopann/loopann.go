// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package loopann defines the loop annotations shared by the scheduling passes
// and the lowering layer.
//
// A loop bound to a GPU axis iterates over the blocks of the grid (GridAxis) or
// over the threads of a block (BlockAxis) along x, y or z. The lowering layer
// derives the launch shape of a kernel from the extents of the bound loops.
package loopann

import (
	"fmt"

	"github.com/gx-org/lowerfn/build/ir"
	"github.com/gx-org/lowerfn/build/ir/annotations"
	"github.com/pkg/errors"
)

// AxisKind is the kind of GPU axis a loop is bound to.
type AxisKind int

const (
	// GridAxis binds a loop to blockIdx: one iteration per block of the grid.
	GridAxis AxisKind = iota
	// BlockAxis binds a loop to threadIdx: one iteration per thread of a block.
	BlockAxis
)

// NumAxes is the number of axes of a grid or of a block.
const NumAxes = 3

var axisNames = [NumAxes]string{"x", "y", "z"}

func (k AxisKind) String() string {
	switch k {
	case GridAxis:
		return "blockIdx"
	case BlockAxis:
		return "threadIdx"
	}
	return fmt.Sprintf("axis_kind(%d)", int(k))
}

// Bind binds a loop to a GPU axis.
type Bind struct {
	Kind AxisKind
	Axis int
}

// String returns the CUDA name of the bound axis, for example blockIdx.x.
func (b Bind) String() string {
	if b.Axis < 0 || b.Axis >= NumAxes {
		return fmt.Sprintf("%s.%d", b.Kind, b.Axis)
	}
	return b.Kind.String() + "." + axisNames[b.Axis]
}

// BindKey is the annotation key of a GPU binding.
var BindKey = annotations.NewKey(Bind{})

// SetBind binds a loop to a GPU axis.
func SetBind(loop *ir.For, kind AxisKind, axis int) error {
	if axis < 0 || axis >= NumAxes {
		return errors.Errorf("cannot bind %s to %s: axis %d out of range [0, %d)", loop.ShortString(), kind, axis, NumAxes)
	}
	return annotations.Set(loop, BindKey, Bind{Kind: kind, Axis: axis})
}

// GetBind returns the GPU binding of a loop, if any.
func GetBind(loop *ir.For) (Bind, bool) {
	return annotations.Lookup[Bind](loop, BindKey)
}

// ParseBind parses a binding written as blockIdx.x, threadIdx.y, etc.
func ParseBind(s string) (Bind, error) {
	for _, kind := range []AxisKind{GridAxis, BlockAxis} {
		for axis, name := range axisNames {
			if s == kind.String()+"."+name {
				return Bind{Kind: kind, Axis: axis}, nil
			}
		}
	}
	return Bind{}, errors.Errorf("invalid GPU binding %q: want blockIdx.[xyz] or threadIdx.[xyz]", s)
}
