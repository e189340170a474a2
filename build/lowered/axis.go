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

package lowered

import (
	"fmt"
	"slices"

	"github.com/gx-org/lowerfn/base/stringseq"
	"github.com/gx-org/lowerfn/build/ir"
	"github.com/gx-org/lowerfn/build/ir/loopann"
	"github.com/pkg/errors"
)

// CudaAxisInfo is the launch shape of a GPU kernel: the number of blocks in the
// grid and the number of threads in a block along x, y and z.
//
// Dimensions are expressions because a launch shape may depend on values only
// known at runtime. The zero value is invalid with all dimensions equal to 1.
type CudaAxisInfo struct {
	grid  [loopann.NumAxes]ir.Expr
	block [loopann.NumAxes]ir.Expr
	valid bool
}

func checkOffset(dim string, offset int) error {
	if offset < 0 || offset >= loopann.NumAxes {
		return errors.WithStack(&InvalidAxisOffsetError{Dim: dim, Offset: offset})
	}
	return nil
}

func dimOrOne(x ir.Expr) ir.Expr {
	if x == nil {
		return ir.Int(1)
	}
	return x
}

// SetGridDim sets the number of blocks along an axis of the grid.
// Setting a dimension makes the axis info valid.
func (c *CudaAxisInfo) SetGridDim(offset int, x ir.Expr) error {
	if err := checkOffset("grid", offset); err != nil {
		return err
	}
	c.grid[offset] = x
	c.valid = true
	return nil
}

// SetGridDimInt sets the number of blocks along an axis of the grid to a constant.
func (c *CudaAxisInfo) SetGridDimInt(offset int, x int64) error {
	return c.SetGridDim(offset, ir.Int(x))
}

// SetBlockDim sets the number of threads along an axis of a block.
// Setting a dimension makes the axis info valid.
func (c *CudaAxisInfo) SetBlockDim(offset int, x ir.Expr) error {
	if err := checkOffset("block", offset); err != nil {
		return err
	}
	c.block[offset] = x
	c.valid = true
	return nil
}

// SetBlockDimInt sets the number of threads along an axis of a block to a constant.
func (c *CudaAxisInfo) SetBlockDimInt(offset int, x int64) error {
	return c.SetBlockDim(offset, ir.Int(x))
}

// GridDim returns the number of blocks along an axis of the grid.
func (c CudaAxisInfo) GridDim(offset int) (ir.Expr, error) {
	if err := checkOffset("grid", offset); err != nil {
		return nil, err
	}
	return dimOrOne(c.grid[offset]), nil
}

// BlockDim returns the number of threads along an axis of a block.
func (c CudaAxisInfo) BlockDim(offset int) (ir.Expr, error) {
	if err := checkOffset("block", offset); err != nil {
		return nil, err
	}
	return dimOrOne(c.block[offset]), nil
}

// GridDims returns the dimensions of the grid.
func (c CudaAxisInfo) GridDims() [loopann.NumAxes]ir.Expr {
	var dims [loopann.NumAxes]ir.Expr
	for i, x := range c.grid {
		dims[i] = dimOrOne(x)
	}
	return dims
}

// BlockDims returns the dimensions of a block.
func (c CudaAxisInfo) BlockDims() [loopann.NumAxes]ir.Expr {
	var dims [loopann.NumAxes]ir.Expr
	for i, x := range c.block {
		dims[i] = dimOrOne(x)
	}
	return dims
}

// SetValid sets whether the axis info can be trusted by a consumer.
func (c *CudaAxisInfo) SetValid(valid bool) {
	c.valid = valid
}

// Valid returns true if the launch shape is known.
func (c CudaAxisInfo) Valid() bool {
	return c.valid
}

// dim returns a dimension given a GPU binding.
func (c CudaAxisInfo) dim(b loopann.Bind) (ir.Expr, error) {
	if b.Kind == loopann.BlockAxis {
		return c.BlockDim(b.Axis)
	}
	return c.GridDim(b.Axis)
}

// setDim sets a dimension given a GPU binding.
func (c *CudaAxisInfo) setDim(b loopann.Bind, x ir.Expr) error {
	if b.Kind == loopann.BlockAxis {
		return c.SetBlockDim(b.Axis, x)
	}
	return c.SetGridDim(b.Axis, x)
}

// String returns the launch shape, for example grid(256, 1, 1) block(32, 1, 1).
func (c CudaAxisInfo) String() string {
	grid, block := c.GridDims(), c.BlockDims()
	s := fmt.Sprintf("grid(%s) block(%s)",
		stringseq.JoinStringer(slices.Values(grid[:]), ", "),
		stringseq.JoinStringer(slices.Values(block[:]), ", "),
	)
	if !c.valid {
		s += " invalid"
	}
	return s
}
