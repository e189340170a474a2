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
	"github.com/gx-org/lowerfn/build/fmterr"
	"github.com/gx-org/lowerfn/build/ir"
	"github.com/gx-org/lowerfn/build/ir/loopann"
	"github.com/pkg/errors"
)

// PrepareCudaAxisInfoFromBody derives the launch shape of a GPU kernel from
// the loops of its body bound to grid or thread axes.
// The size of an axis is the extent of the loop bound to it, or the maximum
// of the extents if several loops are bound to the same axis.
// Returns an invalid axis info for non-GPU functions or if no loop is bound.
func (d *Draft) PrepareCudaAxisInfoFromBody() (CudaAxisInfo, error) {
	var info CudaAxisInfo
	if !d.DeviceAPI.IsGPU() {
		return info, nil
	}
	bound := make(map[loopann.Bind]bool)
	var err error
	ir.Walk(d.Body, func(x ir.Expr) bool {
		if err != nil {
			return false
		}
		loop, ok := x.(*ir.For)
		if !ok {
			return true
		}
		bind, ok := loopann.GetBind(loop)
		if !ok {
			return true
		}
		extent := loop.Extent
		if bound[bind] {
			var current ir.Expr
			if current, err = info.dim(bind); err != nil {
				return false
			}
			extent = ir.Max(current, extent)
		}
		if err = info.setDim(bind, extent); err != nil {
			return false
		}
		bound[bind] = true
		return true
	})
	if err != nil {
		// Bindings are range-checked when set on a loop.
		return CudaAxisInfo{}, fmterr.Internal(errors.WithMessagef(err, "function %s", d.Name))
	}
	return info, nil
}
