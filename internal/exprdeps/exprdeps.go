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

// Package exprdeps extracts buffer and tensor dependencies from IR expressions.
package exprdeps

import (
	"slices"

	"github.com/gx-org/lowerfn/base/ordered"
	"github.com/gx-org/lowerfn/build/ir"
)

func tensorOf(expr ir.Expr) *ir.Tensor {
	switch exprT := expr.(type) {
	case *ir.Load:
		return exprT.Tensor
	case *ir.Store:
		return exprT.Tensor
	}
	return nil
}

// Tensors returns the tensors loaded or stored in an expression, in order of
// first appearance. Tensors are deduplicated by name: distinct tensor objects
// with the same name refer to the same logical tensor and only the first one
// is returned. Tensors marked as generated are skipped if withGenerated is false.
func Tensors(expr ir.Expr, withGenerated bool) []*ir.Tensor {
	done := ordered.NewMap[string, *ir.Tensor]()
	ir.Walk(expr, func(x ir.Expr) bool {
		tensor := tensorOf(x)
		if tensor == nil {
			return true
		}
		if tensor.Generated && !withGenerated {
			return true
		}
		done.StoreNew(tensor.Name, tensor)
		return true
	})
	return slices.Collect(done.Values())
}

func buffersOf(expr ir.Expr) []*ir.Buffer {
	switch exprT := expr.(type) {
	case *ir.Load, *ir.Store:
		if tensor := tensorOf(exprT); tensor.Buf != nil {
			return []*ir.Buffer{tensor.Buf}
		}
	case *ir.BufferRef:
		return []*ir.Buffer{exprT.Buf}
	case *ir.Alloc:
		return []*ir.Buffer{exprT.Buf}
	case *ir.Free:
		return []*ir.Buffer{exprT.Buf}
	}
	return nil
}

// Buffers returns all the buffers referenced by an expression, either directly
// or through a tensor, deduplicated by name in order of first appearance.
func Buffers(expr ir.Expr) []*ir.Buffer {
	done := ordered.NewMap[string, *ir.Buffer]()
	ir.Walk(expr, func(x ir.Expr) bool {
		for _, buf := range buffersOf(x) {
			done.StoreNew(buf.Name, buf)
		}
		return true
	})
	return slices.Collect(done.Values())
}
