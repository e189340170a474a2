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
	"cmp"
	"slices"

	"github.com/gx-org/lowerfn/build/ir"
	"github.com/gx-org/lowerfn/internal/exprdeps"
)

// ArgsName is the name of the packed argument array received by host functions.
const ArgsName = "_args"

// CollectAllTensorReference returns the tensors referenced by the body,
// deduplicated by name in order of first appearance.
// Tensors created by expression generation are only included if withGenerated is true.
func (d *Draft) CollectAllTensorReference(withGenerated bool) []*ir.Tensor {
	return exprdeps.Tensors(d.Body, withGenerated)
}

func (d *Draft) tempSpaceSlots() map[int]bool {
	slots := make(map[int]bool, len(d.TempSpaces))
	for _, ts := range d.TempSpaces {
		slots[ts.ArgIdx()] = true
	}
	return slots
}

// dynamicOutputBuffers returns the output buffers the function allocates
// itself because their size is only known at run time.
func (d *Draft) dynamicOutputBuffers() []*ir.Buffer {
	slots := d.tempSpaceSlots()
	var bufs []*ir.Buffer
	for i, arg := range d.Args {
		if slots[i] || !arg.IsOutput() || !arg.IsBuffer() {
			continue
		}
		if _, static := arg.Buffer().StaticBytes(); static {
			continue
		}
		bufs = append(bufs, arg.Buffer())
	}
	return bufs
}

// PrepareAllocOutputBufferExprs returns the allocation statements of the
// output buffers with a dynamic size, in argument order.
// Output buffers with a static size are allocated by the caller.
func (d *Draft) PrepareAllocOutputBufferExprs() []ir.Expr {
	var exprs []ir.Expr
	for _, buf := range d.dynamicOutputBuffers() {
		exprs = append(exprs, &ir.Alloc{Buf: buf, Extents: buf.Shape})
	}
	return exprs
}

// PrepareDeallocOutputBufferExprs returns the statements releasing the
// buffers allocated by PrepareAllocOutputBufferExprs, in reverse order.
func (d *Draft) PrepareDeallocOutputBufferExprs() []ir.Expr {
	bufs := d.dynamicOutputBuffers()
	slices.Reverse(bufs)
	exprs := make([]ir.Expr, len(bufs))
	for i, buf := range bufs {
		exprs[i] = &ir.Free{Buf: buf}
	}
	return exprs
}

// PrepareArgumentExprs returns the statements extracting each argument
// from the packed argument array, in signature order.
func (d *Draft) PrepareArgumentExprs() []ir.Expr {
	args := ir.NewVar(ArgsName, ir.PackedArgsType())
	var exprs []ir.Expr
	for i, arg := range d.Args {
		idx := ir.Int(int64(i))
		switch {
		case arg.IsBuffer():
			exprs = append(exprs, &ir.Let{
				Var:   arg.Buffer().HandleVar(),
				Value: ir.NewIntrinsic(ir.IntrinsicPodValueToBuffer, ir.HandleType(), args, idx),
			})
		case arg.IsVar():
			v := arg.Var()
			exprs = append(exprs, &ir.Let{
				Var:   v,
				Value: ir.NewIntrinsic(ir.PodValueIntrinsic(v.Typ), v.Typ, args, idx),
			})
		}
	}
	return exprs
}

func (d *Draft) argBufferNames(keep func(Argument) bool) map[string]bool {
	names := make(map[string]bool)
	for _, arg := range d.Args {
		if arg.IsBuffer() && keep(arg) {
			names[arg.Buffer().Name] = true
		}
	}
	return names
}

func sortedTensors(tensors []*ir.Tensor) []*ir.Tensor {
	slices.SortStableFunc(tensors, func(a, b *ir.Tensor) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return tensors
}

// PrepareBufferCastExprs returns, for each tensor referenced by the body and
// backed by a buffer argument, the declaration of a typed pointer to the
// memory of its buffer.
// Pointers to input buffers are read-only.
// Tensors backed by temporary buffers are declared by AllocTempBuffer once
// their buffer has been allocated.
// Statements are sorted by tensor name.
func (d *Draft) PrepareBufferCastExprs(withGenerated bool) []ir.Expr {
	args := d.argBufferNames(func(Argument) bool { return true })
	return d.bufferCastExprs(d.CollectAllTensorReference(withGenerated), func(buf *ir.Buffer) bool {
		return args[buf.Name]
	})
}

// PrepareTempBufferCastExprs returns, for each tensor referenced by the body
// and backed by a temporary buffer in heap or GPU global memory, the
// declaration of a typed pointer to the memory of its buffer.
// Statements are sorted by tensor name.
func (d *Draft) PrepareTempBufferCastExprs() []ir.Expr {
	temps := make(map[string]bool)
	for _, buf := range d.tempBufs(false) {
		temps[buf.Name] = true
	}
	return d.bufferCastExprs(d.CollectAllTensorReference(true), func(buf *ir.Buffer) bool {
		return temps[buf.Name]
	})
}

func (d *Draft) bufferCastExprs(tensors []*ir.Tensor, keep func(*ir.Buffer) bool) []ir.Expr {
	inputs := d.argBufferNames(Argument.IsInput)
	var exprs []ir.Expr
	for _, tensor := range sortedTensors(tensors) {
		if tensor.Buf == nil || tensor.Buf.Memory.OnChip() || !keep(tensor.Buf) {
			continue
		}
		ptr, intrinsic := ir.PointerTo(tensor.DType()), ir.IntrinsicBufferGetDataHandle
		if inputs[tensor.Buf.Name] {
			ptr, intrinsic = ir.ConstPointerTo(tensor.DType()), ir.IntrinsicBufferGetDataConstHandle
		}
		exprs = append(exprs, &ir.Let{
			Var: ir.NewVar(tensor.Name, ptr),
			Value: &ir.Cast{
				To: ptr,
				X:  ir.NewIntrinsic(intrinsic, ir.HandleType(), tensor.Buf.HandleVar()),
			},
		})
	}
	return exprs
}

// CudaAliasVarExprs returns, for each tensor of the body backed by a buffer
// argument, a typed pointer aliasing the argument inside a kernel.
func (d *Draft) CudaAliasVarExprs() []ir.Expr {
	args := d.argBufferNames(func(Argument) bool { return true })
	inputs := d.argBufferNames(Argument.IsInput)
	var exprs []ir.Expr
	for _, tensor := range sortedTensors(d.CollectAllTensorReference(true)) {
		if tensor.Buf == nil || !args[tensor.Buf.Name] {
			continue
		}
		ptr := ir.PointerTo(tensor.DType())
		if inputs[tensor.Buf.Name] {
			ptr = ir.ConstPointerTo(tensor.DType())
		}
		exprs = append(exprs, &ir.Let{
			Var:   ir.NewVar(tensor.Name, ptr),
			Value: &ir.Cast{To: ptr, X: &ir.BufferRef{Buf: tensor.Buf}},
		})
	}
	return exprs
}
