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
	"slices"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/lowerfn/base/ordered"
	"github.com/gx-org/lowerfn/build/ir"
	"github.com/pkg/errors"
)

// localTempBufs returns the temporary buffers that are not arguments,
// deduplicated by identity.
func (d *Draft) localTempBufs() ([]*ir.Buffer, []*NameCollisionError) {
	args := make(map[string]any)
	for _, arg := range d.Args {
		switch {
		case arg.IsBuffer():
			args[arg.Buffer().Name] = arg.Buffer()
		case arg.IsVar():
			args[arg.Var().Name] = arg.Var()
		}
	}
	local := ordered.NewMap[string, *ir.Buffer]()
	var collisions []*NameCollisionError
	for _, buf := range d.TempBufs {
		if ent, isArg := args[buf.Name]; isArg {
			if ent != any(buf) {
				collisions = append(collisions, &NameCollisionError{Func: d.Name, Name: buf.Name, First: "argument", Next: "temporary buffer"})
			}
			continue
		}
		if prev, ok := local.Load(buf.Name); ok {
			if prev != buf {
				collisions = append(collisions, &NameCollisionError{Func: d.Name, Name: buf.Name, First: "temporary buffer", Next: "temporary buffer"})
			}
			continue
		}
		local.Store(buf.Name, buf)
	}
	return slices.Collect(local.Values()), collisions
}

func (d *Draft) tempBufs(onChip bool) []*ir.Buffer {
	bufs, _ := d.localTempBufs()
	return slices.DeleteFunc(bufs, func(buf *ir.Buffer) bool {
		return buf.Memory.OnChip() != onChip
	})
}

// PrepareCreateTempBufferExprs returns the statements declaring a handle for
// each temporary buffer in heap or GPU global memory.
func (d *Draft) PrepareCreateTempBufferExprs() []ir.Expr {
	var exprs []ir.Expr
	for _, buf := range d.tempBufs(false) {
		args := append([]ir.Expr{ir.Int(int64(dtype.Sizeof(buf.DType)))}, buf.Shape...)
		exprs = append(exprs, &ir.Let{
			Var:   buf.HandleVar(),
			Value: ir.NewIntrinsic(ir.IntrinsicBufferCreate, ir.HandleType(), args...),
		})
	}
	return exprs
}

// PrepareAllocTempBufferExprs returns the allocation statements of the
// temporary buffers in heap or GPU global memory.
func (d *Draft) PrepareAllocTempBufferExprs() []ir.Expr {
	return allocExprs(d.tempBufs(false))
}

// PrepareDeallocTempBufferExprs returns the statements releasing the buffers
// allocated by PrepareAllocTempBufferExprs, in reverse order.
func (d *Draft) PrepareDeallocTempBufferExprs() []ir.Expr {
	bufs := d.tempBufs(false)
	slices.Reverse(bufs)
	exprs := make([]ir.Expr, len(bufs))
	for i, buf := range bufs {
		exprs[i] = &ir.Free{Buf: buf}
	}
	return exprs
}

// CudaPrepareAllocTempBufferExprs returns the declarations of the temporary
// buffers placed in GPU shared or local memory.
// These buffers live as long as the kernel and are never released.
func (d *Draft) CudaPrepareAllocTempBufferExprs() []ir.Expr {
	return allocExprs(d.tempBufs(true))
}

func allocExprs(bufs []*ir.Buffer) []ir.Expr {
	exprs := make([]ir.Expr, len(bufs))
	for i, buf := range bufs {
		exprs[i] = &ir.Alloc{Buf: buf, Extents: buf.Shape}
	}
	return exprs
}

// AllocTempBuffer returns the body wrapped by the creation and allocation of
// its temporary buffers and followed by their release.
// Typed pointers to temporary buffers in heap or GPU global memory are
// declared right after the allocations.
// The body is returned unchanged if the function has no temporary buffer.
// Temporary buffers that are also arguments are skipped.
func (d *Draft) AllocTempBuffer() (ir.Expr, error) {
	if _, collisions := d.localTempBufs(); len(collisions) > 0 {
		return nil, errors.WithStack(collisions[0])
	}
	var stmts []ir.Expr
	stmts = append(stmts, d.PrepareCreateTempBufferExprs()...)
	stmts = append(stmts, d.PrepareAllocTempBufferExprs()...)
	stmts = append(stmts, d.PrepareTempBufferCastExprs()...)
	stmts = append(stmts, d.CudaPrepareAllocTempBufferExprs()...)
	if len(stmts) == 0 {
		return d.Body, nil
	}
	if d.Body != nil {
		stmts = append(stmts, d.Body)
	}
	stmts = append(stmts, d.PrepareDeallocTempBufferExprs()...)
	return ir.NewBlock(stmts...), nil
}
