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

package ir

import (
	"fmt"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
)

// MemoryType is where the memory of a buffer lives.
type MemoryType int

const (
	// Heap memory on the host.
	Heap MemoryType = iota
	// GPUGlobal is the global memory of a GPU.
	GPUGlobal
	// GPUShared is the memory shared by the threads of a GPU block.
	GPUShared
	// GPULocal is the memory private to a GPU thread.
	GPULocal
)

// OnChip returns true if the memory is declared inside a GPU kernel
// rather than allocated by the host.
func (m MemoryType) OnChip() bool {
	return m == GPUShared || m == GPULocal
}

func (m MemoryType) String() string {
	switch m {
	case Heap:
		return "heap"
	case GPUGlobal:
		return "gpu_global"
	case GPUShared:
		return "gpu_shared"
	case GPULocal:
		return "gpu_local"
	}
	return fmt.Sprintf("memory(%d)", int(m))
}

type (
	// Var is a named scalar or handle variable.
	// A variable is also an expression referring to its value.
	Var struct {
		Name string
		Typ  Type
	}

	// Buffer is a named region of memory storing elements of the same type.
	Buffer struct {
		Name   string
		DType  dtype.DataType
		Shape  []Expr
		Memory MemoryType
	}

	// Tensor is a logical multi-dimensional array stored in a buffer.
	// Several tensors may share the same buffer.
	Tensor struct {
		Name string
		Buf  *Buffer
		// Generated is true for tensors created while generating expressions
		// (for example by a fusion pass) rather than declared by the user.
		Generated bool
	}
)

var _ Expr = (*Var)(nil)

// NewVar returns a new variable.
func NewVar(name string, typ Type) *Var {
	return &Var{Name: name, Typ: typ}
}

func (*Var) node() {}

// Type of the variable.
func (v *Var) Type() Type { return v.Typ }

// Children returns nil: a variable has no sub-expression.
func (*Var) Children() []Expr { return nil }

// String returns the name of the variable.
func (v *Var) String() string { return v.Name }

// NewBuffer returns a new buffer in heap memory.
func NewBuffer(name string, dt dtype.DataType, shape ...Expr) *Buffer {
	return &Buffer{Name: name, DType: dt, Shape: shape}
}

// HandleName returns the name of the variable holding the handle of the buffer.
// It never collides with the name of a tensor pointer into the buffer.
func (b *Buffer) HandleName() string {
	return "_" + b.Name
}

// HandleVar returns the variable holding the handle of the buffer.
func (b *Buffer) HandleVar() *Var {
	return NewVar(b.HandleName(), HandleType())
}

// StaticShape returns the shape of the buffer if all its axis lengths are constant.
func (b *Buffer) StaticShape() (*shape.Shape, bool) {
	axes := make([]int, len(b.Shape))
	for i, ax := range b.Shape {
		n, ok := ConstInt(ax)
		if !ok {
			return nil, false
		}
		axes[i] = int(n)
	}
	return &shape.Shape{DType: b.DType, AxisLengths: axes}, true
}

// StaticBytes returns the size of the buffer in bytes if its shape is constant.
func (b *Buffer) StaticBytes() (int, bool) {
	sh, ok := b.StaticShape()
	if !ok {
		return 0, false
	}
	return sh.Size() * dtype.Sizeof(b.DType), true
}

// SizeBytes returns an expression computing the size of the buffer in bytes.
func (b *Buffer) SizeBytes() Expr {
	var size Expr = Int(int64(dtype.Sizeof(b.DType)))
	for _, ax := range b.Shape {
		size = Mul(size, ax)
	}
	return size
}

// String representation of the buffer declaration.
func (b *Buffer) String() string {
	return fmt.Sprintf("%s %s%s", b.Name, DTypeName(b.DType), shapeString(b.Shape))
}

// NewTensor returns a tensor stored in a buffer.
func NewTensor(name string, buf *Buffer) *Tensor {
	return &Tensor{Name: name, Buf: buf}
}

// DType returns the element type of the tensor.
func (t *Tensor) DType() dtype.DataType {
	return t.Buf.DType
}

// String returns the name of the tensor.
func (t *Tensor) String() string {
	return t.Name
}
