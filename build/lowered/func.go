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

	basefmt "github.com/gx-org/lowerfn/base/fmt"
	"github.com/gx-org/lowerfn/base/stringseq"
	"github.com/gx-org/lowerfn/build/ir"
)

// Func is a finalized function.
// A Func is immutable: all its accessors return copies.
type Func struct {
	draft         *Draft
	body          ir.Expr
	device        Device
	withGenerated bool

	allocOutput     []ir.Expr
	deallocOutput   []ir.Expr
	argumentPrepare []ir.Expr
	bufferCasts     []ir.Expr
}

// Name of the function.
func (f *Func) Name() string { return f.draft.Name }

// Args returns the signature of the function.
func (f *Func) Args() []Argument { return slices.Clone(f.draft.Args) }

// NumOutputTensors returns the number of output tensors of the function.
func (f *Func) NumOutputTensors() int { return f.draft.NumOutputTensors }

// TempBufs returns the temporary buffers of the function.
func (f *Func) TempBufs() []*ir.Buffer { return slices.Clone(f.draft.TempBufs) }

// TempSpaces returns the temporary spaces provided by the caller.
func (f *Func) TempSpaces() []TempSpaceInfo { return slices.Clone(f.draft.TempSpaces) }

// Body returns the body of the function, including the management of its
// temporary buffers.
func (f *Func) Body() ir.Expr { return f.body }

// Device returns the target of the function.
func (f *Func) Device() Device { return f.device }

// DeviceAPI returns the API of the target of the function.
func (f *Func) DeviceAPI() DeviceAPI { return f.device.API() }

// IsGPUHost returns true if the function is a GPU kernel with a known launch shape.
func (f *Func) IsGPUHost() bool {
	gpu, ok := f.device.(GPUDevice)
	return ok && gpu.Axis.Valid()
}

// AllocOutputBufferExprs returns the allocation statements of dynamically sized output buffers.
func (f *Func) AllocOutputBufferExprs() []ir.Expr { return slices.Clone(f.allocOutput) }

// DeallocOutputBufferExprs returns the release statements of dynamically sized output buffers.
func (f *Func) DeallocOutputBufferExprs() []ir.Expr { return slices.Clone(f.deallocOutput) }

// ArgumentPrepareExprs returns the statements unpacking the arguments.
func (f *Func) ArgumentPrepareExprs() []ir.Expr { return slices.Clone(f.argumentPrepare) }

// BufferDataCastExprs returns the typed pointer declarations of the tensors of the body.
func (f *Func) BufferDataCastExprs() []ir.Expr { return slices.Clone(f.bufferCasts) }

// IncludesGeneratedTensors returns true if buffer casts were computed
// including tensors created by expression generation.
func (f *Func) IncludesGeneratedTensors() bool { return f.withGenerated }

// Draft returns a copy of the draft the function has been built from.
func (f *Func) Draft() *Draft { return f.draft.clone() }

// WithBufferCastExprs returns a copy of the function with its buffer casts
// recomputed.
func (f *Func) WithBufferCastExprs(withGenerated bool) *Func {
	g := *f
	g.withGenerated = withGenerated
	g.bufferCasts = f.draft.PrepareBufferCastExprs(withGenerated)
	return &g
}

// Statements returns all the statements of the function in the order a code
// generator emits them.
func (f *Func) Statements() []ir.Expr {
	var stmts []ir.Expr
	stmts = append(stmts, f.argumentPrepare...)
	stmts = append(stmts, f.bufferCasts...)
	stmts = append(stmts, f.allocOutput...)
	switch body := f.body.(type) {
	case nil:
	case *ir.Block:
		stmts = append(stmts, body.Stmts...)
	default:
		stmts = append(stmts, body)
	}
	return append(stmts, f.deallocOutput...)
}

func (f *Func) header() string {
	s := fmt.Sprintf("func %s(%s)", f.draft.Name, stringseq.JoinStringer(slices.Values(f.draft.Args), ", "))
	switch dev := f.device.(type) {
	case GPUDevice:
		s += fmt.Sprintf(" %s %s", dev.Target, dev.Axis.String())
	case HostDevice:
		s += " host"
	}
	for _, ts := range f.draft.TempSpaces {
		s += fmt.Sprintf(" [%s]", ts.String())
	}
	return s
}

// String representation of the function.
func (f *Func) String() string {
	stmts := f.Statements()
	ss := make([]string, len(stmts))
	for i, stmt := range stmts {
		ss[i] = stmt.String()
	}
	return basefmt.Block(f.header(), ss)
}
