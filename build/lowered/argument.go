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

	"github.com/gx-org/lowerfn/build/ir"
	"github.com/pkg/errors"
)

// IO tags an argument as read or written by a function.
type IO int

const (
	// Input arguments are read by the function.
	Input IO = iota
	// Output arguments are written by the function.
	Output
	// Unknown arguments may be read or written.
	Unknown
)

func (io IO) String() string {
	switch io {
	case Input:
		return "input"
	case Output:
		return "output"
	case Unknown:
		return "unknown"
	}
	return fmt.Sprintf("io(%d)", int(io))
}

// Argument is a parameter of a lowered function.
// It refers to exactly one entity: a buffer or a scalar variable.
// The zero value is an undefined input argument.
type Argument struct {
	IO IO

	buffer *ir.Buffer
	vr     *ir.Var
}

// BufferArg returns an argument passing a buffer.
func BufferArg(buf *ir.Buffer, io IO) Argument {
	return Argument{IO: io, buffer: buf}
}

// VarArg returns an argument passing a scalar variable.
func VarArg(v *ir.Var, io IO) Argument {
	return Argument{IO: io, vr: v}
}

// SetBuffer sets the buffer passed by the argument.
// Any scalar variable previously set is cleared.
func (a *Argument) SetBuffer(buf *ir.Buffer) {
	a.buffer = buf
	a.vr = nil
}

// SetVar sets the scalar variable passed by the argument.
// Any buffer previously set is cleared.
func (a *Argument) SetVar(v *ir.Var) {
	a.vr = v
	a.buffer = nil
}

// IsInput returns true if the argument is read by the function.
func (a Argument) IsInput() bool { return a.IO == Input }

// IsOutput returns true if the argument is written by the function.
func (a Argument) IsOutput() bool { return a.IO == Output }

// IsVar returns true if the argument passes a scalar variable.
func (a Argument) IsVar() bool { return a.vr != nil }

// IsBuffer returns true if the argument passes a buffer.
func (a Argument) IsBuffer() bool { return a.buffer != nil }

// Defined returns true if the argument refers to an entity.
func (a Argument) Defined() bool { return a.IsVar() || a.IsBuffer() }

// Buffer returns the buffer of the argument or nil.
func (a Argument) Buffer() *ir.Buffer { return a.buffer }

// Var returns the scalar variable of the argument or nil.
func (a Argument) Var() *ir.Var { return a.vr }

// Type returns the element type of a buffer argument
// or the type of a scalar argument.
func (a Argument) Type() (ir.Type, error) {
	switch {
	case a.IsBuffer():
		return ir.ScalarType(a.buffer.DType), nil
	case a.IsVar():
		return a.vr.Typ, nil
	}
	return ir.Type{}, errors.WithStack(&UndefinedArgumentError{Op: "type"})
}

// Name returns the name of the entity passed by the argument.
func (a Argument) Name() (string, error) {
	switch {
	case a.IsBuffer():
		return a.buffer.Name, nil
	case a.IsVar():
		return a.vr.Name, nil
	}
	return "", errors.WithStack(&UndefinedArgumentError{Op: "name"})
}

func (a Argument) kind() string {
	switch {
	case a.IsBuffer():
		return "buffer"
	case a.IsVar():
		return "var"
	}
	return "undefined"
}

// HumanReadable returns a description of the argument for diagnostics.
func (a Argument) HumanReadable() string {
	name, err := a.Name()
	if err != nil {
		return fmt.Sprintf("<Argument: undefined %s>", a.IO)
	}
	return fmt.Sprintf("<Argument: %s %s %s>", a.kind(), name, a.IO)
}

// String returns the argument as a parameter declaration.
func (a Argument) String() string {
	name, err := a.Name()
	if err != nil {
		return "<undefined>"
	}
	typ, _ := a.Type()
	if a.IsBuffer() {
		return fmt.Sprintf("%s: %s[] %s", name, typ.String(), a.IO)
	}
	return fmt.Sprintf("%s: %s %s", name, typ.String(), a.IO)
}

// countOutputTensors returns the number of output buffer arguments.
func countOutputTensors(args []Argument) int {
	n := 0
	for _, arg := range args {
		if arg.IsOutput() && arg.IsBuffer() {
			n++
		}
	}
	return n
}
