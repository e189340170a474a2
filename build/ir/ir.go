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

// Package ir is the intermediate representation consumed by the function
// lowering layer.
//
// The tree is produced by scheduling passes. It is a small C-like language:
// loops, loads and stores on tensors, local declarations, casts and calls.
// Buffers, tensors and variables are shared entities: a node refers to them
// through a pointer and several nodes (possibly from several functions) may
// refer to the same entity.
package ir

import (
	"fmt"

	"github.com/gx-org/backend/dtype"
)

// ----------------------------------------------------------------------------
// Types of node in the tree.
type (
	// Node in the tree.
	Node interface {
		// node marks a structure as a node structure.
		// It prevents external implementations of the interface.
		node()
	}

	// Expr is an expression or a statement in the tree.
	// Statements are expressions of type void.
	Expr interface {
		Node

		// Type of the value computed by the expression.
		Type() Type

		// Children returns the direct sub-expressions of the node.
		// Entities referred to by the node (buffers, tensors) are not children.
		Children() []Expr

		// String representation of the expression.
		String() string
	}
)

// ----------------------------------------------------------------------------
// Types.

// TypeKind is the kind of a type.
type TypeKind int

const (
	// VoidKind is the kind of statements.
	VoidKind TypeKind = iota
	// ScalarKind is the kind of a scalar value.
	ScalarKind
	// PointerKind is the kind of a typed pointer to memory.
	PointerKind
	// HandleKind is the kind of an opaque buffer handle.
	HandleKind
	// PackedArgsKind is the kind of a packed array of arguments.
	PackedArgsKind
)

// Type of a value.
type Type struct {
	Kind TypeKind
	// DType is the element type of a scalar or the pointee type of a pointer.
	DType dtype.DataType
	// Const is true for a pointer to read-only memory.
	Const bool
}

// VoidType returns the type of statements.
func VoidType() Type {
	return Type{Kind: VoidKind}
}

// ScalarType returns a scalar type.
func ScalarType(dt dtype.DataType) Type {
	return Type{Kind: ScalarKind, DType: dt}
}

// PointerTo returns the type of a pointer to a given element type.
func PointerTo(dt dtype.DataType) Type {
	return Type{Kind: PointerKind, DType: dt}
}

// ConstPointerTo returns the type of a pointer to a given read-only element type.
func ConstPointerTo(dt dtype.DataType) Type {
	return Type{Kind: PointerKind, DType: dt, Const: true}
}

// HandleType returns the type of an opaque buffer handle.
func HandleType() Type {
	return Type{Kind: HandleKind}
}

// PackedArgsType returns the type of the packed array of arguments
// received by host functions.
func PackedArgsType() Type {
	return Type{Kind: PackedArgsKind}
}

// IsVoid returns true if the type is void.
func (t Type) IsVoid() bool {
	return t.Kind == VoidKind
}

// String representation of the type.
func (t Type) String() string {
	switch t.Kind {
	case VoidKind:
		return "void"
	case ScalarKind:
		return DTypeName(t.DType)
	case PointerKind:
		if t.Const {
			return fmt.Sprintf("const %s*", DTypeName(t.DType))
		}
		return DTypeName(t.DType) + "*"
	case HandleKind:
		return "buffer_t*"
	case PackedArgsKind:
		return "pod_value_t*"
	}
	return fmt.Sprintf("invalid(%d)", t.Kind)
}

// IndexType is the type of loop variables and tensor indices.
var IndexType = ScalarType(dtype.Int64)

// Intrinsics called by the lowering layer. Code generators are expected to
// provide an implementation for each of them.
const (
	// IntrinsicBufferGetDataHandle returns the raw memory of a buffer handle.
	IntrinsicBufferGetDataHandle = "buffer_get_data_handle"
	// IntrinsicBufferGetDataConstHandle returns the read-only raw memory of a buffer handle.
	IntrinsicBufferGetDataConstHandle = "buffer_get_data_const_handle"
	// IntrinsicPodValueToBuffer extracts a buffer handle from a packed argument array.
	IntrinsicPodValueToBuffer = "pod_value_to_buffer_p"
	// IntrinsicBufferCreate creates a buffer handle (without allocating its memory).
	IntrinsicBufferCreate = "buffer_create"
)

// PodValueIntrinsic returns the name of the intrinsic extracting a scalar
// of a given type from a packed argument array.
func PodValueIntrinsic(t Type) string {
	return "pod_value_to_" + DTypeName(t.DType)
}
