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
	"go/token"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/lowerfn/build/ir/annotations"
)

type (
	// IntImm is an integer constant.
	IntImm struct {
		Val   int64
		DType dtype.DataType
	}

	// FloatImm is a floating point constant.
	FloatImm struct {
		Val   float64
		DType dtype.DataType
	}

	// BinaryExpr is an arithmetic operation between two expressions.
	BinaryExpr struct {
		Op   token.Token
		X, Y Expr
	}

	// MaxExpr is the maximum of two expressions.
	MaxExpr struct {
		X, Y Expr
	}

	// BufferRef refers to the handle of a buffer.
	BufferRef struct {
		Buf *Buffer
	}

	// Load reads an element of a tensor.
	Load struct {
		Tensor  *Tensor
		Indices []Expr
	}

	// Store writes an element of a tensor.
	Store struct {
		Tensor  *Tensor
		Indices []Expr
		Value   Expr
	}

	// Block is a sequence of statements.
	Block struct {
		Stmts []Expr
	}

	// For is a loop iterating Var from Min to Min+Extent (excluded).
	For struct {
		Var    *Var
		Min    Expr
		Extent Expr
		Body   Expr

		anns annotations.Annotations
	}

	// Let declares a local variable initialised with a value.
	Let struct {
		Var   *Var
		Value Expr
	}

	// Cast converts a value to another type.
	Cast struct {
		To Type
		X  Expr
	}

	// Call calls a function or an intrinsic.
	Call struct {
		Name      string
		Args      []Expr
		Typ       Type
		Intrinsic bool
	}

	// Alloc allocates the memory of a buffer.
	Alloc struct {
		Buf     *Buffer
		Extents []Expr
	}

	// Free releases the memory of a buffer.
	Free struct {
		Buf *Buffer
	}
)

var (
	_ Expr                  = (*IntImm)(nil)
	_ Expr                  = (*FloatImm)(nil)
	_ Expr                  = (*BinaryExpr)(nil)
	_ Expr                  = (*MaxExpr)(nil)
	_ Expr                  = (*BufferRef)(nil)
	_ Expr                  = (*Load)(nil)
	_ Expr                  = (*Store)(nil)
	_ Expr                  = (*Block)(nil)
	_ Expr                  = (*For)(nil)
	_ Expr                  = (*Let)(nil)
	_ Expr                  = (*Cast)(nil)
	_ Expr                  = (*Call)(nil)
	_ Expr                  = (*Alloc)(nil)
	_ Expr                  = (*Free)(nil)
	_ annotations.Annotated = (*For)(nil)
)

func (*IntImm) node() {}

// Type of the constant.
func (x *IntImm) Type() Type { return ScalarType(x.DType) }

// Children returns nil.
func (*IntImm) Children() []Expr { return nil }

func (*FloatImm) node() {}

// Type of the constant.
func (x *FloatImm) Type() Type { return ScalarType(x.DType) }

// Children returns nil.
func (*FloatImm) Children() []Expr { return nil }

func (*BinaryExpr) node() {}

// Type of the result.
func (x *BinaryExpr) Type() Type { return x.X.Type() }

// Children returns both operands.
func (x *BinaryExpr) Children() []Expr { return []Expr{x.X, x.Y} }

func (*MaxExpr) node() {}

// Type of the result.
func (x *MaxExpr) Type() Type { return x.X.Type() }

// Children returns both operands.
func (x *MaxExpr) Children() []Expr { return []Expr{x.X, x.Y} }

func (*BufferRef) node() {}

// Type returns the handle type.
func (*BufferRef) Type() Type { return HandleType() }

// Children returns nil.
func (*BufferRef) Children() []Expr { return nil }

func (*Load) node() {}

// Type returns the element type of the tensor.
func (x *Load) Type() Type { return ScalarType(x.Tensor.DType()) }

// Children returns the indices.
func (x *Load) Children() []Expr { return x.Indices }

func (*Store) node() {}

// Type returns void.
func (*Store) Type() Type { return VoidType() }

// Children returns the indices followed by the stored value.
func (x *Store) Children() []Expr {
	return append(append([]Expr{}, x.Indices...), x.Value)
}

func (*Block) node() {}

// Type returns void.
func (*Block) Type() Type { return VoidType() }

// Children returns the statements of the block.
func (x *Block) Children() []Expr { return x.Stmts }

func (*For) node() {}

// Type returns void.
func (*For) Type() Type { return VoidType() }

// Children returns the loop variable, the bounds, and the body.
func (x *For) Children() []Expr { return []Expr{x.Var, x.Min, x.Extent, x.Body} }

// Annotations of the loop set by the scheduling layer.
func (x *For) Annotations() *annotations.Annotations { return &x.anns }

// ShortString returns a short description of the loop used in error messages.
func (x *For) ShortString() string { return "loop " + x.Var.Name }

func (*Let) node() {}

// Type returns void.
func (*Let) Type() Type { return VoidType() }

// Children returns the declared variable and its initial value.
func (x *Let) Children() []Expr { return []Expr{x.Var, x.Value} }

func (*Cast) node() {}

// Type returns the target type.
func (x *Cast) Type() Type { return x.To }

// Children returns the converted value.
func (x *Cast) Children() []Expr { return []Expr{x.X} }

func (*Call) node() {}

// Type returns the type of the result of the call.
func (x *Call) Type() Type { return x.Typ }

// Children returns the arguments of the call.
func (x *Call) Children() []Expr { return x.Args }

func (*Alloc) node() {}

// Type returns void.
func (*Alloc) Type() Type { return VoidType() }

// Children returns the extents.
func (x *Alloc) Children() []Expr { return x.Extents }

func (*Free) node() {}

// Type returns void.
func (*Free) Type() Type { return VoidType() }

// Children returns nil.
func (*Free) Children() []Expr { return nil }

// NewIntrinsic returns a call to an intrinsic.
func NewIntrinsic(name string, typ Type, args ...Expr) *Call {
	return &Call{Name: name, Args: args, Typ: typ, Intrinsic: true}
}

// NewFor returns a loop from 0 to extent.
func NewFor(v *Var, extent Expr, body Expr) *For {
	return &For{Var: v, Min: Int(0), Extent: extent, Body: body}
}

// NewBlock returns a block of statements.
func NewBlock(stmts ...Expr) *Block {
	return &Block{Stmts: stmts}
}

// Walk traverses an expression in depth-first pre-order.
// The children of a node are not visited if f returns false.
func Walk(x Expr, f func(Expr) bool) {
	if x == nil || !f(x) {
		return
	}
	for _, child := range x.Children() {
		Walk(child, f)
	}
}
