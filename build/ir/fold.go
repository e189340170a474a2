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
)

// Int returns an int64 constant.
func Int(v int64) *IntImm {
	return &IntImm{Val: v, DType: dtype.Int64}
}

// ConstInt returns the value of an expression if it is an integer constant.
func ConstInt(x Expr) (int64, bool) {
	imm, ok := x.(*IntImm)
	if !ok || imm == nil {
		return 0, false
	}
	return imm.Val, true
}

// Add returns x+y, folding integer constants.
func Add(x, y Expr) Expr {
	xv, xok := ConstInt(x)
	yv, yok := ConstInt(y)
	switch {
	case xok && yok:
		return Int(xv + yv)
	case xok && xv == 0:
		return y
	case yok && yv == 0:
		return x
	}
	return &BinaryExpr{Op: token.ADD, X: x, Y: y}
}

// Mul returns x*y, folding integer constants.
func Mul(x, y Expr) Expr {
	xv, xok := ConstInt(x)
	yv, yok := ConstInt(y)
	switch {
	case xok && yok:
		return Int(xv * yv)
	case xok && xv == 1:
		return y
	case yok && yv == 1:
		return x
	}
	return &BinaryExpr{Op: token.MUL, X: x, Y: y}
}

// Max returns max(x, y), folding integer constants.
func Max(x, y Expr) Expr {
	xv, xok := ConstInt(x)
	yv, yok := ConstInt(y)
	if xok && yok {
		return Int(max(xv, yv))
	}
	if Equal(x, y) {
		return x
	}
	return &MaxExpr{X: x, Y: y}
}

// Equal returns true if two expressions are structurally equal.
// Variables, buffers and tensors are compared by name.
func Equal(x, y Expr) bool {
	if x == nil || y == nil {
		return x == y
	}
	return x.String() == y.String() && x.Type() == y.Type()
}
