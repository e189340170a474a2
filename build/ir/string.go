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
	"slices"
	"strconv"

	basefmt "github.com/gx-org/lowerfn/base/fmt"
	"github.com/gx-org/lowerfn/base/iter"
	"github.com/gx-org/lowerfn/base/stringseq"
)

func exprList(exprs []Expr) string {
	return stringseq.JoinStringer(slices.Values(exprs), ", ")
}

func shapeString(shape []Expr) string {
	return "[" + exprList(shape) + "]"
}

func (x *IntImm) String() string {
	return strconv.FormatInt(x.Val, 10)
}

func (x *FloatImm) String() string {
	return strconv.FormatFloat(x.Val, 'g', -1, 64)
}

func (x *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", x.X.String(), x.Op.String(), x.Y.String())
}

func (x *MaxExpr) String() string {
	return fmt.Sprintf("max(%s, %s)", x.X.String(), x.Y.String())
}

func (x *BufferRef) String() string {
	return x.Buf.HandleName()
}

func (x *Load) String() string {
	return fmt.Sprintf("%s[%s]", x.Tensor.Name, exprList(x.Indices))
}

func (x *Store) String() string {
	return fmt.Sprintf("%s[%s] = %s", x.Tensor.Name, exprList(x.Indices), x.Value.String())
}

func stmtStrings(stmts []Expr) []string {
	return slices.Collect(iter.Map(Expr.String, stmts))
}

func (x *Block) String() string {
	return basefmt.Block("", stmtStrings(x.Stmts))[1:]
}

func (x *For) String() string {
	header := fmt.Sprintf("for (%s, %s, %s)", x.Var.Name, x.Min.String(), x.Extent.String())
	if anns := x.anns.String(); anns != "" {
		header += " @" + anns
	}
	var body []string
	if block, ok := x.Body.(*Block); ok {
		body = stmtStrings(block.Stmts)
	} else {
		body = []string{x.Body.String()}
	}
	return basefmt.Block(header, body)
}

func (x *Let) String() string {
	return fmt.Sprintf("%s %s = %s", x.Var.Typ.String(), x.Var.Name, x.Value.String())
}

func (x *Cast) String() string {
	return fmt.Sprintf("(%s)%s", x.To.String(), x.X.String())
}

func (x *Call) String() string {
	return fmt.Sprintf("%s(%s)", x.Name, exprList(x.Args))
}

func (x *Alloc) String() string {
	return fmt.Sprintf("alloc(%s, %s)", x.Buf.HandleName(), shapeString(x.Extents))
}

func (x *Free) String() string {
	return fmt.Sprintf("free(%s)", x.Buf.HandleName())
}
