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
)

// TempSpaceInfo describes a temporary heap allocation passed to a function
// through its argument list. The caller allocates Size() bytes, zeroed if
// NeedZeroInit(), and passes the memory at position ArgIdx().
type TempSpaceInfo struct {
	size         ir.Expr
	argIdx       int
	needZeroInit bool
}

// NewTempSpaceInfo returns a new temporary space description.
func NewTempSpaceInfo(size ir.Expr, argIdx int, needZeroInit bool) TempSpaceInfo {
	return TempSpaceInfo{size: size, argIdx: argIdx, needZeroInit: needZeroInit}
}

// Size of the space in bytes.
func (t TempSpaceInfo) Size() ir.Expr { return t.size }

// ArgIdx is the index of the space in the argument list of the function.
func (t TempSpaceInfo) ArgIdx() int { return t.argIdx }

// NeedZeroInit returns true if the space needs to be zero-initialised.
func (t TempSpaceInfo) NeedZeroInit() bool { return t.needZeroInit }

func (t TempSpaceInfo) String() string {
	zero := ""
	if t.needZeroInit {
		zero = " zeroed"
	}
	size := "?"
	if t.size != nil {
		size = t.size.String()
	}
	return fmt.Sprintf("temp space #%d: %s bytes%s", t.argIdx, size, zero)
}
