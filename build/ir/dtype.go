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
)

var dtypeNames = map[dtype.DataType]string{
	dtype.Bool:     "bool",
	dtype.Int32:    "int32",
	dtype.Int64:    "int64",
	dtype.Uint32:   "uint32",
	dtype.Uint64:   "uint64",
	dtype.Bfloat16: "bfloat16",
	dtype.Float32:  "float32",
	dtype.Float64:  "float64",
}

// DTypeName returns the name of a data type as printed in the IR.
func DTypeName(dt dtype.DataType) string {
	if name, ok := dtypeNames[dt]; ok {
		return name
	}
	return fmt.Sprintf("dtype(%d)", int(dt))
}

// ParseDType returns the data type given its name in the IR.
func ParseDType(name string) (dtype.DataType, bool) {
	for dt, dtName := range dtypeNames {
		if dtName == name {
			return dt, true
		}
	}
	return dtype.Invalid, false
}
