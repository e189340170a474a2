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

import "fmt"

// UnresolvedReferenceError is returned when the body of a function references
// a buffer which is neither an argument nor a temporary buffer of the function.
type UnresolvedReferenceError struct {
	Func string
	Name string
}

func (err *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("function %s: buffer %s is referenced in the body but is neither an argument nor a temporary buffer", err.Func, err.Name)
}

// SignatureMismatchError is returned when the argument list of a function is inconsistent:
// the number of output tensors is incorrect, an input follows an output, or
// a temporary space is not at the tail of the argument list.
type SignatureMismatchError struct {
	Func   string
	Reason string
}

func (err *SignatureMismatchError) Error() string {
	return fmt.Sprintf("function %s: invalid signature: %s", err.Func, err.Reason)
}

// NameCollisionError is returned when two distinct entities among the arguments,
// the temporary buffers, and the temporary spaces of a function share a name.
type NameCollisionError struct {
	Func        string
	Name        string
	First, Next string
}

func (err *NameCollisionError) Error() string {
	return fmt.Sprintf("function %s: %s %s collides with %s %s", err.Func, err.Next, err.Name, err.First, err.Name)
}

// UndefinedArgumentError is returned when querying an argument that refers to no entity.
type UndefinedArgumentError struct {
	Op string
}

func (err *UndefinedArgumentError) Error() string {
	return fmt.Sprintf("cannot get the %s of an undefined argument", err.Op)
}

// InvalidAxisOffsetError is returned when accessing a GPU grid or block dimension
// outside of x, y, z.
type InvalidAxisOffsetError struct {
	Dim    string
	Offset int
}

func (err *InvalidAxisOffsetError) Error() string {
	return fmt.Sprintf("invalid %s dimension offset %d: want 0, 1, or 2", err.Dim, err.Offset)
}

// LaunchShapeMismatchError is returned when a launch shape given to a GPU kernel
// disagrees with the launch shape derived from the loops of its body.
type LaunchShapeMismatchError struct {
	Func         string
	Dim          string
	Offset       int
	Preset, Body string
}

func (err *LaunchShapeMismatchError) Error() string {
	return fmt.Sprintf("function %s: %s dimension %d is %s but the body requires %s", err.Func, err.Dim, err.Offset, err.Preset, err.Body)
}
