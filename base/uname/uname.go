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

// Package uname provides unique names.
package uname

import "fmt"

// Unique generates unique names.
type Unique struct {
	taken map[string]bool
	next  map[string]int
}

// New name generator. Names passed as argument are reserved and never returned.
func New(reserved ...string) *Unique {
	u := &Unique{
		taken: make(map[string]bool),
		next:  make(map[string]int),
	}
	u.Reserve(reserved...)
	return u
}

// Reserve marks names as already in use.
func (n *Unique) Reserve(names ...string) {
	for _, name := range names {
		n.taken[name] = true
	}
}

// Name returns a unique name given a desired base name.
// If the base name is available, it is returned directly. Else, the smallest
// numerical suffix producing a free name is appended.
func (n *Unique) Name(root string) string {
	name := root
	for index := n.next[root]; n.taken[name]; index++ {
		if index == 0 {
			continue
		}
		name = fmt.Sprintf("%s%d", root, index)
		n.next[root] = index + 1
	}
	n.taken[name] = true
	return name
}
