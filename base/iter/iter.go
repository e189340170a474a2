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

// Package iter provides common iterators over slices.
package iter

import goiter "iter"

// All iterates over the element of multiple slices.
func All[T any](slices ...[]T) goiter.Seq[T] {
	return func(yield func(T) bool) {
		for _, slice := range slices {
			for _, el := range slice {
				if !yield(el) {
					return
				}
			}
		}
	}
}

// Map iterates over the element of multiple slices
// and yields the result of f for each element.
func Map[T, U any](f func(T) U, slices ...[]T) goiter.Seq[U] {
	return func(yield func(U) bool) {
		for el := range All(slices...) {
			if !yield(f(el)) {
				return
			}
		}
	}
}
