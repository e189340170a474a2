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

// Package annotations attaches typed meta-data to IR nodes.
//
// Annotations are set by scheduling passes (for example to bind a loop to a
// GPU axis) and read by later stages of the compiler.
package annotations

import (
	"fmt"
	"strings"

	"github.com/gx-org/lowerfn/base/ordered"
	"github.com/pkg/errors"
)

type (
	// Key is an annotation key.
	// Singleton created by the package defining the annotation.
	Key interface {
		key()
		FullName() string
	}

	key struct {
		fullName string
	}
)

// NewKey returns an annotation key where the name is the type of the given argument.
func NewKey(a any) Key {
	return &key{
		fullName: fmt.Sprintf("%T", a),
	}
}

func (key) key() {}

// FullName of the key.
func (k *key) FullName() string {
	return k.fullName
}

type (
	// Annotations maps key to annotation value.
	// The zero value is an empty set of annotations.
	Annotations struct {
		anns *ordered.Map[Key, annotation]
	}

	annotation interface {
		String() string
	}

	annotationT[T any] struct {
		value T
	}

	// Annotated owns a set of annotations.
	Annotated interface {
		ShortString() string
		Annotations() *Annotations
	}
)

func (anns *Annotations) set(k Key, ann annotation) bool {
	if anns.anns == nil {
		anns.anns = ordered.NewMap[Key, annotation]()
	}
	return anns.anns.StoreNew(k, ann)
}

func (anns *Annotations) get(k Key) annotation {
	if anns.anns == nil {
		return nil
	}
	ann, _ := anns.anns.Load(k)
	return ann
}

// String representation of the annotations.
func (anns *Annotations) String() string {
	if anns.anns == nil {
		return ""
	}
	var ss []string
	for _, v := range anns.anns.Iter() {
		ss = append(ss, v.String())
	}
	return strings.Join(ss, " @")
}

func (a *annotationT[T]) String() string {
	return fmt.Sprint(a.value)
}

// Set an annotation on an annotated receiver.
// Returns an error if the annotation has already been set.
func Set[T any](rcv Annotated, k Key, val T) error {
	if ok := rcv.Annotations().set(k, &annotationT[T]{value: val}); !ok {
		return errors.Errorf("annotation %s has already been defined on %s", k.FullName(), rcv.ShortString())
	}
	return nil
}

// Lookup gets an annotation from an annotated receiver.
// The boolean is false if the annotation has not been set or has been set with another type.
func Lookup[T any](rcv Annotated, k Key) (t T, ok bool) {
	ann, isT := rcv.Annotations().get(k).(*annotationT[T])
	if !isT {
		return
	}
	return ann.value, true
}

// Get gets an annotation from an annotated receiver.
// Returns a zero value if the annotation has not been defined.
func Get[T any](rcv Annotated, k Key) T {
	t, _ := Lookup[T](rcv, k)
	return t
}
