// Copyright 2024 Google LLC
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

package fmterr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type (
	contextError struct {
		f    func(error) error
		errs error
	}

	// Errors is a set of errors.
	// The zero value is an empty set ready to use.
	Errors struct {
		stack []contextError
		errs  error
	}
)

// Push a new context in the error stack.
// Errors appended until the matching Pop are transformed by f.
func (errs *Errors) Push(f func(error) error) {
	errs.stack = append(errs.stack, contextError{f: f})
}

// Pop removes the last error context in the stack.
func (errs *Errors) Pop() {
	last := errs.stack[len(errs.stack)-1]
	errs.stack = errs.stack[:len(errs.stack)-1]
	for _, err := range multierr.Errors(last.errs) {
		errs.Append(last.f(err))
	}
}

// Append an error to the list of errors.
// Always returns false so that it can be used in a return statement of a check function.
func (errs *Errors) Append(err error) bool {
	if err == nil {
		return false
	}
	if len(errs.stack) == 0 {
		errs.errs = multierr.Append(errs.errs, err)
	} else {
		top := &errs.stack[len(errs.stack)-1]
		top.errs = multierr.Append(top.errs, err)
	}
	return false
}

// Appendf appends a formatted error with a stack trace.
func (errs *Errors) Appendf(format string, a ...any) bool {
	return errs.Append(errors.Errorf(format, a...))
}

// Empty returns true if no error has been declared.
func (errs *Errors) Empty() bool {
	if errs.errs != nil {
		return false
	}
	for _, st := range errs.stack {
		if st.errs != nil {
			return false
		}
	}
	return true
}

// Errors returns the list of all collected errors.
// Errors in contexts that have not been popped are transformed by their context.
func (errs *Errors) Errors() []error {
	all := append([]error{}, multierr.Errors(errs.errs)...)
	for _, st := range errs.stack {
		for _, err := range multierr.Errors(st.errs) {
			all = append(all, st.f(err))
		}
	}
	return all
}

// Unwrap returns the collected errors so that errors.Is and errors.As
// can match any of them.
func (errs *Errors) Unwrap() []error {
	return errs.Errors()
}

// ToError returns the errors as an error interface.
// Returns nil if no error has been collected.
func (errs *Errors) ToError() error {
	if errs == nil || errs.Empty() {
		return nil
	}
	return errs
}

// Error returns the current set of errors as a string, one error per line.
func (errs *Errors) Error() string {
	all := errs.Errors()
	ss := make([]string, len(all))
	for i, err := range all {
		ss[i] = err.Error()
	}
	return strings.Join(ss, "\n")
}

// Format writes the error into the state of the formatter.
func (errs *Errors) Format(s fmt.State, verb rune) {
	flag := ""
	if s.Flag('+') {
		flag = "+"
	}
	format := fmt.Sprintf("%%%s%s\n", flag, string(verb))
	for _, e := range errs.Errors() {
		fmt.Fprintf(s, format, e)
	}
}

// String representation of the error.
func (errs *Errors) String() string {
	return errs.Error()
}
