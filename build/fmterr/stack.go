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
	"io"

	"github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// withStackTrace prints, in verbose formatting, where each of the errors it wraps
// has been generated.
type withStackTrace struct {
	err error
}

// ToStackTraceError returns an error that displays its stack traces
// in verbose formatting (that is, when formatted with %+v).
func ToStackTraceError(err error) error {
	if err == nil {
		return nil
	}
	return withStackTrace{err: err}
}

func (err withStackTrace) Unwrap() error {
	return err.err
}

func (err withStackTrace) Error() string {
	return err.err.Error()
}

func (err withStackTrace) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			err.formatVerbose(s)
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, err.Error())
	case 'q':
		fmt.Fprintf(s, "%q", err.Error())
	}
}

func (err withStackTrace) formatVerbose(w io.Writer) {
	all := []error{err.err}
	if errs, ok := err.err.(*Errors); ok {
		all = errs.Errors()
	}
	for i, e := range all {
		if i > 0 {
			io.WriteString(w, "\n")
		}
		io.WriteString(w, e.Error())
		var st stackTracer
		if !errors.As(e, &st) {
			continue
		}
		fmt.Fprintf(w, "\nError generated at:%+v\n", st.StackTrace())
	}
}
