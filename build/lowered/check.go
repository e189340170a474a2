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

	"github.com/gx-org/lowerfn/base/iter"
	"github.com/gx-org/lowerfn/base/ordered"
	"github.com/gx-org/lowerfn/build/fmterr"
	"github.com/gx-org/lowerfn/build/ir"
	"github.com/gx-org/lowerfn/internal/exprdeps"
	"github.com/pkg/errors"
)

// CheckValid checks the draft and returns all the violations found.
// Individual errors can be extracted with errors.As.
func (d *Draft) CheckValid() error {
	var errs fmterr.Errors
	d.checkArguments(&errs)
	d.checkTempBuffers(&errs)
	d.checkTempSpaces(&errs)
	d.checkSignature(&errs)
	d.checkReferences(&errs)
	return errs.ToError()
}

func (d *Draft) checkArguments(errs *fmterr.Errors) {
	names := ordered.NewMap[string, int]()
	for i, arg := range d.Args {
		name, err := arg.Name()
		if err != nil {
			errs.Push(fmterr.PrefixWith("function %s: argument %d: ", d.Name, i))
			errs.Append(err)
			errs.Pop()
			continue
		}
		if !names.StoreNew(name, i) {
			errs.Append(errors.WithStack(&NameCollisionError{
				Func:  d.Name,
				Name:  name,
				First: "argument",
				Next:  "argument",
			}))
		}
	}
}

func (d *Draft) checkTempBuffers(errs *fmterr.Errors) {
	bufs, collisions := d.localTempBufs()
	for _, err := range collisions {
		errs.Append(errors.WithStack(err))
	}
	if d.DeviceAPI.IsGPU() {
		return
	}
	for _, buf := range bufs {
		if buf.Memory.OnChip() {
			d.signatureError(errs, "temporary buffer %s in %s memory requires a GPU target but the target is %s", buf.Name, buf.Memory, d.DeviceAPI)
		}
	}
}

func (d *Draft) signatureError(errs *fmterr.Errors, format string, a ...any) {
	errs.Append(errors.WithStack(&SignatureMismatchError{
		Func:   d.Name,
		Reason: fmt.Sprintf(format, a...),
	}))
}

func (d *Draft) checkTempSpaces(errs *fmterr.Errors) {
	numArgs, numSpaces := len(d.Args), len(d.TempSpaces)
	slots := ordered.NewMap[int, TempSpaceInfo]()
	for _, ts := range d.TempSpaces {
		idx := ts.ArgIdx()
		if idx < 0 || idx >= numArgs {
			d.signatureError(errs, "temporary space argument index %d out of range [0, %d)", idx, numArgs)
			continue
		}
		if !slots.StoreNew(idx, ts) {
			name, _ := d.Args[idx].Name()
			errs.Append(errors.WithStack(&NameCollisionError{
				Func:  d.Name,
				Name:  name,
				First: "temporary space",
				Next:  "temporary space",
			}))
			continue
		}
		if idx < numArgs-numSpaces {
			d.signatureError(errs, "temporary space argument %d is not one of the last %d arguments", idx, numSpaces)
		}
		if io := d.Args[idx].IO; io != Unknown {
			d.signatureError(errs, "temporary space argument %d is tagged %s but must be tagged %s", idx, io, Unknown)
		}
	}
}

func (d *Draft) checkSignature(errs *fmterr.Errors) {
	prefix := d.Args[:max(0, len(d.Args)-len(d.TempSpaces))]
	if d.NumOutputTensors < 0 {
		d.signatureError(errs, "negative number of output tensors %d", d.NumOutputTensors)
		return
	}
	if n := countOutputTensors(prefix); n != d.NumOutputTensors {
		d.signatureError(errs, "%d output tensors declared but %d output buffer arguments found", d.NumOutputTensors, n)
	}
	lastOutput := ""
	for _, arg := range prefix {
		name, err := arg.Name()
		if err != nil {
			continue
		}
		if arg.IsOutput() {
			lastOutput = name
			continue
		}
		if arg.IsInput() && lastOutput != "" {
			d.signatureError(errs, "input argument %s after output argument %s", name, lastOutput)
		}
	}
	for _, arg := range prefix[max(0, len(prefix)-d.NumOutputTensors):] {
		if arg.IsOutput() && arg.IsBuffer() {
			continue
		}
		d.signatureError(errs, "argument %s is not an output buffer but is one of the last %d arguments", arg.HumanReadable(), d.NumOutputTensors)
	}
}

func (d *Draft) checkReferences(errs *fmterr.Errors) {
	var args []*ir.Buffer
	for _, arg := range d.Args {
		if arg.IsBuffer() {
			args = append(args, arg.Buffer())
		}
	}
	known := make(map[string]bool)
	for buf := range iter.All(args, d.TempBufs) {
		known[buf.Name] = true
	}
	for _, buf := range exprdeps.Buffers(d.Body) {
		if known[buf.Name] {
			continue
		}
		errs.Append(errors.WithStack(&UnresolvedReferenceError{Func: d.Name, Name: buf.Name}))
	}
}

