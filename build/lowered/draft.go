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

// Package lowered finalizes functions produced by the lowering passes:
// it derives the statements a code generator splices around the body of a
// function (argument unpacking, buffer casts, output and temporary buffer
// management) and the launch shape of GPU kernels.
package lowered

import (
	"slices"

	"github.com/gx-org/lowerfn/build/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Draft is a function being built.
// All its fields can be modified until it is finalized.
type Draft struct {
	// Name of the function.
	Name string
	// Args is the ordered signature of the function.
	// Output tensors come after the inputs and temporary spaces come last.
	Args []Argument
	// Body of the function.
	Body ir.Expr
	// TempBufs are buffers used by the body that are not arguments.
	TempBufs []*ir.Buffer
	// TempSpaces are scratch memory slots provided by the caller.
	// Their arguments are tagged Unknown so that they are never counted
	// as output tensors.
	TempSpaces []TempSpaceInfo
	// NumOutputTensors is the number of output buffers at the end of the
	// signature (before temporary spaces).
	NumOutputTensors int
	// DeviceAPI is the target of the function.
	DeviceAPI DeviceAPI
	// AxisInfo is a preset launch shape for GPU kernels.
	AxisInfo CudaAxisInfo
}

// MakeDraft returns a new draft from a name, a signature, and a body.
// The number of output tensors is the number of output buffer arguments.
// Temporary space arguments must be tagged Unknown for this count to hold.
func MakeDraft(name string, args []Argument, body ir.Expr) *Draft {
	return &Draft{
		Name:             name,
		Args:             slices.Clone(args),
		Body:             body,
		NumOutputTensors: countOutputTensors(args),
	}
}

// Make builds and finalizes a function in one step.
func Make(name string, args []Argument, body ir.Expr, tempBufs []*ir.Buffer, opts ...Option) (*Func, error) {
	d := MakeDraft(name, args, body)
	d.TempBufs = slices.Clone(tempBufs)
	return d.Finalize(opts...)
}

func (d *Draft) clone() *Draft {
	c := *d
	c.Args = slices.Clone(d.Args)
	c.TempBufs = slices.Clone(d.TempBufs)
	c.TempSpaces = slices.Clone(d.TempSpaces)
	return &c
}

// Finalize validates the draft and derives all the statements of the function.
// The draft can still be modified after the call without changing the
// returned function.
func (d *Draft) Finalize(opts ...Option) (*Func, error) {
	o := newOptions(opts)
	d = d.clone()
	if o.device != nil {
		d.DeviceAPI = *o.device
	}
	if err := d.CheckValid(); err != nil {
		return nil, err
	}
	body, err := d.AllocTempBuffer()
	if err != nil {
		return nil, err
	}
	device, err := d.device(o)
	if err != nil {
		return nil, err
	}
	fn := &Func{
		draft:           d,
		body:            body,
		device:          device,
		withGenerated:   o.withGenerated,
		allocOutput:     d.PrepareAllocOutputBufferExprs(),
		deallocOutput:   d.PrepareDeallocOutputBufferExprs(),
		argumentPrepare: d.PrepareArgumentExprs(),
		bufferCasts:     d.PrepareBufferCastExprs(o.withGenerated),
	}
	if klog.V(2).Enabled() {
		klog.Infof("%s: %d argument statements, %d buffer casts", d.Name, len(fn.argumentPrepare), len(fn.bufferCasts))
		klog.Infof("%s: %d output buffers allocated, %d temporary buffers", d.Name, len(fn.allocOutput), len(d.TempBufs))
	}
	klog.V(1).Infof("finalized %s(%d arguments) on %s", d.Name, len(d.Args), device.API())
	return fn, nil
}

func (d *Draft) device(o options) (Device, error) {
	switch {
	case d.DeviceAPI.IsGPU():
		axis := d.AxisInfo
		if o.inferAxis {
			fromBody, err := d.PrepareCudaAxisInfoFromBody()
			if err != nil {
				return nil, err
			}
			if axis, err = d.mergeAxisInfo(fromBody); err != nil {
				return nil, err
			}
		}
		return GPUDevice{Target: d.DeviceAPI, Axis: axis}, nil
	case d.DeviceAPI == Host:
		return HostDevice{}, nil
	}
	return UnknownDevice{}, nil
}

// mergeAxisInfo checks a launch shape derived from the body against the
// launch shape preset in the draft.
func (d *Draft) mergeAxisInfo(fromBody CudaAxisInfo) (CudaAxisInfo, error) {
	preset := d.AxisInfo
	if !preset.Valid() {
		return fromBody, nil
	}
	if !fromBody.Valid() {
		return preset, nil
	}
	presetGrid, presetBlock := preset.GridDims(), preset.BlockDims()
	bodyGrid, bodyBlock := fromBody.GridDims(), fromBody.BlockDims()
	if err := d.checkLaunchDims("grid", presetGrid[:], bodyGrid[:]); err != nil {
		return CudaAxisInfo{}, err
	}
	if err := d.checkLaunchDims("block", presetBlock[:], bodyBlock[:]); err != nil {
		return CudaAxisInfo{}, err
	}
	if !slices.EqualFunc(presetGrid[:], bodyGrid[:], ir.Equal) || !slices.EqualFunc(presetBlock[:], bodyBlock[:], ir.Equal) {
		klog.Warningf("%s: launch shape %s replaced by %s", d.Name, preset.String(), fromBody.String())
	}
	return fromBody, nil
}

func (d *Draft) checkLaunchDims(dim string, preset, body []ir.Expr) error {
	for i := range preset {
		p, pOk := ir.ConstInt(preset[i])
		b, bOk := ir.ConstInt(body[i])
		if !pOk || !bOk || p == b {
			continue
		}
		return errors.WithStack(&LaunchShapeMismatchError{
			Func:   d.Name,
			Dim:    dim,
			Offset: i,
			Preset: preset[i].String(),
			Body:   body[i].String(),
		})
	}
	return nil
}
