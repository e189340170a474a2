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

// Package fnconfig builds lowered function drafts from TOML descriptions.
//
// A description declares scalars and buffers shared by all functions, and
// functions made of element-wise statements:
//
//	[[scalar]]
//	name = "n"
//	dtype = "int64"
//
//	[[buffer]]
//	name = "A"
//	dtype = "float32"
//	shape = ["n", 16]
//
//	[[func]]
//	name = "copy"
//	device = "cuda"
//	scalars = ["n"]
//	inputs = ["A"]
//	outputs = ["B"]
//
//	[[func.stmt]]
//	out = "B"
//	op = "copy"
//	ins = ["A"]
//	bind = ["blockIdx.x", "threadIdx.x"]
package fnconfig

import (
	"go/token"
	"io"
	"sort"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"
	"github.com/gx-org/lowerfn/base/uname"
	"github.com/gx-org/lowerfn/build/fmterr"
	"github.com/gx-org/lowerfn/build/ir"
	"github.com/gx-org/lowerfn/build/ir/loopann"
	"github.com/gx-org/lowerfn/build/lowered"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

type (
	// File is a TOML description of functions.
	File struct {
		Opts    Options  `toml:"options"`
		Scalars []Scalar `toml:"scalar"`
		Buffers []Buffer `toml:"buffer"`
		Funcs   []Func   `toml:"func"`
	}

	// Options of the finalization. Unset options keep their default value.
	Options struct {
		IncludeGenerated *bool `toml:"include_generated"`
		InferAxis        *bool `toml:"infer_axis"`
	}

	// Scalar declares a scalar variable.
	Scalar struct {
		Name  string `toml:"name"`
		DType string `toml:"dtype"`
	}

	// Buffer declares a buffer.
	// Axis lengths are either integers or names of scalars.
	Buffer struct {
		Name   string `toml:"name"`
		DType  string `toml:"dtype"`
		Shape  []any  `toml:"shape"`
		Memory string `toml:"memory"`
	}

	// Func declares a function.
	// Scalars come first in the signature, then inputs, outputs, and temporary spaces.
	Func struct {
		Name       string      `toml:"name"`
		Device     string      `toml:"device"`
		Scalars    []string    `toml:"scalars"`
		Inputs     []string    `toml:"inputs"`
		Outputs    []string    `toml:"outputs"`
		Temp       []string    `toml:"temp"`
		TempSpaces []TempSpace `toml:"temp_space"`
		Grid       []int64     `toml:"grid"`
		Block      []int64     `toml:"block"`
		Stmts      []Stmt      `toml:"stmt"`
	}

	// TempSpace declares a buffer provided by the caller as scratch memory.
	TempSpace struct {
		Buffer   string `toml:"buffer"`
		ZeroInit bool   `toml:"zero_init"`
	}

	// Stmt is an element-wise operation over all the elements of an output buffer.
	// Bind lists the GPU axes the loops are bound to, from the outermost loop.
	// An empty string leaves a loop unbound.
	Stmt struct {
		Out       string   `toml:"out"`
		Op        string   `toml:"op"`
		Ins       []string `toml:"ins"`
		Bind      []string `toml:"bind"`
		Generated bool     `toml:"generated"`
	}
)

// Decode a description from a reader.
func Decode(r io.Reader) (*File, error) {
	f := &File{}
	md, err := toml.NewDecoder(r).Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode function description")
	}
	return f, checkUndecoded(md)
}

// Load a description from a file.
func Load(path string) (*File, error) {
	f := &File{}
	md, err := toml.DecodeFile(path, f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %s", path)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return f, nil
}

func checkUndecoded(md toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, len(undecoded))
	for i, key := range undecoded {
		keys[i] = key.String()
	}
	return errors.Errorf("unknown keys %v", keys)
}

// LoweringOptions returns the finalization options set in the description.
func (f *File) LoweringOptions() []lowered.Option {
	var opts []lowered.Option
	if f.Opts.IncludeGenerated != nil {
		opts = append(opts, lowered.IncludeGeneratedTensors(*f.Opts.IncludeGenerated))
	}
	if f.Opts.InferAxis != nil {
		opts = append(opts, lowered.InferAxisInfo(*f.Opts.InferAxis))
	}
	return opts
}

type builder struct {
	scalars map[string]*ir.Var
	buffers map[string]*ir.Buffer
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	sort.Strings(keys)
	return keys
}

// Drafts builds a draft for each function of the description.
// All errors found in the description are returned.
func (f *File) Drafts() ([]*lowered.Draft, error) {
	b := &builder{
		scalars: make(map[string]*ir.Var),
		buffers: make(map[string]*ir.Buffer),
	}
	var errs fmterr.Errors
	for _, sc := range f.Scalars {
		errs.Append(b.declareScalar(sc))
	}
	for _, buf := range f.Buffers {
		errs.Append(b.declareBuffer(buf))
	}
	if !errs.Empty() {
		return nil, errs.ToError()
	}
	var drafts []*lowered.Draft
	for _, fn := range f.Funcs {
		errs.Push(fmterr.PrefixWith("function %s: ", fn.Name))
		draft := b.draft(&errs, fn)
		errs.Pop()
		drafts = append(drafts, draft)
	}
	return drafts, errs.ToError()
}

func (b *builder) declared(name string) bool {
	_, isScalar := b.scalars[name]
	_, isBuffer := b.buffers[name]
	return isScalar || isBuffer
}

func (b *builder) declareScalar(sc Scalar) error {
	if b.declared(sc.Name) {
		return errors.Errorf("scalar %s already declared", sc.Name)
	}
	dt, ok := ir.ParseDType(sc.DType)
	if !ok {
		return errors.Errorf("scalar %s: unknown data type %q", sc.Name, sc.DType)
	}
	b.scalars[sc.Name] = ir.NewVar(sc.Name, ir.ScalarType(dt))
	return nil
}

func parseMemory(s string) (ir.MemoryType, bool) {
	if s == "" {
		return ir.Heap, true
	}
	for _, mem := range []ir.MemoryType{ir.Heap, ir.GPUGlobal, ir.GPUShared, ir.GPULocal} {
		if mem.String() == s {
			return mem, true
		}
	}
	return ir.Heap, false
}

func (b *builder) declareBuffer(buf Buffer) error {
	if b.declared(buf.Name) {
		return errors.Errorf("buffer %s already declared", buf.Name)
	}
	dt, ok := ir.ParseDType(buf.DType)
	if !ok {
		return errors.Errorf("buffer %s: unknown data type %q", buf.Name, buf.DType)
	}
	mem, ok := parseMemory(buf.Memory)
	if !ok {
		return errors.Errorf("buffer %s: unknown memory %q", buf.Name, buf.Memory)
	}
	shape := make([]ir.Expr, len(buf.Shape))
	for i, axis := range buf.Shape {
		switch axisT := axis.(type) {
		case int64:
			if _, err := safecast.Conv[uint32](axisT); err != nil {
				return errors.Errorf("buffer %s: invalid length %d for axis %d", buf.Name, axisT, i)
			}
			shape[i] = ir.Int(axisT)
		case string:
			v, ok := b.scalars[axisT]
			if !ok {
				return errors.Errorf("buffer %s: axis %d: unknown scalar %q: defined scalars are %v", buf.Name, i, axisT, sortedKeys(b.scalars))
			}
			shape[i] = v
		default:
			return errors.Errorf("buffer %s: axis %d: %v is neither an integer nor a scalar name", buf.Name, i, axis)
		}
	}
	irBuf := ir.NewBuffer(buf.Name, dt, shape...)
	irBuf.Memory = mem
	b.buffers[buf.Name] = irBuf
	return nil
}

func (b *builder) buffer(name string) (*ir.Buffer, error) {
	buf, ok := b.buffers[name]
	if !ok {
		return nil, errors.Errorf("unknown buffer %q: defined buffers are %v", name, sortedKeys(b.buffers))
	}
	return buf, nil
}

func (b *builder) bufferArgs(errs *fmterr.Errors, names []string, io lowered.IO) []lowered.Argument {
	var args []lowered.Argument
	for _, name := range names {
		buf, err := b.buffer(name)
		if err != nil {
			errs.Append(err)
			continue
		}
		args = append(args, lowered.BufferArg(buf, io))
	}
	return args
}

func (b *builder) draft(errs *fmterr.Errors, fn Func) *lowered.Draft {
	var args []lowered.Argument
	for _, name := range fn.Scalars {
		v, ok := b.scalars[name]
		if !ok {
			errs.Appendf("unknown scalar %q: defined scalars are %v", name, sortedKeys(b.scalars))
			continue
		}
		args = append(args, lowered.VarArg(v, lowered.Input))
	}
	args = append(args, b.bufferArgs(errs, fn.Inputs, lowered.Input)...)
	args = append(args, b.bufferArgs(errs, fn.Outputs, lowered.Output)...)
	var spaces []lowered.TempSpaceInfo
	for _, ts := range fn.TempSpaces {
		buf, err := b.buffer(ts.Buffer)
		if err != nil {
			errs.Append(err)
			continue
		}
		args = append(args, lowered.BufferArg(buf, lowered.Unknown))
		spaces = append(spaces, lowered.NewTempSpaceInfo(buf.SizeBytes(), len(args)-1, ts.ZeroInit))
	}
	var temps []*ir.Buffer
	for _, name := range fn.Temp {
		buf, err := b.buffer(name)
		if err != nil {
			errs.Append(err)
			continue
		}
		temps = append(temps, buf)
	}

	names := uname.New(maps.Keys(b.scalars)...)
	names.Reserve(maps.Keys(b.buffers)...)
	var stmts []ir.Expr
	for i, st := range fn.Stmts {
		stmt, err := b.stmt(names, st)
		if err != nil {
			errs.Append(errors.WithMessagef(err, "statement %d", i))
			continue
		}
		stmts = append(stmts, stmt)
	}
	var body ir.Expr
	if len(stmts) == 1 {
		body = stmts[0]
	} else {
		body = ir.NewBlock(stmts...)
	}

	draft := lowered.MakeDraft(fn.Name, args, body)
	draft.TempBufs = temps
	draft.TempSpaces = spaces
	if fn.Device != "" {
		api, ok := lowered.ParseDeviceAPI(fn.Device)
		if !ok {
			errs.Appendf("unknown device %q", fn.Device)
		}
		draft.DeviceAPI = api
	}
	errs.Append(setLaunchDims(fn.Grid, draft.AxisInfo.SetGridDimInt))
	errs.Append(setLaunchDims(fn.Block, draft.AxisInfo.SetBlockDimInt))
	return draft
}

func setLaunchDims(dims []int64, set func(int, int64) error) error {
	for i, dim := range dims {
		if err := set(i, dim); err != nil {
			return err
		}
	}
	return nil
}

var binaryOps = map[string]token.Token{
	"add": token.ADD,
	"sub": token.SUB,
	"mul": token.MUL,
	"div": token.QUO,
}

func (b *builder) stmt(names *uname.Unique, st Stmt) (ir.Expr, error) {
	out, err := b.buffer(st.Out)
	if err != nil {
		return nil, err
	}
	ins := make([]*ir.Buffer, len(st.Ins))
	for i, name := range st.Ins {
		if ins[i], err = b.buffer(name); err != nil {
			return nil, err
		}
		if len(ins[i].Shape) != len(out.Shape) {
			return nil, errors.Errorf("input %s has %d axes but output %s has %d axes", name, len(ins[i].Shape), out.Name, len(out.Shape))
		}
	}
	if len(st.Bind) > len(out.Shape) {
		return nil, errors.Errorf("%d loop bindings for %d loops", len(st.Bind), len(out.Shape))
	}
	indices := make([]ir.Expr, len(out.Shape))
	for i := range indices {
		indices[i] = ir.NewVar(names.Name("i"), ir.IndexType)
	}
	loads := make([]ir.Expr, len(ins))
	for i, in := range ins {
		tensor := ir.NewTensor(in.Name, in)
		if st.Generated {
			tensor = ir.NewTensor(in.Name+"_gen", in)
			tensor.Generated = true
		}
		loads[i] = &ir.Load{Tensor: tensor, Indices: indices}
	}
	value, err := apply(st.Op, loads)
	if err != nil {
		return nil, err
	}
	var body ir.Expr = &ir.Store{
		Tensor:  ir.NewTensor(out.Name, out),
		Indices: indices,
		Value:   value,
	}
	for axis := len(indices) - 1; axis >= 0; axis-- {
		loop := ir.NewFor(indices[axis].(*ir.Var), out.Shape[axis], body)
		if axis < len(st.Bind) && st.Bind[axis] != "" {
			bind, err := loopann.ParseBind(st.Bind[axis])
			if err != nil {
				return nil, err
			}
			if err := loopann.SetBind(loop, bind.Kind, bind.Axis); err != nil {
				return nil, err
			}
		}
		body = loop
	}
	return body, nil
}

func apply(op string, args []ir.Expr) (ir.Expr, error) {
	want := 2
	if op == "copy" {
		want = 1
	}
	if len(args) != want {
		return nil, errors.Errorf("operator %s requires %d inputs but got %d", op, want, len(args))
	}
	if op == "copy" {
		return args[0], nil
	}
	if op == "max" {
		return ir.Max(args[0], args[1]), nil
	}
	tok, ok := binaryOps[op]
	if !ok {
		return nil, errors.Errorf("unknown operator %q", op)
	}
	return &ir.BinaryExpr{Op: tok, X: args[0], Y: args[1]}, nil
}
