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

package lowered_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/lowerfn/build/ir"
	"github.com/gx-org/lowerfn/build/ir/annotations"
	"github.com/gx-org/lowerfn/build/ir/loopann"
	"github.com/gx-org/lowerfn/build/lowered"
	"github.com/pkg/errors"
)

var n = ir.NewVar("n", ir.ScalarType(dtype.Int64))

func exprStrings(exprs []ir.Expr) []string {
	ss := make([]string, len(exprs))
	for i, x := range exprs {
		ss[i] = x.String()
	}
	return ss
}

// copyBody returns a loop copying the tensor of src into the tensor of dst.
func copyBody(src, dst *ir.Buffer) *ir.For {
	i := ir.NewVar("i", ir.IndexType)
	return ir.NewFor(i, src.Shape[0], &ir.Store{
		Tensor:  ir.NewTensor(dst.Name, dst),
		Indices: []ir.Expr{i},
		Value:   &ir.Load{Tensor: ir.NewTensor(src.Name, src), Indices: []ir.Expr{i}},
	})
}

func copyFunc(outShape ir.Expr) *lowered.Draft {
	a := ir.NewBuffer("A", dtype.Float32, ir.Int(16))
	b := ir.NewBuffer("B", dtype.Float32, outShape)
	return lowered.MakeDraft("f", []lowered.Argument{
		lowered.BufferArg(a, lowered.Input),
		lowered.BufferArg(b, lowered.Output),
	}, copyBody(a, b))
}

func TestFinalizeStaticOutput(t *testing.T) {
	fn, err := copyFunc(ir.Int(16)).Finalize(lowered.OnDevice(lowered.Host))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if got := fn.NumOutputTensors(); got != 1 {
		t.Errorf("got %d output tensors but want 1", got)
	}
	if got := fn.AllocOutputBufferExprs(); len(got) != 0 {
		t.Errorf("static output buffer allocated by the function: %v", exprStrings(got))
	}
	if got := fn.DeallocOutputBufferExprs(); len(got) != 0 {
		t.Errorf("static output buffer released by the function: %v", exprStrings(got))
	}
	wantArgs := []string{
		"buffer_t* _A = pod_value_to_buffer_p(_args, 0)",
		"buffer_t* _B = pod_value_to_buffer_p(_args, 1)",
	}
	if diff := cmp.Diff(wantArgs, exprStrings(fn.ArgumentPrepareExprs())); diff != "" {
		t.Errorf("unexpected argument statements (-want +got):\n%s", diff)
	}
	wantCasts := []string{
		"const float32* A = (const float32*)buffer_get_data_const_handle(_A)",
		"float32* B = (float32*)buffer_get_data_handle(_B)",
	}
	if diff := cmp.Diff(wantCasts, exprStrings(fn.BufferDataCastExprs())); diff != "" {
		t.Errorf("unexpected buffer casts (-want +got):\n%s", diff)
	}
	if _, ok := fn.Device().(lowered.HostDevice); !ok {
		t.Errorf("got device %T but want HostDevice", fn.Device())
	}
	if fn.IsGPUHost() {
		t.Errorf("host function is a GPU host")
	}
	want := `func f(A: float32[] input, B: float32[] output) host {
	buffer_t* _A = pod_value_to_buffer_p(_args, 0)
	buffer_t* _B = pod_value_to_buffer_p(_args, 1)
	const float32* A = (const float32*)buffer_get_data_const_handle(_A)
	float32* B = (float32*)buffer_get_data_handle(_B)
	for (i, 0, 16) {
		B[i] = A[i]
	}
}`
	if got := fn.String(); got != want {
		t.Errorf("got:\n%s\nbut want:\n%s", got, want)
	}
}

func TestFinalizeDynamicOutput(t *testing.T) {
	fn, err := copyFunc(n).Finalize()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if diff := cmp.Diff([]string{"alloc(_B, [n])"}, exprStrings(fn.AllocOutputBufferExprs())); diff != "" {
		t.Errorf("unexpected output allocations (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"free(_B)"}, exprStrings(fn.DeallocOutputBufferExprs())); diff != "" {
		t.Errorf("unexpected output deallocations (-want +got):\n%s", diff)
	}
	if _, ok := fn.Device().(lowered.UnknownDevice); !ok {
		t.Errorf("got device %T but want UnknownDevice", fn.Device())
	}
}

func TestAllocDeallocSymmetry(t *testing.T) {
	a := ir.NewBuffer("A", dtype.Float32, n)
	b := ir.NewBuffer("B", dtype.Float32, n)
	c := ir.NewBuffer("C", dtype.Int32, n, ir.Int(2))
	d := ir.NewBuffer("D", dtype.Int32, ir.Int(2))
	draft := lowered.MakeDraft("f", []lowered.Argument{
		lowered.BufferArg(a, lowered.Input),
		lowered.BufferArg(b, lowered.Output),
		lowered.BufferArg(d, lowered.Output),
		lowered.BufferArg(c, lowered.Output),
	}, copyBody(a, b))
	if draft.NumOutputTensors != 3 {
		t.Errorf("got %d output tensors but want 3", draft.NumOutputTensors)
	}
	allocs := exprStrings(draft.PrepareAllocOutputBufferExprs())
	if diff := cmp.Diff([]string{"alloc(_B, [n])", "alloc(_C, [n, 2])"}, allocs); diff != "" {
		t.Errorf("unexpected allocations (-want +got):\n%s", diff)
	}
	deallocs := exprStrings(draft.PrepareDeallocOutputBufferExprs())
	if diff := cmp.Diff([]string{"free(_C)", "free(_B)"}, deallocs); diff != "" {
		t.Errorf("unexpected deallocations (-want +got):\n%s", diff)
	}
}

func TestUnresolvedReference(t *testing.T) {
	a := ir.NewBuffer("A", dtype.Float32, ir.Int(16))
	b := ir.NewBuffer("B", dtype.Float32, ir.Int(16))
	c := ir.NewBuffer("C", dtype.Float32, ir.Int(16))
	args := []lowered.Argument{
		lowered.BufferArg(a, lowered.Input),
		lowered.BufferArg(b, lowered.Output),
	}
	body := ir.NewBlock(copyBody(a, b), copyBody(c, b))
	_, err := lowered.Make("f", args, body, nil)
	var unresolved *lowered.UnresolvedReferenceError
	if !errors.As(err, &unresolved) {
		t.Fatalf("got error %v but want an UnresolvedReferenceError", err)
	}
	if want := (lowered.UnresolvedReferenceError{Func: "f", Name: "C"}); *unresolved != want {
		t.Errorf("got %v but want %v", *unresolved, want)
	}
	// C is resolved when declared as a temporary buffer.
	fn, err := lowered.Make("f", args, body, []*ir.Buffer{c})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	want := []string{
		"buffer_t* _C = buffer_create(4, 16)",
		"alloc(_C, [16])",
	}
	block, ok := fn.Body().(*ir.Block)
	if !ok {
		t.Fatalf("got body %T but want *ir.Block", fn.Body())
	}
	stmts := exprStrings(block.Stmts)
	if diff := cmp.Diff(want, stmts[:2]); diff != "" {
		t.Errorf("unexpected temporary buffer statements (-want +got):\n%s", diff)
	}
	if got := stmts[len(stmts)-1]; got != "free(_C)" {
		t.Errorf("got last statement %q but want free(_C)", got)
	}
	// C is not resolved when only the body allocates it.
	i := ir.NewVar("i", ir.IndexType)
	allocated := ir.NewBlock(
		&ir.Alloc{Buf: c, Extents: c.Shape},
		ir.NewFor(i, ir.Int(16), &ir.Store{
			Tensor:  ir.NewTensor("C", c),
			Indices: []ir.Expr{i},
			Value:   &ir.Load{Tensor: ir.NewTensor("A", a), Indices: []ir.Expr{i}},
		}),
		copyBody(c, b),
	)
	_, err = lowered.Make("f", args, allocated, nil)
	if !errors.As(err, &unresolved) {
		t.Fatalf("got error %v but want an UnresolvedReferenceError", err)
	}
	if want := (lowered.UnresolvedReferenceError{Func: "f", Name: "C"}); *unresolved != want {
		t.Errorf("got %v but want %v", *unresolved, want)
	}
}

func TestTempBufferCasts(t *testing.T) {
	a := ir.NewBuffer("A", dtype.Float32, ir.Int(16))
	b := ir.NewBuffer("B", dtype.Float32, ir.Int(16))
	tmp := ir.NewBuffer("T", dtype.Float32, ir.Int(16))
	fn, err := lowered.Make("f", []lowered.Argument{
		lowered.BufferArg(a, lowered.Input),
		lowered.BufferArg(b, lowered.Output),
	}, ir.NewBlock(copyBody(a, tmp), copyBody(tmp, b)), []*ir.Buffer{tmp}, lowered.OnDevice(lowered.Host))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	wantCasts := []string{
		"const float32* A = (const float32*)buffer_get_data_const_handle(_A)",
		"float32* B = (float32*)buffer_get_data_handle(_B)",
	}
	if diff := cmp.Diff(wantCasts, exprStrings(fn.BufferDataCastExprs())); diff != "" {
		t.Errorf("unexpected buffer casts (-want +got):\n%s", diff)
	}
	stmts := exprStrings(fn.Statements())
	order := []string{
		"buffer_t* _A = pod_value_to_buffer_p(_args, 0)",
		"const float32* A = (const float32*)buffer_get_data_const_handle(_A)",
		"buffer_t* _T = buffer_create(4, 16)",
		"alloc(_T, [16])",
		"float32* T = (float32*)buffer_get_data_handle(_T)",
		"free(_T)",
	}
	prev := -1
	for _, want := range order {
		idx := slices.Index(stmts, want)
		if idx < 0 {
			t.Errorf("statement %q not found in:\n%s", want, fn)
			continue
		}
		if idx <= prev {
			t.Errorf("statement %q at position %d but want after position %d in:\n%s", want, idx, prev, fn)
		}
		prev = idx
	}
}

func TestTempBuffers(t *testing.T) {
	a := ir.NewBuffer("A", dtype.Float32, ir.Int(16))
	b := ir.NewBuffer("B", dtype.Float32, ir.Int(16))
	heap := ir.NewBuffer("T", dtype.Float32, n)
	shared := ir.NewBuffer("S", dtype.Float32, ir.Int(32))
	shared.Memory = ir.GPUShared
	draft := lowered.MakeDraft("f", []lowered.Argument{
		lowered.BufferArg(a, lowered.Input),
		lowered.BufferArg(b, lowered.Output),
	}, copyBody(a, b))
	// B is both an argument and a temporary buffer: it is skipped.
	draft.TempBufs = []*ir.Buffer{heap, b, shared, heap}
	tests := []struct {
		name string
		got  []ir.Expr
		want []string
	}{
		{
			name: "create",
			got:  draft.PrepareCreateTempBufferExprs(),
			want: []string{"buffer_t* _T = buffer_create(4, n)"},
		},
		{
			name: "alloc",
			got:  draft.PrepareAllocTempBufferExprs(),
			want: []string{"alloc(_T, [n])"},
		},
		{
			name: "dealloc",
			got:  draft.PrepareDeallocTempBufferExprs(),
			want: []string{"free(_T)"},
		},
		{
			name: "cuda alloc",
			got:  draft.CudaPrepareAllocTempBufferExprs(),
			want: []string{"alloc(_S, [32])"},
		},
	}
	for _, test := range tests {
		if diff := cmp.Diff(test.want, exprStrings(test.got)); diff != "" {
			t.Errorf("%s: unexpected statements (-want +got):\n%s", test.name, diff)
		}
	}
	body, err := draft.AllocTempBuffer()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	want := `{
	buffer_t* _T = buffer_create(4, n)
	alloc(_T, [n])
	alloc(_S, [32])
	for (i, 0, 16) {
		B[i] = A[i]
	}
	free(_T)
}`
	if got := body.String(); got != want {
		t.Errorf("got body:\n%s\nbut want:\n%s", got, want)
	}
	if draft.Body == body {
		t.Errorf("body with temporary buffers is the original body")
	}
}

func TestTempBufferUnchangedBody(t *testing.T) {
	draft := copyFunc(ir.Int(16))
	body, err := draft.AllocTempBuffer()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if body != draft.Body {
		t.Errorf("body changed without temporary buffers:\n%s", body)
	}
}

func TestNameCollision(t *testing.T) {
	draft := copyFunc(ir.Int(16))
	// A temporary buffer with the name of an argument but a different identity.
	draft.TempBufs = []*ir.Buffer{ir.NewBuffer("A", dtype.Int32, ir.Int(4))}
	_, err := draft.AllocTempBuffer()
	var collision *lowered.NameCollisionError
	if !errors.As(err, &collision) {
		t.Fatalf("got error %v but want a NameCollisionError", err)
	}
	want := lowered.NameCollisionError{Func: "f", Name: "A", First: "argument", Next: "temporary buffer"}
	if *collision != want {
		t.Errorf("got %v but want %v", *collision, want)
	}
	if _, err := draft.Finalize(); !errors.As(err, &collision) {
		t.Errorf("got error %v but want a NameCollisionError", err)
	}
}

func TestCheckValid(t *testing.T) {
	a := ir.NewBuffer("A", dtype.Float32, ir.Int(16))
	b := ir.NewBuffer("B", dtype.Float32, ir.Int(16))
	space := ir.NewBuffer("space", dtype.Uint32, ir.Int(16))
	tests := []struct {
		desc   string
		draft  func() *lowered.Draft
		reason string
		ok     bool
	}{
		{
			desc: "valid",
			draft: func() *lowered.Draft {
				return copyFunc(ir.Int(16))
			},
			ok: true,
		},
		{
			desc: "input after output",
			draft: func() *lowered.Draft {
				return lowered.MakeDraft("f", []lowered.Argument{
					lowered.BufferArg(b, lowered.Output),
					lowered.BufferArg(a, lowered.Input),
				}, copyBody(a, b))
			},
			reason: "input argument A after output argument B",
		},
		{
			desc: "wrong number of output tensors",
			draft: func() *lowered.Draft {
				d := copyFunc(ir.Int(16))
				d.NumOutputTensors = 2
				return d
			},
			reason: "2 output tensors declared but 1 output buffer arguments found",
		},
		{
			desc: "temporary space out of range",
			draft: func() *lowered.Draft {
				d := copyFunc(ir.Int(16))
				d.TempSpaces = []lowered.TempSpaceInfo{lowered.NewTempSpaceInfo(ir.Int(64), 5, false)}
				return d
			},
			reason: "temporary space argument index 5 out of range [0, 2)",
		},
		{
			desc: "temporary space before outputs",
			draft: func() *lowered.Draft {
				d := lowered.MakeDraft("f", []lowered.Argument{
					lowered.BufferArg(a, lowered.Input),
					lowered.BufferArg(space, lowered.Unknown),
					lowered.BufferArg(b, lowered.Output),
				}, copyBody(a, b))
				d.TempSpaces = []lowered.TempSpaceInfo{lowered.NewTempSpaceInfo(ir.Int(64), 1, false)}
				return d
			},
			reason: "temporary space argument 1 is not one of the last 1 arguments",
		},
		{
			desc: "temporary space tagged as output",
			draft: func() *lowered.Draft {
				d := lowered.MakeDraft("f", []lowered.Argument{
					lowered.BufferArg(a, lowered.Input),
					lowered.BufferArg(b, lowered.Output),
					lowered.BufferArg(space, lowered.Output),
				}, copyBody(a, b))
				d.TempSpaces = []lowered.TempSpaceInfo{lowered.NewTempSpaceInfo(ir.Int(64), 2, false)}
				return d
			},
			reason: "temporary space argument 2 is tagged output but must be tagged unknown",
		},
		{
			desc: "shared memory on the host",
			draft: func() *lowered.Draft {
				shared := ir.NewBuffer("S", dtype.Float32, ir.Int(32))
				shared.Memory = ir.GPUShared
				d := copyFunc(ir.Int(16))
				d.TempBufs = []*ir.Buffer{shared}
				d.DeviceAPI = lowered.Host
				return d
			},
			reason: "temporary buffer S in gpu_shared memory requires a GPU target but the target is host",
		},
		{
			desc: "shared memory on a GPU",
			draft: func() *lowered.Draft {
				shared := ir.NewBuffer("S", dtype.Float32, ir.Int(32))
				shared.Memory = ir.GPUShared
				d := copyFunc(ir.Int(16))
				d.TempBufs = []*ir.Buffer{shared}
				d.DeviceAPI = lowered.CUDA
				return d
			},
			ok: true,
		},
		{
			desc: "temporary space at the tail",
			draft: func() *lowered.Draft {
				d := lowered.MakeDraft("f", []lowered.Argument{
					lowered.BufferArg(a, lowered.Input),
					lowered.BufferArg(b, lowered.Output),
					lowered.BufferArg(space, lowered.Unknown),
				}, copyBody(a, b))
				d.TempSpaces = []lowered.TempSpaceInfo{lowered.NewTempSpaceInfo(ir.Int(64), 2, true)}
				return d
			},
			ok: true,
		},
	}
	for _, test := range tests {
		err := test.draft().CheckValid()
		if test.ok {
			if err != nil {
				t.Errorf("%s: unexpected error: %+v", test.desc, err)
			}
			continue
		}
		var mismatch *lowered.SignatureMismatchError
		if !errors.As(err, &mismatch) {
			t.Errorf("%s: got error %v but want a SignatureMismatchError", test.desc, err)
			continue
		}
		if mismatch.Reason != test.reason {
			t.Errorf("%s: got reason %q but want %q", test.desc, mismatch.Reason, test.reason)
		}
	}
}

func TestCheckValidReportsAll(t *testing.T) {
	a := ir.NewBuffer("A", dtype.Float32, ir.Int(16))
	b := ir.NewBuffer("B", dtype.Float32, ir.Int(16))
	c := ir.NewBuffer("C", dtype.Float32, ir.Int(16))
	draft := lowered.MakeDraft("f", []lowered.Argument{
		lowered.BufferArg(a, lowered.Input),
		lowered.BufferArg(a, lowered.Input),
		{IO: lowered.Input},
		lowered.BufferArg(b, lowered.Output),
	}, ir.NewBlock(copyBody(a, b), copyBody(c, b)))
	err := draft.CheckValid()
	var collision *lowered.NameCollisionError
	if !errors.As(err, &collision) {
		t.Errorf("got error %v but want a NameCollisionError", err)
	}
	var undefined *lowered.UndefinedArgumentError
	if !errors.As(err, &undefined) {
		t.Errorf("got error %v but want an UndefinedArgumentError", err)
	}
	var unresolved *lowered.UnresolvedReferenceError
	if !errors.As(err, &unresolved) {
		t.Errorf("got error %v but want an UnresolvedReferenceError", err)
	}
}

func gpuFunc(t *testing.T, binds ...loopann.Bind) *lowered.Draft {
	a := ir.NewBuffer("A", dtype.Float32, ir.Int(8192))
	b := ir.NewBuffer("B", dtype.Float32, ir.Int(8192))
	extents := []int64{256, 32}
	var body ir.Expr = &ir.Store{
		Tensor:  ir.NewTensor("B", b),
		Indices: []ir.Expr{ir.Int(0)},
		Value:   &ir.Load{Tensor: ir.NewTensor("A", a), Indices: []ir.Expr{ir.Int(0)}},
	}
	for i := len(binds) - 1; i >= 0; i-- {
		loop := ir.NewFor(ir.NewVar(binds[i].String(), ir.IndexType), ir.Int(extents[i%len(extents)]), body)
		if err := loopann.SetBind(loop, binds[i].Kind, binds[i].Axis); err != nil {
			t.Fatal(err)
		}
		body = loop
	}
	draft := lowered.MakeDraft("kernel", []lowered.Argument{
		lowered.BufferArg(a, lowered.Input),
		lowered.BufferArg(b, lowered.Output),
	}, body)
	draft.DeviceAPI = lowered.CUDA
	return draft
}

func TestCudaAxisInfoFromBody(t *testing.T) {
	gridX := loopann.Bind{Kind: loopann.GridAxis, Axis: 0}
	blockX := loopann.Bind{Kind: loopann.BlockAxis, Axis: 0}
	fn, err := gpuFunc(t, gridX, blockX).Finalize()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !fn.IsGPUHost() {
		t.Errorf("kernel with bound loops is not a GPU host")
	}
	gpu, ok := fn.Device().(lowered.GPUDevice)
	if !ok {
		t.Fatalf("got device %T but want GPUDevice", fn.Device())
	}
	if gpu.API() != lowered.CUDA {
		t.Errorf("got device API %s but want %s", gpu.API(), lowered.CUDA)
	}
	if got, want := gpu.Axis.String(), "grid(256, 1, 1) block(32, 1, 1)"; got != want {
		t.Errorf("got launch shape %q but want %q", got, want)
	}
}

func TestCudaAxisInfoMultipleBindings(t *testing.T) {
	blockX := loopann.Bind{Kind: loopann.BlockAxis, Axis: 0}
	// Loops of extent 256 and 32 are both bound to threadIdx.x.
	info, err := gpuFunc(t, blockX, blockX).PrepareCudaAxisInfoFromBody()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if got, want := info.String(), "grid(1, 1, 1) block(256, 1, 1)"; got != want {
		t.Errorf("got launch shape %q but want %q", got, want)
	}
}

func TestCudaAxisInfoNoBinding(t *testing.T) {
	draft := gpuFunc(t)
	info, err := draft.PrepareCudaAxisInfoFromBody()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if info.Valid() {
		t.Errorf("axis info from a body without bound loops is valid: %s", info.String())
	}
	fn, err := draft.Finalize()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if fn.IsGPUHost() {
		t.Errorf("kernel without launch shape is a GPU host")
	}
}

func TestCudaAxisInfoHost(t *testing.T) {
	draft := gpuFunc(t, loopann.Bind{Kind: loopann.GridAxis, Axis: 1})
	draft.DeviceAPI = lowered.Host
	info, err := draft.PrepareCudaAxisInfoFromBody()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if info.Valid() {
		t.Errorf("host function has a valid launch shape: %s", info.String())
	}
}

func TestCudaAxisInfoUncheckedBinding(t *testing.T) {
	draft := gpuFunc(t)
	loop := ir.NewFor(ir.NewVar("i", ir.IndexType), ir.Int(4), draft.Body)
	// Bypass the range check of loopann.SetBind.
	if err := annotations.Set(loop, loopann.BindKey, loopann.Bind{Kind: loopann.GridAxis, Axis: loopann.NumAxes}); err != nil {
		t.Fatal(err)
	}
	draft.Body = loop
	_, err := draft.PrepareCudaAxisInfoFromBody()
	if err == nil {
		t.Fatalf("out of range binding did not return an error")
	}
	for _, want := range []string{"internal error", "function kernel"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not contain %q", err.Error(), want)
		}
	}
}

func TestLaunchShapeMismatch(t *testing.T) {
	draft := gpuFunc(t, loopann.Bind{Kind: loopann.GridAxis, Axis: 0})
	if err := draft.AxisInfo.SetGridDimInt(0, 128); err != nil {
		t.Fatal(err)
	}
	_, err := draft.Finalize()
	var mismatch *lowered.LaunchShapeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got error %v but want a LaunchShapeMismatchError", err)
	}
	want := lowered.LaunchShapeMismatchError{Func: "kernel", Dim: "grid", Offset: 0, Preset: "128", Body: "256"}
	if *mismatch != want {
		t.Errorf("got %v but want %v", *mismatch, want)
	}
	// Without inference, the preset launch shape is used as is.
	fn, err := draft.Finalize(lowered.InferAxisInfo(false))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	gpu := fn.Device().(lowered.GPUDevice)
	if got, want := gpu.Axis.String(), "grid(128, 1, 1) block(1, 1, 1)"; got != want {
		t.Errorf("got launch shape %q but want %q", got, want)
	}
}

func TestPrepareIdempotent(t *testing.T) {
	draft := copyFunc(n)
	draft.TempBufs = []*ir.Buffer{ir.NewBuffer("T", dtype.Float32, n)}
	steps := map[string]func() []ir.Expr{
		"alloc output":   draft.PrepareAllocOutputBufferExprs,
		"dealloc output": draft.PrepareDeallocOutputBufferExprs,
		"arguments":      draft.PrepareArgumentExprs,
		"buffer casts":   func() []ir.Expr { return draft.PrepareBufferCastExprs(true) },
		"cuda alias":     draft.CudaAliasVarExprs,
		"temp buffer": func() []ir.Expr {
			body, err := draft.AllocTempBuffer()
			if err != nil {
				t.Fatalf("%+v", err)
			}
			return []ir.Expr{body}
		},
	}
	for name, step := range steps {
		first, second := exprStrings(step()), exprStrings(step())
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%s: second call differs (-first +second):\n%s", name, diff)
		}
	}
	first, second := draft.CollectAllTensorReference(true), draft.CollectAllTensorReference(true)
	if !slices.Equal(first, second) {
		t.Errorf("tensor references: second call returned %v but first call returned %v", second, first)
	}
}

func TestGeneratedTensors(t *testing.T) {
	a := ir.NewBuffer("A", dtype.Float32, ir.Int(16))
	b := ir.NewBuffer("B", dtype.Float32, ir.Int(16))
	gen := ir.NewTensor("A_gen", a)
	gen.Generated = true
	body := ir.NewBlock(
		copyBody(a, b),
		&ir.Store{Tensor: ir.NewTensor("B", b), Indices: []ir.Expr{ir.Int(0)}, Value: &ir.Load{Tensor: gen, Indices: []ir.Expr{ir.Int(1)}}},
	)
	fn, err := lowered.Make("f", []lowered.Argument{
		lowered.BufferArg(a, lowered.Input),
		lowered.BufferArg(b, lowered.Output),
	}, body, nil)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	withGen := []string{
		"const float32* A = (const float32*)buffer_get_data_const_handle(_A)",
		"const float32* A_gen = (const float32*)buffer_get_data_const_handle(_A)",
		"float32* B = (float32*)buffer_get_data_handle(_B)",
	}
	if diff := cmp.Diff(withGen, exprStrings(fn.BufferDataCastExprs())); diff != "" {
		t.Errorf("unexpected buffer casts (-want +got):\n%s", diff)
	}
	withoutGen := fn.WithBufferCastExprs(false)
	if diff := cmp.Diff([]string{withGen[0], withGen[2]}, exprStrings(withoutGen.BufferDataCastExprs())); diff != "" {
		t.Errorf("unexpected buffer casts without generated tensors (-want +got):\n%s", diff)
	}
	if withoutGen.IncludesGeneratedTensors() || !fn.IncludesGeneratedTensors() {
		t.Errorf("WithBufferCastExprs modified the original function")
	}
	if got := len(fn.BufferDataCastExprs()); got != len(withGen) {
		t.Errorf("original function has %d buffer casts but want %d", got, len(withGen))
	}
}

func TestTensorDedupByName(t *testing.T) {
	a := ir.NewBuffer("A", dtype.Float32, ir.Int(16))
	b := ir.NewBuffer("B", dtype.Float32, ir.Int(16))
	// copyBody creates new tensor objects for each call.
	draft := lowered.MakeDraft("f", []lowered.Argument{
		lowered.BufferArg(a, lowered.Input),
		lowered.BufferArg(b, lowered.Output),
	}, ir.NewBlock(copyBody(a, b), copyBody(a, b)))
	var names []string
	for _, tensor := range draft.CollectAllTensorReference(true) {
		names = append(names, tensor.Name)
	}
	if diff := cmp.Diff([]string{"B", "A"}, names); diff != "" {
		t.Errorf("unexpected tensors (-want +got):\n%s", diff)
	}
}

func TestScalarArguments(t *testing.T) {
	a := ir.NewBuffer("A", dtype.Float32, n)
	b := ir.NewBuffer("B", dtype.Float32, n)
	draft := lowered.MakeDraft("f", []lowered.Argument{
		lowered.VarArg(n, lowered.Input),
		lowered.BufferArg(a, lowered.Input),
		lowered.BufferArg(b, lowered.Output),
	}, copyBody(a, b))
	want := []string{
		"int64 n = pod_value_to_int64(_args, 0)",
		"buffer_t* _A = pod_value_to_buffer_p(_args, 1)",
		"buffer_t* _B = pod_value_to_buffer_p(_args, 2)",
	}
	if diff := cmp.Diff(want, exprStrings(draft.PrepareArgumentExprs())); diff != "" {
		t.Errorf("unexpected argument statements (-want +got):\n%s", diff)
	}
	wantAlias := []string{
		"const float32* A = (const float32*)_A",
		"float32* B = (float32*)_B",
	}
	if diff := cmp.Diff(wantAlias, exprStrings(draft.CudaAliasVarExprs())); diff != "" {
		t.Errorf("unexpected aliases (-want +got):\n%s", diff)
	}
}

func TestDraftIsolation(t *testing.T) {
	draft := copyFunc(ir.Int(16))
	fn, err := draft.Finalize()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	draft.Name = "g"
	draft.Args[0] = lowered.VarArg(n, lowered.Input)
	if fn.Name() != "f" {
		t.Errorf("finalized function renamed to %s", fn.Name())
	}
	if !fn.Args()[0].IsBuffer() {
		t.Errorf("finalized function arguments modified through the draft")
	}
	redo := fn.Draft()
	redo.Name = "h"
	if fn.Name() != "f" {
		t.Errorf("finalized function renamed to %s through its draft", fn.Name())
	}
	again, err := redo.Finalize()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if diff := cmp.Diff(exprStrings(fn.Statements()), exprStrings(again.Statements())); diff != "" {
		t.Errorf("re-derived function differs (-want +got):\n%s", diff)
	}
}
