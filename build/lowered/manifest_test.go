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
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/lowerfn/build/ir"
	"github.com/gx-org/lowerfn/build/ir/loopann"
	"github.com/gx-org/lowerfn/build/lowered"
	"github.com/pkg/errors"
)

func TestManifest(t *testing.T) {
	draft := gpuFunc(t,
		loopann.Bind{Kind: loopann.GridAxis, Axis: 0},
		loopann.Bind{Kind: loopann.BlockAxis, Axis: 0},
	)
	space := ir.NewBuffer("space", dtype.Uint32, ir.Int(16))
	draft.Args = append(draft.Args, lowered.BufferArg(space, lowered.Unknown))
	draft.TempSpaces = []lowered.TempSpaceInfo{lowered.NewTempSpaceInfo(ir.Int(64), 2, true)}
	fn, err := draft.Finalize()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	got, err := fn.Manifest()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	want := &lowered.Manifest{
		Schema:           1,
		Name:             "kernel",
		Device:           "cuda",
		NumOutputTensors: 1,
		Args: []lowered.ManifestArg{
			{Name: "A", Kind: "buffer", IO: "input", DType: "float32", Bytes: 32768},
			{Name: "B", Kind: "buffer", IO: "output", DType: "float32", Bytes: 32768},
			{Name: "space", Kind: "buffer", IO: "unknown", DType: "uint32", Bytes: 64},
		},
		TempSpaces: []lowered.ManifestSpace{
			{ArgIdx: 2, Size: "64", Bytes: 64, ZeroInit: true},
		},
		Grid:    []string{"256", "1", "1"},
		Block:   []string{"32", "1", "1"},
		GPUHost: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected manifest (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	if err := lowered.WriteManifest(&buf, got); err != nil {
		t.Fatalf("%+v", err)
	}
	decoded, err := lowered.ReadManifest(&buf)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if diff := cmp.Diff(want, decoded); diff != "" {
		t.Errorf("unexpected decoded manifest (-want +got):\n%s", diff)
	}
}

func TestManifestDynamic(t *testing.T) {
	a := ir.NewBuffer("A", dtype.Float32, n)
	b := ir.NewBuffer("B", dtype.Float32, n)
	fn, err := lowered.Make("f", []lowered.Argument{
		lowered.VarArg(n, lowered.Input),
		lowered.BufferArg(a, lowered.Input),
		lowered.BufferArg(b, lowered.Output),
	}, copyBody(a, b), nil, lowered.OnDevice(lowered.Host))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	m, err := fn.Manifest()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	want := []lowered.ManifestArg{
		{Name: "n", Kind: "var", IO: "input", DType: "int64", Bytes: -1},
		{Name: "A", Kind: "buffer", IO: "input", DType: "float32", Bytes: -1},
		{Name: "B", Kind: "buffer", IO: "output", DType: "float32", Bytes: -1},
	}
	if diff := cmp.Diff(want, m.Args); diff != "" {
		t.Errorf("unexpected manifest arguments (-want +got):\n%s", diff)
	}
	if m.GPUHost || m.Grid != nil {
		t.Errorf("host function manifest has a launch shape: %v", m)
	}
}

func TestReadManifestSchema(t *testing.T) {
	var buf bytes.Buffer
	if err := lowered.WriteManifest(&buf, &lowered.Manifest{Schema: 42, Name: "f"}); err != nil {
		t.Fatalf("%+v", err)
	}
	if _, err := lowered.ReadManifest(&buf); err == nil {
		t.Errorf("manifest with an unknown schema decoded without error")
	}
}

func TestFinalizeAll(t *testing.T) {
	var drafts []*lowered.Draft
	for _, name := range []string{"f", "g", "h", "k"} {
		draft := copyFunc(n)
		draft.Name = name
		drafts = append(drafts, draft)
	}
	fns, err := lowered.FinalizeAll(context.Background(), drafts, lowered.OnDevice(lowered.Host))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	var names []string
	for _, fn := range fns {
		names = append(names, fn.Name())
	}
	if diff := cmp.Diff([]string{"f", "g", "h", "k"}, names); diff != "" {
		t.Errorf("unexpected functions (-want +got):\n%s", diff)
	}
}

func TestFinalizeAllError(t *testing.T) {
	bad := copyFunc(n)
	bad.NumOutputTensors = 0
	_, err := lowered.FinalizeAll(context.Background(), []*lowered.Draft{copyFunc(n), bad})
	var mismatch *lowered.SignatureMismatchError
	if !errors.As(err, &mismatch) {
		t.Errorf("got error %v but want a SignatureMismatchError", err)
	}
	fns, err := lowered.FinalizeAll(context.Background(), nil)
	if err != nil || len(fns) != 0 {
		t.Errorf("FinalizeAll(nil) = %v, %v", fns, err)
	}
}
