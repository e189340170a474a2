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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/lowerfn/build/ir"
	"github.com/gx-org/lowerfn/build/lowered"
	"github.com/pkg/errors"
)

func TestAxisInfoDefault(t *testing.T) {
	var info lowered.CudaAxisInfo
	if info.Valid() {
		t.Errorf("zero axis info is valid")
	}
	for i := range 3 {
		grid, err := info.GridDim(i)
		if err != nil {
			t.Fatal(err)
		}
		block, err := info.BlockDim(i)
		if err != nil {
			t.Fatal(err)
		}
		for _, dim := range []ir.Expr{grid, block} {
			if v, ok := ir.ConstInt(dim); !ok || v != 1 {
				t.Errorf("axis %d: got %s but want 1", i, dim)
			}
		}
	}
	if got, want := info.String(), "grid(1, 1, 1) block(1, 1, 1) invalid"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
}

func TestAxisInfoSet(t *testing.T) {
	n := ir.NewVar("n", ir.ScalarType(dtype.Int64))
	var info lowered.CudaAxisInfo
	if err := info.SetGridDimInt(0, 256); err != nil {
		t.Fatal(err)
	}
	if err := info.SetGridDim(1, n); err != nil {
		t.Fatal(err)
	}
	if err := info.SetBlockDimInt(2, 8); err != nil {
		t.Fatal(err)
	}
	if !info.Valid() {
		t.Errorf("axis info is not valid after setting dimensions")
	}
	if got, want := info.String(), "grid(256, n, 1) block(1, 1, 8)"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
	info.SetValid(false)
	if info.Valid() {
		t.Errorf("SetValid(false) did not invalidate the axis info")
	}
}

func TestAxisInfoInvalidOffset(t *testing.T) {
	var info lowered.CudaAxisInfo
	errs := []error{
		info.SetGridDimInt(3, 1),
		info.SetBlockDimInt(-1, 1),
	}
	_, err := info.GridDim(4)
	errs = append(errs, err)
	_, err = info.BlockDim(3)
	errs = append(errs, err)
	want := []lowered.InvalidAxisOffsetError{
		{Dim: "grid", Offset: 3},
		{Dim: "block", Offset: -1},
		{Dim: "grid", Offset: 4},
		{Dim: "block", Offset: 3},
	}
	var got []lowered.InvalidAxisOffsetError
	for _, err := range errs {
		var offsetErr *lowered.InvalidAxisOffsetError
		if !errors.As(err, &offsetErr) {
			t.Fatalf("got error %v but want an InvalidAxisOffsetError", err)
		}
		got = append(got, *offsetErr)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected errors (-want +got):\n%s", diff)
	}
	if info.Valid() {
		t.Errorf("axis info became valid after failed setters")
	}
}

func TestTempSpaceInfo(t *testing.T) {
	ts := lowered.NewTempSpaceInfo(ir.Int(1024), 3, true)
	if ts.ArgIdx() != 3 || !ts.NeedZeroInit() {
		t.Errorf("got %s", ts.String())
	}
	if got, want := ts.String(), "temp space #3: 1024 bytes zeroed"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
}
