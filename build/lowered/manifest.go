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
	"io"
	"strings"

	"fortio.org/safecast"
	"github.com/gx-org/lowerfn/build/ir"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const manifestSchemaVersion uint16 = 1

type (
	// Manifest describes the calling convention of a finalized function
	// for runtimes loading the generated code.
	Manifest struct {
		Schema           uint16          `msgpack:"schema"`
		Name             string          `msgpack:"name"`
		Device           string          `msgpack:"device"`
		Args             []ManifestArg   `msgpack:"args"`
		NumOutputTensors int32           `msgpack:"num_output_tensors"`
		TempSpaces       []ManifestSpace `msgpack:"temp_spaces,omitempty"`
		// Grid and Block are the launch shape of a GPU kernel.
		Grid    []string `msgpack:"grid,omitempty"`
		Block   []string `msgpack:"block,omitempty"`
		GPUHost bool     `msgpack:"gpu_host"`
	}

	// ManifestArg describes an argument of a function.
	ManifestArg struct {
		Name  string `msgpack:"name"`
		Kind  string `msgpack:"kind"`
		IO    string `msgpack:"io"`
		DType string `msgpack:"dtype"`
		// Bytes is the size of a buffer argument, or -1 if the size is only
		// known at run time or the argument is not a buffer.
		Bytes int64 `msgpack:"bytes"`
	}

	// ManifestSpace describes a temporary space provided by the caller.
	ManifestSpace struct {
		ArgIdx int32 `msgpack:"arg_idx"`
		// Size is the expression computing the size in bytes of the space.
		Size string `msgpack:"size"`
		// Bytes is the size of the space if it is constant, -1 otherwise.
		Bytes    int64 `msgpack:"bytes"`
		ZeroInit bool  `msgpack:"zero_init"`
	}
)

func manifestArg(arg Argument) (ManifestArg, error) {
	name, err := arg.Name()
	if err != nil {
		return ManifestArg{}, err
	}
	typ, err := arg.Type()
	if err != nil {
		return ManifestArg{}, err
	}
	m := ManifestArg{
		Name:  name,
		Kind:  arg.kind(),
		IO:    arg.IO.String(),
		DType: ir.DTypeName(typ.DType),
		Bytes: -1,
	}
	if !arg.IsBuffer() {
		return m, nil
	}
	if bytes, ok := arg.Buffer().StaticBytes(); ok {
		if m.Bytes, err = safecast.Conv[int64](bytes); err != nil {
			return ManifestArg{}, errors.Wrapf(err, "size of buffer %s", name)
		}
	}
	return m, nil
}

func exprStrings(exprs []ir.Expr) []string {
	ss := make([]string, len(exprs))
	for i, x := range exprs {
		ss[i] = x.String()
	}
	return ss
}

// Manifest returns the description of the calling convention of the function.
func (f *Func) Manifest() (*Manifest, error) {
	numOutputs, err := safecast.Conv[int32](f.draft.NumOutputTensors)
	if err != nil {
		return nil, errors.Wrapf(err, "function %s: number of output tensors", f.Name())
	}
	m := &Manifest{
		Schema:           manifestSchemaVersion,
		Name:             f.Name(),
		Device:           f.DeviceAPI().String(),
		NumOutputTensors: numOutputs,
		GPUHost:          f.IsGPUHost(),
	}
	for _, arg := range f.draft.Args {
		marg, err := manifestArg(arg)
		if err != nil {
			return nil, errors.WithMessagef(err, "function %s", f.Name())
		}
		m.Args = append(m.Args, marg)
	}
	for _, ts := range f.draft.TempSpaces {
		idx, err := safecast.Conv[int32](ts.ArgIdx())
		if err != nil {
			return nil, errors.Wrapf(err, "function %s: temporary space index", f.Name())
		}
		space := ManifestSpace{ArgIdx: idx, Size: "?", Bytes: -1, ZeroInit: ts.NeedZeroInit()}
		if ts.Size() != nil {
			space.Size = ts.Size().String()
			if n, ok := ir.ConstInt(ts.Size()); ok {
				space.Bytes = n
			}
		}
		m.TempSpaces = append(m.TempSpaces, space)
	}
	if gpu, ok := f.device.(GPUDevice); ok && gpu.Axis.Valid() {
		grid, block := gpu.Axis.GridDims(), gpu.Axis.BlockDims()
		m.Grid = exprStrings(grid[:])
		m.Block = exprStrings(block[:])
	}
	return m, nil
}

// String representation of the manifest.
func (m *Manifest) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s on %s: %d output tensors\n", m.Name, m.Device, m.NumOutputTensors)
	for i, arg := range m.Args {
		size := "dynamic"
		if arg.Bytes >= 0 {
			size = fmt.Sprintf("%d bytes", arg.Bytes)
		}
		fmt.Fprintf(&b, "  #%d %s %s %s %s (%s)\n", i, arg.Name, arg.Kind, arg.DType, arg.IO, size)
	}
	for _, ts := range m.TempSpaces {
		fmt.Fprintf(&b, "  temp space #%d: %s bytes zero_init=%t\n", ts.ArgIdx, ts.Size, ts.ZeroInit)
	}
	if len(m.Grid) > 0 {
		fmt.Fprintf(&b, "  grid(%s) block(%s)\n", strings.Join(m.Grid, ", "), strings.Join(m.Block, ", "))
	}
	return b.String()
}

// WriteManifest encodes a manifest into a writer.
func WriteManifest(w io.Writer, m *Manifest) error {
	if err := msgpack.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrapf(err, "cannot encode manifest of %s", m.Name)
	}
	return nil
}

// ReadManifest decodes a manifest from a reader.
func ReadManifest(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	if err := msgpack.NewDecoder(r).Decode(m); err != nil {
		return nil, errors.Wrap(err, "cannot decode manifest")
	}
	if m.Schema != manifestSchemaVersion {
		return nil, errors.Errorf("manifest %s: unsupported schema version %d (want %d)", m.Name, m.Schema, manifestSchemaVersion)
	}
	return m, nil
}
