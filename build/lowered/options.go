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

type (
	// Option configures the finalization of a function.
	Option func(*options)

	options struct {
		withGenerated bool
		inferAxis     bool
		device        *DeviceAPI
	}
)

func newOptions(opts []Option) options {
	o := options{
		withGenerated: true,
		inferAxis:     true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// IncludeGeneratedTensors sets whether tensors created by expression generation
// get a buffer cast. Included by default.
func IncludeGeneratedTensors(include bool) Option {
	return func(o *options) {
		o.withGenerated = include
	}
}

// InferAxisInfo sets whether the launch shape of GPU kernels is derived from
// the loops of their body. Enabled by default. When disabled, the launch shape
// of the draft is used as is.
func InferAxisInfo(infer bool) Option {
	return func(o *options) {
		o.inferAxis = infer
	}
}

// OnDevice overrides the device API of the draft.
func OnDevice(api DeviceAPI) Option {
	return func(o *options) {
		o.device = &api
	}
}
