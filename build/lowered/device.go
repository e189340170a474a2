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

import "fmt"

// DeviceAPI is the execution target of a function.
type DeviceAPI int

const (
	// UnknownAPI is used when the target has not been decided yet.
	UnknownAPI DeviceAPI = iota
	// Host functions run on the CPU.
	Host
	// CUDA kernels run on NVIDIA GPUs.
	CUDA
	// HIP kernels run on AMD GPUs.
	HIP
)

// IsGPU returns true if functions for the target are GPU kernels.
func (api DeviceAPI) IsGPU() bool {
	return api == CUDA || api == HIP
}

func (api DeviceAPI) String() string {
	switch api {
	case UnknownAPI:
		return "unknown"
	case Host:
		return "host"
	case CUDA:
		return "cuda"
	case HIP:
		return "hip"
	}
	return fmt.Sprintf("device_api(%d)", int(api))
}

// ParseDeviceAPI returns the device API given its name.
func ParseDeviceAPI(s string) (DeviceAPI, bool) {
	for _, api := range []DeviceAPI{UnknownAPI, Host, CUDA, HIP} {
		if api.String() == s {
			return api, true
		}
	}
	return UnknownAPI, false
}

type (
	// Device is the target of a finalized function.
	// Launch shapes are only available from a GPUDevice.
	Device interface {
		API() DeviceAPI
		device()
	}

	// HostDevice is the target of a function running on the CPU.
	HostDevice struct{}

	// GPUDevice is the target of a GPU kernel.
	GPUDevice struct {
		Target DeviceAPI
		Axis   CudaAxisInfo
	}

	// UnknownDevice is the target of a function for which no device has been chosen.
	UnknownDevice struct{}
)

var (
	_ Device = HostDevice{}
	_ Device = GPUDevice{}
	_ Device = UnknownDevice{}
)

func (HostDevice) device() {}

// API returns Host.
func (HostDevice) API() DeviceAPI { return Host }

func (GPUDevice) device() {}

// API returns the GPU API of the kernel.
func (d GPUDevice) API() DeviceAPI { return d.Target }

func (UnknownDevice) device() {}

// API returns UnknownAPI.
func (UnknownDevice) API() DeviceAPI { return UnknownAPI }
