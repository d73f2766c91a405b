// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// DeviceHandle provides GPU device access from the host application.
//
// The host (e.g. a gogpu.App) owns the device and passes it in; the
// renderer never creates one. DeviceHandle is an alias for
// gpucontext.DeviceProvider so any provider from that ecosystem plugs
// in directly.
type DeviceHandle = gpucontext.DeviceProvider

// ErrNoHALDevice is returned when a provider does not expose the
// underlying wgpu HAL device and queue.
var ErrNoHALDevice = errors.New("render: provider does not expose HAL device")

// halResources extracts the hal.Device and hal.Queue from a provider.
// The provider must implement HalDevice() any and HalQueue() any
// returning wgpu/hal types, which is how gogpu exposes them.
func halResources(provider any) (hal.Device, hal.Queue, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, nil, ErrNoHALDevice
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALDevice)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALDevice)
	}
	return device, queue, nil
}
