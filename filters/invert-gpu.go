package filters

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/invertify"
)

const invertTransform = `
fn transform(c: vec4<f32>) -> vec4<f32> {
    return vec4<f32>(1.0 - c.r, 1.0 - c.g, 1.0 - c.b, c.a);
}
`

// InvertFilterGPU inverts color samples using GPU compute. Alpha is kept.
type InvertFilterGPU struct {
	PointFilterGPU
}

// NewInvertGPU creates a GPU-accelerated color inversion filter.
func NewInvertGPU(device *wgpu.Device, queue *wgpu.Queue) (*InvertFilterGPU, error) {
	f := &InvertFilterGPU{}
	if err := f.Init(device, queue, invertTransform); err != nil {
		return nil, err
	}
	return f, nil
}

// GPUInverter is an [Inverter] that owns its WebGPU device.
type GPUInverter struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	filter   *InvertFilterGPU
}

var _ Inverter = (*GPUInverter)(nil)

var (
	ErrNoGPU = errors.New("no GPU adapter available")
	// ErrGridTooLarge is returned for grids larger than one storage buffer
	// binding of a default WebGPU device.
	ErrGridTooLarge = errors.New("grid exceeds gpu storage binding size")
)

// MaxGPUGridBytes is the default WebGPU maxStorageBufferBindingSize.
const MaxGPUGridBytes = 128 << 20

// NewGPUInverter acquires a low power adapter and compiles the invert shader.
// It returns an error wrapping [ErrNoGPU] when WebGPU is unavailable.
func NewGPUInverter() (*GPUInverter, error) {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, ErrNoGPU
	}
	inv := &GPUInverter{instance: instance}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceLowPower,
	})
	if err != nil {
		inv.Close()
		return nil, fmt.Errorf("%w: %w", ErrNoGPU, err)
	}
	inv.adapter = adapter
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		inv.Close()
		return nil, fmt.Errorf("%w: request device: %w", ErrNoGPU, err)
	}
	inv.device = device
	inv.queue = device.GetQueue()
	inv.filter, err = NewInvertGPU(inv.device, inv.queue)
	if err != nil {
		inv.Close()
		return nil, err
	}
	return inv, nil
}

// Invert implements [Inverter].
func (inv *GPUInverter) Invert(g *invertify.PixelGrid) (*invertify.PixelGrid, error) {
	if inv.filter == nil {
		return nil, errNotInitialized
	}
	if len(g.Pix) > MaxGPUGridBytes {
		return nil, fmt.Errorf("%w: %dx%d", ErrGridTooLarge, g.Width, g.Height)
	}
	out, err := inv.filter.Process(g)
	if err != nil {
		return nil, fmt.Errorf("gpu invert: %w", err)
	}
	return out, nil
}

// Close releases the shader resources and the device.
func (inv *GPUInverter) Close() {
	if inv.filter != nil {
		inv.filter.Cleanup()
		inv.filter = nil
	}
	if inv.queue != nil {
		inv.queue.Release()
		inv.queue = nil
	}
	if inv.device != nil {
		inv.device.Release()
		inv.device = nil
	}
	if inv.adapter != nil {
		inv.adapter.Release()
		inv.adapter = nil
	}
	if inv.instance != nil {
		inv.instance.Release()
		inv.instance = nil
	}
}
