package filters

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/invertify"
)

//go:embed point-filter-gpu.wgsl
var baseShaderWGSL string

var errNotInitialized = errors.New("gpu filter not initialized")

// PointFilterGPU runs a WGSL per-pixel transform over [invertify.PixelGrid]
// samples. The transform is spliced into point-filter-gpu.wgsl by Init.
type PointFilterGPU struct {
	mu       sync.Mutex
	device   *wgpu.Device
	queue    *wgpu.Queue
	module   *wgpu.ShaderModule
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout
	uniforms *wgpu.Buffer
	// Storage buffers are grown, never shrunk. capacity is their byte size.
	in, out  *wgpu.Buffer
	capacity uint64
}

// Init compiles the shader with transformCode, which must define
// fn transform(c: vec4<f32>) -> vec4<f32> over straight alpha samples in 0..1.
func (f *PointFilterGPU) Init(device *wgpu.Device, queue *wgpu.Queue, transformCode string) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.device, f.queue = device, queue
	defer func() {
		if err != nil {
			f.release()
		}
	}()

	code := strings.Replace(baseShaderWGSL, "// TRANSFORM_PLACEHOLDER", transformCode, 1)
	f.module, err = device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return fmt.Errorf("shader module: %w", err)
	}
	f.pipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Compute: wgpu.ProgrammableStageDescriptor{Module: f.module, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("compute pipeline: %w", err)
	}
	f.layout = f.pipeline.GetBindGroupLayout(0)
	f.uniforms, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  4 * 4, // width, height and two spare f32.
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("uniform buffer: %w", err)
	}
	return nil
}

// Process runs the shader over g and returns a new grid. g is not modified.
func (f *PointFilterGPU) Process(g *invertify.PixelGrid) (*invertify.PixelGrid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pipeline == nil {
		return nil, errNotInitialized
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	size := uint64(len(g.Pix))
	if err := f.reserve(size); err != nil {
		return nil, err
	}
	f.queue.WriteBuffer(f.in, 0, g.Pix)
	f.queue.WriteBuffer(f.uniforms, 0, wgpu.ToBytes([]float32{float32(g.Width), float32(g.Height), 0, 0}))
	if err := f.dispatch(g.Width, g.Height); err != nil {
		return nil, err
	}
	out, err := invertify.NewPixelGrid(g.Width, g.Height)
	if err != nil {
		return nil, err
	}
	if err := f.readback(out.Pix); err != nil {
		return nil, err
	}
	return out, nil
}

// reserve makes the storage buffers hold at least size bytes.
func (f *PointFilterGPU) reserve(size uint64) (err error) {
	if size <= f.capacity {
		return nil
	}
	f.releaseStorage()
	f.in, err = f.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("input buffer of %d bytes: %w", size, err)
	}
	f.out, err = f.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		f.releaseStorage()
		return fmt.Errorf("output buffer of %d bytes: %w", size, err)
	}
	f.capacity = size
	return nil
}

func (f *PointFilterGPU) dispatch(width, height int) error {
	group, err := f.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: f.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: f.uniforms, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: f.in, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: f.out, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("bind group: %w", err)
	}
	defer group.Release()

	enc, err := f.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("command encoder: %w", err)
	}
	defer enc.Release()
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(f.pipeline)
	pass.SetBindGroup(0, group, nil)
	// Workgroups are 8x8, see point-filter-gpu.wgsl.
	pass.DispatchWorkgroups(uint32((width+7)/8), uint32((height+7)/8), 1)
	pass.End()
	pass.Release()

	cmd, err := enc.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	f.queue.Submit(cmd)
	return nil
}

// readback copies the first len(dst) bytes of the output buffer into dst.
func (f *PointFilterGPU) readback(dst []byte) error {
	size := uint64(len(dst))
	staging, err := f.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("staging buffer: %w", err)
	}
	defer staging.Release()

	enc, err := f.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("readback encoder: %w", err)
	}
	enc.CopyBufferToBuffer(f.out, 0, staging, 0, size)
	cmd, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return fmt.Errorf("readback finish: %w", err)
	}
	f.queue.Submit(cmd)
	f.device.Poll(true, nil)

	mapped := make(chan wgpu.BufferMapAsyncStatus, 1)
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		mapped <- status
	})
	f.device.Poll(true, nil)
	if status := <-mapped; status != wgpu.BufferMapAsyncStatusSuccess {
		return fmt.Errorf("map staging buffer: %v", status)
	}
	copy(dst, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return nil
}

func (f *PointFilterGPU) releaseStorage() {
	if f.in != nil {
		f.in.Release()
		f.in = nil
	}
	if f.out != nil {
		f.out.Release()
		f.out = nil
	}
	f.capacity = 0
}

func (f *PointFilterGPU) release() {
	f.releaseStorage()
	if f.uniforms != nil {
		f.uniforms.Release()
		f.uniforms = nil
	}
	if f.layout != nil {
		f.layout.Release()
		f.layout = nil
	}
	if f.pipeline != nil {
		f.pipeline.Release()
		f.pipeline = nil
	}
	if f.module != nil {
		f.module.Release()
		f.module = nil
	}
}

// Cleanup releases the shader and buffers. The device and queue given to
// Init belong to the caller.
func (f *PointFilterGPU) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.release()
}
