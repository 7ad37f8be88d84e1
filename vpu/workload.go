package vpu

import "fmt"

// DPUWorkload is one DPU invocation, the smallest unit of work the cost
// model prices. It is a plain value type: copy freely, compare by field.
type DPUWorkload struct {
	Device VPUDevice
	Op     Operation

	// Inputs holds the activation tensor and, for ELTWISE, the second
	// operand. Weights are implicit (described by kernel/channel fields)
	// and accounted by the memory calculator.
	Inputs  []VPUTensor
	Outputs []VPUTensor

	KernelH uint
	KernelW uint
	StrideH uint
	StrideW uint

	PadTop    uint
	PadBottom uint
	PadLeft   uint
	PadRight  uint

	ExecutionMode ExecutionMode
	Activation    ActivationFunction

	// ActSparsity and WeightSparsity are occupancy ratios in [0,1].
	// WeightSparsity must be zero unless WeightSparsityEnabled.
	ActSparsity           float32
	WeightSparsity        float32
	WeightSparsityEnabled bool

	InputSwizzling  [2]Swizzling
	OutputSwizzling Swizzling

	// OutputWriteTiles is how many tiles the output is broadcast to.
	OutputWriteTiles uint

	// Offsets are byte offsets of this workload within the parent
	// layer's tensors, set by the tiler.
	Offsets [4]uint

	ISI ISIStrategy
}

// Clone deep-copies the workload, detaching the tensor slices so the
// copy can be rewritten without touching the original.
func (w DPUWorkload) Clone() DPUWorkload {
	w.Inputs = append([]VPUTensor(nil), w.Inputs...)
	w.Outputs = append([]VPUTensor(nil), w.Outputs...)
	return w
}

// Input0 returns the activation tensor, or a zero tensor when absent.
func (w DPUWorkload) Input0() VPUTensor {
	if len(w.Inputs) == 0 {
		return VPUTensor{}
	}
	return w.Inputs[0]
}

// Output0 returns the output tensor, or a zero tensor when absent.
func (w DPUWorkload) Output0() VPUTensor {
	if len(w.Outputs) == 0 {
		return VPUTensor{}
	}
	return w.Outputs[0]
}

func (w DPUWorkload) String() string {
	return fmt.Sprintf("%s %s in=%s out=%s k=%dx%d s=%dx%d p=%d/%d/%d/%d %s isi=%s",
		w.Device, w.Op, w.Input0(), w.Output0(),
		w.KernelH, w.KernelW, w.StrideH, w.StrideW,
		w.PadTop, w.PadBottom, w.PadLeft, w.PadRight,
		w.ExecutionMode, w.ISI)
}

// OutputSpatialDim applies the device's output-size formula along one
// axis: ceil((input + pads - kernel) / stride) + 1.
func OutputSpatialDim(input, kernel, padStart, padEnd, stride uint) uint {
	if stride == 0 {
		return 0
	}
	padded := input + padStart + padEnd
	if padded < kernel {
		return 0
	}
	return ceilDiv(padded-kernel, stride) + 1
}

// InputSpatialDim inverts OutputSpatialDim for a cut with no padding on
// the inner edges: the input extent needed to produce `output` samples.
func InputSpatialDim(output, kernel, padStart, padEnd, stride uint) uint {
	if output == 0 {
		return 0
	}
	span := (output-1)*stride + kernel
	if span < padStart+padEnd {
		return 0
	}
	return span - padStart - padEnd
}

func ceilDiv(a, b uint) uint {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// DMAWorkload is one block transfer between two memory locations.
type DMAWorkload struct {
	Device VPUDevice

	Input  VPUTensor
	Output VPUTensor

	InputLocation  MemoryLocation
	OutputLocation MemoryLocation

	OutputWriteTiles uint

	// Compression and Permute adjust the bandwidth term of the DMA
	// model; both default off.
	Compression bool
	Permute     bool
}

// SHAVEWorkload is one vector-processor kernel invocation, identified by
// kernel name against the loaded kernel table.
type SHAVEWorkload struct {
	Name   string
	Device VPUDevice

	Inputs  []VPUTensor
	Outputs []VPUTensor
}

func (s SHAVEWorkload) String() string {
	return fmt.Sprintf("SHAVE %s on %s (%d in, %d out)", s.Name, s.Device, len(s.Inputs), len(s.Outputs))
}
