package vpu

// Workload fixtures shared across the package tests.

// conv3x3Workload is a 3×3 stride-1 convolution on VPU_2_7:
// 56×56×64 uint8 in, 56×56×64 out, pad 1 all around.
func conv3x3Workload() DPUWorkload {
	in := NewVPUTensor(56, 56, 64, 1, TypeUInt8, LayoutZMajor, false)
	out := NewVPUTensor(56, 56, 64, 1, TypeUInt8, LayoutZMajor, false)
	return DPUWorkload{
		Device:           VPUDevice27,
		Op:               OpConvolution,
		Inputs:           []VPUTensor{in},
		Outputs:          []VPUTensor{out},
		KernelH:          3,
		KernelW:          3,
		StrideH:          1,
		StrideW:          1,
		PadTop:           1,
		PadBottom:        1,
		PadLeft:          1,
		PadRight:         1,
		ExecutionMode:    ModeCuboid16x16,
		OutputWriteTiles: 1,
		ISI:              ISIClustering,
	}
}

// eltwiseWorkload is a float16 elementwise add on VPU_2_7 over
// 128×128×16 operands.
func eltwiseWorkload() DPUWorkload {
	a := NewVPUTensor(128, 128, 16, 1, TypeFloat16, LayoutZXY, false)
	b := NewVPUTensor(128, 128, 16, 1, TypeFloat16, LayoutZXY, false)
	out := NewVPUTensor(128, 128, 16, 1, TypeFloat16, LayoutZXY, false)
	return DPUWorkload{
		Device:           VPUDevice27,
		Op:               OpEltwise,
		Inputs:           []VPUTensor{a, b},
		Outputs:          []VPUTensor{out},
		KernelH:          1,
		KernelW:          1,
		StrideH:          1,
		StrideW:          1,
		ExecutionMode:    ModeCuboid16x16,
		Activation:       ActAdd,
		OutputWriteTiles: 1,
		ISI:              ISIClustering,
	}
}

// oversizedWorkload cannot fit any device CMX: a 1024×1024×1024 input.
func oversizedWorkload() DPUWorkload {
	in := NewVPUTensor(1024, 1024, 1024, 1, TypeUInt8, LayoutZXY, false)
	out := NewVPUTensor(1024, 1024, 16, 1, TypeUInt8, LayoutZXY, false)
	return DPUWorkload{
		Device:           VPUDevice27,
		Op:               OpConvolution,
		Inputs:           []VPUTensor{in},
		Outputs:          []VPUTensor{out},
		KernelH:          1,
		KernelW:          1,
		StrideH:          1,
		StrideW:          1,
		ExecutionMode:    ModeCuboid16x16,
		OutputWriteTiles: 1,
		ISI:              ISIClustering,
	}
}
