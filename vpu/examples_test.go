package vpu

import "fmt"

// The analytical path needs no estimator file: construct an empty cost
// model and price a convolution directly.
func ExampleVPUCostModel_DPU() {
	model, err := NewVPUCostModel(CostModelConfig{})
	if err != nil {
		panic(err)
	}

	in := NewVPUTensor(56, 56, 64, 1, TypeUInt8, LayoutZMajor, false)
	out := NewVPUTensor(56, 56, 64, 1, TypeUInt8, LayoutZMajor, false)
	w := DPUWorkload{
		Device:        VPUDevice27,
		Op:            OpConvolution,
		Inputs:        []VPUTensor{in},
		Outputs:       []VPUTensor{out},
		KernelH:       3, KernelW: 3,
		StrideH: 1, StrideW: 1,
		PadTop: 1, PadBottom: 1, PadLeft: 1, PadRight: 1,
		ExecutionMode: ModeCuboid16x16,
		ISI:           ISIClustering,
	}

	cycles := model.DPU(w)
	if IsErrorCode(cycles) {
		fmt.Println(CyclesCodeName(cycles))
		return
	}
	fmt.Println(cycles)
	// Output: 73728
}

func ExampleCostAdder() {
	fmt.Println(CostAdder(1000, 2000))
	fmt.Println(CyclesCodeName(CostAdder(ErrorInputTooBig, 2000)))
	// Output:
	// 3000
	// ERROR_INPUT_TOO_BIG
}
