package vpu

// Analytical DPU cycle model. Independent of the learned estimator; used
// as the fallback path and as the ideal-cycles denominator for
// overhead-style post-processors.

// macOpsPerOutput is the MAC count contributing to one output element.
func macOpsPerOutput(w *DPUWorkload) uint64 {
	switch w.Op {
	case OpConvolution, OpCMConvolution:
		return uint64(w.KernelH) * uint64(w.KernelW) * uint64(w.Input0().Channels())
	case OpDWConvolution, OpMaxPool, OpAvePool:
		return uint64(w.KernelH) * uint64(w.KernelW)
	case OpEltwise:
		return 1
	default:
		return 1
	}
}

// DenseMACs counts the multiply-accumulates with no sparsity assumed.
func DenseMACs(w *DPUWorkload) uint64 {
	out := w.Output0()
	return uint64(out.NumElements()) * macOpsPerOutput(w)
}

// effectiveWeightSparsity is the sparsity the hardware can actually
// skip: weight sparsity when enabled, nothing otherwise.
func effectiveWeightSparsity(w *DPUWorkload) float64 {
	if w.WeightSparsityEnabled {
		return float64(w.WeightSparsity)
	}
	return 0
}

// SparseMACs counts the MACs remaining after sparsity skipping.
func SparseMACs(w *DPUWorkload) uint64 {
	dense := float64(DenseMACs(w))
	return uint64(dense * (1 - effectiveWeightSparsity(w)))
}

// DPUEfficiencyIdealCycles is the lower bound with every MAC busy every
// cycle and no sparsity assumed.
func DPUEfficiencyIdealCycles(w *DPUWorkload) CyclesInterfaceType {
	calib, ok := DeviceInfo(w.Device)
	if !ok || calib.MACs == 0 {
		return ErrorInvalidInputDevice
	}
	cycles := ceilDiv64(DenseMACs(w), uint64(calib.MACs))
	return saturate64(cycles)
}

// DPUPowerIdealCycles is the ideal-cycle count for power purposes: the
// MACs that actually fire, after sparsity skipping. Never exceeds
// DPUEfficiencyIdealCycles.
func DPUPowerIdealCycles(w *DPUWorkload) CyclesInterfaceType {
	calib, ok := DeviceInfo(w.Device)
	if !ok || calib.MACs == 0 {
		return ErrorInvalidInputDevice
	}
	cycles := ceilDiv64(SparseMACs(w), uint64(calib.MACs))
	return saturate64(cycles)
}

// mpeGrid is the output-tile footprint of one execution mode as
// (width, height, channels). Output dimensions round up to the grid, so
// ragged edges still occupy whole grid passes.
func mpeGrid(m ExecutionMode) (gw, gh, gc uint) {
	switch m {
	case ModeVector:
		return 16, 1, 16
	case ModeVectorFP16:
		return 16, 1, 4
	case ModeMatrix:
		return 4, 4, 16
	case ModeCuboid16x16:
		return 16, 16, 16
	case ModeCuboid8x16:
		return 8, 16, 16
	case ModeCuboid4x16:
		return 4, 16, 16
	default:
		return 1, 1, 16
	}
}

// DPUTheoreticalCycles refines the efficiency ideal with the effects the
// hardware cannot hide: grid-padded output tiles, halved MAC throughput
// on float data, and the CMX read-port bandwidth floor.
func DPUTheoreticalCycles(w *DPUWorkload) CyclesInterfaceType {
	calib, ok := DeviceInfo(w.Device)
	if !ok || calib.MACs == 0 {
		return ErrorInvalidInputDevice
	}

	out := w.Output0()
	gw, gh, gc := mpeGrid(w.ExecutionMode)
	padW := ceilDiv(out.Width(), gw) * gw
	padH := ceilDiv(out.Height(), gh) * gh
	padC := ceilDiv(out.Channels(), gc) * gc

	ops := uint64(padW) * uint64(padH) * uint64(padC) * uint64(out.Batches()) * macOpsPerOutput(w)
	compute := ceilDiv64(ops, uint64(calib.MACs))

	if w.Input0().IsFloat() {
		// Float MACs run at half rate on current generations.
		compute *= 2
	}

	// CMX read ports bound how fast operands stream into the array.
	readBytes := uint64(w.Input0().SizeBytes())
	if len(w.Inputs) > 1 {
		readBytes += uint64(w.Inputs[1].SizeBytes())
	}
	bandwidth := ceilDiv64(readBytes, uint64(calib.CMXWordB*calib.CMXReadPorts))

	if bandwidth > compute {
		compute = bandwidth
	}
	return saturate64(compute)
}

func ceilDiv64(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func saturate64(v uint64) CyclesInterfaceType {
	if v > uint64(CyclesErrorBand) {
		return ErrorSumTooLarge
	}
	return CyclesInterfaceType(v)
}
