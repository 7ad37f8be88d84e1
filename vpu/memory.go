package vpu

// MemoryUsage itemises the CMX bytes one workload needs. Fields are
// aligned to the device CMX word unless named otherwise; each is
// independently queryable and Total folds in the per-device runtime
// overhead when requested.
type MemoryUsage struct {
	Input0B     uint // first activation
	Input1B     uint // weights + weight table; zero for weight-free operations
	Input1ActB  uint // second activation (ELTWISE only)
	OutputB     uint // output, zero when written in place
	OverheadB   uint // per-invocation runtime scratch
	TotalCMXB   uint
	Input0RawB  uint // unaligned sizes kept for diagnostics
	OutputRawB  uint
}

// weightTableBytesPerChannel is the fixed per-output-channel entry the
// hardware reads next to the weights.
const weightTableBytesPerChannel = 16

// MemoryCalculator prices workload footprints against one rules
// registry. The layer-level calculator suppresses the runtime overhead
// term, which only exists per DPU invocation.
type MemoryCalculator struct {
	rules            *RulesRegistry
	suppressOverhead bool

	// InplaceOutput enables the in-place ELTWISE write optimisation.
	// Off by default; only same-width ELTWISE qualifies.
	InplaceOutput bool
}

// NewMemoryCalculator prices single-DPU workloads.
func NewMemoryCalculator() *MemoryCalculator {
	return &MemoryCalculator{rules: WorkloadRules()}
}

// NewLayerMemoryCalculator prices layers before splitting: relaxed rules
// and no per-invocation overhead.
func NewLayerMemoryCalculator() *MemoryCalculator {
	return &MemoryCalculator{rules: LayerRules(), suppressOverhead: true}
}

// AlignUp rounds v up to the next multiple of align.
func AlignUp(v, align uint) uint {
	if align == 0 {
		return v
	}
	return ceilDiv(v, align) * align
}

func alignTo(bytes, word uint) uint {
	return AlignUp(bytes, word)
}

// Compute itemises the workload's CMX demand. Unknown devices yield a
// zero report; the sanitizer rejects those before memory is consulted.
func (m *MemoryCalculator) Compute(w *DPUWorkload) MemoryUsage {
	r, ok := m.rules.RulesFor(w.Device)
	if !ok {
		return MemoryUsage{}
	}
	word := r.CMXWordB

	var u MemoryUsage
	in0 := w.Input0()
	u.Input0RawB = in0.SizeBytes()
	u.Input0B = alignTo(u.Input0RawB, word)

	u.Input1B = alignTo(m.weightsBytes(w), word)
	if w.Op == OpEltwise && len(w.Inputs) > 1 {
		u.Input1ActB = alignTo(w.Inputs[1].SizeBytes(), word)
	}

	out := w.Output0()
	u.OutputRawB = out.SizeBytes()
	if m.inplaceEligible(w) {
		u.OutputB = 0
	} else {
		u.OutputB = alignTo(u.OutputRawB, word)
	}

	if !m.suppressOverhead {
		u.OverheadB = r.CMXOverheadB
	}
	u.TotalCMXB = u.Input0B + u.Input1B + u.Input1ActB + u.OutputB + u.OverheadB
	return u
}

// weightsBytes is the unaligned weights footprint, including the
// per-output-channel weight table.
func (m *MemoryCalculator) weightsBytes(w *DPUWorkload) uint {
	in := w.Input0()
	out := w.Output0()
	elemB := DataTypeBytes(in.DataType())
	table := out.Channels() * weightTableBytesPerChannel

	switch w.Op {
	case OpConvolution:
		return w.KernelH*w.KernelW*in.Channels()*out.Channels()*elemB + table
	case OpCMConvolution:
		// Channel-major weights are padded up to the alignment on the
		// input-channel axis.
		r, _ := m.rules.RulesFor(w.Device)
		cin := alignTo(in.Channels(), r.ChannelAlignment(w.Op))
		return w.KernelH*w.KernelW*cin*out.Channels()*elemB + table
	case OpDWConvolution:
		return w.KernelH*w.KernelW*out.Channels()*elemB + table
	case OpMaxPool, OpAvePool, OpEltwise:
		return 0
	default:
		return 0
	}
}

func (m *MemoryCalculator) inplaceEligible(w *DPUWorkload) bool {
	if !m.InplaceOutput || w.Op != OpEltwise {
		return false
	}
	in := w.Input0()
	out := w.Output0()
	return DataTypeBytes(in.DataType()) == DataTypeBytes(out.DataType())
}

// FitsCMX reports whether the workload's total demand fits the device.
func (m *MemoryCalculator) FitsCMX(w *DPUWorkload) (MemoryUsage, bool) {
	u := m.Compute(w)
	r, ok := m.rules.RulesFor(w.Device)
	if !ok {
		return u, false
	}
	return u, u.TotalCMXB <= r.CMXSizeB
}
