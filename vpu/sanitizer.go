package vpu

import "github.com/sirupsen/logrus"

// Sanitizer normalises a workload into the canonical form the estimators
// were trained on, then validates it against a rules registry. It never
// returns a Go error for workload problems: every outcome is a
// SanityReport. CheckAndSanitize is idempotent.
type Sanitizer struct {
	rules  *RulesRegistry
	memory *MemoryCalculator

	// layerMode switches the failure code to the layer-level taxonomy
	// and skips the checks that only hold post-splitting.
	layerMode bool
}

// NewSanitizer validates single-DPU workloads against the strict rules.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{rules: WorkloadRules(), memory: NewMemoryCalculator()}
}

// NewLayerSanitizer validates unsplit layers against the relaxed rules.
func NewLayerSanitizer() *Sanitizer {
	return &Sanitizer{rules: LayerRules(), memory: NewLayerMemoryCalculator(), layerMode: true}
}

func (s *Sanitizer) configCode() CyclesInterfaceType {
	if s.layerMode {
		return ErrorInvalidLayerConfiguration
	}
	return ErrorInvalidInputConfiguration
}

// CheckAndSanitize rewrites the workload into canonical form and runs
// the validity checks in order, stopping at the first failure.
func (s *Sanitizer) CheckAndSanitize(w *DPUWorkload) *SanityReport {
	report := NewSanityReport()

	if !KnownDevice(w.Device) {
		report.Fail(ErrorInvalidInputDevice, "device %s has no calibration entry", w.Device)
		return report
	}
	r, _ := s.rules.RulesFor(w.Device)

	s.sanitize(w, r)

	cons, ok := r.OperationFor(w.Op)
	if !ok {
		report.Fail(ErrorInvalidInputOperation, "operation %s is not available on %s", w.Op, w.Device)
		return report
	}

	for _, check := range []func(*DPUWorkload, *DeviceRules, OperationConstraints, *SanityReport) bool{
		s.checkTensorPresence,
		s.checkModesAndLayouts,
		s.checkDataTypes,
		s.checkChannels,
		s.checkGeometry,
		s.checkStrategy,
		s.checkSparsity,
		s.checkMemory,
	} {
		if !check(w, r, cons, report) {
			logrus.Debugf("sanitizer: %s for %s", report.Text(), w)
			return report
		}
	}
	return report
}

// sanitize applies the canonical rewrites. Both 8-bit integer types
// collapse to INT8 and both 16-bit float types to FLOAT16, so the
// estimator sees one class per element width. On permutation-layout
// devices the legacy layout names collapse to their permutation
// equivalents.
func (s *Sanitizer) sanitize(w *DPUWorkload, r *DeviceRules) {
	for i := range w.Inputs {
		w.Inputs[i] = canonicalDType(w.Inputs[i])
	}
	for i := range w.Outputs {
		w.Outputs[i] = canonicalDType(w.Outputs[i])
	}

	if r.SupportsLayout(LayoutZXY) { // permutation-layout device
		for i := range w.Inputs {
			w.Inputs[i] = canonicalLayout(w.Inputs[i])
		}
		for i := range w.Outputs {
			w.Outputs[i] = canonicalLayout(w.Outputs[i])
		}
	}

	if w.OutputWriteTiles == 0 {
		w.OutputWriteTiles = 1
	}
}

func canonicalDType(t VPUTensor) VPUTensor {
	switch t.DataType() {
	case TypeUInt8:
		out, _ := t.WithDataType(TypeInt8)
		return out
	case TypeBFloat16:
		out, _ := t.WithDataType(TypeFloat16)
		return out
	default:
		return t
	}
}

func canonicalLayout(t VPUTensor) VPUTensor {
	switch t.Layout() {
	case LayoutZMajor:
		out, _ := t.WithLayout(LayoutZXY)
		return out
	case LayoutCMajor:
		out, _ := t.WithLayout(LayoutXYZ)
		return out
	default:
		return t
	}
}

func (s *Sanitizer) checkTensorPresence(w *DPUWorkload, _ *DeviceRules, cons OperationConstraints, rep *SanityReport) bool {
	wantInputs := 1
	if cons.Elementwise {
		wantInputs = 2
	}
	if len(w.Inputs) != wantInputs || len(w.Outputs) != 1 {
		rep.Fail(s.configCode(), "%s expects %d input(s) and 1 output, got %d/%d",
			w.Op, wantInputs, len(w.Inputs), len(w.Outputs))
		return false
	}
	for _, t := range append(append([]VPUTensor{}, w.Inputs...), w.Outputs...) {
		if t.NumElements() == 0 {
			rep.Fail(s.configCode(), "tensor %s has a zero dimension", t)
			return false
		}
	}
	return true
}

func (s *Sanitizer) checkModesAndLayouts(w *DPUWorkload, r *DeviceRules, _ OperationConstraints, rep *SanityReport) bool {
	if !s.layerMode && !r.SupportsExecutionMode(w.ExecutionMode) {
		rep.Fail(s.configCode(), "execution mode %s unsupported on %s", w.ExecutionMode, w.Device)
		return false
	}
	for _, t := range append(append([]VPUTensor{}, w.Inputs...), w.Outputs...) {
		if !r.SupportsLayout(t.Layout()) {
			rep.Fail(s.configCode(), "layout %s unsupported on %s", t.Layout(), w.Device)
			return false
		}
	}
	for _, sw := range w.InputSwizzling {
		if !r.SupportsSwizzling(sw) {
			rep.Fail(s.configCode(), "input swizzling %s unsupported on %s", sw, w.Device)
			return false
		}
	}
	if !r.SupportsSwizzling(w.OutputSwizzling) {
		rep.Fail(s.configCode(), "output swizzling %s unsupported on %s", w.OutputSwizzling, w.Device)
		return false
	}
	return true
}

func (s *Sanitizer) checkDataTypes(w *DPUWorkload, r *DeviceRules, cons OperationConstraints, rep *SanityReport) bool {
	for _, t := range w.Inputs {
		if !r.SupportsDataType(t.DataType()) {
			rep.Fail(s.configCode(), "input data type %s unsupported on %s", t.DataType(), w.Device)
			return false
		}
	}
	if !r.SupportsDataType(w.Output0().DataType()) {
		rep.Fail(s.configCode(), "output data type %s unsupported on %s", w.Output0().DataType(), w.Device)
		return false
	}
	if cons.Elementwise {
		a, b := w.Inputs[0], w.Inputs[1]
		if a.Shape() != b.Shape() || a.DataType() != b.DataType() || a.Layout() != b.Layout() {
			rep.Fail(s.configCode(), "elementwise operands differ: %s vs %s", a, b)
			return false
		}
	}
	return true
}

func (s *Sanitizer) checkChannels(w *DPUWorkload, r *DeviceRules, cons OperationConstraints, rep *SanityReport) bool {
	in := w.Input0().Channels()
	out := w.Output0().Channels()

	if !cons.InputChannels.Contains(in) {
		rep.Fail(s.configCode(), "input channels %d outside [%d, %d] for %s",
			in, cons.InputChannels.Min, cons.InputChannels.Max, w.Op)
		return false
	}
	if !cons.OutputChannels.Contains(out) {
		rep.Fail(s.configCode(), "output channels %d outside [%d, %d] for %s",
			out, cons.OutputChannels.Min, cons.OutputChannels.Max, w.Op)
		return false
	}
	if cons.RequireChannelAlignment {
		align := r.ChannelAlignment(w.Op)
		if out%align != 0 {
			rep.Fail(s.configCode(), "output channels %d not a multiple of %d", out, align)
			return false
		}
		if w.Op == OpConvolution && in%align != 0 {
			rep.Fail(s.configCode(), "input channels %d not a multiple of %d", in, align)
			return false
		}
	}
	if cons.EqualInOutChannels && in != out {
		rep.Fail(s.configCode(), "%s requires equal input/output channels, got %d/%d", w.Op, in, out)
		return false
	}
	return true
}

func (s *Sanitizer) checkGeometry(w *DPUWorkload, _ *DeviceRules, cons OperationConstraints, rep *SanityReport) bool {
	if !cons.Kernel.Contains(w.KernelH) || !cons.Kernel.Contains(w.KernelW) {
		rep.Fail(s.configCode(), "kernel %dx%d outside [%d, %d]", w.KernelH, w.KernelW, cons.Kernel.Min, cons.Kernel.Max)
		return false
	}
	if !cons.Stride.Contains(w.StrideH) || !cons.Stride.Contains(w.StrideW) {
		rep.Fail(s.configCode(), "stride %dx%d outside [%d, %d]", w.StrideH, w.StrideW, cons.Stride.Min, cons.Stride.Max)
		return false
	}
	if w.PadTop > cons.MaxPadFor(w.KernelH) || w.PadBottom > cons.MaxPadFor(w.KernelH) ||
		w.PadLeft > cons.MaxPadFor(w.KernelW) || w.PadRight > cons.MaxPadFor(w.KernelW) {
		rep.Fail(s.configCode(), "padding %d/%d/%d/%d too large for kernel %dx%d",
			w.PadTop, w.PadBottom, w.PadLeft, w.PadRight, w.KernelH, w.KernelW)
		return false
	}

	in := w.Input0()
	out := w.Output0()
	wantH := OutputSpatialDim(in.Height(), w.KernelH, w.PadTop, w.PadBottom, w.StrideH)
	wantW := OutputSpatialDim(in.Width(), w.KernelW, w.PadLeft, w.PadRight, w.StrideW)
	if out.Height() != wantH || out.Width() != wantW {
		rep.Fail(s.configCode(), "output %dx%d inconsistent with input %dx%d k=%dx%d s=%dx%d p=%d/%d/%d/%d (want %dx%d)",
			out.Width(), out.Height(), in.Width(), in.Height(),
			w.KernelH, w.KernelW, w.StrideH, w.StrideW,
			w.PadTop, w.PadBottom, w.PadLeft, w.PadRight, wantW, wantH)
		return false
	}
	return true
}

func (s *Sanitizer) checkStrategy(w *DPUWorkload, r *DeviceRules, cons OperationConstraints, rep *SanityReport) bool {
	if !r.SupportsISI(w.ISI) {
		rep.Fail(s.configCode(), "ISI strategy %s unsupported on %s", w.ISI, w.Device)
		return false
	}
	if cons.ValidISI != nil && !cons.ValidISI(w.ISI, w) {
		rep.Fail(s.configCode(), "ISI strategy %s invalid for this workload (output write tiles %d)", w.ISI, w.OutputWriteTiles)
		return false
	}
	if !s.layerMode && !r.OutputWriteTiles.Contains(w.OutputWriteTiles) {
		rep.Fail(s.configCode(), "output write tiles %d outside [%d, %d]",
			w.OutputWriteTiles, r.OutputWriteTiles.Min, r.OutputWriteTiles.Max)
		return false
	}
	return true
}

func (s *Sanitizer) checkSparsity(w *DPUWorkload, _ *DeviceRules, cons OperationConstraints, rep *SanityReport) bool {
	if w.ActSparsity < 0 || w.ActSparsity > 1 || w.WeightSparsity < 0 || w.WeightSparsity > 1 {
		rep.Fail(s.configCode(), "sparsity ratios must lie in [0,1], got act=%f weight=%f", w.ActSparsity, w.WeightSparsity)
		return false
	}
	if !w.WeightSparsityEnabled && w.WeightSparsity != 0 {
		rep.Fail(s.configCode(), "weight sparsity %f set while weight sparsity is disabled", w.WeightSparsity)
		return false
	}
	if w.WeightSparsityEnabled && !cons.AllowWeightSparsity {
		rep.Fail(s.configCode(), "weight sparsity unsupported for %s on %s", w.Op, w.Device)
		return false
	}
	actSparse := w.ActSparsity > 0
	for _, t := range w.Inputs {
		actSparse = actSparse || t.Sparsity()
	}
	if actSparse && !cons.AllowActSparsity {
		rep.Fail(s.configCode(), "activation sparsity unsupported for %s on %s", w.Op, w.Device)
		return false
	}
	return true
}

func (s *Sanitizer) checkMemory(w *DPUWorkload, _ *DeviceRules, _ OperationConstraints, rep *SanityReport) bool {
	if u, fits := s.memory.FitsCMX(w); !fits {
		rep.Fail(ErrorInputTooBig, "CMX demand %d bytes exceeds capacity", u.TotalCMXB)
		return false
	}
	return true
}
