package vpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSanitizer_AcceptsConv3x3 verifies:
// GIVEN the reference 3×3 stride-1 convolution on VPU_2_7
// WHEN it is checked and sanitized
// THEN the report is NO_ERROR and the canonical rewrites applied
// (uint8 → int8, ZMAJOR → ZXY on a permutation-layout device).
func TestSanitizer_AcceptsConv3x3(t *testing.T) {
	w := conv3x3Workload()
	report := NewSanitizer().CheckAndSanitize(&w)

	require.True(t, report.IsUsable(), report.Text())
	assert.Equal(t, NoError, report.Value())
	assert.Equal(t, TypeInt8, w.Input0().DataType())
	assert.Equal(t, LayoutZXY, w.Input0().Layout())
}

// TestSanitizer_Idempotent verifies:
// GIVEN any workload
// WHEN CheckAndSanitize runs twice
// THEN the second run reports the same code over an unchanged workload.
func TestSanitizer_Idempotent(t *testing.T) {
	s := NewSanitizer()
	for _, w := range []DPUWorkload{conv3x3Workload(), eltwiseWorkload(), oversizedWorkload()} {
		first := s.CheckAndSanitize(&w)
		afterFirst := w
		second := s.CheckAndSanitize(&w)

		assert.Equal(t, first.Value(), second.Value())
		assert.Equal(t, afterFirst, w)
	}
}

func TestSanitizer_AcceptsEltwise(t *testing.T) {
	w := eltwiseWorkload()
	report := NewSanitizer().CheckAndSanitize(&w)
	require.True(t, report.IsUsable(), report.Text())
}

// TestSanitizer_CMConvolutionNotOn20 verifies:
// GIVEN a channel-major convolution on VPU_2_0
// WHEN checked
// THEN the report is ERROR_INVALID_INPUT_OPERATION (channel-major
// arrived with 2.7).
func TestSanitizer_CMConvolutionNotOn20(t *testing.T) {
	in := NewVPUTensor(32, 32, 3, 1, TypeUInt8, legacyLayout(), false)
	out := NewVPUTensor(32, 32, 16, 1, TypeUInt8, legacyLayout(), false)
	w := DPUWorkload{
		Device:        VPUDevice20,
		Op:            OpCMConvolution,
		Inputs:        []VPUTensor{in},
		Outputs:       []VPUTensor{out},
		KernelH:       1,
		KernelW:       1,
		StrideH:       1,
		StrideW:       1,
		ExecutionMode: ModeMatrix,
		ISI:           ISIClustering,
	}
	report := NewSanitizer().CheckAndSanitize(&w)
	assert.Equal(t, ErrorInvalidInputOperation, report.Value())
}

// legacyLayout keeps the 2.0 fixtures on a legacy layout.
func legacyLayout() Layout { return LayoutZMajor }

// TestSanitizer_CMXOverflow verifies:
// GIVEN a 1024×1024×1024 input on VPU_2_7
// WHEN checked
// THEN the report is ERROR_INPUT_TOO_BIG.
func TestSanitizer_CMXOverflow(t *testing.T) {
	w := oversizedWorkload()
	report := NewSanitizer().CheckAndSanitize(&w)
	assert.Equal(t, ErrorInputTooBig, report.Value())
}

// TestSanitizer_ChannelAlignment verifies channels below the alignment
// boundary are an invalid configuration.
func TestSanitizer_ChannelAlignment(t *testing.T) {
	w := conv3x3Workload()
	w.Outputs[0] = NewVPUTensor(56, 56, 60, 1, TypeUInt8, LayoutZMajor, false)
	report := NewSanitizer().CheckAndSanitize(&w)
	assert.Equal(t, ErrorInvalidInputConfiguration, report.Value())
}

func TestSanitizer_GeometryMismatch(t *testing.T) {
	w := conv3x3Workload()
	w.Outputs[0] = NewVPUTensor(48, 48, 64, 1, TypeUInt8, LayoutZMajor, false)
	report := NewSanitizer().CheckAndSanitize(&w)
	assert.Equal(t, ErrorInvalidInputConfiguration, report.Value())
}

func TestSanitizer_EltwiseOperandMismatch(t *testing.T) {
	w := eltwiseWorkload()
	w.Inputs[1] = NewVPUTensor(64, 128, 16, 1, TypeFloat16, LayoutZXY, false)
	report := NewSanitizer().CheckAndSanitize(&w)
	assert.Equal(t, ErrorInvalidInputConfiguration, report.Value())
}

func TestSanitizer_WeightSparsityNeedsEnableFlag(t *testing.T) {
	w := conv3x3Workload()
	w.WeightSparsity = 0.4
	w.WeightSparsityEnabled = false
	report := NewSanitizer().CheckAndSanitize(&w)
	assert.Equal(t, ErrorInvalidInputConfiguration, report.Value())

	w = conv3x3Workload()
	w.WeightSparsity = 0.4
	w.WeightSparsityEnabled = true
	report = NewSanitizer().CheckAndSanitize(&w)
	assert.True(t, report.IsUsable(), report.Text())
}

func TestSanitizer_PoolSparsityRejected(t *testing.T) {
	in := NewVPUTensor(28, 28, 64, 1, TypeUInt8, LayoutZXY, false)
	out := NewVPUTensor(14, 14, 64, 1, TypeUInt8, LayoutZXY, false)
	w := DPUWorkload{
		Device:        VPUDevice27,
		Op:            OpMaxPool,
		Inputs:        []VPUTensor{in},
		Outputs:       []VPUTensor{out},
		KernelH:       2,
		KernelW:       2,
		StrideH:       2,
		StrideW:       2,
		ExecutionMode: ModeCuboid16x16,
		ActSparsity:   0.5,
		ISI:           ISIClustering,
	}
	report := NewSanitizer().CheckAndSanitize(&w)
	assert.Equal(t, ErrorInvalidInputConfiguration, report.Value())

	w.ActSparsity = 0
	report = NewSanitizer().CheckAndSanitize(&w)
	assert.True(t, report.IsUsable(), report.Text())
}

// TestSanitizer_UnknownDevice uses a value past the sentinel.
func TestSanitizer_UnknownDevice(t *testing.T) {
	w := conv3x3Workload()
	w.Device = VPUDeviceCount
	report := NewSanitizer().CheckAndSanitize(&w)
	assert.Equal(t, ErrorInvalidInputDevice, report.Value())
}

// TestSanitizer_SOKRequiresBroadcast verifies the rule-table-driven ISI
// filter: SPLIT_OVER_K without broadcast write tiles is invalid.
func TestSanitizer_SOKRequiresBroadcast(t *testing.T) {
	w := conv3x3Workload()
	w.ISI = ISISplitOverK
	w.OutputWriteTiles = 1
	report := NewSanitizer().CheckAndSanitize(&w)
	assert.Equal(t, ErrorInvalidInputConfiguration, report.Value())

	w = conv3x3Workload()
	w.ISI = ISISplitOverK
	w.OutputWriteTiles = 2
	report = NewSanitizer().CheckAndSanitize(&w)
	assert.True(t, report.IsUsable(), report.Text())
}

// TestLayerSanitizer_RelaxedChannels verifies the layer registry admits
// unaligned channels that the strict registry refuses.
func TestLayerSanitizer_RelaxedChannels(t *testing.T) {
	w := conv3x3Workload()
	w.Inputs[0] = NewVPUTensor(56, 56, 60, 1, TypeUInt8, LayoutZMajor, false)
	w.Outputs[0] = NewVPUTensor(56, 56, 60, 1, TypeUInt8, LayoutZMajor, false)

	strict := NewSanitizer().CheckAndSanitize(&w)
	assert.Equal(t, ErrorInvalidInputConfiguration, strict.Value())

	w2 := conv3x3Workload()
	w2.Inputs[0] = NewVPUTensor(56, 56, 60, 1, TypeUInt8, LayoutZMajor, false)
	w2.Outputs[0] = NewVPUTensor(56, 56, 60, 1, TypeUInt8, LayoutZMajor, false)
	relaxed := NewLayerSanitizer().CheckAndSanitize(&w2)
	assert.True(t, relaxed.IsUsable(), relaxed.Text())
}

// TestLayerSanitizer_ErrorCodeIsLayerScoped verifies layer failures use
// the layer taxonomy.
func TestLayerSanitizer_ErrorCodeIsLayerScoped(t *testing.T) {
	w := conv3x3Workload()
	w.Outputs[0] = NewVPUTensor(48, 48, 64, 1, TypeUInt8, LayoutZMajor, false)
	report := NewLayerSanitizer().CheckAndSanitize(&w)
	assert.Equal(t, ErrorInvalidLayerConfiguration, report.Value())
}
