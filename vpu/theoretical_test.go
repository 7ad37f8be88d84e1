package vpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEfficiencyIdealCycles_Conv3x3 verifies the reference value:
// ceil(56·56·64 · 3·3·64 / 2048) on VPU_2_7.
func TestEfficiencyIdealCycles_Conv3x3(t *testing.T) {
	w := conv3x3Workload()
	want := CyclesInterfaceType((56*56*64*3*3*64 + 2047) / 2048)
	assert.Equal(t, want, DPUEfficiencyIdealCycles(&w))
	assert.Equal(t, CyclesInterfaceType(56448), DPUEfficiencyIdealCycles(&w))
}

// TestPowerIdeal_NeverExceedsEfficiencyIdeal verifies sparsity can only
// reduce work.
func TestPowerIdeal_NeverExceedsEfficiencyIdeal(t *testing.T) {
	workloads := []DPUWorkload{conv3x3Workload(), eltwiseWorkload()}

	sparse := conv3x3Workload()
	sparse.WeightSparsityEnabled = true
	sparse.WeightSparsity = 0.6
	workloads = append(workloads, sparse)

	for _, w := range workloads {
		power := DPUPowerIdealCycles(&w)
		efficiency := DPUEfficiencyIdealCycles(&w)
		require.False(t, IsErrorCode(power))
		assert.LessOrEqual(t, power, efficiency, "%s", w)
	}
}

func TestPowerIdeal_SparsitySkipsMACs(t *testing.T) {
	w := conv3x3Workload()
	dense := DPUPowerIdealCycles(&w)

	w.WeightSparsityEnabled = true
	w.WeightSparsity = 0.5
	sparse := DPUPowerIdealCycles(&w)
	assert.InDelta(t, float64(dense)/2, float64(sparse), 1)

	// a disabled flag ignores the ratio
	w.WeightSparsityEnabled = false
	w.WeightSparsity = 0.5
	assert.Equal(t, dense, DPUPowerIdealCycles(&w))
}

func TestMACCounts(t *testing.T) {
	w := conv3x3Workload()
	assert.Equal(t, uint64(56*56*64)*uint64(3*3*64), DenseMACs(&w))
	assert.Equal(t, DenseMACs(&w), SparseMACs(&w))

	e := eltwiseWorkload()
	assert.Equal(t, uint64(128*128*16), DenseMACs(&e))
}

// TestTheoreticalCycles_GridPadding verifies the MPE grid rounds ragged
// outputs up: a 56-wide output prices like a 64-wide one under the
// 16×16 cuboid.
func TestTheoreticalCycles_GridPadding(t *testing.T) {
	w := conv3x3Workload()
	got := DPUTheoreticalCycles(&w)
	require.False(t, IsErrorCode(got))

	// 56→64 on both spatial axes, channels already aligned
	want := CyclesInterfaceType((64 * 64 * 64 * 3 * 3 * 64) / 2048)
	assert.Equal(t, want, got)
	assert.GreaterOrEqual(t, got, DPUEfficiencyIdealCycles(&w))
}

// TestTheoreticalCycles_FloatHalvesThroughput verifies float inputs pay
// the half-rate MAC penalty (when compute-bound).
func TestTheoreticalCycles_FloatHalvesThroughput(t *testing.T) {
	intW := conv3x3Workload()

	fpW := conv3x3Workload()
	fpW.Inputs[0] = NewVPUTensor(56, 56, 64, 1, TypeFloat16, LayoutZXY, false)
	fpW.Outputs[0] = NewVPUTensor(56, 56, 64, 1, TypeFloat16, LayoutZXY, false)

	intCycles := DPUTheoreticalCycles(&intW)
	fpCycles := DPUTheoreticalCycles(&fpW)
	assert.Equal(t, intCycles*2, fpCycles)
}

// TestTheoreticalCycles_BandwidthBound verifies the CMX read-port floor
// takes over for low-arithmetic workloads: the eltwise fixture moves
// 1 MiB through 64 B/cycle of read bandwidth.
func TestTheoreticalCycles_BandwidthBound(t *testing.T) {
	w := eltwiseWorkload()
	got := DPUTheoreticalCycles(&w)
	require.False(t, IsErrorCode(got))

	readBytes := uint64(2 * 128 * 128 * 16 * 2)
	want := CyclesInterfaceType(readBytes / 64)
	assert.Equal(t, want, got)
}

func TestTheoreticalCycles_UnknownDevice(t *testing.T) {
	w := conv3x3Workload()
	w.Device = VPUDeviceCount
	assert.Equal(t, ErrorInvalidInputDevice, DPUTheoreticalCycles(&w))
	assert.Equal(t, ErrorInvalidInputDevice, DPUEfficiencyIdealCycles(&w))
}
