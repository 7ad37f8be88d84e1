package vpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mibTransfer(device VPUDevice, src, dst MemoryLocation) DMAWorkload {
	buf := NewVPUTensor(1<<20, 1, 1, 1, TypeUInt8, LayoutZXY, false)
	return DMAWorkload{
		Device:         device,
		Input:          buf,
		Output:         buf,
		InputLocation:  src,
		OutputLocation: dst,
	}
}

// TestDMA_MiBFromDRAM verifies the 1 MiB DRAM→CMX reference on VPU_2_7:
// cycles ≈ latency + bytes · cycles_per_byte within 1%.
func TestDMA_MiBFromDRAM(t *testing.T) {
	w := mibTransfer(VPUDevice27, LocationDRAM, LocationCMX)
	got := DMATheoreticalCycles(&w)
	require.False(t, IsErrorCode(got))

	calib, ok := DeviceInfo(VPUDevice27)
	require.True(t, ok)
	want := float64(calib.DMALatencyCycles[LocationDRAM]) +
		float64(1<<20)*calib.DPUFreqMHz/calib.DRAMBandwidthMBs
	assert.InDelta(t, want, float64(got), want*0.01)
}

// TestDMA_OnChipFasterThanDRAM verifies CMX→CMX beats DRAM→CMX for the
// same payload.
func TestDMA_OnChipFasterThanDRAM(t *testing.T) {
	dram := mibTransfer(VPUDevice27, LocationDRAM, LocationCMX)
	onchip := mibTransfer(VPUDevice27, LocationCMX, LocationCMX)

	fromDRAM := DMATheoreticalCycles(&dram)
	local := DMATheoreticalCycles(&onchip)
	require.False(t, IsErrorCode(fromDRAM))
	require.False(t, IsErrorCode(local))
	assert.Less(t, local, fromDRAM)
}

func TestDMA_CompressionReducesCycles(t *testing.T) {
	plain := mibTransfer(VPUDevice27, LocationDRAM, LocationCMX)
	compressed := plain
	compressed.Compression = true

	assert.Less(t, DMATheoreticalCycles(&compressed), DMATheoreticalCycles(&plain))
}

func TestDMA_PermuteCostsBandwidth(t *testing.T) {
	plain := mibTransfer(VPUDevice27, LocationDRAM, LocationCMX)
	permuted := plain
	permuted.Permute = true

	assert.Greater(t, DMATheoreticalCycles(&permuted), DMATheoreticalCycles(&plain))
}

func TestDMA_BroadcastScalesBytes(t *testing.T) {
	single := mibTransfer(VPUDevice27, LocationDRAM, LocationCMX)
	broadcast := single
	broadcast.OutputWriteTiles = 2

	one := DMATheoreticalCycles(&single)
	two := DMATheoreticalCycles(&broadcast)
	assert.Greater(t, two, one)
}

// TestDMA_InvalidTransfers covers the malformed cases: element-count
// mismatch, unreachable location, unknown device.
func TestDMA_InvalidTransfers(t *testing.T) {
	w := mibTransfer(VPUDevice27, LocationDRAM, LocationCMX)
	w.Output = NewVPUTensor(512, 1, 1, 1, TypeUInt8, LayoutZXY, false)
	assert.Equal(t, ErrorInvalidInputConfiguration, DMATheoreticalCycles(&w))

	// UPA is not reachable from 2.7
	w = mibTransfer(VPUDevice27, LocationUPA, LocationCMX)
	assert.Equal(t, ErrorInvalidInputConfiguration, DMATheoreticalCycles(&w))

	w = mibTransfer(VPUDeviceCount, LocationDRAM, LocationCMX)
	assert.Equal(t, ErrorInvalidInputDevice, DMATheoreticalCycles(&w))
}

// TestDMA_SharedChannels verifies oversubscribed transfers stretch only
// the bandwidth term.
func TestDMA_SharedChannels(t *testing.T) {
	w := mibTransfer(VPUDevice27, LocationDRAM, LocationCMX)
	base := DMATheoreticalCycles(&w)

	// 2 channels on 2.7: two concurrent transfers still run full speed
	assert.Equal(t, base, DMASharedChannelCycles(&w, 2))

	four := DMASharedChannelCycles(&w, 4)
	assert.Greater(t, four, base)
	assert.Less(t, four, base*3)
}
