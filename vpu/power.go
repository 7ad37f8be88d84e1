package vpu

import (
	"sort"
)

// Activity-factor model. The reference workload ("power virus", the
// worst-case-power DPU configuration) defines factor 1.0; the LUT below
// adjusts relative to it per operation and input channel count, with
// linear interpolation between tabulated points and clamping outside
// them. A per-device scalar converts from the int8 reference to float
// workloads.

// powerPoint is one tabulated (channels, factor) sample.
type powerPoint struct {
	channels uint
	factor   float64
}

// powerLUT maps operation name → samples sorted by channel count.
var powerLUT = map[string][]powerPoint{
	OpConvolution.String(): {
		{16, 0.70}, {32, 0.80}, {64, 0.88}, {128, 0.94}, {256, 1.00}, {512, 1.00},
	},
	OpCMConvolution.String(): {
		{1, 0.45}, {4, 0.55}, {8, 0.62}, {15, 0.67},
	},
	OpDWConvolution.String(): {
		{16, 0.22}, {64, 0.26}, {256, 0.30}, {512, 0.32},
	},
	OpEltwise.String(): {
		{16, 0.12}, {64, 0.14}, {256, 0.16}, {1024, 0.18},
	},
	OpMaxPool.String(): {
		{16, 0.17}, {64, 0.19}, {256, 0.21},
	},
	OpAvePool.String(): {
		{16, 0.18}, {64, 0.20}, {256, 0.22},
	},
}

// lerp performs linear interpolation between a and b at parameter t in [0,1].
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// powerFactor interpolates the LUT for an operation at a channel count.
// Below the first point it clamps to the first, above the last to the
// last. Operations without a table row fall back to the reference 1.0.
func powerFactor(op Operation, channels uint) float64 {
	points := powerLUT[op.String()]
	if len(points) == 0 {
		return 1.0
	}
	if channels <= points[0].channels {
		return points[0].factor
	}
	last := points[len(points)-1]
	if channels >= last.channels {
		return last.factor
	}
	hi := sort.Search(len(points), func(i int) bool { return points[i].channels >= channels })
	lo := hi - 1
	span := float64(points[hi].channels - points[lo].channels)
	t := float64(channels-points[lo].channels) / span
	return lerp(points[lo].factor, points[hi].factor, t)
}

// DPUActivityFactor relates the work the workload keeps the MAC array
// doing to the power-virus reference: the LUT adjustment times the
// fraction of cycles the array is genuinely active, clamped to [0, 1]
// on the int8 reference scale before the float ratio applies.
func DPUActivityFactor(w *DPUWorkload, actualCycles CyclesInterfaceType) float64 {
	if IsErrorCode(actualCycles) || actualCycles == 0 {
		return 0
	}
	ideal := DPUPowerIdealCycles(w)
	if IsErrorCode(ideal) {
		return 0
	}
	utilization := float64(ideal) / float64(actualCycles)
	if utilization > 1 {
		utilization = 1
	}

	af := powerFactor(w.Op, w.Input0().Channels()) * utilization

	if w.Input0().IsFloat() {
		calib, ok := DeviceInfo(w.Device)
		if ok {
			af *= calib.FloatToIntPowerRatio
		}
	}
	return af
}

// DPUEnergy is the device-normalized energy: activity factor times the
// cycles the workload occupies the DPU.
func DPUEnergy(w *DPUWorkload, actualCycles CyclesInterfaceType) float64 {
	if IsErrorCode(actualCycles) {
		return 0
	}
	return DPUActivityFactor(w, actualCycles) * float64(actualCycles)
}
