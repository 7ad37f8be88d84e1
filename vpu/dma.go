package vpu

import "math"

// DMA transfer cycle model: a fixed per-transfer setup latency keyed by
// the source location, plus a per-byte term at the src→dst bandwidth.
// All cycles are in the DPU clock domain of the workload's device.

// compressionBytesFactor shrinks the wire traffic of a compressed
// transfer; permuteBandwidthPenalty reflects the strided access pattern
// of an on-the-fly permute.
const (
	compressionBytesFactor  = 0.6
	permuteBandwidthPenalty = 2.0
)

// DMATheoreticalCycles prices one transfer. Malformed transfers
// (mismatched element counts, locations the device cannot reach) return
// error codes, never panic.
func DMATheoreticalCycles(w *DMAWorkload) CyclesInterfaceType {
	calib, ok := DeviceInfo(w.Device)
	if !ok {
		return ErrorInvalidInputDevice
	}
	rules, _ := WorkloadRules().RulesFor(w.Device)
	if !rules.SupportsMemoryLocation(w.InputLocation) || !rules.SupportsMemoryLocation(w.OutputLocation) {
		return ErrorInvalidInputConfiguration
	}
	if w.Input.NumElements() != w.Output.NumElements() {
		return ErrorInvalidInputConfiguration
	}
	if w.Input.NumElements() == 0 {
		return ErrorInvalidInputConfiguration
	}

	bytes := float64(w.Input.SizeBytes())
	if w.Output.SizeBytes() > w.Input.SizeBytes() {
		bytes = float64(w.Output.SizeBytes())
	}
	if w.Compression {
		bytes *= compressionBytesFactor
	}

	writeTiles := w.OutputWriteTiles
	if writeTiles == 0 {
		writeTiles = 1
	}
	bytes *= float64(writeTiles)

	perByte := calib.DMACyclesPerByte(w.InputLocation, w.OutputLocation)
	if w.Permute {
		perByte *= permuteBandwidthPenalty
	}

	latency := float64(calib.DMALatencyCycles[w.InputLocation])
	return CyclesFromFloat(latency + math.Ceil(bytes*perByte))
}

// DMASharedChannelCycles prices one of `concurrent` transfers competing
// for the device's DMA channels, used by the tiler for per-tile weight
// fetches. With enough channels every transfer runs at full speed; past
// that, the bandwidth term stretches by the oversubscription ratio. The
// setup latency never divides.
func DMASharedChannelCycles(w *DMAWorkload, concurrent uint) CyclesInterfaceType {
	base := DMATheoreticalCycles(w)
	if IsErrorCode(base) || concurrent <= 1 {
		return base
	}
	calib, _ := DeviceInfo(w.Device)
	channels := calib.DMAChannels
	if channels == 0 {
		channels = 1
	}
	if concurrent <= channels {
		return base
	}
	latency := float64(calib.DMALatencyCycles[w.InputLocation])
	moved := float64(base) - latency
	stretch := float64(concurrent) / float64(channels)
	return CyclesFromFloat(latency + moved*stretch)
}
