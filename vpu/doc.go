// Package vpu is the core cost-estimation engine for the VPU family of
// inference accelerators. Given an abstract description of work placed on
// the device it returns an estimated execution time in device clock cycles
// plus derived quantities (energy, activity factor, memory footprint).
//
// # Reading Guide
//
// Start with these three files to understand the estimation pipeline:
//   - workload.go: DPUWorkload / DMAWorkload / SHAVEWorkload value types
//   - sanitizer.go: normalisation and per-device validity checking
//   - costmodel.go: the facade wiring sanitize → descriptor → NN → cycles
//
// # Architecture
//
// The vpu package holds the flat core; implementations with their own
// concerns live in sub-packages:
//   - vpu/nn/: flat-model parser and the batched inference runtime
//   - vpu/cache/: bounded LRU cache keyed on descriptor content
//   - vpu/tiling/: layer splitting across tiles and the layer-level API
//
// Estimates come from two cooperating models. The analytical model
// (theoretical.go, dma.go, shave.go) is closed-form and always available.
// The learned model (vpu/nn) refines DPU estimates when a serialized
// network has been loaded; VPUCostModel falls back to the analytical path
// when no network is present.
//
// # Determinism
//
// All public entry points are pure with respect to their inputs: two calls
// with byte-identical sanitized workloads produce byte-identical results
// within one process lifetime. Descriptors are bit-stable and serve as
// cache keys.
//
// A VPUCostModel instance is not safe for concurrent use; callers
// serialise access per instance. Instances share no state.
package vpu
