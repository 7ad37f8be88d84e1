package vpu

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vpucost/vpucost/vpu/cache"
	"github.com/vpucost/vpucost/vpu/nn"
)

// VPUCostModel is the single entry point for pricing workloads. It owns
// its sanitizer, rule registries, cache and (optionally) one loaded
// estimator network; DPU queries run sanitize → descriptor → cache/NN →
// post-process, falling back to the analytical model when no network is
// loaded. DMA and SHAVE queries use the analytical models directly.
//
// Instances are not safe for concurrent use; callers serialise access
// per instance. Instances share no state and may coexist freely.
type VPUCostModel struct {
	sanitizer      *Sanitizer
	layerSanitizer *Sanitizer
	memory         *MemoryCalculator
	shave          *ShaveKernelTable

	model   *nn.Model
	runtime *nn.InferenceModel
	preproc Preprocessor
	cache   *cache.FixedCache
}

// CostModelConfig groups construction parameters. The zero value is a
// valid analytical-only model.
type CostModelConfig struct {
	// ModelBuffer is the serialized estimator; empty means analytical
	// only. With CopyModelBuffer the bytes are deep copied, otherwise
	// the caller guarantees the buffer outlives the cost model.
	ModelBuffer     []byte
	CopyModelBuffer bool

	// BatchSize is the NN batch; short query sets are padded. Default 1.
	BatchSize int

	// CacheCapacity bounds the descriptor cache; 0 takes the default,
	// negative disables caching.
	CacheCapacity int

	// ShaveTablePath optionally replaces the built-in SHAVE kernel
	// constants from a YAML table.
	ShaveTablePath string
}

// NewVPUCostModel builds a cost model. Only construction can fail (bad
// model buffer, unknown schema version, bad kernel table); afterwards
// every workload problem surfaces as an error code, never a Go error.
func NewVPUCostModel(cfg CostModelConfig) (*VPUCostModel, error) {
	m := &VPUCostModel{
		sanitizer:      NewSanitizer(),
		layerSanitizer: NewLayerSanitizer(),
		memory:         NewMemoryCalculator(),
	}

	capacity := cfg.CacheCapacity
	if capacity == 0 {
		capacity = cache.DefaultCapacity
	}
	m.cache = cache.New(capacity)

	if cfg.ShaveTablePath != "" {
		table, err := LoadShaveKernelTable(cfg.ShaveTablePath)
		if err != nil {
			return nil, err
		}
		m.shave = table
	} else {
		m.shave = NewShaveKernelTable()
	}

	if len(cfg.ModelBuffer) > 0 {
		model, err := nn.ParseModel(cfg.ModelBuffer, cfg.CopyModelBuffer)
		if err != nil {
			return nil, fmt.Errorf("vpu: loading estimator model: %w", err)
		}
		preproc, err := PreprocessorFor(model.Version.Input)
		if err != nil {
			return nil, err
		}
		if preproc.Size() != model.InputDim() {
			return nil, fmt.Errorf("vpu: model expects %d inputs but schema v%d descriptors have %d",
				model.InputDim(), model.Version.Input, preproc.Size())
		}
		batch := cfg.BatchSize
		if batch == 0 {
			batch = 1
		}
		runtime, err := nn.NewInferenceModel(model, batch)
		if err != nil {
			return nil, err
		}
		m.model = model
		m.runtime = runtime
		m.preproc = preproc
		logrus.Infof("Loaded estimator %q (VI=%d VO=%d, %d→%d)",
			model.Name, model.Version.Input, model.Version.Output, model.InputDim(), model.OutputDim())
	}
	return m, nil
}

// HasNN reports whether a learned estimator is loaded.
func (m *VPUCostModel) HasNN() bool { return m.runtime != nil }

// ModelName is the loaded estimator's stamped name, or empty.
func (m *VPUCostModel) ModelName() string {
	if m.model == nil {
		return ""
	}
	return m.model.Name
}

// DPU prices one workload in DPU cycles, or returns an error code.
func (m *VPUCostModel) DPU(w DPUWorkload) CyclesInterfaceType {
	cycles, _ := m.DPUWithDiagnostics(w)
	return cycles
}

// DPUWithDiagnostics additionally returns the human-readable
// diagnostics accumulated along the pipeline.
func (m *VPUCostModel) DPUWithDiagnostics(w DPUWorkload) (CyclesInterfaceType, string) {
	w = w.Clone()
	report := m.sanitizer.CheckAndSanitize(&w)
	if !report.IsUsable() {
		return report.Value(), report.Text()
	}
	return m.priceSanitized(&w)
}

// priceSanitized runs the post-sanitization pipeline on a canonical
// workload.
func (m *VPUCostModel) priceSanitized(w *DPUWorkload) (CyclesInterfaceType, string) {
	if m.runtime == nil {
		return DPUTheoreticalCycles(w), "analytical estimate (no estimator loaded)"
	}

	descriptor, err := m.preproc.Transform(w)
	if err != nil {
		return ErrorInvalidInputConfiguration, err.Error()
	}

	raw, hit := m.cache.Get(descriptor)
	if !hit {
		if err := m.runtime.SetInputs(m.padBatch(descriptor)); err != nil {
			return ErrorInvalidInputConfiguration, err.Error()
		}
		m.runtime.Predict()
		raw = m.runtime.Outputs()[0]
		m.cache.Add(descriptor, raw)
	}

	return m.postProcess(w, raw)
}

// padBatch right-pads a single descriptor to the runtime batch with
// neutral zero rows whose outputs are discarded.
func (m *VPUCostModel) padBatch(descriptor []float32) []float32 {
	rows, cols := m.runtime.InputShape()
	padded := make([]float32, rows*cols)
	copy(padded, descriptor)
	return padded
}

// postProcess converts the raw network output to cycles per the model's
// output interface version and validates the range.
func (m *VPUCostModel) postProcess(w *DPUWorkload, raw float32) (CyclesInterfaceType, string) {
	var cycles CyclesInterfaceType
	switch m.model.Post {
	case nn.PostCycles:
		cycles = CyclesFromFloat(float64(raw))
	case nn.PostOverheadBounded:
		if raw <= 0 || raw > 1 {
			return ErrorInvalidOutputRange, fmt.Sprintf("overhead factor %f outside (0,1]", raw)
		}
		cycles = overheadToCycles(w, raw)
	case nn.PostOverheadUnbounded:
		if raw <= 0 {
			return ErrorInvalidOutputRange, fmt.Sprintf("overhead factor %f not positive", raw)
		}
		cycles = overheadToCycles(w, raw)
	default:
		return ErrorInvalidOutputRange, fmt.Sprintf("model output interface v%d has no post-processor", m.model.Version.Output)
	}

	if IsErrorCode(cycles) {
		return ErrorInvalidOutputRange, fmt.Sprintf("estimator output %f does not convert to cycles", raw)
	}
	if cycles == 0 || cycles >= MaxValidCycles {
		return ErrorInvalidOutputRange, fmt.Sprintf("estimated %d cycles outside (0, %d)", cycles, MaxValidCycles)
	}
	return cycles, ""
}

// overheadToCycles divides the ideal cycles by the predicted hardware
// efficiency factor.
func overheadToCycles(w *DPUWorkload, factor float32) CyclesInterfaceType {
	ideal := DPUEfficiencyIdealCycles(w)
	if IsErrorCode(ideal) {
		return ideal
	}
	return CyclesFromFloat(float64(ideal) / float64(factor))
}

// DPUBatch prices a slice of workloads, sharing the cache and batching
// NN misses into full forward passes.
func (m *VPUCostModel) DPUBatch(workloads []DPUWorkload) []CyclesInterfaceType {
	out := make([]CyclesInterfaceType, len(workloads))
	if m.runtime == nil {
		for i := range workloads {
			out[i] = m.DPU(workloads[i])
		}
		return out
	}

	type pending struct {
		index      int
		descriptor []float32
	}
	var misses []pending

	sanitized := make([]DPUWorkload, len(workloads))
	for i := range workloads {
		w := workloads[i].Clone()
		report := m.sanitizer.CheckAndSanitize(&w)
		sanitized[i] = w
		if !report.IsUsable() {
			out[i] = report.Value()
			continue
		}
		descriptor, err := m.preproc.Transform(&w)
		if err != nil {
			out[i] = ErrorInvalidInputConfiguration
			continue
		}
		if raw, hit := m.cache.Get(descriptor); hit {
			out[i], _ = m.postProcess(&w, raw)
			continue
		}
		misses = append(misses, pending{index: i, descriptor: descriptor})
	}

	rows, cols := m.runtime.InputShape()
	for start := 0; start < len(misses); start += rows {
		end := start + rows
		if end > len(misses) {
			end = len(misses)
		}
		chunk := misses[start:end]

		batch := make([]float32, rows*cols)
		for r, p := range chunk {
			copy(batch[r*cols:], p.descriptor)
		}
		if err := m.runtime.SetInputs(batch); err != nil {
			for _, p := range chunk {
				out[p.index] = ErrorInvalidInputConfiguration
			}
			continue
		}
		m.runtime.Predict()
		raws := m.runtime.Outputs()

		for r, p := range chunk {
			raw := raws[r]
			m.cache.Add(p.descriptor, raw)
			out[p.index], _ = m.postProcess(&sanitized[p.index], raw)
		}
	}
	return out
}

// DMA prices one transfer via the analytical DMA model.
func (m *VPUCostModel) DMA(w DMAWorkload) CyclesInterfaceType {
	return DMATheoreticalCycles(&w)
}

// SHAVE prices one kernel invocation via the piecewise-linear table.
func (m *VPUCostModel) SHAVE(w SHAVEWorkload) CyclesInterfaceType {
	return m.shave.SHAVETheoreticalCycles(&w)
}

// ShaveKernels exposes the loaded kernel table (for CLI listing).
func (m *VPUCostModel) ShaveKernels() *ShaveKernelTable { return m.shave }

// DPUInfoPack bundles everything derivable from one pricing pass.
type DPUInfoPack struct {
	Cycles      CyclesInterfaceType
	ErrorCode   CyclesInterfaceType
	Diagnostics string

	DenseMACs  uint64
	SparseMACs uint64

	PowerIdealCycles      CyclesInterfaceType
	EfficiencyIdealCycles CyclesInterfaceType
	TheoreticalCycles     CyclesInterfaceType

	ActivityFactor float64
	MACUtilization float64
	Energy         float64

	Memory MemoryUsage
}

// DPUInfo prices a workload and derives the full quantity bundle in one
// pass.
func (m *VPUCostModel) DPUInfo(w DPUWorkload) DPUInfoPack {
	var info DPUInfoPack

	w = w.Clone()
	report := m.sanitizer.CheckAndSanitize(&w)
	if !report.IsUsable() {
		info.Cycles = report.Value()
		info.ErrorCode = report.Value()
		info.Diagnostics = report.Text()
		return info
	}

	cycles, diag := m.priceSanitized(&w)
	info.Cycles = cycles
	info.Diagnostics = diag
	if IsErrorCode(cycles) {
		info.ErrorCode = cycles
		return info
	}

	info.DenseMACs = DenseMACs(&w)
	info.SparseMACs = SparseMACs(&w)
	info.PowerIdealCycles = DPUPowerIdealCycles(&w)
	info.EfficiencyIdealCycles = DPUEfficiencyIdealCycles(&w)
	info.TheoreticalCycles = DPUTheoreticalCycles(&w)
	info.Memory = m.memory.Compute(&w)

	if !IsErrorCode(info.EfficiencyIdealCycles) && cycles > 0 {
		util := float64(info.EfficiencyIdealCycles) / float64(cycles)
		if util > 1 {
			util = 1
		}
		info.MACUtilization = util
	}
	info.ActivityFactor = DPUActivityFactor(&w, cycles)
	info.Energy = DPUEnergy(&w, cycles)
	return info
}

// DPUActivityFactor prices the workload and reports its activity factor
// relative to the power-virus reference.
func (m *VPUCostModel) DPUActivityFactor(w DPUWorkload) float64 {
	return m.DPUInfo(w).ActivityFactor
}

// DPUEnergy prices the workload and reports its device-normalized
// energy.
func (m *VPUCostModel) DPUEnergy(w DPUWorkload) float64 {
	return m.DPUInfo(w).Energy
}

// SanitizeLayer validates an unsplit layer under the relaxed rules; the
// tiler consults this before splitting.
func (m *VPUCostModel) SanitizeLayer(w *DPUWorkload) *SanityReport {
	return m.layerSanitizer.CheckAndSanitize(w)
}

// PurgeCache drops all memoised estimates; results are unchanged, only
// recomputed.
func (m *VPUCostModel) PurgeCache() { m.cache.Purge() }
