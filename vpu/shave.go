package vpu

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// SHAVE kernels are priced by a first-degree equation over output bytes
// with piecewise corrections: the cost is linear with period
// vector·unroll, a scalar prologue fires when the byte count does not
// fill whole vectors, and an unroll prologue fires when the vector count
// does not fill whole unrolled blocks. Constants live in a data table
// rather than in per-kernel code, so new kernels are table rows.

// ShaveKernel holds one kernel's piecewise-linear constants, measured at
// the reference frequencies below.
type ShaveKernel struct {
	Name string `yaml:"name"`

	SlopeCyclesPerByte float64 `yaml:"slope"`
	InterceptCycles    float64 `yaml:"intercept"`

	VectorBytes uint `yaml:"vector_bytes"` // bytes consumed per vector op
	UnrollSize  uint `yaml:"unroll_size"`  // vector ops per unrolled block

	ScalarPrologue float64 `yaml:"scalar_prologue"` // ragged-vector entry cost
	UnrollPrologue float64 `yaml:"unroll_prologue"` // ragged-block entry cost
}

// Reference clocks the kernel table was measured at. Queries rescale to
// the target device's DPU clock.
const (
	shaveRefFreqMHz  = 975.0
	shaveRefDPUMHz   = 1300.0
)

// CyclesFor prices output bytes at the reference clock.
func (k ShaveKernel) CyclesFor(outputBytes uint) float64 {
	cycles := k.InterceptCycles + k.SlopeCyclesPerByte*float64(outputBytes)
	if k.VectorBytes > 0 {
		if outputBytes%k.VectorBytes != 0 {
			cycles += k.ScalarPrologue
		}
		block := k.VectorBytes * k.UnrollSize
		if block > 0 && outputBytes%block != 0 {
			cycles += k.UnrollPrologue
		}
	}
	return cycles
}

// defaultShaveKernels is the built-in kernel table. Slopes are
// cycles/byte at the reference clock; intercepts absorb kernel launch
// and prologue-free setup.
var defaultShaveKernels = map[string]ShaveKernel{
	"sigmoid":  {Name: "sigmoid", SlopeCyclesPerByte: 0.68, InterceptCycles: 3349, VectorBytes: 32, UnrollSize: 8, ScalarPrologue: 110, UnrollPrologue: 38},
	"tanh":     {Name: "tanh", SlopeCyclesPerByte: 0.64, InterceptCycles: 2996, VectorBytes: 32, UnrollSize: 8, ScalarPrologue: 104, UnrollPrologue: 36},
	"exp":      {Name: "exp", SlopeCyclesPerByte: 0.72, InterceptCycles: 3411, VectorBytes: 32, UnrollSize: 8, ScalarPrologue: 118, UnrollPrologue: 40},
	"sqrt":     {Name: "sqrt", SlopeCyclesPerByte: 0.59, InterceptCycles: 2733, VectorBytes: 32, UnrollSize: 8, ScalarPrologue: 96, UnrollPrologue: 33},
	"relu":     {Name: "relu", SlopeCyclesPerByte: 0.21, InterceptCycles: 1706, VectorBytes: 64, UnrollSize: 16, ScalarPrologue: 54, UnrollPrologue: 18},
	"hswish":   {Name: "hswish", SlopeCyclesPerByte: 0.35, InterceptCycles: 2280, VectorBytes: 64, UnrollSize: 8, ScalarPrologue: 72, UnrollPrologue: 24},
	"swish":    {Name: "swish", SlopeCyclesPerByte: 0.74, InterceptCycles: 3598, VectorBytes: 32, UnrollSize: 8, ScalarPrologue: 121, UnrollPrologue: 41},
	"softmax":  {Name: "softmax", SlopeCyclesPerByte: 1.52, InterceptCycles: 5210, VectorBytes: 32, UnrollSize: 4, ScalarPrologue: 214, UnrollPrologue: 77},
	"add":      {Name: "add", SlopeCyclesPerByte: 0.29, InterceptCycles: 1909, VectorBytes: 64, UnrollSize: 16, ScalarPrologue: 61, UnrollPrologue: 20},
	"sub":      {Name: "sub", SlopeCyclesPerByte: 0.29, InterceptCycles: 1909, VectorBytes: 64, UnrollSize: 16, ScalarPrologue: 61, UnrollPrologue: 20},
	"mul":      {Name: "mul", SlopeCyclesPerByte: 0.31, InterceptCycles: 1955, VectorBytes: 64, UnrollSize: 16, ScalarPrologue: 64, UnrollPrologue: 21},
	"minimum":  {Name: "minimum", SlopeCyclesPerByte: 0.27, InterceptCycles: 1871, VectorBytes: 64, UnrollSize: 16, ScalarPrologue: 58, UnrollPrologue: 19},
	"maximum":  {Name: "maximum", SlopeCyclesPerByte: 0.27, InterceptCycles: 1871, VectorBytes: 64, UnrollSize: 16, ScalarPrologue: 58, UnrollPrologue: 19},
	"gelu":     {Name: "gelu", SlopeCyclesPerByte: 0.89, InterceptCycles: 4102, VectorBytes: 32, UnrollSize: 8, ScalarPrologue: 143, UnrollPrologue: 49},
	"hardsigmoid": {Name: "hardsigmoid", SlopeCyclesPerByte: 0.33, InterceptCycles: 2204, VectorBytes: 64, UnrollSize: 8, ScalarPrologue: 69, UnrollPrologue: 23},
}

// ShaveKernelTable resolves kernel names to their constants for one
// process; rows of the default table can be replaced from YAML.
type ShaveKernelTable struct {
	kernels map[string]ShaveKernel
}

// NewShaveKernelTable returns the built-in table.
func NewShaveKernelTable() *ShaveKernelTable {
	kernels := make(map[string]ShaveKernel, len(defaultShaveKernels))
	for name, k := range defaultShaveKernels {
		kernels[name] = k
	}
	return &ShaveKernelTable{kernels: kernels}
}

// LoadShaveKernelTable reads a kernel table from YAML, replacing the
// built-in constants for the names it lists and keeping the rest.
func LoadShaveKernelTable(path string) (*ShaveKernelTable, error) {
	t := NewShaveKernelTable()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vpu: reading shave kernel table: %w", err)
	}
	var rows []ShaveKernel
	if err := yaml.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("vpu: parsing shave kernel table: %w", err)
	}
	for _, k := range rows {
		if k.Name == "" {
			return nil, fmt.Errorf("vpu: shave kernel table row without a name")
		}
		t.kernels[k.Name] = k
	}
	return t, nil
}

// Kernel looks a kernel up by name.
func (t *ShaveKernelTable) Kernel(name string) (ShaveKernel, bool) {
	k, ok := t.kernels[name]
	return k, ok
}

// Names lists the known kernels.
func (t *ShaveKernelTable) Names() []string {
	out := make([]string, 0, len(t.kernels))
	for n := range t.kernels {
		out = append(out, n)
	}
	return out
}

// SHAVETheoreticalCycles prices one SHAVE workload against the table,
// rescaled to the device's DPU clock.
func (t *ShaveKernelTable) SHAVETheoreticalCycles(w *SHAVEWorkload) CyclesInterfaceType {
	calib, ok := DeviceInfo(w.Device)
	if !ok {
		return ErrorInvalidInputDevice
	}
	k, ok := t.Kernel(w.Name)
	if !ok {
		return ErrorInvalidInputOperation
	}
	if len(w.Outputs) == 0 {
		return ErrorInvalidInputConfiguration
	}

	var outputBytes uint
	for _, o := range w.Outputs {
		outputBytes += o.SizeBytes()
	}

	ref := k.CyclesFor(outputBytes)
	scaled := ref * calib.DPUFreqMHz / shaveRefDPUMHz
	return CyclesFromFloat(math.Ceil(scaled))
}
