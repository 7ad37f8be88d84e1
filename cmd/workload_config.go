package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vpucost/vpucost/vpu"
)

// YAML shapes for workload files fed to the subcommands. Enum fields
// carry canonical names (CONVOLUTION, VPU_2_7, CUBOID_16x16, ...).

type tensorConfig struct {
	Width    uint   `yaml:"width"`
	Height   uint   `yaml:"height"`
	Channels uint   `yaml:"channels"`
	Batch    uint   `yaml:"batch"`
	DataType string `yaml:"dtype"`
	Layout   string `yaml:"layout"`
	Sparse   bool   `yaml:"sparse"`
}

type dpuWorkloadConfig struct {
	Device    string         `yaml:"device"`
	Operation string         `yaml:"operation"`
	Inputs    []tensorConfig `yaml:"inputs"`
	Output    tensorConfig   `yaml:"output"`

	KernelH uint `yaml:"kernel_h"`
	KernelW uint `yaml:"kernel_w"`
	StrideH uint `yaml:"stride_h"`
	StrideW uint `yaml:"stride_w"`

	PadTop    uint `yaml:"pad_top"`
	PadBottom uint `yaml:"pad_bottom"`
	PadLeft   uint `yaml:"pad_left"`
	PadRight  uint `yaml:"pad_right"`

	ExecutionMode string `yaml:"execution_mode"`
	Activation    string `yaml:"activation"`

	ActSparsity           float32 `yaml:"act_sparsity"`
	WeightSparsity        float32 `yaml:"weight_sparsity"`
	WeightSparsityEnabled bool    `yaml:"weight_sparsity_enabled"`

	OutputWriteTiles uint   `yaml:"output_write_tiles"`
	ISI              string `yaml:"isi"`
}

func (c tensorConfig) toTensor() (vpu.VPUTensor, error) {
	dt := vpu.TypeUInt8
	if c.DataType != "" {
		parsed, ok := vpu.ParseDataType(c.DataType)
		if !ok {
			return vpu.VPUTensor{}, fmt.Errorf("unknown dtype %q", c.DataType)
		}
		dt = parsed
	}
	layout := vpu.LayoutZXY
	if c.Layout != "" {
		parsed, ok := vpu.ParseLayout(c.Layout)
		if !ok {
			return vpu.VPUTensor{}, fmt.Errorf("unknown layout %q", c.Layout)
		}
		layout = parsed
	}
	batch := c.Batch
	if batch == 0 {
		batch = 1
	}
	return vpu.NewVPUTensor(c.Width, c.Height, c.Channels, batch, dt, layout, c.Sparse), nil
}

func (c dpuWorkloadConfig) toWorkload() (vpu.DPUWorkload, error) {
	var w vpu.DPUWorkload

	device, ok := vpu.ParseVPUDevice(c.Device)
	if !ok {
		return w, fmt.Errorf("unknown device %q", c.Device)
	}
	op, ok := vpu.ParseOperation(c.Operation)
	if !ok {
		return w, fmt.Errorf("unknown operation %q", c.Operation)
	}
	w.Device = device
	w.Op = op

	for _, in := range c.Inputs {
		t, err := in.toTensor()
		if err != nil {
			return w, err
		}
		w.Inputs = append(w.Inputs, t)
	}
	out, err := c.Output.toTensor()
	if err != nil {
		return w, err
	}
	w.Outputs = []vpu.VPUTensor{out}

	w.KernelH, w.KernelW = defaultUint(c.KernelH, 1), defaultUint(c.KernelW, 1)
	w.StrideH, w.StrideW = defaultUint(c.StrideH, 1), defaultUint(c.StrideW, 1)
	w.PadTop, w.PadBottom, w.PadLeft, w.PadRight = c.PadTop, c.PadBottom, c.PadLeft, c.PadRight

	if c.ExecutionMode != "" {
		mode, ok := vpu.ParseExecutionMode(c.ExecutionMode)
		if !ok {
			return w, fmt.Errorf("unknown execution mode %q", c.ExecutionMode)
		}
		w.ExecutionMode = mode
	} else if device == vpu.VPUDevice27 || device == vpu.VPUDevice40 {
		w.ExecutionMode = vpu.ModeCuboid16x16
	}

	if c.Activation != "" {
		act, ok := vpu.ParseActivationFunction(c.Activation)
		if !ok {
			return w, fmt.Errorf("unknown activation %q", c.Activation)
		}
		w.Activation = act
	}

	w.ActSparsity = c.ActSparsity
	w.WeightSparsity = c.WeightSparsity
	w.WeightSparsityEnabled = c.WeightSparsityEnabled
	w.OutputWriteTiles = defaultUint(c.OutputWriteTiles, 1)

	if c.ISI != "" {
		isi, ok := vpu.ParseISIStrategy(c.ISI)
		if !ok {
			return w, fmt.Errorf("unknown ISI strategy %q", c.ISI)
		}
		w.ISI = isi
	}
	return w, nil
}

func defaultUint(v, def uint) uint {
	if v == 0 {
		return def
	}
	return v
}

// loadDPUWorkloads reads one YAML document holding either a list of
// workloads or a single workload mapping.
func loadDPUWorkloads(path string) ([]vpu.DPUWorkload, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var configs []dpuWorkloadConfig
	if err := yaml.Unmarshal(raw, &configs); err != nil {
		// fall back to a single-workload document
		var single dpuWorkloadConfig
		if err2 := yaml.Unmarshal(raw, &single); err2 != nil {
			return nil, fmt.Errorf("parsing workload file %s: %w", path, err)
		}
		configs = []dpuWorkloadConfig{single}
	}

	workloads := make([]vpu.DPUWorkload, 0, len(configs))
	for i, c := range configs {
		w, err := c.toWorkload()
		if err != nil {
			return nil, fmt.Errorf("workload %d in %s: %w", i, path, err)
		}
		workloads = append(workloads, w)
	}
	return workloads, nil
}
