package vpu

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DeviceCalib is the fixed constant set of one device generation.
// Values are calibration data, not physics: they are what the cycle
// formulas were fitted against and must change only together with the
// models that consume them.
type DeviceCalib struct {
	DPUFreqMHz  float64 `yaml:"dpu_freq_mhz"`
	CMXFreqMHz  float64 `yaml:"cmx_freq_mhz"`
	CMXSizeB    uint    `yaml:"cmx_size_bytes"`
	CMXWordB    uint    `yaml:"cmx_word_bytes"`
	CMXReadPorts uint   `yaml:"cmx_read_ports"`

	DRAMBandwidthMBs float64 `yaml:"dram_bandwidth_mbs"`
	DMAChannels      uint    `yaml:"dma_channels"`

	// DMALatencyCycles is the fixed setup cost of one transfer, keyed by
	// source location, in DPU cycles.
	DMALatencyCycles map[MemoryLocation]uint `yaml:"-"`

	MACs        uint `yaml:"macs_per_dpu"`
	PPEs        uint `yaml:"ppes_per_dpu"`
	DPUsPerTile uint `yaml:"dpus_per_tile"`
	Tiles       uint `yaml:"tiles"`

	ChannelAlignment uint `yaml:"channel_alignment"`

	// CMXOverheadB is the per-invocation scratch the runtime reserves in
	// CMX on top of operand storage.
	CMXOverheadB uint `yaml:"cmx_overhead_bytes"`

	// FloatToIntPowerRatio scales activity factors from the int8
	// reference to float workloads.
	FloatToIntPowerRatio float64 `yaml:"float_int_power_ratio"`
}

// deviceList mirrors the layout of a hardware calibration table: one
// frozen entry per supported generation.
var deviceList = map[VPUDevice]DeviceCalib{
	VPUDevice20: {
		DPUFreqMHz:       700,
		CMXFreqMHz:       700,
		CMXSizeB:         1 << 20, // 1 MiB per tile
		CMXWordB:         16,
		CMXReadPorts:     1,
		DRAMBandwidthMBs: 20000,
		DMAChannels:      1,
		DMALatencyCycles: map[MemoryLocation]uint{
			LocationDRAM:  100,
			LocationCMX:   16,
			LocationCSRAM: 60,
			LocationUPA:   80,
		},
		MACs:                 256,
		PPEs:                 16,
		DPUsPerTile:          1,
		Tiles:                4,
		ChannelAlignment:     16,
		CMXOverheadB:         10 * 1024,
		FloatToIntPowerRatio: 1.22,
	},
	VPUDevice21: {
		DPUFreqMHz:       850,
		CMXFreqMHz:       850,
		CMXSizeB:         1 << 20,
		CMXWordB:         16,
		CMXReadPorts:     1,
		DRAMBandwidthMBs: 20000,
		DMAChannels:      1,
		DMALatencyCycles: map[MemoryLocation]uint{
			LocationDRAM:  100,
			LocationCMX:   16,
			LocationCSRAM: 60,
			LocationUPA:   80,
		},
		MACs:                 256,
		PPEs:                 16,
		DPUsPerTile:          1,
		Tiles:                4,
		ChannelAlignment:     16,
		CMXOverheadB:         10 * 1024,
		FloatToIntPowerRatio: 1.22,
	},
	VPUDevice27: {
		DPUFreqMHz:       1300,
		CMXFreqMHz:       975,
		CMXSizeB:         1936 * 1024, // 2 MiB minus runtime-reserved region
		CMXWordB:         32,
		CMXReadPorts:     2,
		DRAMBandwidthMBs: 27000,
		DMAChannels:      2,
		DMALatencyCycles: map[MemoryLocation]uint{
			LocationDRAM:  950,
			LocationCMX:   16,
			LocationCSRAM: 300,
			LocationUPA:   500,
		},
		MACs:                 2048,
		PPEs:                 64,
		DPUsPerTile:          1,
		Tiles:                2,
		ChannelAlignment:     16,
		CMXOverheadB:         16 * 1024,
		FloatToIntPowerRatio: 1.33,
	},
	VPUDevice40: {
		DPUFreqMHz:       1700,
		CMXFreqMHz:       971,
		CMXSizeB:         1440 * 1024,
		CMXWordB:         32,
		CMXReadPorts:     2,
		DRAMBandwidthMBs: 45000,
		DMAChannels:      2,
		DMALatencyCycles: map[MemoryLocation]uint{
			LocationDRAM:  1100,
			LocationCMX:   16,
			LocationCSRAM: 300,
			LocationUPA:   500,
		},
		MACs:                 2048,
		PPEs:                 64,
		DPUsPerTile:          1,
		Tiles:                6,
		ChannelAlignment:     16,
		CMXOverheadB:         16 * 1024,
		FloatToIntPowerRatio: 1.33,
	},
}

// DeviceInfo returns the calibration entry for a generation.
func DeviceInfo(d VPUDevice) (DeviceCalib, bool) {
	c, ok := deviceList[d]
	return c, ok
}

// KnownDevice reports whether the generation has a calibration entry.
func KnownDevice(d VPUDevice) bool {
	_, ok := deviceList[d]
	return ok
}

// DMACyclesPerByte is the per-byte transfer cost in DPU cycles for a
// src→dst pair. Transfers that touch DRAM run at DRAM bandwidth; pure
// on-chip moves run at the CMX word rate across the available ports.
func (c DeviceCalib) DMACyclesPerByte(src, dst MemoryLocation) float64 {
	if src == LocationDRAM || dst == LocationDRAM {
		// MB/s → bytes/cycle at the DPU clock
		bytesPerCycle := c.DRAMBandwidthMBs / c.DPUFreqMHz
		return 1.0 / bytesPerCycle
	}
	bytesPerCycle := float64(c.CMXWordB*c.CMXReadPorts) * (c.CMXFreqMHz / c.DPUFreqMHz)
	return 1.0 / bytesPerCycle
}

// deviceOverride is the YAML shape of one device entry in an override
// file. Only non-zero fields replace the built-in calibration.
type deviceOverride struct {
	Device string      `yaml:"device"`
	Calib  DeviceCalib `yaml:",inline"`
}

// LoadDeviceOverrides replaces built-in calibration values with entries
// from a YAML file. Intended for calibration experiments; production
// builds run on the frozen table.
func LoadDeviceOverrides(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vpu: reading device overrides: %w", err)
	}
	var entries []deviceOverride
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("vpu: parsing device overrides: %w", err)
	}
	for _, e := range entries {
		dev, ok := ParseVPUDevice(e.Device)
		if !ok {
			return fmt.Errorf("vpu: device overrides: unknown device %q", e.Device)
		}
		base := deviceList[dev]
		merged := mergeCalib(base, e.Calib)
		deviceList[dev] = merged
		logrus.Infof("Device calibration override applied for %s", dev)
	}
	return nil
}

func mergeCalib(base, over DeviceCalib) DeviceCalib {
	out := base
	if over.DPUFreqMHz > 0 {
		out.DPUFreqMHz = over.DPUFreqMHz
	}
	if over.CMXFreqMHz > 0 {
		out.CMXFreqMHz = over.CMXFreqMHz
	}
	if over.CMXSizeB > 0 {
		out.CMXSizeB = over.CMXSizeB
	}
	if over.CMXWordB > 0 {
		out.CMXWordB = over.CMXWordB
	}
	if over.CMXReadPorts > 0 {
		out.CMXReadPorts = over.CMXReadPorts
	}
	if over.DRAMBandwidthMBs > 0 {
		out.DRAMBandwidthMBs = over.DRAMBandwidthMBs
	}
	if over.DMAChannels > 0 {
		out.DMAChannels = over.DMAChannels
	}
	if over.MACs > 0 {
		out.MACs = over.MACs
	}
	if over.PPEs > 0 {
		out.PPEs = over.PPEs
	}
	if over.DPUsPerTile > 0 {
		out.DPUsPerTile = over.DPUsPerTile
	}
	if over.Tiles > 0 {
		out.Tiles = over.Tiles
	}
	if over.ChannelAlignment > 0 {
		out.ChannelAlignment = over.ChannelAlignment
	}
	if over.CMXOverheadB > 0 {
		out.CMXOverheadB = over.CMXOverheadB
	}
	if over.FloatToIntPowerRatio > 0 {
		out.FloatToIntPowerRatio = over.FloatToIntPowerRatio
	}
	return out
}
