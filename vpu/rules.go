package vpu

// Validity rules are kept in two parallel registries. The workload
// registry is strict: it judges an already-split workload destined for a
// single DPU invocation. The layer registry relaxes the constraints that
// only hold after intra-tile splitting (channel alignment, the channel
// range, the ISI set), so a layer can be judged before the tiler has
// carved it up.
//
// All membership sets are keyed by canonical enum NAME. Lookups by name
// survive additions at the tail of an enum; lookups by numeric value
// would not.

// ValueRange is an inclusive [Min, Max] interval.
type ValueRange struct {
	Min uint
	Max uint
}

// Contains reports interval membership.
func (r ValueRange) Contains(v uint) bool { return v >= r.Min && v <= r.Max }

// OperationConstraints are the per-operation dynamic rules of one device.
type OperationConstraints struct {
	Kernel ValueRange
	Stride ValueRange

	// MaxPadFor bounds padding as a function of the kernel extent on the
	// padded axis. Padding at or beyond the kernel reads nothing real.
	MaxPadFor func(kernel uint) uint

	InputChannels  ValueRange
	OutputChannels ValueRange

	// RequireChannelAlignment forces output channels (and, for standard
	// convolution, input channels) to a multiple of the device alignment.
	RequireChannelAlignment bool

	// EqualInOutChannels holds for depthwise and pooling operations.
	EqualInOutChannels bool

	// ChannelMajorInput marks CM_CONVOLUTION: input channels below the
	// alignment, laid out channel-major.
	ChannelMajorInput bool

	// Elementwise marks ELTWISE: 1×1 kernel, unit stride, no padding,
	// two identical-geometry inputs.
	Elementwise bool

	AllowActSparsity    bool
	AllowWeightSparsity bool

	// ValidISI filters ISI strategies given the rest of the workload.
	ValidISI func(isi ISIStrategy, w *DPUWorkload) bool
}

// DeviceRules is one device's rule set within a registry.
type DeviceRules struct {
	Device VPUDevice

	Operations      map[string]OperationConstraints
	ExecutionModes  map[string]bool
	DataTypes       map[string]bool
	Layouts         map[string]bool
	Swizzlings      map[string]bool
	MemoryLocations map[string]bool
	ISIStrategies   map[string]bool

	OutputWriteTiles ValueRange

	CMXSizeB     uint
	CMXWordB     uint
	CMXOverheadB uint

	// channelAlignmentOverrides refines the device default for specific
	// operations (by name).
	channelAlignmentOverrides map[string]uint
	defaultChannelAlignment   uint
}

// ChannelAlignment is the output-channel granularity for an operation.
func (r *DeviceRules) ChannelAlignment(op Operation) uint {
	if a, ok := r.channelAlignmentOverrides[op.String()]; ok {
		return a
	}
	return r.defaultChannelAlignment
}

// OperationFor returns the constraints for an operation, by name.
func (r *DeviceRules) OperationFor(op Operation) (OperationConstraints, bool) {
	c, ok := r.Operations[op.String()]
	return c, ok
}

func (r *DeviceRules) SupportsExecutionMode(m ExecutionMode) bool { return r.ExecutionModes[m.String()] }
func (r *DeviceRules) SupportsDataType(t DataType) bool           { return r.DataTypes[t.String()] }
func (r *DeviceRules) SupportsLayout(l Layout) bool               { return r.Layouts[l.String()] }
func (r *DeviceRules) SupportsSwizzling(s Swizzling) bool         { return r.Swizzlings[s.String()] }
func (r *DeviceRules) SupportsMemoryLocation(m MemoryLocation) bool {
	return r.MemoryLocations[m.String()]
}
func (r *DeviceRules) SupportsISI(s ISIStrategy) bool { return r.ISIStrategies[s.String()] }

// RulesRegistry resolves a device to its rule set.
type RulesRegistry struct {
	byDevice map[string]*DeviceRules
}

// RulesFor returns the device's rules, or false for unknown devices.
func (rr *RulesRegistry) RulesFor(d VPUDevice) (*DeviceRules, bool) {
	r, ok := rr.byDevice[d.String()]
	return r, ok
}

func names[T interface{ String() string }](vs ...T) map[string]bool {
	m := make(map[string]bool, len(vs))
	for _, v := range vs {
		m[v.String()] = true
	}
	return m
}

// sokNeedsBroadcast: SPLIT_OVER_K implies the output is broadcast, so
// more than one write tile must be configured.
func sokNeedsBroadcast(isi ISIStrategy, w *DPUWorkload) bool {
	if isi == ISISplitOverK {
		return w.OutputWriteTiles > 1
	}
	return true
}

func padBelowKernel(kernel uint) uint {
	if kernel == 0 {
		return 0
	}
	return kernel - 1
}

// buildConstraints assembles the shared convolution-family constraint
// block; callers override the fields that differ.
func buildConstraints(alignChannels bool, chans ValueRange) OperationConstraints {
	return OperationConstraints{
		Kernel:                  ValueRange{Min: 1, Max: 11},
		Stride:                  ValueRange{Min: 1, Max: 8},
		MaxPadFor:               padBelowKernel,
		InputChannels:           chans,
		OutputChannels:          chans,
		RequireChannelAlignment: alignChannels,
		AllowActSparsity:        true,
		AllowWeightSparsity:     true,
		ValidISI:                sokNeedsBroadcast,
	}
}

// WorkloadRules is the strict registry for already-split workloads.
func WorkloadRules() *RulesRegistry { return workloadRules }

// LayerRules is the relaxed registry for layers awaiting splitting.
func LayerRules() *RulesRegistry { return layerRules }

var (
	workloadRules = buildRegistry(false)
	layerRules    = buildRegistry(true)
)

func buildRegistry(relaxed bool) *RulesRegistry {
	rr := &RulesRegistry{byDevice: make(map[string]*DeviceRules)}
	for d := VPUDevice(0); d < VPUDeviceCount; d++ {
		calib, ok := DeviceInfo(d)
		if !ok {
			continue
		}
		rr.byDevice[d.String()] = buildDeviceRules(d, calib, relaxed)
	}
	return rr
}

func buildDeviceRules(d VPUDevice, calib DeviceCalib, relaxed bool) *DeviceRules {
	align := !relaxed

	// Channel envelope: strict rules start at the alignment; relaxed
	// layer rules accept anything positive (SOK rounding restores
	// alignment later).
	chans := ValueRange{Min: calib.ChannelAlignment, Max: 8192}
	if relaxed {
		chans = ValueRange{Min: 1, Max: 65536}
	}

	ops := map[string]OperationConstraints{
		OpConvolution.String():   buildConstraints(align, chans),
		OpDWConvolution.String(): buildConstraints(align, chans),
		OpMaxPool.String():       buildConstraints(align, chans),
		OpAvePool.String():       buildConstraints(align, chans),
	}

	dw := ops[OpDWConvolution.String()]
	dw.EqualInOutChannels = true
	dw.AllowWeightSparsity = false
	ops[OpDWConvolution.String()] = dw

	for _, pool := range []Operation{OpMaxPool, OpAvePool} {
		c := ops[pool.String()]
		c.EqualInOutChannels = true
		c.AllowWeightSparsity = false
		c.AllowActSparsity = false
		ops[pool.String()] = c
	}

	elt := buildConstraints(false, ValueRange{Min: 1, Max: 65536})
	elt.Kernel = ValueRange{Min: 1, Max: 1}
	elt.Stride = ValueRange{Min: 1, Max: 1}
	elt.MaxPadFor = func(uint) uint { return 0 }
	elt.Elementwise = true
	elt.EqualInOutChannels = true
	elt.AllowWeightSparsity = false
	elt.RequireChannelAlignment = false
	ops[OpEltwise.String()] = elt

	// Channel-major convolution exists from 2.7 on.
	if d == VPUDevice27 || d == VPUDevice40 {
		cm := buildConstraints(false, chans)
		cm.InputChannels = ValueRange{Min: 1, Max: calib.ChannelAlignment - 1}
		cm.ChannelMajorInput = true
		cm.AllowActSparsity = false
		cm.AllowWeightSparsity = false
		cm.RequireChannelAlignment = align // outputs still align
		ops[OpCMConvolution.String()] = cm
	}

	r := &DeviceRules{
		Device:                  d,
		Operations:              ops,
		CMXSizeB:                calib.CMXSizeB,
		CMXWordB:                calib.CMXWordB,
		CMXOverheadB:            calib.CMXOverheadB,
		defaultChannelAlignment: calib.ChannelAlignment,
		DataTypes: names(TypeUInt8, TypeInt8, TypeFloat16, TypeBFloat16),
	}

	switch d {
	case VPUDevice20, VPUDevice21:
		r.ExecutionModes = names(ModeVector, ModeMatrix, ModeVectorFP16)
		r.Layouts = names(LayoutZMajor, LayoutCMajor)
		r.Swizzlings = names(Swizzling0)
		r.MemoryLocations = names(LocationDRAM, LocationCMX, LocationCSRAM, LocationUPA)
		r.ISIStrategies = names(ISIClustering)
		r.OutputWriteTiles = ValueRange{Min: 1, Max: 1}
		// The 2.x pooling datapath feeds the MPE array in 32-channel
		// groups; pooling channels align to 32 there.
		r.channelAlignmentOverrides = map[string]uint{
			OpMaxPool.String(): 2 * calib.ChannelAlignment,
			OpAvePool.String(): 2 * calib.ChannelAlignment,
		}
	default:
		r.ExecutionModes = names(ModeCuboid16x16, ModeCuboid8x16, ModeCuboid4x16)
		r.Layouts = names(LayoutZMajor, LayoutCMajor,
			LayoutXYZ, LayoutXZY, LayoutYXZ, LayoutYZX, LayoutZXY, LayoutZYX)
		r.Swizzlings = names(Swizzling0, Swizzling1, Swizzling2, Swizzling3, Swizzling4, Swizzling5)
		r.MemoryLocations = names(LocationDRAM, LocationCMX, LocationCSRAM)
		r.ISIStrategies = names(ISIClustering, ISISplitOverH, ISISplitOverK)
		r.OutputWriteTiles = ValueRange{Min: 1, Max: 8}
		r.channelAlignmentOverrides = map[string]uint{}
	}

	if relaxed {
		// A layer may carry any ISI; splitting settles it.
		r.ISIStrategies = names(ISIClustering, ISISplitOverH, ISISplitOverK)
	}

	return r
}
