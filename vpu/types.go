package vpu

import (
	"reflect"
)

// The hardware enums below mirror the closed sets understood by the
// device. Each has a Count sentinel (first index above all real values),
// a forward value→name table and an inverse name→value map built once at
// package init. Registries and the versioned descriptor encoders consult
// these sets by canonical name, never by numeric value: numeric codes are
// not stable across schema generations (see types_versioned.go).

// VPUDevice identifies a device generation.
type VPUDevice uint8

const (
	VPUDevice20 VPUDevice = iota
	VPUDevice21
	VPUDevice27
	VPUDevice40
	VPUDeviceCount
)

// Operation is the DPU operation kind.
type Operation uint8

const (
	OpConvolution Operation = iota
	OpDWConvolution
	OpCMConvolution
	OpEltwise
	OpMaxPool
	OpAvePool
	OperationCount
)

// DataType enumerates tensor element types.
type DataType uint8

const (
	TypeUInt8 DataType = iota
	TypeInt8
	TypeFloat16
	TypeBFloat16
	DataTypeCount
)

// Layout is the in-memory dimension order of a tensor. ZMAJOR and CMAJOR
// are the legacy pre-permutation names kept for old schemas; the
// permutation layouts name the dimensions from outermost to innermost.
type Layout uint8

const (
	LayoutZMajor Layout = iota
	LayoutCMajor
	LayoutXYZ
	LayoutXZY
	LayoutYXZ
	LayoutYZX
	LayoutZXY
	LayoutZYX
	LayoutInvalid
	LayoutCount
)

// Swizzling is the CMX interleaving key applied to an operand.
type Swizzling uint8

const (
	Swizzling0 Swizzling = iota
	Swizzling1
	Swizzling2
	Swizzling3
	Swizzling4
	Swizzling5
	SwizzlingCount
)

// ExecutionMode is the MPE grid shape used inside one DPU.
type ExecutionMode uint8

const (
	ModeVector ExecutionMode = iota
	ModeMatrix
	ModeVectorFP16
	ModeCuboid16x16
	ModeCuboid8x16
	ModeCuboid4x16
	ExecutionModeCount
)

// ActivationFunction is the PPE function fused after the operation.
type ActivationFunction uint8

const (
	ActNone ActivationFunction = iota
	ActRelu
	ActLRelu
	ActAdd
	ActSub
	ActMult
	ActivationFunctionCount
)

// ISIStrategy describes how a workload interacts with its siblings on
// other tiles.
type ISIStrategy uint8

const (
	ISIClustering ISIStrategy = iota
	ISISplitOverH
	ISISplitOverK
	ISIStrategyCount
)

// MemoryLocation is a DMA endpoint.
type MemoryLocation uint8

const (
	LocationDRAM MemoryLocation = iota
	LocationCMX
	LocationCSRAM
	LocationUPA
	MemoryLocationCount
)

// TilingStrategy is the layer-level inter-tile split.
type TilingStrategy uint8

const (
	TilingClustering TilingStrategy = iota
	TilingSOH
	TilingSOK
	TilingSOW
	TilingSOHW
	TilingSOHK
	TilingSOHOverlapped
	TilingStrategyCount
)

var vpuDeviceNames = map[VPUDevice]string{
	VPUDevice20: "VPU_2_0",
	VPUDevice21: "VPU_2_1",
	VPUDevice27: "VPU_2_7",
	VPUDevice40: "VPU_4_0",
}

var operationNames = map[Operation]string{
	OpConvolution:   "CONVOLUTION",
	OpDWConvolution: "DW_CONVOLUTION",
	OpCMConvolution: "CM_CONVOLUTION",
	OpEltwise:       "ELTWISE",
	OpMaxPool:       "MAXPOOL",
	OpAvePool:       "AVEPOOL",
}

var dataTypeNames = map[DataType]string{
	TypeUInt8:    "UINT8",
	TypeInt8:     "INT8",
	TypeFloat16:  "FLOAT16",
	TypeBFloat16: "BFLOAT16",
}

var layoutNames = map[Layout]string{
	LayoutZMajor:  "ZMAJOR",
	LayoutCMajor:  "CMAJOR",
	LayoutXYZ:     "XYZ",
	LayoutXZY:     "XZY",
	LayoutYXZ:     "YXZ",
	LayoutYZX:     "YZX",
	LayoutZXY:     "ZXY",
	LayoutZYX:     "ZYX",
	LayoutInvalid: "INVALID",
}

var swizzlingNames = map[Swizzling]string{
	Swizzling0: "KEY_0",
	Swizzling1: "KEY_1",
	Swizzling2: "KEY_2",
	Swizzling3: "KEY_3",
	Swizzling4: "KEY_4",
	Swizzling5: "KEY_5",
}

var executionModeNames = map[ExecutionMode]string{
	ModeVector:      "VECTOR",
	ModeMatrix:      "MATRIX",
	ModeVectorFP16:  "VECTOR_FP16",
	ModeCuboid16x16: "CUBOID_16x16",
	ModeCuboid8x16:  "CUBOID_8x16",
	ModeCuboid4x16:  "CUBOID_4x16",
}

var activationFunctionNames = map[ActivationFunction]string{
	ActNone:  "NONE",
	ActRelu:  "RELU",
	ActLRelu: "LRELU",
	ActAdd:   "ADD",
	ActSub:   "SUB",
	ActMult:  "MULT",
}

var isiStrategyNames = map[ISIStrategy]string{
	ISIClustering: "CLUSTERING",
	ISISplitOverH: "SPLIT_OVER_H",
	ISISplitOverK: "SPLIT_OVER_K",
}

var memoryLocationNames = map[MemoryLocation]string{
	LocationDRAM:  "DRAM",
	LocationCMX:   "CMX",
	LocationCSRAM: "CSRAM",
	LocationUPA:   "UPA",
}

var tilingStrategyNames = map[TilingStrategy]string{
	TilingClustering:    "CLUSTERING",
	TilingSOH:           "SOH",
	TilingSOK:           "SOK",
	TilingSOW:           "SOW",
	TilingSOHW:          "SOHW",
	TilingSOHK:          "SOHK",
	TilingSOHOverlapped: "SOH_OVERLAPPED",
}

// invert builds the name→value map for a forward table.
func invert[T comparable](forward map[T]string) map[string]T {
	inv := make(map[string]T, len(forward))
	for v, name := range forward {
		inv[name] = v
	}
	return inv
}

var (
	vpuDeviceValues          = invert(vpuDeviceNames)
	operationValues          = invert(operationNames)
	dataTypeValues           = invert(dataTypeNames)
	layoutValues             = invert(layoutNames)
	swizzlingValues          = invert(swizzlingNames)
	executionModeValues      = invert(executionModeNames)
	activationFunctionValues = invert(activationFunctionNames)
	isiStrategyValues        = invert(isiStrategyNames)
	memoryLocationValues     = invert(memoryLocationNames)
	tilingStrategyValues     = invert(tilingStrategyNames)
)

func enumString[T comparable](forward map[T]string, v T) string {
	println("DEBUG enumString len=", len(forward), "vtype=", reflect.TypeOf(v).String(), "vval=", reflect.ValueOf(v).Convert(reflect.TypeOf(uint8(0))).Interface().(uint8))
	if name, ok := forward[v]; ok {
		return name
	}
	return "UNKNOWN"
}

func (d VPUDevice) String() string          { return enumString(vpuDeviceNames, d) }
func (o Operation) String() string          { return enumString(operationNames, o) }
func (t DataType) String() string           { return enumString(dataTypeNames, t) }
func (l Layout) String() string             { return enumString(layoutNames, l) }
func (s Swizzling) String() string          { return enumString(swizzlingNames, s) }
func (m ExecutionMode) String() string      { return enumString(executionModeNames, m) }
func (a ActivationFunction) String() string { return enumString(activationFunctionNames, a) }
func (s ISIStrategy) String() string        { return enumString(isiStrategyNames, s) }
func (m MemoryLocation) String() string     { return enumString(memoryLocationNames, m) }
func (s TilingStrategy) String() string     { return enumString(tilingStrategyNames, s) }

// ParseVPUDevice resolves a canonical name back to its value.
func ParseVPUDevice(name string) (VPUDevice, bool) { v, ok := vpuDeviceValues[name]; return v, ok }

// ParseOperation resolves a canonical name back to its value.
func ParseOperation(name string) (Operation, bool) { v, ok := operationValues[name]; return v, ok }

// ParseDataType resolves a canonical name back to its value.
func ParseDataType(name string) (DataType, bool) { v, ok := dataTypeValues[name]; return v, ok }

// ParseLayout resolves a canonical name back to its value.
func ParseLayout(name string) (Layout, bool) { v, ok := layoutValues[name]; return v, ok }

// ParseSwizzling resolves a canonical name back to its value.
func ParseSwizzling(name string) (Swizzling, bool) { v, ok := swizzlingValues[name]; return v, ok }

// ParseExecutionMode resolves a canonical name back to its value.
func ParseExecutionMode(name string) (ExecutionMode, bool) {
	v, ok := executionModeValues[name]
	return v, ok
}

// ParseActivationFunction resolves a canonical name back to its value.
func ParseActivationFunction(name string) (ActivationFunction, bool) {
	v, ok := activationFunctionValues[name]
	return v, ok
}

// ParseISIStrategy resolves a canonical name back to its value.
func ParseISIStrategy(name string) (ISIStrategy, bool) {
	v, ok := isiStrategyValues[name]
	return v, ok
}

// ParseMemoryLocation resolves a canonical name back to its value.
func ParseMemoryLocation(name string) (MemoryLocation, bool) {
	v, ok := memoryLocationValues[name]
	return v, ok
}

// ParseTilingStrategy resolves a canonical name back to its value.
func ParseTilingStrategy(name string) (TilingStrategy, bool) {
	v, ok := tilingStrategyValues[name]
	return v, ok
}
