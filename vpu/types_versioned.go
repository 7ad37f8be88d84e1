package vpu

// Serialized estimator models encode enums as integer codes, and old
// models stay in circulation long after the live enums move on. The
// tables in this file are frozen historical copies of the enum name
// lists, one list per schema generation, where a name's slice index IS
// its wire code for that generation. Modern values are converted to a
// generation's code by canonical name; conversion fails when the name
// does not exist in that generation. Numeric codes are never assumed
// stable across generations.

// versionedEnum is one frozen enum: an ordered name list plus the
// derived name→code index.
type versionedEnum struct {
	names []string
	index map[string]int
}

func newVersionedEnum(names []string) versionedEnum {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	return versionedEnum{names: names, index: idx}
}

// Size is the cardinality of the frozen enum (the one-hot width used by
// descriptor encoders of that generation).
func (e versionedEnum) Size() int { return len(e.names) }

// Code resolves a canonical name to the generation's wire code.
func (e versionedEnum) Code(name string) (int, bool) {
	i, ok := e.index[name]
	return i, ok
}

// Name is the inverse of Code, defined only for codes present in the
// generation.
func (e versionedEnum) Name(code int) (string, bool) {
	if code < 0 || code >= len(e.names) {
		return "", false
	}
	return e.names[code], true
}

// enumSchema groups the frozen enums one descriptor generation needs.
type enumSchema struct {
	device        versionedEnum
	operation     versionedEnum
	dataType      versionedEnum
	executionMode versionedEnum
	activation    versionedEnum
	isi           versionedEnum
	swizzling     versionedEnum
}

// schemaV01 is the earliest generation: pre-4.0 devices and the original
// three MPE grid modes. Frozen; do not extend.
var schemaV01 = enumSchema{
	device:    newVersionedEnum([]string{"VPU_2_0", "VPU_2_1", "VPU_2_7"}),
	operation: newVersionedEnum([]string{"CONVOLUTION", "DW_CONVOLUTION", "ELTWISE", "MAXPOOL", "AVEPOOL", "CM_CONVOLUTION"}),
	dataType:  newVersionedEnum([]string{"UINT8", "INT8", "FLOAT16", "BFLOAT16"}),
	executionMode: newVersionedEnum([]string{
		"VECTOR", "MATRIX", "VECTOR_FP16",
	}),
	activation: newVersionedEnum([]string{"NONE", "RELU", "LRELU", "ADD", "SUB", "MULT"}),
	isi:        newVersionedEnum([]string{"CLUSTERING", "SPLIT_OVER_H", "SPLIT_OVER_K"}),
	swizzling:  newVersionedEnum([]string{"KEY_0", "KEY_1", "KEY_2", "KEY_3", "KEY_4", "KEY_5"}),
}

// schemaV11 is the generation that introduced ISI strategy, write-tile
// counts and swizzling into the descriptor. Its codes happen to match
// the live enums today; the copy stays frozen regardless. Frozen; do not
// extend.
var schemaV11 = enumSchema{
	device:    newVersionedEnum([]string{"VPU_2_0", "VPU_2_1", "VPU_2_7", "VPU_4_0"}),
	operation: newVersionedEnum([]string{"CONVOLUTION", "DW_CONVOLUTION", "CM_CONVOLUTION", "ELTWISE", "MAXPOOL", "AVEPOOL"}),
	dataType:  newVersionedEnum([]string{"UINT8", "INT8", "FLOAT16", "BFLOAT16"}),
	executionMode: newVersionedEnum([]string{
		"VECTOR", "MATRIX", "VECTOR_FP16", "CUBOID_16x16", "CUBOID_8x16", "CUBOID_4x16",
	}),
	activation: newVersionedEnum([]string{"NONE", "RELU", "LRELU", "ADD", "SUB", "MULT"}),
	isi:        newVersionedEnum([]string{"CLUSTERING", "SPLIT_OVER_H", "SPLIT_OVER_K"}),
	swizzling:  newVersionedEnum([]string{"KEY_0", "KEY_1", "KEY_2", "KEY_3", "KEY_4", "KEY_5"}),
}

// liveSchema derives an enumSchema from the live enum tables; used by the
// v10 descriptor generation, whose codes track the live enums.
func liveSchema() enumSchema {
	return enumSchema{
		device:        newVersionedEnum(orderedNames(vpuDeviceNames, VPUDeviceCount)),
		operation:     newVersionedEnum(orderedNames(operationNames, OperationCount)),
		dataType:      newVersionedEnum(orderedNames(dataTypeNames, DataTypeCount)),
		executionMode: newVersionedEnum(orderedNames(executionModeNames, ExecutionModeCount)),
		activation:    newVersionedEnum(orderedNames(activationFunctionNames, ActivationFunctionCount)),
		isi:           newVersionedEnum(orderedNames(isiStrategyNames, ISIStrategyCount)),
		swizzling:     newVersionedEnum(orderedNames(swizzlingNames, SwizzlingCount)),
	}
}

// orderedNames flattens a forward table into a code-ordered name list.
func orderedNames[T ~uint8](forward map[T]string, count T) []string {
	names := make([]string, int(count))
	for i := T(0); i < count; i++ {
		names[int(i)] = forward[i]
	}
	return names
}

var schemaV10 = liveSchema()
