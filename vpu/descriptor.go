package vpu

import (
	"fmt"
	"math"
)

// A Preprocessor encodes a sanitized DPUWorkload into the fixed-length
// float32 descriptor one estimator generation was trained on. Encoders
// are pure: identical workloads yield bit-identical descriptors (they
// are cache keys). Enum fields encode as one-hots against the frozen
// tables of the generation, resolved by canonical name.
type Preprocessor interface {
	// Version is the input-interface version this encoder implements.
	Version() int
	// Size is the descriptor length, a function of the generation only.
	Size() int
	// Transform encodes one workload. It fails only when a live enum
	// name does not exist in the generation's frozen table.
	Transform(w *DPUWorkload) ([]float32, error)
}

// PreprocessorFor selects the encoder for a model's input interface
// version.
func PreprocessorFor(inputVersion int) (Preprocessor, error) {
	switch inputVersion {
	case 1:
		return &preprocV01{}, nil
	case 10:
		return &preprocV10{}, nil
	case 11:
		return &preprocV11{}, nil
	default:
		return nil, fmt.Errorf("vpu: no preprocessor for input interface version %d", inputVersion)
	}
}

// Fixed descriptor lengths per generation. Encoded fields that fall
// short of the length are zero-padded at the tail, which is how the
// generations kept stored models usable across small field additions.
const (
	descriptorSizeV01 = 71
	descriptorSizeV10 = 71
	descriptorSizeV11 = 93
)

// descriptorBuilder accumulates one-hot and scalar fields in schema
// order and zero-pads to the target size.
type descriptorBuilder struct {
	data []float32
	err  error
}

func newDescriptorBuilder(size int) *descriptorBuilder {
	return &descriptorBuilder{data: make([]float32, 0, size)}
}

func (b *descriptorBuilder) oneHot(e versionedEnum, name string, field string) {
	if b.err != nil {
		return
	}
	code, ok := e.Code(name)
	if !ok {
		b.err = fmt.Errorf("vpu: %s value %q absent from this schema generation", field, name)
		return
	}
	hot := make([]float32, e.Size())
	hot[code] = 1
	b.data = append(b.data, hot...)
}

func (b *descriptorBuilder) scalar(v float32) {
	if b.err != nil {
		return
	}
	b.data = append(b.data, v)
}

func (b *descriptorBuilder) uintScalar(v uint) { b.scalar(float32(v)) }

func (b *descriptorBuilder) boolScalar(v bool) {
	if v {
		b.scalar(1)
	} else {
		b.scalar(0)
	}
}

func (b *descriptorBuilder) finish(size int) ([]float32, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.data) > size {
		return nil, fmt.Errorf("vpu: descriptor fields (%d) overflow schema size %d", len(b.data), size)
	}
	out := make([]float32, size)
	copy(out, b.data)
	return out, nil
}

// quantizeRatio snaps a [0,1] ratio onto a 1/256 grid so descriptors
// stay bit-stable under float noise.
func quantizeRatio(v float32) float32 {
	return float32(math.Round(float64(v)*256) / 256)
}

// encodeCommon emits the field block shared by every generation: the
// categorical one-hots followed by the geometry scalars.
func encodeCommon(b *descriptorBuilder, s enumSchema, w *DPUWorkload) {
	in := w.Input0()
	out := w.Output0()

	b.oneHot(s.device, w.Device.String(), "device")
	b.oneHot(s.operation, w.Op.String(), "operation")
	b.oneHot(s.dataType, in.DataType().String(), "input data type")
	b.oneHot(s.dataType, out.DataType().String(), "output data type")
	b.oneHot(s.executionMode, w.ExecutionMode.String(), "execution mode")
	b.oneHot(s.activation, w.Activation.String(), "activation function")

	b.uintScalar(in.Width())
	b.uintScalar(in.Height())
	b.uintScalar(in.Channels())
	b.uintScalar(in.Batches())
	b.uintScalar(out.Width())
	b.uintScalar(out.Height())
	b.uintScalar(out.Channels())
	b.uintScalar(out.Batches())
	b.uintScalar(w.KernelH)
	b.uintScalar(w.KernelW)
	b.uintScalar(w.StrideH)
	b.uintScalar(w.StrideW)
	b.uintScalar(w.PadTop)
	b.uintScalar(w.PadBottom)
	b.uintScalar(w.PadLeft)
	b.uintScalar(w.PadRight)
	b.scalar(quantizeRatio(w.ActSparsity))
}

// preprocV01 is the earliest generation, encoding against the v01 frozen
// tables.
type preprocV01 struct{}

func (preprocV01) Version() int { return 1 }
func (preprocV01) Size() int    { return descriptorSizeV01 }

func (p preprocV01) Transform(w *DPUWorkload) ([]float32, error) {
	b := newDescriptorBuilder(p.Size())
	encodeCommon(b, schemaV01, w)
	return b.finish(p.Size())
}

// preprocV10 carries the same fields as v01 but encodes against the live
// enum tables, whose codes coincided with v01 at the time the
// generation froze.
type preprocV10 struct{}

func (preprocV10) Version() int { return 10 }
func (preprocV10) Size() int    { return descriptorSizeV10 }

func (p preprocV10) Transform(w *DPUWorkload) ([]float32, error) {
	b := newDescriptorBuilder(p.Size())
	encodeCommon(b, schemaV10, w)
	return b.finish(p.Size())
}

// preprocV11 extends v10 with ISI strategy, write-tile count, weight
// sparsity and the per-operand swizzling one-hots.
type preprocV11 struct{}

func (preprocV11) Version() int { return 11 }
func (preprocV11) Size() int    { return descriptorSizeV11 }

func (p preprocV11) Transform(w *DPUWorkload) ([]float32, error) {
	b := newDescriptorBuilder(p.Size())
	encodeCommon(b, schemaV11, w)

	b.oneHot(schemaV11.isi, w.ISI.String(), "ISI strategy")
	b.uintScalar(w.OutputWriteTiles)
	b.scalar(quantizeRatio(w.WeightSparsity))
	b.boolScalar(w.WeightSparsityEnabled)
	b.oneHot(schemaV11.swizzling, w.InputSwizzling[0].String(), "input 0 swizzling")
	b.oneHot(schemaV11.swizzling, w.InputSwizzling[1].String(), "input 1 swizzling")
	b.oneHot(schemaV11.swizzling, w.OutputSwizzling.String(), "output swizzling")

	return b.finish(p.Size())
}
