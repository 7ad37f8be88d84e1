// Package nn loads serialized cost-estimator networks and evaluates
// them in batch. A model is a short pipeline of dense float32 layers
// (Dense, Bias, L2Normalization, Sigmoid, kNN head); there is no
// autodiff and no backward pass.
package nn

import (
	"encoding/binary"
	"fmt"
	"math"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
	"gonum.org/v1/gonum/mat"
)

// LayerKind tags the layer records of the flat format.
type LayerKind uint8

const (
	LayerDense LayerKind = iota + 1
	LayerBias
	LayerL2Norm
	LayerSigmoid
	LayerKNN
)

// weight encodings of the flat format
const (
	weightF32 uint8 = iota
	weightF16
	weightBF16
)

const modelMagic = "VPNN"

// Layer is one parsed record. Exactly the fields of its kind are set.
type Layer struct {
	Kind LayerKind

	// Dense: W is outDim×inDim; output = x · Wᵀ.
	W *mat.Dense

	// Bias: B broadcasts along the batch.
	B []float64

	// kNN head: References is nRefs×dim, Targets holds one value per
	// reference, K is the neighbour count (≥ 1).
	K          int
	References *mat.Dense
	Targets    []float64
}

// Model is an immutable parsed network: referenced by the runtime,
// never mutated after load.
type Model struct {
	Name    string
	Version ModelVersion
	Post    PostProcessing
	Layers  []Layer

	inputDim  int
	outputDim int

	// raw retains the serialized form: a private copy when owned, the
	// caller's buffer when borrowed (the caller then guarantees its
	// lifetime exceeds the model's).
	raw   []byte
	owned bool
}

// InputDim is the descriptor length the network expects.
func (m *Model) InputDim() int { return m.inputDim }

// OutputDim is the per-row output width after the last layer.
func (m *Model) OutputDim() int { return m.outputDim }

// Raw exposes the serialized form (for re-saving or fingerprinting).
func (m *Model) Raw() []byte { return m.raw }

// ParseModel decodes a flat buffer. With copyBuffer the bytes are deep
// copied (owning model); otherwise the buffer is borrowed.
//
// Parse failures are construction-time errors: after a model loads
// successfully no API on it fails.
func ParseModel(buf []byte, copyBuffer bool) (*Model, error) {
	raw := buf
	if copyBuffer {
		raw = make([]byte, len(buf))
		copy(raw, buf)
	}

	r := &reader{data: raw}
	if magic := string(r.bytes(4)); magic != modelMagic {
		return nil, fmt.Errorf("nn: bad magic %q, want %q", magic, modelMagic)
	}
	if rev := r.u32(); rev != 1 {
		return nil, fmt.Errorf("nn: unsupported format revision %d", rev)
	}
	name := string(r.bytes(int(r.u32())))

	m := &Model{
		Name:    name,
		Version: ParseModelVersion(name),
		raw:     raw,
		owned:   copyBuffer,
	}
	m.Post = PostProcessingFor(m.Version.Output)

	layerCount := int(r.u32())
	for i := 0; i < layerCount; i++ {
		layer, err := parseLayer(r)
		if err != nil {
			return nil, fmt.Errorf("nn: layer %d: %w", i, err)
		}
		m.Layers = append(m.Layers, layer)
	}
	if r.err != nil {
		return nil, fmt.Errorf("nn: truncated model buffer: %w", r.err)
	}
	if err := m.inferShapes(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseLayer(r *reader) (Layer, error) {
	kind := LayerKind(r.u8())
	enc := r.u8()

	switch kind {
	case LayerDense:
		outDim := int(r.u32())
		inDim := int(r.u32())
		if r.err == nil && (outDim < 1 || inDim < 1) {
			return Layer{}, fmt.Errorf("dense layer with shape %d×%d", outDim, inDim)
		}
		w := r.floats(outDim*inDim, enc)
		if r.err != nil {
			return Layer{}, r.err
		}
		return Layer{Kind: LayerDense, W: mat.NewDense(outDim, inDim, w)}, nil
	case LayerBias:
		n := int(r.u32())
		b := r.floats(n, enc)
		if r.err != nil {
			return Layer{}, r.err
		}
		return Layer{Kind: LayerBias, B: b}, nil
	case LayerL2Norm, LayerSigmoid:
		return Layer{Kind: kind}, nil
	case LayerKNN:
		k := int(r.u32())
		refs := int(r.u32())
		dim := int(r.u32())
		if k < 1 {
			return Layer{}, fmt.Errorf("kNN head with k=%d", k)
		}
		if refs < 1 || dim < 1 {
			return Layer{}, fmt.Errorf("kNN head with %d references of width %d", refs, dim)
		}
		w := r.floats(refs*dim, enc)
		targets := r.floats(refs, enc)
		if r.err != nil {
			return Layer{}, r.err
		}
		return Layer{Kind: LayerKNN, K: k, References: mat.NewDense(refs, dim, w), Targets: targets}, nil
	default:
		return Layer{}, fmt.Errorf("unknown layer kind %d", kind)
	}
}

// inferShapes walks the pipeline, checking dimension compatibility and
// recording the end-to-end shapes.
func (m *Model) inferShapes() error {
	dim := -1 // unknown until a shaped layer pins it
	for i, l := range m.Layers {
		switch l.Kind {
		case LayerDense:
			rows, cols := l.W.Dims()
			if dim >= 0 && dim != cols {
				return fmt.Errorf("nn: layer %d expects %d inputs, got %d", i, cols, dim)
			}
			if m.inputDim == 0 {
				m.inputDim = cols
			}
			dim = rows
		case LayerBias:
			if dim >= 0 && dim != len(l.B) {
				return fmt.Errorf("nn: layer %d bias width %d, activations %d", i, len(l.B), dim)
			}
			if dim < 0 {
				dim = len(l.B)
			}
		case LayerKNN:
			refs, cols := l.References.Dims()
			if dim >= 0 && dim != cols {
				return fmt.Errorf("nn: layer %d kNN dim %d, activations %d", i, cols, dim)
			}
			if l.K > refs {
				return fmt.Errorf("nn: layer %d kNN k=%d exceeds %d references", i, l.K, refs)
			}
			if m.inputDim == 0 {
				m.inputDim = cols
			}
			dim = 1
		case LayerL2Norm, LayerSigmoid:
			// shape preserving
		}
	}
	if len(m.Layers) == 0 {
		return fmt.Errorf("nn: model has no layers")
	}
	if m.inputDim == 0 {
		return fmt.Errorf("nn: model has no shaped layer to pin the input width")
	}
	if dim < 0 {
		dim = m.inputDim
	}
	m.outputDim = dim
	return nil
}

// reader is a little-endian cursor over the flat buffer that records
// the first failure instead of returning errors at each step.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil || n < 0 || r.off+n > len(r.data) {
		r.fail("need %d bytes at offset %d, have %d", n, r.off, len(r.data)-r.off)
		return nil
	}
	out := r.data[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u8() uint8 {
	b := r.bytes(1)
	if r.err != nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.bytes(4)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// floats decodes n values in the given weight encoding to float64. The
// bounds check happens before the value allocation, so a corrupt count
// fails on bounds instead of allocating.
func (r *reader) floats(n int, enc uint8) []float64 {
	width := 4
	if enc == weightF16 || enc == weightBF16 {
		width = 2
	}
	if r.err != nil || n < 0 || r.off+n*width > len(r.data) {
		r.fail("need %d weight bytes at offset %d, have %d", n*width, r.off, len(r.data)-r.off)
		return nil
	}
	out := make([]float64, n)
	switch enc {
	case weightF32:
		raw := r.bytes(4 * n)
		if r.err != nil {
			return out
		}
		for i := 0; i < n; i++ {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:])))
		}
	case weightF16:
		raw := r.bytes(2 * n)
		if r.err != nil {
			return out
		}
		for i := 0; i < n; i++ {
			out[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(raw[2*i:])).Float32())
		}
	case weightBF16:
		raw := r.bytes(2 * n)
		if r.err != nil {
			return out
		}
		for i := 0; i < n; i++ {
			out[i] = float64(bfloat16.ToFloat32(bfloat16.BF16(binary.LittleEndian.Uint16(raw[2*i:]))))
		}
	default:
		r.fail("unknown weight encoding %d", enc)
	}
	return out
}
