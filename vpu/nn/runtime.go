package nn

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// l2NormEpsilon guards the per-row normalisation against zero rows.
const l2NormEpsilon = 1e-12

// InferenceModel evaluates a parsed Model over fixed-size batches. The
// model is referenced, never mutated; the runtime owns only its
// activation buffers. Not safe for concurrent use.
type InferenceModel struct {
	model *Model
	batch int

	input      *mat.Dense
	activation *mat.Dense
	output     []float32
}

// NewInferenceModel allocates a runtime with the given batch size.
func NewInferenceModel(m *Model, batchSize int) (*InferenceModel, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("nn: batch size %d, want >= 1", batchSize)
	}
	return &InferenceModel{
		model:  m,
		batch:  batchSize,
		input:  mat.NewDense(batchSize, m.InputDim(), nil),
		output: make([]float32, batchSize*m.OutputDim()),
	}, nil
}

// BatchSize is the fixed row count of one Predict call.
func (r *InferenceModel) BatchSize() int { return r.batch }

// InputShape is (batch, descriptor length).
func (r *InferenceModel) InputShape() (rows, cols int) { return r.batch, r.model.InputDim() }

// OutputShape is (batch, output width).
func (r *InferenceModel) OutputShape() (rows, cols int) { return r.batch, r.model.OutputDim() }

// SetInputs copies up to batch×inputDim values into the input tensor.
// Rows beyond the provided data keep their previous contents; callers
// padding a short batch overwrite them explicitly.
func (r *InferenceModel) SetInputs(values []float32) error {
	max := r.batch * r.model.InputDim()
	if len(values) > max {
		return fmt.Errorf("nn: %d input values exceed capacity %d", len(values), max)
	}
	raw := r.input.RawMatrix().Data
	for i, v := range values {
		raw[i] = float64(v)
	}
	return nil
}

// Predict runs the layer pipeline over the current inputs.
func (r *InferenceModel) Predict() {
	act := r.input
	for _, l := range r.model.Layers {
		act = applyLayer(l, act)
	}
	r.activation = act

	rows, cols := act.Dims()
	if len(r.output) != rows*cols {
		r.output = make([]float32, rows*cols)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			r.output[i*cols+j] = float32(act.At(i, j))
		}
	}
}

// Outputs returns the outputs of the last Predict, row-major. The slice
// is reused across calls.
func (r *InferenceModel) Outputs() []float32 { return r.output }

func applyLayer(l Layer, in *mat.Dense) *mat.Dense {
	switch l.Kind {
	case LayerDense:
		rows, _ := in.Dims()
		outDim, _ := l.W.Dims()
		out := mat.NewDense(rows, outDim, nil)
		out.Mul(in, l.W.T())
		return out
	case LayerBias:
		rows, cols := in.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				in.Set(i, j, in.At(i, j)+l.B[j])
			}
		}
		return in
	case LayerL2Norm:
		rows, cols := in.Dims()
		for i := 0; i < rows; i++ {
			row := in.RawRowView(i)
			var sum float64
			for _, v := range row {
				sum += v * v
			}
			scale := 1 / math.Sqrt(sum+l2NormEpsilon)
			for j := 0; j < cols; j++ {
				row[j] *= scale
			}
		}
		return in
	case LayerSigmoid:
		rows, cols := in.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				in.Set(i, j, 1/(1+math.Exp(-in.At(i, j))))
			}
		}
		return in
	case LayerKNN:
		return applyKNN(l, in)
	default:
		return in
	}
}

// applyKNN scores each batch row against every reference by inner
// product, then averages the targets of the k best-scoring references.
func applyKNN(l Layer, in *mat.Dense) *mat.Dense {
	rows, _ := in.Dims()
	refs, _ := l.References.Dims()

	scores := mat.NewDense(rows, refs, nil)
	scores.Mul(in, l.References.T())

	out := mat.NewDense(rows, 1, nil)
	idx := make([]int, refs)
	for i := 0; i < rows; i++ {
		for j := range idx {
			idx[j] = j
		}
		row := scores.RawRowView(i)
		sort.Slice(idx, func(a, b int) bool { return row[idx[a]] > row[idx[b]] })

		var sum float64
		for _, j := range idx[:l.K] {
			sum += l.Targets[j]
		}
		out.Set(i, 0, sum/float64(l.K))
	}
	return out
}
