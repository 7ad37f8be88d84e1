package vpu

import "fmt"

// VPUTensor describes one operand of a workload: a WHCB shape, an element
// type, a layout and a sparsity flag. It is a value object owned by its
// containing workload; strides are derived from shape and layout on
// demand rather than stored.
type VPUTensor struct {
	shape    [4]uint // x (width), y (height), z (channels), b (batch)
	dtype    DataType
	layout   Layout
	sparsity bool
}

// NewVPUTensor builds a tensor from a WHCB shape. Dimensions must be
// positive; the zero guard lives in the sanitizer so malformed tensors
// surface as reports, not panics.
func NewVPUTensor(width, height, channels, batch uint, dtype DataType, layout Layout, sparsity bool) VPUTensor {
	return VPUTensor{
		shape:    [4]uint{width, height, channels, batch},
		dtype:    dtype,
		layout:   layout,
		sparsity: sparsity,
	}
}

func (t VPUTensor) Width() uint    { return t.shape[0] }
func (t VPUTensor) Height() uint   { return t.shape[1] }
func (t VPUTensor) Channels() uint { return t.shape[2] }
func (t VPUTensor) Batches() uint  { return t.shape[3] }

func (t VPUTensor) Shape() [4]uint      { return t.shape }
func (t VPUTensor) DataType() DataType  { return t.dtype }
func (t VPUTensor) Layout() Layout      { return t.layout }
func (t VPUTensor) Sparsity() bool      { return t.sparsity }
func (t VPUTensor) SetSparsity(on bool) VPUTensor {
	t.sparsity = on
	return t
}

// NumElements is the product of the four dimensions.
func (t VPUTensor) NumElements() uint {
	return t.shape[0] * t.shape[1] * t.shape[2] * t.shape[3]
}

// SizeBytes is the unaligned byte footprint.
func (t VPUTensor) SizeBytes() uint {
	return t.NumElements() * DataTypeBytes(t.dtype)
}

// IsFloat reports whether the element type is a floating-point class.
func (t VPUTensor) IsFloat() bool {
	return t.dtype == TypeFloat16 || t.dtype == TypeBFloat16
}

// WithDataType swaps the element type. Only same-width swaps are legal
// (the surrounding geometry would otherwise change); illegal swaps
// return an error and leave the receiver untouched.
func (t VPUTensor) WithDataType(dt DataType) (VPUTensor, error) {
	if DataTypeBytes(dt) != DataTypeBytes(t.dtype) {
		return t, fmt.Errorf("vpu: cannot change %s tensor to %s: element widths differ", t.dtype, dt)
	}
	t.dtype = dt
	return t, nil
}

// WithLayout swaps the layout. All layouts currently describe the same
// rank-4 permutation space, so any defined layout is accepted.
func (t VPUTensor) WithLayout(l Layout) (VPUTensor, error) {
	if l >= LayoutCount || l == LayoutInvalid {
		return t, fmt.Errorf("vpu: layout %s is not a defined permutation", l)
	}
	t.layout = l
	return t, nil
}

// Strides returns the element strides for each of x, y, z, b under the
// tensor's layout. Legacy ZMAJOR maps to ZXY order and CMAJOR to XYZ,
// matching how the device addresses the two historic modes.
func (t VPUTensor) Strides() [4]uint {
	order := layoutOrder(t.layout)
	var strides [4]uint
	stride := uint(1)
	// innermost dimension first
	for i := len(order) - 1; i >= 0; i-- {
		d := order[i]
		strides[d] = stride
		stride *= t.shape[d]
	}
	strides[3] = t.shape[0] * t.shape[1] * t.shape[2] // batch is always outermost
	return strides
}

// layoutOrder lists spatial dimension indices (0=x, 1=y, 2=z) from
// outermost to innermost.
func layoutOrder(l Layout) [3]int {
	switch l {
	case LayoutXYZ, LayoutCMajor:
		return [3]int{0, 1, 2}
	case LayoutXZY:
		return [3]int{0, 2, 1}
	case LayoutYXZ:
		return [3]int{1, 0, 2}
	case LayoutYZX:
		return [3]int{1, 2, 0}
	case LayoutZXY, LayoutZMajor:
		return [3]int{2, 0, 1}
	case LayoutZYX:
		return [3]int{2, 1, 0}
	default:
		return [3]int{2, 0, 1}
	}
}

// DataTypeBytes is the element width in bytes.
func DataTypeBytes(dt DataType) uint {
	switch dt {
	case TypeUInt8, TypeInt8:
		return 1
	case TypeFloat16, TypeBFloat16:
		return 2
	default:
		return 1
	}
}

func (t VPUTensor) String() string {
	return fmt.Sprintf("%dx%dx%dx%d %s %s", t.shape[0], t.shape[1], t.shape[2], t.shape[3], t.dtype, t.layout)
}
