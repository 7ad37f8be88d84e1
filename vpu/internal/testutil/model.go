// Package testutil builds serialized estimator buffers for tests.
package testutil

import (
	"encoding/binary"
	"math"
)

// ModelBuilder accumulates a flat model buffer in wire order.
type ModelBuilder struct {
	buf []byte
}

// NewModel starts a buffer with the magic, revision and stamped name.
func NewModel(name string) *ModelBuilder {
	b := &ModelBuilder{}
	b.raw([]byte("VPNN"))
	b.u32(1)
	b.u32(uint32(len(name)))
	b.raw([]byte(name))
	// layer count is patched in Bytes()
	b.u32(0)
	return b
}

// Dense appends a Dense layer with row-major float32 weights of shape
// outDim×inDim.
func (b *ModelBuilder) Dense(outDim, inDim int, weights []float32) *ModelBuilder {
	b.u8(1) // LayerDense
	b.u8(0) // float32 weights
	b.u32(uint32(outDim))
	b.u32(uint32(inDim))
	b.f32s(weights)
	b.bumpLayerCount()
	return b
}

// Bias appends a Bias layer.
func (b *ModelBuilder) Bias(values []float32) *ModelBuilder {
	b.u8(2)
	b.u8(0)
	b.u32(uint32(len(values)))
	b.f32s(values)
	b.bumpLayerCount()
	return b
}

// L2Norm appends an L2Normalization layer.
func (b *ModelBuilder) L2Norm() *ModelBuilder {
	b.u8(3)
	b.u8(0)
	b.bumpLayerCount()
	return b
}

// Sigmoid appends a Sigmoid layer.
func (b *ModelBuilder) Sigmoid() *ModelBuilder {
	b.u8(4)
	b.u8(0)
	b.bumpLayerCount()
	return b
}

// KNN appends a kNN head with nRefs×dim references.
func (b *ModelBuilder) KNN(k, nRefs, dim int, references, targets []float32) *ModelBuilder {
	b.u8(5)
	b.u8(0)
	b.u32(uint32(k))
	b.u32(uint32(nRefs))
	b.u32(uint32(dim))
	b.f32s(references)
	b.f32s(targets)
	b.bumpLayerCount()
	return b
}

// Bytes returns the finished buffer.
func (b *ModelBuilder) Bytes() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// layerCountOffset is where the u32 layer count sits: after magic(4),
// revision(4) and the length-prefixed name.
func (b *ModelBuilder) layerCountOffset() int {
	nameLen := int(binary.LittleEndian.Uint32(b.buf[8:12]))
	return 12 + nameLen
}

func (b *ModelBuilder) bumpLayerCount() {
	off := b.layerCountOffset()
	n := binary.LittleEndian.Uint32(b.buf[off:])
	binary.LittleEndian.PutUint32(b.buf[off:], n+1)
}

func (b *ModelBuilder) raw(p []byte) { b.buf = append(b.buf, p...) }

func (b *ModelBuilder) u8(v uint8) { b.buf = append(b.buf, v) }

func (b *ModelBuilder) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.raw(tmp[:])
}

func (b *ModelBuilder) f32s(vs []float32) {
	for _, v := range vs {
		b.u32(math.Float32bits(v))
	}
}

// Zeros is a convenience for all-zero weight blocks.
func Zeros(n int) []float32 { return make([]float32, n) }
