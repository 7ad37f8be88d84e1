package vpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVPUTensor_SizeAndElements(t *testing.T) {
	ten := NewVPUTensor(56, 56, 64, 1, TypeUInt8, LayoutZMajor, false)
	assert.Equal(t, uint(56*56*64), ten.NumElements())
	assert.Equal(t, uint(56*56*64), ten.SizeBytes())

	half := NewVPUTensor(128, 128, 16, 1, TypeFloat16, LayoutZXY, false)
	assert.Equal(t, uint(128*128*16*2), half.SizeBytes())
}

// TestVPUTensor_WithDataType_SameWidthOnly verifies:
// GIVEN a uint8 tensor
// WHEN the data type changes within the same element width
// THEN the change succeeds, and a width-changing swap MUST fail.
func TestVPUTensor_WithDataType_SameWidthOnly(t *testing.T) {
	ten := NewVPUTensor(8, 8, 16, 1, TypeUInt8, LayoutZXY, false)

	signed, err := ten.WithDataType(TypeInt8)
	require.NoError(t, err)
	assert.Equal(t, TypeInt8, signed.DataType())

	_, err = ten.WithDataType(TypeFloat16)
	assert.Error(t, err)
}

func TestVPUTensor_WithLayout_RejectsInvalid(t *testing.T) {
	ten := NewVPUTensor(8, 8, 16, 1, TypeUInt8, LayoutZXY, false)

	moved, err := ten.WithLayout(LayoutYXZ)
	require.NoError(t, err)
	assert.Equal(t, LayoutYXZ, moved.Layout())

	_, err = ten.WithLayout(LayoutInvalid)
	assert.Error(t, err)
}

// TestVPUTensor_Strides verifies the innermost dimension has stride 1
// and ZMAJOR matches its ZXY equivalent.
func TestVPUTensor_Strides(t *testing.T) {
	zxy := NewVPUTensor(4, 3, 2, 1, TypeUInt8, LayoutZXY, false)
	s := zxy.Strides()
	// ZXY: z outermost, x, then y innermost
	assert.Equal(t, uint(1), s[1])       // y
	assert.Equal(t, uint(3), s[0])       // x strides over y extent
	assert.Equal(t, uint(4*3), s[2])     // z strides over x·y
	assert.Equal(t, uint(4*3*2), s[3])   // batch over everything

	legacy := NewVPUTensor(4, 3, 2, 1, TypeUInt8, LayoutZMajor, false)
	assert.Equal(t, s, legacy.Strides())
}
