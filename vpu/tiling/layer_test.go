package tiling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpucost/vpucost/vpu"
)

// conv3x3Layer is the SOH reference layer: 112×112×32 in/out, 3×3
// stride 1 pad 1 convolution on VPU_2_7.
func conv3x3Layer() DPULayer {
	in := vpu.NewVPUTensor(112, 112, 32, 1, vpu.TypeUInt8, vpu.LayoutZXY, false)
	out := vpu.NewVPUTensor(112, 112, 32, 1, vpu.TypeUInt8, vpu.LayoutZXY, false)
	return NewDPULayer(vpu.DPUWorkload{
		Device:           vpu.VPUDevice27,
		Op:               vpu.OpConvolution,
		Inputs:           []vpu.VPUTensor{in},
		Outputs:          []vpu.VPUTensor{out},
		KernelH:          3,
		KernelW:          3,
		StrideH:          1,
		StrideW:          1,
		PadTop:           1,
		PadBottom:        1,
		PadLeft:          1,
		PadRight:         1,
		ExecutionMode:    vpu.ModeCuboid16x16,
		OutputWriteTiles: 1,
		ISI:              vpu.ISIClustering,
	})
}

// TestSplitOverH_FourTiles verifies the SOH reference: 4 sub-layers,
// output heights summing to 112, SPLIT_OVER_H on every tile, padding
// kept only at the outer edges.
func TestSplitOverH_FourTiles(t *testing.T) {
	layer := conv3x3Layer()
	subs := layer.SplitOverTiles(vpu.TilingSOH, 4)
	require.Len(t, subs, 4)

	var heightSum uint
	for i, sub := range subs {
		heightSum += sub.Output0().Height()
		assert.Equal(t, vpu.ISISplitOverH, sub.ISI, "tile %d", i)
		assert.Equal(t, uint(112), sub.Output0().Width())
		assert.Equal(t, uint(32), sub.Output0().Channels())

		// inner cut lines carry no padding
		if i > 0 {
			assert.Zero(t, sub.PadTop, "tile %d", i)
		}
		if i < len(subs)-1 {
			assert.Zero(t, sub.PadBottom, "tile %d", i)
		}

		// input height satisfies the inverse geometry
		wantH := vpu.OutputSpatialDim(sub.Input0().Height(), sub.KernelH, sub.PadTop, sub.PadBottom, sub.StrideH)
		assert.Equal(t, sub.Output0().Height(), wantH, "tile %d", i)
	}
	assert.Equal(t, uint(112), heightSum)
	assert.Equal(t, uint(1), subs[0].PadTop)
	assert.Equal(t, uint(1), subs[3].PadBottom)
}

// TestSplitOverH_Overlapped verifies the halo variant stays CLUSTERING.
func TestSplitOverH_Overlapped(t *testing.T) {
	subs := conv3x3Layer().SplitOverTiles(vpu.TilingSOHOverlapped, 4)
	require.Len(t, subs, 4)
	for _, sub := range subs {
		assert.Equal(t, vpu.ISIClustering, sub.ISI)
	}
}

// TestSplitOverH_FewerTilesThanRequested verifies a short output
// produces fewer sub-layers without inflating anything.
func TestSplitOverH_FewerTilesThanRequested(t *testing.T) {
	layer := conv3x3Layer()
	layer.Outputs[0] = resize(layer.Outputs[0], 112, 3, 32)
	layer.Inputs[0] = resize(layer.Inputs[0], 112, 3, 32)

	subs := layer.SplitOverTiles(vpu.TilingSOH, 4)
	assert.Len(t, subs, 3)
}

// TestSplitOverK verifies channel splitting rounds to the alignment and
// stamps SPLIT_OVER_K with the actually-produced write-tile count.
func TestSplitOverK(t *testing.T) {
	layer := conv3x3Layer()
	layer.Outputs[0] = resize(layer.Outputs[0], 112, 112, 64)

	subs := layer.SplitOverTiles(vpu.TilingSOK, 4)
	require.Len(t, subs, 4)

	var channelSum uint
	for _, sub := range subs {
		channelSum += sub.Output0().Channels()
		assert.Zero(t, sub.Output0().Channels()%16, "channels stay aligned")
		assert.Equal(t, vpu.ISISplitOverK, sub.ISI)
		assert.Equal(t, uint(4), sub.OutputWriteTiles)
		// convolution tiles keep the whole input
		assert.Equal(t, uint(32), sub.Input0().Channels())
	}
	assert.Equal(t, uint(64), channelSum)
}

// TestSplitOverK_AlignmentLimitsTiles verifies 32 channels cannot feed
// 4 tiles at 16-alignment: only 2 come back, without inflated ISI.
func TestSplitOverK_AlignmentLimitsTiles(t *testing.T) {
	subs := conv3x3Layer().SplitOverTiles(vpu.TilingSOK, 4)
	require.Len(t, subs, 2)
	for _, sub := range subs {
		assert.Equal(t, uint(16), sub.Output0().Channels())
		assert.Equal(t, uint(2), sub.OutputWriteTiles)
	}
}

func TestSplitClustering_Replicates(t *testing.T) {
	layer := conv3x3Layer()
	subs := layer.SplitOverTiles(vpu.TilingClustering, 3)
	require.Len(t, subs, 3)
	for _, sub := range subs {
		assert.Equal(t, layer.Output0(), sub.Output0())
		assert.Equal(t, vpu.ISIClustering, sub.ISI)
		assert.Equal(t, layer.OutputWriteTiles, sub.OutputWriteTiles)
	}
}

func TestSplitOverW(t *testing.T) {
	subs := conv3x3Layer().SplitOverTiles(vpu.TilingSOW, 4)
	require.Len(t, subs, 4)

	var widthSum uint
	for i, sub := range subs {
		widthSum += sub.Output0().Width()
		assert.Equal(t, uint(112), sub.Output0().Height())
		if i > 0 {
			assert.Zero(t, sub.PadLeft)
		}
		if i < len(subs)-1 {
			assert.Zero(t, sub.PadRight)
		}
	}
	assert.Equal(t, uint(112), widthSum)
}

// TestSplitTwoDim verifies SOHW covers the output with a height×width
// grid and SOHK with a height×channel grid.
func TestSplitTwoDim(t *testing.T) {
	layer := conv3x3Layer()
	layer.Outputs[0] = resize(layer.Outputs[0], 112, 112, 64)

	sohw := layer.SplitOverTiles(vpu.TilingSOHW, 4)
	require.Len(t, sohw, 4)
	var area uint
	for _, sub := range sohw {
		area += sub.Output0().Width() * sub.Output0().Height()
	}
	assert.Equal(t, uint(112*112), area)

	sohk := layer.SplitOverTiles(vpu.TilingSOHK, 4)
	require.Len(t, sohk, 4)
	var volume uint
	for _, sub := range sohk {
		volume += sub.Output0().Height() * sub.Output0().Channels()
	}
	assert.Equal(t, uint(112*64), volume)
}

// TestSplit_SubLayersAreIndependentCopies verifies mutating one
// sub-layer leaves its siblings and the parent untouched.
func TestSplit_SubLayersAreIndependentCopies(t *testing.T) {
	layer := conv3x3Layer()
	subs := layer.SplitOverTiles(vpu.TilingClustering, 2)
	require.Len(t, subs, 2)

	subs[0].Inputs[0] = resize(subs[0].Inputs[0], 1, 1, 16)
	assert.Equal(t, uint(112), subs[1].Input0().Width())
	assert.Equal(t, uint(112), layer.Input0().Width())
}

func TestPartitionDim(t *testing.T) {
	assert.Equal(t, []uint{28, 28, 28, 28}, partitionDim(112, 4))
	assert.Equal(t, []uint{38, 37, 37}, partitionDim(112, 3))
	assert.Equal(t, []uint{1, 1, 1}, partitionDim(3, 4))
	assert.Nil(t, partitionDim(0, 4))
}

func TestFactorPair(t *testing.T) {
	a, b := factorPair(4)
	assert.Equal(t, uint(2), a)
	assert.Equal(t, uint(2), b)

	a, b = factorPair(6)
	assert.Equal(t, uint(2), a)
	assert.Equal(t, uint(3), b)

	a, b = factorPair(7)
	assert.Equal(t, uint(1), a)
	assert.Equal(t, uint(7), b)
}
