package tiling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpucost/vpucost/vpu"
)

func newTiler(t *testing.T) *LayerCostModel {
	t.Helper()
	cm, err := vpu.NewVPUCostModel(vpu.CostModelConfig{})
	require.NoError(t, err)
	return NewLayerCostModel(cm)
}

// TestLayer_SOHFourTiles is the SOH reference scenario: 112×112×32
// 3×3 convolution over 4 tiles, 1 DPU per tile, everything resident.
func TestLayer_SOHFourTiles(t *testing.T) {
	tiler := newTiler(t)
	cycles, details := tiler.LayerWithDetails(conv3x3Layer(), vpu.TilingSOH, 1, 4, false, false, true)

	require.False(t, vpu.IsErrorCode(cycles), vpu.CyclesCodeName(cycles))
	require.Len(t, details.Tiles, 4)

	var heightSum uint
	var maxTile vpu.CyclesInterfaceType
	for _, tile := range details.Tiles {
		require.False(t, vpu.IsErrorCode(tile.Cycles))
		assert.Equal(t, vpu.ISISplitOverH, tile.Layer.ISI)
		assert.NotEmpty(t, tile.Workloads)
		heightSum += tile.Layer.Output0().Height()
		if tile.Cycles > maxTile {
			maxTile = tile.Cycles
		}
	}
	assert.Equal(t, uint(112), heightSum)

	// tiles run concurrently: the layer costs its slowest tile (no DMA
	// overlays in this configuration)
	assert.Equal(t, maxTile, details.ComputeCost)
	assert.Zero(t, details.DMACost)
	assert.Equal(t, maxTile, cycles)
}

// TestLayer_CostNeverBelowSlowestTile is the §parallel-tiles property:
// the layer cost is at least every tile's own cost.
func TestLayer_CostNeverBelowSlowestTile(t *testing.T) {
	tiler := newTiler(t)
	for _, strategy := range []vpu.TilingStrategy{vpu.TilingClustering, vpu.TilingSOH, vpu.TilingSOK} {
		cycles, details := tiler.LayerWithDetails(conv3x3Layer(), strategy, 1, 2, false, false, true)
		require.False(t, vpu.IsErrorCode(cycles), "strategy %s", strategy)
		for i, tile := range details.Tiles {
			assert.GreaterOrEqual(t, cycles, tile.Cycles, "strategy %s tile %d", strategy, i)
		}
	}
}

// TestLayer_WorkloadsCoverTileOutput is the coverage property: the
// winning workload lists tile each sub-layer output exactly.
func TestLayer_WorkloadsCoverTileOutput(t *testing.T) {
	tiler := newTiler(t)
	_, details := tiler.LayerWithDetails(conv3x3Layer(), vpu.TilingSOH, 2, 4, false, false, true)

	for i, tile := range details.Tiles {
		var volume uint
		for _, w := range tile.Workloads {
			volume += w.Output0().Height() * w.Output0().Channels()
		}
		want := tile.Layer.Output0().Height() * tile.Layer.Output0().Channels()
		assert.Equal(t, want, volume, "tile %d", i)
	}
}

// TestLayer_MoreDPUsNeverSlower verifies LPT scheduling puts extra DPUs
// to work (or at worst changes nothing).
func TestLayer_MoreDPUsNeverSlower(t *testing.T) {
	tiler := newTiler(t)
	layer := conv3x3Layer()

	one := tiler.Layer(layer, vpu.TilingSOH, 1, 2, false, false, true)
	two := tiler.Layer(layer, vpu.TilingSOH, 2, 2, false, false, true)
	require.False(t, vpu.IsErrorCode(one))
	require.False(t, vpu.IsErrorCode(two))
	assert.LessOrEqual(t, two, one)
}

// TestLayer_DMAOverlays verifies DDR staging adds cost and prefetching
// removes the weight-fetch term.
func TestLayer_DMAOverlays(t *testing.T) {
	tiler := newTiler(t)
	layer := conv3x3Layer()

	resident := tiler.Layer(layer, vpu.TilingSOH, 1, 2, false, false, true)
	staged := tiler.Layer(layer, vpu.TilingSOH, 1, 2, true, true, true)
	require.False(t, vpu.IsErrorCode(resident))
	require.False(t, vpu.IsErrorCode(staged))
	assert.Greater(t, staged, resident)

	noPrefetch := tiler.Layer(layer, vpu.TilingSOH, 1, 2, false, false, false)
	assert.Greater(t, noPrefetch, resident)
}

// TestLayer_InvalidLayerBubblesCode verifies an unusable layer returns
// its sanity code as the layer cost.
func TestLayer_InvalidLayerBubblesCode(t *testing.T) {
	tiler := newTiler(t)

	layer := conv3x3Layer()
	layer.Outputs[0] = resize(layer.Outputs[0], 96, 112, 32) // geometry mismatch
	cycles := tiler.Layer(layer, vpu.TilingSOH, 1, 2, false, false, true)
	assert.Equal(t, vpu.ErrorInvalidLayerConfiguration, cycles)

	unknown := conv3x3Layer()
	unknown.Device = vpu.VPUDeviceCount
	cycles = tiler.Layer(unknown, vpu.TilingSOH, 1, 2, false, false, true)
	assert.Equal(t, vpu.ErrorInvalidInputDevice, cycles)
}

func TestLayersPreSplit(t *testing.T) {
	tiler := newTiler(t)
	subs := conv3x3Layer().SplitOverTiles(vpu.TilingSOH, 2)
	require.Len(t, subs, 2)

	cycles := tiler.LayersPreSplit(subs, 1, false, false, true)
	require.False(t, vpu.IsErrorCode(cycles))

	// agrees with the full Layer call for the same arrangement
	full := tiler.Layer(conv3x3Layer(), vpu.TilingSOH, 1, 2, false, false, true)
	assert.Equal(t, full, cycles)

	assert.Equal(t, vpu.ErrorInvalidLayerConfiguration, tiler.LayersPreSplit(nil, 1, false, false, true))
}

func TestScheduleLPT(t *testing.T) {
	costs := []vpu.CyclesInterfaceType{8, 5, 4, 3}

	// one DPU: plain sum
	assert.Equal(t, vpu.CyclesInterfaceType(20), scheduleLPT(costs, 1))

	// two DPUs: LPT packs {8, 3} and {5, 4} → makespan 11
	assert.Equal(t, vpu.CyclesInterfaceType(11), scheduleLPT(costs, 2))

	// plenty of DPUs: the longest workload gates
	assert.Equal(t, vpu.CyclesInterfaceType(8), scheduleLPT(costs, 8))
}

func TestScheduleLPT_PropagatesErrors(t *testing.T) {
	costs := []vpu.CyclesInterfaceType{5, vpu.ErrorInputTooBig}
	assert.True(t, vpu.IsErrorCode(scheduleLPT(costs, 1)))
}
