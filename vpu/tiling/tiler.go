package tiling

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/vpucost/vpucost/vpu"
)

// DefaultMaxWorkloadsPerTile bounds the intra-tile enumeration; beyond
// this the split overhead dominates any balance gain.
const DefaultMaxWorkloadsPerTile = 50

// LayerCostModel prices whole layers: inter-tile split by strategy,
// intra-tile split per sub-layer, every candidate priced through the
// cost-model facade, cheapest arrangement wins. It holds a non-owning
// reference to the cost model.
type LayerCostModel struct {
	cm *vpu.VPUCostModel

	MaxWorkloadsPerTile uint
}

// NewLayerCostModel wraps a cost model the caller keeps alive.
func NewLayerCostModel(cm *vpu.VPUCostModel) *LayerCostModel {
	return &LayerCostModel{cm: cm, MaxWorkloadsPerTile: DefaultMaxWorkloadsPerTile}
}

// TileDetail reports one tile of the winning arrangement.
type TileDetail struct {
	Layer     DPULayer
	Workloads []vpu.DPUWorkload
	Cycles    vpu.CyclesInterfaceType
}

// LayerSplitDetails reports the winning arrangement of a Layer call.
type LayerSplitDetails struct {
	Strategy    vpu.TilingStrategy
	Tiles       []TileDetail
	ComputeCost vpu.CyclesInterfaceType // max over tiles, before DMA overlays
	DMACost     vpu.CyclesInterfaceType
	TotalCost   vpu.CyclesInterfaceType
}

// Layer prices a layer under one inter-tile strategy.
func (l *LayerCostModel) Layer(layer DPULayer, strategy vpu.TilingStrategy,
	nDPU, nTiles uint, inputInDDR, outputInDDR, prefetching bool) vpu.CyclesInterfaceType {
	cycles, _ := l.LayerWithDetails(layer, strategy, nDPU, nTiles, inputInDDR, outputInDDR, prefetching)
	return cycles
}

// LayerWithDetails additionally returns the winning split.
func (l *LayerCostModel) LayerWithDetails(layer DPULayer, strategy vpu.TilingStrategy,
	nDPU, nTiles uint, inputInDDR, outputInDDR, prefetching bool) (vpu.CyclesInterfaceType, LayerSplitDetails) {

	details := LayerSplitDetails{Strategy: strategy}

	check := layer.DPUWorkload.Clone()
	if report := l.cm.SanitizeLayer(&check); !report.IsUsable() {
		logrus.Debugf("tiler: layer rejected: %s", report.Text())
		details.TotalCost = report.Value()
		return report.Value(), details
	}

	subLayers := layer.SplitOverTiles(strategy, nTiles)
	if len(subLayers) == 0 {
		details.TotalCost = vpu.ErrorInvalidLayerConfiguration
		return details.TotalCost, details
	}

	cycles, tiles := l.priceTiles(subLayers, nDPU)
	details.Tiles = tiles
	details.ComputeCost = cycles

	dma := l.dmaOverlay(layer, subLayers, inputInDDR, outputInDDR, prefetching)
	details.DMACost = dma
	details.TotalCost = vpu.CostAdder(cycles, dma)
	return details.TotalCost, details
}

// LayersPreSplit prices sub-layers the caller already split inter-tile:
// the cost is the max across tiles (they run concurrently) plus DMA
// overlays computed per sub-layer.
func (l *LayerCostModel) LayersPreSplit(subLayers []DPULayer, nDPU uint,
	inputInDDR, outputInDDR, prefetching bool) vpu.CyclesInterfaceType {
	if len(subLayers) == 0 {
		return vpu.ErrorInvalidLayerConfiguration
	}
	cycles, _ := l.priceTiles(subLayers, nDPU)

	var dma vpu.CyclesInterfaceType
	for i := range subLayers {
		tileDMA := l.dmaOverlay(subLayers[i], subLayers[i:i+1], inputInDDR, outputInDDR, prefetching)
		if tileDMA > dma { // tiles transfer concurrently; the slowest gates
			dma = tileDMA
		}
	}
	return vpu.CostAdder(cycles, dma)
}

// priceTiles finds each tile's best intra-tile split and reduces across
// tiles by max: tiles execute concurrently, and error codes sit at the
// top of the range so they bubble through the same reduction.
func (l *LayerCostModel) priceTiles(subLayers []DPULayer, nDPU uint) (vpu.CyclesInterfaceType, []TileDetail) {
	if nDPU == 0 {
		nDPU = 1
	}
	var layerCost vpu.CyclesInterfaceType
	tiles := make([]TileDetail, 0, len(subLayers))

	for _, sub := range subLayers {
		tileCycles, workloads := l.bestIntraTileSplit(sub, nDPU)
		tiles = append(tiles, TileDetail{Layer: sub, Workloads: workloads, Cycles: tileCycles})
		if tileCycles > layerCost {
			layerCost = tileCycles
		}
	}
	return layerCost, tiles
}

// bestIntraTileSplit prices every candidate partition of one sub-layer
// and keeps the cheapest. A sub-layer no candidate can cover validly is
// an ERROR_TILE_OUTPUT.
func (l *LayerCostModel) bestIntraTileSplit(sub DPULayer, nDPU uint) (vpu.CyclesInterfaceType, []vpu.DPUWorkload) {
	candidates := intraTileCandidates(sub, l.MaxWorkloadsPerTile)

	best := vpu.ErrorTileOutput
	var bestWorkloads []vpu.DPUWorkload

	for _, workloads := range candidates {
		costs := l.cm.DPUBatch(workloads)

		valid := true
		for _, c := range costs {
			if vpu.IsErrorCode(c) {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}

		tileCost := scheduleLPT(costs, nDPU)
		if tileCost < best {
			best = tileCost
			bestWorkloads = workloads
		}
	}
	return best, bestWorkloads
}

// scheduleLPT assigns workload costs to nDPU DPUs by greedy
// longest-processing-time and returns the busiest DPU's total.
func scheduleLPT(costs []vpu.CyclesInterfaceType, nDPU uint) vpu.CyclesInterfaceType {
	sorted := append([]vpu.CyclesInterfaceType(nil), costs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	dpus := make([]vpu.CyclesInterfaceType, nDPU)
	for _, c := range sorted {
		least := 0
		for i := 1; i < len(dpus); i++ {
			if dpus[i] < dpus[least] {
				least = i
			}
		}
		dpus[least] = vpu.CostAdder(dpus[least], c)
	}

	var max vpu.CyclesInterfaceType
	for _, d := range dpus {
		if d > max {
			max = d
		}
	}
	return max
}

// dmaOverlay prices the layer's DDR traffic: an input fetch when the
// activations start in DDR, per-tile weight fetches when not
// prefetched (sharing the DMA channels), and an output spill when the
// result returns to DDR.
func (l *LayerCostModel) dmaOverlay(layer DPULayer, subLayers []DPULayer,
	inputInDDR, outputInDDR, prefetching bool) vpu.CyclesInterfaceType {

	var total vpu.CyclesInterfaceType

	if inputInDDR {
		fetch := vpu.DMAWorkload{
			Device:         layer.Device,
			Input:          layer.Input0(),
			Output:         layer.Input0(),
			InputLocation:  vpu.LocationDRAM,
			OutputLocation: vpu.LocationCMX,
		}
		total = vpu.CostAdder(total, vpu.DMATheoreticalCycles(&fetch))
	}

	if !prefetching {
		// Weight fetches of all tiles run concurrently; the slowest
		// gates the layer.
		var weightDMA vpu.CyclesInterfaceType
		mem := vpu.NewLayerMemoryCalculator()
		for i := range subLayers {
			wl := subLayers[i].DPUWorkload
			usage := mem.Compute(&wl)
			if usage.Input1B == 0 {
				continue
			}
			elems := usage.Input1B
			weights := vpu.NewVPUTensor(elems, 1, 1, 1, vpu.TypeInt8, vpu.LayoutZXY, false)
			fetch := vpu.DMAWorkload{
				Device:         layer.Device,
				Input:          weights,
				Output:         weights,
				InputLocation:  vpu.LocationDRAM,
				OutputLocation: vpu.LocationCMX,
			}
			cost := vpu.DMASharedChannelCycles(&fetch, uint(len(subLayers)))
			if cost > weightDMA {
				weightDMA = cost
			}
		}
		total = vpu.CostAdder(total, weightDMA)
	}

	if outputInDDR {
		spill := vpu.DMAWorkload{
			Device:         layer.Device,
			Input:          layer.Output0(),
			Output:         layer.Output0(),
			InputLocation:  vpu.LocationCMX,
			OutputLocation: vpu.LocationDRAM,
		}
		total = vpu.CostAdder(total, vpu.DMATheoreticalCycles(&spill))
	}

	return total
}
