// Package tiling splits a logical layer across compute tiles and DPUs
// and prices the candidates through the cost-model facade, returning
// the cheapest arrangement.
package tiling

import (
	"github.com/vpucost/vpucost/vpu"
)

// DPULayer is one logical operation that may still be split: the same
// attributes as a DPUWorkload plus the split operations below. Splits
// produce sub-layers (one per tile); the intra-tile pass then carves
// each sub-layer into DPUWorkloads.
type DPULayer struct {
	vpu.DPUWorkload
}

// NewDPULayer wraps a workload-shaped description as an unsplit layer.
func NewDPULayer(w vpu.DPUWorkload) DPULayer {
	if w.OutputWriteTiles == 0 {
		w.OutputWriteTiles = 1
	}
	return DPULayer{DPUWorkload: w}
}

// SplitOverTiles applies an inter-tile strategy. The result may hold
// fewer sub-layers than requested when the geometry cannot feed every
// tile; ISI and output-write-tile values reflect what was actually
// produced, never the request.
func (l DPULayer) SplitOverTiles(strategy vpu.TilingStrategy, nTiles uint) []DPULayer {
	if nTiles == 0 {
		nTiles = 1
	}
	switch strategy {
	case vpu.TilingClustering:
		return l.clustering(nTiles)
	case vpu.TilingSOH:
		return l.splitOverH(nTiles, false)
	case vpu.TilingSOHOverlapped:
		return l.splitOverH(nTiles, true)
	case vpu.TilingSOK:
		return l.splitOverK(nTiles)
	case vpu.TilingSOW:
		return l.splitOverW(nTiles)
	case vpu.TilingSOHW:
		return l.splitTwoDim(nTiles, false)
	case vpu.TilingSOHK:
		return l.splitTwoDim(nTiles, true)
	default:
		return nil
	}
}

// clustering replicates the whole layer into every tile.
func (l DPULayer) clustering(nTiles uint) []DPULayer {
	out := make([]DPULayer, 0, nTiles)
	for i := uint(0); i < nTiles; i++ {
		sub := l.clone()
		sub.ISI = vpu.ISIClustering
		out = append(out, sub)
	}
	return out
}

// splitOverH partitions the output height. Each sub-layer recomputes
// its input height through the inverse of the output-size formula; only
// the outer edges keep the layer's padding. The overlapped variant
// reads halos across the cut lines instead of synchronising through the
// inter-slice fabric, so its sub-layers stay CLUSTERING.
func (l DPULayer) splitOverH(nTiles uint, overlapped bool) []DPULayer {
	outH := l.Output0().Height()
	parts := partitionDim(outH, nTiles)
	if len(parts) == 0 {
		return nil
	}

	out := make([]DPULayer, 0, len(parts))
	for i, h := range parts {
		sub := l.clone()
		first := i == 0
		last := i == len(parts)-1

		padTop, padBottom := uint(0), uint(0)
		if first {
			padTop = l.PadTop
		}
		if last {
			padBottom = l.PadBottom
		}

		inH := vpu.InputSpatialDim(h, l.KernelH, padTop, padBottom, l.StrideH)
		if inH > l.Input0().Height() {
			inH = l.Input0().Height()
		}

		sub.PadTop, sub.PadBottom = padTop, padBottom
		for i := range sub.Inputs {
			sub.Inputs[i] = resize(sub.Inputs[i], sub.Inputs[i].Width(), inH, sub.Inputs[i].Channels())
		}
		sub.Outputs[0] = resize(sub.Outputs[0], sub.Outputs[0].Width(), h, sub.Outputs[0].Channels())
		if overlapped {
			sub.ISI = vpu.ISIClustering
		} else {
			sub.ISI = vpu.ISISplitOverH
		}
		out = append(out, sub)
	}
	return out
}

// splitOverW partitions the output width, symmetric to splitOverH. The
// inter-slice fabric has no width mode, so sub-layers stay CLUSTERING.
func (l DPULayer) splitOverW(nTiles uint) []DPULayer {
	outW := l.Output0().Width()
	parts := partitionDim(outW, nTiles)
	if len(parts) == 0 {
		return nil
	}

	out := make([]DPULayer, 0, len(parts))
	for i, w := range parts {
		sub := l.clone()
		first := i == 0
		last := i == len(parts)-1

		padLeft, padRight := uint(0), uint(0)
		if first {
			padLeft = l.PadLeft
		}
		if last {
			padRight = l.PadRight
		}

		inW := vpu.InputSpatialDim(w, l.KernelW, padLeft, padRight, l.StrideW)
		if inW > l.Input0().Width() {
			inW = l.Input0().Width()
		}

		sub.PadLeft, sub.PadRight = padLeft, padRight
		for i := range sub.Inputs {
			sub.Inputs[i] = resize(sub.Inputs[i], inW, sub.Inputs[i].Height(), sub.Inputs[i].Channels())
		}
		sub.Outputs[0] = resize(sub.Outputs[0], w, sub.Outputs[0].Height(), sub.Outputs[0].Channels())
		sub.ISI = vpu.ISIClustering
		out = append(out, sub)
	}
	return out
}

// splitOverK partitions the output channels, rounding every tile's
// share up to the device channel alignment. Tiles receive the full
// input; output-write-tiles becomes the count actually produced.
func (l DPULayer) splitOverK(nTiles uint) []DPULayer {
	align := channelAlignmentFor(l.Device, l.Op)
	outC := l.Output0().Channels()

	share := vpu.AlignUp(ceilDiv(outC, nTiles), align)
	if share == 0 {
		return nil
	}

	var parts []uint
	for remaining := outC; remaining > 0; {
		c := share
		if c > remaining {
			c = remaining
		}
		parts = append(parts, c)
		remaining -= c
	}

	owt := uint(len(parts))
	out := make([]DPULayer, 0, owt)
	for _, c := range parts {
		sub := l.clone()
		sub.Outputs[0] = resize(sub.Outputs[0], sub.Outputs[0].Width(), sub.Outputs[0].Height(), c)
		if l.Op != vpu.OpConvolution && l.Op != vpu.OpCMConvolution {
			// depthwise-family input channels track the output
			for i := range sub.Inputs {
				sub.Inputs[i] = resize(sub.Inputs[i], sub.Inputs[i].Width(), sub.Inputs[i].Height(), c)
			}
		}
		if owt > 1 {
			sub.ISI = vpu.ISISplitOverK
			sub.OutputWriteTiles = owt
		} else {
			sub.ISI = vpu.ISIClustering
			sub.OutputWriteTiles = 1
		}
		out = append(out, sub)
	}
	return out
}

// splitTwoDim factors nTiles into a×b and applies SOH then either SOW
// (SOHW) or SOK (SOHK) to each height band.
func (l DPULayer) splitTwoDim(nTiles uint, overK bool) []DPULayer {
	a, b := factorPair(nTiles)
	bands := l.splitOverH(a, false)
	var out []DPULayer
	for _, band := range bands {
		var subs []DPULayer
		if overK {
			subs = band.splitOverK(b)
		} else {
			subs = band.splitOverW(b)
		}
		out = append(out, subs...)
	}
	return out
}

func (l DPULayer) clone() DPULayer {
	sub := l
	sub.Inputs = append([]vpu.VPUTensor(nil), l.Inputs...)
	sub.Outputs = append([]vpu.VPUTensor(nil), l.Outputs...)
	return sub
}

// partitionDim splits extent into at most n contiguous positive parts,
// larger parts first. Fewer parts come back when extent < n.
func partitionDim(extent, n uint) []uint {
	if extent == 0 || n == 0 {
		return nil
	}
	if n > extent {
		n = extent
	}
	base := extent / n
	rem := extent % n
	parts := make([]uint, n)
	for i := uint(0); i < n; i++ {
		parts[i] = base
		if i < rem {
			parts[i]++
		}
	}
	return parts
}

// factorPair factors n into (a, b) with a·b = n and a as close to √n as
// possible, a being the height-axis share.
func factorPair(n uint) (uint, uint) {
	if n == 0 {
		return 1, 1
	}
	best := uint(1)
	for a := uint(1); a*a <= n; a++ {
		if n%a == 0 {
			best = a
		}
	}
	return best, n / best
}

func ceilDiv(a, b uint) uint {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func resize(t vpu.VPUTensor, w, h, c uint) vpu.VPUTensor {
	return vpu.NewVPUTensor(w, h, c, t.Batches(), t.DataType(), t.Layout(), t.Sparsity())
}

func channelAlignmentFor(d vpu.VPUDevice, op vpu.Operation) uint {
	rules, ok := vpu.WorkloadRules().RulesFor(d)
	if !ok {
		return 16
	}
	return rules.ChannelAlignment(op)
}
