package tiling

import (
	"github.com/vpucost/vpucost/vpu"
)

// Intra-tile splitting carves one sub-layer into DPUWorkloads along the
// output height and channel axes. Candidate lists must cover the
// sub-layer output exactly once; coverage is tracked by an explicit
// state machine so a malformed partition is discarded, not mispriced.

// coverState is the coverage automaton state.
type coverState uint8

const (
	coverEmpty coverState = iota
	coverPartial
	coverFull
	coverInvalid
)

// outputRect is the (height × channel) footprint of one workload within
// the sub-layer output; the width axis is never partitioned here so
// rects span it fully.
type outputRect struct {
	hOff, hLen uint
	cOff, cLen uint
}

// coverTracker accepts workload rects one at a time and decides whether
// the accumulated set tiles the output exactly.
type coverTracker struct {
	targetH uint
	targetC uint
	covered uint64
	rects   []outputRect
	state   coverState
}

func newCoverTracker(targetH, targetC uint) *coverTracker {
	return &coverTracker{targetH: targetH, targetC: targetC, state: coverEmpty}
}

// Add transitions the automaton with one more rect. Any overlap or
// out-of-bounds rect moves to the INVALID terminal; covering the last
// element moves to FULL_COVER.
func (t *coverTracker) Add(r outputRect) coverState {
	if t.state == coverInvalid || t.state == coverFull {
		t.state = coverInvalid
		return t.state
	}
	if r.hLen == 0 || r.cLen == 0 ||
		r.hOff+r.hLen > t.targetH || r.cOff+r.cLen > t.targetC {
		t.state = coverInvalid
		return t.state
	}
	for _, prev := range t.rects {
		if rectsOverlap(prev, r) {
			t.state = coverInvalid
			return t.state
		}
	}
	t.rects = append(t.rects, r)
	t.covered += uint64(r.hLen) * uint64(r.cLen)

	total := uint64(t.targetH) * uint64(t.targetC)
	switch {
	case t.covered == total:
		t.state = coverFull
	default:
		t.state = coverPartial
	}
	return t.state
}

func (t *coverTracker) State() coverState { return t.state }

func rectsOverlap(a, b outputRect) bool {
	hDisjoint := a.hOff+a.hLen <= b.hOff || b.hOff+b.hLen <= a.hOff
	cDisjoint := a.cOff+a.cLen <= b.cOff || b.cOff+b.cLen <= a.cOff
	return !hDisjoint && !cDisjoint
}

// intraTileCandidates enumerates (execution mode, partition) candidates
// for a sub-layer, bounded by maxWorkloads per candidate. Every
// returned list reached FULL_COVER.
func intraTileCandidates(sub DPULayer, maxWorkloads uint) [][]vpu.DPUWorkload {
	rules, ok := vpu.WorkloadRules().RulesFor(sub.Device)
	if !ok {
		return nil
	}

	var candidates [][]vpu.DPUWorkload
	for mode := vpu.ExecutionMode(0); mode < vpu.ExecutionModeCount; mode++ {
		if !rules.SupportsExecutionMode(mode) {
			continue
		}
		for _, grid := range partitionGrids(sub, maxWorkloads) {
			if wls, ok := buildPartition(sub, mode, grid.h, grid.k); ok {
				candidates = append(candidates, wls)
			}
		}
	}
	return candidates
}

type gridShape struct {
	h uint // parts along output height
	k uint // parts along output channels
}

// partitionGrids proposes (height × channel) partition counts. Channel
// cuts honour the alignment; height cuts go down to single rows.
func partitionGrids(sub DPULayer, maxWorkloads uint) []gridShape {
	align := channelAlignmentFor(sub.Device, sub.Op)
	outH := sub.Output0().Height()
	outC := sub.Output0().Channels()

	maxH := outH
	if maxH > maxWorkloads {
		maxH = maxWorkloads
	}
	maxK := outC / align
	if maxK == 0 {
		maxK = 1
	}

	// Power-of-two part counts: the MPE grids are power-of-two shaped,
	// so other counts only produce ragged duplicates of these.
	var grids []gridShape
	for h := uint(1); h <= maxH; h *= 2 {
		for k := uint(1); k <= maxK; k *= 2 {
			if h*k > maxWorkloads {
				break
			}
			grids = append(grids, gridShape{h: h, k: k})
		}
	}
	return grids
}

// buildPartition materialises one candidate list and walks it through
// the coverage automaton, accepting only FULL_COVER.
func buildPartition(sub DPULayer, mode vpu.ExecutionMode, hParts, kParts uint) ([]vpu.DPUWorkload, bool) {
	align := channelAlignmentFor(sub.Device, sub.Op)
	outH := sub.Output0().Height()
	outC := sub.Output0().Channels()

	hSizes := partitionDim(outH, hParts)
	cSizes := partitionChannels(outC, kParts, align)
	if len(hSizes) == 0 || len(cSizes) == 0 {
		return nil, false
	}

	tracker := newCoverTracker(outH, outC)
	var workloads []vpu.DPUWorkload

	hOff := uint(0)
	for hi, h := range hSizes {
		cOff := uint(0)
		for _, c := range cSizes {
			state := tracker.Add(outputRect{hOff: hOff, hLen: h, cOff: cOff, cLen: c})
			if state == coverInvalid {
				return nil, false
			}

			w := carveWorkload(sub, mode, hi == 0, hi == len(hSizes)-1, hOff, h, cOff, c)
			workloads = append(workloads, w)
			cOff += c
		}
		hOff += h
	}

	if tracker.State() != coverFull {
		return nil, false
	}
	return workloads, true
}

// partitionChannels splits outC into at most kParts alignment-multiple
// chunks (the final chunk absorbs the ragged remainder).
func partitionChannels(outC, kParts, align uint) []uint {
	if outC == 0 {
		return nil
	}
	if kParts <= 1 || outC <= align {
		return []uint{outC}
	}
	chunk := vpu.AlignUp(ceilDiv(outC, kParts), align)
	var parts []uint
	for remaining := outC; remaining > 0; {
		c := chunk
		if c > remaining {
			c = remaining
		}
		parts = append(parts, c)
		remaining -= c
	}
	return parts
}

// carveWorkload cuts one workload out of the sub-layer: an output slab
// of h rows and c channels, with the input slab recomputed through the
// inverse geometry and edge padding kept only at the outer edges.
func carveWorkload(sub DPULayer, mode vpu.ExecutionMode, firstRow, lastRow bool, hOff, h, cOff, c uint) vpu.DPUWorkload {
	w := sub.clone().DPUWorkload
	w.ExecutionMode = mode

	padTop, padBottom := uint(0), uint(0)
	if firstRow {
		padTop = sub.PadTop
	}
	if lastRow {
		padBottom = sub.PadBottom
	}
	w.PadTop, w.PadBottom = padTop, padBottom

	inH := vpu.InputSpatialDim(h, sub.KernelH, padTop, padBottom, sub.StrideH)
	if inH > sub.Input0().Height() {
		inH = sub.Input0().Height()
	}

	inC := sub.Input0().Channels()
	if sub.Op != vpu.OpConvolution && sub.Op != vpu.OpCMConvolution {
		inC = c
	}

	w.Inputs[0] = resize(w.Inputs[0], w.Inputs[0].Width(), inH, inC)
	if sub.Op == vpu.OpEltwise && len(w.Inputs) > 1 {
		w.Inputs[1] = resize(w.Inputs[1], w.Inputs[1].Width(), inH, inC)
	}
	w.Outputs[0] = resize(w.Outputs[0], w.Outputs[0].Width(), h, c)

	elemB := vpu.DataTypeBytes(w.Outputs[0].DataType())
	w.Offsets = [4]uint{0, hOff * w.Outputs[0].Width() * elemB, cOff, 0}
	return w
}
