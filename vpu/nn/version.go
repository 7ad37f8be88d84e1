package nn

import (
	"strconv"
	"strings"
)

// ModelVersion is the "<arch>-<VI>-<VO>" triple stamped into a
// serialized model: a free-form architecture tag, the input interface
// (descriptor schema) version and the output interface version.
type ModelVersion struct {
	Arch   string
	Input  int
	Output int
}

// Defaults for absent segments.
const (
	defaultArch    = "none"
	defaultVersion = 1
)

// ParseModelVersion splits the stamped name. Missing or empty segments
// take defaults; trailing extra segments are ignored; a segment that is
// not a non-negative integer falls back to its default.
func ParseModelVersion(name string) ModelVersion {
	v := ModelVersion{Arch: defaultArch, Input: defaultVersion, Output: defaultVersion}

	parts := strings.Split(name, "-")
	if len(parts) > 0 && parts[0] != "" {
		v.Arch = parts[0]
	}
	if len(parts) > 1 {
		v.Input = parseSegment(parts[1])
	}
	if len(parts) > 2 {
		v.Output = parseSegment(parts[2])
	}
	return v
}

func parseSegment(s string) int {
	if s == "" {
		return defaultVersion
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVersion
	}
	return n
}

// PostProcessing tells the cost model how to turn the raw network
// output into cycles.
type PostProcessing uint8

const (
	// PostUnknown poisons the model: every query reports an invalid
	// output range.
	PostUnknown PostProcessing = iota
	// PostCycles: the raw output already is cycles.
	PostCycles
	// PostOverheadBounded: raw is a factor in (0,1]; cycles =
	// ideal / raw.
	PostOverheadBounded
	// PostOverheadUnbounded: same formula, raw unbounded positive.
	PostOverheadUnbounded
)

// PostProcessingFor maps the output interface version onto its
// post-processor. Unknown versions map to PostUnknown.
func PostProcessingFor(outputVersion int) PostProcessing {
	switch outputVersion {
	case 1:
		return PostCycles
	case 2:
		return PostOverheadBounded
	case 3:
		return PostOverheadUnbounded
	default:
		return PostUnknown
	}
}
