package vpu

import "fmt"

// SanityReport is the outcome of validating one workload or layer:
// exactly one code from the cycles taxonomy plus informational text.
// Error identity is carried by the code; the text is for humans.
type SanityReport struct {
	code CyclesInterfaceType
	text string
}

// NewSanityReport starts as NO_ERROR with empty diagnostics.
func NewSanityReport() *SanityReport {
	return &SanityReport{code: NoError}
}

// Fail records the first failing check. Later calls overwrite; the
// sanitizer stops at the first failure so in practice one code is set
// at most once per run.
func (r *SanityReport) Fail(code CyclesInterfaceType, format string, args ...any) {
	r.code = code
	r.text = fmt.Sprintf(format, args...)
}

// Reset returns the report to the usable state.
func (r *SanityReport) Reset() {
	r.code = NoError
	r.text = ""
}

// Value is the report's code in the cycles domain.
func (r *SanityReport) Value() CyclesInterfaceType { return r.code }

// IsUsable reports whether the checked workload may be priced.
func (r *SanityReport) IsUsable() bool { return !IsErrorCode(r.code) }

// HasError is the complement of IsUsable.
func (r *SanityReport) HasError() bool { return IsErrorCode(r.code) }

// Text returns the human-readable diagnostics, prefixed with the code
// name when the report is an error.
func (r *SanityReport) Text() string {
	if r.HasError() {
		return CyclesCodeName(r.code) + ": " + r.text
	}
	return r.text
}
