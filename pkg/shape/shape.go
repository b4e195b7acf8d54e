// Package shape validates GPU resource descriptors and derives GPU
// specifications from them. A descriptor is matched against an ordered set
// of grammars; the first match wins and the order is part of the contract.
package shape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/NVIDIA/dgxc-autotune/pkg/errors"
)

// Grammar identifies which of the ordered resource-shape grammars a
// descriptor matched.
type Grammar int

const (
	// GrammarUnset marks the zero Shape (no descriptor provided).
	GrammarUnset Grammar = iota
	// GrammarPrefixedCountType matches gpu.<count>x<type>, e.g. gpu.8xh200.
	GrammarPrefixedCountType
	// GrammarPrefixedTypeSize matches gpu.<type>.<size>, e.g. gpu.a10.6xlarge.
	GrammarPrefixedTypeSize
	// GrammarPrefixedType matches gpu.<type>, e.g. gpu.a100-40gb.
	GrammarPrefixedType
	// GrammarCountType matches <count>x<type>, e.g. 8xh200.
	GrammarCountType
	// GrammarCount matches a bare count with optional trailing x, e.g. 8 or 8x.
	GrammarCount
)

// Declaration order is the matching order. Inputs are lowered before
// matching, so the character classes only need the lowercase range.
var grammars = []struct {
	g  Grammar
	re *regexp.Regexp
}{
	{GrammarPrefixedCountType, regexp.MustCompile(`^gpu\.(\d+)x([a-z0-9\-]+)$`)},
	{GrammarPrefixedTypeSize, regexp.MustCompile(`^gpu\.([a-z0-9\-]+)\.(\w+)$`)},
	{GrammarPrefixedType, regexp.MustCompile(`^gpu\.([a-z0-9\-]+)$`)},
	{GrammarCountType, regexp.MustCompile(`^(\d+)x([a-z0-9\-]+)$`)},
	{GrammarCount, regexp.MustCompile(`^(\d+)x?$`)},
}

// shapeExamples are the canonical shapes enumerated in format errors.
var shapeExamples = []string{
	"gpu.8xh200", "gpu.4xh100", "gpu.2xa100-40gb", "gpu.8xa100-80gb", "gpu.a10",
}

// Shape is a validated resource descriptor tagged by the grammar it matched.
// The zero value means unset; a non-zero Shape is only ever constructed from
// a string that matched one of the grammars.
type Shape struct {
	Raw     string
	Grammar Grammar
}

// IsUnset reports whether no descriptor was provided.
func (s Shape) IsUnset() bool {
	return s.Grammar == GrammarUnset
}

func (s Shape) String() string {
	return s.Raw
}

// Parse validates a resource descriptor against the ordered grammars,
// case-insensitively. Empty input is valid and yields the unset Shape;
// whether "unset" is acceptable is decided by the Gate, not here.
func Parse(raw string) (Shape, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Shape{}, nil
	}
	lowered := strings.ToLower(trimmed)
	for _, g := range grammars {
		if g.re.MatchString(lowered) {
			return Shape{Raw: trimmed, Grammar: g.g}, nil
		}
	}
	return Shape{}, errors.Newf(errors.ErrCodeFormat,
		"invalid resource shape format: %q\nvalid formats include: %s\npattern should match: gpu.[count]x[type] or gpu.[type] or gpu.[type].[size]",
		trimmed, strings.Join(shapeExamples, ", "))
}

// GPUMemoryGB maps known GPU types to their memory in gigabytes.
var GPUMemoryGB = map[string]float64{
	"h100": 80,
	"h200": 141,
	"a100": 80,
	"v100": 32,
	"l40s": 48,
}

// Defaults applied when a grammar does not carry the corresponding field.
const (
	defaultGPUType  = "h100"
	defaultGPUCount = 8
	defaultMemoryGB = 80.0
)

// GPUSpec is the GPU sizing derived from a shape and an optional explicit
// memory budget.
type GPUSpec struct {
	Type     string
	Count    int
	MemoryGB float64
}

// Specs derives (type, count, memory) from the shape. An explicit
// memoryPerGPU > 0 overrides the lookup table; unknown types fall back to
// the default budget.
func (s Shape) Specs(memoryPerGPU float64) GPUSpec {
	spec := GPUSpec{Type: defaultGPUType, Count: defaultGPUCount}

	lowered := strings.ToLower(s.Raw)
	switch s.Grammar {
	case GrammarPrefixedCountType, GrammarCountType:
		m := grammarRegexp(s.Grammar).FindStringSubmatch(lowered)
		spec.Count, _ = strconv.Atoi(m[1])
		spec.Type = m[2]
	case GrammarPrefixedTypeSize:
		m := grammarRegexp(s.Grammar).FindStringSubmatch(lowered)
		spec.Type = m[1]
	case GrammarPrefixedType:
		m := grammarRegexp(s.Grammar).FindStringSubmatch(lowered)
		spec.Type = m[1]
	case GrammarCount:
		m := grammarRegexp(s.Grammar).FindStringSubmatch(lowered)
		spec.Count, _ = strconv.Atoi(m[1])
	}

	switch {
	case memoryPerGPU > 0:
		spec.MemoryGB = memoryPerGPU
	default:
		mem, ok := GPUMemoryGB[baseType(spec.Type)]
		if !ok {
			mem = defaultMemoryGB
		}
		spec.MemoryGB = mem
	}
	return spec
}

func grammarRegexp(g Grammar) *regexp.Regexp {
	for _, e := range grammars {
		if e.g == g {
			return e.re
		}
	}
	return nil
}

// baseType strips a variant suffix like "-40gb" so a100-40gb resolves the
// a100 table entry.
func baseType(t string) string {
	if i := strings.IndexByte(t, '-'); i > 0 {
		return t[:i]
	}
	return t
}
