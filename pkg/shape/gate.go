package shape

import (
	"github.com/NVIDIA/dgxc-autotune/pkg/errors"
)

// Gate enforces that at least one of the two linked options (a resource
// shape or a memory-per-GPU budget) is provided. It is a per-invocation
// two-slot accumulator: each option's validator registers its raw value, and
// the completeness check runs exactly once, when the second distinct slot is
// filled. The verdict does not depend on registration order.
type Gate struct {
	shape     Shape
	memory    float64
	shapeSet  bool
	memorySet bool
	checked   bool
}

// RegisterShape runs the local grammar validation for the resource-shape
// option, records the result, and evaluates the completeness check if the
// memory slot has already been registered.
func (g *Gate) RegisterShape(raw string) (Shape, error) {
	s, err := Parse(raw)
	if err != nil {
		return Shape{}, err
	}
	g.shape = s
	g.shapeSet = true
	return s, g.check()
}

// RegisterMemory records the memory-per-GPU option and evaluates the
// completeness check if the shape slot has already been registered. A zero
// budget counts as absent.
func (g *Gate) RegisterMemory(gb float64) error {
	g.memory = gb
	g.memorySet = true
	return g.check()
}

func (g *Gate) check() error {
	if !g.shapeSet || !g.memorySet || g.checked {
		return nil
	}
	g.checked = true
	if g.shape.IsUnset() && g.memory == 0 {
		return errors.New(errors.ErrCodeRequirement,
			"either --resource-shape or --memory-per-gpu must be provided\n"+
				"examples:\n"+
				"  --resource-shape gpu.8xh200\n"+
				"  --memory-per-gpu 141.0")
	}
	return nil
}
