package equiv

import (
	"github.com/roach88/fuseq/internal/expr"
	"github.com/roach88/fuseq/internal/plan"
)

// Key identifies a compiled plan: the plan after extraction and the
// placeholders it is parameterized by, in argument order.
//
// Placeholders are bound in an outermost scope, so two keys are equal when
// they have the same number of placeholders with the same types in the same
// positions and their plans are equal with placeholders matched by
// position. The placeholders' runtime values are not part of the key.
type Key struct {
	Plan   plan.Node
	Params []*expr.Param
}

// Hash returns the structural hash of the key.
func (k Key) Hash() uint64 {
	h := NewHasher(DomainKey)
	h.Bind(k.Params)
	h.Plan(k.Plan)
	h.Unbind()
	return h.Sum64()
}

// Equal reports whether k and o identify the same compiled plan.
func (k Key) Equal(o Key) bool {
	if len(k.Params) != len(o.Params) {
		return false
	}
	c := NewComparer()
	if !c.Bind(k.Params, o.Params) {
		return false
	}
	defer c.Unbind()
	return c.Plan(k.Plan, o.Plan) && c.ValidateLabels()
}
