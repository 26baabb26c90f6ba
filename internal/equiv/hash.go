package equiv

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/fuseq/internal/expr"
	"github.com/roach88/fuseq/internal/plan"
)

// Domain prefixes keep expression, plan and key hashes apart. The version
// suffix changes whenever the encoding below changes.
const (
	DomainExpr = "fuseq/expr/v1"
	DomainPlan = "fuseq/plan/v1"
	DomainKey  = "fuseq/key/v1"
)

// Node tags. Every expression kind and plan kind writes its tag first.
const (
	tagConstant byte = iota + 1
	tagParam
	tagFreeParam
	tagMember
	tagBinary
	tagUnary
	tagCall
	tagConditional
	tagBlock
	tagLambda
	tagAssign
	tagLoop
	tagBreak
	tagIndex
	tagLen
	tagCursorOpen
	tagCursorNext
	tagCursorCurrent
	tagCursorClose
	tagNil

	tagSource
	tagWhere
	tagSelect
	tagSelectMany
	tagAggregate
)

// Hasher computes structural hashes consistent with Comparer: trees that
// compare equal hash equal. Bound variables contribute their scope position,
// labels contribute nothing but their kind, and constants that compare by
// identity contribute only their type.
type Hasher struct {
	d      *xxhash.Digest
	scopes [][]*expr.Param
	buf    [8]byte
}

// NewHasher returns a hasher seeded with a domain prefix.
func NewHasher(domain string) *Hasher {
	h := &Hasher{d: xxhash.New()}
	h.str(domain)
	return h
}

// HashExpr hashes a single expression.
func HashExpr(e expr.Expr) uint64 {
	h := NewHasher(DomainExpr)
	h.Expr(e)
	return h.Sum64()
}

// HashPlan hashes a plan.
func HashPlan(n plan.Node) uint64 {
	h := NewHasher(DomainPlan)
	h.Plan(n)
	return h.Sum64()
}

// Sum64 returns the hash of everything written so far.
func (h *Hasher) Sum64() uint64 { return h.d.Sum64() }

// Bind opens a scope, mirroring Comparer.Bind. Parameter types are hashed.
func (h *Hasher) Bind(params []*expr.Param) {
	h.uint(uint64(len(params)))
	for _, p := range params {
		h.typ(p.T)
	}
	h.scopes = append(h.scopes, params)
}

// Unbind closes the innermost scope.
func (h *Hasher) Unbind() { h.scopes = h.scopes[:len(h.scopes)-1] }

func (h *Hasher) tag(t byte) { h.uint(uint64(t)) }

func (h *Hasher) uint(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.d.Write(h.buf[:])
}

// str writes s followed by a null separator so adjacent strings cannot
// run together.
func (h *Hasher) str(s string) {
	_, _ = h.d.WriteString(s)
	_, _ = h.d.Write([]byte{0x00})
}

func (h *Hasher) typ(t expr.Type) { h.str(string(t)) }

func (h *Hasher) param(p *expr.Param) {
	if d, i, ok := resolve(h.scopes, p); ok {
		h.tag(tagParam)
		h.uint(uint64(d))
		h.uint(uint64(i))
		h.typ(p.T)
		return
	}
	h.tag(tagFreeParam)
	h.str(p.Name)
	h.typ(p.T)
}

func (h *Hasher) value(v any) {
	switch x := v.(type) {
	case int64:
		h.uint(uint64(x))
	case float64:
		h.uint(math.Float64bits(x))
	case bool:
		if x {
			h.uint(1)
		} else {
			h.uint(0)
		}
	case string:
		h.str(x)
	case []any:
		h.uint(uint64(len(x)))
	}
}

// Plan writes a plan.
func (h *Hasher) Plan(n plan.Node) {
	if n == nil {
		h.tag(tagNil)
		return
	}
	h.typ(n.ElemType())
	switch x := n.(type) {
	case *plan.Source:
		h.tag(tagSource)
		h.Expr(x.Ref)
	case *plan.Where:
		h.tag(tagWhere)
		h.Plan(x.Source)
		h.Expr(x.Predicate)
	case *plan.Select:
		h.tag(tagSelect)
		h.Plan(x.Source)
		h.Expr(x.Selector)
	case *plan.SelectMany:
		h.tag(tagSelectMany)
		h.Plan(x.Source)
		h.Expr(x.Selector)
		if x.Projection == nil {
			h.tag(tagNil)
		} else {
			h.Expr(x.Projection)
		}
	case *plan.Aggregate:
		h.tag(tagAggregate)
		h.Plan(x.Source)
		h.Expr(x.Seed)
		h.Expr(x.Func)
	default:
		panic(fmt.Sprintf("equiv: unhandled plan node %T", n))
	}
}

// Expr writes an expression.
func (h *Hasher) Expr(e expr.Expr) {
	if e == nil {
		h.tag(tagNil)
		return
	}

	switch x := e.(type) {
	case *expr.Constant:
		h.tag(tagConstant)
		h.typ(x.T)
		h.value(x.Value)

	case *expr.Param:
		h.param(x)

	case *expr.Member:
		h.tag(tagMember)
		h.str(expr.NormalizeField(x.Field))
		h.typ(x.T)
		h.Expr(x.Object)

	case *expr.Binary:
		h.tag(tagBinary)
		h.uint(uint64(x.Op))
		h.Expr(x.Left)
		h.Expr(x.Right)

	case *expr.Unary:
		h.tag(tagUnary)
		h.uint(uint64(x.Op))
		h.Expr(x.Operand)

	case *expr.Call:
		h.tag(tagCall)
		h.str(x.Fn.Name)
		h.uint(uint64(len(x.Args)))
		for _, a := range x.Args {
			h.Expr(a)
		}

	case *expr.Conditional:
		h.tag(tagConditional)
		h.Expr(x.Test)
		h.Expr(x.IfTrue)
		h.Expr(x.IfFalse)

	case *expr.Block:
		h.tag(tagBlock)
		h.Bind(x.Vars)
		h.uint(uint64(len(x.Exprs)))
		for _, s := range x.Exprs {
			h.Expr(s)
		}
		h.Unbind()

	case *expr.Lambda:
		h.tag(tagLambda)
		h.Bind(x.Params)
		h.Expr(x.Body)
		h.Unbind()

	case *expr.Assign:
		h.tag(tagAssign)
		h.param(x.Target)
		h.Expr(x.Value)

	case *expr.Loop:
		h.tag(tagLoop)
		h.Expr(x.Body)

	case *expr.Break:
		h.tag(tagBreak)

	case *expr.Index:
		h.tag(tagIndex)
		h.Expr(x.Array)
		h.Expr(x.Index)

	case *expr.Len:
		h.tag(tagLen)
		h.Expr(x.Array)

	case *expr.CursorOpen:
		h.tag(tagCursorOpen)
		h.Expr(x.Source)

	case *expr.CursorNext:
		h.tag(tagCursorNext)
		h.Expr(x.Cursor)

	case *expr.CursorCurrent:
		h.tag(tagCursorCurrent)
		h.Expr(x.Cursor)

	case *expr.CursorClose:
		h.tag(tagCursorClose)
		h.Expr(x.Cursor)

	default:
		panic(fmt.Sprintf("equiv: unhandled expression %T", e))
	}
}
