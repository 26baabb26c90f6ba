package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders e as indented pseudo-code. Variables and labels are named
// by first appearance and disambiguated with a numeric suffix, so the output
// is deterministic for a given tree.
func Format(e Expr) string {
	p := &printer{
		params: make(map[*Param]string),
		labels: make(map[*Label]string),
		taken:  make(map[string]bool),
	}
	p.stmt(e)
	return p.sb.String()
}

type printer struct {
	sb     strings.Builder
	depth  int
	params map[*Param]string
	labels map[*Label]string
	taken  map[string]bool
}

func (p *printer) unique(base string) string {
	if base == "" {
		base = "v"
	}
	name := base
	for i := 2; p.taken[name]; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	p.taken[name] = true
	return name
}

func (p *printer) param(v *Param) string {
	if n, ok := p.params[v]; ok {
		return n
	}
	n := p.unique(v.Name)
	p.params[v] = n
	return n
}

func (p *printer) label(l *Label) string {
	if n, ok := p.labels[l]; ok {
		return n
	}
	n := p.unique(l.Name)
	p.labels[l] = n
	return n
}

func (p *printer) line(format string, args ...any) {
	p.sb.WriteString(strings.Repeat("  ", p.depth))
	fmt.Fprintf(&p.sb, format, args...)
	p.sb.WriteByte('\n')
}

func (p *printer) stmt(e Expr) {
	switch n := e.(type) {
	case *Block:
		p.line("{")
		p.depth++
		if len(n.Vars) > 0 {
			decls := make([]string, len(n.Vars))
			for i, v := range n.Vars {
				decls[i] = p.param(v) + " " + string(v.T)
			}
			p.line("var %s", strings.Join(decls, ", "))
		}
		for _, x := range n.Exprs {
			p.stmt(x)
		}
		p.depth--
		p.line("}")

	case *Loop:
		p.line("loop %s {", p.label(n.Break))
		p.depth++
		p.stmt(n.Body)
		p.depth--
		p.line("}")

	case *Conditional:
		p.line("if %s {", p.inline(n.Test))
		p.depth++
		p.stmt(n.IfTrue)
		p.depth--
		if n.IfFalse != nil {
			p.line("} else {")
			p.depth++
			p.stmt(n.IfFalse)
			p.depth--
		}
		p.line("}")

	case *Assign:
		p.line("%s = %s", p.param(n.Target), p.inline(n.Value))

	case *Break:
		p.line("break %s", p.label(n.Target))

	default:
		p.line("%s", p.inline(e))
	}
}

func (p *printer) inline(e Expr) string {
	switch n := e.(type) {
	case *Constant:
		return formatConstant(n)
	case *Param:
		return p.param(n)
	case *Member:
		return p.inline(n.Object) + "." + n.Field
	case *Binary:
		return "(" + p.inline(n.Left) + " " + n.Op.String() + " " + p.inline(n.Right) + ")"
	case *Unary:
		return n.Op.String() + p.inline(n.Operand)
	case *Call:
		return n.Fn.Name + "(" + p.list(n.Args) + ")"
	case *Conditional:
		if n.IfFalse == nil {
			return "(" + p.inline(n.Test) + " ? " + p.inline(n.IfTrue) + " : void)"
		}
		return "(" + p.inline(n.Test) + " ? " + p.inline(n.IfTrue) + " : " + p.inline(n.IfFalse) + ")"
	case *Lambda:
		names := make([]string, len(n.Params))
		for i, v := range n.Params {
			names[i] = p.param(v)
		}
		return "(" + strings.Join(names, ", ") + ") => " + p.inline(n.Body)
	case *Assign:
		return "(" + p.param(n.Target) + " = " + p.inline(n.Value) + ")"
	case *Index:
		return p.inline(n.Array) + "[" + p.inline(n.Index) + "]"
	case *Len:
		return "len(" + p.inline(n.Array) + ")"
	case *CursorOpen:
		return "open(" + p.inline(n.Source) + ")"
	case *CursorNext:
		return "next(" + p.inline(n.Cursor) + ")"
	case *CursorCurrent:
		return "current(" + p.inline(n.Cursor) + ")"
	case *CursorClose:
		return "close(" + p.inline(n.Cursor) + ")"
	case *Block, *Loop, *Break:
		sub := &printer{params: p.params, labels: p.labels, taken: p.taken, depth: p.depth}
		sub.stmt(e)
		return strings.TrimSpace(sub.sb.String())
	}
	panic(fmt.Sprintf("expr.Format: unhandled node %T", e))
}

func (p *printer) list(es []Expr) string {
	parts := make([]string, len(es))
	for i, x := range es {
		parts[i] = p.inline(x)
	}
	return strings.Join(parts, ", ")
}

func formatConstant(c *Constant) string {
	switch v := c.Value.(type) {
	case string:
		return strconv.Quote(v)
	case []any:
		return fmt.Sprintf("%s{len=%d}", c.T, len(v))
	case *Env:
		return "env(" + v.Name() + ")"
	case *Sequence:
		return string(c.T)
	case nil:
		return "nil"
	}
	return fmt.Sprintf("%v", c.Value)
}
