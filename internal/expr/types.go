package expr

import "strings"

// Type is the canonical spelling of a static type.
//
// Composite types are built with ArrayOf, SeqOf, CursorOf and FuncOf and never
// spelled by hand, so two equal types always have equal strings.
type Type string

// Scalar types.
const (
	IntType    Type = "int"
	FloatType  Type = "float"
	BoolType   Type = "bool"
	StringType Type = "string"
	VoidType   Type = "void"
	EnvType    Type = "env"
)

const (
	arrayPrefix  = "[]"
	seqPrefix    = "seq["
	cursorPrefix = "cursor["
	funcPrefix   = "func("
)

// ArrayOf returns the type of an indexable array of elem.
func ArrayOf(elem Type) Type { return Type(arrayPrefix + string(elem)) }

// SeqOf returns the type of a one-shot sequence of elem.
func SeqOf(elem Type) Type { return Type(seqPrefix + string(elem) + "]") }

// CursorOf returns the type of an open cursor over elem.
func CursorOf(elem Type) Type { return Type(cursorPrefix + string(elem) + "]") }

// FuncOf returns the type of a lambda.
func FuncOf(params []Type, result Type) Type {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = string(p)
	}
	return Type(funcPrefix + strings.Join(parts, ",") + ")" + string(result))
}

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool { return strings.HasPrefix(string(t), arrayPrefix) }

// IsSeq reports whether t is a one-shot sequence type.
func (t Type) IsSeq() bool { return strings.HasPrefix(string(t), seqPrefix) }

// IsCursor reports whether t is a cursor type.
func (t Type) IsCursor() bool { return strings.HasPrefix(string(t), cursorPrefix) }

// IsSequence reports whether values of t can be iterated by a producer.
func (t Type) IsSequence() bool { return t.IsArray() || t.IsSeq() }

// IsNumeric reports whether t supports arithmetic.
func (t Type) IsNumeric() bool { return t == IntType || t == FloatType }

// Elem returns the element type of an array, sequence or cursor type, and ""
// for every other type.
func (t Type) Elem() Type {
	s := string(t)
	switch {
	case strings.HasPrefix(s, arrayPrefix):
		return Type(s[len(arrayPrefix):])
	case strings.HasPrefix(s, seqPrefix):
		return Type(s[len(seqPrefix) : len(s)-1])
	case strings.HasPrefix(s, cursorPrefix):
		return Type(s[len(cursorPrefix) : len(s)-1])
	}
	return ""
}

func (t Type) String() string { return string(t) }

// TypeOf infers the static type of a runtime value.
//
// Arrays report their element type from the first element; an empty array
// has no inferable element type and TypeOf returns false. Use an explicit
// type with ConstOf for such values.
func TypeOf(v any) (Type, bool) {
	switch x := v.(type) {
	case int64, int:
		return IntType, true
	case float64:
		return FloatType, true
	case bool:
		return BoolType, true
	case string:
		return StringType, true
	case *Env:
		return EnvType, true
	case []any:
		if len(x) == 0 {
			return "", false
		}
		elem, ok := TypeOf(x[0])
		if !ok {
			return "", false
		}
		return ArrayOf(elem), true
	case *Sequence:
		if x.elem == "" {
			return "", false
		}
		return SeqOf(x.elem), true
	}
	return "", false
}

// Fits reports whether a runtime value belongs to type t.
func Fits(v any, t Type) bool {
	switch {
	case t == IntType:
		_, ok := v.(int64)
		return ok
	case t == FloatType:
		_, ok := v.(float64)
		return ok
	case t == BoolType:
		_, ok := v.(bool)
		return ok
	case t == StringType:
		_, ok := v.(string)
		return ok
	case t == EnvType:
		_, ok := v.(*Env)
		return ok
	case t.IsArray():
		_, ok := v.([]any)
		return ok
	case t.IsSeq():
		_, ok := v.(*Sequence)
		return ok
	case t.IsCursor():
		_, ok := v.(*Cursor)
		return ok
	}
	return false
}
