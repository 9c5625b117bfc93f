package selection

import (
	"strings"

	"github.com/hanpama/graphcache/internal/value"
)

// TypeKind discriminates OutputType.
type TypeKind string

const (
	KindScalar  TypeKind = "SCALAR"
	KindObject  TypeKind = "OBJECT"
	KindList    TypeKind = "LIST"
	KindNonNull TypeKind = "NON_NULL"
)

// OutputType is the recursive type a field value completes into.
type OutputType struct {
	Kind   TypeKind
	OfType *OutputType         // For List and NonNull
	Scalar value.ScalarDecoder // For Scalar
	Object SelectionSet        // For Object
}

func ScalarType(d value.ScalarDecoder) *OutputType {
	return &OutputType{Kind: KindScalar, Scalar: d}
}
func ObjectType(s SelectionSet) *OutputType { return &OutputType{Kind: KindObject, Object: s} }
func ListOf(t *OutputType) *OutputType      { return &OutputType{Kind: KindList, OfType: t} }
func NonNull(t *OutputType) *OutputType     { return &OutputType{Kind: KindNonNull, OfType: t} }

// Named strips List and NonNull wrappers.
func (t *OutputType) Named() *OutputType {
	cur := t
	for cur != nil && (cur.Kind == KindList || cur.Kind == KindNonNull) {
		cur = cur.OfType
	}
	if cur == nil {
		return &OutputType{}
	}
	return cur
}

// IsNonNull reports whether the outermost wrapper is NonNull.
func (t *OutputType) IsNonNull() bool { return t != nil && t.Kind == KindNonNull }

func (t *OutputType) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindNonNull:
		return t.OfType.String() + "!"
	case KindList:
		return "[" + t.OfType.String() + "]"
	case KindScalar:
		if t.Scalar != nil {
			return t.Scalar.Name()
		}
		return "Scalar"
	case KindObject:
		if m, ok := t.Object.(*Map); ok && m.TypeName != "" {
			return m.TypeName
		}
		return "Object"
	}
	return strings.ToLower(string(t.Kind))
}
