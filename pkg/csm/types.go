// SPDX-License-Identifier: Apache-2.0

// Package csm implements the canonical schema model: a normalized
// representation of JSON Schema documents used to drive denormalization,
// flattening, and schema reconciliation against a Postgres catalog.
package csm

import "encoding/json"

// Kind tags the variant of a Type node.
type Kind int

// MarshalJSON renders k by its String() name rather than its ordinal, so
// a catalog snapshot dumped as JSON/YAML reads as "integer", not "1".
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

const (
	KindBoolean Kind = iota
	KindInteger
	KindNumber
	KindString
	KindDateTimeString
	KindObject
	KindArray
	KindNull
	KindAnyOf
)

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDateTimeString:
		return "date-time"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindNull:
		return "null"
	case KindAnyOf:
		return "anyOf"
	}
	return "unknown"
}

// Field is one entry of an Object's ordered field list.
type Field struct {
	Name string
	Type Type
}

// Type is a canonical schema model node. Exactly one of the fields below
// is meaningful, selected by Kind; Object/Array/AnyOf carry their own
// children. Nullable is tracked as a flag on every node, never as a
// member of an AnyOf or a standalone Null alternative.
type Type struct {
	Kind     Kind
	Nullable bool

	// Object
	Fields []Field

	// Array
	Items *Type

	// AnyOf: the member kinds of a type split. Any kind but AnyOf or Null
	// itself may appear, including Object and Array.
	Variants []Kind
}

// IsSimple reports whether k is one of the variant-eligible kinds that
// can appear as an AnyOf member or be type-split: every kind except Null
// and AnyOf itself. Object and Array are eligible (embedded as JSON when
// they end up as one branch of a type split), matching §3's remote
// column mapping.
func IsSimple(k Kind) bool {
	switch k {
	case KindNull, KindAnyOf:
		return false
	}
	return true
}

// Suffix returns the physical-column suffix used when this simple kind is
// emitted as one branch of a type-split column.
func (k Kind) Suffix() string {
	switch k {
	case KindBoolean:
		return "b"
	case KindInteger:
		return "i"
	case KindNumber:
		return "f"
	case KindString:
		return "s"
	case KindDateTimeString:
		return "t"
	case KindObject:
		return "o"
	case KindArray:
		return "a"
	}
	return "j"
}

// SimpleTypeSet returns the set of simple-type kinds represented by t,
// used by is_compatible and is_subset. Object and Array contribute their
// own kind (KindObject/KindArray) as a single-element set since their
// structural compatibility is checked separately.
func (t Type) SimpleTypeSet() map[Kind]bool {
	set := make(map[Kind]bool)
	switch t.Kind {
	case KindAnyOf:
		for _, v := range t.Variants {
			set[v] = true
		}
	default:
		set[t.Kind] = true
	}
	return set
}

// Field looks up a field by name, returning (type, true) if present.
func (t Type) Field(name string) (Type, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return Type{}, false
}
