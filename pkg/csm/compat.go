// SPDX-License-Identifier: Apache-2.0

package csm

// MakeNullable returns t with its nullable flag set. For AnyOf, the flag
// lives on the wrapper, not on individual variants.
func MakeNullable(t Type) Type {
	t.Nullable = true
	return t
}

// IsCompatible reports whether a and b can be treated as the same column:
// their simple-type sets are equal and a's nullability is a subset of b's,
// or both are structurally compatible Objects/Arrays.
func IsCompatible(a, b Type) bool {
	switch {
	case a.Kind == KindObject && b.Kind == KindObject:
		return objectsCompatible(a, b) && nullableImplies(a.Nullable, b.Nullable)
	case a.Kind == KindArray && b.Kind == KindArray:
		if a.Items == nil || b.Items == nil {
			return a.Items == b.Items && nullableImplies(a.Nullable, b.Nullable)
		}
		return IsCompatible(*a.Items, *b.Items) && nullableImplies(a.Nullable, b.Nullable)
	default:
		return sameSimpleTypeSet(a, b) && nullableImplies(a.Nullable, b.Nullable)
	}
}

// IsSubset reports whether a's simple-type set is a subset of b's and a's
// nullability implies b's.
func IsSubset(a, b Type) bool {
	aSet := a.SimpleTypeSet()
	bSet := b.SimpleTypeSet()
	for k := range aSet {
		if !bSet[k] {
			return false
		}
	}
	return nullableImplies(a.Nullable, b.Nullable)
}

// Equal reports deep structural equality of two canonical types, ignoring
// nothing: nullability, field order, and variant sets must all match.
func Equal(a, b Type) bool {
	if a.Kind != b.Kind || a.Nullable != b.Nullable {
		return false
	}
	switch a.Kind {
	case KindObject:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !Equal(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	case KindArray:
		if (a.Items == nil) != (b.Items == nil) {
			return false
		}
		if a.Items == nil {
			return true
		}
		return Equal(*a.Items, *b.Items)
	case KindAnyOf:
		return sameKindSlice(a.Variants, b.Variants)
	default:
		return true
	}
}

func objectsCompatible(a, b Type) bool {
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for _, af := range a.Fields {
		bf, ok := b.Field(af.Name)
		if !ok || !IsCompatible(af.Type, bf) {
			return false
		}
	}
	return true
}

func sameSimpleTypeSet(a, b Type) bool {
	aSet := a.SimpleTypeSet()
	bSet := b.SimpleTypeSet()
	if len(aSet) != len(bSet) {
		return false
	}
	for k := range aSet {
		if !bSet[k] {
			return false
		}
	}
	return true
}

func sameKindSlice(a, b []Kind) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[Kind]int)
	for _, k := range a {
		set[k]++
	}
	for _, k := range b {
		set[k]--
	}
	for _, v := range set {
		if v != 0 {
			return false
		}
	}
	return true
}

func nullableImplies(a, b bool) bool {
	return !a || b
}
