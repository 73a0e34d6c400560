// SPDX-License-Identifier: Apache-2.0

package csm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var jsonTypeNames = map[string]Kind{
	"boolean": KindBoolean,
	"integer": KindInteger,
	"number":  KindNumber,
	"string":  KindString,
	"object":  KindObject,
	"array":   KindArray,
}

// Simplify resolves $refs, eliminates allOf by deep-merging, collapses
// anyOf into a typed AnyOf, and pushes "null" out of type arrays into a
// per-node Nullable flag. It is idempotent: simplifying an already-
// simplified document (re-encoded) produces the same Type.
func Simplify(raw []byte) (Type, error) {
	root, err := parseJSONValue(raw)
	if err != nil {
		return Type{}, fmt.Errorf("parsing schema: %w", err)
	}
	return simplifyNode(root, root, "#")
}

func simplifyNode(root, node jsonValue, path string) (Type, error) {
	node, err := resolveAndMerge(root, node, path)
	if err != nil {
		return Type{}, err
	}

	if anyOfVal, ok := node.get("anyOf"); ok && anyOfVal.Kind == vkArray {
		return simplifyAnyOf(root, anyOfVal, path)
	}

	kinds, nullable, err := extractTypeKinds(node, path)
	if err != nil {
		return Type{}, err
	}

	if len(kinds) == 0 {
		if _, hasProps := node.get("properties"); hasProps {
			kinds = []Kind{KindObject}
		} else if _, hasItems := node.get("items"); hasItems {
			kinds = []Kind{KindArray}
		} else {
			return Type{}, UnsupportedSchemaError{Path: path}
		}
	}

	if len(kinds) > 1 {
		for _, k := range kinds {
			if !IsSimple(k) {
				return Type{}, UnsupportedSchemaError{Path: path}
			}
		}
		return Type{Kind: KindAnyOf, Nullable: nullable, Variants: dedupKinds(kinds)}, nil
	}

	switch kinds[0] {
	case KindObject:
		return simplifyObject(root, node, nullable, path)
	case KindArray:
		return simplifyArray(root, node, nullable, path)
	case KindString:
		k := KindString
		if node.stringOr("format", "") == "date-time" {
			k = KindDateTimeString
		}
		return Type{Kind: k, Nullable: nullable}, nil
	default:
		return Type{Kind: kinds[0], Nullable: nullable}, nil
	}
}

// resolveAndMerge follows a chain of $refs and then deep-merges any allOf
// members into the node, repeating until neither remains.
func resolveAndMerge(root, node jsonValue, path string) (jsonValue, error) {
	for {
		if refVal, ok := node.get("$ref"); ok && refVal.Kind == vkString {
			resolved, err := resolvePointer(root, refVal.Str)
			if err != nil {
				return jsonValue{}, UnresolvableRefError{Ref: refVal.Str, Err: err}
			}
			node = resolved
			continue
		}
		if allOfVal, ok := node.get("allOf"); ok && allOfVal.Kind == vkArray {
			merged, err := mergeAllOf(root, node, allOfVal, path)
			if err != nil {
				return jsonValue{}, err
			}
			node = merged
			continue
		}
		return node, nil
	}
}

// mergeAllOf deep-merges node's own keywords with every allOf member: type
// sets intersect when both sides declare one, object properties union
// (later members win on conflicting keys), and the allOf keyword itself is
// dropped from the result.
func mergeAllOf(root, node, allOfVal jsonValue, path string) (jsonValue, error) {
	merged := jsonValue{Kind: vkObject}
	for _, f := range node.Obj {
		if f.Key == "allOf" {
			continue
		}
		merged.Obj = append(merged.Obj, f)
	}

	for i, member := range allOfVal.Arr {
		resolvedMember, err := resolveAndMerge(root, member, fmt.Sprintf("%s/allOf/%d", path, i))
		if err != nil {
			return jsonValue{}, err
		}
		merged = mergeObjectKeywords(merged, resolvedMember)
	}

	return merged, nil
}

func mergeObjectKeywords(into, from jsonValue) jsonValue {
	for _, f := range from.Obj {
		switch f.Key {
		case "properties":
			existing, _ := into.get("properties")
			into = setField(into, "properties", mergeProperties(existing, f.Value))
		case "type":
			existing, ok := into.get("type")
			if !ok {
				into = setField(into, "type", f.Value)
			} else {
				into = setField(into, "type", intersectTypes(existing, f.Value))
			}
		default:
			if _, exists := into.get(f.Key); !exists {
				into = setField(into, f.Key, f.Value)
			}
		}
	}
	return into
}

func mergeProperties(a, b jsonValue) jsonValue {
	merged := jsonValue{Kind: vkObject}
	merged.Obj = append(merged.Obj, a.Obj...)
	for _, bf := range b.Obj {
		found := false
		for i, mf := range merged.Obj {
			if mf.Key == bf.Key {
				merged.Obj[i].Value = bf.Value
				found = true
				break
			}
		}
		if !found {
			merged.Obj = append(merged.Obj, bf)
		}
	}
	return merged
}

func intersectTypes(a, b jsonValue) jsonValue {
	namesA := typeNameSet(a)
	namesB := typeNameSet(b)
	var out jsonValue
	out.Kind = vkArray
	for name := range namesA {
		if namesB[name] {
			out.Arr = append(out.Arr, jsonValue{Kind: vkString, Str: name})
		}
	}
	sort.Slice(out.Arr, func(i, j int) bool { return out.Arr[i].Str < out.Arr[j].Str })
	return out
}

func typeNameSet(v jsonValue) map[string]bool {
	set := make(map[string]bool)
	switch v.Kind {
	case vkString:
		set[v.Str] = true
	case vkArray:
		for _, e := range v.Arr {
			if e.Kind == vkString {
				set[e.Str] = true
			}
		}
	}
	return set
}

func setField(v jsonValue, key string, val jsonValue) jsonValue {
	for i, f := range v.Obj {
		if f.Key == key {
			v.Obj[i].Value = val
			return v
		}
	}
	v.Obj = append(v.Obj, field{Key: key, Value: val})
	return v
}

func extractTypeKinds(node jsonValue, path string) ([]Kind, bool, error) {
	typeVal, ok := node.get("type")
	if !ok {
		return nil, false, nil
	}

	var names []string
	switch typeVal.Kind {
	case vkString:
		names = []string{typeVal.Str}
	case vkArray:
		for _, e := range typeVal.Arr {
			if e.Kind == vkString {
				names = append(names, e.Str)
			}
		}
	default:
		return nil, false, UnsupportedSchemaError{Path: path}
	}

	var kinds []Kind
	nullable := false
	for _, name := range names {
		if name == "null" {
			nullable = true
			continue
		}
		kind, known := jsonTypeNames[name]
		if !known {
			return nil, false, UnsupportedSchemaError{Path: path + "#type=" + name}
		}
		kinds = append(kinds, kind)
	}

	return kinds, nullable, nil
}

func simplifyAnyOf(root, anyOfVal jsonValue, path string) (Type, error) {
	variantSet := make(map[Kind]bool)
	nullable := false

	for i, member := range anyOfVal.Arr {
		t, err := simplifyNode(root, member, fmt.Sprintf("%s/anyOf/%d", path, i))
		if err != nil {
			return Type{}, err
		}
		if t.Nullable {
			nullable = true
		}
		switch t.Kind {
		case KindAnyOf:
			for _, v := range t.Variants {
				variantSet[v] = true
			}
		case KindNull:
			nullable = true
		default:
			if !IsSimple(t.Kind) {
				return Type{}, UnsupportedSchemaError{Path: path}
			}
			variantSet[t.Kind] = true
		}
	}

	var variants []Kind
	for k := range variantSet {
		variants = append(variants, k)
	}
	variants = dedupKinds(variants)

	if len(variants) == 1 {
		return Type{Kind: variants[0], Nullable: nullable}, nil
	}

	return Type{Kind: KindAnyOf, Nullable: nullable, Variants: variants}, nil
}

func simplifyObject(root, node jsonValue, nullable bool, path string) (Type, error) {
	propsVal, _ := node.get("properties")

	fields := make([]Field, 0, len(propsVal.Obj))
	for _, f := range propsVal.Obj {
		childType, err := simplifyNode(root, f.Value, path+"/properties/"+f.Key)
		if err != nil {
			return Type{}, err
		}
		fields = append(fields, Field{Name: f.Key, Type: childType})
	}

	return Type{Kind: KindObject, Nullable: nullable, Fields: fields}, nil
}

func simplifyArray(root, node jsonValue, nullable bool, path string) (Type, error) {
	itemsVal, ok := node.get("items")
	if !ok {
		return Type{}, UnsupportedSchemaError{Path: path + "/items"}
	}
	// Tuple-typed "items" (a JSON array of schemas) has no place in the
	// canonical model: every array is homogeneous. Only the first member
	// is honored, matching the original tool's list-schema handling.
	if itemsVal.Kind == vkArray {
		if len(itemsVal.Arr) == 0 {
			return Type{}, UnsupportedSchemaError{Path: path + "/items"}
		}
		itemsVal = itemsVal.Arr[0]
	}

	itemType, err := simplifyNode(root, itemsVal, path+"/items")
	if err != nil {
		return Type{}, err
	}

	return Type{Kind: KindArray, Nullable: nullable, Items: &itemType}, nil
}

func dedupKinds(kinds []Kind) []Kind {
	seen := make(map[Kind]bool)
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// resolvePointer resolves a local JSON-pointer $ref (e.g.
// "#/definitions/foo" or "#/$defs/foo/bar") against root. Remote
// ($id-qualified) references are not supported: the message stream's
// schemas are self-contained documents.
func resolvePointer(root jsonValue, ref string) (jsonValue, error) {
	if !strings.HasPrefix(ref, "#") {
		return jsonValue{}, fmt.Errorf("only local document refs are supported, got %q", ref)
	}

	ptr := strings.TrimPrefix(ref, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return root, nil
	}

	cur := root
	for _, raw := range strings.Split(ptr, "/") {
		seg := strings.ReplaceAll(strings.ReplaceAll(raw, "~1", "/"), "~0", "~")

		switch cur.Kind {
		case vkObject:
			v, ok := cur.get(seg)
			if !ok {
				return jsonValue{}, fmt.Errorf("pointer segment %q not found", seg)
			}
			cur = v
		case vkArray:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur.Arr) {
				return jsonValue{}, fmt.Errorf("pointer segment %q is not a valid array index", seg)
			}
			cur = cur.Arr[idx]
		default:
			return jsonValue{}, fmt.Errorf("cannot descend into scalar at segment %q", seg)
		}
	}

	return cur, nil
}
