// SPDX-License-Identifier: Apache-2.0

package csm

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// valueKind tags a parsed JSON value.
type valueKind int

const (
	vkNull valueKind = iota
	vkBool
	vkNumber
	vkString
	vkArray
	vkObject
)

// field is one ordered (key, value) pair of a JSON object.
type field struct {
	Key   string
	Value jsonValue
}

// jsonValue is a JSON value decoded while preserving object key order,
// which encoding/json's map[string]interface{} does not. Schema property
// order drives the CSM's ordered Object.Fields, which in turn drives
// column order in denormalized tables.
type jsonValue struct {
	Kind   valueKind
	Bool   bool
	Number json.Number
	Str    string
	Arr    []jsonValue
	Obj    []field
}

func (v jsonValue) get(key string) (jsonValue, bool) {
	for _, f := range v.Obj {
		if f.Key == key {
			return f.Value, true
		}
	}
	return jsonValue{}, false
}

func (v jsonValue) stringOr(key, def string) string {
	if f, ok := v.get(key); ok && f.Kind == vkString {
		return f.Str
	}
	return def
}

// parseJSONValue decodes raw into a jsonValue tree, preserving object key
// order via token-based streaming decode.
func parseJSONValue(raw []byte) (jsonValue, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return jsonValue{}, err
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (jsonValue, error) {
	tok, err := dec.Token()
	if err != nil {
		return jsonValue{}, err
	}
	return decodeValueFromToken(dec, tok)
}

func decodeValueFromToken(dec *json.Decoder, tok json.Token) (jsonValue, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return jsonValue{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return jsonValue{Kind: vkString, Str: t}, nil
	case json.Number:
		return jsonValue{Kind: vkNumber, Number: t}, nil
	case bool:
		return jsonValue{Kind: vkBool, Bool: t}, nil
	case nil:
		return jsonValue{Kind: vkNull}, nil
	default:
		return jsonValue{}, fmt.Errorf("unsupported token type %T", tok)
	}
}

func decodeObject(dec *json.Decoder) (jsonValue, error) {
	obj := jsonValue{Kind: vkObject}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return jsonValue{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return jsonValue{}, fmt.Errorf("expected object key, got %T", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return jsonValue{}, err
		}
		obj.Obj = append(obj.Obj, field{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil { // consume closing '}'
		return jsonValue{}, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) (jsonValue, error) {
	arr := jsonValue{Kind: vkArray}
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return jsonValue{}, err
		}
		arr.Arr = append(arr.Arr, val)
	}
	if _, err := dec.Token(); err != nil { // consume closing ']'
		return jsonValue{}, err
	}
	return arr, nil
}
