/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// The JSON codec is schema-driven: descriptors walk a parsed document tree
// (or build one up) through the Serializer/Deserializer interfaces. The tree
// preserves object member order and keeps numbers in their textual form so
// that the integer/fractional distinction DAP requires survives parsing.
//
// Tree nodes are one of: nil, bool, json.Number, string, *jsonObject,
// []jsonNode.
type jsonNode = any

// jsonObject is a JSON object that preserves member insertion order.
type jsonObject struct {
	keys   []string
	values map[string]jsonNode
}

func newJSONObject() *jsonObject {
	return &jsonObject{values: make(map[string]jsonNode)}
}

func (o *jsonObject) set(name string, value jsonNode) {
	if _, exists := o.values[name]; !exists {
		o.keys = append(o.keys, name)
	}
	o.values[name] = value
}

func (o *jsonObject) get(name string) (jsonNode, bool) {
	v, ok := o.values[name]
	return v, ok
}

func (o *jsonObject) getString(name string) (string, bool) {
	v, ok := o.values[name].(string)
	return v, ok
}

func (o *jsonObject) getInt(name string) (int, bool) {
	n, ok := o.values[name].(json.Number)
	if !ok || !isIntegerNumber(n) {
		return 0, false
	}
	i, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil {
		return 0, false
	}
	return int(i), true
}

func (o *jsonObject) getBool(name string) (bool, bool) {
	v, ok := o.values[name].(bool)
	return v, ok
}

func isIntegerNumber(n json.Number) bool {
	return !strings.ContainsAny(string(n), ".eE")
}

// parseJSON parses one complete JSON document into a node tree.
func parseJSON(data []byte) (jsonNode, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	node, err := parseValue(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse JSON: trailing data after document")
	}

	return node, nil
}

func parseValue(dec *json.Decoder) (jsonNode, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return parseFromToken(dec, tok)
}

func parseFromToken(dec *json.Decoder, tok json.Token) (jsonNode, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := newJSONObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object member name is not a string")
				}
				value, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				obj.set(key, value)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return obj, nil
		case '[':
			var arr []jsonNode
			for dec.More() {
				value, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, value)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			if arr == nil {
				arr = []jsonNode{}
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter '%v'", t)
		}
	case bool, string, json.Number:
		return t, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

// dumpJSON renders a node tree as compact JSON, emitting object members in
// insertion order.
func dumpJSON(node jsonNode) []byte {
	var buf bytes.Buffer
	writeNode(&buf, node)
	return buf.Bytes()
}

func writeNode(buf *bytes.Buffer, node jsonNode) {
	switch t := node.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case json.Number:
		buf.WriteString(string(t))
	case string:
		encoded, _ := json.Marshal(t)
		buf.Write(encoded)
	case *jsonObject:
		buf.WriteByte('{')
		for i, key := range t.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encoded, _ := json.Marshal(key)
			buf.Write(encoded)
			buf.WriteByte(':')
			writeNode(buf, t.values[key])
		}
		buf.WriteByte('}')
	case []jsonNode:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeNode(buf, elem)
		}
		buf.WriteByte(']')
	}
}

func nodeKind(node jsonNode) string {
	switch t := node.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		if isIntegerNumber(t) {
			return "integer"
		}
		return "number"
	case string:
		return "string"
	case *jsonObject:
		return "object"
	case []jsonNode:
		return "array"
	default:
		return "unknown"
	}
}

func integerNode(v Integer) json.Number {
	return json.Number(strconv.FormatInt(int64(v), 10))
}

func numberNode(v Number) json.Number {
	return json.Number(strconv.FormatFloat(float64(v), 'g', -1, 64))
}

////////////////////////////////////////////////////////////////////////////////
// Serializer
////////////////////////////////////////////////////////////////////////////////

type jsonSerializer struct {
	node    jsonNode
	removed bool
}

var _ Serializer = (*jsonSerializer)(nil)

func (s *jsonSerializer) SerializeBoolean(v Boolean) error {
	s.node = bool(v)
	return nil
}

func (s *jsonSerializer) SerializeInteger(v Integer) error {
	s.node = integerNode(v)
	return nil
}

func (s *jsonSerializer) SerializeNumber(v Number) error {
	s.node = numberNode(v)
	return nil
}

func (s *jsonSerializer) SerializeString(v String) error {
	s.node = string(v)
	return nil
}

func (s *jsonSerializer) SerializeObject(v *Object) error {
	obj := newJSONObject()
	var rangeErr error
	v.Range(func(name string, value Any) bool {
		sub := &jsonSerializer{}
		if err := sub.SerializeAny(value); err != nil {
			rangeErr = err
			return false
		}
		obj.set(name, sub.node)
		return true
	})
	if rangeErr != nil {
		return rangeErr
	}
	s.node = obj
	return nil
}

func (s *jsonSerializer) SerializeAny(v Any) error {
	switch v.Kind() {
	case KindNull:
		s.node = nil
		return nil
	case KindBoolean:
		b, _ := v.Boolean()
		return s.SerializeBoolean(b)
	case KindInteger:
		i, _ := v.Integer()
		return s.SerializeInteger(i)
	case KindNumber:
		n, _ := v.Number()
		return s.SerializeNumber(n)
	case KindString:
		str, _ := v.String()
		return s.SerializeString(str)
	case KindObject:
		o, _ := v.Object()
		return s.SerializeObject(o)
	case KindArray:
		arr, _ := v.Array()
		nodes := make([]jsonNode, len(arr))
		for i, elem := range arr {
			sub := &jsonSerializer{}
			if err := sub.SerializeAny(elem); err != nil {
				return err
			}
			nodes[i] = sub.node
		}
		s.node = nodes
		return nil
	default:
		return fmt.Errorf("cannot serialize value of kind %s", v.Kind())
	}
}

func (s *jsonSerializer) Array(count int, cb func(i int, s Serializer) error) error {
	nodes := make([]jsonNode, count)
	for i := 0; i < count; i++ {
		sub := &jsonSerializer{}
		if err := cb(i, sub); err != nil {
			return err
		}
		nodes[i] = sub.node
	}
	s.node = nodes
	return nil
}

func (s *jsonSerializer) Object(cb func(fs FieldSerializer) error) error {
	obj := newJSONObject()
	if err := cb(&jsonFieldSerializer{obj: obj}); err != nil {
		return err
	}
	s.node = obj
	return nil
}

func (s *jsonSerializer) Remove() {
	s.removed = true
}

type jsonFieldSerializer struct {
	obj *jsonObject
}

func (fs *jsonFieldSerializer) Field(name string, cb func(s Serializer) error) error {
	sub := &jsonSerializer{}
	if err := cb(sub); err != nil {
		return err
	}
	if !sub.removed {
		fs.obj.set(name, sub.node)
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Deserializer
////////////////////////////////////////////////////////////////////////////////

type jsonDeserializer struct {
	node jsonNode
}

var _ Deserializer = (*jsonDeserializer)(nil)

func (d *jsonDeserializer) DeserializeBoolean(v *Boolean) error {
	b, ok := d.node.(bool)
	if !ok {
		return fmt.Errorf("expected boolean, got %s", nodeKind(d.node))
	}
	*v = Boolean(b)
	return nil
}

func (d *jsonDeserializer) DeserializeInteger(v *Integer) error {
	n, ok := d.node.(json.Number)
	if !ok || !isIntegerNumber(n) {
		return fmt.Errorf("expected integer, got %s", nodeKind(d.node))
	}
	i, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil {
		return fmt.Errorf("expected integer, got %s", string(n))
	}
	*v = Integer(i)
	return nil
}

func (d *jsonDeserializer) DeserializeNumber(v *Number) error {
	n, ok := d.node.(json.Number)
	if !ok {
		return fmt.Errorf("expected number, got %s", nodeKind(d.node))
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return fmt.Errorf("expected number, got %s", string(n))
	}
	*v = Number(f)
	return nil
}

func (d *jsonDeserializer) DeserializeString(v *String) error {
	str, ok := d.node.(string)
	if !ok {
		return fmt.Errorf("expected string, got %s", nodeKind(d.node))
	}
	*v = String(str)
	return nil
}

func (d *jsonDeserializer) DeserializeObject(v *Object) error {
	obj, ok := d.node.(*jsonObject)
	if !ok {
		return fmt.Errorf("expected object, got %s", nodeKind(d.node))
	}
	for _, key := range obj.keys {
		sub := jsonDeserializer{node: obj.values[key]}
		var value Any
		if err := sub.DeserializeAny(&value); err != nil {
			return err
		}
		v.Put(key, value)
	}
	return nil
}

func (d *jsonDeserializer) DeserializeAny(v *Any) error {
	switch t := d.node.(type) {
	case nil:
		*v = NullValue()
	case bool:
		*v = BooleanValue(Boolean(t))
	case json.Number:
		if isIntegerNumber(t) {
			i, err := strconv.ParseInt(string(t), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer %s", string(t))
			}
			*v = IntegerValue(Integer(i))
		} else {
			f, err := strconv.ParseFloat(string(t), 64)
			if err != nil {
				return fmt.Errorf("invalid number %s", string(t))
			}
			*v = NumberValue(Number(f))
		}
	case string:
		*v = StringValue(String(t))
	case *jsonObject:
		obj := NewObject()
		if err := d.DeserializeObject(obj); err != nil {
			return err
		}
		*v = ObjectValue(obj)
	case []jsonNode:
		elements := make([]Any, len(t))
		for i, elem := range t {
			sub := jsonDeserializer{node: elem}
			if err := sub.DeserializeAny(&elements[i]); err != nil {
				return err
			}
		}
		*v = ArrayValue(elements)
	default:
		return fmt.Errorf("cannot deserialize node of kind %s", nodeKind(d.node))
	}
	return nil
}

func (d *jsonDeserializer) Count() int {
	switch t := d.node.(type) {
	case *jsonObject:
		return len(t.keys)
	case []jsonNode:
		return len(t)
	default:
		return 0
	}
}

func (d *jsonDeserializer) Array(cb func(d Deserializer) error) error {
	arr, ok := d.node.([]jsonNode)
	if !ok {
		return fmt.Errorf("expected array, got %s", nodeKind(d.node))
	}
	for _, elem := range arr {
		if err := cb(&jsonDeserializer{node: elem}); err != nil {
			return err
		}
	}
	return nil
}

func (d *jsonDeserializer) Field(name string, cb func(d Deserializer) error) error {
	switch t := d.node.(type) {
	case *jsonObject:
		value, ok := t.get(name)
		if !ok {
			return cb(nullDeserializer{})
		}
		return cb(&jsonDeserializer{node: value})
	case []jsonNode:
		// Arrays are structured but have no named members.
		return cb(nullDeserializer{})
	default:
		return fmt.Errorf("cannot access field '%s' of %s node", name, nodeKind(d.node))
	}
}

// nullDeserializer fails every read. Missing struct fields are decoded
// against it, which leaves optional fields absent and turns required fields
// into errors.
type nullDeserializer struct{}

var _ Deserializer = nullDeserializer{}

func (nullDeserializer) DeserializeBoolean(*Boolean) error { return errValueMissing }
func (nullDeserializer) DeserializeInteger(*Integer) error { return errValueMissing }
func (nullDeserializer) DeserializeNumber(*Number) error   { return errValueMissing }
func (nullDeserializer) DeserializeString(*String) error   { return errValueMissing }
func (nullDeserializer) DeserializeObject(*Object) error   { return errValueMissing }
func (nullDeserializer) DeserializeAny(*Any) error         { return errValueMissing }
func (nullDeserializer) Count() int                        { return 0 }

func (nullDeserializer) Array(func(d Deserializer) error) error {
	return errValueMissing
}

func (nullDeserializer) Field(string, func(d Deserializer) error) error {
	return errValueMissing
}

////////////////////////////////////////////////////////////////////////////////
// Entry points
////////////////////////////////////////////////////////////////////////////////

// Marshal encodes a registered message value, passed as a pointer, into its
// JSON wire form.
func Marshal(v any) ([]byte, error) {
	ti, err := typeInfoOf(v)
	if err != nil {
		return nil, err
	}
	return MarshalWith(ti, v)
}

// MarshalWith encodes the value pointed to by v using the given descriptor.
func MarshalWith(ti TypeInfo, v any) ([]byte, error) {
	node, err := serializeToNode(ti, v)
	if err != nil {
		return nil, err
	}
	return dumpJSON(node), nil
}

// Unmarshal decodes JSON wire data into a registered message value, passed as
// a pointer.
func Unmarshal(data []byte, v any) error {
	ti, err := typeInfoOf(v)
	if err != nil {
		return err
	}
	return UnmarshalWith(ti, data, v)
}

// UnmarshalWith decodes JSON wire data into the value pointed to by v using
// the given descriptor.
func UnmarshalWith(ti TypeInfo, data []byte, v any) error {
	node, err := parseJSON(data)
	if err != nil {
		return err
	}
	return deserializeNode(node, ti, v)
}

func serializeToNode(ti TypeInfo, v any) (jsonNode, error) {
	s := &jsonSerializer{}
	if err := ti.Serialize(s, v); err != nil {
		return nil, err
	}
	return s.node, nil
}

func deserializeNode(node jsonNode, ti TypeInfo, v any) error {
	return ti.Deserialize(&jsonDeserializer{node: node}, v)
}
