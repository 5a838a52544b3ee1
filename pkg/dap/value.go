/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

// Boolean is the schema boolean primitive.
type Boolean bool

// Integer is the schema integer primitive. DAP distinguishes integers from
// fractional numbers on the wire, so Integer and Number are separate types.
type Integer int64

// Number is the schema floating-point primitive.
type Number float64

// String is the schema string primitive.
type String string

// Null is the schema null primitive. It carries no data.
type Null struct{}

// Object is a mapping from string keys to Any values that preserves key
// insertion order. The zero value is an empty object ready for use.
type Object struct {
	keys   []string
	values map[string]Any
}

// NewObject returns a new empty Object.
func NewObject() *Object {
	return &Object{}
}

// Len returns the number of entries in the object.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Get returns the value stored under name, and whether the entry exists.
func (o *Object) Get(name string) (Any, bool) {
	if o == nil || o.values == nil {
		return Any{}, false
	}
	v, ok := o.values[name]
	return v, ok
}

// Put stores value under name. Storing under an existing name replaces the
// value but keeps the entry's original position.
func (o *Object) Put(name string, value Any) {
	if o.values == nil {
		o.values = make(map[string]Any)
	}
	if _, exists := o.values[name]; !exists {
		o.keys = append(o.keys, name)
	}
	o.values[name] = value
}

// Delete removes the entry stored under name, if any.
func (o *Object) Delete(name string) {
	if o == nil || o.values == nil {
		return
	}
	if _, exists := o.values[name]; !exists {
		return
	}
	delete(o.values, name)
	for i, k := range o.keys {
		if k == name {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the entry names in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

// Range calls f for each entry in insertion order.
// If f returns false, the iteration stops.
func (o *Object) Range(f func(name string, value Any) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !f(k, o.values[k]) {
			return
		}
	}
}

// Equal reports whether two objects hold the same entries.
// Entry order does not affect equality.
func (o *Object) Equal(other *Object) bool {
	if o.Len() != other.Len() {
		return false
	}
	equal := true
	o.Range(func(name string, value Any) bool {
		ov, ok := other.Get(name)
		if !ok || !value.Equal(ov) {
			equal = false
		}
		return equal
	})
	return equal
}
