/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

// Serializer writes schema values into an encoder-specific document node.
// Type descriptors drive the serializer: they call the primitive methods for
// leaf values and Array/Object to descend into composites.
type Serializer interface {
	SerializeBoolean(v Boolean) error
	SerializeInteger(v Integer) error
	SerializeNumber(v Number) error
	SerializeString(v String) error
	SerializeObject(v *Object) error
	SerializeAny(v Any) error

	// Array writes an array of count elements. The callback is invoked once
	// per element with a serializer targeting that element.
	Array(count int, cb func(i int, s Serializer) error) error

	// Object writes an object whose members are produced through the passed
	// field serializer.
	Object(cb func(fs FieldSerializer) error) error

	// Remove marks the value being serialized as removed. When serializing a
	// struct field, a removed value is omitted from the enclosing object.
	// Absent optionals use this to stay off the wire.
	Remove()
}

// FieldSerializer writes the members of an object under construction.
type FieldSerializer interface {
	// Field serializes one member. The callback receives a serializer
	// targeting the member value; if the callback marks the value removed,
	// the member is not emitted.
	Field(name string, cb func(s Serializer) error) error
}

// Deserializer reads schema values out of a decoder-specific document node.
// Primitive reads fail when the node's type does not match; Integer reads
// additionally fail on fractional JSON numbers.
type Deserializer interface {
	DeserializeBoolean(v *Boolean) error
	DeserializeInteger(v *Integer) error
	DeserializeNumber(v *Number) error
	DeserializeString(v *String) error
	DeserializeObject(v *Object) error
	DeserializeAny(v *Any) error

	// Count returns the number of elements or members of the current node,
	// or 0 for unstructured nodes.
	Count() int

	// Array iterates the elements of an array node. Iteration stops at the
	// first element for which the callback returns an error.
	Array(cb func(d Deserializer) error) error

	// Field locates a member of a structured node and invokes the callback
	// with a deserializer for it. A missing member invokes the callback with
	// a deserializer whose reads all fail, so optional fields stay absent
	// while required fields surface an error. Accessing a field of an
	// unstructured node is an error.
	Field(name string, cb func(d Deserializer) error) error
}
