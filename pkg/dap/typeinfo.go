/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"fmt"
	"reflect"

	"github.com/microsoft/usvc-dap/pkg/syncmap"
)

// TypeInfo is the runtime descriptor of a schema type: its wire name plus the
// operations needed to construct, encode and decode values of the type
// opaquely. Descriptors are created once and live for the process lifetime.
//
// All values flow through descriptors as pointers: New returns a *T, and
// Serialize/Deserialize expect the same *T.
type TypeInfo interface {
	// Name is the schema name used on the wire.
	Name() string

	// New allocates a fresh zero value and returns a pointer to it.
	New() any

	// Serialize writes the value pointed to by v through s.
	Serialize(s Serializer, v any) error

	// Deserialize reads from d into the value pointed to by v.
	Deserialize(d Deserializer, v any) error
}

// RequestTypeInfo describes a request message type. Every request is
// statically associated with its response type at registration time.
type RequestTypeInfo interface {
	TypeInfo

	// Response is the descriptor of the response answering this request.
	Response() TypeInfo
}

// typeInfo is the common concrete descriptor implementation. The encode and
// decode operations are closures built at registration time, so no field
// offsets or reflection are needed on the hot path.
type typeInfo struct {
	name        string
	construct   func() any
	serialize   func(s Serializer, v any) error
	deserialize func(d Deserializer, v any) error
}

func (t *typeInfo) Name() string                          { return t.name }
func (t *typeInfo) New() any                              { return t.construct() }
func (t *typeInfo) Serialize(s Serializer, v any) error   { return t.serialize(s, v) }
func (t *typeInfo) Deserialize(d Deserializer, v any) error {
	return t.deserialize(d, v)
}

// requestTypeInfo pairs a request descriptor with its response descriptor.
type requestTypeInfo struct {
	*typeInfo
	response TypeInfo
}

func (t *requestTypeInfo) Response() TypeInfo { return t.response }

// The registry. Descriptors are registered once (typically from package
// initialization of the message catalog) and are never removed.
var (
	typesByIdentity  syncmap.Map[reflect.Type, TypeInfo]
	requestTypes     syncmap.Map[string, RequestTypeInfo]
	responseTypes    syncmap.Map[string, TypeInfo]
	eventTypes       syncmap.Map[string, TypeInfo]
)

func registerIdentity(t reflect.Type, ti TypeInfo) {
	if _, loaded := typesByIdentity.LoadOrStore(t, ti); loaded {
		panic(fmt.Sprintf("dap: type %s is already registered", t))
	}
}

// TypeInfoFor returns the descriptor registered for T.
func TypeInfoFor[T any]() (TypeInfo, error) {
	ti, ok := typesByIdentity.Load(reflect.TypeOf((*T)(nil)).Elem())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, reflect.TypeOf((*T)(nil)).Elem())
	}
	return ti, nil
}

// typeInfoOf returns the descriptor for the dynamic type of the value v
// points to.
func typeInfoOf(v any) (TypeInfo, error) {
	rt := reflect.TypeOf(v)
	if rt == nil || rt.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("%w: message values must be passed as pointers, got %T", ErrNotRegistered, v)
	}
	ti, ok := typesByIdentity.Load(rt.Elem())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, rt.Elem())
	}
	return ti, nil
}

// RequestTypeByCommand returns the request descriptor registered under the
// given command name.
func RequestTypeByCommand(command string) (RequestTypeInfo, bool) {
	return requestTypes.Load(command)
}

// ResponseTypeByCommand returns the response descriptor registered under the
// given command name.
func ResponseTypeByCommand(command string) (TypeInfo, bool) {
	return responseTypes.Load(command)
}

// EventTypeByName returns the event descriptor registered under the given
// event name.
func EventTypeByName(event string) (TypeInfo, bool) {
	return eventTypes.Load(event)
}
