/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"errors"
	"fmt"
	"reflect"
)

// Descriptors for the primitive schema types. These are fixed singletons.
var (
	booleanTypeInfo = &typeInfo{
		name:      "boolean",
		construct: func() any { return new(Boolean) },
		serialize: func(s Serializer, v any) error {
			return s.SerializeBoolean(*(v.(*Boolean)))
		},
		deserialize: func(d Deserializer, v any) error {
			return d.DeserializeBoolean(v.(*Boolean))
		},
	}

	integerTypeInfo = &typeInfo{
		name:      "integer",
		construct: func() any { return new(Integer) },
		serialize: func(s Serializer, v any) error {
			return s.SerializeInteger(*(v.(*Integer)))
		},
		deserialize: func(d Deserializer, v any) error {
			return d.DeserializeInteger(v.(*Integer))
		},
	}

	numberTypeInfo = &typeInfo{
		name:      "number",
		construct: func() any { return new(Number) },
		serialize: func(s Serializer, v any) error {
			return s.SerializeNumber(*(v.(*Number)))
		},
		deserialize: func(d Deserializer, v any) error {
			return d.DeserializeNumber(v.(*Number))
		},
	}

	stringTypeInfo = &typeInfo{
		name:      "string",
		construct: func() any { return new(String) },
		serialize: func(s Serializer, v any) error {
			return s.SerializeString(*(v.(*String)))
		},
		deserialize: func(d Deserializer, v any) error {
			return d.DeserializeString(v.(*String))
		},
	}

	objectTypeInfo = &typeInfo{
		name:      "object",
		construct: func() any { return new(Object) },
		serialize: func(s Serializer, v any) error {
			return s.SerializeObject(v.(*Object))
		},
		deserialize: func(d Deserializer, v any) error {
			return d.DeserializeObject(v.(*Object))
		},
	}

	anyTypeInfo = &typeInfo{
		name:      "any",
		construct: func() any { return new(Any) },
		serialize: func(s Serializer, v any) error {
			return s.SerializeAny(*(v.(*Any)))
		},
		deserialize: func(d Deserializer, v any) error {
			return d.DeserializeAny(v.(*Any))
		},
	}

	nullTypeInfo = &typeInfo{
		name:      "null",
		construct: func() any { return new(Null) },
		serialize: func(s Serializer, v any) error {
			return s.SerializeAny(NullValue())
		},
		deserialize: func(d Deserializer, v any) error {
			var a Any
			if err := d.DeserializeAny(&a); err != nil {
				return err
			}
			if !a.IsNull() {
				return fmt.Errorf("expected null, got %s", a.Kind())
			}
			return nil
		},
	}
)

func BooleanType() TypeInfo { return booleanTypeInfo }
func IntegerType() TypeInfo { return integerTypeInfo }
func NumberType() TypeInfo  { return numberTypeInfo }
func StringType() TypeInfo  { return stringTypeInfo }
func ObjectType() TypeInfo  { return objectTypeInfo }
func AnyType() TypeInfo     { return anyTypeInfo }
func NullType() TypeInfo    { return nullTypeInfo }

// The primitives are registered while package variables are initialized
// rather than in init(), so that package-level registrations declared later
// in this package (including its test files) can compose them with ArrayOf
// and OptionalOf.
var _ = func() struct{} {
	registerIdentity(reflect.TypeOf(Boolean(false)), booleanTypeInfo)
	registerIdentity(reflect.TypeOf(Integer(0)), integerTypeInfo)
	registerIdentity(reflect.TypeOf(Number(0)), numberTypeInfo)
	registerIdentity(reflect.TypeOf(String("")), stringTypeInfo)
	registerIdentity(reflect.TypeOf(Object{}), objectTypeInfo)
	registerIdentity(reflect.TypeOf(Any{}), anyTypeInfo)
	registerIdentity(reflect.TypeOf(Null{}), nullTypeInfo)
	return struct{}{}
}()

// StructField binds a wire name to a field of the struct type T. Ptr returns
// a pointer to the field within a given message instance; Type is the field's
// own descriptor. Field tables replace the byte offsets a lower-level
// implementation would use.
type StructField[T any] struct {
	Wire string
	Type TypeInfo
	Ptr  func(*T) any
}

// F is a shorthand for declaring a StructField in a registration call.
func F[T any](wire string, ti TypeInfo, ptr func(*T) any) StructField[T] {
	return StructField[T]{Wire: wire, Type: ti, Ptr: ptr}
}

func structTypeInfoOf[T any](name string, fields []StructField[T]) *typeInfo {
	return &typeInfo{
		name:      name,
		construct: func() any { return new(T) },
		serialize: func(s Serializer, v any) error {
			msg := v.(*T)
			return s.Object(func(fs FieldSerializer) error {
				for _, f := range fields {
					f := f
					err := fs.Field(f.Wire, func(s Serializer) error {
						return f.Type.Serialize(s, f.Ptr(msg))
					})
					if err != nil {
						return fmt.Errorf("field '%s': %w", f.Wire, err)
					}
				}
				return nil
			})
		},
		deserialize: func(d Deserializer, v any) error {
			msg := v.(*T)
			for _, f := range fields {
				f := f
				err := d.Field(f.Wire, func(d Deserializer) error {
					return f.Type.Deserialize(d, f.Ptr(msg))
				})
				if err != nil {
					return fmt.Errorf("field '%s': %w", f.Wire, err)
				}
			}
			return nil
		},
	}
}

// RegisterStruct registers a plain struct schema type (a request argument or
// event body component). The fields are serialized in declaration order.
func RegisterStruct[T any](name string, fields ...StructField[T]) TypeInfo {
	ti := structTypeInfoOf[T](name, fields)
	registerIdentity(reflect.TypeOf((*T)(nil)).Elem(), ti)
	return ti
}

// RegisterRequest registers a request message type under its command name and
// fixes its association with the given response descriptor.
func RegisterRequest[T any](command string, response TypeInfo, fields ...StructField[T]) RequestTypeInfo {
	ti := &requestTypeInfo{
		typeInfo: structTypeInfoOf[T](command, fields),
		response: response,
	}
	registerIdentity(reflect.TypeOf((*T)(nil)).Elem(), ti)
	if _, loaded := requestTypes.LoadOrStore(command, RequestTypeInfo(ti)); loaded {
		panic(fmt.Sprintf("dap: request '%s' is already registered", command))
	}
	return ti
}

// RegisterResponse registers a response message type under its command name.
func RegisterResponse[T any](command string, fields ...StructField[T]) TypeInfo {
	ti := structTypeInfoOf[T](command, fields)
	registerIdentity(reflect.TypeOf((*T)(nil)).Elem(), ti)
	if _, loaded := responseTypes.LoadOrStore(command, TypeInfo(ti)); loaded {
		panic(fmt.Sprintf("dap: response '%s' is already registered", command))
	}
	return ti
}

// RegisterEvent registers an event message type under its event name.
func RegisterEvent[T any](event string, fields ...StructField[T]) TypeInfo {
	ti := structTypeInfoOf[T](event, fields)
	registerIdentity(reflect.TypeOf((*T)(nil)).Elem(), ti)
	if _, loaded := eventTypes.LoadOrStore(event, TypeInfo(ti)); loaded {
		panic(fmt.Sprintf("dap: event '%s' is already registered", event))
	}
	return ti
}

// OptionalOf returns the descriptor for Optional[T]. T must be a registered
// schema type. The descriptor is created on first use and cached for the
// process lifetime.
func OptionalOf[T any]() TypeInfo {
	rt := reflect.TypeOf(Optional[T]{})
	if ti, ok := typesByIdentity.Load(rt); ok {
		return ti
	}

	elem, err := TypeInfoFor[T]()
	if err != nil {
		panic(fmt.Sprintf("dap: OptionalOf: %v", err))
	}

	ti := &typeInfo{
		name:      "optional<" + elem.Name() + ">",
		construct: func() any { return new(Optional[T]) },
		serialize: func(s Serializer, v any) error {
			o := v.(*Optional[T])
			if !o.present {
				s.Remove()
				return nil
			}
			return elem.Serialize(s, &o.value)
		},
		deserialize: func(d Deserializer, v any) error {
			o := v.(*Optional[T])
			var value T
			if err := elem.Deserialize(d, &value); err != nil {
				// An absent value leaves the optional unset; a present value
				// that fails to decode is an error.
				if errors.Is(err, errValueMissing) {
					return nil
				}
				return err
			}
			o.Set(value)
			return nil
		},
	}

	actual, _ := typesByIdentity.LoadOrStore(rt, TypeInfo(ti))
	return actual
}

// ArrayOf returns the descriptor for []T. T must be a registered schema type.
// The descriptor is created on first use and cached for the process lifetime.
func ArrayOf[T any]() TypeInfo {
	rt := reflect.TypeOf([]T(nil))
	if ti, ok := typesByIdentity.Load(rt); ok {
		return ti
	}

	elem, err := TypeInfoFor[T]()
	if err != nil {
		panic(fmt.Sprintf("dap: ArrayOf: %v", err))
	}

	ti := &typeInfo{
		name:      "array<" + elem.Name() + ">",
		construct: func() any { return new([]T) },
		serialize: func(s Serializer, v any) error {
			arr := v.(*[]T)
			return s.Array(len(*arr), func(i int, s Serializer) error {
				return elem.Serialize(s, &(*arr)[i])
			})
		},
		deserialize: func(d Deserializer, v any) error {
			arr := v.(*[]T)
			return d.Array(func(d Deserializer) error {
				var e T
				if err := elem.Deserialize(d, &e); err != nil {
					return err
				}
				*arr = append(*arr, e)
				return nil
			})
		},
	}

	actual, _ := typesByIdentity.LoadOrStore(rt, TypeInfo(ti))
	return actual
}
