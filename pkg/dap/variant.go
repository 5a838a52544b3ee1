/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"fmt"
	"reflect"
)

// Variant is a tagged choice between a closed set of schema types. The set of
// alternatives is fixed by the VariantOf descriptor the enclosing struct
// field declares; the stored value must be one of those alternatives.
type Variant struct {
	v any
}

// VariantValue returns a Variant holding v.
func VariantValue(v any) Variant {
	return Variant{v: v}
}

// Get returns the stored alternative, or nil when unset.
func (v Variant) Get() any {
	return v.v
}

// Set stores an alternative value.
func (v *Variant) Set(value any) {
	v.v = value
}

// IsSet reports whether an alternative is stored.
func (v Variant) IsSet() bool {
	return v.v != nil
}

// VariantOf creates a descriptor for a Variant restricted to the given
// alternatives. Serialization dispatches on the stored value's type;
// deserialization tries each alternative in declaration order and keeps the
// first that decodes. Declare the descriptor once per variant type and share
// it between the fields that use it.
func VariantOf(alternatives ...TypeInfo) TypeInfo {
	if len(alternatives) == 0 {
		panic("dap: VariantOf requires at least one alternative")
	}

	name := "variant<"
	for i, alt := range alternatives {
		if i > 0 {
			name += "|"
		}
		name += alt.Name()
	}
	name += ">"

	// Map each alternative's value type to its descriptor for the
	// serialization dispatch.
	altByType := make(map[reflect.Type]TypeInfo, len(alternatives))
	for _, alt := range alternatives {
		altByType[reflect.TypeOf(alt.New()).Elem()] = alt
	}

	return &typeInfo{
		name:      name,
		construct: func() any { return new(Variant) },
		serialize: func(s Serializer, v any) error {
			vv := v.(*Variant)
			if vv.v == nil {
				return fmt.Errorf("%s holds no value", name)
			}
			rt := reflect.TypeOf(vv.v)
			alt, ok := altByType[rt]
			if !ok {
				return fmt.Errorf("%s does not allow values of type %s", name, rt)
			}
			// The descriptor operates on pointers; copy the stored value into
			// an addressable location.
			ptr := reflect.New(rt)
			ptr.Elem().Set(reflect.ValueOf(vv.v))
			return alt.Serialize(s, ptr.Interface())
		},
		deserialize: func(d Deserializer, v any) error {
			vv := v.(*Variant)
			for _, alt := range alternatives {
				inst := alt.New()
				if err := alt.Deserialize(d, inst); err == nil {
					vv.v = reflect.ValueOf(inst).Elem().Interface()
					return nil
				}
			}
			return fmt.Errorf("value matches no alternative of %s", name)
		},
	}
}
