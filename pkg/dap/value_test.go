/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_PreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	obj := NewObject()
	obj.Put("z", IntegerValue(1))
	obj.Put("a", IntegerValue(2))
	obj.Put("m", IntegerValue(3))

	assert.Equal(t, []string{"z", "a", "m"}, obj.Keys())

	// Replacing a value keeps the entry's position.
	obj.Put("a", StringValue("replaced"))
	assert.Equal(t, []string{"z", "a", "m"}, obj.Keys())

	value, ok := obj.Get("a")
	require.True(t, ok)
	s, ok := value.String()
	require.True(t, ok)
	assert.Equal(t, String("replaced"), s)
}

func TestObject_Delete(t *testing.T) {
	t.Parallel()

	obj := NewObject()
	obj.Put("first", IntegerValue(1))
	obj.Put("second", IntegerValue(2))

	obj.Delete("first")
	assert.Equal(t, 1, obj.Len())
	assert.Equal(t, []string{"second"}, obj.Keys())

	_, ok := obj.Get("first")
	assert.False(t, ok)

	// Deleting an unknown entry is a no-op.
	obj.Delete("missing")
	assert.Equal(t, 1, obj.Len())
}

func TestObject_Equal_IgnoresOrder(t *testing.T) {
	t.Parallel()

	left := NewObject()
	left.Put("a", IntegerValue(1))
	left.Put("b", StringValue("x"))

	right := NewObject()
	right.Put("b", StringValue("x"))
	right.Put("a", IntegerValue(1))

	assert.True(t, left.Equal(right))

	right.Put("a", IntegerValue(2))
	assert.False(t, left.Equal(right))
}

func TestAny_Kinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		value Any
		kind  Kind
	}{
		{"null", NullValue(), KindNull},
		{"zero value", Any{}, KindNull},
		{"boolean", BooleanValue(true), KindBoolean},
		{"integer", IntegerValue(7), KindInteger},
		{"number", NumberValue(1.5), KindNumber},
		{"string", StringValue("s"), KindString},
		{"object", ObjectValue(NewObject()), KindObject},
		{"array", ArrayValue([]Any{IntegerValue(1)}), KindArray},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.kind, tc.value.Kind())
		})
	}
}

func TestAny_AccessorsRejectWrongKind(t *testing.T) {
	t.Parallel()

	v := IntegerValue(7)

	i, ok := v.Integer()
	require.True(t, ok)
	assert.Equal(t, Integer(7), i)

	_, ok = v.Boolean()
	assert.False(t, ok)
	_, ok = v.String()
	assert.False(t, ok)

	assert.True(t, NullValue().IsNull())
	assert.False(t, v.IsNull())
}

func TestValueOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindInteger, ValueOf(Integer(1)).Kind())
	assert.Equal(t, KindString, ValueOf(String("s")).Kind())
	assert.Equal(t, KindNull, ValueOf(nil).Kind())

	assert.Panics(t, func() { ValueOf(struct{}{}) })
}

func TestAny_Equal(t *testing.T) {
	t.Parallel()

	assert.True(t, IntegerValue(1).Equal(IntegerValue(1)))
	assert.False(t, IntegerValue(1).Equal(NumberValue(1)), "integer and number are distinct kinds")

	left := ArrayValue([]Any{StringValue("a"), NullValue()})
	right := ArrayValue([]Any{StringValue("a"), NullValue()})
	assert.True(t, left.Equal(right))

	shorter := ArrayValue([]Any{StringValue("a")})
	assert.False(t, left.Equal(shorter))
}

func TestOptional(t *testing.T) {
	t.Parallel()

	var o Optional[String]
	assert.False(t, o.IsSet(), "zero value should be absent")
	assert.Equal(t, String(""), o.Value())

	o.Set("present")
	assert.True(t, o.IsSet())
	value, ok := o.Get()
	require.True(t, ok)
	assert.Equal(t, String("present"), value)

	o.Clear()
	assert.False(t, o.IsSet())

	assert.True(t, Opt(Integer(5)).IsSet())
}
