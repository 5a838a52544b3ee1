/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceCounter(t *testing.T) {
	t.Parallel()

	counter := newSequenceCounter()

	assert.Equal(t, int64(0), counter.Current(), "initial value should be 0")

	assert.Equal(t, int64(1), counter.Next(), "first Next() should return 1")
	assert.Equal(t, int64(1), counter.Current(), "Current() should return 1 after first Next()")

	assert.Equal(t, int64(2), counter.Next(), "second Next() should return 2")
	assert.Equal(t, int64(3), counter.Next(), "third Next() should return 3")
	assert.Equal(t, int64(3), counter.Current(), "Current() should return 3")
}

func TestPendingResponseMap(t *testing.T) {
	t.Parallel()

	m := newPendingResponseMap()

	assert.Equal(t, 0, m.Len(), "initial map should be empty")

	pr1 := &pendingResponse{command: "initialize", response: ObjectType(), future: newFuture()}
	pr2 := &pendingResponse{command: "disconnect", response: ObjectType(), future: newFuture()}

	m.Add(10, pr1)
	m.Add(11, pr2)

	assert.Equal(t, 2, m.Len(), "map should have 2 entries")

	got := m.Take(10)
	require.NotNil(t, got, "should take entry for seq 10")
	assert.Equal(t, pr1, got)
	assert.Equal(t, 1, m.Len(), "map should have 1 entry after Take")

	got = m.Take(10)
	assert.Nil(t, got, "second Take for same seq should return nil")

	got = m.Take(999)
	assert.Nil(t, got, "Take for unknown seq should return nil")

	got = m.Take(11)
	require.NotNil(t, got, "should take entry for seq 11")
	assert.Equal(t, pr2, got)
	assert.Equal(t, 0, m.Len(), "map should be empty")
}

func TestPendingResponseMap_DrainWithError(t *testing.T) {
	t.Parallel()

	m := newPendingResponseMap()

	future1 := newFuture()
	future2 := newFuture()
	m.Add(10, &pendingResponse{command: "initialize", future: future1})
	m.Add(11, &pendingResponse{command: "disconnect", future: future2})

	assert.Equal(t, 2, m.Len())

	m.DrainWithError(ErrSessionClosed)

	assert.Equal(t, 0, m.Len(), "map should be empty after drain")

	for _, future := range []*Future{future1, future2} {
		select {
		case <-future.Done():
		default:
			t.Fatal("future should be fulfilled after drain")
		}

		_, err := future.Await(context.Background())
		assert.ErrorIs(t, err, ErrSessionClosed)
	}
}
