/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_FulfillOnce(t *testing.T) {
	t.Parallel()

	f := newFuture()

	select {
	case <-f.Done():
		t.Fatal("future should not be done before fulfill")
	default:
	}

	f.fulfill("first", nil)
	f.fulfill("second", ErrSessionClosed)

	select {
	case <-f.Done():
	default:
		t.Fatal("future should be done after fulfill")
	}

	value, err := f.Await(context.Background())
	require.NoError(t, err, "later fulfill calls must not overwrite the result")
	assert.Equal(t, "first", value)
}

func TestFuture_AwaitHonorsContext(t *testing.T) {
	t.Parallel()

	f := newFuture()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// A fulfilled future still resolves under a live context.
	f.fulfill(nil, ErrSendFailed)
	_, err = f.Await(context.Background())
	assert.ErrorIs(t, err, ErrSendFailed)
}

func TestFuture_AwaitBlocksUntilFulfilled(t *testing.T) {
	t.Parallel()

	f := newFuture()

	go func() {
		time.Sleep(10 * time.Millisecond)
		f.fulfill("done", nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	value, err := f.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "done", value)
}

func TestAwaitResponse(t *testing.T) {
	t.Parallel()

	f := newFuture()
	body := String("hello")
	f.fulfill(&body, nil)

	got, err := AwaitResponse[String](context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, String("hello"), *got)

	failed := newFuture()
	failed.fulfill(nil, ErrSessionClosed)

	_, err = AwaitResponse[String](context.Background(), failed)
	assert.ErrorIs(t, err, ErrSessionClosed)
}
