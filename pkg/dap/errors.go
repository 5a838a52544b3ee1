/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"errors"
	"fmt"
	"io"
	"net"
)

var (
	// ErrSessionClosed is returned when attempting to use a closed session,
	// and is the error every pending response future is fulfilled with when
	// the session shuts down.
	ErrSessionClosed = errors.New("session closed")

	// ErrStreamClosed is returned by the content framer when the underlying
	// byte stream ends mid-header or mid-body.
	ErrStreamClosed = errors.New("stream closed")

	// ErrAlreadyBound is reported when Bind is called on a session that is
	// already bound. The original binding stays in effect.
	ErrAlreadyBound = errors.New("session is already bound")

	// ErrNotBound is returned when sending on a session that has no stream
	// attached yet.
	ErrNotBound = errors.New("session is not bound")

	// ErrSendFailed is the error a request future is fulfilled with when the
	// request could not be framed or written.
	ErrSendFailed = errors.New("failed to send request")

	// ErrNotRegistered is returned when a message value's type has no
	// descriptor in the registry.
	ErrNotRegistered = errors.New("type is not registered")

	// errValueMissing is what every read on the null deserializer fails
	// with. Optional fields swallow it; required fields propagate it.
	errValueMissing = errors.New("value is missing")
)

// Error is a DAP protocol error: the message carried by a failed response.
// Request futures are fulfilled with an *Error when the peer answers with
// success == false, and handlers may return one to fail a request.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Errorf creates an Error with a formatted message.
func Errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// IsClosedError returns true if the error indicates that the session or its
// underlying byte stream is closed.
func IsClosedError(err error) bool {
	return errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrStreamClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}
