/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"fmt"
)

// requestHandlerEntry is a request-handler table entry: the request
// descriptor plus an adapter that projects the decoded arguments into the
// registered typed callback.
type requestHandlerEntry struct {
	request RequestTypeInfo
	invoke  func(arguments any) (any, error)
}

// eventHandlerEntry is an event-handler table entry.
type eventHandlerEntry struct {
	event  TypeInfo
	invoke func(body any)
}

// responseSentHandlerEntry is a response-sent hook table entry, keyed by the
// response type's name.
type responseSentHandlerEntry struct {
	invoke func(response any, err error)
}

// OnRequest registers a handler for inbound requests of type Req. The
// handler runs inline on the session's receive goroutine and returns either
// the response body or an error; an error is sent to the peer as a failed
// response. Registering a second handler for the same request type replaces
// the first.
//
// Resp must be the response type Req was registered with.
func OnRequest[Req, Resp any](s *Session, handler func(*Req) (*Resp, error)) error {
	ti, err := TypeInfoFor[Req]()
	if err != nil {
		return err
	}
	rti, ok := ti.(RequestTypeInfo)
	if !ok {
		return fmt.Errorf("'%s' is not a request type", ti.Name())
	}

	respTI, err := TypeInfoFor[Resp]()
	if err != nil {
		return err
	}
	if rti.Response() != respTI {
		return fmt.Errorf("request '%s' is answered by '%s', not '%s'",
			rti.Name(), rti.Response().Name(), respTI.Name())
	}

	s.setRequestHandler(rti, func(arguments any) (any, error) {
		return handler(arguments.(*Req))
	})
	return nil
}

// OnEvent registers a handler for inbound events of type T. The handler runs
// inline on the session's receive goroutine. Registering a second handler
// for the same event type replaces the first.
func OnEvent[T any](s *Session, handler func(*T)) error {
	ti, err := TypeInfoFor[T]()
	if err != nil {
		return err
	}
	if _, ok := EventTypeByName(ti.Name()); !ok {
		return fmt.Errorf("'%s' is not an event type", ti.Name())
	}

	s.setEventHandler(ti, func(body any) {
		handler(body.(*T))
	})
	return nil
}

// OnResponseSent registers a hook that fires after a response of type T,
// produced by a served request, has been written to the stream. The hook
// receives the response body on success or the error the response carried.
// Registering a second hook for the same response type replaces the first.
func OnResponseSent[T any](s *Session, handler func(response *T, err error)) error {
	ti, err := TypeInfoFor[T]()
	if err != nil {
		return err
	}

	s.setResponseSentHandler(ti, func(response any, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		handler(response.(*T), nil)
	})
	return nil
}
