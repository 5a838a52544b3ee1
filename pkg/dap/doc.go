/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

/*
Package dap implements a Debug Adapter Protocol (DAP) endpoint: schema-driven
JSON serialization for registered message types, Content-Length framing over
a byte stream, and a session engine that multiplexes concurrent requests,
responses, and events on one full-duplex channel.

# Key Components

  - Session: binds one reader/writer pair, dispatches inbound frames to
    registered handlers, and correlates responses to request futures
  - TypeInfo: the runtime descriptor of a schema type; the registry maps
    type identities and wire names to descriptors
  - ContentReader/ContentWriter: the Content-Length frame codec
  - Server, Dial, DialWithRetry: TCP plumbing for hosting or reaching a peer

# Declaring Message Types

Message types are plain structs built from the schema value types (Boolean,
Integer, Number, String, Object, Any, Optional, arrays, Variant) and are
registered once with a field table:

	type PingArgs struct {
		Message dap.String
	}

	type PingResult struct {
		Echo dap.String
	}

	var pingResultType = dap.RegisterResponse[PingResult]("ping",
		dap.F("echo", dap.StringType(), func(r *PingResult) any { return &r.Echo }),
	)

	var pingRequestType = dap.RegisterRequest[PingArgs]("ping", pingResultType,
		dap.F("message", dap.StringType(), func(a *PingArgs) any { return &a.Message }),
	)

# Serving and Calling

	session := dap.NewSession(dap.SessionConfig{Logger: log})

	dap.OnRequest(session, func(args *PingArgs) (*PingResult, error) {
		return &PingResult{Echo: args.Message}, nil
	})

	if err := session.Bind(conn, conn); err != nil {
		return err
	}

	future := session.SendRequest(&PingArgs{Message: "hello"})
	result, err := dap.AwaitResponse[PingResult](ctx, future)

Request and event handlers run inline on the session's receive goroutine.
A handler that sends a request on its own session must not await the future
on that goroutine.

# Shutdown

Closing the session (or either end of the stream) fulfills every pending
request future with ErrSessionClosed and makes subsequent sends fail
synchronously. Close is idempotent.
*/
package dap
