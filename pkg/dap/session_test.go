/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/wait"
)

type echoArgs struct {
	Text String
}

type echoResult struct {
	Text String
}

type noteEvent struct {
	Text String
}

var (
	echoResultType = RegisterResponse[echoResult]("echo",
		F("text", StringType(), func(r *echoResult) any { return &r.Text }),
	)
	echoType = RegisterRequest[echoArgs]("echo", echoResultType,
		F("text", StringType(), func(a *echoArgs) any { return &a.Text }),
	)
	noteEventType = RegisterEvent[noteEvent]("note",
		F("text", StringType(), func(e *noteEvent) any { return &e.Text }),
	)
)

// newSessionPair binds two sessions over an in-memory full-duplex pipe and
// tears both down when the test ends.
func newSessionPair(t *testing.T) (client, server *Session) {
	t.Helper()

	clientEnd, serverEnd := NewPipe()

	client = NewSession(SessionConfig{})
	server = NewSession(SessionConfig{})
	require.NoError(t, client.Bind(clientEnd, clientEnd))
	require.NoError(t, server.Bind(serverEnd, serverEnd))

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSession_RequestResponse(t *testing.T) {
	t.Parallel()

	client, server := newSessionPair(t)

	require.NoError(t, OnRequest(server, func(args *echoArgs) (*echoResult, error) {
		return &echoResult{Text: args.Text}, nil
	}))

	result, err := AwaitResponse[echoResult](testContext(t), client.SendRequest(&echoArgs{Text: "marco"}))
	require.NoError(t, err)
	assert.Equal(t, String("marco"), result.Text)

	assert.Equal(t, 0, client.InFlight())
}

func TestSession_HandlerErrorFailsRequest(t *testing.T) {
	t.Parallel()

	client, server := newSessionPair(t)

	require.NoError(t, OnRequest(server, func(args *echoArgs) (*echoResult, error) {
		return nil, Errorf("refused: %s", args.Text)
	}))

	_, err := AwaitResponse[echoResult](testContext(t), client.SendRequest(&echoArgs{Text: "marco"}))
	require.Error(t, err)

	var protocolErr *Error
	require.ErrorAs(t, err, &protocolErr)
	assert.Equal(t, "refused: marco", protocolErr.Message)
}

func TestSession_NoHandler(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	client, server := newSessionPair(t)

	var errorCount atomic.Int32
	server.OnError(func(message string) {
		errorCount.Add(1)
	})

	_, err := AwaitResponse[echoResult](ctx, client.SendRequest(&echoArgs{Text: "anyone?"}))
	require.Error(t, err)

	var protocolErr *Error
	require.ErrorAs(t, err, &protocolErr)
	assert.Contains(t, protocolErr.Message, "no handler")

	require.NoError(t, wait.PollUntilContextTimeout(ctx, 5*time.Millisecond, 5*time.Second, true,
		func(context.Context) (bool, error) {
			return errorCount.Load() >= 1, nil
		}))
	assert.Equal(t, int32(1), errorCount.Load(), "the violation should be reported exactly once")
}

func TestSession_CloseFailsPendingRequests(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	client, server := newSessionPair(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	defer close(release)

	require.NoError(t, OnRequest(server, func(args *echoArgs) (*echoResult, error) {
		started <- struct{}{}
		<-release
		return &echoResult{Text: args.Text}, nil
	}))

	first := client.SendRequest(&echoArgs{Text: "one"})
	second := client.SendRequest(&echoArgs{Text: "two"})

	select {
	case <-started:
	case <-ctx.Done():
		t.Fatal("server never received the first request")
	}

	client.Close()

	for _, future := range []*Future{first, second} {
		_, err := future.Await(ctx)
		assert.ErrorIs(t, err, ErrSessionClosed)
	}
	assert.Equal(t, 0, client.InFlight())

	// Sends on a closed session fail synchronously.
	late := client.SendRequest(&echoArgs{Text: "three"})
	select {
	case <-late.Done():
	default:
		t.Fatal("send after close should fail without blocking")
	}
	_, err := late.Await(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)

	assert.ErrorIs(t, client.SendEvent(&noteEvent{Text: "late"}), ErrSessionClosed)
}

func TestSession_PanicInHandlerFailsRequestOnly(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	client, server := newSessionPair(t)

	reported := make(chan string, 1)
	server.OnError(func(message string) {
		select {
		case reported <- message:
		default:
		}
	})

	var calls atomic.Int32
	require.NoError(t, OnRequest(server, func(args *echoArgs) (*echoResult, error) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return &echoResult{Text: args.Text}, nil
	}))

	_, err := AwaitResponse[echoResult](ctx, client.SendRequest(&echoArgs{Text: "first"}))
	require.Error(t, err)

	var protocolErr *Error
	require.ErrorAs(t, err, &protocolErr)
	assert.Contains(t, protocolErr.Message, "boom")

	select {
	case message := <-reported:
		assert.Contains(t, message, "panicked")
	case <-ctx.Done():
		t.Fatal("the panic was never reported")
	}

	// The session survives the panic.
	result, err := AwaitResponse[echoResult](ctx, client.SendRequest(&echoArgs{Text: "second"}))
	require.NoError(t, err)
	assert.Equal(t, String("second"), result.Text)
}

func TestSession_Events(t *testing.T) {
	t.Parallel()

	t.Run("delivered to handler", func(t *testing.T) {
		t.Parallel()

		ctx := testContext(t)
		client, server := newSessionPair(t)

		received := make(chan String, 1)
		require.NoError(t, OnEvent(client, func(e *noteEvent) {
			received <- e.Text
		}))

		require.NoError(t, server.SendEvent(&noteEvent{Text: "ping"}))

		select {
		case text := <-received:
			assert.Equal(t, String("ping"), text)
		case <-ctx.Done():
			t.Fatal("event was never delivered")
		}
	})

	t.Run("ignored without handler", func(t *testing.T) {
		t.Parallel()

		client, server := newSessionPair(t)

		require.NoError(t, OnRequest(server, func(args *echoArgs) (*echoResult, error) {
			return &echoResult{Text: args.Text}, nil
		}))

		require.NoError(t, server.SendEvent(&noteEvent{Text: "nobody listens"}))

		// The session keeps serving after the unhandled event.
		result, err := AwaitResponse[echoResult](testContext(t), client.SendRequest(&echoArgs{Text: "alive"}))
		require.NoError(t, err)
		assert.Equal(t, String("alive"), result.Text)
	})

	t.Run("rejects non-event types", func(t *testing.T) {
		t.Parallel()

		client, _ := newSessionPair(t)

		err := client.SendEvent(&echoArgs{Text: "not an event"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not an event type")
	})
}

func TestSession_ResponseSentHook(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	client, server := newSessionPair(t)

	sent := make(chan *echoResult, 1)
	require.NoError(t, OnRequest(server, func(args *echoArgs) (*echoResult, error) {
		return &echoResult{Text: args.Text}, nil
	}))
	require.NoError(t, OnResponseSent(server, func(response *echoResult, err error) {
		if err == nil {
			sent <- response
		}
	}))

	result, err := AwaitResponse[echoResult](ctx, client.SendRequest(&echoArgs{Text: "observed"}))
	require.NoError(t, err)
	assert.Equal(t, String("observed"), result.Text)

	select {
	case response := <-sent:
		assert.Equal(t, String("observed"), response.Text)
	case <-ctx.Done():
		t.Fatal("response-sent hook never fired")
	}
}

func TestSession_BindStates(t *testing.T) {
	t.Parallel()

	t.Run("second bind rejected", func(t *testing.T) {
		t.Parallel()

		clientEnd, serverEnd := NewPipe()
		defer clientEnd.Close()
		defer serverEnd.Close()

		session := NewSession(SessionConfig{})
		defer session.Close()

		require.NoError(t, session.Bind(clientEnd, clientEnd))
		assert.ErrorIs(t, session.Bind(serverEnd, serverEnd), ErrAlreadyBound)
	})

	t.Run("send before bind", func(t *testing.T) {
		t.Parallel()

		session := NewSession(SessionConfig{})
		defer session.Close()

		future := session.SendRequest(&echoArgs{Text: "early"})
		_, err := future.Await(context.Background())
		assert.ErrorIs(t, err, ErrNotBound)

		assert.ErrorIs(t, session.SendEvent(&noteEvent{Text: "early"}), ErrNotBound)
	})

	t.Run("bind after close", func(t *testing.T) {
		t.Parallel()

		clientEnd, serverEnd := NewPipe()
		defer clientEnd.Close()
		defer serverEnd.Close()

		session := NewSession(SessionConfig{})
		session.Close()
		assert.ErrorIs(t, session.Bind(clientEnd, clientEnd), ErrSessionClosed)
	})
}

func TestSession_UnknownResponseSeq(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)

	sessionEnd, rawEnd := NewPipe()
	defer rawEnd.Close()

	session := NewSession(SessionConfig{})
	defer session.Close()

	reported := make(chan string, 1)
	session.OnError(func(message string) {
		select {
		case reported <- message:
		default:
		}
	})

	require.NoError(t, session.Bind(sessionEnd, sessionEnd))

	w := NewContentWriter(rawEnd)
	require.NoError(t, w.Write([]byte(`{"seq":1,"type":"response","request_seq":99,"success":true}`)))

	select {
	case message := <-reported:
		assert.Contains(t, message, "99")
	case <-ctx.Done():
		t.Fatal("the stray response was never reported")
	}
}

// responseEnvelope mirrors the wire shape of a response for raw-frame checks.
type responseEnvelope struct {
	Seq        int64           `json:"seq"`
	Type       string          `json:"type"`
	RequestSeq int64           `json:"request_seq"`
	Success    bool            `json:"success"`
	Command    string          `json:"command"`
	Message    string          `json:"message"`
	Body       json.RawMessage `json:"body"`
}

func TestSession_OutboundSequenceIsMonotonic(t *testing.T) {
	t.Parallel()

	sessionEnd, rawEnd := NewPipe()
	defer rawEnd.Close()

	session := NewSession(SessionConfig{})
	defer session.Close()

	require.NoError(t, OnRequest(session, func(args *echoArgs) (*echoResult, error) {
		return &echoResult{Text: args.Text}, nil
	}))
	require.NoError(t, session.Bind(sessionEnd, sessionEnd))

	w := NewContentWriter(rawEnd)
	r := NewContentReader(rawEnd)

	// Inbound seq numbers are the peer's; outbound numbering starts at 1
	// regardless.
	for i, inboundSeq := range []int{40, 50, 60} {
		payload := fmt.Sprintf(`{"seq":%d,"type":"request","command":"echo","arguments":{"text":"m%d"}}`, inboundSeq, i)
		require.NoError(t, w.Write([]byte(payload)))

		frame, err := r.Read()
		require.NoError(t, err)

		var envelope responseEnvelope
		require.NoError(t, json.Unmarshal(frame, &envelope))

		assert.Equal(t, int64(i+1), envelope.Seq)
		assert.Equal(t, "response", envelope.Type)
		assert.Equal(t, int64(inboundSeq), envelope.RequestSeq)
		assert.True(t, envelope.Success)
		assert.Equal(t, "echo", envelope.Command)
		assert.JSONEq(t, fmt.Sprintf(`{"text":"m%d"}`, i), string(envelope.Body))
	}
}

func TestSession_PeerDisconnectFailsPending(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	client, server := newSessionPair(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	defer close(release)

	require.NoError(t, OnRequest(server, func(args *echoArgs) (*echoResult, error) {
		started <- struct{}{}
		<-release
		return &echoResult{Text: args.Text}, nil
	}))

	future := client.SendRequest(&echoArgs{Text: "doomed"})

	select {
	case <-started:
	case <-ctx.Done():
		t.Fatal("server never received the request")
	}

	server.Close()

	_, err := future.Await(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionClosed) || IsClosedError(err),
		"a dropped peer should surface as a closed session, got: %v", err)

	select {
	case <-client.Done():
	case <-ctx.Done():
		t.Fatal("client session should shut down when the stream ends")
	}
}
