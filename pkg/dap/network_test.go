/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/usvc-dap/pkg/testutil"
)

func TestServer_SessionOverTCP(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log := testutil.NewLogForTesting("dap-server-test")

	server := NewServer(ServerConfig{
		Address: "127.0.0.1:0",
		Logger:  log,
		OnConnection: func(ctx context.Context, conn net.Conn) {
			session := NewSession(SessionConfig{Logger: log})
			defer session.Close()

			if err := OnRequest(session, func(args *echoArgs) (*echoResult, error) {
				return &echoResult{Text: args.Text}, nil
			}); err != nil {
				return
			}
			if err := session.Bind(conn, conn); err != nil {
				return
			}

			select {
			case <-session.Done():
			case <-ctx.Done():
			}
		},
	})

	require.NoError(t, server.Start(ctx))
	defer server.Stop()

	conn, err := DialWithRetry(ctx, server.Addr().String(), 5*time.Second)
	require.NoError(t, err)

	client := NewSession(SessionConfig{})
	defer client.Close()
	require.NoError(t, client.Bind(conn, conn))

	result, err := AwaitResponse[echoResult](ctx, client.SendRequest(&echoArgs{Text: "over tcp"}))
	require.NoError(t, err)
	assert.Equal(t, String("over tcp"), result.Text)
}

func TestServer_RequiresConnectionCallback(t *testing.T) {
	t.Parallel()

	server := NewServer(ServerConfig{Address: "127.0.0.1:0"})
	assert.Error(t, server.Start(context.Background()))
}

func TestServer_StartTwice(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := NewServer(ServerConfig{
		Address:      "127.0.0.1:0",
		OnConnection: func(ctx context.Context, conn net.Conn) { _ = conn.Close() },
	})

	require.NoError(t, server.Start(ctx))
	defer server.Stop()

	assert.Error(t, server.Start(ctx))
}

func TestServer_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	server := NewServer(ServerConfig{
		Address:      "127.0.0.1:0",
		OnConnection: func(ctx context.Context, conn net.Conn) { _ = conn.Close() },
	})

	require.NoError(t, server.Start(context.Background()))
	server.Stop()
	server.Stop()

	// A dial after Stop must fail.
	_, err := Dial(context.Background(), server.Addr().String())
	assert.Error(t, err)
}

func TestDialWithRetry_WaitsForListener(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Reserve an address, then release it so the first dial attempts fail.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()
	require.NoError(t, listener.Close())

	accepted := make(chan struct{})
	go func() {
		time.Sleep(200 * time.Millisecond)
		l, listenErr := net.Listen("tcp", address)
		if listenErr != nil {
			return
		}
		defer l.Close()
		conn, acceptErr := l.Accept()
		if acceptErr != nil {
			return
		}
		_ = conn.Close()
		close(accepted)
	}()

	conn, err := DialWithRetry(ctx, address, 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-accepted:
	case <-ctx.Done():
		t.Fatal("the late listener never accepted the connection")
	}
}

func TestDialWithRetry_ContextCancelled(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()
	require.NoError(t, listener.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = DialWithRetry(ctx, address, 30*time.Second)
	assert.Error(t, err)
}
