/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// ServerConfig contains configuration for a TCP message server.
type ServerConfig struct {
	// Listener is the network listener to accept connections on.
	// If nil, the server will create a listener on the specified address.
	Listener net.Listener

	// Address is the address to listen on if Listener is nil.
	Address string

	// Logger is the logger for the server.
	Logger logr.Logger

	// OnConnection is invoked on a dedicated goroutine for every accepted
	// connection. The callback owns the connection and must close it.
	OnConnection func(ctx context.Context, conn net.Conn)

	// OnError is invoked for accept failures that do not stop the server.
	OnError func(err error)
}

// Server accepts TCP connections and hands each one to the configured
// connection callback. A typical callback binds a Session to the connection.
type Server struct {
	config   ServerConfig
	log      logr.Logger
	listener net.Listener

	mu      sync.Mutex
	started bool
	closed  bool

	// wg tracks the accept loop and per-connection goroutines.
	wg sync.WaitGroup
}

// NewServer creates a new Server. Start must be called before the server
// accepts connections.
func NewServer(config ServerConfig) *Server {
	log := config.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	return &Server{
		config: config,
		log:    log,
	}
}

// Start begins accepting connections. It returns once the listener is
// established; the accept loop runs in the background until Stop is called
// or the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.config.OnConnection == nil {
		return fmt.Errorf("server requires an OnConnection callback")
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server is already started")
	}

	listener := s.config.Listener
	if listener == nil {
		var listenErr error
		listener, listenErr = net.Listen("tcp", s.config.Address)
		if listenErr != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to listen: %w", listenErr)
		}
	}

	s.listener = listener
	s.started = true
	s.mu.Unlock()

	s.log.V(1).Info("server listening", "address", listener.Addr().String())

	stop := context.AfterFunc(ctx, func() { s.Stop() })

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stop()
		s.acceptLoop(ctx)
	}()

	return nil
}

// Addr returns the address the server is listening on. It is only valid
// after Start has returned successfully.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if IsClosedError(err) || ctx.Err() != nil {
				return
			}
			s.log.Error(err, "failed to accept connection")
			if s.config.OnError != nil {
				s.config.OnError(err)
			}
			continue
		}

		connID := uuid.NewString()
		s.log.V(1).Info("accepted connection", "connectionID", connID, "remote", conn.RemoteAddr().String())

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.config.OnConnection(ctx, conn)
			s.log.V(1).Info("connection finished", "connectionID", connID)
		}()
	}
}

// Stop closes the listener and waits for the accept loop and all connection
// callbacks to return. Stop is idempotent.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	listener := s.listener
	s.mu.Unlock()

	_ = listener.Close()
	s.wg.Wait()
}

// Dial establishes a TCP connection to the specified address.
func Dial(ctx context.Context, address string) (net.Conn, error) {
	var d net.Dialer
	conn, dialErr := d.DialContext(ctx, "tcp", address)
	if dialErr != nil {
		return nil, fmt.Errorf("failed to dial TCP %s: %w", address, dialErr)
	}
	return conn, nil
}

// DialWithRetry establishes a TCP connection to the specified address,
// retrying with exponential backoff until the connection succeeds, the
// timeout elapses, or the context is cancelled. It is meant for connecting
// to an endpoint that is still starting up.
func DialWithRetry(ctx context.Context, address string, timeout time.Duration) (net.Conn, error) {
	retryPolicy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(50*time.Millisecond),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.1),
		backoff.WithMaxInterval(time.Second),
		backoff.WithMaxElapsedTime(timeout),
	)

	conn, err := backoff.RetryWithData(func() (net.Conn, error) {
		return Dial(ctx, address)
	}, backoff.WithContext(retryPolicy, ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return conn, nil
}
