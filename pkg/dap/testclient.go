/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	godap "github.com/google/go-dap"
)

// TestClient is a DAP client for testing purposes. It speaks the wire
// protocol through an independent implementation, which makes it suitable
// for verifying interoperability of Session-served endpoints.
type TestClient struct {
	stream io.ReadWriteCloser
	reader *bufio.Reader
	writer *bufio.Writer

	seq   int
	seqMu sync.Mutex

	// writeMu protects concurrent writes to the stream
	writeMu sync.Mutex

	// eventChan receives events from the server
	eventChan chan godap.Message

	// responseChans tracks pending requests waiting for responses
	responseChans map[int]chan godap.Message
	responseMu    sync.Mutex

	// ctx controls the client lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	// wg tracks the reader goroutine
	wg sync.WaitGroup
}

// NewTestClient creates a new DAP test client over the given stream.
func NewTestClient(stream io.ReadWriteCloser) *TestClient {
	ctx, cancel := context.WithCancel(context.Background())
	c := &TestClient{
		stream:        stream,
		reader:        bufio.NewReader(stream),
		writer:        bufio.NewWriter(stream),
		eventChan:     make(chan godap.Message, 100),
		responseChans: make(map[int]chan godap.Message),
		ctx:           ctx,
		cancel:        cancel,
	}

	c.wg.Add(1)
	go c.readLoop()

	return c
}

// readLoop continuously reads messages from the stream and routes them.
func (c *TestClient) readLoop() {
	defer c.wg.Done()

	for {
		msg, readErr := godap.ReadProtocolMessage(c.reader)
		if readErr != nil {
			return
		}

		switch m := msg.(type) {
		case godap.ResponseMessage:
			resp := m.GetResponse()
			c.responseMu.Lock()
			if ch, ok := c.responseChans[resp.RequestSeq]; ok {
				ch <- msg
				delete(c.responseChans, resp.RequestSeq)
			}
			c.responseMu.Unlock()

		case godap.EventMessage:
			select {
			case c.eventChan <- msg:
			case <-c.ctx.Done():
				return
			}
		}
	}
}

// nextSeq returns the next sequence number.
func (c *TestClient) nextSeq() int {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	c.seq++
	return c.seq
}

// SendRequest sends a request and waits for the response.
func (c *TestClient) SendRequest(ctx context.Context, req godap.RequestMessage) (godap.Message, error) {
	request := req.GetRequest()
	seq := c.nextSeq()
	request.Seq = seq

	respChan := make(chan godap.Message, 1)
	c.responseMu.Lock()
	c.responseChans[seq] = respChan
	c.responseMu.Unlock()

	c.writeMu.Lock()
	writeErr := godap.WriteProtocolMessage(c.writer, req)
	if writeErr == nil {
		writeErr = c.writer.Flush()
	}
	c.writeMu.Unlock()

	if writeErr != nil {
		c.responseMu.Lock()
		delete(c.responseChans, seq)
		c.responseMu.Unlock()
		return nil, fmt.Errorf("failed to send request: %w", writeErr)
	}

	select {
	case resp := <-respChan:
		return resp, nil
	case <-ctx.Done():
		c.responseMu.Lock()
		delete(c.responseChans, seq)
		c.responseMu.Unlock()
		return nil, ctx.Err()
	}
}

// Initialize sends an initialize request and returns the response.
func (c *TestClient) Initialize(ctx context.Context) (*godap.InitializeResponse, error) {
	req := &godap.InitializeRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "initialize",
		},
		Arguments: godap.InitializeRequestArguments{
			ClientID:        "test-client",
			ClientName:      "DAP Test Client",
			AdapterID:       "test",
			Locale:          "en-US",
			LinesStartAt1:   true,
			ColumnsStartAt1: true,
			PathFormat:      "path",
		},
	}

	resp, sendErr := c.SendRequest(ctx, req)
	if sendErr != nil {
		return nil, sendErr
	}

	initResp, ok := resp.(*godap.InitializeResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}

	if !initResp.Success {
		return nil, fmt.Errorf("initialize failed: %s", initResp.Message)
	}

	return initResp, nil
}

// Disconnect sends a disconnect request to terminate the session.
func (c *TestClient) Disconnect(ctx context.Context, terminateDebuggee bool) error {
	req := &godap.DisconnectRequest{
		Request: godap.Request{
			ProtocolMessage: godap.ProtocolMessage{Type: "request"},
			Command:         "disconnect",
		},
		Arguments: &godap.DisconnectArguments{
			TerminateDebuggee: terminateDebuggee,
		},
	}

	resp, sendErr := c.SendRequest(ctx, req)
	if sendErr != nil {
		return sendErr
	}

	disconnResp, ok := resp.(*godap.DisconnectResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}

	if !disconnResp.Success {
		return fmt.Errorf("disconnect failed: %s", disconnResp.Message)
	}

	return nil
}

// WaitForEvent consumes buffered events until one with the given name
// arrives. Events of other types received in the meantime are discarded.
func (c *TestClient) WaitForEvent(eventType string, timeout time.Duration) (godap.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		var msg godap.Message
		select {
		case msg = <-c.eventChan:
		case <-timer.C:
			return nil, fmt.Errorf("no %q event within %v", eventType, timeout)
		case <-c.ctx.Done():
			return nil, c.ctx.Err()
		}

		if event, ok := msg.(godap.EventMessage); ok && event.GetEvent().Event == eventType {
			return msg, nil
		}
	}
}

// WaitForOutputEvent waits for an output event and returns it.
func (c *TestClient) WaitForOutputEvent(timeout time.Duration) (*godap.OutputEvent, error) {
	msg, waitErr := c.WaitForEvent("output", timeout)
	if waitErr != nil {
		return nil, waitErr
	}

	outputEvent, ok := msg.(*godap.OutputEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected event type: %T", msg)
	}

	return outputEvent, nil
}

// WaitForTerminatedEvent waits for a terminated event.
func (c *TestClient) WaitForTerminatedEvent(timeout time.Duration) error {
	_, waitErr := c.WaitForEvent("terminated", timeout)
	return waitErr
}

// Close closes the client and its stream.
func (c *TestClient) Close() error {
	c.cancel()
	err := c.stream.Close()
	c.wg.Wait()
	return err
}
