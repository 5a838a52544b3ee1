/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/smallnest/chanx"
)

// SessionConfig contains configuration for a Session.
type SessionConfig struct {
	// Logger is the logger for the session.
	Logger logr.Logger
}

// outboundFrame is one framed payload queued for the send loop. onResult is
// invoked after the write attempt with its outcome.
type outboundFrame struct {
	payload  []byte
	onResult func(err error)
}

// Session multiplexes requests, responses, and events over one full-duplex
// byte stream. A session is created unbound; handlers may be registered
// before or after Bind attaches the stream. Request and event handlers run
// inline on the session's receive goroutine, so handlers that send a request
// on the same session must not block on its future there.
type Session struct {
	log logr.Logger

	seq     *sequenceCounter
	pending *pendingResponseMap

	handlersMu      sync.Mutex
	requestHandlers map[string]*requestHandlerEntry
	eventHandlers   map[string]*eventHandlerEntry
	responseSent    map[string]*responseSentHandlerEntry
	errorHandler    func(message string)

	lifetimeCtx context.Context
	cancel      context.CancelFunc

	// sendMu pairs sequence number assignment with enqueueing so frames
	// reach the wire in seq order.
	sendMu sync.Mutex
	sendCh *chanx.UnboundedChan[outboundFrame]

	bindMu  sync.Mutex
	reader  *ContentReader
	writer  *ContentWriter
	closers []io.Closer

	bound     atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewSession creates a new unbound session.
func NewSession(config SessionConfig) *Session {
	log := config.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		log:             log,
		seq:             newSequenceCounter(),
		pending:         newPendingResponseMap(),
		requestHandlers: make(map[string]*requestHandlerEntry),
		eventHandlers:   make(map[string]*eventHandlerEntry),
		responseSent:    make(map[string]*responseSentHandlerEntry),
		lifetimeCtx:     ctx,
		cancel:          cancel,
		sendCh:          chanx.NewUnboundedChan[outboundFrame](ctx, 1),
	}
}

// Bind attaches a reader/writer pair and starts the receive and send loops.
// A session can be bound exactly once; a second call returns ErrAlreadyBound
// and the original binding stays in effect. If r or w implement io.Closer
// they are closed when the session shuts down.
func (s *Session) Bind(r io.Reader, w io.Writer) error {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.bound.Load() {
		return ErrAlreadyBound
	}

	s.reader = NewContentReader(r)
	s.writer = NewContentWriter(w)

	if c, ok := r.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	if c, ok := w.(io.Closer); ok && any(w) != any(r) {
		s.closers = append(s.closers, c)
	}

	s.bound.Store(true)

	go s.sendLoop()
	go s.receiveLoop()

	return nil
}

// Close shuts the session down: the stream is closed, the receive loop
// exits, every in-flight request future is fulfilled with ErrSessionClosed,
// and subsequent sends fail synchronously. Close is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()

		s.bindMu.Lock()
		closers := s.closers
		s.bindMu.Unlock()
		for _, c := range closers {
			_ = c.Close()
		}

		s.pending.DrainWithError(ErrSessionClosed)
		s.log.V(1).Info("session closed")
	})
}

// Done returns a channel that is closed when the session shuts down.
func (s *Session) Done() <-chan struct{} {
	return s.lifetimeCtx.Done()
}

// InFlight returns the number of sent requests still awaiting a response.
func (s *Session) InFlight() int {
	return s.pending.Len()
}

////////////////////////////////////////////////////////////////////////////////
// Registration
////////////////////////////////////////////////////////////////////////////////

func (s *Session) setRequestHandler(rti RequestTypeInfo, invoke func(any) (any, error)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.requestHandlers[rti.Name()] = &requestHandlerEntry{request: rti, invoke: invoke}
}

func (s *Session) setEventHandler(ti TypeInfo, invoke func(any)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.eventHandlers[ti.Name()] = &eventHandlerEntry{event: ti, invoke: invoke}
}

func (s *Session) setResponseSentHandler(ti TypeInfo, invoke func(any, error)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.responseSent[ti.Name()] = &responseSentHandlerEntry{invoke: invoke}
}

// OnError registers the session's protocol-error callback. It receives a
// human-readable message for every protocol violation or codec failure on an
// inbound frame. These errors are not fatal to the session. Registering a
// second callback replaces the first.
func (s *Session) OnError(handler func(message string)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.errorHandler = handler
}

func (s *Session) reportError(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	s.log.V(1).Info("protocol error", "message", message)

	s.handlersMu.Lock()
	handler := s.errorHandler
	s.handlersMu.Unlock()

	if handler != nil {
		handler(message)
	}
}

////////////////////////////////////////////////////////////////////////////////
// Sending
////////////////////////////////////////////////////////////////////////////////

// SendRequest sends a request message, passed as a pointer to a registered
// request type, and returns the future of its response. The future is
// fulfilled with a pointer to the decoded response body, with an *Error when
// the peer fails the request, or with a session error when the request could
// not be sent. SendRequest never blocks on the peer.
func (s *Session) SendRequest(request any) *Future {
	future := newFuture()

	ti, err := typeInfoOf(request)
	if err != nil {
		future.fulfill(nil, err)
		return future
	}
	rti, ok := ti.(RequestTypeInfo)
	if !ok {
		future.fulfill(nil, fmt.Errorf("'%s' is not a request type", ti.Name()))
		return future
	}

	argumentsNode, err := serializeToNode(rti, request)
	if err != nil {
		future.fulfill(nil, fmt.Errorf("%w: %v", ErrSendFailed, err))
		return future
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closed.Load() {
		future.fulfill(nil, ErrSessionClosed)
		return future
	}
	if !s.bound.Load() {
		future.fulfill(nil, ErrNotBound)
		return future
	}

	seq := s.seq.Next()

	envelope := newJSONObject()
	envelope.set("seq", integerNode(Integer(seq)))
	envelope.set("type", "request")
	envelope.set("command", rti.Name())
	envelope.set("arguments", argumentsNode)

	s.pending.Add(seq, &pendingResponse{
		command:  rti.Name(),
		response: rti.Response(),
		future:   future,
	})

	s.enqueueLocked(outboundFrame{
		payload: dumpJSON(envelope),
		onResult: func(err error) {
			if err == nil {
				return
			}
			if pr := s.pending.Take(seq); pr != nil {
				pr.future.fulfill(nil, ErrSendFailed)
			}
		},
	})

	return future
}

// SendEvent sends an event message, passed as a pointer to a registered
// event type. Events expect no reply, so there is no future; write failures
// shut the session down.
func (s *Session) SendEvent(event any) error {
	ti, err := typeInfoOf(event)
	if err != nil {
		return err
	}
	if _, ok := EventTypeByName(ti.Name()); !ok {
		return fmt.Errorf("'%s' is not an event type", ti.Name())
	}

	bodyNode, err := serializeToNode(ti, event)
	if err != nil {
		return err
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	if !s.bound.Load() {
		return ErrNotBound
	}

	envelope := newJSONObject()
	envelope.set("seq", integerNode(Integer(s.seq.Next())))
	envelope.set("type", "event")
	envelope.set("event", ti.Name())
	envelope.set("body", bodyNode)

	s.enqueueLocked(outboundFrame{payload: dumpJSON(envelope)})
	return nil
}

// sendResponse answers the inbound request with sequence number requestSeq.
// A nil handlerErr produces a success response carrying body; otherwise the
// response fails with the error's message and omits the body. The
// response-sent hook for the response type fires after the write completes.
func (s *Session) sendResponse(requestSeq int64, command string, responseTI TypeInfo, body any, handlerErr error) {
	var bodyNode jsonNode
	if handlerErr == nil && responseTI != nil {
		var err error
		bodyNode, err = serializeToNode(responseTI, body)
		if err != nil {
			s.reportError("failed to serialize response to '%s': %v", command, err)
			handlerErr = Errorf("failed to serialize response")
		}
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closed.Load() {
		return
	}

	envelope := newJSONObject()
	envelope.set("seq", integerNode(Integer(s.seq.Next())))
	envelope.set("type", "response")
	envelope.set("request_seq", integerNode(Integer(requestSeq)))
	envelope.set("success", handlerErr == nil)
	envelope.set("command", command)
	if handlerErr != nil {
		envelope.set("message", handlerErr.Error())
	} else if bodyNode != nil {
		envelope.set("body", bodyNode)
	}

	var hook *responseSentHandlerEntry
	if responseTI != nil {
		s.handlersMu.Lock()
		hook = s.responseSent[responseTI.Name()]
		s.handlersMu.Unlock()
	}

	sentBody, sentErr := body, handlerErr
	s.enqueueLocked(outboundFrame{
		payload: dumpJSON(envelope),
		onResult: func(err error) {
			if err != nil || hook == nil {
				return
			}
			hook.invoke(sentBody, sentErr)
		},
	})
}

// enqueueLocked hands a frame to the send loop. Callers hold sendMu.
func (s *Session) enqueueLocked(frame outboundFrame) {
	select {
	case s.sendCh.In <- frame:
	case <-s.lifetimeCtx.Done():
		if frame.onResult != nil {
			frame.onResult(ErrSessionClosed)
		}
	}
}

// sendLoop is the single writer of the bound stream. It preserves the order
// frames were enqueued in and shuts the session down on the first write
// failure.
func (s *Session) sendLoop() {
	for {
		select {
		case frame, ok := <-s.sendCh.Out:
			if !ok {
				return
			}
			err := s.writer.Write(frame.payload)
			if frame.onResult != nil {
				frame.onResult(err)
			}
			if err != nil {
				if !IsClosedError(err) {
					s.log.Error(err, "failed to write frame")
				}
				s.Close()
				return
			}
		case <-s.lifetimeCtx.Done():
			return
		}
	}
}

////////////////////////////////////////////////////////////////////////////////
// Receiving
////////////////////////////////////////////////////////////////////////////////

// receiveLoop owns the bound reader. It dispatches inbound frames in wire
// order and shuts the session down when the stream ends.
func (s *Session) receiveLoop() {
	for {
		payload, err := s.reader.Read()
		if err != nil {
			if !IsClosedError(err) {
				s.log.Error(err, "failed to read frame")
			}
			s.Close()
			return
		}
		if s.closed.Load() {
			return
		}
		s.dispatch(payload)
	}
}

func (s *Session) dispatch(payload []byte) {
	node, err := parseJSON(payload)
	if err != nil {
		s.reportError("failed to parse message: %v", err)
		return
	}
	envelope, ok := node.(*jsonObject)
	if !ok {
		s.reportError("message is not a JSON object")
		return
	}

	messageType, ok := envelope.getString("type")
	if !ok {
		s.reportError("message has no 'type' field")
		return
	}

	switch messageType {
	case "request":
		s.dispatchRequest(envelope)
	case "event":
		s.dispatchEvent(envelope)
	case "response":
		s.dispatchResponse(envelope)
	default:
		s.reportError("unknown message type '%s'", messageType)
	}
}

func (s *Session) dispatchRequest(envelope *jsonObject) {
	command, ok := envelope.getString("command")
	if !ok {
		s.reportError("request has no 'command' field")
		return
	}
	requestSeq, _ := envelope.getInt("seq")

	s.handlersMu.Lock()
	entry := s.requestHandlers[command]
	s.handlersMu.Unlock()

	if entry == nil {
		s.reportError("no handler for request '%s'", command)
		s.sendResponse(int64(requestSeq), command, nil, nil, Errorf("no handler for request '%s'", command))
		return
	}

	argumentsNode, ok := envelope.get("arguments")
	if !ok {
		argumentsNode = newJSONObject()
	}

	arguments := entry.request.New()
	if err := deserializeNode(argumentsNode, entry.request, arguments); err != nil {
		s.reportError("failed to decode arguments of request '%s': %v", command, err)
		s.sendResponse(int64(requestSeq), command, entry.request.Response(), nil,
			Errorf("failed to decode request arguments"))
		return
	}

	body, handlerErr := s.invokeRequestHandler(command, entry, arguments)
	s.sendResponse(int64(requestSeq), command, entry.request.Response(), body, handlerErr)
}

// invokeRequestHandler runs the handler, containing panics. A panicking
// handler fails the request and reports through the error callback; it never
// terminates the session.
func (s *Session) invokeRequestHandler(command string, entry *requestHandlerEntry, arguments any) (body any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.reportError("handler for request '%s' panicked: %v", command, r)
			body = nil
			err = Errorf("%v", r)
		}
	}()
	return entry.invoke(arguments)
}

func (s *Session) dispatchEvent(envelope *jsonObject) {
	name, ok := envelope.getString("event")
	if !ok {
		s.reportError("event has no 'event' field")
		return
	}

	s.handlersMu.Lock()
	entry := s.eventHandlers[name]
	s.handlersMu.Unlock()

	if entry == nil {
		// Events without a handler are ignored.
		return
	}

	bodyNode, ok := envelope.get("body")
	if !ok {
		bodyNode = newJSONObject()
	}

	body := entry.event.New()
	if err := deserializeNode(bodyNode, entry.event, body); err != nil {
		s.reportError("failed to decode body of event '%s': %v", name, err)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.reportError("handler for event '%s' panicked: %v", name, r)
		}
	}()
	entry.invoke(body)
}

func (s *Session) dispatchResponse(envelope *jsonObject) {
	requestSeq, ok := envelope.getInt("request_seq")
	if !ok {
		s.reportError("response has no 'request_seq' field")
		return
	}

	pr := s.pending.Take(int64(requestSeq))
	if pr == nil {
		s.reportError("unknown response seq %d", requestSeq)
		return
	}

	success, _ := envelope.getBool("success")
	if !success {
		message, _ := envelope.getString("message")
		if message == "" {
			message = fmt.Sprintf("request '%s' failed", pr.command)
		}
		pr.future.fulfill(nil, &Error{Message: message})
		return
	}

	bodyNode, ok := envelope.get("body")
	if !ok {
		bodyNode = newJSONObject()
	}

	body := pr.response.New()
	if err := deserializeNode(bodyNode, pr.response, body); err != nil {
		s.reportError("failed to decode response to '%s': %v", pr.command, err)
		pr.future.fulfill(nil, fmt.Errorf("failed to decode response: %w", err))
		return
	}

	pr.future.fulfill(body, nil)
}
