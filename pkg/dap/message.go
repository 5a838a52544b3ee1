/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"sync"
)

// pendingResponse tracks an outbound request that is awaiting its response.
type pendingResponse struct {
	// command is the request command, kept for diagnostics.
	command string

	// response is the descriptor of the expected response body.
	response TypeInfo

	// future is fulfilled when the response arrives or the session dies.
	future *Future
}

// pendingResponseMap is a thread-safe map of in-flight requests keyed by
// their sequence number.
type pendingResponseMap struct {
	mu       sync.Mutex
	requests map[int64]*pendingResponse
}

func newPendingResponseMap() *pendingResponseMap {
	return &pendingResponseMap{
		requests: make(map[int64]*pendingResponse),
	}
}

// Add adds a pending response to the map.
func (m *pendingResponseMap) Add(seq int64, pr *pendingResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[seq] = pr
}

// Take retrieves and removes a pending response from the map.
// Returns nil if no request exists for the given sequence number.
func (m *pendingResponseMap) Take(seq int64) *pendingResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	pr, ok := m.requests[seq]
	if !ok {
		return nil
	}

	delete(m.requests, seq)
	return pr
}

// Len returns the number of in-flight requests.
func (m *pendingResponseMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// DrainWithError fulfills every in-flight future with err and clears the
// map. This is used during shutdown to unblock waiting callers.
func (m *pendingResponseMap) DrainWithError(err error) {
	m.mu.Lock()
	drained := m.requests
	m.requests = make(map[int64]*pendingResponse)
	m.mu.Unlock()

	// Fulfill outside the lock; Await callers may run inline via Done.
	for _, pr := range drained {
		pr.future.fulfill(nil, err)
	}
}

// sequenceCounter provides thread-safe sequence number generation. The first
// number issued is 1.
type sequenceCounter struct {
	mu  sync.Mutex
	seq int64
}

func newSequenceCounter() *sequenceCounter {
	return &sequenceCounter{seq: 0}
}

// Next returns the next sequence number.
func (c *sequenceCounter) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last issued sequence number without incrementing.
func (c *sequenceCounter) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
