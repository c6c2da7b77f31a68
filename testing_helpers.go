// wifi-nan
// Copyright (c) 2026 The ProjectBlaze Reborn Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of wifi-nan.
//
// wifi-nan is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// wifi-nan is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with wifi-nan; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package nan

import (
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"
)

// NewTestClientState builds a detached client record for collaborator
// tests (ranging, data-path) that need a client callback target without a
// running Manager.
func NewTestClientState(clientID int, cb EventCallback) *ClientState {
	return newClientState(clientID, 0, 0, "test", cb, DefaultConfigRequest(), false, slog.Default())
}

// MockHALCall records one command submitted to the MockHAL.
type MockHALCall struct {
	Op       string
	Name     string
	Peer     net.HardwareAddr
	Payload  []byte
	Config   ConfigRequest
	Tx       uint16
	PubSubID int
	PeerID   int
	NdpID    int
	Initial  bool
	Accept   bool
}

// MockHAL is an in-memory HAL backend recording every submission. Tests
// script failures per operation and replay responses through the
// manager's EventSink methods.
type MockHAL struct {
	mu     sync.Mutex
	calls  []MockHALCall
	errors map[string]error
}

// NewMockHAL creates an empty mock backend.
func NewMockHAL() *MockHAL {
	return &MockHAL{errors: make(map[string]error)}
}

// FailWith makes every subsequent submission of op return err (nil clears).
func (h *MockHAL) FailWith(op string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.errors, op)
		return
	}
	h.errors[op] = err
}

// Calls returns a copy of all recorded submissions.
func (h *MockHAL) Calls() []MockHALCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]MockHALCall(nil), h.calls...)
}

// CallsTo returns recorded submissions of a single operation.
func (h *MockHAL) CallsTo(op string) []MockHALCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []MockHALCall
	for _, c := range h.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// LastCall returns the most recent submission, or a zero call.
func (h *MockHAL) LastCall() MockHALCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.calls) == 0 {
		return MockHALCall{}
	}
	return h.calls[len(h.calls)-1]
}

// Reset clears recorded submissions.
func (h *MockHAL) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
}

func (h *MockHAL) record(c MockHALCall) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, c)
	return h.errors[c.Op]
}

// EnableAndConfigure records the submission.
func (h *MockHAL) EnableAndConfigure(tx uint16, cfg ConfigRequest, initial bool) error {
	return h.record(MockHALCall{Op: "EnableAndConfigure", Tx: tx, Config: cfg, Initial: initial})
}

// Disable records the submission.
func (h *MockHAL) Disable(tx uint16) error {
	return h.record(MockHALCall{Op: "Disable", Tx: tx})
}

// Publish records the submission.
func (h *MockHAL) Publish(tx uint16, pubSubID int, _ PublishConfig) error {
	return h.record(MockHALCall{Op: "Publish", Tx: tx, PubSubID: pubSubID})
}

// PublishCancel records the submission.
func (h *MockHAL) PublishCancel(tx uint16, pubSubID int) error {
	return h.record(MockHALCall{Op: "PublishCancel", Tx: tx, PubSubID: pubSubID})
}

// Subscribe records the submission.
func (h *MockHAL) Subscribe(tx uint16, pubSubID int, _ SubscribeConfig) error {
	return h.record(MockHALCall{Op: "Subscribe", Tx: tx, PubSubID: pubSubID})
}

// SubscribeCancel records the submission.
func (h *MockHAL) SubscribeCancel(tx uint16, pubSubID int) error {
	return h.record(MockHALCall{Op: "SubscribeCancel", Tx: tx, PubSubID: pubSubID})
}

// SendFollowonMessage records the submission.
func (h *MockHAL) SendFollowonMessage(tx uint16, pubSubID, peerID int, dest net.HardwareAddr, payload []byte) error {
	return h.record(MockHALCall{
		Op: "SendFollowonMessage", Tx: tx, PubSubID: pubSubID, PeerID: peerID,
		Peer: dest, Payload: append([]byte(nil), payload...),
	})
}

// GetCapabilities records the submission.
func (h *MockHAL) GetCapabilities(tx uint16) error {
	return h.record(MockHALCall{Op: "GetCapabilities", Tx: tx})
}

// CreateDataPathInterface records the submission.
func (h *MockHAL) CreateDataPathInterface(tx uint16, name string) error {
	return h.record(MockHALCall{Op: "CreateDataPathInterface", Tx: tx, Name: name})
}

// DeleteDataPathInterface records the submission.
func (h *MockHAL) DeleteDataPathInterface(tx uint16, name string) error {
	return h.record(MockHALCall{Op: "DeleteDataPathInterface", Tx: tx, Name: name})
}

// InitiateDataPath records the submission.
func (h *MockHAL) InitiateDataPath(tx uint16, peerID int, _ ChannelRequestType, _ int,
	peer net.HardwareAddr, name string, _ []byte) error {
	return h.record(MockHALCall{Op: "InitiateDataPath", Tx: tx, PeerID: peerID, Peer: peer, Name: name})
}

// RespondToDataPathRequest records the submission.
func (h *MockHAL) RespondToDataPathRequest(tx uint16, accept bool, ndpID int, name string, _ []byte) error {
	return h.record(MockHALCall{Op: "RespondToDataPathRequest", Tx: tx, Accept: accept, NdpID: ndpID, Name: name})
}

// EndDataPath records the submission.
func (h *MockHAL) EndDataPath(tx uint16, ndpID int) error {
	return h.record(MockHALCall{Op: "EndDataPath", Tx: tx, NdpID: ndpID})
}

// Deinit records the submission.
func (h *MockHAL) Deinit() {
	_ = h.record(MockHALCall{Op: "Deinit"})
}

// MockClock is a manual Clock for deterministic timer tests. Timers fire
// synchronously from Advance on the caller's goroutine.
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
	nextID int
}

type mockTimer struct {
	clock   *MockClock
	fn      func()
	at      time.Time
	id      int
	stopped bool
}

// Stop cancels the timer; idempotent.
func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := t.stopped
	t.stopped = true
	return !was
}

// NewMockClock creates a clock starting at a fixed instant.
func NewMockClock() *MockClock {
	return &MockClock{now: time.Unix(1_000_000, 0)}
}

// Now returns the mock instant.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules fn to run when the clock advances past d.
func (c *MockClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 {
		d = 0
	}
	t := &mockTimer{clock: c, fn: fn, at: c.now.Add(d), id: c.nextID}
	c.nextID++
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward, firing every due timer in deadline
// order.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due []*mockTimer
	var rest []*mockTimer
	for _, t := range c.timers {
		if !t.stopped && !t.at.After(now) {
			due = append(due, t)
		} else if !t.stopped {
			rest = append(rest, t)
		}
	}
	c.timers = rest
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}
		return due[i].at.Before(due[j].at)
	})
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// PendingTimers reports how many timers are armed.
func (c *MockClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}
