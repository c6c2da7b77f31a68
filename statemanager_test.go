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
	"context"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID  = 7
	testPubSubID  = 42
	testPeerID    = 5
	testRangingID = 77
)

var testPeerMac = net.HardwareAddr{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}

/*
 * Test doubles and harness.
 */

type sendResult struct {
	messageID int
	reason    ReasonCode
}

type recordingEventCallback struct {
	mu             sync.Mutex
	connectSuccess []int
	connectFail    []ReasonCode
	macs           []net.HardwareAddr
	clusters       []ClusterEventType
	rangingFails   []int
}

func (c *recordingEventCallback) OnConnectSuccess(clientID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectSuccess = append(c.connectSuccess, clientID)
}

func (c *recordingEventCallback) OnConnectFail(reason ReasonCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectFail = append(c.connectFail, reason)
}

func (c *recordingEventCallback) OnInterfaceAddressChange(mac net.HardwareAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.macs = append(c.macs, append(net.HardwareAddr(nil), mac...))
}

func (c *recordingEventCallback) OnClusterChange(eventType ClusterEventType, _ net.HardwareAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clusters = append(c.clusters, eventType)
}

func (c *recordingEventCallback) OnRangingFailure(rangingID int, _ ReasonCode, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rangingFails = append(c.rangingFails, rangingID)
}

func (c *recordingEventCallback) snapshot() recordingEventCallback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return recordingEventCallback{
		connectSuccess: append([]int(nil), c.connectSuccess...),
		connectFail:    append([]ReasonCode(nil), c.connectFail...),
		macs:           append([]net.HardwareAddr(nil), c.macs...),
		clusters:       append([]ClusterEventType(nil), c.clusters...),
		rangingFails:   append([]int(nil), c.rangingFails...),
	}
}

type recordingSessionCallback struct {
	mu            sync.Mutex
	started       []int
	configSuccess int
	configFail    []ReasonCode
	terminated    []ReasonCode
	matches       []int
	sendSuccess   []int
	sendFail      []sendResult
	received      [][]byte
}

func (c *recordingSessionCallback) OnSessionStarted(sessionID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, sessionID)
}

func (c *recordingSessionCallback) OnSessionConfigSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configSuccess++
}

func (c *recordingSessionCallback) OnSessionConfigFail(reason ReasonCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configFail = append(c.configFail, reason)
}

func (c *recordingSessionCallback) OnSessionTerminated(reason ReasonCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminated = append(c.terminated, reason)
}

func (c *recordingSessionCallback) OnMatch(peerID int, _, _ []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matches = append(c.matches, peerID)
}

func (c *recordingSessionCallback) OnMessageSendSuccess(messageID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendSuccess = append(c.sendSuccess, messageID)
}

func (c *recordingSessionCallback) OnMessageSendFail(messageID int, reason ReasonCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendFail = append(c.sendFail, sendResult{messageID: messageID, reason: reason})
}

func (c *recordingSessionCallback) OnMessageReceived(_ int, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, append([]byte(nil), payload...))
}

func (c *recordingSessionCallback) snapshot() recordingSessionCallback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return recordingSessionCallback{
		started:       append([]int(nil), c.started...),
		configSuccess: c.configSuccess,
		configFail:    append([]ReasonCode(nil), c.configFail...),
		terminated:    append([]ReasonCode(nil), c.terminated...),
		matches:       append([]int(nil), c.matches...),
		sendSuccess:   append([]int(nil), c.sendSuccess...),
		sendFail:      append([]sendResult(nil), c.sendFail...),
		received:      append([][]byte(nil), c.received...),
	}
}

// recordingDataPath records every DataPathManager invocation; requestSpec
// and confirmSpec script the specifiers returned to the manager.
type recordingDataPath struct {
	mu          sync.Mutex
	requestSpec string
	confirmSpec string
	createAll   int
	deleteAll   int
	created     []string
	deleted     []string
	requests    []int
	confirms    []int
	ends        []int
	initOK      []string
	initFail    []string
	timeouts    []string
	nanDown     int
}

func (d *recordingDataPath) CreateAllInterfaces() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createAll++
}

func (d *recordingDataPath) DeleteAllInterfaces() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleteAll++
}

func (d *recordingDataPath) OnInterfaceCreated(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = append(d.created, name)
}

func (d *recordingDataPath) OnInterfaceDeleted(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, name)
}

func (d *recordingDataPath) OnDataPathRequest(_ int, _ net.HardwareAddr, ndpID int, _ []byte) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, ndpID)
	return d.requestSpec
}

func (d *recordingDataPath) OnDataPathConfirm(ndpID int, _ net.HardwareAddr, _ bool, _ ReasonCode, _ []byte) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.confirms = append(d.confirms, ndpID)
	return d.confirmSpec
}

func (d *recordingDataPath) OnDataPathEnd(ndpID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ends = append(d.ends, ndpID)
}

func (d *recordingDataPath) OnDataPathInitiateSuccess(spec string, _ int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initOK = append(d.initOK, spec)
}

func (d *recordingDataPath) OnDataPathInitiateFail(spec string, _ ReasonCode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initFail = append(d.initFail, spec)
}

func (d *recordingDataPath) HandleDataPathTimeout(spec string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeouts = append(d.timeouts, spec)
}

func (d *recordingDataPath) OnNanDownCleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nanDown++
}

func (d *recordingDataPath) snapshot() recordingDataPath {
	d.mu.Lock()
	defer d.mu.Unlock()
	return recordingDataPath{
		createAll: d.createAll, deleteAll: d.deleteAll,
		created: append([]string(nil), d.created...),
		deleted: append([]string(nil), d.deleted...),
		requests: append([]int(nil), d.requests...),
		confirms: append([]int(nil), d.confirms...),
		ends:     append([]int(nil), d.ends...),
		initOK:   append([]string(nil), d.initOK...),
		initFail: append([]string(nil), d.initFail...),
		timeouts: append([]string(nil), d.timeouts...),
		nanDown:  d.nanDown,
	}
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *MockHAL, *MockClock) {
	t.Helper()

	hal := NewMockHAL()
	clock := NewMockClock()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelWarn}))

	all := append([]Option{WithClock(clock), WithLogger(logger)}, opts...)
	m, err := New(hal, all...)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)
	return m, hal, clock
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

// syncManager waits until the dispatcher is quiescent: every posted event,
// including events the manager posted to itself while processing (e.g.
// transmit-next-message), has been consumed. Deferred events waiting on a
// response are a resting state and do not count.
func syncManager(m *Manager) {
	for {
		done := make(chan struct{})
		var idle bool
		m.events <- funcEvent(func() {
			idle = len(m.events) == 0 && len(m.pending) == 0
			close(done)
		})
		<-done
		if idle {
			return
		}
	}
}

// onLoop runs f on the dispatcher goroutine and returns its result.
func onLoop[T any](m *Manager, f func() T) T {
	var v T
	done := make(chan struct{})
	m.events <- funcEvent(func() { v = f(); close(done) })
	<-done
	return v
}

// enableUsage enables NAN usage and satisfies the capabilities query it
// triggers.
func enableUsage(t *testing.T, m *Manager, hal *MockHAL) {
	t.Helper()
	m.EnableUsage()
	syncManager(m)
	caps := hal.CallsTo("GetCapabilities")
	require.Len(t, caps, 1)
	m.OnCapabilitiesUpdateResponse(caps[0].Tx, Capabilities{MaxNDIInterfaces: 1})
	syncManager(m)
}

// connectClient runs a full connect round-trip for clientID.
func connectClient(t *testing.T, m *Manager, hal *MockHAL, clientID int, cb EventCallback, cfg ConfigRequest) {
	t.Helper()
	before := len(hal.CallsTo("EnableAndConfigure"))
	m.Connect(clientID, 1000, 2000, "com.example.test", cb, cfg, true)
	syncManager(m)
	calls := hal.CallsTo("EnableAndConfigure")
	if len(calls) > before {
		m.OnConfigSuccessResponse(calls[len(calls)-1].Tx)
		syncManager(m)
	}
}

// startPublishSession runs a full publish round-trip and returns the
// allocated session id.
func startPublishSession(t *testing.T, m *Manager, hal *MockHAL, clientID int,
	cb *recordingSessionCallback) int {
	t.Helper()
	before := len(hal.CallsTo("Publish"))
	m.Publish(clientID, PublishConfig{ServiceName: "test-service"}, cb)
	syncManager(m)
	calls := hal.CallsTo("Publish")
	require.Len(t, calls, before+1)
	m.OnSessionConfigSuccessResponse(calls[len(calls)-1].Tx, true, testPubSubID)
	syncManager(m)
	s := cb.snapshot()
	require.NotEmpty(t, s.started)
	return s.started[len(s.started)-1]
}

// matchPeer makes the session aware of the test peer's MAC.
func matchPeer(m *Manager) {
	m.OnMatchNotification(testPubSubID, testPeerID, testPeerMac, []byte("ssi"), nil)
	syncManager(m)
}

/*
 * Scenarios.
 */

func TestSinglePublishRoundTrip(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	evCB := &recordingEventCallback{}
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, evCB, DefaultConfigRequest())
	sid := startPublishSession(t, m, hal, testClientID, sessCB)

	ev := evCB.snapshot()
	require.Equal(t, []int{testClientID}, ev.connectSuccess)
	assert.Empty(t, ev.connectFail)

	sess := sessCB.snapshot()
	require.Equal(t, []int{sid}, sess.started)
	assert.Equal(t, 1, sid, "session ids allocate monotonically from 1")

	bound := onLoop(m, func() bool {
		client := m.clients[testClientID]
		if client == nil {
			return false
		}
		s := client.getSessionForPubSubID(testPubSubID)
		return s != nil && s.SessionID() == sid && s.Kind() == SessionPublish
	})
	assert.True(t, bound, "registry must bind the session to its pub/sub id")

	// The first publish went out with pub/sub id 0 (request-new).
	assert.Equal(t, 0, hal.CallsTo("Publish")[0].PubSubID)
}

func TestSendMessageWithRetry(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())
	sid := startPublishSession(t, m, hal, testClientID, sessCB)
	matchPeer(m)

	m.SendMessage(testClientID, sid, testPeerID, []byte{0xAA}, 9, 1)
	syncManager(m)

	sends := hal.CallsTo("SendFollowonMessage")
	require.Len(t, sends, 1)
	m.OnMessageSendQueuedSuccessResponse(sends[0].Tx)
	syncManager(m)

	// Transmit fails over the air; one retry remains.
	m.OnMessageSendFailNotification(sends[0].Tx, ReasonNoOTAAck)
	syncManager(m)

	sends = hal.CallsTo("SendFollowonMessage")
	require.Len(t, sends, 2, "failed message must be re-attempted")
	m.OnMessageSendQueuedSuccessResponse(sends[1].Tx)
	syncManager(m)
	m.OnMessageSendSuccessNotification(sends[1].Tx)
	syncManager(m)

	s := sessCB.snapshot()
	assert.Equal(t, []int{9}, s.sendSuccess, "exactly one success for message 9")
	assert.Empty(t, s.sendFail)

	empty := onLoop(m, func() bool {
		return m.hostQueue.len() == 0 && m.fwQueue.len() == 0 && !m.sendQueueBlocked
	})
	assert.True(t, empty, "both queues drain after the retry succeeds")
}

func TestFirmwareQueueBackpressure(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())
	sid := startPublishSession(t, m, hal, testClientID, sessCB)
	matchPeer(m)

	m.SendMessage(testClientID, sid, testPeerID, []byte{0xA0}, 1, 0)
	m.SendMessage(testClientID, sid, testPeerID, []byte{0xA1}, 2, 0)
	m.SendMessage(testClientID, sid, testPeerID, []byte{0xA2}, 3, 0)
	syncManager(m)

	sends := hal.CallsTo("SendFollowonMessage")
	require.Len(t, sends, 1)
	m.OnMessageSendQueuedSuccessResponse(sends[0].Tx)
	syncManager(m)

	// The second message hits a full firmware queue.
	sends = hal.CallsTo("SendFollowonMessage")
	require.Len(t, sends, 2)
	m.OnMessageSendQueuedFailResponse(sends[1].Tx, ReasonNoSpaceAvailable)
	syncManager(m)

	assert.True(t, onLoop(m, func() bool { return m.sendQueueBlocked }),
		"queued-fail must block the host queue")
	assert.Len(t, hal.CallsTo("SendFollowonMessage"), 2,
		"no transmit attempts while blocked")

	// The first send completing signals capacity.
	m.OnMessageSendSuccessNotification(sends[0].Tx)
	syncManager(m)
	assert.False(t, onLoop(m, func() bool { return m.sendQueueBlocked }))

	sends = hal.CallsTo("SendFollowonMessage")
	require.Len(t, sends, 3, "blocked message re-attempted after capacity freed")
	m.OnMessageSendQueuedSuccessResponse(sends[2].Tx)
	syncManager(m)

	sends = hal.CallsTo("SendFollowonMessage")
	require.Len(t, sends, 4)
	m.OnMessageSendQueuedSuccessResponse(sends[3].Tx)
	syncManager(m)

	// Attempt order preserves arrival order through the retry.
	var payloads []byte
	for _, c := range hal.CallsTo("SendFollowonMessage") {
		payloads = append(payloads, c.Payload[0])
	}
	assert.Equal(t, []byte{0xA0, 0xA1, 0xA1, 0xA2}, payloads)
}

func TestCommandTimeout(t *testing.T) {
	t.Parallel()
	m, hal, clock := newTestManager(t)
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())

	m.Publish(testClientID, PublishConfig{ServiceName: "silent"}, sessCB)
	syncManager(m)
	require.Len(t, hal.CallsTo("Publish"), 1)

	// HAL stays silent; the 5 s response timer fires.
	clock.Advance(5 * time.Second)
	syncManager(m)

	s := sessCB.snapshot()
	assert.Equal(t, []ReasonCode{ReasonError}, s.configFail,
		"exactly one synthesized failure")
	assert.Equal(t, stateWait, onLoop(m, func() fsmState { return m.state }))

	// The next command proceeds normally.
	sid := startPublishSession(t, m, hal, testClientID, sessCB)
	assert.Positive(t, sid)
}

func TestNanDownPurges(t *testing.T) {
	t.Parallel()
	dp := &recordingDataPath{}
	m, hal, clock := newTestManager(t, WithDataPathManager(dp))
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	cfg := DefaultConfigRequest()
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, cfg)
	connectClient(t, m, hal, 8, &recordingEventCallback{}, cfg)
	sid := startPublishSession(t, m, hal, testClientID, sessCB)
	matchPeer(m)

	// Two messages pending: one riding an in-flight transmit, one queued.
	m.SendMessage(testClientID, sid, testPeerID, []byte{0x01}, 1, 0)
	m.SendMessage(testClientID, sid, testPeerID, []byte{0x02}, 2, 0)
	syncManager(m)
	require.Len(t, hal.CallsTo("SendFollowonMessage"), 1)

	m.OnNanDownNotification(ReasonError)
	syncManager(m)

	purged := onLoop(m, func() bool {
		return len(m.clients) == 0 &&
			m.currentConfig == nil &&
			m.hostQueue.len() == 0 &&
			m.fwQueue.len() == 0
	})
	assert.True(t, purged)
	assert.Equal(t, allZeroMac, onLoop(m, func() net.HardwareAddr { return m.currentDiscoveryMac }))
	assert.Equal(t, 1, dp.snapshot().nanDown)

	// The dangling transmit command times out and recovers quietly.
	clock.Advance(5 * time.Second)
	syncManager(m)
	assert.Equal(t, stateWait, onLoop(m, func() fsmState { return m.state }))
	assert.Empty(t, sessCB.snapshot().sendFail, "no callbacks to purged clients")
}

/*
 * FSM discipline.
 */

func TestCommandsDeferredWhileWaitingForResponse(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	sessCB := &recordingSessionCallback{}
	evCB := &recordingEventCallback{}

	enableUsage(t, m, hal)
	m.Connect(testClientID, 1, 2, "pkg", evCB, DefaultConfigRequest(), false)
	syncManager(m)
	cfgCalls := hal.CallsTo("EnableAndConfigure")
	require.Len(t, cfgCalls, 1)

	// Publish arrives while connect is in flight: it must defer, not
	// reach the HAL.
	m.Publish(testClientID, PublishConfig{ServiceName: "early"}, sessCB)
	syncManager(m)
	assert.Empty(t, hal.CallsTo("Publish"))

	m.OnConfigSuccessResponse(cfgCalls[0].Tx)
	syncManager(m)

	// After the transition the deferred publish runs.
	require.Len(t, hal.CallsTo("Publish"), 1)
	assert.Equal(t, []int{testClientID}, evCB.snapshot().connectSuccess)
}

func TestStaleResponseDiscarded(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())

	m.Publish(testClientID, PublishConfig{ServiceName: "svc"}, sessCB)
	syncManager(m)
	calls := hal.CallsTo("Publish")
	require.Len(t, calls, 1)
	tx := calls[0].Tx

	// A response for some other (long dead) transaction is ignored.
	m.OnSessionConfigSuccessResponse(tx+100, true, 99)
	syncManager(m)
	assert.Empty(t, sessCB.snapshot().started)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.metrics.staleResponses))

	// The real response still lands.
	m.OnSessionConfigSuccessResponse(tx, true, testPubSubID)
	syncManager(m)
	assert.Len(t, sessCB.snapshot().started, 1)
}

func TestResponseBeforeCommandIsDeferredThenDiscarded(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())

	// An out-of-sync response with no command in flight: deferred until
	// the next in-flight command identifies it as stale.
	m.OnSessionConfigSuccessResponse(40_000, true, 99)
	syncManager(m)

	sid := startPublishSession(t, m, hal, testClientID, sessCB)
	assert.Positive(t, sid)
	s := sessCB.snapshot()
	assert.Len(t, s.started, 1, "the remnant response must not create a session")
}

func TestTransactionIDWraparound(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())

	onLoop(m, func() struct{} {
		m.nextTransactionID = 0xFFFF
		return struct{}{}
	})

	m.Publish(testClientID, PublishConfig{ServiceName: "a"}, sessCB)
	syncManager(m)
	calls := hal.CallsTo("Publish")
	require.Len(t, calls, 1)
	assert.Equal(t, uint16(0xFFFF), calls[0].Tx)
	m.OnSessionConfigSuccessResponse(calls[0].Tx, true, testPubSubID)
	syncManager(m)

	// The counter wraps past the sentinel 0.
	m.Publish(testClientID, PublishConfig{ServiceName: "b"}, sessCB)
	syncManager(m)
	calls = hal.CallsTo("Publish")
	require.Len(t, calls, 2)
	assert.Equal(t, uint16(1), calls[1].Tx, "transaction id 0 is never allocated")
}

/*
 * Client lifecycle.
 */

func TestConnectWhileUsageDisabled(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	evCB := &recordingEventCallback{}

	m.Connect(testClientID, 1, 2, "pkg", evCB, DefaultConfigRequest(), false)
	syncManager(m)

	assert.Empty(t, hal.CallsTo("EnableAndConfigure"))
	ev := evCB.snapshot()
	assert.Empty(t, ev.connectSuccess)
	assert.Empty(t, ev.connectFail)
}

func TestSecondClientIdenticalConfigAttaches(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	evCB := &recordingEventCallback{}

	enableUsage(t, m, hal)
	cfg := DefaultConfigRequest()
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, cfg)
	require.Len(t, hal.CallsTo("EnableAndConfigure"), 1)

	m.Connect(8, 1, 2, "pkg2", evCB, cfg, false)
	syncManager(m)

	assert.Len(t, hal.CallsTo("EnableAndConfigure"), 1,
		"identical config attaches without a HAL round-trip")
	assert.Equal(t, []int{8}, evCB.snapshot().connectSuccess)
	assert.Equal(t, 2, onLoop(m, func() int { return len(m.clients) }))
}

func TestSecondClientDifferentConfigRejected(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	evCB := &recordingEventCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())

	different := DefaultConfigRequest()
	different.MasterPreference = 99
	m.Connect(8, 1, 2, "pkg2", evCB, different, false)
	syncManager(m)

	assert.Equal(t, []ReasonCode{ReasonError}, evCB.snapshot().connectFail,
		"a different config is rejected against the running configuration")
	assert.Len(t, hal.CallsTo("EnableAndConfigure"), 1)
	assert.Equal(t, 1, onLoop(m, func() int { return len(m.clients) }))
}

func TestDuplicateClientIDOverwrites(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)

	enableUsage(t, m, hal)
	cfg := DefaultConfigRequest()
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, cfg)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, cfg)

	assert.Equal(t, 1, onLoop(m, func() int { return len(m.clients) }))
}

func TestDisconnectLastClientDisables(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())

	m.Disconnect(testClientID)
	syncManager(m)

	require.Len(t, hal.CallsTo("Disable"), 1)
	assert.Equal(t, transactionIDIgnore, hal.CallsTo("Disable")[0].Tx)
	assert.Nil(t, onLoop(m, func() *ConfigRequest { return m.currentConfig }))
	assert.Equal(t, 0, onLoop(m, func() int { return len(m.clients) }))
}

func TestDisconnectKeepsEqualMergedConfig(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)

	enableUsage(t, m, hal)
	cfg := DefaultConfigRequest()
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, cfg)
	connectClient(t, m, hal, 8, &recordingEventCallback{}, cfg)
	require.Len(t, hal.CallsTo("EnableAndConfigure"), 1)

	m.Disconnect(8)
	syncManager(m)

	// Remaining client wants what is already running: no round-trip.
	assert.Len(t, hal.CallsTo("EnableAndConfigure"), 1)
	assert.Empty(t, hal.CallsTo("Disable"))
	assert.Equal(t, 1, onLoop(m, func() int { return len(m.clients) }))
}

func TestDisconnectUnknownClient(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)

	enableUsage(t, m, hal)
	m.Disconnect(12345)
	syncManager(m)
	assert.Empty(t, hal.CallsTo("Disable"))
}

/*
 * Sessions.
 */

func TestTerminateSessionCancelsInFirmware(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())
	sid := startPublishSession(t, m, hal, testClientID, sessCB)

	m.TerminateSession(testClientID, sid)
	syncManager(m)

	cancels := hal.CallsTo("PublishCancel")
	require.Len(t, cancels, 1)
	assert.Equal(t, transactionIDIgnore, cancels[0].Tx)
	assert.Equal(t, testPubSubID, cancels[0].PubSubID)
	assert.Equal(t, stateWait, onLoop(m, func() fsmState { return m.state }),
		"terminate never waits for a response")

	gone := onLoop(m, func() bool {
		return m.clients[testClientID].getSession(sid) == nil
	})
	assert.True(t, gone)
}

func TestSessionTerminatedNotification(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())
	sid := startPublishSession(t, m, hal, testClientID, sessCB)

	m.OnSessionTerminatedNotification(testPubSubID, ReasonError, true)
	syncManager(m)

	assert.Equal(t, []ReasonCode{ReasonError}, sessCB.snapshot().terminated)
	gone := onLoop(m, func() bool {
		return m.clients[testClientID].getSession(sid) == nil
	})
	assert.True(t, gone)
}

func TestUpdatePublishRoundTrip(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())
	sid := startPublishSession(t, m, hal, testClientID, sessCB)

	m.UpdatePublish(testClientID, sid, PublishConfig{ServiceName: "test-service", TTLSec: 30})
	syncManager(m)

	calls := hal.CallsTo("Publish")
	require.Len(t, calls, 2)
	assert.Equal(t, testPubSubID, calls[1].PubSubID,
		"updates reuse the firmware-assigned pub/sub id")

	m.OnSessionConfigSuccessResponse(calls[1].Tx, true, testPubSubID)
	syncManager(m)
	s := sessCB.snapshot()
	assert.Equal(t, 1, s.configSuccess)
	assert.Len(t, s.started, 1, "an update must not allocate a new session")
}

func TestMatchAndMessageRouting(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())
	startPublishSession(t, m, hal, testClientID, sessCB)

	matchPeer(m)
	m.OnMessageReceivedNotification(testPubSubID, testPeerID, testPeerMac, []byte("hi"))
	syncManager(m)

	s := sessCB.snapshot()
	assert.Equal(t, []int{testPeerID}, s.matches)
	require.Len(t, s.received, 1)
	assert.Equal(t, []byte("hi"), s.received[0])

	// Events for unknown discovery ids are logged and dropped.
	m.OnMatchNotification(9999, 1, testPeerMac, nil, nil)
	m.OnMessageReceivedNotification(9999, 1, testPeerMac, []byte("x"))
	syncManager(m)
	assert.Len(t, sessCB.snapshot().matches, 1)
}

/*
 * Send-message timeout.
 */

func TestSendMessageTimeoutAlwaysExpiresFirst(t *testing.T) {
	t.Parallel()
	m, hal, clock := newTestManager(t)
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())
	sid := startPublishSession(t, m, hal, testClientID, sessCB)
	matchPeer(m)

	// Message A enters the firmware queue at t0.
	m.SendMessage(testClientID, sid, testPeerID, []byte{0x01}, 1, 0)
	syncManager(m)
	sends := hal.CallsTo("SendFollowonMessage")
	require.Len(t, sends, 1)
	m.OnMessageSendQueuedSuccessResponse(sends[0].Tx)
	syncManager(m)

	// Message B follows at t0+6s.
	clock.Advance(6 * time.Second)
	m.SendMessage(testClientID, sid, testPeerID, []byte{0x02}, 2, 0)
	syncManager(m)
	sends = hal.CallsTo("SendFollowonMessage")
	require.Len(t, sends, 2)
	m.OnMessageSendQueuedSuccessResponse(sends[1].Tx)
	syncManager(m)

	// At t0+10s the timer fires: A expires (it is first), B's own window
	// has not passed, so it survives.
	clock.Advance(4 * time.Second)
	syncManager(m)

	s := sessCB.snapshot()
	require.Equal(t, []sendResult{{messageID: 1, reason: ReasonError}}, s.sendFail)
	assert.Equal(t, 1, onLoop(m, func() int { return m.fwQueue.len() }))
	assert.False(t, onLoop(m, func() bool { return m.sendQueueBlocked }))

	// B expires at t0+16s under the always-expire-first rule.
	clock.Advance(6 * time.Second)
	syncManager(m)
	s = sessCB.snapshot()
	require.Len(t, s.sendFail, 2)
	assert.Equal(t, 2, s.sendFail[1].messageID)
	assert.Equal(t, 0, onLoop(m, func() int { return m.fwQueue.len() }))
}

func TestLateSendNotificationTolerated(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	sessCB := &recordingSessionCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())
	startPublishSession(t, m, hal, testClientID, sessCB)

	// Success and failure notifications for transactions nobody queued.
	m.OnMessageSendSuccessNotification(31337)
	m.OnMessageSendFailNotification(31338, ReasonTxFail)
	syncManager(m)

	s := sessCB.snapshot()
	assert.Empty(t, s.sendSuccess)
	assert.Empty(t, s.sendFail)
}

/*
 * Usage toggles and capabilities.
 */

func TestEnableDisableUsageBroadcast(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var broadcasts []bool
	dp := &recordingDataPath{}
	m, hal, _ := newTestManager(t,
		WithDataPathManager(dp),
		WithStateBroadcaster(func(enabled bool) {
			mu.Lock()
			broadcasts = append(broadcasts, enabled)
			mu.Unlock()
		}))

	enableUsage(t, m, hal)
	assert.True(t, m.IsUsageEnabled())
	assert.GreaterOrEqual(t, len(hal.CallsTo("Deinit")), 1)
	assert.Equal(t, 1, dp.snapshot().createAll)

	connectClient(t, m, hal, testClientID, &recordingEventCallback{}, DefaultConfigRequest())

	m.DisableUsage()
	syncManager(m)

	assert.False(t, m.IsUsageEnabled())
	assert.Equal(t, 0, onLoop(m, func() int { return len(m.clients) }))
	assert.Equal(t, 1, dp.snapshot().nanDown)
	assert.Equal(t, 1, dp.snapshot().deleteAll)
	require.Len(t, hal.CallsTo("Disable"), 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, broadcasts)
}

func TestGetCapabilitiesCached(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)

	enableUsage(t, m, hal)
	require.Len(t, hal.CallsTo("GetCapabilities"), 1)

	m.GetCapabilities()
	syncManager(m)
	assert.Len(t, hal.CallsTo("GetCapabilities"), 1,
		"cached capabilities skip the HAL round-trip")
}

func TestEnableUsageIdempotent(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)

	enableUsage(t, m, hal)
	deinits := len(hal.CallsTo("Deinit"))

	m.EnableUsage()
	syncManager(m)
	assert.Len(t, hal.CallsTo("Deinit"), deinits, "re-enable is a no-op")
}

/*
 * Data-path plumbing.
 */

func TestDataPathConfirmTimer(t *testing.T) {
	t.Parallel()
	dp := &recordingDataPath{requestSpec: "spec-req", confirmSpec: "spec-req"}
	m, hal, clock := newTestManager(t, WithDataPathManager(dp))

	enableUsage(t, m, hal)

	// Peer-initiated request arms the confirmation timer.
	m.OnDataPathRequestNotification(testPubSubID, testPeerMac, 3, []byte("token"))
	syncManager(m)
	assert.Equal(t, []int{3}, dp.snapshot().requests)

	// No confirmation: the timer fires.
	clock.Advance(5 * time.Second)
	syncManager(m)
	assert.Equal(t, []string{"spec-req"}, dp.snapshot().timeouts)
}

func TestDataPathConfirmCancelsTimer(t *testing.T) {
	t.Parallel()
	dp := &recordingDataPath{requestSpec: "spec-ok", confirmSpec: "spec-ok"}
	m, hal, clock := newTestManager(t, WithDataPathManager(dp))

	enableUsage(t, m, hal)

	m.OnDataPathRequestNotification(testPubSubID, testPeerMac, 4, nil)
	syncManager(m)
	m.OnDataPathConfirmNotification(4, testPeerMac, true, ReasonSuccess, nil)
	syncManager(m)

	clock.Advance(10 * time.Second)
	syncManager(m)
	assert.Empty(t, dp.snapshot().timeouts, "confirmation cancels the timer")
	assert.Equal(t, []int{4}, dp.snapshot().confirms)
}

func TestInitiateDataPathFlow(t *testing.T) {
	t.Parallel()
	dp := &recordingDataPath{confirmSpec: "spec-init"}
	m, hal, clock := newTestManager(t, WithDataPathManager(dp))

	enableUsage(t, m, hal)

	m.InitiateDataPathSetup("spec-init", testPeerID, ChannelNotRequested, 0,
		testPeerMac, "aware_data0", []byte("tok"))
	syncManager(m)
	calls := hal.CallsTo("InitiateDataPath")
	require.Len(t, calls, 1)

	m.OnInitiateDataPathResponseSuccess(calls[0].Tx, 11)
	syncManager(m)
	assert.Equal(t, []string{"spec-init"}, dp.snapshot().initOK)

	m.OnDataPathConfirmNotification(11, testPeerMac, true, ReasonSuccess, nil)
	syncManager(m)
	clock.Advance(10 * time.Second)
	syncManager(m)
	assert.Empty(t, dp.snapshot().timeouts)

	m.OnDataPathEndNotification(11)
	syncManager(m)
	assert.Equal(t, []int{11}, dp.snapshot().ends)
}

func TestInterfaceCommandsRouteToDataPath(t *testing.T) {
	t.Parallel()
	dp := &recordingDataPath{}
	m, hal, _ := newTestManager(t, WithDataPathManager(dp))

	enableUsage(t, m, hal)

	m.CreateDataPathInterface("aware_data0")
	syncManager(m)
	calls := hal.CallsTo("CreateDataPathInterface")
	require.Len(t, calls, 1)
	m.OnCreateDataPathInterfaceResponse(calls[0].Tx, true, ReasonSuccess)
	syncManager(m)
	assert.Equal(t, []string{"aware_data0"}, dp.snapshot().created)

	m.DeleteDataPathInterface("aware_data0")
	syncManager(m)
	dels := hal.CallsTo("DeleteDataPathInterface")
	require.Len(t, dels, 1)
	m.OnDeleteDataPathInterfaceResponse(dels[0].Tx, true, ReasonSuccess)
	syncManager(m)
	assert.Equal(t, []string{"aware_data0"}, dp.snapshot().deleted)
}

/*
 * Ranging.
 */

func TestStartRangingUnknownSession(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	evCB := &recordingEventCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, evCB, DefaultConfigRequest())

	m.StartRanging(testClientID, 999, []RangingParams{{PeerID: testPeerID}}, testRangingID)
	syncManager(m)

	assert.Equal(t, []int{testRangingID}, evCB.snapshot().rangingFails)
}

/*
 * Interface address fan-out.
 */

func TestInterfaceAddressChangeFanOut(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	notifyCB := &recordingEventCallback{}
	quietCB := &recordingEventCallback{}

	enableUsage(t, m, hal)
	cfg := DefaultConfigRequest()
	m.Connect(testClientID, 1, 2, "pkg", notifyCB, cfg, true)
	syncManager(m)
	calls := hal.CallsTo("EnableAndConfigure")
	require.Len(t, calls, 1)
	m.OnConfigSuccessResponse(calls[0].Tx)
	syncManager(m)

	// Second client opts out of identity notifications.
	m.Connect(8, 1, 2, "pkg2", quietCB, cfg, false)
	syncManager(m)

	newMac := net.HardwareAddr{0x02, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	m.OnInterfaceAddressChangeNotification(newMac)
	syncManager(m)

	macs := notifyCB.snapshot().macs
	require.NotEmpty(t, macs)
	assert.Equal(t, newMac, macs[len(macs)-1])
	assert.Empty(t, quietCB.snapshot().macs, "opted-out client gets no identity updates")

	// Re-delivery of the same address is suppressed.
	before := len(notifyCB.snapshot().macs)
	m.OnInterfaceAddressChangeNotification(newMac)
	syncManager(m)
	assert.Len(t, notifyCB.snapshot().macs, before)
}

func TestClusterChangeFanOut(t *testing.T) {
	t.Parallel()
	m, hal, _ := newTestManager(t)
	evCB := &recordingEventCallback{}

	enableUsage(t, m, hal)
	connectClient(t, m, hal, testClientID, evCB, DefaultConfigRequest())

	m.OnClusterChangeNotification(ClusterEventJoined, net.HardwareAddr{0x50, 0x6F, 0x9A, 0, 0, 1})
	syncManager(m)
	assert.Equal(t, []ClusterEventType{ClusterEventJoined}, evCB.snapshot().clusters)
}
