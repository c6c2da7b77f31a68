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
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"sync/atomic"
	"time"
)

// transactionIDIgnore is the sentinel transaction id: no command in flight,
// or a fire-and-forget HAL call. The allocator never hands it out.
const transactionIDIgnore uint16 = 0

const (
	// halCommandTimeout bounds every HAL round-trip.
	halCommandTimeout = 5 * time.Second
	// sendMessageTimeout bounds a message's stay in the firmware queue.
	sendMessageTimeout = 10 * time.Second
	// dataPathConfirmTimeout bounds data-path setup confirmation.
	dataPathConfirmTimeout = 5 * time.Second

	defaultEventQueueSize = 256
)

// fsmState is the command-in-flight state.
type fsmState int

const (
	// stateWait: no command in flight, commands are consumed.
	stateWait fsmState = iota
	// stateWaitForResponse: one command in flight, further commands defer.
	stateWaitForResponse
)

func (s fsmState) String() string {
	if s == stateWait {
		return "Wait"
	}
	return "WaitForResponse"
}

var allZeroMac = net.HardwareAddr{0, 0, 0, 0, 0, 0}

// Manager is the NAN host control plane. It serializes HAL commands,
// matches responses by transaction id, demultiplexes notifications to the
// owning client/session, merges client configurations and paces follow-on
// message transmission against firmware back-pressure.
//
// All state lives on a single dispatcher goroutine; the only cross-
// goroutine atom is the usage-enabled flag. The control API and the
// EventSink methods only enqueue events and never block.
type Manager struct {
	hal       HAL
	logger    *slog.Logger
	clock     Clock
	metrics   *managerMetrics
	dataPath  DataPathManager
	ranging   RangingManager
	broadcast StateBroadcaster

	events   chan event
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  atomic.Bool
	stopping atomic.Bool

	usageEnabled atomic.Bool

	// Everything below is owned by the dispatcher goroutine.
	pending  []event
	deferred []event

	state                fsmState
	currentCommand       command
	currentTransactionID uint16
	nextTransactionID    uint16
	responseTimer        Timer

	clients             map[int]*ClientState
	nextSessionID       int
	currentConfig       *ConfigRequest
	currentDiscoveryMac net.HardwareAddr
	capabilities        *Capabilities

	hostQueue        hostSendQueue
	fwQueue          fwSendQueue
	sendArrivalSeq   int
	sendQueueBlocked bool
	sendMessageTimer Timer

	dataPathTimers map[string]Timer
}

// New creates a Manager driving the given HAL. The manager does not
// process events until Start is called.
func New(hal HAL, opts ...Option) (*Manager, error) {
	m := &Manager{
		hal:               hal,
		logger:            slog.Default(),
		clock:             systemClock{},
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
		state:             stateWait,
		nextTransactionID: 1,
		nextSessionID:     1,
		clients:           make(map[int]*ClientState),
		currentDiscoveryMac: append(net.HardwareAddr(nil), allZeroMac...),
		dataPathTimers:      make(map[string]Timer),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if m.events == nil {
		m.events = make(chan event, defaultEventQueueSize)
	}
	if m.metrics == nil {
		m.metrics = newManagerMetrics(nil)
	}
	if m.dataPath == nil {
		m.dataPath = nullDataPathManager{logger: m.logger}
	}
	if m.ranging == nil {
		m.ranging = nullRangingManager{logger: m.logger}
	}

	return m, nil
}

// SetDataPathManager wires the data-path collaborator. The collaborator
// typically holds a CommandSender capability back into this manager, so it
// cannot exist before the manager does. Must be called before Start.
func (m *Manager) SetDataPathManager(dp DataPathManager) {
	if m.started.Load() {
		m.logger.Error("SetDataPathManager after Start ignored", "unexpected", true)
		return
	}
	m.dataPath = dp
}

// SetRangingManager wires the RTT collaborator. Must be called before
// Start.
func (m *Manager) SetRangingManager(rtt RangingManager) {
	if m.started.Load() {
		m.logger.Error("SetRangingManager after Start ignored", "unexpected", true)
		return
	}
	m.ranging = rtt
}

// Start launches the dispatcher goroutine. The manager stops when ctx is
// cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go m.loop(ctx)
	return nil
}

// Stop shuts the dispatcher down and waits for it to drain.
func (m *Manager) Stop() {
	if !m.started.Load() {
		return
	}
	if m.stopping.CompareAndSwap(false, true) {
		close(m.stopCh)
	}
	<-m.doneCh
}

/*
 * Control API. Each call enqueues a command for the dispatcher.
 */

// Connect registers a new client. The outcome arrives on callback.
func (m *Manager) Connect(clientID, uid, pid int, callingPackage string, callback EventCallback,
	config ConfigRequest, notifyIdentityChange bool) {
	m.post(&cmdConnect{
		clientID:             clientID,
		uid:                  uid,
		pid:                  pid,
		callingPackage:       callingPackage,
		callback:             callback,
		config:               config,
		notifyIdentityChange: notifyIdentityChange,
	})
}

// Disconnect destroys an existing client and its sessions.
func (m *Manager) Disconnect(clientID int) {
	m.post(&cmdDisconnect{clientID: clientID})
}

// TerminateSession tears down a discovery session.
func (m *Manager) TerminateSession(clientID, sessionID int) {
	m.post(&cmdTerminateSession{clientID: clientID, sessionID: sessionID})
}

// Publish starts a new publish discovery session.
func (m *Manager) Publish(clientID int, cfg PublishConfig, callback SessionCallback) {
	m.post(&cmdPublish{clientID: clientID, config: cfg, callback: callback})
}

// UpdatePublish reconfigures an existing publish session.
func (m *Manager) UpdatePublish(clientID, sessionID int, cfg PublishConfig) {
	m.post(&cmdUpdatePublish{clientID: clientID, sessionID: sessionID, config: cfg})
}

// Subscribe starts a new subscribe discovery session.
func (m *Manager) Subscribe(clientID int, cfg SubscribeConfig, callback SessionCallback) {
	m.post(&cmdSubscribe{clientID: clientID, config: cfg, callback: callback})
}

// UpdateSubscribe reconfigures an existing subscribe session.
func (m *Manager) UpdateSubscribe(clientID, sessionID int, cfg SubscribeConfig) {
	m.post(&cmdUpdateSubscribe{clientID: clientID, sessionID: sessionID, config: cfg})
}

// SendMessage queues a follow-on message toward a discovered peer.
// messageID is echoed back on the send result callbacks; retryCount bounds
// transmit retries on NO_OTA_ACK/TX_FAIL.
func (m *Manager) SendMessage(clientID, sessionID, peerID int, payload []byte, messageID, retryCount int) {
	m.post(&cmdEnqueueSendMessage{
		clientID:   clientID,
		sessionID:  sessionID,
		peerID:     peerID,
		payload:    payload,
		messageID:  messageID,
		retryCount: retryCount,
	})
}

// StartRanging requests RTT ranging against session peers.
func (m *Manager) StartRanging(clientID, sessionID int, params []RangingParams, rangingID int) {
	m.post(&cmdStartRanging{clientID: clientID, sessionID: sessionID, params: params, rangingID: rangingID})
}

// EnableUsage enables NAN usage. Doesn't form a cluster; that happens on
// the first Connect.
func (m *Manager) EnableUsage() {
	m.post(&cmdEnableUsage{})
}

// DisableUsage disables NAN usage, terminating all clients.
func (m *Manager) DisableUsage() {
	m.post(&cmdDisableUsage{})
}

// IsUsageEnabled reports whether NAN usage is enabled. Safe from any
// goroutine.
func (m *Manager) IsUsageEnabled() bool {
	return m.usageEnabled.Load()
}

// GetCapabilities queries the firmware limits (cached after the first
// success; the cache is kept across enable cycles).
func (m *Manager) GetCapabilities() {
	m.post(&cmdGetCapabilities{})
}

// CreateAllDataPathInterfaces creates every supported NAN data interface.
func (m *Manager) CreateAllDataPathInterfaces() {
	m.post(&cmdCreateAllDataPathInterfaces{})
}

// DeleteAllDataPathInterfaces deletes every NAN data interface.
func (m *Manager) DeleteAllDataPathInterfaces() {
	m.post(&cmdDeleteAllDataPathInterfaces{})
}

// CreateDataPathInterface creates the named data interface.
func (m *Manager) CreateDataPathInterface(name string) {
	m.post(&cmdCreateDataPathInterface{name: name})
}

// DeleteDataPathInterface deletes the named data interface.
func (m *Manager) DeleteDataPathInterface(name string) {
	m.post(&cmdDeleteDataPathInterface{name: name})
}

// InitiateDataPathSetup starts data-path setup toward a peer (initiator
// role).
func (m *Manager) InitiateDataPathSetup(networkSpecifier string, peerID int,
	channelRequestType ChannelRequestType, channel int, peer net.HardwareAddr,
	ifaceName string, token []byte) {
	m.post(&cmdInitiateDataPathSetup{
		networkSpecifier:   networkSpecifier,
		peerID:             peerID,
		channelRequestType: channelRequestType,
		channel:            channel,
		peer:               peer,
		ifaceName:          ifaceName,
		token:              token,
	})
}

// RespondToDataPathRequest accepts or rejects a peer-initiated setup
// (responder role).
func (m *Manager) RespondToDataPathRequest(accept bool, ndpID int, ifaceName string, token []byte) {
	m.post(&cmdRespondToDataPathRequest{accept: accept, ndpID: ndpID, ifaceName: ifaceName, token: token})
}

// EndDataPath tears down an established data-path.
func (m *Manager) EndDataPath(ndpID int) {
	m.post(&cmdEndDataPath{ndpID: ndpID})
}

// transmitNextMessage schedules an attempt to shift the head of the host
// queue into the firmware. The queues are inspected when the command is
// executed, not when it is posted.
func (m *Manager) transmitNextMessage() {
	m.postInternal(&cmdTransmitNextMessage{})
}

/*
 * EventSink: responses.
 */

// OnConfigSuccessResponse reports a completed configuration request.
func (m *Manager) OnConfigSuccessResponse(tx uint16) {
	m.post(&respConfigSuccess{tx: tx})
}

// OnConfigFailedResponse reports a failed configuration request.
func (m *Manager) OnConfigFailedResponse(tx uint16, reason ReasonCode) {
	m.post(&respConfigFail{tx: tx, reason: reason})
}

// OnSessionConfigSuccessResponse reports a successful session configuration
// (new or update).
func (m *Manager) OnSessionConfigSuccessResponse(tx uint16, isPublish bool, pubSubID int) {
	m.post(&respSessionConfigSuccess{tx: tx, isPublish: isPublish, pubSubID: pubSubID})
}

// OnSessionConfigFailResponse reports a failed session configuration.
func (m *Manager) OnSessionConfigFailResponse(tx uint16, isPublish bool, reason ReasonCode) {
	m.post(&respSessionConfigFail{tx: tx, isPublish: isPublish, reason: reason})
}

// OnMessageSendQueuedSuccessResponse reports that a follow-on message was
// accepted onto the firmware transmit queue.
func (m *Manager) OnMessageSendQueuedSuccessResponse(tx uint16) {
	m.post(&respMessageQueuedSuccess{tx: tx})
}

// OnMessageSendQueuedFailResponse reports that the firmware refused to
// queue a follow-on message (queue full).
func (m *Manager) OnMessageSendQueuedFailResponse(tx uint16, reason ReasonCode) {
	m.post(&respMessageQueuedFail{tx: tx, reason: reason})
}

// OnCapabilitiesUpdateResponse delivers the firmware limits.
func (m *Manager) OnCapabilitiesUpdateResponse(tx uint16, caps Capabilities) {
	m.post(&respCapabilities{tx: tx, caps: caps})
}

// OnCreateDataPathInterfaceResponse reports the outcome of an interface
// creation command.
func (m *Manager) OnCreateDataPathInterfaceResponse(tx uint16, success bool, reason ReasonCode) {
	m.post(&respCreateInterface{tx: tx, success: success, reason: reason})
}

// OnDeleteDataPathInterfaceResponse reports the outcome of an interface
// deletion command.
func (m *Manager) OnDeleteDataPathInterfaceResponse(tx uint16, success bool, reason ReasonCode) {
	m.post(&respDeleteInterface{tx: tx, success: success, reason: reason})
}

// OnInitiateDataPathResponseSuccess reports that data-path setup started
// (not completed) and carries the firmware-assigned ndp id.
func (m *Manager) OnInitiateDataPathResponseSuccess(tx uint16, ndpID int) {
	m.post(&respInitiateDataPathSuccess{tx: tx, ndpID: ndpID})
}

// OnInitiateDataPathResponseFail reports that data-path setup could not be
// started.
func (m *Manager) OnInitiateDataPathResponseFail(tx uint16, reason ReasonCode) {
	m.post(&respInitiateDataPathFail{tx: tx, reason: reason})
}

// OnRespondToDataPathSetupRequestResponse reports the outcome of a
// responder accept/reject command.
func (m *Manager) OnRespondToDataPathSetupRequestResponse(tx uint16, success bool, reason ReasonCode) {
	m.post(&respRespondToDataPathSetup{tx: tx, success: success, reason: reason})
}

// OnEndDataPathResponse reports the outcome of a data-path teardown
// command.
func (m *Manager) OnEndDataPathResponse(tx uint16, success bool, reason ReasonCode) {
	m.post(&respEndDataPath{tx: tx, success: success, reason: reason})
}

/*
 * EventSink: notifications.
 */

// OnInterfaceAddressChangeNotification reports a new discovery interface
// MAC.
func (m *Manager) OnInterfaceAddressChangeNotification(mac net.HardwareAddr) {
	m.post(&ntfInterfaceAddressChange{mac: mac})
}

// OnClusterChangeNotification reports cluster membership changes.
func (m *Manager) OnClusterChangeNotification(eventType ClusterEventType, clusterID net.HardwareAddr) {
	m.post(&ntfClusterChange{eventType: eventType, clusterID: clusterID})
}

// OnMatchNotification reports a discovery match.
func (m *Manager) OnMatchNotification(pubSubID, requestorInstanceID int, peerMac net.HardwareAddr,
	serviceSpecificInfo, matchFilter []byte) {
	m.post(&ntfMatch{
		pubSubID:            pubSubID,
		requestorInstanceID: requestorInstanceID,
		peerMac:             peerMac,
		serviceSpecificInfo: serviceSpecificInfo,
		matchFilter:         matchFilter,
	})
}

// OnSessionTerminatedNotification reports a session terminated by firmware.
func (m *Manager) OnSessionTerminatedNotification(pubSubID int, reason ReasonCode, isPublish bool) {
	m.post(&ntfSessionTerminated{pubSubID: pubSubID, reason: reason, isPublish: isPublish})
}

// OnMessageReceivedNotification delivers a follow-on message from a peer.
func (m *Manager) OnMessageReceivedNotification(pubSubID, requestorInstanceID int,
	peerMac net.HardwareAddr, payload []byte) {
	m.post(&ntfMessageReceived{
		pubSubID:            pubSubID,
		requestorInstanceID: requestorInstanceID,
		peerMac:             peerMac,
		payload:             payload,
	})
}

// OnNanDownNotification reports that NAN went down.
func (m *Manager) OnNanDownNotification(reason ReasonCode) {
	m.post(&ntfNanDown{reason: reason})
}

// OnMessageSendSuccessNotification reports an over-the-air ACK for a queued
// message.
func (m *Manager) OnMessageSendSuccessNotification(tx uint16) {
	m.post(&ntfMessageSendSuccess{tx: tx})
}

// OnMessageSendFailNotification reports a transmit failure for a queued
// message.
func (m *Manager) OnMessageSendFailNotification(tx uint16, reason ReasonCode) {
	m.post(&ntfMessageSendFail{tx: tx, reason: reason})
}

// OnDataPathRequestNotification reports a peer-initiated data-path request.
func (m *Manager) OnDataPathRequestNotification(pubSubID int, peerMac net.HardwareAddr, ndpID int, appInfo []byte) {
	m.post(&ntfDataPathRequest{pubSubID: pubSubID, peerMac: peerMac, ndpID: ndpID, appInfo: appInfo})
}

// OnDataPathConfirmNotification reports data-path establishment or
// rejection.
func (m *Manager) OnDataPathConfirmNotification(ndpID int, peerMac net.HardwareAddr, accept bool,
	reason ReasonCode, appInfo []byte) {
	m.post(&ntfDataPathConfirm{ndpID: ndpID, peerMac: peerMac, accept: accept, reason: reason, appInfo: appInfo})
}

// OnDataPathEndNotification reports data-path teardown.
func (m *Manager) OnDataPathEndNotification(ndpID int) {
	m.post(&ntfDataPathEnd{ndpID: ndpID})
}

/*
 * Dispatcher.
 */

// post enqueues an event from any goroutine. Never blocks: if the queue is
// full the event is dropped with an error log (the subsystem recovers
// through timeouts).
func (m *Manager) post(ev event) {
	select {
	case m.events <- ev:
	default:
		m.metrics.eventsDropped.Inc()
		m.logger.Error("event queue full, dropping event", "event", fmt.Sprintf("%T", ev))
	}
}

// postInternal enqueues an event from the dispatcher goroutine itself.
// Falls back to the local pending list so in-loop scheduling can never
// deadlock on a full queue.
func (m *Manager) postInternal(ev event) {
	select {
	case m.events <- ev:
	default:
		m.pending = append(m.pending, ev)
	}
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.doneCh)

	for {
		var ev event
		if len(m.pending) > 0 {
			ev = m.pending[0]
			m.pending[0] = nil
			m.pending = m.pending[1:]
		} else {
			select {
			case ev = <-m.events:
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
		m.dispatch(ev)
	}
}

// deferEvent buffers an event for replay at the head of the queue on the
// next state transition.
func (m *Manager) deferEvent(ev event) {
	m.deferred = append(m.deferred, ev)
}

// transitionTo switches FSM states, arming/cancelling the response timer
// and replaying deferred events ahead of everything else.
func (m *Manager) transitionTo(next fsmState) {
	if m.state == stateWaitForResponse && m.responseTimer != nil {
		m.responseTimer.Stop()
		m.responseTimer = nil
	}

	m.state = next

	if next == stateWaitForResponse {
		tx := m.currentTransactionID
		m.responseTimer = m.clock.AfterFunc(halCommandTimeout, func() {
			m.post(&evtResponseTimeout{tx: tx})
		})
	}

	if len(m.deferred) > 0 {
		replay := m.deferred
		m.deferred = nil
		m.pending = append(append(make([]event, 0, len(replay)+len(m.pending)), replay...), m.pending...)
	}
}

func (m *Manager) dispatch(ev event) {
	switch e := ev.(type) {
	case command:
		switch m.state {
		case stateWait:
			if m.processCommand(e) {
				m.transitionTo(stateWaitForResponse)
			}
		case stateWaitForResponse:
			m.deferEvent(e)
		}

	case response:
		switch m.state {
		case stateWait:
			// Remnant or out-of-sync response: let WaitForResponse
			// identify it as out-of-date by transaction id.
			m.deferEvent(e)
		case stateWaitForResponse:
			if e.transactionID() == m.currentTransactionID {
				m.metrics.responsesMatched.Inc()
				m.processResponse(e)
				m.transitionTo(stateWait)
			} else {
				m.metrics.staleResponses.Inc()
				m.logger.Warn("non-matching transaction id on response (very late response)",
					"response", e.responseName(),
					"transaction_id", e.transactionID(),
					"current_transaction_id", m.currentTransactionID)
			}
		}

	case *evtResponseTimeout:
		switch m.state {
		case stateWait:
			m.deferEvent(e)
		case stateWaitForResponse:
			if e.tx == m.currentTransactionID {
				m.metrics.commandTimeouts.Inc()
				m.processResponseTimeout()
				m.transitionTo(stateWait)
			} else {
				m.logger.Warn("non-matching transaction id on response timeout",
					"transaction_id", e.tx,
					"current_transaction_id", m.currentTransactionID)
			}
		}

	case notification:
		m.processNotification(e)

	case *evtSendMessageTimeout:
		m.processSendMessageTimeout()

	case *evtDataPathTimeout:
		m.dataPath.HandleDataPathTimeout(e.networkSpecifier)
		delete(m.dataPathTimers, e.networkSpecifier)

	case funcEvent:
		e()

	default:
		m.logger.Error("unexpected event type", "unexpected", true, "event", fmt.Sprintf("%T", ev))
	}
}

/*
 * Command processing.
 */

// processCommand executes one command. Returns true if a HAL response must
// be awaited; in that case the command and its transaction id are recorded
// as in flight.
func (m *Manager) processCommand(cmd command) bool {
	if m.currentCommand != nil {
		m.logger.Error("processing a command but previous command was not cleared",
			"unexpected", true,
			"command", cmd.commandName(),
			"previous", m.currentCommand.commandName())
		m.currentCommand = nil
	}

	m.currentTransactionID = m.nextTransactionID
	m.nextTransactionID++
	if m.nextTransactionID == transactionIDIgnore {
		m.nextTransactionID++
	}

	waitForResponse := true

	switch c := cmd.(type) {
	case *cmdConnect:
		waitForResponse = m.connectLocal(m.currentTransactionID, c)

	case *cmdDisconnect:
		waitForResponse = m.disconnectLocal(m.currentTransactionID, c)

	case *cmdTerminateSession:
		m.terminateSessionLocal(c.clientID, c.sessionID)
		waitForResponse = false

	case *cmdPublish:
		waitForResponse = m.publishLocal(m.currentTransactionID, c)

	case *cmdUpdatePublish:
		waitForResponse = m.updatePublishLocal(m.currentTransactionID, c)

	case *cmdSubscribe:
		waitForResponse = m.subscribeLocal(m.currentTransactionID, c)

	case *cmdUpdateSubscribe:
		waitForResponse = m.updateSubscribeLocal(m.currentTransactionID, c)

	case *cmdEnqueueSendMessage:
		msg := &queuedSendMessage{
			arrivalSeq: m.sendArrivalSeq,
			clientID:   c.clientID,
			sessionID:  c.sessionID,
			peerID:     c.peerID,
			payload:    c.payload,
			messageID:  c.messageID,
			retryCount: c.retryCount,
		}
		m.sendArrivalSeq++
		m.hostQueue.insert(msg)
		m.updateQueueMetrics()
		waitForResponse = false

		if !m.sendQueueBlocked {
			m.transmitNextMessage()
		}

	case *cmdTransmitNextMessage:
		if m.sendQueueBlocked || m.hostQueue.len() == 0 {
			m.logger.Debug("transmit next: blocked or empty host queue",
				"blocked", m.sendQueueBlocked, "host_queue", m.hostQueue.len())
			waitForResponse = false
		} else {
			c.sent = m.hostQueue.popFront()
			m.updateQueueMetrics()
			waitForResponse = m.sendFollowonMessageLocal(m.currentTransactionID, c.sent)
		}

	case *cmdEnableUsage:
		m.enableUsageLocal()
		waitForResponse = false

	case *cmdDisableUsage:
		m.disableUsageLocal()
		waitForResponse = false

	case *cmdStartRanging:
		m.startRangingLocal(c)
		waitForResponse = false

	case *cmdGetCapabilities:
		if m.capabilities == nil {
			waitForResponse = m.halCall("GetCapabilities",
				m.hal.GetCapabilities(m.currentTransactionID))
		} else {
			m.logger.Debug("capabilities already cached, skipping query")
			waitForResponse = false
		}

	case *cmdCreateAllDataPathInterfaces:
		m.dataPath.CreateAllInterfaces()
		waitForResponse = false

	case *cmdDeleteAllDataPathInterfaces:
		m.dataPath.DeleteAllInterfaces()
		waitForResponse = false

	case *cmdCreateDataPathInterface:
		waitForResponse = m.halCall("CreateDataPathInterface",
			m.hal.CreateDataPathInterface(m.currentTransactionID, c.name))

	case *cmdDeleteDataPathInterface:
		waitForResponse = m.halCall("DeleteDataPathInterface",
			m.hal.DeleteDataPathInterface(m.currentTransactionID, c.name))

	case *cmdInitiateDataPathSetup:
		waitForResponse = m.halCall("InitiateDataPath",
			m.hal.InitiateDataPath(m.currentTransactionID, c.peerID, c.channelRequestType,
				c.channel, c.peer, c.ifaceName, c.token))
		if waitForResponse {
			m.armDataPathTimer(c.networkSpecifier)
		}

	case *cmdRespondToDataPathRequest:
		waitForResponse = m.halCall("RespondToDataPathRequest",
			m.hal.RespondToDataPathRequest(m.currentTransactionID, c.accept, c.ndpID,
				c.ifaceName, c.token))

	case *cmdEndDataPath:
		waitForResponse = m.halCall("EndDataPath",
			m.hal.EndDataPath(m.currentTransactionID, c.ndpID))

	default:
		waitForResponse = false
		m.logger.Error("not a command", "unexpected", true, "event", fmt.Sprintf("%T", cmd))
	}

	if !waitForResponse {
		m.currentTransactionID = transactionIDIgnore
	} else {
		m.metrics.commandsIssued.Inc()
		m.currentCommand = cmd
	}

	return waitForResponse
}

// halCall converts a HAL submission error into the wait decision, logging
// the failure. A failed submission gets no response and no timer.
func (m *Manager) halCall(op string, err error) bool {
	if err != nil {
		m.logger.Error("hal command submission failed", "op", op, "err", err)
		return false
	}
	return true
}

func (m *Manager) connectLocal(tx uint16, c *cmdConnect) bool {
	if !m.usageEnabled.Load() {
		m.logger.Warn("connect called while usage is disabled", "client_id", c.clientID)
		return false
	}

	if m.clients[c.clientID] != nil {
		m.logger.Error("connect: entry already exists for client", "client_id", c.clientID)
	}

	// Compatibility check against the running configuration, not the
	// merge. Any second client asking for a different configuration is
	// rejected even when the merge would be unchanged.
	if m.currentConfig != nil && !m.currentConfig.Equal(c.config) {
		c.callback.OnConnectFail(ReasonError)
		return false
	}

	merged, ok := m.mergeConfigRequests(&c.config)
	if !ok {
		m.logger.Error("connect: merge yielded no configuration", "unexpected", true)
		return false
	}
	if m.currentConfig != nil && m.currentConfig.Equal(merged) {
		c.callback.OnConnectSuccess(c.clientID)
		client := newClientState(c.clientID, c.uid, c.pid, c.callingPackage, c.callback,
			c.config, c.notifyIdentityChange, m.logger)
		client.onInterfaceAddressChange(m.currentDiscoveryMac)
		m.clients[c.clientID] = client
		m.metrics.clientCount.Set(float64(len(m.clients)))
		return false
	}

	return m.halCall("EnableAndConfigure",
		m.hal.EnableAndConfigure(tx, merged, m.currentConfig == nil))
}

func (m *Manager) disconnectLocal(tx uint16, c *cmdDisconnect) bool {
	client := m.clients[c.clientID]
	if client == nil {
		m.logger.Error("disconnect of unknown client", "client_id", c.clientID)
		return false
	}
	delete(m.clients, c.clientID)
	client.destroy()
	m.metrics.clientCount.Set(float64(len(m.clients)))

	if len(m.clients) == 0 {
		m.currentConfig = nil
		if err := m.hal.Disable(transactionIDIgnore); err != nil {
			m.logger.Error("hal disable failed", "err", err)
		}
		return false
	}

	merged, ok := m.mergeConfigRequests(nil)
	if !ok || (m.currentConfig != nil && m.currentConfig.Equal(merged)) {
		return false
	}

	return m.halCall("EnableAndConfigure",
		m.hal.EnableAndConfigure(tx, merged, false))
}

func (m *Manager) terminateSessionLocal(clientID, sessionID int) {
	client := m.clients[clientID]
	if client == nil {
		m.logger.Error("terminate session for unknown client", "client_id", clientID)
		return
	}
	client.terminateSession(sessionID)
}

func (m *Manager) publishLocal(tx uint16, c *cmdPublish) bool {
	if m.clients[c.clientID] == nil {
		m.logger.Error("publish for unknown client", "client_id", c.clientID)
		return false
	}
	return m.halCall("Publish", m.hal.Publish(tx, 0, c.config))
}

func (m *Manager) updatePublishLocal(tx uint16, c *cmdUpdatePublish) bool {
	session := m.lookupSession("update publish", c.clientID, c.sessionID)
	if session == nil {
		return false
	}
	if err := session.updatePublish(tx, c.config); err != nil {
		m.logger.Error("update publish failed", "client_id", c.clientID,
			"session_id", c.sessionID, "err", err)
		return false
	}
	return true
}

func (m *Manager) subscribeLocal(tx uint16, c *cmdSubscribe) bool {
	if m.clients[c.clientID] == nil {
		m.logger.Error("subscribe for unknown client", "client_id", c.clientID)
		return false
	}
	return m.halCall("Subscribe", m.hal.Subscribe(tx, 0, c.config))
}

func (m *Manager) updateSubscribeLocal(tx uint16, c *cmdUpdateSubscribe) bool {
	session := m.lookupSession("update subscribe", c.clientID, c.sessionID)
	if session == nil {
		return false
	}
	if err := session.updateSubscribe(tx, c.config); err != nil {
		m.logger.Error("update subscribe failed", "client_id", c.clientID,
			"session_id", c.sessionID, "err", err)
		return false
	}
	return true
}

// sendFollowonMessageLocal pushes one host-queue message to the firmware.
// An unknown client or session is logged and the message dropped; an
// unknown peer fails the message immediately with ReasonInvalidArgs.
func (m *Manager) sendFollowonMessageLocal(tx uint16, msg *queuedSendMessage) bool {
	session := m.lookupSession("send message", msg.clientID, msg.sessionID)
	if session == nil {
		return false
	}
	if err := session.sendMessage(tx, msg.peerID, msg.payload); err != nil {
		m.logger.Error("send message submission failed", "client_id", msg.clientID,
			"session_id", msg.sessionID, "peer_id", msg.peerID, "err", err)
		session.callback.OnMessageSendFail(msg.messageID, ReasonInvalidArgs)
		return false
	}
	return true
}

func (m *Manager) enableUsageLocal() {
	if m.usageEnabled.Load() {
		return
	}

	// Force a clean firmware state before first use.
	m.hal.Deinit()

	m.usageEnabled.Store(true)
	m.GetCapabilities()
	m.CreateAllDataPathInterfaces()
	m.sendStateChangedBroadcast(true)
}

func (m *Manager) disableUsageLocal() {
	if !m.usageEnabled.Load() {
		return
	}

	m.onNanDownLocal()
	m.DeleteAllDataPathInterfaces()

	m.usageEnabled.Store(false)
	if err := m.hal.Disable(transactionIDIgnore); err != nil {
		m.logger.Error("hal disable failed", "err", err)
	}
	m.hal.Deinit()

	m.sendStateChangedBroadcast(false)
}

func (m *Manager) startRangingLocal(c *cmdStartRanging) {
	client := m.clients[c.clientID]
	if client == nil {
		m.logger.Error("start ranging for unknown client", "client_id", c.clientID)
		return
	}

	session := client.getSession(c.sessionID)
	if session == nil {
		m.logger.Error("start ranging for unknown session",
			"client_id", c.clientID, "session_id", c.sessionID)
		client.onRangingFailure(c.rangingID, ReasonInvalidArgs, "invalid session id")
		return
	}

	params := make([]RangingParams, len(c.params))
	for i, p := range c.params {
		params[i] = p
		mac, ok := session.PeerMac(p.PeerID)
		if !ok {
			m.logger.Debug("no MAC address for ranging peer", "peer_id", p.PeerID)
			params[i].PeerMAC = nil
			continue
		}
		params[i].PeerMAC = mac
	}

	m.ranging.StartRanging(c.rangingID, client, params)
}

/*
 * Response processing.
 */

func (m *Manager) processResponse(resp response) {
	if m.currentCommand == nil {
		m.logger.Error("response with no command in flight", "unexpected", true,
			"response", resp.responseName())
		m.currentTransactionID = transactionIDIgnore
		return
	}

	switch r := resp.(type) {
	case *respConfigSuccess:
		m.onConfigCompletedLocal(m.currentCommand)

	case *respConfigFail:
		m.onConfigFailedLocal(m.currentCommand, r.reason)

	case *respSessionConfigSuccess:
		m.onSessionConfigSuccessLocal(m.currentCommand, r.pubSubID, r.isPublish)

	case *respSessionConfigFail:
		m.onSessionConfigFailLocal(m.currentCommand, r.isPublish, r.reason)

	case *respMessageQueuedSuccess:
		if tn, ok := m.currentCommand.(*cmdTransmitNextMessage); ok && tn.sent != nil {
			tn.sent.enqueueTime = m.clock.Now()
			tn.sent.transactionID = m.currentTransactionID
			m.fwQueue.add(tn.sent)
			m.updateQueueMetrics()
			m.updateSendMessageTimeout()
			if !m.sendQueueBlocked {
				m.transmitNextMessage()
			}
		} else {
			m.logger.Error("message queued response without transmit command",
				"unexpected", true, "command", m.currentCommand.commandName())
		}

	case *respMessageQueuedFail:
		// Firmware queue full: put the message back under its original
		// arrival order and back off until a send completes.
		if tn, ok := m.currentCommand.(*cmdTransmitNextMessage); ok && tn.sent != nil {
			m.hostQueue.insert(tn.sent)
			m.updateQueueMetrics()
			m.sendQueueBlocked = true
			m.logger.Debug("firmware send queue full, blocking",
				"arrival_seq", tn.sent.arrivalSeq, "reason", r.reason)
		} else {
			m.logger.Error("message queued-fail response without transmit command",
				"unexpected", true, "command", m.currentCommand.commandName())
		}

	case *respCapabilities:
		caps := r.caps
		m.capabilities = &caps

	case *respCreateInterface:
		m.onCreateDataPathInterfaceResponseLocal(m.currentCommand, r.success, r.reason)

	case *respDeleteInterface:
		m.onDeleteDataPathInterfaceResponseLocal(m.currentCommand, r.success, r.reason)

	case *respInitiateDataPathSuccess:
		if c, ok := m.currentCommand.(*cmdInitiateDataPathSetup); ok {
			m.dataPath.OnDataPathInitiateSuccess(c.networkSpecifier, r.ndpID)
		} else {
			m.logger.Error("initiate data path response without initiate command",
				"unexpected", true, "command", m.currentCommand.commandName())
		}

	case *respInitiateDataPathFail:
		if c, ok := m.currentCommand.(*cmdInitiateDataPathSetup); ok {
			m.dataPath.OnDataPathInitiateFail(c.networkSpecifier, r.reason)
		} else {
			m.logger.Error("initiate data path response without initiate command",
				"unexpected", true, "command", m.currentCommand.commandName())
		}

	case *respRespondToDataPathSetup:
		if !r.success {
			m.logger.Error("respond to data path request failed", "reason", r.reason)
		}

	case *respEndDataPath:
		if !r.success {
			m.logger.Error("end data path failed", "reason", r.reason)
		}

	default:
		m.logger.Error("not a response", "unexpected", true, "event", fmt.Sprintf("%T", resp))
	}

	m.currentCommand = nil
	m.currentTransactionID = transactionIDIgnore
}

// processResponseTimeout synthesizes a failure for the in-flight command so
// the FSM always leaves WaitForResponse and the caller's callback fires.
func (m *Manager) processResponseTimeout() {
	if m.currentCommand == nil {
		m.logger.Error("response timeout with no command in flight", "unexpected", true)
		m.currentTransactionID = transactionIDIgnore
		return
	}

	switch c := m.currentCommand.(type) {
	case *cmdConnect, *cmdDisconnect:
		m.onConfigFailedLocal(m.currentCommand, ReasonError)

	case *cmdPublish:
		m.onSessionConfigFailLocal(m.currentCommand, true, ReasonError)

	case *cmdUpdatePublish:
		m.onSessionConfigFailLocal(m.currentCommand, true, ReasonError)

	case *cmdSubscribe:
		m.onSessionConfigFailLocal(m.currentCommand, false, ReasonError)

	case *cmdUpdateSubscribe:
		m.onSessionConfigFailLocal(m.currentCommand, false, ReasonError)

	case *cmdTransmitNextMessage:
		m.onMessageSendFailLocal(c.sent, ReasonError)
		m.sendQueueBlocked = false
		m.transmitNextMessage()

	case *cmdGetCapabilities:
		m.logger.Error("capabilities query timed out, will retry on next enable")

	case *cmdCreateDataPathInterface:
		m.onCreateDataPathInterfaceResponseLocal(m.currentCommand, false, ReasonTimeout)

	case *cmdDeleteDataPathInterface:
		m.onDeleteDataPathInterfaceResponseLocal(m.currentCommand, false, ReasonTimeout)

	case *cmdInitiateDataPathSetup:
		m.dataPath.OnDataPathInitiateFail(c.networkSpecifier, ReasonTimeout)

	case *cmdRespondToDataPathRequest:
		m.logger.Error("respond to data path request timed out", "ndp_id", c.ndpID)

	case *cmdEndDataPath:
		m.logger.Error("end data path timed out", "ndp_id", c.ndpID)

	default:
		m.logger.Error("response timeout for command that never waits",
			"unexpected", true, "command", m.currentCommand.commandName())
	}

	m.currentCommand = nil
	m.currentTransactionID = transactionIDIgnore
}

func (m *Manager) onConfigCompletedLocal(completed command) {
	switch c := completed.(type) {
	case *cmdConnect:
		client := newClientState(c.clientID, c.uid, c.pid, c.callingPackage, c.callback,
			c.config, c.notifyIdentityChange, m.logger)
		m.clients[c.clientID] = client
		m.metrics.clientCount.Set(float64(len(m.clients)))
		c.callback.OnConnectSuccess(c.clientID)
		client.onInterfaceAddressChange(m.currentDiscoveryMac)
	case *cmdDisconnect:
		// Updated configuration after disconnecting a client; nothing to
		// report.
	default:
		m.logger.Error("config completed for unexpected command",
			"unexpected", true, "command", completed.commandName())
		return
	}

	if merged, ok := m.mergeConfigRequests(nil); ok {
		m.currentConfig = &merged
	} else {
		m.currentConfig = nil
	}
}

func (m *Manager) onConfigFailedLocal(failed command, reason ReasonCode) {
	switch c := failed.(type) {
	case *cmdConnect:
		c.callback.OnConnectFail(reason)
	case *cmdDisconnect:
		// Reconfiguration after disconnect failed; the old configuration
		// is still running, nothing to report.
	default:
		m.logger.Error("config failed for unexpected command",
			"unexpected", true, "command", failed.commandName())
	}
}

func (m *Manager) onSessionConfigSuccessLocal(completed command, pubSubID int, isPublish bool) {
	switch c := completed.(type) {
	case *cmdPublish, *cmdSubscribe:
		var clientID int
		var callback SessionCallback
		kind := SessionSubscribe
		if p, ok := c.(*cmdPublish); ok {
			clientID, callback, kind = p.clientID, p.callback, SessionPublish
		} else {
			s := c.(*cmdSubscribe)
			clientID, callback = s.clientID, s.callback
		}

		client := m.clients[clientID]
		if client == nil {
			m.logger.Error("session config success for unknown client", "client_id", clientID)
			return
		}

		sessionID := m.nextSessionID
		m.nextSessionID++
		callback.OnSessionStarted(sessionID)

		session := newSessionState(sessionID, pubSubID, kind, callback, m.hal, m.logger)
		client.addSession(session)

	case *cmdUpdatePublish:
		m.deliverSessionConfigResult(c.clientID, c.sessionID, ReasonSuccess)

	case *cmdUpdateSubscribe:
		m.deliverSessionConfigResult(c.clientID, c.sessionID, ReasonSuccess)

	default:
		m.logger.Error("session config success for unexpected command",
			"unexpected", true, "command", completed.commandName())
	}
}

func (m *Manager) onSessionConfigFailLocal(failed command, isPublish bool, reason ReasonCode) {
	switch c := failed.(type) {
	case *cmdPublish:
		c.callback.OnSessionConfigFail(reason)
	case *cmdSubscribe:
		c.callback.OnSessionConfigFail(reason)
	case *cmdUpdatePublish:
		m.deliverSessionConfigResult(c.clientID, c.sessionID, reason)
	case *cmdUpdateSubscribe:
		m.deliverSessionConfigResult(c.clientID, c.sessionID, reason)
	default:
		m.logger.Error("session config fail for unexpected command",
			"unexpected", true, "command", failed.commandName())
	}
}

// deliverSessionConfigResult reports an update outcome on the session's own
// callback.
func (m *Manager) deliverSessionConfigResult(clientID, sessionID int, reason ReasonCode) {
	session := m.lookupSession("session config result", clientID, sessionID)
	if session == nil {
		return
	}
	if reason == ReasonSuccess {
		session.callback.OnSessionConfigSuccess()
	} else {
		session.callback.OnSessionConfigFail(reason)
	}
}

func (m *Manager) onCreateDataPathInterfaceResponseLocal(cmd command, success bool, reason ReasonCode) {
	c, ok := cmd.(*cmdCreateDataPathInterface)
	if !ok {
		m.logger.Error("create interface response for unexpected command",
			"unexpected", true, "command", cmd.commandName())
		return
	}
	if success {
		m.dataPath.OnInterfaceCreated(c.name)
	} else {
		m.logger.Error("data path interface creation failed", "name", c.name, "reason", reason)
	}
}

func (m *Manager) onDeleteDataPathInterfaceResponseLocal(cmd command, success bool, reason ReasonCode) {
	c, ok := cmd.(*cmdDeleteDataPathInterface)
	if !ok {
		m.logger.Error("delete interface response for unexpected command",
			"unexpected", true, "command", cmd.commandName())
		return
	}
	if success {
		m.dataPath.OnInterfaceDeleted(c.name)
	} else {
		m.logger.Error("data path interface deletion failed", "name", c.name, "reason", reason)
	}
}

/*
 * Notification processing.
 */

func (m *Manager) processNotification(ntf notification) {
	switch n := ntf.(type) {
	case *ntfInterfaceAddressChange:
		m.onInterfaceAddressChangeLocal(n.mac)

	case *ntfClusterChange:
		m.onClusterChangeLocal(n.eventType, n.clusterID)

	case *ntfMatch:
		m.onMatchLocal(n)

	case *ntfSessionTerminated:
		m.onSessionTerminatedLocal(n.pubSubID, n.isPublish, n.reason)

	case *ntfMessageReceived:
		m.onMessageReceivedLocal(n)

	case *ntfNanDown:
		// The reason code is not consulted: cleanup is unconditional
		// whether the firmware shut down on request or on its own.
		m.onNanDownLocal()

	case *ntfMessageSendSuccess:
		msg := m.fwQueue.remove(n.tx)
		if msg == nil {
			m.logger.Warn("send success for unknown firmware-queue entry (timed out?)",
				"transaction_id", n.tx)
		} else {
			m.updateQueueMetrics()
			m.updateSendMessageTimeout()
			m.metrics.sendSuccess.Inc()
			m.onMessageSendSuccessLocal(msg)
		}
		m.sendQueueBlocked = false
		m.transmitNextMessage()

	case *ntfMessageSendFail:
		msg := m.fwQueue.remove(n.tx)
		if msg == nil {
			m.logger.Warn("send fail for unknown firmware-queue entry (timed out?)",
				"transaction_id", n.tx)
			return
		}
		m.updateQueueMetrics()
		m.updateSendMessageTimeout()

		if msg.retryCount > 0 && (n.reason == ReasonNoOTAAck || n.reason == ReasonTxFail) {
			msg.retryCount--
			m.metrics.sendRetries.Inc()
			m.hostQueue.insert(msg)
			m.updateQueueMetrics()
		} else {
			m.onMessageSendFailLocal(msg, n.reason)
		}
		m.sendQueueBlocked = false
		m.transmitNextMessage()

	case *ntfDataPathRequest:
		spec := m.dataPath.OnDataPathRequest(n.pubSubID, n.peerMac, n.ndpID, n.appInfo)
		if spec != "" {
			m.armDataPathTimer(spec)
		}

	case *ntfDataPathConfirm:
		spec := m.dataPath.OnDataPathConfirm(n.ndpID, n.peerMac, n.accept, n.reason, n.appInfo)
		if spec != "" {
			if t, ok := m.dataPathTimers[spec]; ok {
				t.Stop()
				delete(m.dataPathTimers, spec)
			}
		}

	case *ntfDataPathEnd:
		m.dataPath.OnDataPathEnd(n.ndpID)

	default:
		m.logger.Error("not a notification", "unexpected", true, "event", fmt.Sprintf("%T", ntf))
	}
}

func (m *Manager) onInterfaceAddressChangeLocal(mac net.HardwareAddr) {
	m.currentDiscoveryMac = append(net.HardwareAddr(nil), mac...)
	for _, id := range m.clientIDs() {
		m.clients[id].onInterfaceAddressChange(mac)
	}
}

func (m *Manager) onClusterChangeLocal(eventType ClusterEventType, clusterID net.HardwareAddr) {
	for _, id := range m.clientIDs() {
		m.clients[id].onClusterChange(eventType, clusterID)
	}
}

func (m *Manager) onMatchLocal(n *ntfMatch) {
	_, session := m.getClientSessionForPubSubID(n.pubSubID)
	if session == nil {
		m.logger.Error("match for unknown discovery id", "pub_sub_id", n.pubSubID)
		return
	}
	session.onMatch(n.requestorInstanceID, n.peerMac, n.serviceSpecificInfo, n.matchFilter)
}

func (m *Manager) onSessionTerminatedLocal(pubSubID int, isPublish bool, reason ReasonCode) {
	client, session := m.getClientSessionForPubSubID(pubSubID)
	if session == nil {
		m.logger.Error("termination for unknown discovery id", "pub_sub_id", pubSubID)
		return
	}

	session.callback.OnSessionTerminated(reason)
	client.removeSession(session.sessionID)
}

func (m *Manager) onMessageReceivedLocal(n *ntfMessageReceived) {
	_, session := m.getClientSessionForPubSubID(n.pubSubID)
	if session == nil {
		m.logger.Error("received message for unknown discovery id", "pub_sub_id", n.pubSubID)
		return
	}
	session.onMessageReceived(n.requestorInstanceID, n.peerMac, n.payload)
}

// onNanDownLocal purges all per-connection state: clients, configuration,
// both send queues and the discovery MAC. The data-path layer drops its
// state through its own cleanup hook.
func (m *Manager) onNanDownLocal() {
	m.clients = make(map[int]*ClientState)
	m.metrics.clientCount.Set(0)
	m.currentConfig = nil

	m.sendQueueBlocked = false
	m.hostQueue.clear()
	m.fwQueue.clear()
	m.updateQueueMetrics()
	m.updateSendMessageTimeout()

	m.dataPath.OnNanDownCleanup()
	m.currentDiscoveryMac = append(net.HardwareAddr(nil), allZeroMac...)
}

func (m *Manager) onMessageSendSuccessLocal(msg *queuedSendMessage) {
	session := m.lookupSession("message send success", msg.clientID, msg.sessionID)
	if session == nil {
		return
	}
	session.callback.OnMessageSendSuccess(msg.messageID)
}

func (m *Manager) onMessageSendFailLocal(msg *queuedSendMessage, reason ReasonCode) {
	if msg == nil {
		m.logger.Error("send fail with no message", "unexpected", true)
		return
	}
	m.metrics.sendFail.Inc()
	session := m.lookupSession("message send fail", msg.clientID, msg.sessionID)
	if session == nil {
		return
	}
	session.callback.OnMessageSendFail(msg.messageID, reason)
}

/*
 * Send-message timeout.
 */

// updateSendMessageTimeout re-arms the single send-message wake timer
// against the oldest firmware-queue entry, or cancels it when the queue is
// empty. Called after every firmware-queue mutation.
func (m *Manager) updateSendMessageTimeout() {
	if m.sendMessageTimer != nil {
		m.sendMessageTimer.Stop()
		m.sendMessageTimer = nil
	}
	first := m.fwQueue.first()
	if first == nil {
		return
	}
	d := first.enqueueTime.Add(sendMessageTimeout).Sub(m.clock.Now())
	m.sendMessageTimer = m.clock.AfterFunc(d, func() {
		m.post(&evtSendMessageTimeout{})
	})
}

// processSendMessageTimeout expires firmware-queue entries in insertion
// order. The first entry is always expired regardless of its timestamp so
// the subsystem makes progress even when the clock cannot advance; every
// following entry is expired only once its own window has passed.
func (m *Manager) processSendMessageTimeout() {
	first := true
	now := m.clock.Now()
	for {
		msg := m.fwQueue.first()
		if msg == nil {
			break
		}
		if !first && msg.enqueueTime.Add(sendMessageTimeout).After(now) {
			break
		}
		m.fwQueue.removeFirst()
		m.metrics.sendExpired.Inc()
		m.logger.Debug("expiring firmware-queued message",
			"transaction_id", msg.transactionID, "message_id", msg.messageID)
		m.onMessageSendFailLocal(msg, ReasonError)
		first = false
	}
	m.updateQueueMetrics()
	m.updateSendMessageTimeout()
	m.sendQueueBlocked = false
	m.transmitNextMessage()
}

/*
 * Utilities.
 */

// armDataPathTimer (re)arms the confirmation timer for a network
// specifier. A duplicate registration replaces the previous one.
func (m *Manager) armDataPathTimer(networkSpecifier string) {
	if t, ok := m.dataPathTimers[networkSpecifier]; ok {
		t.Stop()
	}
	m.dataPathTimers[networkSpecifier] = m.clock.AfterFunc(dataPathConfirmTimeout, func() {
		m.post(&evtDataPathTimeout{networkSpecifier: networkSpecifier})
	})
}

// clientIDs returns the registered client ids in ascending order, for
// deterministic fan-out and lookup.
func (m *Manager) clientIDs() []int {
	ids := make([]int, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// getClientSessionForPubSubID resolves a firmware discovery id to its
// owning (client, session) pair, or (nil, nil).
func (m *Manager) getClientSessionForPubSubID(pubSubID int) (*ClientState, *SessionState) {
	for _, id := range m.clientIDs() {
		client := m.clients[id]
		if session := client.getSessionForPubSubID(pubSubID); session != nil {
			return client, session
		}
	}
	return nil, nil
}

// lookupSession resolves (clientID, sessionID), logging when either is
// unknown.
func (m *Manager) lookupSession(op string, clientID, sessionID int) *SessionState {
	client := m.clients[clientID]
	if client == nil {
		m.logger.Error("no such client", "op", op, "client_id", clientID)
		return nil
	}
	session := client.getSession(sessionID)
	if session == nil {
		m.logger.Error("no such session", "op", op,
			"client_id", clientID, "session_id", sessionID)
		return nil
	}
	return session
}

// mergeConfigRequests folds an optional new request and all registered
// clients' requests into the firmware configuration.
func (m *Manager) mergeConfigRequests(newRequest *ConfigRequest) (ConfigRequest, bool) {
	existing := make([]ConfigRequest, 0, len(m.clients))
	for _, id := range m.clientIDs() {
		existing = append(existing, m.clients[id].configRequest)
	}
	merged, ok := mergeConfigs(newRequest, existing)
	if !ok {
		m.logger.Error("config merge called with no clients and no request")
	}
	return merged, ok
}

func (m *Manager) sendStateChangedBroadcast(enabled bool) {
	if m.broadcast == nil {
		return
	}
	m.broadcast(enabled)
}

func (m *Manager) updateQueueMetrics() {
	m.metrics.hostQueueDepth.Set(float64(m.hostQueue.len()))
	m.metrics.fwQueueDepth.Set(float64(m.fwQueue.len()))
}

// Dump writes a snapshot of the manager state, taken on the dispatcher
// goroutine while it runs, or directly once the dispatcher has exited.
func (m *Manager) Dump(w io.Writer) {
	if !m.started.Load() {
		m.dumpState(w)
		return
	}
	done := make(chan struct{})
	select {
	case m.events <- funcEvent(func() {
		m.dumpState(w)
		close(done)
	}):
		select {
		case <-done:
		case <-m.doneCh:
			// Dispatcher exited without draining the snapshot request.
			select {
			case <-done:
			default:
				m.dumpState(w)
			}
		}
	case <-m.doneCh:
		m.dumpState(w)
	}
}

func (m *Manager) dumpState(w io.Writer) {
	fmt.Fprintf(w, "NanStateManager:\n")
	fmt.Fprintf(w, "  usageEnabled: %v\n", m.usageEnabled.Load())
	fmt.Fprintf(w, "  state: %v\n", m.state)
	fmt.Fprintf(w, "  nextTransactionID: %d\n", m.nextTransactionID)
	fmt.Fprintf(w, "  nextSessionID: %d\n", m.nextSessionID)
	if m.currentCommand != nil {
		fmt.Fprintf(w, "  currentCommand: %s (tx=%d)\n",
			m.currentCommand.commandName(), m.currentTransactionID)
	} else {
		fmt.Fprintf(w, "  currentCommand: none\n")
	}
	if m.currentConfig != nil {
		fmt.Fprintf(w, "  currentConfig: %v\n", *m.currentConfig)
	} else {
		fmt.Fprintf(w, "  currentConfig: none\n")
	}
	fmt.Fprintf(w, "  currentDiscoveryMac: %s\n", m.currentDiscoveryMac)
	fmt.Fprintf(w, "  capabilities: %+v\n", m.capabilities)
	fmt.Fprintf(w, "  sendQueueBlocked: %v\n", m.sendQueueBlocked)
	fmt.Fprintf(w, "  sendArrivalSeq: %d\n", m.sendArrivalSeq)
	fmt.Fprintf(w, "  hostQueue: %d entries\n", m.hostQueue.len())
	fmt.Fprintf(w, "  fwQueue: %d entries\n", m.fwQueue.len())
	fmt.Fprintf(w, "  clients: %d\n", len(m.clients))
	for _, id := range m.clientIDs() {
		c := m.clients[id]
		fmt.Fprintf(w, "    client %d: uid=%d pid=%d pkg=%s sessions=%d\n",
			c.clientID, c.uid, c.pid, c.callingPackage, len(c.sessions))
		for _, sid := range c.sessionIDs() {
			s := c.sessions[sid]
			fmt.Fprintf(w, "      session %d: kind=%s pubSubID=%d\n",
				s.sessionID, s.kind, s.pubSubID)
		}
	}
}

/*
 * Default collaborators.
 */

// nullDataPathManager is used until a real data-path manager is wired in.
type nullDataPathManager struct {
	logger *slog.Logger
}

func (nullDataPathManager) CreateAllInterfaces() {}
func (nullDataPathManager) DeleteAllInterfaces() {}
func (nullDataPathManager) OnInterfaceCreated(string) {}
func (nullDataPathManager) OnInterfaceDeleted(string) {}
func (d nullDataPathManager) OnDataPathRequest(_ int, _ net.HardwareAddr, ndpID int, _ []byte) string {
	d.logger.Debug("ignoring data path request", "ndp_id", ndpID)
	return ""
}
func (nullDataPathManager) OnDataPathConfirm(int, net.HardwareAddr, bool, ReasonCode, []byte) string {
	return ""
}
func (nullDataPathManager) OnDataPathEnd(int)                          {}
func (nullDataPathManager) OnDataPathInitiateSuccess(string, int)      {}
func (nullDataPathManager) OnDataPathInitiateFail(string, ReasonCode)  {}
func (nullDataPathManager) HandleDataPathTimeout(string)               {}
func (nullDataPathManager) OnNanDownCleanup()                          {}

// nullRangingManager is used until a real RTT subsystem is wired in.
type nullRangingManager struct {
	logger *slog.Logger
}

func (r nullRangingManager) StartRanging(rangingID int, client *ClientState, _ []RangingParams) {
	r.logger.Debug("ranging not available", "ranging_id", rangingID)
	client.onRangingFailure(rangingID, ReasonNotSupported, "ranging not available")
}
