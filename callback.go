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

import "net"

// EventCallback is the per-client callback capability handed over on
// Connect. Implementations are typically thin shims over an IPC channel;
// they must not block, and they must tolerate being invoked after the
// client has gone away.
//
// All callbacks are invoked on the manager's dispatcher goroutine.
type EventCallback interface {
	// OnConnectSuccess signals that the connect request was accepted and
	// the client is registered under clientID.
	OnConnectSuccess(clientID int)

	// OnConnectFail signals that the connect request was rejected.
	OnConnectFail(reason ReasonCode)

	// OnInterfaceAddressChange delivers the current discovery interface
	// MAC. Only delivered to clients that requested identity-change
	// notifications, and only when the address actually changed.
	OnInterfaceAddressChange(mac net.HardwareAddr)

	// OnClusterChange signals that this device started or joined a
	// cluster.
	OnClusterChange(eventType ClusterEventType, clusterID net.HardwareAddr)

	// OnRangingFailure signals that a ranging request could not be
	// serviced.
	OnRangingFailure(rangingID int, reason ReasonCode, description string)
}

// SessionCallback is the per-discovery-session callback capability handed
// over on Publish/Subscribe. Same invocation rules as EventCallback.
type SessionCallback interface {
	// OnSessionStarted delivers the host-allocated session id for a new
	// publish or subscribe session.
	OnSessionStarted(sessionID int)

	// OnSessionConfigSuccess signals that an update to the session's
	// configuration was applied.
	OnSessionConfigSuccess()

	// OnSessionConfigFail signals that a session configuration (new or
	// update) was rejected.
	OnSessionConfigFail(reason ReasonCode)

	// OnSessionTerminated signals that the session is gone (planned or
	// otherwise). No further callbacks follow.
	OnSessionTerminated(reason ReasonCode)

	// OnMatch reports a discovery match. peerID identifies the peer for
	// follow-on messaging and ranging.
	OnMatch(peerID int, serviceSpecificInfo, matchFilter []byte)

	// OnMessageSendSuccess acknowledges over-the-air delivery of a
	// follow-on message.
	OnMessageSendSuccess(messageID int)

	// OnMessageSendFail reports that a follow-on message was not
	// delivered, after exhausting any requested retries.
	OnMessageSendFail(messageID int, reason ReasonCode)

	// OnMessageReceived delivers a follow-on message from a peer.
	OnMessageReceived(peerID int, payload []byte)
}

// StateBroadcaster publishes NAN usage state transitions system-wide. The
// broadcast fan-out itself (sticky delivery, permissions) lives with the
// embedder; the manager only reports the new state.
type StateBroadcaster func(enabled bool)

// RangingParams identifies one peer to range against. PeerMAC is resolved
// by the manager from the session's peer cache before hand-off to the
// ranging subsystem; it is empty when the peer is unknown.
type RangingParams struct {
	PeerID  int
	PeerMAC net.HardwareAddr
}

// RangingManager is the RTT subsystem driven by the manager. The real
// implementation lives outside the core.
type RangingManager interface {
	StartRanging(rangingID int, client *ClientState, params []RangingParams)
}

// DataPathManager is the data-path subsystem driven by the manager. The
// manager routes firmware events to it and arms/cancels the per-specifier
// confirmation timers; interface lifecycle and NDP bookkeeping live in the
// implementation.
//
// All methods are invoked on the manager's dispatcher goroutine.
type DataPathManager interface {
	// CreateAllInterfaces and DeleteAllInterfaces trigger creation or
	// deletion of every supported NAN data interface, typically by
	// issuing CreateDataPathInterface/DeleteDataPathInterface commands
	// back through a CommandSender.
	CreateAllInterfaces()
	DeleteAllInterfaces()

	// OnInterfaceCreated and OnInterfaceDeleted report the outcome of
	// interface commands.
	OnInterfaceCreated(name string)
	OnInterfaceDeleted(name string)

	// OnDataPathRequest reports a peer-initiated setup request. The
	// returned network specifier (empty if the request is not tracked)
	// keys the confirmation timer armed by the manager.
	OnDataPathRequest(pubSubID int, peer net.HardwareAddr, ndpID int, appInfo []byte) string

	// OnDataPathConfirm reports data-path establishment (or rejection).
	// The returned network specifier cancels the pending confirmation
	// timer.
	OnDataPathConfirm(ndpID int, peer net.HardwareAddr, accept bool, reason ReasonCode, appInfo []byte) string

	// OnDataPathEnd reports data-path teardown.
	OnDataPathEnd(ndpID int)

	// OnDataPathInitiateSuccess and OnDataPathInitiateFail report the
	// firmware response to an initiate command.
	OnDataPathInitiateSuccess(networkSpecifier string, ndpID int)
	OnDataPathInitiateFail(networkSpecifier string, reason ReasonCode)

	// HandleDataPathTimeout fires when no confirmation arrived for the
	// specifier within the confirmation window.
	HandleDataPathTimeout(networkSpecifier string)

	// OnNanDownCleanup drops all data-path state.
	OnNanDownCleanup()
}

// CommandSender is the narrow capability the data-path manager holds back
// into the state manager: it can only enqueue data-path commands, breaking
// what would otherwise be an owning cycle between the two.
type CommandSender interface {
	CreateDataPathInterface(name string)
	DeleteDataPathInterface(name string)
	RespondToDataPathRequest(accept bool, ndpID int, ifaceName string, token []byte)
	EndDataPath(ndpID int)
}
