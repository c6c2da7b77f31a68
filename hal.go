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

// HAL is the firmware-facing adapter contract. Every method is a
// non-blocking command submission: a nil return means the command went out,
// and the outcome arrives later through the EventSink carrying the same
// transaction id. A non-nil return means the command never reached the
// firmware and no response will follow.
//
// This can be implemented by the uart or i2c backends, or mocked for tests.
type HAL interface {
	// EnableAndConfigure brings NAN up (initialConfiguration true) or
	// reconfigures a running cluster with a merged configuration.
	EnableAndConfigure(tx uint16, cfg ConfigRequest, initialConfiguration bool) error

	// Disable takes NAN down.
	Disable(tx uint16) error

	// Publish starts a new publish session (pubSubID 0) or reconfigures
	// an existing one.
	Publish(tx uint16, pubSubID int, cfg PublishConfig) error

	// PublishCancel tears down a publish session. Fire-and-forget; issued
	// with tx 0.
	PublishCancel(tx uint16, pubSubID int) error

	// Subscribe starts a new subscribe session (pubSubID 0) or
	// reconfigures an existing one.
	Subscribe(tx uint16, pubSubID int, cfg SubscribeConfig) error

	// SubscribeCancel tears down a subscribe session. Fire-and-forget.
	SubscribeCancel(tx uint16, pubSubID int) error

	// SendFollowonMessage queues an L2 message toward a discovered peer
	// on the firmware transmit queue.
	SendFollowonMessage(tx uint16, pubSubID, requestorInstanceID int, dest net.HardwareAddr, payload []byte) error

	// GetCapabilities queries the firmware limits.
	GetCapabilities(tx uint16) error

	// CreateDataPathInterface and DeleteDataPathInterface manage NAN data
	// interfaces.
	CreateDataPathInterface(tx uint16, name string) error
	DeleteDataPathInterface(tx uint16, name string) error

	// InitiateDataPath starts data-path setup toward a peer (initiator
	// role).
	InitiateDataPath(tx uint16, peerID int, channelRequestType ChannelRequestType, channel int,
		peer net.HardwareAddr, ifaceName string, appInfo []byte) error

	// RespondToDataPathRequest accepts or rejects a peer-initiated setup
	// (responder role).
	RespondToDataPathRequest(tx uint16, accept bool, ndpID int, ifaceName string, appInfo []byte) error

	// EndDataPath tears down an established data-path.
	EndDataPath(tx uint16, ndpID int) error

	// Deinit resets the backend. Called on usage toggles to force a
	// clean firmware state.
	Deinit()
}

// EventSink receives firmware responses and notifications from a HAL
// backend. *Manager implements EventSink; backends hold it and invoke it
// from their receive paths. All methods are safe to call from any
// goroutine and never block.
type EventSink interface {
	// Responses to in-flight commands, matched by transaction id.
	OnConfigSuccessResponse(tx uint16)
	OnConfigFailedResponse(tx uint16, reason ReasonCode)
	OnSessionConfigSuccessResponse(tx uint16, isPublish bool, pubSubID int)
	OnSessionConfigFailResponse(tx uint16, isPublish bool, reason ReasonCode)
	OnMessageSendQueuedSuccessResponse(tx uint16)
	OnMessageSendQueuedFailResponse(tx uint16, reason ReasonCode)
	OnCapabilitiesUpdateResponse(tx uint16, caps Capabilities)
	OnCreateDataPathInterfaceResponse(tx uint16, success bool, reason ReasonCode)
	OnDeleteDataPathInterfaceResponse(tx uint16, success bool, reason ReasonCode)
	OnInitiateDataPathResponseSuccess(tx uint16, ndpID int)
	OnInitiateDataPathResponseFail(tx uint16, reason ReasonCode)
	OnRespondToDataPathSetupRequestResponse(tx uint16, success bool, reason ReasonCode)
	OnEndDataPathResponse(tx uint16, success bool, reason ReasonCode)

	// Firmware-initiated notifications.
	OnInterfaceAddressChangeNotification(mac net.HardwareAddr)
	OnClusterChangeNotification(eventType ClusterEventType, clusterID net.HardwareAddr)
	OnMatchNotification(pubSubID, requestorInstanceID int, peerMac net.HardwareAddr, serviceSpecificInfo, matchFilter []byte)
	OnSessionTerminatedNotification(pubSubID int, reason ReasonCode, isPublish bool)
	OnMessageReceivedNotification(pubSubID, requestorInstanceID int, peerMac net.HardwareAddr, payload []byte)
	OnNanDownNotification(reason ReasonCode)
	OnMessageSendSuccessNotification(tx uint16)
	OnMessageSendFailNotification(tx uint16, reason ReasonCode)
	OnDataPathRequestNotification(pubSubID int, peerMac net.HardwareAddr, ndpID int, appInfo []byte)
	OnDataPathConfirmNotification(ndpID int, peerMac net.HardwareAddr, accept bool, reason ReasonCode, appInfo []byte)
	OnDataPathEndNotification(ndpID int)
}
