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

// Everything the dispatcher drains is an event: a command from the control
// API, a response or notification from the HAL, a timer expiry, or an
// internal closure (funcEvent). Each variant is a concrete struct carrying
// exactly its typed payload.
type event any

// command is an application-initiated action.
type command interface {
	commandName() string
}

// response is a firmware reply to an in-flight command, matched by
// transaction id.
type response interface {
	responseName() string
	transactionID() uint16
}

// notification is a firmware-initiated event; processed in any state.
type notification interface {
	notificationName() string
}

// funcEvent runs a closure on the dispatcher goroutine. Used for state
// dumps and test synchronization.
type funcEvent func()

/*
 * Commands
 */

type cmdConnect struct {
	callback             EventCallback
	callingPackage       string
	config               ConfigRequest
	clientID             int
	uid                  int
	pid                  int
	notifyIdentityChange bool
}

type cmdDisconnect struct {
	clientID int
}

type cmdTerminateSession struct {
	clientID  int
	sessionID int
}

type cmdPublish struct {
	callback SessionCallback
	config   PublishConfig
	clientID int
}

type cmdUpdatePublish struct {
	config    PublishConfig
	clientID  int
	sessionID int
}

type cmdSubscribe struct {
	callback SessionCallback
	config   SubscribeConfig
	clientID int
}

type cmdUpdateSubscribe struct {
	config    SubscribeConfig
	clientID  int
	sessionID int
}

type cmdEnqueueSendMessage struct {
	payload    []byte
	clientID   int
	sessionID  int
	peerID     int
	messageID  int
	retryCount int
}

// cmdTransmitNextMessage shifts the head of the host queue into the
// firmware queue. The popped message rides on the command so the queued
// response (or its timeout) can find it.
type cmdTransmitNextMessage struct {
	sent *queuedSendMessage
}

type cmdEnableUsage struct{}

type cmdDisableUsage struct{}

type cmdStartRanging struct {
	params    []RangingParams
	clientID  int
	sessionID int
	rangingID int
}

type cmdGetCapabilities struct{}

type cmdCreateAllDataPathInterfaces struct{}

type cmdDeleteAllDataPathInterfaces struct{}

type cmdCreateDataPathInterface struct {
	name string
}

type cmdDeleteDataPathInterface struct {
	name string
}

type cmdInitiateDataPathSetup struct {
	networkSpecifier   string
	ifaceName          string
	peer               net.HardwareAddr
	token              []byte
	peerID             int
	channelRequestType ChannelRequestType
	channel            int
}

type cmdRespondToDataPathRequest struct {
	ifaceName string
	token     []byte
	ndpID     int
	accept    bool
}

type cmdEndDataPath struct {
	ndpID int
}

func (*cmdConnect) commandName() string                     { return "CONNECT" }
func (*cmdDisconnect) commandName() string                  { return "DISCONNECT" }
func (*cmdTerminateSession) commandName() string            { return "TERMINATE_SESSION" }
func (*cmdPublish) commandName() string                     { return "PUBLISH" }
func (*cmdUpdatePublish) commandName() string               { return "UPDATE_PUBLISH" }
func (*cmdSubscribe) commandName() string                   { return "SUBSCRIBE" }
func (*cmdUpdateSubscribe) commandName() string             { return "UPDATE_SUBSCRIBE" }
func (*cmdEnqueueSendMessage) commandName() string          { return "ENQUEUE_SEND_MESSAGE" }
func (*cmdTransmitNextMessage) commandName() string         { return "TRANSMIT_NEXT_MESSAGE" }
func (*cmdEnableUsage) commandName() string                 { return "ENABLE_USAGE" }
func (*cmdDisableUsage) commandName() string                { return "DISABLE_USAGE" }
func (*cmdStartRanging) commandName() string                { return "START_RANGING" }
func (*cmdGetCapabilities) commandName() string             { return "GET_CAPABILITIES" }
func (*cmdCreateAllDataPathInterfaces) commandName() string { return "CREATE_ALL_DATA_PATH_INTERFACES" }
func (*cmdDeleteAllDataPathInterfaces) commandName() string { return "DELETE_ALL_DATA_PATH_INTERFACES" }
func (*cmdCreateDataPathInterface) commandName() string     { return "CREATE_DATA_PATH_INTERFACE" }
func (*cmdDeleteDataPathInterface) commandName() string     { return "DELETE_DATA_PATH_INTERFACE" }
func (*cmdInitiateDataPathSetup) commandName() string       { return "INITIATE_DATA_PATH_SETUP" }
func (*cmdRespondToDataPathRequest) commandName() string    { return "RESPOND_TO_DATA_PATH_SETUP_REQUEST" }
func (*cmdEndDataPath) commandName() string                 { return "END_DATA_PATH" }

/*
 * Responses
 */

type respConfigSuccess struct {
	tx uint16
}

type respConfigFail struct {
	reason ReasonCode
	tx     uint16
}

type respSessionConfigSuccess struct {
	pubSubID  int
	tx        uint16
	isPublish bool
}

type respSessionConfigFail struct {
	reason    ReasonCode
	tx        uint16
	isPublish bool
}

type respMessageQueuedSuccess struct {
	tx uint16
}

type respMessageQueuedFail struct {
	reason ReasonCode
	tx     uint16
}

type respCapabilities struct {
	caps Capabilities
	tx   uint16
}

type respCreateInterface struct {
	reason  ReasonCode
	tx      uint16
	success bool
}

type respDeleteInterface struct {
	reason  ReasonCode
	tx      uint16
	success bool
}

type respInitiateDataPathSuccess struct {
	ndpID int
	tx    uint16
}

type respInitiateDataPathFail struct {
	reason ReasonCode
	tx     uint16
}

type respRespondToDataPathSetup struct {
	reason  ReasonCode
	tx      uint16
	success bool
}

type respEndDataPath struct {
	reason  ReasonCode
	tx      uint16
	success bool
}

func (r *respConfigSuccess) transactionID() uint16           { return r.tx }
func (r *respConfigFail) transactionID() uint16              { return r.tx }
func (r *respSessionConfigSuccess) transactionID() uint16    { return r.tx }
func (r *respSessionConfigFail) transactionID() uint16       { return r.tx }
func (r *respMessageQueuedSuccess) transactionID() uint16    { return r.tx }
func (r *respMessageQueuedFail) transactionID() uint16       { return r.tx }
func (r *respCapabilities) transactionID() uint16            { return r.tx }
func (r *respCreateInterface) transactionID() uint16         { return r.tx }
func (r *respDeleteInterface) transactionID() uint16         { return r.tx }
func (r *respInitiateDataPathSuccess) transactionID() uint16 { return r.tx }
func (r *respInitiateDataPathFail) transactionID() uint16    { return r.tx }
func (r *respRespondToDataPathSetup) transactionID() uint16  { return r.tx }
func (r *respEndDataPath) transactionID() uint16             { return r.tx }

func (*respConfigSuccess) responseName() string           { return "ON_CONFIG_SUCCESS" }
func (*respConfigFail) responseName() string              { return "ON_CONFIG_FAIL" }
func (*respSessionConfigSuccess) responseName() string    { return "ON_SESSION_CONFIG_SUCCESS" }
func (*respSessionConfigFail) responseName() string       { return "ON_SESSION_CONFIG_FAIL" }
func (*respMessageQueuedSuccess) responseName() string    { return "ON_MESSAGE_SEND_QUEUED_SUCCESS" }
func (*respMessageQueuedFail) responseName() string       { return "ON_MESSAGE_SEND_QUEUED_FAIL" }
func (*respCapabilities) responseName() string            { return "ON_CAPABILITIES_UPDATED" }
func (*respCreateInterface) responseName() string         { return "ON_CREATE_INTERFACE" }
func (*respDeleteInterface) responseName() string         { return "ON_DELETE_INTERFACE" }
func (*respInitiateDataPathSuccess) responseName() string { return "ON_INITIATE_DATA_PATH_SUCCESS" }
func (*respInitiateDataPathFail) responseName() string    { return "ON_INITIATE_DATA_PATH_FAIL" }
func (*respRespondToDataPathSetup) responseName() string  { return "ON_RESPOND_TO_DATA_PATH_SETUP_REQUEST" }
func (*respEndDataPath) responseName() string             { return "ON_END_DATA_PATH" }

/*
 * Notifications
 */

type ntfInterfaceAddressChange struct {
	mac net.HardwareAddr
}

type ntfClusterChange struct {
	clusterID net.HardwareAddr
	eventType ClusterEventType
}

type ntfMatch struct {
	peerMac             net.HardwareAddr
	serviceSpecificInfo []byte
	matchFilter         []byte
	pubSubID            int
	requestorInstanceID int
}

type ntfSessionTerminated struct {
	pubSubID  int
	reason    ReasonCode
	isPublish bool
}

type ntfMessageReceived struct {
	peerMac             net.HardwareAddr
	payload             []byte
	pubSubID            int
	requestorInstanceID int
}

type ntfNanDown struct {
	reason ReasonCode
}

type ntfMessageSendSuccess struct {
	tx uint16
}

type ntfMessageSendFail struct {
	reason ReasonCode
	tx     uint16
}

type ntfDataPathRequest struct {
	peerMac net.HardwareAddr
	appInfo []byte
	pubSubID int
	ndpID    int
}

type ntfDataPathConfirm struct {
	peerMac net.HardwareAddr
	appInfo []byte
	ndpID   int
	reason  ReasonCode
	accept  bool
}

type ntfDataPathEnd struct {
	ndpID int
}

func (*ntfInterfaceAddressChange) notificationName() string { return "INTERFACE_CHANGE" }
func (*ntfClusterChange) notificationName() string          { return "CLUSTER_CHANGE" }
func (*ntfMatch) notificationName() string                  { return "MATCH" }
func (*ntfSessionTerminated) notificationName() string      { return "SESSION_TERMINATED" }
func (*ntfMessageReceived) notificationName() string        { return "MESSAGE_RECEIVED" }
func (*ntfNanDown) notificationName() string                { return "NAN_DOWN" }
func (*ntfMessageSendSuccess) notificationName() string     { return "ON_MESSAGE_SEND_SUCCESS" }
func (*ntfMessageSendFail) notificationName() string        { return "ON_MESSAGE_SEND_FAIL" }
func (*ntfDataPathRequest) notificationName() string        { return "ON_DATA_PATH_REQUEST" }
func (*ntfDataPathConfirm) notificationName() string        { return "ON_DATA_PATH_CONFIRM" }
func (*ntfDataPathEnd) notificationName() string            { return "ON_DATA_PATH_END" }

/*
 * Timeouts
 */

// evtResponseTimeout fires when an in-flight command received no response
// within the command timeout window.
type evtResponseTimeout struct {
	tx uint16
}

// evtSendMessageTimeout fires when the oldest firmware-queued send message
// exceeded its transmission window.
type evtSendMessageTimeout struct{}

// evtDataPathTimeout fires when a data-path setup received no confirmation.
type evtDataPathTimeout struct {
	networkSpecifier string
}
