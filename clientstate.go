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
	"bytes"
	"log/slog"
	"net"
	"sort"
)

// ClientState is one connected application: its identity, requested
// configuration, callback capability and discovery sessions. Created only
// after a successful connect; destroyed on disconnect or NAN down.
type ClientState struct {
	callback             EventCallback
	logger               *slog.Logger
	sessions             map[int]*SessionState
	lastDeliveredMac     net.HardwareAddr
	callingPackage       string
	configRequest        ConfigRequest
	clientID             int
	uid                  int
	pid                  int
	notifyIdentityChange bool
}

func newClientState(clientID, uid, pid int, callingPackage string, callback EventCallback,
	configRequest ConfigRequest, notifyIdentityChange bool, logger *slog.Logger) *ClientState {
	return &ClientState{
		clientID:             clientID,
		uid:                  uid,
		pid:                  pid,
		callingPackage:       callingPackage,
		callback:             callback,
		configRequest:        configRequest,
		notifyIdentityChange: notifyIdentityChange,
		sessions:             make(map[int]*SessionState),
		logger:               logger,
	}
}

// ClientID returns the caller-assigned client id.
func (c *ClientState) ClientID() int { return c.clientID }

// ConfigRequest returns the configuration this client asked for.
func (c *ClientState) ConfigRequest() ConfigRequest { return c.configRequest }

// Callback returns the client's callback capability.
func (c *ClientState) Callback() EventCallback { return c.callback }

// addSession registers a new discovery session under this client.
func (c *ClientState) addSession(session *SessionState) {
	if _, ok := c.sessions[session.sessionID]; ok {
		c.logger.Error("session id already in use, overwriting",
			"client_id", c.clientID, "session_id", session.sessionID)
	}
	c.sessions[session.sessionID] = session
}

// getSession looks a session up by host-allocated id.
func (c *ClientState) getSession(sessionID int) *SessionState {
	return c.sessions[sessionID]
}

// removeSession drops the session without touching firmware (used when the
// firmware already terminated it).
func (c *ClientState) removeSession(sessionID int) {
	delete(c.sessions, sessionID)
}

// terminateSession tears down the session in firmware and drops it.
func (c *ClientState) terminateSession(sessionID int) {
	session := c.sessions[sessionID]
	if session == nil {
		c.logger.Error("terminate of unknown session",
			"client_id", c.clientID, "session_id", sessionID)
		return
	}
	session.terminate()
	delete(c.sessions, sessionID)
}

// destroy tears down every session this client owns.
func (c *ClientState) destroy() {
	for _, id := range c.sessionIDs() {
		c.terminateSession(id)
	}
}

// getSessionForPubSubID finds the session bound to a firmware discovery id,
// or nil. Iteration is in ascending session id order so the lookup is
// deterministic even if an id were ever (erroneously) duplicated.
func (c *ClientState) getSessionForPubSubID(pubSubID int) *SessionState {
	for _, id := range c.sessionIDs() {
		if c.sessions[id].pubSubID == pubSubID {
			return c.sessions[id]
		}
	}
	return nil
}

func (c *ClientState) sessionIDs() []int {
	ids := make([]int, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// onInterfaceAddressChange pushes the discovery MAC to the client, if it
// asked for identity updates and the address actually changed.
func (c *ClientState) onInterfaceAddressChange(mac net.HardwareAddr) {
	if !c.notifyIdentityChange || bytes.Equal(c.lastDeliveredMac, mac) {
		return
	}
	c.lastDeliveredMac = append(net.HardwareAddr(nil), mac...)
	c.callback.OnInterfaceAddressChange(c.lastDeliveredMac)
}

// onClusterChange forwards the cluster event to the client.
func (c *ClientState) onClusterChange(eventType ClusterEventType, clusterID net.HardwareAddr) {
	c.callback.OnClusterChange(eventType, clusterID)
}

// onRangingFailure reports a failed ranging request to the client.
func (c *ClientState) onRangingFailure(rangingID int, reason ReasonCode, description string) {
	c.callback.OnRangingFailure(rangingID, reason, description)
}
