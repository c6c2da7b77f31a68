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
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Peer cache sizing. Peers not heard from within the TTL are evicted and
// can no longer be messaged or ranged until they match again.
const (
	peerCacheSize = 256
	peerCacheTTL  = 30 * time.Minute
)

// SessionState is one publish or subscribe discovery session. sessionID is
// allocated by the manager; pubSubID by the firmware.
type SessionState struct {
	callback  SessionCallback
	hal       HAL
	logger    *slog.Logger
	peerMacs  *expirable.LRU[int, net.HardwareAddr]
	sessionID int
	pubSubID  int
	kind      SessionKind
}

func newSessionState(sessionID, pubSubID int, kind SessionKind, callback SessionCallback,
	hal HAL, logger *slog.Logger) *SessionState {
	return &SessionState{
		sessionID: sessionID,
		pubSubID:  pubSubID,
		kind:      kind,
		callback:  callback,
		hal:       hal,
		logger:    logger,
		peerMacs:  expirable.NewLRU[int, net.HardwareAddr](peerCacheSize, nil, peerCacheTTL),
	}
}

// SessionID returns the host-allocated session id.
func (s *SessionState) SessionID() int { return s.sessionID }

// PubSubID returns the firmware-allocated discovery id.
func (s *SessionState) PubSubID() int { return s.pubSubID }

// Kind returns whether this is a publish or subscribe session.
func (s *SessionState) Kind() SessionKind { return s.kind }

// Callback returns the session's callback capability.
func (s *SessionState) Callback() SessionCallback { return s.callback }

// PeerMac resolves a peer instance id to its discovery MAC, if the peer is
// still in the cache.
func (s *SessionState) PeerMac(peerID int) (net.HardwareAddr, bool) {
	return s.peerMacs.Get(peerID)
}

// terminate tears the session down in firmware. Fire-and-forget: issued
// with the ignore transaction id, no response expected.
func (s *SessionState) terminate() {
	var err error
	if s.kind == SessionPublish {
		err = s.hal.PublishCancel(transactionIDIgnore, s.pubSubID)
	} else {
		err = s.hal.SubscribeCancel(transactionIDIgnore, s.pubSubID)
	}
	if err != nil {
		s.logger.Warn("session cancel failed",
			"session_id", s.sessionID, "pub_sub_id", s.pubSubID, "err", err)
	}
}

// updatePublish reconfigures a publish session in place.
func (s *SessionState) updatePublish(tx uint16, cfg PublishConfig) error {
	if s.kind != SessionPublish {
		return fmt.Errorf("%w: session %d is a %s session", ErrInvalidParameter, s.sessionID, s.kind)
	}
	return s.hal.Publish(tx, s.pubSubID, cfg)
}

// updateSubscribe reconfigures a subscribe session in place.
func (s *SessionState) updateSubscribe(tx uint16, cfg SubscribeConfig) error {
	if s.kind != SessionSubscribe {
		return fmt.Errorf("%w: session %d is a %s session", ErrInvalidParameter, s.sessionID, s.kind)
	}
	return s.hal.Subscribe(tx, s.pubSubID, cfg)
}

// sendMessage pushes a follow-on message to the firmware transmit queue.
// The peer's MAC must still be cached from a prior match or receive.
func (s *SessionState) sendMessage(tx uint16, peerID int, payload []byte) error {
	mac, ok := s.peerMacs.Get(peerID)
	if !ok {
		return fmt.Errorf("%w: peer %d on session %d", ErrUnknownPeer, peerID, s.sessionID)
	}
	return s.hal.SendFollowonMessage(tx, s.pubSubID, peerID, mac, payload)
}

// onMatch records the peer's MAC and forwards the match to the client.
func (s *SessionState) onMatch(requestorInstanceID int, peerMac net.HardwareAddr,
	serviceSpecificInfo, matchFilter []byte) {
	s.peerMacs.Add(requestorInstanceID, peerMac)
	s.callback.OnMatch(requestorInstanceID, serviceSpecificInfo, matchFilter)
}

// onMessageReceived records the peer's MAC and delivers the payload.
func (s *SessionState) onMessageReceived(requestorInstanceID int, peerMac net.HardwareAddr,
	payload []byte) {
	s.peerMacs.Add(requestorInstanceID, peerMac)
	s.callback.OnMessageReceived(requestorInstanceID, payload)
}
