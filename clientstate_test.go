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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(notify bool, cb EventCallback) (*ClientState, *MockHAL) {
	hal := NewMockHAL()
	if cb == nil {
		cb = &recordingEventCallback{}
	}
	c := newClientState(testClientID, 1000, 2000, "com.example.test", cb,
		DefaultConfigRequest(), notify, slog.Default())
	return c, hal
}

func addTestSession(c *ClientState, hal *MockHAL, sessionID, pubSubID int, kind SessionKind,
	cb SessionCallback) *SessionState {
	if cb == nil {
		cb = &recordingSessionCallback{}
	}
	s := newSessionState(sessionID, pubSubID, kind, cb, hal, slog.Default())
	c.addSession(s)
	return s
}

func TestClientSessionLookupByPubSubID(t *testing.T) {
	t.Parallel()
	c, hal := newTestClient(false, nil)
	addTestSession(c, hal, 1, 42, SessionPublish, nil)
	addTestSession(c, hal, 2, 43, SessionSubscribe, nil)

	s := c.getSessionForPubSubID(43)
	require.NotNil(t, s)
	assert.Equal(t, 2, s.SessionID())
	assert.Nil(t, c.getSessionForPubSubID(99))
}

func TestClientTerminateSessionCancelsRightKind(t *testing.T) {
	t.Parallel()
	c, hal := newTestClient(false, nil)
	addTestSession(c, hal, 1, 42, SessionPublish, nil)
	addTestSession(c, hal, 2, 43, SessionSubscribe, nil)

	c.terminateSession(1)
	require.Len(t, hal.CallsTo("PublishCancel"), 1)
	assert.Equal(t, 42, hal.CallsTo("PublishCancel")[0].PubSubID)
	assert.Nil(t, c.getSession(1))

	c.terminateSession(2)
	require.Len(t, hal.CallsTo("SubscribeCancel"), 1)
	assert.Equal(t, 43, hal.CallsTo("SubscribeCancel")[0].PubSubID)

	// Unknown session: logged, no firmware traffic.
	c.terminateSession(99)
	assert.Len(t, hal.Calls(), 2)
}

func TestClientDestroyTearsDownAllSessions(t *testing.T) {
	t.Parallel()
	c, hal := newTestClient(false, nil)
	addTestSession(c, hal, 1, 42, SessionPublish, nil)
	addTestSession(c, hal, 2, 43, SessionPublish, nil)
	addTestSession(c, hal, 3, 44, SessionSubscribe, nil)

	c.destroy()
	assert.Empty(t, c.sessions)
	assert.Len(t, hal.CallsTo("PublishCancel"), 2)
	assert.Len(t, hal.CallsTo("SubscribeCancel"), 1)
}

func TestClientIdentityChangeGating(t *testing.T) {
	t.Parallel()
	mac1 := net.HardwareAddr{0x02, 0, 0, 0, 0, 1}
	mac2 := net.HardwareAddr{0x02, 0, 0, 0, 0, 2}

	t.Run("OptedIn", func(t *testing.T) {
		t.Parallel()
		cb := &recordingEventCallback{}
		c, _ := newTestClient(true, cb)

		c.onInterfaceAddressChange(mac1)
		c.onInterfaceAddressChange(mac1) // duplicate suppressed
		c.onInterfaceAddressChange(mac2)

		macs := cb.snapshot().macs
		require.Len(t, macs, 2)
		assert.Equal(t, mac1, macs[0])
		assert.Equal(t, mac2, macs[1])
	})

	t.Run("OptedOut", func(t *testing.T) {
		t.Parallel()
		cb := &recordingEventCallback{}
		c, _ := newTestClient(false, cb)

		c.onInterfaceAddressChange(mac1)
		assert.Empty(t, cb.snapshot().macs)
	})
}

func TestSessionPeerCacheAndSend(t *testing.T) {
	t.Parallel()
	c, hal := newTestClient(false, nil)
	cb := &recordingSessionCallback{}
	s := addTestSession(c, hal, 1, 42, SessionPublish, cb)

	// Unknown peer: no MAC, submission refused.
	err := s.sendMessage(9, testPeerID, []byte("x"))
	require.ErrorIs(t, err, ErrUnknownPeer)

	s.onMatch(testPeerID, testPeerMac, []byte("ssi"), nil)
	mac, ok := s.PeerMac(testPeerID)
	require.True(t, ok)
	assert.Equal(t, testPeerMac, mac)

	require.NoError(t, s.sendMessage(9, testPeerID, []byte("x")))
	sends := hal.CallsTo("SendFollowonMessage")
	require.Len(t, sends, 1)
	assert.Equal(t, testPeerMac, sends[0].Peer)
	assert.Equal(t, 42, sends[0].PubSubID)

	// A received message also refreshes the peer cache.
	s.onMessageReceived(33, net.HardwareAddr{0x02, 9, 9, 9, 9, 9}, []byte("hello"))
	_, ok = s.PeerMac(33)
	assert.True(t, ok)
	assert.Equal(t, []int{testPeerID}, cb.snapshot().matches)
}

func TestSessionUpdateKindMismatch(t *testing.T) {
	t.Parallel()
	c, hal := newTestClient(false, nil)
	s := addTestSession(c, hal, 1, 42, SessionPublish, nil)

	err := s.updateSubscribe(3, SubscribeConfig{ServiceName: "x"})
	require.ErrorIs(t, err, ErrInvalidParameter)
	assert.Empty(t, hal.CallsTo("Subscribe"))

	require.NoError(t, s.updatePublish(3, PublishConfig{ServiceName: "x"}))
	require.Len(t, hal.CallsTo("Publish"), 1)
	assert.Equal(t, 42, hal.CallsTo("Publish")[0].PubSubID)
}
