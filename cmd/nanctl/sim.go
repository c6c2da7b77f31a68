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

package main

import (
	"net"
	"sync"

	nan "github.com/ProjectBlaze-Reborn/packages-modules-Wifi"
)

// simHAL is an in-process NAN controller simulator: every command succeeds
// asynchronously, discovery sessions get monotonic pub/sub ids and a fake
// peer is discovered shortly after a session starts. Lets nanctl exercise
// the full control plane without hardware.
type simHAL struct {
	mu           sync.Mutex
	sink         nan.EventSink
	nextPubSubID int
	nextNdpID    int
}

var simPeerMac = net.HardwareAddr{0x02, 0x00, 0x5E, 0x10, 0x20, 0x30}

func newSimHAL() *simHAL {
	return &simHAL{nextPubSubID: 40, nextNdpID: 1}
}

func (s *simHAL) SetSink(sink nan.EventSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *simHAL) getSink() nan.EventSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink
}

// async delivers an event from outside the dispatcher, as a real backend
// would.
func (s *simHAL) async(fn func(sink nan.EventSink)) {
	sink := s.getSink()
	if sink == nil {
		return
	}
	go fn(sink)
}

func (s *simHAL) EnableAndConfigure(tx uint16, _ nan.ConfigRequest, initial bool) error {
	s.async(func(sink nan.EventSink) {
		sink.OnConfigSuccessResponse(tx)
		if initial {
			sink.OnInterfaceAddressChangeNotification(net.HardwareAddr{0x02, 0x00, 0x5E, 0x00, 0x00, 0x01})
			sink.OnClusterChangeNotification(nan.ClusterEventStarted,
				net.HardwareAddr{0x50, 0x6F, 0x9A, 0x01, 0x00, 0x00})
		}
	})
	return nil
}

func (s *simHAL) Disable(uint16) error { return nil }

func (s *simHAL) startSession(tx uint16, isPublish bool) {
	s.mu.Lock()
	pubSubID := s.nextPubSubID
	s.nextPubSubID++
	s.mu.Unlock()

	s.async(func(sink nan.EventSink) {
		sink.OnSessionConfigSuccessResponse(tx, isPublish, pubSubID)
		// A peer shows up right away.
		sink.OnMatchNotification(pubSubID, 100+pubSubID, simPeerMac,
			[]byte("sim-peer"), nil)
	})
}

func (s *simHAL) Publish(tx uint16, pubSubID int, _ nan.PublishConfig) error {
	if pubSubID == 0 {
		s.startSession(tx, true)
	} else {
		s.async(func(sink nan.EventSink) {
			sink.OnSessionConfigSuccessResponse(tx, true, pubSubID)
		})
	}
	return nil
}

func (s *simHAL) PublishCancel(uint16, int) error { return nil }

func (s *simHAL) Subscribe(tx uint16, pubSubID int, _ nan.SubscribeConfig) error {
	if pubSubID == 0 {
		s.startSession(tx, false)
	} else {
		s.async(func(sink nan.EventSink) {
			sink.OnSessionConfigSuccessResponse(tx, false, pubSubID)
		})
	}
	return nil
}

func (s *simHAL) SubscribeCancel(uint16, int) error { return nil }

func (s *simHAL) SendFollowonMessage(tx uint16, pubSubID, peerID int, _ net.HardwareAddr, payload []byte) error {
	s.async(func(sink nan.EventSink) {
		sink.OnMessageSendQueuedSuccessResponse(tx)
		sink.OnMessageSendSuccessNotification(tx)
		// Echo the payload back from the fake peer.
		sink.OnMessageReceivedNotification(pubSubID, peerID, simPeerMac, payload)
	})
	return nil
}

func (s *simHAL) GetCapabilities(tx uint16) error {
	s.async(func(sink nan.EventSink) {
		sink.OnCapabilitiesUpdateResponse(tx, nan.Capabilities{
			MaxConcurrentClusters:     1,
			MaxPublishes:              8,
			MaxSubscribes:             8,
			MaxServiceNameLen:         255,
			MaxMatchFilterLen:         255,
			MaxTotalMatchFilterLen:    1024,
			MaxServiceSpecificInfoLen: 255,
			MaxNDIInterfaces:          1,
			MaxNDPSessions:            8,
			MaxAppInfoLen:             255,
			MaxQueuedTransmitMessages: 16,
		})
	})
	return nil
}

func (s *simHAL) CreateDataPathInterface(tx uint16, _ string) error {
	s.async(func(sink nan.EventSink) {
		sink.OnCreateDataPathInterfaceResponse(tx, true, nan.ReasonSuccess)
	})
	return nil
}

func (s *simHAL) DeleteDataPathInterface(tx uint16, _ string) error {
	s.async(func(sink nan.EventSink) {
		sink.OnDeleteDataPathInterfaceResponse(tx, true, nan.ReasonSuccess)
	})
	return nil
}

func (s *simHAL) InitiateDataPath(tx uint16, _ int, _ nan.ChannelRequestType, _ int,
	peer net.HardwareAddr, _ string, _ []byte) error {
	s.mu.Lock()
	ndpID := s.nextNdpID
	s.nextNdpID++
	s.mu.Unlock()

	s.async(func(sink nan.EventSink) {
		sink.OnInitiateDataPathResponseSuccess(tx, ndpID)
		sink.OnDataPathConfirmNotification(ndpID, peer, true, nan.ReasonSuccess, nil)
	})
	return nil
}

func (s *simHAL) RespondToDataPathRequest(tx uint16, _ bool, _ int, _ string, _ []byte) error {
	s.async(func(sink nan.EventSink) {
		sink.OnRespondToDataPathSetupRequestResponse(tx, true, nan.ReasonSuccess)
	})
	return nil
}

func (s *simHAL) EndDataPath(tx uint16, ndpID int) error {
	s.async(func(sink nan.EventSink) {
		sink.OnEndDataPathResponse(tx, true, nan.ReasonSuccess)
		sink.OnDataPathEndNotification(ndpID)
	})
	return nil
}

func (s *simHAL) Deinit() {}
