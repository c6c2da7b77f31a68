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

package ranging

import (
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nan "github.com/ProjectBlaze-Reborn/packages-modules-Wifi"
)

type failureRecorder struct {
	mu       sync.Mutex
	failures []nan.ReasonCode
}

func (f *failureRecorder) OnConnectSuccess(int)                               {}
func (f *failureRecorder) OnConnectFail(nan.ReasonCode)                       {}
func (f *failureRecorder) OnInterfaceAddressChange(net.HardwareAddr)          {}
func (f *failureRecorder) OnClusterChange(nan.ClusterEventType, net.HardwareAddr) {}
func (f *failureRecorder) OnRangingFailure(_ int, reason nan.ReasonCode, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, reason)
}

func (f *failureRecorder) reasons() []nan.ReasonCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]nan.ReasonCode(nil), f.failures...)
}

type fakeEngine struct {
	requests [][]nan.RangingParams
	err      error
}

func (e *fakeEngine) Range(_ int, params []nan.RangingParams) error {
	e.requests = append(e.requests, params)
	return e.err
}

var rangeMac = net.HardwareAddr{0x02, 1, 2, 3, 4, 5}

func TestStartRangingFiltersUnresolvedPeers(t *testing.T) {
	t.Parallel()
	engine := &fakeEngine{}
	cb := &failureRecorder{}
	m := New(engine)
	client := nan.NewTestClientState(1, cb)

	m.StartRanging(1, client, []nan.RangingParams{
		{PeerID: 5, PeerMAC: rangeMac},
		{PeerID: 6}, // never matched, no MAC
	})

	require.Len(t, engine.requests, 1)
	require.Len(t, engine.requests[0], 1)
	assert.Equal(t, 5, engine.requests[0][0].PeerID)
	assert.Empty(t, cb.reasons())
}

func TestStartRangingNoUsablePeers(t *testing.T) {
	t.Parallel()
	engine := &fakeEngine{}
	cb := &failureRecorder{}
	m := New(engine)
	client := nan.NewTestClientState(1, cb)

	m.StartRanging(2, client, []nan.RangingParams{{PeerID: 6}})

	assert.Empty(t, engine.requests)
	assert.Equal(t, []nan.ReasonCode{nan.ReasonInvalidArgs}, cb.reasons())
}

func TestStartRangingWithoutEngine(t *testing.T) {
	t.Parallel()
	cb := &failureRecorder{}
	m := New(nil)
	client := nan.NewTestClientState(1, cb)

	m.StartRanging(3, client, []nan.RangingParams{{PeerID: 5, PeerMAC: rangeMac}})
	assert.Equal(t, []nan.ReasonCode{nan.ReasonNotSupported}, cb.reasons())
}

func TestStartRangingEngineError(t *testing.T) {
	t.Parallel()
	engine := &fakeEngine{err: errors.New("radio busy")}
	cb := &failureRecorder{}
	m := New(engine)
	client := nan.NewTestClientState(1, cb)

	m.StartRanging(4, client, []nan.RangingParams{{PeerID: 5, PeerMAC: rangeMac}})
	assert.Equal(t, []nan.ReasonCode{nan.ReasonError}, cb.reasons())
}
