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

// Package ranging hands NAN ranging requests to an RTT engine. The engine
// itself lives outside this module; this manager validates requests and
// reports failures back on the client callback.
package ranging

import (
	"log/slog"

	nan "github.com/ProjectBlaze-Reborn/packages-modules-Wifi"
)

// Engine performs the actual RTT measurements.
type Engine interface {
	Range(rangingID int, params []nan.RangingParams) error
}

// Manager is the default nan.RangingManager. Invoked on the state
// manager's dispatcher goroutine.
type Manager struct {
	engine Engine
	logger *slog.Logger
}

// Option is a functional option for configuring the Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// New creates a ranging manager backed by engine (nil means ranging is
// unavailable and every request fails back to the client).
func New(engine Engine, opts ...Option) *Manager {
	m := &Manager{engine: engine, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartRanging forwards a request with resolved peer MACs to the engine.
// Peers whose MAC could not be resolved are skipped; a request with no
// usable peers fails immediately.
func (m *Manager) StartRanging(rangingID int, client *nan.ClientState, params []nan.RangingParams) {
	usable := params[:0:0]
	for _, p := range params {
		if len(p.PeerMAC) == 0 {
			m.logger.Debug("skipping ranging peer without MAC",
				"ranging_id", rangingID, "peer_id", p.PeerID)
			continue
		}
		usable = append(usable, p)
	}

	if len(usable) == 0 {
		client.Callback().OnRangingFailure(rangingID, nan.ReasonInvalidArgs, "no resolvable peers")
		return
	}

	if m.engine == nil {
		client.Callback().OnRangingFailure(rangingID, nan.ReasonNotSupported, "ranging not available")
		return
	}

	if err := m.engine.Range(rangingID, usable); err != nil {
		m.logger.Error("rtt engine rejected request", "ranging_id", rangingID, "err", err)
		client.Callback().OnRangingFailure(rangingID, nan.ReasonError, err.Error())
	}
}
