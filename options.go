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

	"github.com/prometheus/client_golang/prometheus"
)

// Option is a functional option for configuring a Manager.
type Option func(*Manager) error

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		m.logger = logger
		return nil
	}
}

// WithClock injects the wake-timer clock. Tests use this to drive every
// timeout deterministically.
func WithClock(clock Clock) Option {
	return func(m *Manager) error {
		m.clock = clock
		return nil
	}
}

// WithMetrics registers the manager's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(m *Manager) error {
		m.metrics = newManagerMetrics(reg)
		return nil
	}
}

// WithDataPathManager sets the data-path collaborator.
func WithDataPathManager(dp DataPathManager) Option {
	return func(m *Manager) error {
		m.dataPath = dp
		return nil
	}
}

// WithRangingManager sets the RTT collaborator.
func WithRangingManager(rtt RangingManager) Option {
	return func(m *Manager) error {
		m.ranging = rtt
		return nil
	}
}

// WithStateBroadcaster sets the usage state broadcast hook.
func WithStateBroadcaster(b StateBroadcaster) Option {
	return func(m *Manager) error {
		m.broadcast = b
		return nil
	}
}

// WithEventQueueSize sets the dispatcher queue capacity.
func WithEventQueueSize(n int) Option {
	return func(m *Manager) error {
		if n <= 0 {
			return ErrInvalidParameter
		}
		m.events = make(chan event, n)
		return nil
	}
}
