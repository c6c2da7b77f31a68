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

import "github.com/prometheus/client_golang/prometheus"

// managerMetrics instruments the dispatcher and the send queues. Always
// constructed; collectors are only registered when the embedder passes a
// Registerer, so increments are safe either way.
type managerMetrics struct {
	commandsIssued   prometheus.Counter
	commandTimeouts  prometheus.Counter
	responsesMatched prometheus.Counter
	staleResponses   prometheus.Counter
	eventsDropped    prometheus.Counter
	sendSuccess      prometheus.Counter
	sendFail         prometheus.Counter
	sendRetries      prometheus.Counter
	sendExpired      prometheus.Counter
	hostQueueDepth   prometheus.Gauge
	fwQueueDepth     prometheus.Gauge
	clientCount      prometheus.Gauge
}

func newManagerMetrics(reg prometheus.Registerer) *managerMetrics {
	m := &managerMetrics{
		commandsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wifi_nan", Name: "hal_commands_issued_total",
			Help: "HAL round-trip commands issued.",
		}),
		commandTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wifi_nan", Name: "hal_command_timeouts_total",
			Help: "HAL commands failed by the response timer.",
		}),
		responsesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wifi_nan", Name: "hal_responses_matched_total",
			Help: "HAL responses matched to an in-flight command.",
		}),
		staleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wifi_nan", Name: "hal_responses_stale_total",
			Help: "HAL responses discarded for a non-matching transaction id.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wifi_nan", Name: "events_dropped_total",
			Help: "Events dropped because the dispatcher queue was full.",
		}),
		sendSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wifi_nan", Name: "messages_send_success_total",
			Help: "Follow-on messages acknowledged over the air.",
		}),
		sendFail: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wifi_nan", Name: "messages_send_fail_total",
			Help: "Follow-on messages failed after exhausting retries.",
		}),
		sendRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wifi_nan", Name: "messages_send_retries_total",
			Help: "Follow-on message transmit retries.",
		}),
		sendExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wifi_nan", Name: "messages_send_expired_total",
			Help: "Follow-on messages expired from the firmware queue.",
		}),
		hostQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wifi_nan", Name: "host_send_queue_depth",
			Help: "Messages waiting in the host send queue.",
		}),
		fwQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wifi_nan", Name: "firmware_send_queue_depth",
			Help: "Messages sitting in the firmware transmit queue.",
		}),
		clientCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wifi_nan", Name: "clients",
			Help: "Connected NAN clients.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.commandsIssued, m.commandTimeouts, m.responsesMatched,
			m.staleResponses, m.eventsDropped,
			m.sendSuccess, m.sendFail, m.sendRetries, m.sendExpired,
			m.hostQueueDepth, m.fwQueueDepth, m.clientCount,
		)
	}

	return m
}
