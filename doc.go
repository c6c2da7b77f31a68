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

/*
Package nan is the host-side control plane for a Wi-Fi Neighbor Awareness
Networking (NAN) subsystem.

It mediates between any number of application clients and a single NAN
firmware: every firmware-bound command is serialized through a single
in-flight transaction, asynchronous firmware notifications are routed back
to the owning client and discovery session, heterogeneous client
configurations are merged into one firmware configuration, and follow-on
message transmission is paced through a two-tier queue against firmware
back-pressure.

Architecture:

	applications                       firmware
	     │  Connect/Publish/Send...        ▲
	     ▼                                 │ commands (tx id)
	┌──────────┐   events   ┌─────────┐    │
	│ control  │──────────▶│ Manager  │────┘
	│   API    │            │ (1 gorou│◀──── responses / notifications
	└──────────┘            │  tine)  │      (EventSink)
	                         └─────────┘

All state mutation happens on the Manager's dispatcher goroutine; the
control API and the EventSink only enqueue events. At most one HAL command
is in flight at any time: while the Manager waits for a response (matched
by a 16-bit transaction id, bounded by a 5 second timer), further commands
are deferred and replayed in order.

Basic usage:

	backend, err := uart.New("/dev/ttyUSB0", nil)
	if err != nil {
	    log.Fatal(err)
	}
	manager, err := nan.New(backend)
	if err != nil {
	    log.Fatal(err)
	}
	backend.SetSink(manager)

	ctx := context.Background()
	if err := manager.Start(ctx); err != nil {
	    log.Fatal(err)
	}
	defer manager.Stop()

	manager.EnableUsage()
	manager.Connect(1, uid, pid, "com.example.app", callback, cfg, true)

Every operation that registers a callback eventually receives either a
success or a failure (bounded by the command, transmit and data-path
confirmation timeouts), unless the subsystem goes down, in which case all
clients are purged.

The firmware-facing side is pluggable through the HAL interface: see the
hal/uart and hal/i2c backends, or MockHAL for tests.
*/
package nan
