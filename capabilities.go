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

// Capabilities reports the limits of the NAN firmware. Queried on enable
// until a query succeeds, then cached by the manager.
type Capabilities struct {
	MaxConcurrentClusters     int
	MaxPublishes              int
	MaxSubscribes             int
	MaxServiceNameLen         int
	MaxMatchFilterLen         int
	MaxTotalMatchFilterLen    int
	MaxServiceSpecificInfoLen int
	MaxNDIInterfaces          int
	MaxNDPSessions            int
	MaxAppInfoLen             int
	MaxQueuedTransmitMessages int
}
