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

import "fmt"

// ClusterIDMax is the largest valid cluster id. A cluster range of
// [0, ClusterIDMax] is treated as "no constraint" by the merge.
const ClusterIDMax = 0xFFFF

// ConfigRequest is a single client's requested NAN configuration.
type ConfigRequest struct {
	Support5GBand    bool
	MasterPreference int
	ClusterLow       int
	ClusterHigh      int
}

// DefaultConfigRequest returns a request with no cluster constraint and the
// lowest master preference.
func DefaultConfigRequest() ConfigRequest {
	return ConfigRequest{ClusterLow: 0, ClusterHigh: ClusterIDMax}
}

// Validate checks the request's ranges.
func (c ConfigRequest) Validate() error {
	if c.MasterPreference < 0 || c.MasterPreference > 255 {
		return fmt.Errorf("%w: master preference %d out of [0, 255]",
			ErrInvalidParameter, c.MasterPreference)
	}
	if c.ClusterLow < 0 || c.ClusterHigh > ClusterIDMax || c.ClusterLow > c.ClusterHigh {
		return fmt.Errorf("%w: cluster range [%d, %d]",
			ErrInvalidParameter, c.ClusterLow, c.ClusterHigh)
	}
	return nil
}

// Equal reports whether two requests are identical.
func (c ConfigRequest) Equal(o ConfigRequest) bool {
	return c == o
}

// hasClusterConstraint reports whether the request narrows the cluster range
// from the full [0, ClusterIDMax] default.
func (c ConfigRequest) hasClusterConstraint() bool {
	return c.ClusterLow != 0 || c.ClusterHigh != ClusterIDMax
}

// String returns a compact representation for logging.
func (c ConfigRequest) String() string {
	return fmt.Sprintf("ConfigRequest{5g=%v, mp=%d, cluster=[%d, %d]}",
		c.Support5GBand, c.MasterPreference, c.ClusterLow, c.ClusterHigh)
}

// mergeConfigs reduces an optional new request plus the existing requests
// into the single configuration pushed to firmware:
//   - 5 GHz support is the OR of all requests
//   - master preference is the maximum
//   - the cluster range is the union of all real constraints; requests
//     carrying the full default range do not constrain the result
//
// Returns false when there is nothing to merge (no requests at all).
func mergeConfigs(newRequest *ConfigRequest, existing []ConfigRequest) (ConfigRequest, bool) {
	if newRequest == nil && len(existing) == 0 {
		return ConfigRequest{}, false
	}

	merged := DefaultConfigRequest()
	clusterValid := false
	if newRequest != nil {
		merged.Support5GBand = newRequest.Support5GBand
		merged.MasterPreference = newRequest.MasterPreference
		merged.ClusterLow = newRequest.ClusterLow
		merged.ClusterHigh = newRequest.ClusterHigh
		clusterValid = newRequest.hasClusterConstraint()
	}

	for _, cr := range existing {
		if cr.Support5GBand {
			merged.Support5GBand = true
		}
		if cr.MasterPreference > merged.MasterPreference {
			merged.MasterPreference = cr.MasterPreference
		}
		if cr.hasClusterConstraint() {
			if !clusterValid {
				merged.ClusterLow = cr.ClusterLow
				merged.ClusterHigh = cr.ClusterHigh
			} else {
				merged.ClusterLow = min(merged.ClusterLow, cr.ClusterLow)
				merged.ClusterHigh = max(merged.ClusterHigh, cr.ClusterHigh)
			}
			clusterValid = true
		}
	}

	return merged, true
}

// SessionKind distinguishes publish from subscribe discovery sessions.
type SessionKind int

const (
	// SessionPublish is a publish discovery session.
	SessionPublish SessionKind = iota
	// SessionSubscribe is a subscribe discovery session.
	SessionSubscribe
)

// String returns the string representation of the SessionKind.
func (k SessionKind) String() string {
	if k == SessionPublish {
		return "publish"
	}
	return "subscribe"
}

// PublishConfig describes a publish discovery session.
type PublishConfig struct {
	ServiceName         string
	ServiceSpecificInfo []byte
	MatchFilter         []byte
	PublishType         int
	Count               int
	TTLSec              int
}

// SubscribeConfig describes a subscribe discovery session.
type SubscribeConfig struct {
	ServiceName         string
	ServiceSpecificInfo []byte
	MatchFilter         []byte
	SubscribeType       int
	Count               int
	TTLSec              int
}

// ChannelRequestType expresses how strongly a data-path initiator wants a
// specific channel.
type ChannelRequestType int

const (
	// ChannelNotRequested leaves channel selection to the firmware.
	ChannelNotRequested ChannelRequestType = iota
	// ChannelRequested asks for the channel but accepts an alternative.
	ChannelRequested
	// ChannelForced fails the setup if the channel cannot be used.
	ChannelForced
)

// ClusterEventType describes a cluster membership change.
type ClusterEventType int

const (
	// ClusterEventStarted indicates this device started a new cluster.
	ClusterEventStarted ClusterEventType = iota
	// ClusterEventJoined indicates this device joined an existing cluster.
	ClusterEventJoined
)
