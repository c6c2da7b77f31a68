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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeConfigs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		new      *ConfigRequest
		existing []ConfigRequest
		want     ConfigRequest
		wantOK   bool
	}{
		{
			name:   "no clients no request",
			new:    nil,
			wantOK: false,
		},
		{
			name:   "single request is identity",
			new:    &ConfigRequest{Support5GBand: true, MasterPreference: 7, ClusterLow: 3, ClusterHigh: 9},
			want:   ConfigRequest{Support5GBand: true, MasterPreference: 7, ClusterLow: 3, ClusterHigh: 9},
			wantOK: true,
		},
		{
			name: "two clients union",
			new:  &ConfigRequest{Support5GBand: false, MasterPreference: 10, ClusterLow: 0, ClusterHigh: ClusterIDMax},
			existing: []ConfigRequest{
				{Support5GBand: true, MasterPreference: 3, ClusterLow: 5, ClusterHigh: 20},
			},
			want:   ConfigRequest{Support5GBand: true, MasterPreference: 10, ClusterLow: 5, ClusterHigh: 20},
			wantOK: true,
		},
		{
			name: "default cluster range is no constraint",
			new:  nil,
			existing: []ConfigRequest{
				{ClusterLow: 0, ClusterHigh: ClusterIDMax},
				{ClusterLow: 0, ClusterHigh: ClusterIDMax, MasterPreference: 2},
			},
			want:   ConfigRequest{MasterPreference: 2, ClusterLow: 0, ClusterHigh: ClusterIDMax},
			wantOK: true,
		},
		{
			name: "constrained ranges widen",
			new:  nil,
			existing: []ConfigRequest{
				{ClusterLow: 10, ClusterHigh: 20},
				{ClusterLow: 5, ClusterHigh: 12},
				{ClusterLow: 0, ClusterHigh: ClusterIDMax},
			},
			want:   ConfigRequest{ClusterLow: 5, ClusterHigh: 20},
			wantOK: true,
		},
		{
			name: "new request with full range defers to constrained client",
			new:  &ConfigRequest{ClusterLow: 0, ClusterHigh: ClusterIDMax},
			existing: []ConfigRequest{
				{ClusterLow: 8, ClusterHigh: 8},
			},
			// The full default range is no constraint, so the existing
			// client's range wins.
			want:   ConfigRequest{ClusterLow: 8, ClusterHigh: 8},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := mergeConfigs(tt.new, tt.existing)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMergeConfigsCommutativeAssociative(t *testing.T) {
	t.Parallel()

	a := ConfigRequest{Support5GBand: true, MasterPreference: 1, ClusterLow: 4, ClusterHigh: 10}
	b := ConfigRequest{MasterPreference: 9, ClusterLow: 0, ClusterHigh: ClusterIDMax}
	c := ConfigRequest{Support5GBand: false, MasterPreference: 5, ClusterLow: 2, ClusterHigh: 6}

	perms := [][]ConfigRequest{
		{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}

	first, ok := mergeConfigs(nil, perms[0])
	require.True(t, ok)
	for _, p := range perms[1:] {
		got, ok := mergeConfigs(nil, p)
		require.True(t, ok)
		assert.Equal(t, first, got, "merge must be order independent")
	}

	// Merging the merge with one of its inputs changes nothing.
	again, ok := mergeConfigs(&first, []ConfigRequest{a, b, c})
	require.True(t, ok)
	assert.Equal(t, first, again)
}

func TestConfigRequestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultConfigRequest().Validate())
	assert.NoError(t, ConfigRequest{MasterPreference: 255, ClusterLow: 1, ClusterHigh: 1}.Validate())

	assert.Error(t, ConfigRequest{MasterPreference: 256, ClusterHigh: ClusterIDMax}.Validate())
	assert.Error(t, ConfigRequest{MasterPreference: -1, ClusterHigh: ClusterIDMax}.Validate())
	assert.Error(t, ConfigRequest{ClusterLow: 10, ClusterHigh: 5}.Validate())
	assert.Error(t, ConfigRequest{ClusterLow: 0, ClusterHigh: ClusterIDMax + 1}.Validate())
}

func TestConfigRequestEqual(t *testing.T) {
	t.Parallel()

	a := ConfigRequest{Support5GBand: true, MasterPreference: 3, ClusterLow: 1, ClusterHigh: 2}
	assert.True(t, a.Equal(a))
	b := a
	b.MasterPreference = 4
	assert.False(t, a.Equal(b))
}
