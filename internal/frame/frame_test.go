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

package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndReadBack(t *testing.T) {
	t.Parallel()

	payload := []byte{0x90, 0x00, 0x01, 0x00}
	buf, err := Build(CtrlToHost, payload)
	require.NoError(t, err)

	r := NewReader(bytes.NewReader(buf))
	tfi, got, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, byte(CtrlToHost), tfi)
	assert.Equal(t, payload, got)
}

func TestReaderResynchronizesPastGarbage(t *testing.T) {
	t.Parallel()

	buf, err := Build(HostToCtrl, []byte{0x10, 0x00, 0x01})
	require.NoError(t, err)

	stream := append([]byte{0x55, 0xAA, 0x00, 0x13, 0x37}, buf...)
	r := NewReader(bytes.NewReader(stream))
	tfi, payload, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, byte(HostToCtrl), tfi)
	assert.Equal(t, []byte{0x10, 0x00, 0x01}, payload)
}

func TestReaderDetectsDataCorruption(t *testing.T) {
	t.Parallel()

	buf, err := Build(CtrlToHost, []byte{0xA5, 0x01})
	require.NoError(t, err)

	// Flip a payload bit; the DCS no longer matches.
	buf[7] ^= 0x01
	r := NewReader(bytes.NewReader(buf))
	_, _, err = r.Next()
	assert.ErrorIs(t, err, ErrBadDataChecksum)
}

func TestReaderDetectsLengthCorruption(t *testing.T) {
	t.Parallel()

	buf, err := Build(CtrlToHost, []byte{0xA5, 0x01})
	require.NoError(t, err)

	// Corrupt the low length byte without fixing the LCS.
	buf[4]++
	r := NewReader(bytes.NewReader(buf))
	_, _, err = r.Next()
	assert.ErrorIs(t, err, ErrBadLengthChecksum)
}

func TestBuildRejectsOversizedPayload(t *testing.T) {
	t.Parallel()

	_, err := Build(HostToCtrl, make([]byte, MaxFrameDataLength))
	assert.True(t, errors.Is(err, ErrTooLong))
}

func TestReaderSequentialFrames(t *testing.T) {
	t.Parallel()

	a, err := Build(CtrlToHost, []byte{0xA6, 0x00, 0x03})
	require.NoError(t, err)
	b, err := Build(CtrlToHost, []byte{0xA7, 0x00, 0x04, 0x06})
	require.NoError(t, err)

	r := NewReader(bytes.NewReader(append(a, b...)))

	_, p1, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA6, 0x00, 0x03}, p1)

	_, p2, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA7, 0x00, 0x04, 0x06}, p2)
}
