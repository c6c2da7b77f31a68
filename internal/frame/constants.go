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

// Package frame provides the framing and protocol constants for talking to
// a NAN co-processor over a byte-stream link (UART or I2C).
package frame

// Frame direction constants.
const (
	HostToCtrl = 0xD6 // Commands from host to controller
	CtrlToHost = 0xD7 // Responses and notifications from controller to host
)

// Frame markers and control bytes.
const (
	Preamble   = 0x00 // Frame preamble byte
	StartCode1 = 0x00 // Start code byte 1
	StartCode2 = 0xFF // Start code byte 2
	Postamble  = 0x00 // Frame postamble byte
)

// Frame size limits.
const (
	MaxFrameDataLength = 2048 // Maximum payload length in a frame
	MinFrameLength     = 9    // preamble + startcode + len + lcs + tfi + dcs + postamble
)

// Command opcodes (host to controller). Every command payload starts with
// the opcode followed by a big-endian transaction id, except Deinit, which
// is the opcode alone.
const (
	OpEnableConfigure  = 0x10
	OpDisable          = 0x11
	OpPublish          = 0x12
	OpPublishCancel    = 0x13
	OpSubscribe        = 0x14
	OpSubscribeCancel  = 0x15
	OpSendMessage      = 0x16
	OpGetCapabilities  = 0x17
	OpCreateInterface  = 0x18
	OpDeleteInterface  = 0x19
	OpInitiateDataPath = 0x1A
	OpRespondDataPath  = 0x1B
	OpEndDataPath      = 0x1C
	OpDeinit           = 0x1F
)

// Event opcodes (controller to host). 0x9x are responses carrying a
// transaction id; 0xAx are unsolicited notifications.
const (
	EvtConfigStatus        = 0x90
	EvtSessionStatus       = 0x91
	EvtMessageQueuedStatus = 0x92
	EvtCapabilities        = 0x93
	EvtInterfaceStatus     = 0x94
	EvtInitiateDataPath    = 0x95
	EvtRespondDataPath     = 0x96
	EvtEndDataPath         = 0x97

	EvtInterfaceChange = 0xA0
	EvtClusterChange   = 0xA1
	EvtMatch           = 0xA2
	EvtSessionTerm     = 0xA3
	EvtMessageReceived = 0xA4
	EvtNanDown         = 0xA5
	EvtSendSuccess     = 0xA6
	EvtSendFail        = 0xA7
	EvtDataPathRequest = 0xA8
	EvtDataPathConfirm = 0xA9
	EvtDataPathEnd     = 0xAA
)

// Status byte values shared by response events.
const (
	StatusOK   = 0x00
	StatusFail = 0x01
)
