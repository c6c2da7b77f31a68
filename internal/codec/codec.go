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

// Package codec maps NAN commands and controller events onto frame
// payloads. Shared by the uart and i2c backends.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	nan "github.com/ProjectBlaze-Reborn/packages-modules-Wifi"
	"github.com/ProjectBlaze-Reborn/packages-modules-Wifi/internal/frame"
)

// ErrShortPayload reports a truncated event payload.
var ErrShortPayload = errors.New("short event payload")

// ErrUnknownEvent reports an unrecognized event opcode.
var ErrUnknownEvent = errors.New("unknown event opcode")

/*
 * Encoding helpers.
 */

type writer struct {
	buf []byte
}

func newWriter(op byte) *writer {
	return &writer{buf: []byte{op}}
}

func (w *writer) u8(v byte) *writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *writer) boolean(v bool) *writer {
	if v {
		return w.u8(1)
	}
	return w.u8(0)
}

func (w *writer) u16(v uint16) *writer {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
	return w
}

func (w *writer) u32(v uint32) *writer {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
	return w
}

func (w *writer) mac(v net.HardwareAddr) *writer {
	var m [6]byte
	copy(m[:], v)
	w.buf = append(w.buf, m[:]...)
	return w
}

func (w *writer) bytes(v []byte) *writer {
	w.u16(uint16(len(v)))
	w.buf = append(w.buf, v...)
	return w
}

func (w *writer) str(v string) *writer {
	return w.bytes([]byte(v))
}

/*
 * Command payloads.
 */

// EnableConfigure encodes an enable-and-configure command.
func EnableConfigure(tx uint16, cfg nan.ConfigRequest, initial bool) []byte {
	return newWriter(frame.OpEnableConfigure).u16(tx).boolean(initial).
		boolean(cfg.Support5GBand).u8(byte(cfg.MasterPreference)).
		u16(uint16(cfg.ClusterLow)).u16(uint16(cfg.ClusterHigh)).buf
}

// Disable encodes a disable command.
func Disable(tx uint16) []byte {
	return newWriter(frame.OpDisable).u16(tx).buf
}

// Publish encodes a publish start/update command.
func Publish(tx uint16, pubSubID int, cfg nan.PublishConfig) []byte {
	return newWriter(frame.OpPublish).u16(tx).u16(uint16(pubSubID)).
		u16(uint16(cfg.TTLSec)).u8(byte(cfg.Count)).u8(byte(cfg.PublishType)).
		str(cfg.ServiceName).bytes(cfg.ServiceSpecificInfo).bytes(cfg.MatchFilter).buf
}

// PublishCancel encodes a publish teardown command.
func PublishCancel(tx uint16, pubSubID int) []byte {
	return newWriter(frame.OpPublishCancel).u16(tx).u16(uint16(pubSubID)).buf
}

// Subscribe encodes a subscribe start/update command.
func Subscribe(tx uint16, pubSubID int, cfg nan.SubscribeConfig) []byte {
	return newWriter(frame.OpSubscribe).u16(tx).u16(uint16(pubSubID)).
		u16(uint16(cfg.TTLSec)).u8(byte(cfg.Count)).u8(byte(cfg.SubscribeType)).
		str(cfg.ServiceName).bytes(cfg.ServiceSpecificInfo).bytes(cfg.MatchFilter).buf
}

// SubscribeCancel encodes a subscribe teardown command.
func SubscribeCancel(tx uint16, pubSubID int) []byte {
	return newWriter(frame.OpSubscribeCancel).u16(tx).u16(uint16(pubSubID)).buf
}

// SendMessage encodes a follow-on message transmit command.
func SendMessage(tx uint16, pubSubID, requestorInstanceID int, dest net.HardwareAddr, payload []byte) []byte {
	return newWriter(frame.OpSendMessage).u16(tx).u16(uint16(pubSubID)).
		u32(uint32(requestorInstanceID)).mac(dest).bytes(payload).buf
}

// GetCapabilities encodes a capabilities query.
func GetCapabilities(tx uint16) []byte {
	return newWriter(frame.OpGetCapabilities).u16(tx).buf
}

// CreateInterface encodes a data interface creation command.
func CreateInterface(tx uint16, name string) []byte {
	return newWriter(frame.OpCreateInterface).u16(tx).str(name).buf
}

// DeleteInterface encodes a data interface deletion command.
func DeleteInterface(tx uint16, name string) []byte {
	return newWriter(frame.OpDeleteInterface).u16(tx).str(name).buf
}

// InitiateDataPath encodes an initiator-side setup command.
func InitiateDataPath(tx uint16, peerID int, chanReqType nan.ChannelRequestType, channel int,
	peer net.HardwareAddr, ifaceName string, appInfo []byte) []byte {
	return newWriter(frame.OpInitiateDataPath).u16(tx).u32(uint32(peerID)).
		u8(byte(chanReqType)).u16(uint16(channel)).mac(peer).str(ifaceName).bytes(appInfo).buf
}

// RespondDataPath encodes a responder-side accept/reject command.
func RespondDataPath(tx uint16, accept bool, ndpID int, ifaceName string, appInfo []byte) []byte {
	return newWriter(frame.OpRespondDataPath).u16(tx).boolean(accept).
		u32(uint32(ndpID)).str(ifaceName).bytes(appInfo).buf
}

// EndDataPath encodes a teardown command.
func EndDataPath(tx uint16, ndpID int) []byte {
	return newWriter(frame.OpEndDataPath).u16(tx).u32(uint32(ndpID)).buf
}

// Deinit encodes a controller reset command.
func Deinit() []byte {
	return []byte{frame.OpDeinit}
}

/*
 * Event decoding.
 */

type reader struct {
	buf []byte
}

func (r *reader) u8() (byte, error) {
	if len(r.buf) < 1 {
		return 0, ErrShortPayload
	}
	v := r.buf[0]
	r.buf = r.buf[1:]
	return v, nil
}

func (r *reader) boolean() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *reader) u16() (uint16, error) {
	if len(r.buf) < 2 {
		return 0, ErrShortPayload
	}
	v := binary.BigEndian.Uint16(r.buf)
	r.buf = r.buf[2:]
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if len(r.buf) < 4 {
		return 0, ErrShortPayload
	}
	v := binary.BigEndian.Uint32(r.buf)
	r.buf = r.buf[4:]
	return v, nil
}

func (r *reader) mac() (net.HardwareAddr, error) {
	if len(r.buf) < 6 {
		return nil, ErrShortPayload
	}
	v := net.HardwareAddr(append([]byte(nil), r.buf[:6]...))
	r.buf = r.buf[6:]
	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	if len(r.buf) < int(n) {
		return nil, ErrShortPayload
	}
	v := append([]byte(nil), r.buf[:n]...)
	r.buf = r.buf[n:]
	return v, nil
}

// DispatchEvent decodes one controller event payload and routes it into
// the sink.
func DispatchEvent(payload []byte, sink nan.EventSink) error {
	if len(payload) == 0 {
		return ErrShortPayload
	}
	op := payload[0]
	r := &reader{buf: payload[1:]}

	switch op {
	case frame.EvtConfigStatus:
		return decodeConfigStatus(r, sink)
	case frame.EvtSessionStatus:
		return decodeSessionStatus(r, sink)
	case frame.EvtMessageQueuedStatus:
		return decodeMessageQueuedStatus(r, sink)
	case frame.EvtCapabilities:
		return decodeCapabilities(r, sink)
	case frame.EvtInterfaceStatus:
		return decodeInterfaceStatus(r, sink)
	case frame.EvtInitiateDataPath:
		return decodeInitiateDataPath(r, sink)
	case frame.EvtRespondDataPath:
		return decodeRespondDataPath(r, sink)
	case frame.EvtEndDataPath:
		return decodeEndDataPath(r, sink)
	case frame.EvtInterfaceChange:
		mac, err := r.mac()
		if err != nil {
			return err
		}
		sink.OnInterfaceAddressChangeNotification(mac)
		return nil
	case frame.EvtClusterChange:
		return decodeClusterChange(r, sink)
	case frame.EvtMatch:
		return decodeMatch(r, sink)
	case frame.EvtSessionTerm:
		return decodeSessionTerminated(r, sink)
	case frame.EvtMessageReceived:
		return decodeMessageReceived(r, sink)
	case frame.EvtNanDown:
		reason, err := r.u8()
		if err != nil {
			return err
		}
		sink.OnNanDownNotification(nan.ReasonCode(reason))
		return nil
	case frame.EvtSendSuccess:
		tx, err := r.u16()
		if err != nil {
			return err
		}
		sink.OnMessageSendSuccessNotification(tx)
		return nil
	case frame.EvtSendFail:
		tx, err := r.u16()
		if err != nil {
			return err
		}
		reason, err := r.u8()
		if err != nil {
			return err
		}
		sink.OnMessageSendFailNotification(tx, nan.ReasonCode(reason))
		return nil
	case frame.EvtDataPathRequest:
		return decodeDataPathRequest(r, sink)
	case frame.EvtDataPathConfirm:
		return decodeDataPathConfirm(r, sink)
	case frame.EvtDataPathEnd:
		ndpID, err := r.u32()
		if err != nil {
			return err
		}
		sink.OnDataPathEndNotification(int(ndpID))
		return nil
	default:
		return fmt.Errorf("%w: 0x%02X", ErrUnknownEvent, op)
	}
}

func decodeConfigStatus(r *reader, sink nan.EventSink) error {
	tx, err := r.u16()
	if err != nil {
		return err
	}
	status, err := r.u8()
	if err != nil {
		return err
	}
	if status == frame.StatusOK {
		sink.OnConfigSuccessResponse(tx)
		return nil
	}
	reason, err := r.u8()
	if err != nil {
		return err
	}
	sink.OnConfigFailedResponse(tx, nan.ReasonCode(reason))
	return nil
}

func decodeSessionStatus(r *reader, sink nan.EventSink) error {
	tx, err := r.u16()
	if err != nil {
		return err
	}
	status, err := r.u8()
	if err != nil {
		return err
	}
	isPublish, err := r.boolean()
	if err != nil {
		return err
	}
	value, err := r.u16()
	if err != nil {
		return err
	}
	if status == frame.StatusOK {
		sink.OnSessionConfigSuccessResponse(tx, isPublish, int(value))
	} else {
		sink.OnSessionConfigFailResponse(tx, isPublish, nan.ReasonCode(value))
	}
	return nil
}

func decodeMessageQueuedStatus(r *reader, sink nan.EventSink) error {
	tx, err := r.u16()
	if err != nil {
		return err
	}
	status, err := r.u8()
	if err != nil {
		return err
	}
	if status == frame.StatusOK {
		sink.OnMessageSendQueuedSuccessResponse(tx)
		return nil
	}
	reason, err := r.u8()
	if err != nil {
		return err
	}
	sink.OnMessageSendQueuedFailResponse(tx, nan.ReasonCode(reason))
	return nil
}

func decodeCapabilities(r *reader, sink nan.EventSink) error {
	tx, err := r.u16()
	if err != nil {
		return err
	}
	fields := make([]uint16, 11)
	for i := range fields {
		if fields[i], err = r.u16(); err != nil {
			return err
		}
	}
	sink.OnCapabilitiesUpdateResponse(tx, nan.Capabilities{
		MaxConcurrentClusters:     int(fields[0]),
		MaxPublishes:              int(fields[1]),
		MaxSubscribes:             int(fields[2]),
		MaxServiceNameLen:         int(fields[3]),
		MaxMatchFilterLen:         int(fields[4]),
		MaxTotalMatchFilterLen:    int(fields[5]),
		MaxServiceSpecificInfoLen: int(fields[6]),
		MaxNDIInterfaces:          int(fields[7]),
		MaxNDPSessions:            int(fields[8]),
		MaxAppInfoLen:             int(fields[9]),
		MaxQueuedTransmitMessages: int(fields[10]),
	})
	return nil
}

func decodeInterfaceStatus(r *reader, sink nan.EventSink) error {
	tx, err := r.u16()
	if err != nil {
		return err
	}
	isCreate, err := r.boolean()
	if err != nil {
		return err
	}
	status, err := r.u8()
	if err != nil {
		return err
	}
	reason, err := r.u8()
	if err != nil {
		return err
	}
	if isCreate {
		sink.OnCreateDataPathInterfaceResponse(tx, status == frame.StatusOK, nan.ReasonCode(reason))
	} else {
		sink.OnDeleteDataPathInterfaceResponse(tx, status == frame.StatusOK, nan.ReasonCode(reason))
	}
	return nil
}

func decodeInitiateDataPath(r *reader, sink nan.EventSink) error {
	tx, err := r.u16()
	if err != nil {
		return err
	}
	status, err := r.u8()
	if err != nil {
		return err
	}
	value, err := r.u32()
	if err != nil {
		return err
	}
	if status == frame.StatusOK {
		sink.OnInitiateDataPathResponseSuccess(tx, int(value))
	} else {
		sink.OnInitiateDataPathResponseFail(tx, nan.ReasonCode(value))
	}
	return nil
}

func decodeRespondDataPath(r *reader, sink nan.EventSink) error {
	tx, err := r.u16()
	if err != nil {
		return err
	}
	status, err := r.u8()
	if err != nil {
		return err
	}
	reason, err := r.u8()
	if err != nil {
		return err
	}
	sink.OnRespondToDataPathSetupRequestResponse(tx, status == frame.StatusOK, nan.ReasonCode(reason))
	return nil
}

func decodeEndDataPath(r *reader, sink nan.EventSink) error {
	tx, err := r.u16()
	if err != nil {
		return err
	}
	status, err := r.u8()
	if err != nil {
		return err
	}
	reason, err := r.u8()
	if err != nil {
		return err
	}
	sink.OnEndDataPathResponse(tx, status == frame.StatusOK, nan.ReasonCode(reason))
	return nil
}

func decodeClusterChange(r *reader, sink nan.EventSink) error {
	eventType, err := r.u8()
	if err != nil {
		return err
	}
	clusterID, err := r.mac()
	if err != nil {
		return err
	}
	sink.OnClusterChangeNotification(nan.ClusterEventType(eventType), clusterID)
	return nil
}

func decodeMatch(r *reader, sink nan.EventSink) error {
	pubSubID, err := r.u16()
	if err != nil {
		return err
	}
	reqInstance, err := r.u32()
	if err != nil {
		return err
	}
	mac, err := r.mac()
	if err != nil {
		return err
	}
	ssi, err := r.bytes()
	if err != nil {
		return err
	}
	filter, err := r.bytes()
	if err != nil {
		return err
	}
	sink.OnMatchNotification(int(pubSubID), int(reqInstance), mac, ssi, filter)
	return nil
}

func decodeSessionTerminated(r *reader, sink nan.EventSink) error {
	pubSubID, err := r.u16()
	if err != nil {
		return err
	}
	reason, err := r.u8()
	if err != nil {
		return err
	}
	isPublish, err := r.boolean()
	if err != nil {
		return err
	}
	sink.OnSessionTerminatedNotification(int(pubSubID), nan.ReasonCode(reason), isPublish)
	return nil
}

func decodeMessageReceived(r *reader, sink nan.EventSink) error {
	pubSubID, err := r.u16()
	if err != nil {
		return err
	}
	reqInstance, err := r.u32()
	if err != nil {
		return err
	}
	mac, err := r.mac()
	if err != nil {
		return err
	}
	payload, err := r.bytes()
	if err != nil {
		return err
	}
	sink.OnMessageReceivedNotification(int(pubSubID), int(reqInstance), mac, payload)
	return nil
}

func decodeDataPathRequest(r *reader, sink nan.EventSink) error {
	pubSubID, err := r.u16()
	if err != nil {
		return err
	}
	mac, err := r.mac()
	if err != nil {
		return err
	}
	ndpID, err := r.u32()
	if err != nil {
		return err
	}
	appInfo, err := r.bytes()
	if err != nil {
		return err
	}
	sink.OnDataPathRequestNotification(int(pubSubID), mac, int(ndpID), appInfo)
	return nil
}

func decodeDataPathConfirm(r *reader, sink nan.EventSink) error {
	ndpID, err := r.u32()
	if err != nil {
		return err
	}
	mac, err := r.mac()
	if err != nil {
		return err
	}
	accept, err := r.boolean()
	if err != nil {
		return err
	}
	reason, err := r.u8()
	if err != nil {
		return err
	}
	appInfo, err := r.bytes()
	if err != nil {
		return err
	}
	sink.OnDataPathConfirmNotification(int(ndpID), mac, accept, nan.ReasonCode(reason), appInfo)
	return nil
}
