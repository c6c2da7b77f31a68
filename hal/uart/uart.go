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

// Package uart provides a HAL backend speaking the NAN controller frame
// protocol over a serial port.
package uart

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"

	nan "github.com/ProjectBlaze-Reborn/packages-modules-Wifi"
	"github.com/ProjectBlaze-Reborn/packages-modules-Wifi/internal/codec"
	"github.com/ProjectBlaze-Reborn/packages-modules-Wifi/internal/frame"
	"github.com/ProjectBlaze-Reborn/packages-modules-Wifi/internal/transport"
)

const defaultBaudRate = 115200

// HAL implements nan.HAL over a serial link to the NAN controller.
// Commands are framed writes; controller events are decoded by a
// background read loop and pushed into the sink.
type HAL struct {
	port    serial.Port
	logger  *slog.Logger
	retry   transport.RetryConfig
	writeMu sync.Mutex
	sinkMu  sync.RWMutex
	sink    nan.EventSink
	closed  atomic.Bool
	done    chan struct{}
}

// Option is a functional option for configuring the backend.
type Option func(*HAL) error

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *HAL) error {
		h.logger = logger
		return nil
	}
}

// WithRetryConfig overrides the write retry behavior.
func WithRetryConfig(cfg transport.RetryConfig) Option {
	return func(h *HAL) error {
		h.retry = cfg
		return nil
	}
}

// New opens the serial device and starts the event read loop. sink may be
// nil at construction (the manager is usually built second) and set later
// with SetSink; events arriving before that are dropped.
func New(device string, sink nan.EventSink, opts ...Option) (*HAL, error) {
	if device == "" {
		return nil, errors.New("empty device path")
	}

	mode := &serial.Mode{BaudRate: defaultBaudRate}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}

	h := &HAL{
		port:   port,
		sink:   sink,
		logger: slog.Default(),
		retry:  transport.DefaultRetryConfig(),
		done:   make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			_ = port.Close()
			return nil, err
		}
	}

	go h.readLoop()
	return h, nil
}

// SetSink installs the event sink. Must be called before the controller is
// expected to produce events.
func (h *HAL) SetSink(sink nan.EventSink) {
	h.sinkMu.Lock()
	h.sink = sink
	h.sinkMu.Unlock()
}

// Close shuts the backend down. The read loop exits on the port error.
func (h *HAL) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := h.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	<-h.done
	return nil
}

func (h *HAL) readLoop() {
	defer close(h.done)

	fr := frame.NewReader(h.port)
	for {
		tfi, payload, err := fr.Next()
		if err != nil {
			if errors.Is(err, frame.ErrBadDataChecksum) || errors.Is(err, frame.ErrBadLengthChecksum) {
				h.logger.Warn("corrupted frame, resynchronizing", "err", err)
				continue
			}
			if h.closed.Load() {
				return
			}
			h.logger.Error("serial read failed, stopping event loop", "err", err)
			return
		}
		if tfi != frame.CtrlToHost {
			h.logger.Warn("frame with unexpected direction byte", "tfi", tfi)
			continue
		}

		h.sinkMu.RLock()
		sink := h.sink
		h.sinkMu.RUnlock()
		if sink == nil {
			h.logger.Warn("controller event before sink installed, dropping")
			continue
		}
		if err := codec.DispatchEvent(payload, sink); err != nil {
			h.logger.Error("failed to decode controller event", "err", err)
		}
	}
}

// writeCommand frames and writes one command payload, retrying transient
// partial writes.
func (h *HAL) writeCommand(op string, payload []byte) error {
	if h.closed.Load() {
		return nan.NewHALError(op, "uart", nan.ErrHALClosed, nan.ErrorTypeTerminal)
	}

	buf, err := frame.Build(frame.HostToCtrl, payload)
	if err != nil {
		return nan.NewHALError(op, "uart", err, nan.ErrorTypeProgrammer)
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	cfg := h.retry
	cfg.Description = op
	_, err = transport.WithRetry(cfg, "uart", func() (struct{}, bool, error) {
		n, werr := h.port.Write(buf)
		if werr != nil {
			if h.closed.Load() {
				return struct{}{}, false, nan.NewHALError(op, "uart", nan.ErrHALClosed, nan.ErrorTypeTerminal)
			}
			h.logger.Warn("serial write failed, retrying", "op", op, "err", werr)
			return struct{}{}, true, nil
		}
		if n != len(buf) {
			h.logger.Warn("short serial write, retrying", "op", op, "wrote", n, "want", len(buf))
			return struct{}{}, true, nil
		}
		return struct{}{}, false, nil
	})
	return err
}

// EnableAndConfigure submits an enable-and-configure command.
func (h *HAL) EnableAndConfigure(tx uint16, cfg nan.ConfigRequest, initial bool) error {
	return h.writeCommand("EnableAndConfigure", codec.EnableConfigure(tx, cfg, initial))
}

// Disable submits a disable command.
func (h *HAL) Disable(tx uint16) error {
	return h.writeCommand("Disable", codec.Disable(tx))
}

// Publish submits a publish start/update command.
func (h *HAL) Publish(tx uint16, pubSubID int, cfg nan.PublishConfig) error {
	return h.writeCommand("Publish", codec.Publish(tx, pubSubID, cfg))
}

// PublishCancel submits a publish teardown command.
func (h *HAL) PublishCancel(tx uint16, pubSubID int) error {
	return h.writeCommand("PublishCancel", codec.PublishCancel(tx, pubSubID))
}

// Subscribe submits a subscribe start/update command.
func (h *HAL) Subscribe(tx uint16, pubSubID int, cfg nan.SubscribeConfig) error {
	return h.writeCommand("Subscribe", codec.Subscribe(tx, pubSubID, cfg))
}

// SubscribeCancel submits a subscribe teardown command.
func (h *HAL) SubscribeCancel(tx uint16, pubSubID int) error {
	return h.writeCommand("SubscribeCancel", codec.SubscribeCancel(tx, pubSubID))
}

// SendFollowonMessage submits a follow-on message transmit command.
func (h *HAL) SendFollowonMessage(tx uint16, pubSubID, requestorInstanceID int,
	dest net.HardwareAddr, payload []byte) error {
	return h.writeCommand("SendFollowonMessage",
		codec.SendMessage(tx, pubSubID, requestorInstanceID, dest, payload))
}

// GetCapabilities submits a capabilities query.
func (h *HAL) GetCapabilities(tx uint16) error {
	return h.writeCommand("GetCapabilities", codec.GetCapabilities(tx))
}

// CreateDataPathInterface submits an interface creation command.
func (h *HAL) CreateDataPathInterface(tx uint16, name string) error {
	return h.writeCommand("CreateDataPathInterface", codec.CreateInterface(tx, name))
}

// DeleteDataPathInterface submits an interface deletion command.
func (h *HAL) DeleteDataPathInterface(tx uint16, name string) error {
	return h.writeCommand("DeleteDataPathInterface", codec.DeleteInterface(tx, name))
}

// InitiateDataPath submits an initiator-side setup command.
func (h *HAL) InitiateDataPath(tx uint16, peerID int, chanReqType nan.ChannelRequestType,
	channel int, peer net.HardwareAddr, ifaceName string, appInfo []byte) error {
	return h.writeCommand("InitiateDataPath",
		codec.InitiateDataPath(tx, peerID, chanReqType, channel, peer, ifaceName, appInfo))
}

// RespondToDataPathRequest submits a responder-side accept/reject command.
func (h *HAL) RespondToDataPathRequest(tx uint16, accept bool, ndpID int, ifaceName string, appInfo []byte) error {
	return h.writeCommand("RespondToDataPathRequest",
		codec.RespondDataPath(tx, accept, ndpID, ifaceName, appInfo))
}

// EndDataPath submits a teardown command.
func (h *HAL) EndDataPath(tx uint16, ndpID int) error {
	return h.writeCommand("EndDataPath", codec.EndDataPath(tx, ndpID))
}

// Deinit resets the controller. Best effort; failures are logged.
func (h *HAL) Deinit() {
	if err := h.writeCommand("Deinit", codec.Deinit()); err != nil {
		h.logger.Error("controller deinit failed", "err", err)
	}
}
