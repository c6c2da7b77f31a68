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

// Package i2c provides a HAL backend speaking the NAN controller frame
// protocol over an I2C bus.
package i2c

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	nan "github.com/ProjectBlaze-Reborn/packages-modules-Wifi"
	"github.com/ProjectBlaze-Reborn/packages-modules-Wifi/internal/codec"
	"github.com/ProjectBlaze-Reborn/packages-modules-Wifi/internal/frame"
)

const (
	// NAN controller I2C address.
	ctrlAddr = 0x39

	// Status byte prefixed to every read transaction.
	ctrlReady = 0x01

	// Max clock frequency (400 kHz).
	maxClockFreq = 400 * physic.KiloHertz

	// Interval between event polls when the controller has no data.
	pollInterval = 10 * time.Millisecond

	// Largest chunk requested per read transaction.
	readChunk = 128
)

// HAL implements nan.HAL over an I2C link to the NAN controller. Writes
// are framed bus transactions; events are fetched by a background poll
// loop (the controller prefixes each read with a ready/count header).
type HAL struct {
	dev     *i2c.Dev
	busName string
	logger  *slog.Logger
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

// New opens the I2C bus and starts the event poll loop. sink may be nil at
// construction and installed later with SetSink.
func New(busName string, sink nan.EventSink, opts ...Option) (*HAL, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	// Best effort; continue at the bus default speed on failure.
	_ = bus.SetSpeed(maxClockFreq)

	h := &HAL{
		dev:     &i2c.Dev{Addr: ctrlAddr, Bus: bus},
		busName: busName,
		sink:    sink,
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}

	go h.pollLoop()
	return h, nil
}

// SetSink installs the event sink.
func (h *HAL) SetSink(sink nan.EventSink) {
	h.sinkMu.Lock()
	h.sink = sink
	h.sinkMu.Unlock()
}

// Close stops the poll loop.
func (h *HAL) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	<-h.done
	return nil
}

// pollLoop drains controller events through a frame reader backed by
// ready-gated bus reads.
func (h *HAL) pollLoop() {
	defer close(h.done)

	fr := frame.NewReader(&busStream{hal: h})
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
			h.logger.Error("i2c read failed, stopping event loop", "err", err)
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

// busStream adapts ready-gated I2C read transactions to io.Reader for the
// frame decoder. Each transaction returns [status, count, data...].
type busStream struct {
	hal *HAL
}

func (s *busStream) Read(p []byte) (int, error) {
	want := min(len(p), readChunk)
	buf := make([]byte, 2+want)
	for {
		if s.hal.closed.Load() {
			return 0, io.EOF
		}

		s.hal.writeMu.Lock()
		err := s.hal.dev.Tx(nil, buf)
		s.hal.writeMu.Unlock()
		if err != nil {
			return 0, fmt.Errorf("i2c read transaction: %w", err)
		}

		if buf[0] != ctrlReady || buf[1] == 0 {
			time.Sleep(pollInterval)
			continue
		}

		n := min(int(buf[1]), want)
		copy(p, buf[2:2+n])
		return n, nil
	}
}

// writeCommand frames and writes one command payload.
func (h *HAL) writeCommand(op string, payload []byte) error {
	if h.closed.Load() {
		return nan.NewHALError(op, "i2c", nan.ErrHALClosed, nan.ErrorTypeTerminal)
	}

	buf, err := frame.Build(frame.HostToCtrl, payload)
	if err != nil {
		return nan.NewHALError(op, "i2c", err, nan.ErrorTypeProgrammer)
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := h.dev.Tx(buf, nil); err != nil {
		return nan.NewHALError(op, "i2c", err, nan.ErrorTypeTransient)
	}
	return nil
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
