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

// Package datapath tracks NAN data interfaces and NDP negotiations on
// behalf of the state manager.
package datapath

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/google/uuid"

	nan "github.com/ProjectBlaze-Reborn/packages-modules-Wifi"
)

// Role distinguishes which side of an NDP negotiation we are on.
type Role int

const (
	// RoleInitiator started the setup.
	RoleInitiator Role = iota
	// RoleResponder received the setup request from a peer.
	RoleResponder
)

// ndpState tracks one negotiation from initiate/request to confirm or
// timeout.
type ndpState struct {
	peer             net.HardwareAddr
	networkSpecifier string
	ndpID            int
	role             Role
	confirmed        bool
}

// Manager is the default nan.DataPathManager. It holds only a
// nan.CommandSender capability back into the state manager, which owns it;
// every method runs on the manager's dispatcher goroutine.
type Manager struct {
	sender      nan.CommandSender
	logger      *slog.Logger
	interfaces  map[string]bool
	bySpecifier map[string]*ndpState
	byNdpID     map[int]*ndpState
	ifacePrefix string
	ifaceCount  int
}

// Option is a functional option for configuring the Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithInterfaces overrides the data interface naming and count.
func WithInterfaces(prefix string, count int) Option {
	return func(m *Manager) {
		m.ifacePrefix = prefix
		m.ifaceCount = count
	}
}

// New creates a data-path manager issuing commands through sender.
func New(sender nan.CommandSender, opts ...Option) *Manager {
	m := &Manager{
		sender:      sender,
		logger:      slog.Default(),
		interfaces:  make(map[string]bool),
		bySpecifier: make(map[string]*ndpState),
		byNdpID:     make(map[int]*ndpState),
		ifacePrefix: "aware_data",
		ifaceCount:  1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TrackInitiate registers an initiator-side negotiation under the caller's
// network specifier before the initiate command is posted.
func (m *Manager) TrackInitiate(networkSpecifier string, peer net.HardwareAddr) {
	m.bySpecifier[networkSpecifier] = &ndpState{
		networkSpecifier: networkSpecifier,
		peer:             append(net.HardwareAddr(nil), peer...),
		role:             RoleInitiator,
		ndpID:            -1,
	}
}

// Interfaces returns the names of the data interfaces confirmed created.
func (m *Manager) Interfaces() []string {
	out := make([]string, 0, len(m.interfaces))
	for name, up := range m.interfaces {
		if up {
			out = append(out, name)
		}
	}
	return out
}

func (m *Manager) interfaceNames() []string {
	names := make([]string, m.ifaceCount)
	for i := range names {
		names[i] = fmt.Sprintf("%s%d", m.ifacePrefix, i)
	}
	return names
}

// CreateAllInterfaces issues a creation command per supported interface.
func (m *Manager) CreateAllInterfaces() {
	for _, name := range m.interfaceNames() {
		m.sender.CreateDataPathInterface(name)
	}
}

// DeleteAllInterfaces issues a deletion command per supported interface.
func (m *Manager) DeleteAllInterfaces() {
	for _, name := range m.interfaceNames() {
		m.sender.DeleteDataPathInterface(name)
	}
}

// OnInterfaceCreated records a confirmed interface.
func (m *Manager) OnInterfaceCreated(name string) {
	m.interfaces[name] = true
}

// OnInterfaceDeleted drops a deleted interface.
func (m *Manager) OnInterfaceDeleted(name string) {
	delete(m.interfaces, name)
}

// OnDataPathRequest tracks a peer-initiated negotiation and allocates the
// network specifier that keys its confirmation timer.
func (m *Manager) OnDataPathRequest(pubSubID int, peer net.HardwareAddr, ndpID int, appInfo []byte) string {
	spec := uuid.NewString()
	st := &ndpState{
		networkSpecifier: spec,
		peer:             append(net.HardwareAddr(nil), peer...),
		role:             RoleResponder,
		ndpID:            ndpID,
	}
	m.bySpecifier[spec] = st
	m.byNdpID[ndpID] = st

	m.logger.Debug("data path request tracked",
		"pub_sub_id", pubSubID, "ndp_id", ndpID, "network_specifier", spec,
		"app_info_len", len(appInfo))
	return spec
}

// OnDataPathConfirm marks the negotiation established (or drops it on
// rejection) and returns the specifier whose timer should be cancelled.
func (m *Manager) OnDataPathConfirm(ndpID int, peer net.HardwareAddr, accept bool,
	reason nan.ReasonCode, _ []byte) string {
	st := m.byNdpID[ndpID]
	if st == nil {
		m.logger.Warn("confirm for unknown ndp", "ndp_id", ndpID)
		return ""
	}
	if !accept {
		m.logger.Info("data path rejected", "ndp_id", ndpID, "reason", reason)
		m.drop(st)
		return st.networkSpecifier
	}
	st.confirmed = true
	st.peer = append(net.HardwareAddr(nil), peer...)
	return st.networkSpecifier
}

// OnDataPathEnd drops a terminated negotiation.
func (m *Manager) OnDataPathEnd(ndpID int) {
	st := m.byNdpID[ndpID]
	if st == nil {
		return
	}
	m.drop(st)
}

// OnDataPathInitiateSuccess binds the firmware-assigned ndp id to the
// initiator-side negotiation.
func (m *Manager) OnDataPathInitiateSuccess(networkSpecifier string, ndpID int) {
	st := m.bySpecifier[networkSpecifier]
	if st == nil {
		m.logger.Warn("initiate success for unknown specifier",
			"network_specifier", networkSpecifier)
		return
	}
	st.ndpID = ndpID
	m.byNdpID[ndpID] = st
}

// OnDataPathInitiateFail drops a failed initiator-side negotiation.
func (m *Manager) OnDataPathInitiateFail(networkSpecifier string, reason nan.ReasonCode) {
	st := m.bySpecifier[networkSpecifier]
	if st == nil {
		return
	}
	m.logger.Info("data path initiate failed",
		"network_specifier", networkSpecifier, "reason", reason)
	m.drop(st)
}

// HandleDataPathTimeout tears down a negotiation that never confirmed.
func (m *Manager) HandleDataPathTimeout(networkSpecifier string) {
	st := m.bySpecifier[networkSpecifier]
	if st == nil {
		return
	}
	m.logger.Warn("data path confirmation timeout",
		"network_specifier", networkSpecifier, "ndp_id", st.ndpID)
	if st.ndpID >= 0 {
		m.sender.EndDataPath(st.ndpID)
	}
	m.drop(st)
}

// OnNanDownCleanup drops all negotiation and interface state.
func (m *Manager) OnNanDownCleanup() {
	m.bySpecifier = make(map[string]*ndpState)
	m.byNdpID = make(map[int]*ndpState)
	m.interfaces = make(map[string]bool)
}

func (m *Manager) drop(st *ndpState) {
	delete(m.bySpecifier, st.networkSpecifier)
	if st.ndpID >= 0 {
		delete(m.byNdpID, st.ndpID)
	}
}
