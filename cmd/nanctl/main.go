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

// nanctl drives the NAN control plane against a real controller (uart or
// i2c) or the built-in simulator: it enables usage, connects a client,
// starts a discovery session, and messages the first matched peer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	nan "github.com/ProjectBlaze-Reborn/packages-modules-Wifi"
	"github.com/ProjectBlaze-Reborn/packages-modules-Wifi/datapath"
	"github.com/ProjectBlaze-Reborn/packages-modules-Wifi/hal/i2c"
	"github.com/ProjectBlaze-Reborn/packages-modules-Wifi/hal/uart"
	"github.com/ProjectBlaze-Reborn/packages-modules-Wifi/ranging"
)

const demoClientID = 1

var (
	infoColor  = color.New(color.FgCyan)
	eventColor = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed, color.Bold)
)

type flags struct {
	configPath *string
	transport  *string
	device     *string
	mode       *string
	message    *string
	debug      *bool
}

func parseFlags() *flags {
	f := &flags{
		configPath: flag.String("config", "", "Path to YAML config file"),
		transport:  flag.String("transport", "", "Transport: sim, uart or i2c (overrides config)"),
		device:     flag.String("device", "", "Serial device or I2C bus (overrides config); empty = auto-detect"),
		mode:       flag.String("mode", "publish", "Discovery mode: publish or subscribe"),
		message:    flag.String("message", "hello from nanctl", "Follow-on message sent to the first matched peer"),
		debug:      flag.Bool("debug", false, "Enable debug output"),
	}
	flag.Parse()
	return f
}

// sinkSetter is implemented by every backend that needs the manager wired
// in after construction.
type sinkSetter interface {
	SetSink(nan.EventSink)
}

func newBackend(cfg Config, logger *slog.Logger) (nan.HAL, error) {
	switch cfg.Transport {
	case "sim", "":
		return newSimHAL(), nil
	case "uart":
		device := cfg.Device
		if device == "" {
			ports, err := uart.Ports()
			if err != nil {
				return nil, fmt.Errorf("uart auto-detection failed: %w", err)
			}
			if len(ports) == 0 {
				return nil, errors.New("no serial ports found")
			}
			device = ports[0]
			logger.Info("auto-detected serial port", "device", device)
		}
		return uart.New(device, nil, uart.WithLogger(logger))
	case "i2c":
		return i2c.New(cfg.Bus, nil, i2c.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// cliEventCallback prints client-level events.
type cliEventCallback struct{}

func (cliEventCallback) OnConnectSuccess(clientID int) {
	eventColor.Printf("connected (client %d)\n", clientID)
}

func (cliEventCallback) OnConnectFail(reason nan.ReasonCode) {
	errColor.Printf("connect failed: %s\n", reason)
}

func (cliEventCallback) OnInterfaceAddressChange(mac net.HardwareAddr) {
	eventColor.Printf("discovery interface: %s\n", mac)
}

func (cliEventCallback) OnClusterChange(eventType nan.ClusterEventType, clusterID net.HardwareAddr) {
	verb := "started"
	if eventType == nan.ClusterEventJoined {
		verb = "joined"
	}
	eventColor.Printf("cluster %s: %s\n", verb, clusterID)
}

func (cliEventCallback) OnRangingFailure(rangingID int, reason nan.ReasonCode, description string) {
	errColor.Printf("ranging %d failed: %s (%s)\n", rangingID, reason, description)
}

// cliSessionCallback prints session events and messages the first peer.
type cliSessionCallback struct {
	manager   *nan.Manager
	message   string
	mode      string
	sessionID int
	nextMsgID int
	messaged  bool
}

func (c *cliSessionCallback) OnSessionStarted(sessionID int) {
	eventColor.Printf("%s session started (session %d)\n", c.mode, sessionID)
	c.sessionID = sessionID
}

func (c *cliSessionCallback) OnSessionConfigSuccess() {
	eventColor.Println("session reconfigured")
}

func (c *cliSessionCallback) OnSessionConfigFail(reason nan.ReasonCode) {
	errColor.Printf("session config failed: %s\n", reason)
}

func (c *cliSessionCallback) OnSessionTerminated(reason nan.ReasonCode) {
	infoColor.Printf("session terminated: %s\n", reason)
}

func (c *cliSessionCallback) OnMatch(peerID int, serviceSpecificInfo, _ []byte) {
	eventColor.Printf("match: peer %d (%q)\n", peerID, serviceSpecificInfo)
	if c.messaged {
		return
	}
	c.messaged = true
	c.manager.SendMessage(demoClientID, c.sessionID, peerID, []byte(c.message), c.nextMsgID, 1)
	c.nextMsgID++
}

func (c *cliSessionCallback) OnMessageSendSuccess(messageID int) {
	eventColor.Printf("message %d delivered\n", messageID)
}

func (c *cliSessionCallback) OnMessageSendFail(messageID int, reason nan.ReasonCode) {
	errColor.Printf("message %d failed: %s\n", messageID, reason)
}

func (c *cliSessionCallback) OnMessageReceived(peerID int, payload []byte) {
	eventColor.Printf("message from peer %d: %q\n", peerID, payload)
}

func run() error {
	f := parseFlags()

	cfg, err := LoadConfig(*f.configPath)
	if err != nil {
		return err
	}
	if *f.transport != "" {
		cfg.Transport = *f.transport
	}
	if *f.device != "" {
		cfg.Device = *f.device
		cfg.Bus = *f.device
	}

	level := slog.LevelInfo
	if *f.debug || cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	backend, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}

	manager, err := nan.New(backend,
		nan.WithLogger(logger),
		nan.WithMetrics(prometheus.DefaultRegisterer),
		nan.WithRangingManager(ranging.New(nil, ranging.WithLogger(logger))),
		nan.WithStateBroadcaster(func(enabled bool) {
			infoColor.Printf("NAN usage state: enabled=%v\n", enabled)
		}),
	)
	if err != nil {
		return err
	}
	manager.SetDataPathManager(datapath.New(manager, datapath.WithLogger(logger)))

	if setter, ok := backend.(sinkSetter); ok {
		setter.SetSink(manager)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Stop()

	manager.EnableUsage()

	sessionCB := &cliSessionCallback{manager: manager, message: *f.message, mode: *f.mode}
	manager.Connect(demoClientID, os.Getuid(), os.Getpid(), "nanctl", cliEventCallback{},
		nan.DefaultConfigRequest(), true)

	pub := nan.PublishConfig{ServiceName: cfg.Service, ServiceSpecificInfo: []byte("nanctl")}
	sub := nan.SubscribeConfig{ServiceName: cfg.Service}
	if *f.mode == "subscribe" {
		manager.Subscribe(demoClientID, sub, sessionCB)
	} else {
		manager.Publish(demoClientID, pub, sessionCB)
	}

	<-ctx.Done()
	infoColor.Println("shutting down")

	manager.Dump(os.Stderr)
	return g.Wait()
}

func main() {
	if err := run(); err != nil {
		errColor.Fprintf(os.Stderr, "nanctl: %v\n", err)
		os.Exit(1)
	}
}
