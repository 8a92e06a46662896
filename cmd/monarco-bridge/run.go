package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"

	"github.com/sweeney/monarco-bridge/internal/accessory"
	"github.com/sweeney/monarco-bridge/internal/config"
	"github.com/sweeney/monarco-bridge/internal/driver"
	"github.com/sweeney/monarco-bridge/internal/gpio"
	"github.com/sweeney/monarco-bridge/internal/homekit"
	"github.com/sweeney/monarco-bridge/internal/mqtt"
	"github.com/sweeney/monarco-bridge/internal/status"
	"github.com/sweeney/monarco-bridge/internal/web"
)

const (
	initTimeout     = 10 * time.Second
	refreshInterval = time.Second
)

func newDriver(cfg *config.Config, logger *zap.Logger) (driver.Driver, error) {
	switch cfg.Driver.Backend {
	case config.BackendGPIO:
		pins := gpio.DefaultPins
		copy(pins[:], cfg.Driver.GPIO.Pins)
		reader, err := gpio.NewRealReader(cfg.Driver.GPIO.Chip, pins, cfg.Driver.GPIO.ActiveLow)
		if err != nil {
			return nil, fmt.Errorf("init gpio: %w", err)
		}
		return driver.NewGPIODriver(reader, cfg.CycleInterval, logger.Named("gpio")), nil
	default:
		drv, err := driver.NewMonarcoDriver(driver.MonarcoConfig{
			SPIPort:   cfg.Driver.SPI.Port,
			Frequency: physic.Frequency(cfg.Driver.SPI.FrequencyHz) * physic.Hertz,
			Period:    cfg.CycleInterval,
		}, logger.Named("monarco"))
		if err != nil {
			return nil, fmt.Errorf("init monarco: %w", err)
		}
		return drv, nil
	}
}

func statusConfig(cfg *config.Config) status.Config {
	sc := status.Config{
		CycleMs:         cfg.CycleInterval.Milliseconds(),
		WatchdogSeconds: cfg.WatchdogTimeout,
		Backend:         cfg.Driver.Backend,
		HTTPAddr:        cfg.HTTP.Addr,
		HomeKit:         cfg.HomeKit.Enabled,
	}
	if cfg.MQTT.Enabled {
		sc.Broker = cfg.MQTT.Broker
		sc.HeartbeatMs = cfg.MQTT.Heartbeat.Milliseconds()
	}
	return sc
}

func run(cfg *config.Config, logger *zap.Logger) error {
	drv, err := newDriver(cfg, logger)
	if err != nil {
		return err
	}
	defer drv.Close()

	platform := accessory.NewPlatform(cfg, drv, logger.Named("platform"))

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	for _, a := range platform.Accessories() {
		tracker.AddAccessory(a)
	}
	platform.AddNotifier(tracker)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
	)
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Prefix:   cfg.MQTT.Prefix,
			Logger:   logger.Named("mqtt"),
			OnCommand: func(c mqtt.Command) {
				if err := mqtt.ApplyCommand(platform, c); err != nil {
					logger.Warn("mqtt command rejected",
						zap.String("device", c.DeviceID),
						zap.String("key", c.Key),
						zap.String("value", c.Value),
						zap.Error(err))
				}
			},
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer pub.Close()
		publisher, mqttStatus = pub, pub
		platform.AddNotifier(mqtt.NewNotifier(pub, logger.Named("mqtt")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The HAP server may answer reads before the driver is up; accessories
	// report their defaults until the first tick.
	if cfg.HomeKit.Enabled {
		bridge := homekit.New(cfg.HomeKit, platform, logger.Named("homekit"))
		platform.AddNotifier(bridge)
		go func() {
			if err := bridge.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("homekit server error", zap.Error(err))
			}
		}()
	}

	initCtx, initCancel := context.WithTimeout(ctx, initTimeout)
	err = platform.Start(initCtx)
	initCancel()
	if err != nil {
		return fmt.Errorf("start platform: %w", err)
	}

	if cfg.Driver.Backend == config.BackendMonarco {
		info := platform.DeviceInfo()
		tracker.SetDevice(status.DeviceInfo{Firmware: info.FirmwareHex(), Hardware: info.HardwareHex(), CPUID: info.CPUID})
	}
	refreshTracker(tracker, platform, mqttStatus)

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			logger.Warn("failed to publish startup event", zap.Error(err))
		}
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, logger.Named("http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	logger.Info("started",
		zap.String("backend", cfg.Driver.Backend),
		zap.Duration("cycle_interval", cfg.CycleInterval),
		zap.Int("devices", len(cfg.Devices)),
		zap.Bool("homekit", cfg.HomeKit.Enabled),
		zap.Bool("mqtt", cfg.MQTT.Enabled))

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var heartbeat time.Duration
	if cfg.MQTT.Enabled {
		heartbeat = cfg.MQTT.Heartbeat
	}
	return runLoop(platform, publisher, mqttStatus, tracker, logger, heartbeat, time.Now, ticker.C, sigCh)
}

// runLoop keeps the status tracker current, publishes heartbeats and
// handles shutdown signals. Accessory work happens on the driver cycle.
// publisher and mqttStatus may be nil when MQTT is disabled.
func runLoop(p *accessory.Platform, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, logger *zap.Logger, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	for {
		select {
		case s := <-sig:
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			logger.Info("shutting down", zap.String("signal", signalName))

			if publisher == nil {
				return nil
			}
			refreshTracker(tracker, p, mqttStatus)
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.Warn("failed to publish shutdown event", zap.Error(err))
			}
			return nil

		case <-tick:
			t := now()
			refreshTracker(tracker, p, mqttStatus)

			if publisher == nil || heartbeat <= 0 || t.Sub(lastHeartbeat) < heartbeat {
				continue
			}
			lastHeartbeat = t

			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			snap := tracker.Snapshot()
			logger.Info("heartbeat",
				zap.Duration("uptime", snap.Uptime().Truncate(time.Second)),
				zap.Uint64("driver_errors", snap.DriverErrors))

			hbEvent := mqtt.SystemEvent{
				Timestamp:  t,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				logger.Warn("heartbeat publish error", zap.Error(err))
			}
		}
	}
}

func refreshTracker(tracker *status.Tracker, p *accessory.Platform, mqttStatus mqtt.ConnectionStatus) {
	tracker.SetReady(p.Started())
	stats := p.DriverErrors()
	tracker.SetDriverErrors(stats.Count, stats.Last)
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
