// Command hydro-controller runs the reservoir pump on a day/night duty cycle,
// samples water quality between pump runs and publishes both to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/hydro-controller/internal/config"
	"github.com/sweeney/hydro-controller/internal/control"
	"github.com/sweeney/hydro-controller/internal/gpio"
	"github.com/sweeney/hydro-controller/internal/hoststats"
	"github.com/sweeney/hydro-controller/internal/logging"
	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/mqtt"
	"github.com/sweeney/hydro-controller/internal/sensor"
	"github.com/sweeney/hydro-controller/internal/status"
	"github.com/sweeney/hydro-controller/internal/watchdog"
	"github.com/sweeney/hydro-controller/internal/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type flags struct {
	configPath   string
	broker       string
	httpAddr     string
	logLevel     string
	logFormat    string
	printReading bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "YAML config file (defaults built in)")
	flag.StringVar(&f.broker, "broker", "", "MQTT broker address (overrides config)")
	flag.StringVar(&f.httpAddr, "http", "", `HTTP status address (overrides config, "off" disables)`)
	flag.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	flag.StringVar(&f.logFormat, "log-format", "", "text or json (overrides config)")
	flag.BoolVar(&f.printReading, "print-reading", false, "Take one water reading, print it and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, f.printReading); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f flags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if f.broker != "" {
		cfg.MQTT.Broker = f.broker
	}
	switch f.httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = f.httpAddr
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(cfg config.Config, printReading bool) error {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, level, cfg.Log.Format, version)
	slog.SetDefault(logger)

	// Initialize GPIO
	pumpRelay, err := gpio.NewRealSwitch(cfg.GPIO.Chip, cfg.GPIO.PinPump, cfg.GPIO.ActiveHigh)
	if err != nil {
		return fmt.Errorf("init pump relay: %w", err)
	}
	defer pumpRelay.Close()

	sensorPower, err := gpio.NewRealSwitch(cfg.GPIO.Chip, cfg.GPIO.PinSensorPower, cfg.GPIO.ActiveHigh)
	if err != nil {
		return fmt.Errorf("init sensor power: %w", err)
	}
	defer sensorPower.Close()

	// Initialize sensors. A missing temperature probe degrades readings
	// instead of stopping the pump.
	var probe sensor.TemperatureProbe = sensor.MissingProbe{}
	if p, err := sensor.NewDS18B20Probe(cfg.Sensor.OneWireBus); err != nil {
		logger.Warn("temperature probe unavailable, readings will be degraded", "err", err)
	} else {
		defer p.Close()
		probe = p
	}

	sampler, err := sensor.NewADS1115Sampler(cfg.Sensor.I2CBus, cfg.Sensor.ADCAddress, cfg.Sensor.ADCChannel)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer sampler.Close()

	station := sensor.NewStation(probe, sampler, sensorPower, sensor.Options{
		Samples:      cfg.Sensor.Samples,
		SettleDelay:  cfg.Sensor.SettleDelay,
		SampleDelay:  cfg.Sensor.SampleDelay(),
		ProbeTimeout: cfg.Sensor.ProbeTimeout,
		Calibration:  cfg.Sensor.Calibration,
	}, logger.With("component", "sensor"))

	// Print reading mode
	if printReading {
		r, err := station.Acquire(context.Background())
		if err != nil {
			return fmt.Errorf("acquire: %w", err)
		}
		fmt.Println(formatReading(r))
		return nil
	}

	sensorSchedule, err := cfg.SensorSchedule()
	if err != nil {
		return err
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Tick:           cfg.Pump.Tick,
		OnLimit:        cfg.Pump.OnLimit,
		OffLimitDay:    cfg.Pump.OffLimitDay,
		OffLimitNight:  cfg.Pump.OffLimitNight,
		DayStartHour:   cfg.Pump.DayStartHour,
		DayEndHour:     cfg.Pump.DayEndHour,
		SensorSchedule: cfg.Sensor.Schedule,
		Broker:         cfg.MQTT.Broker,
		Prefix:         cfg.MQTT.Prefix,
		HTTPAddr:       cfg.HTTP.Addr,
	})

	// The supervisor is created after the publisher, whose command handler
	// needs it. Commands only arrive once the link loop has connected.
	var sup *control.Supervisor
	publisher := mqtt.NewRealPublisher(mqtt.Options{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientID,
		Prefix:         cfg.MQTT.Prefix,
		ConnectTimeout: cfg.Link.ConnectTimeout,
		BufferSize:     cfg.MQTT.BufferSize,
		OnCommand:      func(on bool) { sup.SetPump(on) },
		Logger:         logger.With("component", "mqtt"),
	})
	defer publisher.Close()

	sup, err = control.New(control.Deps{
		Pump: control.NewPumpState(
			logic.NewPumpScheduler(cfg.Schedule(), cfg.Pump.Tick),
			pumpRelay,
			logger.With("component", "pump"),
		),
		Station:     station,
		SensorPower: sensorPower,
		Transport:   publisher,
		Link:        logic.NewLinkMonitor(cfg.Link.ConnectTimeout, cfg.Link.RecoverBackoff),
		Clock:       control.NewSyncedClock(time.Local),
		Schedule:    sensorSchedule,
		Dispatcher:  control.NewDispatcher(publisher, cfg.MQTT.QueueSize, logger.With("component", "dispatch")),
		Observer:    tracker,
		Logger:      logger,
	}, control.Options{
		Tick:             cfg.Pump.Tick,
		LinkPoll:         cfg.Link.Poll,
		GatePoll:         cfg.Sensor.GatePoll,
		SuppressDegraded: cfg.Sensor.SuppressDegraded,
	})
	if err != nil {
		return fmt.Errorf("build supervisor: %w", err)
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, sup, logger.With("component", "http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	wd := watchdog.New(logger.With("component", "watchdog"))
	wdCtx, stopWatchdog := context.WithCancel(context.Background())
	defer stopWatchdog()
	go wd.Run(wdCtx, sup.LastPumpTick)

	logger.Info("started",
		"version", version,
		"broker", cfg.MQTT.Broker,
		"on", cfg.Pump.OnLimit,
		"rest_day", cfg.Pump.OffLimitDay,
		"rest_night", cfg.Pump.OffLimitNight,
		"sensor_schedule", cfg.Sensor.Schedule,
		"heartbeat", cfg.Heartbeat,
	)
	wd.Ready()

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		ticker := time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	rep := &reporter{
		publisher: publisher,
		tracker:   tracker,
		buffered:  publisher.Buffered,
		host: func() *status.HostInfo {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hostInfo(hoststats.Collect(ctx, "/", logger))
		},
		logger: logger,
		now:    time.Now,
	}
	err = runLoop(rep, sup.Run, heartbeat, sigCh)
	wd.Stopping()
	return err
}

// reporter publishes lifecycle events carrying a status snapshot.
type reporter struct {
	publisher mqtt.Publisher
	tracker   *status.Tracker
	buffered  func() int
	host      func() *status.HostInfo
	logger    *slog.Logger
	now       func() time.Time
}

func (r *reporter) refresh() {
	if net := readNetworkInfo(); net != nil {
		r.tracker.SetNetwork(net)
	}
	if r.host != nil {
		r.tracker.SetHost(r.host())
	}
	if r.buffered != nil {
		r.tracker.SetBuffered(r.buffered())
	}
}

func (r *reporter) publish(event, reason string, retained bool) {
	r.refresh()
	snap := r.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  r.now(),
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := r.publisher.PublishSystem(ev); err != nil {
		r.logger.Warn("system event publish failed", "event", event, "err", err)
		return
	}
	r.logger.Info("published system event", "event", event)
}

// runLoop publishes STARTUP, runs the supervisor until a signal arrives or it
// exits by itself, and publishes HEARTBEAT on every heartbeat tick and
// SHUTDOWN once the actuators are off.
func runLoop(rep *reporter, supervise func(context.Context) error, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	rep.publish("STARTUP", "", true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- supervise(ctx) }()

	for {
		select {
		case s := <-sig:
			reason := signalName(s)
			rep.logger.Info("shutting down", "signal", reason)
			cancel()
			err := <-done
			rep.publish("SHUTDOWN", reason, true)
			return err

		case err := <-done:
			if err == nil {
				err = errors.New("supervisor exited unexpectedly")
			}
			rep.logger.Error("supervisor stopped", "err", err)
			rep.publish("SHUTDOWN", "SUPERVISOR_EXIT", true)
			return err

		case <-heartbeat:
			snap := rep.tracker.Snapshot()
			rep.logger.Info("heartbeat",
				"uptime", snap.Uptime().Truncate(time.Second),
				"pump", snap.Pump.Phase,
				"link", snap.Link,
				"pump_starts", snap.Pump.Counts.On,
			)
			rep.publish("HEARTBEAT", "", false)
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func formatReading(r logic.SensorReading) string {
	line := fmt.Sprintf("TDS: %.2f ppm, temperature: %.2f C, raw: %d", r.ConcentrationPPM, r.TemperatureC, r.Median)
	if r.Degraded {
		line += " (degraded: no temperature probe)"
	}
	return line
}

func hostInfo(s hoststats.Stats) *status.HostInfo {
	return &status.HostInfo{
		Load1:         s.Load1,
		MemUsedMB:     s.MemUsedMB,
		MemTotalMB:    s.MemTotalMB,
		DiskUsedMB:    s.DiskUsedMB,
		DiskTotalMB:   s.DiskTotalMB,
		UptimeSeconds: s.UptimeSeconds,
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
