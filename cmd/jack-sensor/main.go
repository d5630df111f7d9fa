// Command jack-sensor detects headset and line-out accessories on the audio
// jack, drives the codec accordingly and publishes state changes to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/jack-sensor/internal/codec"
	"github.com/sweeney/jack-sensor/internal/config"
	"github.com/sweeney/jack-sensor/internal/gpio"
	"github.com/sweeney/jack-sensor/internal/headset"
	"github.com/sweeney/jack-sensor/internal/input"
	"github.com/sweeney/jack-sensor/internal/journal"
	"github.com/sweeney/jack-sensor/internal/logic"
	"github.com/sweeney/jack-sensor/internal/mqtt"
	"github.com/sweeney/jack-sensor/internal/report"
	"github.com/sweeney/jack-sensor/internal/status"
	"github.com/sweeney/jack-sensor/internal/web"
)

// statusRefresh is how often the MQTT connection state is copied into the tracker.
const statusRefresh = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	printState := flag.Bool("print-state", false, "Print current line levels and exit")

	def := config.DefaultConfig()
	platform := flag.Int("platform", def.Platform, "Board project id (101 line-out, 102 button)")
	speaker := flag.Bool("speaker-needed", def.SpeakerNeeded, "Enable the speaker when line-out is removed")
	chip := flag.String("chip", def.GPIO.Chip, "GPIO chip name")
	jackLine := flag.Int("jack-line", def.GPIO.JackLine, "Jack presence line offset")
	hookLine := flag.Int("hook-line", def.GPIO.HookLine, "Hook line offset")
	lineOutLine := flag.Int("lineout-line", def.GPIO.LineOutLine, "Line-out presence line offset")
	codecBus := flag.String("codec-bus", def.Codec.Bus, "I2C bus of the codec (empty logs writes)")
	uinput := flag.String("uinput", def.Input.Path, "uinput device for the hook key (empty disables)")
	broker := flag.String("broker", def.MQTT.Broker, "MQTT broker address (empty disables)")
	prefix := flag.String("topic-prefix", def.MQTT.TopicPrefix, "MQTT topic prefix")
	httpAddr := flag.String("http", def.HTTP.Addr, "HTTP status address (empty to disable)")
	journalDir := flag.String("journal-dir", def.Journal.Dir, "Event journal directory (empty keeps it in memory)")
	logLevel := flag.String("log-level", def.Logging.Level, "Log level: error, warn, info, debug")

	flag.Parse()

	cfg := def
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}

	// Only flags given on the command line override the file.
	var o config.FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "platform":
			o.Platform = platform
		case "speaker-needed":
			o.SpeakerNeeded = speaker
		case "chip":
			o.Chip = chip
		case "jack-line":
			o.JackLine = jackLine
		case "hook-line":
			o.HookLine = hookLine
		case "lineout-line":
			o.LineOutLine = lineOutLine
		case "codec-bus":
			o.CodecBus = codecBus
		case "uinput":
			o.Uinput = uinput
		case "broker":
			o.Broker = broker
		case "topic-prefix":
			o.TopicPrefix = prefix
		case "http":
			o.HTTPAddr = httpAddr
		case "journal-dir":
			o.JournalDir = journalDir
		case "log-level":
			o.LogLevel = logLevel
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	level, _ := config.ParseLogLevel(cfg.Logging.Level)
	logger := config.NewLogger(os.Stdout, level)

	if err := run(cfg, *printState, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, printState bool, logger *slog.Logger) error {
	src, err := gpio.NewRealSource(cfg.GPIO.Chip, cfg.LineOffsets(), cfg.LineBias())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}

	if printState {
		defer src.Close()
		return printLevels(os.Stdout, src, cfg.PlatformID())
	}

	var sink codec.Sink = codec.NewLogSink(logger)
	if cfg.Codec.Bus != "" {
		i2c, err := codec.NewI2CSink(cfg.Codec.Bus, cfg.Codec.Addr)
		if err != nil {
			src.Close()
			return fmt.Errorf("init codec: %w", err)
		}
		defer i2c.Close()
		sink = i2c
	}

	// Tracker exists before STARTUP so the snapshot is available.
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	reporter := report.New(logger, cfg.Reporter.QueueSize, tracker)

	var history web.History
	if cfg.Journal.Enabled {
		store, err := journal.Open(journal.Options{Dir: cfg.Journal.Dir, TTL: cfg.JournalTTL(), Logger: logger})
		if err != nil {
			src.Close()
			return fmt.Errorf("init journal: %w", err)
		}
		defer store.Close()
		reporter.AddPublisher(store)
		history = store
	}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, mqtt.NewTopics(cfg.MQTT.TopicPrefix), logger)
		if err != nil {
			src.Close()
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		reporter.AddPublisher(p)
		publisher, mqttStatus = p, p
	}

	var openKeys func() (input.KeySink, error)
	if cfg.Input.Path != "" {
		openKeys = func() (input.KeySink, error) {
			return input.NewUinputSink(cfg.Input.Path, cfg.InputDevice())
		}
	}

	module := headset.New(headset.Config{
		Platform:      cfg.PlatformID(),
		SpeakerNeeded: cfg.SpeakerNeeded,
	}, headset.Deps{
		GPIO:     src,
		Codec:    sink,
		Reporter: reporter,
		Logger:   logger,
		OpenKeys: openKeys,
	})

	d := &daemon{
		module:     module,
		reporter:   reporter,
		tracker:    tracker,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		logger:     logger,
		now:        time.Now,
	}
	if cfg.HTTP.Addr != "" {
		d.hub = web.NewHub(logger, web.HubConfig{})
		reporter.AddPublisher(d.hub)
		d.server = web.New(cfg.HTTP.Addr, tracker, web.Options{
			History: history,
			Checker: module,
			Hub:     d.hub,
			Logger:  logger,
		})
	}

	d.publishSystem("STARTUP", "")

	if err := module.Start(); err != nil {
		src.Close()
		return fmt.Errorf("start detection: %w", err)
	}

	logger.Info("started",
		"platform", cfg.Platform,
		"variant", module.Variant().String(),
		"chip", cfg.GPIO.Chip,
		"broker", cfg.MQTT.Broker,
		"http", cfg.HTTP.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return d.serve(sigCh)
}

// daemon ties the detection module to its consumers for the process lifetime.
type daemon struct {
	module     *headset.Module
	reporter   *report.Reporter
	tracker    *status.Tracker
	publisher  mqtt.Publisher // nil when MQTT is disabled
	mqttStatus mqtt.ConnectionStatus
	hub        *web.Hub
	server     *web.Server
	logger     *slog.Logger
	now        func() time.Time
}

// serve runs the started module and its consumers until a signal arrives or
// a component fails, then shuts everything down in order and publishes
// SHUTDOWN.
func (d *daemon) serve(sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	reason := "UNKNOWN"
	g.Go(func() error {
		select {
		case s := <-sig:
			reason = signalName(s)
			d.logger.Info("shutting down", "signal", s.String())
		case <-ctx.Done():
		}
		// Module first so removal events still reach the reporter.
		if err := d.module.Shutdown(); err != nil {
			d.logger.Warn("module shutdown", "error", err)
		}
		cancel()
		return nil
	})

	g.Go(func() error { return d.module.Run(ctx) })
	g.Go(func() error { return d.reporter.Run(ctx) })

	if d.hub != nil {
		g.Go(func() error { return d.hub.Run(ctx) })
	}
	if d.server != nil {
		g.Go(func() error {
			if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return d.server.Shutdown(shutdownCtx)
		})
	}

	if d.mqttStatus != nil {
		g.Go(func() error {
			ticker := time.NewTicker(statusRefresh)
			defer ticker.Stop()
			for {
				d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}

	err := g.Wait()
	if err != nil {
		reason = "ERROR"
	}
	d.reporter.Flush()
	d.publishSystem("SHUTDOWN", reason)
	return err
}

// publishSystem sends a lifecycle event carrying the full status snapshot.
func (d *daemon) publishSystem(event, reason string) {
	if d.publisher == nil {
		return
	}
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	snap := d.tracker.Snapshot()
	err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		d.logger.Warn("publish system event failed", "event", event, "error", err)
		return
	}
	d.logger.Info("published system event", "event", event)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// printLevels claims the detection lines as plain inputs and prints their
// raw levels with the classification each level maps to.
func printLevels(w io.Writer, src gpio.EdgeSource, platform logic.Platform) error {
	lines := []gpio.Line{gpio.LineJack, gpio.LineHook}
	if platform.Variant() == logic.VariantLineOut {
		lines = append(lines, gpio.LineLineOut)
	}

	for _, l := range lines {
		if err := src.Request(l); err != nil {
			return fmt.Errorf("request %s line: %w", l, err)
		}
		v, err := src.Level(l)
		if err != nil {
			return fmt.Errorf("read %s line: %w", l, err)
		}
		var meaning string
		switch l {
		case gpio.LineJack:
			meaning = logic.ClassifyJack(v).Name()
		case gpio.LineHook:
			meaning = "released"
			if logic.HookAsserted(v) {
				meaning = "asserted"
			}
		case gpio.LineLineOut:
			meaning = string(logic.ClassifyLineOut(v))
		}
		fmt.Fprintf(w, "%s: %d (%s)\n", l, v, meaning)
	}
	return nil
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		Platform:      cfg.Platform,
		Chip:          cfg.GPIO.Chip,
		JackLine:      cfg.GPIO.JackLine,
		HookLine:      cfg.GPIO.HookLine,
		LineOutLine:   cfg.GPIO.LineOutLine,
		SpeakerNeeded: cfg.SpeakerNeeded,
		Broker:        cfg.MQTT.Broker,
		TopicPrefix:   cfg.MQTT.TopicPrefix,
		HTTPAddr:      cfg.HTTP.Addr,
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
