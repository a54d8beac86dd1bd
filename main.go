// Program segclock drives a six-digit seven-segment display behind a Tasmota
// serial bridge. The display follows the wall clock (time or date mode) until
// an MQTT command switches it to a reset, counter, or custom value.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"segclock/commands"
	"segclock/config"
	"segclock/display"
	"segclock/mqttbus"
	"segclock/stats"
	"segclock/tasmota"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	envConfigPath = "SEGCLOCK_CONFIG"

	startSuffix = "start"
	clearSuffix = "clear"
	timeSuffix  = "time"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Purpose: Load configuration from flag/env/defaults and overlay env vars.
// Key aspects: --config wins over SEGCLOCK_CONFIG; no file means defaults.
// Upstream: main startup.
// Downstream: config.Load, Config.ApplyEnv, Config.Validate.
func loadDisplayConfig(flagPath string, lookup func(string) (string, bool)) (*config.Config, error) {
	path := strings.TrimSpace(flagPath)
	if path == "" {
		if envPath, ok := lookup(envConfigPath); ok {
			path = strings.TrimSpace(envPath)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(lookup)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration from %s: %w", cfg.LoadedFrom, err)
	}
	return cfg, nil
}

// Purpose: Program entrypoint; wires config, device sink, bus, and display loop.
// Key aspects: Bus failures degrade to clock-only operation; runs until signalled.
// Upstream: OS process start.
// Downstream: connectBus, publishStartup, runDisplayLoop, runStatusLogger.
func main() {
	configPath := pflag.StringP("config", "c", "", "path to YAML config (env "+envConfigPath+")")
	showVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	cfg, err := loadDisplayConfig(*configPath, os.LookupEnv)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	interactive := isStdoutTTY()
	fanout, logErr := setupLogging(cfg.Logging, os.Stdout, interactive, loc)
	log.SetFlags(0)
	log.SetOutput(fanout)
	defer fanout.Close()
	if logErr != nil {
		log.Printf("Warning: file logging disabled: %v", logErr)
	}

	log.Printf("segclock v%s starting...", Version)
	log.Printf("Loaded configuration from %s", cfg.LoadedFrom)
	if interactive {
		cfg.Print()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device, err := tasmota.NewClient(cfg.Device.Host, cfg.Device.Command, cfg.DeviceTimeout())
	if err != nil {
		log.Fatalf("Error configuring display device: %v", err)
	}
	log.Printf("Tasmota: sending to %s", device.Endpoint())

	clock := clockwork.NewRealClock()
	tracker := stats.NewTracker()

	var bus *mqttbus.Client
	if cfg.MQTT.Enabled {
		bus = connectBus(cfg)
	} else {
		log.Println("MQTT is disabled via configuration.")
	}

	// publisher and inbound stay nil without a bus: the notifier becomes a
	// no-op and the loop only ticks.
	var publisher display.Publisher
	var inbound <-chan commands.Command
	if bus != nil {
		publisher = bus
		inbound = bus.Commands()
		defer bus.Stop()
	}

	machine := display.NewMachine(display.Options{
		Clock:       clock,
		Location:    loc,
		Sink:        device,
		Notifier:    display.NewBusNotifier(publisher, cfg.MQTT.Topic),
		Observer:    tracker,
		SendTimeout: cfg.DeviceTimeout(),
	})
	dispatcher := commands.NewDispatcher(machine, tracker)
	ticker := display.NewTicker(machine, cfg.TickInterval())

	if publisher != nil {
		publishStartup(ctx, publisher, cfg.MQTT.Topic, machine.Now())
		log.Println("MQTT initialized and started.")
	}

	if interval := cfg.StatsInterval(); interval > 0 {
		go runStatusLogger(ctx, clock, interval, tracker, machine, bus)
	}

	log.Println("Starting display loop...")
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		runDisplayLoop(ctx, clock, ticker, dispatcher, inbound, tracker)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received %s, shutting down...", sig)
	cancel()
	<-loopDone
	log.Println("Display loop stopped")
}

// Purpose: Connect to the broker once.
// Key aspects: Failure is logged and returns nil; there is no retry.
// Upstream: main startup.
// Downstream: mqttbus.Client.Connect.
func connectBus(cfg *config.Config) *mqttbus.Client {
	log.Printf("Initializing MQTT connection to %s:%d...", cfg.MQTT.Host, cfg.MQTT.Port)
	bus := mqttbus.NewClient(mqttbus.Options{
		Host:           cfg.MQTT.Host,
		Port:           cfg.MQTT.Port,
		Root:           cfg.MQTT.Topic,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ClientID:       cfg.MQTT.ClientID,
		QueueSize:      cfg.MQTT.QueueSize,
		PublishTimeout: cfg.PublishTimeout(),
		MaxPayload:     cfg.MQTT.MaxPayloadBytes,
	})
	if err := bus.Connect(); err != nil {
		log.Printf("Failed to connect to MQTT: %v", err)
		log.Println("Continuing without MQTT.")
		return nil
	}
	return bus
}

// Purpose: Announce startup on the bus.
// Key aspects: Publishes <root>/start, then <root>/clear and <root>/time, all
// with {"at": ...}. The last two loop back through the subscription and put
// the display into a known state.
// Upstream: main startup.
// Downstream: display.Publisher.Publish.
func publishStartup(ctx context.Context, pub display.Publisher, root string, at time.Time) {
	payload, err := display.EncodeAnnouncement(at.Format(display.TimestampLayout))
	if err != nil {
		log.Printf("MQTT: %v", err)
		return
	}
	for _, suffix := range []string{startSuffix, clearSuffix, timeSuffix} {
		topic := display.Topic(root, suffix)
		if err := pub.Publish(ctx, topic, payload); err != nil {
			log.Printf("MQTT: publish %s failed: %v", topic, err)
		}
	}
}

// Purpose: Serialize clock ticks and inbound commands on one goroutine.
// Key aspects: A command dispatch and a tick never interleave; ticks fire
// once immediately, then every ticker interval. A closed inbound queue leaves
// the loop ticking.
// Upstream: main.
// Downstream: display.Ticker.Tick and commands.Dispatcher.Dispatch.
func runDisplayLoop(ctx context.Context, clock clockwork.Clock, ticker *display.Ticker, dispatcher *commands.Dispatcher, inbound <-chan commands.Command, tracker *stats.Tracker) {
	tick := func() {
		pushed := ticker.Tick(ctx)
		if tracker != nil {
			tracker.RecordTick(pushed)
		}
	}

	t := clock.NewTicker(ticker.Interval())
	defer t.Stop()
	tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			tick()
		case cmd, ok := <-inbound:
			if !ok {
				inbound = nil
				continue
			}
			dispatcher.Dispatch(ctx, cmd)
		}
	}
}

// Purpose: Periodically log counters and current display state.
// Key aspects: Reads state through the machine lock; never mutates it.
// Upstream: main when stats.interval_seconds > 0.
// Downstream: stats.Tracker.SnapshotLines.
func runStatusLogger(ctx context.Context, clock clockwork.Clock, interval time.Duration, tracker *stats.Tracker, machine *display.Machine, bus *mqttbus.Client) {
	t := clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.Chan():
			for _, line := range statusLines(now, tracker, machine, bus) {
				log.Print(line)
			}
		}
	}
}

func statusLines(now time.Time, tracker *stats.Tracker, machine *display.Machine, bus *mqttbus.Client) []string {
	snap := machine.Snapshot()
	busState := "disabled"
	if bus != nil {
		busState = "disconnected"
		if bus.IsConnected() {
			busState = "connected"
		}
		busState = fmt.Sprintf("%s (received=%d dropped=%d)", busState, bus.Received(), bus.Dropped())
	}
	lines := []string{fmt.Sprintf("Display: mode=%s display=%s | MQTT: %s", snap.Mode, snap.Display, busState)}
	return append(lines, tracker.SnapshotLines(now)...)
}
