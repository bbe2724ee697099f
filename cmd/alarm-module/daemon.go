package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/alarm-module/internal/config"
	"github.com/sweeney/alarm-module/internal/console"
	"github.com/sweeney/alarm-module/internal/daisychain"
	"github.com/sweeney/alarm-module/internal/genio"
	"github.com/sweeney/alarm-module/internal/gpio"
	"github.com/sweeney/alarm-module/internal/logic"
	"github.com/sweeney/alarm-module/internal/modbus"
	"github.com/sweeney/alarm-module/internal/mqtt"
	"github.com/sweeney/alarm-module/internal/status"
	"github.com/sweeney/alarm-module/internal/store"
	"github.com/sweeney/alarm-module/internal/timer"
)

// commandTimeout bounds how long a remote command waits for the main loop.
const commandTimeout = 5 * time.Second

// daemon is one running alarm module. Everything except the outer surfaces
// (publisher, register mirror, tracker readers) is owned by runLoop. Those
// surfaces queue and return; network waits happen on their own goroutines.
type daemon struct {
	sched    *timer.Scheduler
	channels *logic.Channels
	machine  *logic.Machine
	io       *genio.IO
	chain    *daisychain.Chain
	out      *outputs
	console  *console.Console
	mode     store.Mode

	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	registers  *modbus.Mirror

	heartbeat    *timer.Timer
	heartbeatDue bool
	reboot       chan struct{}
}

// newDaemon builds the module on lines and brings every subsystem up in
// boot order: outputs, state machine, inputs, then the daisy chain, whose
// role depends on the strap read by the inputs.
func newDaemon(cfg *config.Config, lines gpio.Lines, clock timer.Clock, st store.Store) (*daemon, error) {
	rec, err := st.Load()
	if err != nil {
		log.Printf("store: %v, using factory defaults", err)
		rec = store.Default()
	}

	t := cfg.Timing
	dbg := new(console.Debug)
	sched := timer.NewScheduler(clock)

	d := &daemon{
		sched:    sched,
		channels: logic.NewChannels(),
		mode:     rec.Mode,
		tracker:  status.NewTracker(clock.Now(), statusConfig(cfg)),
		reboot:   make(chan struct{}, 1),
	}

	d.out = newOutputs(lines, sched, outputPins{
		Buzzer: cfg.GPIO.Buzzer,
		Siren:  cfg.GPIO.Siren,
		Flash:  cfg.GPIO.DisarmFlash,
	})
	d.out.debugf = dbg.Printf

	d.machine = logic.NewMachine(sched, d.channels, d.out, logic.Timing{
		AutoArm:        config.Ms(t.AutoArmMs),
		FactoryAutoArm: config.Ms(t.FactoryAutoArmMs),
		SilenceAfter:   config.Ms(t.SilenceMs),
		DisarmFlash:    config.Ms(t.DisarmFlashMs),
	})
	d.machine.Debugf = dbg.Printf

	pins := genio.Pins{
		PowerGood: cfg.GPIO.PowerGood,
		NotMaster: cfg.GPIO.NotMaster,
		NotDisarm: cfg.GPIO.NotDisarm,
		Deadman:   cfg.GPIO.Deadman,
	}
	copy(pins.Channels[:], cfg.GPIO.Channels)
	d.io = genio.New(lines, sched, d.machine, d.channels, d.out, pins, genio.Timing{
		Debounce:     config.Ms(t.DebounceMs),
		BatteryLimit: config.Ms(t.BatteryLimitMs),
		ShelfStorage: config.Ms(t.ShelfStorageMs),
	})
	d.io.Debugf = dbg.Printf
	d.out.attach(d.machine, d.io)

	if err := d.out.init(); err != nil {
		return nil, fmt.Errorf("init outputs: %w", err)
	}
	d.machine.Init(rec.Factory())
	if err := d.io.Init(); err != nil {
		return nil, fmt.Errorf("init inputs: %w", err)
	}

	d.chain = daisychain.New(lines, sched, d.machine, cfg.GPIO.DaisyChain, d.io.IsMaster(), daisychain.Timing{
		Pulse:    config.Ms(t.DaisyPulseMs),
		Debounce: config.Ms(t.DebounceMs),
		Window:   config.Ms(t.DaisyWindowMs),
	})
	d.chain.Debugf = dbg.Printf
	if err := d.chain.Init(); err != nil {
		return nil, fmt.Errorf("init daisy chain: %w", err)
	}

	d.console = console.New(d.machine, d.channels, d.io, d.out, st, dbg, console.Identity{
		Serial:       cfg.Device.Serial,
		Model:        cfg.Device.Model,
		ModelVersion: cfg.Device.ModelVersion,
		AppVersion:   version,
	})
	d.console.Reboot = d.requestReboot

	if hb := config.Ms(t.HeartbeatMs); hb > 0 {
		d.heartbeat = &timer.Timer{Interval: hb, Mode: timer.Periodic, Handler: func() { d.heartbeatDue = true }}
		sched.Start(d.heartbeat)
	}

	log.Printf("module: mode=%s master=%v auto-arm=%v", d.mode, d.io.IsMaster(), d.machine.AutoArmInterval())
	return d, nil
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		TickMs:        int64(cfg.Timing.TickMs),
		DebounceMs:    int64(cfg.Timing.DebounceMs),
		AutoArmMs:     int64(cfg.Timing.AutoArmMs),
		SilenceMs:     int64(cfg.Timing.SilenceMs),
		DaisyWindowMs: int64(cfg.Timing.DaisyWindowMs),
		HeartbeatMs:   int64(cfg.Timing.HeartbeatMs),
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      cfg.HTTP.Addr,
		SerialPort:    cfg.Serial.Port,
		Modbus:        cfg.Modbus.Endpoint,
	}
}

// runLoop is the main loop: it dispatches timers and posted work on every
// tick or wake-up, then publishes whatever changed.
func (d *daemon) runLoop(tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			d.shutdown(signalName(s))
			return nil
		case <-d.reboot:
			log.Printf("reboot requested, shutting down")
			d.shutdown("REBOOT")
			return nil
		case <-tick:
		case <-d.sched.Wake():
		}
		d.sched.Dispatch()
		d.flush()
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

// flush publishes drained events and refreshes every status consumer.
func (d *daemon) flush() {
	for _, ev := range d.machine.DrainEvents() {
		if ev.Type == logic.EventAlarm {
			log.Printf("event: %s cause=%s status=0x%02x", ev.Type, ev.Cause, ev.Status.Pack())
		} else {
			log.Printf("event: %s status=0x%02x", ev.Type, ev.Status.Pack())
		}
		if d.publisher == nil {
			continue
		}
		if err := d.publisher.Publish(ev); err != nil {
			log.Printf("publish error: %v", err)
		}
	}

	d.refresh()
	d.writeRegisters()

	if d.heartbeatDue {
		d.heartbeatDue = false
		d.sendHeartbeat()
	}
}

func (d *daemon) live() status.Live {
	return status.Live{
		Alarm:       d.machine.AlarmStatus(),
		Channels:    d.channels.All(),
		Module:      d.io.Status(),
		CanArm:      d.io.CanArm(),
		DaisyMaster: d.chain.Master(),
		Mode:        d.mode.String(),
		LED:         d.out.LED(),
		Buzzer:      d.out.Buzzer(),
		Counts:      d.machine.EventCountsSnapshot(),
	}
}

func (d *daemon) refresh() {
	d.tracker.Update(d.live())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

// writeRegisters offers the packed status words to the register mirror,
// which writes them on its own goroutine.
func (d *daemon) writeRegisters() {
	if d.registers == nil {
		return
	}
	d.registers.Offer(modbus.Encode(d.machine.AlarmStatus(), d.io.Status(), d.channels.All()))
}

// startup publishes the retained STARTUP event with a full snapshot.
func (d *daemon) startup() {
	d.refresh()
	snap := d.tracker.Snapshot()
	d.publishSystem(mqtt.SystemEvent{
		Timestamp:  d.sched.Now(),
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	})
}

func (d *daemon) shutdown(reason string) {
	d.refresh()
	snap := d.tracker.Snapshot()
	d.publishSystem(mqtt.SystemEvent{
		Timestamp:  d.sched.Now(),
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
	})
}

func (d *daemon) sendHeartbeat() {
	if net := readNetworkInfo(); net != nil {
		d.tracker.SetNetwork(net)
	}
	snap := d.tracker.Snapshot()
	log.Printf("heartbeat: uptime=%v armed=%d disarmed=%d alarms=%d silenced=%d",
		snap.Uptime().Round(time.Second), snap.Counts.Armed, snap.Counts.Disarmed, snap.Counts.Alarms, snap.Counts.Silenced)
	d.publishSystem(mqtt.SystemEvent{
		Timestamp:  d.sched.Now(),
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
	})
}

func (d *daemon) publishSystem(ev mqtt.SystemEvent) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", strings.ToLower(ev.Event), err)
		return
	}
	log.Printf("published %s event", strings.ToLower(ev.Event))
}

// execute runs a console line on the main loop. It returns "" if ctx ends
// before the loop gets to it.
func (d *daemon) execute(ctx context.Context, line string) string {
	var out string
	if err := d.sched.Call(ctx, func() { out = d.console.Execute(line) }); err != nil {
		return ""
	}
	return out
}

// onCommand handles a line from the MQTT command topic. The reply only goes
// to the log.
func (d *daemon) onCommand(line string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	reply := d.execute(ctx, line)
	log.Printf("mqtt: command %q: %s", line, strings.TrimSpace(reply))
}

func (d *daemon) requestReboot() error {
	select {
	case d.reboot <- struct{}{}:
	default:
	}
	return nil
}
