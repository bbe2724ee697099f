// Package genio turns raw GPIO edges into debounced channel, power and
// disarm-key events for the arming state machine.
//
// Edge callbacks only restart a debounce timer. When the timer expires the
// handler re-reads the pin and acts on the level it finds then, so any number
// of bounces inside the debounce interval collapse into one transition.
package genio

import (
	"time"

	"github.com/sweeney/alarm-module/internal/gpio"
	"github.com/sweeney/alarm-module/internal/logic"
	"github.com/sweeney/alarm-module/internal/timer"
)

// Default timings.
const (
	DefaultDebounce     = 250 * time.Millisecond
	DefaultBatteryLimit = 4 * time.Hour
	DefaultShelfStorage = 2 * time.Second
)

// Pins maps each input and the dead-man output to a GPIO offset.
type Pins struct {
	Channels  [logic.ChannelCount]int
	PowerGood int
	NotMaster int
	NotDisarm int
	Deadman   int
}

// Timing configures the debounce and battery-backup timers. Zero fields take
// the defaults.
type Timing struct {
	Debounce     time.Duration
	BatteryLimit time.Duration
	ShelfStorage time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.Debounce <= 0 {
		t.Debounce = DefaultDebounce
	}
	if t.BatteryLimit <= 0 {
		t.BatteryLimit = DefaultBatteryLimit
	}
	if t.ShelfStorage <= 0 {
		t.ShelfStorage = DefaultShelfStorage
	}
	return t
}

// IO owns the debounce timers and the module status. Apart from the edge
// callbacks, every method runs on the scheduler's main loop.
type IO struct {
	lines    gpio.Lines
	sched    *timer.Scheduler
	machine  *logic.Machine
	channels *logic.Channels
	notify   logic.Notifier
	pins     Pins
	timing   Timing

	module logic.ModuleStatus
	canArm bool

	chanDebounce  [logic.ChannelCount]*timer.Timer
	powerDebounce *timer.Timer
	masterConfirm *timer.Timer
	keyDebounce   *timer.Timer
	batteryLimit  *timer.Timer
	shelfStorage  *timer.Timer

	// Debugf, when set, receives verbose trace lines.
	Debugf func(format string, args ...any)
}

// New creates the event layer. Call Init to request the lines.
func New(lines gpio.Lines, sched *timer.Scheduler, machine *logic.Machine, channels *logic.Channels, notify logic.Notifier, pins Pins, timing Timing) *IO {
	timing = timing.withDefaults()
	g := &IO{
		lines:    lines,
		sched:    sched,
		machine:  machine,
		channels: channels,
		notify:   notify,
		pins:     pins,
		timing:   timing,
	}
	for ch := range g.chanDebounce {
		ch := ch
		g.chanDebounce[ch] = &timer.Timer{
			Interval: timing.Debounce,
			Mode:     timer.OneShot,
			Handler:  func() { g.onChannel(ch) },
		}
	}
	g.powerDebounce = &timer.Timer{Interval: timing.Debounce, Mode: timer.OneShot, Handler: g.onPowerGood}
	g.masterConfirm = &timer.Timer{Interval: timing.Debounce, Mode: timer.OneShot, Handler: g.onMasterConfirm}
	g.keyDebounce = &timer.Timer{Interval: timing.Debounce, Mode: timer.OneShot, Handler: g.onDisarmKey}
	g.batteryLimit = &timer.Timer{Interval: timing.BatteryLimit, Mode: timer.OneShot, Handler: g.onBatteryLimit}
	g.shelfStorage = &timer.Timer{Interval: timing.ShelfStorage, Mode: timer.OneShot, Handler: g.onShelfStorage}
	return g
}
