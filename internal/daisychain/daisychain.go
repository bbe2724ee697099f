// Package daisychain runs the heartbeat shared by alarm modules on one line.
//
// The master toggles the line every pulse period. Each slave watches for
// edges: a settled edge marks the chain as seen, and a countdown raises a
// daisy-chain tamper alarm when a whole window passes with a channel armed and
// no edge at all.
package daisychain

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/sweeney/alarm-module/internal/gpio"
	"github.com/sweeney/alarm-module/internal/logic"
	"github.com/sweeney/alarm-module/internal/timer"
)

// Default timings.
const (
	DefaultPulse    = 500 * time.Millisecond
	DefaultDebounce = 250 * time.Millisecond
	DefaultWindow   = 3000 * time.Millisecond
)

// Timing configures the heartbeat. Zero fields take the defaults.
type Timing struct {
	Pulse    time.Duration
	Debounce time.Duration
	Window   time.Duration
}

// Chain is one unit's end of the daisy chain. The role is fixed at construction.
type Chain struct {
	lines   gpio.Lines
	sched   *timer.Scheduler
	machine *logic.Machine
	pin     int
	master  bool

	pulse     *timer.Timer
	debounce  *timer.Timer
	countdown *timer.Timer

	edgeSeen atomic.Bool

	// Debugf, when set, receives verbose trace lines.
	Debugf func(format string, args ...any)
}

// New creates the chain endpoint on pin.
func New(lines gpio.Lines, sched *timer.Scheduler, machine *logic.Machine, pin int, master bool, timing Timing) *Chain {
	if timing.Pulse <= 0 {
		timing.Pulse = DefaultPulse
	}
	if timing.Debounce <= 0 {
		timing.Debounce = DefaultDebounce
	}
	if timing.Window <= 0 {
		timing.Window = DefaultWindow
	}

	c := &Chain{
		lines:   lines,
		sched:   sched,
		machine: machine,
		pin:     pin,
		master:  master,
	}
	c.pulse = &timer.Timer{Interval: timing.Pulse, Mode: timer.Periodic, Handler: c.onPulse}
	c.debounce = &timer.Timer{Interval: timing.Debounce, Mode: timer.OneShot, Handler: c.onDebounce}
	c.countdown = &timer.Timer{Interval: timing.Window, Mode: timer.Periodic, Handler: c.onCountdown}
	return c
}

// Init requests the line and starts the role's timer.
func (c *Chain) Init() error {
	if c.master {
		if err := c.lines.Output(c.pin, false); err != nil {
			return fmt.Errorf("daisy chain output: %w", err)
		}
		c.sched.Start(c.pulse)
		log.Printf("daisychain: master, heartbeat on pin %d", c.pin)
		return nil
	}

	if err := c.lines.Input(c.pin, gpio.PullUp, c.onEdge); err != nil {
		return fmt.Errorf("daisy chain input: %w", err)
	}
	// Tamper stays unarmed until the first settled edge.
	c.sched.Start(c.countdown)
	log.Printf("daisychain: slave, watching pin %d", c.pin)
	return nil
}

// Master reports the role.
func (c *Chain) Master() bool {
	return c.master
}

// onEdge runs on the GPIO goroutine.
func (c *Chain) onEdge(int) {
	c.edgeSeen.Store(true)
	c.sched.Restart(c.debounce)
}

func (c *Chain) onPulse() {
	if err := c.lines.Toggle(c.pin); err != nil {
		log.Printf("daisychain: toggle: %v", err)
	}
}

func (c *Chain) onDebounce() {
	c.machine.SetDaisyChainTamperArmed(true)
}

func (c *Chain) onCountdown() {
	seen := c.edgeSeen.Swap(false)
	if seen {
		return
	}
	if c.machine.AnyChannelArmed() && c.machine.DaisyChainTamperArmed() {
		c.debugf("heartbeat lost")
		c.machine.AlarmEvent(logic.CauseDaisyChain)
		c.machine.SetDaisyChainTamperArmed(false)
	}
}

func (c *Chain) debugf(format string, args ...any) {
	if c.Debugf != nil {
		c.Debugf(format, args...)
	}
}
