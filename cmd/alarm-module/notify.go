package main

import (
	"fmt"
	"log"
	"time"

	"github.com/sweeney/alarm-module/internal/gpio"
	"github.com/sweeney/alarm-module/internal/logic"
	"github.com/sweeney/alarm-module/internal/timer"
)

// patternLength is how long a non-looping buzzer pattern sounds.
const patternLength = 2 * time.Second

// LED states shown on the status page.
const (
	ledDisarmed    = "DISARMED"
	ledArmed       = "ARMED"
	ledAlarm       = "ALARM"
	ledSilentAlarm = "SILENT_ALARM"
	ledDeepSleep   = "DEEP_SLEEP"
)

type outputPins struct {
	Buzzer int
	Siren  int
	Flash  int
}

type moduleStatus interface {
	Status() logic.ModuleStatus
}

// outputs drives the buzzer, the siren relay and the disarmed-flash line.
// It implements logic.Notifier and console.Sounder. Main loop only.
type outputs struct {
	lines gpio.Lines
	sched *timer.Scheduler
	pins  outputPins

	machine *logic.Machine
	module  moduleStatus

	alarm   bool
	playing logic.Pattern
	flash   bool
	buzzer  bool
	led     string

	patternEnd *timer.Timer

	debugf func(format string, args ...any)
}

func newOutputs(lines gpio.Lines, sched *timer.Scheduler, pins outputPins) *outputs {
	o := &outputs{
		lines:  lines,
		sched:  sched,
		pins:   pins,
		led:    ledDisarmed,
		debugf: func(string, ...any) {},
	}
	o.patternEnd = &timer.Timer{Interval: patternLength, Mode: timer.OneShot, Handler: o.onPatternEnd}
	return o
}

// init requests the output lines, all driven low.
func (o *outputs) init() error {
	for name, pin := range map[string]int{"buzzer": o.pins.Buzzer, "siren": o.pins.Siren, "disarm flash": o.pins.Flash} {
		if err := o.lines.Output(pin, false); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// attach supplies the state the LED is derived from. Both are built after
// the outputs because they take the outputs as their notifier.
func (o *outputs) attach(m *logic.Machine, module moduleStatus) {
	o.machine = m
	o.module = module
}

func (o *outputs) RefreshLED() {
	led := o.ledState()
	if led != o.led {
		o.debugf("led: %s -> %s", o.led, led)
		o.led = led
	}
}

func (o *outputs) ledState() string {
	if o.machine == nil {
		return ledDisarmed
	}
	if o.module != nil && o.module.Status().DeepSleep {
		return ledDeepSleep
	}
	s := o.machine.AlarmStatus()
	switch {
	case s.AnyCause() && s.SilentAlarm:
		return ledSilentAlarm
	case s.AnyCause():
		return ledAlarm
	case s.Armed:
		return ledArmed
	}
	return ledDisarmed
}

func (o *outputs) StartBuzzerAlarm() {
	o.alarm = true
	o.set(o.pins.Siren, true)
	o.updateBuzzer()
}

func (o *outputs) StopBuzzerAlarm() {
	o.alarm = false
	o.set(o.pins.Siren, false)
	o.updateBuzzer()
}

func (o *outputs) StartBuzzerPattern(p logic.Pattern) {
	o.playing = p
	if looping(p) {
		o.sched.Stop(o.patternEnd)
	} else {
		o.sched.Restart(o.patternEnd)
	}
	o.debugf("buzzer: pattern 0x%02x", uint8(p))
	o.updateBuzzer()
}

func (o *outputs) StopBuzzerPattern(p logic.Pattern) {
	if o.playing != p {
		return
	}
	o.playing = logic.PatternNone
	o.sched.Stop(o.patternEnd)
	o.updateBuzzer()
}

func (o *outputs) SetDisarmFlash(high bool) {
	o.flash = high
	o.set(o.pins.Flash, high)
}

func (o *outputs) ToggleDisarmFlash() {
	o.SetDisarmFlash(!o.flash)
}

// Playing returns the pattern currently sounding.
func (o *outputs) Playing() logic.Pattern {
	return o.playing
}

// DisarmFlash returns the level last driven on the flash line.
func (o *outputs) DisarmFlash() bool {
	return o.flash
}

// LED returns the current LED state name.
func (o *outputs) LED() string {
	return o.led
}

// Buzzer reports whether the buzzer line is driven.
func (o *outputs) Buzzer() bool {
	return o.buzzer
}

func (o *outputs) onPatternEnd() {
	o.playing = logic.PatternNone
	o.updateBuzzer()
}

func (o *outputs) updateBuzzer() {
	on := o.alarm || o.playing != logic.PatternNone
	if on == o.buzzer {
		return
	}
	o.buzzer = on
	o.set(o.pins.Buzzer, on)
}

func (o *outputs) set(pin int, high bool) {
	if err := o.lines.Set(pin, high); err != nil {
		log.Printf("outputs: set pin %d: %v", pin, err)
	}
}

func looping(p logic.Pattern) bool {
	return p == logic.PatternDeepSleep || p == logic.PatternAlarm
}
