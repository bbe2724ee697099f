package genio

import (
	"fmt"
	"log"

	"github.com/sweeney/alarm-module/internal/gpio"
	"github.com/sweeney/alarm-module/internal/logic"
)

// Init requests every line, reads the boot levels and installs the module as
// the machine's arm gate. Call it after the machine's own Init.
func (g *IO) Init() error {
	// The dead-man switch keeps the battery connected while high.
	if err := g.lines.Output(g.pins.Deadman, true); err != nil {
		return fmt.Errorf("deadman: %w", err)
	}
	// Only shelf storage may drop it; a restart must not.
	if err := g.lines.Keep(g.pins.Deadman); err != nil {
		return fmt.Errorf("deadman: %w", err)
	}

	for ch, pin := range g.pins.Channels {
		ch := ch
		if err := g.lines.Input(pin, gpio.PullUp, func(int) { g.sched.Restart(g.chanDebounce[ch]) }); err != nil {
			return fmt.Errorf("channel %d: %w", ch, err)
		}
	}
	// No pull on power-good: the divider's lower resistor is weaker than the pull-up.
	if err := g.lines.Input(g.pins.PowerGood, gpio.PullNone, g.powerEdge); err != nil {
		return fmt.Errorf("power good: %w", err)
	}
	if err := g.lines.Input(g.pins.NotMaster, gpio.PullUp, nil); err != nil {
		return fmt.Errorf("nMASTER: %w", err)
	}
	if err := g.lines.Input(g.pins.NotDisarm, gpio.PullNone, func(int) { g.sched.Restart(g.keyDebounce) }); err != nil {
		return fmt.Errorf("nDISARM: %w", err)
	}

	for ch, pin := range g.pins.Channels {
		high, err := g.lines.Level(pin)
		if err != nil {
			return fmt.Errorf("read channel %d: %w", ch, err)
		}
		g.channels.Reset(ch, !high)
	}

	powered, err := g.lines.Level(g.pins.PowerGood)
	if err != nil {
		return fmt.Errorf("read power good: %w", err)
	}
	notMaster, err := g.lines.Level(g.pins.NotMaster)
	if err != nil {
		return fmt.Errorf("read nMASTER: %w", err)
	}
	canArm, err := g.lines.Level(g.pins.NotDisarm)
	if err != nil {
		return fmt.Errorf("read nDISARM: %w", err)
	}

	g.module = logic.ModuleStatus{
		IsMaster:    !notMaster,
		Powered:     powered,
		NotCharging: !powered,
	}
	g.canArm = canArm

	// Only the master watches for power tamper.
	g.machine.SetPowerTamperArmed(g.module.IsMaster)
	g.machine.ClearPowerTamperAlarm()
	g.machine.SetGate(g)

	if !powered {
		g.sched.Start(g.batteryLimit)
	}

	log.Printf("genio: master=%v powered=%v canArm=%v cables=%s",
		g.module.IsMaster, powered, canArm, cableSummary(g.channels))
	return nil
}

func cableSummary(c *logic.Channels) string {
	b := make([]byte, logic.ChannelCount)
	for i, s := range c.All() {
		if s.CablePresent {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}
