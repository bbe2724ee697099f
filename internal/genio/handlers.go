package genio

import (
	"log"

	"github.com/sweeney/alarm-module/internal/logic"
)

// powerEdge runs on the GPIO goroutine. The debounced handler decides whether
// power is really good again; until then the module reports unpowered.
func (g *IO) powerEdge(int) {
	g.sched.Restart(g.powerDebounce)
	g.sched.Post(func() { g.module.Powered = false })
}

// onChannel is the debounced handler for channel ch. High means the switch is open.
func (g *IO) onChannel(ch int) {
	high, err := g.lines.Level(g.pins.Channels[ch])
	if err != nil {
		log.Printf("genio: read channel %d: %v", ch, err)
		return
	}

	if high {
		g.channels.SetCablePresent(ch, false)
		g.debugf("channel %d switch opened", ch)

		st := g.channels.State(ch)
		if st.Armed && !st.Alarming {
			g.machine.AlarmEvent(logic.ChannelCause(ch))
			g.channels.SetAlarming(ch, true)
		}
		return
	}

	g.channels.SetCablePresent(ch, true)
	g.debugf("channel %d switch closed", ch)
	g.machine.ResetAutoArmTimer()
}

func (g *IO) onPowerGood() {
	high, err := g.lines.Level(g.pins.PowerGood)
	if err != nil {
		log.Printf("genio: read power good: %v", err)
		return
	}

	if high {
		wasPowered := g.module.Powered
		g.module.Powered = true
		g.module.NotCharging = false
		g.module.ShutDown = false
		g.module.DeepSleep = false
		g.sched.Stop(g.shelfStorage)
		g.sched.Stop(g.batteryLimit)
		g.sched.Stop(g.masterConfirm)
		g.machine.ResetAutoArmTimer()
		g.notify.StopBuzzerPattern(logic.PatternDeepSleep)

		// Only the master raises this cause, so being the only one also means master.
		if g.machine.OnlyPowerTamperAlarming() {
			g.machine.SetPowerTamperArmed(true)
			g.notify.StopBuzzerAlarm()
		}
		g.machine.ClearPowerTamperAlarm()
		if !wasPowered {
			log.Printf("genio: power restored")
		}
		return
	}

	g.module.Powered = false
	g.module.NotCharging = true
	if !g.sched.Running(g.batteryLimit) && !g.module.ShutDown && !g.module.DeepSleep {
		log.Printf("genio: power lost, on battery")
		g.sched.Start(g.batteryLimit)
	}
	if g.module.IsMaster && g.machine.IsSystemArmed() {
		g.sched.Start(g.masterConfirm)
	}
}

// onMasterConfirm runs one debounce after a confirmed power loss on an armed
// master. A disarm inside that window cancels the tamper.
func (g *IO) onMasterConfirm() {
	if !g.machine.IsSystemArmed() {
		g.debugf("nMASTER: disarmed before confirm, no tamper")
		return
	}
	high, err := g.lines.Level(g.pins.NotMaster)
	if err != nil {
		log.Printf("genio: read nMASTER: %v", err)
		return
	}
	if high {
		g.machine.AlarmEvent(logic.CausePowerTamper)
	}
}

// onDisarmKey: high means no key, so the unit may arm. Low keeps it disarmed.
func (g *IO) onDisarmKey() {
	high, err := g.lines.Level(g.pins.NotDisarm)
	if err != nil {
		log.Printf("genio: read nDISARM: %v", err)
		return
	}
	g.canArm = high
	if high {
		armed := g.machine.ArmRequest(false, logic.ArmIgnoreNone)
		g.debugf("nDISARM: arm requested, armed=%v", armed)
		return
	}
	g.machine.Disarm(0)
	g.debugf("nDISARM: disarm")
}

func (g *IO) onBatteryLimit() {
	if g.machine.IsSystemArmed() {
		log.Printf("genio: battery time limit reached while armed, entering deep sleep")
		g.module.DeepSleep = true
		g.notify.StartBuzzerPattern(logic.PatternDeepSleep)
		g.notify.RefreshLED()
		return
	}
	log.Printf("genio: battery time limit reached while disarmed, shelf storage")
	g.module.ShutDown = true
	g.sched.Start(g.shelfStorage)
}

func (g *IO) onShelfStorage() {
	log.Printf("genio: releasing dead-man switch")
	if err := g.lines.Set(g.pins.Deadman, false); err != nil {
		log.Printf("genio: deadman: %v", err)
	}
}

func (g *IO) debugf(format string, args ...any) {
	if g.Debugf != nil {
		g.Debugf(format, args...)
	}
}
