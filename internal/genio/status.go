package genio

import "github.com/sweeney/alarm-module/internal/logic"

// PowerGood implements logic.ArmGate with the debounced power state.
func (g *IO) PowerGood() bool {
	return g.module.Powered
}

// CanArm implements logic.ArmGate: true while no disarm key is inserted.
func (g *IO) CanArm() bool {
	return g.canArm
}

// IsPowerGood returns the debounced power state. While unpowered it starts a
// re-check so a restore missed by the edge callback is still picked up.
func (g *IO) IsPowerGood() bool {
	if !g.sched.Running(g.powerDebounce) && !g.module.Powered {
		g.sched.Start(g.powerDebounce)
	}
	return g.module.Powered
}

// Status returns a copy of the module status.
func (g *IO) Status() logic.ModuleStatus {
	return g.module
}

// IsMaster reports the daisy-chain role read from the strap at boot.
func (g *IO) IsMaster() bool {
	return g.module.IsMaster
}

// BatteryLimitRunning reports whether the unit is counting down on battery.
func (g *IO) BatteryLimitRunning() bool {
	return g.sched.Running(g.batteryLimit)
}
