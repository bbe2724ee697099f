// Package console implements the two-letter service command set spoken over
// the debug UART and the MQTT command topic.
package console

import (
	"log"
	"sync/atomic"

	"github.com/sweeney/alarm-module/internal/logic"
	"github.com/sweeney/alarm-module/internal/store"
)

// Module reports the hardware side of the status dump.
type Module interface {
	Status() logic.ModuleStatus
	CanArm() bool
	PowerGood() bool
}

// Sounder drives the buzzer patterns and the disarmed-flash output.
type Sounder interface {
	StartBuzzerPattern(p logic.Pattern)
	StopBuzzerPattern(p logic.Pattern)
	Playing() logic.Pattern
	ToggleDisarmFlash()
	DisarmFlash() bool
}

// Identity is printed by GV.
type Identity struct {
	Serial       string
	Model        string
	ModelVersion string
	AppVersion   string
}

// Debug gates verbose trace lines. CR flips it.
type Debug struct {
	on atomic.Bool
}

// Enabled reports whether debug output is on.
func (d *Debug) Enabled() bool {
	return d.on.Load()
}

// Toggle flips debug output and returns the new setting.
func (d *Debug) Toggle() bool {
	for {
		old := d.on.Load()
		if d.on.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Printf logs only while debug output is on.
func (d *Debug) Printf(format string, args ...any) {
	if d.Enabled() {
		log.Printf("debug: "+format, args...)
	}
}

// Console executes command lines against the running module. Execute must be
// called from the scheduler's main loop.
type Console struct {
	machine  *logic.Machine
	channels *logic.Channels
	module   Module
	sound    Sounder
	store    store.Store
	debug    *Debug
	id       Identity

	// Reboot handles "RB 0". Nil leaves the request unanswered beyond the header.
	Reboot func() error

	// Battery returns the backup battery level in millivolts. Nil, or ok
	// false, makes BV answer NG.
	Battery func() (mv int, ok bool)
}

// New creates a Console.
func New(machine *logic.Machine, channels *logic.Channels, module Module, sound Sounder, st store.Store, debug *Debug, id Identity) *Console {
	if debug == nil {
		debug = &Debug{}
	}
	return &Console{
		machine:  machine,
		channels: channels,
		module:   module,
		sound:    sound,
		store:    st,
		debug:    debug,
		id:       id,
	}
}

// Debug returns the gate toggled by CR.
func (c *Console) Debug() *Debug {
	return c.debug
}
