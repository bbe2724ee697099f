// Package logic contains the arming state machine and the channel registry.
// This package has NO hardware dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time comes from the timer.Scheduler it is built on.
package logic

import (
	"fmt"
	"time"
)

// ChannelCount is the number of sensor channels on an alarm module.
const ChannelCount = 12

// Cause identifies what raised an alarm.
type Cause uint8

// Channel causes are the channel index (0-11).
const (
	CausePowerTamper Cause = 12 // master lost power and nMASTER read high
	CauseDaisyChain  Cause = 13 // daisy-chain heartbeat missed while armed
)

// ChannelCause returns the cause code for a channel switch opening.
func ChannelCause(ch int) Cause {
	return Cause(ch)
}

// IsChannel reports whether c is a channel-switch cause.
func (c Cause) IsChannel() bool {
	return c < ChannelCount
}

func (c Cause) String() string {
	switch {
	case c.IsChannel():
		return fmt.Sprintf("CHANNEL_%d_SWITCH_WAS_OPENED", int(c))
	case c == CausePowerTamper:
		return "POWER_TAMPER_nMASTER_ALARM"
	case c == CauseDaisyChain:
		return "DAISY_CHAIN_TAMPER_ALARM"
	}
	return fmt.Sprintf("UNKNOWN_CAUSE_%d", int(c))
}

// ArmIgnore selects arm preconditions to bypass.
type ArmIgnore uint8

const (
	ArmIgnoreNone   ArmIgnore = 0
	ArmIgnoreTether ArmIgnore = 1
	ArmIgnoreRFID   ArmIgnore = 2
)

// Pattern is a buzzer pattern number.
type Pattern uint8

const (
	PatternNone      Pattern = 0x00
	PatternError     Pattern = 0x01
	PatternSucceed   Pattern = 0x03
	PatternBatLow    Pattern = 0x06
	PatternNoPower   Pattern = 0x0E
	PatternDeepSleep Pattern = 0x0F
	PatternWarning   Pattern = 0x10
	PatternAlert     Pattern = 0x11
	PatternAlarm     Pattern = 0xFF
)

// AlarmStatus is the core arming record.
type AlarmStatus struct {
	Armed                 bool
	SilentAlarm           bool
	ChannelAlarm          bool
	PowerTamperArmed      bool
	PowerTamperAlarm      bool
	DaisyChainTamperAlarm bool
	DaisyChainTamperArmed bool
}

// AlarmStatus bit positions.
const (
	BitArmed = iota
	BitSilentAlarm
	BitChannelAlarm
	BitPowerTamperArmed
	BitPowerTamperAlarm
	BitDaisyChainTamperAlarm
	BitDaisyChainTamperArmed
)

// Pack encodes the status as the numeric code reported by GS and the status registers.
func (s AlarmStatus) Pack() uint16 {
	return packBits(s.Armed, s.SilentAlarm, s.ChannelAlarm, s.PowerTamperArmed,
		s.PowerTamperAlarm, s.DaisyChainTamperAlarm, s.DaisyChainTamperArmed)
}

// AnyCause reports whether any alarm cause flag is latched.
func (s AlarmStatus) AnyCause() bool {
	return s.ChannelAlarm || s.PowerTamperAlarm || s.DaisyChainTamperAlarm
}

// ChannelState is the mutable runtime state of one channel.
type ChannelState struct {
	CablePresent bool
	Armed        bool
	Alarming     bool
}

// Pack encodes the channel state: bit 0 cablePresent, bit 1 armed, bit 2 alarming.
func (c ChannelState) Pack() uint16 {
	return packBits(c.CablePresent, c.Armed, c.Alarming)
}

// ModuleStatus is system-wide hardware status.
type ModuleStatus struct {
	IsMaster     bool
	Powered      bool
	NotCharging  bool
	DeepSleep    bool
	ShutDown     bool
	SwitchLifted bool
}

// Pack encodes the module status: isMaster, Powered, notCharging, deepSleep,
// shutDown, switchLifted from bit 0 up.
func (m ModuleStatus) Pack() uint16 {
	return packBits(m.IsMaster, m.Powered, m.NotCharging, m.DeepSleep, m.ShutDown, m.SwitchLifted)
}

func packBits(bits ...bool) uint16 {
	var v uint16
	for i, b := range bits {
		if b {
			v |= 1 << uint(i)
		}
	}
	return v
}

// EventType represents a state machine transition to be published.
type EventType string

const (
	EventArmed    EventType = "ARMED"
	EventDisarmed EventType = "DISARMED"
	EventAlarm    EventType = "ALARM"
	EventSilenced EventType = "SILENCED"
)

// Event is one state machine transition.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Cause     Cause // only meaningful for EventAlarm
	Status    AlarmStatus
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Armed    int
	Disarmed int
	Alarms   int
	Silenced int
}
