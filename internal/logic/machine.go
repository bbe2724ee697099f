package logic

import (
	"log"
	"time"

	"github.com/sweeney/alarm-module/internal/timer"
)

// Default timings.
const (
	DefaultAutoArm        = 60 * time.Second
	DefaultFactoryAutoArm = 15 * time.Minute
	DefaultSilenceAfter   = 5 * time.Minute
	DefaultDisarmFlash    = time.Second
)

// Timing configures the state machine's timers. Zero fields take the defaults.
type Timing struct {
	AutoArm        time.Duration
	FactoryAutoArm time.Duration
	SilenceAfter   time.Duration
	DisarmFlash    time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.AutoArm <= 0 {
		t.AutoArm = DefaultAutoArm
	}
	if t.FactoryAutoArm <= 0 {
		t.FactoryAutoArm = DefaultFactoryAutoArm
	}
	if t.SilenceAfter <= 0 {
		t.SilenceAfter = DefaultSilenceAfter
	}
	if t.DisarmFlash <= 0 {
		t.DisarmFlash = DefaultDisarmFlash
	}
	return t
}

// Notifier receives the machine's side effects. Calls are fire-and-forget.
type Notifier interface {
	RefreshLED()
	StartBuzzerAlarm()
	StopBuzzerAlarm()
	StartBuzzerPattern(p Pattern)
	StopBuzzerPattern(p Pattern)
	SetDisarmFlash(high bool)
	ToggleDisarmFlash()
}

// ArmGate reports the hardware preconditions for an arm sweep.
type ArmGate interface {
	PowerGood() bool
	CanArm() bool
}

type openGate struct{}

func (openGate) PowerGood() bool { return true }
func (openGate) CanArm() bool    { return true }

// Machine owns the alarm status and the arming timers. All methods must be
// called from the scheduler's main loop.
type Machine struct {
	sched    *timer.Scheduler
	channels *Channels
	notify   Notifier
	gate     ArmGate
	timing   Timing

	status AlarmStatus

	autoArm         *timer.Timer
	disarmDuration  *timer.Timer
	silenceDeadline *timer.Timer
	flash           *timer.Timer

	events []Event
	counts EventCounts

	// Debugf, when set, receives verbose trace lines.
	Debugf func(format string, args ...any)
}

// NewMachine creates a disarmed machine. Call Init to start the auto-arm timer.
func NewMachine(sched *timer.Scheduler, channels *Channels, notify Notifier, timing Timing) *Machine {
	timing = timing.withDefaults()
	m := &Machine{
		sched:    sched,
		channels: channels,
		notify:   notify,
		gate:     openGate{},
		timing:   timing,
	}
	m.autoArm = &timer.Timer{Interval: timing.AutoArm, Mode: timer.Periodic, Handler: m.onAutoArm}
	m.disarmDuration = &timer.Timer{Mode: timer.OneShot, Handler: m.onDisarmDuration}
	m.silenceDeadline = &timer.Timer{Interval: timing.SilenceAfter, Mode: timer.OneShot, Handler: m.onSilenceDeadline}
	m.flash = &timer.Timer{Interval: timing.DisarmFlash, Mode: timer.Periodic, Handler: m.onFlash}
	return m
}

// SetGate installs the arm preconditions. A nil gate always allows arming.
func (m *Machine) SetGate(g ArmGate) {
	if g == nil {
		g = openGate{}
	}
	m.gate = g
}

// Init puts the machine in the disarmed state and starts auto-arm. factory
// selects the longer auto-arm interval used by units still in factory mode.
func (m *Machine) Init(factory bool) {
	if factory {
		m.autoArm.Interval = m.timing.FactoryAutoArm
	} else {
		m.autoArm.Interval = m.timing.AutoArm
	}
	m.notify.SetDisarmFlash(true)
	m.Disarm(0)
	m.sched.Start(m.autoArm)
	m.events = nil
	m.counts = EventCounts{}
}

// ArmRequest arms every channel that is ready. It never fails outright: the
// result is the system armed flag. disarmOnFail and ignore are accepted for
// tether and RFID preconditions this hardware does not have, so they do not
// change the outcome.
func (m *Machine) ArmRequest(disarmOnFail bool, ignore ArmIgnore) bool {
	m.debugf("arm request (disarmOnFail=%v ignore=%d)", disarmOnFail, ignore)
	m.sweep()
	m.ResetAutoArmTimer()
	return m.status.Armed
}

// sweep arms present channels when power is good and the disarm key allows it.
func (m *Machine) sweep() {
	if m.sched.Running(m.disarmDuration) {
		m.debugf("arm: skipped, disarm duration running")
		return
	}
	if !m.gate.PowerGood() || !m.gate.CanArm() {
		m.debugf("arm: skipped, power good=%v can arm=%v", m.gate.PowerGood(), m.gate.CanArm())
		return
	}

	wasArmed := m.status.Armed
	for ch := 0; ch < ChannelCount; ch++ {
		st := m.channels.State(ch)
		if !st.CablePresent {
			continue
		}
		if !st.Armed || m.status.SilentAlarm {
			m.channels.SetArmed(ch, true)
			m.status.Armed = true
			m.sched.Stop(m.flash)
		}
	}
	if m.channels.AnyArmed() {
		m.status.Armed = true
	}
	if m.status.Armed && !wasArmed {
		m.notify.SetDisarmFlash(true)
		m.record(EventArmed, 0)
		m.notify.RefreshLED()
	}
}

// Arm arms every present channel and forces the system armed, clearing any
// silent or latched alarm.
func (m *Machine) Arm() {
	for ch := 0; ch < ChannelCount; ch++ {
		st := m.channels.State(ch)
		if st.CablePresent && !st.Armed {
			m.channels.SetArmed(ch, true)
		}
	}
	m.sched.Stop(m.flash)
	m.notify.SetDisarmFlash(true)

	m.status.Armed = true
	m.status.SilentAlarm = false
	m.status.ChannelAlarm = false
	m.status.PowerTamperAlarm = false
	m.status.DaisyChainTamperAlarm = false

	m.sched.Stop(m.disarmDuration)
	m.record(EventArmed, 0)
	m.notify.RefreshLED()
}

// Disarm clears every alarm and disarms all channels. A non-zero duration
// holds off auto-arm for that many seconds.
func (m *Machine) Disarm(seconds uint16) {
	if seconds > 0 {
		m.disarmDuration.Interval = time.Duration(seconds) * time.Second
		m.sched.Restart(m.disarmDuration)
	}

	wasArmed := m.status.Armed || m.status.AnyCause()

	m.status.Armed = false
	m.status.SilentAlarm = false
	m.status.ChannelAlarm = false
	m.status.PowerTamperAlarm = false
	m.status.DaisyChainTamperAlarm = false
	m.channels.DisarmAll()

	m.ResetAutoArmTimer()
	m.notify.StopBuzzerAlarm()
	m.sched.Stop(m.silenceDeadline)
	m.sched.Start(m.flash)

	if wasArmed {
		m.record(EventDisarmed, 0)
	}
	m.notify.RefreshLED()
}

// AlarmEvent latches an alarm cause. A cause only takes effect while its own
// arming flag is set: the system armed flag for channels, the matching tamper
// flag for power and daisy-chain.
func (m *Machine) AlarmEvent(cause Cause) {
	s := &m.status
	if !s.Armed && !s.DaisyChainTamperArmed && !s.PowerTamperArmed {
		return
	}

	raised := false
	switch {
	case cause.IsChannel():
		if s.Armed {
			s.ChannelAlarm = true
			raised = true
		}
	case cause == CausePowerTamper:
		if s.PowerTamperArmed {
			s.PowerTamperAlarm = true
			raised = true
		}
	case cause == CauseDaisyChain:
		if s.DaisyChainTamperArmed {
			s.DaisyChainTamperAlarm = true
			raised = true
		}
	}

	if raised {
		log.Printf("alarm: %s", cause)
		s.SilentAlarm = false
		m.sched.Restart(m.silenceDeadline)
		m.notify.StartBuzzerAlarm()
		m.record(EventAlarm, cause)
	}
	m.notify.RefreshLED()
}

// SilenceAlarm acknowledges an active alarm. With nothing to silence, or on a
// disarmed unit, it disarms instead and returns false.
func (m *Machine) SilenceAlarm() bool {
	m.ResetAutoArmTimer()

	if m.IsAnyAlarmActive() && !m.status.SilentAlarm {
		m.status.SilentAlarm = true
		m.notify.StopBuzzerAlarm()
		m.sched.Stop(m.silenceDeadline)
		m.record(EventSilenced, 0)
		m.notify.RefreshLED()
		return true
	}

	m.notify.RefreshLED()
	m.Disarm(0)
	return false
}

// IsSystemArmed reports the system armed flag.
func (m *Machine) IsSystemArmed() bool {
	return m.status.Armed
}

// IsAnyAlarmActive reports whether the system is armed with a latched cause.
func (m *Machine) IsAnyAlarmActive() bool {
	return m.status.Armed && m.status.AnyCause()
}

// IsSilentAlarming reports whether the current alarm has been acknowledged.
func (m *Machine) IsSilentAlarming() bool {
	return m.status.SilentAlarm
}

// OnlyPowerTamperAlarming reports whether power tamper is the sole latched cause.
func (m *Machine) OnlyPowerTamperAlarming() bool {
	return m.status.PowerTamperAlarm && !m.status.ChannelAlarm && !m.status.DaisyChainTamperAlarm
}

// AlarmStatus returns a copy of the alarm status.
func (m *Machine) AlarmStatus() AlarmStatus {
	return m.status
}

// SetPowerTamperArmed arms or disarms the power tamper alarm (master only).
func (m *Machine) SetPowerTamperArmed(armed bool) {
	m.status.PowerTamperArmed = armed
}

// ClearPowerTamperAlarm clears the power tamper cause.
func (m *Machine) ClearPowerTamperAlarm() {
	m.status.PowerTamperAlarm = false
}

// SetDaisyChainTamperArmed sets the heartbeat-seen flag. Setting it also
// clears a latched daisy-chain alarm.
func (m *Machine) SetDaisyChainTamperArmed(armed bool) {
	m.status.DaisyChainTamperArmed = armed
	if armed {
		m.status.DaisyChainTamperAlarm = false
	}
}

// DaisyChainTamperArmed reports the heartbeat-seen flag.
func (m *Machine) DaisyChainTamperArmed() bool {
	return m.status.DaisyChainTamperArmed
}

// AnyChannelArmed reports whether at least one channel is armed.
func (m *Machine) AnyChannelArmed() bool {
	return m.channels.AnyArmed()
}

// ResetAutoArmTimer restarts the auto-arm countdown.
func (m *Machine) ResetAutoArmTimer() {
	m.sched.Restart(m.autoArm)
}

// SetAutoArmDefault switches between the factory and field auto-arm intervals.
func (m *Machine) SetAutoArmDefault(factory bool) {
	if factory {
		m.autoArm.Interval = m.timing.FactoryAutoArm
	} else {
		m.autoArm.Interval = m.timing.AutoArm
	}
	m.sched.Restart(m.autoArm)
}

// AutoArmInterval returns the active auto-arm interval.
func (m *Machine) AutoArmInterval() time.Duration {
	return m.autoArm.Interval
}

// StopDisarmDuration ends a temporary disarm window early.
func (m *Machine) StopDisarmDuration() {
	m.sched.Stop(m.disarmDuration)
}

// DisarmDurationRunning reports whether a temporary disarm window is open.
func (m *Machine) DisarmDurationRunning() bool {
	return m.sched.Running(m.disarmDuration)
}

// SilenceDeadlineRunning reports whether an unacknowledged alarm is counting down.
func (m *Machine) SilenceDeadlineRunning() bool {
	return m.sched.Running(m.silenceDeadline)
}

// DrainEvents returns and clears the queued transitions.
func (m *Machine) DrainEvents() []Event {
	ev := m.events
	m.events = nil
	return ev
}

// EventCountsSnapshot returns a copy of the event counters.
func (m *Machine) EventCountsSnapshot() EventCounts {
	return m.counts
}

func (m *Machine) onAutoArm() {
	m.sweep()
}

func (m *Machine) onDisarmDuration() {
	m.sched.Restart(m.autoArm)
}

func (m *Machine) onSilenceDeadline() {
	log.Printf("alarm: silence deadline reached")
	m.SilenceAlarm()
}

func (m *Machine) onFlash() {
	m.notify.ToggleDisarmFlash()
}

func (m *Machine) record(t EventType, cause Cause) {
	m.events = append(m.events, Event{
		Timestamp: m.sched.Now(),
		Type:      t,
		Cause:     cause,
		Status:    m.status,
	})
	switch t {
	case EventArmed:
		m.counts.Armed++
	case EventDisarmed:
		m.counts.Disarmed++
	case EventAlarm:
		m.counts.Alarms++
	case EventSilenced:
		m.counts.Silenced++
	}
}

func (m *Machine) debugf(format string, args ...any) {
	if m.Debugf != nil {
		m.Debugf(format, args...)
	}
}
