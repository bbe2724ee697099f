package logic

import (
	"testing"
	"time"

	"github.com/sweeney/alarm-module/internal/timer"
)

// fakeNotifier records side effects for assertions.
type fakeNotifier struct {
	buzzerOn      bool
	buzzerStarts  int
	buzzerStops   int
	ledRefreshes  int
	flashHigh     bool
	flashToggles  int
	patterns      []Pattern
	stoppedPatter []Pattern
}

func (f *fakeNotifier) RefreshLED()       { f.ledRefreshes++ }
func (f *fakeNotifier) StartBuzzerAlarm() { f.buzzerOn = true; f.buzzerStarts++ }
func (f *fakeNotifier) StopBuzzerAlarm()  { f.buzzerOn = false; f.buzzerStops++ }
func (f *fakeNotifier) StartBuzzerPattern(p Pattern) {
	f.patterns = append(f.patterns, p)
}
func (f *fakeNotifier) StopBuzzerPattern(p Pattern) {
	f.stoppedPatter = append(f.stoppedPatter, p)
}
func (f *fakeNotifier) SetDisarmFlash(high bool) { f.flashHigh = high }
func (f *fakeNotifier) ToggleDisarmFlash() {
	f.flashHigh = !f.flashHigh
	f.flashToggles++
}

// fakeGate lets tests block the arm sweep.
type fakeGate struct {
	powerGood bool
	canArm    bool
}

func (g *fakeGate) PowerGood() bool { return g.powerGood }
func (g *fakeGate) CanArm() bool    { return g.canArm }

type fixture struct {
	clock    *timer.ManualClock
	sched    *timer.Scheduler
	channels *Channels
	notify   *fakeNotifier
	gate     *fakeGate
	m        *Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := timer.NewManualClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	sched := timer.NewScheduler(clock)
	channels := NewChannels()
	notify := &fakeNotifier{}
	gate := &fakeGate{powerGood: true, canArm: true}
	m := NewMachine(sched, channels, notify, Timing{})
	m.SetGate(gate)
	m.Init(false)
	return &fixture{clock: clock, sched: sched, channels: channels, notify: notify, gate: gate, m: m}
}

// advance moves time forward and runs whatever fell due.
func (f *fixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.sched.Dispatch()
}

// armWith puts cables on the given channels and runs an arm request.
func (f *fixture) armWith(t *testing.T, chans ...int) {
	t.Helper()
	for _, ch := range chans {
		f.channels.SetCablePresent(ch, true)
	}
	if !f.m.ArmRequest(false, ArmIgnoreNone) {
		t.Fatal("arm request failed")
	}
}

func TestInitStartsDisarmed(t *testing.T) {
	f := newFixture(t)

	if f.m.IsSystemArmed() {
		t.Error("machine should start disarmed")
	}
	if f.m.AlarmStatus().Pack() != 0 {
		t.Errorf("expected zero status, got 0x%02x", f.m.AlarmStatus().Pack())
	}
	if f.m.AutoArmInterval() != DefaultAutoArm {
		t.Errorf("auto-arm interval: got %v, want %v", f.m.AutoArmInterval(), DefaultAutoArm)
	}
	if len(f.m.DrainEvents()) != 0 {
		t.Error("init should not leave queued events")
	}
}

func TestInitFactoryInterval(t *testing.T) {
	f := newFixture(t)
	f.m.Init(true)
	if f.m.AutoArmInterval() != DefaultFactoryAutoArm {
		t.Errorf("factory auto-arm interval: got %v, want %v", f.m.AutoArmInterval(), DefaultFactoryAutoArm)
	}
	f.m.SetAutoArmDefault(false)
	if f.m.AutoArmInterval() != DefaultAutoArm {
		t.Errorf("field auto-arm interval: got %v, want %v", f.m.AutoArmInterval(), DefaultAutoArm)
	}
}

func TestArmRequestArmsPresentChannels(t *testing.T) {
	f := newFixture(t)
	f.channels.SetCablePresent(0, true)
	f.channels.SetCablePresent(3, true)

	// Push the auto-arm deadline close so the reset is observable.
	f.advance(50 * time.Second)

	if !f.m.ArmRequest(false, ArmIgnoreNone) {
		t.Fatal("expected system armed")
	}

	for ch := 0; ch < ChannelCount; ch++ {
		want := ch == 0 || ch == 3
		if got := f.channels.State(ch).Armed; got != want {
			t.Errorf("channel %d armed: got %v, want %v", ch, got, want)
		}
	}

	next, ok := f.sched.Next()
	if !ok {
		t.Fatal("expected pending timers")
	}
	// The auto-arm timer now expires a full interval after the request.
	if got := next.Sub(f.clock.Now()); got < time.Second {
		t.Errorf("unexpected near deadline %v after arm request", got)
	}

	ev := f.m.DrainEvents()
	if len(ev) != 1 || ev[0].Type != EventArmed {
		t.Fatalf("expected one ARMED event, got %+v", ev)
	}
}

func TestArmRequestNoCablesStaysDisarmed(t *testing.T) {
	f := newFixture(t)
	if f.m.ArmRequest(true, ArmIgnoreTether) {
		t.Error("nothing ready, should stay disarmed")
	}
	if f.channels.AnyArmed() {
		t.Error("no channel should be armed")
	}
}

func TestArmRequestBlockedByGate(t *testing.T) {
	f := newFixture(t)
	f.channels.SetCablePresent(1, true)

	f.gate.powerGood = false
	if f.m.ArmRequest(false, ArmIgnoreNone) {
		t.Error("should not arm without power")
	}

	f.gate.powerGood = true
	f.gate.canArm = false
	if f.m.ArmRequest(false, ArmIgnoreNone) {
		t.Error("should not arm with disarm key present")
	}

	f.gate.canArm = true
	if !f.m.ArmRequest(false, ArmIgnoreNone) {
		t.Error("should arm once preconditions hold")
	}
}

func TestArmRequestBlockedDuringDisarmDuration(t *testing.T) {
	f := newFixture(t)
	f.channels.SetCablePresent(2, true)

	f.m.Disarm(30)
	if !f.m.DisarmDurationRunning() {
		t.Fatal("disarm duration should be running")
	}
	if f.m.ArmRequest(false, ArmIgnoreNone) {
		t.Error("arm should be suppressed during disarm duration")
	}

	f.m.StopDisarmDuration()
	if !f.m.ArmRequest(false, ArmIgnoreNone) {
		t.Error("arm should succeed once the window is closed")
	}
}

func TestDisarmDurationRestartsAutoArm(t *testing.T) {
	f := newFixture(t)
	f.channels.SetCablePresent(5, true)

	f.m.Disarm(120)

	// Auto-arm would fire at 60s but is suppressed by the window.
	f.advance(61 * time.Second)
	if f.m.IsSystemArmed() {
		t.Fatal("auto-arm should be suppressed during the disarm window")
	}

	// Window closes at 120s and restarts auto-arm, which fires 60s later.
	f.advance(60 * time.Second)
	if f.m.IsSystemArmed() {
		t.Fatal("auto-arm should not fire the instant the window closes")
	}
	f.advance(60 * time.Second)
	if !f.m.IsSystemArmed() {
		t.Error("auto-arm should fire after the restarted interval")
	}
}

func TestAutoArmTimerArms(t *testing.T) {
	f := newFixture(t)
	f.channels.SetCablePresent(7, true)

	f.advance(DefaultAutoArm)
	if !f.m.IsSystemArmed() {
		t.Fatal("auto-arm should have armed channel 7")
	}
	if !f.channels.State(7).Armed {
		t.Error("channel 7 should be armed")
	}
}

func TestArmClearsAlarms(t *testing.T) {
	f := newFixture(t)
	f.armWith(t, 0)
	f.m.SetPowerTamperArmed(true)
	f.m.AlarmEvent(ChannelCause(0))
	f.m.AlarmEvent(CausePowerTamper)
	f.m.SilenceAlarm()
	f.m.Disarm(10)

	f.channels.SetCablePresent(4, true)
	f.m.Arm()

	s := f.m.AlarmStatus()
	if !s.Armed || s.SilentAlarm || s.AnyCause() {
		t.Errorf("unexpected status after Arm: %+v", s)
	}
	if f.m.DisarmDurationRunning() {
		t.Error("Arm should stop the disarm duration timer")
	}
	if !f.channels.State(4).Armed {
		t.Error("Arm should arm present channels")
	}
	if !f.notify.flashHigh {
		t.Error("flash output should be steady high when armed")
	}
}

func TestDisarmIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.armWith(t, 0, 1)
	f.m.AlarmEvent(ChannelCause(1))

	f.m.Disarm(0)
	first := f.m.AlarmStatus()
	firstChannels := f.channels.All()

	f.m.Disarm(0)
	if f.m.AlarmStatus() != first {
		t.Errorf("status changed on second disarm: %+v vs %+v", f.m.AlarmStatus(), first)
	}
	if f.channels.All() != firstChannels {
		t.Error("channels changed on second disarm")
	}
	if first.Armed || first.AnyCause() || first.SilentAlarm {
		t.Errorf("disarm left flags set: %+v", first)
	}
	if f.channels.AnyArmed() {
		t.Error("disarm left a channel armed")
	}
}

func TestDisarmSideEffects(t *testing.T) {
	f := newFixture(t)
	f.armWith(t, 0)
	f.m.AlarmEvent(ChannelCause(0))

	f.m.Disarm(0)

	if f.notify.buzzerOn {
		t.Error("disarm should stop the buzzer")
	}
	if f.m.SilenceDeadlineRunning() {
		t.Error("disarm should stop the silence deadline")
	}

	toggles := f.notify.flashToggles
	f.advance(3 * DefaultDisarmFlash)
	if f.notify.flashToggles-toggles != 3 {
		t.Errorf("expected 3 flash toggles, got %d", f.notify.flashToggles-toggles)
	}
}

func TestNoAlarmWhileDisarmed(t *testing.T) {
	f := newFixture(t)
	before := f.m.AlarmStatus()

	for c := Cause(0); c <= CauseDaisyChain; c++ {
		f.m.AlarmEvent(c)
		if f.m.AlarmStatus() != before {
			t.Fatalf("cause %s changed status while disarmed: %+v", c, f.m.AlarmStatus())
		}
	}
	if f.notify.buzzerStarts != 0 {
		t.Error("buzzer should not start while disarmed")
	}
}

func TestCauseNeedsItsOwnArmFlag(t *testing.T) {
	f := newFixture(t)
	f.m.SetPowerTamperArmed(true) // master unit, system disarmed

	f.m.AlarmEvent(ChannelCause(3))
	if f.m.AlarmStatus().ChannelAlarm {
		t.Error("channel alarm must not latch while the system is disarmed")
	}

	f.m.AlarmEvent(CauseDaisyChain)
	if f.m.AlarmStatus().DaisyChainTamperAlarm {
		t.Error("daisy-chain alarm must not latch without daisy-chain arming")
	}

	f.m.AlarmEvent(CausePowerTamper)
	if !f.m.AlarmStatus().PowerTamperAlarm {
		t.Error("power tamper alarm should latch while power tamper is armed")
	}
}

func TestChannelAlarmStartsBuzzerAndDeadline(t *testing.T) {
	f := newFixture(t)
	f.armWith(t, 2)

	f.m.AlarmEvent(ChannelCause(2))

	s := f.m.AlarmStatus()
	if !s.ChannelAlarm {
		t.Error("channel alarm should be set")
	}
	if !f.notify.buzzerOn {
		t.Error("buzzer should be sounding")
	}
	if !f.m.SilenceDeadlineRunning() {
		t.Error("silence deadline should be running")
	}
	if !f.m.IsAnyAlarmActive() {
		t.Error("IsAnyAlarmActive should be true")
	}

	ev := f.m.DrainEvents()
	last := ev[len(ev)-1]
	if last.Type != EventAlarm || last.Cause != ChannelCause(2) {
		t.Errorf("expected ALARM event for channel 2, got %+v", last)
	}
}

func TestNewCauseClearsSilent(t *testing.T) {
	f := newFixture(t)
	f.armWith(t, 0, 1)
	f.m.AlarmEvent(ChannelCause(0))
	if !f.m.SilenceAlarm() {
		t.Fatal("silence should succeed")
	}

	f.m.AlarmEvent(ChannelCause(1))
	if f.m.IsSilentAlarming() {
		t.Error("a fresh cause should start loud")
	}
	if !f.notify.buzzerOn {
		t.Error("buzzer should restart")
	}
}

func TestSilenceThenDisarm(t *testing.T) {
	f := newFixture(t)
	f.armWith(t, 0)
	f.m.AlarmEvent(ChannelCause(0))

	if !f.m.SilenceAlarm() {
		t.Fatal("silence should succeed with an active alarm")
	}
	s := f.m.AlarmStatus()
	if !s.Armed || !s.ChannelAlarm || !s.SilentAlarm {
		t.Errorf("silence should keep armed and cause: %+v", s)
	}
	if f.notify.buzzerOn {
		t.Error("silence should stop the buzzer")
	}
	if f.m.SilenceDeadlineRunning() {
		t.Error("silence should stop the deadline timer")
	}

	f.m.Disarm(0)
	s = f.m.AlarmStatus()
	if s.Armed || s.ChannelAlarm {
		t.Errorf("disarm should clear armed and cause: %+v", s)
	}
}

func TestSilenceWithNothingDisarms(t *testing.T) {
	f := newFixture(t)
	f.armWith(t, 0)

	if f.m.SilenceAlarm() {
		t.Error("silence with no alarm should report failure")
	}
	if f.m.IsSystemArmed() {
		t.Error("silence with no alarm should disarm")
	}
}

func TestSilenceTamperWhileDisarmedDisarms(t *testing.T) {
	f := newFixture(t)
	f.m.SetPowerTamperArmed(true)
	f.m.AlarmEvent(CausePowerTamper)
	if !f.m.AlarmStatus().PowerTamperAlarm {
		t.Fatal("setup: power tamper should latch on an unarmed master")
	}

	if f.m.SilenceAlarm() {
		t.Error("no active alarm while disarmed, silence should fail")
	}
	s := f.m.AlarmStatus()
	if s.SilentAlarm || s.AnyCause() || s.Armed {
		t.Errorf("silence should have degraded to a disarm: %+v", s)
	}
}

func TestSilenceTwiceDisarms(t *testing.T) {
	f := newFixture(t)
	f.armWith(t, 0)
	f.m.AlarmEvent(ChannelCause(0))
	f.m.SilenceAlarm()

	if f.m.SilenceAlarm() {
		t.Error("second silence should degrade to disarm")
	}
	if f.m.IsSystemArmed() || f.m.AlarmStatus().ChannelAlarm {
		t.Error("second silence should have disarmed")
	}
}

func TestAutoSilenceMatchesExplicitSilence(t *testing.T) {
	explicit := newFixture(t)
	explicit.armWith(t, 0)
	explicit.m.AlarmEvent(ChannelCause(0))
	explicit.m.SilenceAlarm()

	timed := newFixture(t)
	timed.armWith(t, 0)
	timed.m.AlarmEvent(ChannelCause(0))
	timed.advance(DefaultSilenceAfter)

	if timed.m.AlarmStatus() != explicit.m.AlarmStatus() {
		t.Errorf("auto-silence %+v != explicit %+v", timed.m.AlarmStatus(), explicit.m.AlarmStatus())
	}
	if timed.notify.buzzerOn {
		t.Error("auto-silence should stop the buzzer")
	}
}

func TestSilentAlarmSweepRearmsChannels(t *testing.T) {
	f := newFixture(t)
	f.armWith(t, 0)
	f.m.AlarmEvent(ChannelCause(0))
	f.channels.SetAlarming(0, true)
	f.m.SilenceAlarm()

	f.m.ArmRequest(false, ArmIgnoreNone)
	if f.channels.State(0).Alarming {
		t.Error("re-arm while silent should clear the channel's alarming flag")
	}
	if !f.channels.State(0).Armed {
		t.Error("channel should stay armed")
	}
}

func TestDaisyChainArmClearsAlarm(t *testing.T) {
	f := newFixture(t)
	f.armWith(t, 0)
	f.m.SetDaisyChainTamperArmed(true)
	f.m.AlarmEvent(CauseDaisyChain)
	if !f.m.AlarmStatus().DaisyChainTamperAlarm {
		t.Fatal("daisy-chain alarm should latch")
	}

	f.m.SetDaisyChainTamperArmed(false)
	if !f.m.AlarmStatus().DaisyChainTamperAlarm {
		t.Error("clearing the armed flag must not clear the alarm")
	}
	f.m.SetDaisyChainTamperArmed(true)
	if f.m.AlarmStatus().DaisyChainTamperAlarm {
		t.Error("seeing the heartbeat again should clear the alarm")
	}
}

func TestOnlyPowerTamperAlarming(t *testing.T) {
	f := newFixture(t)
	f.armWith(t, 0)
	f.m.SetPowerTamperArmed(true)
	f.m.AlarmEvent(CausePowerTamper)
	if !f.m.OnlyPowerTamperAlarming() {
		t.Error("power tamper should be the only cause")
	}
	f.m.AlarmEvent(ChannelCause(0))
	if f.m.OnlyPowerTamperAlarming() {
		t.Error("channel cause is also active")
	}
}

func TestEventCounts(t *testing.T) {
	f := newFixture(t)
	f.armWith(t, 0)
	f.m.AlarmEvent(ChannelCause(0))
	f.m.SilenceAlarm()
	f.m.Disarm(0)

	c := f.m.EventCountsSnapshot()
	if c.Armed != 1 || c.Alarms != 1 || c.Silenced != 1 || c.Disarmed != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
}
