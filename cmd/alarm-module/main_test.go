package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/alarm-module/internal/config"
	"github.com/sweeney/alarm-module/internal/gpio"
	"github.com/sweeney/alarm-module/internal/logic"
	"github.com/sweeney/alarm-module/internal/modbus"
	"github.com/sweeney/alarm-module/internal/mqtt"
	"github.com/sweeney/alarm-module/internal/store"
	"github.com/sweeney/alarm-module/internal/timer"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	if info.Type != "wifi" || info.IP != "192.168.1.100" || info.Status != "connected" {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.Gateway != "192.168.1.1" || info.WifiStatus != "connected" || info.SSID != "MyNetwork" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.SSID != "" {
		t.Errorf("SSID: got %q, want empty", info.SSID)
	}
}

// --- daemon tests ---

// fakeRegisters reports each register write on writes. While hold is set,
// writes block until it is closed.
type fakeRegisters struct {
	writes chan regWrite
	hold   chan struct{}
}

type regWrite struct {
	addr uint16
	regs []uint16
}

func newFakeRegisters() *fakeRegisters {
	return &fakeRegisters{writes: make(chan regWrite, 64)}
}

func (f *fakeRegisters) WriteRegisters(_ uint8, addr uint16, regs []uint16) error {
	if f.hold != nil {
		<-f.hold
	}
	f.writes <- regWrite{addr, append([]uint16(nil), regs...)}
	return nil
}

func (f *fakeRegisters) next(t *testing.T) regWrite {
	t.Helper()
	select {
	case w := <-f.writes:
		return w
	case <-time.After(time.Second):
		t.Fatal("expected a register write")
	}
	return regWrite{}
}

type fixture struct {
	cfg   *config.Config
	clock *timer.ManualClock
	lines *gpio.FakeLines
	pub   *mqtt.FakePublisher
	regs  *fakeRegisters
	d     *daemon
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Store.Path = ""
	config.Normalize(cfg)
	return cfg
}

// newFixture boots a master with every switch closed, power good and no
// disarm key, in connected mode.
func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	f := &fixture{
		cfg:   cfg,
		clock: timer.NewManualClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
		lines: gpio.NewFakeLines(),
		pub:   mqtt.NewFakePublisher(),
		regs:  newFakeRegisters(),
	}
	for _, pin := range cfg.GPIO.Channels {
		f.lines.Preset(pin, false)
	}
	f.lines.Preset(cfg.GPIO.PowerGood, true)
	f.lines.Preset(cfg.GPIO.NotMaster, false)
	f.lines.Preset(cfg.GPIO.NotDisarm, true)

	st := store.NewMemoryStore(store.Record{Mode: store.ModeConnected})
	d, err := newDaemon(cfg, f.lines, f.clock, st)
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	d.publisher = f.pub
	d.mqttStatus = f.pub
	d.registers = modbus.NewMirror(modbus.NewStatusWriter(f.regs, 1, 100), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go d.registers.Run(ctx)
	f.d = d
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.d.sched.Dispatch()
	f.d.flush()
}

func (f *fixture) arm(t *testing.T) {
	t.Helper()
	f.advance(f.d.machine.AutoArmInterval())
	if !f.d.machine.IsSystemArmed() {
		t.Fatal("expected auto-arm to arm the system")
	}
}

func TestDaemonStartupEvent(t *testing.T) {
	f := newFixture(t, testConfig())
	f.d.startup()

	if len(f.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(f.pub.SystemEvents))
	}
	se := f.pub.SystemEvents[0]
	if se.Event != "STARTUP" || !se.Retained {
		t.Errorf("got %+v", se)
	}
	if !bytes.Contains(se.RawPayload, []byte(`"event":"STARTUP"`)) {
		t.Errorf("payload: %s", se.RawPayload)
	}
	if !bytes.Contains(se.RawPayload, []byte(`"mode":"connected"`)) {
		t.Errorf("payload missing mode: %s", se.RawPayload)
	}
}

func TestDaemonAutoArm(t *testing.T) {
	f := newFixture(t, testConfig())
	if got := f.d.machine.AutoArmInterval(); got != 60*time.Second {
		t.Fatalf("connected unit auto-arm: got %v", got)
	}
	f.arm(t)

	if len(f.pub.Events) != 1 || f.pub.Events[0].Type != logic.EventArmed {
		t.Fatalf("expected one ARMED event, got %+v", f.pub.Events)
	}
	snap := f.d.tracker.Snapshot()
	if !snap.Alarm.Armed || snap.LED != ledArmed {
		t.Errorf("snapshot: armed=%v led=%s", snap.Alarm.Armed, snap.LED)
	}
	if !snap.DaisyMaster || snap.Mode != "connected" {
		t.Errorf("snapshot: master=%v mode=%s", snap.DaisyMaster, snap.Mode)
	}
	for ch, cs := range snap.Channels {
		if !cs.Armed {
			t.Errorf("channel %d not armed", ch)
		}
	}
}

func TestDaemonFactoryModeAutoArm(t *testing.T) {
	cfg := testConfig()
	lines := gpio.NewFakeLines()
	clock := timer.NewManualClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	d, err := newDaemon(cfg, lines, clock, store.NewMemoryStore(store.Default()))
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	if got := d.machine.AutoArmInterval(); got != 15*time.Minute {
		t.Errorf("factory auto-arm: got %v", got)
	}
}

func TestDaemonChannelAlarm(t *testing.T) {
	f := newFixture(t, testConfig())
	f.arm(t)

	f.lines.SetLevel(f.cfg.GPIO.Channels[0], true)
	f.advance(config.Ms(f.cfg.Timing.DebounceMs))

	if len(f.pub.Events) != 2 {
		t.Fatalf("expected ARMED and ALARM, got %+v", f.pub.Events)
	}
	ev := f.pub.Events[1]
	if ev.Type != logic.EventAlarm || ev.Cause != logic.ChannelCause(0) {
		t.Errorf("got %+v", ev)
	}
	if f.d.out.LED() != ledAlarm || !f.d.out.Buzzer() {
		t.Errorf("led=%s buzzer=%v", f.d.out.LED(), f.d.out.Buzzer())
	}
	if !f.lines.High(f.cfg.GPIO.Siren) || !f.lines.High(f.cfg.GPIO.Buzzer) {
		t.Error("siren and buzzer lines should be driven")
	}
}

func TestDaemonMirrorsRegisters(t *testing.T) {
	f := newFixture(t, testConfig())
	f.d.flush()

	w := f.regs.next(t)
	if len(w.regs) != modbus.SlotCount {
		t.Fatalf("expected the full block first, got %v", w.regs)
	}
	if w.regs[modbus.SlotModule] != 0x03 {
		t.Errorf("module word: got 0x%02x, want 0x03", w.regs[modbus.SlotModule])
	}

	f.arm(t)
	f.regs.next(t)

	f.lines.SetLevel(f.cfg.GPIO.Channels[0], true)
	f.advance(config.Ms(f.cfg.Timing.DebounceMs))

	w = f.regs.next(t)
	if w.addr != 100 {
		t.Errorf("span should start at the alarm word, got %d", w.addr)
	}
	if len(w.regs) != 3 || w.regs[modbus.SlotAlarm] != 0x0D || w.regs[modbus.SlotPort0] != 0x06 {
		t.Errorf("alarm span: got %v", w.regs)
	}
}

func TestDaemonRegistersDoNotStallLoop(t *testing.T) {
	f := newFixture(t, testConfig())
	f.regs.hold = make(chan struct{})
	defer close(f.regs.hold)

	start := time.Now()
	f.arm(t)
	for i := 0; i < 50; i++ {
		f.lines.SetLevel(f.cfg.GPIO.Channels[i%4], i%2 == 0)
		f.advance(10 * time.Millisecond)
	}
	if d := time.Since(start); d > 500*time.Millisecond {
		t.Errorf("main loop waited on the register writer: %v for 50 ticks", d)
	}
}

func TestDaemonHeartbeat(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	cfg := testConfig()
	cfg.Timing.HeartbeatMs = 1000
	f := newFixture(t, cfg)
	f.advance(time.Second)

	var hb *mqtt.SystemEvent
	for i := range f.pub.SystemEvents {
		if f.pub.SystemEvents[i].Event == "HEARTBEAT" {
			hb = &f.pub.SystemEvents[i]
		}
	}
	if hb == nil {
		t.Fatal("expected HEARTBEAT event")
	}
	if hb.Retained {
		t.Error("heartbeat should not be retained")
	}
	if !bytes.Contains(hb.RawPayload, []byte(`"ssid":"MyNetwork"`)) {
		t.Errorf("heartbeat payload missing network info: %s", hb.RawPayload)
	}
}

func TestDaemonRemoteCommand(t *testing.T) {
	f := newFixture(t, testConfig())
	if err := f.pub.SubscribeCommands(f.d.onCommand); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		f.pub.Deliver("SA 1")
		close(done)
	}()

loop:
	for {
		select {
		case <-done:
			break loop
		case <-f.d.sched.Wake():
			f.d.sched.Dispatch()
		}
	}
	f.d.flush()

	if !f.d.machine.IsSystemArmed() {
		t.Error("SA 1 over MQTT should arm")
	}
	if len(f.pub.Events) != 1 || f.pub.Events[0].Type != logic.EventArmed {
		t.Errorf("expected ARMED, got %+v", f.pub.Events)
	}
}

// runRunLoop drives runLoop with n ticks and then sends signal, returning the
// error once the loop exits.
func runRunLoop(t *testing.T, d *daemon, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.runLoop(tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	f := newFixture(t, testConfig())
	if err := runRunLoop(t, f.d, 3, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(f.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(f.pub.SystemEvents))
	}
	se := f.pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" || se.Reason != "SIGINT" || !se.Retained {
		t.Errorf("got %+v", se)
	}
	if !bytes.Contains(se.RawPayload, []byte(`"reason":"SIGINT"`)) {
		t.Errorf("payload: %s", se.RawPayload)
	}
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	f := newFixture(t, testConfig())
	if err := runRunLoop(t, f.d, 0, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(f.pub.SystemEvents) != 1 || f.pub.SystemEvents[0].Reason != "SIGTERM" {
		t.Errorf("got %+v", f.pub.SystemEvents)
	}
}

func TestRunLoopPublishError(t *testing.T) {
	f := newFixture(t, testConfig())
	f.pub.Err = errors.New("broker unavailable")
	f.arm(t)

	if err := runRunLoop(t, f.d, 1, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(f.pub.Events) != 0 {
		t.Errorf("expected 0 recorded events (publish failed), got %d", len(f.pub.Events))
	}
	// The ARMED event and SHUTDOWN were both tried.
	if f.pub.Attempts < 2 || len(f.pub.SystemEvents) != 0 {
		t.Errorf("attempts=%d recorded system events=%d", f.pub.Attempts, len(f.pub.SystemEvents))
	}
}

func TestRunLoopReboot(t *testing.T) {
	f := newFixture(t, testConfig())
	out := f.d.console.Execute("RB 0")
	if !strings.Contains(out, "REBOOT REQUEST") {
		t.Fatalf("got %q", out)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.d.runLoop(make(chan time.Time), make(chan os.Signal))
	}()
	if err := <-errCh; err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(f.pub.SystemEvents) != 1 || f.pub.SystemEvents[0].Reason != "REBOOT" {
		t.Errorf("got %+v", f.pub.SystemEvents)
	}
}

func TestDaemonWithoutPublisher(t *testing.T) {
	f := newFixture(t, testConfig())
	f.d.publisher = nil
	f.d.mqttStatus = nil
	f.arm(t)
	f.d.startup()
	if len(f.pub.Events) != 0 || len(f.pub.SystemEvents) != 0 {
		t.Error("nothing should be published without a broker")
	}
}

// --- outputs ---

func TestOutputsPatternEnds(t *testing.T) {
	clock := timer.NewManualClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	sched := timer.NewScheduler(clock)
	lines := gpio.NewFakeLines()
	o := newOutputs(lines, sched, outputPins{Buzzer: 1, Siren: 2, Flash: 3})
	if err := o.init(); err != nil {
		t.Fatal(err)
	}

	o.StartBuzzerPattern(logic.PatternSucceed)
	if !lines.High(1) || o.Playing() != logic.PatternSucceed {
		t.Fatal("pattern should drive the buzzer")
	}
	clock.Advance(patternLength)
	sched.Dispatch()
	if lines.High(1) || o.Playing() != logic.PatternNone {
		t.Error("one-shot pattern should end")
	}

	o.StartBuzzerPattern(logic.PatternDeepSleep)
	clock.Advance(patternLength)
	sched.Dispatch()
	if o.Playing() != logic.PatternDeepSleep {
		t.Error("deep sleep pattern loops")
	}
	o.StopBuzzerPattern(logic.PatternSucceed)
	if o.Playing() != logic.PatternDeepSleep {
		t.Error("stopping another pattern must not silence the current one")
	}
	o.StopBuzzerPattern(logic.PatternDeepSleep)
	if lines.High(1) {
		t.Error("buzzer should be off")
	}
}

func TestOutputsAlarmHoldsBuzzer(t *testing.T) {
	clock := timer.NewManualClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	sched := timer.NewScheduler(clock)
	lines := gpio.NewFakeLines()
	o := newOutputs(lines, sched, outputPins{Buzzer: 1, Siren: 2, Flash: 3})
	if err := o.init(); err != nil {
		t.Fatal(err)
	}

	o.StartBuzzerAlarm()
	o.StartBuzzerPattern(logic.PatternError)
	o.StopBuzzerPattern(logic.PatternError)
	if !lines.High(1) || !lines.High(2) {
		t.Error("alarm should keep buzzer and siren on")
	}
	o.StopBuzzerAlarm()
	if lines.High(1) || lines.High(2) {
		t.Error("buzzer and siren should be off")
	}

	o.ToggleDisarmFlash()
	if !o.DisarmFlash() || !lines.High(3) {
		t.Error("flash should toggle high")
	}
}

// --- subcommands ---

func TestModeCommand(t *testing.T) {
	st := store.NewMemoryStore(store.Default())

	var out bytes.Buffer
	if err := modeCommand(st, nil, &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "factory\n" {
		t.Errorf("got %q", out.String())
	}

	out.Reset()
	if err := modeCommand(st, []string{"connected"}, &out); err != nil {
		t.Fatal(err)
	}
	rec, _ := st.Load()
	if rec.Mode != store.ModeConnected {
		t.Errorf("stored mode: got %v", rec.Mode)
	}

	if err := modeCommand(st, []string{"bogus"}, &out); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestReadInputsAndRender(t *testing.T) {
	g := config.Default().GPIO
	lines := gpio.NewFakeLines()
	for _, pin := range g.Channels {
		lines.Preset(pin, false)
	}
	lines.Preset(g.Channels[3], true)
	lines.Preset(g.PowerGood, true)
	lines.Preset(g.NotMaster, false)
	lines.Preset(g.NotDisarm, false)

	s, err := readInputs(lines, g)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Open[3] || s.Open[0] {
		t.Errorf("open: %v", s.Open)
	}
	if !s.PowerGood || !s.Master || !s.KeyPresent {
		t.Errorf("got %+v", s)
	}

	out := renderState(s)
	for _, want := range []string{"Alarm Module Inputs", "Channel 3", "OPEN", "CLOSED", "GOOD", "MASTER", "PRESENT"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestReadInputsError(t *testing.T) {
	lines := gpio.NewFakeLines()
	lines.LevelError = errors.New("chip gone")
	if _, err := readInputs(lines, config.Default().GPIO); err == nil {
		t.Error("expected error")
	}
}
