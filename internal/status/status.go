// Package status provides a thread-safe status tracker for the alarm-module daemon.
// It is read by the HTTP handlers, the websocket feed and the system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/alarm-module/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs        int64
	DebounceMs    int64
	AutoArmMs     int64
	SilenceMs     int64
	DaisyWindowMs int64
	HeartbeatMs   int64
	Broker        string
	HTTPAddr      string
	SerialPort    string
	Modbus        string
}

// Live is the part of the snapshot refreshed from the main loop after every
// dispatch.
type Live struct {
	Alarm       logic.AlarmStatus
	Channels    [logic.ChannelCount]logic.ChannelState
	Module      logic.ModuleStatus
	CanArm      bool
	DaisyMaster bool
	Mode        string
	LED         string
	Buzzer      bool
	Counts      logic.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Live
	Ready         bool // false until the first Update
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	version uint64
	changed chan struct{}
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		changed: make(chan struct{}),
	}
}

// Update replaces the live state. Called from runLoop after each dispatch.
// It reports whether anything differed from the previous state; watchers
// are woken only then.
func (t *Tracker) Update(l Live) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Ready && t.snap.Live == l {
		return false
	}
	t.snap.Live = l
	t.snap.Ready = true
	t.bump()
	return true
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.MQTTConnected != connected {
		t.snap.MQTTConnected = connected
		t.bump()
	}
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

// Watch returns the current version and a channel closed on the next change.
func (t *Tracker) Watch() (uint64, <-chan struct{}) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version, t.changed
}

// bump must be called with mu held.
func (t *Tracker) bump() {
	t.version++
	close(t.changed)
	t.changed = make(chan struct{})
}
