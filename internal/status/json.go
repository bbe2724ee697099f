package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Ready         bool          `json:"ready"`
	Alarm         AlarmJSON     `json:"alarm"`
	Module        ModuleJSON    `json:"module"`
	Channels      []ChannelJSON `json:"channels"`
	LED           string        `json:"led"`
	Buzzer        bool          `json:"buzzer"`
	Mode          string        `json:"mode,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// AlarmJSON is the arming record with its packed code.
type AlarmJSON struct {
	Code                  uint16 `json:"code"`
	Armed                 bool   `json:"armed"`
	SilentAlarm           bool   `json:"silent_alarm"`
	ChannelAlarm          bool   `json:"channel_alarm"`
	PowerTamperArmed      bool   `json:"power_tamper_armed"`
	PowerTamperAlarm      bool   `json:"power_tamper_alarm"`
	DaisyChainTamperAlarm bool   `json:"daisy_chain_tamper_alarm"`
	DaisyChainTamperArmed bool   `json:"daisy_chain_tamper_armed"`
}

// ModuleJSON is the hardware status with its packed code.
type ModuleJSON struct {
	Code         uint16 `json:"code"`
	IsMaster     bool   `json:"is_master"`
	Powered      bool   `json:"powered"`
	NotCharging  bool   `json:"not_charging"`
	DeepSleep    bool   `json:"deep_sleep"`
	ShutDown     bool   `json:"shut_down"`
	SwitchLifted bool   `json:"switch_lifted"`
	CanArm       bool   `json:"can_arm"`
	DaisyMaster  bool   `json:"daisy_master"`
}

// ChannelJSON is one channel's state.
type ChannelJSON struct {
	Channel      int    `json:"channel"`
	Code         uint16 `json:"code"`
	CablePresent bool   `json:"cable_present"`
	Armed        bool   `json:"armed"`
	Alarming     bool   `json:"alarming"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Armed    int `json:"armed"`
	Disarmed int `json:"disarmed"`
	Alarms   int `json:"alarms"`
	Silenced int `json:"silenced"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs        int64  `json:"tick_ms"`
	DebounceMs    int64  `json:"debounce_ms"`
	AutoArmMs     int64  `json:"auto_arm_ms"`
	SilenceMs     int64  `json:"silence_ms"`
	DaisyWindowMs int64  `json:"daisy_window_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	SerialPort    string `json:"serial_port,omitempty"`
	Modbus        string `json:"modbus,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	a := snap.Alarm
	m := snap.Module
	inner := StatusInner{
		Ready: snap.Ready,
		Alarm: AlarmJSON{
			Code:                  a.Pack(),
			Armed:                 a.Armed,
			SilentAlarm:           a.SilentAlarm,
			ChannelAlarm:          a.ChannelAlarm,
			PowerTamperArmed:      a.PowerTamperArmed,
			PowerTamperAlarm:      a.PowerTamperAlarm,
			DaisyChainTamperAlarm: a.DaisyChainTamperAlarm,
			DaisyChainTamperArmed: a.DaisyChainTamperArmed,
		},
		Module: ModuleJSON{
			Code:         m.Pack(),
			IsMaster:     m.IsMaster,
			Powered:      m.Powered,
			NotCharging:  m.NotCharging,
			DeepSleep:    m.DeepSleep,
			ShutDown:     m.ShutDown,
			SwitchLifted: m.SwitchLifted,
			CanArm:       snap.CanArm,
			DaisyMaster:  snap.DaisyMaster,
		},
		Channels:      make([]ChannelJSON, 0, len(snap.Channels)),
		LED:           snap.LED,
		Buzzer:        snap.Buzzer,
		Mode:          snap.Mode,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Armed:    snap.Counts.Armed,
			Disarmed: snap.Counts.Disarmed,
			Alarms:   snap.Counts.Alarms,
			Silenced: snap.Counts.Silenced,
		},
		Config: ConfigJSON{
			TickMs:        snap.Config.TickMs,
			DebounceMs:    snap.Config.DebounceMs,
			AutoArmMs:     snap.Config.AutoArmMs,
			SilenceMs:     snap.Config.SilenceMs,
			DaisyWindowMs: snap.Config.DaisyWindowMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			SerialPort:    snap.Config.SerialPort,
			Modbus:        snap.Config.Modbus,
		},
	}
	if inner.LED == "" {
		inner.LED = "UNKNOWN"
	}
	for ch, c := range snap.Channels {
		inner.Channels = append(inner.Channels, ChannelJSON{
			Channel:      ch,
			Code:         c.Pack(),
			CablePresent: c.CablePresent,
			Armed:        c.Armed,
			Alarming:     c.Alarming,
		})
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatCompact returns the status as a single line, for the websocket feed.
func FormatCompact(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
