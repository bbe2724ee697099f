package config

import (
	"fmt"

	"github.com/sweeney/alarm-module/internal/logic"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// GPIO: 12 channels, every line used once
	// ------------------------------------------------------------

	g := cfg.GPIO
	if len(g.Channels) != logic.ChannelCount {
		return fmt.Errorf("gpio: %d channels configured, need %d", len(g.Channels), logic.ChannelCount)
	}

	owner := make(map[int]string)
	claim := func(pin int, name string) error {
		if pin < 0 {
			return fmt.Errorf("gpio: %s: negative line %d", name, pin)
		}
		if prev, ok := owner[pin]; ok {
			return fmt.Errorf("gpio: line %d used by both %s and %s", pin, prev, name)
		}
		owner[pin] = name
		return nil
	}
	for i, pin := range g.Channels {
		if err := claim(pin, fmt.Sprintf("channel %d", i)); err != nil {
			return err
		}
	}
	named := []struct {
		pin  int
		name string
	}{
		{g.PowerGood, "power_good"},
		{g.NotMaster, "n_master"},
		{g.NotDisarm, "n_disarm"},
		{g.Deadman, "deadman"},
		{g.DaisyChain, "daisy_chain"},
		{g.Buzzer, "buzzer"},
		{g.Siren, "siren"},
		{g.DisarmFlash, "disarm_flash"},
	}
	for _, n := range named {
		if err := claim(n.pin, n.name); err != nil {
			return err
		}
	}

	// ------------------------------------------------------------
	// TIMING
	// ------------------------------------------------------------

	t := cfg.Timing
	for _, f := range []struct {
		v    int
		name string
	}{
		{t.TickMs, "tick_ms"},
		{t.DebounceMs, "debounce_ms"},
		{t.AutoArmMs, "auto_arm_ms"},
		{t.FactoryAutoArmMs, "factory_auto_arm_ms"},
		{t.SilenceMs, "silence_ms"},
		{t.DisarmFlashMs, "disarm_flash_ms"},
		{t.DaisyPulseMs, "daisy_pulse_ms"},
		{t.DaisyWindowMs, "daisy_window_ms"},
		{t.BatteryLimitMs, "battery_limit_ms"},
		{t.ShelfStorageMs, "shelf_storage_ms"},
		{t.HeartbeatMs, "heartbeat_ms"},
	} {
		if f.v < 0 {
			return fmt.Errorf("timing: %s must not be negative", f.name)
		}
	}
	if t.DaisyPulseMs > 0 && t.DaisyWindowMs > 0 && t.DaisyWindowMs <= t.DaisyPulseMs {
		return fmt.Errorf("timing: daisy_window_ms (%d) must exceed daisy_pulse_ms (%d)", t.DaisyWindowMs, t.DaisyPulseMs)
	}

	// ------------------------------------------------------------
	// OUTER SURFACES
	// ------------------------------------------------------------

	if cfg.Serial.Port != "" && cfg.Serial.Baud < 0 {
		return fmt.Errorf("serial: baud must not be negative")
	}
	if cfg.Modbus.Endpoint != "" && cfg.Modbus.UnitID == 0 {
		return fmt.Errorf("modbus: unit_id must be set when endpoint is configured")
	}
	if cfg.Modbus.TimeoutMs < 0 {
		return fmt.Errorf("modbus: timeout_ms must not be negative")
	}
	if cfg.Modbus.RetryMs < 0 {
		return fmt.Errorf("modbus: retry_ms must not be negative")
	}
	if int(cfg.Modbus.Address)+2+logic.ChannelCount > 0x10000 {
		return fmt.Errorf("modbus: status block at %d runs past the register space", cfg.Modbus.Address)
	}

	return nil
}
