package config

import "strings"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	def := Default()

	// Zero means "use the default" for every interval except the heartbeat,
	// where zero disables it.
	t := &cfg.Timing
	fill := func(v *int, d int) {
		if *v == 0 {
			*v = d
		}
	}
	fill(&t.TickMs, def.Timing.TickMs)
	fill(&t.DebounceMs, def.Timing.DebounceMs)
	fill(&t.AutoArmMs, def.Timing.AutoArmMs)
	fill(&t.FactoryAutoArmMs, def.Timing.FactoryAutoArmMs)
	fill(&t.SilenceMs, def.Timing.SilenceMs)
	fill(&t.DisarmFlashMs, def.Timing.DisarmFlashMs)
	fill(&t.DaisyPulseMs, def.Timing.DaisyPulseMs)
	fill(&t.DaisyWindowMs, def.Timing.DaisyWindowMs)
	fill(&t.BatteryLimitMs, def.Timing.BatteryLimitMs)
	fill(&t.ShelfStorageMs, def.Timing.ShelfStorageMs)

	// The tick bounds the timer resolution; anything coarser than the
	// debounce would swallow it.
	if t.TickMs > t.DebounceMs {
		t.TickMs = t.DebounceMs
	}

	cfg.MQTT.Topic = strings.TrimRight(strings.TrimSpace(cfg.MQTT.Topic), "/")
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = def.MQTT.Topic
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = def.MQTT.ClientID
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = def.Serial.Baud
	}
	if cfg.Modbus.TimeoutMs == 0 {
		cfg.Modbus.TimeoutMs = def.Modbus.TimeoutMs
	}
	if cfg.Modbus.RetryMs == 0 {
		cfg.Modbus.RetryMs = def.Modbus.RetryMs
	}
	if cfg.GPIO.Chip == "" {
		cfg.GPIO.Chip = def.GPIO.Chip
	}
}
