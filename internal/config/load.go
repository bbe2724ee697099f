package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default returns the built-in configuration for the reference board.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Serial:       "000000",
			Model:        "AM12",
			ModelVersion: "1.0",
		},
		GPIO: GPIOConfig{
			Chip:        "gpiochip0",
			Channels:    []int{4, 5, 6, 12, 13, 16, 17, 18, 19, 20, 21, 22},
			PowerGood:   23,
			NotMaster:   24,
			NotDisarm:   25,
			Deadman:     26,
			DaisyChain:  27,
			Buzzer:      10,
			Siren:       11,
			DisarmFlash: 9,
		},
		Timing: TimingConfig{
			TickMs:           10,
			DebounceMs:       250,
			AutoArmMs:        60000,
			FactoryAutoArmMs: 900000,
			SilenceMs:        300000,
			DisarmFlashMs:    1000,
			DaisyPulseMs:     500,
			DaisyWindowMs:    3000,
			BatteryLimitMs:   4 * 60 * 60 * 1000,
			ShelfStorageMs:   2000,
			HeartbeatMs:      15 * 60 * 1000,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://192.168.1.200:1883",
			Topic:    "security/alarm-module",
			ClientID: "alarm-module",
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
		Serial: SerialConfig{
			Baud: 115200,
		},
		Modbus: ModbusConfig{
			UnitID:    1,
			TimeoutMs: 1000,
			RetryMs:   1000,
		},
		Store: StoreConfig{
			Path: "/var/lib/alarm-module/store.cbor",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
