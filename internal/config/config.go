// Package config holds the daemon's YAML configuration.
package config

import "time"

type Config struct {
	Device DeviceConfig `yaml:"device"`
	GPIO   GPIOConfig   `yaml:"gpio"`
	Timing TimingConfig `yaml:"timing"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http"`
	Serial SerialConfig `yaml:"serial"`
	Modbus ModbusConfig `yaml:"modbus"`
	Store  StoreConfig  `yaml:"store"`
}

// ---- DEVICE ----

// DeviceConfig is the identity reported by the GV command and the status page.
type DeviceConfig struct {
	Serial       string `yaml:"serial"`
	Model        string `yaml:"model"`
	ModelVersion string `yaml:"model_version"`
}

// ---- GPIO ----

// GPIOConfig maps every signal to a line offset on Chip.
type GPIOConfig struct {
	Chip        string `yaml:"chip"`
	Channels    []int  `yaml:"channels"` // exactly 12, channel 0 first
	PowerGood   int    `yaml:"power_good"`
	NotMaster   int    `yaml:"n_master"`
	NotDisarm   int    `yaml:"n_disarm"`
	Deadman     int    `yaml:"deadman"`
	DaisyChain  int    `yaml:"daisy_chain"`
	Buzzer      int    `yaml:"buzzer"`
	Siren       int    `yaml:"siren"`
	DisarmFlash int    `yaml:"disarm_flash"`
}

// ---- TIMING ----

type TimingConfig struct {
	TickMs           int `yaml:"tick_ms"`
	DebounceMs       int `yaml:"debounce_ms"`
	AutoArmMs        int `yaml:"auto_arm_ms"`
	FactoryAutoArmMs int `yaml:"factory_auto_arm_ms"`
	SilenceMs        int `yaml:"silence_ms"`
	DisarmFlashMs    int `yaml:"disarm_flash_ms"`
	DaisyPulseMs     int `yaml:"daisy_pulse_ms"`
	DaisyWindowMs    int `yaml:"daisy_window_ms"`
	BatteryLimitMs   int `yaml:"battery_limit_ms"`
	ShelfStorageMs   int `yaml:"shelf_storage_ms"`
	HeartbeatMs      int `yaml:"heartbeat_ms"` // 0 disables
}

// Ms converts a millisecond setting to a Duration.
func Ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// ---- OUTER SURFACES ----

type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables
	Topic    string `yaml:"topic"`  // prefix; events, system and command live below it
	ClientID string `yaml:"client_id"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables
}

type SerialConfig struct {
	Port string `yaml:"port"` // empty disables
	Baud int    `yaml:"baud"`
}

type ModbusConfig struct {
	Endpoint  string `yaml:"endpoint"` // empty disables
	UnitID    uint8  `yaml:"unit_id"`
	Address   uint16 `yaml:"address"`
	TimeoutMs int    `yaml:"timeout_ms"`
	RetryMs   int    `yaml:"retry_ms"` // wait between writes while the PLC is failing
}

type StoreConfig struct {
	Path string `yaml:"path"` // empty keeps settings in memory only
}
