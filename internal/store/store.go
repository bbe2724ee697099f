// Package store persists the module's connect mode and user settings.
package store

import "fmt"

// Mode is the connect mode byte written at provisioning.
type Mode uint8

const (
	ModeNonConnected Mode = 0
	ModeConnected    Mode = 1
	ModeFactory      Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModeNonConnected:
		return "non-connected"
	case ModeConnected:
		return "connected"
	case ModeFactory:
		return "factory"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode accepts the names printed by Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{ModeNonConnected, ModeConnected, ModeFactory} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// UserConfig holds the settings written by the SH console command.
type UserConfig struct {
	Volume   uint8 `cbor:"volume"`
	Alarm    uint8 `cbor:"alarm"`
	Security uint8 `cbor:"security"`
}

// Record is everything kept across restarts.
type Record struct {
	Mode          Mode       `cbor:"mode"`
	ConnectWanted bool       `cbor:"connect_wanted"`
	User          UserConfig `cbor:"user"`
}

// Factory reports whether the unit has not been provisioned yet.
func (r Record) Factory() bool {
	return r.Mode == ModeFactory
}

// Default is the record of a unit fresh off the line.
func Default() Record {
	return Record{Mode: ModeFactory}
}

// Store loads and saves the persistent record.
type Store interface {
	Load() (Record, error)
	Save(r Record) error
}
