package modbus

import (
	"fmt"

	"github.com/sweeney/alarm-module/internal/logic"
)

// Register slots relative to the configured base address.
const (
	SlotAlarm  = 0
	SlotModule = 1
	SlotPort0  = 2
	SlotCount  = SlotPort0 + logic.ChannelCount
)

// Snapshot is the packed status block.
type Snapshot [SlotCount]uint16

// Encode packs the alarm, module and per-channel status into a block.
func Encode(alarm logic.AlarmStatus, mod logic.ModuleStatus, ports [logic.ChannelCount]logic.ChannelState) Snapshot {
	var s Snapshot
	s[SlotAlarm] = alarm.Pack()
	s[SlotModule] = mod.Pack()
	for i, p := range ports {
		s[SlotPort0+i] = p.Pack()
	}
	return s
}

// RegisterWriter is the transport the StatusWriter drives.
type RegisterWriter interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// StatusWriter writes a Snapshot whenever it changes. After any failed write
// the next call re-asserts the whole block.
type StatusWriter struct {
	cli    RegisterWriter
	unitID uint8
	base   uint16

	needFull bool
	last     Snapshot
}

// NewStatusWriter returns a writer whose first call writes the full block.
func NewStatusWriter(cli RegisterWriter, unitID uint8, base uint16) *StatusWriter {
	return &StatusWriter{
		cli:      cli,
		unitID:   unitID,
		base:     base,
		needFull: true,
	}
}

// WriteStatus delivers s. Unchanged snapshots cost nothing; otherwise only
// the span between the first and last changed slot is written.
func (w *StatusWriter) WriteStatus(s Snapshot) error {
	if w.needFull {
		if err := w.cli.WriteRegisters(w.unitID, w.base, s[:]); err != nil {
			return fmt.Errorf("modbus status: full block write: %w", err)
		}
		w.needFull = false
		w.last = s
		return nil
	}

	first, last := -1, -1
	for i := range s {
		if s[i] != w.last[i] {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil
	}

	if err := w.cli.WriteRegisters(w.unitID, w.base+uint16(first), s[first:last+1]); err != nil {
		w.needFull = true
		return fmt.Errorf("modbus status: write slots %d-%d: %w", first, last, err)
	}
	w.last = s
	return nil
}
