// Package gpio provides edge-driven GPIO line access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Pull selects the bias applied to an input line.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	}
	return "none"
}

// EdgeHandler is called on every edge of an input line. It may run on a
// driver goroutine, so implementations must only hand the work off.
type EdgeHandler func(pin int)

// Lines drives a set of GPIO lines by offset. Levels are raw: true is high.
type Lines interface {
	// Input requests pin as an input. onEdge may be nil for a line that is
	// only read.
	Input(pin int, pull Pull, onEdge EdgeHandler) error

	// Output requests pin as an output driven to high.
	Output(pin int, high bool) error

	// Level returns the current raw level of a requested line.
	Level(pin int) (bool, error)

	// Set drives an output line.
	Set(pin int, high bool) error

	// Toggle inverts an output line.
	Toggle(pin int) error

	// Keep marks a requested output to stay driven at its current level
	// through Close.
	Keep(pin int) error

	// Close releases all lines. Outputs not marked with Keep are returned to
	// inputs with pull-down first.
	Close() error
}
