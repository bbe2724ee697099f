//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// RealLines drives GPIO lines on actual hardware using the Linux GPIO
// character device.
type RealLines struct {
	mu    sync.Mutex
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
	keep  map[int]bool
}

// NewRealLines opens the named chip, e.g. "gpiochip0".
func NewRealLines(chipName string) (*RealLines, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealLines{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
		keep:  make(map[int]bool),
	}, nil
}

func biasOption(p Pull) gpiocdev.LineReqOption {
	switch p {
	case PullUp:
		return gpiocdev.WithPullUp
	case PullDown:
		return gpiocdev.WithPullDown
	}
	return gpiocdev.WithBiasDisabled
}

// Input implements Lines. Edge events are delivered on the gpiocdev watcher
// goroutine.
func (r *RealLines) Input(pin int, pull Pull, onEdge EdgeHandler) error {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, biasOption(pull)}
	if onEdge != nil {
		opts = append(opts,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { onEdge(pin) }),
		)
	}
	line, err := r.chip.RequestLine(pin, opts...)
	if err != nil {
		return fmt.Errorf("request input pin %d: %w", pin, err)
	}
	r.mu.Lock()
	r.lines[pin] = line
	r.mu.Unlock()
	return nil
}

// Output implements Lines.
func (r *RealLines) Output(pin int, high bool) error {
	line, err := r.chip.RequestLine(pin, gpiocdev.AsOutput(level(high)))
	if err != nil {
		return fmt.Errorf("request output pin %d: %w", pin, err)
	}
	r.mu.Lock()
	r.lines[pin] = line
	r.mu.Unlock()
	return nil
}

func (r *RealLines) line(pin int) (*gpiocdev.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[pin]
	if !ok {
		return nil, fmt.Errorf("pin %d not requested", pin)
	}
	return l, nil
}

// Level implements Lines.
func (r *RealLines) Level(pin int) (bool, error) {
	l, err := r.line(pin)
	if err != nil {
		return false, err
	}
	v, err := l.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v != 0, nil
}

// Set implements Lines.
func (r *RealLines) Set(pin int, high bool) error {
	l, err := r.line(pin)
	if err != nil {
		return err
	}
	if err := l.SetValue(level(high)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// Toggle implements Lines.
func (r *RealLines) Toggle(pin int) error {
	high, err := r.Level(pin)
	if err != nil {
		return err
	}
	return r.Set(pin, !high)
}

// Keep implements Lines.
func (r *RealLines) Keep(pin int) error {
	if _, err := r.line(pin); err != nil {
		return err
	}
	r.mu.Lock()
	r.keep[pin] = true
	r.mu.Unlock()
	return nil
}

// Close releases GPIO resources.
// Lines are reconfigured to plain inputs with pull-down (matching Pi boot
// defaults) before closing, except kept outputs: those are released as they
// are and the pin holds its last driven level.
func (r *RealLines) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for pin, l := range r.lines {
		if !r.keep[pin] {
			if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
				errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
			}
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	r.lines = map[int]*gpiocdev.Line{}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func level(high bool) int {
	if high {
		return 1
	}
	return 0
}
